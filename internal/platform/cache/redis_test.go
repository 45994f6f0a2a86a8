package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDisabledWithoutAddr(t *testing.T) {
	client, err := New(context.Background(), Options{})
	assert.ErrorIs(t, err, ErrDisabled)
	assert.Nil(t, client)
}

func TestNewConnects(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := New(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	client, err := New(context.Background(), Options{Addr: addr})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDisabled)
	assert.Nil(t, client)
}
