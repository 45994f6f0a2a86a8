package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	charapp "lor-api/internal/app/character"
	locapp "lor-api/internal/app/location"
	"lor-api/internal/platform/db"
	"lor-api/internal/platform/migrate"
	"lor-api/internal/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	sqlDB, err := db.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	store := storage.NewSQLite(sqlDB)
	t.Cleanup(store.Close)

	_, err = migrate.NewRunner(store.Ledger, os.DirFS("../../migrations/sqlite"), zerolog.Nop()).Up(ctx)
	require.NoError(t, err)

	chars := charapp.NewService(store.Characters, nil, time.Minute, nil)
	locs := locapp.NewService(store.Locations, store.Characters, nil)
	h := NewHandler(zerolog.Nop(), chars, locs, store, "*", 1<<20)

	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func createCharacter(t *testing.T, srv *httptest.Server, name string) string {
	t.Helper()
	status, body := do(t, srv, http.MethodPost, "/api/characters", map[string]any{"name": name, "description": "test"})
	require.Equal(t, http.StatusOK, status, body)
	return body["id"].(string)
}

func TestPing(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/ping", "/api/ping"} {
		status, body := do(t, srv, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, status, path)
		assert.Empty(t, body)
	}
	status, body := do(t, srv, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])
}

func TestCreateCharacterThenDuplicateConflicts(t *testing.T) {
	srv := newTestServer(t)

	status, body := do(t, srv, http.MethodPost, "/api/characters", map[string]any{"name": "Frodo"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Frodo", body["name"])
	assert.Contains(t, body, "description")
	assert.Nil(t, body["description"])
	_, err := uuid.Parse(body["id"].(string))
	assert.NoError(t, err)
	_, err = time.Parse(time.RFC3339Nano, body["created_at"].(string))
	assert.NoError(t, err)

	status, body = do(t, srv, http.MethodPost, "/api/characters", map[string]any{"name": "Frodo", "description": "Hobbit"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Name already exists", body["detail"])
}

func TestCreateCharacterValidation(t *testing.T) {
	srv := newTestServer(t)
	cases := map[string]any{
		"missing name": map[string]any{"description": "x"},
		"empty name":   map[string]any{"name": ""},
		"long name":    map[string]any{"name": strings.Repeat("a", 65)},
		"wrong type":   map[string]any{"name": 42},
		"malformed":    `{"name":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			status, resp := do(t, srv, http.MethodPost, "/api/characters", body)
			assert.Equal(t, http.StatusUnprocessableEntity, status)
			assert.NotEmpty(t, resp["detail"])
		})
	}

	status, body := do(t, srv, http.MethodPost, "/api/characters", map[string]any{"name": "Tom", "extra": true})
	assert.Equal(t, http.StatusOK, status, "unknown fields are ignored")
	assert.Nil(t, body["description"])
}

func TestCharacterCRUD(t *testing.T) {
	srv := newTestServer(t)
	id := createCharacter(t, srv, "Aragorn")
	createCharacter(t, srv, "Legolas")

	status, body := do(t, srv, http.MethodGet, "/api/characters/"+id, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Aragorn", body["name"])

	status, body = do(t, srv, http.MethodGet, "/api/characters", nil)
	require.Equal(t, http.StatusOK, status)
	list := body["characters"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, "Aragorn", list[0].(map[string]any)["name"])

	status, body = do(t, srv, http.MethodPut, "/api/characters/"+id, map[string]any{"name": "Elessar", "description": "King"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, id, body["id"])
	assert.Equal(t, "Elessar", body["name"])
	assert.Equal(t, "King", body["description"])

	status, body = do(t, srv, http.MethodPut, "/api/characters/"+id, map[string]any{"name": "Legolas"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Name already exists", body["detail"])

	status, body = do(t, srv, http.MethodDelete, "/api/characters/"+id, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body)

	status, body = do(t, srv, http.MethodGet, "/api/characters/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Character not found", body["detail"])

	status, _ = do(t, srv, http.MethodDelete, "/api/characters/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCharacterNotFoundAndBadID(t *testing.T) {
	srv := newTestServer(t)
	missing := uuid.NewString()

	status, body := do(t, srv, http.MethodGet, "/api/characters/"+missing, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Character not found", body["detail"])

	status, _ = do(t, srv, http.MethodPut, "/api/characters/"+missing, map[string]any{"name": "Ghost"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, srv, http.MethodGet, "/api/characters/not-a-uuid", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestCreateLocationForUnknownCharacter(t *testing.T) {
	srv := newTestServer(t)
	status, body := do(t, srv, http.MethodPost, "/api/locations", map[string]any{
		"character_id": "00000000-0000-0000-0000-000000000000",
		"x":            10.5,
		"y":            20.3,
		"created_at":   "2024-01-01T00:00:00Z",
	})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Character not found", body["detail"])
}

func TestCreateLocationValidation(t *testing.T) {
	srv := newTestServer(t)
	id := createCharacter(t, srv, "Sam")
	cases := map[string]map[string]any{
		"missing x":          {"character_id": id, "y": 1.0, "created_at": "2024-01-01T00:00:00Z"},
		"missing created_at": {"character_id": id, "x": 1.0, "y": 1.0},
		"bad character_id":   {"character_id": "nope", "x": 1.0, "y": 1.0, "created_at": "2024-01-01T00:00:00Z"},
		"bad created_at":     {"character_id": id, "x": 1.0, "y": 1.0, "created_at": "yesterday"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			status, _ := do(t, srv, http.MethodPost, "/api/locations", body)
			assert.Equal(t, http.StatusUnprocessableEntity, status)
		})
	}
}

func TestLocationsHistory(t *testing.T) {
	srv := newTestServer(t)
	id := createCharacter(t, srv, "Gollum")

	for _, ts := range []string{"2024-01-03T00:00:00Z", "2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z"} {
		status, body := do(t, srv, http.MethodPost, "/api/locations", map[string]any{
			"character_id": id, "x": 1.5, "y": -2.25, "created_at": ts,
		})
		require.Equal(t, http.StatusOK, status, body)
		assert.Equal(t, id, body["character_id"])
	}

	status, body := do(t, srv, http.MethodGet, "/api/locations/"+id, nil)
	require.Equal(t, http.StatusOK, status)
	locs := body["locations"].([]any)
	require.Len(t, locs, 3)
	assert.Equal(t, "2024-01-01T00:00:00Z", locs[0].(map[string]any)["created_at"])
	assert.Equal(t, "2024-01-03T00:00:00Z", locs[2].(map[string]any)["created_at"])

	status, body = do(t, srv, http.MethodGet, "/api/locations/"+id+"?start=2024-01-02T00:00:00Z&end=2024-01-03T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["locations"].([]any), 2, "bounds are inclusive")

	status, body = do(t, srv, http.MethodGet, "/api/locations/"+id+"?start=2024-01-02T00:00:00", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["locations"].([]any), 2, "naive timestamps are UTC")

	status, _ = do(t, srv, http.MethodGet, "/api/locations/"+id+"?end=soon", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, body = do(t, srv, http.MethodGet, "/api/locations/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Character not found", body["detail"])

	status, body = do(t, srv, http.MethodGet, "/api/locations", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["locations"].([]any), 3)
}

func TestDeleteLocation(t *testing.T) {
	srv := newTestServer(t)
	id := createCharacter(t, srv, "Pippin")
	status, body := do(t, srv, http.MethodPost, "/api/locations", map[string]any{
		"character_id": id, "x": 0.0, "y": 0.0, "created_at": "2024-01-01T00:00:00Z",
	})
	require.Equal(t, http.StatusOK, status)
	locID := body["id"].(string)

	status, _ = do(t, srv, http.MethodDelete, "/api/locations/"+locID, nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = do(t, srv, http.MethodDelete, "/api/locations/"+locID, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Location not found", body["detail"])
}

func TestDeletingCharacterRemovesLocations(t *testing.T) {
	srv := newTestServer(t)
	id := createCharacter(t, srv, "Merry")
	status, _ := do(t, srv, http.MethodPost, "/api/locations", map[string]any{
		"character_id": id, "x": 3.0, "y": 4.0, "created_at": "2024-01-01T00:00:00Z",
	})
	require.Equal(t, http.StatusOK, status)

	status, _ = do(t, srv, http.MethodDelete, "/api/characters/"+id, nil)
	require.Equal(t, http.StatusOK, status)

	status, body := do(t, srv, http.MethodGet, "/api/locations", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["locations"].([]any))
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/characters", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestReadyReportsStorageDown(t *testing.T) {
	h := NewHandler(zerolog.Nop(), nil, nil, downStore{}, "", 1<<20)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestParseTimeParam(t *testing.T) {
	got, err := parseTimeParam("2024-05-01T12:00:00+03:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), got)

	got, err = parseTimeParam("2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = parseTimeParam("05/01/2024")
	assert.Error(t, err)
}

func TestCreateLocationAcceptsNaiveTimestamp(t *testing.T) {
	srv := newTestServer(t)
	id := createCharacter(t, srv, "Eowyn")

	for input, want := range map[string]string{
		"2024-01-01T10:30:00":        "2024-01-01T10:30:00Z",
		"2024-01-01T10:30:00.5":      "2024-01-01T10:30:00.5Z",
		"2024-01-01T13:30:00+03:00":  "2024-01-01T10:30:00Z",
		"2024-01-01 10:30:00.000001": "2024-01-01T10:30:00.000001Z",
	} {
		status, body := do(t, srv, http.MethodPost, "/api/locations", map[string]any{
			"character_id": id, "x": 1.0, "y": 2.0, "created_at": input,
		})
		require.Equal(t, http.StatusOK, status, input)
		assert.Equal(t, want, body["created_at"], input)
	}

	status, _ := do(t, srv, http.MethodPost, "/api/locations", map[string]any{
		"character_id": id, "x": 1.0, "y": 2.0, "created_at": 1704067200,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}
