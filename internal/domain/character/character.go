package character

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const MaxNameLength = 64

var (
	ErrNotFound    = errors.New("character not found")
	ErrNameTaken   = errors.New("name already exists")
	ErrInvalidName = errors.New("invalid character name")
)

type Character struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repository is the data-access port for characters. Lookups return a nil
// character and a nil error when nothing matches.
type Repository interface {
	Create(ctx context.Context, c Character) error
	GetByID(ctx context.Context, id uuid.UUID) (*Character, error)
	GetByName(ctx context.Context, name string) (*Character, error)
	List(ctx context.Context) ([]Character, error)
	Update(ctx context.Context, c Character) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ValidateName enforces the 1..MaxNameLength code point bound.
func ValidateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n == 0 {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if n > MaxNameLength {
		return fmt.Errorf("%w: name must be at most %d characters", ErrInvalidName, MaxNameLength)
	}
	return nil
}
