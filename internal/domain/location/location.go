package location

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("location not found")

type Location struct {
	ID          uuid.UUID `json:"id"`
	CharacterID uuid.UUID `json:"character_id"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	CreatedAt   time.Time `json:"created_at"`
}

// Window is an inclusive created_at range. A nil bound is open.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// Contains is the reference semantics for window filtering; stores must return
// exactly the locations it accepts.
func (w Window) Contains(t time.Time) bool {
	if w.Start != nil && t.Before(*w.Start) {
		return false
	}
	if w.End != nil && t.After(*w.End) {
		return false
	}
	return true
}

// Micro narrows the bounds to whole microseconds, the precision locations are
// stored at: Start rounds up and End rounds down. For any microsecond-precision
// t, Micro().Contains(t) == Contains(t).
func (w Window) Micro() Window {
	var out Window
	if w.Start != nil {
		start := w.Start.Truncate(time.Microsecond)
		if start.Before(*w.Start) {
			start = start.Add(time.Microsecond)
		}
		out.Start = &start
	}
	if w.End != nil {
		end := w.End.Truncate(time.Microsecond)
		out.End = &end
	}
	return out
}

// Repository is the data-access port for locations. Create reports a missing
// owner as character.ErrNotFound when the store enforces the reference.
type Repository interface {
	Create(ctx context.Context, l Location) error
	GetByID(ctx context.Context, id uuid.UUID) (*Location, error)
	GetByCharacterID(ctx context.Context, characterID uuid.UUID, w Window) ([]Location, error)
	List(ctx context.Context) ([]Location, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
