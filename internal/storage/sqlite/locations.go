package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lor-api/internal/domain/character"
	"lor-api/internal/domain/location"
)

type Locations struct {
	db *sql.DB
}

func NewLocations(db *sql.DB) *Locations {
	return &Locations{db: db}
}

func (r *Locations) Create(ctx context.Context, l location.Location) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO locations (id, character_id, x, y, created_at)
VALUES (?, ?, ?, ?, ?)
`, l.ID.String(), l.CharacterID.String(), l.X, l.Y, l.CreatedAt.UnixMicro())
	if err != nil {
		if isForeignKeyViolation(err) {
			return character.ErrNotFound
		}
		return fmt.Errorf("insert location: %w", err)
	}
	return nil
}

func (r *Locations) GetByID(ctx context.Context, id uuid.UUID) (*location.Location, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, character_id, x, y, created_at
FROM locations WHERE id = ?
`, id.String())
	l, err := scanLocation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return l, nil
}

func (r *Locations) GetByCharacterID(ctx context.Context, characterID uuid.UUID, w location.Window) ([]location.Location, error) {
	w = w.Micro()
	rows, err := r.db.QueryContext(ctx, `
SELECT id, character_id, x, y, created_at
FROM locations
WHERE character_id = ?
  AND (? IS NULL OR created_at >= ?)
  AND (? IS NULL OR created_at <= ?)
ORDER BY created_at ASC
`, characterID.String(), micros(w.Start), micros(w.Start), micros(w.End), micros(w.End))
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	return collectLocations(rows)
}

func (r *Locations) List(ctx context.Context) ([]location.Location, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, character_id, x, y, created_at
FROM locations ORDER BY created_at ASC
`)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	return collectLocations(rows)
}

func (r *Locations) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	return nil
}

func collectLocations(rows *sql.Rows) ([]location.Location, error) {
	defer rows.Close()
	locs := make([]location.Location, 0)
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		locs = append(locs, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}
	return locs, nil
}

func scanLocation(s scanner) (*location.Location, error) {
	var (
		l          location.Location
		id, charID string
		createdAt  int64
	)
	if err := s.Scan(&id, &charID, &l.X, &l.Y, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan location: %w", err)
	}
	var err error
	if l.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse location id %q: %w", id, err)
	}
	if l.CharacterID, err = uuid.Parse(charID); err != nil {
		return nil, fmt.Errorf("parse character id %q: %w", charID, err)
	}
	l.CreatedAt = time.UnixMicro(createdAt).UTC()
	return &l, nil
}

// micros maps an open bound to NULL. Bounds must already be whole
// microseconds (see location.Window.Micro).
func micros(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMicro()
}
