package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lor-api/internal/domain/character"
	"lor-api/internal/domain/location"
)

type Locations struct {
	db *pgxpool.Pool
}

func NewLocations(db *pgxpool.Pool) *Locations {
	return &Locations{db: db}
}

func (r *Locations) Create(ctx context.Context, l location.Location) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO locations (id, character_id, x, y, created_at)
VALUES ($1, $2, $3, $4, $5)
`, l.ID, l.CharacterID, l.X, l.Y, l.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return character.ErrNotFound
		}
		return fmt.Errorf("insert location: %w", err)
	}
	return nil
}

func (r *Locations) GetByID(ctx context.Context, id uuid.UUID) (*location.Location, error) {
	var l location.Location
	err := r.db.QueryRow(ctx, `
SELECT id, character_id, x, y, created_at
FROM locations WHERE id = $1
`, id).Scan(&l.ID, &l.CharacterID, &l.X, &l.Y, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query location: %w", err)
	}
	l.CreatedAt = l.CreatedAt.UTC()
	return &l, nil
}

func (r *Locations) GetByCharacterID(ctx context.Context, characterID uuid.UUID, w location.Window) ([]location.Location, error) {
	// timestamptz has microsecond precision.
	w = w.Micro()
	rows, err := r.db.Query(ctx, `
SELECT id, character_id, x, y, created_at
FROM locations
WHERE character_id = $1
  AND ($2::timestamptz IS NULL OR created_at >= $2)
  AND ($3::timestamptz IS NULL OR created_at <= $3)
ORDER BY created_at ASC
`, characterID, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	return collectLocations(rows)
}

func (r *Locations) List(ctx context.Context) ([]location.Location, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, character_id, x, y, created_at
FROM locations ORDER BY created_at ASC
`)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	return collectLocations(rows)
}

func (r *Locations) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM locations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	return nil
}

func collectLocations(rows pgx.Rows) ([]location.Location, error) {
	defer rows.Close()
	locs := make([]location.Location, 0)
	for rows.Next() {
		var l location.Location
		if err := rows.Scan(&l.ID, &l.CharacterID, &l.X, &l.Y, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		l.CreatedAt = l.CreatedAt.UTC()
		locs = append(locs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}
	return locs, nil
}
