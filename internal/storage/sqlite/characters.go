// Package sqlite implements the character and location repositories on SQLite.
// Timestamps are stored as UTC unix microseconds so ordering and range
// predicates work on plain integers.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lor-api/internal/domain/character"
)

type Characters struct {
	db *sql.DB
}

func NewCharacters(db *sql.DB) *Characters {
	return &Characters{db: db}
}

func (r *Characters) Create(ctx context.Context, c character.Character) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO characters (id, name, description, created_at)
VALUES (?, ?, ?, ?)
`, c.ID.String(), c.Name, c.Description, c.CreatedAt.UnixMicro())
	if err != nil {
		if isNameConflict(err) {
			return character.ErrNameTaken
		}
		return fmt.Errorf("insert character: %w", err)
	}
	return nil
}

func (r *Characters) GetByID(ctx context.Context, id uuid.UUID) (*character.Character, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, description, created_at
FROM characters WHERE id = ?
`, id.String())
	return scanCharacter(row)
}

func (r *Characters) GetByName(ctx context.Context, name string) (*character.Character, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, description, created_at
FROM characters WHERE name = ?
LIMIT 1
`, name)
	return scanCharacter(row)
}

func (r *Characters) List(ctx context.Context) ([]character.Character, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, description, created_at
FROM characters ORDER BY name ASC
`)
	if err != nil {
		return nil, fmt.Errorf("query characters: %w", err)
	}
	defer rows.Close()

	chars := make([]character.Character, 0)
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		chars = append(chars, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate characters: %w", err)
	}
	return chars, nil
}

func (r *Characters) Update(ctx context.Context, c character.Character) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE characters
SET name = ?, description = ?, created_at = ?
WHERE id = ?
`, c.Name, c.Description, c.CreatedAt.UnixMicro(), c.ID.String())
	if err != nil {
		if isNameConflict(err) {
			return character.ErrNameTaken
		}
		return fmt.Errorf("update character: %w", err)
	}
	return nil
}

func (r *Characters) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM characters WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete character: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCharacter(s scanner) (*character.Character, error) {
	var (
		c         character.Character
		id        string
		createdAt int64
	)
	if err := s.Scan(&id, &c.Name, &c.Description, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan character: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse character id %q: %w", id, err)
	}
	c.ID = parsed
	c.CreatedAt = time.UnixMicro(createdAt).UTC()
	return &c, nil
}
