package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lor-api/internal/domain/character"
)

type Characters struct {
	db *pgxpool.Pool
}

func NewCharacters(db *pgxpool.Pool) *Characters {
	return &Characters{db: db}
}

func (r *Characters) Create(ctx context.Context, c character.Character) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO characters (id, name, description, created_at)
VALUES ($1, $2, $3, $4)
`, c.ID, c.Name, c.Description, c.CreatedAt)
	if err != nil {
		if isNameConflict(err) {
			return character.ErrNameTaken
		}
		return fmt.Errorf("insert character: %w", err)
	}
	return nil
}

func (r *Characters) GetByID(ctx context.Context, id uuid.UUID) (*character.Character, error) {
	row := r.db.QueryRow(ctx, `
SELECT id, name, description, created_at
FROM characters WHERE id = $1
`, id)
	return scanCharacter(row)
}

func (r *Characters) GetByName(ctx context.Context, name string) (*character.Character, error) {
	row := r.db.QueryRow(ctx, `
SELECT id, name, description, created_at
FROM characters WHERE name = $1
LIMIT 1
`, name)
	return scanCharacter(row)
}

func (r *Characters) List(ctx context.Context) ([]character.Character, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, name, description, created_at
FROM characters ORDER BY name ASC
`)
	if err != nil {
		return nil, fmt.Errorf("query characters: %w", err)
	}
	defer rows.Close()

	chars := make([]character.Character, 0)
	for rows.Next() {
		var c character.Character
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		c.CreatedAt = c.CreatedAt.UTC()
		chars = append(chars, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate characters: %w", err)
	}
	return chars, nil
}

func (r *Characters) Update(ctx context.Context, c character.Character) error {
	_, err := r.db.Exec(ctx, `
UPDATE characters
SET name = $1, description = $2, created_at = $3
WHERE id = $4
`, c.Name, c.Description, c.CreatedAt, c.ID)
	if err != nil {
		if isNameConflict(err) {
			return character.ErrNameTaken
		}
		return fmt.Errorf("update character: %w", err)
	}
	return nil
}

func (r *Characters) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM characters WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete character: %w", err)
	}
	return nil
}

func scanCharacter(row pgx.Row) (*character.Character, error) {
	var c character.Character
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query character: %w", err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}
