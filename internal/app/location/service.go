package location

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lor-api/internal/domain/character"
	"lor-api/internal/domain/location"
	"lor-api/internal/platform/mq"
)

// CharacterLookup is the subset of character.Repository needed to check ownership.
type CharacterLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*character.Character, error)
}

type NewLocation struct {
	CharacterID uuid.UUID
	X           float64
	Y           float64
	CreatedAt   time.Time
}

type Service struct {
	repo       location.Repository
	characters CharacterLookup
	pub        mq.Publisher
}

func NewService(repo location.Repository, characters CharacterLookup, pub mq.Publisher) *Service {
	return &Service{repo: repo, characters: characters, pub: pub}
}

// Create stores a location for an existing character. CreatedAt is taken from
// the caller, so backdated entries are allowed.
func (s *Service) Create(ctx context.Context, in NewLocation) (location.Location, error) {
	if err := s.requireCharacter(ctx, in.CharacterID); err != nil {
		return location.Location{}, err
	}
	l := location.Location{
		ID:          uuid.New(),
		CharacterID: in.CharacterID,
		X:           in.X,
		Y:           in.Y,
		CreatedAt:   in.CreatedAt.UTC().Truncate(time.Microsecond),
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return location.Location{}, err
	}
	_ = s.publishEvent(ctx, "location.created", l)
	return l, nil
}

// ListByCharacter returns the character's locations oldest first, limited to
// the inclusive window.
func (s *Service) ListByCharacter(ctx context.Context, characterID uuid.UUID, w location.Window) ([]location.Location, error) {
	if err := s.requireCharacter(ctx, characterID); err != nil {
		return nil, err
	}
	return s.repo.GetByCharacterID(ctx, characterID, w)
}

func (s *Service) List(ctx context.Context) ([]location.Location, error) {
	return s.repo.List(ctx)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if l == nil {
		return location.ErrNotFound
	}
	if err := s.repo.Delete(ctx, l.ID); err != nil {
		return err
	}
	_ = s.publishEvent(ctx, "location.deleted", map[string]any{"location_id": l.ID, "character_id": l.CharacterID})
	return nil
}

func (s *Service) requireCharacter(ctx context.Context, id uuid.UUID) error {
	c, err := s.characters.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return character.ErrNotFound
	}
	return nil
}

func (s *Service) publishEvent(ctx context.Context, subject string, payload any) error {
	if s.pub == nil {
		return nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := s.pub.Publish(ctx, subject, b); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}
