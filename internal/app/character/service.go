package character

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"lor-api/internal/domain/character"
	"lor-api/internal/platform/mq"
)

const listCacheKey = "characters:all"

type Service struct {
	repo     character.Repository
	cache    *redis.Client
	cacheTTL time.Duration
	pub      mq.Publisher
	now      func() time.Time
}

func NewService(repo character.Repository, cache *redis.Client, cacheTTL time.Duration, pub mq.Publisher) *Service {
	return &Service{repo: repo, cache: cache, cacheTTL: cacheTTL, pub: pub, now: time.Now}
}

// Create rejects a taken name before inserting. The store's unique constraint
// catches a concurrent creator that passes the same pre-check.
func (s *Service) Create(ctx context.Context, name string, description *string) (character.Character, error) {
	if err := character.ValidateName(name); err != nil {
		return character.Character{}, err
	}
	existing, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return character.Character{}, err
	}
	if existing != nil {
		return character.Character{}, character.ErrNameTaken
	}

	c := character.Character{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		CreatedAt:   s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return character.Character{}, err
	}
	s.invalidateList(ctx)
	_ = s.publishEvent(ctx, "character.created", map[string]any{"character_id": c.ID, "name": c.Name})
	return c, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (character.Character, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return character.Character{}, err
	}
	if c == nil {
		return character.Character{}, character.ErrNotFound
	}
	return *c, nil
}

func (s *Service) List(ctx context.Context) ([]character.Character, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, listCacheKey).Result()
		if err == nil {
			var chars []character.Character
			if uErr := json.Unmarshal([]byte(cached), &chars); uErr == nil {
				return chars, nil
			}
		}
	}

	chars, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if b, err := json.Marshal(chars); err == nil {
			_ = s.cache.Set(ctx, listCacheKey, b, s.cacheTTL).Err()
		}
	}
	return chars, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, name string, description *string) (character.Character, error) {
	if err := character.ValidateName(name); err != nil {
		return character.Character{}, err
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return character.Character{}, err
	}
	c.Name = name
	c.Description = description
	if err := s.repo.Update(ctx, c); err != nil {
		return character.Character{}, err
	}
	s.invalidateList(ctx)
	_ = s.publishEvent(ctx, "character.updated", map[string]any{"character_id": c.ID, "name": c.Name})
	return c, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, c.ID); err != nil {
		return err
	}
	s.invalidateList(ctx)
	_ = s.publishEvent(ctx, "character.deleted", map[string]any{"character_id": c.ID})
	return nil
}

func (s *Service) invalidateList(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, listCacheKey).Err()
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
