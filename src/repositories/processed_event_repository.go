package repositories

import (
	"context"
	"fmt"
	"time"

	"applicationservice/src/infra/redis"

	"github.com/google/uuid"
)

// ProcessedEventRepository remembers which event ids a consumer already applied,
// so redelivered envelopes are skipped.
type ProcessedEventRepository struct {
	redisClient *redis.RedisClient
	scope       string
	ttl         time.Duration
}

// NewProcessedEventRepository scopes the keys by consumer name: two consumers
// of the same event must each apply it once.
func NewProcessedEventRepository(redisClient *redis.RedisClient, scope string, ttl time.Duration) *ProcessedEventRepository {
	return &ProcessedEventRepository{
		redisClient: redisClient,
		scope:       scope,
		ttl:         ttl,
	}
}

func (r *ProcessedEventRepository) key(eventID uuid.UUID) string {
	return fmt.Sprintf("event:processed:%s:%s", r.scope, eventID)
}

func (r *ProcessedEventRepository) IsProcessed(ctx context.Context, eventID uuid.UUID) (bool, error) {
	processed, err := r.redisClient.Exists(ctx, r.key(eventID))
	if err != nil {
		return false, fmt.Errorf("ProcessedEventRepository.IsProcessed - %w", err)
	}
	return processed, nil
}

// MarkProcessed records the event id. It reports false when it was already recorded.
func (r *ProcessedEventRepository) MarkProcessed(ctx context.Context, eventID uuid.UUID) (bool, error) {
	marked, err := r.redisClient.SetIfAbsent(ctx, r.key(eventID), time.Now().UTC().Format(time.RFC3339), r.ttl)
	if err != nil {
		return false, fmt.Errorf("ProcessedEventRepository.MarkProcessed - %w", err)
	}
	return marked, nil
}
