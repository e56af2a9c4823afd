package remote

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"applicationservice/src/domain"
	"applicationservice/src/infra/redis"

	"github.com/google/uuid"
)

const existsMarker = "1"

// CachedExistenceGateway guarda apenas respostas positivas. Uma entidade apagada
// pode continuar "existindo" por até ttl; negativas e indisponibilidade nunca são cacheadas.
type CachedExistenceGateway struct {
	logger      *slog.Logger
	gateway     Checker
	redisClient *redis.RedisClient
	ttl         time.Duration
}

func NewCachedExistenceGateway(logger *slog.Logger, gateway Checker, redisClient *redis.RedisClient, ttl time.Duration) *CachedExistenceGateway {
	return &CachedExistenceGateway{
		logger:      logger,
		gateway:     gateway,
		redisClient: redisClient,
		ttl:         ttl,
	}
}

func cacheKey(kind domain.EntityKind, id uuid.UUID) string {
	return fmt.Sprintf("exists:%s:%s", kind, id)
}

func (c *CachedExistenceGateway) Exists(ctx context.Context, kind domain.EntityKind, id uuid.UUID) (bool, error) {
	key := cacheKey(kind, id)

	value, found, err := c.redisClient.GetKey(ctx, key)
	if err != nil {
		c.logger.Warn("Existence cache read failed, asking the owning service",
			"kind", kind,
			"id", id,
			"error", err)
	} else if found && value == existsMarker {
		return true, nil
	}

	exists, err := c.gateway.Exists(ctx, kind, id)
	if err != nil || !exists {
		return exists, err
	}

	if err := c.redisClient.SetKey(ctx, key, existsMarker, c.ttl); err != nil {
		c.logger.Warn("Existence cache write failed",
			"kind", kind,
			"id", id,
			"error", err)
	}

	return true, nil
}

// Invalidate drops the cached positive answer for an entity.
func (c *CachedExistenceGateway) Invalidate(ctx context.Context, kind domain.EntityKind, id uuid.UUID) error {
	return NewExistenceCacheInvalidator(c.redisClient).Invalidate(ctx, kind, id)
}

// ExistenceCacheInvalidator lets processes that never read the cache (the cascade
// consumer) clear it, so a deletion announced on the event channel is seen before
// the ttl runs out.
type ExistenceCacheInvalidator struct {
	redisClient *redis.RedisClient
}

func NewExistenceCacheInvalidator(redisClient *redis.RedisClient) *ExistenceCacheInvalidator {
	return &ExistenceCacheInvalidator{redisClient: redisClient}
}

func (i *ExistenceCacheInvalidator) Invalidate(ctx context.Context, kind domain.EntityKind, id uuid.UUID) error {
	if err := i.redisClient.Delete(ctx, cacheKey(kind, id)); err != nil {
		return fmt.Errorf("invalidating %s %s: %w", kind, id, err)
	}
	return nil
}
