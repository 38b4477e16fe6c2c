package cli

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"pathkey-service/internal/config"
	"pathkey-service/internal/domain"
	redisinfra "pathkey-service/internal/infra/redis"
)

func newRedisClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// invalidateQuestionSets drops cached copies of rewritten sets so running
// servers reload content and driver tags on the next read.
func invalidateQuestionSets(ctx context.Context, client *redis.Client, sets []domain.QuestionSet) error {
	ids := make([]string, 0, len(sets))
	for _, set := range sets {
		ids = append(ids, set.ID)
	}
	cache := redisinfra.NewQuestionSetRepository(client, nil, 0)
	if err := cache.Invalidate(ctx, ids...); err != nil {
		return fmt.Errorf("invalidate cached question sets: %w", err)
	}
	return nil
}
