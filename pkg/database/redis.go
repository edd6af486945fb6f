package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"advisor-gpt-go/internal/config"
	"advisor-gpt-go/pkg/log"
)

// InitRedis connects and pings the configured Redis.
func InitRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}

	log.Info("[Database] Redis connected")
	return rdb, nil
}
