package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/embarkhq/embark/pkg/lock"
	"github.com/embarkhq/embark/pkg/queue"
)

// NewRedisClient connects to Redis and verifies the connection before
// handing the client out.
func NewRedisClient(ctx context.Context, url string, logger *slog.Logger) redis.UniversalClient {
	opts, err := redis.ParseURL(url)
	if err != nil {
		panic(fmt.Errorf("invalid redis url: %w", err))
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		panic(fmt.Errorf("failed to connect to Redis: %w", err))
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr, "db", opts.DB)

	return client
}

func NewQueue(client redis.UniversalClient, logger *slog.Logger) queue.Queue {
	return queue.NewRedisQueue(client, logger)
}

func NewLock(client redis.UniversalClient) lock.Lock {
	return lock.NewRedisLock(client, lock.DefaultLease)
}
