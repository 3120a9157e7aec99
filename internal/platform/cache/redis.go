package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options configures the client returned by New.
type Options struct {
	Addr string
	DB   int
	// ClientName shows up in CLIENT LIST so the API and worker can be told apart.
	ClientName string
}

// New creates a Redis client for the snapshot cache and verifies the connection.
func New(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:       opts.Addr,
		DB:         opts.DB,
		ClientName: opts.ClientName,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping %s: %w", opts.Addr, err)
	}
	return client, nil
}
