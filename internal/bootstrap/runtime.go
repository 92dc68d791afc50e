// Package bootstrap wires the long-lived connections shared by the server and
// the maintenance commands.
package bootstrap

import (
	"context"
	"fmt"

	"vistagram/internal/cache"
	"vistagram/internal/config"
	"vistagram/internal/database"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// Options control runtime initialization behavior.
type Options struct {
	// SkipIndexes leaves index creation to another process.
	SkipIndexes bool
}

// Runtime holds the connections a process needs. Redis is nil when it was
// not configured or could not be reached.
type Runtime struct {
	Client *mongo.Client
	DB     *mongo.Database
	Redis  *redis.Client
}

// InitRuntime connects to MongoDB and Redis and ensures the persistent indexes exist.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	client, db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if !opts.SkipIndexes {
		if err := database.EnsureIndexes(ctx, db); err != nil {
			_ = database.Disconnect(client)
			return nil, fmt.Errorf("failed to ensure indexes: %w", err)
		}
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)

	return &Runtime{Client: client, DB: db, Redis: cache.GetClient()}, nil
}

// Close releases the connections held by r.
func (r *Runtime) Close() error {
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
	return database.Disconnect(r.Client)
}
