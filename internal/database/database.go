// Package database handles the MongoDB connection and index management.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vistagram/internal/config"
	"vistagram/internal/middleware"

	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names.
const (
	UsersCollection = "users"
	PostsCollection = "posts"
)

// DefaultSlowThreshold is the duration past which a command is logged as slow.
const DefaultSlowThreshold = 200 * time.Millisecond

// CommandLogger integrates the driver's command monitor with slog.
type CommandLogger struct {
	logger        *slog.Logger
	SlowThreshold time.Duration

	mu       sync.Mutex
	inflight map[int64]string
}

// NewCommandLogger returns a CommandLogger writing to l.
func NewCommandLogger(l *slog.Logger, slow time.Duration) *CommandLogger {
	return &CommandLogger{logger: l, SlowThreshold: slow, inflight: make(map[int64]string)}
}

// Monitor returns the event.CommandMonitor to attach to client options.
func (l *CommandLogger) Monitor() *event.CommandMonitor {
	return &event.CommandMonitor{
		Started:   l.started,
		Succeeded: l.succeeded,
		Failed:    l.failed,
	}
}

func (l *CommandLogger) started(_ context.Context, evt *event.CommandStartedEvent) {
	l.mu.Lock()
	l.inflight[evt.RequestID] = evt.DatabaseName
	l.mu.Unlock()
}

func (l *CommandLogger) finish(requestID int64) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	db := l.inflight[requestID]
	delete(l.inflight, requestID)
	return db
}

func (l *CommandLogger) succeeded(ctx context.Context, evt *event.CommandSucceededEvent) {
	db := l.finish(evt.RequestID)
	if l.SlowThreshold > 0 && evt.Duration > l.SlowThreshold {
		l.logger.WarnContext(ctx, "MongoDB slow command",
			slog.String("command", evt.CommandName),
			slog.String("database", db),
			slog.Duration("elapsed", evt.Duration),
		)
	}
}

func (l *CommandLogger) failed(ctx context.Context, evt *event.CommandFailedEvent) {
	db := l.finish(evt.RequestID)
	l.logger.ErrorContext(ctx, "MongoDB command error",
		slog.String("command", evt.CommandName),
		slog.String("database", db),
		slog.Duration("elapsed", evt.Duration),
		slog.String("error", evt.Failure),
	)
}

// Connect opens a MongoDB connection using the provided configuration and
// returns the client together with the application database handle.
func Connect(ctx context.Context, cfg *config.Config) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.MongoTimeout())
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetServerSelectionTimeout(cfg.MongoTimeout()).
		SetMaxPoolSize(25).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(false).
		SetRetryReads(false).
		SetMonitor(NewCommandLogger(middleware.Logger, DefaultSlowThreshold).Monitor())

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	middleware.Logger.Info("Database connected successfully",
		slog.String("database", cfg.MongoDatabase),
	)
	return client, client.Database(cfg.MongoDatabase), nil
}

// Disconnect closes the client, bounded by a ten second timeout.
func Disconnect(client *mongo.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from database: %w", err)
	}
	middleware.Logger.Info("Disconnected from MongoDB")
	return nil
}

// Ping reports whether the primary is reachable; readiness checks use it.
func Ping(ctx context.Context, client *mongo.Client) error {
	if client == nil {
		return fmt.Errorf("database client not initialized")
	}
	return client.Ping(ctx, readpref.Primary())
}
