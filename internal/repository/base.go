// Package repository provides the MongoDB data access layer for the application.
package repository

import (
	"context"
	"errors"
	"strings"

	"vistagram/internal/models"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Transactor runs fn so that every write it issues through ctx commits or
// aborts together. Without transaction support fn simply runs in order.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type mongoTransactor struct {
	client  *mongo.Client
	enabled bool
}

// NewTransactor returns a Transactor backed by client sessions. Sessions are
// only opened when enabled, since standalone servers reject transactions.
func NewTransactor(client *mongo.Client, enabled bool) Transactor {
	return &mongoTransactor{client: client, enabled: enabled}
}

func (t *mongoTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !t.enabled || t.client == nil {
		return fn(ctx)
	}

	session, err := t.client.StartSession()
	if err != nil {
		return models.NewInternalError(err)
	}
	defer session.EndSession(ctx)

	// Driven by hand rather than through session.WithTransaction, which
	// reruns fn and the commit on transient errors.
	if err := session.StartTransaction(options.Transaction()); err != nil {
		return models.NewInternalError(err)
	}
	sc := mongo.NewSessionContext(ctx, session)
	if err := fn(sc); err != nil {
		_ = session.AbortTransaction(ctx)
		return err
	}
	if err := session.CommitTransaction(ctx); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// translateError maps driver errors onto the application's error kinds.
func translateError(resource string, id any, err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.NewNotFoundError(resource, id)
	case mongo.IsDuplicateKeyError(err):
		return duplicateKeyError(err)
	default:
		return models.NewInternalError(err)
	}
}

func duplicateKeyError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "username"):
		return models.NewValidationError("Username already taken")
	case strings.Contains(msg, "email"):
		return models.NewValidationError("Email already registered")
	default:
		return models.NewValidationError("Duplicate value")
	}
}
