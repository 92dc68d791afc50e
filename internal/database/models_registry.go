package database

import (
	"context"
	"fmt"
	"log/slog"

	"vistagram/internal/middleware"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionIndexes groups the index models owned by one collection.
type CollectionIndexes struct {
	Collection string
	Indexes    []mongo.IndexModel
}

// PersistentIndexes returns the authoritative set of schema-managed indexes.
func PersistentIndexes() []CollectionIndexes {
	return []CollectionIndexes{
		{
			Collection: UsersCollection,
			Indexes: []mongo.IndexModel{
				{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetName("username_unique").SetUnique(true)},
				{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("email_unique").SetUnique(true)},
				{Keys: bson.D{{Key: "createdAt", Value: -1}}, Options: options.Index().SetName("created_desc")},
			},
		},
		{
			Collection: PostsCollection,
			Indexes: []mongo.IndexModel{
				{Keys: bson.D{{Key: "createdAt", Value: -1}}, Options: options.Index().SetName("created_desc")},
				{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("user_created")},
				{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("active_created")},
				{Keys: bson.D{{Key: "tags", Value: 1}}, Options: options.Index().SetName("tags")},
				{Keys: bson.D{{Key: "location.coordinates", Value: "2dsphere"}}, Options: options.Index().SetName("location_2dsphere").SetSparse(true)},
				{Keys: bson.D{{Key: "caption", Value: "text"}, {Key: "tags", Value: "text"}}, Options: options.Index().SetName("caption_tags_text")},
			},
		},
	}
}

// EnsureIndexes creates every index from PersistentIndexes. CreateMany is
// idempotent for indexes whose name and keys already match.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for _, ci := range PersistentIndexes() {
		names, err := db.Collection(ci.Collection).Indexes().CreateMany(ctx, ci.Indexes)
		if err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", ci.Collection, err)
		}
		middleware.Logger.Debug("Indexes ensured",
			slog.String("collection", ci.Collection),
			slog.Any("indexes", names),
		)
	}
	return nil
}

// IndexReport lists, per collection, the registry indexes that exist and
// the ones that are missing.
type IndexReport struct {
	Collection string
	Present    []string
	Missing    []string
}

// IndexStatus compares the live index names against PersistentIndexes.
func IndexStatus(ctx context.Context, db *mongo.Database) ([]IndexReport, error) {
	reports := make([]IndexReport, 0, 2)
	for _, ci := range PersistentIndexes() {
		specs, err := db.Collection(ci.Collection).Indexes().ListSpecifications(ctx)
		if err != nil {
			return nil, fmt.Errorf("list indexes on %s: %w", ci.Collection, err)
		}
		live := make(map[string]bool, len(specs))
		for _, s := range specs {
			live[s.Name] = true
		}
		reports = append(reports, compareIndexes(ci, live))
	}
	return reports, nil
}

func compareIndexes(ci CollectionIndexes, live map[string]bool) IndexReport {
	r := IndexReport{Collection: ci.Collection}
	for _, idx := range ci.Indexes {
		name := *idx.Options.Name
		if live[name] {
			r.Present = append(r.Present, name)
		} else {
			r.Missing = append(r.Missing, name)
		}
	}
	return r
}
