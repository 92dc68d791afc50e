package cache

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const userKeyPrefix = "user:"

// UserTTL bounds how stale a cached user document may be.
const UserTTL = 5 * time.Minute

func UserKey(userID primitive.ObjectID) string {
	return userKeyPrefix + userID.Hex()
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidateUsers drops the cached documents of every given user.
func InvalidateUsers(ctx context.Context, ids ...primitive.ObjectID) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, UserKey(id))
	}
	Invalidate(ctx, keys...)
}
