package service

import (
	"context"
	"testing"
	"time"

	"vistagram/internal/models"
	"vistagram/internal/testutil"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newStores() (*testutil.MemoryUsers, *testutil.MemoryPosts) {
	users := testutil.NewMemoryUsers()
	return users, testutil.NewMemoryPosts(users)
}

// seedPost stores an active post created minutesAgo minutes before baseTime.
func seedPost(t *testing.T, posts *testutil.MemoryPosts, owner primitive.ObjectID, caption string, minutesAgo int) *models.Post {
	t.Helper()
	p := models.NewPost(owner, "data:image/jpeg;base64,AAAA", caption, nil,
		baseTime.Add(-time.Duration(minutesAgo)*time.Minute))
	require.NoError(t, posts.Create(context.Background(), p))
	return p
}

// follow writes both sides of the edge follower -> target.
func follow(t *testing.T, users *testutil.MemoryUsers, follower, target primitive.ObjectID) {
	t.Helper()
	svc := NewFollowService(users, nil)
	u := users.Snapshot(follower)
	require.False(t, u.IsFollowing(target))
	_, err := svc.ToggleFollow(context.Background(), follower, target)
	require.NoError(t, err)
}

func postIDs(views []models.PostView) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.ID)
	}
	return ids
}
