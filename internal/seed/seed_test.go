package seed

import (
	"bytes"
	"context"
	"image/color"
	"image/jpeg"
	"testing"

	"vistagram/internal/pagination"
	"vistagram/internal/repository"
	"vistagram/internal/service"
	"vistagram/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSolidJPEG(t *testing.T) {
	raw, err := SolidJPEG(color.RGBA{R: 10, G: 200, B: 30, A: 255}, 32, 16)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 16, img.Bounds().Dy())
}

func TestSeeder_Run(t *testing.T) {
	users := testutil.NewMemoryUsers()
	posts := testutil.NewMemoryPosts(users)
	s := NewSeeder(users, posts, service.NewImageService(nil), Options{
		Users:          6,
		PostsPerUser:   2,
		FollowsPerUser: 3,
		Password:       "hunter2pass",
		Seed:           42,
	})

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, report.Users)
	assert.Equal(t, 12, report.Posts)
	assert.Equal(t, 18, report.Follows)

	ids := users.IDs()
	require.Len(t, ids, 6)
	for _, id := range ids {
		u := users.Snapshot(id)
		assert.Len(t, u.Following, 3)
		assert.Len(t, u.Posts, 2)
		assert.NotContains(t, u.Following, id)
		for _, other := range u.Following {
			assert.True(t, users.Snapshot(other).IsFollowedBy(id), "edge %s -> %s is one-sided", u.Username, other.Hex())
		}
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("hunter2pass")))
	}

	total, err := posts.Count(context.Background(), repository.PostFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)

	list, err := posts.List(context.Background(), repository.PostFilter{}, pagination.New(1, 1, 1))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Tags, 2)
	require.NotNil(t, list[0].Location)
	assert.NotNil(t, list[0].Location.Coordinates)
	assert.Contains(t, list[0].Image, "data:image/jpeg;base64,")

	// The reconcile pass finds nothing to repair.
	rep, err := service.NewFollowService(users, nil).Reconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.EdgesAdded)
	assert.Zero(t, rep.EdgesRemoved)
}
