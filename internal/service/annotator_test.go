package service

import (
	"encoding/json"
	"testing"

	"vistagram/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func samplePost() (*models.Post, primitive.ObjectID, primitive.ObjectID) {
	liker := primitive.NewObjectID()
	sharer := primitive.NewObjectID()
	p := models.NewPost(primitive.NewObjectID(), "img", "hello #World", nil, baseTime)
	p.ID = primitive.NewObjectID()
	p.Likes = []models.Like{{User: liker, LikedAt: baseTime}, {User: sharer, LikedAt: baseTime}}
	p.Shares = []models.Share{{User: sharer, SharedAt: baseTime}}
	p.Comments = []models.Comment{{ID: primitive.NewObjectID(), User: liker, Text: "nice", CreatedAt: baseTime}}
	return p, liker, sharer
}

func TestAnnotate_CountsMatchLists(t *testing.T) {
	p, _, _ := samplePost()

	v := Annotate(p, models.Anonymous(), nil)
	assert.Equal(t, len(p.Likes), v.LikeCount)
	assert.Equal(t, len(p.Shares), v.ShareCount)
	assert.Equal(t, len(p.Comments), v.CommentCount)
	assert.Equal(t, []string{"world"}, v.Tags)
}

func TestAnnotate_AuthenticatedViewer(t *testing.T) {
	p, liker, sharer := samplePost()

	v := Annotate(p, models.AuthenticatedViewer(liker), nil)
	require.NotNil(t, v.IsLiked)
	require.NotNil(t, v.IsShared)
	assert.True(t, *v.IsLiked)
	assert.False(t, *v.IsShared)

	v = Annotate(p, models.AuthenticatedViewer(sharer), nil)
	assert.True(t, *v.IsLiked)
	assert.True(t, *v.IsShared)

	v = Annotate(p, models.AuthenticatedViewer(primitive.NewObjectID()), nil)
	assert.False(t, *v.IsLiked)
	assert.False(t, *v.IsShared)
}

func TestAnnotate_AnonymousFieldsAbsent(t *testing.T) {
	p, _, _ := samplePost()

	raw, err := json.Marshal(Annotate(p, models.Anonymous(), nil))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.NotContains(t, decoded, "isLiked")
	assert.NotContains(t, decoded, "isShared")
	assert.Contains(t, decoded, "likeCount")
	assert.Contains(t, decoded, "shareCount")
	assert.Contains(t, decoded, "commentCount")
}

func TestAnnotate_ResolvesAuthors(t *testing.T) {
	p, liker, _ := samplePost()
	owner := models.Author{ID: p.User, Username: "owner"}
	commenter := models.Author{ID: liker, Username: "liker", ProfilePicture: "pic"}

	v := Annotate(p, models.Anonymous(), AuthorIndex{p.User: owner, liker: commenter})
	assert.Equal(t, owner, v.User)
	require.Len(t, v.Comments, 1)
	assert.Equal(t, commenter, v.Comments[0].User)

	// A joined author wins over the index.
	joined := models.Author{ID: p.User, Username: "joined"}
	p.Author = &joined
	v = Annotate(p, models.Anonymous(), AuthorIndex{p.User: owner})
	assert.Equal(t, "joined", v.User.Username)
	assert.Equal(t, liker, v.Comments[0].User.ID)
	assert.Empty(t, v.Comments[0].User.Username)
}

func TestAnnotate_EmptyListsRenderAsArrays(t *testing.T) {
	p := &models.Post{ID: primitive.NewObjectID(), User: primitive.NewObjectID()}

	raw, err := json.Marshal(Annotate(p, models.Anonymous(), nil))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"likes":[]`)
	assert.Contains(t, string(raw), `"shares":[]`)
	assert.Contains(t, string(raw), `"comments":[]`)
	assert.Contains(t, string(raw), `"tags":[]`)
}

func TestAnnotateAll_PreservesOrder(t *testing.T) {
	a, _, _ := samplePost()
	b, _, _ := samplePost()

	views := AnnotateAll([]*models.Post{b, a}, models.Anonymous(), nil)
	require.Len(t, views, 2)
	assert.Equal(t, b.ID, views[0].ID)
	assert.Equal(t, a.ID, views[1].ID)
	assert.Empty(t, AnnotateAll(nil, models.Anonymous(), nil))
}
