package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vistagram/internal/models"
	"vistagram/internal/service"
	"vistagram/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// listing is the data object of paginated post responses.
type listing struct {
	Posts      []map[string]any `json:"posts"`
	Pagination map[string]any   `json:"pagination"`
}

func (e *testEnv) seedPost(t *testing.T, owner primitive.ObjectID, caption string, age time.Duration) *models.Post {
	t.Helper()
	p := models.NewPost(owner, "data:image/jpeg;base64,AAAA", caption, nil, time.Now().UTC().Add(-age))
	require.NoError(t, e.posts.Create(t.Context(), p))
	require.NoError(t, e.users.PushPost(t.Context(), owner, p.ID))
	return p
}

func TestCreatePost(t *testing.T) {
	env := newTestEnv(t)
	owner := env.users.Add("owner")
	img := testutil.TinyPNG(t, 4, 4)

	env.images.On("Process", mock.Anything, mock.MatchedBy(func(in service.UploadImageInput) bool {
		return in.Filename == "photo.png" && len(in.Content) == len(img)
	})).Return(&service.ProcessedImage{DataURL: "data:image/jpeg;base64,/9j/", MimeType: "image/jpeg"}, nil).Once()

	req := multipartPost(t, map[string]string{
		"caption":  "Morning run #fitness #TLV",
		"location": `{"name":"Tel Aviv","coordinates":[34.78,32.08]}`,
	}, img)
	status, resp := env.do(t, req, env.token(t, owner.ID))
	require.Equal(t, fiber.StatusCreated, status, resp.Error)
	assert.Equal(t, "Post created successfully", resp.Message)

	var post models.PostView
	decodeData(t, resp, &post)
	assert.Equal(t, "data:image/jpeg;base64,/9j/", post.Image)
	assert.Equal(t, []string{"fitness", "tlv"}, post.Tags)
	assert.Equal(t, "owner", post.User.Username)
	require.NotNil(t, post.Location)
	assert.Equal(t, "Tel Aviv", post.Location.Name)
	assert.Contains(t, env.users.Snapshot(owner.ID).Posts, post.ID)
	env.images.AssertExpectations(t)
}

func TestCreatePost_Validation(t *testing.T) {
	env := newTestEnv(t)
	owner := env.users.Add("owner")
	tok := env.token(t, owner.ID)
	img := testutil.TinyPNG(t, 2, 2)

	// No caption: rejected before the image is processed.
	status, resp := env.do(t, multipartPost(t, map[string]string{"caption": "  "}, img), tok)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Caption is required", resp.Error)

	status, resp = env.do(t, multipartPost(t, map[string]string{"caption": "hi"}, nil), tok)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Image is required", resp.Error)

	status, resp = env.do(t, multipartPost(t, map[string]string{"caption": "hi", "location": "{nope"}, img), tok)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Invalid location format", resp.Error)

	env.images.On("Process", mock.Anything, mock.Anything).
		Return(nil, models.NewValidationError("Only image files are allowed")).Once()
	status, resp = env.do(t, multipartPost(t, map[string]string{"caption": "hi"}, []byte("plain text")), tok)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Only image files are allowed", resp.Error)

	env.images.AssertNumberOfCalls(t, "Process", 1)

	status, _ = env.do(t, multipartPost(t, map[string]string{"caption": "hi"}, img), "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestGetFeed(t *testing.T) {
	env := newTestEnv(t)
	viewer := env.users.Add("viewer")
	friend := env.users.Add("friend")
	stranger := env.users.Add("stranger")

	status, _ := env.sendJSON(t, http.MethodPost, "/api/users/"+friend.ID.Hex()+"/follow", nil, env.token(t, viewer.ID))
	require.Equal(t, fiber.StatusOK, status)

	mine := env.seedPost(t, viewer.ID, "mine", 3*time.Hour)
	theirs := env.seedPost(t, friend.ID, "theirs", time.Hour)
	env.seedPost(t, stranger.ID, "hidden", time.Minute)

	status, resp := env.get(t, "/api/posts/feed", env.token(t, viewer.ID))
	require.Equal(t, fiber.StatusOK, status)

	var data listing
	decodeData(t, resp, &data)
	require.Len(t, data.Posts, 2)
	assert.Equal(t, theirs.ID.Hex(), data.Posts[0]["_id"])
	assert.Equal(t, mine.ID.Hex(), data.Posts[1]["_id"])
	assert.Equal(t, false, data.Posts[0]["isLiked"])
	assert.Equal(t, float64(2), data.Pagination["totalPosts"])
	assert.Equal(t, float64(1), data.Pagination["currentPage"])
	assert.Equal(t, false, data.Pagination["hasNext"])

	status, _ = env.get(t, "/api/posts/feed", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestGetFeed_Pagination(t *testing.T) {
	env := newTestEnv(t)
	viewer := env.users.Add("viewer")
	for i := 0; i < 25; i++ {
		env.seedPost(t, viewer.ID, "post", time.Duration(i)*time.Minute)
	}
	tok := env.token(t, viewer.ID)

	status, resp := env.get(t, "/api/posts/feed?page=3", tok)
	require.Equal(t, fiber.StatusOK, status)
	var data listing
	decodeData(t, resp, &data)
	assert.Len(t, data.Posts, 5)
	assert.Equal(t, float64(3), data.Pagination["totalPages"])
	assert.Equal(t, false, data.Pagination["hasNext"])
	assert.Equal(t, true, data.Pagination["hasPrev"])

	_, resp = env.get(t, "/api/posts/feed?page=4&limit=10", tok)
	decodeData(t, resp, &data)
	assert.Empty(t, data.Posts)
}

func TestGetPosts_AnonymousOmitsViewerFlags(t *testing.T) {
	env := newTestEnv(t)
	owner := env.users.Add("owner")
	env.seedPost(t, owner.ID, "hello", time.Minute)

	status, resp := env.get(t, "/api/posts", "")
	require.Equal(t, fiber.StatusOK, status)
	var data listing
	decodeData(t, resp, &data)
	require.Len(t, data.Posts, 1)
	assert.NotContains(t, data.Posts[0], "isLiked")
	assert.NotContains(t, data.Posts[0], "isShared")
	assert.Equal(t, float64(0), data.Posts[0]["likeCount"])

	_, resp = env.get(t, "/api/posts", env.token(t, owner.ID))
	decodeData(t, resp, &data)
	assert.Equal(t, false, data.Posts[0]["isLiked"])
}

func TestGetPost(t *testing.T) {
	env := newTestEnv(t)
	owner := env.users.Add("owner")
	p := env.seedPost(t, owner.ID, "hello", time.Minute)

	status, resp := env.get(t, "/api/posts/"+p.ID.Hex(), "")
	require.Equal(t, fiber.StatusOK, status)
	var post models.PostView
	decodeData(t, resp, &post)
	assert.Equal(t, "hello", post.Caption)
	assert.Equal(t, "owner", post.User.Username)

	for _, id := range []string{"nope", primitive.NewObjectID().Hex()} {
		status, resp = env.get(t, "/api/posts/"+id, "")
		assert.Equal(t, fiber.StatusNotFound, status, id)
		assert.Equal(t, models.CodeNotFound, resp.Code)
	}
}

func TestLikePost_Toggles(t *testing.T) {
	env := newTestEnv(t)
	owner := env.users.Add("owner")
	liker := env.users.Add("liker")
	p := env.seedPost(t, owner.ID, "hello", time.Minute)
	tok := env.token(t, liker.ID)
	path := "/api/posts/" + p.ID.Hex() + "/like"

	status, resp := env.sendJSON(t, http.MethodPost, path, nil, tok)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Post liked", resp.Message)
	var res models.LikeResult
	decodeData(t, resp, &res)
	assert.Equal(t, models.LikeResult{IsLiked: true, LikeCount: 1}, res)

	_, resp = env.sendJSON(t, http.MethodPost, path, nil, tok)
	assert.Equal(t, "Post unliked", resp.Message)
	decodeData(t, resp, &res)
	assert.Equal(t, models.LikeResult{IsLiked: false, LikeCount: 0}, res)

	status, _ = env.sendJSON(t, http.MethodPost, "/api/posts/bad-id/like", nil, tok)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestSharePost_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	owner := env.users.Add("owner")
	p := env.seedPost(t, owner.ID, "hello", time.Minute)
	tok := env.token(t, owner.ID)

	for i := 0; i < 2; i++ {
		status, resp := env.sendJSON(t, http.MethodPost, "/api/posts/"+p.ID.Hex()+"/share", nil, tok)
		require.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, "Post shared successfully", resp.Message)
		var res models.ShareResult
		decodeData(t, resp, &res)
		assert.Equal(t, models.ShareResult{IsShared: true, ShareCount: 1}, res)
	}
}

func TestCommentPost(t *testing.T) {
	env := newTestEnv(t)
	owner := env.users.Add("owner")
	commenter := env.users.Add("commenter")
	p := env.seedPost(t, owner.ID, "hello", time.Minute)
	tok := env.token(t, commenter.ID)
	path := "/api/posts/" + p.ID.Hex() + "/comment"

	status, resp := env.sendJSON(t, http.MethodPost, path, map[string]string{"text": " nice "}, tok)
	require.Equal(t, fiber.StatusCreated, status, resp.Error)
	assert.Equal(t, "Comment added successfully", resp.Message)
	var comment models.CommentView
	decodeData(t, resp, &comment)
	assert.Equal(t, "nice", comment.Text)
	assert.Equal(t, "commenter", comment.User.Username)

	status, resp = env.sendJSON(t, http.MethodPost, path, map[string]string{"text": "   "}, tok)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Comment text is required", resp.Error)

	status, resp = env.sendJSON(t, http.MethodPost, path, map[string]string{"text": strings.Repeat("x", 501)}, tok)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Comment cannot exceed 500 characters", resp.Error)

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	status, resp = env.do(t, req, tok)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Invalid request body", resp.Error)
}

func TestDeletePost(t *testing.T) {
	env := newTestEnv(t)
	owner := env.users.Add("owner")
	other := env.users.Add("other")
	p := env.seedPost(t, owner.ID, "hello", time.Minute)
	path := "/api/posts/" + p.ID.Hex()

	status, resp := env.sendJSON(t, http.MethodDelete, path, nil, env.token(t, other.ID))
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "Not authorized to delete this post", resp.Error)

	status, resp = env.sendJSON(t, http.MethodDelete, path, nil, env.token(t, owner.ID))
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Post deleted successfully", resp.Message)

	status, _ = env.get(t, path, "")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = env.sendJSON(t, http.MethodPost, path+"/like", nil, env.token(t, owner.ID))
	assert.Equal(t, fiber.StatusNotFound, status)

	status, resp = env.get(t, "/api/posts", "")
	require.Equal(t, fiber.StatusOK, status)
	var data map[string]json.RawMessage
	decodeData(t, resp, &data)
	assert.JSONEq(t, `[]`, string(data["posts"]))
}
