package server

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"vistagram/internal/models"
	"vistagram/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestToggleFollow(t *testing.T) {
	env := newTestEnv(t)
	alice := env.users.Add("alice")
	bob := env.users.Add("bob")
	tok := env.token(t, alice.ID)
	path := "/api/users/" + bob.ID.Hex() + "/follow"

	status, resp := env.sendJSON(t, http.MethodPost, path, nil, tok)
	require.Equal(t, fiber.StatusOK, status, resp.Error)
	assert.Equal(t, "User followed", resp.Message)
	var res models.FollowResult
	decodeData(t, resp, &res)
	assert.Equal(t, models.FollowResult{IsFollowing: true, FollowerCount: 1}, res)
	assert.True(t, env.users.Snapshot(alice.ID).IsFollowing(bob.ID))
	assert.True(t, env.users.Snapshot(bob.ID).IsFollowedBy(alice.ID))

	_, resp = env.sendJSON(t, http.MethodPost, path, nil, tok)
	assert.Equal(t, "User unfollowed", resp.Message)
	decodeData(t, resp, &res)
	assert.Equal(t, models.FollowResult{IsFollowing: false, FollowerCount: 0}, res)
}

func TestToggleFollow_Errors(t *testing.T) {
	env := newTestEnv(t)
	alice := env.users.Add("alice")
	tok := env.token(t, alice.ID)

	status, resp := env.sendJSON(t, http.MethodPost, "/api/users/"+alice.ID.Hex()+"/follow", nil, tok)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Cannot follow yourself", resp.Error)

	status, _ = env.sendJSON(t, http.MethodPost, "/api/users/"+primitive.NewObjectID().Hex()+"/follow", nil, tok)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, resp = env.sendJSON(t, http.MethodPost, "/api/users/xyz/follow", nil, tok)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Invalid user ID", resp.Error)

	status, _ = env.sendJSON(t, http.MethodPost, "/api/users/"+primitive.NewObjectID().Hex()+"/follow", nil, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestGetUserProfile(t *testing.T) {
	env := newTestEnv(t)
	owner := env.users.Add("owner")
	fan := env.users.Add("fan")
	_, err := env.srv.followService.ToggleFollow(t.Context(), fan.ID, owner.ID)
	require.NoError(t, err)
	for i := 0; i < 14; i++ {
		env.seedPost(t, owner.ID, fmt.Sprintf("p%d", i), time.Duration(i)*time.Minute)
	}
	path := "/api/users/" + owner.ID.Hex()

	status, resp := env.get(t, path, env.token(t, fan.ID))
	require.Equal(t, fiber.StatusOK, status)
	var prof service.Profile
	decodeData(t, resp, &prof)
	assert.Equal(t, "owner", prof.User.Username)
	assert.Empty(t, prof.User.Email)
	assert.Equal(t, 14, prof.User.PostCount)
	assert.Len(t, prof.Posts, 12)
	assert.True(t, prof.IsFollowing)

	_, resp = env.get(t, path, "")
	decodeData(t, resp, &prof)
	assert.False(t, prof.IsFollowing)

	_, resp = env.get(t, path, env.token(t, owner.ID))
	decodeData(t, resp, &prof)
	assert.Equal(t, "owner@example.com", prof.User.Email)

	status, resp = env.get(t, "/api/users/not-hex", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Invalid user ID", resp.Error)

	status, _ = env.get(t, "/api/users/"+primitive.NewObjectID().Hex(), "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestGetUserPosts(t *testing.T) {
	env := newTestEnv(t)
	owner := env.users.Add("owner")
	for i := 0; i < 15; i++ {
		env.seedPost(t, owner.ID, "p", time.Duration(i)*time.Minute)
	}

	status, resp := env.get(t, "/api/users/"+owner.ID.Hex()+"/posts?page=2", "")
	require.Equal(t, fiber.StatusOK, status)
	var data listing
	decodeData(t, resp, &data)
	assert.Len(t, data.Posts, 3)
	assert.Equal(t, float64(15), data.Pagination["totalPosts"])
	assert.Equal(t, float64(2), data.Pagination["totalPages"])
}

func TestFollowersAndFollowing(t *testing.T) {
	env := newTestEnv(t)
	star := env.users.Add("star")
	for i := 0; i < 25; i++ {
		fan := env.users.Add(fmt.Sprintf("fan%02d", i))
		_, err := env.srv.followService.ToggleFollow(t.Context(), fan.ID, star.ID)
		require.NoError(t, err)
	}

	status, resp := env.get(t, "/api/users/"+star.ID.Hex()+"/followers?page=2", "")
	require.Equal(t, fiber.StatusOK, status)
	var followers struct {
		Followers  []models.UserSummary `json:"followers"`
		Pagination map[string]any       `json:"pagination"`
	}
	decodeData(t, resp, &followers)
	assert.Len(t, followers.Followers, 5)
	assert.Equal(t, float64(25), followers.Pagination["totalFollowers"])
	assert.Equal(t, false, followers.Pagination["hasNext"])

	status, resp = env.get(t, "/api/users/"+star.ID.Hex()+"/following", "")
	require.Equal(t, fiber.StatusOK, status)
	var following struct {
		Following  []models.UserSummary `json:"following"`
		Pagination map[string]any       `json:"pagination"`
	}
	decodeData(t, resp, &following)
	assert.Empty(t, following.Following)
	assert.Equal(t, float64(0), following.Pagination["totalFollowing"])
}

func TestListings_PageBeyondIntRange(t *testing.T) {
	env := newTestEnv(t)
	star := env.users.Add("star")
	fan := env.users.Add("fan")
	_, err := env.srv.followService.ToggleFollow(t.Context(), fan.ID, star.ID)
	require.NoError(t, err)
	env.seedPost(t, star.ID, "only post", 0)

	for _, page := range []string{"4611686018427387905", "9223372036854775807", "99999999999999999999"} {
		t.Run(page, func(t *testing.T) {
			status, resp := env.get(t, "/api/users/"+star.ID.Hex()+"/followers?limit=4&page="+page, "")
			require.Equal(t, fiber.StatusOK, status)
			var followers struct {
				Followers  []models.UserSummary `json:"followers"`
				Pagination map[string]any       `json:"pagination"`
			}
			decodeData(t, resp, &followers)
			assert.Empty(t, followers.Followers)
			assert.Equal(t, float64(1), followers.Pagination["totalFollowers"])
			assert.Equal(t, false, followers.Pagination["hasNext"])

			for _, path := range []string{"/api/posts", "/api/users/" + star.ID.Hex() + "/posts"} {
				status, resp = env.get(t, path+"?limit=4&page="+page, "")
				require.Equal(t, fiber.StatusOK, status, path)
				var data listing
				decodeData(t, resp, &data)
				assert.Empty(t, data.Posts, path)
				assert.Equal(t, false, data.Pagination["hasNext"], path)
			}
		})
	}
}

func TestGetUsers_Search(t *testing.T) {
	env := newTestEnv(t)
	env.users.Add("alice")
	env.users.Add("bob")

	status, resp := env.get(t, "/api/users?search=ALI", "")
	require.Equal(t, fiber.StatusOK, status)
	var data struct {
		Users      []models.UserProfile `json:"users"`
		Pagination map[string]any       `json:"pagination"`
	}
	decodeData(t, resp, &data)
	require.Len(t, data.Users, 1)
	assert.Equal(t, "alice", data.Users[0].Username)
	assert.Empty(t, data.Users[0].Email)
	assert.Equal(t, float64(1), data.Pagination["totalUsers"])
}

func TestUpdateMyProfile(t *testing.T) {
	env := newTestEnv(t)
	u := env.users.Add("alice")
	tok := env.token(t, u.ID)

	status, resp := env.sendJSON(t, http.MethodPut, "/api/users/me", map[string]string{"bio": "  coffee & film  "}, tok)
	require.Equal(t, fiber.StatusOK, status, resp.Error)
	assert.Equal(t, "Profile updated successfully", resp.Message)
	var prof models.UserProfile
	decodeData(t, resp, &prof)
	assert.Equal(t, "coffee & film", prof.Bio)

	status, resp = env.sendJSON(t, http.MethodPut, "/api/users/me", map[string]string{"bio": strings.Repeat("b", 151)}, tok)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Bio cannot exceed 150 characters", resp.Error)
	assert.Equal(t, "coffee & film", env.users.Snapshot(u.ID).Bio)

	status, _ = env.sendJSON(t, http.MethodPut, "/api/users/me", map[string]string{"bio": "x"}, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}
