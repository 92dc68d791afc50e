package server

import (
	"context"

	"vistagram/internal/middleware"
	"vistagram/internal/models"
	"vistagram/internal/pagination"
	"vistagram/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UpdateProfileRequest is the body of PUT /api/users/me. Absent fields are left unchanged.
type UpdateProfileRequest struct {
	Bio            *string `json:"bio"`
	ProfilePicture *string `json:"profilePicture"`
}

// GetUsers handles GET /api/users
// @Summary List users
// @Description Active users, newest first, optionally filtered by username or bio
// @Tags users
// @Produce json
// @Param search query string false "Case-insensitive search"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} APIResponse
// @Router /users [get]
func (s *Server) GetUsers(c *fiber.Ctx) error {
	page, err := s.userService.ListUsers(c.UserContext(), c.Query("search"),
		parsePagination(c, pagination.DefaultUserLimit))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respondOK(c, paged("users", "totalUsers", page.Users, page.Meta))
}

// GetUserProfile handles GET /api/users/:id
// @Summary Get a user profile
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} APIResponse{data=service.Profile}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return nil
	}

	profile, err := s.userService.GetProfile(c.UserContext(), userID, middleware.ViewerFrom(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respondOK(c, profile)
}

// GetUserPosts handles GET /api/users/:id/posts
// @Summary List a user's posts
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(12)
// @Success 200 {object} APIResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id}/posts [get]
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return nil
	}

	page, err := s.postService.ListUserPosts(c.UserContext(), userID, middleware.ViewerFrom(c),
		parsePagination(c, pagination.DefaultUserPosts))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respondOK(c, paged("posts", "totalPosts", page.Posts, page.Meta))
}

// ToggleFollow handles POST /api/users/:id/follow
// @Summary Follow or unfollow a user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} APIResponse{data=models.FollowResult}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id}/follow [post]
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	followerID, err := currentUser(c)
	if err != nil {
		return nil
	}
	targetID, err := parseUserID(c)
	if err != nil {
		return nil
	}

	res, err := s.followService.ToggleFollow(c.UserContext(), followerID, targetID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	msg := "User unfollowed"
	if res.IsFollowing {
		msg = "User followed"
	}
	return respond(c, fiber.StatusOK, res, msg)
}

// GetFollowers handles GET /api/users/:id/followers
// @Summary List followers
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} APIResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id}/followers [get]
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	return s.edgeListing(c, s.userService.Followers, "followers", "totalFollowers")
}

// GetFollowing handles GET /api/users/:id/following
// @Summary List followed users
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} APIResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id}/following [get]
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	return s.edgeListing(c, s.userService.Following, "following", "totalFollowing")
}

type edgeLister func(ctx context.Context, id primitive.ObjectID, p pagination.Params) (*service.EdgePage, error)

func (s *Server) edgeListing(c *fiber.Ctx, list edgeLister, itemsKey, totalKey string) error {
	userID, err := parseUserID(c)
	if err != nil {
		return nil
	}

	page, err := list(c.UserContext(), userID, parsePagination(c, pagination.DefaultUserLimit))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respondOK(c, paged(itemsKey, totalKey, page.Users, page.Meta))
}

// UpdateMyProfile handles PUT /api/users/me
// @Summary Update own profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateProfileRequest true "Profile fields"
// @Success 200 {object} APIResponse{data=models.UserProfile}
// @Failure 400 {object} models.ErrorResponse
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return nil
	}

	var req UpdateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	profile, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:         userID,
		Bio:            req.Bio,
		ProfilePicture: req.ProfilePicture,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respond(c, fiber.StatusOK, profile, "Profile updated successfully")
}
