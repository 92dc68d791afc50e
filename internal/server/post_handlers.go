package server

import (
	"encoding/json"
	"strings"

	"vistagram/internal/middleware"
	"vistagram/internal/models"
	"vistagram/internal/pagination"
	"vistagram/internal/service"
	"vistagram/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// CommentRequest is the body of POST /api/posts/:id/comment.
type CommentRequest struct {
	Text string `json:"text" validate:"notblank" msg:"Comment text is required"`
}

// locationInput is the wire form of a post location: coordinates are [lng, lat].
type locationInput struct {
	Name        string    `json:"name"`
	Coordinates []float64 `json:"coordinates"`
}

// parseLocation decodes the optional "location" form value.
func parseLocation(raw string) (*models.Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var in locationInput
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, models.NewValidationError("Invalid location format")
	}

	loc := &models.Location{Name: strings.TrimSpace(in.Name)}
	if len(in.Coordinates) > 0 {
		if len(in.Coordinates) != 2 {
			return nil, models.NewValidationError("Location coordinates must be [longitude, latitude]")
		}
		lng, lat := in.Coordinates[0], in.Coordinates[1]
		if lng < -180 || lng > 180 || lat < -90 || lat > 90 {
			return nil, models.NewValidationError("Location coordinates are out of range")
		}
		loc.Coordinates = models.NewGeoPoint(lng, lat)
	}
	if loc.Name == "" && loc.Coordinates == nil {
		return nil, nil
	}
	return loc, nil
}

// GetFeed handles GET /api/posts/feed
// @Summary Home feed
// @Description Posts by the viewer and the users they follow, newest first
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(10)
// @Success 200 {object} APIResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /posts/feed [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return nil
	}

	page, err := s.feedService.Feed(c.UserContext(), userID, parsePagination(c, pagination.DefaultFeedLimit))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respondOK(c, paged("posts", "totalPosts", page.Posts, page.Meta))
}

// GetPosts handles GET /api/posts
// @Summary List posts
// @Tags posts
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(10)
// @Success 200 {object} APIResponse
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page, err := s.postService.ListPosts(c.UserContext(), middleware.ViewerFrom(c),
		parsePagination(c, pagination.DefaultFeedLimit))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respondOK(c, paged("posts", "totalPosts", page.Posts, page.Meta))
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} APIResponse{data=models.PostView}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	postID, err := parsePostID(c)
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), postID, middleware.ViewerFrom(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respondOK(c, post)
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Description Multipart upload with an image, a caption and an optional JSON location
// @Tags posts
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param image formData file true "Image"
// @Param caption formData string true "Caption"
// @Param location formData string false "Location JSON {name, coordinates:[lng,lat]}"
// @Success 201 {object} APIResponse{data=models.PostView}
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return nil
	}

	caption := c.FormValue("caption")
	if strings.TrimSpace(caption) == "" {
		return models.RespondWithAppError(c, models.NewValidationError("Caption is required"))
	}

	location, err := parseLocation(c.FormValue("location"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	img, err := s.readImageUpload(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	var image string
	if img != nil {
		image = img.DataURL
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		UserID:   userID,
		Image:    image,
		Caption:  caption,
		Location: location,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respond(c, fiber.StatusCreated, post, "Post created successfully")
}

// LikePost handles POST /api/posts/:id/like
// @Summary Toggle like
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} APIResponse{data=models.LikeResult}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [post]
func (s *Server) LikePost(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return nil
	}
	postID, err := parsePostID(c)
	if err != nil {
		return nil
	}

	res, err := s.postService.ToggleLike(c.UserContext(), postID, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	msg := "Post unliked"
	if res.IsLiked {
		msg = "Post liked"
	}
	return respond(c, fiber.StatusOK, res, msg)
}

// SharePost handles POST /api/posts/:id/share
// @Summary Share a post
// @Description Idempotent: sharing twice keeps a single share
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} APIResponse{data=models.ShareResult}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/share [post]
func (s *Server) SharePost(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return nil
	}
	postID, err := parsePostID(c)
	if err != nil {
		return nil
	}

	res, err := s.postService.AddShare(c.UserContext(), postID, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respond(c, fiber.StatusOK, res, "Post shared successfully")
}

// CommentPost handles POST /api/posts/:id/comment
// @Summary Comment on a post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Param request body CommentRequest true "Comment"
// @Success 201 {object} APIResponse{data=models.CommentView}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comment [post]
func (s *Server) CommentPost(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return nil
	}
	postID, err := parsePostID(c)
	if err != nil {
		return nil
	}

	var req CommentRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if err := validation.Struct(&req); err != nil {
		return models.RespondWithAppError(c, err)
	}

	comment, err := s.postService.AddComment(c.UserContext(), postID, userID, req.Text)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respond(c, fiber.StatusCreated, comment, "Comment added successfully")
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post
// @Description Soft delete; only the owner may delete
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} APIResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return nil
	}
	postID, err := parsePostID(c)
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(c.UserContext(), postID, userID); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respond(c, fiber.StatusOK, nil, "Post deleted successfully")
}
