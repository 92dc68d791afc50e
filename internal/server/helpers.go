package server

import (
	"errors"

	"vistagram/internal/middleware"
	"vistagram/internal/models"
	"vistagram/internal/pagination"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// APIResponse is the success envelope shared by every endpoint.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func respond(c *fiber.Ctx, status int, data any, message string) error {
	return c.Status(status).JSON(APIResponse{Success: true, Data: data, Message: message})
}

func respondOK(c *fiber.Ctx, data any) error {
	return respond(c, fiber.StatusOK, data, "")
}

// paged builds the data object of a paginated listing, e.g.
// {"posts": [...], "pagination": {..., "totalPosts": n}}.
func paged(itemsKey, totalKey string, items any, meta pagination.Meta) fiber.Map {
	return fiber.Map{
		itemsKey:     items,
		"pagination": meta.JSON(totalKey),
	}
}

// parsePagination reads page and limit query values with the endpoint's default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) pagination.Params {
	return pagination.ParseParams(c.Query("page"), c.Query("limit"), defaultLimit)
}

// parsePostID extracts the :id route parameter as a post id. A malformed id
// cannot name an existing post, so it is reported as not found.
func parsePostID(c *fiber.Ctx) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("Post", c.Params("id")))
		return primitive.NilObjectID, errResponseWritten
	}
	return id, nil
}

// parseUserID extracts the :id route parameter as a user id.
// On failure it writes a 400 JSON response and returns errResponseWritten.
func parseUserID(c *fiber.Ctx) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid user ID"))
		return primitive.NilObjectID, errResponseWritten
	}
	return id, nil
}

// currentUser returns the authenticated user id. Routes using it sit behind
// Required, so a missing id only happens on a wiring mistake.
func currentUser(c *fiber.Ctx) (primitive.ObjectID, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		_ = models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError("Authorization required"))
		return primitive.NilObjectID, errResponseWritten
	}
	return id, nil
}

// parseBody decodes the JSON body into req.
func parseBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}
