package server

import (
	"vistagram/internal/middleware"
	"vistagram/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetFeatureFlags returns configured feature flags and evaluated state for current user.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)

	if s.featureFlags == nil {
		return respondOK(c, fiber.Map{
			"raw":       map[string]string{},
			"evaluated": map[string]bool{},
		})
	}

	return respondOK(c, fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(userID.Hex()),
	})
}

// ReconcileFollows handles POST /api/admin/reconcile-follows
// @Summary Repair follow edges
// @Description Restores the mirror entry of every one-sided follow edge and drops dangling ones
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} APIResponse{data=service.ReconcileReport}
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/reconcile-follows [post]
func (s *Server) ReconcileFollows(c *fiber.Ctx) error {
	report, err := s.followService.Reconcile(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respond(c, fiber.StatusOK, report, "Follow graph reconciled")
}
