// handlers/moderation_routes.go
package handlers

import (
	"errors"

	"movetogether-backend/middleware"
	"movetogether-backend/services"

	"github.com/gofiber/fiber/v2"
)

func SetupModerationRoutes(app *fiber.App, moderationService *services.ModerationService, competitionService *services.CompetitionService) {
	secured := app.Group("/", middleware.UserAuthMiddleware())

	// POST /moderate-chat-message — decides whether an outbound chat message
	// may broadcast. Always answers 200 with a decision once the request
	// itself is valid; a blocked message is a decision, not an error.
	secured.Post("/moderate-chat-message", func(c *fiber.Ctx) error {
		authorID := c.Locals("user_id").(string)

		var req struct {
			CompetitionID  string `json:"competition_id"`
			MessageContent string `json:"message_content"`
			MessageID      string `json:"message_id,omitempty"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		if req.CompetitionID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "competition_id is required",
			})
		}
		if !services.ValidMessageLength(req.MessageContent) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "message_content must be between 1 and 2000 characters",
			})
		}

		if _, err := competitionService.GetCompetition(req.CompetitionID); err != nil {
			if errors.Is(err, services.ErrCompetitionNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "competition not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load competition",
				"cause": err.Error(),
			})
		}

		result, err := moderationService.ModerateMessage(c.Context(), authorID, req.CompetitionID, req.MessageID, req.MessageContent)
		if err != nil {
			if errors.Is(err, services.ErrNotParticipant) {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
					"error": "not a participant of this competition",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "moderation failed",
				"cause": err.Error(),
			})
		}

		return c.JSON(result)
	})
}
