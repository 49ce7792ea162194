// handlers/competition_routes.go
package handlers

import (
	"errors"

	"movetogether-backend/middleware"
	"movetogether-backend/models"
	"movetogether-backend/services"

	"github.com/gofiber/fiber/v2"
)

func SetupCompetitionRoutes(app *fiber.App, competitionService *services.CompetitionService, standingsService *services.StandingsService) {
	secured := app.Group("/", middleware.UserAuthMiddleware())

	// displayNameFor resolves the denormalized name stored on participant rows.
	displayNameFor := func(userID string) string {
		var profile models.UserProfile
		if err := competitionService.DB.Where("external_user_id = ?", userID).First(&profile).Error; err != nil {
			return ""
		}
		return profile.DisplayName
	}

	secured.Post("/competitions", func(c *fiber.Ctx) error {
		ownerID := c.Locals("user_id").(string)

		var req struct {
			Name            string `json:"name"`
			Description     string `json:"description"`
			StartDate       string `json:"start_date"`
			EndDate         string `json:"end_date"`
			ScoringType     string `json:"scoring_type"`
			ScoringConfig   string `json:"scoring_config"`
			MaxParticipants int    `json:"max_participants"`
			IsPrivate       *bool  `json:"is_private"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		isPrivate := true
		if req.IsPrivate != nil {
			isPrivate = *req.IsPrivate
		}

		comp, err := competitionService.CreateCompetition(ownerID, displayNameFor(ownerID), services.CreateCompetitionInput{
			Name:            req.Name,
			Description:     req.Description,
			StartDate:       req.StartDate,
			EndDate:         req.EndDate,
			ScoringType:     req.ScoringType,
			ScoringConfig:   req.ScoringConfig,
			MaxParticipants: req.MaxParticipants,
			IsPrivate:       isPrivate,
		})
		if err != nil {
			var invalid *services.InvalidDataError
			if errors.As(err, &invalid) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": invalid.Reason})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to create competition",
				"cause": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(comp)
	})

	secured.Get("/competitions", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		comps, err := competitionService.ListForUser(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list competitions",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"competitions": comps})
	})

	secured.Post("/competitions/join", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			InviteCode string `json:"invite_code"`
		}
		if err := c.BodyParser(&req); err != nil || req.InviteCode == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invite_code is required",
			})
		}

		comp, err := competitionService.JoinByInviteCode(userID, displayNameFor(userID), req.InviteCode)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrCompetitionNotFound):
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "competition not found"})
			case errors.Is(err, services.ErrAlreadyJoined):
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "already joined this competition"})
			case errors.Is(err, services.ErrCompetitionFull):
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "competition is full"})
			}
			var invalid *services.InvalidDataError
			if errors.As(err, &invalid) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": invalid.Reason})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to join competition",
				"cause": err.Error(),
			})
		}
		return c.JSON(comp)
	})

	secured.Post("/competitions/:id/leave", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		if err := competitionService.Leave(c.Params("id"), userID); err != nil {
			if errors.Is(err, services.ErrNotParticipant) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not a participant of this competition"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to leave competition",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"message": "left competition"})
	})

	// Standings are participant-only for private competitions.
	secured.Get("/competitions/:id/standings", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		compID := c.Params("id")

		comp, err := competitionService.GetCompetition(compID)
		if err != nil {
			if errors.Is(err, services.ErrCompetitionNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "competition not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load competition",
				"cause": err.Error(),
			})
		}

		if comp.IsPrivate {
			isMember, err := competitionService.IsParticipant(compID, userID)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "failed to check membership",
					"cause": err.Error(),
				})
			}
			if !isMember {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
					"error": "standings of a private competition are participant-only",
				})
			}
		}

		standings, err := standingsService.GetStandings(compID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load standings",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"competition": comp,
			"standings":   standings,
		})
	})
}
