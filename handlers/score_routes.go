// handlers/score_routes.go
package handlers

import (
	"errors"

	"movetogether-backend/middleware"
	"movetogether-backend/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupScoreRoutes(app *fiber.App, scoreService *services.ScoreService) {
	secured := app.Group("/", middleware.UserAuthMiddleware())

	// POST /calculate-daily-score — the authoritative scoring entry point.
	// The caller may only submit their own metrics; the score in the response
	// is computed here against server-held goals, never taken from the client.
	secured.Post("/calculate-daily-score", func(c *fiber.Ctx) error {
		tokenUserID := c.Locals("user_id").(string)

		var sub services.ActivitySubmission
		if err := c.BodyParser(&sub); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		if sub.UserID == "" {
			sub.UserID = tokenUserID
		} else if sub.UserID != tokenUserID {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "cannot submit activity data for another user",
			})
		}

		score, err := scoreService.ProcessDailySubmission(&sub)
		if err != nil {
			var invalid *services.InvalidDataError
			if errors.As(err, &invalid) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": invalid.Reason,
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to process submission",
				"cause": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"success": true,
			"score":   score,
		})
	})

	// GET /activity/:date — the persisted record for one day.
	secured.Get("/activity/:date", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		date := c.Params("date")

		record, err := scoreService.GetRecord(userID, date)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "no activity record for this date",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch activity record",
				"cause": err.Error(),
			})
		}
		return c.JSON(record)
	})
}
