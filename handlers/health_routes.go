// handlers/health_routes.go
package handlers

import (
	"errors"
	"time"

	"movetogether-backend/middleware"
	"movetogether-backend/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// Health syncs are quota'd per user: pulling a provider's daily summary is
// expensive and a client has no reason to do it more than a few times an hour.
const healthSyncQuotaPerHour = 20

func SetupHealthRoutes(app *fiber.App, healthSyncService *services.HealthSyncService) {
	secured := app.Group("/", middleware.UserAuthMiddleware())

	syncLimiter := limiter.New(limiter.Config{
		Max:        healthSyncQuotaPerHour,
		Expiration: 1 * time.Hour,
		KeyGenerator: func(c *fiber.Ctx) string {
			if userID, ok := c.Locals("user_id").(string); ok {
				return userID
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "health sync quota exceeded, try again later",
			})
		},
	})

	secured.Post("/sync-health-data", syncLimiter, func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Provider string `json:"provider"`
			Date     string `json:"date"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if req.Provider == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "provider is required",
			})
		}
		if req.Date == "" {
			req.Date = time.Now().UTC().Format(services.CivilDateLayout)
		}

		score, err := healthSyncService.SyncDailyMetrics(c.Context(), userID, req.Provider, req.Date)
		if err != nil {
			if errors.Is(err, services.ErrNoHealthConnection) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "no connected health provider",
				})
			}
			var invalid *services.InvalidDataError
			if errors.As(err, &invalid) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": invalid.Reason})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "health sync failed",
				"cause": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"success": true,
			"score":   score,
		})
	})
}
