// workers/token_refresh_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"movetogether-backend/services"
)

// Refresh OAuth connections this far ahead of their expiry so a sync never
// has to block on a token round-trip.
const refreshHorizon = 30 * time.Minute

// PollExpiringTokens periodically refreshes health-provider OAuth tokens that
// are close to expiry, so scheduled and on-demand syncs always find a live
// access token.
func PollExpiringTokens(ctx context.Context, svc *services.HealthSyncService, pollInterval time.Duration) {
	log.Println("Starting health token refresh polling...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Health token polling stopped.")
			return
		case <-ticker.C:
			svc.RefreshExpiring(ctx, refreshHorizon)
		}
	}
}
