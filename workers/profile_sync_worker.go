// workers/profile_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"movetogether-backend/models"
	"movetogether-backend/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MirroredProfile matches the JSON response from the profile service.
type MirroredProfile struct {
	ExternalID    string    `json:"external_id"`
	DisplayName   string    `json:"display_name"`
	AvatarURL     *string   `json:"avatar_url,omitempty"`
	PushToken     string    `json:"push_token,omitempty"`
	AccountStatus string    `json:"account_status"` // active / suspended / banned
	UpdatedAt     time.Time `json:"updated_at"`
}

type getProfileChangesResponse struct {
	Profiles []MirroredProfile `json:"profiles"`
}

// ProfileSyncWorker mirrors display names, push tokens and account moderation
// status from the profile service into user_profiles, and keeps the
// denormalized name on participant rows current. The account-status gate in
// the moderation pipeline depends on this mirror being fresh.
type ProfileSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string
	serviceToken string
	httpClient   *http.Client
}

func NewProfileSyncWorker(db *gorm.DB, profileServiceURL, serviceToken string) *ProfileSyncWorker {
	return &ProfileSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      profileServiceURL,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

func (w *ProfileSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Profile Sync Worker (profile-service → user_profiles)…")
	go w.run(ctx)
}

func (w *ProfileSyncWorker) run(ctx context.Context) {
	// Initial backfill from the beginning of time.
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial profile sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx, w.getLastSyncTime()); err != nil {
				log.Printf("❌ Profile sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Profile Sync Worker stopped")
			return
		}
	}
}

// getLastSyncTime finds the most recent UpdatedAt in the local mirror.
func (w *ProfileSyncWorker) getLastSyncTime() time.Time {
	var lastTime time.Time
	w.db.Model(&models.UserProfile{}).
		Select("COALESCE(MAX(updated_at), '1970-01-01')").
		Scan(&lastTime)
	return lastTime
}

func (w *ProfileSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	u, err := url.Parse(fmt.Sprintf("%s/api/v1/public/profiles", w.baseURL))
	if err != nil {
		return fmt.Errorf("failed to parse profile service URL: %w", err)
	}
	q := u.Query()
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call profile service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("profile service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response getProfileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode profile service response: %w", err)
	}
	if len(response.Profiles) == 0 {
		return nil
	}

	for _, p := range response.Profiles {
		status := p.AccountStatus
		if status != models.ModerationStatusSuspended && status != models.ModerationStatusBanned {
			status = models.ModerationStatusActive
		}
		profile := models.UserProfile{
			ExternalUserID:   p.ExternalID,
			DisplayName:      p.DisplayName,
			AvatarURL:        p.AvatarURL,
			PushToken:        p.PushToken,
			ModerationStatus: status,
		}
		err := w.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"display_name", "avatar_url", "push_token", "moderation_status", "updated_at",
			}),
		}).Create(&profile).Error
		if err != nil {
			log.Printf("❌ Failed to upsert profile %s: %v", p.ExternalID, err)
			continue
		}

		// Keep the denormalized name on standings rows current.
		if p.DisplayName != "" {
			w.db.Model(&models.CompetitionParticipant{}).
				Where("external_user_id = ?", p.ExternalID).
				Update("display_name", p.DisplayName)
		}
	}

	log.Printf("📥 Synced %d profile change(s)", len(response.Profiles))
	return nil
}
