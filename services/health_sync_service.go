package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"movetogether-backend/models"

	"gorm.io/gorm"
)

// Refresh a token this long before it actually expires.
const tokenExpiryMargin = 5 * time.Minute

var ErrNoHealthConnection = errors.New("no health connection for this provider")

// TokenResult is the normalized outcome of an OAuth refresh.
type TokenResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int // seconds
}

// DailyMetrics is the provider-neutral daily summary pulled during a sync.
type DailyMetrics struct {
	MoveCalories    float64
	ExerciseMinutes float64
	StandHours      float64
	Steps           int64
	DistanceMeters  *float64
}

// HealthProvider hides per-vendor OAuth and API quirks behind one contract.
// Providers are registered by name; selection is a map lookup, not a switch.
type HealthProvider interface {
	Refresh(ctx context.Context, refreshToken string) (*TokenResult, error)
	FetchDailySummary(ctx context.Context, accessToken, date string) (*DailyMetrics, error)
}

// NewProviderRegistryFromEnv builds the provider map from environment
// credentials. Unconfigured providers are simply absent from the registry.
func NewProviderRegistryFromEnv() map[string]HealthProvider {
	registry := make(map[string]HealthProvider)
	if id := os.Getenv("FITBIT_CLIENT_ID"); id != "" {
		registry["fitbit"] = NewFitbitProvider(id, os.Getenv("FITBIT_CLIENT_SECRET"))
	}
	if id := os.Getenv("GOOGLEFIT_CLIENT_ID"); id != "" {
		registry["googlefit"] = NewGoogleFitProvider(id, os.Getenv("GOOGLEFIT_CLIENT_SECRET"))
	}
	return registry
}

type HealthSyncService struct {
	DB        *gorm.DB
	Providers map[string]HealthProvider
	Score     *ScoreService
}

func NewHealthSyncService(db *gorm.DB, providers map[string]HealthProvider, score *ScoreService) *HealthSyncService {
	return &HealthSyncService{DB: db, Providers: providers, Score: score}
}

// EnsureFreshToken returns a usable access token for the connection,
// refreshing through the provider registry when the stored one is about to
// expire. New tokens are persisted before being returned.
func (s *HealthSyncService) EnsureFreshToken(ctx context.Context, conn *models.HealthConnection) (string, error) {
	if time.Until(conn.ExpiresAt) > tokenExpiryMargin {
		return conn.AccessToken, nil
	}

	provider, ok := s.Providers[conn.Provider]
	if !ok {
		return "", fmt.Errorf("no provider registered for %q", conn.Provider)
	}

	result, err := provider.Refresh(ctx, conn.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("token refresh failed for %s/%s: %w", conn.ExternalUserID, conn.Provider, err)
	}

	conn.AccessToken = result.AccessToken
	if result.RefreshToken != "" {
		conn.RefreshToken = result.RefreshToken
	}
	conn.ExpiresAt = time.Now().Add(time.Duration(result.ExpiresIn) * time.Second)
	if err := s.DB.Save(conn).Error; err != nil {
		return "", fmt.Errorf("failed to persist refreshed token: %w", err)
	}
	log.Printf("🔑 Refreshed %s token for %s (expires %s)", conn.Provider, conn.ExternalUserID, conn.ExpiresAt.Format(time.RFC3339))
	return conn.AccessToken, nil
}

// SyncDailyMetrics pulls the provider's daily summary for one date and feeds
// it through the scoring pipeline like any client submission.
func (s *HealthSyncService) SyncDailyMetrics(ctx context.Context, externalUserID, providerName, date string) (*CalculatedScore, error) {
	var conn models.HealthConnection
	err := s.DB.Where("external_user_id = ? AND provider = ? AND sync_enabled = ?", externalUserID, providerName, true).
		First(&conn).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrNoHealthConnection
	}
	if err != nil {
		return nil, err
	}

	token, err := s.EnsureFreshToken(ctx, &conn)
	if err != nil {
		return nil, err
	}

	provider := s.Providers[conn.Provider]
	metrics, err := provider.FetchDailySummary(ctx, token, date)
	if err != nil {
		return nil, fmt.Errorf("daily summary fetch failed: %w", err)
	}

	score, err := s.Score.ProcessDailySubmission(&ActivitySubmission{
		UserID:          externalUserID,
		Date:            date,
		MoveCalories:    metrics.MoveCalories,
		ExerciseMinutes: metrics.ExerciseMinutes,
		StandHours:      metrics.StandHours,
		Steps:           metrics.Steps,
		DistanceMeters:  metrics.DistanceMeters,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s.DB.Model(&conn).Update("last_sync_at", &now)
	return score, nil
}

// RefreshExpiring refreshes every enabled connection expiring within the
// horizon. Used by the background worker; per-connection failures are logged
// and skipped.
func (s *HealthSyncService) RefreshExpiring(ctx context.Context, horizon time.Duration) {
	var conns []models.HealthConnection
	err := s.DB.Where("sync_enabled = ? AND expires_at < ?", true, time.Now().Add(horizon)).
		Find(&conns).Error
	if err != nil {
		log.Printf("❌ [TOKEN_REFRESH] Failed to list expiring connections: %v", err)
		return
	}
	for i := range conns {
		if _, err := s.EnsureFreshToken(ctx, &conns[i]); err != nil {
			log.Printf("⚠️ [TOKEN_REFRESH] %v", err)
		}
	}
}

// FitbitProvider — client credentials travel in a Basic-Auth header.
type FitbitProvider struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIBaseURL   string
	Client       *http.Client
}

func NewFitbitProvider(clientID, clientSecret string) *FitbitProvider {
	return &FitbitProvider{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     "https://api.fitbit.com/oauth2/token",
		APIBaseURL:   "https://api.fitbit.com",
		Client:       &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *FitbitProvider) Refresh(ctx context.Context, refreshToken string) (*TokenResult, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, "POST", p.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(p.ClientID + ":" + p.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return decodeTokenResponse(p.Client, req, "fitbit")
}

func (p *FitbitProvider) FetchDailySummary(ctx context.Context, accessToken, date string) (*DailyMetrics, error) {
	reqURL := fmt.Sprintf("%s/1/user/-/activities/date/%s.json", p.APIBaseURL, date)
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fitbit summary returned %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Summary struct {
			ActivityCalories float64 `json:"activityCalories"`
			FairlyActiveMins float64 `json:"fairlyActiveMinutes"`
			VeryActiveMins   float64 `json:"veryActiveMinutes"`
			Steps            int64   `json:"steps"`
			Distances        []struct {
				Activity string  `json:"activity"`
				Distance float64 `json:"distance"` // km
			} `json:"distances"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode fitbit summary: %w", err)
	}

	metrics := &DailyMetrics{
		MoveCalories:    out.Summary.ActivityCalories,
		ExerciseMinutes: out.Summary.FairlyActiveMins + out.Summary.VeryActiveMins,
		Steps:           out.Summary.Steps,
	}
	for _, d := range out.Summary.Distances {
		if d.Activity == "total" {
			meters := d.Distance * 1000
			metrics.DistanceMeters = &meters
		}
	}
	// Fitbit has no stand-hours concept; approximate from active minutes,
	// capped at a full day.
	standHours := metrics.ExerciseMinutes / 60 * 2
	if standHours > 24 {
		standHours = 24
	}
	metrics.StandHours = standHours
	return metrics, nil
}

// GoogleFitProvider — client credentials travel in the POST body.
type GoogleFitProvider struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIBaseURL   string
	Client       *http.Client
}

func NewGoogleFitProvider(clientID, clientSecret string) *GoogleFitProvider {
	return &GoogleFitProvider{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     "https://oauth2.googleapis.com/token",
		APIBaseURL:   "https://www.googleapis.com/fitness/v1",
		Client:       &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *GoogleFitProvider) Refresh(ctx context.Context, refreshToken string) (*TokenResult, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", p.ClientID)
	form.Set("client_secret", p.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, "POST", p.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return decodeTokenResponse(p.Client, req, "googlefit")
}

func (p *GoogleFitProvider) FetchDailySummary(ctx context.Context, accessToken, date string) (*DailyMetrics, error) {
	day, err := time.Parse(CivilDateLayout, date)
	if err != nil {
		return nil, err
	}
	startMs := day.UnixMilli()
	endMs := day.AddDate(0, 0, 1).UnixMilli()

	reqBody := map[string]interface{}{
		"aggregateBy": []map[string]string{
			{"dataTypeName": "com.google.calories.expended"},
			{"dataTypeName": "com.google.active_minutes"},
			{"dataTypeName": "com.google.step_count.delta"},
			{"dataTypeName": "com.google.distance.delta"},
		},
		"bucketByTime":    map[string]int64{"durationMillis": endMs - startMs},
		"startTimeMillis": startMs,
		"endTimeMillis":   endMs,
	}
	jsonData, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, "POST", p.APIBaseURL+"/users/me/dataset:aggregate", strings.NewReader(string(jsonData)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("googlefit aggregate returned %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Bucket []struct {
			Dataset []struct {
				DataSourceID string `json:"dataSourceId"`
				Point        []struct {
					Value []struct {
						FpVal  float64 `json:"fpVal"`
						IntVal int64   `json:"intVal"`
					} `json:"value"`
				} `json:"point"`
			} `json:"dataset"`
		} `json:"bucket"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode googlefit response: %w", err)
	}

	metrics := &DailyMetrics{}
	for _, bucket := range out.Bucket {
		for _, ds := range bucket.Dataset {
			for _, pt := range ds.Point {
				for _, v := range pt.Value {
					switch {
					case strings.Contains(ds.DataSourceID, "calories"):
						metrics.MoveCalories += v.FpVal
					case strings.Contains(ds.DataSourceID, "active_minutes"):
						metrics.ExerciseMinutes += float64(v.IntVal)
					case strings.Contains(ds.DataSourceID, "step_count"):
						metrics.Steps += v.IntVal
					case strings.Contains(ds.DataSourceID, "distance"):
						meters := v.FpVal
						if metrics.DistanceMeters != nil {
							meters += *metrics.DistanceMeters
						}
						metrics.DistanceMeters = &meters
					}
				}
			}
		}
	}
	standHours := metrics.ExerciseMinutes / 60 * 2
	if standHours > 24 {
		standHours = 24
	}
	metrics.StandHours = standHours
	return metrics, nil
}

// decodeTokenResponse handles the shared OAuth token-endpoint response shape.
func decodeTokenResponse(client *http.Client, req *http.Request, provider string) (*TokenResult, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s token request failed: %w", provider, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s token endpoint returned %d: %s", provider, resp.StatusCode, string(body))
	}

	var out struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s token response: %w", provider, err)
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("%s token response missing access_token", provider)
	}
	return &TokenResult{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresIn:    out.ExpiresIn,
	}, nil
}
