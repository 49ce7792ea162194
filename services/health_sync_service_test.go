package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFitbitRefreshSendsBasicAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expected := "Basic " + base64.StdEncoding.EncodeToString([]byte("client-id:client-secret"))
		require.Equal(t, expected, r.Header.Get("Authorization"))
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		require.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))
		// Credentials must not leak into the body for fitbit.
		require.Empty(t, r.PostForm.Get("client_id"))
		require.Empty(t, r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"new-access","refresh_token":"new-refresh","expires_in":3600}`))
	}))
	defer srv.Close()

	provider := NewFitbitProvider("client-id", "client-secret")
	provider.TokenURL = srv.URL

	result, err := provider.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	require.Equal(t, "new-access", result.AccessToken)
	require.Equal(t, "new-refresh", result.RefreshToken)
	require.Equal(t, 3600, result.ExpiresIn)
}

func TestGoogleFitRefreshSendsCredentialsInBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Authorization"))

		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		require.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))
		require.Equal(t, "client-id", r.PostForm.Get("client_id"))
		require.Equal(t, "client-secret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"new-access","expires_in":3599}`))
	}))
	defer srv.Close()

	provider := NewGoogleFitProvider("client-id", "client-secret")
	provider.TokenURL = srv.URL

	result, err := provider.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	require.Equal(t, "new-access", result.AccessToken)
	// Google does not rotate refresh tokens; the old one stays usable.
	require.Empty(t, result.RefreshToken)
}

func TestRefreshRejectsResponseWithoutAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"expires_in":3600}`))
	}))
	defer srv.Close()

	provider := NewFitbitProvider("id", "secret")
	provider.TokenURL = srv.URL

	_, err := provider.Refresh(context.Background(), "tok")
	require.Error(t, err)
	require.Contains(t, err.Error(), "access_token")
}

func TestFitbitFetchDailySummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/1/user/-/activities/date/2025-06-15.json", r.URL.Path)
		require.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"summary": {
				"activityCalories": 620,
				"fairlyActiveMinutes": 20,
				"veryActiveMinutes": 15,
				"steps": 8200,
				"distances": [
					{"activity": "total", "distance": 6.4},
					{"activity": "tracker", "distance": 6.1}
				]
			}
		}`))
	}))
	defer srv.Close()

	provider := NewFitbitProvider("id", "secret")
	provider.APIBaseURL = srv.URL

	metrics, err := provider.FetchDailySummary(context.Background(), "access-token", "2025-06-15")
	require.NoError(t, err)
	require.Equal(t, 620.0, metrics.MoveCalories)
	require.Equal(t, 35.0, metrics.ExerciseMinutes)
	require.Equal(t, int64(8200), metrics.Steps)
	require.NotNil(t, metrics.DistanceMeters)
	require.Equal(t, 6400.0, *metrics.DistanceMeters)
	require.LessOrEqual(t, metrics.StandHours, 24.0)
}

func TestGoogleFitFetchDailySummaryAggregates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/me/dataset:aggregate", r.URL.Path)
		require.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))

		var req struct {
			AggregateBy     []map[string]string `json:"aggregateBy"`
			StartTimeMillis int64               `json:"startTimeMillis"`
			EndTimeMillis   int64               `json:"endTimeMillis"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.AggregateBy, 4)
		require.Equal(t, int64(86400000), req.EndTimeMillis-req.StartTimeMillis)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"bucket": [{
				"dataset": [
					{"dataSourceId": "derived:com.google.calories.expended:agg", "point": [{"value": [{"fpVal": 540.5}]}]},
					{"dataSourceId": "derived:com.google.active_minutes:agg", "point": [{"value": [{"intVal": 42}]}]},
					{"dataSourceId": "derived:com.google.step_count.delta:agg", "point": [{"value": [{"intVal": 9100}]}]}
				]
			}]
		}`))
	}))
	defer srv.Close()

	provider := NewGoogleFitProvider("id", "secret")
	provider.APIBaseURL = srv.URL

	metrics, err := provider.FetchDailySummary(context.Background(), "access-token", "2025-06-15")
	require.NoError(t, err)
	require.Equal(t, 540.5, metrics.MoveCalories)
	require.Equal(t, 42.0, metrics.ExerciseMinutes)
	require.Equal(t, int64(9100), metrics.Steps)
}

func TestNewProviderRegistryFromEnv(t *testing.T) {
	t.Setenv("FITBIT_CLIENT_ID", "fb-id")
	t.Setenv("FITBIT_CLIENT_SECRET", "fb-secret")
	t.Setenv("GOOGLEFIT_CLIENT_ID", "")

	registry := NewProviderRegistryFromEnv()
	require.Contains(t, registry, "fitbit")
	require.NotContains(t, registry, "googlefit")
}
