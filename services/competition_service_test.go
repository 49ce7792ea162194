package services

import (
	"testing"
	"time"

	"movetogether-backend/models"

	"github.com/stretchr/testify/require"
)

func TestStatusForWindow(t *testing.T) {
	now := time.Date(2025, time.June, 15, 9, 0, 0, 0, time.UTC)

	require.Equal(t, models.CompetitionStatusUpcoming, statusForWindow("2025-06-16", "2025-06-30", now))
	require.Equal(t, models.CompetitionStatusActive, statusForWindow("2025-06-15", "2025-06-30", now))
	require.Equal(t, models.CompetitionStatusActive, statusForWindow("2025-06-01", "2025-06-15", now))
	require.Equal(t, models.CompetitionStatusCompleted, statusForWindow("2025-06-01", "2025-06-14", now))
	// Single-day competition on its one day.
	require.Equal(t, models.CompetitionStatusActive, statusForWindow("2025-06-15", "2025-06-15", now))
}

func TestNormalizeScoringConfig(t *testing.T) {
	// Absent config must become an empty JSON object — postgres rejects '' as jsonb.
	cfg, err := normalizeScoringConfig("")
	require.NoError(t, err)
	require.Equal(t, "{}", cfg)

	cfg, err = normalizeScoringConfig(`{"ring_bonus": 5}`)
	require.NoError(t, err)
	require.Equal(t, `{"ring_bonus": 5}`, cfg)

	_, err = normalizeScoringConfig(`{ring_bonus: 5}`)
	var invalid *InvalidDataError
	require.ErrorAs(t, err, &invalid)
}

func TestCreateCompetitionRejectsMalformedScoringConfig(t *testing.T) {
	svc := NewCompetitionService(nil)
	_, err := svc.CreateCompetition("u1", "User One", CreateCompetitionInput{
		Name:          "Spring Sprint",
		StartDate:     "2025-06-01",
		EndDate:       "2025-06-30",
		ScoringConfig: `{not json}`,
	})
	var invalid *InvalidDataError
	require.ErrorAs(t, err, &invalid)
	require.Contains(t, invalid.Reason, "scoring_config")
}
