package services

import (
	"testing"
	"time"

	"movetogether-backend/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"
)

var testNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func validSubmission() *ActivitySubmission {
	return &ActivitySubmission{
		UserID:          "user-1",
		Date:            "2025-06-15",
		MoveCalories:    600,
		ExerciseMinutes: 15,
		StandHours:      12,
		Steps:           5000,
	}
}

func TestValidateSubmissionAcceptsBoundaries(t *testing.T) {
	sub := validSubmission()
	sub.MoveCalories = 10000
	sub.ExerciseMinutes = 1440
	sub.StandHours = 24
	sub.Steps = 100000
	require.NoError(t, ValidateSubmission(sub, testNow))
}

func TestValidateSubmissionRejectsOutOfRange(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ActivitySubmission)
	}{
		{"calories above max", func(s *ActivitySubmission) { s.MoveCalories = 10001 }},
		{"negative calories", func(s *ActivitySubmission) { s.MoveCalories = -1 }},
		{"minutes above max", func(s *ActivitySubmission) { s.ExerciseMinutes = 1441 }},
		{"stand hours above max", func(s *ActivitySubmission) { s.StandHours = 24.5 }},
		{"steps above max", func(s *ActivitySubmission) { s.Steps = 100001 }},
		{"negative steps", func(s *ActivitySubmission) { s.Steps = -5 }},
		{"garbage date", func(s *ActivitySubmission) { s.Date = "15/06/2025" }},
		{"impossible date", func(s *ActivitySubmission) { s.Date = "2025-02-30" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub := validSubmission()
			tc.mutate(sub)
			err := ValidateSubmission(sub, testNow)
			require.Error(t, err)
			var invalid *InvalidDataError
			require.ErrorAs(t, err, &invalid)
			require.NotEmpty(t, invalid.Reason)
		})
	}
}

func TestValidateSubmissionDateWindow(t *testing.T) {
	sub := validSubmission()

	sub.Date = testNow.Format(CivilDateLayout) // today
	require.NoError(t, ValidateSubmission(sub, testNow))

	sub.Date = testNow.AddDate(0, 0, 1).Format(CivilDateLayout) // tomorrow
	require.Error(t, ValidateSubmission(sub, testNow))

	sub.Date = testNow.AddDate(0, 0, -365).Format(CivilDateLayout) // exactly 365 days old
	require.NoError(t, ValidateSubmission(sub, testNow))

	sub.Date = testNow.AddDate(0, 0, -366).Format(CivilDateLayout)
	require.Error(t, ValidateSubmission(sub, testNow))
}

func TestCalculateScoreMixedRings(t *testing.T) {
	// 600/500 clamps to 100, 15/30 = 50, 12/12 = 100 → mean 83.33, two rings.
	score := CalculateScore(validSubmission(), 500, 30, 12)

	require.Equal(t, 100.0, score.MovePercentage)
	require.Equal(t, 50.0, score.ExercisePercentage)
	require.Equal(t, 100.0, score.StandPercentage)
	require.Equal(t, 2, score.RingsClosed)
	require.Equal(t, 83.33, score.TotalScore)
}

func TestCalculateScoreClampsPercentages(t *testing.T) {
	sub := validSubmission()
	sub.MoveCalories = 10000 // 20x the goal
	score := CalculateScore(sub, 500, 30, 12)
	require.Equal(t, 100.0, score.MovePercentage)

	sub.MoveCalories = 0
	sub.ExerciseMinutes = 0
	sub.StandHours = 0
	score = CalculateScore(sub, 500, 30, 12)
	require.Equal(t, 0.0, score.MovePercentage)
	require.Equal(t, 0.0, score.TotalScore)
	require.Equal(t, 0, score.RingsClosed)
}

func TestCalculateScoreRingThresholdIsExact(t *testing.T) {
	sub := validSubmission()
	sub.MoveCalories = 499.99 // 99.998% — not closed
	sub.ExerciseMinutes = 30  // exactly 100% — closed
	sub.StandHours = 11.99
	score := CalculateScore(sub, 500, 30, 12)

	require.Less(t, score.MovePercentage, 100.0)
	require.Equal(t, 100.0, score.ExercisePercentage)
	require.Equal(t, 1, score.RingsClosed)
}

func TestCalculateScoreMonotonic(t *testing.T) {
	base := validSubmission()
	base.MoveCalories = 100
	prev := CalculateScore(base, 500, 30, 12)

	for _, cal := range []float64{200, 300, 450, 500, 800} {
		sub := validSubmission()
		sub.MoveCalories = cal
		next := CalculateScore(sub, 500, 30, 12)
		require.GreaterOrEqual(t, next.MovePercentage, prev.MovePercentage)
		require.GreaterOrEqual(t, next.TotalScore, prev.TotalScore)
		prev = next
	}
}

func TestCalculateScoreRoundsHalfUp(t *testing.T) {
	// 100 + 0 + 0.05*... pick values where the mean lands on x.xx5.
	// move 1/500 = 0.2%, others 0 → mean 0.0666... → 0.07
	sub := &ActivitySubmission{MoveCalories: 1}
	score := CalculateScore(sub, 500, 30, 12)
	require.Equal(t, 0.07, score.TotalScore)
}

func TestActivityUpsertKeysAndColumns(t *testing.T) {
	require.Equal(t,
		[]clause.Column{{Name: "external_user_id"}, {Name: "activity_date"}},
		activityUpsertConflict.Columns)

	updated := make(map[string]bool)
	for _, assignment := range activityUpsertConflict.DoUpdates {
		updated[assignment.Column.Name] = true
	}
	for _, col := range []string{
		"move_calories", "exercise_minutes", "stand_hours", "steps",
		"move_percentage", "exercise_percentage", "stand_percentage",
		"total_score", "rings_closed",
	} {
		require.Truef(t, updated[col], "%s must be overwritten on re-submission", col)
	}
	// A re-submission must never reset the notification guard or rewrite the key.
	require.False(t, updated["rings_closed_notified"])
	require.False(t, updated["external_user_id"])
	require.False(t, updated["activity_date"])
}

func TestEffectiveGoalsFallBackToDefaults(t *testing.T) {
	profile := &models.UserProfile{}
	move, exercise, stand := profile.EffectiveGoals()
	require.Equal(t, models.DefaultMoveGoal, move)
	require.Equal(t, models.DefaultExerciseGoal, exercise)
	require.Equal(t, models.DefaultStandGoal, stand)

	profile = &models.UserProfile{MoveGoal: 700, ExerciseGoal: -10, StandGoal: 10}
	move, exercise, stand = profile.EffectiveGoals()
	require.Equal(t, 700.0, move)
	require.Equal(t, models.DefaultExerciseGoal, exercise)
	require.Equal(t, 10.0, stand)
}
