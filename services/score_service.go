package services

import (
	"fmt"
	"log"
	"math"
	"time"

	"movetogether-backend/models"
	"movetogether-backend/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Civil date layout used everywhere a date crosses a boundary (submissions,
// competition windows). No timezone: "2025-08-24" is the same day for everyone.
const CivilDateLayout = "2006-01-02"

// Validation bounds for a daily submission. Anything outside is physically
// implausible and rejected outright — no partial acceptance.
const (
	MaxMoveCalories    = 10000.0
	MaxExerciseMinutes = 1440.0
	MaxStandHours      = 24.0
	MaxSteps           = 100000
	MaxSubmissionAge   = 365 // days in the past
)

// InvalidDataError rejects a submission that failed validation. The reason is
// safe to surface to the caller verbatim.
type InvalidDataError struct {
	Reason string
}

func (e *InvalidDataError) Error() string {
	return e.Reason
}

// ActivitySubmission is one user's raw daily metrics as received at the API
// boundary. Transient — it produces an ActivityRecord, never persisted as-is.
type ActivitySubmission struct {
	UserID            string   `json:"userId"`
	Date              string   `json:"date"` // "2006-01-02"
	MoveCalories      float64  `json:"moveCalories"`
	ExerciseMinutes   float64  `json:"exerciseMinutes"`
	StandHours        float64  `json:"standHours"`
	Steps             int64    `json:"steps"`
	DistanceMeters    *float64 `json:"distanceMeters,omitempty"`
	WorkoutsCompleted *int     `json:"workoutsCompleted,omitempty"`
}

// CalculatedScore is the server-authoritative scoring result returned to the
// client and persisted on the ActivityRecord.
type CalculatedScore struct {
	MovePercentage     float64 `json:"movePercentage"`
	ExercisePercentage float64 `json:"exercisePercentage"`
	StandPercentage    float64 `json:"standPercentage"`
	TotalScore         float64 `json:"totalScore"`
	RingsClosed        int     `json:"ringsClosed"`
}

// ValidateSubmission applies the physical-plausibility rules. Fails closed:
// the first violation rejects the whole submission.
func ValidateSubmission(sub *ActivitySubmission, now time.Time) error {
	if sub.MoveCalories < 0 || sub.MoveCalories > MaxMoveCalories {
		return &InvalidDataError{Reason: fmt.Sprintf("moveCalories must be between 0 and %.0f", MaxMoveCalories)}
	}
	if sub.ExerciseMinutes < 0 || sub.ExerciseMinutes > MaxExerciseMinutes {
		return &InvalidDataError{Reason: fmt.Sprintf("exerciseMinutes must be between 0 and %.0f", MaxExerciseMinutes)}
	}
	if sub.StandHours < 0 || sub.StandHours > MaxStandHours {
		return &InvalidDataError{Reason: fmt.Sprintf("standHours must be between 0 and %.0f", MaxStandHours)}
	}
	if sub.Steps < 0 || sub.Steps > MaxSteps {
		return &InvalidDataError{Reason: fmt.Sprintf("steps must be between 0 and %d", MaxSteps)}
	}

	day, err := time.Parse(CivilDateLayout, sub.Date)
	if err != nil {
		return &InvalidDataError{Reason: "date must be a valid calendar date in YYYY-MM-DD format"}
	}
	today := now.UTC().Format(CivilDateLayout)
	if sub.Date > today {
		return &InvalidDataError{Reason: "date cannot be in the future"}
	}
	oldest := now.UTC().AddDate(0, 0, -MaxSubmissionAge)
	if day.Before(time.Date(oldest.Year(), oldest.Month(), oldest.Day(), 0, 0, 0, 0, time.UTC)) {
		return &InvalidDataError{Reason: fmt.Sprintf("date cannot be more than %d days in the past", MaxSubmissionAge)}
	}
	return nil
}

// CalculateScore converts raw metrics + effective goals into ring percentages
// and the composite score. Percentages clamp at 100; TotalScore is the mean of
// the three, rounded half-up to 2 decimals.
func CalculateScore(sub *ActivitySubmission, moveGoal, exerciseGoal, standGoal float64) CalculatedScore {
	score := CalculatedScore{
		MovePercentage:     ringPercentage(sub.MoveCalories, moveGoal),
		ExercisePercentage: ringPercentage(sub.ExerciseMinutes, exerciseGoal),
		StandPercentage:    ringPercentage(sub.StandHours, standGoal),
	}
	for _, pct := range []float64{score.MovePercentage, score.ExercisePercentage, score.StandPercentage} {
		if pct >= 100 {
			score.RingsClosed++
		}
	}
	score.TotalScore = round2((score.MovePercentage + score.ExercisePercentage + score.StandPercentage) / 3)
	return score
}

func ringPercentage(raw, goal float64) float64 {
	if goal <= 0 {
		// Callers pass goals through UserProfile.EffectiveGoals, so this only
		// guards direct misuse.
		return 0
	}
	pct := raw / goal * 100
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// round2 rounds half-up to 2 decimal places.
func round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

type ScoreService struct {
	DB        *gorm.DB
	Standings *StandingsService
	Notifier  *NotificationService
}

func NewScoreService(db *gorm.DB, standings *StandingsService, notifier *NotificationService) *ScoreService {
	return &ScoreService{DB: db, Standings: standings, Notifier: notifier}
}

// EnsureProfile returns the user's profile, creating a default one on first
// contact (idempotent).
func (s *ScoreService) EnsureProfile(externalUserID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := s.DB.Where("external_user_id = ?", externalUserID).First(&profile).Error
	if err == gorm.ErrRecordNotFound {
		profile = models.UserProfile{
			ID:               uuid.NewString(),
			ExternalUserID:   externalUserID,
			ModerationStatus: models.ModerationStatusActive,
		}
		if err := s.DB.Create(&profile).Error; err != nil {
			return nil, err
		}
		return &profile, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// ProcessDailySubmission runs the full scoring pipeline for one submission:
// validate → score against server-held goals → idempotent upsert → rings
// notification → standings reconciliation. Reconciliation and notification
// failures are logged, never surfaced — the persisted record is the request's
// success criterion.
func (s *ScoreService) ProcessDailySubmission(sub *ActivitySubmission) (*CalculatedScore, error) {
	if err := ValidateSubmission(sub, time.Now()); err != nil {
		utils.SubmissionsRejected.Inc()
		return nil, err
	}

	profile, err := s.EnsureProfile(sub.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile for %s: %w", sub.UserID, err)
	}

	moveGoal, exerciseGoal, standGoal := profile.EffectiveGoals()
	score := CalculateScore(sub, moveGoal, exerciseGoal, standGoal)

	if err := s.upsertRecord(sub, &score); err != nil {
		return nil, fmt.Errorf("failed to persist activity record: %w", err)
	}
	utils.SubmissionsScored.Inc()
	log.Printf("📊 Scored %s on %s: total=%.2f rings=%d", sub.UserID, sub.Date, score.TotalScore, score.RingsClosed)

	// Best-effort side effects from here on.
	if score.RingsClosed == 3 {
		s.Notifier.NotifyRingsClosed(sub.UserID, sub.Date)
	}
	s.Standings.ReconcileAfterSubmission(sub.UserID, sub.Date)

	return &score, nil
}

// activityUpsertConflict makes the daily write idempotent on the (user, date)
// key: conflicts overwrite raw and derived fields. rings_closed_notified is
// deliberately absent from the update list so an already-sent notification
// stays sent across re-submissions.
var activityUpsertConflict = clause.OnConflict{
	Columns: []clause.Column{{Name: "external_user_id"}, {Name: "activity_date"}},
	DoUpdates: clause.AssignmentColumns([]string{
		"move_calories", "exercise_minutes", "stand_hours", "steps",
		"distance_meters", "workouts_completed",
		"move_percentage", "exercise_percentage", "stand_percentage",
		"total_score", "rings_closed", "updated_at",
	}),
}

// upsertRecord writes the one-per-(user,date) row.
func (s *ScoreService) upsertRecord(sub *ActivitySubmission, score *CalculatedScore) error {
	record := models.ActivityRecord{
		ID:                 uuid.NewString(),
		ExternalUserID:     sub.UserID,
		ActivityDate:       sub.Date,
		MoveCalories:       sub.MoveCalories,
		ExerciseMinutes:    sub.ExerciseMinutes,
		StandHours:         sub.StandHours,
		Steps:              sub.Steps,
		DistanceMeters:     sub.DistanceMeters,
		WorkoutsCompleted:  sub.WorkoutsCompleted,
		MovePercentage:     score.MovePercentage,
		ExercisePercentage: score.ExercisePercentage,
		StandPercentage:    score.StandPercentage,
		TotalScore:         score.TotalScore,
		RingsClosed:        score.RingsClosed,
	}

	return s.DB.Clauses(activityUpsertConflict).Create(&record).Error
}

// GetRecord fetches the persisted record for one (user, date).
func (s *ScoreService) GetRecord(externalUserID, date string) (*models.ActivityRecord, error) {
	var record models.ActivityRecord
	err := s.DB.Where("external_user_id = ? AND activity_date = ?", externalUserID, date).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}
