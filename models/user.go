package models

import (
	"time"

	"gorm.io/gorm"
)

// Moderation statuses for a user account (global, not per-competition)
const (
	ModerationStatusActive    = "active"
	ModerationStatusSuspended = "suspended"
	ModerationStatusBanned    = "banned"
)

// Default ring goals applied when a profile has none set (or a non-positive one)
const (
	DefaultMoveGoal     = 500.0 // kcal
	DefaultExerciseGoal = 30.0  // minutes
	DefaultStandGoal    = 12.0  // hours
)

// UserProfile is the local snapshot of user data the scoring and moderation
// pipelines need. Identity itself lives in the auth service; ExternalUserID
// links to it. Display fields are populated via the profile sync worker.
type UserProfile struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"`

	DisplayName string  `gorm:"index" json:"display_name"`             // Denormalized from profile service
	AvatarURL   *string `json:"avatar_url,omitempty"`                  // Denormalized from profile service
	PushToken   string  `gorm:"type:text" json:"push_token,omitempty"` // device push token, empty = push disabled

	// Ring goals. 0 means "unset, use default" — resolved by EffectiveGoals.
	MoveGoal     float64 `json:"move_goal" gorm:"default:0"`
	ExerciseGoal float64 `json:"exercise_goal" gorm:"default:0"`
	StandGoal    float64 `json:"stand_goal" gorm:"default:0"`

	ModerationStatus string `json:"moderation_status" gorm:"type:varchar(16);default:'active'"`

	Timestamps
}

// EffectiveGoals resolves stored goals against the documented defaults.
// Goals are always read from here, never from a client submission.
func (p *UserProfile) EffectiveGoals() (move, exercise, stand float64) {
	move, exercise, stand = p.MoveGoal, p.ExerciseGoal, p.StandGoal
	if move <= 0 {
		move = DefaultMoveGoal
	}
	if exercise <= 0 {
		exercise = DefaultExerciseGoal
	}
	if stand <= 0 {
		stand = DefaultStandGoal
	}
	return
}

// HealthConnection mirrors OAuth token state for one (user, provider) pair.
// Refreshed by the provider registry; callers only read AccessToken through
// EnsureFreshToken.
type HealthConnection struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex:idx_health_conn_user_provider;not null" json:"external_user_id"`
	Provider       string `gorm:"uniqueIndex:idx_health_conn_user_provider;not null;type:varchar(32)" json:"provider"` // "fitbit", "googlefit"

	AccessToken  string     `gorm:"type:text" json:"-"`
	RefreshToken string     `gorm:"type:text" json:"-"`
	ExpiresAt    time.Time  `json:"expires_at"`
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
	SyncEnabled  bool       `json:"sync_enabled" gorm:"default:true"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
