package models

import (
	"time"
)

// Competition lifecycle statuses. Transitions are driven by the status
// scheduler: upcoming → active on StartDate, active → completed after EndDate.
const (
	CompetitionStatusUpcoming  = "upcoming"
	CompetitionStatusActive    = "active"
	CompetitionStatusCompleted = "completed"
)

// Scoring types — selects the point-accumulation strategy used by the
// standings reconciler. ScoringConfig carries strategy parameters as JSON
// (e.g., {"ring_bonus": 10}).
const (
	ScoringTypeDailyPoints = "daily_points"
	ScoringTypeRingsClosed = "rings_closed"
)

// Competition represents a standings-style fitness competition between users.
// StartDate/EndDate are civil dates ("2006-01-02"); an activity record only
// affects standings when its date falls inside [StartDate, EndDate] and the
// competition is active.
type Competition struct {
	ID          string `json:"id" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"not null"`
	Description string `json:"description"`
	OwnerID     string `json:"owner_id" gorm:"index;not null"`
	InviteCode  string `json:"invite_code" gorm:"uniqueIndex;not null"`

	StartDate string `json:"start_date" gorm:"not null;type:varchar(10)"`
	EndDate   string `json:"end_date" gorm:"not null;type:varchar(10)"`
	Status    string `json:"status" gorm:"type:varchar(16);default:'upcoming';index"`

	ScoringType   string `json:"scoring_type" gorm:"type:varchar(32);default:'daily_points'"`
	ScoringConfig string `json:"scoring_config,omitempty" gorm:"type:jsonb"`

	MaxParticipants int  `json:"max_participants" gorm:"default:0"` // 0 = unlimited
	IsPrivate       bool `json:"is_private" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	Participants []CompetitionParticipant `json:"participants,omitempty" gorm:"foreignKey:CompetitionID"`

	// Calculated fields (not stored in DB)
	ParticipantCount int64 `json:"participant_count,omitempty" gorm:"-"`
}

// CompetitionParticipant is the membership row for one user in one
// competition. TotalPoints and Rank are mutated only by the standings
// reconciler; IsMuted/MutedUntil only by the moderation pipeline.
type CompetitionParticipant struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	CompetitionID  string `gorm:"uniqueIndex:idx_participant_comp_user;not null" json:"competition_id"`
	ExternalUserID string `gorm:"uniqueIndex:idx_participant_comp_user;not null" json:"external_user_id"`

	DisplayName string `json:"display_name"` // Denormalized for standings views

	TotalPoints float64 `json:"total_points" gorm:"default:0"`
	Rank        int     `json:"rank" gorm:"default:0"` // 0 = not ranked yet

	// Chat moderation state, scoped to this competition
	IsMuted    bool       `json:"is_muted" gorm:"default:false"`
	MutedUntil *time.Time `json:"muted_until,omitempty"`

	JoinedAt time.Time `json:"joined_at" gorm:"autoCreateTime"` // tie-break order for ranking

	Timestamps
}
