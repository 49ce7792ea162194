package models

import (
	"time"
)

// ChatMessageFlag is the immutable audit row written whenever the moderation
// pipeline blocks a message or flags a borderline one for human review.
// Never updated after insert; the escalation counter reads recent rows with
// AutoHidden = true.
type ChatMessageFlag struct {
	ID            string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	MessageID     string `gorm:"index;not null" json:"message_id"`
	CompetitionID string `gorm:"index:idx_flag_comp_author;not null" json:"competition_id"`
	AuthorID      string `gorm:"index:idx_flag_comp_author;not null" json:"author_id"`

	ToxicityScore float64 `json:"toxicity_score"`
	Categories    string  `json:"categories,omitempty" gorm:"type:jsonb"` // category → score breakdown
	Reason        string  `json:"reason" gorm:"type:varchar(32)"`         // "profanity", "toxicity"

	IsHidden   bool `json:"is_hidden" gorm:"default:false"`
	AutoHidden bool `json:"auto_hidden" gorm:"default:false;index"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}
