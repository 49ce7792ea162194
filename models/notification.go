package models

import (
	"time"
)

// Notification kinds
const (
	NotificationKindRingsClosed  = "rings_closed"
	NotificationKindRankOvertake = "rank_overtake"
)

// Notification delivery statuses
const (
	NotificationStatusSent   = "sent"
	NotificationStatusFailed = "failed"
)

// NotificationRecord is the persisted idempotency table for outbound
// notifications: one row per (user, kind, dedup key). A conditional insert on
// the unique index decides whether delivery happens, so at-most-once holds
// across process restarts instead of depending on in-memory sets.
type NotificationRecord struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex:idx_notification_dedup;not null" json:"external_user_id"`
	Kind           string `gorm:"uniqueIndex:idx_notification_dedup;not null;type:varchar(32)" json:"kind"`
	DedupKey       string `gorm:"uniqueIndex:idx_notification_dedup;not null" json:"dedup_key"` // e.g., activity date, overtake event key

	Title  string `json:"title"`
	Body   string `json:"body" gorm:"type:text"`
	Status string `json:"status" gorm:"type:varchar(16);default:'sent'"`

	SentAt    time.Time `json:"sent_at" gorm:"autoCreateTime"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
