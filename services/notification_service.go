package services

import (
	"fmt"
	"log"

	"movetogether-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationService fires push notifications with persisted at-most-once
// semantics. Every send goes through the NotificationRecord idempotency table,
// so dedup survives restarts instead of living in a process-local set.
// All sends are fire-and-forget from the caller's perspective: a delivery
// failure is logged, never returned.
type NotificationService struct {
	DB   *gorm.DB
	Push *PushClient
}

func NewNotificationService(db *gorm.DB, push *PushClient) *NotificationService {
	return &NotificationService{DB: db, Push: push}
}

// NotifyRingsClosed congratulates a user for closing all three rings — at most
// once per (user, date). The RingsClosedNotified flag on the record is the
// guard; checked-then-set, the small race window is acceptable for an advisory
// notification.
func (n *NotificationService) NotifyRingsClosed(externalUserID, date string) {
	var record models.ActivityRecord
	err := n.DB.Where("external_user_id = ? AND activity_date = ?", externalUserID, date).First(&record).Error
	if err != nil {
		log.Printf("⚠️ [NOTIFY] No activity record for %s on %s: %v", externalUserID, date, err)
		return
	}
	if record.RingsClosedNotified {
		return
	}

	n.sendOnce(externalUserID, models.NotificationKindRingsClosed, date,
		"All rings closed! 🎉",
		fmt.Sprintf("You closed all three rings on %s. Keep it up!", date))

	if err := n.DB.Model(&models.ActivityRecord{}).
		Where("id = ?", record.ID).
		Update("rings_closed_notified", true).Error; err != nil {
		log.Printf("⚠️ [NOTIFY] Failed to set rings_closed_notified for %s/%s: %v", externalUserID, date, err)
	}
}

// NotifyRankOvertake tells a passed user they lost their spot. Called exactly
// once per diffed event per reconciliation pass; the dedup key additionally
// pins (competition, passer, date, rank) so a retried reconcile cannot
// double-send.
func (n *NotificationService) NotifyRankOvertake(change RankChange, date string) {
	dedupKey := fmt.Sprintf("%s:%s:%s:%d", change.CompetitionID, change.PasserUserID, date, change.NewRank)
	n.sendOnce(change.PassedUserID, models.NotificationKindRankOvertake, dedupKey,
		"You've been overtaken!",
		fmt.Sprintf("You dropped from rank %d to rank %d. Time to move!", change.PreviousRank, change.NewRank))
}

// sendOnce inserts the idempotency row and delivers only when the insert won.
// OnConflict DoNothing on the (user, kind, dedup_key) unique index makes the
// decision atomic in the database.
func (n *NotificationService) sendOnce(externalUserID, kind, dedupKey, title, body string) {
	record := models.NotificationRecord{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		Kind:           kind,
		DedupKey:       dedupKey,
		Title:          title,
		Body:           body,
		Status:         models.NotificationStatusSent,
	}
	res := n.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_user_id"}, {Name: "kind"}, {Name: "dedup_key"}},
		DoNothing: true,
	}).Create(&record)
	if res.Error != nil {
		log.Printf("⚠️ [NOTIFY] Failed to record %s notification for %s: %v", kind, externalUserID, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		// Already sent — dedup hit.
		return
	}

	var profile models.UserProfile
	if err := n.DB.Where("external_user_id = ?", externalUserID).First(&profile).Error; err != nil || profile.PushToken == "" {
		log.Printf("📪 [NOTIFY] No push token for %s, recorded %s without delivery", externalUserID, kind)
		return
	}

	if err := n.Push.Send(profile.PushToken, title, body, map[string]string{"kind": kind}); err != nil {
		log.Printf("❌ [NOTIFY] Push delivery failed for %s (%s): %v", externalUserID, kind, err)
		n.DB.Model(&models.NotificationRecord{}).
			Where("id = ?", record.ID).
			Update("status", models.NotificationStatusFailed)
		return
	}
	log.Printf("📨 [NOTIFY] Sent %s to %s", kind, externalUserID)
}
