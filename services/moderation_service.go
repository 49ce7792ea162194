package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"movetogether-backend/models"
	"movetogether-backend/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Moderation thresholds and escalation constants
const (
	WarnThreshold   = 0.60
	BlockThreshold  = 0.70
	AutoMuteAfter   = 3 // auto-hidden flags within the window before a mute
	MuteDuration    = 24 * time.Hour
	ViolationWindow = time.Hour
	MaxMessageLen   = 2000
)

// ErrNotParticipant: the author has no membership row in the competition.
var ErrNotParticipant = errors.New("user is not a participant of this competition")

// ValidMessageLength bounds chat content to 1..MaxMessageLen characters.
// Counted in runes, not bytes, so multi-byte text is not penalized for its
// encoding.
func ValidMessageLength(content string) bool {
	n := utf8.RuneCountInString(content)
	return n >= 1 && n <= MaxMessageLen
}

// Fixed profanity blocklist. Matched case-insensitively on word boundaries, so
// a banned word inside a longer unrelated word never triggers.
var blockedWords = []string{
	"fuck", "shit", "bitch", "cunt", "asshole", "dickhead",
	"faggot", "nigger", "nigga", "retard", "whore", "slut",
}

var blocklistRe = regexp.MustCompile(`(?i)\b(` + strings.Join(blockedWords, "|") + `)\b`)

// MatchesBlocklist reports whether the message contains a blocklisted word on
// word boundaries.
func MatchesBlocklist(message string) bool {
	return blocklistRe.MatchString(message)
}

// ContentOutcome is the verdict of the content-only stages (blocklist +
// toxicity model), before any account/mute gating or persistence.
type ContentOutcome int

const (
	OutcomeClean ContentOutcome = iota
	OutcomeFlagged
	OutcomeBlockedProfanity
	OutcomeBlockedToxicity
)

// ContentVerdict carries the outcome plus the classifier evidence to persist.
type ContentVerdict struct {
	Outcome    ContentOutcome
	Score      float64
	Categories map[string]float64
	FailedOpen bool // classifier was down; message allowed by policy
}

// EvaluateContent runs the content stages in order: blocklist first (decisive,
// no model call), then the toxicity model against the warn/block thresholds.
// A classifier failure fails open: the verdict is clean, FailedOpen marks it
// for out-of-band reporting, and no error reaches the caller.
func EvaluateContent(ctx context.Context, client ToxicityClient, content string) ContentVerdict {
	if MatchesBlocklist(content) {
		return ContentVerdict{Outcome: OutcomeBlockedProfanity, Score: 1.0}
	}

	tox, err := client.ScoreMessage(ctx, content)
	if err != nil {
		log.Printf("⚠️ [MODERATION] Toxicity backend unavailable, failing open: %v", err)
		utils.ClassifierFailures.Inc()
		return ContentVerdict{Outcome: OutcomeClean, FailedOpen: true}
	}

	switch {
	case tox.Score >= BlockThreshold:
		return ContentVerdict{Outcome: OutcomeBlockedToxicity, Score: tox.Score, Categories: tox.Categories}
	case tox.Score >= WarnThreshold:
		return ContentVerdict{Outcome: OutcomeFlagged, Score: tox.Score, Categories: tox.Categories}
	default:
		return ContentVerdict{Outcome: OutcomeClean, Score: tox.Score, Categories: tox.Categories}
	}
}

// ModerationResult is the wire response for a moderation decision.
type ModerationResult struct {
	Allowed           bool       `json:"allowed"`
	Blocked           bool       `json:"blocked,omitempty"`
	Reason            string     `json:"reason,omitempty"`
	MutedUntil        *time.Time `json:"muted_until,omitempty"`
	WarningsRemaining *int       `json:"warnings_remaining,omitempty"`
}

type ModerationService struct {
	DB       *gorm.DB
	Toxicity ToxicityClient
}

func NewModerationService(db *gorm.DB, toxicity ToxicityClient) *ModerationService {
	return &ModerationService{DB: db, Toxicity: toxicity}
}

// ModerateMessage classifies an outbound chat message. Gates run in order and
// short-circuit on the first decisive outcome:
// account status → competition mute → profanity blocklist → toxicity model.
//
// The toxicity backend failing is NOT an error for the caller: the pipeline
// fails open and the message goes through. Chat must not break globally
// because a third-party classifier is down.
func (s *ModerationService) ModerateMessage(ctx context.Context, authorID, competitionID, messageID, content string) (*ModerationResult, error) {
	now := time.Now()

	// 1. Account-status gate — terminal regardless of content.
	var profile models.UserProfile
	err := s.DB.Where("external_user_id = ?", authorID).First(&profile).Error
	switch {
	case err == nil:
		if profile.ModerationStatus == models.ModerationStatusSuspended ||
			profile.ModerationStatus == models.ModerationStatusBanned {
			utils.MessagesBlocked.WithLabelValues("account_status").Inc()
			return &ModerationResult{
				Allowed: false,
				Blocked: true,
				Reason:  "account_" + profile.ModerationStatus,
			}, nil
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// No mirrored profile yet — nothing to gate on.
	default:
		return nil, fmt.Errorf("failed to load author profile: %w", err)
	}

	// 2. Mute gate for this competition.
	var participant models.CompetitionParticipant
	err = s.DB.Where("competition_id = ? AND external_user_id = ?", competitionID, authorID).
		First(&participant).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrNotParticipant
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load participant: %w", err)
	}
	if participant.IsMuted && participant.MutedUntil != nil {
		if participant.MutedUntil.After(now) {
			utils.MessagesBlocked.WithLabelValues("muted").Inc()
			return &ModerationResult{
				Allowed:    false,
				Blocked:    true,
				Reason:     "muted",
				MutedUntil: participant.MutedUntil,
			}, nil
		}
		// Mute expired — clear it lazily.
		s.DB.Model(&participant).Updates(map[string]interface{}{"is_muted": false, "muted_until": nil})
	}

	if messageID == "" {
		messageID = uuid.NewString()
	}

	// 3+4. Content stages: blocklist, then toxicity model (fail open).
	verdict := EvaluateContent(ctx, s.Toxicity, content)

	switch verdict.Outcome {
	case OutcomeBlockedProfanity, OutcomeBlockedToxicity:
		reason := "profanity"
		gate := "profanity"
		if verdict.Outcome == OutcomeBlockedToxicity {
			reason = "toxicity"
			gate = "toxicity"
		}
		s.persistFlag(&models.ChatMessageFlag{
			MessageID:     messageID,
			CompetitionID: competitionID,
			AuthorID:      authorID,
			ToxicityScore: verdict.Score,
			Categories:    marshalCategories(verdict.Categories),
			Reason:        reason,
			IsHidden:      true,
			AutoHidden:    true,
		})
		utils.MessagesBlocked.WithLabelValues(gate).Inc()
		return s.maybeEscalate(&participant, authorID, competitionID, now, &ModerationResult{
			Allowed: false,
			Blocked: true,
			Reason:  reason,
		}), nil

	case OutcomeFlagged:
		// Borderline: allowed through, flagged for human review.
		s.persistFlag(&models.ChatMessageFlag{
			MessageID:     messageID,
			CompetitionID: competitionID,
			AuthorID:      authorID,
			ToxicityScore: verdict.Score,
			Categories:    marshalCategories(verdict.Categories),
			Reason:        "toxicity",
			IsHidden:      false,
			AutoHidden:    false,
		})
		remaining := AutoMuteAfter - s.recentAutoHiddenCount(competitionID, authorID, now.Add(-ViolationWindow))
		if remaining < 0 {
			remaining = 0
		}
		utils.MessagesFlagged.Inc()
		return &ModerationResult{Allowed: true, WarningsRemaining: &remaining}, nil

	default:
		return &ModerationResult{Allowed: true}, nil
	}
}

// escalationFor converts a recent auto-hidden count into a mute decision.
// The count includes the current block and the threshold is inclusive: the
// third auto-hidden block inside the window mutes until now + MuteDuration.
func escalationFor(autoHiddenCount int, now time.Time) (muted bool, mutedUntil time.Time) {
	if autoHiddenCount < AutoMuteAfter {
		return false, time.Time{}
	}
	return true, now.Add(MuteDuration)
}

// maybeEscalate counts the author's recent auto-hidden flags (the current
// block included) and converts the plain block into a mute once the threshold
// is hit.
func (s *ModerationService) maybeEscalate(participant *models.CompetitionParticipant, authorID, competitionID string, now time.Time, blocked *ModerationResult) *ModerationResult {
	count := s.recentAutoHiddenCount(competitionID, authorID, now.Add(-ViolationWindow))
	muted, mutedUntil := escalationFor(count, now)
	if !muted {
		return blocked
	}

	err := s.DB.Model(&models.CompetitionParticipant{}).
		Where("id = ?", participant.ID).
		Updates(map[string]interface{}{"is_muted": true, "muted_until": mutedUntil}).Error
	if err != nil {
		log.Printf("❌ [MODERATION] Failed to mute %s in %s: %v", authorID, competitionID, err)
		return blocked
	}

	log.Printf("🔇 [MODERATION] Auto-muted %s in competition %s until %s (%d violations in window)",
		authorID, competitionID, mutedUntil.Format(time.RFC3339), count)
	utils.AutoMutes.Inc()
	return &ModerationResult{
		Allowed:    false,
		Blocked:    true,
		Reason:     "muted",
		MutedUntil: &mutedUntil,
	}
}

// recentAutoHiddenCount counts auto-hidden flags in the trailing window,
// deduplicated by message_id so one message flagged twice can't double-count
// toward a mute.
func (s *ModerationService) recentAutoHiddenCount(competitionID, authorID string, since time.Time) int {
	var count int64
	err := s.DB.Model(&models.ChatMessageFlag{}).
		Distinct("message_id").
		Where("competition_id = ? AND author_id = ? AND auto_hidden = ? AND created_at >= ?",
			competitionID, authorID, true, since).
		Count(&count).Error
	if err != nil {
		log.Printf("⚠️ [MODERATION] Failed to count recent flags for %s: %v", authorID, err)
		return 0
	}
	return int(count)
}

func (s *ModerationService) persistFlag(flag *models.ChatMessageFlag) {
	flag.ID = uuid.NewString()
	if err := s.DB.Create(flag).Error; err != nil {
		// An unpersisted flag weakens escalation counting but must not turn a
		// moderation decision into a hard failure.
		log.Printf("❌ [MODERATION] Failed to persist flag for message %s: %v", flag.MessageID, err)
	}
}

// marshalCategories serializes the category breakdown for the jsonb column.
// Always valid JSON: an empty breakdown becomes an empty object, never the
// empty string (which postgres rejects as jsonb).
func marshalCategories(categories map[string]float64) string {
	if len(categories) == 0 {
		return "{}"
	}
	data, err := json.Marshal(categories)
	if err != nil {
		return "{}"
	}
	return string(data)
}
