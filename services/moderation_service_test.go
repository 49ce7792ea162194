package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// stubToxicityClient returns a fixed score or error, no HTTP involved.
type stubToxicityClient struct {
	result *ToxicityResult
	err    error
}

func (s *stubToxicityClient) ScoreMessage(_ context.Context, _ string) (*ToxicityResult, error) {
	return s.result, s.err
}

func TestMatchesBlocklist(t *testing.T) {
	require.True(t, MatchesBlocklist("what the fuck"))
	require.True(t, MatchesBlocklist("FUCK this"))
	require.True(t, MatchesBlocklist("you absolute Shit."))
	require.False(t, MatchesBlocklist("great workout today"))
	// Word boundaries: blocklisted words inside longer words don't match.
	require.False(t, MatchesBlocklist("a classic scunthorpe problem"))
	require.False(t, MatchesBlocklist("shiitake mushrooms"))
}

func TestEvaluateContentBlocklistSkipsClassifier(t *testing.T) {
	// A blocklist hit must be decisive even when the classifier would error.
	client := &stubToxicityClient{err: errors.New("should not be called")}
	verdict := EvaluateContent(context.Background(), client, "oh shit")

	require.Equal(t, OutcomeBlockedProfanity, verdict.Outcome)
	require.Equal(t, 1.0, verdict.Score)
	require.False(t, verdict.FailedOpen)
}

func TestEvaluateContentThresholds(t *testing.T) {
	cases := []struct {
		score   float64
		outcome ContentOutcome
	}{
		{0.10, OutcomeClean},
		{0.59, OutcomeClean},
		{0.60, OutcomeFlagged},
		{0.699, OutcomeFlagged},
		{0.70, OutcomeBlockedToxicity},
		{0.99, OutcomeBlockedToxicity},
	}
	for _, tc := range cases {
		client := &stubToxicityClient{result: &ToxicityResult{
			Score:      tc.score,
			Categories: map[string]float64{"TOXICITY": tc.score},
		}}
		verdict := EvaluateContent(context.Background(), client, "borderline message")
		require.Equalf(t, tc.outcome, verdict.Outcome, "score %.3f", tc.score)
		require.Equal(t, tc.score, verdict.Score)
		require.False(t, verdict.FailedOpen)
	}
}

func TestEvaluateContentFailsOpenOnClassifierError(t *testing.T) {
	client := &stubToxicityClient{err: errors.New("upstream 503")}
	verdict := EvaluateContent(context.Background(), client, "hello there")

	require.Equal(t, OutcomeClean, verdict.Outcome)
	require.True(t, verdict.FailedOpen)
}

func TestEvaluateContentCarriesCategories(t *testing.T) {
	client := &stubToxicityClient{result: &ToxicityResult{
		Score:      0.85,
		Categories: map[string]float64{"TOXICITY": 0.85, "INSULT": 0.72},
	}}
	verdict := EvaluateContent(context.Background(), client, "rude message")

	require.Equal(t, OutcomeBlockedToxicity, verdict.Outcome)
	require.Equal(t, 0.72, verdict.Categories["INSULT"])
}

func TestMarshalCategoriesAlwaysValidJSON(t *testing.T) {
	// The jsonb column rejects the empty string; an empty breakdown must
	// serialize as an empty object.
	require.Equal(t, "{}", marshalCategories(nil))
	require.Equal(t, "{}", marshalCategories(map[string]float64{}))
	require.JSONEq(t, `{"TOXICITY":0.9}`, marshalCategories(map[string]float64{"TOXICITY": 0.9}))
}

func TestValidMessageLengthCountsRunes(t *testing.T) {
	require.False(t, ValidMessageLength(""))
	require.True(t, ValidMessageLength("a"))
	require.True(t, ValidMessageLength(strings.Repeat("a", MaxMessageLen)))
	require.False(t, ValidMessageLength(strings.Repeat("a", MaxMessageLen+1)))

	// 1500 CJK characters exceed the bound in bytes but not in characters.
	msg := strings.Repeat("走", 1500)
	require.Greater(t, len(msg), MaxMessageLen)
	require.True(t, ValidMessageLength(msg))
}

func TestEscalationThreshold(t *testing.T) {
	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

	muted, _ := escalationFor(1, now)
	require.False(t, muted)
	muted, _ = escalationFor(AutoMuteAfter-1, now)
	require.False(t, muted)

	// The third auto-hidden block in the window mutes for exactly 24 hours
	// from the block's timestamp.
	muted, mutedUntil := escalationFor(AutoMuteAfter, now)
	require.True(t, muted)
	require.Equal(t, now.Add(24*time.Hour), mutedUntil)

	muted, mutedUntil = escalationFor(AutoMuteAfter+2, now)
	require.True(t, muted)
	require.Equal(t, now.Add(MuteDuration), mutedUntil)
}

func TestModerateMessageFailsOnProfileLoadError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	// A real store failure (not a missing row) must fail the request instead
	// of silently skipping the account-status gate.
	mock.ExpectQuery(`SELECT (.+) FROM "user_profiles"`).
		WillReturnError(errors.New("connection reset by peer"))

	svc := NewModerationService(gormDB, &stubToxicityClient{result: &ToxicityResult{Score: 0.1}})
	_, err = svc.ModerateMessage(context.Background(), "author-1", "comp-1", "", "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection reset by peer")
	require.NoError(t, mock.ExpectationsWereMet())
}
