package services

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"movetogether-backend/models"
	"movetogether-backend/utils"

	"gorm.io/gorm"
)

// RankChange is one detected overtake: the submitter's score update pushed
// PassedUserID down the standings.
type RankChange struct {
	CompetitionID string `json:"competition_id"`
	PassedUserID  string `json:"passed_user_id"`
	PasserUserID  string `json:"passer_user_id"`
	PreviousRank  int    `json:"previous_rank"`
	NewRank       int    `json:"new_rank"`
}

// accumulationStrategy rolls per-day scoring results up into competition
// points. Selected per competition by ScoringType; parameters come from
// ScoringConfig. Deliberately pluggable — there is no single fixed formula.
type accumulationStrategy interface {
	Points(totalScore float64, ringsClosed int64) float64
}

// dailyPointsStrategy: sum of daily total scores plus a bonus per closed ring.
type dailyPointsStrategy struct {
	RingBonus float64
}

func (d dailyPointsStrategy) Points(totalScore float64, ringsClosed int64) float64 {
	return totalScore + d.RingBonus*float64(ringsClosed)
}

// ringsClosedStrategy: pure ring count, for "most rings wins" competitions.
type ringsClosedStrategy struct{}

func (ringsClosedStrategy) Points(_ float64, ringsClosed int64) float64 {
	return float64(ringsClosed)
}

const defaultRingBonus = 10.0

func strategyFor(comp *models.Competition) accumulationStrategy {
	switch comp.ScoringType {
	case models.ScoringTypeRingsClosed:
		return ringsClosedStrategy{}
	default:
		bonus := defaultRingBonus
		if comp.ScoringConfig != "" {
			var cfg struct {
				RingBonus *float64 `json:"ring_bonus"`
			}
			if err := json.Unmarshal([]byte(comp.ScoringConfig), &cfg); err == nil && cfg.RingBonus != nil && *cfg.RingBonus >= 0 {
				bonus = *cfg.RingBonus
			}
		}
		return dailyPointsStrategy{RingBonus: bonus}
	}
}

type StandingsService struct {
	DB       *gorm.DB
	Notifier *NotificationService
}

func NewStandingsService(db *gorm.DB, notifier *NotificationService) *StandingsService {
	return &StandingsService{DB: db, Notifier: notifier}
}

// ReconcileAfterSubmission recomputes standings for every active competition
// the user belongs to whose window contains the activity date, and fires
// overtake notifications for the rank diffs. A failure in one competition is
// logged and does not abort the others.
func (s *StandingsService) ReconcileAfterSubmission(externalUserID, date string) []RankChange {
	var comps []models.Competition
	err := s.DB.
		Joins("JOIN competition_participants cp ON cp.competition_id = competitions.id AND cp.deleted_at IS NULL").
		Where("cp.external_user_id = ?", externalUserID).
		Where("competitions.status = ?", models.CompetitionStatusActive).
		Where("competitions.start_date <= ? AND competitions.end_date >= ?", date, date).
		Find(&comps).Error
	if err != nil {
		log.Printf("❌ [STANDINGS] Failed to load competitions for %s: %v", externalUserID, err)
		return nil
	}

	var allChanges []RankChange
	for i := range comps {
		changes, err := s.reconcileCompetition(&comps[i], externalUserID, date)
		if err != nil {
			log.Printf("❌ [STANDINGS] Reconcile failed for competition %s: %v", comps[i].ID, err)
			continue
		}
		allChanges = append(allChanges, changes...)
	}

	for _, change := range allChanges {
		s.Notifier.NotifyRankOvertake(change, date)
		utils.OvertakeEvents.Inc()
	}
	return allChanges
}

// reconcileCompetition recomputes one competition's standings. The full new
// order is computed in memory before any rank field is persisted, so no reader
// ever sees a half-updated ranking.
func (s *StandingsService) reconcileCompetition(comp *models.Competition, submitterID, date string) ([]RankChange, error) {
	var participants []models.CompetitionParticipant
	if err := s.DB.
		Where("competition_id = ?", comp.ID).
		Order("joined_at ASC, id ASC").
		Find(&participants).Error; err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	if len(participants) == 0 {
		return nil, nil
	}

	before := snapshotRanks(participants)

	totals, err := s.windowTotals(comp, participants)
	if err != nil {
		return nil, err
	}
	strat := strategyFor(comp)
	for i := range participants {
		agg := totals[participants[i].ExternalUserID]
		participants[i].TotalPoints = round2(strat.Points(agg.TotalScore, agg.RingsClosed))
	}

	RankParticipants(participants)
	after := snapshotRanks(participants)

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		for i := range participants {
			if err := tx.Model(&models.CompetitionParticipant{}).
				Where("id = ?", participants[i].ID).
				Updates(map[string]interface{}{
					"total_points": participants[i].TotalPoints,
					"rank":         participants[i].Rank,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist ranks: %w", err)
	}

	return DiffOvertakes(comp.ID, submitterID, before, after), nil
}

type windowAggregate struct {
	TotalScore  float64
	RingsClosed int64
}

// windowTotals aggregates every participant's activity records inside the
// competition window in one query.
func (s *StandingsService) windowTotals(comp *models.Competition, participants []models.CompetitionParticipant) (map[string]windowAggregate, error) {
	userIDs := make([]string, 0, len(participants))
	for _, p := range participants {
		userIDs = append(userIDs, p.ExternalUserID)
	}

	type row struct {
		ExternalUserID string
		TotalScore     float64
		RingsClosed    int64
	}
	var rows []row
	err := s.DB.Raw(`
		SELECT external_user_id,
		       COALESCE(SUM(total_score), 0)  AS total_score,
		       COALESCE(SUM(rings_closed), 0) AS rings_closed
		FROM activity_records
		WHERE external_user_id IN ?
		  AND activity_date BETWEEN ? AND ?
		  AND deleted_at IS NULL
		GROUP BY external_user_id
	`, userIDs, comp.StartDate, comp.EndDate).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate window totals: %w", err)
	}

	totals := make(map[string]windowAggregate, len(rows))
	for _, r := range rows {
		totals[r.ExternalUserID] = windowAggregate{TotalScore: r.TotalScore, RingsClosed: r.RingsClosed}
	}
	return totals, nil
}

// RankParticipants sorts by points descending and assigns 1-based ranks.
// Ties keep the incoming order (participants are loaded ordered by JoinedAt,
// then id), so a tied newcomer never displaces an earlier joiner.
func RankParticipants(participants []models.CompetitionParticipant) {
	sort.SliceStable(participants, func(i, j int) bool {
		return participants[i].TotalPoints > participants[j].TotalPoints
	})
	for i := range participants {
		participants[i].Rank = i + 1
	}
}

func snapshotRanks(participants []models.CompetitionParticipant) map[string]int {
	snap := make(map[string]int, len(participants))
	for _, p := range participants {
		snap[p.ExternalUserID] = p.Rank
	}
	return snap
}

// DiffOvertakes compares before/after rank snapshots and returns one event per
// participant (other than the submitter) whose rank got numerically worse and
// now sits below the submitter's new rank. A participant with no previous rank
// (rank 0, never ranked) cannot be overtaken.
func DiffOvertakes(competitionID, submitterID string, before, after map[string]int) []RankChange {
	submitterRank, ok := after[submitterID]
	if !ok {
		return nil
	}

	var events []RankChange
	for userID, newRank := range after {
		if userID == submitterID {
			continue
		}
		prevRank, had := before[userID]
		if !had || prevRank == 0 {
			continue
		}
		if newRank > prevRank && newRank > submitterRank {
			events = append(events, RankChange{
				CompetitionID: competitionID,
				PassedUserID:  userID,
				PasserUserID:  submitterID,
				PreviousRank:  prevRank,
				NewRank:       newRank,
			})
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].NewRank < events[j].NewRank })
	return events
}

// GetStandings returns the ordered standings for a competition.
func (s *StandingsService) GetStandings(competitionID string) ([]models.CompetitionParticipant, error) {
	var participants []models.CompetitionParticipant
	err := s.DB.
		Where("competition_id = ?", competitionID).
		Order("rank ASC, joined_at ASC").
		Find(&participants).Error
	return participants, err
}
