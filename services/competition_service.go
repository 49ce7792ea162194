package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"movetogether-backend/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

var (
	ErrCompetitionNotFound = errors.New("competition not found")
	ErrCompetitionFull     = errors.New("competition is full")
	ErrAlreadyJoined       = errors.New("user already joined this competition")
)

type CompetitionService struct {
	DB *gorm.DB
}

func NewCompetitionService(db *gorm.DB) *CompetitionService {
	return &CompetitionService{DB: db}
}

// CreateCompetitionInput carries the validated payload from the API layer.
type CreateCompetitionInput struct {
	Name            string
	Description     string
	StartDate       string // "2006-01-02"
	EndDate         string
	ScoringType     string
	ScoringConfig   string
	MaxParticipants int
	IsPrivate       bool
}

// CreateCompetition creates a competition and auto-joins the owner. The invite
// code is a slug of the name plus a short random suffix, so codes stay
// human-readable without colliding.
func (s *CompetitionService) CreateCompetition(ownerID, ownerName string, input CreateCompetitionInput) (*models.Competition, error) {
	if input.Name == "" || input.StartDate == "" || input.EndDate == "" {
		return nil, &InvalidDataError{Reason: "name, start_date and end_date are required"}
	}
	if _, err := time.Parse(CivilDateLayout, input.StartDate); err != nil {
		return nil, &InvalidDataError{Reason: "invalid start_date (use YYYY-MM-DD)"}
	}
	if _, err := time.Parse(CivilDateLayout, input.EndDate); err != nil {
		return nil, &InvalidDataError{Reason: "invalid end_date (use YYYY-MM-DD)"}
	}
	if input.EndDate < input.StartDate {
		return nil, &InvalidDataError{Reason: "end_date must not be before start_date"}
	}
	scoringType := input.ScoringType
	if scoringType == "" {
		scoringType = models.ScoringTypeDailyPoints
	}
	if scoringType != models.ScoringTypeDailyPoints && scoringType != models.ScoringTypeRingsClosed {
		return nil, &InvalidDataError{Reason: fmt.Sprintf("unknown scoring_type %q", scoringType)}
	}
	scoringConfig, err := normalizeScoringConfig(input.ScoringConfig)
	if err != nil {
		return nil, err
	}

	inviteCode := slug.Make(input.Name) + "-" + strings.Split(uuid.NewString(), "-")[0]

	comp := &models.Competition{
		ID:              uuid.NewString(),
		Name:            input.Name,
		Description:     input.Description,
		OwnerID:         ownerID,
		InviteCode:      inviteCode,
		StartDate:       input.StartDate,
		EndDate:         input.EndDate,
		Status:          statusForWindow(input.StartDate, input.EndDate, time.Now()),
		ScoringType:     scoringType,
		ScoringConfig:   scoringConfig,
		MaxParticipants: input.MaxParticipants,
		IsPrivate:       input.IsPrivate,
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(comp).Error; err != nil {
			return err
		}
		owner := models.CompetitionParticipant{
			ID:             uuid.NewString(),
			CompetitionID:  comp.ID,
			ExternalUserID: ownerID,
			DisplayName:    ownerName,
		}
		return tx.Create(&owner).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create competition: %w", err)
	}

	return comp, nil
}

// normalizeScoringConfig guarantees the jsonb column only ever receives valid
// JSON: absent config becomes the empty object (postgres rejects '' as jsonb),
// malformed config is rejected outright.
func normalizeScoringConfig(raw string) (string, error) {
	if raw == "" {
		return "{}", nil
	}
	if !json.Valid([]byte(raw)) {
		return "", &InvalidDataError{Reason: "scoring_config must be valid JSON"}
	}
	return raw, nil
}

// statusForWindow derives the initial status from the window and today's date.
func statusForWindow(startDate, endDate string, now time.Time) string {
	today := now.UTC().Format(CivilDateLayout)
	switch {
	case today < startDate:
		return models.CompetitionStatusUpcoming
	case today > endDate:
		return models.CompetitionStatusCompleted
	default:
		return models.CompetitionStatusActive
	}
}

// JoinByInviteCode adds a user to a competition. Completed competitions cannot
// be joined; capacity is enforced when MaxParticipants is set.
func (s *CompetitionService) JoinByInviteCode(externalUserID, displayName, inviteCode string) (*models.Competition, error) {
	var comp models.Competition
	if err := s.DB.Where("invite_code = ?", inviteCode).First(&comp).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrCompetitionNotFound
		}
		return nil, err
	}
	if comp.Status == models.CompetitionStatusCompleted {
		return nil, &InvalidDataError{Reason: "competition has already completed"}
	}

	var existing int64
	s.DB.Model(&models.CompetitionParticipant{}).
		Where("competition_id = ? AND external_user_id = ?", comp.ID, externalUserID).
		Count(&existing)
	if existing > 0 {
		return nil, ErrAlreadyJoined
	}

	if comp.MaxParticipants > 0 {
		var count int64
		s.DB.Model(&models.CompetitionParticipant{}).
			Where("competition_id = ?", comp.ID).
			Count(&count)
		if count >= int64(comp.MaxParticipants) {
			return nil, ErrCompetitionFull
		}
	}

	participant := models.CompetitionParticipant{
		ID:             uuid.NewString(),
		CompetitionID:  comp.ID,
		ExternalUserID: externalUserID,
		DisplayName:    displayName,
	}
	if err := s.DB.Create(&participant).Error; err != nil {
		return nil, fmt.Errorf("failed to join competition: %w", err)
	}
	return &comp, nil
}

// Leave removes a user's participant row (soft delete, preserved for history).
func (s *CompetitionService) Leave(competitionID, externalUserID string) error {
	res := s.DB.Where("competition_id = ? AND external_user_id = ?", competitionID, externalUserID).
		Delete(&models.CompetitionParticipant{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotParticipant
	}
	return nil
}

// GetCompetition fetches one competition with its participant count.
func (s *CompetitionService) GetCompetition(competitionID string) (*models.Competition, error) {
	var comp models.Competition
	if err := s.DB.First(&comp, "id = ?", competitionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrCompetitionNotFound
		}
		return nil, err
	}
	s.DB.Model(&models.CompetitionParticipant{}).
		Where("competition_id = ?", comp.ID).
		Count(&comp.ParticipantCount)
	return &comp, nil
}

// IsParticipant reports whether a user belongs to a competition. Private
// competitions reject standings reads from non-participants.
func (s *CompetitionService) IsParticipant(competitionID, externalUserID string) (bool, error) {
	var count int64
	err := s.DB.Model(&models.CompetitionParticipant{}).
		Where("competition_id = ? AND external_user_id = ?", competitionID, externalUserID).
		Count(&count).Error
	return count > 0, err
}

// ListForUser returns every competition a user participates in, newest first.
func (s *CompetitionService) ListForUser(externalUserID string) ([]models.Competition, error) {
	var comps []models.Competition
	err := s.DB.
		Joins("JOIN competition_participants cp ON cp.competition_id = competitions.id AND cp.deleted_at IS NULL").
		Where("cp.external_user_id = ?", externalUserID).
		Order("competitions.created_at DESC").
		Find(&comps).Error
	return comps, err
}
