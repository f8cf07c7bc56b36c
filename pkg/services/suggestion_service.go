package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ideaflow-inc/ideaflow-engine/pkg/apperrors"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/models"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/repositories"
)

// SuggestionCreateResult counts the outcome of a bulk suggestion insert.
type SuggestionCreateResult struct {
	Created int `json:"created"`
	// Skipped candidates already had a suggestion for the same pair.
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// SuggestionService manages the duplicate suggestion lifecycle.
type SuggestionService interface {
	// CreateSuggestions persists candidates as PENDING suggestions. A failing
	// insert is logged and counted; the rest are still attempted.
	CreateSuggestions(ctx context.Context, workspaceID uuid.UUID, candidates []models.DuplicateCandidate) (SuggestionCreateResult, error)
	List(ctx context.Context, workspaceID uuid.UUID, filter repositories.SuggestionListFilter) ([]*models.SuggestionWithIdeas, error)
	Dismiss(ctx context.Context, workspaceID, suggestionID uuid.UUID, reviewer string) (*models.DuplicateSuggestion, error)
	Merge(ctx context.Context, workspaceID, suggestionID, keepIdeaID uuid.UUID, reviewer string) (*models.MergeResult, error)
}

type suggestionService struct {
	suggestionRepo repositories.SuggestionRepository
	mergeRepo      repositories.MergeRepository
	logger         *zap.Logger
}

// NewSuggestionService creates the suggestion lifecycle service.
func NewSuggestionService(
	suggestionRepo repositories.SuggestionRepository,
	mergeRepo repositories.MergeRepository,
	logger *zap.Logger,
) SuggestionService {
	return &suggestionService{
		suggestionRepo: suggestionRepo,
		mergeRepo:      mergeRepo,
		logger:         logger.Named("suggestion-service"),
	}
}

var _ SuggestionService = (*suggestionService)(nil)

func (s *suggestionService) CreateSuggestions(ctx context.Context, workspaceID uuid.UUID, candidates []models.DuplicateCandidate) (SuggestionCreateResult, error) {
	var res SuggestionCreateResult
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		inserted, err := s.suggestionRepo.Create(ctx, workspaceID, c)
		if err != nil {
			res.Failed++
			s.logger.Warn("Failed to create suggestion",
				zap.String("workspace_id", workspaceID.String()),
				zap.String("source_idea_id", c.SourceIdeaID.String()),
				zap.String("duplicate_idea_id", c.DuplicateIdeaID.String()),
				zap.Error(err))
			continue
		}
		if inserted {
			res.Created++
		} else {
			res.Skipped++
		}
	}
	return res, nil
}

func (s *suggestionService) List(ctx context.Context, workspaceID uuid.UUID, filter repositories.SuggestionListFilter) ([]*models.SuggestionWithIdeas, error) {
	if filter.Status != nil && !models.IsValidSuggestionStatus(*filter.Status) {
		return nil, fmt.Errorf("invalid status filter %q: %w", *filter.Status, apperrors.ErrValidation)
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.suggestionRepo.ListWithIdeas(ctx, workspaceID, filter)
}

func (s *suggestionService) Dismiss(ctx context.Context, workspaceID, suggestionID uuid.UUID, reviewer string) (*models.DuplicateSuggestion, error) {
	sug, err := s.suggestionRepo.Dismiss(ctx, workspaceID, suggestionID, reviewer)
	if err != nil {
		if !isPreconditionError(err) {
			s.logger.Error("Failed to dismiss suggestion",
				zap.String("workspace_id", workspaceID.String()),
				zap.String("suggestion_id", suggestionID.String()),
				zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("Suggestion dismissed",
		zap.String("workspace_id", workspaceID.String()),
		zap.String("suggestion_id", suggestionID.String()))
	return sug, nil
}

func (s *suggestionService) Merge(ctx context.Context, workspaceID, suggestionID, keepIdeaID uuid.UUID, reviewer string) (*models.MergeResult, error) {
	if keepIdeaID == uuid.Nil {
		return nil, apperrors.ErrInvalidKeepID
	}

	result, err := s.mergeRepo.Merge(ctx, workspaceID, suggestionID, keepIdeaID, reviewer)
	if err != nil {
		if !isPreconditionError(err) {
			s.logger.Error("Merge failed",
				zap.String("workspace_id", workspaceID.String()),
				zap.String("suggestion_id", suggestionID.String()),
				zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("Ideas merged",
		zap.String("workspace_id", workspaceID.String()),
		zap.String("suggestion_id", suggestionID.String()),
		zap.String("kept_idea_id", result.KeptIdeaID.String()),
		zap.String("merged_idea_id", result.MergedIdeaID.String()),
		zap.Int("votes_transferred", result.VotesTransferred),
		zap.Int("dismissed_suggestions", result.DismissedCascaded))
	return result, nil
}

// isPreconditionError reports errors the caller caused and can act on.
func isPreconditionError(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound) ||
		errors.Is(err, apperrors.ErrConflict) ||
		errors.Is(err, apperrors.ErrValidation)
}
