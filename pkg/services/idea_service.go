package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ideaflow-inc/ideaflow-engine/pkg/apperrors"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/logging"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/models"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/repositories"
)

// IdeaService applies idea changes that affect duplicate detection.
type IdeaService interface {
	// Create stores a new idea and schedules its embedding.
	Create(ctx context.Context, idea *models.Idea) error
	// UpdateContent saves new text and schedules a re-embedding.
	UpdateContent(ctx context.Context, workspaceID, ideaID uuid.UUID, title string, description, problemStatement *string) (*models.Idea, error)
	// UpdateRoadmapStatus changes the roadmap status; moving an idea onto the
	// roadmap dismisses its pending suggestions. Returns how many were dismissed.
	UpdateRoadmapStatus(ctx context.Context, workspaceID, ideaID uuid.UUID, status models.RoadmapStatus, reviewer string) (int, error)
	// Vote records a contributor's vote. Repeat votes are no-ops.
	Vote(ctx context.Context, vote *models.Vote) (bool, error)
}

type ideaService struct {
	ideaRepo repositories.IdeaRepository
	voteRepo repositories.VoteRepository
	embedder EmbeddingEnqueuer
	logger   *zap.Logger
}

// NewIdeaService creates the idea service.
func NewIdeaService(
	ideaRepo repositories.IdeaRepository,
	voteRepo repositories.VoteRepository,
	embedder EmbeddingEnqueuer,
	logger *zap.Logger,
) IdeaService {
	return &ideaService{
		ideaRepo: ideaRepo,
		voteRepo: voteRepo,
		embedder: embedder,
		logger:   logger.Named("idea-service"),
	}
}

var _ IdeaService = (*ideaService)(nil)

func (s *ideaService) Create(ctx context.Context, idea *models.Idea) error {
	idea.Title = strings.TrimSpace(idea.Title)
	if idea.Title == "" {
		return fmt.Errorf("title is required: %w", apperrors.ErrValidation)
	}
	if idea.Status == models.IdeaStatusMerged || idea.MergedIntoID != nil {
		return fmt.Errorf("ideas cannot be created merged: %w", apperrors.ErrValidation)
	}

	if err := s.ideaRepo.Create(ctx, idea); err != nil {
		return err
	}
	s.embedder.Enqueue(idea.WorkspaceID, idea.ID)
	return nil
}

func (s *ideaService) UpdateContent(ctx context.Context, workspaceID, ideaID uuid.UUID, title string, description, problemStatement *string) (*models.Idea, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", apperrors.ErrValidation)
	}

	idea, err := s.ideaRepo.UpdateContent(ctx, workspaceID, ideaID, title, description, problemStatement)
	if err != nil {
		return nil, err
	}
	s.embedder.Enqueue(workspaceID, ideaID)
	return idea, nil
}

func (s *ideaService) UpdateRoadmapStatus(ctx context.Context, workspaceID, ideaID uuid.UUID, status models.RoadmapStatus, reviewer string) (int, error) {
	if !models.IsValidRoadmapStatus(status) {
		return 0, fmt.Errorf("invalid roadmap status %q: %w", status, apperrors.ErrValidation)
	}

	dismissed, err := s.ideaRepo.UpdateRoadmapStatus(ctx, workspaceID, ideaID, status, reviewer)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) && !errors.Is(err, apperrors.ErrConflict) {
			s.logger.Error("Failed to update roadmap status",
				zap.String("workspace_id", workspaceID.String()),
				zap.String("idea_id", ideaID.String()),
				zap.Error(err))
		}
		return 0, err
	}

	if dismissed > 0 {
		s.logger.Info("Pending suggestions dismissed after roadmap change",
			zap.String("idea_id", ideaID.String()),
			zap.String("roadmap_status", string(status)),
			zap.Int("dismissed", dismissed))
	}
	return dismissed, nil
}

func (s *ideaService) Vote(ctx context.Context, vote *models.Vote) (bool, error) {
	if vote.ContributorID == uuid.Nil {
		return false, fmt.Errorf("contributor_id is required: %w", apperrors.ErrValidation)
	}
	if vote.ContributorEmail != nil {
		email := strings.TrimSpace(*vote.ContributorEmail)
		if email == "" {
			vote.ContributorEmail = nil
		} else {
			vote.ContributorEmail = &email
		}
	}
	added, err := s.voteRepo.Add(ctx, vote)
	if err != nil {
		return false, err
	}
	if added && vote.ContributorEmail != nil {
		s.logger.Debug("Vote recorded",
			zap.String("idea_id", vote.IdeaID.String()),
			zap.String("contributor", logging.MaskEmail(*vote.ContributorEmail)))
	}
	return added, nil
}
