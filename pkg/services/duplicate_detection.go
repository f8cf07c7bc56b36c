package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ideaflow-inc/ideaflow-engine/pkg/models"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/repositories"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/similarity"
)

// Matcher strategies.
const (
	StrategySQL    = "sql"
	StrategyMemory = "memory"
)

// DuplicateDetectionService finds likely duplicate idea pairs in a workspace.
type DuplicateDetectionService interface {
	// FindCandidates returns oriented, deduplicated candidates not yet
	// suggested. The context must carry the workspace's tenant scope.
	FindCandidates(ctx context.Context, workspaceID uuid.UUID) ([]models.DuplicateCandidate, error)
}

// DetectionConfig selects the matcher strategy and its parameters.
type DetectionConfig struct {
	Strategy string
	Options  similarity.Options
}

type duplicateDetectionService struct {
	embeddingRepo  repositories.EmbeddingRepository
	suggestionRepo repositories.SuggestionRepository
	cfg            DetectionConfig
	logger         *zap.Logger
}

// NewDuplicateDetectionService creates the matcher service.
func NewDuplicateDetectionService(
	embeddingRepo repositories.EmbeddingRepository,
	suggestionRepo repositories.SuggestionRepository,
	cfg DetectionConfig,
	logger *zap.Logger,
) DuplicateDetectionService {
	if cfg.Strategy == "" {
		cfg.Strategy = StrategySQL
	}
	if cfg.Options.MinIdeas <= 0 {
		cfg.Options.MinIdeas = similarity.DefaultMinIdeas
	}
	if cfg.Options.Threshold <= 0 {
		cfg.Options.Threshold = similarity.DefaultThreshold
	}
	if cfg.Options.Weights.Title+cfg.Options.Weights.Problem <= 0 {
		cfg.Options.Weights = similarity.DefaultWeights()
	}
	return &duplicateDetectionService{
		embeddingRepo:  embeddingRepo,
		suggestionRepo: suggestionRepo,
		cfg:            cfg,
		logger:         logger.Named("duplicate-detection"),
	}
}

var _ DuplicateDetectionService = (*duplicateDetectionService)(nil)

func (s *duplicateDetectionService) FindCandidates(ctx context.Context, workspaceID uuid.UUID) ([]models.DuplicateCandidate, error) {
	var (
		candidates []models.DuplicateCandidate
		err        error
	)
	switch s.cfg.Strategy {
	case StrategyMemory:
		candidates, err = s.findInMemory(ctx, workspaceID)
	default:
		candidates, err = s.findWithSQL(ctx, workspaceID)
	}
	if err != nil {
		return nil, err
	}

	if len(candidates) > 0 {
		s.logger.Debug("Duplicate candidates found",
			zap.String("workspace_id", workspaceID.String()),
			zap.String("strategy", s.cfg.Strategy),
			zap.Int("count", len(candidates)))
	}
	return candidates, nil
}

func (s *duplicateDetectionService) findWithSQL(ctx context.Context, workspaceID uuid.UUID) ([]models.DuplicateCandidate, error) {
	n, err := s.embeddingRepo.CountEligible(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if n < s.cfg.Options.MinIdeas {
		return nil, nil
	}

	pairs, err := s.embeddingRepo.FindCandidatePairs(ctx, workspaceID, repositories.PairQuery{
		Threshold:     s.cfg.Options.Threshold,
		TitleWeight:   s.cfg.Options.Weights.Title,
		ProblemWeight: s.cfg.Options.Weights.Problem,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find candidate pairs: %w", err)
	}

	// The query already excludes suggested pairs; orientation, repeat
	// filtering and rounding happen in one place for both strategies.
	return similarity.BuildCandidates(pairs, nil, s.cfg.Options.Threshold), nil
}

func (s *duplicateDetectionService) findInMemory(ctx context.Context, workspaceID uuid.UUID) ([]models.DuplicateCandidate, error) {
	ideas, err := s.embeddingRepo.ListMatchable(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if len(ideas) < s.cfg.Options.MinIdeas {
		return nil, nil
	}

	keys, err := s.suggestionRepo.ListPairKeys(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	existing := make(similarity.PairSet, len(keys))
	for _, k := range keys {
		existing.Add(k[0], k[1])
	}

	return similarity.FindPairs(ideas, existing, s.cfg.Options), nil
}
