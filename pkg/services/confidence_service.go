package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ideaflow-inc/ideaflow-engine/pkg/config"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/confidence"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/repositories"
)

// IdeaConfidence is a scored idea together with the signals behind the score.
type IdeaConfidence struct {
	IdeaID uuid.UUID `json:"idea_id"`
	confidence.Result
	Signals confidence.Signals `json:"signals"`
}

// ConfidenceService scores ideas on demand.
type ConfidenceService interface {
	ScoreIdea(ctx context.Context, workspaceID, ideaID uuid.UUID) (*IdeaConfidence, error)
}

type confidenceService struct {
	signalsRepo repositories.SignalsRepository
	scorer      *confidence.Scorer
	now         func() time.Time
	logger      *zap.Logger
}

// NewConfidenceService creates the confidence service.
func NewConfidenceService(signalsRepo repositories.SignalsRepository, scorer *confidence.Scorer, logger *zap.Logger) ConfidenceService {
	return &confidenceService{
		signalsRepo: signalsRepo,
		scorer:      scorer,
		now:         time.Now,
		logger:      logger.Named("confidence-service"),
	}
}

var _ ConfidenceService = (*confidenceService)(nil)

// ConfidenceParams maps configuration onto scoring parameters.
func ConfidenceParams(cfg config.ConfidenceConfig) confidence.Params {
	p := confidence.DefaultParams()
	p.Weights = confidence.Weights{
		OrganicVotes:       cfg.OrganicVotes,
		InheritedVotes:     cfg.InheritedVotes,
		UniqueContributors: cfg.UniqueContributors,
		Recency:            cfg.Recency,
		Velocity:           cfg.Velocity,
		DuplicateCluster:   cfg.DuplicateCluster,
		Richness:           cfg.Richness,
		Frequency:          cfg.Frequency,
		Impact:             cfg.Impact,
	}
	if cfg.VoteCap > 0 {
		p.VoteCap = cfg.VoteCap
	}
	if cfg.RecentWindowDays > 0 {
		p.RecentWindow = time.Duration(cfg.RecentWindowDays) * 24 * time.Hour
	}
	return p
}

func (s *confidenceService) ScoreIdea(ctx context.Context, workspaceID, ideaID uuid.UUID) (*IdeaConfidence, error) {
	now := s.now()
	counts, err := s.signalsRepo.GetIdeaSignals(ctx, workspaceID, ideaID, now.Add(-s.scorer.RecentWindow()))
	if err != nil {
		return nil, err
	}

	signals := s.scorer.FromCounts(*counts, now)
	result := s.scorer.Score(signals)

	if result.ConcentrationWarning != nil {
		s.logger.Debug("Vote concentration detected",
			zap.String("idea_id", ideaID.String()),
			zap.String("domain", result.ConcentrationWarning.Domain),
			zap.Int("share_percent", result.ConcentrationWarning.SharePercent),
			zap.Bool("blocks_strong", result.ConcentrationWarning.BlocksStrong))
	}

	return &IdeaConfidence{
		IdeaID:  ideaID,
		Result:  result,
		Signals: signals,
	}, nil
}
