package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ideaflow-inc/ideaflow-engine/pkg/apperrors"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/database"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/embedding"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/logging"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/models"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/repositories"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/retry"
)

// embedTimeout bounds a single fire-and-forget embedding update.
const embedTimeout = 2 * time.Minute

// EmbeddingEnqueuer schedules an asynchronous embedding refresh for one idea.
type EmbeddingEnqueuer interface {
	Enqueue(workspaceID, ideaID uuid.UUID)
}

// EmbeddingSyncService keeps idea embeddings current.
type EmbeddingSyncService interface {
	EmbeddingEnqueuer

	// SyncWorkspace embeds every idea in the workspace whose embedding is
	// missing or stale, up to the per-workspace cap. The context must carry
	// the workspace's tenant scope. It returns the number of embeddings
	// written; individual failures are logged and reported as one error
	// after the remaining ideas have been attempted.
	SyncWorkspace(ctx context.Context, workspaceID uuid.UUID) (int, error)

	// EmbedIdea recomputes one idea's embedding synchronously.
	EmbedIdea(ctx context.Context, workspaceID, ideaID uuid.UUID) error

	// Shutdown stops accepting work and waits for queued updates to finish.
	Shutdown(ctx context.Context) error
}

// EmbeddingSyncConfig tunes provider pacing and concurrency.
type EmbeddingSyncConfig struct {
	RequestsPerSecond float64
	MaxPerWorkspace   int
	Workers           int
	Retry             *retry.Config
}

type embeddingSyncService struct {
	ideaRepo      repositories.IdeaRepository
	embeddingRepo repositories.EmbeddingRepository
	provider      embedding.Provider
	getTenantCtx  database.TenantContextFunc
	limiter       *rate.Limiter
	cfg           EmbeddingSyncConfig
	logger        *zap.Logger

	// Fire-and-forget dispatch.
	baseCtx context.Context
	cancel  context.CancelFunc
	sem     chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
}

// NewEmbeddingSyncService creates the embedding sync service.
func NewEmbeddingSyncService(
	ideaRepo repositories.IdeaRepository,
	embeddingRepo repositories.EmbeddingRepository,
	provider embedding.Provider,
	getTenantCtx database.TenantContextFunc,
	cfg EmbeddingSyncConfig,
	logger *zap.Logger,
) EmbeddingSyncService {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Retry == nil {
		cfg.Retry = retry.ProviderConfig()
	}

	burst := int(cfg.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &embeddingSyncService{
		ideaRepo:      ideaRepo,
		embeddingRepo: embeddingRepo,
		provider:      provider,
		getTenantCtx:  getTenantCtx,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		cfg:           cfg,
		logger:        logger.Named("embedding-sync"),
		baseCtx:       ctx,
		cancel:        cancel,
		sem:           make(chan struct{}, cfg.Workers),
	}
}

var _ EmbeddingSyncService = (*embeddingSyncService)(nil)

func (s *embeddingSyncService) SyncWorkspace(ctx context.Context, workspaceID uuid.UUID) (int, error) {
	model := s.provider.Model()

	candidates, err := s.embeddingRepo.ListSyncCandidates(ctx, workspaceID, model)
	if err != nil {
		return 0, fmt.Errorf("failed to list ideas needing embeddings: %w", err)
	}

	var synced, failed int
	var firstErr error
	attempted := 0
	for _, c := range candidates {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}

		// The candidate query is a cheap prefilter on timestamps; the hash
		// decides whether the text actually changed.
		hash := embedding.ContentHash(c.Title, c.ProblemStatement)
		if !embedding.IsStale(c.CurrentHash, c.CurrentModel, hash, model) {
			continue
		}
		if s.cfg.MaxPerWorkspace > 0 && attempted >= s.cfg.MaxPerWorkspace {
			s.logger.Info("Embedding cap reached, remaining ideas deferred to next run",
				zap.String("workspace_id", workspaceID.String()),
				zap.Int("cap", s.cfg.MaxPerWorkspace))
			break
		}
		attempted++

		err := s.embed(ctx, workspaceID, c.IdeaID, c.Title, c.ProblemStatement, hash)
		switch {
		case err == nil:
			synced++
		case errors.Is(err, apperrors.ErrIdeaMerged):
			s.logger.Debug("Idea merged during sync, skipping",
				zap.String("idea_id", c.IdeaID.String()))
		default:
			failed++
			if firstErr == nil {
				firstErr = err
			}
			s.logger.Warn("Failed to embed idea",
				zap.String("workspace_id", workspaceID.String()),
				zap.String("idea_id", c.IdeaID.String()),
				zap.String("title", logging.TruncateString(c.Title, logging.MaxTitleLogLength)),
				zap.String("error", logging.SanitizeError(err)))
		}
	}

	if failed > 0 {
		return synced, fmt.Errorf("%d of %d embeddings failed: %w", failed, attempted, firstErr)
	}
	return synced, nil
}

func (s *embeddingSyncService) EmbedIdea(ctx context.Context, workspaceID, ideaID uuid.UUID) error {
	idea, err := s.ideaRepo.GetByID(ctx, workspaceID, ideaID)
	if err != nil {
		return err
	}
	if idea.Status == models.IdeaStatusMerged {
		return apperrors.ErrIdeaMerged
	}

	hash := embedding.ContentHash(idea.Title, idea.ProblemStatement)
	return s.embed(ctx, workspaceID, idea.ID, idea.Title, idea.ProblemStatement, hash)
}

// embed fetches vectors for the title and, if present, the problem statement
// in one provider call and stores them.
func (s *embeddingSyncService) embed(ctx context.Context, workspaceID, ideaID uuid.UUID, title string, problem *string, hash string) error {
	inputs := []string{title}
	hasProblem := problem != nil && strings.TrimSpace(*problem) != ""
	if hasProblem {
		inputs = append(inputs, *problem)
	}

	var vectors [][]float32
	err := retry.DoIfRetryable(ctx, s.cfg.Retry, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		vectors, err = s.provider.CreateEmbeddings(ctx, inputs)
		return err
	})
	if err != nil {
		return fmt.Errorf("embedding provider: %w", err)
	}

	e := &models.IdeaEmbedding{
		IdeaID:         ideaID,
		WorkspaceID:    workspaceID,
		TitleEmbedding: pgvector.NewVector(vectors[0]),
		ModelVersion:   s.provider.Model(),
		ContentHash:    hash,
	}
	if hasProblem {
		v := pgvector.NewVector(vectors[1])
		e.ProblemEmbedding = &v
	}

	return s.embeddingRepo.Upsert(ctx, e)
}

// Enqueue refreshes the idea's embedding in the background. The caller does
// not wait; failures are logged and healed by the next batch sync.
func (s *embeddingSyncService) Enqueue(workspaceID, ideaID uuid.UUID) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn("Embedding sync shut down, dropping update",
			zap.String("idea_id", ideaID.String()))
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		select {
		case s.sem <- struct{}{}:
		case <-s.baseCtx.Done():
			return
		}
		defer func() { <-s.sem }()

		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Panic in embedding update",
					zap.String("idea_id", ideaID.String()),
					zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(s.baseCtx, embedTimeout)
		defer cancel()

		tenantCtx, cleanup, err := s.getTenantCtx(ctx, workspaceID)
		if err != nil {
			s.logger.Error("Failed to acquire tenant scope for embedding update",
				zap.String("workspace_id", workspaceID.String()),
				zap.Error(err))
			return
		}
		defer cleanup()

		if err := s.EmbedIdea(tenantCtx, workspaceID, ideaID); err != nil && !errors.Is(err, apperrors.ErrIdeaMerged) {
			s.logger.Warn("Background embedding update failed",
				zap.String("workspace_id", workspaceID.String()),
				zap.String("idea_id", ideaID.String()),
				zap.String("error", logging.SanitizeError(err)))
		}
	}()
}

func (s *embeddingSyncService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}
