package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ideaflow-inc/ideaflow-engine/pkg/database"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/repositories"
)

// BatchResult aggregates one pass over all eligible workspaces.
type BatchResult struct {
	Processed          int           `json:"processed"`
	EmbeddingsSynced   int           `json:"embeddings_synced"`
	SuggestionsCreated int           `json:"suggestions_created"`
	Errors             int           `json:"errors"`
	// Skipped is set when another replica held the run lock.
	Skipped  bool          `json:"skipped"`
	Duration time.Duration `json:"duration_ns"`

	mu sync.Mutex
}

func (r *BatchResult) record(synced, created int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Processed++
	r.EmbeddingsSynced += synced
	r.SuggestionsCreated += created
	if err != nil {
		r.Errors++
	}
}

// BatchSettings controls how workspaces are walked.
type BatchSettings struct {
	Size        int
	Cooldown    time.Duration
	Concurrency int
}

// DedupScheduler runs embedding sync and duplicate detection for every
// eligible workspace.
type DedupScheduler interface {
	// RunOnce processes all eligible workspaces in batches. A failing
	// workspace is counted in Errors and does not stop the pass.
	RunOnce(ctx context.Context) (*BatchResult, error)

	// RunScheduler starts a background loop that calls RunOnce on the given
	// interval. Cancel the context to stop it.
	RunScheduler(ctx context.Context, interval time.Duration)
}

type dedupScheduler struct {
	workspaceRepo repositories.WorkspaceRepository
	embeddingSync EmbeddingSyncService
	detection     DuplicateDetectionService
	suggestions   SuggestionService
	getGlobalCtx  database.GlobalContextFunc
	getTenantCtx  database.TenantContextFunc
	lock          RunLock
	settings      BatchSettings
	logger        *zap.Logger
}

// NewDedupScheduler creates the batch orchestrator.
func NewDedupScheduler(
	workspaceRepo repositories.WorkspaceRepository,
	embeddingSync EmbeddingSyncService,
	detection DuplicateDetectionService,
	suggestions SuggestionService,
	getGlobalCtx database.GlobalContextFunc,
	getTenantCtx database.TenantContextFunc,
	lock RunLock,
	settings BatchSettings,
	logger *zap.Logger,
) DedupScheduler {
	if settings.Size <= 0 {
		settings.Size = 10
	}
	if settings.Concurrency <= 0 {
		settings.Concurrency = 1
	}
	if lock == nil {
		lock = noopRunLock{}
	}
	return &dedupScheduler{
		workspaceRepo: workspaceRepo,
		embeddingSync: embeddingSync,
		detection:     detection,
		suggestions:   suggestions,
		getGlobalCtx:  getGlobalCtx,
		getTenantCtx:  getTenantCtx,
		lock:          lock,
		settings:      settings,
		logger:        logger.Named("dedup-scheduler"),
	}
}

var _ DedupScheduler = (*dedupScheduler)(nil)

func (s *dedupScheduler) RunOnce(ctx context.Context) (*BatchResult, error) {
	start := time.Now()
	result := &BatchResult{}

	release, acquired, err := s.lock.TryAcquire(ctx)
	if err != nil {
		return nil, err
	}
	if !acquired {
		s.logger.Info("Duplicate detection already running on another replica, skipping")
		result.Skipped = true
		return result, nil
	}
	defer release()

	ids, err := s.listWorkspaces(ctx)
	if err != nil {
		return nil, err
	}

	for batchStart := 0; batchStart < len(ids); batchStart += s.settings.Size {
		if batchStart > 0 && s.settings.Cooldown > 0 {
			// Pause between batches to stay under the provider's rate limits.
			timer := time.NewTimer(s.settings.Cooldown)
			select {
			case <-ctx.Done():
				timer.Stop()
				result.Duration = time.Since(start)
				return result, ctx.Err()
			case <-timer.C:
			}
		}

		end := min(batchStart+s.settings.Size, len(ids))

		var g errgroup.Group
		g.SetLimit(s.settings.Concurrency)
		for _, id := range ids[batchStart:end] {
			g.Go(func() error {
				s.runWorkspace(ctx, id, result)
				return nil
			})
		}
		_ = g.Wait()
	}

	result.Duration = time.Since(start)
	s.logger.Info("Duplicate detection pass completed",
		zap.Int("workspaces", result.Processed),
		zap.Int("embeddings_synced", result.EmbeddingsSynced),
		zap.Int("suggestions_created", result.SuggestionsCreated),
		zap.Int("errors", result.Errors),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (s *dedupScheduler) listWorkspaces(ctx context.Context) ([]uuid.UUID, error) {
	globalCtx, cleanup, err := s.getGlobalCtx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer cleanup()

	ids, err := s.workspaceRepo.ListEligibleIDs(globalCtx)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// runWorkspace processes one workspace and records the outcome. Panics are
// recovered and counted like errors.
func (s *dedupScheduler) runWorkspace(ctx context.Context, workspaceID uuid.UUID, result *BatchResult) {
	var synced, created int
	var err error

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			s.logger.Error("Duplicate detection failed for workspace",
				zap.String("workspace_id", workspaceID.String()),
				zap.Error(err))
		}
		result.record(synced, created, err)
	}()

	synced, created, err = s.processWorkspace(ctx, workspaceID)
}

func (s *dedupScheduler) processWorkspace(ctx context.Context, workspaceID uuid.UUID) (synced, created int, err error) {
	tenantCtx, cleanup, err := s.getTenantCtx(ctx, workspaceID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to acquire tenant scope: %w", err)
	}
	defer cleanup()

	// A partial sync still leaves the already-embedded ideas comparable.
	synced, syncErr := s.embeddingSync.SyncWorkspace(tenantCtx, workspaceID)

	candidates, err := s.detection.FindCandidates(tenantCtx, workspaceID)
	if err != nil {
		return synced, 0, err
	}

	res, err := s.suggestions.CreateSuggestions(tenantCtx, workspaceID, candidates)
	if err != nil {
		return synced, res.Created, err
	}

	if syncErr != nil {
		return synced, res.Created, fmt.Errorf("embedding sync: %w", syncErr)
	}
	if res.Failed > 0 {
		return synced, res.Created, fmt.Errorf("%d suggestions failed to save", res.Failed)
	}
	return synced, res.Created, nil
}

func (s *dedupScheduler) RunScheduler(ctx context.Context, interval time.Duration) {
	go func() {
		s.logger.Info("Duplicate detection scheduler started",
			zap.Duration("interval", interval),
			zap.Int("batch_size", s.settings.Size),
			zap.Duration("cooldown", s.settings.Cooldown))

		s.runLogged(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Duplicate detection scheduler stopped")
				return
			case <-ticker.C:
				s.runLogged(ctx)
			}
		}
	}()
}

func (s *dedupScheduler) runLogged(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("Duplicate detection pass failed", zap.Error(err))
	}
}
