package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ideaflow-inc/ideaflow-engine/pkg/models"
)

// stubEmbeddingSync reports a fixed sync count per workspace.
type stubEmbeddingSync struct {
	synced  int
	errFor  map[uuid.UUID]error
	panicOn uuid.UUID
}

func (s *stubEmbeddingSync) Enqueue(workspaceID, ideaID uuid.UUID) {}

func (s *stubEmbeddingSync) SyncWorkspace(ctx context.Context, workspaceID uuid.UUID) (int, error) {
	if workspaceID == s.panicOn {
		panic("provider client exploded")
	}
	if err, ok := s.errFor[workspaceID]; ok {
		return 0, err
	}
	return s.synced, nil
}

func (s *stubEmbeddingSync) EmbedIdea(ctx context.Context, workspaceID, ideaID uuid.UUID) error {
	return nil
}

func (s *stubEmbeddingSync) Shutdown(ctx context.Context) error { return nil }

// stubDetection returns one fresh candidate per workspace and records the order of calls.
type stubDetection struct {
	mu     sync.Mutex
	order  []uuid.UUID
	errFor map[uuid.UUID]error
}

func (d *stubDetection) FindCandidates(ctx context.Context, workspaceID uuid.UUID) ([]models.DuplicateCandidate, error) {
	d.mu.Lock()
	d.order = append(d.order, workspaceID)
	d.mu.Unlock()
	if err, ok := d.errFor[workspaceID]; ok {
		return nil, err
	}
	return []models.DuplicateCandidate{{SourceIdeaID: uuid.New(), DuplicateIdeaID: uuid.New(), Similarity: 80}}, nil
}

func newWorkspaceIDs(n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}
	return ids
}

func newTestScheduler(ids []uuid.UUID, syncer EmbeddingSyncService, detection DuplicateDetectionService, lock RunLock, settings BatchSettings) DedupScheduler {
	return NewDedupScheduler(
		&mockWorkspaceRepository{ids: ids},
		syncer,
		detection,
		NewSuggestionService(newMockSuggestionRepository(), &mockMergeRepository{}, zap.NewNop()),
		passthroughGlobalCtx,
		passthroughTenantCtx,
		lock,
		settings,
		zap.NewNop(),
	)
}

func TestDedupScheduler_RunOnce_AggregatesAllWorkspaces(t *testing.T) {
	ids := newWorkspaceIDs(25)
	detection := &stubDetection{}
	s := newTestScheduler(ids, &stubEmbeddingSync{synced: 2}, detection, nil, BatchSettings{Size: 10})

	result, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 25, result.Processed)
	assert.Equal(t, 50, result.EmbeddingsSynced)
	assert.Equal(t, 25, result.SuggestionsCreated)
	assert.Equal(t, 0, result.Errors)
	assert.False(t, result.Skipped)
	// Sequential processing keeps workspace order.
	assert.Equal(t, ids, detection.order)
}

func TestDedupScheduler_RunOnce_IsolatesFailures(t *testing.T) {
	ids := newWorkspaceIDs(5)
	syncer := &stubEmbeddingSync{
		synced:  1,
		errFor:  map[uuid.UUID]error{ids[1]: errors.New("provider timeout")},
		panicOn: ids[3],
	}
	detection := &stubDetection{errFor: map[uuid.UUID]error{ids[2]: errors.New("query failed")}}
	s := newTestScheduler(ids, syncer, detection, nil, BatchSettings{Size: 2})

	result, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, result.Processed)
	assert.Equal(t, 3, result.Errors)
	// A failed sync still runs detection on what is already embedded.
	assert.Equal(t, 3, result.SuggestionsCreated)
	assert.Equal(t, 3, result.EmbeddingsSynced)
}

func TestDedupScheduler_RunOnce_BoundedParallelism(t *testing.T) {
	ids := newWorkspaceIDs(12)
	s := newTestScheduler(ids, &stubEmbeddingSync{synced: 1}, &stubDetection{}, nil, BatchSettings{Size: 6, Concurrency: 3})

	result, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, result.Processed)
	assert.Equal(t, 12, result.SuggestionsCreated)
}

func TestDedupScheduler_RunOnce_CooldownHonorsCancellation(t *testing.T) {
	ids := newWorkspaceIDs(3)
	s := newTestScheduler(ids, &stubEmbeddingSync{}, &stubDetection{}, nil, BatchSettings{Size: 1, Cooldown: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := s.RunOnce(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Processed)
}

func TestDedupScheduler_RunOnce_NoWorkspaces(t *testing.T) {
	s := newTestScheduler(nil, &stubEmbeddingSync{}, &stubDetection{}, nil, BatchSettings{})

	result, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
}

func TestDedupScheduler_RunOnce_ListFailure(t *testing.T) {
	s := NewDedupScheduler(
		&mockWorkspaceRepository{err: errors.New("db down")},
		&stubEmbeddingSync{}, &stubDetection{},
		NewSuggestionService(newMockSuggestionRepository(), &mockMergeRepository{}, zap.NewNop()),
		passthroughGlobalCtx, passthroughTenantCtx, nil, BatchSettings{}, zap.NewNop(),
	)

	_, err := s.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestDedupScheduler_RunOnce_SkipsWhenLockHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	lock := NewRunLock(client, "ideaflow:dedup:run", time.Minute)
	release, acquired, err := lock.TryAcquire(context.Background())
	require.NoError(t, err)
	require.True(t, acquired)

	detection := &stubDetection{}
	s := newTestScheduler(newWorkspaceIDs(2), &stubEmbeddingSync{}, detection, lock, BatchSettings{})

	result, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Empty(t, detection.order)

	release()

	result, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 2, result.Processed)
	assert.False(t, mr.Exists("ideaflow:dedup:run"), "lock is released after the run")
}

func TestRunLock_ReleaseOnlyOwnToken(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	lock := NewRunLock(client, "lock", time.Minute)
	release, acquired, err := lock.TryAcquire(context.Background())
	require.NoError(t, err)
	require.True(t, acquired)

	// The TTL lapses and another replica takes over.
	mr.FastForward(2 * time.Minute)
	other := NewRunLock(client, "lock", time.Minute)
	_, acquired, err = other.TryAcquire(context.Background())
	require.NoError(t, err)
	require.True(t, acquired)

	release()
	assert.True(t, mr.Exists("lock"), "a stale holder must not release the new holder's lock")
}

func TestRunLock_NilClientAlwaysAcquires(t *testing.T) {
	lock := NewRunLock(nil, "lock", time.Minute)
	for i := 0; i < 2; i++ {
		release, acquired, err := lock.TryAcquire(context.Background())
		require.NoError(t, err)
		assert.True(t, acquired)
		release()
	}
}
