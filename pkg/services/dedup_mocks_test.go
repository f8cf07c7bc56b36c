package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ideaflow-inc/ideaflow-engine/pkg/apperrors"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/models"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/repositories"
)

// mockIdeaRepository keeps ideas in memory.
type mockIdeaRepository struct {
	mu    sync.Mutex
	ideas map[uuid.UUID]*models.Idea

	updateRoadmapFn func(ctx context.Context, workspaceID, ideaID uuid.UUID, status models.RoadmapStatus, reviewer string) (int, error)
	createErr       error
}

func newMockIdeaRepository(ideas ...*models.Idea) *mockIdeaRepository {
	m := &mockIdeaRepository{ideas: make(map[uuid.UUID]*models.Idea)}
	for _, i := range ideas {
		m.ideas[i.ID] = i
	}
	return m
}

var _ repositories.IdeaRepository = (*mockIdeaRepository)(nil)

func (m *mockIdeaRepository) Create(ctx context.Context, idea *models.Idea) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if idea.ID == uuid.Nil {
		idea.ID = uuid.New()
	}
	m.ideas[idea.ID] = idea
	return nil
}

func (m *mockIdeaRepository) GetByID(ctx context.Context, workspaceID, ideaID uuid.UUID) (*models.Idea, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idea, ok := m.ideas[ideaID]
	if !ok || idea.WorkspaceID != workspaceID {
		return nil, apperrors.ErrNotFound
	}
	cp := *idea
	return &cp, nil
}

func (m *mockIdeaRepository) UpdateContent(ctx context.Context, workspaceID, ideaID uuid.UUID, title string, description, problemStatement *string) (*models.Idea, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idea, ok := m.ideas[ideaID]
	if !ok || idea.WorkspaceID != workspaceID {
		return nil, apperrors.ErrNotFound
	}
	if idea.Status == models.IdeaStatusMerged {
		return nil, apperrors.ErrIdeaMerged
	}
	idea.Title = title
	idea.Description = description
	idea.ProblemStatement = problemStatement
	idea.UpdatedAt = time.Now()
	cp := *idea
	return &cp, nil
}

func (m *mockIdeaRepository) UpdateRoadmapStatus(ctx context.Context, workspaceID, ideaID uuid.UUID, status models.RoadmapStatus, reviewer string) (int, error) {
	if m.updateRoadmapFn != nil {
		return m.updateRoadmapFn(ctx, workspaceID, ideaID, status, reviewer)
	}
	return 0, nil
}

// mockVoteRepository records votes.
type mockVoteRepository struct {
	votes []*models.Vote
	err   error
}

var _ repositories.VoteRepository = (*mockVoteRepository)(nil)

func (m *mockVoteRepository) Add(ctx context.Context, vote *models.Vote) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for _, v := range m.votes {
		if v.IdeaID == vote.IdeaID && v.ContributorID == vote.ContributorID {
			return false, nil
		}
	}
	m.votes = append(m.votes, vote)
	return true, nil
}

func (m *mockVoteRepository) ListByIdea(ctx context.Context, workspaceID, ideaID uuid.UUID) ([]*models.Vote, error) {
	var out []*models.Vote
	for _, v := range m.votes {
		if v.IdeaID == ideaID {
			out = append(out, v)
		}
	}
	return out, nil
}

// mockEmbeddingRepository is configured per test through function fields.
type mockEmbeddingRepository struct {
	mu       sync.Mutex
	upserted []*models.IdeaEmbedding

	upsertErr          error
	countEligible      int
	countErr           error
	pairs              []models.ScoredPair
	pairsErr           error
	lastPairQuery      repositories.PairQuery
	pairCalls          int
	matchable          []models.MatchableIdea
	syncCandidates     []models.EmbeddingCandidate
	syncCandidatesErr  error
	upsertErrForIdeaID map[uuid.UUID]error
}

var _ repositories.EmbeddingRepository = (*mockEmbeddingRepository)(nil)

func (m *mockEmbeddingRepository) Upsert(ctx context.Context, e *models.IdeaEmbedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.upsertErrForIdeaID[e.IdeaID]; ok {
		return err
	}
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = append(m.upserted, e)
	return nil
}

func (m *mockEmbeddingRepository) Upserted() []*models.IdeaEmbedding {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.IdeaEmbedding(nil), m.upserted...)
}

func (m *mockEmbeddingRepository) Get(ctx context.Context, workspaceID, ideaID uuid.UUID) (*models.IdeaEmbedding, error) {
	return nil, apperrors.ErrNotFound
}

func (m *mockEmbeddingRepository) Delete(ctx context.Context, workspaceID, ideaID uuid.UUID) error {
	return nil
}

func (m *mockEmbeddingRepository) CountEligible(ctx context.Context, workspaceID uuid.UUID) (int, error) {
	return m.countEligible, m.countErr
}

func (m *mockEmbeddingRepository) FindCandidatePairs(ctx context.Context, workspaceID uuid.UUID, q repositories.PairQuery) ([]models.ScoredPair, error) {
	m.pairCalls++
	m.lastPairQuery = q
	return m.pairs, m.pairsErr
}

func (m *mockEmbeddingRepository) ListMatchable(ctx context.Context, workspaceID uuid.UUID) ([]models.MatchableIdea, error) {
	return m.matchable, nil
}

func (m *mockEmbeddingRepository) ListSyncCandidates(ctx context.Context, workspaceID uuid.UUID, model string) ([]models.EmbeddingCandidate, error) {
	return m.syncCandidates, m.syncCandidatesErr
}

// mockSuggestionRepository keeps suggestions keyed by unordered pair.
type mockSuggestionRepository struct {
	mu          sync.Mutex
	suggestions map[[2]uuid.UUID]*models.DuplicateSuggestion

	createErrFor map[uuid.UUID]error
	dismissFn    func(ctx context.Context, workspaceID, suggestionID uuid.UUID, reviewer string) (*models.DuplicateSuggestion, error)
	lastFilter   repositories.SuggestionListFilter
}

func newMockSuggestionRepository() *mockSuggestionRepository {
	return &mockSuggestionRepository{suggestions: make(map[[2]uuid.UUID]*models.DuplicateSuggestion)}
}

var _ repositories.SuggestionRepository = (*mockSuggestionRepository)(nil)

func pairOf(a, b uuid.UUID) [2]uuid.UUID {
	if a.String() > b.String() {
		a, b = b, a
	}
	return [2]uuid.UUID{a, b}
}

func (m *mockSuggestionRepository) Create(ctx context.Context, workspaceID uuid.UUID, c models.DuplicateCandidate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.createErrFor[c.DuplicateIdeaID]; ok {
		return false, err
	}
	key := pairOf(c.SourceIdeaID, c.DuplicateIdeaID)
	if _, exists := m.suggestions[key]; exists {
		return false, nil
	}
	m.suggestions[key] = &models.DuplicateSuggestion{
		ID:              uuid.New(),
		WorkspaceID:     workspaceID,
		SourceIdeaID:    c.SourceIdeaID,
		DuplicateIdeaID: c.DuplicateIdeaID,
		Similarity:      c.Similarity,
		Status:          models.SuggestionStatusPending,
	}
	return true, nil
}

func (m *mockSuggestionRepository) GetByID(ctx context.Context, workspaceID, suggestionID uuid.UUID) (*models.DuplicateSuggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.suggestions {
		if s.ID == suggestionID {
			return s, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockSuggestionRepository) ListWithIdeas(ctx context.Context, workspaceID uuid.UUID, filter repositories.SuggestionListFilter) ([]*models.SuggestionWithIdeas, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	var out []*models.SuggestionWithIdeas
	for _, s := range m.suggestions {
		if filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		out = append(out, &models.SuggestionWithIdeas{DuplicateSuggestion: *s})
	}
	return out, nil
}

func (m *mockSuggestionRepository) Dismiss(ctx context.Context, workspaceID, suggestionID uuid.UUID, reviewer string) (*models.DuplicateSuggestion, error) {
	if m.dismissFn != nil {
		return m.dismissFn(ctx, workspaceID, suggestionID, reviewer)
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockSuggestionRepository) CountPending(ctx context.Context, workspaceID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.suggestions {
		if s.Status == models.SuggestionStatusPending {
			n++
		}
	}
	return n, nil
}

func (m *mockSuggestionRepository) ListPairKeys(ctx context.Context, workspaceID uuid.UUID) ([][2]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys [][2]uuid.UUID
	for _, s := range m.suggestions {
		keys = append(keys, [2]uuid.UUID{s.SourceIdeaID, s.DuplicateIdeaID})
	}
	return keys, nil
}

// mockMergeRepository returns a canned result or error.
type mockMergeRepository struct {
	result *models.MergeResult
	err    error
	calls  int
}

var _ repositories.MergeRepository = (*mockMergeRepository)(nil)

func (m *mockMergeRepository) Merge(ctx context.Context, workspaceID, suggestionID, keepIdeaID uuid.UUID, reviewer string) (*models.MergeResult, error) {
	m.calls++
	return m.result, m.err
}

// mockSignalsRepository returns fixed counts and records the window start.
type mockSignalsRepository struct {
	counts      *models.IdeaSignalCounts
	err         error
	recentSince time.Time
}

var _ repositories.SignalsRepository = (*mockSignalsRepository)(nil)

func (m *mockSignalsRepository) GetIdeaSignals(ctx context.Context, workspaceID, ideaID uuid.UUID, recentSince time.Time) (*models.IdeaSignalCounts, error) {
	m.recentSince = recentSince
	return m.counts, m.err
}

// mockWorkspaceRepository lists fixed workspace ids.
type mockWorkspaceRepository struct {
	ids []uuid.UUID
	err error
}

var _ repositories.WorkspaceRepository = (*mockWorkspaceRepository)(nil)

func (m *mockWorkspaceRepository) Create(ctx context.Context, ws *models.Workspace) error { return nil }

func (m *mockWorkspaceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Workspace, error) {
	return nil, apperrors.ErrNotFound
}

func (m *mockWorkspaceRepository) ListEligibleIDs(ctx context.Context) ([]uuid.UUID, error) {
	return m.ids, m.err
}

// recordingEnqueuer captures fire-and-forget embedding requests.
type recordingEnqueuer struct {
	mu    sync.Mutex
	ideas []uuid.UUID
}

func (r *recordingEnqueuer) Enqueue(workspaceID, ideaID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ideas = append(r.ideas, ideaID)
}

// passthroughTenantCtx returns the context unchanged.
func passthroughTenantCtx(ctx context.Context, workspaceID uuid.UUID) (context.Context, func(), error) {
	return ctx, func() {}, nil
}

func passthroughGlobalCtx(ctx context.Context) (context.Context, func(), error) {
	return ctx, func() {}, nil
}
