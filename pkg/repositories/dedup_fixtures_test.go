//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/ideaflow-inc/ideaflow-engine/pkg/database"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/models"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/testhelpers"
)

// dedupTestContext holds the repositories and a fresh workspace for one test.
type dedupTestContext struct {
	t           *testing.T
	engineDB    *testhelpers.EngineDB
	workspaceID uuid.UUID

	ideas       IdeaRepository
	votes       VoteRepository
	embeddings  EmbeddingRepository
	suggestions SuggestionRepository
	merges      MergeRepository
	signals     SignalsRepository
}

// setupDedupTest creates a workspace dedicated to the calling test, so tests
// never see each other's rows and need no cleanup.
func setupDedupTest(t *testing.T) *dedupTestContext {
	engineDB := testhelpers.GetEngineDB(t)
	return &dedupTestContext{
		t:           t,
		engineDB:    engineDB,
		workspaceID: engineDB.CreateWorkspace(t, t.Name()),
		ideas:       NewIdeaRepository(),
		votes:       NewVoteRepository(),
		embeddings:  NewEmbeddingRepository(),
		suggestions: NewSuggestionRepository(),
		merges:      NewMergeRepository(),
		signals:     NewSignalsRepository(),
	}
}

// createTestContext returns a context with tenant scope.
func (tc *dedupTestContext) createTestContext() (context.Context, func()) {
	tc.t.Helper()
	ctx := context.Background()
	scope, err := tc.engineDB.DB.WithTenant(ctx, tc.workspaceID)
	if err != nil {
		tc.t.Fatalf("failed to create tenant scope: %v", err)
	}
	ctx = database.SetTenantScope(ctx, scope)
	return ctx, func() { scope.Close() }
}

func (tc *dedupTestContext) createIdea(ctx context.Context, title string, createdAt time.Time) *models.Idea {
	tc.t.Helper()
	idea := &models.Idea{
		WorkspaceID: tc.workspaceID,
		Title:       title,
		CreatedAt:   createdAt,
	}
	if err := tc.ideas.Create(ctx, idea); err != nil {
		tc.t.Fatalf("failed to create idea: %v", err)
	}
	return idea
}

// addVotes records one vote per contributor, each with a @example.com email.
func (tc *dedupTestContext) addVotes(ctx context.Context, ideaID uuid.UUID, contributors []uuid.UUID, at time.Time) {
	tc.t.Helper()
	for _, c := range contributors {
		email := c.String()[:8] + "@example.com"
		_, err := tc.votes.Add(ctx, &models.Vote{
			WorkspaceID:      tc.workspaceID,
			IdeaID:           ideaID,
			ContributorID:    c,
			ContributorEmail: &email,
			CreatedAt:        at,
		})
		if err != nil {
			tc.t.Fatalf("failed to add vote: %v", err)
		}
	}
}

func (tc *dedupTestContext) embed(ctx context.Context, ideaID uuid.UUID, title []float32) {
	tc.t.Helper()
	err := tc.embeddings.Upsert(ctx, &models.IdeaEmbedding{
		IdeaID:         ideaID,
		WorkspaceID:    tc.workspaceID,
		TitleEmbedding: pgvector.NewVector(title),
		ModelVersion:   "test-model",
		ContentHash:    "hash-" + ideaID.String(),
	})
	if err != nil {
		tc.t.Fatalf("failed to upsert embedding: %v", err)
	}
}

func (tc *dedupTestContext) suggest(ctx context.Context, source, duplicate uuid.UUID, similarity int) *models.DuplicateSuggestion {
	tc.t.Helper()
	inserted, err := tc.suggestions.Create(ctx, tc.workspaceID, models.DuplicateCandidate{
		SourceIdeaID:    source,
		DuplicateIdeaID: duplicate,
		Similarity:      similarity,
	})
	if err != nil {
		tc.t.Fatalf("failed to create suggestion: %v", err)
	}
	if !inserted {
		tc.t.Fatalf("expected suggestion %s/%s to be inserted", source, duplicate)
	}

	pending := models.SuggestionStatusPending
	list, err := tc.suggestions.ListWithIdeas(ctx, tc.workspaceID, SuggestionListFilter{Status: &pending, Limit: 200})
	if err != nil {
		tc.t.Fatalf("failed to list suggestions: %v", err)
	}
	for _, s := range list {
		if s.SourceIdeaID == source && s.DuplicateIdeaID == duplicate {
			sug := s.DuplicateSuggestion
			return &sug
		}
	}
	tc.t.Fatalf("suggestion %s/%s not found after insert", source, duplicate)
	return nil
}

func newContributors(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}
