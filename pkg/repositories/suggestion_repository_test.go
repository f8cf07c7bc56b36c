//go:build integration

package repositories

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideaflow-inc/ideaflow-engine/pkg/apperrors"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/models"
)

func TestSuggestionRepository_Create_SkipsExistingPairInEitherOrientation(t *testing.T) {
	tc := setupDedupTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	now := time.Now()
	a := tc.createIdea(ctx, "Two-factor auth", now.Add(-time.Hour))
	b := tc.createIdea(ctx, "2FA support", now)
	tc.suggest(ctx, a.ID, b.ID, 87)

	inserted, err := tc.suggestions.Create(ctx, tc.workspaceID, models.DuplicateCandidate{
		SourceIdeaID:    b.ID,
		DuplicateIdeaID: a.ID,
		Similarity:      87,
	})
	require.NoError(t, err)
	assert.False(t, inserted)

	keys, err := tc.suggestions.ListPairKeys(ctx, tc.workspaceID)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestSuggestionRepository_Create_DismissedPairIsNotResuggested(t *testing.T) {
	tc := setupDedupTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	now := time.Now()
	a := tc.createIdea(ctx, "Public API", now.Add(-time.Hour))
	b := tc.createIdea(ctx, "REST API access", now)
	sug := tc.suggest(ctx, a.ID, b.ID, 75)

	_, err := tc.suggestions.Dismiss(ctx, tc.workspaceID, sug.ID, "")
	require.NoError(t, err)

	inserted, err := tc.suggestions.Create(ctx, tc.workspaceID, models.DuplicateCandidate{
		SourceIdeaID:    a.ID,
		DuplicateIdeaID: b.ID,
		Similarity:      75,
	})
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestSuggestionRepository_Dismiss(t *testing.T) {
	tc := setupDedupTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	now := time.Now()
	a := tc.createIdea(ctx, "Custom fields", now.Add(-time.Hour))
	b := tc.createIdea(ctx, "User defined fields", now)
	sug := tc.suggest(ctx, a.ID, b.ID, 69)

	dismissed, err := tc.suggestions.Dismiss(ctx, tc.workspaceID, sug.ID, "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.SuggestionStatusDismissed, dismissed.Status)
	assert.NotNil(t, dismissed.ReviewedAt)
	require.NotNil(t, dismissed.ReviewedBy)
	assert.Equal(t, "ops@example.com", *dismissed.ReviewedBy)

	_, err = tc.suggestions.Dismiss(ctx, tc.workspaceID, sug.ID, "")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyProcessed)

	_, err = tc.suggestions.Dismiss(ctx, tc.workspaceID, uuid.New(), "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// Dismissing leaves both ideas untouched.
	for _, id := range []uuid.UUID{a.ID, b.ID} {
		idea, err := tc.ideas.GetByID(ctx, tc.workspaceID, id)
		require.NoError(t, err)
		assert.NotEqual(t, models.IdeaStatusMerged, idea.Status)
	}
}

func TestSuggestionRepository_ListWithIdeas(t *testing.T) {
	tc := setupDedupTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	now := time.Now()
	a := tc.createIdea(ctx, "Dark mode", now.Add(-2*time.Hour))
	b := tc.createIdea(ctx, "Night theme", now.Add(-time.Hour))
	c := tc.createIdea(ctx, "Dark UI", now)
	tc.addVotes(ctx, a.ID, newContributors(3), now)

	ab := tc.suggest(ctx, a.ID, b.ID, 93)
	ac := tc.suggest(ctx, a.ID, c.ID, 71)
	_, err := tc.suggestions.Dismiss(ctx, tc.workspaceID, ac.ID, "")
	require.NoError(t, err)

	all, err := tc.suggestions.ListWithIdeas(ctx, tc.workspaceID, SuggestionListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending := models.SuggestionStatusPending
	open, err := tc.suggestions.ListWithIdeas(ctx, tc.workspaceID, SuggestionListFilter{Status: &pending})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, ab.ID, open[0].ID)
	assert.Equal(t, "Dark mode", open[0].SourceTitle)
	assert.Equal(t, 3, open[0].SourceVoteCount)
	assert.Equal(t, "Night theme", open[0].DuplicateTitle)
	assert.Equal(t, models.RoadmapStatusNone, open[0].DuplicateRoadmap)

	n, err := tc.suggestions.CountPending(ctx, tc.workspaceID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSuggestionRepository_GetByID_OtherWorkspace(t *testing.T) {
	tc := setupDedupTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	now := time.Now()
	a := tc.createIdea(ctx, "Zapier", now.Add(-time.Hour))
	b := tc.createIdea(ctx, "Zapier integration", now)
	sug := tc.suggest(ctx, a.ID, b.ID, 95)

	_, err := tc.suggestions.GetByID(ctx, uuid.New(), sug.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
