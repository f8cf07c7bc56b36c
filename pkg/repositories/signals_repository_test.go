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

func TestSignalsRepository_GetIdeaSignals(t *testing.T) {
	tc := setupDedupTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	now := time.Now()
	problem := "Exporting by hand takes an hour every week"
	impact := "major"
	idea := &models.Idea{
		WorkspaceID:      tc.workspaceID,
		Title:            "Scheduled exports",
		ProblemStatement: &problem,
		ImpactTag:        &impact,
		CreatedAt:        now.Add(-60 * 24 * time.Hour),
	}
	require.NoError(t, tc.ideas.Create(ctx, idea))

	vote := func(email *string, at time.Time) {
		_, err := tc.votes.Add(ctx, &models.Vote{
			WorkspaceID:      tc.workspaceID,
			IdeaID:           idea.ID,
			ContributorID:    uuid.New(),
			ContributorEmail: email,
			CreatedAt:        at,
		})
		require.NoError(t, err)
	}
	str := func(s string) *string { return &s }

	old := now.Add(-45 * 24 * time.Hour)
	recent := now.Add(-2 * 24 * time.Hour)
	vote(str("a@acme.com"), old)
	vote(str("b@ACME.com"), old)
	vote(str("c@acme.com"), recent)
	vote(str("d@acme.com"), recent)
	vote(str("e@gmail.com"), recent)
	vote(nil, recent)

	other := tc.createIdea(ctx, "Export schedule", now.Add(-time.Hour))
	third := tc.createIdea(ctx, "Automatic exports", now)
	tc.suggest(ctx, idea.ID, other.ID, 80)
	closed := tc.suggest(ctx, idea.ID, third.ID, 90)
	_, err := tc.suggestions.Dismiss(ctx, tc.workspaceID, closed.ID, "")
	require.NoError(t, err)

	counts, err := tc.signals.GetIdeaSignals(ctx, tc.workspaceID, idea.ID, now.Add(-30*24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, idea.ID, counts.IdeaID)
	assert.Equal(t, 6, counts.OrganicVotes)
	assert.Equal(t, 0, counts.InheritedVotes)
	assert.Equal(t, 6, counts.UniqueContributors)
	assert.Equal(t, 4, counts.RecentVotes)
	assert.Equal(t, 5, counts.VotesWithDomain)
	assert.Equal(t, "acme.com", counts.TopDomain)
	assert.Equal(t, 4, counts.TopDomainVotes)
	assert.Equal(t, 1, counts.ClusterSize, "dismissed suggestions do not count")
	assert.InDelta(t, 80.0, counts.ClusterAvgSimilarity, 0.001)
	assert.Equal(t, 0, counts.DescriptionLength)
	assert.Equal(t, len(problem), counts.ProblemStatementLength)
	assert.Equal(t, "", counts.FrequencyTag)
	assert.Equal(t, "major", counts.ImpactTag)
}

func TestSignalsRepository_InheritedVotesAfterMerge(t *testing.T) {
	tc := setupDedupTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	now := time.Now()
	a := tc.createIdea(ctx, "Recurring tasks", now.Add(-time.Hour))
	b := tc.createIdea(ctx, "Repeat tasks", now)
	tc.addVotes(ctx, a.ID, newContributors(4), now)
	tc.addVotes(ctx, b.ID, newContributors(3), now)
	sug := tc.suggest(ctx, a.ID, b.ID, 89)

	_, err := tc.merges.Merge(ctx, tc.workspaceID, sug.ID, a.ID, "")
	require.NoError(t, err)

	counts, err := tc.signals.GetIdeaSignals(ctx, tc.workspaceID, a.ID, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 4, counts.OrganicVotes)
	assert.Equal(t, 3, counts.InheritedVotes)
	assert.Equal(t, 7, counts.UniqueContributors)
	assert.Equal(t, 0, counts.ClusterSize)
}

func TestSignalsRepository_NotFound(t *testing.T) {
	tc := setupDedupTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	_, err := tc.signals.GetIdeaSignals(ctx, tc.workspaceID, uuid.New(), time.Now())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
