package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ideaflow-inc/ideaflow-engine/pkg/apperrors"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/models"
)

func TestIdeaService_Create_EnqueuesEmbedding(t *testing.T) {
	ideas := newMockIdeaRepository()
	enq := &recordingEnqueuer{}
	svc := NewIdeaService(ideas, &mockVoteRepository{}, enq, zap.NewNop())

	idea := &models.Idea{WorkspaceID: uuid.New(), Title: "  Dark mode  "}
	require.NoError(t, svc.Create(context.Background(), idea))
	assert.Equal(t, "Dark mode", idea.Title)
	assert.Equal(t, []uuid.UUID{idea.ID}, enq.ideas)
}

func TestIdeaService_Create_Validation(t *testing.T) {
	enq := &recordingEnqueuer{}
	svc := NewIdeaService(newMockIdeaRepository(), &mockVoteRepository{}, enq, zap.NewNop())

	err := svc.Create(context.Background(), &models.Idea{WorkspaceID: uuid.New(), Title: "   "})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	into := uuid.New()
	err = svc.Create(context.Background(), &models.Idea{WorkspaceID: uuid.New(), Title: "x", MergedIntoID: &into})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Empty(t, enq.ideas)
}

func TestIdeaService_UpdateContent(t *testing.T) {
	ws := uuid.New()
	idea := &models.Idea{ID: uuid.New(), WorkspaceID: ws, Title: "Old"}
	into := uuid.New()
	merged := &models.Idea{ID: uuid.New(), WorkspaceID: ws, Title: "Gone", Status: models.IdeaStatusMerged, MergedIntoID: &into}
	enq := &recordingEnqueuer{}
	svc := NewIdeaService(newMockIdeaRepository(idea, merged), &mockVoteRepository{}, enq, zap.NewNop())

	updated, err := svc.UpdateContent(context.Background(), ws, idea.ID, "New", nil, strPtr("why"))
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, []uuid.UUID{idea.ID}, enq.ideas)

	_, err = svc.UpdateContent(context.Background(), ws, merged.ID, "Edit", nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrIdeaMerged)

	_, err = svc.UpdateContent(context.Background(), ws, idea.ID, "", nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Len(t, enq.ideas, 1, "failed updates must not enqueue")
}

func TestIdeaService_UpdateRoadmapStatus(t *testing.T) {
	ideas := newMockIdeaRepository()
	var gotStatus models.RoadmapStatus
	ideas.updateRoadmapFn = func(ctx context.Context, workspaceID, ideaID uuid.UUID, status models.RoadmapStatus, reviewer string) (int, error) {
		gotStatus = status
		return 2, nil
	}
	svc := NewIdeaService(ideas, &mockVoteRepository{}, &recordingEnqueuer{}, zap.NewNop())

	dismissed, err := svc.UpdateRoadmapStatus(context.Background(), uuid.New(), uuid.New(), models.RoadmapStatusPlanned, "pm")
	require.NoError(t, err)
	assert.Equal(t, 2, dismissed)
	assert.Equal(t, models.RoadmapStatusPlanned, gotStatus)

	_, err = svc.UpdateRoadmapStatus(context.Background(), uuid.New(), uuid.New(), "LATER", "pm")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestIdeaService_Vote(t *testing.T) {
	votes := &mockVoteRepository{}
	svc := NewIdeaService(newMockIdeaRepository(), votes, &recordingEnqueuer{}, zap.NewNop())

	ideaID := uuid.New()
	voter := uuid.New()
	added, err := svc.Vote(context.Background(), &models.Vote{IdeaID: ideaID, ContributorID: voter, ContributorEmail: strPtr("  ")})
	require.NoError(t, err)
	assert.True(t, added)
	require.Len(t, votes.votes, 1)
	assert.Nil(t, votes.votes[0].ContributorEmail)

	added, err = svc.Vote(context.Background(), &models.Vote{IdeaID: ideaID, ContributorID: voter})
	require.NoError(t, err)
	assert.False(t, added)

	_, err = svc.Vote(context.Background(), &models.Vote{IdeaID: ideaID})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
