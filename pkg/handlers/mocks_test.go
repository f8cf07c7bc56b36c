package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ideaflow-inc/ideaflow-engine/pkg/models"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/repositories"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/services"
)

// passthroughTenant stands in for the database tenant middleware.
func passthroughTenant(next http.HandlerFunc) http.HandlerFunc { return next }

// mockSuggestionService is a configurable mock for suggestion handler tests.
type mockSuggestionService struct {
	suggestions []*models.SuggestionWithIdeas
	dismissed   *models.DuplicateSuggestion
	mergeResult *models.MergeResult
	err         error

	lastFilter   repositories.SuggestionListFilter
	lastKeepID   uuid.UUID
	lastReviewer string
}

var _ services.SuggestionService = (*mockSuggestionService)(nil)

func (m *mockSuggestionService) CreateSuggestions(ctx context.Context, workspaceID uuid.UUID, candidates []models.DuplicateCandidate) (services.SuggestionCreateResult, error) {
	return services.SuggestionCreateResult{}, m.err
}

func (m *mockSuggestionService) List(ctx context.Context, workspaceID uuid.UUID, filter repositories.SuggestionListFilter) ([]*models.SuggestionWithIdeas, error) {
	m.lastFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	return m.suggestions, nil
}

func (m *mockSuggestionService) Dismiss(ctx context.Context, workspaceID, suggestionID uuid.UUID, reviewer string) (*models.DuplicateSuggestion, error) {
	m.lastReviewer = reviewer
	if m.err != nil {
		return nil, m.err
	}
	return m.dismissed, nil
}

func (m *mockSuggestionService) Merge(ctx context.Context, workspaceID, suggestionID, keepIdeaID uuid.UUID, reviewer string) (*models.MergeResult, error) {
	m.lastKeepID = keepIdeaID
	m.lastReviewer = reviewer
	if m.err != nil {
		return nil, m.err
	}
	return m.mergeResult, nil
}

// mockIdeaService is a configurable mock for idea handler tests.
type mockIdeaService struct {
	err       error
	dismissed int
	added     bool

	created      *models.Idea
	lastVote     *models.Vote
	lastRoadmap  models.RoadmapStatus
	lastReviewer string
}

var _ services.IdeaService = (*mockIdeaService)(nil)

func (m *mockIdeaService) Create(ctx context.Context, idea *models.Idea) error {
	if m.err != nil {
		return m.err
	}
	idea.ID = uuid.New()
	idea.Status = models.IdeaStatusUnderReview
	idea.RoadmapStatus = models.RoadmapStatusNone
	idea.CreatedAt = time.Now()
	m.created = idea
	return nil
}

func (m *mockIdeaService) UpdateContent(ctx context.Context, workspaceID, ideaID uuid.UUID, title string, description, problemStatement *string) (*models.Idea, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Idea{ID: ideaID, WorkspaceID: workspaceID, Title: title, Description: description, ProblemStatement: problemStatement}, nil
}

func (m *mockIdeaService) UpdateRoadmapStatus(ctx context.Context, workspaceID, ideaID uuid.UUID, status models.RoadmapStatus, reviewer string) (int, error) {
	m.lastRoadmap = status
	m.lastReviewer = reviewer
	return m.dismissed, m.err
}

func (m *mockIdeaService) Vote(ctx context.Context, vote *models.Vote) (bool, error) {
	m.lastVote = vote
	return m.added, m.err
}

// mockConfidenceService returns a fixed score.
type mockConfidenceService struct {
	result *services.IdeaConfidence
	err    error
}

var _ services.ConfidenceService = (*mockConfidenceService)(nil)

func (m *mockConfidenceService) ScoreIdea(ctx context.Context, workspaceID, ideaID uuid.UUID) (*services.IdeaConfidence, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// mockDedupScheduler returns a fixed batch result.
type mockDedupScheduler struct {
	result *services.BatchResult
	err    error
	runs   int
}

var _ services.DedupScheduler = (*mockDedupScheduler)(nil)

func (m *mockDedupScheduler) RunOnce(ctx context.Context) (*services.BatchResult, error) {
	m.runs++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockDedupScheduler) RunScheduler(ctx context.Context, interval time.Duration) {}
