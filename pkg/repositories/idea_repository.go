package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ideaflow-inc/ideaflow-engine/pkg/apperrors"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/database"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/models"
)

// IdeaRepository defines data access for ideas.
type IdeaRepository interface {
	Create(ctx context.Context, idea *models.Idea) error
	GetByID(ctx context.Context, workspaceID, ideaID uuid.UUID) (*models.Idea, error)
	// UpdateContent replaces the idea's text. Merged ideas are rejected with apperrors.ErrIdeaMerged.
	UpdateContent(ctx context.Context, workspaceID, ideaID uuid.UUID, title string, description, problemStatement *string) (*models.Idea, error)
	// UpdateRoadmapStatus changes the roadmap status and, when the idea moves
	// onto the roadmap, dismisses its pending suggestions in the same
	// transaction. Returns the number of suggestions dismissed.
	UpdateRoadmapStatus(ctx context.Context, workspaceID, ideaID uuid.UUID, status models.RoadmapStatus, reviewer string) (int, error)
}

type ideaRepository struct{}

var _ IdeaRepository = (*ideaRepository)(nil)

// NewIdeaRepository creates a new idea repository.
func NewIdeaRepository() IdeaRepository {
	return &ideaRepository{}
}

const ideaColumns = `id, workspace_id, title, description, problem_statement, status, roadmap_status,
	vote_count, inherited_vote_count, frequency_tag, impact_tag, merged_into_id, created_at, updated_at`

func scanIdea(row pgx.Row) (*models.Idea, error) {
	var i models.Idea
	err := row.Scan(
		&i.ID, &i.WorkspaceID, &i.Title, &i.Description, &i.ProblemStatement, &i.Status, &i.RoadmapStatus,
		&i.VoteCount, &i.InheritedVoteCount, &i.FrequencyTag, &i.ImpactTag, &i.MergedIntoID, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *ideaRepository) Create(ctx context.Context, idea *models.Idea) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return apperrors.ErrNoTenantScope
	}

	if idea.ID == uuid.Nil {
		idea.ID = uuid.New()
	}
	if idea.Status == "" {
		idea.Status = models.IdeaStatusUnderReview
	}
	if idea.RoadmapStatus == "" {
		idea.RoadmapStatus = models.RoadmapStatusNone
	}
	now := time.Now()
	if idea.CreatedAt.IsZero() {
		idea.CreatedAt = now
	}
	idea.UpdatedAt = now

	query := `
		INSERT INTO ideas (id, workspace_id, title, description, problem_statement, status, roadmap_status,
			frequency_tag, impact_tag, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := scope.Conn.Exec(ctx, query,
		idea.ID, idea.WorkspaceID, idea.Title, idea.Description, idea.ProblemStatement,
		idea.Status, idea.RoadmapStatus, idea.FrequencyTag, idea.ImpactTag,
		idea.CreatedAt, idea.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create idea: %w", err)
	}
	return nil
}

func (r *ideaRepository) GetByID(ctx context.Context, workspaceID, ideaID uuid.UUID) (*models.Idea, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, apperrors.ErrNoTenantScope
	}

	query := `SELECT ` + ideaColumns + ` FROM ideas WHERE workspace_id = $1 AND id = $2`
	idea, err := scanIdea(scope.Conn.QueryRow(ctx, query, workspaceID, ideaID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get idea: %w", err)
	}
	return idea, nil
}

func (r *ideaRepository) UpdateContent(ctx context.Context, workspaceID, ideaID uuid.UUID, title string, description, problemStatement *string) (*models.Idea, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, apperrors.ErrNoTenantScope
	}

	query := `
		UPDATE ideas
		SET title = $3, description = $4, problem_statement = $5, updated_at = now()
		WHERE workspace_id = $1 AND id = $2 AND status <> 'MERGED'
		RETURNING ` + ideaColumns

	idea, err := scanIdea(scope.Conn.QueryRow(ctx, query, workspaceID, ideaID, title, description, problemStatement))
	if err == nil {
		return idea, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to update idea: %w", err)
	}

	// Distinguish a missing idea from a merged one.
	if _, getErr := r.GetByID(ctx, workspaceID, ideaID); getErr != nil {
		return nil, getErr
	}
	return nil, apperrors.ErrIdeaMerged
}

func (r *ideaRepository) UpdateRoadmapStatus(ctx context.Context, workspaceID, ideaID uuid.UUID, status models.RoadmapStatus, reviewer string) (int, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return 0, apperrors.ErrNoTenantScope
	}
	if !models.IsValidRoadmapStatus(status) {
		return 0, fmt.Errorf("invalid roadmap status %q: %w", status, apperrors.ErrValidation)
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var current models.IdeaStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM ideas WHERE workspace_id = $1 AND id = $2 FOR UPDATE`,
		workspaceID, ideaID,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = apperrors.ErrNotFound
			return 0, err
		}
		return 0, fmt.Errorf("failed to lock idea: %w", err)
	}
	if current == models.IdeaStatusMerged {
		err = apperrors.ErrIdeaMerged
		return 0, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE ideas SET roadmap_status = $3 WHERE workspace_id = $1 AND id = $2`,
		workspaceID, ideaID, status)
	if err != nil {
		return 0, fmt.Errorf("failed to update roadmap status: %w", err)
	}

	dismissed := 0
	if status.OnRoadmap() {
		dismissed, err = dismissPendingForIdea(ctx, tx, workspaceID, ideaID, uuid.Nil, reviewer)
		if err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return dismissed, nil
}
