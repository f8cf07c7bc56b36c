package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ideaflow-inc/ideaflow-engine/pkg/apperrors"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/database"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/models"
)

// SuggestionListFilter narrows ListWithIdeas.
type SuggestionListFilter struct {
	Status *models.SuggestionStatus
	Limit  int
	Offset int
}

// SuggestionRepository defines data access for duplicate suggestions.
type SuggestionRepository interface {
	// Create inserts a PENDING suggestion. An existing suggestion for the same
	// unordered pair, in any status, makes this a no-op and inserted is false.
	Create(ctx context.Context, workspaceID uuid.UUID, candidate models.DuplicateCandidate) (inserted bool, err error)
	GetByID(ctx context.Context, workspaceID, suggestionID uuid.UUID) (*models.DuplicateSuggestion, error)
	ListWithIdeas(ctx context.Context, workspaceID uuid.UUID, filter SuggestionListFilter) ([]*models.SuggestionWithIdeas, error)
	// Dismiss moves a PENDING suggestion to DISMISSED.
	Dismiss(ctx context.Context, workspaceID, suggestionID uuid.UUID, reviewer string) (*models.DuplicateSuggestion, error)
	CountPending(ctx context.Context, workspaceID uuid.UUID) (int, error)
	// ListPairKeys returns the idea pair of every suggestion, in any status.
	ListPairKeys(ctx context.Context, workspaceID uuid.UUID) ([][2]uuid.UUID, error)
}

type suggestionRepository struct{}

var _ SuggestionRepository = (*suggestionRepository)(nil)

// NewSuggestionRepository creates a new suggestion repository.
func NewSuggestionRepository() SuggestionRepository {
	return &suggestionRepository{}
}

const suggestionColumns = `id, workspace_id, source_idea_id, duplicate_idea_id, similarity, status, reviewed_at, reviewed_by, created_at`

func scanSuggestion(row pgx.Row) (*models.DuplicateSuggestion, error) {
	var s models.DuplicateSuggestion
	err := row.Scan(&s.ID, &s.WorkspaceID, &s.SourceIdeaID, &s.DuplicateIdeaID, &s.Similarity,
		&s.Status, &s.ReviewedAt, &s.ReviewedBy, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *suggestionRepository) Create(ctx context.Context, workspaceID uuid.UUID, c models.DuplicateCandidate) (bool, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return false, apperrors.ErrNoTenantScope
	}

	query := `
		INSERT INTO duplicate_suggestions (id, workspace_id, source_idea_id, duplicate_idea_id, similarity, status)
		VALUES ($1, $2, $3, $4, $5, 'PENDING')
		ON CONFLICT DO NOTHING`

	tag, err := scope.Conn.Exec(ctx, query, uuid.New(), workspaceID, c.SourceIdeaID, c.DuplicateIdeaID, c.Similarity)
	if err != nil {
		return false, fmt.Errorf("failed to create suggestion: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *suggestionRepository) GetByID(ctx context.Context, workspaceID, suggestionID uuid.UUID) (*models.DuplicateSuggestion, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, apperrors.ErrNoTenantScope
	}

	query := `SELECT ` + suggestionColumns + ` FROM duplicate_suggestions WHERE workspace_id = $1 AND id = $2`
	s, err := scanSuggestion(scope.Conn.QueryRow(ctx, query, workspaceID, suggestionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get suggestion: %w", err)
	}
	return s, nil
}

func (r *suggestionRepository) ListWithIdeas(ctx context.Context, workspaceID uuid.UUID, filter SuggestionListFilter) ([]*models.SuggestionWithIdeas, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, apperrors.ErrNoTenantScope
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT s.id, s.workspace_id, s.source_idea_id, s.duplicate_idea_id, s.similarity, s.status,
		       s.reviewed_at, s.reviewed_by, s.created_at,
		       src.title, src.vote_count, src.roadmap_status,
		       dup.title, dup.vote_count, dup.roadmap_status
		FROM duplicate_suggestions s
		JOIN ideas src ON src.id = s.source_idea_id
		JOIN ideas dup ON dup.id = s.duplicate_idea_id
		WHERE s.workspace_id = $1
		  AND ($2::text IS NULL OR s.status = $2)
		ORDER BY s.created_at DESC, s.similarity DESC, s.id
		LIMIT $3 OFFSET $4`

	var status *string
	if filter.Status != nil {
		v := string(*filter.Status)
		status = &v
	}

	rows, err := scope.Conn.Query(ctx, query, workspaceID, status, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}
	defer rows.Close()

	var out []*models.SuggestionWithIdeas
	for rows.Next() {
		var s models.SuggestionWithIdeas
		err := rows.Scan(
			&s.ID, &s.WorkspaceID, &s.SourceIdeaID, &s.DuplicateIdeaID, &s.Similarity, &s.Status,
			&s.ReviewedAt, &s.ReviewedBy, &s.CreatedAt,
			&s.SourceTitle, &s.SourceVoteCount, &s.SourceRoadmap,
			&s.DuplicateTitle, &s.DuplicateVoteCount, &s.DuplicateRoadmap,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating suggestions: %w", err)
	}
	return out, nil
}

func (r *suggestionRepository) Dismiss(ctx context.Context, workspaceID, suggestionID uuid.UUID, reviewer string) (*models.DuplicateSuggestion, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, apperrors.ErrNoTenantScope
	}

	query := `
		UPDATE duplicate_suggestions
		SET status = 'DISMISSED', reviewed_at = now(), reviewed_by = NULLIF($3, '')
		WHERE workspace_id = $1 AND id = $2 AND status = 'PENDING'
		RETURNING ` + suggestionColumns

	s, err := scanSuggestion(scope.Conn.QueryRow(ctx, query, workspaceID, suggestionID, reviewer))
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to dismiss suggestion: %w", err)
	}

	// Nothing updated: either unknown or no longer pending.
	if _, getErr := r.GetByID(ctx, workspaceID, suggestionID); getErr != nil {
		return nil, getErr
	}
	return nil, apperrors.ErrAlreadyProcessed
}

func (r *suggestionRepository) CountPending(ctx context.Context, workspaceID uuid.UUID) (int, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return 0, apperrors.ErrNoTenantScope
	}

	var n int
	err := scope.Conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM duplicate_suggestions WHERE workspace_id = $1 AND status = 'PENDING'`,
		workspaceID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending suggestions: %w", err)
	}
	return n, nil
}

func (r *suggestionRepository) ListPairKeys(ctx context.Context, workspaceID uuid.UUID) ([][2]uuid.UUID, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, apperrors.ErrNoTenantScope
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT source_idea_id, duplicate_idea_id
		FROM duplicate_suggestions
		WHERE workspace_id = $1`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestion pairs: %w", err)
	}
	defer rows.Close()

	var keys [][2]uuid.UUID
	for rows.Next() {
		var k [2]uuid.UUID
		if err := rows.Scan(&k[0], &k[1]); err != nil {
			return nil, fmt.Errorf("failed to scan suggestion pair: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating suggestion pairs: %w", err)
	}
	return keys, nil
}

// dismissPendingForIdea dismisses every PENDING suggestion that references
// ideaID, except the one with id except (uuid.Nil excludes nothing). It runs
// inside the caller's transaction.
func dismissPendingForIdea(ctx context.Context, tx pgx.Tx, workspaceID, ideaID, except uuid.UUID, reviewer string) (int, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE duplicate_suggestions
		SET status = 'DISMISSED', reviewed_at = now(), reviewed_by = NULLIF($4, '')
		WHERE workspace_id = $1
		  AND status = 'PENDING'
		  AND (source_idea_id = $2 OR duplicate_idea_id = $2)
		  AND id <> $3`,
		workspaceID, ideaID, except, reviewer)
	if err != nil {
		return 0, fmt.Errorf("failed to dismiss pending suggestions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
