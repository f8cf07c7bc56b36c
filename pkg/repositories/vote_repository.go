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

// VoteRepository defines data access for votes.
type VoteRepository interface {
	// Add records a vote and refreshes the idea's vote_count. A repeat vote by
	// the same contributor is a no-op; added reports whether a row was inserted.
	Add(ctx context.Context, vote *models.Vote) (added bool, err error)
	ListByIdea(ctx context.Context, workspaceID, ideaID uuid.UUID) ([]*models.Vote, error)
}

type voteRepository struct{}

var _ VoteRepository = (*voteRepository)(nil)

// NewVoteRepository creates a new vote repository.
func NewVoteRepository() VoteRepository {
	return &voteRepository{}
}

func (r *voteRepository) Add(ctx context.Context, vote *models.Vote) (bool, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return false, apperrors.ErrNoTenantScope
	}

	if vote.ID == uuid.Nil {
		vote.ID = uuid.New()
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var status models.IdeaStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM ideas WHERE workspace_id = $1 AND id = $2 FOR UPDATE`,
		vote.WorkspaceID, vote.IdeaID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = apperrors.ErrNotFound
			return false, err
		}
		return false, fmt.Errorf("failed to lock idea: %w", err)
	}
	if status == models.IdeaStatusMerged {
		err = apperrors.ErrIdeaMerged
		return false, err
	}

	insert := `
		INSERT INTO votes (id, workspace_id, idea_id, contributor_id, contributor_email, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
		ON CONFLICT (idea_id, contributor_id) DO NOTHING`

	var createdAt any
	if !vote.CreatedAt.IsZero() {
		createdAt = vote.CreatedAt
	}

	tag, err := tx.Exec(ctx, insert,
		vote.ID, vote.WorkspaceID, vote.IdeaID, vote.ContributorID, vote.ContributorEmail, createdAt)
	if err != nil {
		return false, fmt.Errorf("failed to add vote: %w", err)
	}

	if _, err = recountVotes(ctx, tx, vote.IdeaID); err != nil {
		return false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *voteRepository) ListByIdea(ctx context.Context, workspaceID, ideaID uuid.UUID) ([]*models.Vote, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, apperrors.ErrNoTenantScope
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, workspace_id, idea_id, contributor_id, contributor_email, created_at
		FROM votes
		WHERE workspace_id = $1 AND idea_id = $2
		ORDER BY created_at, id`, workspaceID, ideaID)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	defer rows.Close()

	var votes []*models.Vote
	for rows.Next() {
		var v models.Vote
		if err := rows.Scan(&v.ID, &v.WorkspaceID, &v.IdeaID, &v.ContributorID, &v.ContributorEmail, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating votes: %w", err)
	}
	return votes, nil
}

// recountVotes sets vote_count from the vote rows themselves so the
// denormalized counter cannot drift.
func recountVotes(ctx context.Context, tx pgx.Tx, ideaID uuid.UUID) (int, error) {
	var count int
	err := tx.QueryRow(ctx, `
		UPDATE ideas
		SET vote_count = (SELECT COUNT(*) FROM votes WHERE idea_id = $1)
		WHERE id = $1
		RETURNING vote_count`, ideaID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to recount votes: %w", err)
	}
	return count, nil
}
