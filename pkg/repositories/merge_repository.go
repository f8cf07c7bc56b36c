package repositories

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ideaflow-inc/ideaflow-engine/pkg/apperrors"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/database"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/models"
)

// MergeRepository executes the merge of a duplicate suggestion.
type MergeRepository interface {
	// Merge folds the other idea of the suggestion into keepIdeaID in a single
	// transaction: votes move over without double counting, the merged idea
	// is marked MERGED and loses its embedding, the suggestion becomes MERGED,
	// and other pending suggestions touching the merged idea are dismissed.
	//
	// Errors: apperrors.ErrNotFound, apperrors.ErrAlreadyProcessed,
	// apperrors.ErrInvalidKeepID. Nothing is written on error.
	Merge(ctx context.Context, workspaceID, suggestionID, keepIdeaID uuid.UUID, reviewer string) (*models.MergeResult, error)
}

type mergeRepository struct{}

var _ MergeRepository = (*mergeRepository)(nil)

// NewMergeRepository creates a new merge repository.
func NewMergeRepository() MergeRepository {
	return &mergeRepository{}
}

func (r *mergeRepository) Merge(ctx context.Context, workspaceID, suggestionID, keepIdeaID uuid.UUID, reviewer string) (result *models.MergeResult, err error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, apperrors.ErrNoTenantScope
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Lock the suggestion first; a concurrent merge of the same suggestion
	// waits here and then sees a non-PENDING status.
	var sourceID, duplicateID uuid.UUID
	var status models.SuggestionStatus
	err = tx.QueryRow(ctx, `
		SELECT source_idea_id, duplicate_idea_id, status
		FROM duplicate_suggestions
		WHERE workspace_id = $1 AND id = $2
		FOR UPDATE`, workspaceID, suggestionID,
	).Scan(&sourceID, &duplicateID, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = apperrors.ErrNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock suggestion: %w", err)
	}
	if status != models.SuggestionStatusPending {
		err = apperrors.ErrAlreadyProcessed
		return nil, err
	}

	var mergeIdeaID uuid.UUID
	switch keepIdeaID {
	case sourceID:
		mergeIdeaID = duplicateID
	case duplicateID:
		mergeIdeaID = sourceID
	default:
		err = apperrors.ErrInvalidKeepID
		return nil, err
	}

	// Lock both ideas in id order so merges sharing an idea cannot deadlock.
	first, second := sourceID, duplicateID
	if bytes.Compare(second[:], first[:]) < 0 {
		first, second = second, first
	}
	statuses := make(map[uuid.UUID]models.IdeaStatus, 2)
	for _, id := range []uuid.UUID{first, second} {
		var s models.IdeaStatus
		err = tx.QueryRow(ctx,
			`SELECT status FROM ideas WHERE workspace_id = $1 AND id = $2 FOR UPDATE`,
			workspaceID, id,
		).Scan(&s)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				err = apperrors.ErrNotFound
				return nil, err
			}
			return nil, fmt.Errorf("failed to lock idea: %w", err)
		}
		statuses[id] = s
	}
	if statuses[mergeIdeaID] == models.IdeaStatusMerged || statuses[keepIdeaID] == models.IdeaStatusMerged {
		err = apperrors.ErrAlreadyProcessed
		return nil, err
	}

	// 1. Transfer votes; contributors who voted on both keep a single vote.
	tag, err := tx.Exec(ctx, `
		INSERT INTO votes (id, workspace_id, idea_id, contributor_id, contributor_email, created_at)
		SELECT gen_random_uuid(), workspace_id, $2, contributor_id, contributor_email, created_at
		FROM votes
		WHERE workspace_id = $1 AND idea_id = $3
		ON CONFLICT (idea_id, contributor_id) DO NOTHING`,
		workspaceID, keepIdeaID, mergeIdeaID)
	if err != nil {
		return nil, fmt.Errorf("failed to transfer votes: %w", err)
	}
	transferred := int(tag.RowsAffected())

	// 2. Recount the kept idea and record inherited votes.
	var keptCount int
	err = tx.QueryRow(ctx, `
		UPDATE ideas
		SET vote_count = (SELECT COUNT(*) FROM votes WHERE idea_id = $2),
		    inherited_vote_count = inherited_vote_count + $3
		WHERE workspace_id = $1 AND id = $2
		RETURNING vote_count`,
		workspaceID, keepIdeaID, transferred,
	).Scan(&keptCount)
	if err != nil {
		return nil, fmt.Errorf("failed to update kept idea: %w", err)
	}

	// 3. Soft-delete the merged idea.
	_, err = tx.Exec(ctx, `
		UPDATE ideas
		SET status = 'MERGED', merged_into_id = $3, updated_at = now()
		WHERE workspace_id = $1 AND id = $2`,
		workspaceID, mergeIdeaID, keepIdeaID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark idea merged: %w", err)
	}

	// 4. Drop its embedding so it never matches again.
	_, err = tx.Exec(ctx,
		`DELETE FROM idea_embeddings WHERE workspace_id = $1 AND idea_id = $2`,
		workspaceID, mergeIdeaID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete embedding: %w", err)
	}

	// 5. Close the suggestion.
	_, err = tx.Exec(ctx, `
		UPDATE duplicate_suggestions
		SET status = 'MERGED', reviewed_at = now(), reviewed_by = NULLIF($3, '')
		WHERE workspace_id = $1 AND id = $2`,
		workspaceID, suggestionID, reviewer)
	if err != nil {
		return nil, fmt.Errorf("failed to mark suggestion merged: %w", err)
	}

	// 6. Cascade.
	dismissed, err := dismissPendingForIdea(ctx, tx, workspaceID, mergeIdeaID, suggestionID, reviewer)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &models.MergeResult{
		KeptIdeaID:        keepIdeaID,
		MergedIdeaID:      mergeIdeaID,
		VotesTransferred:  transferred,
		KeptVoteCount:     keptCount,
		DismissedCascaded: dismissed,
	}, nil
}
