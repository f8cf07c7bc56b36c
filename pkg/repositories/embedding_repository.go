package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/ideaflow-inc/ideaflow-engine/pkg/apperrors"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/database"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/models"
)

// PairQuery parameterizes the pgvector self-join.
type PairQuery struct {
	Threshold     float64
	TitleWeight   float64
	ProblemWeight float64
}

// EmbeddingRepository stores idea embeddings and runs vector similarity queries.
type EmbeddingRepository interface {
	Upsert(ctx context.Context, e *models.IdeaEmbedding) error
	Get(ctx context.Context, workspaceID, ideaID uuid.UUID) (*models.IdeaEmbedding, error)
	Delete(ctx context.Context, workspaceID, ideaID uuid.UUID) error
	// CountEligible counts non-merged ideas that have an embedding.
	CountEligible(ctx context.Context, workspaceID uuid.UUID) (int, error)
	// FindCandidatePairs returns unordered pairs above the threshold in one
	// self-join, skipping merged ideas, pairs where both ideas are on the
	// roadmap, and pairs that already have a suggestion.
	FindCandidatePairs(ctx context.Context, workspaceID uuid.UUID, q PairQuery) ([]models.ScoredPair, error)
	// ListMatchable loads every non-merged embedded idea for in-process matching.
	ListMatchable(ctx context.Context, workspaceID uuid.UUID) ([]models.MatchableIdea, error)
	// ListSyncCandidates returns non-merged ideas whose embedding is missing,
	// from another model, or older than the idea text, oldest ideas first.
	ListSyncCandidates(ctx context.Context, workspaceID uuid.UUID, model string) ([]models.EmbeddingCandidate, error)
}

type embeddingRepository struct{}

var _ EmbeddingRepository = (*embeddingRepository)(nil)

// NewEmbeddingRepository creates a new embedding repository.
func NewEmbeddingRepository() EmbeddingRepository {
	return &embeddingRepository{}
}

func (r *embeddingRepository) Upsert(ctx context.Context, e *models.IdeaEmbedding) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return apperrors.ErrNoTenantScope
	}

	query := `
		INSERT INTO idea_embeddings (idea_id, workspace_id, title_embedding, problem_embedding, model_version, content_hash, updated_at)
		SELECT $1::uuid, $2::uuid, $3::vector, $4::vector, $5::text, $6::text, now()
		FROM ideas WHERE id = $1::uuid AND workspace_id = $2::uuid AND status <> 'MERGED'
		ON CONFLICT (idea_id) DO UPDATE
		SET title_embedding = EXCLUDED.title_embedding,
		    problem_embedding = EXCLUDED.problem_embedding,
		    model_version = EXCLUDED.model_version,
		    content_hash = EXCLUDED.content_hash,
		    updated_at = EXCLUDED.updated_at
		RETURNING updated_at`

	err := scope.Conn.QueryRow(ctx, query,
		e.IdeaID, e.WorkspaceID, e.TitleEmbedding, e.ProblemEmbedding, e.ModelVersion, e.ContentHash,
	).Scan(&e.UpdatedAt)
	if err != nil {
		// The idea vanished or was merged while its embedding was being computed.
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrIdeaMerged
		}
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

func (r *embeddingRepository) Get(ctx context.Context, workspaceID, ideaID uuid.UUID) (*models.IdeaEmbedding, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, apperrors.ErrNoTenantScope
	}

	var e models.IdeaEmbedding
	err := scope.Conn.QueryRow(ctx, `
		SELECT idea_id, workspace_id, title_embedding, problem_embedding, model_version, content_hash, updated_at
		FROM idea_embeddings
		WHERE workspace_id = $1 AND idea_id = $2`, workspaceID, ideaID,
	).Scan(&e.IdeaID, &e.WorkspaceID, &e.TitleEmbedding, &e.ProblemEmbedding, &e.ModelVersion, &e.ContentHash, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}
	return &e, nil
}

func (r *embeddingRepository) Delete(ctx context.Context, workspaceID, ideaID uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return apperrors.ErrNoTenantScope
	}

	if _, err := scope.Conn.Exec(ctx,
		`DELETE FROM idea_embeddings WHERE workspace_id = $1 AND idea_id = $2`, workspaceID, ideaID,
	); err != nil {
		return fmt.Errorf("failed to delete embedding: %w", err)
	}
	return nil
}

func (r *embeddingRepository) CountEligible(ctx context.Context, workspaceID uuid.UUID) (int, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return 0, apperrors.ErrNoTenantScope
	}

	var n int
	err := scope.Conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM idea_embeddings e
		JOIN ideas i ON i.id = e.idea_id
		WHERE e.workspace_id = $1 AND i.status <> 'MERGED'`, workspaceID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count embedded ideas: %w", err)
	}
	return n, nil
}

// Vectors of different dimensions (a model change mid-sync) make <=> fail,
// and a zero-magnitude vector makes it NaN, which sorts above every number.
// The CASE yields NULL for those title pairs so the row drops out of the
// threshold filter; a degenerate problem pair falls back to the title score.
const candidatePairsQuery = `
	WITH pairs AS (
		SELECT a.idea_id AS a_id, b.idea_id AS b_id,
		       ia.created_at AS a_created, ib.created_at AS b_created,
		       CASE
		           WHEN vector_dims(a.title_embedding) <> vector_dims(b.title_embedding) THEN NULL
		           WHEN vector_norm(a.title_embedding) = 0 OR vector_norm(b.title_embedding) = 0 THEN NULL
		           WHEN a.problem_embedding IS NOT NULL AND b.problem_embedding IS NOT NULL
		                AND vector_dims(a.problem_embedding) = vector_dims(b.problem_embedding)
		                AND vector_norm(a.problem_embedding) > 0 AND vector_norm(b.problem_embedding) > 0
		                AND $3::float8 + $4::float8 > 0
		           THEN ($3::float8 * (1 - (a.title_embedding <=> b.title_embedding))
		                 + $4::float8 * (1 - (a.problem_embedding <=> b.problem_embedding)))
		                / ($3::float8 + $4::float8)
		           ELSE 1 - (a.title_embedding <=> b.title_embedding)
		       END AS similarity
		FROM idea_embeddings a
		JOIN idea_embeddings b ON b.workspace_id = a.workspace_id AND a.idea_id < b.idea_id
		JOIN ideas ia ON ia.id = a.idea_id
		JOIN ideas ib ON ib.id = b.idea_id
		WHERE a.workspace_id = $1
		  AND ia.status <> 'MERGED'
		  AND ib.status <> 'MERGED'
		  AND NOT (ia.roadmap_status <> 'NONE' AND ib.roadmap_status <> 'NONE')
		  AND NOT EXISTS (
		      SELECT 1 FROM duplicate_suggestions s
		      WHERE s.workspace_id = a.workspace_id
		        AND LEAST(s.source_idea_id, s.duplicate_idea_id) = a.idea_id
		        AND GREATEST(s.source_idea_id, s.duplicate_idea_id) = b.idea_id
		  )
	)
	SELECT a_id, b_id, a_created, b_created, similarity
	FROM pairs
	WHERE similarity > $2::float8 AND similarity <> 'NaN'::float8`

func (r *embeddingRepository) FindCandidatePairs(ctx context.Context, workspaceID uuid.UUID, q PairQuery) ([]models.ScoredPair, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, apperrors.ErrNoTenantScope
	}

	rows, err := scope.Conn.Query(ctx, candidatePairsQuery, workspaceID, q.Threshold, q.TitleWeight, q.ProblemWeight)
	if err != nil {
		return nil, fmt.Errorf("failed to find candidate pairs: %w", err)
	}
	defer rows.Close()

	var pairs []models.ScoredPair
	for rows.Next() {
		var p models.ScoredPair
		if err := rows.Scan(&p.IdeaA, &p.IdeaB, &p.CreatedA, &p.CreatedB, &p.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan candidate pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidate pairs: %w", err)
	}
	return pairs, nil
}

func (r *embeddingRepository) ListMatchable(ctx context.Context, workspaceID uuid.UUID) ([]models.MatchableIdea, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, apperrors.ErrNoTenantScope
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT e.idea_id, i.created_at, i.roadmap_status <> 'NONE', e.title_embedding, e.problem_embedding
		FROM idea_embeddings e
		JOIN ideas i ON i.id = e.idea_id
		WHERE e.workspace_id = $1 AND i.status <> 'MERGED'
		ORDER BY e.idea_id`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings: %w", err)
	}
	defer rows.Close()

	var ideas []models.MatchableIdea
	for rows.Next() {
		var m models.MatchableIdea
		var title pgvector.Vector
		var problem *pgvector.Vector
		if err := rows.Scan(&m.IdeaID, &m.CreatedAt, &m.OnRoadmap, &title, &problem); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		m.TitleEmbedding = title.Slice()
		if problem != nil {
			m.ProblemEmbedding = problem.Slice()
		}
		ideas = append(ideas, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating embeddings: %w", err)
	}
	return ideas, nil
}

func (r *embeddingRepository) ListSyncCandidates(ctx context.Context, workspaceID uuid.UUID, model string) ([]models.EmbeddingCandidate, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, apperrors.ErrNoTenantScope
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT i.id, i.title, i.problem_statement, COALESCE(e.content_hash, ''), COALESCE(e.model_version, '')
		FROM ideas i
		LEFT JOIN idea_embeddings e ON e.idea_id = i.id
		WHERE i.workspace_id = $1
		  AND i.status <> 'MERGED'
		  AND (e.idea_id IS NULL OR e.model_version <> $2 OR e.updated_at < i.updated_at)
		ORDER BY i.created_at, i.id`, workspaceID, model)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync candidates: %w", err)
	}
	defer rows.Close()

	var out []models.EmbeddingCandidate
	for rows.Next() {
		var c models.EmbeddingCandidate
		if err := rows.Scan(&c.IdeaID, &c.Title, &c.ProblemStatement, &c.CurrentHash, &c.CurrentModel); err != nil {
			return nil, fmt.Errorf("failed to scan sync candidate: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync candidates: %w", err)
	}
	return out, nil
}
