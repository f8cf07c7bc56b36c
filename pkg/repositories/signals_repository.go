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

// SignalsRepository aggregates the raw counts behind an idea's confidence score.
type SignalsRepository interface {
	// GetIdeaSignals aggregates votes, contributor domains, pending duplicate
	// pressure and content size for one idea. recentSince bounds RecentVotes.
	GetIdeaSignals(ctx context.Context, workspaceID, ideaID uuid.UUID, recentSince time.Time) (*models.IdeaSignalCounts, error)
}

type signalsRepository struct{}

var _ SignalsRepository = (*signalsRepository)(nil)

// NewSignalsRepository creates a new signals repository.
func NewSignalsRepository() SignalsRepository {
	return &signalsRepository{}
}

// Organic votes are the vote rows not inherited through merges. Cluster
// figures cover pending suggestions only; dismissed pairs are not duplicates
// and merged ones are already folded into the vote counts.
const ideaSignalsQuery = `
	WITH idea AS (
		SELECT id, created_at, vote_count, inherited_vote_count,
		       COALESCE(length(description), 0) AS description_len,
		       COALESCE(length(problem_statement), 0) AS problem_len,
		       COALESCE(frequency_tag, '') AS frequency_tag,
		       COALESCE(impact_tag, '') AS impact_tag
		FROM ideas
		WHERE workspace_id = $1 AND id = $2
	),
	vote_stats AS (
		SELECT COUNT(DISTINCT contributor_id) AS contributors,
		       COUNT(*) FILTER (WHERE created_at >= $3) AS recent,
		       COUNT(*) FILTER (WHERE contributor_email LIKE '%_@_%') AS with_domain
		FROM votes
		WHERE workspace_id = $1 AND idea_id = $2
	),
	top_domain AS (
		SELECT lower(split_part(contributor_email, '@', 2)) AS domain, COUNT(*) AS votes
		FROM votes
		WHERE workspace_id = $1 AND idea_id = $2 AND contributor_email LIKE '%_@_%'
		GROUP BY 1
		ORDER BY 2 DESC, 1
		LIMIT 1
	),
	cluster AS (
		SELECT COUNT(*) AS size, COALESCE(AVG(similarity), 0)::float8 AS avg_similarity
		FROM duplicate_suggestions
		WHERE workspace_id = $1 AND status = 'PENDING'
		  AND (source_idea_id = $2 OR duplicate_idea_id = $2)
	)
	SELECT idea.id, idea.created_at,
	       GREATEST(idea.vote_count - idea.inherited_vote_count, 0),
	       idea.inherited_vote_count,
	       vote_stats.contributors, vote_stats.recent, vote_stats.with_domain,
	       COALESCE(top_domain.domain, ''), COALESCE(top_domain.votes, 0),
	       cluster.size, cluster.avg_similarity,
	       idea.description_len, idea.problem_len, idea.frequency_tag, idea.impact_tag
	FROM idea
	CROSS JOIN vote_stats
	CROSS JOIN cluster
	LEFT JOIN top_domain ON true`

func (r *signalsRepository) GetIdeaSignals(ctx context.Context, workspaceID, ideaID uuid.UUID, recentSince time.Time) (*models.IdeaSignalCounts, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, apperrors.ErrNoTenantScope
	}

	var c models.IdeaSignalCounts
	err := scope.Conn.QueryRow(ctx, ideaSignalsQuery, workspaceID, ideaID, recentSince).Scan(
		&c.IdeaID, &c.CreatedAt,
		&c.OrganicVotes, &c.InheritedVotes,
		&c.UniqueContributors, &c.RecentVotes, &c.VotesWithDomain,
		&c.TopDomain, &c.TopDomainVotes,
		&c.ClusterSize, &c.ClusterAvgSimilarity,
		&c.DescriptionLength, &c.ProblemStatementLength, &c.FrequencyTag, &c.ImpactTag,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to aggregate idea signals: %w", err)
	}
	return &c, nil
}
