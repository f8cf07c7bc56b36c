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

// WorkspaceRepository reads workspaces. Workspaces are not row-level
// secured; the batch scheduler lists them from an unscoped connection.
type WorkspaceRepository interface {
	Create(ctx context.Context, ws *models.Workspace) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Workspace, error)
	// ListEligibleIDs returns live workspaces with duplicate detection enabled, ordered by id.
	ListEligibleIDs(ctx context.Context) ([]uuid.UUID, error)
}

type workspaceRepository struct{}

var _ WorkspaceRepository = (*workspaceRepository)(nil)

// NewWorkspaceRepository creates a new workspace repository.
func NewWorkspaceRepository() WorkspaceRepository {
	return &workspaceRepository{}
}

func (r *workspaceRepository) Create(ctx context.Context, ws *models.Workspace) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return apperrors.ErrNoTenantScope
	}

	if ws.ID == uuid.Nil {
		ws.ID = uuid.New()
	}

	_, err := scope.Conn.Exec(ctx,
		`INSERT INTO workspaces (id, name, dedup_enabled) VALUES ($1, $2, $3)`,
		ws.ID, ws.Name, ws.DedupEnabled)
	if err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	return nil
}

func (r *workspaceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Workspace, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, apperrors.ErrNoTenantScope
	}

	var ws models.Workspace
	err := scope.Conn.QueryRow(ctx,
		`SELECT id, name, dedup_enabled FROM workspaces WHERE id = $1 AND deleted_at IS NULL`, id,
	).Scan(&ws.ID, &ws.Name, &ws.DedupEnabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return &ws, nil
}

func (r *workspaceRepository) ListEligibleIDs(ctx context.Context) ([]uuid.UUID, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, apperrors.ErrNoTenantScope
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id FROM workspaces
		WHERE deleted_at IS NULL AND dedup_enabled
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to scan workspaces: %w", err)
	}
	return ids, nil
}
