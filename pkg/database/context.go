package database

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	// TenantScopeKey is the context key for storing the workspace-scoped database connection.
	TenantScopeKey contextKey = "tenantScope"
)

// GetTenantScope retrieves the workspace-scoped database connection from context.
// Returns nil and false if not present.
func GetTenantScope(ctx context.Context) (*TenantScope, bool) {
	scope, ok := ctx.Value(TenantScopeKey).(*TenantScope)
	return scope, ok
}

// SetTenantScope stores the workspace-scoped database connection in context.
func SetTenantScope(ctx context.Context, scope *TenantScope) context.Context {
	return context.WithValue(ctx, TenantScopeKey, scope)
}

// TenantContextFunc acquires a workspace-scoped database connection.
// Returns the scoped context, a cleanup function (MUST be called), and any error.
type TenantContextFunc func(ctx context.Context, workspaceID uuid.UUID) (context.Context, func(), error)

// NewTenantContextFunc creates a TenantContextFunc that uses the given database.
func NewTenantContextFunc(db *DB) TenantContextFunc {
	return func(ctx context.Context, workspaceID uuid.UUID) (context.Context, func(), error) {
		scope, err := db.WithTenant(ctx, workspaceID)
		if err != nil {
			return nil, nil, err
		}
		return SetTenantScope(ctx, scope), func() { scope.Close() }, nil
	}
}

// GlobalContextFunc acquires a connection without tenant scope, for jobs that
// must see every workspace. The cleanup function MUST be called.
type GlobalContextFunc func(ctx context.Context) (context.Context, func(), error)

// NewGlobalContextFunc creates a GlobalContextFunc that uses the given database.
func NewGlobalContextFunc(db *DB) GlobalContextFunc {
	return func(ctx context.Context) (context.Context, func(), error) {
		scope, err := db.WithoutTenant(ctx)
		if err != nil {
			return nil, nil, err
		}
		return SetTenantScope(ctx, scope), func() { scope.Close() }, nil
	}
}
