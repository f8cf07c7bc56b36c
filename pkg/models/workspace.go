package models

import "github.com/google/uuid"

// Workspace is the unit of tenant isolation.
type Workspace struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	DedupEnabled bool      `json:"dedup_enabled"`
}
