package models

import (
	"time"

	"github.com/google/uuid"
)

// Vote records that a contributor voted for an idea. A contributor votes at
// most once per idea.
type Vote struct {
	ID               uuid.UUID `json:"id"`
	WorkspaceID      uuid.UUID `json:"workspace_id"`
	IdeaID           uuid.UUID `json:"idea_id"`
	ContributorID    uuid.UUID `json:"contributor_id"`
	ContributorEmail *string   `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
}
