package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Suggestion Status
// ============================================================================

// SuggestionStatus is the review state of a duplicate suggestion.
// PENDING is the only non-terminal state.
type SuggestionStatus string

const (
	SuggestionStatusPending   SuggestionStatus = "PENDING"
	SuggestionStatusMerged    SuggestionStatus = "MERGED"
	SuggestionStatusDismissed SuggestionStatus = "DISMISSED"
)

// ValidSuggestionStatuses contains all valid suggestion status values.
var ValidSuggestionStatuses = []SuggestionStatus{
	SuggestionStatusPending,
	SuggestionStatusMerged,
	SuggestionStatusDismissed,
}

// IsValidSuggestionStatus checks if the given status is valid.
func IsValidSuggestionStatus(s SuggestionStatus) bool {
	for _, v := range ValidSuggestionStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ============================================================================
// Duplicate Suggestion
// ============================================================================

// DuplicateSuggestion proposes that DuplicateIdeaID repeats SourceIdeaID.
// SourceIdeaID is always the older idea by creation time.
type DuplicateSuggestion struct {
	ID              uuid.UUID        `json:"id"`
	WorkspaceID     uuid.UUID        `json:"workspace_id"`
	SourceIdeaID    uuid.UUID        `json:"source_idea_id"`
	DuplicateIdeaID uuid.UUID        `json:"duplicate_idea_id"`
	Similarity      int              `json:"similarity"`
	Status          SuggestionStatus `json:"status"`
	ReviewedAt      *time.Time       `json:"reviewed_at,omitempty"`
	ReviewedBy      *string          `json:"reviewed_by,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// Involves reports whether the idea is one side of the suggestion.
func (s *DuplicateSuggestion) Involves(ideaID uuid.UUID) bool {
	return s.SourceIdeaID == ideaID || s.DuplicateIdeaID == ideaID
}

// SuggestionWithIdeas is a suggestion joined with both ideas for operator review.
type SuggestionWithIdeas struct {
	DuplicateSuggestion
	SourceTitle        string        `json:"source_title"`
	SourceVoteCount    int           `json:"source_vote_count"`
	SourceRoadmap      RoadmapStatus `json:"source_roadmap_status"`
	DuplicateTitle     string        `json:"duplicate_title"`
	DuplicateVoteCount int           `json:"duplicate_vote_count"`
	DuplicateRoadmap   RoadmapStatus `json:"duplicate_roadmap_status"`
}

// DuplicateCandidate is a matcher result before it is persisted as a suggestion.
type DuplicateCandidate struct {
	SourceIdeaID    uuid.UUID `json:"source_idea_id"`
	DuplicateIdeaID uuid.UUID `json:"duplicate_idea_id"`
	Similarity      int       `json:"similarity"`
}

// MergeResult is returned by a successful merge.
type MergeResult struct {
	KeptIdeaID        uuid.UUID `json:"kept_idea_id"`
	MergedIdeaID      uuid.UUID `json:"merged_idea_id"`
	VotesTransferred  int       `json:"votes_transferred"`
	KeptVoteCount     int       `json:"kept_vote_count"`
	DismissedCascaded int       `json:"dismissed_suggestions"`
}
