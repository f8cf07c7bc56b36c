package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Idea Status
// ============================================================================

// IdeaStatus is the lifecycle status of an idea. MERGED encodes soft deletion.
type IdeaStatus string

const (
	IdeaStatusUnderReview IdeaStatus = "UNDER_REVIEW"
	IdeaStatusPublished   IdeaStatus = "PUBLISHED"
	IdeaStatusDeclined    IdeaStatus = "DECLINED"
	IdeaStatusMerged      IdeaStatus = "MERGED"
	IdeaStatusPending     IdeaStatus = "PENDING"
)

// ============================================================================
// Roadmap Status
// ============================================================================

// RoadmapStatus tracks whether an idea has been promoted onto the roadmap.
type RoadmapStatus string

const (
	RoadmapStatusNone       RoadmapStatus = "NONE"
	RoadmapStatusPlanned    RoadmapStatus = "PLANNED"
	RoadmapStatusInProgress RoadmapStatus = "IN_PROGRESS"
	RoadmapStatusReleased   RoadmapStatus = "RELEASED"
)

// ValidRoadmapStatuses contains all valid roadmap status values.
var ValidRoadmapStatuses = []RoadmapStatus{
	RoadmapStatusNone,
	RoadmapStatusPlanned,
	RoadmapStatusInProgress,
	RoadmapStatusReleased,
}

// IsValidRoadmapStatus checks if the given roadmap status is valid.
func IsValidRoadmapStatus(s RoadmapStatus) bool {
	for _, v := range ValidRoadmapStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// OnRoadmap reports whether the status places an idea on the roadmap.
func (s RoadmapStatus) OnRoadmap() bool {
	return s != "" && s != RoadmapStatusNone
}

// ============================================================================
// Idea
// ============================================================================

// Idea is a feature request submitted to a workspace.
// VoteCount always equals the number of vote rows for the idea.
// MergedIntoID is set if and only if Status is MERGED. UpdatedAt tracks the
// idea text and status; vote changes and roadmap moves leave it alone.
type Idea struct {
	ID                 uuid.UUID     `json:"id"`
	WorkspaceID        uuid.UUID     `json:"workspace_id"`
	Title              string        `json:"title"`
	Description        *string       `json:"description,omitempty"`
	ProblemStatement   *string       `json:"problem_statement,omitempty"`
	Status             IdeaStatus    `json:"status"`
	RoadmapStatus      RoadmapStatus `json:"roadmap_status"`
	VoteCount          int           `json:"vote_count"`
	InheritedVoteCount int           `json:"inherited_vote_count"`
	FrequencyTag       *string       `json:"frequency_tag,omitempty"`
	ImpactTag          *string       `json:"impact_tag,omitempty"`
	MergedIntoID       *uuid.UUID    `json:"merged_into_id,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// HasProblemStatement reports whether the idea has non-blank problem text.
func (i *Idea) HasProblemStatement() bool {
	return i.ProblemStatement != nil && strings.TrimSpace(*i.ProblemStatement) != ""
}
