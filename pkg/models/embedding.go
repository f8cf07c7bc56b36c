package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// IdeaEmbedding holds the current semantic vectors for one idea.
// ProblemEmbedding is nil when the idea has no problem statement.
type IdeaEmbedding struct {
	IdeaID           uuid.UUID        `json:"idea_id"`
	WorkspaceID      uuid.UUID        `json:"workspace_id"`
	TitleEmbedding   pgvector.Vector  `json:"-"`
	ProblemEmbedding *pgvector.Vector `json:"-"`
	ModelVersion     string           `json:"model_version"`
	ContentHash      string           `json:"content_hash"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// EmbeddingCandidate is an idea whose embedding is missing or stale, with the
// text that needs embedding.
type EmbeddingCandidate struct {
	IdeaID           uuid.UUID
	Title            string
	ProblemStatement *string
	// CurrentHash and CurrentModel describe the stored embedding, empty if none exists.
	CurrentHash  string
	CurrentModel string
}

// MatchableIdea is an idea with its embedding, as read by the in-process matcher.
type MatchableIdea struct {
	IdeaID           uuid.UUID
	CreatedAt        time.Time
	OnRoadmap        bool
	TitleEmbedding   []float32
	ProblemEmbedding []float32
}

// ScoredPair is an unordered pair of ideas with their weighted similarity in [0,1].
type ScoredPair struct {
	IdeaA      uuid.UUID
	IdeaB      uuid.UUID
	CreatedA   time.Time
	CreatedB   time.Time
	Similarity float64
}
