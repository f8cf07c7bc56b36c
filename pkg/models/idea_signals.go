package models

import (
	"time"

	"github.com/google/uuid"
)

// IdeaSignalCounts is the raw per-idea aggregate feeding confidence scoring.
type IdeaSignalCounts struct {
	IdeaID             uuid.UUID
	CreatedAt          time.Time
	OrganicVotes       int
	InheritedVotes     int
	UniqueContributors int
	RecentVotes        int
	// TopDomain is the most common voter email domain, empty when no voter has an email.
	TopDomain      string
	TopDomainVotes int
	// VotesWithDomain is the number of votes carrying an email domain.
	VotesWithDomain        int
	ClusterSize            int
	ClusterAvgSimilarity   float64
	DescriptionLength      int
	ProblemStatementLength int
	FrequencyTag           string
	ImpactTag              string
}
