// Package similarity holds the pure pairwise math behind duplicate detection:
// cosine and weighted similarity, canonical pair keys, and candidate
// orientation. It has no storage dependencies so both matcher strategies
// (pgvector self-join and in-process scan) share one post-processing path.
package similarity

import (
	"bytes"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ideaflow-inc/ideaflow-engine/pkg/models"
)

const (
	// DefaultThreshold is the minimum weighted similarity (exclusive) for a candidate.
	DefaultThreshold = 0.55
	// DefaultMinIdeas is the smallest eligible idea count worth a self-join.
	DefaultMinIdeas = 5
)

// Weights blends title and problem-statement similarity.
type Weights struct {
	Title   float64
	Problem float64
}

// DefaultWeights returns the 0.7 title / 0.3 problem blend.
func DefaultWeights() Weights {
	return Weights{Title: 0.7, Problem: 0.3}
}

// Options configures FindPairs.
type Options struct {
	Threshold float64
	MinIdeas  int
	Weights   Weights
}

// DefaultOptions returns the production matcher settings.
func DefaultOptions() Options {
	return Options{
		Threshold: DefaultThreshold,
		MinIdeas:  DefaultMinIdeas,
		Weights:   DefaultWeights(),
	}
}

// Cosine returns the cosine similarity of two vectors. ok is false when the
// vectors are empty, differ in length, or either has zero magnitude.
func Cosine(a, b []float32) (sim float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

// Weighted blends title and problem similarity. The problem component is used
// only when both ideas have a problem embedding; otherwise the title
// similarity stands alone.
func Weighted(titleA, titleB, problemA, problemB []float32, w Weights) (float64, bool) {
	titleSim, ok := Cosine(titleA, titleB)
	if !ok {
		return 0, false
	}
	if len(problemA) == 0 || len(problemB) == 0 {
		return titleSim, true
	}
	problemSim, ok := Cosine(problemA, problemB)
	if !ok {
		return titleSim, true
	}
	total := w.Title + w.Problem
	if total <= 0 {
		return titleSim, true
	}
	return (w.Title*titleSim + w.Problem*problemSim) / total, true
}

// RoundPercent converts a [0,1] similarity into an integer percentage,
// rounding half away from zero and clamping to [0,100].
func RoundPercent(sim float64) int {
	p := int(math.Round(sim * 100))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// PairKey identifies an unordered pair of ideas. The smaller id (byte order,
// matching Postgres uuid ordering) always comes first.
type PairKey [2]uuid.UUID

// NewPairKey canonicalizes (a, b) and (b, a) to the same key.
func NewPairKey(a, b uuid.UUID) PairKey {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return PairKey{a, b}
	}
	return PairKey{b, a}
}

// PairSet is a set of unordered pairs.
type PairSet map[PairKey]struct{}

// Add inserts the pair in canonical form.
func (s PairSet) Add(a, b uuid.UUID) {
	s[NewPairKey(a, b)] = struct{}{}
}

// Has reports whether the pair exists in either orientation.
func (s PairSet) Has(a, b uuid.UUID) bool {
	_, ok := s[NewPairKey(a, b)]
	return ok
}

// Orient returns (source, duplicate): the earlier-created idea is the source,
// with ties broken toward the smaller id so the choice is stable across runs.
func Orient(a uuid.UUID, createdA time.Time, b uuid.UUID, createdB time.Time) (source, duplicate uuid.UUID) {
	switch {
	case createdA.Before(createdB):
		return a, b
	case createdB.Before(createdA):
		return b, a
	case bytes.Compare(a[:], b[:]) <= 0:
		return a, b
	default:
		return b, a
	}
}

// BuildCandidates turns scored pairs into oriented, de-duplicated candidates.
// Pairs at or below threshold, NaN scores from zero-magnitude vectors,
// self-pairs, pairs already in existing, and repeats of an earlier pair are
// dropped. Results are ordered by similarity
// descending, then by source and duplicate id.
func BuildCandidates(pairs []models.ScoredPair, existing PairSet, threshold float64) []models.DuplicateCandidate {
	seen := make(PairSet, len(pairs))
	candidates := make([]models.DuplicateCandidate, 0, len(pairs))

	for _, p := range pairs {
		if p.IdeaA == p.IdeaB || math.IsNaN(p.Similarity) || p.Similarity <= threshold {
			continue
		}
		if existing.Has(p.IdeaA, p.IdeaB) || seen.Has(p.IdeaA, p.IdeaB) {
			continue
		}
		seen.Add(p.IdeaA, p.IdeaB)

		source, duplicate := Orient(p.IdeaA, p.CreatedA, p.IdeaB, p.CreatedB)
		candidates = append(candidates, models.DuplicateCandidate{
			SourceIdeaID:    source,
			DuplicateIdeaID: duplicate,
			Similarity:      RoundPercent(p.Similarity),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.Similarity != cj.Similarity {
			return ci.Similarity > cj.Similarity
		}
		if c := bytes.Compare(ci.SourceIdeaID[:], cj.SourceIdeaID[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(ci.DuplicateIdeaID[:], cj.DuplicateIdeaID[:]) < 0
	})

	return candidates
}

// FindPairs is the in-process matcher: it scores every unordered pair of
// ideas and returns the candidates above threshold. Workspaces with fewer
// than opts.MinIdeas ideas return nil without scoring anything. Pairs where
// both ideas are already on the roadmap are skipped.
func FindPairs(ideas []models.MatchableIdea, existing PairSet, opts Options) []models.DuplicateCandidate {
	if len(ideas) < opts.MinIdeas {
		return nil
	}

	sorted := make([]models.MatchableIdea, len(ideas))
	copy(sorted, ideas)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].IdeaID[:], sorted[j].IdeaID[:]) < 0
	})

	var scored []models.ScoredPair
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			a, b := sorted[i], sorted[j]
			if a.OnRoadmap && b.OnRoadmap {
				continue
			}
			sim, ok := Weighted(a.TitleEmbedding, b.TitleEmbedding, a.ProblemEmbedding, b.ProblemEmbedding, opts.Weights)
			if !ok || sim <= opts.Threshold {
				continue
			}
			scored = append(scored, models.ScoredPair{
				IdeaA:      a.IdeaID,
				IdeaB:      b.IdeaID,
				CreatedA:   a.CreatedAt,
				CreatedB:   b.CreatedAt,
				Similarity: sim,
			})
		}
	}

	return BuildCandidates(scored, existing, opts.Threshold)
}
