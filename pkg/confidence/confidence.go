// Package confidence scores how much evidence stands behind an idea.
//
// Scoring is pure: callers build Signals from aggregated counts and get back
// a 0-100 score, a qualitative label and an optional domain-concentration
// warning. Nothing in this package touches storage.
package confidence

import (
	"math"
	"strings"
	"time"

	"github.com/ideaflow-inc/ideaflow-engine/pkg/models"
)

// Label is the qualitative confidence bucket.
type Label string

const (
	LabelStrong    Label = "strong"
	LabelEmerging  Label = "emerging"
	LabelAnecdotal Label = "anecdotal"
)

// Richness buckets the amount of text an idea carries.
type Richness string

const (
	RichnessSparse Richness = "sparse"
	RichnessMedium Richness = "medium"
	RichnessRich   Richness = "rich"
)

const (
	mediumRichnessChars = 50
	richRichnessChars   = 200

	// concentrationWarnShare and concentrationBlockShare are exclusive lower bounds.
	concentrationWarnShare  = 0.6
	concentrationBlockShare = 0.75
)

// ClassifyRichness maps a character count to a richness bucket.
func ClassifyRichness(length int) Richness {
	switch {
	case length >= richRichnessChars:
		return RichnessRich
	case length >= mediumRichnessChars:
		return RichnessMedium
	default:
		return RichnessSparse
	}
}

func (r Richness) value() float64 {
	switch r {
	case RichnessRich:
		return 1
	case RichnessMedium:
		return 0.5
	default:
		return 0
	}
}

var frequencyOrdinals = map[string]int{
	"daily":   4,
	"weekly":  3,
	"monthly": 2,
	"rarely":  1,
}

var impactOrdinals = map[string]int{
	"blocker":      4,
	"major":        3,
	"minor":        2,
	"nice_to_have": 1,
}

// FrequencyOrdinal returns 1-4 for a known frequency tag, 0 otherwise.
func FrequencyOrdinal(tag string) int {
	return frequencyOrdinals[strings.ToLower(strings.TrimSpace(tag))]
}

// ImpactOrdinal returns 1-4 for a known impact tag, 0 otherwise.
func ImpactOrdinal(tag string) int {
	return impactOrdinals[strings.ToLower(strings.TrimSpace(tag))]
}

// NormalizeLog2 maps value onto [0,1] on a log scale where max maps to 1.
// Non-positive value or max yields 0; values above max saturate at 1.
func NormalizeLog2(value, max float64) float64 {
	if value <= 0 || max <= 0 {
		return 0
	}
	return math.Min(1, math.Log2(1+value)/math.Log2(1+max))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Signals is the derived per-idea evidence fed to Score.
type Signals struct {
	OrganicVotes       int `json:"organic_votes"`
	InheritedVotes     int `json:"inherited_votes"`
	UniqueContributors int `json:"unique_contributors"`
	// RecencyRatio is the share of votes cast inside the recent window, 0-1.
	RecencyRatio float64 `json:"recency_ratio"`
	// Velocity is votes per day of idea age.
	Velocity float64 `json:"velocity"`
	// ClusterStrength is 0-1 pressure from pending duplicates of this idea.
	ClusterStrength float64  `json:"cluster_strength"`
	Richness        Richness `json:"richness"`
	Frequency       int      `json:"frequency"`
	Impact          int      `json:"impact"`

	TopDomain           string  `json:"top_domain,omitempty"`
	TopDomainShare      float64 `json:"top_domain_share"`
	TopDomainIsFreemail bool    `json:"top_domain_is_freemail"`
}

// Weights are the relative contributions of each signal. They are normalized
// to sum to 100 at scoring time, so only their ratios matter.
type Weights struct {
	OrganicVotes       float64
	InheritedVotes     float64
	UniqueContributors float64
	Recency            float64
	Velocity           float64
	DuplicateCluster   float64
	Richness           float64
	Frequency          float64
	Impact             float64
}

// DefaultWeights returns the production blend.
func DefaultWeights() Weights {
	return Weights{
		OrganicVotes:       25,
		InheritedVotes:     5,
		UniqueContributors: 20,
		Recency:            10,
		Velocity:           10,
		DuplicateCluster:   10,
		Richness:           5,
		Frequency:          7.5,
		Impact:             7.5,
	}
}

func (w Weights) sum() float64 {
	return w.OrganicVotes + w.InheritedVotes + w.UniqueContributors + w.Recency +
		w.Velocity + w.DuplicateCluster + w.Richness + w.Frequency + w.Impact
}

// Params configures a Scorer.
type Params struct {
	Weights Weights
	// VoteCap is the vote or contributor count treated as saturated.
	VoteCap int
	// VelocityCap is the votes-per-day rate treated as saturated.
	VelocityCap float64
	// ClusterCap is the duplicate-cluster size treated as saturated.
	ClusterCap int
	// RecentWindow bounds the votes counted as recent by FromCounts.
	RecentWindow time.Duration
}

// DefaultParams returns the production scoring parameters.
func DefaultParams() Params {
	return Params{
		Weights:      DefaultWeights(),
		VoteCap:      100,
		VelocityCap:  5,
		ClusterCap:   10,
		RecentWindow: 30 * 24 * time.Hour,
	}
}

// ConcentrationWarning flags ideas whose votes come mostly from one
// organization's email domain.
type ConcentrationWarning struct {
	Domain       string `json:"domain"`
	SharePercent int    `json:"share_percent"`
	BlocksStrong bool   `json:"blocks_strong"`
}

// Component is one signal's contribution to the final score.
type Component struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
	Points float64 `json:"points"`
}

// Result is the outcome of scoring one idea.
type Result struct {
	IntraScore           int                   `json:"intra_score"`
	Label                Label                 `json:"label"`
	ConcentrationWarning *ConcentrationWarning `json:"concentration_warning,omitempty"`
	Components           []Component           `json:"components"`
}

// Scorer applies a fixed parameter set.
type Scorer struct {
	params Params
}

// NewScorer returns a Scorer. Zero caps fall back to defaults; weights are
// used as given and fall back to defaults only when they sum to zero.
func NewScorer(p Params) *Scorer {
	d := DefaultParams()
	if p.Weights.sum() <= 0 {
		p.Weights = d.Weights
	}
	if p.VoteCap <= 0 {
		p.VoteCap = d.VoteCap
	}
	if p.VelocityCap <= 0 {
		p.VelocityCap = d.VelocityCap
	}
	if p.ClusterCap <= 0 {
		p.ClusterCap = d.ClusterCap
	}
	if p.RecentWindow <= 0 {
		p.RecentWindow = d.RecentWindow
	}
	return &Scorer{params: p}
}

var defaultScorer = NewScorer(DefaultParams())

// Score scores signals with the default parameters.
func Score(s Signals) Result {
	return defaultScorer.Score(s)
}

// Score computes the intra score, label and concentration warning.
func (sc *Scorer) Score(s Signals) Result {
	p := sc.params
	voteCap := float64(p.VoteCap)

	components := []Component{
		{Name: "organic_votes", Value: NormalizeLog2(float64(s.OrganicVotes), voteCap), Weight: p.Weights.OrganicVotes},
		{Name: "inherited_votes", Value: NormalizeLog2(float64(s.InheritedVotes), voteCap), Weight: p.Weights.InheritedVotes},
		{Name: "unique_contributors", Value: NormalizeLog2(float64(s.UniqueContributors), voteCap), Weight: p.Weights.UniqueContributors},
		{Name: "recency", Value: clamp01(s.RecencyRatio), Weight: p.Weights.Recency},
		{Name: "velocity", Value: NormalizeLog2(s.Velocity, p.VelocityCap), Weight: p.Weights.Velocity},
		{Name: "duplicate_cluster", Value: clamp01(s.ClusterStrength), Weight: p.Weights.DuplicateCluster},
		{Name: "richness", Value: s.Richness.value(), Weight: p.Weights.Richness},
		{Name: "frequency", Value: clamp01(float64(s.Frequency) / 4), Weight: p.Weights.Frequency},
		{Name: "impact", Value: clamp01(float64(s.Impact) / 4), Weight: p.Weights.Impact},
	}

	total := p.Weights.sum()
	var raw float64
	for i := range components {
		c := &components[i]
		c.Weight = c.Weight / total * 100
		c.Points = c.Value * c.Weight
		raw += c.Points
	}

	score := int(math.Round(raw))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	warning := concentration(s)
	label := assignLabel(s)
	if label == LabelStrong && warning != nil && warning.BlocksStrong {
		label = LabelEmerging
	}

	return Result{
		IntraScore:           score,
		Label:                label,
		ConcentrationWarning: warning,
		Components:           components,
	}
}

func assignLabel(s Signals) Label {
	switch {
	case s.OrganicVotes >= 5 && s.UniqueContributors >= 3 && s.RecencyRatio >= 0.3:
		return LabelStrong
	case s.OrganicVotes >= 3 && s.UniqueContributors >= 2,
		s.OrganicVotes >= 3 && s.RecencyRatio >= 0.2:
		return LabelEmerging
	default:
		return LabelAnecdotal
	}
}

func concentration(s Signals) *ConcentrationWarning {
	if s.TopDomain == "" || s.TopDomainIsFreemail || s.TopDomainShare <= concentrationWarnShare {
		return nil
	}
	return &ConcentrationWarning{
		Domain:       s.TopDomain,
		SharePercent: int(math.Round(clamp01(s.TopDomainShare) * 100)),
		BlocksStrong: s.TopDomainShare > concentrationBlockShare,
	}
}

// FromCounts derives Signals from raw aggregate counts as of now.
func (sc *Scorer) FromCounts(c models.IdeaSignalCounts, now time.Time) Signals {
	p := sc.params

	s := Signals{
		OrganicVotes:       max(c.OrganicVotes, 0),
		InheritedVotes:     max(c.InheritedVotes, 0),
		UniqueContributors: max(c.UniqueContributors, 0),
		Richness:           ClassifyRichness(c.DescriptionLength + c.ProblemStatementLength),
		Frequency:          FrequencyOrdinal(c.FrequencyTag),
		Impact:             ImpactOrdinal(c.ImpactTag),
	}

	totalVotes := s.OrganicVotes + s.InheritedVotes
	if totalVotes > 0 {
		s.RecencyRatio = clamp01(float64(c.RecentVotes) / float64(totalVotes))

		ageDays := now.Sub(c.CreatedAt).Hours() / 24
		if ageDays < 1 {
			ageDays = 1
		}
		s.Velocity = float64(totalVotes) / ageDays
	}

	if c.ClusterSize > 0 {
		s.ClusterStrength = NormalizeLog2(float64(c.ClusterSize), float64(p.ClusterCap)) *
			clamp01(c.ClusterAvgSimilarity/100)
	}

	if c.TopDomain != "" && c.VotesWithDomain > 0 {
		s.TopDomain = strings.ToLower(c.TopDomain)
		s.TopDomainShare = clamp01(float64(c.TopDomainVotes) / float64(c.VotesWithDomain))
		s.TopDomainIsFreemail = IsFreemail(s.TopDomain)
	}

	return s
}

// RecentWindow is the window FromCounts expects RecentVotes to cover.
func (sc *Scorer) RecentWindow() time.Duration {
	return sc.params.RecentWindow
}
