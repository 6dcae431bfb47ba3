package services

import (
	"sort"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
)

const hoursPerDay = 24

// FreshnessRanker discounts similarity scores by document age.
//
//	ageInDays       = clamp(now - createdAt, 0, MaxAgeDays)
//	freshnessFactor = 1 - AgeWeight * ageInDays / MaxAgeDays
//	adjustedScore   = rawScore * freshnessFactor
type FreshnessRanker struct {
	maxAgeDays float64
	ageWeight  float64
	now        func() time.Time
}

// RankerOption configures a FreshnessRanker.
type RankerOption func(*FreshnessRanker)

// WithClock overrides the ranker's time source.
func WithClock(now func() time.Time) RankerOption {
	return func(r *FreshnessRanker) {
		r.now = now
	}
}

// NewFreshnessRanker creates a ranker from ranking settings.
// A non-positive MaxAgeDays falls back to the default; AgeWeight is clamped to [0, 1].
func NewFreshnessRanker(settings domain.RankingSettings, opts ...RankerOption) *FreshnessRanker {
	r := &FreshnessRanker{
		maxAgeDays: settings.MaxAgeDays,
		ageWeight:  settings.AgeWeight,
		now:        time.Now,
	}
	if r.maxAgeDays <= 0 {
		r.maxAgeDays = domain.DefaultMaxAgeDays
	}
	switch {
	case r.ageWeight < 0:
		r.ageWeight = 0
	case r.ageWeight > 1:
		r.ageWeight = 1
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Factor returns the freshness multiplier for a document created at createdAt.
// A zero createdAt yields 1.
func (r *FreshnessRanker) Factor(createdAt time.Time) float64 {
	if createdAt.IsZero() {
		return 1
	}
	age := r.now().Sub(createdAt).Hours() / hoursPerDay
	if age < 0 {
		age = 0
	}
	if age > r.maxAgeDays {
		age = r.maxAgeDays
	}
	return 1 - r.ageWeight*age/r.maxAgeDays
}

// Rank sets FreshnessFactor and AdjustedScore on every result and sorts
// the slice in place by adjusted score, then raw score, then embedding id.
// createdAt maps a document ID to its creation time.
func (r *FreshnessRanker) Rank(results []domain.SearchResult, createdAt func(documentID int64) time.Time) []domain.SearchResult {
	for i := range results {
		var ts time.Time
		if createdAt != nil {
			ts = createdAt(results[i].DocumentID)
		}
		results[i].FreshnessFactor = r.Factor(ts)
		results[i].AdjustedScore = results[i].RawScore * results[i].FreshnessFactor
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.AdjustedScore != b.AdjustedScore {
			return a.AdjustedScore > b.AdjustedScore
		}
		if a.RawScore != b.RawScore {
			return a.RawScore > b.RawScore
		}
		return a.EmbeddingID < b.EmbeddingID
	})
	return results
}
