package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

var rankNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestRanker() *FreshnessRanker {
	return NewFreshnessRanker(domain.DefaultAppSettings().Ranking, WithClock(func() time.Time { return rankNow }))
}

func TestFreshnessRanker_Factor(t *testing.T) {
	r := newTestRanker()
	day := 24 * time.Hour

	tests := []struct {
		name      string
		createdAt time.Time
		want      float64
	}{
		{"created now", rankNow, 1.0},
		{"missing timestamp", time.Time{}, 1.0},
		{"future timestamp", rankNow.Add(48 * time.Hour), 1.0},
		{"half of max age", rankNow.Add(-21900 * time.Hour), 0.85},
		{"exactly max age", rankNow.Add(-1825 * day), 0.7},
		{"older than max age", rankNow.Add(-4000 * day), 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, r.Factor(tt.createdAt), 1e-9)
		})
	}
}

func TestFreshnessRanker_SettingsSanitised(t *testing.T) {
	old := rankNow.Add(-10000 * 24 * time.Hour)

	r := NewFreshnessRanker(domain.RankingSettings{MaxAgeDays: 0, AgeWeight: 2}, WithClock(func() time.Time { return rankNow }))
	assert.InDelta(t, 0.0, r.Factor(old), 1e-9)

	r = NewFreshnessRanker(domain.RankingSettings{MaxAgeDays: 10, AgeWeight: -1}, WithClock(func() time.Time { return rankNow }))
	assert.InDelta(t, 1.0, r.Factor(old), 1e-9)
}

func TestFreshnessRanker_RankOrdersByAdjustedScore(t *testing.T) {
	r := newTestRanker()
	created := map[int64]time.Time{
		1: rankNow,                              // factor 1.0
		2: rankNow.Add(-1825 * 24 * time.Hour), // factor 0.7
	}

	results := []domain.SearchResult{
		{EmbeddingID: 10, DocumentID: 2, RawScore: 0.9}, // 0.63
		{EmbeddingID: 11, DocumentID: 1, RawScore: 0.7}, // 0.70
		{EmbeddingID: 12, DocumentID: 1, RawScore: 0.5}, // 0.50
	}
	ranked := r.Rank(results, func(id int64) time.Time { return created[id] })

	require.Len(t, ranked, 3)
	assert.Equal(t, []int64{11, 10, 12}, []int64{ranked[0].EmbeddingID, ranked[1].EmbeddingID, ranked[2].EmbeddingID})
	assert.InDelta(t, 0.63, ranked[1].AdjustedScore, 1e-9)
	assert.InDelta(t, 0.7, ranked[1].FreshnessFactor, 1e-9)
}

func TestFreshnessRanker_MonotonicInRawScore(t *testing.T) {
	r := newTestRanker()
	results := []domain.SearchResult{
		{EmbeddingID: 1, DocumentID: 1, RawScore: 0.2},
		{EmbeddingID: 2, DocumentID: 1, RawScore: 0.8},
		{EmbeddingID: 3, DocumentID: 1, RawScore: 0.5},
	}
	ranked := r.Rank(results, func(int64) time.Time { return rankNow.Add(-100 * 24 * time.Hour) })

	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].RawScore, ranked[i].RawScore)
	}
}

func TestFreshnessRanker_TieBreak(t *testing.T) {
	r := newTestRanker()
	created := map[int64]time.Time{
		1: rankNow,
		2: rankNow.Add(-1825 * 24 * time.Hour),
	}

	// 0.7 * 1.0 == 1.0 * 0.7: equal adjusted, higher raw score wins.
	results := []domain.SearchResult{
		{EmbeddingID: 5, DocumentID: 1, RawScore: 0.7},
		{EmbeddingID: 4, DocumentID: 2, RawScore: 1.0},
		{EmbeddingID: 9, DocumentID: 1, RawScore: 0.3},
		{EmbeddingID: 3, DocumentID: 1, RawScore: 0.3},
	}
	ranked := r.Rank(results, func(id int64) time.Time { return created[id] })

	ids := make([]int64, len(ranked))
	for i, res := range ranked {
		ids[i] = res.EmbeddingID
	}
	assert.Equal(t, []int64{4, 5, 3, 9}, ids)
}

func TestFreshnessRanker_NeverDrops(t *testing.T) {
	r := newTestRanker()
	results := make([]domain.SearchResult, 50)
	for i := range results {
		results[i] = domain.SearchResult{EmbeddingID: int64(i), RawScore: float64(i%7) / 7}
	}
	assert.Len(t, r.Rank(results, nil), 50)
}
