package search

import (
	"sort"

	"github.com/okets/folder-mcp/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
// k=60 is empirically validated across domains (used by Azure AI Search, OpenSearch, etc.).
const DefaultRRFConstant = 60

// FusedResult represents a single result after RRF fusion.
type FusedResult struct {
	ChunkID      string   // Chunk identifier
	RRFScore     float64  // Combined RRF score (normalized 0-1)
	KeywordScore float64  // Original keyword score (preserved)
	KeywordRank  int      // Position in keyword list (1-indexed, 0 if absent)
	VecScore     float64  // Original vector similarity score (preserved)
	VecRank      int      // Position in vector list (1-indexed, 0 if absent)
	InBothLists  bool     // Result appeared in both result lists
	MatchedTerms []string // Keyword-matched terms (for highlighting)
}

// RRFFusion combines keyword and vector search results using Reciprocal
// Rank Fusion.
//
// Algorithm: RRF_score(d) = sum(weight_i / (k + rank_i))
//
// Where k is a smoothing constant and rank_i is the 1-indexed position of
// the result in ranked list i.
type RRFFusion struct {
	K int
}

// NewRRFFusion creates a new RRF fusion instance with default k=60.
func NewRRFFusion() *RRFFusion {
	return &RRFFusion{K: DefaultRRFConstant}
}

// NewRRFFusionWithK creates a new RRF fusion with a custom k. If k <= 0 it
// defaults to 60.
func NewRRFFusionWithK(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// Fuse combines keyword and vector results using Reciprocal Rank Fusion.
//
// Results absent from one list are scored against a missing_rank of
// max(len(keyword), len(vec)) + 1 for that list's contribution.
//
// Results are sorted by: RRFScore (desc) -> InBothLists (true first) ->
// KeywordScore (desc) -> ChunkID (asc).
func (f *RRFFusion) Fuse(
	keyword []*store.KeywordResult,
	vec []*store.VectorResult,
	weights Weights,
) []*FusedResult {
	if len(keyword) == 0 && len(vec) == 0 {
		return []*FusedResult{}
	}

	capacity := len(keyword) + len(vec)
	scores := make(map[string]*FusedResult, capacity)

	for rank, r := range keyword {
		result := f.getOrCreate(scores, r.ChunkID)
		result.KeywordScore = r.Score
		result.KeywordRank = rank + 1
		result.MatchedTerms = r.MatchedTerms
		result.RRFScore += weights.Keyword / float64(f.K+rank+1)
	}

	for rank, r := range vec {
		result := f.getOrCreate(scores, r.ID)
		result.VecScore = float64(r.Score)
		result.VecRank = rank + 1
		result.RRFScore += weights.Semantic / float64(f.K+rank+1)

		if result.KeywordRank > 0 {
			result.InBothLists = true
		}
	}

	missingRank := f.calculateMissingRank(len(keyword), len(vec))
	for _, r := range scores {
		if r.KeywordRank == 0 && r.VecRank > 0 {
			r.RRFScore += weights.Keyword / float64(f.K+missingRank)
		}
		if r.VecRank == 0 && r.KeywordRank > 0 {
			r.RRFScore += weights.Semantic / float64(f.K+missingRank)
		}
	}

	results := f.toSortedSlice(scores)
	f.normalize(results)
	return results
}

func (f *RRFFusion) getOrCreate(m map[string]*FusedResult, id string) *FusedResult {
	if r, ok := m[id]; ok {
		return r
	}
	r := &FusedResult{ChunkID: id}
	m[id] = r
	return r
}

func (f *RRFFusion) calculateMissingRank(keywordLen, vecLen int) int {
	if keywordLen > vecLen {
		return keywordLen + 1
	}
	return vecLen + 1
}

func (f *RRFFusion) toSortedSlice(m map[string]*FusedResult) []*FusedResult {
	results := make([]*FusedResult, 0, len(m))
	for _, r := range m {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		return f.compare(results[i], results[j])
	})
	return results
}

// compare returns true if a should rank before b.
func (f *RRFFusion) compare(a, b *FusedResult) bool {
	if a.RRFScore != b.RRFScore {
		return a.RRFScore > b.RRFScore
	}
	if a.InBothLists != b.InBothLists {
		return a.InBothLists
	}
	if a.KeywordScore != b.KeywordScore {
		return a.KeywordScore > b.KeywordScore
	}
	return a.ChunkID < b.ChunkID
}

// normalize scales all RRF scores to 0-1 range using the top score as 1.0.
func (f *RRFFusion) normalize(results []*FusedResult) {
	if len(results) == 0 {
		return
	}
	maxScore := results[0].RRFScore
	if maxScore == 0 {
		return
	}
	for _, r := range results {
		r.RRFScore = r.RRFScore / maxScore
	}
}
