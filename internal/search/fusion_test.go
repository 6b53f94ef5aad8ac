package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okets/folder-mcp/internal/store"
)

func createKeywordResults(ids []string, scores []float64) []*store.KeywordResult {
	results := make([]*store.KeywordResult, len(ids))
	for i, id := range ids {
		score := 1.0
		if i < len(scores) {
			score = scores[i]
		}
		results[i] = &store.KeywordResult{ChunkID: id, Score: score}
	}
	return results
}

func createVectorResults(ids []string, scores []float32) []*store.VectorResult {
	results := make([]*store.VectorResult, len(ids))
	for i, id := range ids {
		score := float32(1.0)
		if i < len(scores) {
			score = scores[i]
		}
		results[i] = &store.VectorResult{ID: id, Score: score}
	}
	return results
}

func TestRRFFusion_EmptyInputsReturnEmptySlice(t *testing.T) {
	f := NewRRFFusion()
	out := f.Fuse(nil, nil, DefaultWeights())
	require.NotNil(t, out)
	assert.Empty(t, out)
}

func TestRRFFusion_ResultInBothListsRanksAboveSingleList(t *testing.T) {
	f := NewRRFFusion()
	keyword := createKeywordResults([]string{"a", "b"}, []float64{2.0, 1.0})
	vec := createVectorResults([]string{"b", "c"}, []float32{0.9, 0.8})

	out := f.Fuse(keyword, vec, DefaultWeights())
	require.Len(t, out, 3)
	assert.Equal(t, "b", out[0].ChunkID, "b appears in both lists and should rank first")
	assert.True(t, out[0].InBothLists)
}

func TestRRFFusion_MissingListContributesAtMissingRank(t *testing.T) {
	f := NewRRFFusionWithK(60)
	keyword := createKeywordResults([]string{"only-keyword"}, []float64{1.0})
	vec := createVectorResults([]string{"only-vec"}, []float32{1.0})

	out := f.Fuse(keyword, vec, Weights{Keyword: 0.5, Semantic: 0.5})
	require.Len(t, out, 2)
	for _, r := range out {
		assert.False(t, r.InBothLists)
	}
}

func TestRRFFusion_ScoresNormalizedToUnitRange(t *testing.T) {
	f := NewRRFFusion()
	keyword := createKeywordResults([]string{"a", "b", "c"}, []float64{3, 2, 1})
	out := f.Fuse(keyword, nil, DefaultWeights())
	require.NotEmpty(t, out)
	assert.Equal(t, 1.0, out[0].RRFScore)
	for _, r := range out {
		assert.GreaterOrEqual(t, r.RRFScore, 0.0)
		assert.LessOrEqual(t, r.RRFScore, 1.0)
	}
}

func TestRRFFusion_TiesBreakDeterministicallyByChunkID(t *testing.T) {
	f := NewRRFFusion()
	keyword := createKeywordResults([]string{"z", "a"}, []float64{1, 1})
	out := f.Fuse(keyword, nil, DefaultWeights())
	require.Len(t, out, 2)
	// Equal RRF score and both absent from vector list: lexicographic tiebreak.
	assert.Equal(t, "a", out[0].ChunkID)
}
