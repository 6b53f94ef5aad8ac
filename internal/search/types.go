// Package search fuses keyword and vector search results into a single
// ranked list using Reciprocal Rank Fusion, the core of the search MCP
// endpoint's hybrid retrieval.
package search

// Weights configures the relative importance of keyword vs semantic search
// in the fused ranking.
type Weights struct {
	// Keyword is the weight for exact/keyword search (0-1, default: 0.35).
	Keyword float64

	// Semantic is the weight for vector search (0-1, default: 0.65).
	Semantic float64
}

// DefaultWeights returns the default search weights for mixed queries.
func DefaultWeights() Weights {
	return Weights{
		Keyword:  0.35,
		Semantic: 0.65,
	}
}
