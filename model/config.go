package model

const (
	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.75
	MaxTopK                    = 100
)

// QueryConfig represents configuration for a retrieval query
type QueryConfig struct {
	TopK                int     `json:"top_k"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

// DefaultQueryConfig returns the defaults of the query endpoint
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		TopK:                DefaultTopK,
		SimilarityThreshold: DefaultSimilarityThreshold,
	}
}

// Normalize clamps the config into its valid range:
// 1 <= TopK <= MaxTopK and 0 <= SimilarityThreshold <= 1.
func (c QueryConfig) Normalize() QueryConfig {
	if c.TopK < 1 {
		c.TopK = 1
	}
	if c.TopK > MaxTopK {
		c.TopK = MaxTopK
	}
	if c.SimilarityThreshold != c.SimilarityThreshold || c.SimilarityThreshold < 0 {
		c.SimilarityThreshold = 0
	}
	if c.SimilarityThreshold > 1 {
		c.SimilarityThreshold = 1
	}
	return c
}
