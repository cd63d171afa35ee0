package retrieval

import "errors"

// #region config
// RetrievalConfig holds chunking and similarity parameters.
type RetrievalConfig struct {
	ChunkSize           int     // words per chunk
	ChunkOverlap        int     // words shared by consecutive chunks
	TopK                int     // default k for Retrieve
	SimilarityThreshold float64 // min 1/(1+distance) to keep a hit
	EmbedWorkers        int     // concurrent embedding calls during indexing
}

// DefaultConfig returns the shipped retrieval parameters.
func DefaultConfig() RetrievalConfig {
	return RetrievalConfig{
		ChunkSize:           512,
		ChunkOverlap:        50,
		TopK:                3,
		SimilarityThreshold: 0.7,
		EmbedWorkers:        4,
	}
}

// Stride is the distance in words between consecutive chunk starts.
func (c RetrievalConfig) Stride() int {
	return c.ChunkSize - c.ChunkOverlap
}

// #endregion config

// #region chunk
// Chunk is one indexed word window. Never mutated after insertion.
type Chunk struct {
	ID       int               `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Result is a retrieved chunk with its distance and similarity.
type Result struct {
	Chunk      Chunk
	Distance   float32
	Similarity float64
}

// #endregion chunk

// #region errors
var (
	// ErrInvalidStride is returned when overlap is not smaller than chunk size.
	ErrInvalidStride = errors.New("chunk overlap must be smaller than chunk size")
	// ErrDimensionMismatch is returned when a vector's length differs from the index.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrMissingArtifact is returned when one half of a persisted index is absent.
	ErrMissingArtifact = errors.New("persisted index artifact missing")
	// ErrIndexPairMismatch is returned when index.bin and chunks.db disagree.
	ErrIndexPairMismatch = errors.New("index and chunk store do not belong together")
	// ErrCorruptIndex is returned when index.bin fails its header or length checks.
	ErrCorruptIndex = errors.New("persisted index is corrupt")
)

// #endregion errors
