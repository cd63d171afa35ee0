package retrieval

import (
	"fmt"
	"sort"
)

// #region flat-index
// FlatIndex is an exhaustive L2 index. Distances are squared Euclidean.
// Dimension is fixed by the first insertion. Not safe for concurrent use;
// the Retriever serializes access.
type FlatIndex struct {
	dim     int
	vectors [][]float32
}

// Hit is one search result: the vector's insertion position and distance.
type Hit struct {
	ID       int
	Distance float32
}

// NewFlatIndex returns an empty index. dim 0 defers to the first insert.
func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{dim: dim}
}

// Dim returns the index dimension, 0 if unset.
func (x *FlatIndex) Dim() int { return x.dim }

// Len returns the number of stored vectors.
func (x *FlatIndex) Len() int { return len(x.vectors) }

// Add appends vectors. The whole batch is rejected if any vector has the
// wrong length.
func (x *FlatIndex) Add(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	dim := x.dim
	if dim == 0 {
		dim = len(vectors[0])
		if dim == 0 {
			return fmt.Errorf("add vectors: %w: empty vector", ErrDimensionMismatch)
		}
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("add vectors: %w: vector %d has %d dims, index has %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	x.dim = dim
	for _, v := range vectors {
		cp := make([]float32, dim)
		copy(cp, v)
		x.vectors = append(x.vectors, cp)
	}
	return nil
}

// Search returns up to k nearest vectors, nearest first. Ties keep
// insertion order.
func (x *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(x.vectors) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != x.dim {
		return nil, fmt.Errorf("search: %w: query has %d dims, index has %d", ErrDimensionMismatch, len(query), x.dim)
	}

	hits := make([]Hit, len(x.vectors))
	for i, v := range x.vectors {
		hits[i] = Hit{ID: i, Distance: squaredL2(query, v)}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Distance < hits[b].Distance })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// #endregion flat-index
