package flat

import (
	"sort"

	"github.com/policy-rag/backend/internal/vector"
)

// index is a flat inner-product index. Vectors are stored densely and every
// query scans all of them; with normalized inputs the inner product is
// cosine similarity. Not safe for concurrent use; the owning Store
// serializes access.
type index struct {
	dimension int
	vectors   [][]float32
}

func newIndex(dimension int) *index {
	return &index{dimension: dimension}
}

func (ix *index) add(vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != ix.dimension {
			return vector.ErrDimensionMismatch
		}
	}
	ix.vectors = append(ix.vectors, vectors...)
	return nil
}

type hit struct {
	position int
	score    float32
}

// search returns the top k positions by inner product, highest first. Ties
// break toward the lower position so results are deterministic.
func (ix *index) search(query []float32, k int) ([]hit, error) {
	if len(query) != ix.dimension {
		return nil, vector.ErrDimensionMismatch
	}
	if k <= 0 || len(ix.vectors) == 0 {
		return nil, nil
	}

	hits := make([]hit, len(ix.vectors))
	for i, v := range ix.vectors {
		var score float32
		for j := range v {
			score += v[j] * query[j]
		}
		hits[i] = hit{position: i, score: score}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		return hits[a].position < hits[b].position
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func (ix *index) size() int { return len(ix.vectors) }
