package index

import (
	"context"
	"math"
	"sort"
)

// EmbeddingProvider turns text into a dense vector. Implementations wrap a
// model server or an external API; the engine treats the provider as
// optional and degrades to lexical-only matching without one.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Neighbor is a semantic hit with similarity already mapped into [0, 1].
type Neighbor struct {
	ID         string
	Similarity float64
}

// Nearest runs a brute-force scan over the stored vectors and returns the k
// closest products by L2 distance. Similarity is clamped 1 - d/2, which for
// unit-normalized embeddings stays in [0, 1] and preserves ordering.
func (s *Snapshot) Nearest(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if len(s.vectors) == 0 || len(query) != s.dim || k <= 0 {
		return nil, nil
	}
	neighbors := make([]Neighbor, 0, len(s.vectors))
	i := 0
	for _, id := range s.ids {
		vec, ok := s.vectors[id]
		if !ok {
			continue
		}
		if i%512 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		i++
		d := l2(query, vec)
		sim := 1 - d/2
		if sim < 0 {
			sim = 0
		}
		neighbors = append(neighbors, Neighbor{ID: id, Similarity: sim})
	}
	sort.Slice(neighbors, func(a, b int) bool {
		if neighbors[a].Similarity != neighbors[b].Similarity {
			return neighbors[a].Similarity > neighbors[b].Similarity
		}
		return neighbors[a].ID < neighbors[b].ID
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

func l2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
