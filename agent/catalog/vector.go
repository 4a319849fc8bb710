package catalog

import (
	"errors"
	"math"
	"sort"
)

// flatIndex is an exact inner-product index over L2-normalized vectors.
// Catalogs are small enough that a brute-force scan beats any approximate
// structure.
type flatIndex struct {
	dims    int
	vectors [][]float32
}

func newFlatIndex(vectors [][]float32) (*flatIndex, error) {
	if len(vectors) == 0 {
		return nil, errors.New("no vectors to index")
	}
	dims := len(vectors[0])
	idx := &flatIndex{dims: dims, vectors: make([][]float32, len(vectors))}
	for i, v := range vectors {
		if len(v) != dims {
			return nil, errors.New("inconsistent vector dimensions")
		}
		idx.vectors[i] = l2Normalize(v)
	}
	return idx, nil
}

type hit struct {
	index int
	score float32
}

// search returns up to k entries by descending cosine similarity, with the
// original insertion order breaking score ties.
func (f *flatIndex) search(query []float32, k int) []hit {
	if len(query) != f.dims || k <= 0 {
		return nil
	}
	q := l2Normalize(query)
	hits := make([]hit, 0, len(f.vectors))
	for i, v := range f.vectors {
		hits = append(hits, hit{index: i, score: dot(q, v)})
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func l2Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	n := math.Sqrt(sum)
	if n == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}
