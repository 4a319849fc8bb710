package catalog

import (
	"context"
	"fmt"
	"strings"
)

// Embedder produces fixed-dimension vectors for catalog text. Satisfied by
// pkg/openrouter's embedding client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// MatchKind reports which pipeline stage produced the result.
type MatchKind string

const (
	MatchExact      MatchKind = "exact"
	MatchKeyword    MatchKind = "keyword"
	MatchSimilarity MatchKind = "similarity"
)

const (
	// Similarity bands. Best score below NotFoundThreshold is a miss;
	// below DirectThreshold the caller must confirm with the user before
	// acting on the match.
	NotFoundThreshold = 0.35
	ConfirmThreshold  = 0.55
	DirectThreshold   = 0.75

	keywordConfidence = 0.8
	topK              = 5
	minTokenLen       = 2
)

// Scored pairs a catalog item with the confidence its stage assigned.
type Scored struct {
	Item  Item
	Score float64
}

// Result is the outcome of one search. Found=false means no stage matched.
// NeedsConfirm means the best candidate scored below the direct-use band and
// the caller should ask the user to pick before mutating the order.
type Result struct {
	Kind         MatchKind
	Items        []Scored
	Confidence   float64
	Found        bool
	NeedsConfirm bool
}

// Weak reports a similarity hit in the lowest confidence band, below
// ConfirmThreshold. Candidates there are guesses to offer, not matches to
// confirm.
func (r Result) Weak() bool {
	return r.Kind == MatchSimilarity && r.Found && r.Confidence < ConfirmThreshold
}

// Resolver runs the exact, keyword, similarity pipeline over one Index.
type Resolver struct {
	idx      *Index
	embedder Embedder
	vectors  *flatIndex
}

// NewResolver precomputes item embeddings so per-query work is a single
// embed call plus a flat scan.
func NewResolver(ctx context.Context, idx *Index, embedder Embedder) (*Resolver, error) {
	r := &Resolver{idx: idx, embedder: embedder}
	if embedder == nil {
		return r, nil
	}
	vecs, err := embedder.EmbedBatch(ctx, idx.normFull)
	if err != nil {
		return nil, fmt.Errorf("embed catalog: %w", err)
	}
	r.vectors, err = newFlatIndex(vecs)
	if err != nil {
		return nil, fmt.Errorf("build vector index: %w", err)
	}
	return r, nil
}

// Search resolves a free-text item reference. Exact beats keyword beats
// similarity; an ambiguous exact containment (the query names more than one
// item) skips straight to similarity so the candidates come back ranked for
// disambiguation.
func (r *Resolver) Search(ctx context.Context, query string) (Result, error) {
	q := NormalizeQuery(query)
	if q == "" {
		return Result{}, nil
	}

	exact := r.exactMatches(q)
	if len(exact) == 1 {
		return Result{
			Kind:       MatchExact,
			Items:      []Scored{{Item: r.idx.items[exact[0]], Score: 1.0}},
			Confidence: 1.0,
			Found:      true,
		}, nil
	}
	if len(exact) == 0 {
		if res, ok := r.keywordMatches(q); ok {
			return res, nil
		}
	}
	return r.similarity(ctx, q)
}

func (r *Resolver) exactMatches(q string) []int {
	var out []int
	for i, name := range r.idx.normNames {
		if name == q || strings.Contains(name, q) {
			out = append(out, i)
		}
	}
	return out
}

func (r *Resolver) keywordMatches(q string) (Result, bool) {
	var tokens []string
	for _, t := range strings.Fields(q) {
		if len([]rune(t)) > minTokenLen {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) == 0 {
		return Result{}, false
	}
	var items []Scored
	for i, full := range r.idx.normFull {
		for _, t := range tokens {
			if strings.Contains(full, t) {
				items = append(items, Scored{Item: r.idx.items[i], Score: keywordConfidence})
				break
			}
		}
		if len(items) == topK {
			break
		}
	}
	if len(items) == 0 {
		return Result{}, false
	}
	return Result{
		Kind:         MatchKeyword,
		Items:        items,
		Confidence:   keywordConfidence,
		Found:        true,
		NeedsConfirm: len(items) > 1,
	}, true
}

func (r *Resolver) similarity(ctx context.Context, q string) (Result, error) {
	if r.embedder == nil || r.vectors == nil {
		return Result{}, nil
	}
	vec, err := r.embedder.Embed(ctx, q)
	if err != nil {
		return Result{}, fmt.Errorf("embed query: %w", err)
	}
	hits := r.vectors.search(vec, topK)
	var items []Scored
	for _, h := range hits {
		if float64(h.score) < NotFoundThreshold {
			continue
		}
		items = append(items, Scored{Item: r.idx.items[h.index], Score: float64(h.score)})
	}
	if len(items) == 0 {
		return Result{Kind: MatchSimilarity}, nil
	}
	best := items[0].Score
	return Result{
		Kind:         MatchSimilarity,
		Items:        items,
		Confidence:   best,
		Found:        true,
		NeedsConfirm: best < DirectThreshold,
	}, nil
}
