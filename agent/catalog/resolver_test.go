package catalog

import (
	"context"
	"strings"
	"testing"
)

func testItems() []Item {
	return []Item{
		{ID: "main-001", Name: "برجر لحم", NameEN: "Beef Burger", Price: 28, Category: "الأطباق الرئيسية", Description: "برجر لحم طازج مع جبن", Available: true},
		{ID: "main-002", Name: "برجر دجاج", NameEN: "Chicken Burger", Price: 24, Category: "الأطباق الرئيسية", Description: "برجر دجاج مقرمش", Available: true},
		{ID: "main-005", Name: "كبسة لحم", Price: 45, Category: "الأطباق الرئيسية", Description: "كبسة لحم نعيمي مع أرز", Available: true},
		{ID: "dessert-001", Name: "كنافة", Price: 16, Category: "الحلويات", Description: "كنافة ناعمة بالجبن مع قطر", Available: true},
	}
}

// fakeEmbedder projects text onto three fixed vocabulary axes so similarity
// scores are predictable in tests.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 3)
	if strings.Contains(text, "برجر") {
		v[0] = 1
	}
	if strings.Contains(text, "لحم") {
		v[1] = 1
	}
	if strings.Contains(text, "دجاج") {
		v[2] = 1
	}
	return v, nil
}

func (f fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = f.Embed(ctx, t)
	}
	return out, nil
}

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	idx, err := NewIndex(testItems())
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	r, err := NewResolver(context.Background(), idx, fakeEmbedder{})
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	return r
}

func TestSearchExactSingleHit(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)
	res, err := r.Search(context.Background(), "كبسة لحم")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !res.Found || res.Kind != MatchExact {
		t.Fatalf("kind=%s found=%v want exact hit", res.Kind, res.Found)
	}
	if res.Confidence != 1.0 || len(res.Items) != 1 {
		t.Fatalf("confidence=%v items=%d", res.Confidence, len(res.Items))
	}
	if res.Items[0].Item.ID != "main-005" {
		t.Fatalf("item=%s", res.Items[0].Item.ID)
	}
}

func TestSearchNormalizesSpellingVariants(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)
	// Teh marbuta variant of the catalog spelling.
	res, err := r.Search(context.Background(), "كنافه")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !res.Found || res.Kind != MatchExact {
		t.Fatalf("kind=%s found=%v want exact hit for normalized query", res.Kind, res.Found)
	}
	if res.Items[0].Item.ID != "dessert-001" {
		t.Fatalf("item=%s", res.Items[0].Item.ID)
	}
}

func TestSearchKeywordOnDescription(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)
	res, err := r.Search(context.Background(), "قطر")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !res.Found || res.Kind != MatchKeyword {
		t.Fatalf("kind=%s found=%v want keyword hit", res.Kind, res.Found)
	}
	if res.Confidence != keywordConfidence {
		t.Fatalf("confidence=%v want %v", res.Confidence, keywordConfidence)
	}
	if res.Items[0].Item.ID != "dessert-001" {
		t.Fatalf("item=%s", res.Items[0].Item.ID)
	}
}

func TestSearchAmbiguousNameNeedsDisambiguation(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)
	// "برجر" is contained in two catalog names; the pipeline must fall to
	// similarity and return both below the exact confidence.
	res, err := r.Search(context.Background(), "برجر")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !res.Found || res.Kind != MatchSimilarity {
		t.Fatalf("kind=%s found=%v want similarity", res.Kind, res.Found)
	}
	if !res.NeedsConfirm {
		t.Fatal("ambiguous query must require confirmation")
	}
	if res.Confidence >= 1.0 {
		t.Fatalf("confidence=%v must stay below exact", res.Confidence)
	}

	got := map[string]bool{}
	for _, sc := range res.Items {
		got[sc.Item.ID] = true
	}
	if !got["main-001"] || !got["main-002"] {
		t.Fatalf("both burgers must come back, got %v", got)
	}
}

func TestSearchPhoneticFoodSpelling(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)
	// Common misspelling of برجر.
	res, err := r.Search(context.Background(), "برقر لحم")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !res.Found {
		t.Fatal("phonetic variant should match")
	}
	if res.Items[0].Item.ID != "main-001" {
		t.Fatalf("item=%s want main-001", res.Items[0].Item.ID)
	}
}

func TestSearchNotFound(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)
	res, err := r.Search(context.Background(), "بيتزا")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Found {
		t.Fatalf("unknown item must report not found, got %+v", res)
	}
}

func TestSearchStripsRequestPrefix(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)
	res, err := r.Search(context.Background(), "ابغى كبسة لحم")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !res.Found || res.Kind != MatchExact {
		t.Fatalf("kind=%s found=%v want exact after prefix strip", res.Kind, res.Found)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	in := "أبغى برقر مع بيبسى"
	once := Normalize(in)
	if got := Normalize(once); got != once {
		t.Fatalf("normalize not idempotent: %q then %q", once, got)
	}
}

func TestResultConfidenceBands(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		res  Result
		weak bool
	}{
		{"similarity below confirm band", Result{Kind: MatchSimilarity, Found: true, Confidence: 0.45}, true},
		{"similarity in confirm band", Result{Kind: MatchSimilarity, Found: true, Confidence: 0.60}, false},
		{"similarity direct", Result{Kind: MatchSimilarity, Found: true, Confidence: 0.80}, false},
		{"keyword is never weak", Result{Kind: MatchKeyword, Found: true, Confidence: 0.45}, false},
		{"miss is never weak", Result{Kind: MatchSimilarity, Confidence: 0.45}, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.res.Weak(); got != tc.weak {
				t.Fatalf("Weak()=%v want %v", got, tc.weak)
			}
		})
	}
}
