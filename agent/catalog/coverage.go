package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	contractx "github.com/albayt/ordering-agent/agent/contract"
)

// Zone is one deliverable district with its fee and ETA window.
type Zone struct {
	District string  `json:"district"`
	Fee      float64 `json:"fee"`
	ETA      string  `json:"eta"`
}

// Coverage answers "do we deliver to this district" with tolerance for the
// spelling drift real users produce.
type Coverage struct {
	zones      []Zone
	normalized []string
}

// NewCoverage indexes the delivery zones, preserving input order for
// suggestion stability.
func NewCoverage(zones []Zone) (*Coverage, error) {
	if len(zones) == 0 {
		return nil, errors.New("no delivery zones configured")
	}
	c := &Coverage{zones: zones, normalized: make([]string, len(zones))}
	for i, z := range zones {
		c.normalized[i] = normalizeDistrict(z.District)
	}
	return c, nil
}

type coverageFile struct {
	Zones []Zone `json:"zones"`
}

func LoadCoverage(path string) (*Coverage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read coverage zones: %w", err)
	}
	var f coverageFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse coverage zones: %w", err)
	}
	return NewCoverage(f.Zones)
}

// districtPrefixes are location words users prepend to the district name.
var districtPrefixes = []string{"حي", "منطقه", "منطقة", "ضاحيه", "ضاحية"}

func normalizeDistrict(s string) string {
	s = Normalize(s)
	for changed := true; changed; {
		changed = false
		for _, p := range districtPrefixes {
			if strings.HasPrefix(s, p+" ") {
				s = strings.TrimSpace(strings.TrimPrefix(s, p+" "))
				changed = true
			}
		}
	}
	return s
}

// Match resolves user input to a covered zone. Exact wins, then strict
// containment when the shorter form covers at least 80% of the longer, then
// a Levenshtein pass allowing one edit per five characters. A miss returns
// ErrDistrictNotCovered; callers can present Suggestions alongside it.
func (c *Coverage) Match(input string) (Zone, error) {
	q := normalizeDistrict(input)
	if q == "" {
		return Zone{}, contractx.ErrDistrictNotCovered
	}
	for i, n := range c.normalized {
		if n == q {
			return c.zones[i], nil
		}
	}
	for i, n := range c.normalized {
		if containment(q, n) >= 0.8 {
			return c.zones[i], nil
		}
	}
	for i, n := range c.normalized {
		maxEdits := len([]rune(n)) / 5
		if maxEdits < 1 {
			maxEdits = 1
		}
		if levenshtein(q, n) <= maxEdits {
			return c.zones[i], nil
		}
	}
	return Zone{}, contractx.ErrDistrictNotCovered
}

// Suggestions returns the n closest covered district names for "did you
// mean" replies after a Match miss.
func (c *Coverage) Suggestions(input string, n int) []string {
	q := normalizeDistrict(input)
	type cand struct {
		name string
		dist int
	}
	cands := make([]cand, 0, len(c.zones))
	for i, norm := range c.normalized {
		cands = append(cands, cand{name: c.zones[i].District, dist: levenshtein(q, norm)})
	}
	sort.SliceStable(cands, func(a, b int) bool { return cands[a].dist < cands[b].dist })
	if n > len(cands) {
		n = len(cands)
	}
	out := make([]string, 0, n)
	for _, cd := range cands[:n] {
		out = append(out, cd.name)
	}
	return out
}

// Districts lists every covered district in configuration order.
func (c *Coverage) Districts() []string {
	out := make([]string, len(c.zones))
	for i, z := range c.zones {
		out[i] = z.District
	}
	return out
}

// containment measures how much of the shorter string appears inside the
// longer one, as a fraction of the shorter string's length.
func containment(a, b string) float64 {
	short, long := a, b
	if len([]rune(short)) > len([]rune(long)) {
		short, long = long, short
	}
	if short == "" {
		return 0
	}
	if strings.Contains(long, short) {
		return float64(len([]rune(short))) / float64(len([]rune(long)))
	}
	return 0
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
