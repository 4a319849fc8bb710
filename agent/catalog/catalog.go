package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Item is one immutable catalog entry as provided by the catalog data
// collaborator at startup.
type Item struct {
	ID          string             `json:"id"`
	Name        string             `json:"name_ar"`
	NameEN      string             `json:"name_en,omitempty"`
	Price       float64            `json:"price"`
	Category    string             `json:"category"`
	Description string             `json:"description_ar,omitempty"`
	Available   bool               `json:"available"`
	SizePrices  map[string]float64 `json:"size_prices,omitempty"`
}

// Index holds the searchable catalog. Immutable after load; safe for
// concurrent reads without locking.
type Index struct {
	items []Item
	byID  map[string]int

	// Normalized per item at index time so queries compare against a
	// consistent representation.
	normNames []string
	normFull  []string
}

// NewIndex builds an index over the provided items, preserving catalog order.
func NewIndex(items []Item) (*Index, error) {
	if len(items) == 0 {
		return nil, errors.New("catalog is empty")
	}
	idx := &Index{
		items:     make([]Item, len(items)),
		byID:      make(map[string]int, len(items)),
		normNames: make([]string, len(items)),
		normFull:  make([]string, len(items)),
	}
	copy(idx.items, items)
	for i, it := range idx.items {
		if strings.TrimSpace(it.ID) == "" {
			return nil, fmt.Errorf("catalog item %d has no id", i)
		}
		if _, dup := idx.byID[it.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog id %q", it.ID)
		}
		idx.byID[it.ID] = i
		idx.normNames[i] = Normalize(it.Name + " " + it.NameEN)
		idx.normFull[i] = Normalize(it.Name + " " + it.NameEN + " " + it.Description + " " + it.Category)
	}
	return idx, nil
}

type menuFile struct {
	Items []Item `json:"items"`
}

// LoadIndex reads the catalog data file produced by the menu generator.
func LoadIndex(path string) (*Index, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var f menuFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return NewIndex(f.Items)
}

func (x *Index) Len() int { return len(x.items) }

func (x *Index) Items() []Item { return x.items }

// ItemByID is a direct lookup; absence is the caller's ErrItemNotFound, not
// a search miss.
func (x *Index) ItemByID(id string) (Item, bool) {
	i, ok := x.byID[id]
	if !ok {
		return Item{}, false
	}
	return x.items[i], true
}

// Categories returns the distinct category names, sorted.
func (x *Index) Categories() []string {
	seen := make(map[string]struct{})
	for _, it := range x.items {
		seen[it.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
