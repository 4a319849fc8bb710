package state

import (
	"fmt"
	"strings"

	contractx "github.com/albayt/ordering-agent/agent/contract"
)

const (
	MinQuantity = 1
	MaxQuantity = 10
)

// MenuItem is the slice of a catalog entry the ledger needs for validation
// and pricing. The catalog index adapts itself to this.
type MenuItem struct {
	ID         string
	Name       string
	Available  bool
	BasePrice  float64
	SizePrices map[string]float64
}

// Menu resolves catalog ids for ledger operations. Absence is ErrItemNotFound,
// not a search miss.
type Menu interface {
	ItemByID(id string) (MenuItem, bool)
}

// Line is one ledger entry.
type Line struct {
	CatalogID string  `json:"catalog_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Size      string  `json:"size,omitempty"`
	Notes     string  `json:"notes,omitempty"`
}

func (l Line) Total() float64 {
	return float64(l.Quantity) * l.UnitPrice
}

// Selector addresses an existing line by 1-based position or by name match.
// Index takes precedence when set.
type Selector struct {
	Index int
	Name  string
}

// LinePatch carries optional modifications; nil fields keep current values.
type LinePatch struct {
	Quantity *int
	Size     *string
	Notes    *string
}

// Ledger is the ordered cart of selected items. All operations are
// side-effect-free on failure.
type Ledger struct {
	Items []Line `json:"items,omitempty"`
}

func (g *Ledger) Lines() []Line { return g.Items }

func (g *Ledger) Empty() bool { return len(g.Items) == 0 }

// Subtotal is always recomputed from the current lines, never cached.
func (g *Ledger) Subtotal() float64 {
	var sum float64
	for _, l := range g.Items {
		sum += l.Total()
	}
	return sum
}

// Add appends a line for the catalog item. Size-specific pricing is resolved
// when a size is supplied, otherwise the base price applies.
func (g *Ledger) Add(menu Menu, catalogID string, quantity int, size, notes string) (Line, error) {
	if quantity < MinQuantity || quantity > MaxQuantity {
		return Line{}, fmt.Errorf("%w: quantity=%d", contractx.ErrInvalidQuantity, quantity)
	}
	item, ok := menu.ItemByID(catalogID)
	if !ok {
		return Line{}, fmt.Errorf("%w: id=%s", contractx.ErrItemNotFound, catalogID)
	}
	if !item.Available {
		return Line{}, fmt.Errorf("%w: %s", contractx.ErrItemUnavailable, item.Name)
	}

	price := item.BasePrice
	if size = strings.TrimSpace(size); size != "" {
		p, ok := item.SizePrices[size]
		if !ok {
			return Line{}, fmt.Errorf("%w: size %q not offered for %s", contractx.ErrValidation, size, item.Name)
		}
		price = p
	}

	line := Line{
		CatalogID: catalogID,
		Name:      item.Name,
		Quantity:  quantity,
		UnitPrice: price,
		Size:      size,
		Notes:     strings.TrimSpace(notes),
	}
	g.Items = append(g.Items, line)
	return line, nil
}

// Modify updates quantity, size, or notes of the selected line. A size change
// reprices the line from the catalog.
func (g *Ledger) Modify(menu Menu, sel Selector, patch LinePatch) (Line, error) {
	idx, err := g.resolve(sel)
	if err != nil {
		return Line{}, err
	}

	// Validate the whole patch before mutating anything.
	updated := g.Items[idx]
	if patch.Quantity != nil {
		q := *patch.Quantity
		if q < MinQuantity || q > MaxQuantity {
			return Line{}, fmt.Errorf("%w: quantity=%d", contractx.ErrInvalidQuantity, q)
		}
		updated.Quantity = q
	}
	if patch.Size != nil {
		size := strings.TrimSpace(*patch.Size)
		item, ok := menu.ItemByID(updated.CatalogID)
		if !ok {
			return Line{}, fmt.Errorf("%w: id=%s", contractx.ErrItemNotFound, updated.CatalogID)
		}
		if size == "" {
			updated.Size = ""
			updated.UnitPrice = item.BasePrice
		} else {
			p, ok := item.SizePrices[size]
			if !ok {
				return Line{}, fmt.Errorf("%w: size %q not offered for %s", contractx.ErrValidation, size, item.Name)
			}
			updated.Size = size
			updated.UnitPrice = p
		}
	}
	if patch.Notes != nil {
		updated.Notes = strings.TrimSpace(*patch.Notes)
	}

	g.Items[idx] = updated
	return updated, nil
}

// Remove deletes the selected line and returns it.
func (g *Ledger) Remove(sel Selector) (Line, error) {
	idx, err := g.resolve(sel)
	if err != nil {
		return Line{}, err
	}
	removed := g.Items[idx]
	g.Items = append(g.Items[:idx], g.Items[idx+1:]...)
	return removed, nil
}

// resolve maps a selector to a line index. Out-of-range positions and
// ambiguous or unmatched names fail with ErrItemNotFound.
func (g *Ledger) resolve(sel Selector) (int, error) {
	if g.Empty() {
		return 0, fmt.Errorf("%w: order is empty", contractx.ErrItemNotFound)
	}
	if sel.Index > 0 {
		if sel.Index > len(g.Items) {
			return 0, fmt.Errorf("%w: position %d of %d", contractx.ErrItemNotFound, sel.Index, len(g.Items))
		}
		return sel.Index - 1, nil
	}

	name := strings.ToLower(strings.TrimSpace(sel.Name))
	if name == "" {
		return 0, fmt.Errorf("%w: empty selector", contractx.ErrItemNotFound)
	}

	var matches []int
	for i, l := range g.Items {
		ln := strings.ToLower(l.Name)
		if strings.Contains(ln, name) || strings.Contains(name, ln) {
			matches = append(matches, i)
		}
	}
	if len(matches) == 0 {
		// Word-level fallback for partial mentions.
		for i, l := range g.Items {
			for _, w := range strings.Fields(strings.ToLower(l.Name)) {
				if strings.Contains(w, name) || strings.Contains(name, w) {
					matches = append(matches, i)
					break
				}
			}
		}
	}
	if len(matches) != 1 {
		return 0, fmt.Errorf("%w: selector %q matched %d lines", contractx.ErrItemNotFound, sel.Name, len(matches))
	}
	return matches[0], nil
}
