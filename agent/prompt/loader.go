package prompt

import (
	_ "embed"
	"strings"

	contractx "github.com/albayt/ordering-agent/agent/contract"
)

var (
	//go:embed template/greeting.txt
	greetingRaw string

	//go:embed template/location.txt
	locationRaw string

	//go:embed template/ordering.txt
	orderingRaw string

	//go:embed template/checkout.txt
	checkoutRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Greeting string
	Location string
	Ordering string
	Checkout string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// This is safe to call concurrently; the embed is compile-time, and trimming is cheap.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Greeting: strings.TrimSpace(greetingRaw),
		Location: strings.TrimSpace(locationRaw),
		Ordering: strings.TrimSpace(orderingRaw),
		Checkout: strings.TrimSpace(checkoutRaw),
	}
}

// For returns the instruction set for a stage.
func (p PromptSet) For(stage contractx.Stage) string {
	switch stage {
	case contractx.StageGreeting:
		return p.Greeting
	case contractx.StageLocation:
		return p.Location
	case contractx.StageOrdering:
		return p.Ordering
	case contractx.StageCheckout:
		return p.Checkout
	default:
		return ""
	}
}
