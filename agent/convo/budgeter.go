package convo

import (
	"github.com/cloudwego/eino/schema"

	contractx "github.com/albayt/ordering-agent/agent/contract"
)

// Ceilings carries the per-stage token budgets. Ordering carries the full
// menu back and forth so it gets the widest budget.
type Ceilings struct {
	Greeting int `envconfig:"GREETING_TOKENS" split_words:"true" default:"4000"`
	Location int `envconfig:"LOCATION_TOKENS" split_words:"true" default:"6000"`
	Ordering int `envconfig:"ORDERING_TOKENS" split_words:"true" default:"12000"`
	Checkout int `envconfig:"CHECKOUT_TOKENS" split_words:"true" default:"8000"`
}

func DefaultCeilings() Ceilings {
	return Ceilings{Greeting: 4000, Location: 6000, Ordering: 12000, Checkout: 8000}
}

// For returns the budget for a stage. Unset fields and unknown stages get
// the greeting budget, the smallest one.
func (c Ceilings) For(stage contractx.Stage) int {
	defaults := DefaultCeilings()
	pick := func(v, d int) int {
		if v > 0 {
			return v
		}
		return d
	}
	switch stage {
	case contractx.StageLocation:
		return pick(c.Location, defaults.Location)
	case contractx.StageOrdering:
		return pick(c.Ordering, defaults.Ordering)
	case contractx.StageCheckout:
		return pick(c.Checkout, defaults.Checkout)
	default:
		return pick(c.Greeting, defaults.Greeting)
	}
}

const retainedTail = 6

// Ceiling returns the default token budget for a stage.
func Ceiling(stage contractx.Stage) int {
	return DefaultCeilings().For(stage)
}

// Truncation describes one budgeter cut, for the truncation event payload.
type Truncation struct {
	TokensBefore int `json:"tokens_before"`
	TokensAfter  int `json:"tokens_after"`
	Dropped      int `json:"dropped_messages"`
}

// Budget applies the default ceilings. See Ceilings.Budget.
func Budget(stage contractx.Stage, msgs []*schema.Message) ([]*schema.Message, Truncation, bool) {
	return DefaultCeilings().Budget(stage, msgs)
}

// Budget enforces the stage ceiling on an assembled input. Under the ceiling
// the input passes through untouched. Over it, the first message (the state
// block) and the last six messages survive verbatim and everything between
// is dropped. The current user utterance is always inside the retained tail,
// so it is never lost. Applying Budget to its own output is a no-op.
func (c Ceilings) Budget(stage contractx.Stage, msgs []*schema.Message) ([]*schema.Message, Truncation, bool) {
	before := messagesTokens(msgs)
	if before <= c.For(stage) || len(msgs) <= retainedTail+1 {
		return msgs, Truncation{}, false
	}

	out := make([]*schema.Message, 0, retainedTail+1)
	out = append(out, msgs[0])
	out = append(out, msgs[len(msgs)-retainedTail:]...)

	t := Truncation{
		TokensBefore: before,
		TokensAfter:  messagesTokens(out),
		Dropped:      len(msgs) - len(out),
	}
	return out, t, true
}

func messagesTokens(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += EstimateTokens(m.Content)
	}
	return total
}
