package state

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	contractx "github.com/albayt/ordering-agent/agent/contract"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusTimedOut  Status = "timed-out"
)

// MaxBufferedTurns caps the conversation buffer; oldest turns are evicted
// first. The buffer only serves same-stage continuity, handoffs replace it.
const MaxBufferedTurns = 20

// Turn is one raw conversation turn kept for same-stage continuity.
type Turn struct {
	Role string `json:"role"` // "user" | "assistant"
	Text string `json:"text"`
}

// PendingItem is a free-text order hint captured before the ordering stage
// exists. Consumed and cleared once the ordering stage processes it.
type PendingItem struct {
	Text     string `json:"text"`
	Quantity int    `json:"quantity"`
}

// Handoff carries the stage-change context consumed on the next turn. The
// outgoing stage's instructions and tool history are deliberately not part of
// it: the new stage reconstructs intent from persisted session fields.
type Handoff struct {
	Directive    string `json:"directive"`
	LastUserText string `json:"last_user_text"`
}

// Session is the single mutable state container for one conversation.
// Mutated exclusively by tool-call handlers and the stage router; the
// orchestrator guarantees one turn at a time per session id.
type Session struct {
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	StartedAt    time.Time `json:"started_at"`
	LastActivity time.Time `json:"last_activity"`

	Status Status          `json:"status"`
	Stage  contractx.Stage `json:"stage,omitempty"` // empty until first routing

	CustomerName string `json:"customer_name,omitempty"`
	Phone        string `json:"phone,omitempty"`

	Mode contractx.OrderMode `json:"mode"`

	District      string  `json:"district,omitempty"`
	Street        string  `json:"street,omitempty"`
	Building      string  `json:"building,omitempty"`
	AddressNotes  string  `json:"address_notes,omitempty"`
	DeliveryFee   float64 `json:"delivery_fee,omitempty"`
	EstimatedTime string  `json:"estimated_time,omitempty"`

	// LocationConfirmed is set only by successful coverage validation.
	// AddressComplete is set only once street+building are present, and
	// implies LocationConfirmed.
	LocationConfirmed bool `json:"location_confirmed"`
	AddressComplete   bool `json:"address_complete"`

	// Constraints is an insertion-ordered set; once added, never dropped.
	Constraints []string `json:"constraints,omitempty"`

	Ledger Ledger `json:"ledger"`

	Buffer  []Turn        `json:"buffer,omitempty"`
	Pending []PendingItem `json:"pending,omitempty"`
	Handoff *Handoff      `json:"handoff,omitempty"`

	OrderID string `json:"order_id,omitempty"`
}

// New creates an active delivery-mode session for a user.
func New(userID string, now time.Time) *Session {
	return &Session{
		SessionID:    "sess_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		UserID:       userID,
		StartedAt:    now.UTC(),
		LastActivity: now.UTC(),
		Status:       StatusActive,
		Mode:         contractx.ModeDelivery,
	}
}

func (s *Session) Touch(now time.Time) {
	s.LastActivity = now.UTC()
}

// Closed reports whether the session refuses further mutation.
func (s *Session) Closed() bool {
	return s.Status != StatusActive
}

// AddConstraint appends a constraint if not already present. The set is
// monotonically non-decreasing within a session.
func (s *Session) AddConstraint(constraint string) bool {
	constraint = strings.TrimSpace(constraint)
	if constraint == "" {
		return false
	}
	for _, c := range s.Constraints {
		if c == constraint {
			return false
		}
	}
	s.Constraints = append(s.Constraints, constraint)
	return true
}

// AppendTurn records a raw turn, evicting the oldest beyond the cap.
func (s *Session) AppendTurn(role, text string) {
	s.Buffer = append(s.Buffer, Turn{Role: role, Text: text})
	if len(s.Buffer) > MaxBufferedTurns {
		s.Buffer = s.Buffer[len(s.Buffer)-MaxBufferedTurns:]
	}
}

// ClearBuffer drops same-stage continuity history. Called on stage change,
// where the handoff summary replaces prior history entirely.
func (s *Session) ClearBuffer() {
	s.Buffer = nil
}

// AddPending stores a free-text order hint for the ordering stage.
func (s *Session) AddPending(text string, quantity int) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if quantity < 1 {
		quantity = 1
	}
	s.Pending = append(s.Pending, PendingItem{Text: text, Quantity: quantity})
}

// ConsumePending returns and clears the pending-items buffer.
func (s *Session) ConsumePending() []PendingItem {
	p := s.Pending
	s.Pending = nil
	return p
}

// ConfirmLocation records a successful coverage validation.
func (s *Session) ConfirmLocation(district string, fee float64, eta string) {
	s.District = district
	s.DeliveryFee = fee
	s.EstimatedTime = eta
	s.Mode = contractx.ModeDelivery
	s.LocationConfirmed = true
	s.refreshAddressComplete()
}

// SetAddress merges structured address parts. Empty arguments keep the
// current value. AddressComplete is derived, never set directly.
func (s *Session) SetAddress(street, building, notes string) {
	if v := strings.TrimSpace(street); v != "" {
		s.Street = v
	}
	if v := strings.TrimSpace(building); v != "" {
		s.Building = v
	}
	if v := strings.TrimSpace(notes); v != "" {
		s.AddressNotes = v
	}
	s.refreshAddressComplete()
}

func (s *Session) refreshAddressComplete() {
	s.AddressComplete = s.LocationConfirmed && s.Street != "" && s.Building != ""
}

// SetMode switches delivery/pickup. Pickup clears the delivery fee and the
// confirmation flags; the district is kept in case the customer switches
// back. The ledger is never touched by a mode switch.
func (s *Session) SetMode(mode contractx.OrderMode) {
	if s.Mode == mode {
		return
	}
	s.Mode = mode
	if mode == contractx.ModePickup {
		s.DeliveryFee = 0
		s.LocationConfirmed = false
		s.AddressComplete = false
	} else {
		s.refreshAddressComplete()
	}
}

// FullAddress renders the structured address parts for display.
func (s *Session) FullAddress() string {
	var parts []string
	if s.District != "" {
		parts = append(parts, "حي "+s.District)
	}
	if s.Street != "" {
		parts = append(parts, s.Street)
	}
	if s.Building != "" {
		parts = append(parts, "مبنى "+s.Building)
	}
	if s.AddressNotes != "" {
		parts = append(parts, "("+s.AddressNotes+")")
	}
	if len(parts) == 0 {
		return "غير محدد"
	}
	return strings.Join(parts, "، ")
}

// Complete marks the session completed with its order id. Further mutation
// attempts fail with ErrSessionClosed.
func (s *Session) Complete(orderID string) {
	s.Status = StatusCompleted
	s.OrderID = orderID
}

// Validate checks structural invariants before persisting.
func (s *Session) Validate() error {
	if strings.TrimSpace(s.SessionID) == "" {
		return fmt.Errorf("%w: session id is empty", contractx.ErrValidation)
	}
	if s.AddressComplete && !s.LocationConfirmed {
		return fmt.Errorf("%w: address complete without confirmed location", contractx.ErrValidation)
	}
	for _, l := range s.Ledger.Lines() {
		if l.Quantity < MinQuantity || l.Quantity > MaxQuantity {
			return fmt.Errorf("%w: line %q quantity=%d", contractx.ErrValidation, l.Name, l.Quantity)
		}
	}
	return nil
}
