package state

import (
	"fmt"
	"testing"
	"time"

	contractx "github.com/albayt/ordering-agent/agent/contract"
)

func TestConstraintsAreMonotonic(t *testing.T) {
	t.Parallel()

	s := New("user-1", time.Now())
	if !s.AddConstraint("حساسية من المكسرات") {
		t.Fatal("first add should report true")
	}
	if s.AddConstraint("حساسية من المكسرات") {
		t.Fatal("duplicate add should report false")
	}
	s.AddConstraint("نظام غذائي: نباتي")

	if len(s.Constraints) != 2 {
		t.Fatalf("constraints=%d want 2", len(s.Constraints))
	}
	if s.Constraints[0] != "حساسية من المكسرات" {
		t.Fatal("insertion order must be preserved")
	}
}

func TestBufferCapEvictsOldest(t *testing.T) {
	t.Parallel()

	s := New("user-1", time.Now())
	for i := 0; i < MaxBufferedTurns+5; i++ {
		s.AppendTurn("user", fmt.Sprintf("turn %d", i))
	}
	if len(s.Buffer) != MaxBufferedTurns {
		t.Fatalf("buffer=%d want %d", len(s.Buffer), MaxBufferedTurns)
	}
	if s.Buffer[0].Text != "turn 5" {
		t.Fatalf("oldest surviving turn=%q want %q", s.Buffer[0].Text, "turn 5")
	}
}

func TestAddressCompleteRequiresConfirmedLocation(t *testing.T) {
	t.Parallel()

	s := New("user-1", time.Now())

	// Street and building without a confirmed district do not complete
	// the address.
	s.SetAddress("شارع التحلية", "12", "")
	if s.AddressComplete {
		t.Fatal("address must not complete without confirmed location")
	}

	s.ConfirmLocation("العليا", 10, "30-40 دقيقة")
	if !s.AddressComplete {
		t.Fatal("address should complete once location is confirmed")
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestSetModePickupClearsDeliveryState(t *testing.T) {
	t.Parallel()

	s := New("user-1", time.Now())
	s.ConfirmLocation("العليا", 10, "30-40 دقيقة")
	s.SetAddress("شارع التحلية", "12", "")
	if _, err := s.Ledger.Add(testMenu(), "main-001", 1, "", ""); err != nil {
		t.Fatalf("add: %v", err)
	}

	s.SetMode(contractx.ModePickup)

	if s.LocationConfirmed || s.AddressComplete {
		t.Fatal("pickup must clear confirmation flags")
	}
	if s.DeliveryFee != 0 {
		t.Fatalf("fee=%v want 0", s.DeliveryFee)
	}
	if s.District == "" {
		t.Fatal("district should survive a mode switch")
	}
	if s.Ledger.Empty() {
		t.Fatal("mode switch must never touch the ledger")
	}
}

func TestCompleteClosesSession(t *testing.T) {
	t.Parallel()

	s := New("user-1", time.Now())
	if s.Closed() {
		t.Fatal("new session should be active")
	}
	s.Complete("ORD-20260829-0042")
	if !s.Closed() {
		t.Fatal("completed session should be closed")
	}
	if s.OrderID != "ORD-20260829-0042" {
		t.Fatalf("order id=%q", s.OrderID)
	}
}
