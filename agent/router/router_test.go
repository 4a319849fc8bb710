package router

import (
	"testing"
	"time"

	contractx "github.com/albayt/ordering-agent/agent/contract"
	statex "github.com/albayt/ordering-agent/agent/state"
)

func session(mutate func(*statex.Session)) *statex.Session {
	s := statex.New("user-1", time.Now())
	if mutate != nil {
		mutate(s)
	}
	return s
}

func addLine(s *statex.Session) {
	s.Ledger.Items = append(s.Ledger.Items, statex.Line{
		CatalogID: "main-001", Name: "برجر لحم", Quantity: 1, UnitPrice: 28,
	})
}

func TestRoutePrecedence(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*statex.Session)
		want   contractx.Stage
	}{
		{
			name:   "closed session routes to terminal stage",
			mutate: func(s *statex.Session) { s.Complete("ORD-1") },
			want:   contractx.StageClosed,
		},
		{
			name: "location stage with pickup switch and empty ledger goes ordering",
			mutate: func(s *statex.Session) {
				s.Stage = contractx.StageLocation
				s.SetMode(contractx.ModePickup)
			},
			want: contractx.StageOrdering,
		},
		{
			name: "location stage with pickup switch and items goes checkout",
			mutate: func(s *statex.Session) {
				s.Stage = contractx.StageLocation
				s.SetMode(contractx.ModePickup)
				addLine(s)
			},
			want: contractx.StageCheckout,
		},
		{
			name: "location stage holds until district confirmed",
			mutate: func(s *statex.Session) {
				s.Stage = contractx.StageLocation
			},
			want: contractx.StageLocation,
		},
		{
			name: "location stage holds until street and building collected",
			mutate: func(s *statex.Session) {
				s.Stage = contractx.StageLocation
				s.ConfirmLocation("العليا", 10, "30-40 دقيقة")
			},
			want: contractx.StageLocation,
		},
		{
			name: "location stage advances once address is complete",
			mutate: func(s *statex.Session) {
				s.Stage = contractx.StageLocation
				s.ConfirmLocation("العليا", 10, "30-40 دقيقة")
				s.SetAddress("شارع التحلية", "12", "")
			},
			want: contractx.StageOrdering,
		},
		{
			name: "checkout stays while ledger is non-empty",
			mutate: func(s *statex.Session) {
				s.Stage = contractx.StageCheckout
				addLine(s)
			},
			want: contractx.StageCheckout,
		},
		{
			name: "checkout with emptied ledger returns to ordering",
			mutate: func(s *statex.Session) {
				s.Stage = contractx.StageCheckout
			},
			want: contractx.StageOrdering,
		},
		{
			name: "ordering with unconfirmed delivery location detours to location",
			mutate: func(s *statex.Session) {
				s.Stage = contractx.StageOrdering
			},
			want: contractx.StageLocation,
		},
		{
			name: "ordering stays for pickup",
			mutate: func(s *statex.Session) {
				s.Stage = contractx.StageOrdering
				s.SetMode(contractx.ModePickup)
			},
			want: contractx.StageOrdering,
		},
		{
			name:   "cold start delivery routes to location",
			mutate: nil,
			want:   contractx.StageLocation,
		},
		{
			name: "cold start pickup routes to greeting",
			mutate: func(s *statex.Session) {
				s.SetMode(contractx.ModePickup)
			},
			want: contractx.StageGreeting,
		},
		{
			name: "cold start pickup with items routes to checkout",
			mutate: func(s *statex.Session) {
				s.SetMode(contractx.ModePickup)
				addLine(s)
			},
			want: contractx.StageCheckout,
		},
		{
			name: "greeting holds until the customer identifies themselves",
			mutate: func(s *statex.Session) {
				s.Stage = contractx.StageGreeting
				s.SetMode(contractx.ModePickup)
			},
			want: contractx.StageGreeting,
		},
		{
			name: "finished greeting advances to ordering for pickup",
			mutate: func(s *statex.Session) {
				s.Stage = contractx.StageGreeting
				s.SetMode(contractx.ModePickup)
				s.CustomerName = "محمد"
			},
			want: contractx.StageOrdering,
		},
		{
			name: "finished greeting advances to location for delivery",
			mutate: func(s *statex.Session) {
				s.Stage = contractx.StageGreeting
				s.CustomerName = "محمد"
			},
			want: contractx.StageLocation,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Route(session(tc.mutate)); got != tc.want {
				t.Fatalf("route=%s want %s", got, tc.want)
			}
		})
	}
}

func TestRouteIsDeterministic(t *testing.T) {
	t.Parallel()

	s := session(func(s *statex.Session) {
		s.Stage = contractx.StageOrdering
		s.SetMode(contractx.ModePickup)
		addLine(s)
	})
	first := Route(s)
	for i := 0; i < 10; i++ {
		if got := Route(s); got != first {
			t.Fatalf("route changed between calls: %s then %s", first, got)
		}
	}
}
