// Package router decides which conversational stage handles the next turn.
// Routing is a total, deterministic function of session fields; no stage is
// ever chosen ad hoc by inference output.
package router

import (
	contractx "github.com/albayt/ordering-agent/agent/contract"
	statex "github.com/albayt/ordering-agent/agent/state"
)

// Route maps the session to the stage that must handle the next inbound
// turn. Rules are ordered; the first that applies wins.
func Route(s *statex.Session) contractx.Stage {
	if s.Closed() {
		return contractx.StageClosed
	}

	switch s.Stage {
	case contractx.StageLocation:
		// User switched to pickup mid-flow; the location stage has
		// nothing left to collect.
		if s.Mode == contractx.ModePickup {
			return orderingOrCheckout(s)
		}
		// Hold until both the district and the street address are in.
		if !s.LocationConfirmed || !s.AddressComplete {
			return contractx.StageLocation
		}
		return orderingOrCheckout(s)

	case contractx.StageCheckout:
		if !s.Ledger.Empty() {
			return contractx.StageCheckout
		}
		return contractx.StageOrdering

	case contractx.StageOrdering:
		if s.Mode == contractx.ModeDelivery && !s.LocationConfirmed {
			return contractx.StageLocation
		}
		return contractx.StageOrdering

	case contractx.StageGreeting:
		// Greeting is done once the customer has identified themselves.
		if s.CustomerName == "" {
			return contractx.StageGreeting
		}
	}

	// Cold start, or a finished greeting.
	if s.Mode == contractx.ModeDelivery && (!s.LocationConfirmed || !s.AddressComplete) {
		return contractx.StageLocation
	}
	if !s.Ledger.Empty() {
		return contractx.StageCheckout
	}
	if s.Stage == "" && s.CustomerName == "" {
		return contractx.StageGreeting
	}
	return contractx.StageOrdering
}

func orderingOrCheckout(s *statex.Session) contractx.Stage {
	if s.Ledger.Empty() {
		return contractx.StageOrdering
	}
	return contractx.StageCheckout
}
