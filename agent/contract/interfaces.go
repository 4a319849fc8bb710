package contract

import "context"

// Inference is the external model collaborator. Implementations are expected
// to block until a response or failure; the orchestrator handles retries.
type Inference interface {
	Complete(ctx context.Context, req InferenceRequest) (InferenceResponse, error)
}

// EventSink receives structured events from the core. Emit must not block the
// turn; implementations that do IO should buffer.
type EventSink interface {
	Emit(ev Event)
}

// OrderNotifier is told about confirmed orders (kitchen display, dispatch).
type OrderNotifier interface {
	NotifyConfirmed(ctx context.Context, orderID string, payload map[string]any) error
}
