package orchestrator

import (
	"github.com/rs/zerolog"

	contractx "github.com/albayt/ordering-agent/agent/contract"
	logx "github.com/albayt/ordering-agent/pkg/logger"
)

// LogSink emits core events through zerolog. Formatting and storage beyond
// that are someone else's concern.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink() *LogSink {
	return &LogSink{logger: logx.Named("orchestrator")}
}

func (s *LogSink) Emit(e contractx.Event) {
	s.logger.Info().
		Time("timestamp", e.Timestamp).
		Str("session_id", e.SessionID).
		Str("event_type", string(e.Type)).
		Interface("payload", e.Payload).
		Msg("conversation event")
}

// noopSink keeps event emission nil-safe in tests.
type noopSink struct{}

func (noopSink) Emit(contractx.Event) {}
