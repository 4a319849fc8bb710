// Package orchestrator runs one conversation turn end to end: route the
// stage, assemble and budget the input, drive the model/tool loop, and
// persist the mutated session.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	archivex "github.com/albayt/ordering-agent/agent/archive"
	contractx "github.com/albayt/ordering-agent/agent/contract"
	"github.com/albayt/ordering-agent/agent/convo"
	promptx "github.com/albayt/ordering-agent/agent/prompt"
	"github.com/albayt/ordering-agent/agent/router"
	statex "github.com/albayt/ordering-agent/agent/state"
	toolx "github.com/albayt/ordering-agent/agent/tool"
)

const (
	// ApologyReply is the fixed fallback when inference stays down after
	// retries.
	ApologyReply = "نعتذر منك، عندنا خلل فني مؤقت. حاول مرة ثانية بعد قليل أو اتصل على 920001234."

	// ClosedReply is the fixed answer for any message after the session
	// completed or timed out.
	ClosedReply = "هذه الجلسة انتهت. إذا تبي تطلب من جديد أرسل رسالة جديدة وحياك الله."
)

type Config struct {
	MaxToolRounds  int           `envconfig:"MAX_TOOL_ROUNDS" split_words:"true" default:"8"`
	RetryAttempts  int           `envconfig:"RETRY_ATTEMPTS" split_words:"true" default:"3"`
	RetryBaseDelay time.Duration `envconfig:"RETRY_BASE_DELAY" split_words:"true" default:"500ms"`
	IdleTimeout    time.Duration `envconfig:"IDLE_TIMEOUT" split_words:"true" default:"10m"`

	Ceilings convo.Ceilings
}

type Orchestrator struct {
	store    statex.Store
	gateway  *toolx.Gateway
	models   map[contractx.Stage]contractx.Inference
	prompts  promptx.PromptSet
	events   contractx.EventSink
	archive  *archivex.Archive
	notifier contractx.OrderNotifier

	cfg Config
	now func() time.Time
}

func New(
	store statex.Store,
	gateway *toolx.Gateway,
	models map[contractx.Stage]contractx.Inference,
	prompts promptx.PromptSet,
	events contractx.EventSink,
	cfg Config,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if gateway == nil {
		return nil, errors.New("tool gateway is required")
	}
	if len(models) == 0 {
		return nil, errors.New("at least one inference model is required")
	}
	if events == nil {
		events = noopSink{}
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = 8
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 500 * time.Millisecond
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 10 * time.Minute
	}
	return &Orchestrator{
		store:   store,
		gateway: gateway,
		models:  models,
		prompts: prompts,
		events:  events,
		cfg:     cfg,
		now:     time.Now,
	}, nil
}

// WithArchive attaches the confirmed-order archive. Optional.
func (o *Orchestrator) WithArchive(a *archivex.Archive) *Orchestrator {
	o.archive = a
	return o
}

// WithNotifier attaches the kitchen notifier. Optional.
func (o *Orchestrator) WithNotifier(n contractx.OrderNotifier) *Orchestrator {
	o.notifier = n
	return o
}

// HandleMessage resolves one inbound message for a session. Turns for the
// same session id are serialized; concurrent callers block at Acquire.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID, text string) (contractx.TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return contractx.TurnResult{}, fmt.Errorf("%w: message text is empty", contractx.ErrValidation)
	}

	release := o.store.Acquire(sessionID)
	defer release()

	now := o.now()
	s, err := o.store.Get(ctx, sessionID)
	switch {
	case errors.Is(err, statex.ErrStateNotFound):
		s = statex.New(sessionID, now)
		s.SessionID = sessionID
		if err := o.store.Create(ctx, s); err != nil {
			return contractx.TurnResult{}, err
		}
	case err != nil:
		return contractx.TurnResult{}, err
	}

	if s.Closed() {
		return contractx.TurnResult{Reply: ClosedReply, Stage: contractx.StageClosed}, nil
	}

	for _, c := range convo.DetectConstraints(text) {
		s.AddConstraint(c)
	}

	prevStage := s.Stage
	stage := router.Route(s)
	if stage == contractx.StageClosed {
		return contractx.TurnResult{Reply: ClosedReply, Stage: contractx.StageClosed}, nil
	}
	if stage != prevStage {
		o.transition(s, prevStage, stage, text)
	}

	reply, err := o.runStage(ctx, s, stage, text)
	if err != nil {
		if errors.Is(err, contractx.ErrInferenceUnavailable) {
			return contractx.TurnResult{Reply: ApologyReply, Stage: stage}, nil
		}
		return contractx.TurnResult{}, err
	}

	// Tool calls may have changed the fields routing depends on.
	nextStage := router.Route(s)
	moved := nextStage != stage
	if moved && nextStage != contractx.StageClosed {
		o.transition(s, stage, nextStage, text)
	} else if !moved {
		s.AppendTurn("user", text)
		s.AppendTurn("assistant", reply)
	}

	if s.Status == statex.StatusCompleted {
		o.finalize(ctx, s)
	}

	s.Touch(o.now())
	if err := o.store.Save(ctx, s); err != nil {
		return contractx.TurnResult{}, err
	}

	return contractx.TurnResult{Reply: reply, Stage: nextStage, StageMoved: moved}, nil
}

// transition switches the active stage: event, handoff context, and a clean
// buffer for the incoming stage.
func (o *Orchestrator) transition(s *statex.Session, from, to contractx.Stage, lastUserText string) {
	s.Stage = to
	s.Handoff = &statex.Handoff{
		Directive:    convo.Directive(to, s),
		LastUserText: lastUserText,
	}
	if to == contractx.StageOrdering {
		// The directive above already carries the pending hints; the
		// buffer is done once ordering owns them.
		s.ConsumePending()
	}
	s.ClearBuffer()
	o.emit(s.SessionID, contractx.EventStageTransition, map[string]any{
		"from": string(from),
		"to":   string(to),
	})
}

func (o *Orchestrator) runStage(ctx context.Context, s *statex.Session, stage contractx.Stage, text string) (string, error) {
	model, ok := o.models[stage]
	if !ok {
		return "", fmt.Errorf("%w: no model for stage=%s", contractx.ErrInferenceUnavailable, stage)
	}
	tools := toolx.BuildForStage(stage)
	instructions := o.instructions(s, stage)

	msgs := o.assemble(s, stage, text)

	for round := 0; round < o.cfg.MaxToolRounds; round++ {
		resp, err := o.completeWithRetry(ctx, model, contractx.InferenceRequest{
			Instructions: instructions,
			Input:        msgs,
			Tools:        tools,
		})
		if err != nil {
			return "", err
		}
		if len(resp.ToolCalls) == 0 {
			return resp.Text, nil
		}

		results := make([]contractx.ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			res, err := o.gateway.Execute(ctx, s, stage, call)
			if errors.Is(err, contractx.ErrSessionClosed) {
				// confirm_order closed the session earlier in this
				// round; remaining calls are void. The loop still runs
				// one more inference pass so the model can word the
				// confirmation; anything after this turn gets the
				// fixed ClosedReply from HandleMessage.
				break
			}
			if err != nil {
				return "", err
			}
			o.emit(s.SessionID, contractx.EventToolCall, map[string]any{
				"tool":  call.Tool,
				"error": res.Error,
			})
			results = append(results, res)
		}

		msgs = append(msgs, schema.AssistantMessage(resp.Text, nil))
		msgs = append(msgs, toolResultsMessage(results))
		msgs = o.budget(s.SessionID, stage, msgs)
	}

	// Tool budget exhausted; one final call without tools forces a reply.
	resp, err := o.completeWithRetry(ctx, model, contractx.InferenceRequest{
		Instructions: instructions,
		Input:        msgs,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// assemble builds the model input: state block (or handoff summary), the
// same-stage buffer, and the current utterance, then enforces the ceiling.
func (o *Orchestrator) assemble(s *statex.Session, stage contractx.Stage, text string) []*schema.Message {
	var msgs []*schema.Message

	if h := s.Handoff; h != nil {
		msgs = append(msgs, schema.UserMessage(convo.HandoffSummary(s, h.Directive, h.LastUserText)))
		s.Handoff = nil
	} else {
		msgs = append(msgs, schema.UserMessage(convo.StateBlock(s)))
		for _, t := range s.Buffer {
			if t.Role == "assistant" {
				msgs = append(msgs, schema.AssistantMessage(t.Text, nil))
			} else {
				msgs = append(msgs, schema.UserMessage(t.Text))
			}
		}
	}
	msgs = append(msgs, schema.UserMessage(text))

	return o.budget(s.SessionID, stage, msgs)
}

// budget enforces the stage ceiling and reports every cut, whether it was
// made on the assembled input or between tool rounds.
func (o *Orchestrator) budget(sessionID string, stage contractx.Stage, msgs []*schema.Message) []*schema.Message {
	budgeted, trunc, truncated := o.cfg.Ceilings.Budget(stage, msgs)
	if truncated {
		o.emit(sessionID, contractx.EventTruncation, map[string]any{
			"stage":            string(stage),
			"tokens_before":    trunc.TokensBefore,
			"tokens_after":     trunc.TokensAfter,
			"dropped_messages": trunc.Dropped,
		})
	}
	return budgeted
}

// instructions echoes session constraints into whatever the stage template
// says; constraints must survive every handoff.
func (o *Orchestrator) instructions(s *statex.Session, stage contractx.Stage) string {
	base := o.prompts.For(stage)
	if len(s.Constraints) == 0 {
		return base
	}
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\n## قيود إلزامية من العميل\n")
	for _, c := range s.Constraints {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteString("\n")
	}
	return b.String()
}

func (o *Orchestrator) completeWithRetry(ctx context.Context, model contractx.Inference, req contractx.InferenceRequest) (contractx.InferenceResponse, error) {
	delay := o.cfg.RetryBaseDelay
	var lastErr error
	for attempt := 0; attempt < o.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return contractx.InferenceResponse{}, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		resp, err := model.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return contractx.InferenceResponse{}, fmt.Errorf("%w: %v", contractx.ErrInferenceUnavailable, lastErr)
}

// finalize archives and announces a completed order, then emits the closing
// event. Archive and notifier failures are logged via events, never surfaced
// to the customer.
func (o *Orchestrator) finalize(ctx context.Context, s *statex.Session) {
	now := o.now()
	if err := o.archive.Store(ctx, s, now); err != nil {
		o.emit(s.SessionID, contractx.EventToolCall, map[string]any{
			"tool":  "archive",
			"error": err.Error(),
		})
	}
	if o.notifier != nil {
		subtotal := s.Ledger.Subtotal()
		fee := 0.0
		if s.Mode == contractx.ModeDelivery {
			fee = s.DeliveryFee
		}
		payload := map[string]any{
			"order_id": s.OrderID,
			"customer": s.CustomerName,
			"phone":    s.Phone,
			"mode":     string(s.Mode),
			"address":  s.FullAddress(),
			"total":    subtotal + fee,
		}
		if err := o.notifier.NotifyConfirmed(ctx, s.OrderID, payload); err != nil {
			o.emit(s.SessionID, contractx.EventToolCall, map[string]any{
				"tool":  "notify",
				"error": err.Error(),
			})
		}
	}
	o.emit(s.SessionID, contractx.EventSessionClosed, map[string]any{
		"reason":   "order_confirmed",
		"order_id": s.OrderID,
	})
}

// SweepExpired evicts idle sessions once. Run it on a ticker.
func (o *Orchestrator) SweepExpired(ctx context.Context) (int, error) {
	n, err := o.store.EvictExpired(ctx, o.cfg.IdleTimeout, o.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		o.emit("", contractx.EventSessionClosed, map[string]any{
			"reason":  "idle_timeout",
			"evicted": n,
		})
	}
	return n, nil
}

func (o *Orchestrator) emit(sessionID string, t contractx.EventType, payload map[string]any) {
	o.events.Emit(contractx.Event{
		Timestamp: o.now().UTC(),
		SessionID: sessionID,
		Type:      t,
		Payload:   payload,
	})
}

func toolResultsMessage(results []contractx.ToolResult) *schema.Message {
	raw, err := json.Marshal(results)
	if err != nil {
		raw = []byte(`[]`)
	}
	return schema.UserMessage("نتائج الأدوات:\n" + string(raw))
}
