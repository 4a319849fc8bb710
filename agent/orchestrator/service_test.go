package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/albayt/ordering-agent/agent/catalog"
	contractx "github.com/albayt/ordering-agent/agent/contract"
	"github.com/albayt/ordering-agent/agent/convo"
	promptx "github.com/albayt/ordering-agent/agent/prompt"
	statex "github.com/albayt/ordering-agent/agent/state"
	toolx "github.com/albayt/ordering-agent/agent/tool"
)

type fakeInference struct {
	mu    sync.Mutex
	queue []contractx.InferenceResponse
	err   error
	calls int
	seen  []contractx.InferenceRequest
}

func (f *fakeInference) Complete(_ context.Context, req contractx.InferenceRequest) (contractx.InferenceResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.seen = append(f.seen, req)
	if f.err != nil {
		return contractx.InferenceResponse{}, f.err
	}
	if len(f.queue) == 0 {
		return contractx.InferenceResponse{Text: "تمام"}, nil
	}
	resp := f.queue[0]
	f.queue = f.queue[1:]
	return resp, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []contractx.Event
}

func (r *recordingSink) Emit(e contractx.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) byType(t contractx.EventType) []contractx.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []contractx.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func testFixture(t *testing.T, inf *fakeInference) (*Orchestrator, *statex.MemoryStore, *recordingSink) {
	t.Helper()
	return testFixtureCfg(t, inf, Config{
		RetryAttempts:  2,
		RetryBaseDelay: time.Millisecond,
	})
}

func testFixtureCfg(t *testing.T, inf *fakeInference, cfg Config) (*Orchestrator, *statex.MemoryStore, *recordingSink) {
	t.Helper()
	idx, err := catalog.NewIndex([]catalog.Item{
		{ID: "main-001", Name: "برجر لحم", Price: 28, Category: "الأطباق الرئيسية", Available: true},
		{ID: "drink-001", Name: "بيبسي", Price: 5, Category: "المشروبات", Available: true},
	})
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	resolver, err := catalog.NewResolver(context.Background(), idx, nil)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	coverage, err := catalog.NewCoverage([]catalog.Zone{
		{District: "العليا", Fee: 10, ETA: "30-40 دقيقة"},
	})
	if err != nil {
		t.Fatalf("coverage: %v", err)
	}

	store := statex.NewMemoryStore()
	sink := &recordingSink{}
	models := map[contractx.Stage]contractx.Inference{
		contractx.StageGreeting: inf,
		contractx.StageLocation: inf,
		contractx.StageOrdering: inf,
		contractx.StageCheckout: inf,
	}
	orch, err := New(store, toolx.New(idx, resolver, coverage), models, promptx.LoadPromptSet(), sink, cfg)
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	return orch, store, sink
}

func TestFirstMessageCreatesSessionAndGreets(t *testing.T) {
	t.Parallel()

	inf := &fakeInference{queue: []contractx.InferenceResponse{{Text: "أهلاً وسهلاً"}}}
	orch, store, sink := testFixture(t, inf)

	// Delivery is the default, so a cold start routes to location.
	result, err := orch.HandleMessage(context.Background(), "sess-1", "السلام عليكم")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result.Reply != "أهلاً وسهلاً" {
		t.Fatalf("reply=%q", result.Reply)
	}
	if result.Stage != contractx.StageLocation {
		t.Fatalf("stage=%s want location", result.Stage)
	}
	if _, err := store.Get(context.Background(), "sess-1"); err != nil {
		t.Fatalf("session should be persisted: %v", err)
	}
	if len(sink.byType(contractx.EventStageTransition)) == 0 {
		t.Fatal("cold start should emit a stage transition")
	}
}

func TestToolCallsMutateSessionAndMoveStage(t *testing.T) {
	t.Parallel()

	inf := &fakeInference{queue: []contractx.InferenceResponse{
		{ToolCalls: []contractx.ToolRequest{
			{Tool: toolx.ToolSetOrderMode, Args: map[string]any{"mode": "pickup"}},
			{Tool: toolx.ToolSetCustomerName, Args: map[string]any{"name": "محمد"}},
		}},
		{Text: "حياك الله يا محمد"},
	}}
	orch, store, sink := testFixture(t, inf)

	ctx := context.Background()
	s := statex.New("user-1", time.Now())
	s.SessionID = "sess-2"
	s.Stage = contractx.StageGreeting
	s.SetMode(contractx.ModePickup)
	if err := store.Create(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := orch.HandleMessage(ctx, "sess-2", "انا محمد وابغى استلام")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !result.StageMoved || result.Stage != contractx.StageOrdering {
		t.Fatalf("stage=%s moved=%v want ordering move", result.Stage, result.StageMoved)
	}

	got, err := store.Get(ctx, "sess-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CustomerName != "محمد" || got.Mode != contractx.ModePickup {
		t.Fatalf("session=%+v", got)
	}
	if len(sink.byType(contractx.EventToolCall)) != 2 {
		t.Fatal("both tool calls should be logged")
	}
}

func TestConfirmOrderClosesSession(t *testing.T) {
	t.Parallel()

	inf := &fakeInference{queue: []contractx.InferenceResponse{
		{ToolCalls: []contractx.ToolRequest{{Tool: toolx.ToolConfirmOrder}}},
		{Text: "تم تأكيد طلبك"},
	}}
	orch, store, sink := testFixture(t, inf)

	ctx := context.Background()
	s := statex.New("user-1", time.Now())
	s.SessionID = "sess-3"
	s.Stage = contractx.StageCheckout
	s.SetMode(contractx.ModePickup)
	s.CustomerName = "محمد"
	s.Phone = "0551234567"
	s.Ledger.Items = append(s.Ledger.Items, statex.Line{CatalogID: "main-001", Name: "برجر لحم", Quantity: 1, UnitPrice: 28})
	if err := store.Create(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := orch.HandleMessage(ctx, "sess-3", "أكد الطلب")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result.Reply != "تم تأكيد طلبك" {
		t.Fatalf("reply=%q", result.Reply)
	}
	if result.Stage != contractx.StageClosed {
		t.Fatalf("stage=%s want closed", result.Stage)
	}
	if len(sink.byType(contractx.EventSessionClosed)) == 0 {
		t.Fatal("confirmation should emit session_closed")
	}

	// Any further message gets the fixed closing reply.
	again, err := orch.HandleMessage(ctx, "sess-3", "ابغى اضيف بيبسي")
	if err != nil {
		t.Fatalf("handle after close: %v", err)
	}
	if again.Reply != ClosedReply {
		t.Fatalf("reply=%q want closing message", again.Reply)
	}
}

func TestFailedConfirmKeepsSessionActive(t *testing.T) {
	t.Parallel()

	inf := &fakeInference{queue: []contractx.InferenceResponse{
		{ToolCalls: []contractx.ToolRequest{{Tool: toolx.ToolConfirmOrder}}},
		{Text: "أحتاج اسمك أول شي"},
	}}
	orch, store, _ := testFixture(t, inf)

	ctx := context.Background()
	s := statex.New("user-1", time.Now())
	s.SessionID = "sess-4"
	s.Stage = contractx.StageCheckout
	s.SetMode(contractx.ModePickup)
	// No customer name recorded, so the confirm must be refused.
	s.Ledger.Items = append(s.Ledger.Items, statex.Line{CatalogID: "main-001", Name: "برجر لحم", Quantity: 1, UnitPrice: 28})
	if err := store.Create(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := orch.HandleMessage(ctx, "sess-4", "أكد")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	got, err := store.Get(ctx, "sess-4")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Closed() {
		t.Fatal("failed confirm must keep the session active")
	}
	if result.Stage == contractx.StageClosed {
		t.Fatal("stage must not close on a failed confirm")
	}
}

func TestInferenceFailureYieldsApology(t *testing.T) {
	t.Parallel()

	inf := &fakeInference{err: context.DeadlineExceeded}
	orch, _, _ := testFixture(t, inf)

	result, err := orch.HandleMessage(context.Background(), "sess-5", "مرحبا")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result.Reply != ApologyReply {
		t.Fatalf("reply=%q want apology", result.Reply)
	}
	if inf.calls < 2 {
		t.Fatalf("calls=%d, failure should be retried", inf.calls)
	}
}

func TestOversizedHistoryEmitsTruncationEvent(t *testing.T) {
	t.Parallel()

	inf := &fakeInference{queue: []contractx.InferenceResponse{{Text: "تمام"}}}
	orch, store, sink := testFixture(t, inf)

	ctx := context.Background()
	s := statex.New("user-1", time.Now())
	s.SessionID = "sess-6"
	s.Stage = contractx.StageGreeting
	s.SetMode(contractx.ModePickup)
	big := strings.Repeat("كلام طويل جداً عن كل شيء ", 80)
	for i := 0; i < statex.MaxBufferedTurns; i++ {
		s.AppendTurn("user", big)
	}
	if err := store.Create(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := orch.HandleMessage(ctx, "sess-6", "هلا"); err != nil {
		t.Fatalf("handle: %v", err)
	}

	events := sink.byType(contractx.EventTruncation)
	if len(events) == 0 {
		t.Fatal("oversized input should emit a truncation event")
	}
	payload := events[0].Payload
	if payload["tokens_before"].(int) <= payload["tokens_after"].(int) {
		t.Fatalf("payload=%v", payload)
	}
}

func TestToolRoundTruncationEmitsEvent(t *testing.T) {
	t.Parallel()

	readCart := contractx.InferenceResponse{
		ToolCalls: []contractx.ToolRequest{{Tool: toolx.ToolGetCurrentOrder}},
	}
	inf := &fakeInference{queue: []contractx.InferenceResponse{
		readCart, readCart, readCart,
		{Text: "سلتك فاضية"},
	}}
	orch, store, sink := testFixtureCfg(t, inf, Config{
		RetryAttempts:  2,
		RetryBaseDelay: time.Millisecond,
		Ceilings:       convo.Ceilings{Ordering: 1},
	})

	ctx := context.Background()
	s := statex.New("user-1", time.Now())
	s.SessionID = "sess-9"
	s.Stage = contractx.StageOrdering
	s.SetMode(contractx.ModePickup)
	if err := store.Create(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := orch.HandleMessage(ctx, "sess-9", "وش في سلتي؟"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sink.byType(contractx.EventTruncation)) == 0 {
		t.Fatal("a cut between tool rounds should emit a truncation event")
	}
}

func TestPendingItemsConsumedOnOrderingHandoff(t *testing.T) {
	t.Parallel()

	inf := &fakeInference{queue: []contractx.InferenceResponse{{Text: "أضفت لك برجر لحم"}}}
	orch, store, _ := testFixture(t, inf)

	ctx := context.Background()
	s := statex.New("user-1", time.Now())
	s.SessionID = "sess-8"
	s.Stage = contractx.StageGreeting
	s.SetMode(contractx.ModePickup)
	s.CustomerName = "سارة"
	s.AddPending("برجر لحم", 2)
	if err := store.Create(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := orch.HandleMessage(ctx, "sess-8", "تمام")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result.Stage != contractx.StageOrdering {
		t.Fatalf("stage=%s want ordering", result.Stage)
	}

	// The handoff hands the hint to the ordering stage once.
	if len(inf.seen) == 0 || !strings.Contains(inf.seen[0].Input[0].Content, "برجر لحم") {
		t.Fatal("handoff input should carry the pending order hint")
	}

	got, err := store.Get(ctx, "sess-8")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Pending) != 0 {
		t.Fatalf("pending=%v, buffer must be cleared once ordering starts", got.Pending)
	}
}

func TestConstraintsSurviveAndReachInstructions(t *testing.T) {
	t.Parallel()

	inf := &fakeInference{queue: []contractx.InferenceResponse{{Text: "تمام"}, {Text: "تمام"}}}
	orch, store, _ := testFixture(t, inf)

	ctx := context.Background()
	s := statex.New("user-1", time.Now())
	s.SessionID = "sess-7"
	s.Stage = contractx.StageOrdering
	s.SetMode(contractx.ModePickup)
	if err := store.Create(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := orch.HandleMessage(ctx, "sess-7", "عندي حساسية من المكسرات"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	got, err := store.Get(ctx, "sess-7")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Constraints) != 1 {
		t.Fatalf("constraints=%v", got.Constraints)
	}

	// A second turn in another stage still carries the constraint.
	if _, err := orch.HandleMessage(ctx, "sess-7", "خلاص كذا"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	got, _ = store.Get(ctx, "sess-7")
	if len(got.Constraints) != 1 {
		t.Fatal("constraints must never be dropped")
	}
}
