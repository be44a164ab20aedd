package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/scamtrap/internal/callback"
	"github.com/hazyhaar/scamtrap/internal/classify"
	"github.com/hazyhaar/scamtrap/internal/config"
	"github.com/hazyhaar/scamtrap/internal/intel"
	"github.com/hazyhaar/scamtrap/internal/persona"
)

// evalStub records every callback payload it receives.
type evalStub struct {
	srv      *httptest.Server
	hits     atomic.Int32
	mu       sync.Mutex
	payloads []callback.Payload
}

func newEvalStub(t *testing.T) *evalStub {
	t.Helper()
	s := &evalStub{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		body, _ := io.ReadAll(r.Body)
		var p callback.Payload
		if err := json.Unmarshal(body, &p); err != nil {
			t.Errorf("malformed callback payload: %v", err)
		}
		s.mu.Lock()
		s.payloads = append(s.payloads, p)
		s.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *evalStub) last(t *testing.T) callback.Payload {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.payloads) == 0 {
		t.Fatal("no callback received")
	}
	return s.payloads[len(s.payloads)-1]
}

func newTestEngine(store intel.Store, url string, enabled bool, minTurns int) *Engine {
	timeout := 100 * time.Millisecond
	classifier := classify.New(nil, timeout, nil)
	generator := persona.New(nil, timeout, nil)
	dispatcher := callback.NewDispatcher(config.CallbackConfig{URL: url}, 2*time.Second, nil)
	return New(classifier, generator, store, dispatcher, enabled, minTurns, nil)
}

func scammerMsg(text string) intel.Message {
	return intel.Message{Sender: intel.SenderScammer, Text: text, Timestamp: 1767952800000}
}

func TestHandleEventValidation(t *testing.T) {
	eng := newTestEngine(intel.NewMemoryStore(), "http://unused.invalid", false, 2)

	_, err := eng.HandleEvent(context.Background(), Event{
		SessionID: "  ",
		Message:   scammerMsg("hi"),
	})
	if !errors.Is(err, ErrMissingSession) {
		t.Errorf("blank session: got %v", err)
	}

	_, err = eng.HandleEvent(context.Background(), Event{
		SessionID: "s1",
		Message:   intel.Message{Sender: "operator", Text: "hi"},
	})
	if !errors.Is(err, ErrInvalidSender) {
		t.Errorf("bad sender: got %v", err)
	}

	_, err = eng.HandleEvent(context.Background(), Event{
		SessionID:           "s1",
		Message:             scammerMsg("hi"),
		ConversationHistory: []intel.Message{{Sender: "bot", Text: "x"}},
	})
	if !errors.Is(err, ErrInvalidSender) {
		t.Errorf("bad history sender: got %v", err)
	}
}

func TestHandleEventEmptyMessageAsks(t *testing.T) {
	eng := newTestEngine(intel.NewMemoryStore(), "http://unused.invalid", false, 2)
	reply, err := eng.HandleEvent(context.Background(), Event{
		SessionID: "s1",
		Message:   intel.Message{Sender: intel.SenderUser, Text: "someone keeps texting me"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if reply != askForMessage {
		t.Errorf("reply = %q", reply)
	}
}

// Two-turn flow: a scam opener followed by a payment ask with a UPI
// handle must fire exactly one callback carrying the merged evidence.
func TestTwoTurnScamFlow(t *testing.T) {
	eval := newEvalStub(t)
	store := intel.NewMemoryStore()
	eng := newTestEngine(store, eval.srv.URL, true, 2)
	ctx := context.Background()

	turn1 := Event{
		SessionID: "wa-7",
		Message:   scammerMsg("Your bank account will be blocked today. Verify immediately."),
	}
	reply, err := eng.HandleEvent(ctx, turn1)
	if err != nil {
		t.Fatal(err)
	}
	if reply == "" {
		t.Fatal("empty reply on turn 1")
	}
	eng.Drain()
	if eval.hits.Load() != 0 {
		t.Fatalf("callback fired at turn 1, below the minimum")
	}

	turn2 := Event{
		SessionID: "wa-7",
		Message:   scammerMsg("Pay the reactivation fee to scammer@upi or call 9876543210 now."),
		ConversationHistory: []intel.Message{
			turn1.Message,
			{Sender: intel.SenderUser, Text: reply},
		},
	}
	if _, err := eng.HandleEvent(ctx, turn2); err != nil {
		t.Fatal(err)
	}
	eng.Drain()

	if got := eval.hits.Load(); got != 1 {
		t.Fatalf("callback count = %d, want 1", got)
	}
	p := eval.last(t)
	if p.SessionID != "wa-7" || !p.ScamDetected {
		t.Errorf("payload header: %+v", p)
	}
	if p.TotalMessagesExchanged != 3 {
		t.Errorf("totalMessagesExchanged = %d, want 3", p.TotalMessagesExchanged)
	}
	if len(p.ExtractedIntelligence.UPIIds) != 1 || p.ExtractedIntelligence.UPIIds[0] != "scammer@upi" {
		t.Errorf("upiIds = %v", p.ExtractedIntelligence.UPIIds)
	}
	if len(p.ExtractedIntelligence.PhoneNumbers) != 1 || p.ExtractedIntelligence.PhoneNumbers[0] != "+919876543210" {
		t.Errorf("phoneNumbers = %v", p.ExtractedIntelligence.PhoneNumbers)
	}

	rec, ok, err := store.Get("wa-7")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if rec.Callback != intel.CallbackSent {
		t.Errorf("callback state = %s", rec.Callback)
	}
}

// Duplicate delivery of the same event must not double-count turns or
// fire a second callback.
func TestDuplicateDeliveryIdempotent(t *testing.T) {
	eval := newEvalStub(t)
	store := intel.NewMemoryStore()
	eng := newTestEngine(store, eval.srv.URL, true, 2)
	ctx := context.Background()

	ev := Event{
		SessionID: "dup-1",
		Message:   scammerMsg("Pay urgently to scammer@upi or your account is blocked."),
		ConversationHistory: []intel.Message{
			scammerMsg("Hello, this is your bank."),
		},
	}
	for i := 0; i < 3; i++ {
		if _, err := eng.HandleEvent(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}
	eng.Drain()

	if got := eval.hits.Load(); got != 1 {
		t.Fatalf("callback count = %d, want 1", got)
	}
	rec, ok, err := store.Get("dup-1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if rec.TotalMessages != 2 {
		t.Errorf("total messages = %d, want 2", rec.TotalMessages)
	}
}

// Concurrent duplicate events race for the pending record; exactly one
// dispatch may win.
func TestConcurrentDuplicatesFireOnce(t *testing.T) {
	eval := newEvalStub(t)
	eng := newTestEngine(intel.NewMemoryStore(), eval.srv.URL, true, 2)

	ev := Event{
		SessionID: "race-1",
		Message:   scammerMsg("Last warning, pay the penalty to scammer@upi immediately."),
		ConversationHistory: []intel.Message{
			scammerMsg("Your account is blocked."),
		},
	}

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := eng.HandleEvent(context.Background(), ev); err != nil {
				t.Errorf("HandleEvent: %v", err)
			}
		}()
	}
	wg.Wait()
	eng.Drain()

	if got := eval.hits.Load(); got != 1 {
		t.Fatalf("callback count = %d, want 1", got)
	}
}

func TestCallbackDisabledSuppresses(t *testing.T) {
	eval := newEvalStub(t)
	store := intel.NewMemoryStore()
	eng := newTestEngine(store, eval.srv.URL, false, 2)

	ev := Event{
		SessionID: "off-1",
		Message:   scammerMsg("Pay urgently to scammer@upi now."),
		ConversationHistory: []intel.Message{
			scammerMsg("Your account is blocked."),
		},
	}
	if _, err := eng.HandleEvent(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	eng.Drain()

	if eval.hits.Load() != 0 {
		t.Fatal("disabled engine dispatched a callback")
	}
	rec, ok, err := store.Get("off-1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if rec.Callback != intel.CallbackSuppressed {
		t.Errorf("callback state = %s, want suppressed", rec.Callback)
	}
}

// A scam verdict with no evidence and no tactics never justifies a
// callback, whatever the turn count.
func TestNoEvidenceNoCallback(t *testing.T) {
	eval := newEvalStub(t)
	eng := newTestEngine(intel.NewMemoryStore(), eval.srv.URL, true, 1)

	ev := Event{
		SessionID: "benign-1",
		Message:   scammerMsg("Good morning, how are you?"),
	}
	if _, err := eng.HandleEvent(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	eng.Drain()
	if eval.hits.Load() != 0 {
		t.Fatal("callback fired without evidence")
	}
}

func TestBenignUserTurnStillTracked(t *testing.T) {
	store := intel.NewMemoryStore()
	eng := newTestEngine(store, "http://unused.invalid", false, 2)

	ev := Event{
		SessionID: "u-1",
		Message:   intel.Message{Sender: intel.SenderUser, Text: "I got a strange call today"},
		ConversationHistory: []intel.Message{
			scammerMsg("Your electricity bill is overdue, pay at http://fake-billing.example/pay"),
		},
	}
	if _, err := eng.HandleEvent(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	rec, ok, err := store.Get("u-1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	// Evidence from the scammer turn in history is still captured.
	if len(rec.Intelligence.PhishingLinks) != 1 {
		t.Errorf("phishingLinks = %v", rec.Intelligence.PhishingLinks)
	}
	if rec.TotalMessages != 2 {
		t.Errorf("total messages = %d, want 2", rec.TotalMessages)
	}
}
