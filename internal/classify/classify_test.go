package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/hazyhaar/scamtrap/internal/intel"
	"github.com/hazyhaar/scamtrap/internal/llm"
	"github.com/hazyhaar/scamtrap/internal/patterns"
)

func scammer(text string) intel.Message {
	return intel.Message{Sender: intel.SenderScammer, Text: text}
}

func TestHeuristicEmptyText(t *testing.T) {
	res := Heuristic(scammer("   "), nil)
	if res.IsScam || res.Confidence != 0 || len(res.Tactics) != 0 {
		t.Fatalf("empty text should score zero, got %+v", res)
	}
}

func TestHeuristicIgnoresUserTurns(t *testing.T) {
	res := Heuristic(intel.Message{Sender: intel.SenderUser, Text: "verify my bank account now"}, nil)
	if res.IsScam || res.Confidence != 0 {
		t.Fatalf("user turns must not be classified, got %+v", res)
	}
}

func TestHeuristicScamMessage(t *testing.T) {
	res := Heuristic(scammer("Your bank account will be blocked today. Verify immediately."), nil)
	if !res.IsScam {
		t.Fatalf("expected scam verdict, got %+v", res)
	}
	if res.Confidence <= 0.5 || res.Confidence >= 1.0 {
		t.Fatalf("confidence %f outside (0.5, 1.0)", res.Confidence)
	}
	if !contains(res.Tactics, patterns.TacticUrgency) || !contains(res.Tactics, patterns.TacticAuthority) {
		t.Fatalf("expected urgency and authority tactics, got %v", res.Tactics)
	}
}

func TestHeuristicHighSeverityOverride(t *testing.T) {
	// One payment request inside otherwise bland text: the aggregate score
	// stays modest but the verdict must still be scam.
	res := Heuristic(scammer("Nice talking to you yesterday. Do you use UPI?"), nil)
	if !contains(res.Tactics, patterns.TacticPayment) {
		t.Fatalf("expected payment tactic, got %v", res.Tactics)
	}
	if !res.IsScam {
		t.Fatal("high-severity tactic must force a scam verdict")
	}
}

func TestHeuristicBenignMessage(t *testing.T) {
	res := Heuristic(scammer("Hey, are we still meeting for lunch tomorrow?"), nil)
	if res.IsScam {
		t.Fatalf("benign message classified as scam: %+v", res)
	}
}

func TestHeuristicSaturation(t *testing.T) {
	long := ""
	for i := 0; i < 20; i++ {
		long += "urgent verify immediately bank blocked otp pin transfer upi "
	}
	res := Heuristic(scammer(long), nil)
	if res.Confidence >= 1.0 {
		t.Fatalf("confidence must never saturate to 1.0, got %f", res.Confidence)
	}
}

func TestHeuristicUsesHistory(t *testing.T) {
	history := []intel.Message{
		scammer("This is the bank fraud department."),
		{Sender: intel.SenderUser, Text: "Oh no, what happened?"},
	}
	with := Heuristic(scammer("Act now or your account will be suspended."), history)
	without := Heuristic(scammer("Act now or your account will be suspended."), nil)
	if with.Confidence <= without.Confidence {
		t.Fatalf("history should add signal: with=%f without=%f", with.Confidence, without.Confidence)
	}
}

func TestHeuristicDeterministic(t *testing.T) {
	msg := scammer("Pay the processing fee today to claim your prize")
	a := Heuristic(msg, nil)
	b := Heuristic(msg, nil)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("heuristic not deterministic: %+v vs %+v", a, b)
	}
}

func TestClassifierWithoutBackend(t *testing.T) {
	// No providers configured: Classify must return the heuristic result
	// promptly and never error.
	c := New(nil, 50*time.Millisecond, nil)
	res := c.Classify(context.Background(), scammer("Verify your bank account immediately or it will be blocked"), nil)
	if !res.IsScam {
		t.Fatalf("expected heuristic scam verdict, got %+v", res)
	}
}

// modelBackend serves an OpenAI-compatible chat completion whose content
// is the given string, and wraps it in a one-provider client.
func modelBackend(t *testing.T, handler http.HandlerFunc) *llm.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p := llm.NewOpenAIProvider(llm.OpenAIConfig{Name: "test", BaseURL: srv.URL, Model: "test-model"})
	return llm.New([]llm.Provider{p})
}

func completionWith(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "test-model",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}
}

func TestClassifierBlendsModelVerdict(t *testing.T) {
	// Heuristic alone lands exactly at the threshold (not scam); the model
	// verdict must both lift the confidence and flip the verdict.
	msg := scammer("Please confirm your details today")
	heuristic := Heuristic(msg, nil)
	if heuristic.IsScam {
		t.Fatalf("fixture must not be scam heuristically: %+v", heuristic)
	}

	client := modelBackend(t, completionWith(
		"```json\n{\"scam\": true, \"confidence\": 0.9, \"reason\": \"credential phishing lure\"}\n```"))
	c := New(client, 2*time.Second, nil)

	res := c.Classify(context.Background(), msg, nil)
	if !res.IsScam {
		t.Fatalf("model verdict must flip the blend to scam: %+v", res)
	}
	want := (heuristic.Confidence + 0.9) / 2
	if res.Confidence != want {
		t.Errorf("blended confidence = %f, want %f", res.Confidence, want)
	}
	if !reflect.DeepEqual(res.Tactics, heuristic.Tactics) {
		t.Errorf("blend must keep heuristic tactics: %v vs %v", res.Tactics, heuristic.Tactics)
	}
}

func TestClassifierFallsOpenOnProviderError(t *testing.T) {
	client := modelBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusInternalServerError)
	})
	c := New(client, 2*time.Second, nil)

	msg := scammer("Verify your bank account immediately or it will be blocked")
	res := c.Classify(context.Background(), msg, nil)
	if !reflect.DeepEqual(res, Heuristic(msg, nil)) {
		t.Fatalf("provider failure must fall open to the heuristic, got %+v", res)
	}
}

func TestClassifierFallsOpenOnUnparseableVerdict(t *testing.T) {
	client := modelBackend(t, completionWith("I believe this is probably a scam."))
	c := New(client, 2*time.Second, nil)

	msg := scammer("Verify your bank account immediately or it will be blocked")
	res := c.Classify(context.Background(), msg, nil)
	if !reflect.DeepEqual(res, Heuristic(msg, nil)) {
		t.Fatalf("unparseable verdict must fall open to the heuristic, got %+v", res)
	}
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
