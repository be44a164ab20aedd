package callback

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/scamtrap/internal/config"
	"github.com/hazyhaar/scamtrap/internal/intel"
)

func TestBuildForcesEmptySets(t *testing.T) {
	rec := intel.Record{
		SessionID:     "s-1",
		ScamDetected:  true,
		TotalMessages: 3,
		Tactics:       []string{"urgency"},
	}
	body, err := json.Marshal(Build(rec, ""))
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"bankAccounts", "upiIds", "phishingLinks", "phoneNumbers", "suspiciousKeywords"} {
		if !strings.Contains(string(body), `"`+key+`":[]`) {
			t.Errorf("key %s did not serialize as []: %s", key, body)
		}
	}
}

func TestBuildPayloadShape(t *testing.T) {
	rec := intel.Record{
		SessionID:     "wa-44",
		ScamDetected:  true,
		TotalMessages: 2,
		Intelligence: intel.Intelligence{
			UPIIds: []string{"scammer@upi"},
		},
		Tactics: []string{"urgency", "payment_redirection"},
	}
	body, err := json.Marshal(Build(rec, "bank"))
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if got["sessionId"] != "wa-44" {
		t.Errorf("sessionId = %v", got["sessionId"])
	}
	if got["scamDetected"] != true {
		t.Errorf("scamDetected = %v", got["scamDetected"])
	}
	if got["totalMessagesExchanged"] != float64(2) {
		t.Errorf("totalMessagesExchanged = %v", got["totalMessagesExchanged"])
	}
	notes, _ := got["agentNotes"].(string)
	if !strings.Contains(notes, "Impersonation: bank") || !strings.Contains(notes, "payment_redirection") {
		t.Errorf("agentNotes = %q", notes)
	}
}

func TestNotesDefault(t *testing.T) {
	got := Notes(nil, "")
	if !strings.Contains(got, "Engaged safely") {
		t.Errorf("default notes = %q", got)
	}
}

func TestSendPosts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		var p Payload
		if err := json.Unmarshal(body, &p); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		if p.SessionID != "s-9" {
			t.Errorf("sessionId = %q", p.SessionID)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(config.CallbackConfig{URL: srv.URL}, 2*time.Second, nil)
	err := d.Send(context.Background(), Payload{SessionID: "s-9"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("hits = %d", hits.Load())
	}
}

func TestSendRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	d := NewDispatcher(config.CallbackConfig{URL: srv.URL}, 2*time.Second, nil)
	err := d.Send(context.Background(), Payload{SessionID: "s-9"})
	if err == nil {
		t.Fatal("expected error on HTTP 403")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("error = %v", err)
	}
}

func TestSendDryRunDoesNotTransmit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("dry-run dispatcher transmitted")
	}))
	defer srv.Close()

	d := NewDispatcher(config.CallbackConfig{URL: srv.URL, DryRun: true}, 2*time.Second, nil)
	if err := d.Send(context.Background(), Payload{SessionID: "s-9"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
}
