// Package callback builds and dispatches the one-time final-result report
// to the external evaluation endpoint.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/scamtrap/internal/config"
	"github.com/hazyhaar/scamtrap/internal/intel"
)

// Payload is the wire shape the evaluator expects. Constructed once per
// session, immutable, sent at most once.
type Payload struct {
	SessionID              string             `json:"sessionId"`
	ScamDetected           bool               `json:"scamDetected"`
	TotalMessagesExchanged int                `json:"totalMessagesExchanged"`
	ExtractedIntelligence  intel.Intelligence `json:"extractedIntelligence"`
	AgentNotes             string             `json:"agentNotes"`
}

// Build assembles the payload from a post-merge evidence record. Set
// fields are forced non-nil so they serialize as [] rather than null.
func Build(rec intel.Record, impersonation string) Payload {
	i := rec.Intelligence
	if i.BankAccounts == nil {
		i.BankAccounts = []string{}
	}
	if i.UPIIds == nil {
		i.UPIIds = []string{}
	}
	if i.PhishingLinks == nil {
		i.PhishingLinks = []string{}
	}
	if i.PhoneNumbers == nil {
		i.PhoneNumbers = []string{}
	}
	if i.SuspiciousKeywords == nil {
		i.SuspiciousKeywords = []string{}
	}
	return Payload{
		SessionID:              rec.SessionID,
		ScamDetected:           rec.ScamDetected,
		TotalMessagesExchanged: rec.TotalMessages,
		ExtractedIntelligence:  i,
		AgentNotes:             Notes(rec.Tactics, impersonation),
	}
}

// Notes renders the human-readable summary of tactics and impersonation.
func Notes(tactics []string, impersonation string) string {
	var parts []string
	if impersonation != "" {
		parts = append(parts, "Impersonation: "+impersonation)
	}
	if len(tactics) > 0 {
		parts = append(parts, "Tactics: "+strings.Join(tactics, ", "))
	}
	if len(parts) == 0 {
		return "Engaged safely to extract scam indicators without sharing any sensitive information."
	}
	return strings.Join(parts, "; ")
}

// Dispatcher posts payloads to the configured evaluator. Dispatch is
// attempted once: any failure is logged and never retried, preserving
// at-most-once semantics over an unreliable transport.
type Dispatcher struct {
	url    string
	dryRun bool
	client *http.Client
	logger *slog.Logger
}

func NewDispatcher(cfg config.CallbackConfig, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		url:    cfg.URL,
		dryRun: cfg.DryRun,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Send posts the payload. In dry-run mode the payload is built and logged
// but not transmitted.
func (d *Dispatcher) Send(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding callback payload: %w", err)
	}

	if d.dryRun {
		d.logger.Info("callback dry-run", "session", p.SessionID, "payload", string(body))
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, "POST", d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting callback: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("callback rejected: HTTP %d: %s", resp.StatusCode, string(snippet))
	}
	d.logger.Info("callback sent", "session", p.SessionID, "turns", p.TotalMessagesExchanged)
	return nil
}
