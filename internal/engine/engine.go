// Package engine orchestrates one conversation event end to end:
// classify the turn, merge extracted evidence into the session record,
// generate the persona reply, and fire the one-time callback when the
// completion criteria are newly satisfied.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hazyhaar/scamtrap/internal/callback"
	"github.com/hazyhaar/scamtrap/internal/classify"
	"github.com/hazyhaar/scamtrap/internal/extract"
	"github.com/hazyhaar/scamtrap/internal/intel"
	"github.com/hazyhaar/scamtrap/internal/patterns"
	"github.com/hazyhaar/scamtrap/internal/persona"
)

// Metadata is opaque caller context; the engine passes it through
// untouched.
type Metadata struct {
	Channel  string `json:"channel,omitempty"`
	Language string `json:"language,omitempty"`
	Locale   string `json:"locale,omitempty"`
}

// Event is one inbound message event. ConversationHistory holds every
// turn strictly before Message, oldest first, supplied fresh by the
// caller on each request.
type Event struct {
	SessionID           string          `json:"sessionId"`
	Message             intel.Message   `json:"message"`
	ConversationHistory []intel.Message `json:"conversationHistory"`
	Metadata            *Metadata       `json:"metadata,omitempty"`
}

var (
	ErrMissingSession = errors.New("sessionId is required")
	ErrInvalidSender  = errors.New("message.sender must be \"scammer\" or \"user\"")
)

// Validate rejects malformed events. A malformed event is a structured
// error, never a non-scam verdict.
func (ev *Event) Validate() error {
	if strings.TrimSpace(ev.SessionID) == "" {
		return ErrMissingSession
	}
	switch ev.Message.Sender {
	case intel.SenderScammer, intel.SenderUser:
	default:
		return ErrInvalidSender
	}
	for _, m := range ev.ConversationHistory {
		if m.Sender != intel.SenderScammer && m.Sender != intel.SenderUser {
			return ErrInvalidSender
		}
	}
	return nil
}

// askForMessage is the reply when the latest turn carries nothing to
// react to (wrong sender or empty text).
const askForMessage = "Could you share the exact message they sent you?"

type Engine struct {
	classifier *classify.Classifier
	generator  *persona.Generator
	store      intel.Store
	dispatcher *callback.Dispatcher
	enabled    bool // callback enabled by configuration
	minTurns   int
	logger     *slog.Logger

	inflight sync.WaitGroup // callback dispatches in progress
}

func New(classifier *classify.Classifier, generator *persona.Generator, store intel.Store,
	dispatcher *callback.Dispatcher, callbackEnabled bool, minTurns int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		classifier: classifier,
		generator:  generator,
		store:      store,
		dispatcher: dispatcher,
		enabled:    callbackEnabled,
		minTurns:   minTurns,
		logger:     logger,
	}
}

// HandleEvent runs the full pipeline for one event and returns the
// persona reply. Only malformed input or a store failure produce an
// error; optional-dependency failures resolve to deterministic fallbacks
// inside their components.
func (e *Engine) HandleEvent(ctx context.Context, ev Event) (string, error) {
	if err := ev.Validate(); err != nil {
		return "", err
	}

	// Turn count derives from history length, not a running counter, so
	// duplicate delivery of an identical event cannot double-count.
	turns := len(ev.ConversationHistory) + 1
	if turns <= 0 {
		return "", fmt.Errorf("invariant violation: non-positive turn count %d", turns)
	}

	// Extraction always runs over the full context, even for non-scammer
	// turns: re-scanning history keeps the delta idempotent and
	// independent of whatever the store already holds.
	delta := extract.Extract(ev.Message, ev.ConversationHistory)

	text := strings.TrimSpace(ev.Message.Text)
	var verdict classify.Result
	if ev.Message.Sender == intel.SenderScammer && text != "" {
		verdict = e.classifier.Classify(ctx, ev.Message, ev.ConversationHistory)
	}

	rec, err := e.store.Merge(ev.SessionID, intel.Delta{
		ScamDetected:  verdict.IsScam,
		TotalMessages: turns,
		Intelligence:  delta,
		Tactics:       verdict.Tactics,
	})
	if err != nil {
		return "", fmt.Errorf("merging evidence for %s: %w", ev.SessionID, err)
	}

	var reply string
	if ev.Message.Sender != intel.SenderScammer || text == "" {
		reply = askForMessage
	} else {
		reply = e.generator.Reply(ctx, verdict, ev.ConversationHistory, rec.Intelligence)
	}

	e.maybeCallback(rec, scammerTranscript(ev))

	return reply, nil
}

// maybeCallback checks the completion criteria against the post-merge
// record and, when newly satisfied, performs the atomic pending→sent
// transition and dispatches outside any lock. A scam detection with no
// evidence at all never justifies a callback.
func (e *Engine) maybeCallback(rec intel.Record, transcript string) {
	if !rec.ScamDetected || rec.TotalMessages < e.minTurns {
		return
	}
	if rec.Intelligence.Empty() && len(rec.Tactics) == 0 {
		return
	}

	if !e.enabled {
		if ok, err := e.store.Suppress(rec.SessionID); err != nil {
			e.logger.Error("suppressing callback", "session", rec.SessionID, "error", err)
		} else if ok {
			e.logger.Info("callback suppressed by configuration", "session", rec.SessionID)
		}
		return
	}

	ok, err := e.store.TrySend(rec.SessionID)
	if err != nil {
		e.logger.Error("callback transition failed", "session", rec.SessionID, "error", err)
		return
	}
	if !ok {
		return
	}

	payload := callback.Build(rec, patterns.Impersonation(transcript))

	// Dispatch off the request path: a slow evaluator must not stall the
	// response, and a failure is attempted-once, logged, never retried.
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		if err := e.dispatcher.Send(context.Background(), payload); err != nil {
			e.logger.Warn("callback dispatch failed", "session", payload.SessionID, "error", err)
		}
	}()
}

// Drain waits for in-flight callback dispatches; used on shutdown and in
// tests.
func (e *Engine) Drain() {
	e.inflight.Wait()
}

func scammerTranscript(ev Event) string {
	var parts []string
	for _, m := range ev.ConversationHistory {
		if m.Sender == intel.SenderScammer {
			parts = append(parts, m.Text)
		}
	}
	if ev.Message.Sender == intel.SenderScammer {
		parts = append(parts, ev.Message.Text)
	}
	return strings.Join(parts, " ")
}
