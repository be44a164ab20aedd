// Package classify scores messages against the pattern library and decides
// whether a conversation turn is a scam attempt.
package classify

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/scamtrap/internal/intel"
	"github.com/hazyhaar/scamtrap/internal/llm"
	"github.com/hazyhaar/scamtrap/internal/patterns"
)

// Result is one turn's classification. Derived fresh each call, never
// persisted on its own.
type Result struct {
	IsScam     bool     `json:"is_scam"`
	Confidence float64  `json:"confidence"`
	Tactics    []string `json:"matched_tactics"`
}

// saturationK calibrates score/(score+k) so a single keyword hit cannot
// push confidence to 1.0. A lone weight-1 phrase lands at 0.33.
const saturationK = 2.0

// scamThreshold is the confidence above which a turn is called a scam.
const scamThreshold = 0.5

// recentWindow bounds how much history feeds the score, so an old signal
// does not dominate a conversation that has moved on.
const recentWindow = 4

// Heuristic is the deterministic classifier: a pure function of the
// message and its history. Only scammer-authored turns contribute; the
// honeypot's own prior replies are ignored.
func Heuristic(msg intel.Message, history []intel.Message) Result {
	if msg.Sender != intel.SenderScammer || strings.TrimSpace(msg.Text) == "" {
		return Result{}
	}

	texts := scammerTexts(history, recentWindow)
	texts = append(texts, msg.Text)
	combined := strings.Join(texts, " ")

	var score float64
	var tactics []string
	lower := strings.ToLower(combined)
	for _, tactic := range patterns.TacticOrder {
		hits := 0
		for _, phrase := range patterns.Lexicon[tactic] {
			if strings.Contains(lower, phrase) {
				hits++
			}
		}
		if hits > 0 {
			tactics = append(tactics, tactic)
			score += patterns.Weights[tactic] * float64(hits)
		}
	}

	confidence := score / (score + saturationK)
	isScam := confidence > scamThreshold
	// A single unambiguous signal must not be diluted by otherwise bland text.
	for _, t := range tactics {
		if patterns.HighSeverity[t] {
			isScam = true
			break
		}
	}
	return Result{IsScam: isScam, Confidence: confidence, Tactics: tactics}
}

func scammerTexts(history []intel.Message, window int) []string {
	var texts []string
	for _, m := range history {
		if m.Sender == intel.SenderScammer && m.Text != "" {
			texts = append(texts, m.Text)
		}
	}
	if window > 0 && len(texts) > window {
		texts = texts[len(texts)-window:]
	}
	return texts
}

// Classifier runs the heuristic and, when an external backend is
// configured, blends its verdict in. Provider errors and timeouts fall
// open to the heuristic result and never fail the request.
type Classifier struct {
	client  *llm.Client
	timeout time.Duration
	logger  *slog.Logger
}

func New(client *llm.Client, timeout time.Duration, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{client: client, timeout: timeout, logger: logger}
}

func (c *Classifier) Classify(ctx context.Context, msg intel.Message, history []intel.Message) Result {
	res := Heuristic(msg, history)
	if !c.client.Enabled() || msg.Sender != intel.SenderScammer || strings.TrimSpace(msg.Text) == "" {
		return res
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	verdict, ok := c.askModel(callCtx, msg, history)
	if !ok {
		return res
	}

	blended := res
	blended.Confidence = clamp01((res.Confidence + verdict.Confidence) / 2)
	blended.IsScam = verdict.Scam || res.IsScam || blended.Confidence > scamThreshold
	return blended
}

type modelVerdict struct {
	Scam       bool    `json:"scam"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

func (c *Classifier) askModel(ctx context.Context, msg intel.Message, history []intel.Message) (modelVerdict, bool) {
	transcript := strings.Join(append(scammerTexts(history, recentWindow), msg.Text), "\n")
	resp, err := c.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: classifyPrompt},
			{Role: "user", Content: transcript},
		},
		Temperature: 0.1,
		MaxTokens:   256,
	})
	if err != nil {
		c.logger.Warn("model classification failed, using heuristic", "error", err)
		return modelVerdict{}, false
	}

	raw := llm.ExtractJSONObject(resp.Content)
	if raw == "" {
		c.logger.Warn("model classification returned no JSON", "provider", resp.Provider)
		return modelVerdict{}, false
	}
	var v modelVerdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		c.logger.Warn("model classification JSON invalid", "provider", resp.Provider, "error", err)
		return modelVerdict{}, false
	}
	v.Confidence = clamp01(v.Confidence)
	return v, true
}

const classifyPrompt = `You are a fraud analyst. Assess whether the following ` +
	`message exchange is a scam: any attempt to deceive for financial gain, ` +
	`credential theft, impersonation of authority, or coercion. Analyze intent, ` +
	`not just wording, and be conservative in uncertain cases. Respond strictly ` +
	`as JSON: {"scam": true|false, "confidence": 0.0-1.0, "reason": "one sentence"}`

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
