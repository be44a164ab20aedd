// Package persona generates the honeypot's victim replies. The persona is
// a cautious, slightly confused person who never shares real data and
// never reveals that the respondent is automated. An external model may
// phrase the reply; templates cover every other case, so reply generation
// always succeeds.
package persona

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/scamtrap/internal/classify"
	"github.com/hazyhaar/scamtrap/internal/intel"
	"github.com/hazyhaar/scamtrap/internal/llm"
	"github.com/hazyhaar/scamtrap/internal/patterns"
)

// Behavior modes for the victim agent, picked from risk and depth.
const (
	ModeConfused = "confused"
	ModeStall    = "stall"
	ModeEscalate = "escalate"
)

// Mode decides how the persona behaves this turn: play confused while
// risk is low, stall once the conversation has depth, lean in when the
// scam is unambiguous and there is intelligence left to collect.
func Mode(confidence float64, turns int) string {
	switch {
	case confidence > 0.7:
		return ModeEscalate
	case confidence > 0.4:
		if turns < 2 {
			return ModeConfused
		}
		return ModeStall
	default:
		return ModeConfused
	}
}

type Generator struct {
	client  *llm.Client
	timeout time.Duration
	logger  *slog.Logger
}

func New(client *llm.Client, timeout time.Duration, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{client: client, timeout: timeout, logger: logger}
}

// Reply produces the next victim utterance. It never fails: model errors,
// timeouts, and unsafe outputs all fall back to the templated reply.
func (g *Generator) Reply(ctx context.Context, verdict classify.Result, history []intel.Message, evidence intel.Intelligence) string {
	turns := len(history) + 1
	mode := Mode(verdict.Confidence, turns)
	fallback := Template(verdict, turns, evidence)

	if !g.client.Enabled() {
		return fallback
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	reply, err := g.askModel(callCtx, mode, history, evidence)
	if err != nil {
		g.logger.Warn("model reply failed, using template", "error", err)
		return fallback
	}
	reply = strings.TrimSpace(reply)
	if reply == "" || !Safe(reply) {
		g.logger.Warn("model reply rejected by safety filter")
		return fallback
	}
	return reply
}

func (g *Generator) askModel(ctx context.Context, mode string, history []intel.Message, evidence intel.Intelligence) (string, error) {
	var b strings.Builder
	for _, m := range lastN(history, 6) {
		if m.Sender == intel.SenderScammer {
			b.WriteString("Them: ")
		} else {
			b.WriteString("You: ")
		}
		b.WriteString(m.Text)
		b.WriteString("\n")
	}

	prompt := fmt.Sprintf(personaPrompt, mode, gapHint(evidence))
	resp, err := g.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: prompt},
			{Role: "user", Content: "Conversation so far:\n" + b.String() + "\nWrite your next reply."},
		},
		Temperature: 0.7,
		MaxTokens:   128,
	})
	if err != nil {
		return "", err
	}
	return llm.StripFences(resp.Content), nil
}

const personaPrompt = `You are roleplaying a cautious, slightly confused person ` +
	`replying to someone who may be a fraudster. Stay fully in character: sound ` +
	`natural and human, ask for clarification when unsure, do not accuse, do not ` +
	`warn, and never provide personal, banking, or verification details. Never ` +
	`mention being an assistant, a bot, or an AI. Current behavior mode: %s. %s ` +
	`Reply with one or two short sentences only.`

// gapHint steers the model toward the biggest remaining intelligence gap.
func gapHint(evidence intel.Intelligence) string {
	switch {
	case len(evidence.UPIIds) == 0 && len(evidence.BankAccounts) == 0:
		return "If they want a payment, ask exactly where the money should go."
	case len(evidence.PhoneNumbers) == 0:
		return "If it fits naturally, ask for a number you could call back."
	case len(evidence.PhishingLinks) == 0:
		return "If they mention a website or form, ask them to send the link again."
	}
	return "Keep them talking with a small clarifying question."
}

// Template is the deterministic reply path: persona-consistent phrasings
// keyed by matched tactic and turn count, so replies vary across a
// conversation instead of repeating.
func Template(verdict classify.Result, turns int, evidence intel.Intelligence) string {
	if turns < 1 {
		turns = 1
	}

	// High confidence with an open intelligence gap: feign partial
	// compliance and ask for the missing artifact.
	if verdict.Confidence > scamEngageFloor {
		if has(verdict.Tactics, patterns.TacticPayment) && len(evidence.UPIIds) == 0 && len(evidence.BankAccounts) == 0 {
			return pick(paymentProbes, turns)
		}
		if len(evidence.PhoneNumbers) == 0 && (has(verdict.Tactics, patterns.TacticAuthority) || has(verdict.Tactics, patterns.TacticThreat)) {
			return pick(phoneProbes, turns)
		}
		if len(evidence.PhishingLinks) == 0 && has(verdict.Tactics, patterns.TacticVerification) {
			return pick(linkProbes, turns)
		}
		return pick(stallers, turns)
	}

	// Low confidence: clarify or stall to elicit more signal.
	return pick(clarifiers, turns)
}

const scamEngageFloor = 0.5

var paymentProbes = []string{
	"Okay, I can try. Which UPI ID should I send it to exactly?",
	"I'm not good with these apps. Can you spell out the ID or account I should use?",
	"My son usually helps me pay. What name and ID will show up when I send it?",
}

var phoneProbes = []string{
	"This is worrying. Is there a number I can call you back on to sort this out?",
	"My network keeps dropping. Can you give me a direct number in case we get cut off?",
}

var linkProbes = []string{
	"The page didn't open on my phone. Could you send me the exact link again?",
	"I clicked but nothing happened. Can you type the website address out for me?",
}

var stallers = []string{
	"Sorry, I was away from my phone. What do you need me to do first?",
	"I want to fix this but I'm confused. Can you walk me through it step by step?",
	"Let me get my glasses. Can you repeat the important part?",
}

var clarifiers = []string{
	"Sorry, who is this again? I don't think I have this number saved.",
	"I'm not sure I understand. Could you explain what this is about?",
	"Which account are you talking about? I have a couple.",
	"Can you explain that again? I got a bit lost.",
}

func pick(options []string, turns int) string {
	return options[(turns-1)%len(options)]
}

func has(tactics []string, want string) bool {
	for _, t := range tactics {
		if t == want {
			return true
		}
	}
	return false
}

// Safe rejects replies that leak artifact-shaped data or break character.
// A reply that echoes an account number, UPI handle, link, or phone
// number must never go back to the scammer.
func Safe(reply string) bool {
	if patterns.BankAccountRe.MatchString(reply) {
		return false
	}
	if patterns.UPIRe.MatchString(reply) {
		return false
	}
	if patterns.URLRe.MatchString(reply) {
		return false
	}
	if patterns.PhoneRe.MatchString(reply) {
		return false
	}
	lower := strings.ToLower(reply)
	for _, giveaway := range []string{"as an ai", "language model", "i am a bot", "i'm a bot", "assistant"} {
		if strings.Contains(lower, giveaway) {
			return false
		}
	}
	return true
}

func lastN(msgs []intel.Message, n int) []intel.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
