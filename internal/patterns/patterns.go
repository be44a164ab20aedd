// Package patterns is the static pattern library: tactic lexicons and
// regular expressions for the artifacts a scam conversation leaks
// (URLs, UPI-style payment handles, phone numbers, account-like tokens).
package patterns

import (
	"regexp"
	"strings"
)

// Tactic labels shared by the classifier and extractor.
const (
	TacticUrgency      = "urgency"
	TacticAuthority    = "authority"
	TacticThreat       = "threat"
	TacticVerification = "verification"
	TacticPayment      = "payment_redirection"
	TacticCredential   = "credential_request"
	TacticReward       = "reward"
)

var (
	// URLRe matches schemed URLs and bare www. hosts.
	URLRe = regexp.MustCompile(`(?i)https?://[^\s<>"]+|www\.[^\s<>"]+`)

	// DomainRe catches schemeless domain-like tokens (e.g. "secure-bank.xyz/verify").
	// A token with neither scheme nor dot segment is deliberately not captured.
	DomainRe = regexp.MustCompile(`\b[a-z0-9][a-z0-9\-]*(?:\.[a-z0-9\-]+)+(?:/[^\s<>"]*)?`)

	// UPIRe matches UPI-style payment handles (name@psp).
	UPIRe = regexp.MustCompile(`\b[\w.\-]{2,}@[a-zA-Z]{2,}\b`)

	// EmailRe matches plain email addresses; used to keep emails out of the
	// UPI set, since the UPI pattern also matches them.
	EmailRe = regexp.MustCompile(`[\w.\-]+@[\w.\-]+\.\w{2,}`)

	// PhoneRe is a loose phone capture; candidates are normalized and
	// validated afterwards.
	PhoneRe = regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`)

	// BankAccountRe matches bare account-like digit runs.
	BankAccountRe = regexp.MustCompile(`\b\d{9,18}\b`)

	nonDigitRe = regexp.MustCompile(`\D`)
)

// Lexicon maps a tactic to the phrases that signal it. Matching is
// case-insensitive substring matching against scammer-authored text.
var Lexicon = map[string][]string{
	TacticUrgency: {
		"urgent", "immediately", "right away", "asap", "act now",
		"today", "within 24 hours", "last chance", "limited time",
	},
	TacticAuthority: {
		"bank", "customer care", "customer support", "official", "department",
		"government", "income tax", "rbi", "npci", "police", "court",
	},
	TacticThreat: {
		"blocked", "suspended", "deactivated", "closed", "freeze",
		"legal action", "penalty", "arrest",
	},
	TacticVerification: {
		"verify", "verification", "confirm your", "update kyc", "kyc",
		"re-activate", "validate",
	},
	TacticPayment: {
		"upi", "upi id", "share your upi", "collect request", "pay now",
		"transfer", "processing fee", "send money", "qr code",
	},
	TacticCredential: {
		"otp", "one time password", "pin", "cvv", "password",
		"card number", "net banking", "login details", "aadhaar", "pan number",
	},
	TacticReward: {
		"prize", "lottery", "refund", "cashback", "won", "reward",
	},
}

// Weights bias the classifier score per tactic. Payment and credential
// requests carry the most signal.
var Weights = map[string]float64{
	TacticUrgency:      1.0,
	TacticAuthority:    1.0,
	TacticThreat:       1.5,
	TacticVerification: 1.0,
	TacticPayment:      2.0,
	TacticCredential:   2.5,
	TacticReward:       1.0,
}

// HighSeverity marks tactics that force a scam verdict on their own,
// regardless of the aggregate score.
var HighSeverity = map[string]bool{
	TacticPayment:    true,
	TacticCredential: true,
}

// MatchTactics returns the tactics present in text plus the lowercased
// phrases that triggered them, in lexicon iteration-stable order.
func MatchTactics(text string) (tactics []string, phrases []string) {
	lower := strings.ToLower(text)
	for _, tactic := range TacticOrder {
		var hit bool
		for _, phrase := range Lexicon[tactic] {
			if strings.Contains(lower, phrase) {
				phrases = append(phrases, phrase)
				hit = true
			}
		}
		if hit {
			tactics = append(tactics, tactic)
		}
	}
	return tactics, phrases
}

// TacticOrder fixes iteration order over the lexicon so matching is
// deterministic across runs.
var TacticOrder = []string{
	TacticUrgency,
	TacticAuthority,
	TacticThreat,
	TacticVerification,
	TacticPayment,
	TacticCredential,
	TacticReward,
}

// CleanURL strips trailing punctuation that free-form text attaches to links.
func CleanURL(raw string) string {
	return strings.TrimRight(raw, `).,;!?"'`)
}

// DigitsOnly strips every non-digit rune.
func DigitsOnly(s string) string {
	return nonDigitRe.ReplaceAllString(s, "")
}

// NormalizePhone validates a loose phone candidate and returns it in
// +digits form, or "" when the candidate is not a plausible number.
// Ten-digit numbers starting 6-9 get the Indian country code, matching
// the deployment region of the upstream evaluator.
func NormalizePhone(candidate string) string {
	digits := DigitsOnly(candidate)
	switch {
	case len(digits) == 10 && digits[0] >= '6' && digits[0] <= '9':
		return "+91" + digits
	case len(digits) == 11 && digits[0] == '0' && digits[1] >= '6' && digits[1] <= '9':
		return "+91" + digits[1:]
	case len(digits) == 12 && strings.HasPrefix(digits, "91") && digits[2] >= '6' && digits[2] <= '9':
		return "+" + digits
	case len(digits) >= 11 && len(digits) <= 15:
		return "+" + digits
	}
	return ""
}

// LooksLikeEmail reports whether a UPI-pattern match is actually an email
// address (PSP suffixes have no dots; email domains do).
func LooksLikeEmail(s string) bool {
	return EmailRe.MatchString(s)
}

// Impersonation guesses who the scammer is pretending to be, for the
// human-readable agent notes. Empty when nothing matches.
func Impersonation(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "bank"):
		return "bank"
	case strings.Contains(lower, "upi") || strings.Contains(lower, "payment"):
		return "payment service"
	case strings.Contains(lower, "gov") || strings.Contains(lower, "income tax"):
		return "government"
	case strings.Contains(lower, "lottery") || strings.Contains(lower, "prize"):
		return "lottery"
	}
	return ""
}
