// Package intel owns the conversation data model and the evidence store:
// per-session records that accumulate extracted intelligence across turns
// and gate the one-time final callback.
package intel

// Message senders as they appear on the wire. "user" is the honeypot's
// own persona; only "scammer" turns carry signal.
const (
	SenderScammer = "scammer"
	SenderUser    = "user"
)

// Message is a single conversation turn. Immutable once received.
type Message struct {
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp,omitempty"` // epoch millis, optional
}

// Intelligence is the set of artifacts pulled out of a conversation.
// Slices are semantic sets: no duplicates, insertion order preserved so
// serialization is deterministic.
type Intelligence struct {
	BankAccounts       []string `json:"bankAccounts"`
	UPIIds             []string `json:"upiIds"`
	PhishingLinks      []string `json:"phishingLinks"`
	PhoneNumbers       []string `json:"phoneNumbers"`
	SuspiciousKeywords []string `json:"suspiciousKeywords"`
}

// Empty reports whether no artifact of any category has been captured.
func (i Intelligence) Empty() bool {
	return len(i.BankAccounts) == 0 &&
		len(i.UPIIds) == 0 &&
		len(i.PhishingLinks) == 0 &&
		len(i.PhoneNumbers) == 0 &&
		len(i.SuspiciousKeywords) == 0
}

// Count returns the total number of captured artifacts.
func (i Intelligence) Count() int {
	return len(i.BankAccounts) + len(i.UPIIds) + len(i.PhishingLinks) +
		len(i.PhoneNumbers) + len(i.SuspiciousKeywords)
}

// Merge unions other into i, preserving first-seen order.
func (i *Intelligence) Merge(other Intelligence) {
	i.BankAccounts = unionInto(i.BankAccounts, other.BankAccounts)
	i.UPIIds = unionInto(i.UPIIds, other.UPIIds)
	i.PhishingLinks = unionInto(i.PhishingLinks, other.PhishingLinks)
	i.PhoneNumbers = unionInto(i.PhoneNumbers, other.PhoneNumbers)
	i.SuspiciousKeywords = unionInto(i.SuspiciousKeywords, other.SuspiciousKeywords)
}

func unionInto(dst, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range src {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		dst = append(dst, s)
	}
	return dst
}

// CallbackState is the per-session callback lifecycle. Sent and Suppressed
// are terminal.
type CallbackState string

const (
	CallbackPending    CallbackState = "pending"
	CallbackSent       CallbackState = "sent"
	CallbackSuppressed CallbackState = "suppressed"
)

// Record is the cumulative evidence for one session. Owned exclusively by
// the store; callers get copies.
type Record struct {
	SessionID     string        `json:"session_id"`
	ScamDetected  bool          `json:"scam_detected"`
	TotalMessages int           `json:"total_messages_exchanged"`
	Intelligence  Intelligence  `json:"intelligence"`
	Tactics       []string      `json:"tactics"`
	Callback      CallbackState `json:"callback"`
}

// Delta is one turn's contribution, produced by the classifier and
// extractor and folded into the record by Store.Merge.
type Delta struct {
	ScamDetected  bool
	TotalMessages int
	Intelligence  Intelligence
	Tactics       []string
}

// apply folds d into r under the monotonicity invariants: intelligence
// and tactics only grow, the message count never decreases, and a scam
// verdict never reverts.
func (r *Record) apply(d Delta) {
	if d.ScamDetected {
		r.ScamDetected = true
	}
	if d.TotalMessages > r.TotalMessages {
		r.TotalMessages = d.TotalMessages
	}
	r.Intelligence.Merge(d.Intelligence)
	r.Tactics = unionInto(r.Tactics, d.Tactics)
}

// clone returns an independent copy safe to hand outside the store lock.
func (r *Record) clone() Record {
	out := *r
	out.Intelligence = Intelligence{
		BankAccounts:       append([]string(nil), r.Intelligence.BankAccounts...),
		UPIIds:             append([]string(nil), r.Intelligence.UPIIds...),
		PhishingLinks:      append([]string(nil), r.Intelligence.PhishingLinks...),
		PhoneNumbers:       append([]string(nil), r.Intelligence.PhoneNumbers...),
		SuspiciousKeywords: append([]string(nil), r.Intelligence.SuspiciousKeywords...),
	}
	out.Tactics = append([]string(nil), r.Tactics...)
	return out
}
