// Package extract scans conversations for actionable artifacts. Each call
// re-scans the full history plus the current turn: the result is a
// self-contained, deduplicated delta independent of any stored state, so
// a replayed or corrected history always yields the correct cumulative set.
package extract

import (
	"strings"

	"github.com/hazyhaar/scamtrap/internal/intel"
	"github.com/hazyhaar/scamtrap/internal/patterns"
)

// keywordCap bounds suspicious keywords per call to keep payloads small.
const keywordCap = 10

// Extract pulls intelligence from every scammer-authored message in the
// conversation. Pure and idempotent: identical inputs yield identical
// results.
func Extract(msg intel.Message, history []intel.Message) intel.Intelligence {
	var parts []string
	for _, m := range history {
		if m.Sender == intel.SenderScammer && m.Text != "" {
			parts = append(parts, m.Text)
		}
	}
	if msg.Sender == intel.SenderScammer && msg.Text != "" {
		parts = append(parts, msg.Text)
	}
	return FromText(strings.Join(parts, " "))
}

// FromText extracts intelligence from a single blob of scammer text.
func FromText(text string) intel.Intelligence {
	if strings.TrimSpace(text) == "" {
		return intel.Intelligence{}
	}

	var out intel.Intelligence

	// Schemed URLs first, lowercased for stable dedup.
	urlSeen := map[string]bool{}
	for _, raw := range patterns.URLRe.FindAllString(text, -1) {
		u := strings.ToLower(patterns.CleanURL(raw))
		if u != "" && !urlSeen[u] {
			urlSeen[u] = true
			out.PhishingLinks = append(out.PhishingLinks, u)
		}
	}

	// Schemeless domain-like tokens. Emails and already-captured URLs are
	// masked out first so their hosts are not re-captured; a token lacking
	// a dot segment never matches at all.
	masked := strings.ToLower(text)
	masked = patterns.URLRe.ReplaceAllString(masked, " ")
	masked = patterns.EmailRe.ReplaceAllString(masked, " ")
	for _, raw := range patterns.DomainRe.FindAllString(masked, -1) {
		u := patterns.CleanURL(raw)
		if !plausibleDomain(u) || urlSeen[u] {
			continue
		}
		urlSeen[u] = true
		out.PhishingLinks = append(out.PhishingLinks, u)
	}

	// UPI handles, case preserved. Emails are masked out first: the UPI
	// pattern would otherwise claim the local part of any address whose
	// domain starts with letters.
	upiText := patterns.EmailRe.ReplaceAllString(text, " ")
	upiSeen := map[string]bool{}
	for _, raw := range patterns.UPIRe.FindAllString(upiText, -1) {
		if patterns.LooksLikeEmail(raw) || upiSeen[raw] {
			continue
		}
		upiSeen[raw] = true
		out.UPIIds = append(out.UPIIds, raw)
	}

	// Phones: normalize to +digits form, then validate.
	phoneDigits := map[string]bool{}
	phoneSeen := map[string]bool{}
	for _, raw := range patterns.PhoneRe.FindAllString(text, -1) {
		n := patterns.NormalizePhone(raw)
		if n == "" || phoneSeen[n] {
			continue
		}
		phoneSeen[n] = true
		phoneDigits[patterns.DigitsOnly(n)] = true
		out.PhoneNumbers = append(out.PhoneNumbers, n)
	}

	// Account-like digit runs, minus anything already claimed as a phone.
	acctSeen := map[string]bool{}
	for _, acct := range patterns.BankAccountRe.FindAllString(text, -1) {
		if acctSeen[acct] || phoneDigits[acct] {
			continue
		}
		// A bare 10-digit run starting 6-9 is a phone number, not an account.
		if len(acct) == 10 && acct[0] >= '6' && acct[0] <= '9' {
			continue
		}
		acctSeen[acct] = true
		out.BankAccounts = append(out.BankAccounts, acct)
	}

	// Suspicious keywords come from the same tactic lexicon the classifier
	// scores against, recorded lowercased and capped.
	_, phrases := patterns.MatchTactics(text)
	kwSeen := map[string]bool{}
	for _, kw := range phrases {
		if kwSeen[kw] {
			continue
		}
		kwSeen[kw] = true
		out.SuspiciousKeywords = append(out.SuspiciousKeywords, kw)
		if len(out.SuspiciousKeywords) >= keywordCap {
			break
		}
	}

	return out
}

// plausibleDomain filters DomainRe matches down to things that could be a
// host: a final label of at least two letters and no digits-only labels
// masquerading as TLDs (false negatives are preferred over noise).
func plausibleDomain(s string) bool {
	host := s
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return false
	}
	tld := labels[len(labels)-1]
	if len(tld) < 2 {
		return false
	}
	for _, r := range tld {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	// Bare decimal sequences like "1.5" or version strings are not hosts.
	allDigits := true
	for _, r := range labels[0] {
		if r < '0' || r > '9' {
			allDigits = false
			break
		}
	}
	return !allDigits
}
