package extract

import (
	"reflect"
	"testing"

	"github.com/hazyhaar/scamtrap/internal/intel"
)

func scammer(text string) intel.Message {
	return intel.Message{Sender: intel.SenderScammer, Text: text}
}

func TestExtractIdempotent(t *testing.T) {
	history := []intel.Message{
		scammer("Your account is blocked. Verify at http://fake-bank.xyz/verify"),
		{Sender: intel.SenderUser, Text: "Which account?"},
	}
	msg := scammer("Send to 9876543210 or pay my UPI fraudster@upi today")

	a := Extract(msg, history)
	b := Extract(msg, history)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("extraction not idempotent:\n%+v\n%+v", a, b)
	}
}

func TestExtractUPI(t *testing.T) {
	got := Extract(scammer("Share your UPI ID: scammer@upi"), nil)
	if !reflect.DeepEqual(got.UPIIds, []string{"scammer@upi"}) {
		t.Fatalf("upiIds = %v", got.UPIIds)
	}
}

func TestExtractEmailNotUPI(t *testing.T) {
	got := Extract(scammer("Contact me at helpdesk@secure-bank.com"), nil)
	if len(got.UPIIds) != 0 {
		t.Fatalf("email captured as UPI handle: %v", got.UPIIds)
	}
}

func TestExtractURLs(t *testing.T) {
	got := Extract(scammer("Click HTTP://Evil.Example/verify or visit secure-login.xyz/kyc now"), nil)
	wantSchemed := "http://evil.example/verify"
	if len(got.PhishingLinks) != 2 || got.PhishingLinks[0] != wantSchemed {
		t.Fatalf("phishingLinks = %v", got.PhishingLinks)
	}
	if got.PhishingLinks[1] != "secure-login.xyz/kyc" {
		t.Fatalf("schemeless domain missed: %v", got.PhishingLinks)
	}
}

func TestExtractNoDotNoLink(t *testing.T) {
	got := Extract(scammer("open the portal page and login"), nil)
	if len(got.PhishingLinks) != 0 {
		t.Fatalf("token without scheme and dot segment extracted: %v", got.PhishingLinks)
	}
}

func TestExtractPhoneNormalization(t *testing.T) {
	got := Extract(scammer("Call our customer care on +91 98765 43210 right away"), nil)
	if !reflect.DeepEqual(got.PhoneNumbers, []string{"+919876543210"}) {
		t.Fatalf("phoneNumbers = %v", got.PhoneNumbers)
	}
}

func TestExtractBankAccountNotPhone(t *testing.T) {
	got := Extract(scammer("Transfer the fee to account 123456789 immediately. Questions? 9876543210"), nil)
	if !reflect.DeepEqual(got.BankAccounts, []string{"123456789"}) {
		t.Fatalf("bankAccounts = %v", got.BankAccounts)
	}
	// The mobile number must land in phones, never accounts.
	if !reflect.DeepEqual(got.PhoneNumbers, []string{"+919876543210"}) {
		t.Fatalf("phoneNumbers = %v", got.PhoneNumbers)
	}
}

func TestExtractIgnoresUserTurns(t *testing.T) {
	history := []intel.Message{
		{Sender: intel.SenderUser, Text: "My UPI is victim@upi and my number is 9999988888"},
	}
	got := Extract(scammer("hello"), history)
	if len(got.UPIIds) != 0 || len(got.PhoneNumbers) != 0 {
		t.Fatalf("honeypot-authored data extracted: %+v", got)
	}
}

func TestExtractKeywordCap(t *testing.T) {
	text := "urgent immediately asap act now today bank official department rbi npci " +
		"blocked suspended verify kyc upi transfer otp pin cvv password prize refund"
	got := Extract(scammer(text), nil)
	if len(got.SuspiciousKeywords) > keywordCap {
		t.Fatalf("keyword cap exceeded: %d", len(got.SuspiciousKeywords))
	}
	if len(got.SuspiciousKeywords) != keywordCap {
		t.Fatalf("expected cap to apply, got %d keywords", len(got.SuspiciousKeywords))
	}
}

func TestExtractDedupAcrossTurns(t *testing.T) {
	history := []intel.Message{
		scammer("Pay to scammer@upi"),
	}
	got := Extract(scammer("I repeat, pay to scammer@upi"), history)
	if !reflect.DeepEqual(got.UPIIds, []string{"scammer@upi"}) {
		t.Fatalf("duplicate artifact not deduplicated: %v", got.UPIIds)
	}
}

func TestExtractEmptyText(t *testing.T) {
	got := Extract(intel.Message{Sender: intel.SenderScammer, Text: ""}, nil)
	if !got.Empty() {
		t.Fatalf("expected empty intelligence, got %+v", got)
	}
}
