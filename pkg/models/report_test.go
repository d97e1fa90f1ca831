package models

import (
	"strings"
	"testing"
)

func TestExtractionReportHashes(t *testing.T) {
	r := NewExtractionReport("iosextract", "test")
	if r.ID == "" || r.StartTimestamp.IsZero() {
		t.Fatalf("report not initialised: %+v", r)
	}
	if err := r.HashCatalog(strings.NewReader("abc")); err != nil {
		t.Fatalf("HashCatalog: %v", err)
	}
	if r.CatalogSize != 3 {
		t.Errorf("size = %d", r.CatalogSize)
	}
	if r.CatalogMD5 != "900150983cd24fb0d6963f7d28e17f72" {
		t.Errorf("md5 = %s", r.CatalogMD5)
	}
	if r.CatalogSHA1 != "a9993e364706816aba3e25717850c26c9cd0d89d" {
		t.Errorf("sha1 = %s", r.CatalogSHA1)
	}
	if r.CatalogSHA256 != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Errorf("sha256 = %s", r.CatalogSHA256)
	}
}

func TestExtractionReportFinalize(t *testing.T) {
	r := NewExtractionReport("iosextract", "test")
	r.AddPhase("notes", PhaseSkipped, 0, "disabled")
	r.Finalize([]string{"a", "b"})
	if r.EndTimestamp.Before(r.StartTimestamp) || r.Duration == "" {
		t.Errorf("timestamps = %v .. %v (%s)", r.StartTimestamp, r.EndTimestamp, r.Duration)
	}
	if len(r.LogEntries) != 2 || len(r.Phases) != 1 {
		t.Errorf("report = %+v", r)
	}
}

func TestMessageHelpers(t *testing.T) {
	if MessageVoiceCall.String() != "voice call" || MessageType(99).String() != "other" {
		t.Errorf("unexpected type labels")
	}
	if !(Message{}).IsFromMe() {
		t.Errorf("message without sender should be from me")
	}
	c := Contact{PhoneNumber: "+34", LegacyID: "x@s.whatsapp.net"}
	if c.DisplayName() != "+34" {
		t.Errorf("DisplayName = %q", c.DisplayName())
	}
	card := Card{Organization: "Acme"}
	if card.FormattedName() != "Acme" {
		t.Errorf("FormattedName = %q", card.FormattedName())
	}
}
