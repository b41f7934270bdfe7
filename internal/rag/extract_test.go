package rag

import (
	"strings"
	"testing"
)

func TestExtractTextPlain(t *testing.T) {
	got, err := ExtractText(strings.NewReader("plain body text"), "notes.txt", 0)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got != "plain body text" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractTextCapsSize(t *testing.T) {
	got, err := ExtractText(strings.NewReader(strings.Repeat("a", 100)), "notes.txt", 10)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 bytes after cap, got %d", len(got))
	}
}

func TestExtractTextHTML(t *testing.T) {
	html := `<html><head><title>Handbook</title></head><body><article><p>Every deploy requires a code review before it ships to production. The reviewer signs off in the tracker.</p><p>Rollbacks follow the same procedure in reverse and must be announced.</p></article></body></html>`
	got, err := ExtractText(strings.NewReader(html), "handbook.html", 0)
	if err != nil {
		t.Fatalf("extract html: %v", err)
	}
	if !strings.Contains(got, "code review") {
		t.Fatalf("article text lost: %q", got)
	}
	if strings.Contains(got, "<p>") {
		t.Fatalf("markup leaked into text: %q", got)
	}
}
