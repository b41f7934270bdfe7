package helpers

import "testing"

func TestExtractJSONPlain(t *testing.T) {
	out, err := ExtractJSON(`{"score": 75, "summary": "solid"}`)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if out != `{"score": 75, "summary": "solid"}` {
		t.Fatalf("got %q", out)
	}
}

func TestExtractJSONFenced(t *testing.T) {
	in := "Here you go:\n```json\n{\"score\": 42}\n```\nHope that helps!"
	out, err := ExtractJSON(in)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if out != `{"score": 42}` {
		t.Fatalf("got %q", out)
	}
}

func TestExtractJSONIgnoresBracesInStrings(t *testing.T) {
	in := `prefix {"summary": "uses {braces} and \"quotes\"", "n": 1} suffix`
	out, err := ExtractJSON(in)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if out != `{"summary": "uses {braces} and \"quotes\"", "n": 1}` {
		t.Fatalf("got %q", out)
	}
}

func TestExtractJSONArray(t *testing.T) {
	out, err := ExtractJSON("answers below\n[1, null, 2]")
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if out != "[1, null, 2]" {
		t.Fatalf("got %q", out)
	}
}

func TestExtractJSONNoneFound(t *testing.T) {
	if _, err := ExtractJSON("the model rambled with no structure"); err == nil {
		t.Fatal("expected error for prose-only input")
	}
	if _, err := ExtractJSON(`{"unterminated": true`); err == nil {
		t.Fatal("expected error for unbalanced JSON")
	}
}
