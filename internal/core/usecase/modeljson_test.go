package usecase

import "testing"

func TestParseModelJSONStripsCodeFence(t *testing.T) {
	raw := "```json\n{\"confidence\": 0.8}\n```"

	var out struct {
		Confidence float64 `json:"confidence"`
	}
	if err := parseModelJSON(raw, &out); err != nil {
		t.Fatalf("parseModelJSON: %v", err)
	}
	if out.Confidence != 0.8 {
		t.Fatalf("confidence = %v, want 0.8", out.Confidence)
	}
}

func TestParseModelJSONExtractsEmbeddedObject(t *testing.T) {
	raw := "Sure, here is the assessment you asked for:\n{\"confidence\": 0.5}\nLet me know if you need anything else."

	var out struct {
		Confidence float64 `json:"confidence"`
	}
	if err := parseModelJSON(raw, &out); err != nil {
		t.Fatalf("parseModelJSON: %v", err)
	}
	if out.Confidence != 0.5 {
		t.Fatalf("confidence = %v, want 0.5", out.Confidence)
	}
}

func TestParseModelJSONExtractsEmbeddedArray(t *testing.T) {
	raw := "Queries:\n[\"doctype permissions\", \"doctype naming\"]"

	var out []string
	if err := parseModelJSON(raw, &out); err != nil {
		t.Fatalf("parseModelJSON: %v", err)
	}
	if len(out) != 2 || out[0] != "doctype permissions" {
		t.Fatalf("out = %v", out)
	}
}

func TestParseModelJSONRejectsGarbage(t *testing.T) {
	var out []string
	if err := parseModelJSON("I could not produce a structured answer.", &out); err == nil {
		t.Fatal("expected error for non-JSON output")
	}
	if err := parseModelJSON("   ", &out); err == nil {
		t.Fatal("expected error for empty output")
	}
}
