package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/anny-whatever/frappeDocChat/internal/core/domain"
)

// scriptedLLM replays canned completions in order, repeating the last one
// when the script runs out. A non-nil err fails every call.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []string
}

func (s *scriptedLLM) Complete(_ context.Context, prompt string, _ domain.CompletionOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) == 0 {
		return "", errors.New("script exhausted")
	}
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return resp, nil
}

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestExpander(t *testing.T, llm *scriptedLLM) *QueryExpander {
	t.Helper()
	expander, err := NewQueryExpander(llm, discardLogger())
	if err != nil {
		t.Fatalf("NewQueryExpander: %v", err)
	}
	return expander
}

func expansionSet(expansions []domain.QueryExpansion) map[string]domain.QueryExpansion {
	out := make(map[string]domain.QueryExpansion, len(expansions))
	for _, exp := range expansions {
		out[exp.Expanded] = exp
	}
	return out
}

func TestExpandQueryRuleBasedSynonyms(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("model down")}
	expander := newTestExpander(t, llm)

	expansions := expander.ExpandQuery(context.Background(), "doctype")

	if len(expansions) != 6 {
		t.Fatalf("got %d expansions, want 6: %+v", len(expansions), expansions)
	}

	byText := expansionSet(expansions)
	for _, want := range []string{"document type", "doctype definition", "data model"} {
		exp, ok := byText[want]
		if !ok {
			t.Fatalf("missing thesaurus expansion %q in %+v", want, expansions)
		}
		if exp.Confidence != 0.8 || exp.Type != "synonym" {
			t.Fatalf("expansion %q = %+v, want synonym at 0.8", want, exp)
		}
	}
	if exp, ok := byText["Frappe framework doctype"]; !ok || exp.Confidence != 0.65 || exp.Type != "contextual" {
		t.Fatalf("contextual expansion = %+v", byText["Frappe framework doctype"])
	}

	for i := 1; i < len(expansions); i++ {
		if expansions[i].Confidence > expansions[i-1].Confidence {
			t.Fatalf("expansions not sorted by confidence: %+v", expansions)
		}
	}
	if _, ok := byText["doctype"]; ok {
		t.Fatal("the original query must not appear among its expansions")
	}
}

func TestExpandQueryModelExpansionsRankFirst(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`[{"expanded":"document schema","type":"technical","confidence":0.9}]`,
	}}
	expander := newTestExpander(t, llm)

	expansions := expander.ExpandQuery(context.Background(), "doctype")

	if len(expansions) != 6 {
		t.Fatalf("got %d expansions, want 6", len(expansions))
	}
	first := expansions[0]
	if first.Expanded != "document schema" || first.Type != "technical" || first.Confidence != 0.9 {
		t.Fatalf("top expansion = %+v, want the 0.9 model expansion", first)
	}
	// The cap drops the lowest-confidence morphological variant.
	if _, ok := expansionSet(expansions)["doctypes"]; ok {
		t.Fatalf("expected the 0.6 variant to fall off the cap: %+v", expansions)
	}
}

func TestExpandQueryModelFailureDegradesToRules(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"no structured output here"}}
	expander := newTestExpander(t, llm)

	expansions := expander.ExpandQuery(context.Background(), "doctype")

	if len(expansions) == 0 {
		t.Fatal("rule-based expansions must survive an unparseable model reply")
	}
	for _, exp := range expansions {
		if exp.Confidence > 0.8 {
			t.Fatalf("unexpected model-confidence expansion %+v", exp)
		}
	}
}

func TestExpandQueryEmptyInput(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("model down")}
	expander := newTestExpander(t, llm)

	if got := expander.ExpandQuery(context.Background(), "   "); len(got) != 0 {
		t.Fatalf("expected no expansions for blank query, got %+v", got)
	}
	if llm.callCount() != 0 {
		t.Fatal("blank query must not reach the model")
	}
}

func TestGenerateSearchVariationsTroubleshootingTemplate(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("model down")}
	expander := newTestExpander(t, llm)

	variations := expander.GenerateSearchVariations(context.Background(), "login failure", "troubleshooting")

	if len(variations) == 0 || len(variations) > 4 {
		t.Fatalf("got %d variations, want 1..4: %v", len(variations), variations)
	}
	if variations[0] != "how to fix login failure" {
		t.Fatalf("variations[0] = %q, want the templated query first", variations[0])
	}
	found := false
	for _, v := range variations {
		if v == "Frappe framework how to fix login failure" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing domain-qualified variation in %v", variations)
	}
}

func TestGenerateSearchVariationsAPITemplate(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("model down")}
	expander := newTestExpander(t, llm)

	variations := expander.GenerateSearchVariations(context.Background(), "webhook", "api")

	if len(variations) == 0 {
		t.Fatal("expected variations")
	}
	if variations[0] != "webhook api reference" {
		t.Fatalf("variations[0] = %q", variations[0])
	}
}
