package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/anny-whatever/frappeDocChat/internal/core/domain"
)

func TestIsComplex(t *testing.T) {
	decomposer := NewQueryDecomposer(&scriptedLLM{}, discardLogger())

	cases := []struct {
		query string
		want  bool
	}{
		{"", false},
		{"doctype naming", false},
		{"how do hooks work and how do permissions apply", true},
		{"difference between doctype and docfield", true},
		{"first create the doctype then add the fields", true},
		{"what are hooks? how do I register one?", true},
		{"one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen sixteen", true},
	}
	for _, tc := range cases {
		if got := decomposer.IsComplex(tc.query); got != tc.want {
			t.Errorf("IsComplex(%q) = %v, want %v", tc.query, got, tc.want)
		}
	}
}

func TestDecomposeSimpleQuerySkipsModel(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("model down")}
	decomposer := NewQueryDecomposer(llm, discardLogger())

	dec := decomposer.Decompose(context.Background(), "doctype naming")

	if dec.IsComplex {
		t.Fatal("simple query reported complex")
	}
	if dec.Strategy != "single" || len(dec.SubQueries) != 1 {
		t.Fatalf("decomposition = %+v", dec)
	}
	sub := dec.SubQueries[0]
	if sub.Query != "doctype naming" || sub.Priority != 5 || sub.Category != "direct" {
		t.Fatalf("sub-query = %+v", sub)
	}
	if llm.callCount() != 0 {
		t.Fatal("simple query must not reach the model")
	}
}

func TestDecomposeParsesAndNormalizesModelOutput(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"```json\n" + `{"sub_questions":[
		{"question":"what is a webhook","priority":2,"category":"concept"},
		{"question":"configure webhook retries","priority":9,"category":"configuration"},
		{"question":"webhook failure example","priority":3,"category":"bogus"}
	]}` + "\n```"}}
	decomposer := NewQueryDecomposer(llm, discardLogger())

	dec := decomposer.Decompose(context.Background(), "how do webhooks work and how do I configure retries")

	if !dec.IsComplex || dec.Strategy != "decomposed" {
		t.Fatalf("decomposition = %+v", dec)
	}
	if len(dec.SubQueries) != 3 {
		t.Fatalf("got %d sub-queries, want 3", len(dec.SubQueries))
	}
	first := dec.SubQueries[0]
	if first.Query != "configure webhook retries" || first.Priority != 5 {
		t.Fatalf("highest priority first, clamped to 5: %+v", first)
	}
	if dec.SubQueries[0].Category != "configuration" {
		t.Fatalf("category = %q", dec.SubQueries[0].Category)
	}
	// "bogus" is not a known category and folds to "concept".
	if dec.SubQueries[1].Query != "webhook failure example" || dec.SubQueries[1].Category != "concept" {
		t.Fatalf("unknown category not normalized: %+v", dec.SubQueries[1])
	}
}

func TestDecomposeModelFailureFallsBackToSingle(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("model down")}
	decomposer := NewQueryDecomposer(llm, discardLogger())

	query := "how do hooks work and how do permissions apply"
	dec := decomposer.Decompose(context.Background(), query)

	if dec.Strategy != "single" || len(dec.SubQueries) != 1 {
		t.Fatalf("decomposition = %+v, want single-query fallback", dec)
	}
	if dec.SubQueries[0].Query != query {
		t.Fatalf("fallback sub-query = %q", dec.SubQueries[0].Query)
	}
}

func TestDecomposeSingleSubQuestionFallsBackToSingle(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"sub_questions":[{"question":"what is a hook","priority":5,"category":"concept"}]}`,
	}}
	decomposer := NewQueryDecomposer(llm, discardLogger())

	dec := decomposer.Decompose(context.Background(), "how do hooks work and how do permissions apply")

	if dec.Strategy != "single" || len(dec.SubQueries) != 1 {
		t.Fatalf("one usable sub-question must degrade to single: %+v", dec)
	}
}

func TestGenerateFollowUpsCapsAtTwo(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`["doctype permission levels explained","doctype role permissions setup","a third follow-up"]`,
	}}
	decomposer := NewQueryDecomposer(llm, discardLogger())

	prior := []domain.SearchResult{
		{Title: "Permissions", Content: "Role based permissions control document access."},
	}
	followUps := decomposer.GenerateFollowUps(context.Background(), "doctype permissions", prior)

	if len(followUps) != 2 {
		t.Fatalf("got %d follow-ups, want 2: %v", len(followUps), followUps)
	}
	if followUps[0] != "doctype permission levels explained" {
		t.Fatalf("followUps[0] = %q", followUps[0])
	}
}

func TestGenerateFollowUpsModelFailureReturnsNone(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("model down")}
	decomposer := NewQueryDecomposer(llm, discardLogger())

	if got := decomposer.GenerateFollowUps(context.Background(), "doctype", nil); len(got) != 0 {
		t.Fatalf("expected no follow-ups, got %v", got)
	}
}
