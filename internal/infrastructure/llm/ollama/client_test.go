package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anny-whatever/frappeDocChat/internal/core/domain"
)

func TestGeneratorBuildsContextPrompt(t *testing.T) {
	var capturedPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		capturedPrompt, _ = payload["prompt"].(string)
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer server.Close()

	client := New(server.URL, "gen", "embed")
	gen := NewGenerator(client)
	_, err := gen.GenerateAnswer(context.Background(), "question?", []domain.RankedResult{{
		SearchResult: domain.SearchResult{Filename: "doctype.md", Title: "DocType", Content: "chunk text"},
		RankingScore: 0.99,
	}})
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}
	if !strings.Contains(capturedPrompt, "question?") || !strings.Contains(capturedPrompt, "chunk text") {
		t.Fatalf("unexpected prompt: %s", capturedPrompt)
	}
}

func TestCompletePassesModelOptions(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":" trimmed "}`))
	}))
	defer server.Close()

	client := New(server.URL, "gen", "embed")
	got, err := client.Complete(context.Background(), "prompt", domain.CompletionOptions{Temperature: 0.3, MaxTokens: 400})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "trimmed" {
		t.Fatalf("Complete() = %q, want trimmed response", got)
	}
	options, ok := captured["options"].(map[string]any)
	if !ok {
		t.Fatalf("expected options in request, got %v", captured)
	}
	if options["temperature"].(float64) != 0.3 {
		t.Fatalf("temperature = %v", options["temperature"])
	}
	if options["num_predict"].(float64) != 400 {
		t.Fatalf("num_predict = %v", options["num_predict"])
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(server.URL, "gen", "embed")
	embedder := NewEmbedder(client)
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary classification for 502, got %v", err)
	}
}
