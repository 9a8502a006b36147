package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/anny-whatever/frappeDocChat/internal/core/domain"
	"github.com/anny-whatever/frappeDocChat/internal/core/ports"
)

const (
	complexityWordLimit = 15
	maxSubQueries       = 4
	maxFollowUpResults  = 3
	resultPreviewChars  = 200
)

var (
	conjunctionPattern = regexp.MustCompile(`(?i)\b(and|or|but|however|also|additionally|moreover|furthermore|besides)\b`)
	comparisonPattern  = regexp.MustCompile(`(?i)\b(compare|comparison|difference|differs?|versus|vs\.?)\b|\bbetween\b.+\band\b`)
	multiStepPattern   = regexp.MustCompile(`(?i)\bstep\b.+\bstep\b|\bfirst\b.+\bthen\b`)
	pluralityPattern   = regexp.MustCompile(`(?i)\b(multiple|several|various|many)\b`)
	explainPattern     = regexp.MustCompile(`(?i)\b(explain|describe)\b.+\b(what|how|why|when|where)\b|\bwhat\b.+\b(when|where|how)\b`)
)

// QueryDecomposer decides whether a query bundles several distinct questions
// and, if so, splits it into prioritized sub-questions via the model.
// Complexity detection itself is deterministic and needs no model call.
type QueryDecomposer struct {
	llm    ports.LanguageModel
	logger *slog.Logger
}

func NewQueryDecomposer(llm ports.LanguageModel, logger *slog.Logger) *QueryDecomposer {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryDecomposer{llm: llm, logger: logger}
}

// IsComplex reports whether a query carries more than one distinct question.
func (d *QueryDecomposer) IsComplex(query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return false
	}
	if len(strings.Fields(query)) > complexityWordLimit {
		return true
	}
	if conjunctionPattern.MatchString(query) {
		return true
	}
	if comparisonPattern.MatchString(query) {
		return true
	}
	if multiStepPattern.MatchString(query) {
		return true
	}
	if pluralityPattern.MatchString(query) {
		return true
	}
	if strings.Count(query, "?") > 1 {
		return true
	}
	return explainPattern.MatchString(query)
}

// Decompose splits a complex query into 2-4 prioritized sub-questions.
// Simple queries, and any model or parse failure, yield the single-query
// decomposition; decomposition never fails the pipeline.
func (d *QueryDecomposer) Decompose(ctx context.Context, query string) domain.Decomposition {
	query = strings.TrimSpace(query)
	if !d.IsComplex(query) {
		return singleQueryDecomposition(query)
	}

	prompt := fmt.Sprintf(`Break this documentation question into 2-4 focused sub-questions.
Return a JSON object only:
{"sub_questions":[{"question":"...","priority":1-5,"category":"concept|procedure|example|troubleshooting|configuration"}]}
Priority 5 means most important.

Question: %s`, query)

	raw, err := d.llm.Complete(ctx, prompt, domain.CompletionOptions{Temperature: 0.3, MaxTokens: 400})
	if err != nil {
		d.logger.Warn("decomposition model call failed", "error", err)
		return singleQueryDecomposition(query)
	}

	var parsed struct {
		SubQuestions []struct {
			Question string `json:"question"`
			Priority int    `json:"priority"`
			Category string `json:"category"`
		} `json:"sub_questions"`
	}
	if err := parseModelJSON(raw, &parsed); err != nil {
		d.logger.Warn("decomposition output unparseable", "error", err)
		return singleQueryDecomposition(query)
	}

	subs := make([]domain.SubQuery, 0, len(parsed.SubQuestions))
	for _, sq := range parsed.SubQuestions {
		question := strings.TrimSpace(sq.Question)
		if question == "" {
			continue
		}
		subs = append(subs, domain.SubQuery{
			Query:    question,
			Priority: clampPriority(sq.Priority),
			Category: normalizeSubQueryCategory(sq.Category),
		})
		if len(subs) == maxSubQueries {
			break
		}
	}
	if len(subs) < 2 {
		return singleQueryDecomposition(query)
	}

	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].Priority > subs[j].Priority
	})
	return domain.Decomposition{
		IsComplex:  true,
		SubQueries: subs,
		Strategy:   "decomposed",
	}
}

// GenerateFollowUps asks the model for 1-2 follow-up questions targeting
// gaps in the prior top results. Failures degrade to no follow-ups.
func (d *QueryDecomposer) GenerateFollowUps(ctx context.Context, query string, prior []domain.SearchResult) []string {
	var resultsBlock strings.Builder
	for i, result := range prior {
		if i == maxFollowUpResults {
			break
		}
		fmt.Fprintf(&resultsBlock, "[%d] %s: %s\n", i+1, result.Title, preview(result.Content, resultPreviewChars))
	}

	prompt := fmt.Sprintf(`Given the question and the search results found so far, suggest 1-2 follow-up
questions that would fill what the results still leave unanswered.
Return a JSON array of strings only.

Question: %s

Results so far:
%s`, query, resultsBlock.String())

	raw, err := d.llm.Complete(ctx, prompt, domain.CompletionOptions{Temperature: 0.5, MaxTokens: 200})
	if err != nil {
		d.logger.Warn("follow-up generation failed", "error", err)
		return nil
	}

	var followUps []string
	if err := parseModelJSON(raw, &followUps); err != nil {
		d.logger.Warn("follow-up output unparseable", "error", err)
		return nil
	}

	out := make([]string, 0, 2)
	for _, q := range followUps {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		out = append(out, q)
		if len(out) == 2 {
			break
		}
	}
	return out
}

func singleQueryDecomposition(query string) domain.Decomposition {
	return domain.Decomposition{
		IsComplex: false,
		SubQueries: []domain.SubQuery{{
			Query:    query,
			Priority: 5,
			Category: "direct",
		}},
		Strategy: "single",
	}
}

func clampPriority(p int) int {
	if p < 1 {
		return 1
	}
	if p > 5 {
		return 5
	}
	return p
}

func normalizeSubQueryCategory(c string) string {
	switch strings.ToLower(strings.TrimSpace(c)) {
	case "concept", "procedure", "example", "troubleshooting", "configuration":
		return strings.ToLower(strings.TrimSpace(c))
	default:
		return "concept"
	}
}

func preview(content string, limit int) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit])
}
