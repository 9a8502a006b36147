package usecase

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/anny-whatever/frappeDocChat/internal/core/domain"
	"github.com/anny-whatever/frappeDocChat/internal/core/ports"
)

//go:embed thesaurus.yaml
var thesaurusYAML []byte

const (
	maxExpansions         = 6
	maxSearchVariations   = 4
	thesaurusConfidence   = 0.8
	reverseConfidence     = 0.7
	morphologyConfidence  = 0.6
	contextualConfidence  = 0.65
	domainQualifierPrefix = "Frappe framework"
)

// QueryExpander produces alternative phrasings of a query to broaden
// retrieval: thesaurus lookups, morphological variants, model-suggested
// rephrasings and fixed contextual templates.
type QueryExpander struct {
	llm       ports.LanguageModel
	thesaurus map[string][]string
	logger    *slog.Logger
}

func NewQueryExpander(llm ports.LanguageModel, logger *slog.Logger) (*QueryExpander, error) {
	thesaurus := map[string][]string{}
	if err := yaml.Unmarshal(thesaurusYAML, &thesaurus); err != nil {
		return nil, fmt.Errorf("parse thesaurus: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryExpander{
		llm:       llm,
		thesaurus: thesaurus,
		logger:    logger,
	}, nil
}

// ExpandQuery merges rule-based, model-based and contextual expansions,
// deduplicates case-insensitively, sorts by confidence and caps at 6.
// A model failure degrades to rule-based expansions only.
func (e *QueryExpander) ExpandQuery(ctx context.Context, query string) []domain.QueryExpansion {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	expansions := e.ruleBasedExpansions(query)
	expansions = append(expansions, e.modelExpansions(ctx, query)...)
	expansions = append(expansions, e.contextualExpansions(query)...)

	seen := make(map[string]struct{}, len(expansions))
	merged := make([]domain.QueryExpansion, 0, len(expansions))
	for _, exp := range expansions {
		key := strings.ToLower(strings.TrimSpace(exp.Expanded))
		if key == "" || key == strings.ToLower(query) {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, exp)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Confidence > merged[j].Confidence
	})
	if len(merged) > maxExpansions {
		merged = merged[:maxExpansions]
	}
	return merged
}

// GenerateSearchVariations builds context-flavored variants by templating the
// query for the given context and re-expanding the templated string. The
// templated string itself is always first; at most 4 variants are returned.
func (e *QueryExpander) GenerateSearchVariations(ctx context.Context, query, searchContext string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	templated := applyContextTemplate(query, searchContext)
	variations := []string{templated}
	seen := map[string]struct{}{strings.ToLower(templated): {}}

	for _, exp := range e.ExpandQuery(ctx, templated) {
		key := strings.ToLower(exp.Expanded)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		variations = append(variations, exp.Expanded)
		if len(variations) == maxSearchVariations {
			break
		}
	}
	return variations
}

func applyContextTemplate(query, searchContext string) string {
	switch strings.ToLower(strings.TrimSpace(searchContext)) {
	case "troubleshooting":
		return "how to fix " + query
	case "tutorial":
		return "step by step " + query
	case "api":
		return query + " api reference"
	case "configuration":
		return "configure " + query
	default:
		return query
	}
}

func (e *QueryExpander) ruleBasedExpansions(query string) []domain.QueryExpansion {
	lower := strings.ToLower(query)
	out := make([]domain.QueryExpansion, 0, 8)

	add := func(expanded string, confidence float64) {
		out = append(out, domain.QueryExpansion{
			Original:   query,
			Expanded:   expanded,
			Type:       "synonym",
			Confidence: confidence,
		})
	}

	for term, variants := range e.thesaurus {
		if strings.Contains(lower, term) {
			for _, variant := range variants {
				add(strings.Replace(lower, term, variant, 1), thesaurusConfidence)
			}
			continue
		}
		// Reverse mapping: a variant in the query surfaces its key and siblings.
		for _, variant := range variants {
			if !strings.Contains(lower, strings.ToLower(variant)) {
				continue
			}
			add(strings.Replace(lower, strings.ToLower(variant), term, 1), reverseConfidence)
			for _, sibling := range variants {
				if !strings.EqualFold(sibling, variant) {
					add(strings.Replace(lower, strings.ToLower(variant), sibling, 1), reverseConfidence)
				}
			}
			break
		}
	}

	for _, variant := range morphologicalVariants(query) {
		add(variant, morphologyConfidence)
	}
	return out
}

// morphologicalVariants applies naive suffix and separator rewrites:
// toggle a trailing "s" per word, and expand "_"/"-" to spaces and to nothing.
func morphologicalVariants(query string) []string {
	variants := make([]string, 0, 4)

	words := strings.Fields(query)
	for i, word := range words {
		clean := strings.ToLower(word)
		var replacement string
		if strings.HasSuffix(clean, "s") && len(clean) > 3 {
			replacement = clean[:len(clean)-1]
		} else if len(clean) > 2 {
			replacement = clean + "s"
		}
		if replacement == "" {
			continue
		}
		rewritten := make([]string, len(words))
		copy(rewritten, words)
		rewritten[i] = replacement
		variants = append(variants, strings.Join(rewritten, " "))
	}

	if strings.ContainsAny(query, "_-") {
		spaced := strings.NewReplacer("_", " ", "-", " ").Replace(query)
		joined := strings.NewReplacer("_", "", "-", "").Replace(query)
		variants = append(variants, spaced, joined)
	}
	return variants
}

func (e *QueryExpander) modelExpansions(ctx context.Context, query string) []domain.QueryExpansion {
	prompt := fmt.Sprintf(`Generate 3-4 alternative phrasings of this documentation search query.
Return a JSON array only, each element:
{"expanded":"...","type":"synonym|technical|conceptual|procedural|contextual","confidence":0.0-1.0}

Query: %s`, query)

	raw, err := e.llm.Complete(ctx, prompt, domain.CompletionOptions{Temperature: 0.7, MaxTokens: 300})
	if err != nil {
		e.logger.Warn("model expansion failed", "error", err)
		return nil
	}

	var parsed []struct {
		Expanded   string  `json:"expanded"`
		Type       string  `json:"type"`
		Confidence float64 `json:"confidence"`
	}
	if err := parseModelJSON(raw, &parsed); err != nil {
		e.logger.Warn("model expansion unparseable", "error", err)
		return nil
	}

	out := make([]domain.QueryExpansion, 0, len(parsed))
	for _, p := range parsed {
		expanded := strings.TrimSpace(p.Expanded)
		if expanded == "" {
			continue
		}
		out = append(out, domain.QueryExpansion{
			Original:   query,
			Expanded:   expanded,
			Type:       normalizeExpansionType(p.Type),
			Confidence: clamp01(p.Confidence),
		})
	}
	return out
}

func normalizeExpansionType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "synonym", "technical", "conceptual", "procedural", "contextual":
		return strings.ToLower(strings.TrimSpace(t))
	default:
		return "synonym"
	}
}

func (e *QueryExpander) contextualExpansions(query string) []domain.QueryExpansion {
	return []domain.QueryExpansion{
		{
			Original:   query,
			Expanded:   domainQualifierPrefix + " " + query,
			Type:       "contextual",
			Confidence: contextualConfidence,
		},
		{
			Original:   query,
			Expanded:   query + " documentation",
			Type:       "contextual",
			Confidence: contextualConfidence,
		},
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
