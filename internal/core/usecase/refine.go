package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/anny-whatever/frappeDocChat/internal/core/domain"
	"github.com/anny-whatever/frappeDocChat/internal/core/ports"
)

const (
	gapAnalysisTopResults = 5
	followUpShortCircuit  = 0.85
	followUpMaxOverlap    = 0.8
	followUpMinLength     = 10
)

// RefinementConfig tunes the gap-driven iteration loop. The convergence
// window/overlap pair is a heuristic carried over as configuration: two
// consecutive rounds sharing >= ConvergenceOverlap of their top
// ConvergenceWindow documents count as converged.
type RefinementConfig struct {
	MaxIterations       int
	ConfidenceThreshold float64
	ConvergenceWindow   int
	ConvergenceOverlap  float64
}

func DefaultRefinementConfig() RefinementConfig {
	return RefinementConfig{
		MaxIterations:       3,
		ConfidenceThreshold: 0.75,
		ConvergenceWindow:   5,
		ConvergenceOverlap:  0.6,
	}
}

func (c RefinementConfig) normalized() RefinementConfig {
	def := DefaultRefinementConfig()
	if c.MaxIterations <= 0 {
		c.MaxIterations = def.MaxIterations
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		c.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if c.ConvergenceWindow <= 0 {
		c.ConvergenceWindow = def.ConvergenceWindow
	}
	if c.ConvergenceOverlap <= 0 || c.ConvergenceOverlap > 1 {
		c.ConvergenceOverlap = def.ConvergenceOverlap
	}
	return c
}

// SearchFunc executes one follow-up query and returns ranked results.
// The controller owns merging; the function owns retrieval and ranking.
type SearchFunc func(ctx context.Context, query string) ([]domain.RankedResult, error)

// RefinementController inspects ranked results against the original query,
// estimates answer confidence, and drives additional search rounds until
// confidence is high enough, iterations run out, or results converge.
type RefinementController struct {
	llm    ports.LanguageModel
	cfg    RefinementConfig
	logger *slog.Logger
}

func NewRefinementController(llm ports.LanguageModel, cfg RefinementConfig, logger *slog.Logger) *RefinementController {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefinementController{
		llm:    llm,
		cfg:    cfg.normalized(),
		logger: logger,
	}
}

// AnalyzeGaps estimates how well the current results answer the query.
// An empty result set is always confidence zero; a model failure falls back
// to a score-average heuristic, never an error.
func (c *RefinementController) AnalyzeGaps(ctx context.Context, query string, results []domain.RankedResult) domain.GapAnalysis {
	if len(results) == 0 {
		return domain.GapAnalysis{
			InformationGaps: []string{"No results found"},
			MissingTopics:   []string{"All topics"},
			AmbiguousAreas:  []string{},
			NeedsMoreDetail: []string{},
			Confidence:      0,
		}
	}

	raw, err := c.llm.Complete(ctx, buildGapPrompt(query, results), domain.CompletionOptions{Temperature: 0.3, MaxTokens: 500})
	if err != nil {
		c.logger.Warn("gap analysis model call failed", "error", err)
		return heuristicGapAnalysis(results)
	}

	var parsed struct {
		InformationGaps []string `json:"information_gaps"`
		MissingTopics   []string `json:"missing_topics"`
		AmbiguousAreas  []string `json:"ambiguous_areas"`
		NeedsMoreDetail []string `json:"needs_more_detail"`
		Confidence      float64  `json:"confidence"`
	}
	if err := parseModelJSON(raw, &parsed); err != nil {
		c.logger.Warn("gap analysis output unparseable", "error", err)
		return heuristicGapAnalysis(results)
	}

	return domain.GapAnalysis{
		InformationGaps: nonNil(parsed.InformationGaps),
		MissingTopics:   nonNil(parsed.MissingTopics),
		AmbiguousAreas:  nonNil(parsed.AmbiguousAreas),
		NeedsMoreDetail: nonNil(parsed.NeedsMoreDetail),
		Confidence:      clamp01(parsed.Confidence),
	}
}

// ShouldRefine is the terminal decision for one loop round. Reaching the
// iteration budget always stops, regardless of confidence.
func (c *RefinementController) ShouldRefine(ctx context.Context, query string, results []domain.RankedResult, iteration int, usedQueries []string) domain.RefinementDecision {
	if iteration >= c.cfg.MaxIterations {
		return domain.RefinementDecision{
			Reason: "Maximum iterations reached",
			Gaps:   domain.GapAnalysis{Confidence: 1},
		}
	}

	gaps := c.AnalyzeGaps(ctx, query, results)
	if gaps.Confidence >= c.cfg.ConfidenceThreshold {
		return domain.RefinementDecision{
			Reason: "Confidence threshold met",
			Gaps:   gaps,
		}
	}

	followUps := c.generateFollowUps(ctx, query, gaps, usedQueries)
	if len(followUps) == 0 {
		return domain.RefinementDecision{
			Reason: "No viable follow-up queries",
			Gaps:   gaps,
		}
	}

	return domain.RefinementDecision{
		ShouldRefine:    true,
		Reason:          "Information gaps identified",
		FollowUpQueries: followUps,
		Gaps:            gaps,
	}
}

// ExecuteIterativeSearch drives gap analysis -> follow-up search -> merge
// rounds over the initial result set. Iteration 0 records the unrefined set.
func (c *RefinementController) ExecuteIterativeSearch(ctx context.Context, query string, search SearchFunc, initial []domain.RankedResult) domain.IterativeSearchResult {
	initialGaps := c.AnalyzeGaps(ctx, query, initial)

	iterations := []domain.SearchIteration{{
		Iteration: 0,
		Query:     query,
		Results:   initial,
		Gaps:      initialGaps,
	}}

	current := initial
	usedQueries := []string{query}
	converged := false
	refinements := 0

	for iteration := 1; iteration <= c.cfg.MaxIterations; iteration++ {
		decision := c.ShouldRefine(ctx, query, current, iteration, usedQueries)
		if !decision.ShouldRefine {
			converged = true
			c.logger.Info("refinement stopped", "iteration", iteration, "reason", decision.Reason)
			break
		}

		roundResults := c.searchFollowUps(ctx, search, decision.FollowUpQueries)
		usedQueries = append(usedQueries, decision.FollowUpQueries...)

		previousTop := topDocumentKeys(current, c.cfg.ConvergenceWindow)
		current = MergeRanked(current, roundResults)
		newTop := topDocumentKeys(current, c.cfg.ConvergenceWindow)

		iterations = append(iterations, domain.SearchIteration{
			Iteration:         iteration,
			Query:             strings.Join(decision.FollowUpQueries, " | "),
			Results:           roundResults,
			Gaps:              decision.Gaps,
			RefinementApplied: true,
		})
		refinements++

		if keyOverlap(previousTop, newTop) >= c.cfg.ConvergenceOverlap {
			converged = true
			c.logger.Info("refinement converged", "iteration", iteration)
			break
		}
	}

	finalGaps := c.AnalyzeGaps(ctx, query, current)
	return domain.IterativeSearchResult{
		FinalResults:       current,
		Iterations:         iterations,
		TotalIterations:    refinements,
		ConvergenceReached: converged,
		FinalConfidence:    finalGaps.Confidence,
	}
}

func (c *RefinementController) searchFollowUps(ctx context.Context, search SearchFunc, queries []string) []domain.RankedResult {
	perQuery := make([][]domain.RankedResult, len(queries))
	g, groupCtx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			results, err := search(groupCtx, q)
			if err != nil {
				c.logger.Warn("refinement search failed", "query", q, "error", err)
				return nil
			}
			perQuery[i] = results
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.RankedResult, 0, len(queries)*4)
	for _, results := range perQuery {
		out = append(out, results...)
	}
	return out
}

// generateFollowUps asks the model for 2-4 refinement queries from the gap
// analysis, filters out near-repeats of already-used queries and too-short
// candidates, and skips the model entirely when confidence is already high.
func (c *RefinementController) generateFollowUps(ctx context.Context, query string, gaps domain.GapAnalysis, usedQueries []string) []string {
	if gaps.Confidence > followUpShortCircuit {
		return nil
	}

	candidates := c.modelFollowUps(ctx, query, gaps)
	if len(candidates) == 0 {
		candidates = fallbackFollowUps(query, gaps)
	}

	out := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if len(candidate) < followUpMinLength {
			continue
		}
		repeat := false
		for _, used := range usedQueries {
			if wordOverlapSimilarity(candidate, used) > followUpMaxOverlap {
				repeat = true
				break
			}
		}
		if !repeat {
			out = append(out, candidate)
		}
	}
	return out
}

func (c *RefinementController) modelFollowUps(ctx context.Context, query string, gaps domain.GapAnalysis) []string {
	prompt := fmt.Sprintf(`A documentation search for the question below left these gaps.
Suggest 2-4 refined search queries that would fill them.
Return a JSON array of strings only.

Question: %s
Information gaps: %s
Missing topics: %s
Needs more detail: %s`,
		query,
		strings.Join(gaps.InformationGaps, "; "),
		strings.Join(gaps.MissingTopics, "; "),
		strings.Join(gaps.NeedsMoreDetail, "; "),
	)

	raw, err := c.llm.Complete(ctx, prompt, domain.CompletionOptions{Temperature: 0.5, MaxTokens: 250})
	if err != nil {
		c.logger.Warn("follow-up query generation failed", "error", err)
		return nil
	}

	var queries []string
	if err := parseModelJSON(raw, &queries); err != nil {
		c.logger.Warn("follow-up query output unparseable", "error", err)
		return nil
	}
	if len(queries) > 4 {
		queries = queries[:4]
	}
	return queries
}

// fallbackFollowUps concatenates the query with the first listed missing
// topic, gap, or detail item, in that preference order.
func fallbackFollowUps(query string, gaps domain.GapAnalysis) []string {
	sources := [][]string{gaps.MissingTopics, gaps.InformationGaps, gaps.NeedsMoreDetail}
	out := make([]string, 0, 2)
	for _, source := range sources {
		for _, item := range source {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			out = append(out, query+" "+item)
			break
		}
		if len(out) == 2 {
			break
		}
	}
	return out
}

func buildGapPrompt(query string, results []domain.RankedResult) string {
	var block strings.Builder
	for i, result := range results {
		if i == gapAnalysisTopResults {
			break
		}
		fmt.Fprintf(&block, "[%d] title=%s source=%s score=%.3f\n%s\n\n",
			i+1, result.Title, result.SourceURL, result.RankingScore,
			preview(result.Content, resultPreviewChars))
	}

	return fmt.Sprintf(`Assess whether these search results can answer the question.
Return a JSON object only:
{"information_gaps":[],"missing_topics":[],"ambiguous_areas":[],"needs_more_detail":[],"confidence":0.0-1.0}

Question: %s

Results:
%s`, query, block.String())
}

// heuristicGapAnalysis is the deterministic fallback when the model output
// is unusable: confidence is the capped average ranking score, and the gap
// lists come from simple thresholds.
func heuristicGapAnalysis(results []domain.RankedResult) domain.GapAnalysis {
	total := 0.0
	for _, result := range results {
		total += result.RankingScore
	}
	confidence := clamp01(total / float64(len(results)))

	gaps := domain.GapAnalysis{
		InformationGaps: []string{},
		MissingTopics:   []string{},
		AmbiguousAreas:  []string{},
		NeedsMoreDetail: []string{},
		Confidence:      confidence,
	}
	if confidence < 0.6 {
		gaps.InformationGaps = append(gaps.InformationGaps, "Low quality results")
	}
	if len(results) < 3 {
		gaps.MissingTopics = append(gaps.MissingTopics, "Insufficient coverage")
	}
	if confidence < 0.7 {
		gaps.NeedsMoreDetail = append(gaps.NeedsMoreDetail, "More detailed information needed")
	}
	return gaps
}

// mergeKey is the refinement-loop identity: filename plus title.
func mergeKey(result domain.RankedResult) string {
	return result.Filename + "|" + result.Title
}

// MergeRanked folds a refinement round into the running result set, keeping
// the higher ranking score per (filename, title) key, ordered by score.
func MergeRanked(current, incoming []domain.RankedResult) []domain.RankedResult {
	merged := make([]domain.RankedResult, 0, len(current)+len(incoming))
	index := make(map[string]int, len(current)+len(incoming))

	for _, result := range current {
		index[mergeKey(result)] = len(merged)
		merged = append(merged, result)
	}
	for _, result := range incoming {
		key := mergeKey(result)
		if at, ok := index[key]; ok {
			if result.RankingScore > merged[at].RankingScore {
				merged[at] = result
			}
			continue
		}
		index[key] = len(merged)
		merged = append(merged, result)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].RankingScore > merged[j].RankingScore
	})
	return merged
}

func topDocumentKeys(results []domain.RankedResult, window int) map[string]struct{} {
	keys := make(map[string]struct{}, window)
	for i, result := range results {
		if i == window {
			break
		}
		keys[mergeKey(result)] = struct{}{}
	}
	return keys
}

func keyOverlap(previous, current map[string]struct{}) float64 {
	if len(previous) == 0 || len(current) == 0 {
		return 0
	}
	shared := 0
	for key := range current {
		if _, ok := previous[key]; ok {
			shared++
		}
	}
	max := len(previous)
	if len(current) > max {
		max = len(current)
	}
	return float64(shared) / float64(max)
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
