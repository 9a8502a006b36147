package usecase

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/anny-whatever/frappeDocChat/internal/core/domain"
	"github.com/anny-whatever/frappeDocChat/internal/core/ports"
)

const dedupContentPrefix = 100

// StrategyParams tune one named search strategy.
type StrategyParams struct {
	Weight    float64
	Threshold float64
	Limit     int
}

// RetrieverConfig carries the per-strategy defaults. Zero fields fall back
// to the hand-tuned defaults below.
type RetrieverConfig struct {
	Original        StrategyParams
	Decomposed      StrategyParams
	Expanded        StrategyParams
	Technical       StrategyParams
	Troubleshooting StrategyParams

	ExpansionMinConfidence float64
	RefinementThreshold    float64
	RefinementLimit        int
	MaxConcurrentSearches  int
}

func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		Original:        StrategyParams{Weight: 1.0, Threshold: 0.75, Limit: 8},
		Decomposed:      StrategyParams{Weight: 0.9, Threshold: 0.70, Limit: 6},
		Expanded:        StrategyParams{Weight: 0.8, Threshold: 0.65, Limit: 6},
		Technical:       StrategyParams{Weight: 0.7, Threshold: 0.60, Limit: 5},
		Troubleshooting: StrategyParams{Weight: 0.85, Threshold: 0.65, Limit: 5},

		ExpansionMinConfidence: 0.6,
		RefinementThreshold:    0.65,
		RefinementLimit:        5,
		MaxConcurrentSearches:  8,
	}
}

func (c RetrieverConfig) normalized() RetrieverConfig {
	def := DefaultRetrieverConfig()
	normalize := func(p, d StrategyParams) StrategyParams {
		if p.Weight <= 0 || p.Weight > 1 {
			p.Weight = d.Weight
		}
		if p.Threshold <= 0 || p.Threshold >= 1 {
			p.Threshold = d.Threshold
		}
		if p.Limit <= 0 {
			p.Limit = d.Limit
		}
		return p
	}
	c.Original = normalize(c.Original, def.Original)
	c.Decomposed = normalize(c.Decomposed, def.Decomposed)
	c.Expanded = normalize(c.Expanded, def.Expanded)
	c.Technical = normalize(c.Technical, def.Technical)
	c.Troubleshooting = normalize(c.Troubleshooting, def.Troubleshooting)
	if c.ExpansionMinConfidence <= 0 || c.ExpansionMinConfidence >= 1 {
		c.ExpansionMinConfidence = def.ExpansionMinConfidence
	}
	if c.RefinementThreshold <= 0 || c.RefinementThreshold >= 1 {
		c.RefinementThreshold = def.RefinementThreshold
	}
	if c.RefinementLimit <= 0 {
		c.RefinementLimit = def.RefinementLimit
	}
	if c.MaxConcurrentSearches <= 0 {
		c.MaxConcurrentSearches = def.MaxConcurrentSearches
	}
	return c
}

var troubleshootingKeywords = []string{
	"error", "problem", "issue", "not working", "failed", "fix", "solve",
	"troubleshoot", "debug", "broken", "wrong", "help", "can't", "unable",
}

func isTroubleshootingQuery(query string) bool {
	lower := strings.ToLower(query)
	for _, keyword := range troubleshootingKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// MultiQueryResult is the output of one multi-strategy retrieval pass.
// Pool holds every tagged result before deduplication; Results is the
// deduplicated, weight-scored, truncated view. DuplicatesDropped counts
// pool entries removed by deduplication, not by truncation.
type MultiQueryResult struct {
	Results           []domain.SearchResult
	Pool              []domain.SearchResult
	QueriesUsed       []string
	Strategies        []string
	DuplicatesDropped int
}

// MultiStrategyRetriever fans several named search strategies out over the
// vector gateway concurrently and pools the tagged results. A single
// strategy failing contributes nothing; it never fails the whole retrieval.
type MultiStrategyRetriever struct {
	vector     ports.VectorSearcher
	expander   *QueryExpander
	decomposer *QueryDecomposer
	cfg        RetrieverConfig
	logger     *slog.Logger
}

func NewMultiStrategyRetriever(
	vector ports.VectorSearcher,
	expander *QueryExpander,
	decomposer *QueryDecomposer,
	cfg RetrieverConfig,
	logger *slog.Logger,
) *MultiStrategyRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiStrategyRetriever{
		vector:     vector,
		expander:   expander,
		decomposer: decomposer,
		cfg:        cfg.normalized(),
		logger:     logger,
	}
}

// BuildStrategies assembles the ordered strategy set for a query:
// original, decomposed (complex queries only), expanded, technical, and
// troubleshooting when the query carries a troubleshooting keyword.
func (r *MultiStrategyRetriever) BuildStrategies(ctx context.Context, query string) []domain.SearchStrategy {
	strategies := []domain.SearchStrategy{{
		Name:       domain.StrategyOriginal,
		Queries:    []string{query},
		Weight:     r.cfg.Original.Weight,
		Threshold:  r.cfg.Original.Threshold,
		MaxResults: r.cfg.Original.Limit,
	}}

	decomposition := r.decomposer.Decompose(ctx, query)
	if decomposition.IsComplex && len(decomposition.SubQueries) > 1 {
		queries := make([]string, 0, 3)
		for _, sub := range decomposition.SubQueries {
			queries = append(queries, sub.Query)
			if len(queries) == 3 {
				break
			}
		}
		strategies = append(strategies, domain.SearchStrategy{
			Name:       domain.StrategyDecomposed,
			Queries:    queries,
			Weight:     r.cfg.Decomposed.Weight,
			Threshold:  r.cfg.Decomposed.Threshold,
			MaxResults: r.cfg.Decomposed.Limit,
		})
	}

	expansionQueries := make([]string, 0, 3)
	for _, exp := range r.expander.ExpandQuery(ctx, query) {
		if exp.Confidence <= r.cfg.ExpansionMinConfidence {
			continue
		}
		expansionQueries = append(expansionQueries, exp.Expanded)
		if len(expansionQueries) == 3 {
			break
		}
	}
	if len(expansionQueries) > 0 {
		strategies = append(strategies, domain.SearchStrategy{
			Name:       domain.StrategyExpanded,
			Queries:    expansionQueries,
			Weight:     r.cfg.Expanded.Weight,
			Threshold:  r.cfg.Expanded.Threshold,
			MaxResults: r.cfg.Expanded.Limit,
		})
	}

	technical := r.expander.GenerateSearchVariations(ctx, query, "api")
	if len(technical) > 2 {
		technical = technical[:2]
	}
	if len(technical) > 0 {
		strategies = append(strategies, domain.SearchStrategy{
			Name:       domain.StrategyTechnical,
			Queries:    technical,
			Weight:     r.cfg.Technical.Weight,
			Threshold:  r.cfg.Technical.Threshold,
			MaxResults: r.cfg.Technical.Limit,
		})
	}

	if isTroubleshootingQuery(query) {
		troubleshooting := r.expander.GenerateSearchVariations(ctx, query, "troubleshooting")
		if len(troubleshooting) > 2 {
			troubleshooting = troubleshooting[:2]
		}
		if len(troubleshooting) > 0 {
			strategies = append(strategies, domain.SearchStrategy{
				Name:       domain.StrategyTroubleshooting,
				Queries:    troubleshooting,
				Weight:     r.cfg.Troubleshooting.Weight,
				Threshold:  r.cfg.Troubleshooting.Threshold,
				MaxResults: r.cfg.Troubleshooting.Limit,
			})
		}
	}

	return strategies
}

type searchJob struct {
	strategy  domain.SearchStrategy
	query     string
	pairIndex int
}

// ExecuteMultiQuery runs every (strategy, query) pair concurrently, pools
// the tagged results, deduplicates by filename + leading content, and
// truncates to maxResults ordered by similarity x strategy weight.
// baseThreshold moves the primary similarity cutoff; the auxiliary
// strategies keep their tuned offsets below it. Zero keeps the configured
// per-strategy cutoffs.
func (r *MultiStrategyRetriever) ExecuteMultiQuery(ctx context.Context, query string, maxResults int, baseThreshold float64) (*MultiQueryResult, error) {
	query = strings.TrimSpace(query)
	if maxResults <= 0 {
		maxResults = 10
	}

	strategies := r.BuildStrategies(ctx, query)

	jobs := make([]searchJob, 0, 8)
	for _, strategy := range strategies {
		for _, q := range strategy.Queries {
			jobs = append(jobs, searchJob{strategy: strategy, query: q, pairIndex: len(jobs)})
		}
	}

	perJob := make([][]domain.SearchResult, len(jobs))
	jobErrs := make([]error, len(jobs))

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxConcurrentSearches)
	for _, job := range jobs {
		g.Go(func() error {
			results, err := r.SearchSingle(groupCtx, job.query, job.strategy.MaxResults, r.shiftThreshold(job.strategy.Threshold, baseThreshold), job.strategy.Name)
			if err != nil {
				// One failed strategy contributes nothing to the pool.
				r.logger.Warn("strategy search failed",
					"strategy", job.strategy.Name, "query", job.query, "error", err)
				jobErrs[job.pairIndex] = err
				return nil
			}
			perJob[job.pairIndex] = results
			return nil
		})
	}
	_ = g.Wait()

	pool := make([]domain.SearchResult, 0, 32)
	failures := 0
	for i, results := range perJob {
		if jobErrs[i] != nil {
			failures++
		}
		pool = append(pool, results...)
	}

	queriesUsed := make([]string, 0, len(jobs))
	for _, job := range jobs {
		queriesUsed = append(queriesUsed, job.query)
	}

	if len(pool) == 0 && failures == len(jobs) {
		fallback, err := r.SearchSingle(ctx, query, maxResults, r.shiftThreshold(r.cfg.Original.Threshold, baseThreshold), domain.StrategyFallback)
		if err != nil {
			return nil, err
		}
		return &MultiQueryResult{
			Results:     fallback,
			Pool:        fallback,
			QueriesUsed: []string{query},
			Strategies:  []string{domain.StrategyFallback},
		}, nil
	}

	deduped := DedupeResults(pool)
	duplicatesDropped := len(pool) - len(deduped)
	weightFor := r.strategyWeights(strategies)
	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].Similarity*weightFor(deduped[i].SearchStrategy) >
			deduped[j].Similarity*weightFor(deduped[j].SearchStrategy)
	})
	if len(deduped) > maxResults {
		deduped = deduped[:maxResults]
	}

	names := make([]string, 0, len(strategies))
	for _, strategy := range strategies {
		names = append(names, strategy.Name)
	}

	return &MultiQueryResult{
		Results:           deduped,
		Pool:              pool,
		QueriesUsed:       queriesUsed,
		Strategies:        names,
		DuplicatesDropped: duplicatesDropped,
	}, nil
}

// shiftThreshold rebases one tuned strategy cutoff onto a caller-supplied
// primary cutoff, preserving the tuned offset from the primary default.
func (r *MultiStrategyRetriever) shiftThreshold(tuned, baseThreshold float64) float64 {
	if baseThreshold <= 0 || baseThreshold >= 1 {
		return tuned
	}
	shifted := tuned + (baseThreshold - r.cfg.Original.Threshold)
	if shifted < 0 {
		return 0
	}
	if shifted >= 1 {
		return 0.99
	}
	return shifted
}

// ExecuteIterativeSearch runs one multi-query pass then up to
// maxIterations-1 rounds of result-seeded follow-up queries, stopping early
// when no follow-ups are produced. This is the simpler, non-gap-aware loop;
// gap-driven refinement lives in the RefinementController.
func (r *MultiStrategyRetriever) ExecuteIterativeSearch(ctx context.Context, query string, maxResults, maxIterations int, baseThreshold float64) (*MultiQueryResult, error) {
	first, err := r.ExecuteMultiQuery(ctx, query, maxResults, baseThreshold)
	if err != nil {
		return nil, err
	}

	results := first.Results
	pool := first.Pool
	queriesUsed := first.QueriesUsed
	strategies := first.Strategies
	duplicatesDropped := first.DuplicatesDropped

	for iteration := 1; iteration < maxIterations; iteration++ {
		followUps := r.decomposer.GenerateFollowUps(ctx, query, topResults(results, 3))
		if len(followUps) == 0 {
			break
		}
		if iteration == 1 {
			strategies = append(strategies, domain.StrategyRefinement)
		}

		roundResults := r.searchAll(ctx, followUps, r.cfg.RefinementLimit, r.shiftThreshold(r.cfg.RefinementThreshold, baseThreshold), domain.StrategyRefinement)
		queriesUsed = append(queriesUsed, followUps...)
		pool = append(pool, roundResults...)

		merged := DedupeResults(append(results, roundResults...))
		duplicatesDropped += len(results) + len(roundResults) - len(merged)
		sort.SliceStable(merged, func(i, j int) bool {
			return merged[i].Similarity > merged[j].Similarity
		})
		if len(merged) > maxResults {
			merged = merged[:maxResults]
		}
		results = merged
	}

	return &MultiQueryResult{
		Results:           results,
		Pool:              pool,
		QueriesUsed:       queriesUsed,
		Strategies:        strategies,
		DuplicatesDropped: duplicatesDropped,
	}, nil
}

// SearchSingle runs one gateway search and tags every result with the
// producing strategy and query. The threshold is re-applied defensively even
// though the gateway is expected to pre-filter.
func (r *MultiStrategyRetriever) SearchSingle(ctx context.Context, query string, limit int, threshold float64, strategy string) ([]domain.SearchResult, error) {
	results, err := r.vector.Search(ctx, query, limit, threshold)
	if err != nil {
		return nil, err
	}

	tagged := make([]domain.SearchResult, 0, len(results))
	for _, result := range results {
		if result.Similarity < threshold {
			continue
		}
		result.SearchStrategy = strategy
		result.QueryUsed = query
		tagged = append(tagged, result)
	}
	return tagged, nil
}

func (r *MultiStrategyRetriever) searchAll(ctx context.Context, queries []string, limit int, threshold float64, strategy string) []domain.SearchResult {
	perQuery := make([][]domain.SearchResult, len(queries))
	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxConcurrentSearches)
	for i, q := range queries {
		g.Go(func() error {
			results, err := r.SearchSingle(groupCtx, q, limit, threshold, strategy)
			if err != nil {
				r.logger.Warn("follow-up search failed", "query", q, "error", err)
				return nil
			}
			perQuery[i] = results
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.SearchResult, 0, len(queries)*limit)
	for _, results := range perQuery {
		out = append(out, results...)
	}
	return out
}

func (r *MultiStrategyRetriever) strategyWeights(strategies []domain.SearchStrategy) func(name string) float64 {
	weights := make(map[string]float64, len(strategies)+2)
	for _, strategy := range strategies {
		weights[strategy.Name] = strategy.Weight
	}
	weights[domain.StrategyFallback] = 1.0
	weights[domain.StrategyRefinement] = r.cfg.Expanded.Weight
	return func(name string) float64 {
		if w, ok := weights[name]; ok {
			return w
		}
		return 1.0
	}
}

// dedupeKey approximates document identity: same filename and same first
// 100 characters of content. Identical content under different filenames is
// deliberately not merged.
func dedupeKey(result domain.SearchResult) string {
	content := result.Content
	runes := []rune(content)
	if len(runes) > dedupContentPrefix {
		content = string(runes[:dedupContentPrefix])
	}
	return result.Filename + "|" + content
}

// DedupeResults keeps one result per (filename, leading content) key,
// preferring the higher similarity on collision. It is idempotent: running
// it over an already-deduplicated slice returns the same elements in the
// same similarity-descending order.
func DedupeResults(results []domain.SearchResult) []domain.SearchResult {
	ordered := make([]domain.SearchResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Similarity > ordered[j].Similarity
	})

	seen := make(map[string]int, len(ordered))
	out := make([]domain.SearchResult, 0, len(ordered))
	for _, result := range ordered {
		key := dedupeKey(result)
		if idx, ok := seen[key]; ok {
			// Processing is similarity-descending, so the kept entry already
			// wins; the check covers equal scores and defensive reuse.
			if result.Similarity > out[idx].Similarity {
				out[idx] = result
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, result)
	}
	return out
}

func topResults(results []domain.SearchResult, n int) []domain.SearchResult {
	if len(results) <= n {
		return results
	}
	return results[:n]
}
