package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/anny-whatever/frappeDocChat/internal/core/domain"
)

// SearchConfig holds the entry-point defaults applied when SearchOptions
// leave a field zero.
type SearchConfig struct {
	DefaultLimit     int
	DefaultThreshold float64
}

func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		DefaultLimit:     10,
		DefaultThreshold: 0.75,
	}
}

func (c SearchConfig) normalized() SearchConfig {
	def := DefaultSearchConfig()
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = def.DefaultLimit
	}
	if c.DefaultThreshold <= 0 || c.DefaultThreshold >= 1 {
		c.DefaultThreshold = def.DefaultThreshold
	}
	return c
}

// SearchUseCase is the single public entry point of the retrieval pipeline:
// multi-strategy retrieval, ranking, and optional gap-driven refinement.
type SearchUseCase struct {
	retriever *MultiStrategyRetriever
	ranker    *ResultRanker
	refiner   *RefinementController
	cfg       SearchConfig
	logger    *slog.Logger
}

func NewSearchUseCase(
	retriever *MultiStrategyRetriever,
	ranker *ResultRanker,
	refiner *RefinementController,
	cfg SearchConfig,
	logger *slog.Logger,
) *SearchUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchUseCase{
		retriever: retriever,
		ranker:    ranker,
		refiner:   refiner,
		cfg:       cfg.normalized(),
		logger:    logger,
	}
}

// Search turns one user query into ranked, deduplicated, gap-filled
// passages. Collaborator failures degrade to an empty result set with a
// diagnostic reason; only cancellation propagates as an error.
func (uc *SearchUseCase) Search(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchResponse, error) {
	started := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", fmt.Errorf("query is required"))
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = uc.cfg.DefaultLimit
	}
	threshold := opts.Threshold
	if threshold <= 0 || threshold >= 1 {
		threshold = uc.cfg.DefaultThreshold
	}

	var multi *MultiQueryResult
	var err error
	if opts.EnableIterativeRefinement && uc.refiner == nil {
		// No gap analyzer wired; fall back to the simpler result-seeded
		// follow-up loop.
		maxIterations := opts.MaxIterations
		if maxIterations <= 0 {
			maxIterations = DefaultRefinementConfig().MaxIterations
		}
		multi, err = uc.retriever.ExecuteIterativeSearch(ctx, query, limit, maxIterations, threshold)
	} else {
		multi, err = uc.retriever.ExecuteMultiQuery(ctx, query, limit, threshold)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		// Every strategy and the fallback search failed; zero results with a
		// reason, not an exception.
		uc.logger.Error("retrieval unavailable", "query", query, "error", err)
		return &domain.SearchResponse{
			Results: []domain.RankedResult{},
			Metadata: domain.SearchMetadata{
				QueriesUsed:      []string{query},
				ProcessingTimeMs: time.Since(started).Milliseconds(),
				Reason:           "search backends unavailable: " + err.Error(),
			},
		}, nil
	}

	ranked := uc.ranker.Rank(query, multi.Results)
	queriesUsed := multi.QueriesUsed
	totalConsidered := len(multi.Pool)

	metadata := domain.SearchMetadata{
		QueriesUsed:       dedupeStrings(queriesUsed),
		StrategiesUsed:    multi.Strategies,
		DuplicatesDropped: multi.DuplicatesDropped,
	}

	if opts.EnableIterativeRefinement && uc.refiner != nil {
		refiner := uc.refiner
		if opts.MaxIterations > 0 || opts.ConfidenceThreshold > 0 {
			cfg := refiner.cfg
			if opts.MaxIterations > 0 {
				cfg.MaxIterations = opts.MaxIterations
			}
			if opts.ConfidenceThreshold > 0 {
				cfg.ConfidenceThreshold = opts.ConfidenceThreshold
			}
			refiner = NewRefinementController(refiner.llm, cfg, refiner.logger)
		}

		iterResult := refiner.ExecuteIterativeSearch(ctx, query, uc.refinementSearchFunc(query, threshold), ranked)
		ranked = iterResult.FinalResults
		for _, iteration := range iterResult.Iterations {
			if iteration.RefinementApplied {
				queriesUsed = append(queriesUsed, strings.Split(iteration.Query, " | ")...)
				totalConsidered += len(iteration.Results)
			}
		}
		metadata.QueriesUsed = dedupeStrings(queriesUsed)
		metadata.IterationsPerformed = iterResult.TotalIterations
		metadata.FinalConfidence = iterResult.FinalConfidence
		metadata.ConvergenceReached = iterResult.ConvergenceReached
	} else if uc.refiner != nil {
		gaps := uc.refiner.AnalyzeGaps(ctx, query, ranked)
		metadata.FinalConfidence = gaps.Confidence
	}

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	metadata.TotalResultsConsidered = totalConsidered
	metadata.ProcessingTimeMs = time.Since(started).Milliseconds()

	uc.logger.Info("search completed",
		"query", query,
		"results", len(ranked),
		"queries_used", len(metadata.QueriesUsed),
		"iterations", metadata.IterationsPerformed,
		"confidence", metadata.FinalConfidence,
		"duration_ms", metadata.ProcessingTimeMs,
	)

	return &domain.SearchResponse{
		Results:  ranked,
		Metadata: metadata,
	}, nil
}

// refinementSearchFunc searches one follow-up query through the retriever
// and ranks the hits against the original question so merged scores stay
// comparable across rounds.
func (uc *SearchUseCase) refinementSearchFunc(originalQuery string, baseThreshold float64) SearchFunc {
	return func(ctx context.Context, query string) ([]domain.RankedResult, error) {
		results, err := uc.retriever.SearchSingle(
			ctx,
			query,
			uc.retriever.cfg.RefinementLimit,
			uc.retriever.shiftThreshold(uc.retriever.cfg.RefinementThreshold, baseThreshold),
			domain.StrategyRefinement,
		)
		if err != nil {
			return nil, err
		}
		return uc.ranker.Rank(originalQuery, results), nil
	}
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
