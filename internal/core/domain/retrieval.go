package domain

import "time"

// SearchResult is one passage returned by the vector search gateway,
// annotated by the retriever with the strategy and query that produced it.
type SearchResult struct {
	ID             string            `json:"id"`
	Filename       string            `json:"filename"`
	Title          string            `json:"title"`
	Content        string            `json:"content"`
	Similarity     float64           `json:"similarity"`
	SourceURL      string            `json:"source_url,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	SearchStrategy string            `json:"search_strategy"`
	QueryUsed      string            `json:"query_used"`
}

// MetadataProcessedAt is the metadata key carrying the ingestion timestamp
// (RFC 3339). Ranking uses it for the recency factor.
const MetadataProcessedAt = "processed_at"

// RankingFactors are the seven independent scoring dimensions, each in [0,1].
type RankingFactors struct {
	SemanticSimilarity float64 `json:"semantic_similarity"`
	TitleRelevance     float64 `json:"title_relevance"`
	ContentQuality     float64 `json:"content_quality"`
	DocumentType       float64 `json:"document_type"`
	Recency            float64 `json:"recency"`
	SourceReliability  float64 `json:"source_reliability"`
	QueryAlignment     float64 `json:"query_alignment"`
}

// RankedResult is a SearchResult with its combined ranking score. It is
// derived, never mutated: re-ranking builds fresh values.
type RankedResult struct {
	SearchResult
	RankingScore float64        `json:"ranking_score"`
	Factors      RankingFactors `json:"factors"`
	OriginalRank int            `json:"original_rank"`
}

// SearchStrategy bundles the queries of one retrieval approach with its
// weight, similarity threshold and result cap. Built fresh per search call.
type SearchStrategy struct {
	Name       string   `json:"name"`
	Queries    []string `json:"queries"`
	Weight     float64  `json:"weight"`
	Threshold  float64  `json:"threshold"`
	MaxResults int      `json:"max_results"`
}

const (
	StrategyOriginal        = "original"
	StrategyDecomposed      = "decomposed"
	StrategyExpanded        = "expanded"
	StrategyTechnical       = "technical"
	StrategyTroubleshooting = "troubleshooting"
	StrategyFallback        = "fallback"
	StrategyRefinement      = "refinement"
)

// QueryExpansion is one alternative phrasing of a query.
type QueryExpansion struct {
	Original   string  `json:"original"`
	Expanded   string  `json:"expanded"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// SubQuery is one prioritized component of a decomposed query.
// Priority runs 1..5, 5 being most important.
type SubQuery struct {
	Query    string `json:"query"`
	Priority int    `json:"priority"`
	Category string `json:"category"`
}

// Decomposition is the outcome of complexity analysis on a query.
type Decomposition struct {
	IsComplex  bool       `json:"is_complex"`
	SubQueries []SubQuery `json:"sub_queries"`
	Strategy   string     `json:"strategy"`
}

// GapAnalysis is the retriever's self-assessment of a result set against the
// original question.
type GapAnalysis struct {
	InformationGaps []string `json:"information_gaps"`
	MissingTopics   []string `json:"missing_topics"`
	AmbiguousAreas  []string `json:"ambiguous_areas"`
	NeedsMoreDetail []string `json:"needs_more_detail"`
	Confidence      float64  `json:"confidence"`
}

// RefinementDecision says whether another search round is worth running.
type RefinementDecision struct {
	ShouldRefine    bool        `json:"should_refine"`
	Reason          string      `json:"reason"`
	FollowUpQueries []string    `json:"follow_up_queries,omitempty"`
	Gaps            GapAnalysis `json:"gaps"`
}

// SearchIteration records one round of the refinement loop.
type SearchIteration struct {
	Iteration         int            `json:"iteration"`
	Query             string         `json:"query"`
	Results           []RankedResult `json:"results"`
	Gaps              GapAnalysis    `json:"gaps"`
	RefinementApplied bool           `json:"refinement_applied"`
}

// IterativeSearchResult accumulates the full history of a refined search.
type IterativeSearchResult struct {
	FinalResults       []RankedResult    `json:"final_results"`
	Iterations         []SearchIteration `json:"iterations"`
	TotalIterations    int               `json:"total_iterations"`
	ConvergenceReached bool              `json:"convergence_reached"`
	FinalConfidence    float64           `json:"final_confidence"`
}

// SearchOptions tune one call to the public search entry point. Zero values
// fall back to configured defaults.
type SearchOptions struct {
	Limit                     int     `json:"limit"`
	Threshold                 float64 `json:"threshold"`
	EnableIterativeRefinement bool    `json:"enable_iterative_refinement"`
	MaxIterations             int     `json:"max_iterations"`
	ConfidenceThreshold       float64 `json:"confidence_threshold"`
}

// SearchMetadata describes how a search response was produced.
type SearchMetadata struct {
	QueriesUsed            []string `json:"queries_used"`
	StrategiesUsed         []string `json:"strategies_used,omitempty"`
	IterationsPerformed    int      `json:"iterations_performed"`
	FinalConfidence        float64  `json:"final_confidence"`
	ConvergenceReached     bool     `json:"convergence_reached"`
	TotalResultsConsidered int      `json:"total_results_considered"`
	DuplicatesDropped      int      `json:"duplicates_dropped"`
	ProcessingTimeMs       int64    `json:"processing_time_ms"`
	Reason                 string   `json:"reason,omitempty"`
}

// SearchResponse is the public output of the retrieval pipeline.
type SearchResponse struct {
	Results  []RankedResult `json:"results"`
	Metadata SearchMetadata `json:"metadata"`
}

// Answer is a generated reply with the passages it cites.
type Answer struct {
	Text     string         `json:"text"`
	Sources  []RankedResult `json:"sources"`
	Metadata SearchMetadata `json:"metadata"`
}

// CompletionOptions bound a single language model call.
type CompletionOptions struct {
	Temperature float64
	MaxTokens   int
}

// ProcessedAt reads the ingestion timestamp from result metadata.
// The second return is false when the timestamp is absent or unparseable.
func (r SearchResult) ProcessedAt() (time.Time, bool) {
	raw, ok := r.Metadata[MetadataProcessedAt]
	if !ok || raw == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
