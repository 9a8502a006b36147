package usecase

import (
	"math"
	"testing"
	"time"

	"github.com/anny-whatever/frappeDocChat/internal/core/domain"
)

func rankCandidate(filename string, similarity float64) domain.SearchResult {
	return domain.SearchResult{
		ID:         filename,
		Filename:   filename,
		Title:      "Untitled",
		Content:    "Plain body text.",
		Similarity: similarity,
		QueryUsed:  "doctype permissions",
	}
}

func TestRankHigherSimilarityWinsAllElseEqual(t *testing.T) {
	ranker := NewResultRanker(DefaultRankWeights(), DefaultBoostMultipliers())

	low := rankCandidate("chapter.md", 0.5)
	high := rankCandidate("chapter.md", 0.9)

	ranked := ranker.Rank("doctype permissions", []domain.SearchResult{low, high})

	if len(ranked) != 2 {
		t.Fatalf("got %d results", len(ranked))
	}
	if ranked[0].Similarity != 0.9 {
		t.Fatalf("higher similarity should rank first: %+v", ranked[0])
	}
	if ranked[0].RankingScore <= ranked[1].RankingScore {
		t.Fatalf("scores not descending: %v vs %v", ranked[0].RankingScore, ranked[1].RankingScore)
	}
	// OriginalRank records the pre-sort position.
	if ranked[0].OriginalRank != 1 || ranked[1].OriginalRank != 0 {
		t.Fatalf("original ranks = %d, %d", ranked[0].OriginalRank, ranked[1].OriginalRank)
	}
}

func TestRankBoostMultipliersStack(t *testing.T) {
	result := rankCandidate("guide.md", 0.7)
	result.SourceURL = "https://docs.frappe.io/api/tutorial"

	boosted := NewResultRanker(DefaultRankWeights(), DefaultBoostMultipliers())
	neutral := NewResultRanker(DefaultRankWeights(), BoostMultipliers{
		OfficialDocs: 1, Tutorial: 1, APIDoc: 1, Example: 1,
	})

	scoreBoosted := boosted.Rank("doctype permissions", []domain.SearchResult{result})[0].RankingScore
	scoreNeutral := neutral.Rank("doctype permissions", []domain.SearchResult{result})[0].RankingScore

	want := 1.20 * 1.15 * 1.10
	if got := scoreBoosted / scoreNeutral; math.Abs(got-want) > 1e-9 {
		t.Fatalf("boost ratio = %v, want %v", got, want)
	}
}

func TestRankWithWeightsOverrideShiftsOrder(t *testing.T) {
	ranker := NewResultRanker(DefaultRankWeights(), DefaultBoostMultipliers())

	bySimilarity := rankCandidate("a.md", 0.95)
	bySimilarity.Title = ""
	byTitle := rankCandidate("b.md", 0.2)
	byTitle.Title = "Workflow states"

	query := "workflow states"
	candidates := []domain.SearchResult{bySimilarity, byTitle}

	semanticHeavy := RankWeights{
		SemanticSimilarity: 0.90, TitleRelevance: 0.02, ContentQuality: 0.02,
		DocumentType: 0.02, Recency: 0.02, SourceReliability: 0.01, QueryAlignment: 0.01,
	}
	if got := ranker.RankWithWeights(query, candidates, semanticHeavy); got[0].Filename != "a.md" {
		t.Fatalf("semantic-heavy weights: got %q first", got[0].Filename)
	}

	titleHeavy := RankWeights{
		SemanticSimilarity: 0.05, TitleRelevance: 0.85, ContentQuality: 0.02,
		DocumentType: 0.02, Recency: 0.02, SourceReliability: 0.02, QueryAlignment: 0.02,
	}
	if got := ranker.RankWithWeights(query, candidates, titleHeavy); got[0].Filename != "b.md" {
		t.Fatalf("title-heavy weights: got %q first", got[0].Filename)
	}
}

func TestRankRecencyBuckets(t *testing.T) {
	ranker := NewResultRanker(DefaultRankWeights(), DefaultBoostMultipliers())
	now := time.Now().UTC()

	stamp := func(result domain.SearchResult, age time.Duration) domain.SearchResult {
		result.Metadata = map[string]string{
			domain.MetadataProcessedAt: now.Add(-age).Format(time.RFC3339),
		}
		return result
	}

	fresh := stamp(rankCandidate("fresh.md", 0.5), 24*time.Hour)
	stale := stamp(rankCandidate("stale.md", 0.5), 400*24*time.Hour)
	unknown := rankCandidate("unknown.md", 0.5)

	ranked := ranker.Rank("doctype permissions", []domain.SearchResult{fresh, stale, unknown})

	recencyByFile := make(map[string]float64, 3)
	for _, result := range ranked {
		recencyByFile[result.Filename] = result.Factors.Recency
	}
	if recencyByFile["fresh.md"] != 1.0 {
		t.Fatalf("fresh recency = %v", recencyByFile["fresh.md"])
	}
	if recencyByFile["stale.md"] != 0.6 {
		t.Fatalf("stale recency = %v", recencyByFile["stale.md"])
	}
	if recencyByFile["unknown.md"] != 0.5 {
		t.Fatalf("unknown recency = %v", recencyByFile["unknown.md"])
	}
}

func TestRankQueryAlignmentFactor(t *testing.T) {
	ranker := NewResultRanker(DefaultRankWeights(), DefaultBoostMultipliers())
	query := "doctype permissions"

	exact := rankCandidate("exact.md", 0.5)
	exact.QueryUsed = "Doctype Permissions"
	exact.SearchStrategy = domain.StrategyExpanded

	cases := []struct {
		file     string
		strategy string
		want     float64
	}{
		{"orig.md", domain.StrategyOriginal, 1.0},
		{"trouble.md", domain.StrategyTroubleshooting, 0.9},
		{"decomp.md", domain.StrategyDecomposed, 0.85},
		{"expand.md", domain.StrategyExpanded, 0.8},
		{"tech.md", domain.StrategyTechnical, 0.75},
		{"refine.md", domain.StrategyRefinement, 0.7},
	}

	candidates := []domain.SearchResult{exact}
	for _, tc := range cases {
		result := rankCandidate(tc.file, 0.5)
		result.QueryUsed = "entirely unrelated wording"
		result.SearchStrategy = tc.strategy
		candidates = append(candidates, result)
	}

	ranked := ranker.Rank(query, candidates)
	alignmentByFile := make(map[string]float64, len(ranked))
	for _, result := range ranked {
		alignmentByFile[result.Filename] = result.Factors.QueryAlignment
	}

	if alignmentByFile["exact.md"] != 1.0 {
		t.Fatalf("case-insensitive exact match alignment = %v", alignmentByFile["exact.md"])
	}
	for _, tc := range cases {
		if got := alignmentByFile[tc.file]; got != tc.want {
			t.Errorf("%s alignment = %v, want %v", tc.strategy, got, tc.want)
		}
	}
}

func TestRankSourceReliabilityFactor(t *testing.T) {
	ranker := NewResultRanker(DefaultRankWeights(), DefaultBoostMultipliers())

	official := rankCandidate("official.md", 0.5)
	official.SourceURL = "https://frappeframework.com/docs/user/en/doctypes"
	community := rankCandidate("community.md", 0.5)
	community.SourceURL = "https://discuss.example.net/t/doctypes"

	ranked := ranker.Rank("doctype permissions", []domain.SearchResult{community, official})

	if ranked[0].Filename != "official.md" {
		t.Fatalf("official source should outrank community: %+v", ranked[0])
	}
	for _, result := range ranked {
		switch result.Filename {
		case "official.md":
			if result.Factors.SourceReliability != 1.0 {
				t.Fatalf("official reliability = %v", result.Factors.SourceReliability)
			}
		case "community.md":
			if result.Factors.SourceReliability != 0.7 {
				t.Fatalf("community reliability = %v", result.Factors.SourceReliability)
			}
		}
	}
}
