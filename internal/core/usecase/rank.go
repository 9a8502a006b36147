package usecase

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/anny-whatever/frappeDocChat/internal/core/domain"
)

// RankWeights combine the seven ranking factors. Zero fields are filled from
// defaults, so a partial override keeps the rest.
type RankWeights struct {
	SemanticSimilarity float64
	TitleRelevance     float64
	ContentQuality     float64
	DocumentType       float64
	Recency            float64
	SourceReliability  float64
	QueryAlignment     float64
}

func DefaultRankWeights() RankWeights {
	return RankWeights{
		SemanticSimilarity: 0.35,
		TitleRelevance:     0.20,
		ContentQuality:     0.15,
		DocumentType:       0.10,
		Recency:            0.05,
		SourceReliability:  0.10,
		QueryAlignment:     0.05,
	}
}

func (w RankWeights) normalized() RankWeights {
	def := DefaultRankWeights()
	if w.SemanticSimilarity <= 0 {
		w.SemanticSimilarity = def.SemanticSimilarity
	}
	if w.TitleRelevance <= 0 {
		w.TitleRelevance = def.TitleRelevance
	}
	if w.ContentQuality <= 0 {
		w.ContentQuality = def.ContentQuality
	}
	if w.DocumentType <= 0 {
		w.DocumentType = def.DocumentType
	}
	if w.Recency <= 0 {
		w.Recency = def.Recency
	}
	if w.SourceReliability <= 0 {
		w.SourceReliability = def.SourceReliability
	}
	if w.QueryAlignment <= 0 {
		w.QueryAlignment = def.QueryAlignment
	}
	return w
}

// BoostMultipliers are applied multiplicatively after the weighted sum.
// Each signal triggers independently and they stack.
type BoostMultipliers struct {
	OfficialDocs float64
	Tutorial     float64
	APIDoc       float64
	Example      float64
}

func DefaultBoostMultipliers() BoostMultipliers {
	return BoostMultipliers{
		OfficialDocs: 1.20,
		Tutorial:     1.10,
		APIDoc:       1.15,
		Example:      1.05,
	}
}

func (b BoostMultipliers) normalized() BoostMultipliers {
	def := DefaultBoostMultipliers()
	if b.OfficialDocs <= 0 {
		b.OfficialDocs = def.OfficialDocs
	}
	if b.Tutorial <= 0 {
		b.Tutorial = def.Tutorial
	}
	if b.APIDoc <= 0 {
		b.APIDoc = def.APIDoc
	}
	if b.Example <= 0 {
		b.Example = def.Example
	}
	return b
}

// ResultRanker assigns each candidate a single order-defining score from
// seven pure factor functions. Ties keep the input order.
type ResultRanker struct {
	weights RankWeights
	boosts  BoostMultipliers
	now     func() time.Time
}

func NewResultRanker(weights RankWeights, boosts BoostMultipliers) *ResultRanker {
	return &ResultRanker{
		weights: weights.normalized(),
		boosts:  boosts.normalized(),
		now:     time.Now,
	}
}

// Rank scores every candidate with the ranker's configured weights.
func (r *ResultRanker) Rank(query string, results []domain.SearchResult) []domain.RankedResult {
	return r.RankWithWeights(query, results, r.weights)
}

// RankWithWeights scores candidates with a per-call weight override.
// Zero fields in the override fall back to defaults.
func (r *ResultRanker) RankWithWeights(query string, results []domain.SearchResult, weights RankWeights) []domain.RankedResult {
	weights = weights.normalized()
	ranked := make([]domain.RankedResult, 0, len(results))
	for i, result := range results {
		factors := computeRankingFactors(query, result, r.now())
		score := weights.SemanticSimilarity*factors.SemanticSimilarity +
			weights.TitleRelevance*factors.TitleRelevance +
			weights.ContentQuality*factors.ContentQuality +
			weights.DocumentType*factors.DocumentType +
			weights.Recency*factors.Recency +
			weights.SourceReliability*factors.SourceReliability +
			weights.QueryAlignment*factors.QueryAlignment

		score *= r.boostMultiplier(result)

		ranked = append(ranked, domain.RankedResult{
			SearchResult: result,
			RankingScore: score,
			Factors:      factors,
			OriginalRank: i,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RankingScore > ranked[j].RankingScore
	})
	return ranked
}

func (r *ResultRanker) boostMultiplier(result domain.SearchResult) float64 {
	signal := strings.ToLower(result.SourceURL + " " + result.Filename)
	multiplier := 1.0
	if isOfficialSource(signal) {
		multiplier *= r.boosts.OfficialDocs
	}
	if strings.Contains(signal, "tutorial") {
		multiplier *= r.boosts.Tutorial
	}
	if strings.Contains(signal, "api") {
		multiplier *= r.boosts.APIDoc
	}
	if strings.Contains(signal, "example") {
		multiplier *= r.boosts.Example
	}
	return multiplier
}

func computeRankingFactors(query string, result domain.SearchResult, now time.Time) domain.RankingFactors {
	return domain.RankingFactors{
		SemanticSimilarity: clamp01(result.Similarity),
		TitleRelevance:     titleRelevanceFactor(query, result.Title),
		ContentQuality:     contentQualityFactor(result.Content),
		DocumentType:       documentTypeFactor(result.Filename, result.Content),
		Recency:            recencyFactor(result, now),
		SourceReliability:  sourceReliabilityFactor(result.SourceURL, result.Filename),
		QueryAlignment:     queryAlignmentFactor(query, result),
	}
}

// titleRelevanceFactor rewards exact and per-word query presence in the
// title, penalizing overly long titles linearly past 50 characters.
func titleRelevanceFactor(query, title string) float64 {
	if title == "" {
		return 0
	}
	lowerTitle := strings.ToLower(title)
	lowerQuery := strings.ToLower(strings.TrimSpace(query))

	score := 0.0
	if lowerQuery != "" && strings.Contains(lowerTitle, lowerQuery) {
		score += 0.8
	}

	words := strings.Fields(lowerQuery)
	longWords := 0
	matched := 0
	for _, word := range words {
		if len(word) <= 2 {
			continue
		}
		longWords++
		if strings.Contains(lowerTitle, word) {
			matched++
		}
	}
	if longWords > 0 {
		score += 0.6 * float64(matched) / float64(longWords)
	}

	if overflow := len(title) - 50; overflow > 0 {
		penalty := 1.0 - float64(overflow)/200.0
		if penalty < 0 {
			penalty = 0
		}
		score *= penalty
	}
	return clamp01(score)
}

var (
	fencedCodePattern   = regexp.MustCompile("```")
	inlineCodePattern   = regexp.MustCompile("`[^`\n]+`")
	declarationPattern  = regexp.MustCompile(`(?m)\b(def |class |function )`)
	headerPattern       = regexp.MustCompile(`(?m)^#{1,6}\s`)
	bulletListPattern   = regexp.MustCompile(`(?m)^\s*[-*]\s`)
	numberedListPattern = regexp.MustCompile(`(?m)^\s*\d+\.\s`)
	paragraphPattern    = regexp.MustCompile(`\n\s*\n`)
)

// contentQualityFactor scores length plus code-like and structural patterns.
func contentQualityFactor(content string) float64 {
	score := 0.5

	length := len(content)
	switch {
	case length > 100 && length < 2000:
		score += 0.2
	case length >= 2000 && length < 5000:
		score += 0.1
	}

	codeBonus := 0.0
	for _, pattern := range []*regexp.Regexp{fencedCodePattern, inlineCodePattern, declarationPattern} {
		matches := len(pattern.FindAllStringIndex(content, -1))
		contribution := float64(matches) * 0.02
		if contribution > 0.1 {
			contribution = 0.1
		}
		codeBonus += contribution
	}
	if codeBonus > 0.1 {
		codeBonus = 0.1
	}
	score += codeBonus

	for _, pattern := range []*regexp.Regexp{headerPattern, bulletListPattern, numberedListPattern, paragraphPattern} {
		matches := len(pattern.FindAllStringIndex(content, -1))
		contribution := float64(matches) * 0.01
		if contribution > 0.05 {
			contribution = 0.05
		}
		score += contribution
	}

	return clamp01(score)
}

// documentTypeFactor applies the first matching classification rule.
func documentTypeFactor(filename, content string) float64 {
	lowerName := strings.ToLower(filename)
	lowerContent := strings.ToLower(content)

	switch {
	case strings.Contains(lowerName, "api") || strings.Contains(lowerContent, "api"):
		return 0.9
	case strings.Contains(lowerName, "tutorial") ||
		strings.Contains(lowerContent, "step") || strings.Contains(lowerContent, "how to"):
		return 0.85
	case strings.Contains(lowerName, "example") || strings.Contains(lowerContent, "example"):
		return 0.8
	case strings.Contains(lowerName, "config") || strings.Contains(lowerContent, "config") ||
		strings.Contains(lowerName, "setup") || strings.Contains(lowerContent, "setup") ||
		strings.Contains(lowerContent, "configuration"):
		return 0.75
	case strings.Contains(lowerName, "reference") || strings.Contains(lowerName, "docs"):
		return 0.7
	default:
		return 0.6
	}
}

// recencyFactor buckets by age since ingestion; unknown timestamps are
// neutral.
func recencyFactor(result domain.SearchResult, now time.Time) float64 {
	processedAt, ok := result.ProcessedAt()
	if !ok {
		return 0.5
	}
	ageDays := now.Sub(processedAt).Hours() / 24
	switch {
	case ageDays < 30:
		return 1.0
	case ageDays < 90:
		return 0.9
	case ageDays < 180:
		return 0.8
	case ageDays < 365:
		return 0.7
	default:
		return 0.6
	}
}

func isOfficialSource(signal string) bool {
	return strings.Contains(signal, "frappeframework.com") ||
		strings.Contains(signal, "docs.frappe.io") ||
		strings.Contains(signal, "frappe.io/docs")
}

// sourceReliabilityFactor rates the origin domain and path markers.
func sourceReliabilityFactor(sourceURL, filename string) float64 {
	if sourceURL == "" && filename == "" {
		return 0.5
	}
	signal := strings.ToLower(sourceURL + " " + filename)
	switch {
	case isOfficialSource(signal):
		return 1.0
	case strings.Contains(signal, "framework_user"):
		return 0.95
	case strings.Contains(signal, "api"):
		return 0.9
	case strings.Contains(signal, "tutorial"):
		return 0.85
	default:
		return 0.7
	}
}

// queryAlignmentFactor rates how close the query that found the result is to
// the user's original question, falling back to per-strategy constants.
func queryAlignmentFactor(originalQuery string, result domain.SearchResult) float64 {
	if strings.EqualFold(strings.TrimSpace(result.QueryUsed), strings.TrimSpace(originalQuery)) {
		return 1.0
	}
	if wordOverlapSimilarity(result.QueryUsed, originalQuery) > 0.8 {
		return 0.9
	}
	switch result.SearchStrategy {
	case domain.StrategyOriginal:
		return 1.0
	case domain.StrategyTroubleshooting:
		return 0.9
	case domain.StrategyDecomposed:
		return 0.85
	case domain.StrategyExpanded:
		return 0.8
	case domain.StrategyTechnical:
		return 0.75
	default:
		return 0.7
	}
}

// wordOverlapSimilarity counts words of a with a containment relationship to
// any word of b, over the larger word count.
func wordOverlapSimilarity(a, b string) float64 {
	wordsA := strings.Fields(strings.ToLower(a))
	wordsB := strings.Fields(strings.ToLower(b))
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	matches := 0
	for _, wa := range wordsA {
		for _, wb := range wordsB {
			if strings.Contains(wa, wb) || strings.Contains(wb, wa) {
				matches++
				break
			}
		}
	}

	max := len(wordsA)
	if len(wordsB) > max {
		max = len(wordsB)
	}
	return float64(matches) / float64(max)
}
