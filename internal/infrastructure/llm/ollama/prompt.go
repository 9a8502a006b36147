package ollama

import (
	"fmt"
	"strings"

	"github.com/anny-whatever/frappeDocChat/internal/core/domain"
)

func buildAnswerPrompt(question string, sources []domain.RankedResult) string {
	var contextBuilder strings.Builder
	for idx, src := range sources {
		contextBuilder.WriteString(fmt.Sprintf(
			"[%d] file=%s title=%s score=%.3f\n%s\n\n",
			idx+1,
			src.Filename,
			src.Title,
			src.RankingScore,
			src.Content,
		))
	}

	return fmt.Sprintf(`Answer user question only from the documentation context below.
Cite sources by their [number]. If context is insufficient, say it directly.

Question:
%s

Context:
%s
`, question, contextBuilder.String())
}
