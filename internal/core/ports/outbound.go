package ports

import (
	"context"
	"io"
	"time"

	"github.com/anny-whatever/frappeDocChat/internal/core/domain"
)

// VectorSearcher is the similarity-search gateway: query text in, scored
// passages out, already sorted by descending similarity. Embedding of the
// query text is the gateway's concern.
type VectorSearcher interface {
	Search(ctx context.Context, query string, limit int, threshold float64) ([]domain.SearchResult, error)
}

// LanguageModel is a single-attempt completion call. Output is unstructured
// text that may not be valid JSON; callers parse defensively.
type LanguageModel interface {
	Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (string, error)
}

// AnswerGenerator creates the final user-facing answer from ranked passages.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, sources []domain.RankedResult) (string, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore indexes page chunks and performs raw vector search.
type VectorStore interface {
	IndexChunks(ctx context.Context, page *domain.Page, chunks []string, vectors [][]float32) error
	SearchByVector(ctx context.Context, queryVector []float32, limit int, threshold float64) ([]domain.SearchResult, error)
}

// PageRepository persists and reads scraped page state.
type PageRepository interface {
	Create(ctx context.Context, page *domain.Page) error
	GetByID(ctx context.Context, id string) (*domain.Page, error)
	UpdateStatus(ctx context.Context, id string, status domain.PageStatus, errMessage string) error
	MarkProcessed(ctx context.Context, id string, processedAt time.Time) error
}

// ObjectStorage stores raw scraped pages.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes page ingestion events. The handler
// receives the enqueue time when the payload carries one; zero otherwise.
type MessageQueue interface {
	PublishPageScraped(ctx context.Context, pageID string) error
	SubscribePageScraped(ctx context.Context, handler func(ctx context.Context, pageID string, enqueuedAt time.Time) error) error
}

// TextExtractor extracts plain text from a stored page.
type TextExtractor interface {
	Extract(ctx context.Context, page *domain.Page) (string, error)
}

// Chunker splits text into indexable chunks.
type Chunker interface {
	Split(text string) []string
}

// ConversationStore persists chat turns.
type ConversationStore interface {
	EnsureConversation(ctx context.Context, userID, conversationID string) (*domain.Conversation, error)
	NextUserTurn(ctx context.Context, userID, conversationID string) (int, error)
	AppendMessage(ctx context.Context, message domain.ConversationMessage) error
	ListRecentMessages(ctx context.Context, userID, conversationID string, limit int) ([]domain.ConversationMessage, error)
}
