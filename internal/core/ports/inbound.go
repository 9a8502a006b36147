package ports

import (
	"context"
	"io"

	"github.com/anny-whatever/frappeDocChat/internal/core/domain"
)

// DocSearchService is the inbound contract for the retrieval pipeline.
// This is the single entry point the chat layer calls per user turn.
type DocSearchService interface {
	Search(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchResponse, error)
}

// ChatService answers a question with citations over the doc corpus.
type ChatService interface {
	Answer(ctx context.Context, userID, conversationID, question string, opts domain.SearchOptions) (*domain.Answer, error)
}

// PageIngestor is the inbound contract for scraped page upload orchestration.
type PageIngestor interface {
	Upload(ctx context.Context, filename, mimeType, sourceURL string, body io.Reader) (*domain.Page, error)
}

// PageReader is the inbound read model for page metadata/state.
type PageReader interface {
	GetByID(ctx context.Context, id string) (*domain.Page, error)
}

// PageProcessor is the inbound contract for asynchronous page processing.
type PageProcessor interface {
	ProcessByID(ctx context.Context, pageID string) error
}
