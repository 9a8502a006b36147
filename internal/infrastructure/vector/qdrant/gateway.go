package qdrant

import (
	"context"

	"github.com/anny-whatever/frappeDocChat/internal/core/domain"
	"github.com/anny-whatever/frappeDocChat/internal/core/ports"
)

// SearchGateway pairs an embedder with the vector store so callers can search
// by raw query text.
type SearchGateway struct {
	embedder ports.Embedder
	store    ports.VectorStore
}

func NewSearchGateway(embedder ports.Embedder, store ports.VectorStore) *SearchGateway {
	return &SearchGateway{embedder: embedder, store: store}
}

func (g *SearchGateway) Search(ctx context.Context, query string, limit int, threshold float64) ([]domain.SearchResult, error) {
	vector, err := g.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnavailable, "embed query", err)
	}
	return g.store.SearchByVector(ctx, vector, limit, threshold)
}
