package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anny-whatever/frappeDocChat/internal/core/domain"
	"github.com/anny-whatever/frappeDocChat/internal/core/ports"
)

// ProcessPageUseCase turns a stored page into indexed, searchable chunks:
// extract -> chunk -> embed -> index, with status bookkeeping on the page row.
type ProcessPageUseCase struct {
	repo      ports.PageRepository
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	vectorDB  ports.VectorStore
}

func NewProcessPageUseCase(
	repo ports.PageRepository,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
) *ProcessPageUseCase {
	return &ProcessPageUseCase{
		repo:      repo,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		vectorDB:  vectorDB,
	}
}

func (uc *ProcessPageUseCase) ProcessByID(ctx context.Context, pageID string) error {
	if err := uc.repo.UpdateStatus(ctx, pageID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.processPipeline(ctx, pageID); err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, pageID, domain.StatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.MarkProcessed(ctx, pageID, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

func (uc *ProcessPageUseCase) processPipeline(ctx context.Context, pageID string) error {
	page, err := uc.repo.GetByID(ctx, pageID)
	if err != nil {
		return fmt.Errorf("fetch page by id: %w", err)
	}

	text, err := uc.extractor.Extract(ctx, page)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		return domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}

	chunks := uc.chunker.Split(text)
	if len(chunks) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "chunk page", errors.New("chunking produced zero chunks"))
	}

	vectors, err := uc.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}

	if err := uc.vectorDB.IndexChunks(ctx, page, chunks, vectors); err != nil {
		return fmt.Errorf("index chunks in vector db: %w", err)
	}
	return nil
}
