package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anny-whatever/frappeDocChat/internal/core/domain"
	"github.com/anny-whatever/frappeDocChat/internal/core/ports"
)

// IngestPageUseCase stores a scraped page, records its metadata, and emits
// the ingestion event the worker processes asynchronously.
type IngestPageUseCase struct {
	repo    ports.PageRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestPageUseCase(
	repo ports.PageRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestPageUseCase {
	return &IngestPageUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

func (uc *IngestPageUseCase) Upload(
	ctx context.Context,
	filename, mimeType, sourceURL string,
	body io.Reader,
) (*domain.Page, error) {
	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	page := &domain.Page{
		ID:          id,
		Filename:    filename,
		Title:       titleFromFilename(filename),
		MimeType:    mimeType,
		SourceURL:   sourceURL,
		StoragePath: storageKey,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, page); err != nil {
		return nil, fmt.Errorf("create page metadata: %w", err)
	}

	if err := uc.queue.PublishPageScraped(ctx, page.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	return page, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "page.bin"
	}
	return base
}

func titleFromFilename(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.TrimSpace(base)
}
