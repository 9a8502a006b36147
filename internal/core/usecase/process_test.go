package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/anny-whatever/frappeDocChat/internal/core/domain"
)

type statusCall struct {
	status domain.PageStatus
	errMsg string
}

type processRepoFake struct {
	page          *domain.Page
	getErr        error
	statusErr     error
	markErr       error
	statusCalls   []statusCall
	processedID   string
	processedTime time.Time
}

func (f *processRepoFake) Create(context.Context, *domain.Page) error { return nil }

func (f *processRepoFake) GetByID(context.Context, string) (*domain.Page, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyPage := *f.page
	return &copyPage, nil
}

func (f *processRepoFake) UpdateStatus(_ context.Context, _ string, status domain.PageStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	if f.statusErr != nil {
		return f.statusErr
	}
	return nil
}

func (f *processRepoFake) MarkProcessed(_ context.Context, id string, processedAt time.Time) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.processedID = id
	f.processedTime = processedAt
	return nil
}

type extractorFake struct {
	text string
	err  error
}

func (f *extractorFake) Extract(context.Context, *domain.Page) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type chunkerFake struct {
	chunks []string
}

func (f *chunkerFake) Split(string) []string { return f.chunks }

type embedderFake struct {
	vectors [][]float32
	err     error
}

func (f *embedderFake) Embed(context.Context, []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors, nil
}

func (f *embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{0.1}, nil
}

type vectorStoreFake struct {
	indexedPage   *domain.Page
	indexedChunks []string
	err           error
}

func (f *vectorStoreFake) IndexChunks(_ context.Context, page *domain.Page, chunks []string, _ [][]float32) error {
	if f.err != nil {
		return f.err
	}
	f.indexedPage = page
	f.indexedChunks = chunks
	return nil
}

func (f *vectorStoreFake) SearchByVector(context.Context, []float32, int, float64) ([]domain.SearchResult, error) {
	return nil, errors.New("not implemented")
}

func TestProcessByIDSuccessMarksReady(t *testing.T) {
	repo := &processRepoFake{page: &domain.Page{ID: "page-1", Filename: "hooks.md"}}
	uc := NewProcessPageUseCase(
		repo,
		&extractorFake{text: "hooks content"},
		&chunkerFake{chunks: []string{"hooks content"}},
		&embedderFake{vectors: [][]float32{{0.1, 0.2}}},
		&vectorStoreFake{},
	)

	if err := uc.ProcessByID(context.Background(), "page-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if len(repo.statusCalls) != 1 || repo.statusCalls[0].status != domain.StatusProcessing {
		t.Fatalf("expected single processing status call, got %+v", repo.statusCalls)
	}
	if repo.processedID != "page-1" {
		t.Fatalf("expected MarkProcessed for page-1, got %q", repo.processedID)
	}
	if repo.processedTime.IsZero() {
		t.Fatalf("expected processed timestamp")
	}
}

func TestProcessByIDEmptyTextFailsPage(t *testing.T) {
	repo := &processRepoFake{page: &domain.Page{ID: "page-1", Filename: "empty.md"}}
	uc := NewProcessPageUseCase(
		repo,
		&extractorFake{text: ""},
		&chunkerFake{},
		&embedderFake{},
		&vectorStoreFake{},
	)

	err := uc.ProcessByID(context.Background(), "page-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input kind, got %v", err)
	}

	last := repo.statusCalls[len(repo.statusCalls)-1]
	if last.status != domain.StatusFailed || last.errMsg == "" {
		t.Fatalf("expected failed status with message, got %+v", last)
	}
}

func TestProcessByIDVectorCountMismatch(t *testing.T) {
	repo := &processRepoFake{page: &domain.Page{ID: "page-1", Filename: "hooks.md"}}
	uc := NewProcessPageUseCase(
		repo,
		&extractorFake{text: "hooks content"},
		&chunkerFake{chunks: []string{"a", "b"}},
		&embedderFake{vectors: [][]float32{{0.1}}},
		&vectorStoreFake{},
	)

	err := uc.ProcessByID(context.Background(), "page-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "vectors/chunks mismatch") {
		t.Fatalf("expected mismatch error, got %v", err)
	}
}

func TestProcessByIDIndexErrorFailsPage(t *testing.T) {
	repo := &processRepoFake{page: &domain.Page{ID: "page-1", Filename: "hooks.md"}}
	uc := NewProcessPageUseCase(
		repo,
		&extractorFake{text: "hooks content"},
		&chunkerFake{chunks: []string{"hooks content"}},
		&embedderFake{vectors: [][]float32{{0.1}}},
		&vectorStoreFake{err: errors.New("qdrant down")},
	)

	err := uc.ProcessByID(context.Background(), "page-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	last := repo.statusCalls[len(repo.statusCalls)-1]
	if last.status != domain.StatusFailed {
		t.Fatalf("expected failed status, got %+v", last)
	}
}
