package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/anny-whatever/frappeDocChat/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*PageRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &PageRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, filename, title, mime_type").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrPageNotFound) {
		t.Fatalf("expected ErrPageNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE pages").
		WithArgs("missing", string(domain.StatusProcessing), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.StatusProcessing, "")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrPageNotFound) {
		t.Fatalf("expected ErrPageNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarkProcessedSetsReadyStatusAndTimestamp(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	processedAt := time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE pages").
		WithArgs("page-1", string(domain.StatusReady), processedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkProcessed(context.Background(), "page-1", processedAt); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDMapsNullableProcessedAt(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "filename", "title", "mime_type", "source_url", "storage_path",
		"status", "error_message", "processed_at", "created_at", "updated_at",
	}).AddRow("page-1", "hooks.md", "Hooks", "text/markdown", "https://docs.frappe.io/hooks", "/data/page-1_hooks.md",
		string(domain.StatusUploaded), "", nil, now, now)

	mock.ExpectQuery("SELECT id, filename, title, mime_type").
		WithArgs("page-1").
		WillReturnRows(rows)

	page, err := repo.GetByID(context.Background(), "page-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if page.ProcessedAt != nil {
		t.Fatalf("expected nil ProcessedAt for unprocessed page")
	}
	if page.Status != domain.StatusUploaded {
		t.Fatalf("status = %q", page.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
