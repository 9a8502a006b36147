package nats

import (
	"testing"
	"time"
)

func TestDecodePageScrapedEnvelope(t *testing.T) {
	enqueued := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	payload := []byte(`{"page_id":"page-123","enqueued_at":"2026-08-28T10:00:00Z"}`)

	event := decodePageScraped(payload)
	if event.PageID != "page-123" {
		t.Fatalf("page id = %q", event.PageID)
	}
	if !event.EnqueuedAt.Equal(enqueued) {
		t.Fatalf("enqueued at = %v, want %v", event.EnqueuedAt, enqueued)
	}
}

func TestDecodePageScrapedBarePageID(t *testing.T) {
	event := decodePageScraped([]byte("page-456"))
	if event.PageID != "page-456" {
		t.Fatalf("page id = %q", event.PageID)
	}
	if !event.EnqueuedAt.IsZero() {
		t.Fatalf("enqueued at = %v, want zero", event.EnqueuedAt)
	}
}
