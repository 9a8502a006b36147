package localfs

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestSaveAndOpenRoundTrip(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := storage.Save(ctx, "page-1_doctype.md", strings.NewReader("# Doctype")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reader, err := storage.Open(ctx, "page-1_doctype.md")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	body, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(body) != "# Doctype" {
		t.Fatalf("body = %q", body)
	}
}

func TestOpenRejectsEscapingKey(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := storage.Open(context.Background(), "../../etc/passwd"); err == nil {
		t.Fatal("expected error for a key escaping the storage root")
	}
	if err := storage.Save(context.Background(), "", strings.NewReader("x")); err == nil {
		t.Fatal("expected error for an empty key")
	}
}
