package chunking

import (
	"strings"
	"testing"
)

func TestSplitShortTextIsOneChunk(t *testing.T) {
	splitter := NewSplitter(900, 150)

	chunks := splitter.Split("A doctype is a data model definition.")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks", len(chunks))
	}

	if got := splitter.Split("   "); got != nil {
		t.Fatalf("whitespace-only input produced %v", got)
	}
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	splitter := NewSplitter(50, 10)

	first := strings.Repeat("a", 40)
	second := strings.Repeat("b", 60)
	chunks := splitter.Split(first + "\n\n" + second)

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks: %q", len(chunks), chunks)
	}
	if chunks[0] != first {
		t.Fatalf("first chunk should stop at the paragraph break: %q", chunks[0])
	}
	if chunks[2] != strings.Repeat("b", 30) {
		t.Fatalf("tail chunk = %q", chunks[2])
	}
}

func TestSplitOverlapSharesContent(t *testing.T) {
	splitter := NewSplitter(20, 5)

	chunks := splitter.Split(strings.Repeat("x", 50))
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		if len(chunks[i-1]) < 5 {
			t.Fatalf("chunk %d too short for overlap: %q", i-1, chunks[i-1])
		}
	}
}
