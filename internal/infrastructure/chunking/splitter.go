// Package chunking splits extracted page text into overlapping passages
// sized for embedding.
package chunking

import "strings"

// Splitter cuts text into chunks of at most ChunkSize runes with Overlap
// runes shared between neighbors. Cuts prefer paragraph and sentence
// boundaries near the window end so documentation pages are not split
// mid-sentence.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	out := make([]string, 0, len(runes)/s.ChunkSize+1)
	start := 0
	for start < len(runes) {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = snapToBoundary(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// snapToBoundary moves the cut back to the nearest paragraph break, sentence
// end or line break inside the last quarter of the window. A window without
// any boundary is cut at full size.
func snapToBoundary(runes []rune, start, end int) int {
	floor := end - (end-start)/4
	paragraph, sentence, line := -1, -1, -1
	for i := end - 1; i >= floor && i > start; i-- {
		switch runes[i] {
		case '\n':
			if runes[i-1] == '\n' && paragraph < 0 {
				paragraph = i + 1
			}
			if line < 0 {
				line = i + 1
			}
		case '.', '!', '?':
			if sentence < 0 && i+1 < end && (runes[i+1] == ' ' || runes[i+1] == '\n') {
				sentence = i + 1
			}
		}
	}
	switch {
	case paragraph > start:
		return paragraph
	case sentence > start:
		return sentence
	case line > start:
		return line
	default:
		return end
	}
}
