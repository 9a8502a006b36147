// Package extractor dispatches text extraction by MIME type or file
// extension. Markdown and HTML pages go through the plaintext path, PDF
// exports through the pdf path.
package extractor

import (
	"context"
	"strings"

	"github.com/anny-whatever/frappeDocChat/internal/core/domain"
	"github.com/anny-whatever/frappeDocChat/internal/core/ports"
)

type Composite struct {
	plaintext ports.TextExtractor
	pdf       ports.TextExtractor
}

func NewComposite(plaintext, pdf ports.TextExtractor) *Composite {
	return &Composite{plaintext: plaintext, pdf: pdf}
}

func (c *Composite) Extract(ctx context.Context, page *domain.Page) (string, error) {
	if isPDF(page) {
		return c.pdf.Extract(ctx, page)
	}
	return c.plaintext.Extract(ctx, page)
}

func isPDF(page *domain.Page) bool {
	if strings.EqualFold(strings.TrimSpace(page.MimeType), "application/pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(page.Filename), ".pdf")
}
