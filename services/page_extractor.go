package services

import (
	"context"
	"fmt"
	"strings"

	"study-assistant-platform/internal/logger"

	"github.com/ledongthuc/pdf"
)

// PDFPageExtractor returns one text entry per PDF page. Pages without
// extractable text yield an empty entry so page numbers stay aligned.
type PDFPageExtractor struct{}

func NewPDFPageExtractor() *PDFPageExtractor {
	return &PDFPageExtractor{}
}

func (e *PDFPageExtractor) ExtractPages(ctx context.Context, path string) ([]string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	total := reader.NumPage()
	pages := make([]string, 0, total)
	fonts := make(map[string]*pdf.Font)

	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := page.Font(name)
				fonts[name] = &font
			}
		}

		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract page text", "path", path, "page", i, "error", err)
			pages = append(pages, "")
			continue
		}
		pages = append(pages, strings.TrimSpace(text))
	}

	return pages, nil
}
