package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestExtractPagesRejectsUnreadableFiles(t *testing.T) {
	dir := t.TempDir()
	notPDF := filepath.Join(dir, "notes.pdf")
	if err := os.WriteFile(notPDF, []byte("plain text, not a pdf"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	extractor := NewPDFPageExtractor()
	for name, path := range map[string]string{
		"missing": filepath.Join(dir, "missing.pdf"),
		"garbage": notPDF,
	} {
		t.Run(name, func(t *testing.T) {
			pages, err := extractor.ExtractPages(context.Background(), path)
			if err == nil {
				t.Fatalf("expected error, got %d pages", len(pages))
			}
		})
	}
}
