package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/apperr"
	"pdf-rag/internal/models"
)

// LocalPDFExtractor reads the embedded text layer of a PDF page by page.
// It needs no network access but returns nothing useful for image-only scans.
type LocalPDFExtractor struct{}

func NewLocalPDFExtractor() *LocalPDFExtractor {
	return &LocalPDFExtractor{}
}

func (e *LocalPDFExtractor) Extract(ctx context.Context, filePath string) (doc *models.Document, err error) {
	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.Inputf("extract", "file %s not found", filePath)
		}
		return nil, apperr.E(apperr.Input, "extract", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, apperr.E(apperr.Input, "extract", err)
	}

	// the pdf package panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = apperr.Inputf("extract", "malformed PDF %s: %v", filepath.Base(filePath), r)
		}
	}()

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, apperr.Inputf("extract", "failed to open PDF %s: %v", filepath.Base(filePath), err)
	}

	doc = &models.Document{Filename: filepath.Base(filePath)}
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, apperr.Inputf("extract", "failed to read page %d of %s: %v", i, doc.Filename, err)
		}
		doc.Pages = append(doc.Pages, models.Page{Index: i - 1, Markdown: pageText})
	}
	log.Debug().Str("filename", doc.Filename).Int("pages", len(doc.Pages)).Msg("Extracted PDF text layer")
	return doc, nil
}
