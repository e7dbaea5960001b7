// Package ingest runs uploaded documents through extraction, chunking and indexing.
package ingest

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"pdf-rag/internal/apperr"
	"pdf-rag/internal/chunkstore"
	"pdf-rag/internal/config"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/models"
	"pdf-rag/internal/parser"
)

// Source is one document to ingest. Open is called at most once.
type Source struct {
	Filename    string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// FileSource reads a local file, sniffing its content type from the first bytes.
func FileSource(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return Source{}, apperr.Inputf("ingest", "failed to open %s: %v", path, err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Source{}, apperr.Inputf("ingest", "failed to read %s: %v", path, err)
	}
	return Source{
		Filename:    filepath.Base(path),
		ContentType: http.DetectContentType(head[:n]),
		Open:        func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// FileSources builds one Source per path. A path that cannot be read still
// yields a Source, whose Open reports the failure, so the pipeline records it
// against that file alone.
func FileSources(paths []string) []Source {
	sources := make([]Source, 0, len(paths))
	for _, path := range paths {
		src, err := FileSource(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to read source file")
			src = Source{
				Filename:    filepath.Base(path),
				ContentType: models.PDFContentType,
				Open:        func() (io.ReadCloser, error) { return nil, err },
			}
		}
		sources = append(sources, src)
	}
	return sources
}

// Indexer is the part of indexer.Indexer the pipeline needs.
type Indexer interface {
	IndexFile(ctx context.Context, path string) (*models.IndexResult, error)
}

// FileResult is the outcome for one source. Err is set on failure.
type FileResult struct {
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
	Vectors  int    `json:"vectors"`
	Error    string `json:"error,omitempty"`
	Err      error  `json:"-"`
}

// Report summarises an ingestion call; Results follows input order.
type Report struct {
	Message          string       `json:"message"`
	DocumentsIndexed int          `json:"documents_indexed"`
	TotalChunks      int          `json:"total_chunks"`
	Results          []FileResult `json:"results"`
}

// FirstError returns the first per-file failure, or nil.
func (r *Report) FirstError() error {
	for _, res := range r.Results {
		if res.Err != nil {
			return res.Err
		}
	}
	return nil
}

type Pipeline struct {
	extractor models.Extractor
	chunker   *parser.Chunker
	indexer   Indexer
	store     models.VectorStore
	uploadDir string
	chunkDir  string
	policy    string
	workers   int
}

type Options struct {
	UploadDir     string
	ChunkDir      string
	ReindexPolicy string
	Workers       int
}

func NewPipeline(extractor models.Extractor, chunker *parser.Chunker, ix Indexer, store models.VectorStore, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.ReindexPolicy == "" {
		opts.ReindexPolicy = config.ReindexReplace
	}
	return &Pipeline{
		extractor: extractor,
		chunker:   chunker,
		indexer:   ix,
		store:     store,
		uploadDir: opts.UploadDir,
		chunkDir:  opts.ChunkDir,
		policy:    opts.ReindexPolicy,
		workers:   opts.Workers,
	}
}

// Ingest processes every source. A failing source is recorded in the report
// and does not stop the others; the returned error is reserved for calls
// that could not start at all.
func (p *Pipeline) Ingest(ctx context.Context, sources []Source) (*Report, error) {
	if len(sources) == 0 {
		return nil, apperr.Inputf("ingest", "no files sent")
	}

	results := make([]FileResult, len(sources))
	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, src := range sources {
		g.Go(func() error {
			results[i] = p.ingestOne(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{Results: results}
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		report.DocumentsIndexed++
		report.TotalChunks += res.Chunks
	}
	switch {
	case report.DocumentsIndexed == len(results):
		report.Message = "Documents processed successfully"
	case report.DocumentsIndexed > 0:
		report.Message = "Some documents could not be processed"
	default:
		report.Message = "No documents were processed"
	}
	log.Info().Int("documents_indexed", report.DocumentsIndexed).Int("total_chunks", report.TotalChunks).
		Int("failed", len(results)-report.DocumentsIndexed).Msg("Ingestion finished")
	return report, nil
}

func (p *Pipeline) ingestOne(ctx context.Context, src Source) FileResult {
	res := FileResult{Filename: src.Filename}
	chunks, vectors, err := p.process(ctx, src)
	if err != nil {
		log.Error().Err(err).Str("filename", src.Filename).Msg("Failed to ingest document")
		res.Err = err
		res.Error = err.Error()
		return res
	}
	res.Chunks, res.Vectors = chunks, vectors
	return res
}

func (p *Pipeline) process(ctx context.Context, src Source) (int, int, error) {
	if !isPDF(src.ContentType) {
		return 0, 0, apperr.E(apperr.Input, "ingest", fmt.Errorf("%s: %w", src.Filename, apperr.ErrNotPDF))
	}
	name := helper.SecureFilename(src.Filename)
	if name == "" {
		return 0, 0, apperr.Inputf("ingest", "%q is not a usable file name", src.Filename)
	}
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	pdfPath, err := p.saveUpload(src, name)
	if err != nil {
		return 0, 0, err
	}

	doc, err := p.extractor.Extract(ctx, pdfPath)
	if err != nil {
		return 0, 0, err
	}
	chunks, err := p.chunker.Chunk(doc.Pages, name)
	if err != nil {
		return 0, 0, err
	}

	chunkPath := chunkstore.PathFor(p.chunkDir, name)
	if err := chunkstore.Save(chunks, chunkPath); err != nil {
		return 0, 0, err
	}
	log.Debug().Str("filename", name).Int("chunks", len(chunks)).Str("path", chunkPath).Msg("Saved chunk file")

	if p.policy == config.ReindexReplace {
		if err := p.store.DeleteByFilename(ctx, name); err != nil {
			return 0, 0, err
		}
	}

	result, err := p.indexer.IndexFile(ctx, chunkPath)
	if err != nil {
		return 0, 0, err
	}
	return len(chunks), result.NVectors, nil
}

// saveUpload copies the source into the upload directory under name.
func (p *Pipeline) saveUpload(src Source, name string) (string, error) {
	if err := helper.CreateFolder(p.uploadDir); err != nil {
		return "", err
	}
	rc, err := src.Open()
	if err != nil {
		if apperr.Is(err, apperr.Input) {
			return "", err
		}
		return "", apperr.Inputf("ingest", "failed to read %s: %v", src.Filename, err)
	}
	defer rc.Close()

	path := filepath.Join(p.uploadDir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return "", apperr.Inputf("ingest", "failed to store %s: %v", src.Filename, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}

func isPDF(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == models.PDFContentType
}
