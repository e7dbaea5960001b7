package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/apperr"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/models"
)

// VectorDBManager keeps one named collection of a chromem-go database.
// Distances are cosine distances: 1 - cosine similarity.
type VectorDBManager struct {
	db             *chromem.DB
	dbPath         string
	collectionName string
	compress       bool
}

// NewVectorDBManager opens (or creates) a persistent database at dbPath.
// The collection itself is created on first upsert.
func NewVectorDBManager(dbPath, collectionName string, compress bool) (*VectorDBManager, error) {
	if err := helper.CreateFolder(dbPath); err != nil {
		return nil, err
	}
	db, err := chromem.NewPersistentDB(dbPath, compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	return &VectorDBManager{
		db:             db,
		dbPath:         dbPath,
		collectionName: collectionName,
		compress:       compress,
	}, nil
}

// NewInMemoryVectorDBManager is a non-persistent manager, mostly for tests.
func NewInMemoryVectorDBManager(collectionName string) *VectorDBManager {
	return &VectorDBManager{db: chromem.NewDB(), collectionName: collectionName}
}

func (m *VectorDBManager) Name() string { return m.collectionName }

// collection returns the managed collection; with create false a missing
// collection yields nil.
func (m *VectorDBManager) collection(create bool) (*chromem.Collection, error) {
	if !create {
		return m.db.GetCollection(m.collectionName, nil), nil
	}
	c, err := m.db.GetOrCreateCollection(m.collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	return c, nil
}

// Upsert adds records, creating the collection if absent.
func (m *VectorDBManager) Upsert(ctx context.Context, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	c, err := m.collection(true)
	if err != nil {
		return apperr.UpstreamErr("upsert", err)
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.ID,
			Content:   r.Text,
			Metadata:  encodeMetadata(r.Metadata),
			Embedding: r.Embedding,
		}
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return apperr.UpstreamErr("upsert", fmt.Errorf("failed to add documents: %w", err))
	}
	return nil
}

// Query returns up to k nearest records ascending by distance. A collection
// that was never created is a NotFound error; an empty one yields no matches.
func (m *VectorDBManager) Query(ctx context.Context, vector []float32, k int) ([]models.RetrievedMatch, error) {
	if len(vector) == 0 {
		return nil, apperr.Inputf("query", "query embedding is empty")
	}
	c, err := m.collection(false)
	if err != nil {
		return nil, apperr.UpstreamErr("query", err)
	}
	if c == nil {
		return nil, apperr.NotFoundf("query", "collection %q not found in %q; have the documents been indexed?", m.collectionName, m.dbPath)
	}

	// chromem rejects nResults above the document count
	n := min(k, c.Count())
	if n <= 0 {
		return nil, nil
	}
	results, err := c.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, apperr.UpstreamErr("query", fmt.Errorf("failed to query by similarity: %w", err))
	}

	matches := make([]models.RetrievedMatch, 0, len(results))
	for _, r := range results {
		meta := decodeMetadata(r.Metadata)
		matches = append(matches, models.RetrievedMatch{
			Text:       r.Content,
			Filename:   meta.Filename,
			PageIndex:  meta.PageIndex,
			ChunkIndex: meta.ChunkIndex,
			Score:      1 - float64(r.Similarity),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score < matches[j].Score })
	return matches, nil
}

// DeleteByFilename removes every record whose metadata filename matches.
func (m *VectorDBManager) DeleteByFilename(ctx context.Context, filename string) error {
	if filename == "" {
		return apperr.Inputf("delete", "filename is required")
	}
	c, err := m.collection(false)
	if err != nil {
		return apperr.UpstreamErr("delete", err)
	}
	if c == nil {
		return nil
	}
	if err := c.Delete(ctx, map[string]string{models.MetaFilename: filename}, nil); err != nil {
		return apperr.UpstreamErr("delete", fmt.Errorf("failed to delete documents of %s: %w", filename, err))
	}
	return nil
}

// Count returns the number of records; a missing collection is a NotFound error.
func (m *VectorDBManager) Count(_ context.Context) (int, error) {
	c, err := m.collection(false)
	if err != nil {
		return 0, apperr.UpstreamErr("count", err)
	}
	if c == nil {
		return 0, apperr.NotFoundf("count", "collection %q not found", m.collectionName)
	}
	return c.Count(), nil
}

// Drop deletes the collection and its persisted files.
func (m *VectorDBManager) Drop(_ context.Context) error {
	if err := m.db.DeleteCollection(m.collectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// Export writes the collection to a single backup file, encrypted when
// encryptionKey (32 bytes) is set.
func (m *VectorDBManager) Export(filePath, encryptionKey string) error {
	c, err := m.collection(false)
	if err != nil {
		return err
	}
	if c == nil {
		return apperr.NotFoundf("export", "collection %q not found", m.collectionName)
	}
	log.Debug().Str("collection", m.collectionName).Str("file", filePath).Bool("compress", m.compress).Msg("Exporting collection")
	if err := m.db.ExportToFile(filePath, m.compress, encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import loads the collection from a backup written by Export.
func (m *VectorDBManager) Import(filePath, encryptionKey string) error {
	if filePath == "" {
		return errors.New("import file path is required")
	}
	if err := m.db.ImportFromFile(filePath, encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	return nil
}

// Close is a no-op: chromem persists every write immediately.
func (m *VectorDBManager) Close() error { return nil }

func encodeMetadata(meta models.ChunkMetadata) map[string]string {
	out := map[string]string{
		models.MetaFilename:   meta.Filename,
		models.MetaPageIndex:  strconv.Itoa(meta.PageIndex),
		models.MetaChunkIndex: strconv.Itoa(meta.ChunkIndex),
	}
	if meta.TokenCount != nil {
		out[models.MetaTokenCount] = strconv.Itoa(*meta.TokenCount)
	}
	return out
}

func decodeMetadata(meta map[string]string) models.ChunkMetadata {
	out := models.ChunkMetadata{Filename: meta[models.MetaFilename]}
	out.PageIndex, _ = strconv.Atoi(meta[models.MetaPageIndex])
	out.ChunkIndex, _ = strconv.Atoi(meta[models.MetaChunkIndex])
	if v, ok := meta[models.MetaTokenCount]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			out.TokenCount = &n
		}
	}
	return out
}
