package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"pdf-rag/internal/apperr"
	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
)

// Document is one vector record; each collection is its own table.
type Document struct {
	bun.BaseModel `bun:"table:documents"`
	ID            string          `bun:"id,pk"`
	Content       string          `bun:"content,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
	Filename      string          `bun:"filename,notnull"`
	PageIndex     int             `bun:"page_index,notnull"`
	ChunkIndex    int             `bun:"chunk_index,notnull"`
	TokenCount    *int            `bun:"token_count"`
}

type match struct {
	Content    string  `bun:"content"`
	Filename   string  `bun:"filename"`
	PageIndex  int     `bun:"page_index"`
	ChunkIndex int     `bun:"chunk_index"`
	Distance   float64 `bun:"distance"`
}

// Store keeps a collection in Postgres with the pgvector extension.
// Distances use the cosine operator <=>.
type Store struct {
	db    *bun.DB
	table string
}

func ConnectDB(cfg *config.PostgresConfig) *sql.DB {
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// NewStore binds a collection (table) name to a bun database.
func NewStore(db *bun.DB, collectionName string) *Store {
	return &Store{db: db, table: collectionName}
}

func (s *Store) Name() string { return s.table }

// InitDB enables pgvector and creates the collection table if absent.
func (s *Store) InitDB(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return apperr.UpstreamErr("init", fmt.Errorf("failed to enable pgvector: %w", err))
	}
	_, err := s.db.NewCreateTable().
		Model((*Document)(nil)).
		ModelTableExpr("?", bun.Ident(s.table)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return apperr.UpstreamErr("init", fmt.Errorf("failed to create table %s: %w", s.table, err))
	}
	return nil
}

// Upsert inserts a batch in one transaction.
func (s *Store) Upsert(ctx context.Context, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.InitDB(ctx); err != nil {
		return err
	}
	docs := make([]Document, len(records))
	for i, r := range records {
		docs[i] = Document{
			ID:         r.ID,
			Content:    r.Text,
			Embedding:  pgvector.NewVector(r.Embedding),
			Filename:   r.Metadata.Filename,
			PageIndex:  r.Metadata.PageIndex,
			ChunkIndex: r.Metadata.ChunkIndex,
			TokenCount: r.Metadata.TokenCount,
		}
	}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&docs).
			ModelTableExpr("?", bun.Ident(s.table)).
			On("CONFLICT (id) DO UPDATE").
			Set("content = EXCLUDED.content").
			Set("embedding = EXCLUDED.embedding").
			Exec(ctx)
		return err
	})
	if err != nil {
		return apperr.UpstreamErr("upsert", fmt.Errorf("failed to store documents: %w", err))
	}
	return nil
}

func (s *Store) exists(ctx context.Context) (bool, error) {
	return s.db.NewSelect().
		TableExpr("pg_catalog.pg_tables").
		Where("schemaname = current_schema()").
		Where("tablename = ?", s.table).
		Exists(ctx)
}

func (s *Store) searchQuery(vector []float32, k int) *bun.SelectQuery {
	return s.db.NewSelect().
		TableExpr("?", bun.Ident(s.table)).
		Column("content", "filename", "page_index", "chunk_index").
		ColumnExpr("embedding <=> ? AS distance", pgvector.NewVector(vector)).
		OrderExpr("distance ASC").
		Limit(k)
}

// Query returns the k nearest records by cosine distance.
func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]models.RetrievedMatch, error) {
	if len(vector) == 0 {
		return nil, apperr.Inputf("query", "query embedding is empty")
	}
	ok, err := s.exists(ctx)
	if err != nil {
		return nil, apperr.UpstreamErr("query", err)
	}
	if !ok {
		return nil, apperr.NotFoundf("query", "collection %q not found; have the documents been indexed?", s.table)
	}
	if k <= 0 {
		return nil, nil
	}

	var rows []match
	if err := s.searchQuery(vector, k).Scan(ctx, &rows); err != nil {
		return nil, apperr.UpstreamErr("query", fmt.Errorf("failed to search documents: %w", err))
	}
	out := make([]models.RetrievedMatch, len(rows))
	for i, r := range rows {
		out[i] = models.RetrievedMatch{
			Text:       r.Content,
			Filename:   r.Filename,
			PageIndex:  r.PageIndex,
			ChunkIndex: r.ChunkIndex,
			Score:      r.Distance,
		}
	}
	return out, nil
}

func (s *Store) DeleteByFilename(ctx context.Context, filename string) error {
	if filename == "" {
		return apperr.Inputf("delete", "filename is required")
	}
	ok, err := s.exists(ctx)
	if err != nil {
		return apperr.UpstreamErr("delete", err)
	}
	if !ok {
		return nil
	}
	_, err = s.db.NewDelete().
		Model((*Document)(nil)).
		ModelTableExpr("?", bun.Ident(s.table)).
		Where("filename = ?", filename).
		Exec(ctx)
	if err != nil {
		return apperr.UpstreamErr("delete", fmt.Errorf("failed to delete documents of %s: %w", filename, err))
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	ok, err := s.exists(ctx)
	if err != nil {
		return 0, apperr.UpstreamErr("count", err)
	}
	if !ok {
		return 0, apperr.NotFoundf("count", "collection %q not found", s.table)
	}
	n, err := s.db.NewSelect().TableExpr("?", bun.Ident(s.table)).Count(ctx)
	if err != nil {
		return 0, apperr.UpstreamErr("count", err)
	}
	return n, nil
}

// Drop removes the collection table.
func (s *Store) Drop(ctx context.Context) error {
	_, err := s.db.NewDropTable().
		Table(s.table).
		IfExists().
		Exec(ctx)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
