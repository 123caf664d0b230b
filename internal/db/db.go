package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"commercial-rag/internal/config"
	"commercial-rag/internal/helper"
	"commercial-rag/internal/models"
)

const batchSize = 100

// Document is one indexed chunk row.
type Document struct {
	bun.BaseModel `bun:"table:company_docs,alias:d"`
	ID            string            `bun:"id,pk"`
	Content       string            `bun:"content,notnull"`
	Metadata      map[string]string `bun:"metadata,type:jsonb"`
	Embedding     pgvector.Vector   `bun:"embedding,type:vector,notnull"`
	Distance      float64           `bun:"distance,scanonly"`
}

func ConnectDB(cfg *config.DatabaseConfig) *sql.DB {
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.URL)))
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(debug)))
	return db
}

// PGVectorIndex stores chunk vectors in a Postgres table with the pgvector
// extension. The live table always carries the base name; rebuilds fill a
// side table and rename it into place.
type PGVectorIndex struct {
	db       *bun.DB
	embedder embeddings.Embedder

	// mu serializes table swaps against readers.
	mu    sync.RWMutex
	table string
}

// NewPGVectorIndex enables the vector extension and creates the table.
func NewPGVectorIndex(ctx context.Context, db *bun.DB, table string, embedder embeddings.Embedder) (*PGVectorIndex, error) {
	if table == "" {
		table = models.DefaultCollection
	}
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return nil, fmt.Errorf("failed to enable pgvector: %w", err)
	}
	p := &PGVectorIndex{db: db, embedder: embedder, table: table}
	if err := createTable(ctx, db, table); err != nil {
		return nil, err
	}
	if err := p.dropStaleStaging(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// dropStaleStaging removes staging tables left behind by an interrupted
// rebuild.
func (p *PGVectorIndex) dropStaleStaging(ctx context.Context) error {
	var names []string
	if err := p.stagingTablesQuery().Scan(ctx, &names); err != nil {
		return fmt.Errorf("failed to list staging tables: %w", err)
	}
	for _, name := range staleStagingTables(p.table, names) {
		if err := dropTable(ctx, p.db, name); err != nil {
			return fmt.Errorf("failed to drop staging table %s: %w", name, err)
		}
		log.Info().Str("table", name).Msg("Dropped stale staging table")
	}
	return nil
}

func (p *PGVectorIndex) stagingTablesQuery() *bun.SelectQuery {
	return p.db.NewSelect().
		Column("tablename").
		Table("pg_tables").
		Where("schemaname = current_schema()").
		Where("tablename LIKE ?", p.table+"_staging_%")
}

// staleStagingTables keeps the names that are exactly <table>_staging_<ns>.
// LIKE treats "_" as a wildcard, so the listing may hold near misses.
func staleStagingTables(table string, names []string) []string {
	prefix := table + "_staging_"
	var stale []string
	for _, name := range names {
		ns, ok := strings.CutPrefix(name, prefix)
		if !ok || ns == "" {
			continue
		}
		if _, err := strconv.ParseInt(ns, 10, 64); err != nil {
			continue
		}
		stale = append(stale, name)
	}
	return stale
}

func createTable(ctx context.Context, idb bun.IDB, table string) error {
	_, err := idb.NewCreateTable().
		Model((*Document)(nil)).
		ModelTableExpr("?", bun.Ident(table)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return nil
}

func dropTable(ctx context.Context, idb bun.IDB, table string) error {
	_, err := idb.NewDropTable().Table(table).IfExists().Exec(ctx)
	return err
}

func (p *PGVectorIndex) Add(ctx context.Context, chunks []models.Chunk) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.addTo(ctx, p.table, chunks)
}

func (p *PGVectorIndex) addTo(ctx context.Context, table string, chunks []models.Chunk) int {
	if len(chunks) == 0 {
		return 0
	}
	valid := uniqueChunks(chunks)
	log.Info().Msgf("Indexing %d chunks into %s", len(valid), table)
	return helper.ForEachBatch(len(valid), batchSize, func(start, end int) error {
		return p.insertBatch(ctx, table, valid[start:end])
	})
}

func (p *PGVectorIndex) insertBatch(ctx context.Context, table string, batch []models.Chunk) error {
	texts := make([]string, len(batch))
	for i, ch := range batch {
		texts[i] = ch.Content
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed batch: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("expected %d embeddings, got %d", len(batch), len(vectors))
	}
	docs := toDocuments(batch, vectors)
	_, err = p.db.NewInsert().Model(&docs).ModelTableExpr("?", bun.Ident(table)).Exec(ctx)
	return err
}

func toDocuments(chunks []models.Chunk, vectors [][]float32) []Document {
	docs := make([]Document, len(chunks))
	for i, ch := range chunks {
		docs[i] = Document{
			ID:        ch.ID.String(),
			Content:   ch.Content,
			Metadata:  ch.Metadata(),
			Embedding: pgvector.NewVector(vectors[i]),
		}
	}
	return docs
}

// searchQuery orders rows by cosine distance to vec.
func (p *PGVectorIndex) searchQuery(dest *[]Document, table string, vec pgvector.Vector, k int) *bun.SelectQuery {
	return p.db.NewSelect().
		Model(dest).
		ModelTableExpr("? AS d", bun.Ident(table)).
		Column("id", "content", "metadata").
		ColumnExpr("d.embedding <=> ? AS distance", vec).
		OrderExpr("distance").
		Limit(k)
}

func (p *PGVectorIndex) Query(ctx context.Context, text string, topK int) []models.SearchResult {
	if strings.TrimSpace(text) == "" {
		return []models.SearchResult{}
	}
	if topK <= 0 {
		topK = models.DefaultTopK
	}
	vec, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		log.Error().Err(err).Msg("Error embedding query")
		return []models.SearchResult{}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	var docs []Document
	if err := p.searchQuery(&docs, p.table, pgvector.NewVector(vec), topK).Scan(ctx); err != nil {
		log.Error().Err(err).Msg("Error during search")
		return []models.SearchResult{}
	}
	return toResults(docs)
}

func toResults(docs []Document) []models.SearchResult {
	results := make([]models.SearchResult, 0, len(docs))
	for _, d := range docs {
		results = append(results, models.NewSearchResult(d.ID, d.Content, d.Metadata, d.Distance))
	}
	return results
}

func (p *PGVectorIndex) Reset(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := dropTable(ctx, p.db, p.table); err != nil {
		log.Warn().Err(err).Str("table", p.table).Msg("Table deletion failed")
	}
	return createTable(ctx, p.db, p.table)
}

func (p *PGVectorIndex) Count(ctx context.Context) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n, err := p.db.NewSelect().TableExpr("?", bun.Ident(p.table)).Count(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Error counting documents")
		return 0
	}
	return n
}

func (p *PGVectorIndex) NewStaging(ctx context.Context) (models.Staging, error) {
	name := fmt.Sprintf("%s_staging_%d", p.table, time.Now().UnixNano())
	if err := createTable(ctx, p.db, name); err != nil {
		return nil, err
	}
	return &staging{p: p, table: name}, nil
}

type staging struct {
	p     *PGVectorIndex
	table string
}

func (s *staging) Add(ctx context.Context, chunks []models.Chunk) int {
	return s.p.addTo(ctx, s.table, chunks)
}

// Commit replaces the live table inside one transaction so readers never
// see a missing or half-filled table.
func (s *staging) Commit(ctx context.Context) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	return s.p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := dropTable(ctx, tx, s.p.table); err != nil {
			return fmt.Errorf("failed to drop live table: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "ALTER TABLE ? RENAME TO ?", bun.Ident(s.table), bun.Ident(s.p.table)); err != nil {
			return fmt.Errorf("failed to rename staging table: %w", err)
		}
		return nil
	})
}

func (s *staging) Discard(ctx context.Context) error {
	return dropTable(ctx, s.p.db, s.table)
}

func uniqueChunks(chunks []models.Chunk) []models.Chunk {
	seen := make(map[models.ChunkID]bool, len(chunks))
	out := make([]models.Chunk, 0, len(chunks))
	for _, ch := range chunks {
		if ch.ID == "" || seen[ch.ID] {
			log.Warn().Str("chunk_id", ch.ID.String()).Msg("Skipping chunk with missing or duplicate id")
			continue
		}
		seen[ch.ID] = true
		out = append(out, ch)
	}
	return out
}
