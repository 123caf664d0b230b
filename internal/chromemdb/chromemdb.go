package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"gopkg.in/yaml.v3"

	"commercial-rag/internal/embedding"
	"commercial-rag/internal/helper"
	"commercial-rag/internal/models"
)

const (
	batchSize      = 100
	collectionsDir = "collections"
	pointerFile    = "active.yaml"
)

// pointer records which generation of the collection is live.
type pointer struct {
	Collection string    `yaml:"collection"`
	UpdatedAt  time.Time `yaml:"updated_at"`
}

// VectorDBManager encapsulates the chromem-go database operations. Reads
// go through the live collection pointer; Reset and staging commits swap
// it under the write lock.
type VectorDBManager struct {
	db        *chromem.DB
	embedder  embeddings.Embedder
	embedFunc chromem.EmbeddingFunc
	baseName  string
	dbPath    string
	inMemory  bool
	compress  bool

	mu         sync.RWMutex
	collection *chromem.Collection
}

type Option func(*VectorDBManager)

// WithCompression gzips the persisted collection files and exports.
func WithCompression(compress bool) Option {
	return func(m *VectorDBManager) { m.compress = compress }
}

// NewVectorDBManager opens (or creates) the store at dbPath and loads the
// live generation of collectionName. Leftover generations from interrupted
// rebuilds are deleted.
func NewVectorDBManager(dbPath, collectionName string, inMemory bool, embedder embeddings.Embedder, opts ...Option) (*VectorDBManager, error) {
	if collectionName == "" {
		collectionName = models.DefaultCollection
	}
	m := &VectorDBManager{
		embedder:  embedder,
		embedFunc: embedding.Func(embedder),
		baseName:  collectionName,
		dbPath:    dbPath,
		inMemory:  inMemory,
	}
	for _, opt := range opts {
		opt(m)
	}

	if inMemory {
		m.db = chromem.NewDB()
	} else {
		if err := helper.CreateFolder(dbPath); err != nil {
			return nil, err
		}
		db, err := chromem.NewPersistentDB(filepath.Join(dbPath, collectionsDir), m.compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
		m.db = db
	}

	active := collectionName
	if p, err := m.readPointer(); err != nil {
		log.Warn().Err(err).Msg("Ignoring unreadable collection pointer")
	} else if p != nil && m.ownsCollection(p.Collection) {
		active = p.Collection
	}

	c, err := m.db.GetOrCreateCollection(active, nil, m.embedFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	m.dropStale(active)

	log.Info().Str("collection", active).Int("count", c.Count()).Msg("Collection ready")
	return m, nil
}

// Name returns the name of the live collection.
func (m *VectorDBManager) Name() string {
	return m.current().Name
}

func (m *VectorDBManager) current() *chromem.Collection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collection
}

func (m *VectorDBManager) Add(ctx context.Context, chunks []models.Chunk) int {
	return m.addTo(ctx, m.current(), chunks)
}

func (m *VectorDBManager) addTo(ctx context.Context, c *chromem.Collection, chunks []models.Chunk) int {
	if len(chunks) == 0 {
		log.Warn().Msg("No chunks to index")
		return 0
	}
	valid := uniqueChunks(chunks)
	log.Info().Msgf("Indexing %d chunks into %s", len(valid), c.Name)

	added := helper.ForEachBatch(len(valid), batchSize, func(start, end int) error {
		return m.addBatch(ctx, c, valid[start:end])
	})

	log.Info().Msgf("Indexing complete. Total documents in collection: %d", c.Count())
	return added
}

func (m *VectorDBManager) addBatch(ctx context.Context, c *chromem.Collection, batch []models.Chunk) error {
	texts := make([]string, len(batch))
	for i, ch := range batch {
		texts[i] = ch.Content
	}
	vectors, err := m.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed batch: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("expected %d embeddings, got %d", len(batch), len(vectors))
	}

	docs := make([]chromem.Document, len(batch))
	for i, ch := range batch {
		docs[i] = chromem.Document{
			ID:        ch.ID.String(),
			Content:   ch.Content,
			Metadata:  ch.Metadata(),
			Embedding: helper.Normalize(vectors[i]),
		}
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Query performs a similarity search against the live collection.
// chromem-go reports cosine similarity, so the distance is 1 - similarity.
func (m *VectorDBManager) Query(ctx context.Context, text string, topK int) []models.SearchResult {
	results := []models.SearchResult{}
	if strings.TrimSpace(text) == "" {
		return results
	}
	if topK <= 0 {
		topK = models.DefaultTopK
	}

	c := m.current()
	n := c.Count()
	if n == 0 {
		return results
	}
	topK = min(topK, n)

	vec, err := m.embedder.EmbedQuery(ctx, text)
	if err != nil {
		log.Error().Err(err).Msg("Error embedding query")
		return results
	}

	hits, err := c.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: helper.Normalize(vec),
		NResults:       topK,
	})
	if err != nil {
		log.Error().Err(err).Msg("Error during search")
		return results
	}
	for _, h := range hits {
		distance := 1 - float64(h.Similarity)
		results = append(results, models.NewSearchResult(h.ID, h.Content, h.Metadata, distance))
	}
	return results
}

// Reset deletes the live collection and recreates it empty.
func (m *VectorDBManager) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := m.collection.Name
	if err := m.db.DeleteCollection(name); err != nil {
		log.Warn().Err(err).Str("collection", name).Msg("Collection deletion failed")
	}
	c, err := m.db.GetOrCreateCollection(name, nil, m.embedFunc)
	if err != nil {
		return fmt.Errorf("failed to recreate collection: %w", err)
	}
	m.collection = c
	log.Info().Str("collection", name).Msg("Collection reset")
	return nil
}

func (m *VectorDBManager) Count(ctx context.Context) int {
	return m.current().Count()
}

// NewStaging creates an empty collection under a fresh generation name.
func (m *VectorDBManager) NewStaging(ctx context.Context) (models.Staging, error) {
	name := fmt.Sprintf("%s-%d", m.baseName, time.Now().UnixNano())
	c, err := m.db.GetOrCreateCollection(name, nil, m.embedFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging collection: %w", err)
	}
	return &staging{m: m, c: c}, nil
}

type staging struct {
	m *VectorDBManager
	c *chromem.Collection
}

func (s *staging) Add(ctx context.Context, chunks []models.Chunk) int {
	return s.m.addTo(ctx, s.c, chunks)
}

func (s *staging) Commit(ctx context.Context) error {
	m := s.m
	m.mu.Lock()
	old := m.collection
	if err := m.writePointer(s.c.Name); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("failed to persist active collection: %w", err)
	}
	m.collection = s.c
	m.mu.Unlock()

	if old != nil && old.Name != s.c.Name {
		if err := m.db.DeleteCollection(old.Name); err != nil {
			log.Warn().Err(err).Str("collection", old.Name).Msg("Failed to drop previous collection")
		}
	}
	log.Info().Str("collection", s.c.Name).Msg("Switched live collection")
	return nil
}

func (s *staging) Discard(ctx context.Context) error {
	if err := s.m.db.DeleteCollection(s.c.Name); err != nil {
		return fmt.Errorf("failed to drop staging collection: %w", err)
	}
	return nil
}

// Export writes the live collection to filePath, encrypted when a key is
// given (chromem-go requires 32 bytes).
func (m *VectorDBManager) Export(ctx context.Context, filePath, encryptionKey string) error {
	if filePath == "" {
		return errors.New("export file path is required")
	}
	name := m.current().Name
	log.Debug().Str("collection", name).Str("file", filePath).Bool("encrypted", encryptionKey != "").Msg("Exporting collection")
	if err := m.db.ExportToFile(filePath, m.compress, encryptionKey, name); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

func (m *VectorDBManager) ownsCollection(name string) bool {
	return name == m.baseName || strings.HasPrefix(name, m.baseName+"-")
}

func (m *VectorDBManager) dropStale(active string) {
	for name := range m.db.ListCollections() {
		if name == active || !m.ownsCollection(name) {
			continue
		}
		if err := m.db.DeleteCollection(name); err != nil {
			log.Warn().Err(err).Str("collection", name).Msg("Failed to drop stale collection")
			continue
		}
		log.Info().Str("collection", name).Msg("Dropped stale collection")
	}
}

func (m *VectorDBManager) readPointer() (*pointer, error) {
	if m.inMemory {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Join(m.dbPath, pointerFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p pointer
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (m *VectorDBManager) writePointer(name string) error {
	if m.inMemory {
		return nil
	}
	data, err := yaml.Marshal(pointer{Collection: name, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	path := filepath.Join(m.dbPath, pointerFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// uniqueChunks drops chunks with an empty or repeated ID.
func uniqueChunks(chunks []models.Chunk) []models.Chunk {
	seen := make(map[models.ChunkID]bool, len(chunks))
	out := make([]models.Chunk, 0, len(chunks))
	for _, ch := range chunks {
		if ch.ID == "" || seen[ch.ID] {
			log.Warn().Str("chunk_id", ch.ID.String()).Str("source", ch.Source).Msg("Skipping chunk with missing or duplicate id")
			continue
		}
		seen[ch.ID] = true
		out = append(out, ch)
	}
	return out
}
