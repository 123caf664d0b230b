package chromemdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commercial-rag/internal/embedding/embeddingtest"
	"commercial-rag/internal/models"
)

func chunk(id, source, content string) models.Chunk {
	return models.Chunk{
		ID:        models.ChunkID(id),
		Source:    source,
		Path:      "/docs/" + source,
		Format:    filepath.Ext(source),
		Content:   content,
		IndexedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func corpus() []models.Chunk {
	return []models.Chunk{
		chunk("c1", "pricing.txt", "enterprise plan pricing per seat and annual discounts"),
		chunk("c2", "support.md", "support hours are nine to five on weekdays"),
		chunk("c3", "security.pdf", "data is encrypted at rest and in transit"),
		chunk("c4", "pricing.txt", "startup plan pricing is billed monthly"),
	}
}

func newManager(t *testing.T, dir string) (*VectorDBManager, *embeddingtest.Hashing) {
	t.Helper()
	emb := &embeddingtest.Hashing{Dim: 128}
	m, err := NewVectorDBManager(dir, "company_docs", dir == "", emb)
	require.NoError(t, err)
	return m, emb
}

func TestAddAndQuery(t *testing.T) {
	m, _ := newManager(t, t.TempDir())
	ctx := context.Background()

	require.Equal(t, 4, m.Add(ctx, corpus()))
	assert.Equal(t, 4, m.Count(ctx))

	results := m.Query(ctx, "enterprise pricing per seat", 2)
	require.Len(t, results, 2)
	assert.Equal(t, models.ChunkID("c1"), results[0].ChunkID)
	assert.Equal(t, "pricing.txt", results[0].Source)
	assert.Equal(t, "pricing.txt", results[0].Metadata["source"])
	assert.Equal(t, "c1", results[0].Metadata["chunk_id"])
	assert.GreaterOrEqual(t, results[0].Similarity, results[1].Similarity)
	assert.LessOrEqual(t, results[0].Similarity, 1.0001)
}

func TestQuery_EmptyQuery(t *testing.T) {
	m, emb := newManager(t, "")
	ctx := context.Background()
	m.Add(ctx, corpus())

	results := m.Query(ctx, "", 5)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Equal(t, 0, emb.QueryCall)
}

func TestQuery_TopKClampedAndDefaulted(t *testing.T) {
	m, _ := newManager(t, "")
	ctx := context.Background()
	m.Add(ctx, corpus())

	assert.Len(t, m.Query(ctx, "pricing", 50), 4)
	assert.Len(t, m.Query(ctx, "pricing", 0), 4)
}

func TestQuery_EmbedderFailureReturnsEmpty(t *testing.T) {
	m, err := NewVectorDBManager("", "company_docs", true, embeddingtest.Failing{Err: embeddingtest.ErrEmbed})
	require.NoError(t, err)
	assert.Empty(t, m.Query(context.Background(), "anything", 5))
}

func TestAdd_FailedBatchIsSkipped(t *testing.T) {
	m, emb := newManager(t, "")
	emb.FailOn = func(texts []string) bool {
		return strings.HasPrefix(texts[0], "chunk 100 ")
	}

	chunks := make([]models.Chunk, 250)
	for i := range chunks {
		chunks[i] = chunk(fmt.Sprintf("id-%d", i), "big.txt", fmt.Sprintf("chunk %d body text", i))
	}

	added := m.Add(context.Background(), chunks)
	assert.Equal(t, 150, added)
	assert.Equal(t, 150, m.Count(context.Background()))
	assert.Equal(t, 3, emb.DocCalls)
}

func TestAdd_DuplicateIDsSkipped(t *testing.T) {
	m, _ := newManager(t, "")
	chunks := []models.Chunk{
		chunk("dup", "a.txt", "first"),
		chunk("dup", "a.txt", "second"),
		chunk("", "a.txt", "no id"),
		chunk("ok", "a.txt", "third"),
	}
	assert.Equal(t, 2, m.Add(context.Background(), chunks))
}

func TestReset(t *testing.T) {
	m, _ := newManager(t, t.TempDir())
	ctx := context.Background()
	m.Add(ctx, corpus())

	require.NoError(t, m.Reset(ctx))
	assert.Equal(t, 0, m.Count(ctx))
	assert.Empty(t, m.Query(ctx, "pricing", 5))

	require.Equal(t, 1, m.Add(ctx, corpus()[:1]))
	assert.Len(t, m.Query(ctx, "pricing", 5), 1)
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	m, _ := newManager(t, dir)
	m.Add(ctx, corpus())

	reopened, _ := newManager(t, dir)
	assert.Equal(t, 4, reopened.Count(ctx))
	assert.Equal(t, models.ChunkID("c3"), reopened.Query(ctx, "encrypted at rest", 1)[0].ChunkID)
}

func TestStaging_Commit(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	m, _ := newManager(t, dir)
	m.Add(ctx, corpus())
	oldName := m.Name()

	st, err := m.NewStaging(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, st.Add(ctx, []models.Chunk{chunk("n1", "new.txt", "refund policy is thirty days")}))

	// readers still see the old collection before commit
	assert.Equal(t, 4, m.Count(ctx))

	require.NoError(t, st.Commit(ctx))
	assert.Equal(t, 1, m.Count(ctx))
	assert.NotEqual(t, oldName, m.Name())
	assert.Equal(t, "new.txt", m.Query(ctx, "refund policy", 5)[0].Source)

	_, err = os.Stat(filepath.Join(dir, pointerFile))
	require.NoError(t, err)

	reopened, _ := newManager(t, dir)
	assert.Equal(t, m.Name(), reopened.Name())
	assert.Equal(t, 1, reopened.Count(ctx))
	assert.Len(t, reopened.db.ListCollections(), 1)
}

func TestStaging_Discard(t *testing.T) {
	m, _ := newManager(t, "")
	ctx := context.Background()
	m.Add(ctx, corpus())

	st, err := m.NewStaging(ctx)
	require.NoError(t, err)
	st.Add(ctx, corpus()[:1])
	require.NoError(t, st.Discard(ctx))

	assert.Equal(t, 4, m.Count(ctx))
	assert.Len(t, m.db.ListCollections(), 1)
}

func TestNewVectorDBManager_DropsStaleGenerations(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	m, _ := newManager(t, dir)
	m.Add(ctx, corpus())

	// an interrupted rebuild leaves a staging collection behind
	st, err := m.NewStaging(ctx)
	require.NoError(t, err)
	st.Add(ctx, corpus()[:2])

	reopened, _ := newManager(t, dir)
	assert.Equal(t, "company_docs", reopened.Name())
	assert.Equal(t, 4, reopened.Count(ctx))
	assert.Len(t, reopened.db.ListCollections(), 1)
}

func TestExport(t *testing.T) {
	m, _ := newManager(t, t.TempDir())
	ctx := context.Background()
	m.Add(ctx, corpus())

	out := filepath.Join(t.TempDir(), "backup.gob")
	require.NoError(t, m.Export(ctx, out, ""))
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.Error(t, m.Export(ctx, "", ""))
}

func TestPersistence_Compressed(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	emb := &embeddingtest.Hashing{Dim: 128}

	m, err := NewVectorDBManager(dir, "company_docs", false, emb, WithCompression(true))
	require.NoError(t, err)
	m.Add(ctx, corpus())

	reopened, err := NewVectorDBManager(dir, "company_docs", false, emb, WithCompression(true))
	require.NoError(t, err)
	assert.Equal(t, 4, reopened.Count(ctx))
}
