package helper

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFolder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, CreateFolder(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	require.NoError(t, CreateFolder(dir))
}

func TestPrettyPrint(t *testing.T) {
	var buf bytes.Buffer
	PrettyPrint(&buf, map[string]int{"chunks": 3})
	assert.Equal(t, "{\n  \"chunks\": 3\n}\n", buf.String())

	buf.Reset()
	PrettyPrint(&buf, func() {})
	assert.Empty(t, buf.String())
}

func TestForEachBatch(t *testing.T) {
	var windows [][2]int
	n := ForEachBatch(250, 100, func(start, end int) error {
		windows = append(windows, [2]int{start, end})
		if start == 100 {
			return errors.New("boom")
		}
		return nil
	})
	assert.Equal(t, [][2]int{{0, 100}, {100, 200}, {200, 250}}, windows)
	assert.Equal(t, 150, n)

	assert.Zero(t, ForEachBatch(0, 100, func(int, int) error { return nil }))
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	var sum float64
	for _, x := range Normalize([]float32{1, 2, 3, 4}) {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1, math.Sqrt(sum), 1e-6)

	assert.Equal(t, []float32{0, 0}, Normalize([]float32{0, 0}))
}
