package helper

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/rs/zerolog/log"
)

// CreateFolder creates path and any missing parents.
func CreateFolder(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", path, err)
	}
	return nil
}

// PrettyPrint writes v as indented JSON.
func PrettyPrint(w io.Writer, v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("Error pretty printing")
		return
	}
	fmt.Fprintln(w, string(b))
}

// ForEachBatch calls fn for consecutive [start, end) windows of at most size
// items. A failing batch is logged and skipped. It returns the number of
// items covered by successful batches.
func ForEachBatch(total, size int, fn func(start, end int) error) int {
	if size <= 0 {
		size = total
	}
	ok := 0
	for start := 0; start < total; start += size {
		end := min(start+size, total)
		if err := fn(start, end); err != nil {
			log.Error().Err(err).Msgf("Error indexing batch %d-%d", start, end)
			continue
		}
		ok += end - start
	}
	return ok
}

// Normalize scales v to unit length in place and returns it. Zero vectors
// are returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
