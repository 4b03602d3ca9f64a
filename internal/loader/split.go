package loader

import (
	"maps"
	"strconv"
	"strings"

	"github.com/54b3r/ragqa-go/internal/rag"
)

// split breaks each segment into overlapping windows of at most size runes.
// Segments that already fit are passed through with chunk_index "0".
func split(segments []rag.Chunk, size, overlap int) []rag.Chunk {
	out := make([]rag.Chunk, 0, len(segments))
	for _, seg := range segments {
		for i, text := range windows(seg.Content, size, overlap) {
			c := seg
			c.Content = text
			c.Metadata = maps.Clone(seg.Metadata)
			if c.Metadata == nil {
				c.Metadata = make(map[string]string, 1)
			}
			c.Metadata[MetaChunkIndex] = strconv.Itoa(i)
			out = append(out, c)
		}
	}
	return out
}

// windows splits text into rune windows of size with overlap runes shared
// between neighbours. Whitespace-only text yields a single window so empty
// source segments are preserved.
func windows(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= size || strings.TrimSpace(text) == "" {
		return []string{text}
	}

	step := size - overlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}
