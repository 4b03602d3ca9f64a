package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/54b3r/ragqa-go/internal/rag"
)

// utf8BOM is stripped from the start of text files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readText returns the whole file as a single chunk. The content must be
// valid UTF-8.
func readText(ctx context.Context, path string) ([]rag.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("loader: %w %s: %w", rag.ErrRead, path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: %w %s: %w", rag.ErrRead, path, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("loader: %w %s: content is not valid UTF-8", rag.ErrRead, path)
	}

	return []rag.Chunk{{
		Content:  string(data),
		Source:   path,
		Metadata: map[string]string{MetaFormat: "txt"},
	}}, nil
}
