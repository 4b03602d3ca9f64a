package loader

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ledongthuc/pdf"

	"github.com/54b3r/ragqa-go/internal/rag"
)

// readPDF returns one chunk per page, in page order. Pages without
// extractable text produce empty-content chunks.
func readPDF(ctx context.Context, path string) (chunks []rag.Chunk, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			chunks = nil
			err = fmt.Errorf("loader: %w %s: malformed pdf: %v", rag.ErrRead, path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: %w %s: %w", rag.ErrRead, path, err)
	}
	defer f.Close()

	n := r.NumPage()
	if n <= 0 {
		return nil, fmt.Errorf("loader: %w %s: pdf has no pages", rag.ErrRead, path)
	}

	chunks = make([]rag.Chunk, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("loader: %w %s: %w", rag.ErrRead, path, err)
		}

		var text string
		page := r.Page(i)
		if !page.V.IsNull() {
			text, err = page.GetPlainText(nil)
			if err != nil {
				return nil, fmt.Errorf("loader: %w %s page %d: %w", rag.ErrRead, path, i, err)
			}
		}

		chunks = append(chunks, rag.Chunk{
			Content: text,
			Source:  path,
			Metadata: map[string]string{
				MetaFormat: "pdf",
				MetaPage:   strconv.Itoa(i),
			},
		})
	}

	return chunks, nil
}
