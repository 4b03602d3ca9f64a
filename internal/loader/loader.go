// Package loader reads documents from disk and turns them into ordered
// rag.Chunks tagged with source metadata. The reader is chosen purely by file
// extension: plain text yields the whole file as one chunk, PDF yields one
// chunk per page.
package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/54b3r/ragqa-go/internal/rag"
)

// Metadata keys attached to every chunk.
const (
	// MetaFormat is the reader that produced the chunk ("txt" or "pdf").
	MetaFormat = "format"
	// MetaPage is the 1-based page number (PDF only).
	MetaPage = "page"
	// MetaChunkIndex is the window index within a segment when splitting is enabled.
	MetaChunkIndex = "chunk_index"
)

// readFunc decodes the file at path into ordered text segments.
type readFunc func(ctx context.Context, path string) ([]rag.Chunk, error)

// readers maps a lower-case extension to its reader.
var readers = map[string]readFunc{
	".txt":  readText,
	".text": readText,
	".md":   readText,
	".pdf":  readPDF,
}

// Config holds optional splitting settings.
type Config struct {
	// ChunkSize is the maximum number of runes per chunk. Zero keeps one
	// chunk per source segment (whole text file, or one PDF page).
	ChunkSize int

	// ChunkOverlap is the number of runes shared by consecutive windows.
	// Clamped to ChunkSize/10 when not smaller than ChunkSize.
	ChunkOverlap int
}

// Loader loads files into chunks. The zero value is ready to use and does
// not split segments.
type Loader struct {
	// cfg holds the resolved splitting settings.
	cfg Config
}

// New constructs a Loader from cfg. A nil cfg disables splitting.
func New(cfg *Config) *Loader {
	l := &Loader{}
	if cfg == nil {
		return l
	}
	l.cfg = *cfg
	if l.cfg.ChunkSize < 0 {
		l.cfg.ChunkSize = 0
	}
	if l.cfg.ChunkOverlap < 0 {
		l.cfg.ChunkOverlap = 0
	}
	if l.cfg.ChunkSize > 0 && l.cfg.ChunkOverlap >= l.cfg.ChunkSize {
		l.cfg.ChunkOverlap = l.cfg.ChunkSize / 10
	}
	return l
}

// Load reads path with the default Loader.
func Load(ctx context.Context, path string) ([]rag.Chunk, error) {
	return (&Loader{}).Load(ctx, path)
}

// Load reads the file at path and returns its chunks in source order.
// Unrecognised extensions fail with rag.ErrUnsupportedFormat before the file
// is touched; unreadable or undecodable files fail with rag.ErrRead. No
// partial result is returned on failure.
func (l *Loader) Load(ctx context.Context, path string) ([]rag.Chunk, error) {
	ext := Ext(path)
	read, ok := readers[ext]
	if !ok {
		name := ext
		if name == "" {
			name = "(none)"
		}
		return nil, fmt.Errorf("loader: %w %q", rag.ErrUnsupportedFormat, name)
	}

	segments, err := read(ctx, path)
	if err != nil {
		return nil, err
	}

	if l.cfg.ChunkSize <= 0 {
		return segments, nil
	}
	return split(segments, l.cfg.ChunkSize, l.cfg.ChunkOverlap), nil
}

// Ext returns the lower-cased extension of path, including the dot.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// Supported reports whether path has an extension the loader can read.
func Supported(path string) bool {
	_, ok := readers[Ext(path)]
	return ok
}

// Extensions returns the supported extensions in sorted order.
func Extensions() []string {
	exts := make([]string, 0, len(readers))
	for ext := range readers {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}
