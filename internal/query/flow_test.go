package query

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/54b3r/ragqa-go/internal/embedder"
	"github.com/54b3r/ragqa-go/internal/ingestion"
	"github.com/54b3r/ragqa-go/internal/loader"
)

// TestIngestThenAnswer runs real files through the loader and pipeline into a
// bolt index, then answers from that same index.
func TestIngestThenAnswer(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	refund := filepath.Join(dir, "refund.txt")
	hours := filepath.Join(dir, "hours.txt")
	for path, text := range map[string]string{
		refund: "The refund window is 30 days.",
		hours:  "The cafeteria opens at eight every weekday morning.",
	} {
		if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	ix := newIndex(t, embedder.NewHashEmbedder(0))
	p, err := ingestion.NewPipeline(loader.New(nil), ix, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	for _, path := range []string{refund, hours} {
		n, err := p.Ingest(t.Context(), path)
		if err != nil || n != 1 {
			t.Fatalf("Ingest(%s) = %d, %v; want 1 chunk", path, n, err)
		}
	}

	question := "How long is the refund window?"

	hits, err := ix.Search(t.Context(), question, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Source != refund || !strings.Contains(hits[0].Content, "refund window is 30 days") {
		t.Fatalf("top hit should be the refund file, got %+v", hits)
	}

	gen := &echoGenerator{}
	svc, err := NewService(ix, gen, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	answer, err := svc.Answer(t.Context(), question)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !strings.Contains(answer, "30 days") {
		t.Errorf("answer should be grounded in the refund file:\n%s", answer)
	}
	if gen.calls.Load() != 1 {
		t.Errorf("generator calls: want 1, got %d", gen.calls.Load())
	}
}
