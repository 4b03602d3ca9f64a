package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragqa-go/internal/logging"
	"github.com/54b3r/ragqa-go/internal/rag"
	"github.com/54b3r/ragqa-go/internal/version"
)

// localEnv points every component at a temp dir with the offline hash embedder.
func localEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("EMBEDDING_PROVIDER", "hash")
	t.Setenv("EMBEDDING_DIMENSIONS", "")
	t.Setenv("EMBEDDING_MODEL", "")
	t.Setenv("EMBEDDING_CACHE_REDIS_ADDR", "")
	t.Setenv("MODEL_PROVIDER", "")
	t.Setenv("INDEX_BACKEND", "bolt")
	t.Setenv("INDEX_DIR", filepath.Join(dir, "index"))
	t.Setenv("LEDGER_DB", filepath.Join(dir, "ledger.db"))
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("CHUNK_OVERLAP", "")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func TestRootCmd_Subcommands(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	want := []string{"ask", "ingest", "serve", "status", "version"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered (err=%v)", name, err)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cmd := NewVersionCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != version.String() {
		t.Errorf("got %q, want %q", got, version.String())
	}
}

func TestOpenApp_BoltWithLedger(t *testing.T) {
	localEnv(t)

	a, err := openApp(t.Context(), logging.Discard(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("openApp: %v", err)
	}
	defer a.Close()

	if a.ledger == nil {
		t.Fatal("expected ledger to be open")
	}
	// index store + ledger
	if len(a.pingers) != 2 {
		t.Errorf("pingers: got %d, want 2", len(a.pingers))
	}
	st, err := a.index.Status(t.Context())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st != rag.StatusEmpty {
		t.Errorf("fresh index status: got %s, want empty", st)
	}
}

func TestOpenApp_LedgerDisabled(t *testing.T) {
	localEnv(t)
	t.Setenv("LEDGER_DB", "disabled")

	a, err := openApp(t.Context(), logging.Discard(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("openApp: %v", err)
	}
	defer a.Close()

	if a.ledger != nil {
		t.Error("ledger should be nil when disabled")
	}
	if _, err := a.pipeline(); err != nil {
		t.Errorf("pipeline without ledger: %v", err)
	}
}

func TestOpenApp_BadBackend(t *testing.T) {
	localEnv(t)
	t.Setenv("INDEX_BACKEND", "faiss")

	if _, err := openApp(t.Context(), logging.Discard(), prometheus.NewRegistry()); err == nil {
		t.Fatal("expected error for unknown INDEX_BACKEND")
	}
}

func TestIngestThenStatus(t *testing.T) {
	dir := localEnv(t)

	doc := filepath.Join(dir, "policy.txt")
	if err := os.WriteFile(doc, []byte("Refunds are issued within 30 days of purchase."), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	ingest := NewIngestCmd()
	ingest.SetOut(&out)
	ingest.SetErr(&bytes.Buffer{})
	ingest.SetArgs([]string{"-q", doc})
	if err := ingest.ExecuteContext(t.Context()); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "Ingested 1 chunks from 1 of 1 files") {
		t.Errorf("ingest output: %q", got)
	}

	out.Reset()
	status := NewStatusCmd()
	status.SetOut(&out)
	status.SetArgs([]string{})
	if err := status.ExecuteContext(t.Context()); err != nil {
		t.Fatalf("status: %v", err)
	}
	got := out.String()
	for _, want := range []string{"populated (bolt, 1 entries)", "policy.txt", "txt"} {
		if !strings.Contains(got, want) {
			t.Errorf("status output missing %q:\n%s", want, got)
		}
	}
}

func TestIngest_FailedFileExitsNonZero(t *testing.T) {
	dir := localEnv(t)

	good := filepath.Join(dir, "a.txt")
	bad := filepath.Join(dir, "b.docx")
	for _, p := range []string{good, bad} {
		if err := os.WriteFile(p, []byte("content"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	var out bytes.Buffer
	ingest := NewIngestCmd()
	ingest.SetOut(&out)
	ingest.SetErr(&bytes.Buffer{})
	ingest.SetArgs([]string{"-q", good, bad})
	err := ingest.ExecuteContext(t.Context())
	if err == nil {
		t.Fatal("expected error when a file fails")
	}
	if !strings.Contains(err.Error(), "1 of 2 files failed") {
		t.Errorf("error: %v", err)
	}
	if !strings.Contains(out.String(), "from 1 of 2 files") {
		t.Errorf("output: %q", out.String())
	}
}
