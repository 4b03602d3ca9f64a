package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/54b3r/ragqa-go/internal/embedder"
	"github.com/54b3r/ragqa-go/internal/logging"
	"github.com/54b3r/ragqa-go/internal/rag"
	"github.com/54b3r/ragqa-go/internal/store"
)

// multipartRequest builds a POST /upload request with one file field.
func multipartRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v (body %q)", err, w.Body.String())
	}
	return resp
}

// ---------------------------------------------------------------------------
// GET /health
// ---------------------------------------------------------------------------

func TestHandleHealth_OK(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil)
	w := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d (body: %s)", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: expected application/json, got %q", ct)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "RAG Q&A API" {
		t.Errorf("unexpected body %v", body)
	}
}

// ---------------------------------------------------------------------------
// POST /upload
// ---------------------------------------------------------------------------

func TestHandleUpload_SavesAndIngests(t *testing.T) {
	t.Parallel()

	s, deps := newTestServer(t, nil)
	w := serve(s, multipartRequest(t, "file", "policy.txt", []byte("The refund window is 30 days.")))

	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d (body: %s)", w.Code, w.Body.String())
	}
	var resp uploadResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message != "File uploaded and indexed successfully" || resp.Chunks != 3 {
		t.Errorf("unexpected response %+v", resp)
	}

	want := filepath.Join(s.cfg.UploadDir, "policy.txt")
	if len(deps.ing.paths) != 1 || deps.ing.paths[0] != want {
		t.Fatalf("want ingest of %s, got %v", want, deps.ing.paths)
	}
	data, err := os.ReadFile(want)
	if err != nil || string(data) != "The refund window is 30 days." {
		t.Errorf("saved file mismatch: %q, %v", data, err)
	}
	if got := testutil.ToFloat64(s.metrics.uploadBytes); got != float64(len(data)) {
		t.Errorf("upload bytes: want %d, got %v", len(data), got)
	}
}

func TestHandleUpload_SanitisesPath(t *testing.T) {
	t.Parallel()

	s, deps := newTestServer(t, nil)
	w := serve(s, multipartRequest(t, "file", `..\..\etc\notes.txt`, []byte("x")))

	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d (body: %s)", w.Code, w.Body.String())
	}
	want := filepath.Join(s.cfg.UploadDir, "notes.txt")
	if deps.ing.paths[0] != want {
		t.Errorf("file must land in the upload dir: want %s, got %s", want, deps.ing.paths[0])
	}
}

func TestHandleUpload_RejectsUnsupportedBeforeSaving(t *testing.T) {
	t.Parallel()

	s, deps := newTestServer(t, nil)
	w := serve(s, multipartRequest(t, "file", "report.docx", []byte("binary")))

	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("want 415, got %d", w.Code)
	}
	if resp := decodeError(t, w); resp.Stage != "load" || !strings.Contains(resp.Error, ".docx") {
		t.Errorf("unexpected error body %+v", resp)
	}
	if len(deps.ing.paths) != 0 {
		t.Error("unsupported upload must not be ingested")
	}
	entries, _ := os.ReadDir(s.cfg.UploadDir)
	if len(entries) != 0 {
		t.Errorf("unsupported upload must not be saved, found %d entries", len(entries))
	}
}

func TestHandleUpload_BadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  func(t *testing.T) *http.Request
		want int
	}{
		{
			name: "not multipart",
			req: func(*testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("{}"))
			},
			want: http.StatusBadRequest,
		},
		{
			name: "wrong field",
			req:  func(t *testing.T) *http.Request { return multipartRequest(t, "document", "a.txt", []byte("x")) },
			want: http.StatusBadRequest,
		},
		{
			name: "hidden name",
			req:  func(t *testing.T) *http.Request { return multipartRequest(t, "file", ".env", []byte("x")) },
			want: http.StatusBadRequest,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s, deps := newTestServer(t, nil)
			w := serve(s, tc.req(t))
			if w.Code != tc.want {
				t.Fatalf("want %d, got %d (body: %s)", tc.want, w.Code, w.Body.String())
			}
			if resp := decodeError(t, w); resp.Stage != "request" {
				t.Errorf("want stage request, got %q", resp.Stage)
			}
			if len(deps.ing.paths) != 0 {
				t.Error("nothing should be ingested")
			}
		})
	}
}

func TestHandleUpload_TooLarge(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, func(c *Config) { c.UploadMaxBytes = 16 })
	w := serve(s, multipartRequest(t, "file", "big.txt", bytes.Repeat([]byte("a"), 64)))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("want 413, got %d (body: %s)", w.Code, w.Body.String())
	}
}

func TestHandleUpload_IngestErrorsMapToStage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantStage string
	}{
		{"read", fmt.Errorf("ingestion: load x: %w", rag.ErrRead), http.StatusUnprocessableEntity, "load"},
		{"embed", fmt.Errorf("ingestion: index x: %w", rag.ErrEmbedding), http.StatusBadGateway, "embed"},
		{"dimension mismatch", fmt.Errorf("ingestion: index x: %w", rag.ErrDimensionMismatch), http.StatusConflict, "embed"},
		{"other", errors.New("disk full"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s, deps := newTestServer(t, nil)
			deps.ing.err = tc.err

			w := serve(s, multipartRequest(t, "file", "a.txt", []byte("x")))
			if w.Code != tc.wantCode {
				t.Fatalf("want %d, got %d", tc.wantCode, w.Code)
			}
			resp := decodeError(t, w)
			if resp.Stage != tc.wantStage {
				t.Errorf("stage: want %q, got %q", tc.wantStage, resp.Stage)
			}
			if tc.wantStage == "internal" && resp.Error != "internal error" {
				t.Errorf("internal detail must not leak, got %q", resp.Error)
			}
			if got := testutil.ToFloat64(s.metrics.stageErrors.WithLabelValues(tc.wantStage)); got != 1 {
				t.Errorf("stage error counter: want 1, got %v", got)
			}
		})
	}
}

func TestHandleUpload_DimensionMismatchKeepsMessage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	openIndex := func(dims int) (*rag.Index, func()) {
		bs, err := rag.OpenBoltStore(dir)
		if err != nil {
			t.Fatalf("OpenBoltStore: %v", err)
		}
		ix, err := rag.NewIndex(embedder.NewHashEmbedder(dims), bs, &rag.IndexConfig{Logger: logging.Discard()})
		if err != nil {
			t.Fatalf("NewIndex: %v", err)
		}
		return ix, func() { _ = bs.Close() }
	}

	ix, closeIx := openIndex(384)
	if _, err := ix.Insert(t.Context(), []rag.Chunk{{Content: "refund window", Source: "a.txt"}}); err != nil {
		t.Fatalf("seed insert: %v", err)
	}
	closeIx()

	// Same index, smaller embedder.
	ix, closeIx = openIndex(128)
	defer closeIx()
	_, insertErr := ix.Insert(t.Context(), []rag.Chunk{{Content: "more text", Source: "b.txt"}})
	_, searchErr := ix.Search(t.Context(), "refund", 1)

	for name, err := range map[string]error{"insert": insertErr, "search": searchErr} {
		if code, stage := classify(err); code != http.StatusConflict || stage != stageEmbed {
			t.Errorf("%s: classify(%v) = %d %q, want 409 embed", name, err, code, stage)
		}
	}

	s, deps := newTestServer(t, nil)
	deps.ing.err = fmt.Errorf("ingestion: index b.txt: %w", insertErr)
	w := serve(s, multipartRequest(t, "file", "b.txt", []byte("more text")))
	if w.Code != http.StatusConflict {
		t.Fatalf("want 409, got %d", w.Code)
	}
	if resp := decodeError(t, w); !strings.Contains(resp.Error, "dimension mismatch") {
		t.Errorf("error body should explain the mismatch, got %q", resp.Error)
	}
}

func TestHandleUpload_SameNameConcurrentUploads(t *testing.T) {
	t.Parallel()

	s, deps := newTestServer(t, nil)
	deps.ing.sizeAsChunks = true

	const n = 8
	bodies := make([][]byte, n)
	for i := range bodies {
		bodies[i] = bytes.Repeat([]byte{byte('a' + i)}, 4096*(i+1))
	}

	var wg sync.WaitGroup
	codes := make([]int, n)
	chunks := make([]int, n)
	for i := range n {
		req := multipartRequest(t, "file", "shared.txt", bodies[i])
		wg.Go(func() {
			w := serve(s, req)
			codes[i] = w.Code
			var resp uploadResponse
			_ = json.NewDecoder(w.Body).Decode(&resp)
			chunks[i] = resp.Chunks
		})
	}
	wg.Wait()

	for i := range n {
		if codes[i] != http.StatusOK {
			t.Fatalf("upload %d: want 200, got %d", i, codes[i])
		}
		if chunks[i] != len(bodies[i]) {
			t.Errorf("upload %d indexed %d bytes, want its own %d", i, chunks[i], len(bodies[i]))
		}
	}
	for i, data := range deps.ing.contents {
		if len(data) == 0 || !bytes.Equal(data, bytes.Repeat(data[:1], len(data))) {
			t.Errorf("ingest %d read mixed or empty content (%d bytes)", i, len(data))
		}
	}

	entries, err := os.ReadDir(s.cfg.UploadDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "shared.txt" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("upload dir should hold only shared.txt, got %v", names)
	}
}

// ---------------------------------------------------------------------------
// POST /query
// ---------------------------------------------------------------------------

func TestHandleQuery_OK(t *testing.T) {
	t.Parallel()

	s, deps := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"question":"  What is the refund window?  "}`))
	w := serve(s, req)

	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d (body: %s)", w.Code, w.Body.String())
	}
	var resp queryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != "30 days" {
		t.Errorf("want answer %q, got %q", "30 days", resp.Answer)
	}
	if deps.ans.got != "What is the refund window?" {
		t.Errorf("question should be trimmed, got %q", deps.ans.got)
	}
}

func TestHandleQuery_Validation(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`not json`, `{}`, `{"question":"   "}`} {
		s, _ := newTestServer(t, nil)
		w := serve(s, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body)))
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: want 400, got %d", body, w.Code)
		}
	}
}

func TestHandleQuery_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantStage string
	}{
		{"embedding outage", fmt.Errorf("query: retrieve: %w", rag.ErrEmbedding), http.StatusBadGateway, "embed"},
		{"generation failure", fmt.Errorf("query: generate: %w", rag.ErrGeneration), http.StatusBadGateway, "generate"},
		{"dimension mismatch", fmt.Errorf("query: retrieve: %w", rag.ErrDimensionMismatch), http.StatusConflict, "embed"},
		{"generation timeout", fmt.Errorf("provider: %w: timed out: %w", rag.ErrGeneration, context.DeadlineExceeded), http.StatusGatewayTimeout, "generate"},
		{"status failure", errors.New("bolt: closed"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s, deps := newTestServer(t, nil)
			deps.ans.err = tc.err

			w := serve(s, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"question":"q"}`)))
			if w.Code != tc.wantCode {
				t.Fatalf("want %d, got %d", tc.wantCode, w.Code)
			}
			if resp := decodeError(t, w); resp.Stage != tc.wantStage {
				t.Errorf("stage: want %q, got %q", tc.wantStage, resp.Stage)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// GET /status, GET /documents
// ---------------------------------------------------------------------------

func TestHandleStatus(t *testing.T) {
	t.Parallel()

	s, deps := newTestServer(t, nil)
	w := serve(s, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	var resp statusResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "populated" || resp.Entries != 7 {
		t.Errorf("unexpected status %+v", resp)
	}

	deps.idx.status, deps.idx.count = rag.StatusEmpty, 0
	w = serve(s, httptest.NewRequest(http.MethodGet, "/status", nil))
	if !strings.Contains(w.Body.String(), `"status":"empty"`) {
		t.Errorf("want empty status, got %s", w.Body.String())
	}
}

func TestHandleDocuments(t *testing.T) {
	t.Parallel()

	docs := []store.Document{{ID: "1", Name: "a.txt"}, {ID: "2", Name: "b.pdf"}}
	s, _ := newTestServer(t, func(c *Config) { c.Documents = &fakeLister{docs: docs} })

	w := serve(s, httptest.NewRequest(http.MethodGet, "/documents?limit=1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	var resp documentsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Documents) != 1 || resp.Documents[0].Name != "a.txt" {
		t.Errorf("unexpected documents %+v", resp.Documents)
	}

	if w := serve(s, httptest.NewRequest(http.MethodGet, "/documents?limit=abc", nil)); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit: want 400, got %d", w.Code)
	}
}

func TestHandleDocuments_LedgerDisabled(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil)
	w := serve(s, httptest.NewRequest(http.MethodGet, "/documents", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"documents":[]`) {
		t.Errorf("want empty list, got %s", w.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"notes.txt", "notes.txt", true},
		{"../../etc/passwd.txt", "passwd.txt", true},
		{`C:\Users\me\report.pdf`, "report.pdf", true},
		{"", "", false},
		{"..", "", false},
		{"/", "", false},
		{".bashrc", "", false},
	}
	for _, tc := range cases {
		got, ok := sanitizeFilename(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("sanitizeFilename(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
