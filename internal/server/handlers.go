package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/54b3r/ragqa-go/internal/loader"
	"github.com/54b3r/ragqa-go/internal/logging"
	"github.com/54b3r/ragqa-go/internal/rag"
	"github.com/54b3r/ragqa-go/internal/store"
)

// Stage labels used in error bodies and the stage error counter.
const (
	stageLoad     = "load"
	stageEmbed    = "embed"
	stageGenerate = "generate"
	stageRequest  = "request"
	stageInternal = "internal"
)

const (
	// maxQueryBodyBytes caps the JSON body of POST /query.
	maxQueryBodyBytes = 1 << 20
	// multipartMemory is how much of an upload is buffered in memory before
	// spilling to a temp file.
	multipartMemory = 8 << 20
	// defaultDocumentsLimit is used by GET /documents without ?limit.
	defaultDocumentsLimit = 100
)

const uploadOK = "File uploaded and indexed successfully"

// handleHealth handles GET /health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok", "service": "RAG Q&A API"})
}

// handleUpload handles POST /upload. The multipart "file" field is saved
// under the upload directory and ingested synchronously.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	// Multipart framing adds a little on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.UploadMaxBytes+(1<<20))
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.writeRequestError(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file exceeds the %d byte upload limit", s.cfg.UploadMaxBytes))
			return
		}
		s.writeRequestError(w, r, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeRequestError(w, r, http.StatusBadRequest, `multipart field "file" is required`)
		return
	}
	defer file.Close()

	if header.Size > s.cfg.UploadMaxBytes {
		s.writeRequestError(w, r, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds the %d byte upload limit", s.cfg.UploadMaxBytes))
		return
	}

	name, ok := sanitizeFilename(header.Filename)
	if !ok {
		s.writeRequestError(w, r, http.StatusBadRequest, "invalid file name")
		return
	}
	if !loader.Supported(name) {
		s.writeError(w, r, fmt.Errorf("server: %s: %w (supported: %s)",
			name, rag.ErrUnsupportedFormat, strings.Join(loader.Extensions(), ", ")))
		return
	}

	// Same-name uploads are serialised from save through ingest so each
	// request indexes the bytes it sent.
	unlock := s.lockUpload(name)
	defer unlock()

	path, written, err := s.saveUpload(name, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.uploadBytes.Add(float64(written))
	log.Info("upload: saved", slog.String("path", path), slog.Int64("bytes", written))

	chunks, err := s.ingester.Ingest(r.Context(), path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, uploadResponse{Message: uploadOK, Chunks: chunks})
}

// saveUpload writes src to a temp file in UploadDir and renames it to
// UploadDir/name, replacing any file of that name. Readers never see a
// partially written file under the final name.
func (s *Server) saveUpload(name string, src io.Reader) (string, int64, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("server: create upload dir: %w", err)
	}
	path := filepath.Join(s.cfg.UploadDir, name)
	tmp, err := os.CreateTemp(s.cfg.UploadDir, "."+name+".*.part")
	if err != nil {
		return "", 0, fmt.Errorf("server: create temp for %s: %w", path, err)
	}
	n, copyErr := io.Copy(tmp, src)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("server: save %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("server: save %s: %w", path, err)
	}
	return path, n, nil
}

// lockUpload takes the stripe lock for name and returns its unlock.
func (s *Server) lockUpload(name string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	mu := &s.uploadLocks[h.Sum32()%uint32(len(s.uploadLocks))]
	mu.Lock()
	return mu.Unlock
}

// sanitizeFilename reduces a client-supplied name to a safe base name.
// Both slash styles are treated as separators so "..\\x.txt" cannot escape.
func sanitizeFilename(name string) (string, bool) {
	name = strings.ReplaceAll(name, `\`, "/")
	base := filepath.Base(name)
	base = strings.TrimSpace(base)
	switch base {
	case "", ".", "..", "/":
		return "", false
	}
	if strings.ContainsRune(base, 0) || strings.HasPrefix(base, ".") {
		return "", false
	}
	return base, true
}

// handleQuery handles POST /query.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxQueryBodyBytes)).Decode(&req); err != nil {
		s.writeRequestError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		s.writeRequestError(w, r, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := s.answerer.Answer(r.Context(), question)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, queryResponse{Answer: answer})
}

// handleStatus handles GET /status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.index.Status(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.index.Count(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, statusResponse{Status: status.String(), Entries: n})
}

// handleDocuments handles GET /documents?limit=N.
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	limit := defaultDocumentsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeRequestError(w, r, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	resp := documentsResponse{Documents: []store.Document{}}
	if s.cfg.Documents != nil {
		docs, err := s.cfg.Documents.List(r.Context(), limit)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.Documents = docs
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// classify maps a pipeline error to an HTTP status and stage label.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, rag.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, stageLoad
	case errors.Is(err, rag.ErrRead):
		return http.StatusUnprocessableEntity, stageLoad
	case errors.Is(err, rag.ErrEmbedding):
		return http.StatusBadGateway, stageEmbed
	case errors.Is(err, rag.ErrDimensionMismatch):
		// The embedder no longer matches the vectors already in the index.
		return http.StatusConflict, stageEmbed
	case errors.Is(err, rag.ErrGeneration):
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout, stageGenerate
		}
		return http.StatusBadGateway, stageGenerate
	default:
		return http.StatusInternalServerError, stageInternal
	}
}

// writeError logs err and writes the classified JSON error body. Internal
// errors are reported generically; their detail stays in the log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, stage := classify(err)
	s.metrics.stageErrors.WithLabelValues(stage).Inc()

	log := logging.FromContext(r.Context())
	msg := err.Error()
	if stage == stageInternal {
		log.Error("request failed", slog.String("stage", stage), slog.Any("error", err))
		msg = "internal error"
	} else {
		log.Warn("request failed", slog.String("stage", stage), slog.Int("status", status), slog.Any("error", err))
	}
	writeJSON(w, r, status, errorResponse{Error: msg, Stage: stage})
}

// writeRequestError rejects a malformed request.
func (s *Server) writeRequestError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.metrics.stageErrors.WithLabelValues(stageRequest).Inc()
	writeJSON(w, r, status, errorResponse{Error: msg, Stage: stageRequest})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}
