package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragqa-go/internal/rag"
	"github.com/54b3r/ragqa-go/internal/store"
)

// DefaultUploadDir is where uploaded files are saved before ingestion.
const DefaultUploadDir = "data/documents"

// DefaultUploadMaxBytes caps the size of a single uploaded file (32 MiB).
const DefaultUploadMaxBytes int64 = 32 << 20

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// cover a full ingest or generation round trip.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /ready.
	// If empty, /ready returns 200 with no checks.
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on /upload and
	// /query (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on protected routes.
	// If empty, authentication is disabled.
	APIKey string
	// UploadDir is the directory uploaded files are saved to.
	UploadDir string
	// UploadMaxBytes caps the multipart file size.
	UploadMaxBytes int64
	// Documents lists the ledger for GET /documents. Nil yields an empty list.
	Documents DocumentLister
	// MetricsRegistry receives the server's collectors. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// Ingester indexes a saved file. *ingestion.Pipeline satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, path string) (int, error)
}

// Answerer answers a question. *query.Service satisfies it.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// IndexReporter reports index occupancy for GET /status. *rag.Index satisfies it.
type IndexReporter interface {
	Status(ctx context.Context) (rag.IndexStatus, error)
	Count(ctx context.Context) (int, error)
}

// DocumentLister is the read side of the ingestion ledger.
type DocumentLister interface {
	List(ctx context.Context, limit int) ([]store.Document, error)
}

// Server is the HTTP front end for ingestion and question answering.
type Server struct {
	// ingester indexes uploaded files.
	ingester Ingester
	// answerer answers questions.
	answerer Answerer
	// index reports occupancy for /status.
	index IndexReporter
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// handler is the fully wrapped router, exposed to tests via Handler.
	handler http.Handler
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors for this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
	// uploadLocks serialise uploads that share a file name, striped by name hash.
	uploadLocks [16]sync.Mutex
}

// queryRequest is the JSON body for POST /query.
type queryRequest struct {
	// Question is the natural-language question to answer.
	Question string `json:"question"`
}

// queryResponse is the JSON body returned by POST /query.
type queryResponse struct {
	Answer string `json:"answer"`
}

// uploadResponse is the JSON body returned by POST /upload.
type uploadResponse struct {
	Message string `json:"message"`
	// Chunks is the number of index entries created from the file.
	Chunks int `json:"chunks"`
}

// statusResponse is the JSON body returned by GET /status.
type statusResponse struct {
	// Status is "empty" or "populated".
	Status string `json:"status"`
	// Entries is the number of chunks in the index.
	Entries int `json:"entries"`
}

// documentsResponse is the JSON body returned by GET /documents.
type documentsResponse struct {
	Documents []store.Document `json:"documents"`
}

// errorResponse is the JSON body for every non-2xx response produced by a
// handler.
type errorResponse struct {
	// Error is the human-readable failure message.
	Error string `json:"error"`
	// Stage names the pipeline stage that failed: load, embed, generate,
	// request or internal.
	Stage string `json:"stage"`
}
