// Package api exposes the RAG core to the web layer as a small JSON API:
// search, answer, reindex and health. Handlers impose deadlines on the
// core calls; a timeout degrades exactly like a provider failure.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ory/herodot"

	"github.com/afinal/feira-rag/internal/answer"
	"github.com/afinal/feira-rag/internal/indexer"
	"github.com/afinal/feira-rag/internal/retrieval"
)

// Deadlines for the core calls. Retrieval is interactive; generation and
// reindexing are allowed to run longer.
const (
	searchTimeout  = 10 * time.Second
	answerTimeout  = 60 * time.Second
	reindexTimeout = 10 * time.Minute
	healthTimeout  = 3 * time.Second
)

// Searcher is the retrieval interface the API consumes.
type Searcher interface {
	Search(ctx context.Context, query, collectionID string, topK int) ([]retrieval.Result, error)
	SearchChunks(ctx context.Context, query, collectionID string, topK int) ([]retrieval.ChunkResult, error)
}

// Answerer synthesizes grounded answers.
type Answerer interface {
	Answer(ctx context.Context, query string, results []retrieval.Result) answer.Response
}

// Reindexer rebuilds a collection's vector namespace.
type Reindexer interface {
	Reindex(ctx context.Context, collectionID string) (*indexer.Result, error)
}

// HealthChecker reports vector-database connectivity.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server routes HTTP requests to the RAG core.
type Server struct {
	mux       *http.ServeMux
	searcher  Searcher
	answerer  Answerer
	reindexer Reindexer
	health    HealthChecker
	writer    *herodot.JSONWriter
	logger    *slog.Logger
}

// NewServer creates a Server over the given core components.
func NewServer(searcher Searcher, answerer Answerer, reindexer Reindexer, health HealthChecker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mux:       http.NewServeMux(),
		searcher:  searcher,
		answerer:  answerer,
		reindexer: reindexer,
		health:    health,
		writer:    herodot.NewJSONWriter(nil),
		logger:    logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("POST /search", s.handleSearch)
	s.mux.HandleFunc("POST /answer", s.handleAnswer)
	s.mux.HandleFunc("POST /reindex", s.handleReindex)
	s.mux.HandleFunc("POST /manual/search", s.handleManualSearch)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the root HTTP handler with request logging attached.
func (s *Server) Handler() http.Handler {
	return s.loggingMiddleware(s.mux)
}

// Run starts the HTTP server on addr and blocks.
func (s *Server) Run(addr string) error {
	s.logger.Info("server starting", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

type searchRequest struct {
	Query        string `json:"query"`
	CollectionID string `json:"collection_id,omitempty"`
	TopK         int    `json:"top_k,omitempty"`
}

type searchResponse struct {
	Results []retrieval.Result `json:"results"`
	Count   int                `json:"count"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("invalid request body"))
		return
	}
	if req.Query == "" {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("query is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), searchTimeout)
	defer cancel()

	results, err := s.searcher.Search(ctx, req.Query, req.CollectionID, req.TopK)
	if err != nil {
		s.logger.Error("search failed", "error", err)
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("search failed"))
		return
	}
	if results == nil {
		results = []retrieval.Result{}
	}
	s.writer.Write(w, r, &searchResponse{Results: results, Count: len(results)})
}

type answerRequest struct {
	Query        string `json:"query"`
	CollectionID string `json:"collection_id,omitempty"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("invalid request body"))
		return
	}
	if req.Query == "" {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("query is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), answerTimeout)
	defer cancel()

	results, err := s.searcher.Search(ctx, req.Query, req.CollectionID, 0)
	if err != nil {
		s.logger.Error("retrieval for answer failed", "error", err)
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("search failed"))
		return
	}

	// The synthesizer never fails outward; worst case is the apology text.
	resp := s.answerer.Answer(ctx, req.Query, results)
	s.writer.Write(w, r, &resp)
}

type reindexRequest struct {
	CollectionID string `json:"collection_id"`
}

type reindexResponse struct {
	Total      int                    `json:"total"`
	Succeeded  int                    `json:"succeeded"`
	Failed     []indexer.FailedRecord `json:"failed"`
	DurationMS int64                  `json:"duration_ms"`
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	var req reindexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("invalid request body"))
		return
	}
	if req.CollectionID == "" {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("collection_id is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reindexTimeout)
	defer cancel()

	result, err := s.reindexer.Reindex(ctx, req.CollectionID)
	if err != nil {
		s.logger.Error("reindex failed", "collection", req.CollectionID, "error", err)
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("reindex failed"))
		return
	}
	failed := result.Failed
	if failed == nil {
		failed = []indexer.FailedRecord{}
	}
	s.writer.Write(w, r, &reindexResponse{
		Total:      result.Total,
		Succeeded:  result.Succeeded,
		Failed:     failed,
		DurationMS: result.Duration.Milliseconds(),
	})
}

type manualSearchResponse struct {
	Results []retrieval.ChunkResult `json:"results"`
	Count   int                     `json:"count"`
}

func (s *Server) handleManualSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("invalid request body"))
		return
	}
	if req.Query == "" {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("query is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), searchTimeout)
	defer cancel()

	results, err := s.searcher.SearchChunks(ctx, req.Query, req.CollectionID, req.TopK)
	if err != nil {
		s.logger.Error("manual search failed", "error", err)
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("search failed"))
		return
	}
	if results == nil {
		results = []retrieval.ChunkResult{}
	}
	s.writer.Write(w, r, &manualSearchResponse{Results: results, Count: len(results)})
}
