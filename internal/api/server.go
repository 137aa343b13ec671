// Package api exposes the query service over HTTP: POST /query for
// answers, GET /srds for available collections, GET /health for liveness.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/grimoire-labs/arcane-scribe/internal/blobstore"
	"github.com/grimoire-labs/arcane-scribe/internal/llm"
	"github.com/grimoire-labs/arcane-scribe/internal/query"
	"github.com/grimoire-labs/arcane-scribe/internal/vectorindex"
)

// DefaultSRDID is assumed when a query does not name a collection.
const DefaultSRDID = "dnd5e_srd"

// QueryRequest is the POST /query body.
type QueryRequest struct {
	QueryText            string               `json:"query_text" validate:"required,min=1"`
	SRDID                string               `json:"srd_id" validate:"omitempty,min=1"`
	InvokeGenerativeLLM  bool                 `json:"invoke_generative_llm"`
	UseConversationStyle bool                 `json:"use_conversation_style"`
	GenerationConfig     llm.GenerationConfig `json:"generation_config"`
}

// QueryResponse is the successful POST /query body.
type QueryResponse struct {
	Answer                   string `json:"answer"`
	Source                   string `json:"source"`
	SourceDocumentsRetrieved int    `json:"source_documents_retrieved,omitempty"`
	SRDID                    string `json:"srd_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// SRDsResponse is the GET /srds body.
type SRDsResponse struct {
	SRDs []string `json:"srds"`
}

// Answerer runs a query end to end.
type Answerer interface {
	Answer(ctx context.Context, req query.Request) query.Result
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	processor Answerer
	store     blobstore.Store
	health    HealthChecker
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewServer creates the HTTP layer. health may be nil, in which case
// /health only reports process liveness.
func NewServer(processor Answerer, store blobstore.Store, health HealthChecker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		processor: processor,
		store:     store,
		health:    health,
		validate:  validator.New(),
		logger:    logger,
	}
}

// Handler returns the routed http.Handler for the service.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("GET /srds", s.handleSRDs)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON request body."})
		return
	}
	if req.SRDID == "" {
		req.SRDID = DefaultSRDID
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing or empty 'query_text' in request body."})
		return
	}

	result := s.processor.Answer(r.Context(), query.Request{
		QueryText:            req.QueryText,
		SRDID:                req.SRDID,
		InvokeGenerativeLLM:  req.InvokeGenerativeLLM,
		UseConversationStyle: req.UseConversationStyle,
		GenerationConfig:     req.GenerationConfig,
	})
	if result.IsError() {
		writeJSON(w, statusFor(result.Kind), errorResponse{Error: result.ErrMessage})
		return
	}

	writeJSON(w, http.StatusOK, QueryResponse{
		Answer:                   result.Answer,
		Source:                   string(result.Source),
		SourceDocumentsRetrieved: result.SourceDocumentsRetrieved,
		SRDID:                    req.SRDID,
	})
}

// handleSRDs lists collections that have a published index artifact.
func (s *Server) handleSRDs(w http.ResponseWriter, r *http.Request) {
	keys, err := s.store.List(r.Context(), "")
	if err != nil {
		s.logger.Error("failed to list collections", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to list available SRDs."})
		return
	}

	marker := path.Join(vectorindex.ArtifactPrefix, vectorindex.VectorsFile)
	seen := make(map[string]bool)
	var ids []string
	for _, key := range keys {
		srdID, rest, ok := strings.Cut(key, "/")
		if !ok || rest != marker || seen[srdID] {
			continue
		}
		seen[srdID] = true
		ids = append(ids, srdID)
	}
	sort.Strings(ids)

	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, SRDsResponse{SRDs: ids})
}

// statusFor maps the orchestrator's result taxonomy onto HTTP status codes.
func statusFor(kind query.ErrorKind) int {
	switch kind {
	case query.ErrNotFound:
		return http.StatusNotFound
	case query.ErrNotReady:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
