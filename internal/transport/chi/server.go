package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pastq/internal/domain"
	"github.com/kailas-cloud/pastq/internal/metrics"
	healthuc "github.com/kailas-cloud/pastq/internal/usecase/health"
)

// maxDatasetBytes bounds an uploaded question dataset.
const maxDatasetBytes = 32 << 20

// maxRequestBytes bounds every other JSON body.
const maxRequestBytes = 1 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the question retrieval API.
type Server struct {
	retriever     Retriever
	ingester      Ingester
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(retriever Retriever, ingester Ingester, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		retriever: retriever,
		ingester:  ingester,
		health:    health,
		logger:    logger,
	}
	// Order matters: a rate-limiter wait that runs past the deadline wraps
	// both ErrTimeout and ErrRateLimited and must surface as a timeout.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEmptyDataset, http.StatusBadRequest, CodeEmptyDataset),
		sentinelHandler(domain.ErrInvalidArgument, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrTimeout, http.StatusGatewayTimeout, CodeTimeout),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrCollectionNotFound, http.StatusNotFound, CodeCollectionNotFound),
		sentinelHandler(domain.ErrStoreConnection, http.StatusServiceUnavailable, CodeStoreUnavailable),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProvider),
		sentinelHandler(domain.ErrExtraction, http.StatusUnprocessableEntity, CodeExtractionFailed),
	}
	return s
}

// Retrieve handles POST /v1/retrieve.
func (s *Server) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	s.retrieve(w, r, req.Question, req.K)
}

// ListQuestions handles GET /v1/questions?question=&k=.
func (s *Server) ListQuestions(w http.ResponseWriter, r *http.Request) {
	var params QuestionsParams
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, true, "question", query, &params.Question); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid query parameter question: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "k", query, &params.K); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid query parameter k: "+err.Error())
		return
	}
	var k any
	if params.K != nil {
		k = *params.K
	}
	s.retrieve(w, r, params.Question, k)
}

func (s *Server) retrieve(w http.ResponseWriter, r *http.Request, text string, rawK any) {
	if strings.TrimSpace(text) == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "question is required")
		return
	}
	k := s.retriever.NormalizeK(rawK)

	ctx, usage := domain.NewContextWithUsage(r.Context())
	env, err := s.retriever.Retrieve(ctx, text, k)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, env)
}

// ListCollections handles GET /v1/collections.
func (s *Server) ListCollections(w http.ResponseWriter, r *http.Request) {
	names, err := s.ingester.Collections(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CollectionListResponse{Items: names})
}

// LoadQuestions handles POST /v1/collections/{collection}/documents.
// The body is a JSON array of question records.
func (s *Server) LoadQuestions(w http.ResponseWriter, r *http.Request) {
	collection, ok := collectionParam(w, r)
	if !ok {
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDatasetBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	report, err := s.ingester.Load(ctx, collection, data)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusCreated, report)
}

// DeleteQuestions handles DELETE /v1/collections/{collection}/documents.
func (s *Server) DeleteQuestions(w http.ResponseWriter, r *http.Request) {
	collection, ok := collectionParam(w, r)
	if !ok {
		return
	}
	var req DeleteQuestionsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.ingester.Delete(r.Context(), collection, req.IDs); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DropCollection handles DELETE /v1/collections/{collection}.
func (s *Server) DropCollection(w http.ResponseWriter, r *http.Request) {
	collection, ok := collectionParam(w, r)
	if !ok {
		return
	}
	if err := s.ingester.Drop(r.Context(), collection); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func collectionParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	var collection string
	err := runtime.BindStyledParameterWithOptions("simple", "collection", chi.URLParam(r, "collection"),
		&collection, runtime.BindStyledParameterOptions{
			ParamLocation: runtime.ParamLocationPath,
			Explode:       false,
			Required:      true,
		})
	if err != nil || collection == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid path parameter collection")
		return "", false
	}
	return collection, true
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set(metrics.HeaderEmbeddingTokens, strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	var ee *domain.ExtractionError
	if errors.As(err, &ee) && ee.Reason != "" {
		return fmt.Sprintf("%s: %s", domain.ErrExtraction, ee.Reason)
	}
	sentinels := []error{
		domain.ErrEmptyDataset,
		domain.ErrInvalidArgument,
		domain.ErrTimeout,
		domain.ErrRateLimited,
		domain.ErrCollectionNotFound,
		domain.ErrStoreConnection,
		domain.ErrEmbeddingProviderError,
		domain.ErrExtraction,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		resp := ErrorResponse{Code: code, Message: msg}
		var re *domain.RetrievalError
		if errors.As(err, &re) {
			resp.Stage = re.Stage
		}
		writeJSON(w, status, resp)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.logger.With(zap.String("path", r.URL.Path))
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
