package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anny-whatever/frappeDocChat/internal/core/domain"
	"github.com/anny-whatever/frappeDocChat/internal/core/ports"
	"github.com/anny-whatever/frappeDocChat/internal/observability/metrics"
)

type RouterConfig struct {
	ServiceName      string
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
	Logger           *slog.Logger
}

type Router struct {
	ingestUC ports.PageIngestor
	reader   ports.PageReader
	searchUC ports.DocSearchService
	chatUC   ports.ChatService
	metrics  *metrics.HTTPServerMetrics
	cfg      RouterConfig
}

func NewRouter(
	ingestUC ports.PageIngestor,
	reader ports.PageReader,
	searchUC ports.DocSearchService,
	chatUC ports.ChatService,
	serverMetrics *metrics.HTTPServerMetrics,
	cfg RouterConfig,
) *Router {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "api"
	}
	if cfg.BackpressureWait <= 0 {
		cfg.BackpressureWait = 2 * time.Second
	}
	return &Router{
		ingestUC: ingestUC,
		reader:   reader,
		searchUC: searchUC,
		chatUC:   chatUC,
		metrics:  serverMetrics,
		cfg:      cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/pages", rt.uploadPage)
	mux.HandleFunc("/v1/pages/", rt.getPageByID)
	mux.HandleFunc("/v1/search", rt.search)
	mux.HandleFunc("/v1/chat", rt.chat)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, rt.cfg.BackpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.cfg.ServiceName, handler)
	}
	handler = accessLogMiddleware(rt.cfg.Logger, handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	page, err := rt.ingestUC.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		r.FormValue("source_url"),
		file,
	)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, page)
}

func (rt *Router) getPageByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/pages/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "page id is required"})
		return
	}

	page, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type searchRequest struct {
	Query               string  `json:"query"`
	Limit               int     `json:"limit"`
	Threshold           float64 `json:"threshold"`
	EnableRefinement    bool    `json:"enable_iterative_refinement"`
	MaxIterations       int     `json:"max_iterations"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	start := time.Now()
	response, err := rt.searchUC.Search(r.Context(), req.Query, domain.SearchOptions{
		Limit:                     req.Limit,
		Threshold:                 req.Threshold,
		EnableIterativeRefinement: req.EnableRefinement,
		MaxIterations:             req.MaxIterations,
		ConfidenceThreshold:       req.ConfidenceThreshold,
	})
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordSearchObservation(
			rt.cfg.ServiceName,
			"/v1/search",
			len(response.Results),
			response.Metadata.IterationsPerformed,
			response.Metadata.FinalConfidence,
			response.Metadata.ConvergenceReached,
			time.Since(start),
		)
		for _, strategy := range response.Metadata.StrategiesUsed {
			rt.metrics.RecordStrategyRun(rt.cfg.ServiceName, strategy)
		}
		rt.metrics.RecordDedupDropped(rt.cfg.ServiceName, response.Metadata.DuplicatesDropped)
	}
	writeJSON(w, http.StatusOK, response)
}

type chatRequest struct {
	UserID              string  `json:"user_id"`
	ConversationID      string  `json:"conversation_id"`
	Question            string  `json:"question"`
	Limit               int     `json:"limit"`
	Threshold           float64 `json:"threshold"`
	EnableRefinement    bool    `json:"enable_iterative_refinement"`
	MaxIterations       int     `json:"max_iterations"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}

func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	start := time.Now()
	answer, err := rt.chatUC.Answer(r.Context(), req.UserID, req.ConversationID, req.Question, domain.SearchOptions{
		Limit:                     req.Limit,
		Threshold:                 req.Threshold,
		EnableIterativeRefinement: req.EnableRefinement,
		MaxIterations:             req.MaxIterations,
		ConfidenceThreshold:       req.ConfidenceThreshold,
	})
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordSearchObservation(
			rt.cfg.ServiceName,
			"/v1/chat",
			len(answer.Sources),
			answer.Metadata.IterationsPerformed,
			answer.Metadata.FinalConfidence,
			answer.Metadata.ConvergenceReached,
			time.Since(start),
		)
		for _, strategy := range answer.Metadata.StrategiesUsed {
			rt.metrics.RecordStrategyRun(rt.cfg.ServiceName, strategy)
		}
		rt.metrics.RecordDedupDropped(rt.cfg.ServiceName, answer.Metadata.DuplicatesDropped)
	}
	writeJSON(w, http.StatusOK, answer)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
