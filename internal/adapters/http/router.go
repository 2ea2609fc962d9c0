package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/flowmindlabs/flowmind-rag/internal/core/domain"
	"github.com/flowmindlabs/flowmind-rag/internal/core/ports"
	"github.com/flowmindlabs/flowmind-rag/internal/observability/metrics"
)

type Router struct {
	answers  ports.AnswerService
	searcher ports.SearchService
	reviews  ports.ReviewStore
	metrics  *metrics.HTTPServerMetrics
	service  string
}

func NewRouter(
	answers ports.AnswerService,
	searcher ports.SearchService,
	reviews ports.ReviewStore,
	serverMetrics *metrics.HTTPServerMetrics,
	service string,
) *Router {
	return &Router{
		answers:  answers,
		searcher: searcher,
		reviews:  reviews,
		metrics:  serverMetrics,
		service:  service,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/ask", rt.ask)
	mux.HandleFunc("/v1/search", rt.search)
	mux.HandleFunc("/v1/reviews/", rt.getReviewByID)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type askRequest struct {
	Question string `json:"question"`
	Course   string `json:"course"`
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	start := time.Now()
	answer, err := rt.answers.Ask(r.Context(), domain.NewQuery(req.Question, domain.ParseCourse(req.Course)))
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordSearch(rt.service, string(answer.Metadata.SearchStrategy), len(answer.Sources), time.Since(start))
		rt.metrics.RecordCacheLookup(rt.service, answer.Metadata.ProcessingSteps.CacheHit)
		if answer.Evaluation != nil {
			rt.metrics.RecordJudgeVerdict(rt.service, answer.Evaluation.PassesThreshold, answer.Evaluation.Overall)
		}
		// Cached answers carry the metadata of the original run; count the
		// pipeline work only once.
		if !answer.Metadata.ProcessingSteps.CacheHit {
			if answer.Metadata.FallbackUsed {
				rt.metrics.RecordFallback(rt.service)
			}
			rt.metrics.RecordRefinements(rt.service, answer.Refinements)
		}
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	start := time.Now()
	result, err := rt.searcher.Search(r.Context(), domain.NewQuery(req.Question, domain.ParseCourse(req.Course)))
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordSearch(rt.service, string(result.Metadata.SearchStrategy), len(result.Results), time.Since(start))
		if result.Metadata.FallbackUsed {
			rt.metrics.RecordFallback(rt.service)
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getReviewByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if rt.reviews == nil {
		writeError(w, http.StatusNotFound, "review store not configured")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/reviews/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "review id is required")
		return
	}

	review, err := rt.reviews.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
