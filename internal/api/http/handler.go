package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/Zereker/talentmatch/internal/domain"
	"github.com/Zereker/talentmatch/internal/interview"
	"github.com/Zereker/talentmatch/internal/matching"
	"github.com/Zereker/talentmatch/pkg/log"
	"github.com/Zereker/talentmatch/pkg/mq"
)

// Handler handles HTTP API requests
type Handler struct {
	logger    *slog.Logger
	engine    *matching.Engine
	assistant *interview.Assistant
	queue     mq.MessageQueue
	topic     string
}

// NewHandler creates a new HTTP handler. queue and assistant may be nil,
// in which case the async and interview routes answer 503.
func NewHandler(engine *matching.Engine, assistant *interview.Assistant, queue mq.MessageQueue, topic string) *Handler {
	return &Handler{
		logger:    log.Logger("http.handler"),
		engine:    engine,
		assistant: assistant,
		queue:     queue,
		topic:     topic,
	}
}

// Response represents a standard API response
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RegisterRoutes registers all HTTP routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Indexing
	mux.HandleFunc("POST /api/v1/jobs", h.CreateJob)
	mux.HandleFunc("POST /api/v1/candidates", h.CreateCandidate)
	mux.HandleFunc("POST /api/v1/candidates/batch", h.CreateCandidates)
	mux.HandleFunc("POST /api/v1/jobs/async", h.enqueue(domain.EntityJob))
	mux.HandleFunc("POST /api/v1/candidates/async", h.enqueue(domain.EntityCandidate))

	// Matching
	mux.HandleFunc("POST /api/v1/match/candidates", h.match(domain.EntityCandidate))
	mux.HandleFunc("POST /api/v1/match/jobs", h.match(domain.EntityJob))
	mux.HandleFunc("GET /api/v1/candidates/{id}/jobs", h.matchStored(domain.EntityCandidate))
	mux.HandleFunc("GET /api/v1/jobs/{id}/candidates", h.matchStored(domain.EntityJob))

	mux.HandleFunc("GET /api/v1/records/{id}", h.GetRecord)

	// Interview
	mux.HandleFunc("POST /api/v1/questions/generate", h.GenerateQuestions)
	mux.HandleFunc("POST /api/v1/questions/submit", h.SubmitAnswer)

	// Health check
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /api/v1/health", h.Health)
}

// CreateJob handles POST /api/v1/jobs. The job is indexed and the closest
// candidates are returned in the same response.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeIndexRequest(w, r)
	if !ok {
		return
	}
	if req.ID == "" {
		req.ID = matching.NewJobID()
	}

	resp, err := h.index(r.Context(), domain.EntityJob, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	matches, err := h.engine.Search(r.Context(), req.Text, domain.EntityCandidate, matching.DefaultCandidateTopK)
	if err != nil {
		h.logger.Warn("candidate search failed", "job_id", req.ID, "error", err)
		resp.StorageStatus = domain.StoragePartial
	}
	resp.Matches = domain.NewMatchResults(matches)

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    resp,
	})
}

// CreateCandidate handles POST /api/v1/candidates
func (h *Handler) CreateCandidate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeIndexRequest(w, r)
	if !ok {
		return
	}
	if req.ID == "" {
		req.ID = matching.NewCandidateID()
	}

	resp, err := h.index(r.Context(), domain.EntityCandidate, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    resp,
	})
}

// CreateCandidates handles POST /api/v1/candidates/batch
func (h *Handler) CreateCandidates(w http.ResponseWriter, r *http.Request) {
	var req domain.BatchIndexRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Candidates) == 0 {
		writeError(w, http.StatusBadRequest, "candidates is required")
		return
	}

	docs := make([]domain.Document, len(req.Candidates))
	ids := make([]string, len(req.Candidates))
	for i, c := range req.Candidates {
		if c.ID == "" {
			c.ID = matching.NewCandidateID()
		}
		ids[i] = c.ID
		docs[i] = domain.Document{ID: c.ID, Type: domain.EntityCandidate, Text: c.Text, Metadata: c.Metadata}
	}

	resp := domain.BatchIndexResponse{
		IDs:           ids,
		Total:         len(docs),
		StorageStatus: domain.StorageSuccess,
	}

	n, err := h.engine.IndexBatch(r.Context(), domain.EntityCandidate, docs)
	if err != nil {
		h.logger.Warn("batch index failed", "count", len(docs), "error", err)
		resp.StorageStatus = domain.StoragePartial
	}
	resp.Indexed = n
	if n < len(docs) {
		resp.StorageStatus = domain.StoragePartial
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    resp,
	})
}

// enqueue publishes an index event; the consumer indexes it later.
func (h *Handler) enqueue(typ domain.EntityType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.queue == nil {
			writeError(w, http.StatusServiceUnavailable, "message queue is not configured")
			return
		}

		req, ok := h.decodeIndexRequest(w, r)
		if !ok {
			return
		}
		if req.ID == "" {
			req.ID = matching.NewID(typ)
		}

		data, err := json.Marshal(domain.IndexEvent{
			Type:     typ,
			ID:       req.ID,
			Text:     req.Text,
			Metadata: req.Metadata,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid metadata: "+err.Error())
			return
		}

		if err := h.queue.Publish(r.Context(), h.topic, req.ID, data); err != nil {
			h.logger.Error("publish failed", "type", typ, "id", req.ID, "error", err)
			writeError(w, http.StatusServiceUnavailable, "failed to queue request")
			return
		}

		writeJSON(w, http.StatusAccepted, Response{
			Success: true,
			Data:    domain.AsyncIndexResponse{ID: req.ID, Queued: true},
		})
	}
}

// match handles POST /api/v1/match/{target}
func (h *Handler) match(target domain.EntityType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.MatchRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			writeError(w, http.StatusBadRequest, "text is required")
			return
		}

		matches, err := h.engine.Search(r.Context(), req.Text, target, req.TopK)
		if invalidInput(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeMatches(w, matches, req.MinScore, err)
	}
}

// matchStored handles GET /api/v1/{source}s/{id}/{target}s
func (h *Handler) matchStored(source domain.EntityType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "id is required")
			return
		}

		topK, minScore, err := parseMatchParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		doc, found, err := h.engine.Get(r.Context(), id)
		if err != nil {
			h.logger.Warn("fetch failed", "id", id, "error", err)
			h.writeMatches(w, nil, minScore, err)
			return
		}
		if !found || doc.Type != source {
			writeError(w, http.StatusNotFound, string(source)+" not found: "+id)
			return
		}

		matches, err := h.engine.MatchesForStored(r.Context(), id, topK)
		if errors.Is(err, matching.ErrNotFound) {
			writeError(w, http.StatusNotFound, string(source)+" not found: "+id)
			return
		}
		h.writeMatches(w, matches, minScore, err)
	}
}

// GetRecord handles GET /api/v1/records/{id}
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, found, err := h.engine.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("get failed", "id", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "record not found: "+id)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    doc,
	})
}

// GenerateQuestions handles POST /api/v1/questions/generate. Model
// failures still answer 200 with template questions.
func (h *Handler) GenerateQuestions(w http.ResponseWriter, r *http.Request) {
	if h.assistant == nil {
		writeError(w, http.StatusServiceUnavailable, "interview assistant is not configured")
		return
	}

	var req domain.QuestionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	set, err := h.assistant.Questions(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    set,
	})
}

// SubmitAnswer handles POST /api/v1/questions/submit
func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	if h.assistant == nil {
		writeError(w, http.StatusServiceUnavailable, "interview assistant is not configured")
		return
	}

	var req domain.AnswerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	eval, err := h.assistant.Evaluate(r.Context(), req)
	switch {
	case errors.Is(err, interview.ErrEmptyAnswer):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Warn("answer evaluation failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "evaluation unavailable: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    domain.EvaluationResponse{Status: domain.EvaluationStatusEvaluated, Evaluation: eval},
	})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]string{
			"status": "healthy",
		},
	})
}

func (h *Handler) decodeIndexRequest(w http.ResponseWriter, r *http.Request) (domain.IndexRequest, bool) {
	var req domain.IndexRequest
	if !decodeBody(w, r, &req) {
		return req, false
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return req, false
	}
	return req, true
}

// decodeBody answers 413 for oversized bodies and 400 for malformed ones.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
		return false
	}
	writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
	return false
}

// index stores one record. Input the engine rejects is returned as an
// error for a 400; any other failure only marks the response partial.
func (h *Handler) index(ctx context.Context, typ domain.EntityType, req domain.IndexRequest) (domain.IndexResponse, error) {
	resp := domain.IndexResponse{
		ID:            req.ID,
		Type:          typ,
		StorageStatus: domain.StorageSuccess,
	}

	if err := h.engine.Index(ctx, typ, req.ID, req.Text, req.Metadata); err != nil {
		if invalidInput(err) {
			return resp, err
		}
		h.logger.Warn("index failed", "type", typ, "id", req.ID, "error", err)
		resp.StorageStatus = domain.StoragePartial
	}
	return resp, nil
}

// invalidInput reports whether err is the caller's fault rather than a
// backend failure.
func invalidInput(err error) bool {
	return errors.Is(err, matching.ErrEmptyID) ||
		errors.Is(err, matching.ErrEmptyText) ||
		errors.Is(err, matching.ErrInvalidType)
}

// writeMatches reports engine errors as a degraded, empty result.
func (h *Handler) writeMatches(w http.ResponseWriter, matches []domain.Match, minScore *float64, err error) {
	resp := domain.MatchResponse{Matches: []domain.MatchResult{}}
	if err != nil {
		h.logger.Warn("match degraded", "error", err)
		resp.Degraded = true
	} else {
		resp.Matches = domain.NewMatchResults(filterScore(matches, minScore))
	}
	resp.Total = len(resp.Matches)

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    resp,
	})
}

// filterScore drops matches below minScore. A nil threshold keeps all of
// them; scores are cosines, so zero and negative thresholds still filter.
func filterScore(matches []domain.Match, minScore *float64) []domain.Match {
	if minScore == nil {
		return matches
	}
	out := matches[:0:0]
	for _, m := range matches {
		if m.Score >= *minScore {
			out = append(out, m)
		}
	}
	return out
}

func parseMatchParams(r *http.Request) (int, *float64, error) {
	var topK int

	q := r.URL.Query()
	if v := q.Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, nil, errors.Errorf("invalid top_k: %q", v)
		}
		topK = n
	}

	var minScore *float64
	if v := q.Get("min_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, nil, errors.Errorf("invalid min_score: %q", v)
		}
		minScore = &f
	}
	return topK, minScore, nil
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{
		Success: false,
		Error:   message,
	})
}
