// Package server exposes the summarization pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"clinisum/internal/domain"
	"clinisum/internal/health"
	"clinisum/internal/summarizer"
)

const (
	maxRequestBodyBytes = 4 << 20
	requestIDHeader     = "X-Request-ID"
	healthStatusText    = "this works"
)

type StatusFunc func() health.Status

type Server struct {
	summarizer     summarizer.Summarizer
	status         StatusFunc
	requestTimeout time.Duration
	log            *slog.Logger
}

func New(
	s summarizer.Summarizer,
	status StatusFunc,
	requestTimeout time.Duration,
	log *slog.Logger,
) *Server {
	return &Server{
		summarizer:     s,
		status:         status,
		requestTimeout: requestTimeout,
		log:            log,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /summarize", s.handleSummarize)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /feedback", s.handleFeedback)

	return withRequestID(mux)
}

type ctxKey struct{}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

type summarizeRequest struct {
	Text         string `json:"text"`
	ClinicalRole string `json:"clinical_role"`
}

type summarizeResponse struct {
	Summary        string             `json:"summary"`
	Tokens         int64              `json:"tokens"`
	References     []domain.Reference `json:"references"`
	ProcessingTime float64            `json:"processing_time"`
	PromptOverflow bool               `json:"prompt_overflow,omitempty"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	var req summarizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Detail: "Invalid JSON body."})
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		s.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Detail: "No text found."})
		return
	}

	role := req.ClinicalRole
	if role == "" {
		role = domain.DefaultRole
	}

	start := time.Now()
	res, err := s.summarizer.Summarize(ctx, req.Text, role)
	duration := time.Since(start)
	if err != nil {
		status := statusFor(err)
		s.log.ErrorContext(ctx, "Failed to summarize notes",
			"error", err,
			"status", status,
			"role", role,
			"textLength", len(req.Text),
			"durationSeconds", duration.Seconds(),
			"requestID", requestID(ctx))

		s.writeJSON(ctx, w, status, errorResponse{Detail: err.Error()})
		return
	}

	s.log.InfoContext(ctx, "Summary of notes is generated",
		"durationSeconds", duration.Seconds(),
		"tokens", res.Tokens,
		"referenceCount", len(res.References),
		"promptOverflow", res.Budget.Overflow,
		"requestID", requestID(ctx))

	s.writeJSON(ctx, w, http.StatusOK, summarizeResponse{
		Summary:        res.Summary,
		Tokens:         res.Tokens,
		References:     res.References,
		ProcessingTime: duration.Seconds(),
		PromptOverflow: res.Budget.Overflow,
	})
}

type providerStatus struct {
	OK        bool       `json:"ok"`
	CheckedAt *time.Time `json:"checkedAt,omitempty"`
	Error     string     `json:"error,omitempty"`
}

type healthResponse struct {
	Status   string          `json:"status"`
	Provider *providerStatus `json:"provider,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: healthStatusText}

	if s.status != nil {
		st := s.status()
		ps := &providerStatus{OK: st.OK, Error: st.Err}
		if !st.CheckedAt.IsZero() {
			ps.CheckedAt = &st.CheckedAt
		}
		resp.Provider = ps
	}

	s.writeJSON(r.Context(), w, http.StatusOK, resp)
}

type feedbackRequest struct {
	Feedback string `json:"feedback"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req feedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Detail: "Invalid JSON body."})
		return
	}

	if req.Feedback == "" {
		s.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Detail: "Feedback input is missing."})
		return
	}

	s.log.InfoContext(ctx, "Feedback is received",
		"feedback", req.Feedback,
		"requestID", requestID(ctx))

	s.writeJSON(ctx, w, http.StatusOK, messageResponse{Message: "Got feedback."})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(v)
}

func statusFor(err error) int {
	var svcErr *domain.ServiceError

	switch {
	case errors.Is(err, domain.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &svcErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.ErrorContext(ctx, "Failed to write response",
			"error", err,
			"status", status,
			"requestID", requestID(ctx))
	}
}
