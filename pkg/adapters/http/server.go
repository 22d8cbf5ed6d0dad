package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aretw0/lectern/internal/logging"
	"github.com/aretw0/lectern/internal/runtime"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/ports"
	"github.com/aretw0/lectern/pkg/runner"
	"github.com/aretw0/lectern/pkg/stream"
)

// DefaultUserHeader carries the learner id.
const DefaultUserHeader = "X-User-ID"

// maxBodySize bounds a request body. Answers are further bounded by runner.SanitizeInput.
const maxBodySize = 1 << 20

// Engine defines the session operations the server exposes.
type Engine interface {
	Turn(ctx context.Context, req domain.Request, emit func(domain.Frame) error) error
	Progress(ctx context.Context, userID, courseID string, preview bool) ([]runtime.ItemProgress, error)
	Reset(ctx context.Context, userID, courseID, itemID string) (*domain.ProgressRecord, error)
}

// Server serves the engine routes.
type Server struct {
	engine     Engine
	courses    ports.CourseLister
	orders     ports.OrderSettler
	metrics    http.Handler
	logger     *slog.Logger
	userHeader string
	streams    *StreamManager
}

// Option configures a Server.
type Option func(*Server)

// WithCourses enables GET /v1/courses.
func WithCourses(l ports.CourseLister) Option {
	return func(s *Server) { s.courses = l }
}

// WithOrders enables POST /v1/orders/{orderID}/paid, the payment provider callback.
func WithOrders(o ports.OrderSettler) Option {
	return func(s *Server) { s.orders = o }
}

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithUserHeader changes the header the learner id is read from.
func WithUserHeader(name string) Option {
	return func(s *Server) { s.userHeader = name }
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		engine:     engine,
		logger:     logging.NewNop(),
		userHeader: DefaultUserHeader,
		streams:    NewStreamManager(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS(s.userHeader))

	r.Get("/healthz", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	if s.orders != nil {
		r.Post("/v1/orders/{orderID}/paid", s.markPaid)
	}

	r.Route("/v1/courses", func(r chi.Router) {
		if s.courses != nil {
			r.Get("/", s.listCourses)
		}
		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)
			r.Post("/{courseID}/run", s.run)
			r.Get("/{courseID}/events", s.events)
			r.Get("/{courseID}/progress", s.progress)
			r.Post("/{courseID}/items/{itemID}/reset", s.reset)
		})
	})
	return r
}

func enableCORS(userHeader string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+userHeader)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type userKey struct{}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(s.userHeader)
		if id == "" {
			writeError(w, http.StatusUnauthorized, "missing "+s.userHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, id)))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userKey{}).(string)
	return id
}

// RunRequest is the body of a run call. An empty body resumes the session.
type RunRequest struct {
	OutlineItemID string           `json:"outline_item_id,omitempty"`
	Input         string           `json:"input,omitempty"`
	InputKind     domain.InputKind `json:"input_kind,omitempty"`
	BlockID       string           `json:"block_id,omitempty"`
	Preview       bool             `json:"preview,omitempty"`
}

func (s *Server) run(w http.ResponseWriter, r *http.Request) {
	var body RunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		s.logger.Warn("run: invalid request body", "error", err)
		return
	}
	if body.Input != "" {
		clean, err := runner.SanitizeInput(body.Input)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid input: %v", err))
			s.logger.Warn("run: input rejected", "error", err, "size", len(body.Input))
			return
		}
		body.Input = clean
	}

	req := domain.Request{
		UserID:        userID(r),
		CourseID:      chi.URLParam(r, "courseID"),
		OutlineItemID: body.OutlineItemID,
		Input:         body.Input,
		InputKind:     body.InputKind,
		BlockID:       body.BlockID,
		Preview:       body.Preview,
	}
	key := sessionKey(req.UserID, req.CourseID)

	w.Header().Set("Content-Type", stream.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	enc := stream.NewEncoder(w)
	err := s.engine.Turn(r.Context(), req, func(f domain.Frame) error {
		s.streams.Broadcast(key, f)
		return enc.Encode(f)
	})
	if err != nil {
		// The failure already reached the client as a frame.
		s.logger.Warn("run: turn ended with error", "user_id", req.UserID, "course_id", req.CourseID, "error", err)
	}
}

// events mirrors the frames of every turn the learner plays in a course, e.g. to a second tab.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	key := sessionKey(userID(r), chi.URLParam(r, "courseID"))
	ch, cancel := s.streams.Subscribe(key)
	defer cancel()

	w.Header().Set("Content-Type", stream.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	enc := stream.NewEncoder(w)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case f, ok := <-ch:
			if !ok {
				return
			}
			if err := enc.Encode(f); err != nil {
				return
			}
		}
	}
}

func (s *Server) progress(w http.ResponseWriter, r *http.Request) {
	preview := false
	if v := r.URL.Query().Get("preview"); v != "" {
		p, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "preview must be a boolean")
			return
		}
		preview = p
	}
	items, err := s.engine.Progress(r.Context(), userID(r), chi.URLParam(r, "courseID"), preview)
	if err != nil {
		s.fail(w, "progress", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	rec, err := s.engine.Reset(r.Context(), userID(r), chi.URLParam(r, "courseID"), chi.URLParam(r, "itemID"))
	if err != nil {
		s.fail(w, "reset", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) listCourses(w http.ResponseWriter, r *http.Request) {
	ids, err := s.courses.ListCourses(r.Context())
	if err != nil {
		s.fail(w, "list courses", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"courses": ids})
}

func (s *Server) markPaid(w http.ResponseWriter, r *http.Request) {
	if err := s.orders.MarkPaid(r.Context(), chi.URLParam(r, "orderID")); err != nil {
		s.fail(w, "mark paid", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fail maps a domain error to a status code.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrLockBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled):
		// Client went away.
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
		s.logger.Error(op+" failed", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
