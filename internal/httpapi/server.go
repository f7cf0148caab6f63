// Package httpapi exposes the game engine over HTTP: session creation,
// action processing, world info, the completion gallery, health probes,
// and a websocket play channel.
//
// Handlers translate engine errors into stable status codes: invalid input
// is 400 with a deterministic message, unknown sessions are 404, and a
// failed narrator still produces 200 with fallback text so the player
// always gets a response.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/sagewright/colossi/internal/feedback"
	"github.com/sagewright/colossi/internal/game/puzzle"
	"github.com/sagewright/colossi/internal/game/session"
	"github.com/sagewright/colossi/internal/health"
	"github.com/sagewright/colossi/internal/observe"
	"github.com/sagewright/colossi/internal/store"
)

// defaultGalleryLimit caps /api/completions responses when no limit is given.
const defaultGalleryLimit = 20

// maxGalleryLimit is the hard ceiling for the gallery limit parameter.
const maxGalleryLimit = 100

// invalidActionMessage is the stable 400 body text for rejected actions.
const invalidActionMessage = "action must be non-empty and within the length limit"

// Server routes HTTP traffic to the session manager and the document store.
type Server struct {
	manager  *session.Manager
	store    store.Store
	feedback feedback.Store
	metrics  *observe.Metrics
	health   *health.Handler
	log      *slog.Logger
	handler  http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics sets the metrics instance. Defaults to observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithHealthCheckers registers readiness checkers for /readyz.
func WithHealthCheckers(checkers ...health.Checker) Option {
	return func(s *Server) { s.health = health.New(checkers...) }
}

// WithFeedback enables the player feedback endpoint.
func WithFeedback(st feedback.Store) Option {
	return func(s *Server) { s.feedback = st }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// New constructs the HTTP surface over a session manager and store.
func New(manager *session.Manager, st store.Store, opts ...Option) (*Server, error) {
	if manager == nil {
		return nil, errors.New("httpapi: manager must not be nil")
	}
	if st == nil {
		return nil, errors.New("httpapi: store must not be nil")
	}
	s := &Server{
		manager: manager,
		store:   st,
		metrics: observe.DefaultMetrics(),
		health:  health.New(),
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", s.createSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.getSession)
	mux.HandleFunc("POST /api/sessions/{id}/action", s.postAction)
	mux.HandleFunc("GET /api/sessions/{id}/play", s.play)
	mux.HandleFunc("GET /world-info", s.worldInfo)
	mux.HandleFunc("GET /api/completions", s.completions)
	if s.feedback != nil {
		mux.HandleFunc("POST /api/feedback", s.postFeedback)
	}
	mux.Handle("GET /metrics", promhttp.Handler())
	s.health.Register(mux)

	s.handler = observe.Middleware(s.metrics)(mux)
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// ─── Request/response bodies ─────────────────────────────────────────────────

type createSessionRequest struct {
	World     string `json:"world"`
	Character string `json:"character"`
}

type actionRequest struct {
	Action string `json:"action"`
}

type actionResponse struct {
	Response       string         `json:"response"`
	Inventory      map[string]int `json:"inventory"`
	Location       string         `json:"location"`
	PuzzleProgress float64        `json:"puzzle_progress"`
	PuzzleSolved   bool           `json:"puzzle_solved"`
	AvailableTasks []puzzle.Task  `json:"available_tasks,omitempty"`
	TaskCompleted  bool           `json:"task_completed,omitempty"`
	Reward         string         `json:"reward,omitempty"`
	ImagePending   bool           `json:"image_pending,omitempty"`
}

type worldInfoResponse struct {
	Name       string          `json:"name"`
	Start      string          `json:"start"`
	Kingdoms   int             `json:"kingdoms"`
	Towns      int             `json:"towns"`
	Characters []characterInfo `json:"characters"`
}

type characterInfo struct {
	Name string `json:"name"`
	Town string `json:"town"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ─── Handlers ────────────────────────────────────────────────────────────────

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Character == "" {
		writeError(w, http.StatusBadRequest, "character is required")
		return
	}
	if req.World != "" && req.World != s.manager.World().Name {
		writeError(w, http.StatusNotFound, "unknown world")
		return
	}

	sess, err := s.manager.Create(r.Context(), req.Character)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown character")
		return
	}

	s.metrics.ActiveSessions.Add(r.Context(), 1)
	s.log.Info("session created",
		"session_id", sess.ID(),
		"character", req.Character,
	)
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) postAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := r.PathValue("id")
	start := time.Now()
	out, err := s.manager.ProcessAction(r.Context(), id, req.Action)
	switch {
	case errors.Is(err, session.ErrUnknownSession):
		writeError(w, http.StatusNotFound, "unknown session")
		return
	case errors.Is(err, session.ErrInvalidAction):
		writeError(w, http.StatusBadRequest, invalidActionMessage)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "action failed")
		return
	}

	s.recordOutcome(r, id, out, time.Since(start))
	writeJSON(w, http.StatusOK, toActionResponse(out))
}

func (s *Server) worldInfo(w http.ResponseWriter, r *http.Request) {
	world := s.manager.World()
	info := worldInfoResponse{
		Name:  world.Name,
		Start: world.StartMessage(),
	}
	for _, k := range world.Kingdoms {
		info.Kingdoms++
		for _, t := range k.Towns {
			info.Towns++
			for _, npc := range t.NPCs {
				info.Characters = append(info.Characters, characterInfo{
					Name: npc.Name,
					Town: t.Name,
				})
			}
		}
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) completions(w http.ResponseWriter, r *http.Request) {
	limit := defaultGalleryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxGalleryLimit)
	}

	recs, err := s.store.RecentCompletions(r.Context(), limit)
	if err != nil {
		s.log.Error("gallery query failed", "err", err)
		writeError(w, http.StatusInternalServerError, "gallery unavailable")
		return
	}
	if recs == nil {
		recs = []store.CompletionRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) postFeedback(w http.ResponseWriter, r *http.Request) {
	var fb feedback.Feedback
	if err := decodeJSON(r, &fb); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fb.SessionID != "" {
		if _, err := s.manager.Get(fb.SessionID); err != nil {
			writeError(w, http.StatusNotFound, "unknown session")
			return
		}
	}
	if err := fb.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.feedback.Save(fb); err != nil {
		s.log.Error("feedback save failed", "err", err)
		writeError(w, http.StatusInternalServerError, "feedback unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// recordOutcome emits the per-action metrics shared by the POST and
// websocket paths.
func (s *Server) recordOutcome(r *http.Request, id string, out *session.Outcome, elapsed time.Duration) {
	ctx := r.Context()
	s.metrics.ActionDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.Bool("task_completed", out.TaskCompleted)),
	)
	if out.TaskCompleted {
		s.metrics.RecordTaskCompletion(ctx, out.CompletedTask.ID)
	}
	if out.TaskCompleted && out.PuzzleSolved {
		s.metrics.RecordPuzzleSolved(ctx, s.manager.World().Name)
	}
	s.log.Info("action processed",
		"session_id", id,
		"task_completed", out.TaskCompleted,
		"duration", elapsed,
	)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func toActionResponse(out *session.Outcome) actionResponse {
	return actionResponse{
		Response:       out.Response,
		Inventory:      out.Inventory,
		Location:       out.Location,
		PuzzleProgress: out.Progress,
		PuzzleSolved:   out.PuzzleSolved,
		AvailableTasks: out.AvailableTasks,
		TaskCompleted:  out.TaskCompleted,
		Reward:         out.Reward,
		ImagePending:   out.TaskCompleted,
	}
}

// decodeJSON decodes the request body strictly, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
