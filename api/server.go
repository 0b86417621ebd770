// Package api exposes the engine over HTTP. Mutations go through REST,
// change notifications reach viewers over a websocket per conversation.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"emolab/auth"
	"emolab/errors"
	"emolab/observability"
	"emolab/runtime"
	"emolab/services"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
)

type Server struct {
	log           *slog.Logger
	authService   services.IAuthService
	conversations services.IConversationService
	turns         services.ITurnService
	pipeline      services.IPipelineService
	whispers      services.IWhisperService
	orchestrator  *runtime.Orchestrator
	monitoring    *observability.MonitoringManager
	gatherer      prometheus.Gatherer
}

func NewServer(
	log *slog.Logger,
	authService services.IAuthService,
	conversations services.IConversationService,
	turns services.ITurnService,
	pipeline services.IPipelineService,
	whispers services.IWhisperService,
	orchestrator *runtime.Orchestrator,
	monitoring *observability.MonitoringManager,
	gatherer prometheus.Gatherer,
) *Server {
	return &Server{
		log:           log,
		authService:   authService,
		conversations: conversations,
		turns:         turns,
		pipeline:      pipeline,
		whispers:      whispers,
		orchestrator:  orchestrator,
		monitoring:    monitoring,
		gatherer:      gatherer,
	}
}

// Handler builds the full routing table. Everything under /api except the
// auth endpoints requires a bearer token.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /api/conversations", s.createConversation)
	api.HandleFunc("GET /api/conversations", s.listConversations)
	api.HandleFunc("GET /api/conversations/{id}", s.getConversation)
	api.HandleFunc("POST /api/conversations/{id}/archive", s.archiveConversation)
	api.HandleFunc("GET /api/conversations/{id}/timeline", s.timeline)
	api.HandleFunc("GET /api/conversations/{id}/search", s.search)
	api.HandleFunc("POST /api/conversations/{id}/turn", s.requestTurn)
	api.HandleFunc("DELETE /api/conversations/{id}/turn", s.releaseFloor)
	api.HandleFunc("GET /api/conversations/{id}/queue", s.queue)
	api.HandleFunc("POST /api/conversations/{id}/messages", s.submit)
	api.HandleFunc("GET /api/conversations/{id}/whispers", s.listWhispers)
	api.HandleFunc("POST /api/messages/{id}/refine", s.refine)
	api.HandleFunc("POST /api/messages/{id}/approve", s.approve)
	api.HandleFunc("GET /api/messages/{id}/versions", s.versions)
	api.HandleFunc("POST /api/whispers/{id}/reveal", s.reveal)
	api.HandleFunc("GET /api/events", s.events)

	root := http.NewServeMux()
	root.HandleFunc("POST /api/auth/register", s.register)
	root.HandleFunc("POST /api/auth/login", s.login)
	root.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	root.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.monitoring.GetLatest())
	})
	root.Handle("/api/", auth.Middleware(api))

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)
	return cors(handlers.CombinedLoggingHandler(slogWriter{s.log}, root))
}

// slogWriter lets gorilla's access log flow into the structured logger.
type slogWriter struct{ log *slog.Logger }

func (w slogWriter) Write(p []byte) (int, error) {
	w.log.Debug("http access", slog.String("line", string(p)))
	return len(p), nil
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decode(w, r, &body) {
		return
	}
	token, err := s.authService.Register(body.Email, body.Username, body.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"token": string(token)})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &body) {
		return
	}
	token, err := s.authService.Login(body.Email, body.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": string(token)})
}

func (s *Server) createConversation(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	var body struct {
		Topic        string   `json:"topic"`
		Participants []string `json:"participants"`
	}
	if !decode(w, r, &body) {
		return
	}
	conversation, err := s.conversations.Create(r.Context(), services.CreateConversationCommand{
		Topic:        body.Topic,
		Participants: body.Participants,
		CreatorID:    caller,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conversation)
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	conversations, err := s.conversations.List(r.Context(), caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversations)
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}
	conversation, err := s.conversations.Get(r.Context(), id, caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversation)
}

func (s *Server) archiveConversation(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}
	if err := s.conversations.Archive(r.Context(), id, caller); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) timeline(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}
	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = lo.ToPtr(c)
	}
	entries, next, err := s.conversations.Timeline(r.Context(), id, caller, cursor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries":     entries,
		"next_cursor": next,
	})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeError(w, fmt.Errorf("%w: missing query parameter q", errors.ErrValidation))
		return
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	entries, total, err := s.conversations.Search(r.Context(), id, caller, query, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   total,
	})
}

func (s *Server) requestTurn(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}
	request, err := s.turns.RequestTurn(r.Context(), id, caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, request)
}

func (s *Server) releaseFloor(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}
	if err := s.turns.ReleaseFloor(r.Context(), id, caller); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) queue(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}
	requests, err := s.turns.Queue(r.Context(), id, caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}
	var body struct {
		Content string `json:"content"`
	}
	if !decode(w, r, &body) {
		return
	}
	version, err := s.pipeline.Submit(r.Context(), id, caller, body.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, version)
}

func (s *Server) refine(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}
	var body struct {
		Comment string `json:"comment"`
	}
	if !decode(w, r, &body) {
		return
	}
	version, err := s.pipeline.Refine(r.Context(), id, caller, body.Comment)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, version)
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}
	// An empty body or a zero version approves the current latest.
	var body struct {
		Version int `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	message, err := s.pipeline.Approve(r.Context(), id, caller, body.Version)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, message)
}

func (s *Server) versions(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}
	versions, refinements, err := s.pipeline.Versions(r.Context(), id, caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"versions":    versions,
		"refinements": refinements,
	})
}

func (s *Server) listWhispers(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}
	whispers, err := s.whispers.ListFor(r.Context(), id, caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, whispers)
}

func (s *Server) reveal(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := callerAndID(w, r)
	if !ok {
		return
	}
	whisper, err := s.whispers.Reveal(r.Context(), id, caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, whisper)
}

func callerOf(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return "", false
	}
	return caller, true
}

func callerAndID(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	caller, ok := callerOf(w, r)
	if !ok {
		return "", uuid.Nil, false
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid identifier", http.StatusBadRequest)
		return "", uuid.Nil, false
	}
	return caller, id, true
}

func decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError translates domain sentinels to HTTP statuses. The engine's
// conflict family all maps to 409 so clients can retry with fresh state.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", slog.Any("error", err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrNotAuthorized),
		errors.Is(err, errors.ErrTurnConflict):
		return http.StatusForbidden
	case errors.Is(err, errors.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, errors.ErrStaleVersion),
		errors.Is(err, errors.ErrAlreadyPublished),
		errors.Is(err, errors.ErrAlreadyRequested),
		errors.Is(err, errors.ErrDistillationInFlight),
		errors.Is(err, errors.ErrInvalidTransition),
		errors.Is(err, errors.ErrUserAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, errors.ErrValidation),
		errors.Is(err, errors.ErrInvalidPassword):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrGenerationFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
