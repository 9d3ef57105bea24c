// Package api exposes the chat pipeline over HTTP for rendering
// collaborators. It owns no conversation state of its own.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nextstep-labs/nextstep/internal/agents"
	"github.com/nextstep-labs/nextstep/internal/chat"
	"github.com/nextstep-labs/nextstep/internal/extract"
	"github.com/nextstep-labs/nextstep/internal/store"
)

type Server struct {
	router     *chi.Mux
	port       int
	manager    *chat.Manager
	controller *chat.Controller
	kv         store.KV
	publisher  chat.Publisher
}

// NewServer wires the routes. publisher may be nil.
func NewServer(port int, manager *chat.Manager, controller *chat.Controller, kv store.KV, publisher chat.Publisher) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:     router,
		port:       port,
		manager:    manager,
		controller: controller,
		kv:         kv,
		publisher:  publisher,
	}

	router.Get("/health", s.health)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/sessions", s.listSessions)
		r.Post("/sessions", s.createSession)
		r.Post("/sessions/{id}/select", s.selectSession)
		r.Patch("/sessions/{id}", s.renameSession)
		r.Delete("/sessions/{id}", s.deleteSession)

		r.Get("/messages", s.listMessages)
		r.Post("/chat", s.submit)
		r.Post("/handoff", s.acceptHandoff)

		r.Get("/agents", s.listAgents)
		r.Get("/prompts", s.listPrompts)

		r.Get("/preferences", s.getPreferences)
		r.Put("/preferences", s.putPreferences)

		r.Post("/reset", s.reset)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, chat.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, chat.ErrEmptyInput), errors.Is(err, chat.ErrNoSession):
		status = http.StatusBadRequest
	case errors.Is(err, chat.ErrBusy), errors.Is(err, chat.ErrStaleReply):
		status = http.StatusConflict
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) publishSession(event string, sess chat.Session) {
	if s.publisher != nil {
		s.publisher.PublishSession(event, sess)
	}
}

// apiMessage decorates a persisted message with its render-time text. The
// stored text always keeps the raw model output; scrubbing happens here.
type apiMessage struct {
	chat.Message
	DisplayText string `json:"displayText"`
}

func displayMessage(m chat.Message) apiMessage {
	out := apiMessage{Message: m, DisplayText: m.Text}
	if m.Role == chat.RoleModel {
		out.DisplayText = extract.Scrub(m.Text, extract.Kind(m.Type), m.Data)
	}
	return out
}

func displayMessages(msgs []chat.Message) []apiMessage {
	out := make([]apiMessage, len(msgs))
	for i, m := range msgs {
		out[i] = displayMessage(m)
	}
	return out
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	active, _ := s.manager.Active()
	respondJSON(w, http.StatusOK, map[string]any{
		"sessions": s.manager.Sessions(),
		"activeId": active.ID,
	})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	sess := s.manager.Create(r.Context())
	s.publishSession("created", sess)
	respondJSON(w, http.StatusCreated, sess)
}

func (s *Server) selectSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.manager.Select(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	active, _ := s.manager.Active()
	s.publishSession("selected", active)
	respondJSON(w, http.StatusOK, map[string]any{
		"session":  active,
		"messages": displayMessages(s.manager.Messages()),
	})
}

func (s *Server) renameSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Title == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	if err := s.manager.Rename(r.Context(), id, body.Title); err != nil {
		respondError(w, err)
		return
	}
	for _, sess := range s.manager.Sessions() {
		if sess.ID == id {
			s.publishSession("renamed", sess)
			respondJSON(w, http.StatusOK, sess)
			return
		}
	}
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.manager.Delete(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	s.publishSession("deleted", chat.Session{ID: id})
	active, _ := s.manager.Active()
	respondJSON(w, http.StatusOK, map[string]any{
		"sessions": s.manager.Sessions(),
		"activeId": active.ID,
	})
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"messages": displayMessages(s.manager.Messages()),
	})
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	msgs, err := s.controller.Submit(r.Context(), body.Text)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"messages": displayMessages(msgs),
	})
}

func (s *Server) acceptHandoff(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SuggestedPrompt string `json:"suggestedPrompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	msgs, err := s.controller.AcceptHandoff(r.Context(), body.SuggestedPrompt)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"messages": displayMessages(msgs),
	})
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	matched := agents.Filter(query)
	if matched == nil {
		matched = []agents.Agent{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"agents": matched})
}

func (s *Server) listPrompts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"prompts": agents.SuggestedPrompts})
}
