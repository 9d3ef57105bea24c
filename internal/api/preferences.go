package api

import (
	"encoding/json"
	"net/http"

	"github.com/nextstep-labs/nextstep/internal/store"
)

const (
	themeLight = "light"
	themeDark  = "dark"
)

type preferences struct {
	Theme string `json:"theme"`
	Name  string `json:"name"`
}

func (s *Server) getPreferences(w http.ResponseWriter, r *http.Request) {
	prefs := preferences{Theme: themeDark}

	if theme, ok, err := s.kv.Get(r.Context(), store.KeyTheme); err != nil {
		respondError(w, err)
		return
	} else if ok {
		prefs.Theme = theme
	}
	if name, ok, err := s.kv.Get(r.Context(), store.KeyUsername); err != nil {
		respondError(w, err)
		return
	} else if ok {
		prefs.Name = name
	}

	respondJSON(w, http.StatusOK, prefs)
}

func (s *Server) putPreferences(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Theme *string `json:"theme"`
		Name  *string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	if body.Theme != nil {
		if *body.Theme != themeLight && *body.Theme != themeDark {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": "theme must be light or dark"})
			return
		}
		if err := s.kv.Set(r.Context(), store.KeyTheme, *body.Theme); err != nil {
			respondError(w, err)
			return
		}
	}
	if body.Name != nil && *body.Name != "" {
		if err := s.kv.Set(r.Context(), store.KeyUsername, *body.Name); err != nil {
			respondError(w, err)
			return
		}
	}

	s.getPreferences(w, r)
}

// reset is the logout flow: all owned keys cleared, then a fresh session
// so the app is immediately usable again.
func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Reset(r.Context()); err != nil {
		respondError(w, err)
		return
	}
	sess := s.manager.Create(r.Context())
	s.publishSession("created", sess)
	respondJSON(w, http.StatusOK, map[string]any{
		"sessions": s.manager.Sessions(),
		"activeId": sess.ID,
	})
}
