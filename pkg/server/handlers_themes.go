package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sitekeeper/sitekeeper/pkg/themes"
)

func (s *Server) handleListThemes(w http.ResponseWriter, r *http.Request) {
	names, err := s.themes.List()
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"themes": names})
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := s.themes.Get(chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, theme)
}

func (s *Server) handleSaveTheme(w http.ResponseWriter, r *http.Request) {
	var theme themes.Theme
	if status, err := decodeJSONBody(w, r, &theme, maxBodyBytesSmall); err != nil {
		respondStatusError(w, status, err.Error())
		return
	}
	if err := s.themes.Save(&theme); err != nil {
		respondError(w, err)
		return
	}
	s.recordAudit(r, "theme.save", theme.Name, true, "")
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Theme saved"})
}

func (s *Server) handleDeleteTheme(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.themes.Delete(name); err != nil {
		respondError(w, err)
		return
	}
	s.recordAudit(r, "theme.delete", name, true, "")
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Theme deleted"})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		respondJSON(w, http.StatusOK, map[string]any{"events": []any{}})
		return
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), 100)
	events, err := s.audit.Recent(r.Context(), limit)
	if err != nil {
		respondStatusError(w, http.StatusInternalServerError, "failed to read audit trail: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": events})
}
