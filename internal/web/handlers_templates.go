package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/QRBulk/internal/store"
)

// templateStore returns the configured store or writes a 503.
func (s *Server) templateStore(w http.ResponseWriter, r *http.Request) (store.Store, bool) {
	ts := s.service.Templates()
	if ts == nil {
		s.respondError(w, r, errTemplatesDisabled, 0)
		return nil, false
	}
	return ts, true
}

// handleListTemplates returns all saved design templates.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.templateStore(w, r)
	if !ok {
		return
	}

	list, err := ts.List(r.Context())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}

// handleGetTemplate returns one template by id.
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.templateStore(w, r)
	if !ok {
		return
	}

	t, err := ts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, t)
}

// handleCreateTemplate saves the request's style under a name.
func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.templateStore(w, r)
	if !ok {
		return
	}

	var req struct {
		styleRequest
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	style, err := s.resolveStyle(r, req.styleRequest)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if err := s.service.CheckStyle(style); err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	t, err := ts.Create(r.Context(), req.Name, style)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusCreated, t)
}

// handleRenameTemplate changes a template's name.
func (s *Server) handleRenameTemplate(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.templateStore(w, r)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	t, err := ts.Rename(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, t)
}

// handleDeleteTemplate removes a template.
func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.templateStore(w, r)
	if !ok {
		return
	}

	if err := ts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleShareTemplate returns a portable share code for a template.
func (s *Server) handleShareTemplate(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.templateStore(w, r)
	if !ok {
		return
	}

	t, err := ts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	code, err := store.EncodeShare(t)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"code": code})
}

// handleImportTemplate saves a template from a share code. An optional
// name overrides the shared one.
func (s *Server) handleImportTemplate(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.templateStore(w, r)
	if !ok {
		return
	}

	var req struct {
		Code string `json:"code"`
		Name string `json:"name,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	shared, err := store.DecodeShare(req.Code)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	name := shared.Name
	if req.Name != "" {
		name = req.Name
	}
	if err := s.service.CheckStyle(shared.Style); err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	t, err := ts.Create(r.Context(), name, shared.Style)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusCreated, t)
}

