package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/QRBulk/internal/core"
	"github.com/JonMunkholm/QRBulk/internal/mapping"
	"github.com/JonMunkholm/QRBulk/internal/render"
)

// styleRequest carries a style overlay and the template it starts from.
// Fields missing from Style keep the base value.
type styleRequest struct {
	TemplateID string          `json:"templateId,omitempty"`
	Style      json.RawMessage `json:"style,omitempty"`
}

type generateRequest struct {
	styleRequest
	Format string `json:"format"`
}

type generateResponse struct {
	Report      *core.RunReport `json:"report"`
	DownloadURL string          `json:"downloadUrl,omitempty"`
	*ErrorResponse
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	opts := s.service.Options()
	data := pageData{
		Formats:       render.Formats(),
		MaxFileSize:   s.cfg.Upload.MaxFileSize,
		MaxExportSize: opts.MaxExportSize,
		PreviewSize:   opts.PreviewSize,
		Templates:     s.service.Templates() != nil,
	}
	if wantsJSON(r) {
		writeJSON(w, r, http.StatusOK, data)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexPage(data).Render(r.Context(), w); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.Limiter().Status())
}

// readUpload reads the multipart "file" field within the upload size limit.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		return "", nil, errFileTooLarge
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, errNoFile
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	return header.Filename, data, nil
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	info, err := s.service.CreateSession(r.Context(), name, data)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusCreated, info)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, sess.Info())
}

func (s *Server) handleReplaceFile(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	info, err := s.service.LoadFile(chi.URLParam(r, "id"), name, data)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, info)
}

func (s *Server) handleSelectSheet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sheet string `json:"sheet"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	info, err := s.service.SelectSheet(chi.URLParam(r, "id"), req.Sheet)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, info)
}

func (s *Server) handleSetMapping(w http.ResponseWriter, r *http.Request) {
	var m mapping.Mapping
	if err := decodeJSON(r, &m); err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	info, err := s.service.SetMapping(chi.URLParam(r, "id"), m)
	if err != nil {
		status := 0
		if !errors.Is(err, core.ErrSessionNotFound) {
			status = http.StatusBadRequest
		}
		s.respondError(w, r, err, status)
		return
	}
	writeJSON(w, r, http.StatusOK, info)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req styleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	style, err := s.resolveStyle(r, req)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	svg, err := s.service.Preview(r.Context(), chi.URLParam(r, "id"), style)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	w.Header().Set("Content-Type", render.FormatSVG.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	w.Write(svg)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	format, err := render.ParseFormat(req.Format)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	style, err := s.resolveStyle(r, req.styleRequest)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	report, err := s.service.Generate(r.Context(), chi.URLParam(r, "id"), style, format)
	if err != nil {
		if errors.Is(err, core.ErrNothingGenerated) && report != nil {
			body := errorBody(core.MapError(err))
			writeJSON(w, r, http.StatusUnprocessableEntity, generateResponse{Report: report, ErrorResponse: &body})
			return
		}
		s.respondError(w, r, err, 0)
		return
	}

	writeJSON(w, r, http.StatusOK, generateResponse{
		Report:      report,
		DownloadURL: "/api/runs/" + report.RunID + "/download",
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	dl, err := s.service.TakeDownload(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", attachment(dl.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Data)))
	w.Write(dl.Data)
}

// resolveStyle layers the request's style fields over the chosen template,
// or over the service defaults when no template is named.
func (s *Server) resolveStyle(r *http.Request, req styleRequest) (render.Style, error) {
	style := s.service.BaseStyle()

	if req.TemplateID != "" {
		templates := s.service.Templates()
		if templates == nil {
			return style, errTemplatesDisabled
		}
		t, err := templates.Get(r.Context(), req.TemplateID)
		if err != nil {
			return style, err
		}
		style = t.Style
	}

	if len(req.Style) > 0 {
		if err := json.Unmarshal(req.Style, &style); err != nil {
			return style, fmt.Errorf("%w: %v", render.ErrInvalidStyle, err)
		}
	}
	if style.HasLogo() && style.LogoMIME == "" {
		style.LogoMIME = render.LogoMIME("", style.Logo)
	}
	return style, nil
}

// decodeJSON reads a JSON request body. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// attachment builds a Content-Disposition value with an ASCII fallback and
// the UTF-8 name per RFC 6266.
func attachment(name string) string {
	fallback := make([]rune, 0, len(name))
	for _, r := range name {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			r = '_'
		}
		fallback = append(fallback, r)
	}
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, string(fallback), url.PathEscape(name))
}
