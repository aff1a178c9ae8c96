package web

import (
	"net/http"
	"strconv"

	"github.com/JonMunkholm/QRBulk/internal/render"
)

type singleQRRequest struct {
	styleRequest
	Data      string `json:"data"`
	Format    string `json:"format"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Platform  string `json:"platform,omitempty"`
}

// handleSingleQR renders one QR code from free text. The data is encoded
// as given, without link normalization.
func (s *Server) handleSingleQR(w http.ResponseWriter, r *http.Request) {
	var req singleQRRequest
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

	out, err := s.service.RenderSingle(r.Context(), style, req.Data, format)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	name := render.SingleFilename(req.FirstName, req.LastName, req.Platform) + "." + format.Ext()
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", attachment(name))
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.Write(out)
}
