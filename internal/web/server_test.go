package web

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/QRBulk/internal/config"
	"github.com/JonMunkholm/QRBulk/internal/core"
	"github.com/JonMunkholm/QRBulk/internal/render"
	"github.com/JonMunkholm/QRBulk/internal/store"
	"github.com/JonMunkholm/QRBulk/internal/tabular"
)

const peopleCSV = "Name,Surname,Link\nAnn,Lee,a.example\n,,\nBob,,\n"

func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.LoadWith(func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("LoadWith: %v", err)
	}
	return cfg
}

func newTestServer(t *testing.T, env map[string]string, withTemplates bool) *Server {
	t.Helper()
	cfg := testConfig(t, env)

	var ts store.Store
	if withTemplates {
		fs, err := store.NewFileStore(filepath.Join(t.TempDir(), "templates.json"), 2)
		if err != nil {
			t.Fatalf("NewFileStore: %v", err)
		}
		ts = fs
	}

	srv := NewServer(core.NewService(core.OptionsFromConfig(cfg), ts), cfg)
	t.Cleanup(func() { srv.Shutdown(t.Context()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, srv *Server, method, path, name, content string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if name != "" {
		fw, err := mw.CreateFormFile("file", name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		fw.Write([]byte(content))
	}
	mw.Close()

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, status, rec.Body.String())
	}
	if got := decode[ErrorResponse](t, rec); got.Code != code {
		t.Errorf("code = %q, want %q", got.Code, code)
	}
}

func TestIndex(t *testing.T) {
	srv := newTestServer(t, nil, false)

	rec := do(t, srv, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<h1>QR Bulk</h1>") || !strings.Contains(body, "SVG, PNG, JPEG") {
		t.Errorf("unexpected page: %s", body)
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("security headers missing")
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("CSP missing")
	}
}

func TestBatchFlow(t *testing.T) {
	srv := newTestServer(t, nil, false)

	rec := upload(t, srv, http.MethodPost, "/api/datasets", "people.csv", peopleCSV)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}
	info := decode[core.SessionInfo](t, rec)
	if info.Rows != 3 || !info.Ready {
		t.Fatalf("session = %+v", info)
	}
	base := "/api/sessions/" + info.ID

	mapping := map[string]any{
		"url":       map[string]string{"kind": "column", "column": "Link"},
		"firstName": map[string]string{"kind": "column", "column": "Name"},
		"lastName":  map[string]string{"kind": "column", "column": "Surname"},
		"platform":  map[string]string{"kind": "custom", "custom": "Web"},
	}
	if rec := do(t, srv, http.MethodPut, base+"/mapping", mapping); rec.Code != http.StatusOK {
		t.Fatalf("mapping status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, srv, http.MethodPost, base+"/preview", map[string]any{"style": map[string]any{"dotColor": "#112233"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("preview status = %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "image/svg+xml" || !strings.Contains(rec.Body.String(), "#112233") {
		t.Errorf("preview = %s %.200s", rec.Header().Get("Content-Type"), rec.Body.String())
	}

	rec = do(t, srv, http.MethodPost, base+"/generate", map[string]any{"format": "svg"})
	if rec.Code != http.StatusOK {
		t.Fatalf("generate status = %d: %s", rec.Code, rec.Body.String())
	}
	gen := decode[generateResponse](t, rec)
	if gen.Report.Generated != 1 || gen.Report.Skipped != 1 || len(gen.Report.Errors) != 1 {
		t.Errorf("report = %+v", gen.Report)
	}

	rec = do(t, srv, http.MethodGet, gen.DownloadURL, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), gen.Report.ArchiveName) {
		t.Errorf("Content-Disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "Ann_Lee_Web.svg" {
		t.Errorf("archive entries = %v", zr.File)
	}

	expectError(t, do(t, srv, http.MethodGet, gen.DownloadURL, nil), http.StatusNotFound, "UPL004")
}

func TestGenerate_Errors(t *testing.T) {
	srv := newTestServer(t, nil, false)
	info := decode[core.SessionInfo](t, upload(t, srv, http.MethodPost, "/api/datasets", "people.csv", "Name,Link\nBob,\n"))
	base := "/api/sessions/" + info.ID

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"bad format", map[string]any{"format": "gif"}, http.StatusBadRequest, "GEN005"},
		{"bad style", map[string]any{"format": "png", "style": map[string]any{"dotColor": "#12"}}, http.StatusBadRequest, "GEN003"},
		{"bad body", "{", http.StatusBadRequest, "REQ001"},
		{"nothing generated", map[string]any{"format": "svg"}, http.StatusUnprocessableEntity, "GEN002"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, do(t, srv, http.MethodPost, base+"/generate", tt.body), tt.status, tt.code)
		})
	}

	rec := do(t, srv, http.MethodPost, base+"/generate", map[string]any{"format": "svg"})
	if gen := decode[generateResponse](t, rec); gen.Report == nil || len(gen.Report.Errors) != 1 {
		t.Errorf("nothing generated should carry the report: %s", rec.Body.String())
	}
}

func TestSessionErrors(t *testing.T) {
	srv := newTestServer(t, nil, false)

	expectError(t, do(t, srv, http.MethodGet, "/api/sessions/missing", nil), http.StatusNotFound, "UPL003")
	expectError(t, upload(t, srv, http.MethodPost, "/api/datasets", "people.pdf", "x"), http.StatusBadRequest, "FILE003")
	expectError(t, upload(t, srv, http.MethodPost, "/api/datasets", "", ""), http.StatusBadRequest, "FILE004")

	info := decode[core.SessionInfo](t, upload(t, srv, http.MethodPost, "/api/datasets", "people.csv", peopleCSV))
	base := "/api/sessions/" + info.ID

	expectError(t, do(t, srv, http.MethodPost, base+"/sheet", map[string]string{"sheet": "Other"}), http.StatusBadRequest, "FILE006")
	expectError(t, do(t, srv, http.MethodPut, base+"/mapping", map[string]any{
		"url": map[string]string{"kind": "column", "column": "Nope"},
	}), http.StatusBadRequest, "MAP002")
	expectError(t, upload(t, srv, http.MethodPut, base+"/file", "empty.csv", ""), http.StatusBadRequest, "FILE005")

	rec := do(t, srv, http.MethodGet, base, nil)
	if got := decode[core.SessionInfo](t, rec); got.FileName != "people.csv" {
		t.Errorf("failed replace changed the session: %+v", got)
	}
}

func TestSingleQR(t *testing.T) {
	srv := newTestServer(t, nil, false)

	rec := do(t, srv, http.MethodPost, "/api/qr", map[string]any{
		"data":      "hello",
		"format":    "png",
		"firstName": "Ann",
		"lastName":  "Lee",
		"style":     map[string]any{"exportSize": 200},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), `filename="Ann Lee.png"`) {
		t.Errorf("Content-Disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("body is not a png")
	}

	expectError(t, do(t, srv, http.MethodPost, "/api/qr", map[string]any{"format": "svg"}), http.StatusUnprocessableEntity, "GEN007")
}

func TestTemplates(t *testing.T) {
	srv := newTestServer(t, nil, true)

	rec := do(t, srv, http.MethodPost, "/api/templates", map[string]any{
		"name":  "Brand",
		"style": map[string]any{"dotColor": "#ff0000", "dotType": "dots"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[store.Template](t, rec)
	if created.Style.DotColor != "#ff0000" || created.Style.ExportSize != 1000 {
		t.Errorf("style = %+v", created.Style)
	}

	rec = do(t, srv, http.MethodPut, "/api/templates/"+created.ID, map[string]string{"name": "Brand 2"})
	if got := decode[store.Template](t, rec); got.Name != "Brand 2" {
		t.Errorf("rename = %+v", got)
	}

	rec = do(t, srv, http.MethodGet, "/api/templates/"+created.ID+"/share", nil)
	code := decode[map[string]string](t, rec)["code"]
	if code == "" {
		t.Fatal("empty share code")
	}

	rec = do(t, srv, http.MethodPost, "/api/templates/import", map[string]string{"code": code})
	if rec.Code != http.StatusCreated {
		t.Fatalf("import status = %d: %s", rec.Code, rec.Body.String())
	}
	imported := decode[store.Template](t, rec)
	if imported.ID == created.ID || imported.Name != "Brand 2" || imported.Style.DotType != created.Style.DotType {
		t.Errorf("imported = %+v", imported)
	}

	expectError(t, do(t, srv, http.MethodPost, "/api/templates", map[string]any{"name": "Third"}), http.StatusConflict, "TPL001")
	expectError(t, do(t, srv, http.MethodPost, "/api/templates/import", map[string]string{"code": "!!"}), http.StatusBadRequest, "TPL003")

	list := decode[[]store.Template](t, do(t, srv, http.MethodGet, "/api/templates", nil))
	if len(list) != 2 {
		t.Errorf("list has %d templates", len(list))
	}

	if rec := do(t, srv, http.MethodDelete, "/api/templates/"+created.ID, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	expectError(t, do(t, srv, http.MethodGet, "/api/templates/"+created.ID, nil), http.StatusNotFound, "TPL002")
}

func TestTemplates_AppliedToPreview(t *testing.T) {
	srv := newTestServer(t, nil, true)
	tpl := decode[store.Template](t, do(t, srv, http.MethodPost, "/api/templates", map[string]any{
		"name":  "Green",
		"style": map[string]any{"dotColor": "#00aa00"},
	}))
	info := decode[core.SessionInfo](t, upload(t, srv, http.MethodPost, "/api/datasets", "people.csv", peopleCSV))

	rec := do(t, srv, http.MethodPost, "/api/sessions/"+info.ID+"/preview", map[string]any{"templateId": tpl.ID})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "#00aa00") {
		t.Errorf("preview did not use template: %d %.200s", rec.Code, rec.Body.String())
	}
}

func TestTemplates_Disabled(t *testing.T) {
	srv := newTestServer(t, nil, false)
	expectError(t, do(t, srv, http.MethodGet, "/api/templates", nil), http.StatusServiceUnavailable, "TPL005")
}

func TestAPIKey(t *testing.T) {
	srv := newTestServer(t, map[string]string{"REQUIRE_API_KEY": "true", "API_KEYS": "k1,k2"}, false)

	rec := do(t, srv, http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("X-API-Key", "k2")
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid key status = %d", rec.Code)
	}

	if rec := do(t, srv, http.MethodGet, "/", nil); rec.Code != http.StatusOK {
		t.Errorf("index should not need a key, got %d", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	defer rl.stop()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.allow("1.1.1.1") || !rl.allow("1.1.1.1") {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("1.1.1.1") {
		t.Error("third request should be limited")
	}
	if !rl.allow("2.2.2.2") {
		t.Error("other client should pass")
	}

	now = now.Add(2 * time.Minute)
	if !rl.allow("1.1.1.1") {
		t.Error("new window should reset tokens")
	}
}

func TestRateLimit_Response(t *testing.T) {
	srv := newTestServer(t, map[string]string{"RATE_LIMIT_REQUESTS_PER_MINUTE": "1"}, false)

	do(t, srv, http.MethodGet, "/api/status", nil)
	rec := do(t, srv, http.MethodGet, "/api/status", nil)
	expectError(t, rec, http.StatusTooManyRequests, "RATE001")
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrSessionNotFound, http.StatusNotFound},
		{store.ErrTemplateNotFound, http.StatusNotFound},
		{core.ErrBatchBusy, http.StatusConflict},
		{core.ErrTooManyRuns, http.StatusServiceUnavailable},
		{&core.FatalRunError{Err: fmt.Errorf("%w: x", render.ErrInvalidStyle)}, http.StatusBadRequest},
		{&core.FatalRunError{Row: 2, Err: errors.New("surface")}, http.StatusInternalServerError},
		{&tabular.LoadError{File: "a", Err: tabular.ErrEmptyFile}, http.StatusBadRequest},
		{core.ErrNothingGenerated, http.StatusUnprocessableEntity},
		{errFileTooLarge, http.StatusRequestEntityTooLarge},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestAttachment(t *testing.T) {
	got := attachment(`Иван "A".png`)
	want := `attachment; filename="____ _A_.png"; filename*=UTF-8''%D0%98%D0%B2%D0%B0%D0%BD%20%22A%22.png`
	if got != want {
		t.Errorf("attachment() = %q, want %q", got, want)
	}
}

func TestErrorAlert_HTMX(t *testing.T) {
	srv := newTestServer(t, nil, false)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/missing", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "Code: UPL003") {
		t.Errorf("htmx error = %d %s", rec.Code, rec.Body.String())
	}
}
