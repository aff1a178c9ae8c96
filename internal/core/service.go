package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/QRBulk/internal/config"
	"github.com/JonMunkholm/QRBulk/internal/logging"
	"github.com/JonMunkholm/QRBulk/internal/mapping"
	"github.com/JonMunkholm/QRBulk/internal/render"
	"github.com/JonMunkholm/QRBulk/internal/store"
)

var (
	// ErrSessionNotFound is returned for unknown or expired session ids.
	ErrSessionNotFound = errors.New("session not found")

	// ErrDownloadNotFound is returned for archives already taken or expired.
	ErrDownloadNotFound = errors.New("download not found or expired")

	// ErrNoPreview is returned when the first row has nothing to preview.
	ErrNoPreview = errors.New("no preview available: first row has no link")
)

// Options tunes a Service.
type Options struct {
	PreviewSize       int
	DefaultExportSize int
	MaxExportSize     int
	DefaultMargin     int
	DefaultLogoSize   int

	RowTimeout        time.Duration
	ReportDropped     bool
	DownloadRetention time.Duration
	SessionTTL        time.Duration

	MaxConcurrentRuns int
	MaxWait           time.Duration
}

// OptionsFromConfig maps application config to service options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PreviewSize:       cfg.Batch.PreviewSize,
		DefaultExportSize: cfg.Batch.DefaultExportSize,
		MaxExportSize:     cfg.Batch.MaxExportSize,
		DefaultMargin:     cfg.Batch.DefaultMargin,
		DefaultLogoSize:   cfg.Batch.DefaultLogoSize,
		RowTimeout:        cfg.Batch.RowTimeout,
		ReportDropped:     cfg.Batch.ReportDropped,
		DownloadRetention: cfg.Batch.DownloadRetention,
		SessionTTL:        cfg.Upload.SessionTTL,
		MaxConcurrentRuns: cfg.Upload.MaxConcurrent,
		MaxWait:           cfg.Upload.MaxWaitTime,
	}
}

func (o Options) withDefaults() Options {
	if o.PreviewSize <= 0 {
		o.PreviewSize = render.DefaultPreviewSize
	}
	if o.DefaultExportSize <= 0 {
		o.DefaultExportSize = 1000
	}
	if o.MaxExportSize <= 0 || o.MaxExportSize > render.MaxExportSize {
		o.MaxExportSize = render.MaxExportSize
	}
	if o.DefaultLogoSize <= 0 {
		o.DefaultLogoSize = 100
	}
	if o.DownloadRetention <= 0 {
		o.DownloadRetention = 10 * time.Minute
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = 2 * time.Hour
	}
	return o
}

// Service owns upload sessions, batch runs and pending downloads. It is the
// entry point for the web handlers and the CLI.
type Service struct {
	opts      Options
	limiter   *BatchLimiter
	templates store.Store
	now       func() time.Time

	mu        sync.RWMutex
	sessions  map[string]*Session
	downloads map[string]*download
}

type download struct {
	name    string
	data    []byte
	expires time.Time
}

// Download is a claimed archive.
type Download struct {
	Name string
	Data []byte
}

// NewService creates a Service. templates may be nil when no template
// storage is configured.
func NewService(opts Options, templates store.Store) *Service {
	opts = opts.withDefaults()
	return &Service{
		opts:      opts,
		limiter:   NewBatchLimiter(opts.MaxConcurrentRuns, opts.MaxWait),
		templates: templates,
		now:       time.Now,
		sessions:  make(map[string]*Session),
		downloads: make(map[string]*download),
	}
}

// Options returns the effective options after defaults.
func (s *Service) Options() Options {
	return s.opts
}

// Templates returns the template store.
func (s *Service) Templates() store.Store {
	return s.templates
}

// Limiter returns the process-wide batch limiter.
func (s *Service) Limiter() *BatchLimiter {
	return s.limiter
}

// BaseStyle is the style a request starts from before applying its own fields.
func (s *Service) BaseStyle() render.Style {
	st := render.DefaultStyle()
	st.ExportSize = s.opts.DefaultExportSize
	st.Margin = s.opts.DefaultMargin
	st.LogoPixelSize = s.opts.DefaultLogoSize
	return st
}

// CheckStyle validates style against the service's size ceiling.
func (s *Service) CheckStyle(style render.Style) error {
	if err := style.Validate(); err != nil {
		return err
	}
	if style.ExportSize > s.opts.MaxExportSize {
		return fmt.Errorf("%w: exportSize %d exceeds %d", render.ErrInvalidStyle, style.ExportSize, s.opts.MaxExportSize)
	}
	return nil
}

// CreateSession parses a file into a new session. Nothing is stored if
// parsing fails.
func (s *Service) CreateSession(ctx context.Context, name string, data []byte) (SessionInfo, error) {
	sess := newSession(uuid.NewString(), s.runnerConfig(), s.now())
	if err := sess.LoadFile(name, data); err != nil {
		return SessionInfo{}, err
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	logging.FromContext(ctx).Info("session created",
		"session_id", sess.ID, "file", name, "rows", sess.Info().Rows)
	return sess.Info(), nil
}

// Session returns a live session.
func (s *Service) Session(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.touch(s.now())
	return sess, nil
}

// LoadFile replaces a session's file. A failed load leaves it unchanged.
func (s *Service) LoadFile(id, name string, data []byte) (SessionInfo, error) {
	sess, err := s.Session(id)
	if err != nil {
		return SessionInfo{}, err
	}
	if err := sess.LoadFile(name, data); err != nil {
		return SessionInfo{}, err
	}
	return sess.Info(), nil
}

// SelectSheet switches a spreadsheet session to another sheet.
func (s *Service) SelectSheet(id, sheet string) (SessionInfo, error) {
	sess, err := s.Session(id)
	if err != nil {
		return SessionInfo{}, err
	}
	if err := sess.SelectSheet(sheet); err != nil {
		return SessionInfo{}, err
	}
	return sess.Info(), nil
}

// SetMapping stores a user mapping for a session.
func (s *Service) SetMapping(id string, m mapping.Mapping) (SessionInfo, error) {
	sess, err := s.Session(id)
	if err != nil {
		return SessionInfo{}, err
	}
	if err := sess.SetMapping(m); err != nil {
		return SessionInfo{}, err
	}
	return sess.Info(), nil
}

// Preview renders the first row as an SVG at preview size.
func (s *Service) Preview(ctx context.Context, id string, style render.Style) ([]byte, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	return sess.Preview(ctx, style, s.opts.PreviewSize)
}

// Generate runs a batch for the session and parks the archive for one
// download. The run holds a limiter slot for its whole duration.
func (s *Service) Generate(ctx context.Context, id string, style render.Style, format render.Format) (*RunReport, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	if err := s.CheckStyle(style); err != nil {
		return nil, &FatalRunError{Err: err}
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	report, err := sess.Generate(ctx, style, format)
	if err != nil {
		return report, err
	}

	s.mu.Lock()
	s.downloads[report.RunID] = &download{
		name:    report.ArchiveName,
		data:    report.Archive,
		expires: s.now().Add(s.opts.DownloadRetention),
	}
	s.mu.Unlock()

	return report, nil
}

// TakeDownload returns a finished archive and forgets it.
func (s *Service) TakeDownload(runID string) (Download, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.downloads[runID]
	if !ok {
		return Download{}, ErrDownloadNotFound
	}
	delete(s.downloads, runID)

	if s.now().After(d.expires) {
		return Download{}, ErrDownloadNotFound
	}
	return Download{Name: d.name, Data: d.data}, nil
}

// RenderSingle renders one QR code from data as given.
func (s *Service) RenderSingle(ctx context.Context, style render.Style, data string, format render.Format) ([]byte, error) {
	if err := s.CheckStyle(style); err != nil {
		return nil, err
	}
	return render.RenderSingle(ctx, style, data, format, s.opts.PreviewSize)
}

// Sweep drops expired downloads and sessions idle past the TTL. Sessions
// with a run in progress are kept.
func (s *Service) Sweep() (sessions, downloads int) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, d := range s.downloads {
		if now.After(d.expires) {
			delete(s.downloads, id)
			downloads++
		}
	}
	for id, sess := range s.sessions {
		if !sess.Busy() && now.Sub(sess.lastUsed()) > s.opts.SessionTTL {
			sess.close()
			delete(s.sessions, id)
			sessions++
		}
	}
	return sessions, downloads
}

// StartJanitor sweeps every interval until ctx ends.
func (s *Service) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, d := s.Sweep(); n+d > 0 {
					logging.FromContext(ctx).Debug("janitor sweep", "sessions", n, "downloads", d)
				}
			}
		}
	}()
}

// Shutdown waits for running batches to finish, then releases sessions.
func (s *Service) Shutdown(ctx context.Context) error {
	err := s.limiter.WaitForDrain(ctx)

	s.mu.Lock()
	for id, sess := range s.sessions {
		sess.close()
		delete(s.sessions, id)
	}
	s.downloads = make(map[string]*download)
	s.mu.Unlock()

	return err
}

func (s *Service) runnerConfig() RunnerConfig {
	return RunnerConfig{
		PreviewSize:   s.opts.PreviewSize,
		RowTimeout:    s.opts.RowTimeout,
		ReportDropped: s.opts.ReportDropped,
	}
}
