package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/QRBulk/internal/mapping"
	"github.com/JonMunkholm/QRBulk/internal/render"
	"github.com/JonMunkholm/QRBulk/internal/tabular"
)

// Session is one user's loaded file, active sheet and mapping. Loads and
// sheet switches replace the dataset wholesale; a run works on the
// snapshot it started with.
type Session struct {
	ID string

	mu       sync.Mutex
	source   *tabular.Source
	dataset  *tabular.Dataset
	mapping  mapping.Mapping
	runner   *Runner
	lastSeen time.Time
}

func newSession(id string, cfg RunnerConfig, now time.Time) *Session {
	return &Session{
		ID:       id,
		mapping:  mapping.New(),
		runner:   NewRunner(cfg),
		lastSeen: now,
	}
}

// SessionInfo is the client-visible session state.
type SessionInfo struct {
	ID       string            `json:"id"`
	FileName string            `json:"fileName"`
	Kind     tabular.Kind      `json:"kind"`
	Sheets   []string          `json:"sheets,omitempty"`
	Sheet    string            `json:"sheet,omitempty"`
	Headers  []string          `json:"headers"`
	Rows     int               `json:"rows"`
	Mapping  mapping.Mapping   `json:"mapping"`
	Ready    bool              `json:"ready"`
	Busy     bool              `json:"busy"`
	Sample   map[string]string `json:"sample,omitempty"`
}

// LoadFile parses name and, on success, replaces the session's file. The
// previous mapping is rebased onto the new headers.
func (s *Session) LoadFile(name string, data []byte) error {
	src, err := tabular.Open(name, data)
	if err != nil {
		return err
	}
	ds, err := src.Dataset("")
	if err != nil {
		src.Close()
		return &tabular.LoadError{File: name, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.source != nil {
		s.source.Close()
	}
	s.source = src
	s.dataset = ds
	s.mapping = mapping.Rebase(s.mapping, ds.Headers)
	return nil
}

// SelectSheet re-derives the dataset from another sheet of the loaded workbook.
func (s *Session) SelectSheet(sheet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.source == nil {
		return tabular.ErrEmptyFile
	}
	if s.source.Kind == tabular.KindCSV && sheet != "" {
		return fmt.Errorf("%w: %q", tabular.ErrSheetNotFound, sheet)
	}
	ds, err := s.source.Dataset(sheet)
	if err != nil {
		return err
	}
	s.dataset = ds
	s.mapping = mapping.Rebase(s.mapping, ds.Headers)
	return nil
}

// SetMapping replaces the mapping after checking it against the headers.
func (s *Session) SetMapping(m mapping.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var headers []string
	if s.dataset != nil {
		headers = s.dataset.Headers
	}
	if err := m.Validate(headers); err != nil {
		return err
	}
	s.mapping = m
	return nil
}

// Mapping returns the current mapping.
func (s *Session) Mapping() mapping.Mapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapping
}

// Dataset returns the active dataset. It must be treated as read-only.
func (s *Session) Dataset() *tabular.Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataset
}

// Sample returns the first row as display text, or nil.
func (s *Session) Sample() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampleLocked()
}

func (s *Session) sampleLocked() map[string]string {
	row := s.dataset.First()
	if row == nil {
		return nil
	}
	out := make(map[string]string, len(row))
	for k, c := range row {
		out[k] = c.String()
	}
	return out
}

// Busy reports whether a batch run is in progress.
func (s *Session) Busy() bool {
	return s.runner.Busy()
}

// Info returns a snapshot of the session state.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := SessionInfo{
		ID:      s.ID,
		Mapping: s.mapping,
		Ready:   s.mapping.Ready(),
		Busy:    s.runner.Busy(),
	}
	if s.source != nil {
		info.FileName = s.source.Name
		info.Kind = s.source.Kind
		info.Sheets = s.source.SheetNames()
	}
	if s.dataset != nil {
		info.Sheet = s.dataset.SheetName
		info.Headers = append([]string(nil), s.dataset.Headers...)
		info.Rows = s.dataset.Len()
		info.Sample = s.sampleLocked()
	}
	return info
}

// Preview renders the first row at preview size as SVG.
func (s *Session) Preview(ctx context.Context, style render.Style, previewSize int) ([]byte, error) {
	s.mu.Lock()
	ds, m := s.dataset, s.mapping
	s.mu.Unlock()

	if !m.Ready() {
		return nil, ErrMappingIncomplete
	}
	row := ds.First()
	if row == nil {
		return nil, ErrNoRows
	}

	payload := strings.TrimSpace(m.Value(row, mapping.SlotURL))
	if Clean(payload) == "" {
		return nil, ErrNoPreview
	}

	style.ExportSize = previewSize
	out, err := render.RenderSingle(ctx, style, render.NormalizePayload(payload), render.FormatSVG, previewSize)
	if err != nil {
		if errors.Is(err, render.ErrNoOutput) {
			return nil, ErrNoPreview
		}
		return nil, err
	}
	return out, nil
}

// Generate runs a batch over the current dataset and mapping.
func (s *Session) Generate(ctx context.Context, style render.Style, format render.Format) (*RunReport, error) {
	s.mu.Lock()
	ds, m := s.dataset, s.mapping
	s.mu.Unlock()

	if ds == nil {
		return nil, ErrNoRows
	}
	return s.runner.Run(ctx, ds, m, style, format)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) lastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source != nil {
		s.source.Close()
	}
}
