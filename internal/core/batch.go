package core

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/QRBulk/internal/logging"
	"github.com/JonMunkholm/QRBulk/internal/mapping"
	"github.com/JonMunkholm/QRBulk/internal/render"
	"github.com/JonMunkholm/QRBulk/internal/tabular"
)

var (
	// ErrMappingIncomplete is returned when the url slot has no usable binding.
	ErrMappingIncomplete = errors.New("mapping incomplete: link field is not bound")

	// ErrNoRows is returned for a dataset without data rows.
	ErrNoRows = errors.New("no rows to generate")

	// ErrNothingGenerated is returned when a run finished without a single artifact.
	ErrNothingGenerated = errors.New("nothing generated: no row produced a qr code")

	// ErrBatchBusy is returned when a run is already in progress.
	ErrBatchBusy = errors.New("batch already running")
)

// ReasonNoOutput is reported for dropped rows when dropped rows are errors.
const ReasonNoOutput = "renderer produced no output"

// FatalRunError aborts a run. No archive is produced.
type FatalRunError struct {
	Row int // 1-based row; 0 when the run failed before the first row
	Err error
}

func (e *FatalRunError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("batch aborted: %v", e.Err)
	}
	return fmt.Sprintf("batch aborted at row %d: %v", e.Row, e.Err)
}

func (e *FatalRunError) Unwrap() error {
	return e.Err
}

// RowError is one reported row failure.
type RowError struct {
	Row    int    `json:"row"` // 1-based
	Label  string `json:"label"`
	Reason string `json:"reason"`
}

// RunReport summarizes a run. Archive is nil unless something was generated.
type RunReport struct {
	RunID       string        `json:"runId"`
	ArchiveName string        `json:"archiveName"`
	Archive     []byte        `json:"-"`
	Format      render.Format `json:"format"`
	Total       int           `json:"total"`
	Generated   int           `json:"generated"`
	Skipped     int           `json:"skipped"`
	Dropped     int           `json:"dropped"`
	Errors      []RowError    `json:"errors"`
	Duration    time.Duration `json:"-"`
	DurationMS  int64         `json:"durationMs"`
}

// State is a runner's lifecycle position.
type State int32

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// ArtifactRenderer renders one payload. render.Renderer satisfies it.
type ArtifactRenderer interface {
	Render(ctx context.Context, style render.Style, payload string, format render.Format) ([]byte, error)
}

// RunnerConfig tunes a Runner.
type RunnerConfig struct {
	PreviewSize   int
	RowTimeout    time.Duration // 0 disables the per-row bound
	ReportDropped bool
}

// Runner executes batch runs one at a time.
type Runner struct {
	cfg   RunnerConfig
	state atomic.Int32

	// NewRenderer returns the renderer for one run. Defaults to render.NewRenderer.
	NewRenderer func() ArtifactRenderer

	// Now is the run clock. Defaults to time.Now.
	Now func() time.Time
}

// NewRunner returns an idle runner.
func NewRunner(cfg RunnerConfig) *Runner {
	r := &Runner{cfg: cfg, Now: time.Now}
	r.NewRenderer = func() ArtifactRenderer { return render.NewRenderer(cfg.PreviewSize) }
	return r
}

// State reports whether a run is in progress.
func (r *Runner) State() State {
	return State(r.state.Load())
}

// Busy reports whether a run is in progress.
func (r *Runner) Busy() bool {
	return r.State() == StateRunning
}

// Run renders every row of ds in order and returns the archive. It ignores
// cancellation of ctx once started; only the per-row timeout bounds it.
//
// If no row produced an artifact the report is returned with
// ErrNothingGenerated and no archive.
func (r *Runner) Run(ctx context.Context, ds *tabular.Dataset, m mapping.Mapping, style render.Style, format render.Format) (*RunReport, error) {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, ErrBatchBusy
	}
	defer r.state.Store(int32(StateIdle))

	if !m.Ready() {
		return nil, ErrMappingIncomplete
	}
	if ds.Len() == 0 {
		return nil, ErrNoRows
	}
	if err := style.Validate(); err != nil {
		return nil, &FatalRunError{Err: err}
	}

	ctx = context.WithoutCancel(ctx)
	start := r.Now()
	report := &RunReport{
		RunID:  uuid.NewString(),
		Format: format,
		Total:  ds.Len(),
		Errors: make([]RowError, 0),
	}
	log := logging.WithFields(ctx, "run_id", report.RunID, "format", string(format))
	log.Info("batch run started", "rows", report.Total)

	renderer := r.NewRenderer()
	asm := NewAssembler(start)
	payloads := 0

	for i, row := range ds.Rows {
		out := Classify(i, row, m)

		switch out.Kind {
		case OutcomeSkip:
			report.Skipped++
			continue
		case OutcomeError:
			report.Errors = append(report.Errors, RowError{Row: i + 1, Label: out.Label, Reason: out.Reason})
			continue
		}
		payloads++

		data, err := r.renderRow(ctx, renderer, style, render.NormalizePayload(out.URL), format)
		if err != nil {
			var fatal *render.FatalError
			switch {
			case errors.As(err, &fatal):
				log.Error("batch run aborted", "row", i+1, "error", err)
				return nil, &FatalRunError{Row: i + 1, Err: err}
			case errors.Is(err, render.ErrNoOutput):
				report.Dropped++
				if r.cfg.ReportDropped {
					report.Errors = append(report.Errors, RowError{Row: i + 1, Label: out.Label, Reason: ReasonNoOutput})
				}
			default:
				report.Errors = append(report.Errors, RowError{Row: i + 1, Label: out.Label, Reason: err.Error()})
			}
			continue
		}

		name := FileName(i, out.FirstName, out.LastName, out.Platform, format.Ext())
		if _, err := asm.Put(i, name, data); err != nil {
			log.Error("batch run aborted", "row", i+1, "error", err)
			return nil, &FatalRunError{Row: i + 1, Err: fmt.Errorf("archive: %w", err)}
		}
		report.Generated++
	}

	report.Duration = r.Now().Sub(start)
	report.DurationMS = report.Duration.Milliseconds()
	fields := []any{
		"rows", report.Total,
		"generated", report.Generated,
		"skipped", report.Skipped,
		"errors", len(report.Errors),
		"dropped", report.Dropped,
		"duration_ms", report.Duration.Milliseconds(),
	}

	if report.Generated == 0 {
		log.Warn("batch run produced nothing", append(fields, "payloads", payloads)...)
		return report, ErrNothingGenerated
	}

	archive, err := asm.Finalize()
	if err != nil {
		return nil, &FatalRunError{Err: err}
	}
	report.Archive = archive
	report.ArchiveName = ArchiveName(format, start)

	log.Info("batch run complete", fields...)
	return report, nil
}

// renderRow renders one payload, bounding it by the row timeout and turning
// a renderer panic into a row error.
func (r *Runner) renderRow(ctx context.Context, rd ArtifactRenderer, style render.Style, payload string, format render.Format) (data []byte, err error) {
	if r.cfg.RowTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.RowTimeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			data, err = nil, fmt.Errorf("render panic: %v", p)
		}
	}()

	return rd.Render(ctx, style, payload, format)
}
