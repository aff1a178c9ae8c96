package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/JonMunkholm/QRBulk/internal/qrstyle"
)

// ErrNoOutput is returned when the engine produced nothing for a payload.
var ErrNoOutput = errors.New("renderer produced no output")

// FatalError marks a render failure that will repeat for every row, such as
// a broken style or an unusable surface. Batch runs abort on it.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return "render: " + e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Renderer produces artifacts for one run. It owns its raster surfaces and
// is not safe for concurrent use.
type Renderer struct {
	preview int
	surface Surface
	flat    Surface

	logo    image.Image
	logoSrc []byte
	logoBox int
}

// NewRenderer returns a renderer calibrated to previewSize.
func NewRenderer(previewSize int) *Renderer {
	if previewSize <= 0 {
		previewSize = DefaultPreviewSize
	}
	return &Renderer{preview: previewSize}
}

// Render converts payload to an artifact in format. Errors tied to the
// payload, such as data too long to encode, are returned plainly; anything
// that would fail for every row is a *FatalError.
func (r *Renderer) Render(ctx context.Context, style Style, payload string, format Format) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	svg, err := qrstyle.Render(Config(style, payload, r.preview))
	if err != nil {
		if errors.Is(err, qrstyle.ErrInvalidOptions) {
			return nil, &FatalError{Err: err}
		}
		return nil, fmt.Errorf("render qr: %w", err)
	}
	if svg == nil {
		return nil, ErrNoOutput
	}

	processed, logo, err := postProcess(svg, style.ExportSize, style.LogoPixelSize, r.preview)
	if err != nil {
		return nil, &FatalError{Err: err}
	}

	switch format {
	case FormatSVG:
		return processed, nil
	case FormatPNG, FormatJPEG:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := r.rasterize(processed, style, logo)
		if err != nil {
			return nil, &FatalError{Err: err}
		}
		out, err := r.encode(img, format)
		if err != nil {
			return nil, &FatalError{Err: err}
		}
		return out, nil
	default:
		return nil, &FatalError{Err: fmt.Errorf("unsupported output format %q", format)}
	}
}

// RenderSingle renders one artifact from data as given, without URL
// normalization.
func RenderSingle(ctx context.Context, style Style, data string, format Format, previewSize int) ([]byte, error) {
	if err := style.Validate(); err != nil {
		return nil, &FatalError{Err: err}
	}
	return NewRenderer(previewSize).Render(ctx, style, data, format)
}

// SingleFilename names a single download from its optional parts.
func SingleFilename(first, last, platform string) string {
	var parts []string
	for _, p := range []string{first, last, platform} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "QR Code"
	}
	return strings.Join(parts, " ")
}
