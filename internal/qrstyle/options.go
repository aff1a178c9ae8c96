// Package qrstyle renders styled QR codes as SVG documents.
//
// The module matrix comes from go-qrcode. Styling covers dot shapes, finder
// pattern shapes, solid or gradient fills, an optional background and a
// centered logo with the modules behind it cleared. Render is pure: the same
// Options always produce the same bytes.
package qrstyle

import (
	"errors"
	"fmt"
)

// DotType is the shape of a data module.
type DotType string

const (
	DotSquare        DotType = "square"
	DotDots          DotType = "dots"
	DotRounded       DotType = "rounded"
	DotExtraRounded  DotType = "extra-rounded"
	DotClassy        DotType = "classy"
	DotClassyRounded DotType = "classy-rounded"
)

// CornerSquareType is the shape of a finder pattern's outer ring.
type CornerSquareType string

const (
	CornerSquareSquare       CornerSquareType = "square"
	CornerSquareDot          CornerSquareType = "dot"
	CornerSquareExtraRounded CornerSquareType = "extra-rounded"
)

// CornerDotType is the shape of a finder pattern's center.
type CornerDotType string

const (
	CornerDotSquare CornerDotType = "square"
	CornerDotDot    CornerDotType = "dot"
)

// GradientType selects linear or radial interpolation.
type GradientType string

const (
	GradientLinear GradientType = "linear"
	GradientRadial GradientType = "radial"
)

// ErrInvalidOptions is returned for unknown shape or gradient names.
var ErrInvalidOptions = errors.New("invalid qr options")

// ErrEncode is returned when the data cannot be encoded as a QR symbol,
// usually because it is too long.
var ErrEncode = errors.New("qr encode failed")

// ColorStop is one gradient stop. Offset is in [0, 1].
type ColorStop struct {
	Offset float64
	Color  string
}

// Gradient fills shapes with two or more stops. Rotation is in radians and
// only applies to linear gradients.
type Gradient struct {
	Type     GradientType
	Rotation float64
	Stops    []ColorStop
}

// Dots styles the data modules.
type Dots struct {
	Type     DotType
	Color    string
	Gradient *Gradient
}

// CornersSquare styles the finder pattern rings. An empty Color inherits the dots fill.
type CornersSquare struct {
	Type  CornerSquareType
	Color string
}

// CornersDot styles the finder pattern centers. An empty Color inherits the dots fill.
type CornersDot struct {
	Type  CornerDotType
	Color string
}

// Background is drawn behind the symbol. Empty or "transparent" draws nothing.
type Background struct {
	Color string
}

// Image is an embedded logo. MIME is used for the data URI.
type Image struct {
	Data []byte
	MIME string
}

// ImageOptions controls logo placement. ImageSize is the logo's share of
// the symbol, weighted by the error correction capacity.
type ImageOptions struct {
	ImageSize          float64
	HideBackgroundDots bool
	Margin             int
}

// Options fully describes one render.
type Options struct {
	Data            string
	Width           int
	Height          int
	Margin          int
	ErrorCorrection string // L, M, Q or H; Q when empty

	Dots          Dots
	CornersSquare CornersSquare
	CornersDot    CornersDot
	Background    Background

	Image        *Image
	ImageOptions ImageOptions
}

func (o Options) validate() error {
	switch o.Dots.Type {
	case "", DotSquare, DotDots, DotRounded, DotExtraRounded, DotClassy, DotClassyRounded:
	default:
		return fmt.Errorf("%w: dot type %q", ErrInvalidOptions, o.Dots.Type)
	}
	switch o.CornersSquare.Type {
	case "", CornerSquareSquare, CornerSquareDot, CornerSquareExtraRounded:
	default:
		return fmt.Errorf("%w: corner square type %q", ErrInvalidOptions, o.CornersSquare.Type)
	}
	switch o.CornersDot.Type {
	case "", CornerDotSquare, CornerDotDot:
	default:
		return fmt.Errorf("%w: corner dot type %q", ErrInvalidOptions, o.CornersDot.Type)
	}
	if g := o.Dots.Gradient; g != nil {
		if g.Type != GradientLinear && g.Type != GradientRadial {
			return fmt.Errorf("%w: gradient type %q", ErrInvalidOptions, g.Type)
		}
		if len(g.Stops) < 2 {
			return fmt.Errorf("%w: gradient needs at least two stops", ErrInvalidOptions)
		}
	}
	if _, ok := coverage[o.level()]; !ok {
		return fmt.Errorf("%w: error correction %q", ErrInvalidOptions, o.ErrorCorrection)
	}
	return nil
}

func (o Options) level() string {
	if o.ErrorCorrection == "" {
		return "Q"
	}
	return o.ErrorCorrection
}

// coverage is the share of modules each error correction level can lose.
var coverage = map[string]float64{
	"L": 0.07,
	"M": 0.15,
	"Q": 0.25,
	"H": 0.30,
}
