// Package render turns one payload and a style snapshot into an artifact:
// an SVG document, or a PNG or JPEG rasterized from it.
package render

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/JonMunkholm/QRBulk/internal/qrstyle"
)

// ColorMode selects a solid or two-stop gradient dot fill.
type ColorMode string

const (
	ColorSingle   ColorMode = "single"
	ColorGradient ColorMode = "gradient"
)

const (
	// DefaultPreviewSize is the design-time canvas that margins and logo
	// sizes are expressed against.
	DefaultPreviewSize = 300

	// MaxExportSize is the largest accepted export size in pixels.
	MaxExportSize = 8192

	// MaxLogoBytes bounds an embedded logo.
	MaxLogoBytes = 5 << 20
)

// ErrInvalidStyle wraps every style validation failure.
var ErrInvalidStyle = errors.New("invalid style")

var colorPattern = regexp.MustCompile(`^(#([0-9a-fA-F]{3,4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})|[a-zA-Z]+)$`)

// Style is the full visual configuration of a batch. A run takes one
// snapshot at start and applies it to every row.
type Style struct {
	DotColor  string          `json:"dotColor" toml:"dot_color"`
	DotType   qrstyle.DotType `json:"dotType" toml:"dot_type"`
	ColorMode ColorMode       `json:"colorMode" toml:"color_mode"`

	GradientColor    string               `json:"gradientColor,omitempty" toml:"gradient_color"`
	GradientType     qrstyle.GradientType `json:"gradientType,omitempty" toml:"gradient_type"`
	GradientRotation float64              `json:"gradientRotation,omitempty" toml:"gradient_rotation"`

	CustomEyeColor    bool                     `json:"customEyeColor" toml:"custom_eye_color"`
	CornerSquareColor string                   `json:"cornerSquareColor" toml:"corner_square_color"`
	CornerSquareType  qrstyle.CornerSquareType `json:"cornerSquareType" toml:"corner_square_type"`
	CornerDotColor    string                   `json:"cornerDotColor" toml:"corner_dot_color"`
	CornerDotType     qrstyle.CornerDotType    `json:"cornerDotType" toml:"corner_dot_type"`

	TransparentBackground bool   `json:"transparentBackground" toml:"transparent_background"`
	BackgroundColor       string `json:"backgroundColor" toml:"background_color"`

	Logo          []byte `json:"logo,omitempty" toml:"-"`
	LogoMIME      string `json:"logoMime,omitempty" toml:"-"`
	LogoPixelSize int    `json:"logoPixelSize" toml:"logo_pixel_size"`

	ExportSize      int    `json:"exportSize" toml:"export_size"`
	Margin          int    `json:"margin" toml:"margin"`
	ErrorCorrection string `json:"errorCorrection,omitempty" toml:"error_correction"`
}

// DefaultStyle returns black square modules on a transparent background.
func DefaultStyle() Style {
	return Style{
		DotColor:              "#000000",
		DotType:               qrstyle.DotSquare,
		ColorMode:             ColorSingle,
		GradientColor:         "#000000",
		GradientType:          qrstyle.GradientLinear,
		CornerSquareColor:     "#000000",
		CornerSquareType:      qrstyle.CornerSquareSquare,
		CornerDotColor:        "#000000",
		CornerDotType:         qrstyle.CornerDotSquare,
		TransparentBackground: true,
		BackgroundColor:       "#ffffff",
		LogoPixelSize:         100,
		ExportSize:            1000,
		Margin:                10,
	}
}

// HasLogo reports whether the style embeds a logo.
func (s Style) HasLogo() bool {
	return len(s.Logo) > 0
}

// Validate checks every field and reports all problems at once.
func (s Style) Validate() error {
	var errs []string

	checkColor := func(field, v string) {
		if !colorPattern.MatchString(v) {
			errs = append(errs, fmt.Sprintf("%s %q is not a color", field, v))
		}
	}

	checkColor("dotColor", s.DotColor)
	switch s.DotType {
	case qrstyle.DotSquare, qrstyle.DotDots, qrstyle.DotRounded,
		qrstyle.DotExtraRounded, qrstyle.DotClassy, qrstyle.DotClassyRounded:
	default:
		errs = append(errs, fmt.Sprintf("dotType %q is not supported", s.DotType))
	}

	switch s.ColorMode {
	case ColorSingle:
	case ColorGradient:
		checkColor("gradientColor", s.GradientColor)
		if s.GradientType != qrstyle.GradientLinear && s.GradientType != qrstyle.GradientRadial {
			errs = append(errs, fmt.Sprintf("gradientType %q is not supported", s.GradientType))
		}
	default:
		errs = append(errs, fmt.Sprintf("colorMode %q is not supported", s.ColorMode))
	}

	if s.CustomEyeColor {
		checkColor("cornerSquareColor", s.CornerSquareColor)
		checkColor("cornerDotColor", s.CornerDotColor)
	}
	switch s.CornerSquareType {
	case qrstyle.CornerSquareSquare, qrstyle.CornerSquareDot, qrstyle.CornerSquareExtraRounded:
	default:
		errs = append(errs, fmt.Sprintf("cornerSquareType %q is not supported", s.CornerSquareType))
	}
	switch s.CornerDotType {
	case qrstyle.CornerDotSquare, qrstyle.CornerDotDot:
	default:
		errs = append(errs, fmt.Sprintf("cornerDotType %q is not supported", s.CornerDotType))
	}

	if !s.TransparentBackground {
		checkColor("backgroundColor", s.BackgroundColor)
	}

	if s.ExportSize <= 0 || s.ExportSize > MaxExportSize {
		errs = append(errs, fmt.Sprintf("exportSize %d must be 1-%d", s.ExportSize, MaxExportSize))
	}
	if s.Margin < 0 {
		errs = append(errs, fmt.Sprintf("margin %d must be non-negative", s.Margin))
	}

	switch strings.ToUpper(s.ErrorCorrection) {
	case "", "L", "M", "Q", "H":
	default:
		errs = append(errs, fmt.Sprintf("errorCorrection %q must be L, M, Q or H", s.ErrorCorrection))
	}

	if s.HasLogo() {
		if s.LogoPixelSize <= 0 {
			errs = append(errs, fmt.Sprintf("logoPixelSize %d must be positive", s.LogoPixelSize))
		}
		if len(s.Logo) > MaxLogoBytes {
			errs = append(errs, fmt.Sprintf("logo is %d bytes, limit is %d", len(s.Logo), MaxLogoBytes))
		} else if _, _, err := qrstyle.LogoSize(s.logoImage()); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidStyle, strings.Join(errs, "; "))
	}
	return nil
}

func (s Style) logoImage() *qrstyle.Image {
	if !s.HasLogo() {
		return nil
	}
	return &qrstyle.Image{Data: s.Logo, MIME: s.LogoMIME}
}
