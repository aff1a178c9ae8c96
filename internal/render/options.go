package render

import (
	"math"
	"strings"

	"github.com/JonMunkholm/QRBulk/internal/qrstyle"
)

// NormalizePayload trims s and prefixes https:// unless it already starts
// with http:// or https://. Empty input stays empty.
func NormalizePayload(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}
	return "https://" + s
}

// Config builds engine options for one artifact. Margin and logo size are
// scaled from the preview canvas to the export size.
func Config(style Style, payload string, previewSize int) qrstyle.Options {
	if previewSize <= 0 {
		previewSize = DefaultPreviewSize
	}
	size := style.ExportSize

	o := qrstyle.Options{
		Data:            payload,
		Width:           size,
		Height:          size,
		Margin:          int(math.Floor(float64(style.Margin) * float64(size) / float64(previewSize))),
		ErrorCorrection: strings.ToUpper(style.ErrorCorrection),
		Dots: qrstyle.Dots{
			Type:  style.DotType,
			Color: style.DotColor,
		},
		CornersSquare: qrstyle.CornersSquare{Type: style.CornerSquareType, Color: style.DotColor},
		CornersDot:    qrstyle.CornersDot{Type: style.CornerDotType, Color: style.DotColor},
	}

	if style.ColorMode == ColorGradient {
		o.Dots.Gradient = &qrstyle.Gradient{
			Type:     style.GradientType,
			Rotation: style.GradientRotation,
			Stops: []qrstyle.ColorStop{
				{Offset: 0, Color: style.DotColor},
				{Offset: 1, Color: style.GradientColor},
			},
		}
	}

	if style.CustomEyeColor {
		o.CornersSquare.Color = style.CornerSquareColor
		o.CornersDot.Color = style.CornerDotColor
	}

	switch {
	case style.TransparentBackground:
		o.Background.Color = "transparent"
	case style.BackgroundColor == "":
		o.Background.Color = "#ffffff"
	default:
		o.Background.Color = style.BackgroundColor
	}

	if style.HasLogo() {
		o.Image = style.logoImage()
		o.ImageOptions = qrstyle.ImageOptions{
			ImageSize:          math.Min(float64(style.LogoPixelSize)/float64(previewSize), 0.5),
			HideBackgroundDots: true,
		}
	}

	return o
}
