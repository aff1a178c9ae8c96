package render

import (
	"fmt"
	"strings"
)

// Format is an artifact encoding.
type Format string

const (
	FormatSVG  Format = "svg"
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatSVG, FormatPNG, FormatJPEG}
}

// ParseFormat accepts a format name case-insensitively. "jpg" is an alias of jpeg.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "svg":
		return FormatSVG, nil
	case "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", s)
	}
}

// Ext returns the file extension without the dot.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// ContentType returns the MIME type of the encoding.
func (f Format) ContentType() string {
	switch f {
	case FormatSVG:
		return "image/svg+xml"
	case FormatPNG:
		return "image/png"
	case FormatJPEG:
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

// IsRaster reports whether the format is a pixel image.
func (f Format) IsRaster() bool {
	return f == FormatPNG || f == FormatJPEG
}
