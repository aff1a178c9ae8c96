package qrstyle

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"net/http"
	"strings"

	"github.com/srwiley/oksvg"
	_ "golang.org/x/image/webp"
)

// logoBox is the logo rect in px plus the module span it clears.
type logoBox struct {
	x, y, w, h float64

	col0, col1 int // hidden columns [col0, col1)
	row0, row1 int // hidden rows [row0, row1)
}

func (l *logoBox) covers(r, c int) bool {
	return r >= l.row0 && r < l.row1 && c >= l.col0 && c < l.col1
}

// placeLogo sizes the logo to a whole number of modules. The cleared area
// is bounded by what the error correction level can recover and never
// reaches the finder patterns.
func placeLogo(o Options, g grid) (*logoBox, error) {
	lw, lh, err := LogoSize(o.Image)
	if err != nil {
		return nil, err
	}

	hx, hy := hiddenSpan(g.count, o.ImageOptions.ImageSize, coverage[o.level()], lh/lw)
	if hx == 0 || hy == 0 {
		return nil, nil
	}

	m := float64(o.ImageOptions.Margin)
	w := float64(hx)*g.dot - 2*m
	h := float64(hy)*g.dot - 2*m
	if w <= 0 || h <= 0 {
		return nil, nil
	}

	return &logoBox{
		x:    g.x + float64(g.count-hx)/2*g.dot + m,
		y:    g.y + float64(g.count-hy)/2*g.dot + m,
		w:    w,
		h:    h,
		col0: (g.count - hx) / 2,
		col1: (g.count + hx) / 2,
		row0: (g.count - hy) / 2,
		row1: (g.count + hy) / 2,
	}, nil
}

// hiddenSpan returns the logo size in modules. ratio is height over width.
// Each span has the same parity as count so the logo sits on the center.
func hiddenSpan(count int, imageSize, cover, ratio float64) (int, int) {
	maxHidden := math.Floor(imageSize * cover * float64(count*count))
	if maxHidden <= 0 || ratio <= 0 {
		return 0, 0
	}

	hy := int(math.Floor(math.Sqrt(maxHidden * ratio)))
	hx := int(math.Floor(float64(hy) / ratio))

	limit := count - 2*finderSize
	fit := func(v int) int {
		if v > limit {
			v = limit
		}
		if (count-v)%2 != 0 {
			v--
		}
		if v < 1 {
			return 0
		}
		return v
	}
	return fit(hx), fit(hy)
}

// LogoSize reports the intrinsic width and height of a logo. Raster logos
// are sniffed from their header; SVG logos use their viewBox.
func LogoSize(img *Image) (float64, float64, error) {
	if IsSVG(img) {
		icon, err := oksvg.ReadIconStream(bytes.NewReader(img.Data), oksvg.IgnoreErrorMode)
		if err != nil {
			return 0, 0, fmt.Errorf("decode logo: %w", err)
		}
		if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
			return 1, 1, nil
		}
		return icon.ViewBox.W, icon.ViewBox.H, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode logo: %w", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return 0, 0, errors.New("decode logo: empty image")
	}
	return float64(cfg.Width), float64(cfg.Height), nil
}

// IsSVG reports whether the logo is an SVG document.
func IsSVG(img *Image) bool {
	if img == nil {
		return false
	}
	if strings.HasPrefix(img.MIME, "image/svg") {
		return true
	}
	head := img.Data
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.Contains(head, []byte("<svg"))
}

func mimeType(img *Image) string {
	if img.MIME != "" {
		return img.MIME
	}
	if IsSVG(img) {
		return "image/svg+xml"
	}
	return http.DetectContentType(img.Data)
}

func dataURI(img *Image) string {
	return "data:" + mimeType(img) + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
