package render

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/JonMunkholm/QRBulk/internal/qrstyle"
)

const jpegQuality = 92

// Surface is a reusable square RGBA canvas. Every reset clears it fully so
// no pixels carry over between artifacts.
type Surface struct {
	img *image.RGBA
}

func (s *Surface) reset(size int) *image.RGBA {
	if s.img == nil || s.img.Bounds().Dx() != size {
		s.img = image.NewRGBA(image.Rect(0, 0, size, size))
		return s.img
	}
	clear(s.img.Pix)
	return s.img
}

// rasterize draws the post-processed document onto the surface and then
// composites the logo at its exact rect.
func (r *Renderer) rasterize(svg []byte, style Style, logo *logoRect) (*image.RGBA, error) {
	size := style.ExportSize

	icon, err := oksvg.ReadIconStream(bytes.NewReader(svg), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	dst := r.surface.reset(size)
	scanner := rasterx.NewScannerGV(size, size, dst, dst.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1)

	if logo != nil && style.HasLogo() {
		src, err := r.logoImage(style, int(math.Ceil(logo.size)))
		if err != nil {
			return nil, err
		}
		drawLogo(dst, src, logo)
	}

	return dst, nil
}

// logoImage decodes the style's logo once per run. SVG logos are
// rasterized at the target box size.
func (r *Renderer) logoImage(style Style, box int) (image.Image, error) {
	if r.logo != nil && r.logoBox == box && bytes.Equal(r.logoSrc, style.Logo) {
		return r.logo, nil
	}

	var (
		img image.Image
		err error
	)
	if qrstyle.IsSVG(style.logoImage()) {
		img, err = rasterizeLogo(style.Logo, box)
	} else {
		img, _, err = image.Decode(bytes.NewReader(style.Logo))
	}
	if err != nil {
		return nil, fmt.Errorf("decode logo: %w", err)
	}

	r.logo, r.logoSrc, r.logoBox = img, style.Logo, box
	return img, nil
}

func rasterizeLogo(data []byte, box int) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, err
	}

	w, h := icon.ViewBox.W, icon.ViewBox.H
	if w <= 0 || h <= 0 {
		w, h = 1, 1
	}
	scale := float64(box) / math.Max(w, h)
	pw := max(1, int(math.Ceil(w*scale)))
	ph := max(1, int(math.Ceil(h*scale)))

	img := image.NewRGBA(image.Rect(0, 0, pw, ph))
	icon.SetTarget(0, 0, float64(pw), float64(ph))
	scanner := rasterx.NewScannerGV(pw, ph, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(pw, ph, scanner), 1)
	return img, nil
}

// drawLogo scales src into rect keeping its aspect ratio, centered.
func drawLogo(dst *image.RGBA, src image.Image, rect *logoRect) {
	sb := src.Bounds()
	sw, sh := float64(sb.Dx()), float64(sb.Dy())
	if sw == 0 || sh == 0 {
		return
	}

	scale := math.Min(rect.size/sw, rect.size/sh)
	w, h := sw*scale, sh*scale
	x := rect.x + (rect.size-w)/2
	y := rect.y + (rect.size-h)/2

	dr := image.Rect(
		int(math.Round(x)), int(math.Round(y)),
		int(math.Round(x+w)), int(math.Round(y+h)),
	)
	draw.CatmullRom.Scale(dst, dr, src, sb, draw.Over, nil)
}

// encode writes the surface as PNG with alpha, or as JPEG flattened on white.
func (r *Renderer) encode(img *image.RGBA, format Format) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case FormatJPEG:
		flat := r.flat.reset(img.Bounds().Dx())
		draw.Draw(flat, flat.Bounds(), image.White, image.Point{}, draw.Src)
		draw.Draw(flat, flat.Bounds(), img, image.Point{}, draw.Over)
		if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	default:
		return nil, fmt.Errorf("format %q is not a raster format", format)
	}

	return buf.Bytes(), nil
}
