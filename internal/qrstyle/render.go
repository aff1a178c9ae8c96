package qrstyle

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/skip2/go-qrcode"
)

const (
	svgNS       = "http://www.w3.org/2000/svg"
	gradientID  = "dots-gradient"
	finderSize  = 7
	finderInner = 3
)

// Render draws o as an SVG document. It returns nil, nil when there is
// nothing to draw: empty data, a zero-sized canvas, or a margin that leaves
// no room for a single module.
func Render(o Options) ([]byte, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(o.Data) == "" || o.Width <= 0 || o.Height <= 0 {
		return nil, nil
	}

	q, err := qrcode.New(o.Data, recoveryLevel(o.level()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	q.DisableBorder = true
	matrix := q.Bitmap()

	g := newGrid(o, len(matrix))
	if g.dot < 1 {
		return nil, nil
	}

	var logo *logoBox
	if o.Image != nil && len(o.Image.Data) > 0 {
		logo, err = placeLogo(o, g)
		if err != nil {
			return nil, err
		}
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	svg := doc.CreateElement("svg")
	svg.CreateAttr("xmlns", svgNS)
	svg.CreateAttr("width", strconv.Itoa(o.Width))
	svg.CreateAttr("height", strconv.Itoa(o.Height))

	fill := o.Dots.Color
	if fill == "" {
		fill = "#000000"
	}
	if o.Dots.Gradient != nil {
		writeGradient(svg.CreateElement("defs"), o.Dots.Gradient, g)
		fill = "url(#" + gradientID + ")"
	}

	if bg := o.Background.Color; bg != "" && bg != "transparent" {
		rect := svg.CreateElement("rect")
		rect.CreateAttr("x", "0")
		rect.CreateAttr("y", "0")
		rect.CreateAttr("width", strconv.Itoa(o.Width))
		rect.CreateAttr("height", strconv.Itoa(o.Height))
		rect.CreateAttr("fill", bg)
	}

	hidden := func(r, c int) bool {
		return logo != nil && o.ImageOptions.HideBackgroundDots && logo.covers(r, c)
	}
	dots := drawDots(matrix, g, o.Dots.Type, hidden)
	if dots != "" {
		addPath(svg, dots, fill, "")
	}

	squares, centers := drawFinders(g, o.CornersSquare.Type, o.CornersDot.Type)
	addPath(svg, squares, inherit(o.CornersSquare.Color, fill), "evenodd")
	addPath(svg, centers, inherit(o.CornersDot.Color, fill), "")

	if logo != nil {
		img := svg.CreateElement("image")
		img.CreateAttr("href", dataURI(o.Image))
		img.CreateAttr("x", num(logo.x))
		img.CreateAttr("y", num(logo.y))
		img.CreateAttr("width", num(logo.w))
		img.CreateAttr("height", num(logo.h))
	}

	return doc.WriteToBytes()
}

func recoveryLevel(level string) qrcode.RecoveryLevel {
	switch level {
	case "L":
		return qrcode.Low
	case "M":
		return qrcode.Medium
	case "H":
		return qrcode.Highest
	default:
		return qrcode.High
	}
}

// grid is the module layout on the canvas.
type grid struct {
	count int     // modules per side
	dot   float64 // module size in px
	x, y  float64 // top-left of the symbol
}

func newGrid(o Options, count int) grid {
	avail := min(o.Width, o.Height) - 2*o.Margin
	dot := math.Floor(float64(avail) / float64(count))
	side := dot * float64(count)
	return grid{
		count: count,
		dot:   dot,
		x:     math.Floor((float64(o.Width) - side) / 2),
		y:     math.Floor((float64(o.Height) - side) / 2),
	}
}

func (g grid) side() float64 {
	return g.dot * float64(g.count)
}

func isFinder(count, r, c int) bool {
	switch {
	case r < finderSize && c < finderSize:
		return true
	case r < finderSize && c >= count-finderSize:
		return true
	case r >= count-finderSize && c < finderSize:
		return true
	}
	return false
}

func drawDots(matrix [][]bool, g grid, typ DotType, hidden func(r, c int) bool) string {
	on := func(r, c int) bool {
		if r < 0 || c < 0 || r >= g.count || c >= g.count {
			return false
		}
		return matrix[r][c] && !isFinder(g.count, r, c) && !hidden(r, c)
	}

	var b strings.Builder
	for r := 0; r < g.count; r++ {
		for c := 0; c < g.count; c++ {
			if !on(r, c) {
				continue
			}
			x := g.x + float64(c)*g.dot
			y := g.y + float64(r)*g.dot
			n := neighbors{
				left:   on(r, c-1),
				right:  on(r, c+1),
				top:    on(r-1, c),
				bottom: on(r+1, c),
			}
			dotShape(&b, typ, x, y, g.dot, n)
		}
	}
	return b.String()
}

func drawFinders(g grid, square CornerSquareType, center CornerDotType) (string, string) {
	origins := [][2]int{{0, 0}, {0, g.count - finderSize}, {g.count - finderSize, 0}}

	var rings, dots strings.Builder
	for _, o := range origins {
		x := g.x + float64(o[1])*g.dot
		y := g.y + float64(o[0])*g.dot
		cornerSquare(&rings, square, x, y, g.dot)
		off := float64(finderSize-finderInner) / 2 * g.dot
		cornerDot(&dots, center, x+off, y+off, g.dot)
	}
	return rings.String(), dots.String()
}

func writeGradient(defs *etree.Element, gr *Gradient, g grid) {
	half := g.side() / 2
	cx, cy := g.x+half, g.y+half

	var el *etree.Element
	if gr.Type == GradientRadial {
		el = defs.CreateElement("radialGradient")
		el.CreateAttr("cx", num(cx))
		el.CreateAttr("cy", num(cy))
		el.CreateAttr("r", num(half))
		el.CreateAttr("fx", num(cx))
		el.CreateAttr("fy", num(cy))
	} else {
		cos, sin := math.Cos(gr.Rotation), math.Sin(gr.Rotation)
		el = defs.CreateElement("linearGradient")
		el.CreateAttr("x1", num(cx-cos*half))
		el.CreateAttr("y1", num(cy-sin*half))
		el.CreateAttr("x2", num(cx+cos*half))
		el.CreateAttr("y2", num(cy+sin*half))
	}
	el.CreateAttr("id", gradientID)
	el.CreateAttr("gradientUnits", "userSpaceOnUse")

	for _, s := range gr.Stops {
		stop := el.CreateElement("stop")
		stop.CreateAttr("offset", num(s.Offset))
		stop.CreateAttr("stop-color", s.Color)
	}
}

func addPath(parent *etree.Element, d, fill, rule string) {
	p := parent.CreateElement("path")
	p.CreateAttr("d", d)
	p.CreateAttr("fill", fill)
	if rule != "" {
		p.CreateAttr("fill-rule", rule)
	}
}

func inherit(color, fallback string) string {
	if color == "" {
		return fallback
	}
	return color
}

func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
}
