package qrstyle

import "strings"

type neighbors struct {
	left, right, top, bottom bool
}

func (n neighbors) none() bool {
	return !n.left && !n.right && !n.top && !n.bottom
}

// corners holds per-corner radii: top-left, top-right, bottom-right, bottom-left.
type corners [4]float64

func dotShape(b *strings.Builder, typ DotType, x, y, s float64, n neighbors) {
	half := s / 2

	switch typ {
	case DotDots:
		circle(b, x+half, y+half, half)

	case DotRounded, DotExtraRounded:
		var round [4]bool
		round[0] = !n.left && !n.top
		round[1] = !n.right && !n.top
		round[2] = !n.right && !n.bottom
		round[3] = !n.left && !n.bottom

		r := half
		if typ == DotExtraRounded && countTrue(round) == 1 {
			r = s
		}
		var c corners
		for i, ok := range round {
			if ok {
				c[i] = r
			}
		}
		roundedRect(b, x, y, s, s, c)

	case DotClassy, DotClassyRounded:
		r := half
		if typ == DotClassyRounded {
			r = s
		}
		var c corners
		if n.none() {
			c[0], c[2] = r, r
		} else {
			if !n.left && !n.top {
				c[0] = r
			}
			if !n.right && !n.bottom {
				c[2] = r
			}
		}
		roundedRect(b, x, y, s, s, c)

	default:
		roundedRect(b, x, y, s, s, corners{})
	}
}

// cornerSquare draws a finder ring as two subpaths filled even-odd.
func cornerSquare(b *strings.Builder, typ CornerSquareType, x, y, s float64) {
	outer := s * finderSize
	inner := outer - 2*s

	switch typ {
	case CornerSquareDot:
		c := outer / 2
		circle(b, x+c, y+c, c)
		circle(b, x+c, y+c, inner/2)
	case CornerSquareExtraRounded:
		roundedRect(b, x, y, outer, outer, uniform(s*2.5))
		roundedRect(b, x+s, y+s, inner, inner, uniform(s*1.5))
	default:
		roundedRect(b, x, y, outer, outer, corners{})
		roundedRect(b, x+s, y+s, inner, inner, corners{})
	}
}

func cornerDot(b *strings.Builder, typ CornerDotType, x, y, s float64) {
	side := s * finderInner
	if typ == CornerDotDot {
		circle(b, x+side/2, y+side/2, side/2)
		return
	}
	roundedRect(b, x, y, side, side, corners{})
}

func uniform(r float64) corners {
	return corners{r, r, r, r}
}

func circle(b *strings.Builder, cx, cy, r float64) {
	b.WriteString("M" + num(cx-r) + " " + num(cy))
	b.WriteString("A" + num(r) + " " + num(r) + " 0 1 0 " + num(cx+r) + " " + num(cy))
	b.WriteString("A" + num(r) + " " + num(r) + " 0 1 0 " + num(cx-r) + " " + num(cy))
	b.WriteString("Z")
}

// roundedRect writes a clockwise rectangle whose corners are rounded by c.
// Zero radii produce straight corners.
func roundedRect(b *strings.Builder, x, y, w, h float64, c corners) {
	arc := func(r, ex, ey float64) {
		if r > 0 {
			b.WriteString("A" + num(r) + " " + num(r) + " 0 0 1 " + num(ex) + " " + num(ey))
		}
	}

	b.WriteString("M" + num(x+c[0]) + " " + num(y))
	b.WriteString("H" + num(x+w-c[1]))
	arc(c[1], x+w, y+c[1])
	b.WriteString("V" + num(y+h-c[2]))
	arc(c[2], x+w-c[2], y+h)
	b.WriteString("H" + num(x+c[3]))
	arc(c[3], x, y+h-c[3])
	b.WriteString("V" + num(y+c[0]))
	arc(c[0], x+c[0], y)
	b.WriteString("Z")
}

func countTrue(v [4]bool) int {
	n := 0
	for _, ok := range v {
		if ok {
			n++
		}
	}
	return n
}
