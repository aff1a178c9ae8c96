package qrstyle

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"
	"testing"

	"github.com/beevik/etree"
)

func baseOptions() Options {
	return Options{
		Data:          "https://example.com",
		Width:         300,
		Height:        300,
		Margin:        10,
		Dots:          Dots{Type: DotSquare, Color: "#112233"},
		CornersSquare: CornersSquare{Type: CornerSquareSquare},
		CornersDot:    CornersDot{Type: CornerDotSquare},
		Background:    Background{Color: "#ffffff"},
	}
}

func parse(t *testing.T, svg []byte) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(svg); err != nil {
		t.Fatalf("invalid svg: %v", err)
	}
	root := doc.SelectElement("svg")
	if root == nil {
		t.Fatal("missing <svg> root")
	}
	return root
}

func pngLogo(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRender_NoOutput(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{"empty data", func(o *Options) { o.Data = "" }},
		{"blank data", func(o *Options) { o.Data = "   " }},
		{"zero width", func(o *Options) { o.Width = 0 }},
		{"margin swallows canvas", func(o *Options) { o.Margin = 150 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := baseOptions()
			tt.modify(&o)
			out, err := Render(o)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if out != nil {
				t.Errorf("Render() = %d bytes, want nil", len(out))
			}
		})
	}
}

func TestRender_Errors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Options)
		wantErr error
	}{
		{"unknown dot type", func(o *Options) { o.Dots.Type = "stars" }, ErrInvalidOptions},
		{"unknown corner type", func(o *Options) { o.CornersSquare.Type = "hex" }, ErrInvalidOptions},
		{"unknown corner dot", func(o *Options) { o.CornersDot.Type = "ring" }, ErrInvalidOptions},
		{"bad level", func(o *Options) { o.ErrorCorrection = "X" }, ErrInvalidOptions},
		{"one stop gradient", func(o *Options) {
			o.Dots.Gradient = &Gradient{Type: GradientLinear, Stops: []ColorStop{{0, "#000"}}}
		}, ErrInvalidOptions},
		{"data too long", func(o *Options) { o.Data = strings.Repeat("x", 4000) }, ErrEncode},
		{"broken logo", func(o *Options) {
			o.Image = &Image{Data: []byte("not an image"), MIME: "image/png"}
			o.ImageOptions.ImageSize = 0.3
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := baseOptions()
			tt.modify(&o)
			_, err := Render(o)
			if err == nil {
				t.Fatal("Render() expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Render() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRender_Structure(t *testing.T) {
	out, err := Render(baseOptions())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	root := parse(t, out)

	if root.SelectAttrValue("width", "") != "300" || root.SelectAttrValue("height", "") != "300" {
		t.Errorf("root size = %s x %s", root.SelectAttrValue("width", ""), root.SelectAttrValue("height", ""))
	}
	if rect := root.SelectElement("rect"); rect == nil || rect.SelectAttrValue("fill", "") != "#ffffff" {
		t.Error("missing background rect")
	}

	paths := root.SelectElements("path")
	if len(paths) != 3 {
		t.Fatalf("got %d paths, want dots, rings and centers", len(paths))
	}
	for _, p := range paths {
		if got := p.SelectAttrValue("fill", ""); got != "#112233" {
			t.Errorf("path fill = %q, want dots color inherited", got)
		}
	}
	if rule := paths[1].SelectAttrValue("fill-rule", ""); rule != "evenodd" {
		t.Errorf("ring fill-rule = %q, want evenodd", rule)
	}
}

func TestRender_Deterministic(t *testing.T) {
	o := baseOptions()
	o.Dots.Type = DotClassyRounded
	a, err := Render(o)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Render(o)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("identical options rendered different bytes")
	}
}

func TestRender_TransparentBackground(t *testing.T) {
	for _, bg := range []string{"", "transparent"} {
		o := baseOptions()
		o.Background.Color = bg
		out, err := Render(o)
		if err != nil {
			t.Fatal(err)
		}
		if parse(t, out).SelectElement("rect") != nil {
			t.Errorf("background %q drew a rect", bg)
		}
	}
}

func TestRender_Gradient(t *testing.T) {
	for _, typ := range []GradientType{GradientLinear, GradientRadial} {
		t.Run(string(typ), func(t *testing.T) {
			o := baseOptions()
			o.CornersSquare.Color = "#ff0000"
			o.Dots.Gradient = &Gradient{
				Type:  typ,
				Stops: []ColorStop{{0, "#000000"}, {1, "#0000ff"}},
			}

			out, err := Render(o)
			if err != nil {
				t.Fatal(err)
			}
			root := parse(t, out)

			grad := root.FindElement("//" + string(typ) + "Gradient")
			if grad == nil {
				t.Fatalf("missing %sGradient", typ)
			}
			if grad.SelectAttrValue("gradientUnits", "") != "userSpaceOnUse" {
				t.Error("gradient should use user space units")
			}
			if n := len(grad.SelectElements("stop")); n != 2 {
				t.Errorf("got %d stops, want 2", n)
			}

			paths := root.SelectElements("path")
			want := []string{"url(#dots-gradient)", "#ff0000", "url(#dots-gradient)"}
			for i, p := range paths {
				if got := p.SelectAttrValue("fill", ""); got != want[i] {
					t.Errorf("path %d fill = %q, want %q", i, got, want[i])
				}
			}
		})
	}
}

func TestRender_AllShapes(t *testing.T) {
	dotTypes := []DotType{DotSquare, DotDots, DotRounded, DotExtraRounded, DotClassy, DotClassyRounded}
	squareTypes := []CornerSquareType{CornerSquareSquare, CornerSquareDot, CornerSquareExtraRounded}
	dotCenters := []CornerDotType{CornerDotSquare, CornerDotDot}

	for i, dt := range dotTypes {
		o := baseOptions()
		o.Dots.Type = dt
		o.CornersSquare.Type = squareTypes[i%len(squareTypes)]
		o.CornersDot.Type = dotCenters[i%len(dotCenters)]

		out, err := Render(o)
		if err != nil {
			t.Fatalf("%s: Render() error = %v", dt, err)
		}
		d := parse(t, out).SelectElement("path").SelectAttrValue("d", "")
		if d == "" {
			t.Errorf("%s: empty dots path", dt)
		}
		if dt == DotSquare && strings.Contains(d, "A") {
			t.Errorf("square dots should have no arcs")
		}
		if dt == DotDots && !strings.Contains(d, "A") {
			t.Errorf("round dots should use arcs")
		}
	}
}

func TestRender_Logo(t *testing.T) {
	o := baseOptions()
	o.Margin = 0
	o.Image = &Image{Data: pngLogo(t, 40, 40)}
	o.ImageOptions = ImageOptions{ImageSize: 0.4, HideBackgroundDots: true}

	out, err := Render(o)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	root := parse(t, out)

	img := root.SelectElement("image")
	if img == nil {
		t.Fatal("missing <image>")
	}
	if href := img.SelectAttrValue("href", ""); !strings.HasPrefix(href, "data:image/png;base64,") {
		t.Errorf("href = %.40q, want png data uri", href)
	}

	w, _ := strconv.ParseFloat(img.SelectAttrValue("width", ""), 64)
	x, _ := strconv.ParseFloat(img.SelectAttrValue("x", ""), 64)
	if w <= 0 {
		t.Fatalf("logo width = %v", w)
	}
	if x+w/2 != 150 {
		t.Errorf("logo center x = %v, want 150", x+w/2)
	}

	// Cleared dots make the dots path shorter than with the logo drawn over them.
	shown := o
	shown.ImageOptions.HideBackgroundDots = false
	full, err := Render(shown)
	if err != nil {
		t.Fatal(err)
	}
	hidden := root.SelectElement("path").SelectAttrValue("d", "")
	all := parse(t, full).SelectElement("path").SelectAttrValue("d", "")
	if len(hidden) >= len(all) {
		t.Errorf("hidden dots path (%d) should be shorter than full path (%d)", len(hidden), len(all))
	}
}

func TestRender_SVGLogo(t *testing.T) {
	o := baseOptions()
	o.Image = &Image{Data: []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 20 10"><rect width="20" height="10"/></svg>`)}
	o.ImageOptions = ImageOptions{ImageSize: 0.5}

	out, err := Render(o)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	img := parse(t, out).SelectElement("image")
	if img == nil {
		t.Fatal("missing <image>")
	}
	if href := img.SelectAttrValue("href", ""); !strings.HasPrefix(href, "data:image/svg+xml;base64,") {
		t.Errorf("href = %.40q, want svg data uri", href)
	}

	w, _ := strconv.ParseFloat(img.SelectAttrValue("width", ""), 64)
	h, _ := strconv.ParseFloat(img.SelectAttrValue("height", ""), 64)
	if w <= h {
		t.Errorf("wide logo got %vx%v, want width > height", w, h)
	}
}

func TestHiddenSpan(t *testing.T) {
	tests := []struct {
		count     int
		imageSize float64
		cover     float64
		ratio     float64
	}{
		{21, 0.3, 0.25, 1},
		{25, 0.3, 0.25, 1},
		{25, 0.5, 0.30, 1},
		{33, 0.4, 0.25, 0.5},
		{41, 0.5, 0.30, 2},
	}

	for _, tt := range tests {
		hx, hy := hiddenSpan(tt.count, tt.imageSize, tt.cover, tt.ratio)
		for _, v := range []int{hx, hy} {
			if v == 0 {
				continue
			}
			if (tt.count-v)%2 != 0 {
				t.Errorf("count %d: span %d is off-center", tt.count, v)
			}
			if v > tt.count-14 {
				t.Errorf("count %d: span %d reaches the finder patterns", tt.count, v)
			}
		}
	}

	if hx, hy := hiddenSpan(25, 0, 0.25, 1); hx != 0 || hy != 0 {
		t.Errorf("zero image size gave %d x %d", hx, hy)
	}
}

func TestRoundedRect(t *testing.T) {
	var b strings.Builder
	roundedRect(&b, 0, 0, 10, 10, corners{})
	if got, want := b.String(), "M0 0H10V10H0V0Z"; got != want {
		t.Errorf("square = %q, want %q", got, want)
	}

	b.Reset()
	roundedRect(&b, 0, 0, 10, 10, corners{5, 0, 5, 0})
	if got := strings.Count(b.String(), "A"); got != 2 {
		t.Errorf("got %d arcs, want 2", got)
	}
}
