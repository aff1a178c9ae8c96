package render

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/beevik/etree"
)

// logoRect is the logo's final placement on the export canvas.
type logoRect struct {
	x, y, size float64
}

// PostProcess pins the document to size x size and replaces the engine's
// grid-snapped logo size with the exact requested one, centered.
func PostProcess(svg []byte, size, logoPx, previewSize int) ([]byte, error) {
	out, _, err := postProcess(svg, size, logoPx, previewSize)
	return out, err
}

func postProcess(svg []byte, size, logoPx, previewSize int) ([]byte, *logoRect, error) {
	if previewSize <= 0 {
		previewSize = DefaultPreviewSize
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(svg); err != nil {
		return nil, nil, fmt.Errorf("parse svg: %w", err)
	}
	root := doc.SelectElement("svg")
	if root == nil {
		return nil, nil, errors.New("parse svg: missing svg root")
	}

	side := strconv.Itoa(size)
	root.CreateAttr("width", side)
	root.CreateAttr("height", side)
	root.CreateAttr("viewBox", "0 0 "+side+" "+side)
	root.CreateAttr("preserveAspectRatio", "xMidYMid meet")

	var rect *logoRect
	if img := root.FindElement("//image"); img != nil {
		ls := math.Min(float64(logoPx)*float64(size)/float64(previewSize), float64(size)/2)
		pos := (float64(size) - ls) / 2

		img.CreateAttr("width", fmtFloat(ls))
		img.CreateAttr("height", fmtFloat(ls))
		img.CreateAttr("x", fmtFloat(pos))
		img.CreateAttr("y", fmtFloat(pos))
		rect = &logoRect{x: pos, y: pos, size: ls}
	}

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, nil, fmt.Errorf("write svg: %w", err)
	}
	return out, rect, nil
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
