package chart

import (
	"fmt"
	"io"
	"math"

	svg "github.com/ajstarks/svgo"
)

// Mark is one drawable shape of a scene.
type Mark interface {
	draw(canvas *svg.SVG)
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	X, Y, W, H float64
	Fill       string
	Class      string
}

// Circle is a filled circle.
type Circle struct {
	X, Y, R float64
	Fill    string
}

// Line is a stroked segment.
type Line struct {
	X1, Y1, X2, Y2 float64
	Stroke         string
}

// Text is a label anchored at X, Y.
type Text struct {
	X, Y   float64
	Text   string
	Anchor string
}

// Scene is what a chart last rendered: data marks and the brush overlay.
type Scene struct {
	Width, Height float64
	FontSize      float64
	Marks         []Mark
	Overlay       []Mark
}

// Empty reports whether nothing has been rendered.
func (s Scene) Empty() bool { return len(s.Marks) == 0 }

// WriteSVG writes the scene as a standalone SVG document.
func (s Scene) WriteSVG(w io.Writer) error {
	cw := &errWriter{w: w}
	canvas := svg.New(cw)
	canvas.Start(px(s.Width), px(s.Height),
		fmt.Sprintf(`viewBox="0 0 %d %d"`, px(s.Width), px(s.Height)),
		fmt.Sprintf(`font-size="%gpx"`, s.FontSize))
	canvas.Group(`class="data"`)
	for _, m := range s.Marks {
		m.draw(canvas)
	}
	canvas.Gend()
	canvas.Group(`class="overlay"`)
	for _, m := range s.Overlay {
		m.draw(canvas)
	}
	canvas.Gend()
	canvas.End()
	return cw.err
}

func (r Rect) draw(canvas *svg.SVG) {
	attrs := []string{fmt.Sprintf(`fill="%s"`, r.Fill)}
	if r.Class != "" {
		attrs = append(attrs, fmt.Sprintf(`class="%s"`, r.Class))
	}
	canvas.Rect(px(r.X), px(r.Y), px(r.W), px(r.H), attrs...)
}

func (c Circle) draw(canvas *svg.SVG) {
	canvas.Circle(px(c.X), px(c.Y), int(math.Max(1, math.Round(c.R))), fmt.Sprintf(`fill="%s"`, c.Fill))
}

func (l Line) draw(canvas *svg.SVG) {
	canvas.Line(px(l.X1), px(l.Y1), px(l.X2), px(l.Y2), fmt.Sprintf(`stroke="%s"`, l.Stroke))
}

func (t Text) draw(canvas *svg.SVG) {
	anchor := t.Anchor
	if anchor == "" {
		anchor = "middle"
	}
	canvas.Text(px(t.X), px(t.Y), t.Text, fmt.Sprintf(`text-anchor="%s"`, anchor))
}

func px(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(math.Round(v))
}

// svgo ignores write errors, so they are caught here.
type errWriter struct {
	w   io.Writer
	err error
}

func (c *errWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return len(p), nil
	}
	n, err := c.w.Write(p)
	if err != nil {
		c.err = err
	}
	return n, nil
}
