package geom

// Margin holds the insets between a chart's edge and its plot area.
type Margin struct {
	Top, Right, Bottom, Left float64
}

// NewMargin follows the CSS shorthand: one value sets every side, two set
// vertical and horizontal, three set top, horizontal and bottom, four set
// top, right, bottom and left. Extra values are ignored.
func NewMargin(values ...float64) Margin {
	switch len(values) {
	case 0:
		return Margin{}
	case 1:
		v := values[0]
		return Margin{v, v, v, v}
	case 2:
		return Margin{values[0], values[1], values[0], values[1]}
	case 3:
		return Margin{values[0], values[1], values[2], values[1]}
	default:
		return Margin{values[0], values[1], values[2], values[3]}
	}
}

// MarginFromFontSize sizes the insets in proportion to the font size, with
// room for x-axis labels below and y-axis labels on the left.
func MarginFromFontSize(fontSize float64) Margin {
	return Margin{Top: fontSize, Right: fontSize, Bottom: 2 * fontSize, Left: 3 * fontSize}
}

// Horizontal is the total of the left and right insets.
func (m Margin) Horizontal() float64 { return m.Left + m.Right }

// Vertical is the total of the top and bottom insets.
func (m Margin) Vertical() float64 { return m.Top + m.Bottom }

// Plot is the drawable rectangle inside a chart of the given size.
type Plot struct {
	X0, Y0, X1, Y1 float64
}

// Plot returns the plot area for a chart of width by height pixels.
// Dimensions smaller than the margins collapse to an empty area.
func (m Margin) Plot(width, height float64) Plot {
	p := Plot{X0: m.Left, Y0: m.Top, X1: width - m.Right, Y1: height - m.Bottom}
	if p.X1 < p.X0 {
		p.X1 = p.X0
	}
	if p.Y1 < p.Y0 {
		p.Y1 = p.Y0
	}
	return p
}

// Width of the plot area.
func (p Plot) Width() float64 { return p.X1 - p.X0 }

// Height of the plot area.
func (p Plot) Height() float64 { return p.Y1 - p.Y0 }

// Empty reports whether nothing can be drawn.
func (p Plot) Empty() bool { return p.Width() <= 0 || p.Height() <= 0 }

// Clamp moves a point onto the plot area.
func (p Plot) Clamp(x, y float64) (float64, float64) {
	return clamp(x, p.X0, p.X1), clamp(y, p.Y0, p.Y1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
