package binning

import "math"

// Cell is the rectangle [X0, X1) x [Y0, Y1) and its members.
type Cell[T any] struct {
	X0      float64 `json:"x0"`
	X1      float64 `json:"x1"`
	Y0      float64 `json:"y0"`
	Y1      float64 `json:"y1"`
	Members []T     `json:"members"`
}

// Len is the member count.
func (c Cell[T]) Len() int { return len(c.Members) }

// Binner2D bins data into a grid defined by x and y thresholds. Only
// non-empty cells are returned.
type Binner2D[T any] struct {
	xThresholds []float64
	yThresholds []float64
	x, y        func(T) float64
}

// Bin2D bins [x, y] pairs.
func Bin2D(xThresholds, yThresholds []float64) *Binner2D[[2]float64] {
	return NewBinner2D(xThresholds, yThresholds,
		func(d [2]float64) float64 { return d[0] },
		func(d [2]float64) float64 { return d[1] },
	)
}

// NewBinner2D bins any datum through the x and y accessors.
func NewBinner2D[T any](xThresholds, yThresholds []float64, x, y func(T) float64) *Binner2D[T] {
	return &Binner2D[T]{
		xThresholds: normalize(xThresholds),
		yThresholds: normalize(yThresholds),
		x:           x,
		y:           y,
	}
}

// X replaces the x accessor.
func (b *Binner2D[T]) X(fn func(T) float64) *Binner2D[T] {
	b.x = fn
	return b
}

// Y replaces the y accessor.
func (b *Binner2D[T]) Y(fn func(T) float64) *Binner2D[T] {
	b.y = fn
	return b
}

// Bin returns the non-empty cells in row-major order. Values beyond the
// outer thresholds land in the outermost row or column.
func (b *Binner2D[T]) Bin(data []T) []Cell[T] {
	cols, rows := len(b.xThresholds)-1, len(b.yThresholds)-1
	if cols < 1 || rows < 1 || len(data) == 0 {
		return nil
	}

	cells := make([]*Cell[T], cols*rows)
	for _, d := range data {
		x, y := b.x(d), b.y(d)
		if math.IsNaN(x) || math.IsNaN(y) {
			continue
		}
		col := step(b.xThresholds, x)
		row := step(b.yThresholds, y)
		idx := row*cols + col

		c := cells[idx]
		if c == nil {
			c = &Cell[T]{
				X0: b.xThresholds[col],
				X1: b.xThresholds[col+1],
				Y0: b.yThresholds[row],
				Y1: b.yThresholds[row+1],
			}
			cells[idx] = c
		}
		c.Members = append(c.Members, d)
	}

	var out []Cell[T]
	for _, c := range cells {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out
}

// step maps v to the interval index of thresholds, clamped to the first and
// last interval.
func step(thresholds []float64, v float64) int {
	i := bisectRight(thresholds, v) - 1
	if i < 0 {
		return 0
	}
	if last := len(thresholds) - 2; i > last {
		return last
	}
	return i
}
