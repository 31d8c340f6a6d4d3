package binning

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBin1D_ExplicitThresholds(t *testing.T) {
	bins := Bin1D([]float64{1, 2, 2, 3, 9}, []float64{0, 2, 4, 10})

	want := []Bin[float64]{
		{X0: 0, X1: 2, Members: []float64{1}},
		{X0: 2, X1: 4, Members: []float64{2, 2, 3}},
		{X0: 4, X1: 10, Members: []float64{9}},
	}
	if diff := cmp.Diff(want, bins); diff != "" {
		t.Errorf("Bin1D mismatch (-want +got):\n%s", diff)
	}
}

func TestBin1D_LastBinClosed(t *testing.T) {
	bins := Bin1D([]float64{0, 10, 10.5, -1}, []float64{0, 5, 10})
	require.Len(t, bins, 2)
	assert.Equal(t, []float64{0}, bins[0].Members)
	assert.Equal(t, []float64{10}, bins[1].Members)
}

func TestBin1D_EmptyBinsKept(t *testing.T) {
	bins := Bin1D([]float64{7, 7, 7}, []float64{0, 2, 4, 6, 8})
	require.Len(t, bins, 4)
	assert.Equal(t, 0, bins[0].Len())
	assert.Equal(t, 0, bins[1].Len())
	assert.Equal(t, 0, bins[2].Len())
	assert.Equal(t, 3, bins[3].Len())
}

func TestBin1D_EmptyValues(t *testing.T) {
	bins := Bin1D(nil, []float64{0, 1, 2})
	require.Len(t, bins, 2)
	for _, b := range bins {
		assert.Equal(t, 0, b.Len())
	}

	assert.Nil(t, Bin1D(nil, nil))
}

func TestBin1D_UnsortedThresholds(t *testing.T) {
	bins := Bin1D([]float64{1, 3}, []float64{4, 0, 2, 2})
	require.Len(t, bins, 2)
	assert.Equal(t, 0.0, bins[0].X0)
	assert.Equal(t, 4.0, bins[1].X1)
}

func TestBin1D_TooFewThresholds(t *testing.T) {
	assert.Nil(t, Bin1D([]float64{1}, []float64{3}))
	assert.Nil(t, Bin1D([]float64{1}, []float64{3, 3}))
}

func TestBin1D_CoverageAndPartition(t *testing.T) {
	values := []float64{-3.2, -1, 0, 0.5, 0.5, 1.25, 2, 4.9, 5.7, math.NaN()}
	tests := [][]float64{
		{-2, 0, 2, 4},
		{-5, 0, 5, 10},
		nil,
	}
	for _, thresholds := range tests {
		bins := Bin1D(values, thresholds)
		require.NotEmpty(t, bins)

		lo, hi := bins[0].X0, bins[len(bins)-1].X1
		inDomain := 0
		for _, v := range values {
			if v >= lo && v <= hi {
				inDomain++
			}
		}

		total := 0
		for i, b := range bins {
			total += b.Len()
			assert.Less(t, b.X0, b.X1)
			if i > 0 {
				assert.Equal(t, bins[i-1].X1, b.X0)
			}
		}
		assert.Equal(t, inDomain, total, "thresholds %v", thresholds)
	}
}

func TestBin1D_AutoThresholdsCoverData(t *testing.T) {
	values := []float64{0.13, 4.2, 9.7}
	bins := Bin1D(values, nil)
	require.NotEmpty(t, bins)
	assert.LessOrEqual(t, bins[0].X0, 0.13)
	assert.GreaterOrEqual(t, bins[len(bins)-1].X1, 9.7)

	total := 0
	for _, b := range bins {
		total += b.Len()
	}
	assert.Equal(t, 3, total)
}

func TestBin1D_SingleRepeatedValueAuto(t *testing.T) {
	bins := Bin1D([]float64{4, 4, 4}, nil)
	require.NotEmpty(t, bins)

	nonEmpty := 0
	for _, b := range bins {
		if b.Len() > 0 {
			nonEmpty++
			assert.Equal(t, 3, b.Len())
		}
	}
	assert.Equal(t, 1, nonEmpty)
}

func TestHistogram_Accessor(t *testing.T) {
	type obs struct{ speed float64 }
	h := Histogram[obs]{
		Value:      func(o obs) float64 { return o.speed },
		Thresholds: []float64{0, 5, 10},
	}
	bins := h.Bin([]obs{{1}, {6}, {7}})
	require.Len(t, bins, 2)
	assert.Equal(t, []obs{{6}, {7}}, bins[1].Members)
}

func TestBin2D_NonEmptyCellsOnly(t *testing.T) {
	cells := Bin2D([]float64{0, 10, 20}, []float64{0, 5, 10}).Bin([][2]float64{{1, 1}, {15, 8}})

	want := []Cell[[2]float64]{
		{X0: 0, X1: 10, Y0: 0, Y1: 5, Members: [][2]float64{{1, 1}}},
		{X0: 10, X1: 20, Y0: 5, Y1: 10, Members: [][2]float64{{15, 8}}},
	}
	if diff := cmp.Diff(want, cells); diff != "" {
		t.Errorf("Bin2D mismatch (-want +got):\n%s", diff)
	}
}

func TestBin2D_RowMajorOrderAndGrouping(t *testing.T) {
	data := [][2]float64{{15, 1}, {1, 8}, {2, 2}, {16, 2}}
	cells := Bin2D([]float64{0, 10, 20}, []float64{0, 5, 10}).Bin(data)
	require.Len(t, cells, 3)

	// row 0: col 0 then col 1, row 1: col 0
	assert.Equal(t, [][2]float64{{2, 2}}, cells[0].Members)
	assert.Equal(t, [][2]float64{{15, 1}, {16, 2}}, cells[1].Members)
	assert.Equal(t, [][2]float64{{1, 8}}, cells[2].Members)
	for _, c := range cells {
		assert.Greater(t, c.Len(), 0)
	}
}

func TestBin2D_ClampsOutOfRange(t *testing.T) {
	cells := Bin2D([]float64{0, 10, 20}, []float64{0, 5, 10}).Bin([][2]float64{{-4, -1}, {25, 12}})
	require.Len(t, cells, 2)
	assert.Equal(t, 0.0, cells[0].X0)
	assert.Equal(t, 0.0, cells[0].Y0)
	assert.Equal(t, 20.0, cells[1].X1)
	assert.Equal(t, 10.0, cells[1].Y1)
}

func TestBin2D_Degenerate(t *testing.T) {
	data := [][2]float64{{1, 1}}
	assert.Empty(t, Bin2D([]float64{0}, []float64{0, 5}).Bin(data))
	assert.Empty(t, Bin2D([]float64{0, 5}, nil).Bin(data))
	assert.Empty(t, Bin2D([]float64{0, 5}, []float64{0, 5}).Bin(nil))
	assert.Empty(t, Bin2D([]float64{0, 5}, []float64{0, 5}).Bin([][2]float64{{math.NaN(), 1}}))
}

func TestBinner2D_CustomAccessors(t *testing.T) {
	type wind struct{ dir, speed float64 }
	b := NewBinner2D[wind]([]float64{0, 180, 360}, []float64{0, 10, 20}, nil, nil).
		X(func(w wind) float64 { return w.dir }).
		Y(func(w wind) float64 { return w.speed })

	cells := b.Bin([]wind{{90, 15}, {270, 3}})
	require.Len(t, cells, 2)
	assert.Equal(t, 180.0, cells[0].X0)
	assert.Equal(t, 0.0, cells[0].Y0)
	assert.Equal(t, 0.0, cells[1].X0)
	assert.Equal(t, 10.0, cells[1].Y0)
}

func TestBinner2D_ReplaceAccessor(t *testing.T) {
	data := [][2]float64{{1, 8}, {12, 2}}
	b := Bin2D([]float64{0, 10, 20}, []float64{0, 5, 10})

	cells := b.Bin(data)
	require.Len(t, cells, 2)
	assert.Equal(t, 10.0, cells[0].X0)
	assert.Equal(t, 0.0, cells[1].X0)

	// Swapping the axes moves both points.
	b.X(func(d [2]float64) float64 { return d[1] }).Y(func(d [2]float64) float64 { return d[0] })
	cells = b.Bin(data)
	require.Len(t, cells, 2)
	assert.Equal(t, [][2]float64{{1, 8}}, cells[0].Members)
	assert.Equal(t, 0.0, cells[0].X0)
	assert.Equal(t, 0.0, cells[0].Y0)
	assert.Equal(t, [][2]float64{{12, 2}}, cells[1].Members)
	assert.Equal(t, 0.0, cells[1].X0)
	assert.Equal(t, 5.0, cells[1].Y0)
}
