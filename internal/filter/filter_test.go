package filter

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/brushbus"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/diag"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/selection"
)

func scalarObs(lng, lat, adjusted float64, used bool) diag.Feature {
	return diag.Observation{
		Variable:  diag.Temperature,
		Loop:      diag.LoopGuess,
		Longitude: lng,
		Latitude:  lat,
		IsUsed:    used,
		Adjusted:  adjusted,
	}.Feature()
}

func windObs(lng, lat, u, v float64) diag.Feature {
	return diag.Observation{
		Variable:  diag.Wind,
		Loop:      diag.LoopGuess,
		Longitude: lng,
		Latitude:  lat,
		IsUsed:    true,
		Adjusted:  u,
		AdjustedV: &v,
	}.Feature()
}

func adjusted(fc diag.FeatureCollection) []float64 {
	return fc.Values("adjusted", "")
}

func sampleScalars() diag.FeatureCollection {
	return diag.NewFeatureCollection([]diag.Feature{
		scalarObs(-100, 40, -1, true),
		scalarObs(-95, 35, 0, true),
		scalarObs(-90, 30, 0.5, true),
		scalarObs(-85, 25, 1, true),
		scalarObs(-80, 20, 2, false),
	})
}

func TestContainedIn_RangeInclusive(t *testing.T) {
	got := Apply(sampleScalars(), ContainedIn(selection.Range{1, 0}, Field{Name: "adjusted"}))
	assert.Equal(t, []float64{0, 0.5, 1}, adjusted(got))
}

func TestContainedIn_InactiveSelections(t *testing.T) {
	fc := sampleScalars()
	assert.Len(t, Apply(fc, ContainedIn(selection.Range{3, 3}, Field{Name: "adjusted"})).Features, 5)
	assert.Len(t, Apply(fc, ContainedIn(nil, Field{Name: "adjusted"})).Features, 5)
}

func TestContainedIn_MissingFieldDropped(t *testing.T) {
	got := Apply(sampleScalars(), ContainedIn(selection.Range{0, 1}, Field{Name: "bogus"}))
	assert.Empty(t, got.Features)
}

func TestContainedIn_Vector(t *testing.T) {
	fc := diag.NewFeatureCollection([]diag.Feature{
		windObs(0, 0, 1, 0),
		windObs(0, 0, 6, 0),
		windObs(0, 0, 2, 3),
	})

	got := Apply(fc, ContainedIn(selection.Vector{{0, 5}, {-1, 1}}, Field{Name: "adjusted"}))
	assert.Equal(t, []float64{1}, got.Values("adjusted", "u"))

	got = Apply(fc, ContainedIn(selection.Vector{{0, 5}, {2, 2}}, Field{Name: "adjusted"}))
	assert.Equal(t, []float64{1, 2}, got.Values("adjusted", "u"))

	got = Apply(fc, ContainedIn(selection.Vector{{0, 4}}, ParseField("adjusted.magnitude")))
	assert.Equal(t, []float64{1, 2}, got.Values("adjusted", "u"))
}

func TestGeoFilter(t *testing.T) {
	fc := sampleScalars()
	line := diag.Feature{
		Type:       "Feature",
		Geometry:   diag.Geometry{Type: "LineString"},
		Properties: diag.Properties{Fields: map[string]diag.Value{"adjusted": diag.ScalarValue(0)}},
	}
	fc.Features = append(fc.Features, line)

	region := selection.Region{{-100, 40}, {-90, 30}}
	got := Apply(fc, GeoFilter(&region))
	assert.Equal(t, []float64{-1, 0, 0.5}, adjusted(got))

	assert.Len(t, Apply(fc, GeoFilter(nil)).Features, 6)
	flat := selection.Region{{-100, 40}, {-100, 30}}
	assert.Len(t, Apply(fc, GeoFilter(&flat)).Features, 6)
}

func TestApply_ReturnsCopies(t *testing.T) {
	fc := sampleScalars()
	got := Apply(fc, nil)
	got.Features[0].Properties.Fields["adjusted"] = diag.ScalarValue(99)
	assert.Equal(t, -1.0, adjusted(fc)[0])
}

func TestSet_WithAndPredicate(t *testing.T) {
	set := Set{}.
		With("adjusted", selection.Range{2, -1}).
		With(RegionDimension, selection.Region{{-96, 36}, {-84, 24}})
	assert.Equal(t, []string{"adjusted", "region"}, set.Dimensions())
	assert.Equal(t, selection.Range{-1, 2}, set["adjusted"])

	got := Apply(sampleScalars(), set.Predicate())
	assert.Equal(t, []float64{0, 0.5, 1}, adjusted(got))

	cleared := set.With("adjusted", selection.Range{1, 1})
	assert.NotContains(t, cleared, "adjusted")
	assert.Contains(t, set, "adjusted")
	assert.False(t, set.Equal(cleared))
	assert.True(t, set.Equal(set.Clone()))
}

func TestAggregate_RecomputesFromFullSet(t *testing.T) {
	full := sampleScalars()
	opts := Options{Thresholds: []float64{-1, 0, 1, 2}}

	narrow := Aggregate(full, Set{}.With("adjusted", selection.Range{0, 0.5}), opts)
	assert.Equal(t, []BinCount{{-1, 0, 0}, {0, 1, 2}, {1, 2, 0}}, narrow.Bins)
	assert.Equal(t, 2, narrow.Summary.Count)
	assert.InDelta(t, 0.25, narrow.Summary.Mean, 1e-12)

	wide := Aggregate(full, Set{}.With("adjusted", selection.Range{-5, 5}), opts)
	assert.Equal(t, 5, wide.Summary.Count)
	assert.Equal(t, []BinCount{{-1, 0, 1}, {0, 1, 2}, {1, 2, 2}}, wide.Bins)
	assert.Len(t, full.Features, 5)
}

func TestAggregate_Cells(t *testing.T) {
	full := diag.NewFeatureCollection([]diag.Feature{
		windObs(0, 0, 0.5, 0.5),
		windObs(0, 0, 1.5, 0.5),
		windObs(0, 0, 1.5, 0.7),
	})
	res := Aggregate(full, Set{}, Options{
		Thresholds:  []float64{0, 1, 2},
		X:           Field{Name: "adjusted", Component: "u"},
		Y:           Field{Name: "adjusted", Component: "v"},
		XThresholds: []float64{0, 1, 2},
		YThresholds: []float64{0, 1},
	})
	assert.Equal(t, []CellCount{
		{X0: 0, X1: 1, Y0: 0, Y1: 1, Count: 1},
		{X0: 1, X1: 2, Y0: 0, Y1: 1, Count: 2},
	}, res.Cells)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
	assert.Equal(t, Summary{Count: 1, Mean: 3}, Summarize([]float64{3}))

	s := Summarize([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 8, s.Count)
	assert.InDelta(t, 5, s.Mean, 1e-12)
	assert.InDelta(t, 2.13809, s.Deviation, 1e-5)
}

func TestParseQuery(t *testing.T) {
	q := url.Values{
		"adjusted": {"0::0.3", "-1::1"},
		"is_used":  {"true"},
		"observed": {"2.5"},
		"station":  {"KBOU"},
		"bins":     {"30"},
	}
	c, err := ParseQuery(q, "bins")
	require.NoError(t, err)

	assert.Equal(t, selection.Vector{{0, 0.3}, {-1, 1}}, c.Selections["adjusted"])
	assert.Equal(t, map[string]bool{"is_used": true}, c.Flags)
	assert.Equal(t, map[string]float64{"observed": 2.5}, c.Equals)
	assert.Equal(t, map[string]string{"station": "KBOU"}, c.Text)
}

func TestParseQuery_RangeAndRegion(t *testing.T) {
	c, err := ParseQuery(url.Values{
		"unadjusted": {"3::-2"},
		"region":     {"-90::30", "-110::45"},
	})
	require.NoError(t, err)
	assert.Equal(t, selection.Range{-2, 3}, c.Selections["unadjusted"])
	assert.Equal(t, selection.Region{{-110, 45}, {-90, 30}}, c.Selections["region"])
}

func TestParseQuery_Bad(t *testing.T) {
	for _, q := range []url.Values{
		{"adjusted": {"a::1"}},
		{"adjusted": {"0::1", "2"}},
		{"region": {"0::1"}},
	} {
		_, err := ParseQuery(q)
		assert.ErrorIs(t, err, ErrBadCriterion, q.Encode())
	}
}

func TestCriteria_UsedDefault(t *testing.T) {
	c, err := ParseQuery(url.Values{})
	require.NoError(t, err)
	used, explicit := c.Used()
	assert.True(t, used)
	assert.False(t, explicit)
	assert.Equal(t, []float64{-1, 0, 0.5, 1}, adjusted(Apply(sampleScalars(), c.Predicate())))

	c, err = ParseQuery(url.Values{"is_used": {"false"}})
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, adjusted(Apply(sampleScalars(), c.Predicate())))
}

func TestCriteria_Equals(t *testing.T) {
	c, err := ParseQuery(url.Values{"adjusted": {"0.5"}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5}, adjusted(Apply(sampleScalars(), c.Predicate())))
}

func TestCriteria_BaseLeavesSelectionsOut(t *testing.T) {
	c, err := ParseQuery(url.Values{"adjusted": {"0::1"}})
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 0, 0.5, 1}, adjusted(Apply(sampleScalars(), c.Base())))
	assert.Equal(t, []float64{0, 0.5, 1}, adjusted(Apply(sampleScalars(), c.Predicate())))
}

func TestParseQuery_ReadsNavigation(t *testing.T) {
	nav := brushbus.NewNavigation(nil)
	nav.Apply("adjusted", selection.Range{-0.25, 1e6})
	nav.Apply("observed", selection.Vector{{-1, 1}, {2, 3}})
	nav.Apply(RegionDimension, selection.Region{{-110, 45}, {-90, 30}})

	parsed, err := url.ParseQuery(nav.Encode())
	require.NoError(t, err)
	c, err := ParseQuery(parsed)
	require.NoError(t, err)

	assert.Equal(t, selection.Range{-0.25, 1e6}, c.Selections["adjusted"])
	assert.Equal(t, selection.Vector{{-1, 1}, {2, 3}}, c.Selections["observed"])
	assert.Equal(t, selection.Region{{-110, 45}, {-90, 30}}, c.Selections[RegionDimension])
}

func TestExtent(t *testing.T) {
	lo, hi, ok := Extent(sampleScalars(), Field{Name: "adjusted"}, 10)
	require.True(t, ok)
	assert.LessOrEqual(t, lo, -1.0)
	assert.GreaterOrEqual(t, hi, 2.0)
	assert.InDelta(t, -1, lo, 1e-9)
	assert.InDelta(t, 2, hi, 1e-9)

	_, _, ok = Extent(sampleScalars(), Field{Name: "missing"}, 10)
	assert.False(t, ok)
}

func TestDomain(t *testing.T) {
	scalars := sampleScalars()
	bounds := Domain(scalars, "adjusted", selection.ShapeRange)
	require.Len(t, bounds, 1)
	assert.InDelta(t, -1, bounds[0][0], 1e-9)
	assert.InDelta(t, 2, bounds[0][1], 1e-9)

	region := Domain(scalars, RegionDimension, selection.ShapeRegion)
	require.Len(t, region, 2)
	assert.InDelta(t, -100, region[0][0], 1e-9)
	assert.InDelta(t, -80, region[0][1], 1e-9)
	assert.InDelta(t, 20, region[1][0], 1e-9)
	assert.InDelta(t, 40, region[1][1], 1e-9)

	wind := diag.NewFeatureCollection([]diag.Feature{windObs(0, 0, -2, 1), windObs(1, 1, 3, 4)})
	vector := Domain(wind, "adjusted", selection.ShapeVector)
	require.Len(t, vector, 2)
	assert.InDelta(t, -2, vector[0][0], 1e-9)
	assert.InDelta(t, 3, vector[0][1], 1e-9)
	assert.InDelta(t, 1, vector[1][0], 1e-9)
	assert.InDelta(t, 4, vector[1][1], 1e-9)

	assert.Empty(t, Domain(scalars, "missing", selection.ShapeRange))
	assert.Empty(t, Domain(diag.FeatureCollection{}, RegionDimension, selection.ShapeRegion))
}
