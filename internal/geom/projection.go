package geom

import "math"

// Equirectangular is a plate carrée projection scaled and translated so a
// longitude/latitude extent fits a pixel box. Latitude grows upward, so
// pixel y grows as latitude falls.
type Equirectangular struct {
	scale      float64
	tx, ty     float64
	lng0, lat0 float64
}

// FitExtent fits the bounding box of points into plot, preserving aspect
// ratio and centering the result. An empty point set fits the whole globe.
func FitExtent(plot Plot, points [][2]float64) Equirectangular {
	minLng, minLat := math.Inf(1), math.Inf(1)
	maxLng, maxLat := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) {
			continue
		}
		minLng, maxLng = math.Min(minLng, p[0]), math.Max(maxLng, p[0])
		minLat, maxLat = math.Min(minLat, p[1]), math.Max(maxLat, p[1])
	}
	if math.IsInf(minLng, 1) {
		minLng, maxLng, minLat, maxLat = -180, 180, -90, 90
	}
	if maxLng == minLng {
		minLng, maxLng = minLng-0.5, maxLng+0.5
	}
	if maxLat == minLat {
		minLat, maxLat = minLat-0.5, maxLat+0.5
	}

	k := math.Min(plot.Width()/(maxLng-minLng), plot.Height()/(maxLat-minLat))
	if k <= 0 || math.IsNaN(k) {
		k = 1
	}
	usedW, usedH := (maxLng-minLng)*k, (maxLat-minLat)*k
	return Equirectangular{
		scale: k,
		tx:    plot.X0 + (plot.Width()-usedW)/2,
		ty:    plot.Y0 + (plot.Height()-usedH)/2,
		lng0:  minLng,
		lat0:  maxLat,
	}
}

// Project maps a longitude/latitude to pixels.
func (e Equirectangular) Project(lng, lat float64) (float64, float64) {
	return e.tx + (lng-e.lng0)*e.scale, e.ty + (e.lat0-lat)*e.scale
}

// Invert maps pixels back to longitude/latitude.
func (e Equirectangular) Invert(x, y float64) (float64, float64) {
	if e.scale == 0 {
		return math.NaN(), math.NaN()
	}
	return e.lng0 + (x-e.tx)/e.scale, e.lat0 - (y-e.ty)/e.scale
}
