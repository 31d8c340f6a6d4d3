// Package filter narrows observation sets by brushed selections and
// recomputes what the charts display.
package filter

import (
	"strings"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/diag"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/selection"
)

// Predicate decides whether a feature stays in the filtered set.
type Predicate func(diag.Feature) bool

// Field addresses a numeric property, optionally one of its components,
// written "name" or "name.component".
type Field struct {
	Name      string
	Component string
}

// ParseField splits "adjusted.u" into name and component.
func ParseField(path string) Field {
	name, comp, _ := strings.Cut(path, ".")
	return Field{Name: name, Component: comp}
}

func (f Field) String() string {
	if f.Component == "" {
		return f.Name
	}
	return f.Name + "." + f.Component
}

// VectorComponents are the components a Vector selection applies to, in
// order, when the field names none. A field such as
// "adjusted.direction,magnitude" names them explicitly.
var VectorComponents = []string{"u", "v"}

// ContainedIn keeps features whose field lies inside sel, bounds included.
// A nil selection keeps everything, and so does a zero-width range. A
// Vector selection applies one range per component of a vector field; a
// zero-width component is skipped. Features without the field are dropped
// by an active filter.
func ContainedIn(sel selection.Selection, field Field) Predicate {
	switch s := sel.(type) {
	case selection.Range:
		if s.Degenerate() {
			return all
		}
		return func(f diag.Feature) bool {
			v, ok := lookup(f, field.Name, field.Component)
			return ok && s.Contains(v)
		}
	case selection.Vector:
		type check struct {
			component string
			r         selection.Range
		}
		names := VectorComponents
		if field.Component != "" {
			names = strings.Split(field.Component, ",")
		}
		var checks []check
		for i, r := range s {
			if r.Degenerate() || i >= len(names) {
				continue
			}
			checks = append(checks, check{names[i], r})
		}
		if len(checks) == 0 {
			return all
		}
		return func(f diag.Feature) bool {
			for _, c := range checks {
				v, ok := lookup(f, field.Name, c.component)
				if !ok || !c.r.Contains(v) {
					return false
				}
			}
			return true
		}
	case selection.Region:
		return GeoFilter(&s)
	}
	return all
}

// GeoFilter keeps point features inside the region, edges included. A nil
// or degenerate region keeps everything.
func GeoFilter(region *selection.Region) Predicate {
	if region == nil || region.Degenerate() {
		return all
	}
	r := region.Normalized()
	return func(f diag.Feature) bool {
		p, ok := f.Geometry.Point()
		return ok && r.Contains(p.Lng(), p.Lat())
	}
}

// And keeps features every predicate keeps.
func And(preds ...Predicate) Predicate {
	active := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			active = append(active, p)
		}
	}
	return func(f diag.Feature) bool {
		for _, p := range active {
			if !p(f) {
				return false
			}
		}
		return true
	}
}

// Apply returns the features of fc that pred keeps, as copies.
func Apply(fc diag.FeatureCollection, pred Predicate) diag.FeatureCollection {
	out := make([]diag.Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if pred == nil || pred(f) {
			out = append(out, f.Clone())
		}
	}
	return diag.NewFeatureCollection(out)
}

func all(diag.Feature) bool { return true }

func lookup(f diag.Feature, name, component string) (float64, bool) {
	if _, ok := f.Geometry.Point(); !ok {
		return 0, false
	}
	v, ok := f.Properties.Field(name)
	if !ok {
		return 0, false
	}
	return v.Component(component)
}
