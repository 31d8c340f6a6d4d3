package filter

import (
	"sort"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/selection"
)

// RegionDimension is the filter dimension applied to observation
// coordinates. Every other dimension names a field.
const RegionDimension = "region"

// Set holds the current selection per filter dimension.
type Set map[string]selection.Selection

// Clone deep-copies the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		if v != nil {
			out[k] = v.Clone()
		}
	}
	return out
}

// With returns a copy with dimension replaced, or removed when sel
// normalizes to nil.
func (s Set) With(dimension string, sel selection.Selection) Set {
	out := s.Clone()
	if norm := selection.Normalize(sel); norm != nil {
		out[dimension] = norm
	} else {
		delete(out, dimension)
	}
	return out
}

// Dimensions lists the dimensions in sorted order.
func (s Set) Dimensions() []string {
	dims := make([]string, 0, len(s))
	for k := range s {
		dims = append(dims, k)
	}
	sort.Strings(dims)
	return dims
}

// Predicate ANDs the filter of every dimension.
func (s Set) Predicate() Predicate {
	preds := make([]Predicate, 0, len(s))
	for _, dim := range s.Dimensions() {
		sel := s[dim]
		if dim == RegionDimension {
			if r, ok := sel.(selection.Region); ok {
				preds = append(preds, GeoFilter(&r))
				continue
			}
		}
		preds = append(preds, ContainedIn(sel, ParseField(dim)))
	}
	return And(preds...)
}

// Equal reports whether both sets select the same thing per dimension.
func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	for k, v := range s {
		w, ok := o[k]
		if !ok || !selection.Equal(v, w) {
			return false
		}
	}
	return true
}
