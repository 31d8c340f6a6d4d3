package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/brushbus"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/diag"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/selection"
)

// ErrBadCriterion reports a query parameter that cannot be a filter.
var ErrBadCriterion = errors.New("filter: bad criterion")

// UsedFlag is the observation property that marks assimilated observations.
const UsedFlag = "is_used"

// Criteria are the filters carried by a query string.
type Criteria struct {
	// Selections holds "a::b" ranges; repeated parameters form a vector, or
	// a region for the region dimension.
	Selections Set
	// Flags holds "true" and "false" parameters.
	Flags map[string]bool
	// Equals holds plain numbers.
	Equals map[string]float64
	// Text holds anything else.
	Text map[string]string
}

// ParseQuery converts query parameters into criteria. Parameters named in
// skip are request options rather than filters and are left out.
func ParseQuery(q url.Values, skip ...string) (Criteria, error) {
	c := Criteria{
		Selections: Set{},
		Flags:      map[string]bool{},
		Equals:     map[string]float64{},
		Text:       map[string]string{},
	}
	ignored := make(map[string]bool, len(skip))
	for _, k := range skip {
		ignored[k] = true
	}

	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		values := q[key]
		if ignored[key] || len(values) == 0 {
			continue
		}
		if strings.Contains(values[0], brushbus.Delimiter) {
			sel, err := parseSelection(key, values)
			if err != nil {
				return Criteria{}, err
			}
			if sel = selection.Normalize(sel); sel != nil {
				c.Selections[key] = sel
			}
			continue
		}
		value := values[0]
		switch value {
		case "true", "false":
			c.Flags[key] = value == "true"
			continue
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			c.Equals[key] = f
			continue
		}
		c.Text[key] = value
	}
	return c, nil
}

func parseSelection(key string, values []string) (selection.Selection, error) {
	comps := make([][2]float64, len(values))
	for i, v := range values {
		a, b, ok := strings.Cut(v, brushbus.Delimiter)
		if !ok {
			return nil, fmt.Errorf("%w: %s=%q mixes ranges and values", ErrBadCriterion, key, v)
		}
		lo, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q: %v", ErrBadCriterion, key, v, err)
		}
		hi, err := strconv.ParseFloat(strings.TrimSpace(b), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q: %v", ErrBadCriterion, key, v, err)
		}
		comps[i] = [2]float64{lo, hi}
	}

	if key == RegionDimension {
		if len(comps) != 2 {
			return nil, fmt.Errorf("%w: region needs two corners, got %d", ErrBadCriterion, len(comps))
		}
		return selection.Region{comps[0], comps[1]}, nil
	}
	if len(comps) == 1 {
		return selection.Range(comps[0]), nil
	}
	vec := make(selection.Vector, len(comps))
	for i, cmp := range comps {
		vec[i] = selection.Range(cmp)
	}
	return vec, nil
}

// Set returns a copy of the range selections.
func (c Criteria) Set() Set { return c.Selections.Clone() }

// Bool returns a boolean criterion and whether it was given.
func (c Criteria) Bool(name string) (bool, bool) {
	v, ok := c.Flags[name]
	return v, ok
}

// Used reports the is_used criterion. Without one, only used observations
// are kept.
func (c Criteria) Used() (bool, bool) {
	v, ok := c.Bool(UsedFlag)
	if !ok {
		return true, false
	}
	return v, true
}

// Predicate combines every criterion. Text criteria are not applied.
func (c Criteria) Predicate() Predicate {
	return And(c.Selections.Predicate(), c.Base())
}

// Base combines the flag and equality criteria, leaving out the range
// selections that brushing recomputes.
func (c Criteria) Base() Predicate {
	var preds []Predicate

	flags := make([]string, 0, len(c.Flags))
	for k := range c.Flags {
		flags = append(flags, k)
	}
	sort.Strings(flags)
	for _, k := range flags {
		preds = append(preds, FlagIs(k, c.Flags[k], false))
	}
	if _, explicit := c.Used(); !explicit {
		preds = append(preds, FlagIs(UsedFlag, true, true))
	}

	for k, want := range c.Equals {
		field := ParseField(k)
		want := want
		preds = append(preds, func(f diag.Feature) bool {
			v, ok := lookup(f, field.Name, field.Component)
			return ok && v == want
		})
	}
	return And(preds...)
}

// FlagIs keeps features whose boolean property equals want. A numeric field
// counts as true when non-zero. keepMissing decides features without it.
func FlagIs(name string, want, keepMissing bool) Predicate {
	return func(f diag.Feature) bool {
		if raw, ok := f.Properties.Extra[name]; ok {
			var b bool
			if err := json.Unmarshal(raw, &b); err != nil {
				return false
			}
			return b == want
		}
		if v, ok := f.Properties.Field(name); ok {
			return (v.Float() != 0) == want
		}
		return keepMissing
	}
}
