package selection

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed reports a selection that cannot be decoded into finite
// numbers of the right shape.
var ErrMalformed = errors.New("malformed selection")

type wire struct {
	Shape      Shape        `json:"shape"`
	Components [][2]float64 `json:"components"`
}

// Marshal encodes a selection as {"shape": ..., "components": [[a, b], ...]}.
// A nil selection encodes as null.
func Marshal(s Selection) ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	return json.Marshal(wire{Shape: s.shape(), Components: s.Components()})
}

// Unmarshal decodes the Marshal form. null decodes to a nil selection.
func Unmarshal(data []byte) (Selection, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var s Selection
	switch w.Shape {
	case ShapeRange:
		if len(w.Components) != 1 {
			return nil, fmt.Errorf("%w: range needs 1 component, got %d", ErrMalformed, len(w.Components))
		}
		s = Range(w.Components[0])
	case ShapeRegion:
		if len(w.Components) != 2 {
			return nil, fmt.Errorf("%w: region needs 2 corners, got %d", ErrMalformed, len(w.Components))
		}
		s = Region{Point(w.Components[0]), Point(w.Components[1])}
	case ShapeVector:
		if len(w.Components) == 0 {
			return nil, fmt.Errorf("%w: vector without components", ErrMalformed)
		}
		v := make(Vector, len(w.Components))
		for i, c := range w.Components {
			v[i] = Range(c)
		}
		s = v
	default:
		return nil, fmt.Errorf("%w: unknown shape %q", ErrMalformed, w.Shape)
	}

	if !Finite(s) {
		return nil, fmt.Errorf("%w: non-finite endpoint", ErrMalformed)
	}
	return s, nil
}
