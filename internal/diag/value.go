package diag

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// UV is a horizontal vector in u (eastward) and v (northward) components.
type UV struct {
	U float64 `json:"u"`
	V float64 `json:"v"`
}

// Magnitude is the vector length.
func (w UV) Magnitude() float64 {
	return math.Hypot(w.U, w.V)
}

// Direction is the meteorological direction the wind blows from, in degrees
// on [0, 360). Calm winds report 0.
func (w UV) Direction() float64 {
	if w.Magnitude() == 0 {
		return 0
	}
	deg := 90 - math.Atan2(-w.V, -w.U)*180/math.Pi
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// UVFromPolar builds a vector from a direction in degrees and a magnitude.
func UVFromPolar(direction, magnitude float64) UV {
	rad := direction * math.Pi / 180
	return UV{U: -magnitude * math.Sin(rad), V: -magnitude * math.Cos(rad)}
}

// Value is a scalar reading or a wind vector.
type Value struct {
	scalar float64
	wind   *UV
}

// ScalarValue wraps a number.
func ScalarValue(v float64) Value {
	return Value{scalar: v}
}

// VectorValue wraps a wind vector.
func VectorValue(w UV) Value {
	return Value{wind: &UV{U: w.U, V: w.V}}
}

// IsVector reports whether v holds a vector.
func (v Value) IsVector() bool {
	return v.wind != nil
}

// UV returns the vector and whether v holds one.
func (v Value) UV() (UV, bool) {
	if v.wind == nil {
		return UV{}, false
	}
	return *v.wind, true
}

// Float returns the scalar, or the magnitude of a vector.
func (v Value) Float() float64 {
	if v.wind != nil {
		return v.wind.Magnitude()
	}
	return v.scalar
}

// Magnitude is the vector length, or the absolute value of a scalar.
func (v Value) Magnitude() float64 {
	if v.wind != nil {
		return v.wind.Magnitude()
	}
	return math.Abs(v.scalar)
}

// Component resolves a named component of the value. The empty name and
// "value" resolve to Float.
func (v Value) Component(name string) (float64, bool) {
	switch name {
	case "", "value":
		return v.Float(), true
	case "magnitude":
		return v.Magnitude(), true
	}
	if v.wind == nil {
		return 0, false
	}
	switch name {
	case "u":
		return v.wind.U, true
	case "v":
		return v.wind.V, true
	case "direction":
		return v.wind.Direction(), true
	}
	return 0, false
}

// MarshalJSON writes scalars as numbers and vectors as direction/magnitude
// pairs, carrying u and v along.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.wind == nil {
		return json.Marshal(v.scalar)
	}
	return json.Marshal(struct {
		Direction float64 `json:"direction"`
		Magnitude float64 `json:"magnitude"`
		U         float64 `json:"u"`
		V         float64 `json:"v"`
	}{v.wind.Direction(), v.wind.Magnitude(), v.wind.U, v.wind.V})
}

// UnmarshalJSON accepts a number, {u, v} or {direction, magnitude}.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*v = ScalarValue(f)
		return nil
	}

	var obj map[string]*float64
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	if u, vv := obj["u"], obj["v"]; u != nil && vv != nil {
		*v = VectorValue(UV{U: *u, V: *vv})
		return nil
	}
	if d, m := obj["direction"], obj["magnitude"]; d != nil && m != nil {
		*v = VectorValue(UVFromPolar(*d, *m))
		return nil
	}
	return errors.New("decode value: expected number, {u, v} or {direction, magnitude}")
}
