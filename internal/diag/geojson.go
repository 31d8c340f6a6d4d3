package diag

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Point is a [longitude, latitude] pair.
type Point [2]float64

// Lng returns the longitude.
func (p Point) Lng() float64 { return p[0] }

// Lat returns the latitude.
func (p Point) Lat() float64 { return p[1] }

// Geometry is a GeoJSON geometry. Only points are interpreted; other types
// are carried through untouched.
type Geometry struct {
	Type        string
	Coordinates json.RawMessage

	point *Point
}

// PointGeometry builds a Point geometry.
func PointGeometry(lng, lat float64) Geometry {
	p := Point{lng, lat}
	raw, _ := json.Marshal(p)
	return Geometry{Type: "Point", Coordinates: raw, point: &p}
}

// Point returns the coordinates of a Point geometry.
func (g Geometry) Point() (Point, bool) {
	if g.point == nil {
		return Point{}, false
	}
	return *g.point, true
}

func (g Geometry) MarshalJSON() ([]byte, error) {
	coords := g.Coordinates
	if coords == nil {
		coords = json.RawMessage("null")
	}
	return json.Marshal(struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}{g.Type, coords})
}

func (g *Geometry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*g = Geometry{Type: raw.Type, Coordinates: raw.Coordinates}
	if raw.Type != "Point" {
		return nil
	}

	var coords []float64
	if err := json.Unmarshal(raw.Coordinates, &coords); err != nil {
		return fmt.Errorf("decode point: %w", err)
	}
	if len(coords) < 2 {
		return fmt.Errorf("decode point: %d coordinates", len(coords))
	}
	g.point = &Point{coords[0], coords[1]}
	return nil
}

// Properties are the diagnostic fields of one observation.
type Properties struct {
	Type     VariableType
	Variable string
	Loop     Loop
	// Fields holds numeric fields such as adjusted, unadjusted and observed.
	Fields map[string]Value
	// Extra keeps any property that is not a numeric field.
	Extra map[string]json.RawMessage
}

// Field looks up a numeric field.
func (p Properties) Field(name string) (Value, bool) {
	v, ok := p.Fields[name]
	return v, ok
}

func (p Properties) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Fields)+len(p.Extra)+3)
	for k, v := range p.Extra {
		out[k] = v
	}
	for k, v := range p.Fields {
		out[k] = v
	}
	if p.Type != "" {
		out["type"] = p.Type
	}
	if p.Variable != "" {
		out["variable"] = p.Variable
	}
	if p.Loop != "" {
		out["loop"] = p.Loop
	}
	return json.Marshal(out)
}

func (p *Properties) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = Properties{Fields: make(map[string]Value, len(raw))}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		msg := raw[k]
		switch k {
		case "type":
			var s string
			if err := json.Unmarshal(msg, &s); err != nil {
				return fmt.Errorf("decode type: %w", err)
			}
			p.Type = VariableType(s)
		case "variable":
			if err := json.Unmarshal(msg, &p.Variable); err != nil {
				return fmt.Errorf("decode variable: %w", err)
			}
		case "loop":
			var s string
			if err := json.Unmarshal(msg, &s); err != nil {
				return fmt.Errorf("decode loop: %w", err)
			}
			p.Loop = Loop(s)
		default:
			var v Value
			if string(msg) == "null" {
				// missing readings stay out of Fields
			} else if err := json.Unmarshal(msg, &v); err == nil {
				p.Fields[k] = v
				continue
			}
			if p.Extra == nil {
				p.Extra = make(map[string]json.RawMessage)
			}
			p.Extra[k] = msg
		}
	}
	return nil
}

// Feature is one observation.
type Feature struct {
	Type       string     `json:"type"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

// NewPointFeature builds an observation at lng/lat.
func NewPointFeature(lng, lat float64, props Properties) Feature {
	return Feature{Type: "Feature", Geometry: PointGeometry(lng, lat), Properties: props}
}

// Clone copies the property maps so the copy can be changed freely.
func (f Feature) Clone() Feature {
	out := f
	if f.Properties.Fields != nil {
		out.Properties.Fields = make(map[string]Value, len(f.Properties.Fields))
		for k, v := range f.Properties.Fields {
			out.Properties.Fields[k] = v
		}
	}
	if f.Properties.Extra != nil {
		out.Properties.Extra = make(map[string]json.RawMessage, len(f.Properties.Extra))
		for k, v := range f.Properties.Extra {
			out.Properties.Extra[k] = v
		}
	}
	return out
}

// FeatureCollection is the ordered observation set of one variable and loop.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection wraps features in a collection.
func NewFeatureCollection(features []Feature) FeatureCollection {
	if features == nil {
		features = []Feature{}
	}
	return FeatureCollection{Type: "FeatureCollection", Features: features}
}

// Clone deep-copies the collection.
func (fc FeatureCollection) Clone() FeatureCollection {
	features := make([]Feature, len(fc.Features))
	for i, f := range fc.Features {
		features[i] = f.Clone()
	}
	return FeatureCollection{Type: fc.Type, Features: features}
}

// Magnitude replaces every field with its magnitude: vectors by their
// length and scalars by their absolute value.
func (fc FeatureCollection) Magnitude() FeatureCollection {
	out := fc.Clone()
	for i := range out.Features {
		props := &out.Features[i].Properties
		for k, v := range props.Fields {
			props.Fields[k] = ScalarValue(v.Magnitude())
		}
		props.Type = Scalar
	}
	return out
}

// Values extracts one numeric component from every feature that has it.
func (fc FeatureCollection) Values(field, component string) []float64 {
	out := make([]float64, 0, len(fc.Features))
	for _, f := range fc.Features {
		v, ok := f.Properties.Field(field)
		if !ok {
			continue
		}
		if x, ok := v.Component(component); ok {
			out = append(out, x)
		}
	}
	return out
}
