package diag

import "encoding/json"

// Observation is one stored diagnostic row. For vector variables the *V
// fields carry the v component and the plain fields carry u.
type Observation struct {
	Variable    Variable
	Loop        Loop
	Longitude   float64
	Latitude    float64
	IsUsed      bool
	Adjusted    float64
	Unadjusted  float64
	Observed    float64
	AdjustedV   *float64
	UnadjustedV *float64
	ObservedV   *float64
}

func fieldValue(typ VariableType, u float64, v *float64) Value {
	if typ == Vector && v != nil {
		return VectorValue(UV{U: u, V: *v})
	}
	return ScalarValue(u)
}

// Feature converts the row to a GeoJSON point feature.
func (o Observation) Feature() Feature {
	typ := o.Variable.Type()
	props := Properties{
		Type:     typ,
		Variable: string(o.Variable),
		Loop:     o.Loop,
		Fields: map[string]Value{
			"adjusted":   fieldValue(typ, o.Adjusted, o.AdjustedV),
			"unadjusted": fieldValue(typ, o.Unadjusted, o.UnadjustedV),
			"observed":   fieldValue(typ, o.Observed, o.ObservedV),
		},
	}
	used, _ := json.Marshal(o.IsUsed)
	props.Extra = map[string]json.RawMessage{"is_used": used}
	return NewPointFeature(o.Longitude, o.Latitude, props)
}

// ObservationFromFeature is the inverse of Observation.Feature. Features
// without a point geometry or an adjusted field are rejected.
func ObservationFromFeature(f Feature, variable Variable, loop Loop) (Observation, bool) {
	pt, ok := f.Geometry.Point()
	if !ok {
		return Observation{}, false
	}
	adj, ok := f.Properties.Field("adjusted")
	if !ok {
		return Observation{}, false
	}

	o := Observation{
		Variable:  variable,
		Loop:      loop,
		Longitude: pt.Lng(),
		Latitude:  pt.Lat(),
		IsUsed:    true,
	}
	if raw, ok := f.Properties.Extra["is_used"]; ok {
		var used bool
		if err := json.Unmarshal(raw, &used); err == nil {
			o.IsUsed = used
		}
	}

	o.Adjusted, o.AdjustedV = split(adj)
	if v, ok := f.Properties.Field("unadjusted"); ok {
		o.Unadjusted, o.UnadjustedV = split(v)
	}
	if v, ok := f.Properties.Field("observed"); ok {
		o.Observed, o.ObservedV = split(v)
	}
	return o, true
}

func split(v Value) (float64, *float64) {
	if uv, ok := v.UV(); ok {
		vv := uv.V
		return uv.U, &vv
	}
	return v.Float(), nil
}

// Collection converts rows to a feature collection.
func Collection(rows []Observation) FeatureCollection {
	features := make([]Feature, 0, len(rows))
	for _, o := range rows {
		features = append(features, o.Feature())
	}
	return NewFeatureCollection(features)
}
