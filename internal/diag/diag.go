// Package diag holds the observation diagnostics model shared by the API,
// the watcher and the chart components.
package diag

import (
	"fmt"
	"strings"
	"time"
)

// Loop identifies a minimization pass.
type Loop string

const (
	LoopGuess    Loop = "ges"
	LoopAnalysis Loop = "anl"
)

// ParseLoop accepts the short loop names and their long aliases.
func ParseLoop(s string) (Loop, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ges", "guess":
		return LoopGuess, nil
	case "anl", "analysis":
		return LoopAnalysis, nil
	default:
		return "", fmt.Errorf("unknown loop: %q", s)
	}
}

// VariableType tells scalar and vector variables apart.
type VariableType string

const (
	Scalar VariableType = "scalar"
	Vector VariableType = "vector"
)

// Variable is a diagnosed meteorological variable.
type Variable string

const (
	Moisture    Variable = "q"
	Pressure    Variable = "ps"
	Temperature Variable = "t"
	Wind        Variable = "uv"
)

// Variables lists every known variable in display order.
var Variables = []Variable{Pressure, Moisture, Temperature, Wind}

// ParseVariable validates a variable code.
func ParseVariable(s string) (Variable, error) {
	v := Variable(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Variables {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown variable: %q", s)
}

// Type reports whether the variable is a vector quantity.
func (v Variable) Type() VariableType {
	if v == Wind {
		return Vector
	}
	return Scalar
}

// Name is the human readable variable name.
func (v Variable) Name() string {
	switch v {
	case Moisture:
		return "moisture"
	case Pressure:
		return "pressure"
	case Temperature:
		return "temperature"
	case Wind:
		return "wind"
	default:
		return string(v)
	}
}

// Analysis describes one diagnostics run: every observation of a variable
// shares one of these.
type Analysis struct {
	Model              string `json:"model"`
	System             string `json:"system"`
	Domain             string `json:"domain"`
	Background         string `json:"background"`
	Frequency          string `json:"frequency"`
	InitializationTime string `json:"initialization_time"`
}

// Key joins the analysis coordinates into a path fragment.
func (a Analysis) Key() string {
	return strings.Join([]string{a.Model, a.System, a.Domain, a.Background, a.Frequency, a.InitializationTime}, "/")
}

var initTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15",
}

// ParseInitTime reads an ISO 8601 initialization time. Times without a zone
// are UTC.
func ParseInitTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range initTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid initialization time: %q", s)
}

// FormatInitTime renders t with minute precision, the form used in URLs.
func FormatInitTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04")
}
