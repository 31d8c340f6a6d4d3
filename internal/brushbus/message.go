// Package brushbus carries brush selections between charts and the page
// that hosts them.
package brushbus

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/selection"
)

// Kind identifies a message type.
type Kind string

const (
	// KindBrush carries a finalized selection, nil meaning "clear".
	KindBrush Kind = "brush"
	// KindDataLoaded announces that a chart received new data.
	KindDataLoaded Kind = "data-loaded"
	// KindUpdate carries a recomputed result from the page controller.
	KindUpdate Kind = "update"
	// KindError reports a rejected message back to its sender.
	KindError Kind = "error"
)

// ChartID names a chart or any other bus participant.
type ChartID string

// NewChartID returns a random id.
func NewChartID() ChartID {
	return ChartID(uuid.NewString())
}

// Message is the single message shape on the bus.
type Message struct {
	Kind      Kind
	Source    ChartID
	Dimension string
	Payload   selection.Selection
	Result    any
	Error     string
}

// Brush builds a brush message for one filter dimension.
func Brush(source ChartID, dimension string, sel selection.Selection) Message {
	return Message{Kind: KindBrush, Source: source, Dimension: dimension, Payload: sel}
}

type wireMessage struct {
	Kind      Kind            `json:"kind"`
	Source    ChartID         `json:"source,omitempty"`
	Dimension string          `json:"dimension,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Result    any             `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	payload, err := selection.Marshal(m.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireMessage{
		Kind:      m.Kind,
		Source:    m.Source,
		Dimension: m.Dimension,
		Payload:   payload,
		Result:    m.Result,
		Error:     m.Error,
	})
}

// UnmarshalJSON decodes a message sent by a client. Results are not read
// back.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	sel, err := selection.Unmarshal(w.Payload)
	if err != nil {
		return err
	}
	*m = Message{Kind: w.Kind, Source: w.Source, Dimension: w.Dimension, Payload: sel, Error: w.Error}
	return nil
}
