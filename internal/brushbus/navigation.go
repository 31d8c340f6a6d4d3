package brushbus

import (
	"net/url"
	"strconv"
	"sync"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/selection"
)

// Delimiter joins the endpoints of one range in a query parameter. It never
// appears in a formatted number.
const Delimiter = "::"

// FormatRange renders one [a, b] pair as "a::b".
func FormatRange(c [2]float64) string {
	return formatFloat(c[0]) + Delimiter + formatFloat(c[1])
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// EncodeSelection renders one parameter value per selection component. A
// nil selection has no values.
func EncodeSelection(sel selection.Selection) []string {
	if sel == nil {
		return nil
	}
	comps := sel.Components()
	out := make([]string, len(comps))
	for i, c := range comps {
		out[i] = FormatRange(c)
	}
	return out
}

// Navigation is the page's shareable filter state: one query parameter per
// filter dimension.
type Navigation struct {
	mu     sync.Mutex
	values url.Values
}

// NewNavigation starts from a copy of initial, which may be nil.
func NewNavigation(initial url.Values) *Navigation {
	values := url.Values{}
	for k, v := range initial {
		values[k] = append([]string(nil), v...)
	}
	return &Navigation{values: values}
}

// Apply replaces the parameter for dimension with the normalized
// selection, or deletes it when nothing is left to select. Applying the
// same selection twice leaves the state unchanged.
func (n *Navigation) Apply(dimension string, sel selection.Selection) {
	sel = selection.Normalize(sel)
	n.mu.Lock()
	defer n.mu.Unlock()
	if sel == nil {
		n.values.Del(dimension)
		return
	}
	n.values[dimension] = EncodeSelection(sel)
}

// Handle applies brush messages and ignores everything else.
func (n *Navigation) Handle(msg Message) {
	if msg.Kind != KindBrush || msg.Dimension == "" {
		return
	}
	n.Apply(msg.Dimension, msg.Payload)
}

// Values returns a copy of the query parameters.
func (n *Navigation) Values() url.Values {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(url.Values, len(n.values))
	for k, v := range n.values {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Encode renders the query string.
func (n *Navigation) Encode() string {
	return n.Values().Encode()
}
