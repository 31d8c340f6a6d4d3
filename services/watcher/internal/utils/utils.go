package utils

import (
	"fmt"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/diag"
	"github.com/02loveslollipop/shizuku-diagnostics/services/watcher/internal/models"
)

// BuildBatch converts a feed document into observation rows. Features that
// cannot be stored are counted in Dropped.
func BuildBatch(key models.FeedKey, fc diag.FeatureCollection, sentinel float64) models.Batch {
	batch := models.Batch{FeedKey: key, Rows: make([]diag.Observation, 0, len(fc.Features))}
	for _, f := range fc.Features {
		o, ok := diag.ObservationFromFeature(f, key.Variable, key.Loop)
		if !ok || IsNull(o, sentinel) {
			batch.Dropped++
			continue
		}
		batch.Rows = append(batch.Rows, o)
	}
	return batch
}

// IsNull reports whether any value of o is at or below the sentinel that
// feeds use for missing data.
func IsNull(o diag.Observation, sentinel float64) bool {
	for _, v := range []float64{o.Adjusted, o.Unadjusted, o.Observed} {
		if v <= sentinel {
			return true
		}
	}
	for _, v := range []*float64{o.AdjustedV, o.UnadjustedV, o.ObservedV} {
		if v != nil && *v <= sentinel {
			return true
		}
	}
	return false
}

// CountUsed returns how many rows were assimilated.
func CountUsed(rows []diag.Observation) int {
	n := 0
	for _, o := range rows {
		if o.IsUsed {
			n++
		}
	}
	return n
}

// ValuePtrString prints pointer values for logging.
func ValuePtrString(v *float64) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%.3f", *v)
}
