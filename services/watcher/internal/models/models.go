package models

import "github.com/02loveslollipop/shizuku-diagnostics/internal/diag"

// FeedKey names one feed document: the observations of a variable in one
// loop of an analysis.
type FeedKey struct {
	Variable diag.Variable
	Loop     diag.Loop
}

// Batch is one feed document converted to database-ready rows.
type Batch struct {
	FeedKey
	Rows []diag.Observation
	// Dropped counts features without a position, with a missing field or
	// with a value at or below the null sentinel.
	Dropped int
}
