package db

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/diag"
	"github.com/02loveslollipop/shizuku-diagnostics/services/watcher/internal/models"
)

func TestQueueObservations(t *testing.T) {
	v := 4.0
	batches := []models.Batch{
		{
			FeedKey: models.FeedKey{Variable: diag.Wind, Loop: diag.LoopGuess},
			Rows: []diag.Observation{
				{Longitude: 1, Latitude: 2, IsUsed: true, Adjusted: 3, AdjustedV: &v},
				{Longitude: 5, Latitude: 6, Adjusted: 7},
			},
		},
		{FeedKey: models.FeedKey{Variable: diag.Wind, Loop: diag.LoopAnalysis}},
	}

	batch := QueueObservations(&pgx.Batch{}, 42, batches)
	require.Equal(t, 4, batch.Len())

	q := batch.QueuedQueries
	assert.Equal(t, deleteObservationsSQL, q[0].SQL)
	assert.Equal(t, []any{int64(42), "uv", "ges"}, q[0].Arguments)

	assert.Equal(t, insertObservationSQL, q[1].SQL)
	require.Len(t, q[1].Arguments, 12)
	assert.Equal(t, 1.0, q[1].Arguments[3])
	assert.Equal(t, true, q[1].Arguments[5])
	assert.Equal(t, &v, q[1].Arguments[9])
	assert.Nil(t, q[2].Arguments[9])

	// An empty document still clears what was stored for its loop.
	assert.Equal(t, deleteObservationsSQL, q[3].SQL)
	assert.Equal(t, []any{int64(42), "uv", "anl"}, q[3].Arguments)
}
