package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/diag"
	"github.com/02loveslollipop/shizuku-diagnostics/services/watcher/internal/models"
)

const (
	upsertModelSQL = `INSERT INTO diag.weather_model (name, background_id)
VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE
SET background_id = COALESCE(EXCLUDED.background_id, diag.weather_model.background_id)
RETURNING id`

	upsertAnalysisSQL = `INSERT INTO diag.analysis (model_id, system, domain, frequency, time, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW())
ON CONFLICT (model_id, system, domain, frequency, time) DO UPDATE
SET updated_at = NOW()
RETURNING id`

	deleteObservationsSQL = `DELETE FROM diag.observation WHERE analysis_id = $1 AND variable = $2 AND loop = $3`

	insertObservationSQL = `INSERT INTO diag.observation (analysis_id, variable, loop, longitude, latitude, is_used,
    adjusted, unadjusted, observed, adjusted_v, unadjusted_v, observed_v)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
)

// UpsertAnalysis makes sure the model, its background and the analysis row
// exist and returns the analysis id.
func UpsertAnalysis(ctx context.Context, pool *pgxpool.Pool, a diag.Analysis) (int64, error) {
	initTime, err := diag.ParseInitTime(a.InitializationTime)
	if err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var backgroundID *int64
	if a.Background != "" {
		var id int64
		if err := tx.QueryRow(ctx, upsertModelSQL, a.Background, nil).Scan(&id); err != nil {
			return 0, fmt.Errorf("upsert background %s: %w", a.Background, err)
		}
		backgroundID = &id
	}

	var modelID int64
	if err := tx.QueryRow(ctx, upsertModelSQL, a.Model, backgroundID).Scan(&modelID); err != nil {
		return 0, fmt.Errorf("upsert model %s: %w", a.Model, err)
	}

	var analysisID int64
	err = tx.QueryRow(ctx, upsertAnalysisSQL, modelID, a.System, a.Domain, a.Frequency, initTime).Scan(&analysisID)
	if err != nil {
		return 0, fmt.Errorf("upsert analysis %s: %w", a.Key(), err)
	}

	return analysisID, tx.Commit(ctx)
}

// ReplaceObservations swaps the stored observations of every batch for the
// new rows in one transaction.
func ReplaceObservations(ctx context.Context, pool *pgxpool.Pool, analysisID int64, batches []models.Batch) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := QueueObservations(&pgx.Batch{}, analysisID, batches)
	res := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := res.Exec(); err != nil {
			res.Close()
			return err
		}
	}
	if err := res.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// QueueObservations adds a delete per batch followed by an insert per row.
func QueueObservations(batch *pgx.Batch, analysisID int64, batches []models.Batch) *pgx.Batch {
	for _, b := range batches {
		batch.Queue(deleteObservationsSQL, analysisID, string(b.Variable), string(b.Loop))
		for _, o := range b.Rows {
			batch.Queue(insertObservationSQL,
				analysisID, string(b.Variable), string(b.Loop),
				o.Longitude, o.Latitude, o.IsUsed,
				o.Adjusted, o.Unadjusted, o.Observed,
				o.AdjustedV, o.UnadjustedV, o.ObservedV,
			)
		}
	}
	return batch
}
