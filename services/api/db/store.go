package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/diag"
)

// ErrNotFound is returned when no analysis matches a query.
var ErrNotFound = errors.New("analysis not found")

// Store wraps database access helpers.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Metadata lists the values a client can choose from for every analysis
// coordinate.
type Metadata struct {
	Models      []string `json:"model_list"`
	Systems     []string `json:"system_list"`
	Domains     []string `json:"domain_list"`
	Backgrounds []string `json:"background_list"`
	Frequencies []string `json:"frequency_list"`
	Variables   []string `json:"variable_list"`
	InitTimes   []string `json:"init_time_list"`
}

const (
	modelsSQL = `
    SELECT DISTINCT m.name
    FROM diag.weather_model m
    WHERE EXISTS (SELECT 1 FROM diag.analysis a WHERE a.model_id = m.id)
    ORDER BY m.name
`
	systemsSQL     = `SELECT DISTINCT system FROM diag.analysis ORDER BY system`
	domainsSQL     = `SELECT DISTINCT domain FROM diag.analysis ORDER BY domain`
	frequenciesSQL = `SELECT DISTINCT frequency FROM diag.analysis ORDER BY frequency`
	backgroundsSQL = `
    SELECT DISTINCT bg.name
    FROM diag.weather_model bg
    JOIN diag.weather_model m ON m.background_id = bg.id
    ORDER BY bg.name
`
	initTimesSQL = `SELECT DISTINCT time FROM diag.analysis ORDER BY time`
)

// ModelMetadata collects the distinct analysis coordinates.
func (s *Store) ModelMetadata(ctx context.Context) (Metadata, error) {
	var md Metadata
	lists := []struct {
		sql  string
		dest *[]string
	}{
		{modelsSQL, &md.Models},
		{systemsSQL, &md.Systems},
		{domainsSQL, &md.Domains},
		{backgroundsSQL, &md.Backgrounds},
		{frequenciesSQL, &md.Frequencies},
	}
	for _, l := range lists {
		values, err := s.strings(ctx, l.sql)
		if err != nil {
			return md, err
		}
		*l.dest = values
	}

	rows, err := s.pool.Query(ctx, initTimesSQL)
	if err != nil {
		return md, err
	}
	defer rows.Close()
	md.InitTimes = make([]string, 0)
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return md, err
		}
		md.InitTimes = append(md.InitTimes, diag.FormatInitTime(ts))
	}
	if err := rows.Err(); err != nil {
		return md, err
	}

	md.Variables = make([]string, len(diag.Variables))
	for i, v := range diag.Variables {
		md.Variables[i] = string(v)
	}
	return md, nil
}

func (s *Store) strings(ctx context.Context, sql string) ([]string, error) {
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ObservationQuery selects the observations of one variable and loop in one
// analysis. Used, when set, keeps only observations with that usage flag.
type ObservationQuery struct {
	Analysis diag.Analysis
	Variable diag.Variable
	Loop     diag.Loop
	Used     *bool
}

const analysisIDSQL = `
    SELECT a.id
    FROM diag.analysis a
    JOIN diag.weather_model m ON m.id = a.model_id
    LEFT JOIN diag.weather_model bg ON bg.id = m.background_id
    WHERE m.name = $1 AND a.system = $2 AND a.domain = $3
      AND COALESCE(bg.name, '') = $4 AND a.frequency = $5 AND a.time = $6
    LIMIT 1
`

// FetchObservations returns the observations for q. It fails with
// ErrNotFound when the analysis does not exist; an analysis without
// matching observations yields an empty slice.
func (s *Store) FetchObservations(ctx context.Context, q ObservationQuery) ([]diag.Observation, error) {
	initTime, err := diag.ParseInitTime(q.Analysis.InitializationTime)
	if err != nil {
		return nil, err
	}

	var analysisID int64
	a := q.Analysis
	err = s.pool.QueryRow(ctx, analysisIDSQL, a.Model, a.System, a.Domain, a.Background, a.Frequency, initTime).Scan(&analysisID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, a.Key())
	}
	if err != nil {
		return nil, err
	}

	sql, args := observationsSQL(analysisID, q)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]diag.Observation, 0)
	for rows.Next() {
		o := diag.Observation{Variable: q.Variable, Loop: q.Loop}
		if err := rows.Scan(
			&o.Longitude,
			&o.Latitude,
			&o.IsUsed,
			&o.Adjusted,
			&o.Unadjusted,
			&o.Observed,
			&o.AdjustedV,
			&o.UnadjustedV,
			&o.ObservedV,
		); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func observationsSQL(analysisID int64, q ObservationQuery) (string, []any) {
	conditions := []string{"analysis_id = $1", "variable = $2", "loop = $3"}
	args := []any{analysisID, string(q.Variable), string(q.Loop)}
	if q.Used != nil {
		conditions = append(conditions, "is_used = $"+strconv.Itoa(len(args)+1))
		args = append(args, *q.Used)
	}

	query := strings.Builder{}
	query.WriteString("SELECT longitude, latitude, is_used, adjusted, unadjusted, observed, ")
	query.WriteString("adjusted_v, unadjusted_v, observed_v ")
	query.WriteString("FROM diag.observation ")
	query.WriteString("WHERE " + strings.Join(conditions, " AND ") + " ")
	query.WriteString("ORDER BY id")
	return query.String(), args
}
