// Package history summarizes a variable's innovations across initialization
// times from parquet files on local disk or in S3.
package history

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/aclements/go-moremath/stats"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/spf13/afero"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/diag"
)

// ErrNotFound is returned when no history file exists for a query.
var ErrNotFound = errors.New("history not found")

// Column names in a history file.
const (
	ColumnInitTime = "initialization_time"
	ColumnLoop     = "loop"
	ColumnUsed     = "is_used"
	ColumnValue    = "unadjusted"
)

// S3API is the part of the S3 client the reader needs.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Summary describes the used observations of one initialization time.
type Summary struct {
	InitializationTime string  `json:"initialization_time"`
	Min                float64 `json:"min"`
	Max                float64 `json:"max"`
	Mean               float64 `json:"mean"`
	Count              int     `json:"count"`
}

// Reader locates and reads history files under a root, which is either a
// directory or an s3://bucket/prefix URL.
type Reader struct {
	root string
	fs   afero.Fs
	s3   S3API
}

type Option func(*Reader)

// WithFs reads local roots from fs instead of the OS file system.
func WithFs(fs afero.Fs) Option {
	return func(r *Reader) { r.fs = fs }
}

// WithS3 sets the client used for s3:// roots.
func WithS3(client S3API) Option {
	return func(r *Reader) { r.s3 = client }
}

func NewReader(root string, opts ...Option) *Reader {
	r := &Reader{root: root, fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsS3 reports whether root names an S3 location.
func IsS3(root string) bool {
	return strings.HasPrefix(root, "s3://")
}

// Path is the history file of one variable for a model run series:
// <root>/<model>_<background>_<system>_<domain>_<frequency>/<variable>.parquet.
// The analysis initialization time is ignored.
func Path(root string, a diag.Analysis, v diag.Variable) string {
	dir := strings.Join([]string{a.Model, a.Background, a.System, a.Domain, a.Frequency}, "_")
	return strings.TrimSuffix(root, "/") + "/" + dir + "/" + string(v) + ".parquet"
}

// Summaries returns min, max, mean and count of the used observations of
// loop, one entry per initialization time in ascending order.
func (r *Reader) Summaries(ctx context.Context, a diag.Analysis, v diag.Variable, loop diag.Loop) ([]Summary, error) {
	src, closeFn, err := r.open(ctx, Path(r.root, a, v))
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return summarize(ctx, src, loop)
}

func (r *Reader) open(ctx context.Context, p string) (parquet.ReaderAtSeeker, func(), error) {
	if !IsS3(p) {
		f, err := r.fs.Open(p)
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		if err != nil {
			return nil, nil, err
		}
		return f, func() { _ = f.Close() }, nil
	}

	if r.s3 == nil {
		return nil, nil, fmt.Errorf("no S3 client configured for %s", p)
	}
	u, err := url.Parse(p)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", p, err)
	}
	out, err := r.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(strings.TrimPrefix(path.Clean(u.Path), "/")),
	})
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get %s: %w", p, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", p, err)
	}
	return bytes.NewReader(data), func() {}, nil
}

func summarize(ctx context.Context, src parquet.ReaderAtSeeker, loop diag.Loop) ([]Summary, error) {
	pf, err := file.NewParquetReader(src)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{Parallel: false}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	rr, err := fr.GetRecordReader(ctx, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	defer rr.Release()

	groups := make(map[string][]float64)
	for rr.Next() {
		if err := collect(rr.RecordBatch(), loop, groups); err != nil {
			return nil, err
		}
	}
	if err := rr.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read parquet: %w", err)
	}

	out := make([]Summary, 0, len(groups))
	for initTime, values := range groups {
		lo, hi := stats.Bounds(values)
		out = append(out, Summary{
			InitializationTime: initTime,
			Min:                lo,
			Max:                hi,
			Mean:               stats.Mean(values),
			Count:              len(values),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InitializationTime < out[j].InitializationTime })
	return out, nil
}

func column(rec arrow.RecordBatch, name string) (arrow.Array, error) {
	idx := rec.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return nil, fmt.Errorf("history file has no %s column", name)
	}
	return rec.Column(idx[0]), nil
}

// collect appends the used values of loop in rec to groups, keyed by
// initialization time.
func collect(rec arrow.RecordBatch, loop diag.Loop, groups map[string][]float64) error {
	timeCol, err := column(rec, ColumnInitTime)
	if err != nil {
		return err
	}
	loopCol, err := column(rec, ColumnLoop)
	if err != nil {
		return err
	}
	usedCol, err := column(rec, ColumnUsed)
	if err != nil {
		return err
	}
	valueCol, err := column(rec, ColumnValue)
	if err != nil {
		return err
	}

	loops, ok := loopCol.(*array.String)
	if !ok {
		return fmt.Errorf("%s column has type %s", ColumnLoop, loopCol.DataType())
	}
	used, ok := usedCol.(*array.Boolean)
	if !ok {
		return fmt.Errorf("%s column has type %s", ColumnUsed, usedCol.DataType())
	}
	values, ok := valueCol.(*array.Float64)
	if !ok {
		return fmt.Errorf("%s column has type %s", ColumnValue, valueCol.DataType())
	}
	initTime, err := timeFormatter(timeCol)
	if err != nil {
		return err
	}

	for i := 0; i < int(rec.NumRows()); i++ {
		if loops.IsNull(i) || used.IsNull(i) || values.IsNull(i) || timeCol.IsNull(i) {
			continue
		}
		if diag.Loop(loops.Value(i)) != loop || !used.Value(i) {
			continue
		}
		key := initTime(i)
		groups[key] = append(groups[key], values.Value(i))
	}
	return nil
}

// timeFormatter renders initialization times stored either as strings or
// as arrow timestamps.
func timeFormatter(col arrow.Array) (func(int) string, error) {
	switch c := col.(type) {
	case *array.String:
		return func(i int) string {
			if t, err := diag.ParseInitTime(c.Value(i)); err == nil {
				return diag.FormatInitTime(t)
			}
			return c.Value(i)
		}, nil
	case *array.Timestamp:
		unit := c.DataType().(*arrow.TimestampType).Unit
		return func(i int) string { return diag.FormatInitTime(c.Value(i).ToTime(unit)) }, nil
	default:
		return nil, fmt.Errorf("%s column has type %s", ColumnInitTime, col.DataType())
	}
}
