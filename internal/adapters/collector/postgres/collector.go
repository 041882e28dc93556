// Package postgres collects server-wide activity counters from PostgreSQL statistics views.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vshulcz/pgprobe/internal/domain"
	"github.com/vshulcz/pgprobe/internal/ports"
	"github.com/vshulcz/pgprobe/internal/resolver"
)

// Opener opens and verifies a database handle for the given DSN.
type Opener func(ctx context.Context, dsn string) (*sql.DB, error)

// Collector runs the statistics queries on a fresh connection per call.
type Collector struct {
	open Opener
	log  *zap.Logger
}

var _ ports.StatsCollector = (*Collector)(nil)

// Option customizes a Collector.
type Option func(*Collector)

// WithOpener replaces the pgx-backed connection opener.
func WithOpener(o Opener) Option {
	return func(c *Collector) { c.open = o }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(c *Collector) { c.log = l }
}

// New returns a Collector using the pgx driver unless overridden.
func New(opts ...Option) *Collector {
	c := &Collector{open: OpenPGX, log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// OpenPGX opens a single-connection pool on the pgx stdlib driver and pings it.
func OpenPGX(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Collect connects to d, reads both statistics rows and classifies every column.
// Failures come back as *domain.CollectionError; the connection is closed on every path.
func (c *Collector) Collect(ctx context.Context, d domain.Descriptor) ([]domain.Sample, error) {
	db, err := c.open(ctx, resolver.DSN(d))
	if err != nil {
		return nil, domain.NewCollectionError(domain.SubjectConnect, errors.WithStack(err))
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			c.log.Debug("close connection", zap.Error(cerr))
		}
	}()

	var samples []domain.Sample
	for _, q := range statsQueries {
		row, err := queryRow(ctx, db, q)
		if err != nil {
			return nil, domain.NewCollectionError(domain.SubjectQuery, errors.WithStack(err))
		}
		samples = append(samples, row...)
	}
	c.log.Debug("statistics collected", zap.String("target", d.Target()), zap.Int("samples", len(samples)))
	return samples, nil
}

// queryRow reads the first row of q column by column. NULL aggregates read as zero,
// and so does every column of a query that yields no row.
func queryRow(ctx context.Context, db *sql.DB, q string) (samples []domain.Sample, retErr error) {
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close rows: %w", cerr)
		}
	}()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := makeValues(len(columns))

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
	} else if err := rows.Scan(values...); err != nil {
		return nil, err
	}
	samples = make([]domain.Sample, 0, len(columns))
	for i, name := range columns {
		samples = append(samples, domain.NewSample(name, parseInt(valueToString(values[i]))))
	}
	return samples, rows.Err()
}

func makeValues(size int) []any {
	vs := make([]any, size)
	for i := range vs {
		vs[i] = &sql.NullString{}
	}
	return vs
}

func valueToString(value any) string {
	v, ok := value.(*sql.NullString)
	if !ok || !v.Valid {
		return ""
	}
	return v.String
}

// parseInt accepts the text form of numeric aggregates, truncating any fraction.
func parseInt(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	f, err := strconv.ParseFloat(s, 64)
	switch {
	case err != nil && !errors.Is(err, strconv.ErrRange):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}
