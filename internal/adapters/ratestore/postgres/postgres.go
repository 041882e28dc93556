// Package postgres keeps counter readings in a Postgres table so several hosts can share probe state.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"maps"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/vshulcz/pgprobe/internal/domain"
	"github.com/vshulcz/pgprobe/internal/misc"
	"github.com/vshulcz/pgprobe/internal/ports"
)

// Store persists readings with retryable operations.
type Store struct {
	db      *sql.DB
	log     *zap.Logger
	backoff []time.Duration
}

var _ ports.RateStore = (*Store)(nil)

var retryablePGCodes = map[string]struct{}{
	pgerrcode.ConnectionException:                           {},
	pgerrcode.ConnectionDoesNotExist:                        {},
	pgerrcode.ConnectionFailure:                             {},
	pgerrcode.SQLClientUnableToEstablishSQLConnection:       {},
	pgerrcode.SQLServerRejectedEstablishmentOfSQLConnection: {},
	pgerrcode.TransactionResolutionUnknown:                  {},
	pgerrcode.SerializationFailure:                          {},
	pgerrcode.DeadlockDetected:                              {},
	pgerrcode.LockNotAvailable:                              {},
	pgerrcode.TooManyConnections:                            {},
	pgerrcode.AdminShutdown:                                 {},
	pgerrcode.CrashShutdown:                                 {},
	pgerrcode.CannotConnectNow:                              {},
}

const (
	qLoad = `SELECT name, value, observed_at FROM probe_readings WHERE target=$1`
	qSave = `
INSERT INTO probe_readings (target, name, value, observed_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (target, name)
DO UPDATE SET value=EXCLUDED.value, observed_at=EXCLUDED.observed_at;`
)

// New returns a Store over an open lib/pq handle.
func New(db *sql.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, log: log, backoff: misc.DefaultBackoff}
}

// Open connects with lib/pq, retrying transient failures, and applies migrations.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	op := func() error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		return Migrate(db)
	}
	if err := misc.Retry(ctx, misc.DefaultBackoff, IsRetryable, op); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db, log), nil
}

// Close releases the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns every reading stored for target.
func (s *Store) Load(ctx context.Context, target string) (map[string]domain.Reading, error) {
	var out map[string]domain.Reading
	op := func() (retErr error) {
		rows, err := s.db.QueryContext(ctx, qLoad, target)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := rows.Close(); cerr != nil && retErr == nil {
				retErr = cerr
			}
		}()

		got := make(map[string]domain.Reading)
		var (
			name  string
			value int64
			at    time.Time
		)
		for rows.Next() {
			if err := rows.Scan(&name, &value, &at); err != nil {
				return err
			}
			got[name] = domain.Reading{Value: value, At: at}
		}
		if err := rows.Err(); err != nil {
			return err
		}
		out = got
		return nil
	}
	if err := s.retry(ctx, "load", op); err != nil {
		return nil, err
	}
	return out, nil
}

// Save upserts readings for target inside one transaction, in name order.
func (s *Store) Save(ctx context.Context, target string, readings map[string]domain.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	attempt := func() error {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
		if err != nil {
			return err
		}
		defer func() {
			_ = tx.Rollback()
		}()

		for _, name := range slices.Sorted(maps.Keys(readings)) {
			r := readings[name]
			if _, err := tx.ExecContext(ctx, qSave, target, name, r.Value, r.At); err != nil {
				return err
			}
		}
		return tx.Commit()
	}
	return s.retry(ctx, "save", attempt)
}

func (s *Store) retry(ctx context.Context, op string, fn func() error) error {
	return misc.RetryNotify(ctx, s.backoff, isRetryablePG, fn, func(err error, attempt int, wait time.Duration) {
		s.log.Warn("rate store retry",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
}

// IsRetryable reports whether err is a transient Postgres or network failure.
func IsRetryable(err error) bool {
	return isRetryablePG(err)
}

func isRetryablePG(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return isRetryablePGCode(string(pqe.Code))
	}
	return false
}

func isRetryablePGCode(code string) bool {
	if _, ok := retryablePGCodes[code]; ok {
		return true
	}
	return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "40")
}
