package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io/fs"
	"net"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"go.uber.org/zap/zaptest"

	"github.com/vshulcz/pgprobe/internal/domain"
)

func newMock(t *testing.T) (sqlmock.Sqlmock, *Store, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	st := New(db, zaptest.NewLogger(t))
	st.backoff = []time.Duration{time.Millisecond, time.Millisecond}
	cleanup := func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
		_ = db.Close()
	}
	return mock, st, cleanup
}

const loadPat = `SELECT name, value, observed_at FROM probe_readings WHERE target=\$1`

func TestStore_Load(t *testing.T) {
	mock, st, done := newMock(t)
	defer done()

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(loadPat).WithArgs("db:5432/postgres").
		WillReturnRows(sqlmock.NewRows([]string{"name", "value", "observed_at"}).
			AddRow("xact_commit", int64(100), at).
			AddRow("blks_hit", int64(9), at))

	got, err := st.Load(context.Background(), "db:5432/postgres")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 || got["xact_commit"].Value != 100 || !got["blks_hit"].At.Equal(at) {
		t.Fatalf("readings=%+v", got)
	}
}

func TestStore_Load_RetriesTransient(t *testing.T) {
	mock, st, done := newMock(t)
	defer done()

	mock.ExpectQuery(loadPat).WithArgs("t").WillReturnError(driver.ErrBadConn)
	mock.ExpectQuery(loadPat).WithArgs("t").
		WillReturnRows(sqlmock.NewRows([]string{"name", "value", "observed_at"}))

	got, err := st.Load(context.Background(), "t")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("readings=%+v", got)
	}
}

func TestStore_Load_PermanentError(t *testing.T) {
	mock, st, done := newMock(t)
	defer done()

	mock.ExpectQuery(loadPat).WithArgs("t").
		WillReturnError(&pq.Error{Code: pq.ErrorCode(pgerrcode.UndefinedTable)})

	if _, err := st.Load(context.Background(), "t"); err == nil {
		t.Fatal("expected error")
	}
}

func TestStore_Save(t *testing.T) {
	mock, st, done := newMock(t)
	defer done()

	at := time.Unix(1700000000, 0).UTC()
	ins := regexp.QuoteMeta(qSave)

	mock.ExpectBegin()
	mock.ExpectExec(ins).WithArgs("t", "blks_hit", int64(5), at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(ins).WithArgs("t", "xact_commit", int64(10), at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := st.Save(context.Background(), "t", map[string]domain.Reading{
		"xact_commit": {Value: 10, At: at},
		"blks_hit":    {Value: 5, At: at},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestStore_Save_RollsBackOnError(t *testing.T) {
	mock, st, done := newMock(t)
	defer done()

	at := time.Unix(1700000000, 0).UTC()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(qSave)).WithArgs("t", "c", int64(1), at).
		WillReturnError(errors.New("value too long"))
	mock.ExpectRollback()

	if err := st.Save(context.Background(), "t", map[string]domain.Reading{"c": {Value: 1, At: at}}); err == nil {
		t.Fatal("expected error")
	}
}

func TestStore_Save_Empty(t *testing.T) {
	_, st, done := newMock(t)
	defer done()
	if err := st.Save(context.Background(), "t", nil); err != nil {
		t.Fatalf("Save(nil)=%v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad conn", driver.ErrBadConn, true},
		{"net op", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"connection class", &pq.Error{Code: "08006"}, true},
		{"serialization", &pq.Error{Code: pq.ErrorCode(pgerrcode.SerializationFailure)}, true},
		{"too many connections", &pq.Error{Code: pq.ErrorCode(pgerrcode.TooManyConnections)}, true},
		{"syntax", &pq.Error{Code: pq.ErrorCode(pgerrcode.SyntaxError)}, false},
		{"plain", sql.ErrNoRows, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Fatalf("IsRetryable(%v)=%v want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestEmbeddedMigrations_Present(t *testing.T) {
	entries, err := fs.ReadDir(embedMigrations, "migrations")
	if err != nil {
		t.Fatalf("cannot read embedded migrations: %v", err)
	}
	if len(entries) == 0 || entries[0].Name() != "0001_readings.sql" {
		t.Fatalf("unexpected migrations: %v", entries)
	}
}
