package a

import (
	"context"
	"database/sql"
)

func closedWithDefer(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, "SELECT 1")
	if err != nil {
		return err
	}
	defer rows.Close()
	return rows.Err()
}

func closedInClosure(ctx context.Context, db *sql.DB) (retErr error) {
	rows, err := db.QueryContext(ctx, "SELECT 1")
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && retErr == nil {
			retErr = cerr
		}
	}()
	return nil
}

func leaked(db *sql.DB) error {
	rows, err := db.Query("SELECT 1") // want `rows rows returned by Query are never closed`
	if err != nil {
		return err
	}
	return rows.Err()
}

func discarded(ctx context.Context, tx *sql.Tx) {
	_, _ = tx.QueryContext(ctx, "SELECT 1") // want `rows returned by QueryContext are discarded and never closed`
}

func singleRow(ctx context.Context, db *sql.DB) error {
	var n int
	return db.QueryRowContext(ctx, "SELECT 1").Scan(&n)
}
