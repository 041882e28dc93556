package postgres

// tableActivitySQL sums row activity across every tracked table.
const tableActivitySQL = `SELECT sum(idx_tup_fetch) AS "rows_select_idx",
       sum(seq_tup_read) AS "rows_select_scan",
       sum(n_tup_ins) AS "rows_insert",
       sum(n_tup_upd) AS "rows_update",
       sum(n_tup_del) AS "rows_delete",
       (sum(idx_tup_fetch) + sum(seq_tup_read) + sum(n_tup_ins) + sum(n_tup_upd) + sum(n_tup_del)) AS "rows_total"
FROM pg_stat_all_tables;`

// databaseActivitySQL sums backend, transaction and block counters across every database.
const databaseActivitySQL = `SELECT sum(numbackends) AS "numbackends",
       sum(xact_commit) AS "xact_commit",
       sum(xact_rollback) AS "xact_rollback",
       sum(xact_commit+xact_rollback) AS "xact_total",
       sum(blks_read) AS "blks_read",
       sum(blks_hit) AS "blks_hit"
FROM pg_stat_database;`

var statsQueries = []string{tableActivitySQL, databaseActivitySQL}
