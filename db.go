package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"

	_ "github.com/lib/pq"
	"go.uber.org/multierr"
)

func buildDSNFromEnv() (string, error) {
	host := os.Getenv("POSTGRES_HOST")
	port := os.Getenv("POSTGRES_PORT")
	user := os.Getenv("POSTGRES_USER")
	pass := os.Getenv("POSTGRES_PASSWORD")
	dbname := os.Getenv("POSTGRES_DB")
	if dbname == "" {
		if url := os.Getenv("DATABASE_URL"); url != "" {
			return url, nil
		}
		return "", errors.New("POSTGRES_DB not set; set env vars or DATABASE_URL")
	}
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "5432"
	}
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, pass, dbname)
	return dsn, nil
}

func existsTestRun(ctx context.Context, db *sql.DB, id int64) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM test_runs WHERE id = $1)", id).Scan(&exists)
	return exists, err
}

func fetchTaskWindow(ctx context.Context, db *sql.DB, testRunID int64) (int, int, error) {
	const q = `
SELECT tasks.page, tasks.per_page
FROM tasks
JOIN handlers ON handlers.task_id = tasks.id
JOIN test_runs ON test_runs.handler_id = handlers.id
WHERE test_runs.id = $1
LIMIT 1`

	var page sql.NullInt64
	var perPage sql.NullInt64
	err := db.QueryRowContext(ctx, q, testRunID).Scan(&page, &perPage)
	if err != nil && err != sql.ErrNoRows {
		return 0, 0, err
	}

	pg := normalizePositiveInt(page.Int64, 1)
	pp := normalizePositiveInt(perPage.Int64, 1)
	return pg, pp, nil
}

// streamSamples hands every non-NULL sample of the window to fn as rows
// arrive; nothing is buffered.
func streamSamples(ctx context.Context, db *sql.DB, w window, fn func(float64) error) (err error) {
	rows, err := db.QueryContext(ctx, "SELECT value FROM samples ORDER BY id ASC LIMIT $1 OFFSET $2", w.limit, w.offset)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, rows.Close())
	}()
	for rows.Next() {
		var v sql.NullFloat64
		if err := rows.Scan(&v); err != nil {
			return err
		}
		if !v.Valid {
			continue
		}
		if err := fn(v.Float64); err != nil {
			return err
		}
	}
	return rows.Err()
}

type window struct {
	limit, offset int
}

func windowLimitOffset(page, perPage int) window {
	pp := perPage
	if pp <= 0 {
		pp = 1
	}
	pg := page
	if pg <= 0 {
		pg = 1
	}
	return window{limit: pp, offset: (pg - 1) * pp}
}

// partitionWindow splits w into at most parts contiguous, non-empty windows
// that differ in size by at most one row.
func partitionWindow(w window, parts int) []window {
	if parts < 1 {
		parts = 1
	}
	if parts > w.limit {
		parts = w.limit
	}
	size, rem := w.limit/parts, w.limit%parts
	out := make([]window, 0, parts)
	offset := w.offset
	for i := 0; i < parts; i++ {
		n := size
		if i < rem {
			n++
		}
		out = append(out, window{limit: n, offset: offset})
		offset += n
	}
	return out
}

func normalizePositiveInt(value int64, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return int(value)
}

// nullable maps undefined statistics to SQL NULL.
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func insertTestResult(ctx context.Context, db *sql.DB, testRunID int64, st Stats, state []byte, durationSeconds float64, memoryBytes float64) error {
	const q = `
INSERT INTO test_results 
  (test_run_id, sample_count, rejected_count, mean, median, q1, q3, min, max,
   standard_deviation, variance, skewness, kurtosis, accumulator_state,
   duration, memory, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,NOW(),NOW())
`
	_, err := db.ExecContext(ctx, q,
		testRunID, int64(st.Count), int64(st.Rejected),
		nullable(st.Mean), nullable(st.Median), nullable(st.Q1), nullable(st.Q3),
		nullable(st.Min), nullable(st.Max),
		nullable(st.StdDev), nullable(st.Variance), nullable(st.Skewness), nullable(st.Kurtosis),
		string(state),
		durationSeconds, memoryBytes,
	)
	return err
}
