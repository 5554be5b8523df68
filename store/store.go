// Package store persists sampling histograms and comparison results in an sqlite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	tableHistogram = "hist"
	tableResult    = "result"
)

// Result is the outcome of comparing a sampler against the exact distribution.
type Result struct {
	Run        string
	Samples    int
	Z          float64
	Tolerance  float64
	Acceptance float64
	Seed       uint64
	Pass       bool
}

// Store is an sqlite database of histograms keyed by run name.
type Store struct {
	Path string

	db *sql.DB
}

// Open opens or creates the database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := newDB(dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return &Store{Path: dbPath, db: db}, nil
}

// MustOpen is like Open but panics on error.
func MustOpen(dbPath string) *Store {
	s, err := Open(dbPath)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return s
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// WriteHistogram replaces the histogram of run.
// Only nonzero bins are stored.
func (s *Store) WriteHistogram(ctx context.Context, run string, hist []float64) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	sqlStr := fmt.Sprintf(`DELETE FROM %s WHERE run=?`, tableHistogram)
	if _, err := tx.ExecContext(ctx, sqlStr, run); err != nil {
		return errors.Wrap(err, fmt.Sprintf("%s %s", sqlStr, run))
	}
	sqlStr = fmt.Sprintf(`INSERT INTO %s (run, i, n) VALUES (?, ?, ?)`, tableHistogram)
	stmt, err := tx.PrepareContext(ctx, sqlStr)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer stmt.Close()
	for i, n := range hist {
		if n == 0 {
			continue
		}
		if _, err := stmt.ExecContext(ctx, run, i, n); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%s %s %d %f", sqlStr, run, i, n))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// ReadHistogram returns the histogram of run over numStates bins.
func (s *Store) ReadHistogram(ctx context.Context, run string, numStates int) ([]float64, error) {
	hist := make([]float64, numStates)
	sqlStr := fmt.Sprintf(`SELECT i, n FROM %s WHERE run=? ORDER BY i`, tableHistogram)
	rows, err := s.db.QueryContext(ctx, sqlStr, run)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	for rows.Next() {
		var i int
		var n float64
		if err := rows.Scan(&i, &n); err != nil {
			return nil, errors.Wrap(err, "")
		}
		if i < 0 || i >= numStates {
			return nil, errors.Errorf("run %s bin %d not in [0, %d)", run, i, numStates)
		}
		hist[i] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return hist, nil
}

// WriteResult records the comparison result of a run.
func (s *Store) WriteResult(ctx context.Context, r Result) error {
	sqlStr := fmt.Sprintf(`INSERT OR REPLACE INTO %s (run, samples, z, tolerance, acceptance, seed, pass, created) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, tableResult)
	args := []any{r.Run, r.Samples, r.Z, r.Tolerance, r.Acceptance, int64(r.Seed), r.Pass, time.Now().Unix()}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return errors.Wrap(err, fmt.Sprintf("%s %#v", sqlStr, args))
	}
	return nil
}

// Results returns all recorded results ordered by run.
func (s *Store) Results(ctx context.Context) ([]Result, error) {
	sqlStr := fmt.Sprintf(`SELECT run, samples, z, tolerance, acceptance, seed, pass FROM %s ORDER BY run`, tableResult)
	rows, err := s.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	results := make([]Result, 0)
	for rows.Next() {
		var r Result
		var seed int64
		if err := rows.Scan(&r.Run, &r.Samples, &r.Z, &r.Tolerance, &r.Acceptance, &seed, &r.Pass); err != nil {
			return nil, errors.Wrap(err, "")
		}
		r.Seed = uint64(seed)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return results, nil
}

// Runs returns the names of the runs with a stored histogram.
func (s *Store) Runs(ctx context.Context) ([]string, error) {
	sqlStr := fmt.Sprintf(`SELECT DISTINCT run FROM %s ORDER BY run`, tableHistogram)
	rows, err := s.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	runs := make([]string, 0)
	for rows.Next() {
		var run string
		if err := rows.Scan(&run); err != nil {
			return nil, errors.Wrap(err, "")
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return runs, nil
}

// Delete removes the histogram and result of run.
func (s *Store) Delete(ctx context.Context, run string) error {
	for _, table := range []string{tableHistogram, tableResult} {
		sqlStr := fmt.Sprintf(`DELETE FROM %s WHERE run=?`, table)
		if _, err := s.db.ExecContext(ctx, sqlStr, run); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%s %s", sqlStr, run))
		}
	}
	return nil
}

func newDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	if err := prepareDB(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "")
	}

	return db, nil
}

func prepareDB(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStrs := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (run TEXT, i INTEGER, n REAL, PRIMARY KEY (run, i)) STRICT`, tableHistogram),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (run TEXT PRIMARY KEY, samples INTEGER, z REAL, tolerance REAL, acceptance REAL, seed INTEGER, pass INTEGER, created INTEGER) STRICT`, tableResult),
	}
	for _, sqlStr := range sqlStrs {
		if _, err := db.ExecContext(ctx, sqlStr); err != nil {
			return errors.Wrap(err, sqlStr)
		}
	}
	return nil
}
