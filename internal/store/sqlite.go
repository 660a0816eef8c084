package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sipbacktest/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol             TEXT NOT NULL,
	market             TEXT NOT NULL,
	start_date         TEXT NOT NULL,
	end_date           TEXT NOT NULL,
	monthly_investment REAL NOT NULL,
	created_at         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_symbol ON runs(symbol, id);

CREATE TABLE IF NOT EXISTS run_results (
	run_id             INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	label              TEXT NOT NULL,
	rank               INTEGER NOT NULL,
	policy             TEXT NOT NULL,
	total_invested     REAL NOT NULL,
	total_shares       REAL NOT NULL,
	final_value        REAL NOT NULL,
	total_profit       REAL NOT NULL,
	profit_rate        REAL NOT NULL,
	annualized_return  REAL NOT NULL,
	investment_count   INTEGER NOT NULL,
	skipped_months     INTEGER NOT NULL,
	PRIMARY KEY (run_id, label)
);

CREATE TABLE IF NOT EXISTS purchase_events (
	run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	label  TEXT NOT NULL,
	seq    INTEGER NOT NULL,
	date   TEXT NOT NULL,
	price  REAL NOT NULL,
	shares REAL NOT NULL,
	PRIMARY KEY (run_id, label, seq)
);
`

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// schema if needed and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases coherent and serialises
	// writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts run, its results and their purchase events in one
// transaction and sets run.ID.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (symbol, market, start_date, end_date, monthly_investment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.Symbol, run.Market, formatDate(run.Start), formatDate(run.End),
		run.MonthlyInvestment, run.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, rr := range run.Results {
		r := rr.Result
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_results (run_id, label, rank, policy, total_invested, total_shares,
			   final_value, total_profit, profit_rate, annualized_return, investment_count, skipped_months)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, rr.Label, rr.Rank, r.Policy, r.TotalInvested, r.TotalShares,
			r.FinalValue, r.TotalProfit, r.ProfitRate, r.AnnualizedReturn, r.InvestmentCount, r.SkippedMonths,
		); err != nil {
			return fmt.Errorf("inserting result %q: %w", rr.Label, err)
		}
		for seq, e := range r.Events {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO purchase_events (run_id, label, seq, date, price, shares) VALUES (?, ?, ?, ?, ?, ?)`,
				id, rr.Label, seq, formatDate(e.Date), e.Price, e.Shares,
			); err != nil {
				return fmt.Errorf("inserting event %d of %q: %w", seq, rr.Label, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	run.ID = id
	return nil
}

// GetRun retrieves a run with its results ordered by rank (excluded results
// last) and each result's purchase events in date order.
func (s *SQLiteStore) GetRun(ctx context.Context, id int64) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, symbol, market, start_date, end_date, monthly_investment, created_at
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT label, rank, policy, total_invested, total_shares, final_value, total_profit,
		   profit_rate, annualized_return, investment_count, skipped_months
		 FROM run_results WHERE run_id = ?
		 ORDER BY rank = 0, rank, label`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var rr RunResult
		r := &rr.Result
		if err := rows.Scan(&rr.Label, &rr.Rank, &r.Policy, &r.TotalInvested, &r.TotalShares,
			&r.FinalValue, &r.TotalProfit, &r.ProfitRate, &r.AnnualizedReturn,
			&r.InvestmentCount, &r.SkippedMonths); err != nil {
			return nil, err
		}
		r.MonthlyInvestment = run.MonthlyInvestment
		run.Results = append(run.Results, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range run.Results {
		events, err := s.listEvents(ctx, id, run.Results[i].Label)
		if err != nil {
			return nil, err
		}
		run.Results[i].Result.Events = events
	}
	return run, nil
}

// ListRuns returns the most recent runs for symbol (all symbols when empty),
// newest first, up to limit.
func (s *SQLiteStore) ListRuns(ctx context.Context, symbol string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, symbol, market, start_date, end_date, monthly_investment, created_at
		 FROM runs WHERE (? = '' OR symbol = ?)
		 ORDER BY id DESC LIMIT ?`, symbol, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) listEvents(ctx context.Context, runID int64, label string) ([]domain.PurchaseEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, price, shares FROM purchase_events
		 WHERE run_id = ? AND label = ? ORDER BY seq`, runID, label)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.PurchaseEvent
	for rows.Next() {
		var (
			e    domain.PurchaseEvent
			date string
		)
		if err := rows.Scan(&date, &e.Price, &e.Shares); err != nil {
			return nil, err
		}
		if e.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ---------------------------------------------------------------------------
// Row helpers
// ---------------------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run                     Run
		start, end, createdAtSt string
	)
	if err := row.Scan(&run.ID, &run.Symbol, &run.Market, &start, &end,
		&run.MonthlyInvestment, &createdAtSt); err != nil {
		return nil, err
	}
	var err error
	if run.Start, err = parseDate(start); err != nil {
		return nil, err
	}
	if run.End, err = parseDate(end); err != nil {
		return nil, err
	}
	if run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtSt); err != nil {
		return nil, err
	}
	return &run, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}
