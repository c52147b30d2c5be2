// Package ledger persists cost records in SQLite so spend accounting
// survives restarts. It uses modernc.org/sqlite, a pure-Go driver, so the
// binary stays CGO-free.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codemarcinu/ageny/llmrouter"
)

// timeLayout is RFC 3339 with fixed-width nanoseconds. The padding keeps
// lexical order of the TEXT column equal to chronological order, which the
// recency queries rely on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is the persistent cost ledger.
type Store struct {
	db *sql.DB
}

var _ llmrouter.LedgerSink = (*Store)(nil)

// Open opens (or creates) the ledger database at path and applies pending
// migrations. WAL mode keeps reads concurrent with the append path; the
// busy timeout covers write bursts. Use ":memory:" in tests. The parent
// directory must already exist.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return nil, fmt.Errorf("ledger: parent directory %q does not exist", dir)
		}
	}

	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	if path == ":memory:" {
		// :memory: databases are per-connection; a pool of one keeps the
		// schema and every query on the same database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: ping %q: %w", path, err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append implements llmrouter.LedgerSink.
func (s *Store) Append(ctx context.Context, rec llmrouter.CostRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cost_records (id, provider, service_type, tokens_used, cost, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Provider, string(rec.Service), rec.TokensUsed, rec.Cost,
		rec.RecordedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("ledger: append record: %w", err)
	}
	return nil
}

// MonthSpend sums the cost of every record in the given month ("2006-01").
// It seeds the in-memory tracker at startup.
func (s *Store) MonthSpend(ctx context.Context, month string) (float64, error) {
	var spend sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT SUM(cost) FROM cost_records WHERE substr(recorded_at, 1, 7) = ?
	`, month).Scan(&spend)
	if err != nil {
		return 0, fmt.Errorf("ledger: month spend: %w", err)
	}
	return spend.Float64, nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]llmrouter.CostRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider, service_type, tokens_used, cost, recorded_at
		FROM cost_records
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: query recent: %w", err)
	}
	defer rows.Close()

	var records []llmrouter.CostRecord
	for rows.Next() {
		var rec llmrouter.CostRecord
		var service, recordedAt string
		if err := rows.Scan(&rec.ID, &rec.Provider, &service, &rec.TokensUsed, &rec.Cost, &recordedAt); err != nil {
			return nil, fmt.Errorf("ledger: scan record: %w", err)
		}
		rec.Service = llmrouter.ServiceType(service)
		ts, err := time.Parse(timeLayout, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("ledger: parse timestamp %q: %w", recordedAt, err)
		}
		rec.RecordedAt = ts
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate records: %w", err)
	}
	return records, nil
}

// TotalByProvider aggregates cost and tokens per provider over the whole
// ledger.
func (s *Store) TotalByProvider(ctx context.Context) (map[string]llmrouter.ProviderTotals, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, SUM(cost), SUM(tokens_used)
		FROM cost_records
		GROUP BY provider
	`)
	if err != nil {
		return nil, fmt.Errorf("ledger: totals by provider: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]llmrouter.ProviderTotals)
	for rows.Next() {
		var provider string
		var t llmrouter.ProviderTotals
		if err := rows.Scan(&provider, &t.Cost, &t.Tokens); err != nil {
			return nil, fmt.Errorf("ledger: scan totals: %w", err)
		}
		totals[provider] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate totals: %w", err)
	}
	return totals, nil
}

// Totals summarizes the whole ledger.
type Totals struct {
	Records int64   `json:"records"`
	Cost    float64 `json:"cost"`
	Tokens  int64   `json:"tokens"`
}

// Totals returns the ledger-wide record count, cost, and token sum.
func (s *Store) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(cost), 0), COALESCE(SUM(tokens_used), 0)
		FROM cost_records
	`).Scan(&t.Records, &t.Cost, &t.Tokens)
	if err != nil {
		return Totals{}, fmt.Errorf("ledger: totals: %w", err)
	}
	return t, nil
}
