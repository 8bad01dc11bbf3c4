// Package postgres implements the report audit store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/tokensentry/tokensentry/internal/domain"
	"github.com/tokensentry/tokensentry/internal/persistence"
)

// Schema is the audit store layout. EnsureSchema applies it idempotently
// at startup; there is no migration machinery for a single table.
const Schema = `
CREATE TABLE IF NOT EXISTS reports (
	id           TEXT PRIMARY KEY,
	mint         TEXT NOT NULL,
	overall      DOUBLE PRECISION NOT NULL,
	degraded     BOOLEAN NOT NULL DEFAULT FALSE,
	payload      JSONB NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS reports_mint_generated_idx ON reports (mint, generated_at DESC);
CREATE INDEX IF NOT EXISTS reports_generated_idx ON reports (generated_at DESC);
`

// EnsureSchema creates the reports table and indexes if absent.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply reports schema: %w", err)
	}
	return nil
}

type reportsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewReportsRepo creates the PostgreSQL reports repository.
func NewReportsRepo(db *sqlx.DB, timeout time.Duration) persistence.ReportsRepo {
	return &reportsRepo{db: db, timeout: timeout}
}

func (r *reportsRepo) Insert(ctx context.Context, rec persistence.ReportRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payload, err := json.Marshal(rec.Report)
	if err != nil {
		return fmt.Errorf("marshal report payload: %w", err)
	}

	query := `
		INSERT INTO reports (id, mint, overall, degraded, payload, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err = r.db.QueryRowxContext(ctx, query,
		rec.ID, rec.Mint, rec.Overall, rec.Degraded, payload, rec.GeneratedAt).
		Scan(&rec.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return persistence.ErrDuplicateReport
		}
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (r *reportsRepo) GetByID(ctx context.Context, id string) (*persistence.ReportRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, mint, overall, degraded, payload, generated_at, created_at
		FROM reports
		WHERE id = $1`

	row := r.db.QueryRowxContext(ctx, query, id)
	rec, err := scanRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get report by id: %w", err)
	}
	return rec, nil
}

func (r *reportsRepo) Recent(ctx context.Context, limit int) ([]persistence.ReportRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, mint, overall, degraded, payload, generated_at, created_at
		FROM reports
		ORDER BY generated_at DESC
		LIMIT $1`

	rows, err := r.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent reports: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (r *reportsRepo) ListByMint(ctx context.Context, mint string, limit int) ([]persistence.ReportRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, mint, overall, degraded, payload, generated_at, created_at
		FROM reports
		WHERE mint = $1
		ORDER BY generated_at DESC
		LIMIT $2`

	rows, err := r.db.QueryxContext(ctx, query, mint, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports by mint: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (r *reportsRepo) CountByLabel(ctx context.Context) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT CASE
			WHEN overall >= 7 THEN 'high'
			WHEN overall >= 4 THEN 'medium'
			ELSE 'low'
		END AS label, COUNT(*)
		FROM reports
		GROUP BY label`

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count reports by label: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var label string
		var count int64
		if err := rows.Scan(&label, &count); err != nil {
			return nil, fmt.Errorf("scan label count: %w", err)
		}
		counts[label] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate label counts: %w", err)
	}
	return counts, nil
}

func (r *reportsRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE generated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge reports: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge rows affected: %w", err)
	}
	return deleted, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*persistence.ReportRecord, error) {
	var rec persistence.ReportRecord
	var payload []byte

	err := row.Scan(&rec.ID, &rec.Mint, &rec.Overall, &rec.Degraded,
		&payload, &rec.GeneratedAt, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	if len(payload) > 0 {
		var report domain.RiskReport
		if err := json.Unmarshal(payload, &report); err != nil {
			return nil, fmt.Errorf("unmarshal report payload: %w", err)
		}
		rec.Report = &report
	}
	return &rec, nil
}

func scanRecords(rows *sqlx.Rows) ([]persistence.ReportRecord, error) {
	var recs []persistence.ReportRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate report rows: %w", err)
	}
	return recs, nil
}
