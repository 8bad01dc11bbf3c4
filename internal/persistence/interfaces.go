// Package persistence defines the optional report audit store. The
// analysis path never depends on it: reports are built and returned
// regardless, and recording them is a caller decision.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/tokensentry/tokensentry/internal/domain"
)

// ErrDuplicateReport is returned when a report ID is inserted twice.
// Callers recording best-effort can ignore it.
var ErrDuplicateReport = errors.New("report already recorded")

// ReportRecord is one persisted report: a few indexed columns for listing
// and the full report as an opaque payload.
type ReportRecord struct {
	ID          string             `json:"id" db:"id"`
	Mint        string             `json:"mint" db:"mint"`
	Overall     float64            `json:"overall" db:"overall"`
	Degraded    bool               `json:"degraded" db:"degraded"`
	Report      *domain.RiskReport `json:"report" db:"payload"`
	GeneratedAt time.Time          `json:"generated_at" db:"generated_at"`
	CreatedAt   time.Time          `json:"created_at" db:"created_at"`
}

// NewReportRecord derives the indexed columns from a report.
func NewReportRecord(r *domain.RiskReport) ReportRecord {
	return ReportRecord{
		ID:          r.ID,
		Mint:        r.Mint,
		Overall:     r.Overall,
		Degraded:    len(r.Degraded) > 0,
		Report:      r,
		GeneratedAt: r.GeneratedAt,
	}
}

// ReportsRepo stores and queries report records.
type ReportsRepo interface {
	// Insert records one report. Inserting an ID twice returns
	// ErrDuplicateReport and leaves the stored row untouched.
	Insert(ctx context.Context, rec ReportRecord) error

	// GetByID returns the record, or nil when the ID is unknown.
	GetByID(ctx context.Context, id string) (*ReportRecord, error)

	// Recent returns the newest records across all mints.
	Recent(ctx context.Context, limit int) ([]ReportRecord, error)

	// ListByMint returns the newest records for one mint.
	ListByMint(ctx context.Context, mint string, limit int) ([]ReportRecord, error)

	// CountByLabel returns report counts grouped by risk tier
	// (high, medium, low).
	CountByLabel(ctx context.Context) (map[string]int64, error)

	// PurgeOlderThan deletes records generated before the cutoff and
	// reports how many went.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Repository aggregates the persistence interfaces.
type Repository struct {
	Reports ReportsRepo
}

// HealthCheck is a point-in-time persistence health reading.
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth monitors the persistence layer.
type RepositoryHealth interface {
	Health(ctx context.Context) HealthCheck
	Ping(ctx context.Context) error
	Stats(ctx context.Context) map[string]interface{}
}
