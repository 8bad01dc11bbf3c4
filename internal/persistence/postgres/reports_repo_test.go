package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokensentry/tokensentry/internal/domain"
	"github.com/tokensentry/tokensentry/internal/persistence"
)

func newMockRepo(t *testing.T) (persistence.ReportsRepo, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "sqlmock")
	return NewReportsRepo(db, time.Second), mock
}

func sampleReport() *domain.RiskReport {
	return &domain.RiskReport{
		ID:      "11111111-2222-3333-4444-555555555555",
		Mint:    "So11111111111111111111111111111111111111112",
		Overall: 7.5,
		Categories: domain.CategoryScores{
			Tokenomics: 8, Liquidity: 9, Security: 6, Social: 5,
		},
		Flags:       domain.ReportFlags{Critical: []string{"high holder concentration"}},
		Degraded:    []string{"liquidity"},
		GeneratedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestReportsRepo_Insert(t *testing.T) {
	repo, mock := newMockRepo(t)
	rec := persistence.NewReportRecord(sampleReport())

	mock.ExpectQuery("INSERT INTO reports").
		WithArgs(rec.ID, rec.Mint, rec.Overall, rec.Degraded, sqlmock.AnyArg(), rec.GeneratedAt).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	require.NoError(t, repo.Insert(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportsRepo_InsertDuplicateID(t *testing.T) {
	repo, mock := newMockRepo(t)
	rec := persistence.NewReportRecord(sampleReport())

	mock.ExpectQuery("INSERT INTO reports").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Insert(context.Background(), rec)
	assert.ErrorIs(t, err, persistence.ErrDuplicateReport)
}

func TestReportsRepo_GetByID_Missing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM reports").
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	rec, err := repo.GetByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func reportColumns() []string {
	return []string{"id", "mint", "overall", "degraded", "payload", "generated_at", "created_at"}
}

func TestReportsRepo_RecentRestoresPayload(t *testing.T) {
	repo, mock := newMockRepo(t)
	rep := sampleReport()
	payload, err := json.Marshal(rep)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM reports").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows(reportColumns()).
			AddRow(rep.ID, rep.Mint, rep.Overall, true, payload, rep.GeneratedAt, time.Now()))

	recs, err := repo.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].Report)
	assert.Equal(t, rep.Mint, recs[0].Report.Mint)
	assert.Equal(t, rep.Flags.Critical, recs[0].Report.Flags.Critical)
	assert.True(t, recs[0].Degraded)
}

func TestReportsRepo_ListByMint(t *testing.T) {
	repo, mock := newMockRepo(t)
	rep := sampleReport()
	payload, err := json.Marshal(rep)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM reports").
		WithArgs(rep.Mint, 5).
		WillReturnRows(sqlmock.NewRows(reportColumns()).
			AddRow(rep.ID, rep.Mint, rep.Overall, true, payload, rep.GeneratedAt, time.Now()))

	recs, err := repo.ListByMint(context.Background(), rep.Mint, 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, rep.ID, recs[0].ID)
}

func TestReportsRepo_CountByLabel(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT CASE").
		WillReturnRows(sqlmock.NewRows([]string{"label", "count"}).
			AddRow("high", int64(2)).
			AddRow("low", int64(7)))

	counts, err := repo.CountByLabel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"high": 2, "low": 7}, counts)
}

func TestReportsRepo_PurgeOlderThan(t *testing.T) {
	repo, mock := newMockRepo(t)
	cutoff := time.Now().Add(-30 * 24 * time.Hour)

	mock.ExpectExec("DELETE FROM reports").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	deleted, err := repo.PurgeOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
}

func TestNewReportRecord_DerivesColumns(t *testing.T) {
	rep := sampleReport()
	rec := persistence.NewReportRecord(rep)

	assert.Equal(t, rep.ID, rec.ID)
	assert.Equal(t, rep.Mint, rec.Mint)
	assert.Equal(t, rep.Overall, rec.Overall)
	assert.True(t, rec.Degraded)
	assert.Equal(t, rep.GeneratedAt, rec.GeneratedAt)
	assert.Same(t, rep, rec.Report)
}
