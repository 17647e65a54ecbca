package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/chapter-points-api/internal/models"
	appErrors "github.com/noah-isme/chapter-points-api/pkg/errors"
)

func TestLedgerRepositoryAppend(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	mock.ExpectExec("INSERT INTO points_ledger").
		WithArgs(sqlmock.AnyArg(), "U1", "one_to_one", int64(5), "ONE_TO_ONE", "M1", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.LedgerEntry{UserID: "U1", PointKey: "one_to_one", ChangeAmount: 5, SourceType: models.SourceOneToOne, SourceID: "M1"}
	require.NoError(t, repo.Append(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestLedgerRepositoryAppendDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	mock.ExpectExec("INSERT INTO points_ledger").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "points_ledger_natural_key"})

	entry := &models.LedgerEntry{UserID: "U1", PointKey: "one_to_one", ChangeAmount: 5, SourceType: models.SourceOneToOne, SourceID: "M1"}
	err := repo.Append(context.Background(), entry)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrDuplicateEvent)
}

func TestLedgerRepositoryAppendStorageError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO points_ledger").WillReturnError(boom)

	err := repo.Append(context.Background(), &models.LedgerEntry{UserID: "U1", PointKey: "referrals", SourceType: models.SourceReferral, SourceID: "R1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, appErrors.ErrDuplicateEvent))
}

func TestLedgerRepositoryListByUser(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM points_ledger WHERE user_id").
		WithArgs("U1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	rows := sqlmock.NewRows([]string{"id", "user_id", "point_key", "change_amount", "source_type", "source_id", "remarks", "created_at"}).
		AddRow("e-3", "U1", "referrals", 3, "REFERRAL", "R1", "passed", time.Now())
	mock.ExpectQuery("FROM points_ledger WHERE user_id = \\$1 ORDER BY created_at DESC").
		WithArgs("U1", 1, 1).
		WillReturnRows(rows)

	entries, total, err := repo.ListByUser(context.Background(), "U1", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, entries, 1)
	assert.Equal(t, models.SourceReferral, entries[0].SourceType)
	require.NotNil(t, entries[0].Remarks)
}

func TestLedgerRepositorySubtotalsWithFilter(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	last := since.Add(48 * time.Hour)
	rows := sqlmock.NewRows([]string{"user_id", "point_key", "total", "last_entry_at"}).
		AddRow("U1", "one_to_one", 5, since).
		AddRow("U1", "referrals", 3, last)
	mock.ExpectQuery("SUM\\(change_amount\\), 0\\) AS total, MAX\\(created_at\\) AS last_entry_at.*WHERE user_id = ANY\\(\\$1\\) AND created_at >= \\$2 GROUP BY user_id, point_key").
		WithArgs(sqlmock.AnyArg(), since).
		WillReturnRows(rows)

	totals, err := repo.Subtotals(context.Background(), models.LedgerFilter{UserIDs: []string{"U1"}, Since: &since})
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, int64(3), totals[1].Total)
	assert.True(t, last.Equal(totals[1].LastEntryAt))
}

func TestLedgerWhereEmpty(t *testing.T) {
	where, args := ledgerWhere(models.LedgerFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)
}
