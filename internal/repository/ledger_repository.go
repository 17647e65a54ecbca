package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/chapter-points-api/internal/models"
	"github.com/noah-isme/chapter-points-api/pkg/database"
	appErrors "github.com/noah-isme/chapter-points-api/pkg/errors"
)

// LedgerRepository is the append-only store of point events.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs the repository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Append inserts an entry. A second entry with the same natural key fails with
// appErrors.ErrDuplicateEvent and leaves the table unchanged.
func (r *LedgerRepository) Append(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO points_ledger (id, user_id, point_key, change_amount, source_type, source_id, remarks, created_at)
VALUES (:id, :user_id, :point_key, :change_amount, :source_type, :source_id, :remarks, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		if database.IsUniqueViolation(err) {
			return appErrors.Wrap(err, appErrors.ErrDuplicateEvent.Code, appErrors.ErrDuplicateEvent.Status, appErrors.ErrDuplicateEvent.Message)
		}
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

// ListByUser returns a page of a user's entries, newest first, and the total entry count.
func (r *LedgerRepository) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]models.LedgerEntry, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM points_ledger WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}
	const query = `SELECT id, user_id, point_key, change_amount, source_type, source_id, remarks, created_at
FROM points_ledger WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	var entries []models.LedgerEntry
	if err := r.db.SelectContext(ctx, &entries, query, userID, pageSize, (page-1)*pageSize); err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, total, nil
}

// Subtotals sums change amounts per (user, point key) pair within the filter.
func (r *LedgerRepository) Subtotals(ctx context.Context, filter models.LedgerFilter) ([]models.LedgerSubtotal, error) {
	where, args := ledgerWhere(filter)
	query := `SELECT user_id, point_key, COALESCE(SUM(change_amount), 0) AS total, MAX(created_at) AS last_entry_at FROM points_ledger` + where +
		` GROUP BY user_id, point_key ORDER BY user_id ASC, point_key ASC`
	var rows []models.LedgerSubtotal
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("ledger subtotals: %w", err)
	}
	return rows, nil
}

func ledgerWhere(filter models.LedgerFilter) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if len(filter.UserIDs) > 0 {
		add("user_id = ANY($%d)", pq.Array(filter.UserIDs))
	}
	if filter.PointKey != "" {
		add("point_key = $%d", filter.PointKey)
	}
	if filter.Since != nil {
		add("created_at >= $%d", *filter.Since)
	}
	if filter.Until != nil {
		add("created_at < $%d", *filter.Until)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
