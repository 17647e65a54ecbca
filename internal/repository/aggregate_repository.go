package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/chapter-points-api/internal/models"
)

// AggregateRepository stores per (user, point key) running totals.
type AggregateRepository struct {
	db *sqlx.DB
}

// NewAggregateRepository constructs the repository.
func NewAggregateRepository(db *sqlx.DB) *AggregateRepository {
	return &AggregateRepository{db: db}
}

// Increment adds amount to the pair's value, creating the row when absent, in one
// statement. Concurrent increments on the same pair serialise on the row lock.
func (r *AggregateRepository) Increment(ctx context.Context, userID, pointKey string, amount int64) (int64, error) {
	const query = `INSERT INTO points_aggregates (user_id, point_key, value, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (user_id, point_key)
DO UPDATE SET value = points_aggregates.value + EXCLUDED.value, updated_at = EXCLUDED.updated_at
RETURNING value`
	var value int64
	if err := r.db.QueryRowxContext(ctx, query, userID, pointKey, amount, time.Now().UTC()).Scan(&value); err != nil {
		return 0, fmt.Errorf("increment aggregate: %w", err)
	}
	return value, nil
}

// Set overwrites the pair's value, creating the row when absent.
func (r *AggregateRepository) Set(ctx context.Context, userID, pointKey string, value int64) error {
	const query = `INSERT INTO points_aggregates (user_id, point_key, value, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (user_id, point_key)
DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, userID, pointKey, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("set aggregate: %w", err)
	}
	return nil
}

// Get returns the aggregate for a pair or sql.ErrNoRows.
func (r *AggregateRepository) Get(ctx context.Context, userID, pointKey string) (*models.AggregateRecord, error) {
	const query = `SELECT user_id, point_key, value, created_at, updated_at FROM points_aggregates WHERE user_id = $1 AND point_key = $2`
	var rec models.AggregateRecord
	if err := r.db.GetContext(ctx, &rec, query, userID, pointKey); err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns aggregates matching the optional user and point key filters.
func (r *AggregateRepository) List(ctx context.Context, userIDs []string, pointKey string) ([]models.AggregateRecord, error) {
	var (
		clauses []string
		args    []interface{}
	)
	if len(userIDs) > 0 {
		args = append(args, pq.Array(userIDs))
		clauses = append(clauses, fmt.Sprintf("user_id = ANY($%d)", len(args)))
	}
	if pointKey != "" {
		args = append(args, pointKey)
		clauses = append(clauses, fmt.Sprintf("point_key = $%d", len(args)))
	}
	query := `SELECT user_id, point_key, value, created_at, updated_at FROM points_aggregates`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY user_id ASC, point_key ASC`
	var records []models.AggregateRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list aggregates: %w", err)
	}
	return records, nil
}
