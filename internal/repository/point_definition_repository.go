package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/chapter-points-api/internal/models"
)

const pointDefinitionColumns = `key, display_name, description, value, sort_order, active, deleted, created_at, updated_at`

// PointDefinitionRepository persists the scoring catalog.
type PointDefinitionRepository struct {
	db *sqlx.DB
}

// NewPointDefinitionRepository constructs the repository.
func NewPointDefinitionRepository(db *sqlx.DB) *PointDefinitionRepository {
	return &PointDefinitionRepository{db: db}
}

// FindActive returns the definition for key only when it is active and not soft-deleted.
// It returns sql.ErrNoRows otherwise.
func (r *PointDefinitionRepository) FindActive(ctx context.Context, key string) (*models.PointDefinition, error) {
	query := `SELECT ` + pointDefinitionColumns + ` FROM point_definitions WHERE key = $1 AND active = TRUE AND deleted = FALSE`
	var def models.PointDefinition
	if err := r.db.GetContext(ctx, &def, query, key); err != nil {
		return nil, err
	}
	return &def, nil
}

// FindByKey returns a non-deleted definition regardless of its active flag.
func (r *PointDefinitionRepository) FindByKey(ctx context.Context, key string) (*models.PointDefinition, error) {
	query := `SELECT ` + pointDefinitionColumns + ` FROM point_definitions WHERE key = $1 AND deleted = FALSE`
	var def models.PointDefinition
	if err := r.db.GetContext(ctx, &def, query, key); err != nil {
		return nil, err
	}
	return &def, nil
}

// List returns non-deleted definitions ordered for display.
func (r *PointDefinitionRepository) List(ctx context.Context, includeInactive bool) ([]models.PointDefinition, error) {
	query := `SELECT ` + pointDefinitionColumns + ` FROM point_definitions WHERE deleted = FALSE`
	if !includeInactive {
		query += ` AND active = TRUE`
	}
	query += ` ORDER BY sort_order ASC, key ASC`
	var defs []models.PointDefinition
	if err := r.db.SelectContext(ctx, &defs, query); err != nil {
		return nil, fmt.Errorf("list point definitions: %w", err)
	}
	return defs, nil
}

// Create inserts a new definition.
func (r *PointDefinitionRepository) Create(ctx context.Context, def *models.PointDefinition) error {
	now := time.Now().UTC()
	def.CreatedAt = now
	def.UpdatedAt = now
	def.Deleted = false
	const query = `INSERT INTO point_definitions (key, display_name, description, value, sort_order, active, deleted, created_at, updated_at)
VALUES (:key, :display_name, :description, :value, :sort_order, :active, :deleted, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, def); err != nil {
		return fmt.Errorf("create point definition: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a non-deleted definition.
func (r *PointDefinitionRepository) Update(ctx context.Context, def *models.PointDefinition) error {
	def.UpdatedAt = time.Now().UTC()
	const query = `UPDATE point_definitions
SET display_name = :display_name, description = :description, value = :value, sort_order = :sort_order,
    active = :active, updated_at = :updated_at
WHERE key = :key AND deleted = FALSE`
	res, err := r.db.NamedExecContext(ctx, query, def)
	if err != nil {
		return fmt.Errorf("update point definition: %w", err)
	}
	return requireAffected(res)
}

// SoftDelete flags a definition deleted and inactive. Rows are never removed.
func (r *PointDefinitionRepository) SoftDelete(ctx context.Context, key string) error {
	const query = `UPDATE point_definitions SET deleted = TRUE, active = FALSE, updated_at = $2 WHERE key = $1 AND deleted = FALSE`
	res, err := r.db.ExecContext(ctx, query, key, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("delete point definition: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
