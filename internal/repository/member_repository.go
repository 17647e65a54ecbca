package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/chapter-points-api/internal/models"
)

// MemberRepository reads display profiles from the host members table.
type MemberRepository struct {
	db *sqlx.DB
}

// NewMemberRepository constructs the repository.
func NewMemberRepository(db *sqlx.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// FindProfiles returns the profiles known for ids. Unknown ids are omitted.
func (r *MemberRepository) FindProfiles(ctx context.Context, ids []string) ([]models.MemberProfile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT id, full_name, photo_url FROM members WHERE id = ANY($1) AND deleted_at IS NULL`
	var profiles []models.MemberProfile
	if err := r.db.SelectContext(ctx, &profiles, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find member profiles: %w", err)
	}
	return profiles, nil
}
