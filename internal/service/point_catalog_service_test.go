package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/chapter-points-api/internal/dto"
	"github.com/noah-isme/chapter-points-api/internal/models"
	appErrors "github.com/noah-isme/chapter-points-api/pkg/errors"
)

type pointDefinitionRepoStub struct {
	defs      map[string]*models.PointDefinition
	err       error
	createErr error
	updated   *models.PointDefinition
	deleted   string
}

func newPointDefinitionRepoStub(defs ...models.PointDefinition) *pointDefinitionRepoStub {
	stub := &pointDefinitionRepoStub{defs: map[string]*models.PointDefinition{}}
	for i := range defs {
		d := defs[i]
		stub.defs[d.Key] = &d
	}
	return stub
}

func (s *pointDefinitionRepoStub) FindActive(ctx context.Context, key string) (*models.PointDefinition, error) {
	if s.err != nil {
		return nil, s.err
	}
	def, ok := s.defs[key]
	if !ok || !def.Active || def.Deleted {
		return nil, sql.ErrNoRows
	}
	return def, nil
}

func (s *pointDefinitionRepoStub) FindByKey(ctx context.Context, key string) (*models.PointDefinition, error) {
	if s.err != nil {
		return nil, s.err
	}
	def, ok := s.defs[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *def
	return &copied, nil
}

func (s *pointDefinitionRepoStub) List(ctx context.Context, includeInactive bool) ([]models.PointDefinition, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []models.PointDefinition
	for _, def := range s.defs {
		if includeInactive || def.Active {
			out = append(out, *def)
		}
	}
	return out, nil
}

func (s *pointDefinitionRepoStub) Create(ctx context.Context, def *models.PointDefinition) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.defs[def.Key] = def
	return nil
}

func (s *pointDefinitionRepoStub) Update(ctx context.Context, def *models.PointDefinition) error {
	s.updated = def
	s.defs[def.Key] = def
	return nil
}

func (s *pointDefinitionRepoStub) SoftDelete(ctx context.Context, key string) error {
	if _, ok := s.defs[key]; !ok {
		return sql.ErrNoRows
	}
	s.deleted = key
	return nil
}

func TestPointCatalogLookupActive(t *testing.T) {
	repo := newPointDefinitionRepoStub(
		models.PointDefinition{Key: "one_to_one", Value: 5, Active: true},
		models.PointDefinition{Key: "power_dates", Value: 5, Active: false},
	)
	svc := NewPointCatalogService(repo, nil, zap.NewNop())

	def, err := svc.LookupActive(context.Background(), "one_to_one")
	require.NoError(t, err)
	assert.Equal(t, int64(5), def.Value)

	_, err = svc.LookupActive(context.Background(), "power_dates")
	assert.True(t, errors.Is(err, appErrors.ErrConfigNotFound))

	_, err = svc.LookupActive(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrConfigNotFound))

	repo.err = errors.New("db down")
	_, err = svc.LookupActive(context.Background(), "one_to_one")
	assert.True(t, errors.Is(err, appErrors.ErrStorageFailure))
}

func TestPointCatalogCreate(t *testing.T) {
	repo := newPointDefinitionRepoStub()
	svc := NewPointCatalogService(repo, NewValidator(), zap.NewNop())

	item, err := svc.Create(context.Background(), dto.CreatePointDefinitionRequest{Key: "speaker_slots", DisplayName: "Speaker Slots", Value: 7})
	require.NoError(t, err)
	assert.True(t, item.Active)
	assert.Equal(t, int64(7), repo.defs["speaker_slots"].Value)

	_, err = svc.Create(context.Background(), dto.CreatePointDefinitionRequest{Key: "Bad Key", DisplayName: "Bad", Value: 1})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	repo.createErr = &pq.Error{Code: "23505"}
	_, err = svc.Create(context.Background(), dto.CreatePointDefinitionRequest{Key: "speaker_slots", DisplayName: "Again", Value: 1})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestPointCatalogUpdateAndDelete(t *testing.T) {
	repo := newPointDefinitionRepoStub(models.PointDefinition{Key: "referrals", DisplayName: "Referrals", Value: 3, Active: true})
	svc := NewPointCatalogService(repo, NewValidator(), zap.NewNop())

	value := int64(4)
	inactive := false
	item, err := svc.Update(context.Background(), "referrals", dto.UpdatePointDefinitionRequest{Value: &value, Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, int64(4), item.Value)
	assert.False(t, item.Active)
	assert.Equal(t, "Referrals", repo.updated.DisplayName)

	_, err = svc.Update(context.Background(), "missing", dto.UpdatePointDefinitionRequest{Value: &value})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	require.NoError(t, svc.Delete(context.Background(), "referrals"))
	assert.Equal(t, "referrals", repo.deleted)
	assert.True(t, errors.Is(svc.Delete(context.Background(), "missing"), appErrors.ErrNotFound))
}
