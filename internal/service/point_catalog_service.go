package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/chapter-points-api/internal/dto"
	"github.com/noah-isme/chapter-points-api/internal/models"
	"github.com/noah-isme/chapter-points-api/pkg/database"
	appErrors "github.com/noah-isme/chapter-points-api/pkg/errors"
)

var pointKeyPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// NewValidator returns a validator with the point-key rule registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("pointkey", func(fl validator.FieldLevel) bool {
		return pointKeyPattern.MatchString(fl.Field().String())
	})
	return v
}

type pointDefinitionRepository interface {
	FindActive(ctx context.Context, key string) (*models.PointDefinition, error)
	FindByKey(ctx context.Context, key string) (*models.PointDefinition, error)
	List(ctx context.Context, includeInactive bool) ([]models.PointDefinition, error)
	Create(ctx context.Context, def *models.PointDefinition) error
	Update(ctx context.Context, def *models.PointDefinition) error
	SoftDelete(ctx context.Context, key string) error
}

// PointCatalogService serves scoring rules to the award path and the admin API.
type PointCatalogService struct {
	repo      pointDefinitionRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPointCatalogService constructs the catalog service.
func NewPointCatalogService(repo pointDefinitionRepository, validate *validator.Validate, logger *zap.Logger) *PointCatalogService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PointCatalogService{repo: repo, validator: validate, logger: logger}
}

// LookupActive returns the active, non-deleted definition for key. An absent or
// inactive definition yields ErrConfigNotFound; any other failure is a storage failure.
func (s *PointCatalogService) LookupActive(ctx context.Context, key string) (*models.PointDefinition, error) {
	def, err := s.repo.FindActive(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConfigNotFound, "no active point definition for "+key)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to load point definition")
	}
	if !def.Awardable() {
		return nil, appErrors.Clone(appErrors.ErrConfigNotFound, "no active point definition for "+key)
	}
	return def, nil
}

// List returns catalog entries for administration.
func (s *PointCatalogService) List(ctx context.Context, includeInactive bool) ([]dto.PointDefinitionItem, error) {
	defs, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list point definitions")
	}
	items := make([]dto.PointDefinitionItem, 0, len(defs))
	for i := range defs {
		items = append(items, toDefinitionItem(&defs[i]))
	}
	return items, nil
}

// Create registers a new definition. Keys are unique and never reused, even after deletion.
func (s *PointCatalogService) Create(ctx context.Context, req dto.CreatePointDefinitionRequest) (*dto.PointDefinitionItem, error) {
	req.Key = strings.TrimSpace(req.Key)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid point definition")
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	def := &models.PointDefinition{
		Key:         req.Key,
		DisplayName: req.DisplayName,
		Description: optionalString(req.Description),
		Value:       req.Value,
		Order:       req.Order,
		Active:      active,
	}
	if err := s.repo.Create(ctx, def); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "point definition key already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create point definition")
	}
	s.logger.Info("point definition created", zap.String("key", def.Key), zap.Int64("value", def.Value))
	item := toDefinitionItem(def)
	return &item, nil
}

// Update edits value, active flag and display fields. Existing ledger entries keep
// the value they were awarded with.
func (s *PointCatalogService) Update(ctx context.Context, key string, req dto.UpdatePointDefinitionRequest) (*dto.PointDefinitionItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid point definition")
	}
	def, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		return nil, notFoundOr(err, "point definition not found", "failed to load point definition")
	}
	previous := def.Value
	if req.DisplayName != nil {
		def.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.Description != nil {
		def.Description = optionalString(*req.Description)
	}
	if req.Value != nil {
		def.Value = *req.Value
	}
	if req.Order != nil {
		def.Order = *req.Order
	}
	if req.Active != nil {
		def.Active = *req.Active
	}
	if err := s.repo.Update(ctx, def); err != nil {
		return nil, notFoundOr(err, "point definition not found", "failed to update point definition")
	}
	s.logger.Info("point definition updated",
		zap.String("key", key), zap.Int64("previous_value", previous), zap.Int64("value", def.Value), zap.Bool("active", def.Active))
	item := toDefinitionItem(def)
	return &item, nil
}

// Delete soft-deletes a definition.
func (s *PointCatalogService) Delete(ctx context.Context, key string) error {
	if err := s.repo.SoftDelete(ctx, key); err != nil {
		return notFoundOr(err, "point definition not found", "failed to delete point definition")
	}
	s.logger.Info("point definition deleted", zap.String("key", key))
	return nil
}

func toDefinitionItem(def *models.PointDefinition) dto.PointDefinitionItem {
	item := dto.PointDefinitionItem{
		Key:         def.Key,
		DisplayName: def.DisplayName,
		Value:       def.Value,
		Order:       def.Order,
		Active:      def.Active,
		UpdatedAt:   def.UpdatedAt,
	}
	if def.Description != nil {
		item.Description = *def.Description
	}
	return item
}

func notFoundOr(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
