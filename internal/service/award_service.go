package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/chapter-points-api/internal/models"
	appErrors "github.com/noah-isme/chapter-points-api/pkg/errors"
)

// PointCatalog resolves active scoring rules.
type PointCatalog interface {
	LookupActive(ctx context.Context, key string) (*models.PointDefinition, error)
}

// Ledger appends immutable point events. Append must fail with an error matching
// appErrors.ErrDuplicateEvent when the natural key already exists.
type Ledger interface {
	Append(ctx context.Context, entry *models.LedgerEntry) error
}

// AggregateStore maintains running totals with an atomic add-or-create.
type AggregateStore interface {
	Increment(ctx context.Context, userID, pointKey string, amount int64) (int64, error)
}

// unknownPointKeyLabel replaces caller-supplied keys with no catalog entry in
// metric labels, which keeps label cardinality bounded by the catalog.
const unknownPointKeyLabel = "unknown"

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// AwardService turns qualifying domain events into ledger entries and aggregate increments.
//
// The ledger append always runs before the aggregate increment: the ledger's unique
// natural key decides whether an event was already rewarded, so a retried award after a
// crash between the two steps is reported as already awarded instead of counted twice.
type AwardService struct {
	catalog    PointCatalog
	ledger     Ledger
	aggregates AggregateStore
	cache      cacheInvalidator
	metrics    *MetricsService
	logger     *zap.Logger
	now        func() time.Time
}

// NewAwardService wires the award pipeline. cache and metrics may be nil.
func NewAwardService(catalog PointCatalog, ledger Ledger, aggregates AggregateStore, cache cacheInvalidator, metrics *MetricsService, logger *zap.Logger) *AwardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AwardService{
		catalog:    catalog,
		ledger:     ledger,
		aggregates: aggregates,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Award records one event. Outcomes:
//   - AWARDED: a ledger entry was written and the aggregate incremented.
//   - ALREADY_AWARDED: the natural key exists; nothing changed.
//   - NO_AWARD: the point key has no active definition; nothing changed.
//
// The returned error is non-nil only for invalid requests and storage failures
// (matching appErrors.ErrStorageFailure); awards are safe to retry in both cases.
func (s *AwardService) Award(ctx context.Context, req models.AwardRequest) (models.AwardOutcome, error) {
	if err := validateAwardRequest(req); err != nil {
		return "", err
	}
	start := s.now()

	def, err := s.catalog.LookupActive(ctx, req.PointKey)
	if err != nil {
		if errors.Is(err, appErrors.ErrConfigNotFound) {
			s.logger.Debug("no active point definition", zap.String("point_key", req.PointKey), zap.String("source_type", string(req.SourceType)))
			return s.finish(unknownPointKeyLabel, models.AwardOutcomeNoAward, start), nil
		}
		return "", s.storageFailure("catalog", req, err)
	}

	entry := &models.LedgerEntry{
		UserID:       req.UserID,
		PointKey:     def.Key,
		ChangeAmount: def.Value,
		SourceType:   req.SourceType,
		SourceID:     req.SourceID,
		Remarks:      optionalString(req.Remarks),
		CreatedAt:    start.UTC(),
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		if errors.Is(err, appErrors.ErrDuplicateEvent) {
			return s.finish(def.Key, models.AwardOutcomeAlreadyAwarded, start), nil
		}
		return "", s.storageFailure("ledger", req, err)
	}

	total, err := s.aggregates.Increment(ctx, req.UserID, def.Key, def.Value)
	if err != nil {
		s.logger.Error("aggregate increment failed after ledger append; pair drifts until reconciled",
			zap.String("user_id", req.UserID),
			zap.String("point_key", def.Key),
			zap.String("ledger_entry_id", entry.ID),
			zap.Error(err))
		return "", s.storageFailure("aggregate", req, err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, leaderboardCachePattern); err != nil {
			s.logger.Warn("leaderboard cache invalidation failed", zap.Error(err))
		}
	}
	s.logger.Debug("points awarded",
		zap.String("user_id", req.UserID),
		zap.String("point_key", def.Key),
		zap.Int64("amount", def.Value),
		zap.Int64("total", total),
		zap.String("source_type", string(req.SourceType)),
		zap.String("source_id", req.SourceID))
	return s.finish(def.Key, models.AwardOutcomeAwarded, start), nil
}

func (s *AwardService) finish(pointKey string, outcome models.AwardOutcome, start time.Time) models.AwardOutcome {
	s.metrics.RecordAward(pointKey, outcome, s.now().Sub(start))
	return outcome
}

func (s *AwardService) storageFailure(stage string, req models.AwardRequest, err error) error {
	s.metrics.RecordAwardError(stage)
	return appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status,
		"award "+stage+" write failed for "+req.PointKey)
}

func validateAwardRequest(req models.AwardRequest) error {
	var missing []string
	if strings.TrimSpace(req.UserID) == "" {
		missing = append(missing, "user_id")
	}
	if strings.TrimSpace(req.PointKey) == "" {
		missing = append(missing, "point_key")
	}
	if strings.TrimSpace(string(req.SourceType)) == "" {
		missing = append(missing, "source_type")
	}
	if strings.TrimSpace(req.SourceID) == "" {
		missing = append(missing, "source_id")
	}
	if len(missing) > 0 {
		return appErrors.Clone(appErrors.ErrValidation, "award requires "+strings.Join(missing, ", "))
	}
	return nil
}
