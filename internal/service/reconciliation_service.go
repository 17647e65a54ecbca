package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/chapter-points-api/internal/models"
	appErrors "github.com/noah-isme/chapter-points-api/pkg/errors"
)

type ledgerSubtotaler interface {
	Subtotals(ctx context.Context, filter models.LedgerFilter) ([]models.LedgerSubtotal, error)
}

type aggregateSnapshotter interface {
	List(ctx context.Context, userIDs []string, pointKey string) ([]models.AggregateRecord, error)
	Set(ctx context.Context, userID, pointKey string, value int64) error
}

// DefaultRepairGrace is how long a pair's newest ledger entry must have settled
// before Repair may overwrite its aggregate.
const DefaultRepairGrace = 30 * time.Second

type pairKey struct {
	userID   string
	pointKey string
}

// ReconciliationService recomputes totals from the ledger. It reads only, except
// for Repair, which overwrites drifted aggregates with ledger totals.
type ReconciliationService struct {
	ledger      ledgerSubtotaler
	aggregates  aggregateSnapshotter
	cache       cacheInvalidator
	metrics     *MetricsService
	logger      *zap.Logger
	repairGrace time.Duration
	now         func() time.Time
}

// NewReconciliationService constructs the reporter.
func NewReconciliationService(ledger ledgerSubtotaler, aggregates aggregateSnapshotter, cache cacheInvalidator, metrics *MetricsService, logger *zap.Logger) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationService{
		ledger:      ledger,
		aggregates:  aggregates,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		repairGrace: DefaultRepairGrace,
		now:         time.Now,
	}
}

// SetRepairGrace changes the settle window applied by Repair. Zero disables it.
func (s *ReconciliationService) SetRepairGrace(grace time.Duration) {
	if grace < 0 {
		grace = 0
	}
	s.repairGrace = grace
}

// RecomputeTotals sums ledger entries per (user, point key), regroups them per user
// and ranks users by total descending. Ties are ordered by user ID.
func (s *ReconciliationService) RecomputeTotals(ctx context.Context, filter models.LedgerFilter) ([]models.UserTotal, error) {
	start := s.now()
	subtotals, err := s.ledger.Subtotals(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to read ledger totals")
	}
	s.metrics.ObserveDBQuery("ledger_subtotals", s.now().Sub(start))
	return groupByUser(subtotals), nil
}

// DetectDrift compares ledger subtotals with aggregates for the given users, or all
// users when userIDs is empty. Pairs present on only one side count as drift.
func (s *ReconciliationService) DetectDrift(ctx context.Context, userIDs []string) (*models.DriftReport, error) {
	report, _, err := s.detect(ctx, userIDs)
	return report, err
}

func (s *ReconciliationService) detect(ctx context.Context, userIDs []string) (*models.DriftReport, map[pairKey]time.Time, error) {
	subtotals, err := s.ledger.Subtotals(ctx, models.LedgerFilter{UserIDs: userIDs})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to read ledger totals")
	}
	records, err := s.aggregates.List(ctx, userIDs, "")
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to read aggregates")
	}

	ledgerTotals := make(map[pairKey]int64, len(subtotals))
	lastEntries := make(map[pairKey]time.Time, len(subtotals))
	for _, st := range subtotals {
		k := pairKey{st.UserID, st.PointKey}
		ledgerTotals[k] = st.Total
		lastEntries[k] = st.LastEntryAt
	}
	aggregateValues := make(map[pairKey]int64, len(records))
	for _, rec := range records {
		aggregateValues[pairKey{rec.UserID, rec.PointKey}] = rec.Value
	}

	report := &models.DriftReport{GeneratedAt: s.now().UTC(), Drift: []models.DriftRecord{}}
	seen := make(map[pairKey]struct{}, len(ledgerTotals)+len(aggregateValues))
	check := func(k pairKey) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		ledgerTotal := ledgerTotals[k]
		value, found := aggregateValues[k]
		if found && value == ledgerTotal {
			return
		}
		if !found && ledgerTotal == 0 {
			return
		}
		report.Drift = append(report.Drift, models.DriftRecord{
			UserID:         k.userID,
			PointKey:       k.pointKey,
			LedgerTotal:    ledgerTotal,
			AggregateValue: value,
			AggregateFound: found,
			Delta:          ledgerTotal - value,
		})
	}
	for k := range ledgerTotals {
		check(k)
	}
	for k := range aggregateValues {
		check(k)
	}
	report.CheckedPairs = len(seen)
	sort.Slice(report.Drift, func(i, j int) bool {
		if report.Drift[i].UserID != report.Drift[j].UserID {
			return report.Drift[i].UserID < report.Drift[j].UserID
		}
		return report.Drift[i].PointKey < report.Drift[j].PointKey
	})

	s.metrics.SetDriftPairs(len(report.Drift))
	if len(report.Drift) > 0 {
		s.logger.Warn("points drift detected", zap.Int("pairs", len(report.Drift)), zap.Int("checked", report.CheckedPairs))
	}
	return report, lastEntries, nil
}

// Repair overwrites every drifted aggregate with its ledger total. Pairs repaired
// before a failure stay repaired; the returned error names the failing pair.
//
// An award appends to the ledger before it increments the aggregate, so a pair
// whose newest entry is younger than the repair grace may still have an increment
// in flight. Such pairs are deferred, as are pairs whose ledger moved after
// detection; the next audit picks them up.
func (s *ReconciliationService) Repair(ctx context.Context, userIDs []string) (*models.DriftReport, error) {
	report, lastEntries, err := s.detect(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	repaired := 0
	for _, d := range report.Drift {
		settled, err := s.settled(ctx, d, lastEntries[pairKey{d.UserID, d.PointKey}])
		if err != nil {
			s.metrics.AddRepairedPairs(repaired)
			return nil, err
		}
		if !settled {
			report.Deferred = append(report.Deferred, d)
			s.logger.Info("aggregate repair deferred; ledger still active",
				zap.String("user_id", d.UserID),
				zap.String("point_key", d.PointKey))
			continue
		}
		if err := s.aggregates.Set(ctx, d.UserID, d.PointKey, d.LedgerTotal); err != nil {
			s.metrics.AddRepairedPairs(repaired)
			return nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status,
				"failed to repair aggregate "+d.UserID+"/"+d.PointKey)
		}
		repaired++
		s.logger.Info("aggregate repaired",
			zap.String("user_id", d.UserID),
			zap.String("point_key", d.PointKey),
			zap.Int64("from", d.AggregateValue),
			zap.Int64("to", d.LedgerTotal))
	}
	s.metrics.AddRepairedPairs(repaired)
	s.metrics.SetDriftPairs(len(report.Deferred))
	if repaired > 0 && s.cache != nil {
		if err := s.cache.Invalidate(ctx, leaderboardCachePattern); err != nil {
			s.logger.Warn("leaderboard cache invalidation failed", zap.Error(err))
		}
	}
	report.Repaired = true
	return report, nil
}

// settled re-reads the pair's ledger and reports whether it still holds the total
// seen at detection and has been quiet for the repair grace.
func (s *ReconciliationService) settled(ctx context.Context, d models.DriftRecord, lastEntry time.Time) (bool, error) {
	if s.recent(lastEntry) {
		return false, nil
	}
	current, err := s.ledger.Subtotals(ctx, models.LedgerFilter{UserIDs: []string{d.UserID}, PointKey: d.PointKey})
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status,
			"failed to re-read ledger for "+d.UserID+"/"+d.PointKey)
	}
	var total int64
	for _, st := range current {
		if st.UserID != d.UserID || st.PointKey != d.PointKey {
			continue
		}
		if s.recent(st.LastEntryAt) {
			return false, nil
		}
		total += st.Total
	}
	return total == d.LedgerTotal, nil
}

func (s *ReconciliationService) recent(at time.Time) bool {
	if s.repairGrace <= 0 || at.IsZero() {
		return false
	}
	return s.now().Sub(at) < s.repairGrace
}

func groupByUser(subtotals []models.LedgerSubtotal) []models.UserTotal {
	index := make(map[string]int)
	totals := make([]models.UserTotal, 0)
	for _, st := range subtotals {
		i, ok := index[st.UserID]
		if !ok {
			i = len(totals)
			index[st.UserID] = i
			totals = append(totals, models.UserTotal{UserID: st.UserID, Breakdown: map[string]int64{}})
		}
		totals[i].Breakdown[st.PointKey] += st.Total
		totals[i].TotalPoints += st.Total
	}
	rankTotals(totals)
	return totals
}

func rankTotals(totals []models.UserTotal) {
	sort.SliceStable(totals, func(i, j int) bool {
		if totals[i].TotalPoints != totals[j].TotalPoints {
			return totals[i].TotalPoints > totals[j].TotalPoints
		}
		return totals[i].UserID < totals[j].UserID
	})
}
