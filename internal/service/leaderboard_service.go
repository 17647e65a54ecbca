package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/chapter-points-api/internal/models"
	appErrors "github.com/noah-isme/chapter-points-api/pkg/errors"
	"github.com/noah-isme/chapter-points-api/pkg/export"
)

const (
	leaderboardCachePrefix  = "leaderboard"
	leaderboardCachePattern = leaderboardCachePrefix + ":*"
	maxLeaderboardLimit     = 500
)

type aggregateReader interface {
	Get(ctx context.Context, userID, pointKey string) (*models.AggregateRecord, error)
	List(ctx context.Context, userIDs []string, pointKey string) ([]models.AggregateRecord, error)
}

type ledgerHistoryReader interface {
	ListByUser(ctx context.Context, userID string, page, pageSize int) ([]models.LedgerEntry, int, error)
}

type totalsRecomputer interface {
	RecomputeTotals(ctx context.Context, filter models.LedgerFilter) ([]models.UserTotal, error)
}

// MemberDirectory resolves display profiles by user ID.
type MemberDirectory interface {
	FindProfiles(ctx context.Context, ids []string) ([]models.MemberProfile, error)
}

// LeaderboardConfig tunes leaderboard reads.
type LeaderboardConfig struct {
	DefaultLimit int
	CacheTTL     time.Duration
}

// LeaderboardService serves totals, history and rankings. Aggregate-backed reads are
// fast and cacheable; ledger-backed reads are recomputed on every call.
type LeaderboardService struct {
	aggregates aggregateReader
	history    ledgerHistoryReader
	reporter   totalsRecomputer
	members    MemberDirectory
	cache      *CacheService
	exporters  map[string]export.Exporter
	metrics    *MetricsService
	logger     *zap.Logger
	cfg        LeaderboardConfig
}

// NewLeaderboardService constructs the service. members, cache and metrics may be nil.
func NewLeaderboardService(aggregates aggregateReader, history ledgerHistoryReader, reporter totalsRecomputer, members MemberDirectory,
	cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg LeaderboardConfig, exporters ...export.Exporter) *LeaderboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 50
	}
	byFormat := make(map[string]export.Exporter, len(exporters))
	for _, e := range exporters {
		byFormat[e.Extension()] = e
	}
	return &LeaderboardService{
		aggregates: aggregates,
		history:    history,
		reporter:   reporter,
		members:    members,
		cache:      cache,
		exporters:  byFormat,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
	}
}

// GetTotal returns the running total for a pair; an absent aggregate is zero.
func (s *LeaderboardService) GetTotal(ctx context.Context, userID, pointKey string) (int64, error) {
	rec, err := s.aggregates.Get(ctx, userID, pointKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to read point total")
	}
	return rec.Value, nil
}

// UserSummary returns one user's aggregate totals per point key.
func (s *LeaderboardService) UserSummary(ctx context.Context, userID string) (*models.UserTotal, error) {
	records, err := s.aggregates.List(ctx, []string{userID}, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to read point totals")
	}
	summary := &models.UserTotal{UserID: userID, Breakdown: map[string]int64{}}
	for _, rec := range records {
		summary.Breakdown[rec.PointKey] += rec.Value
		summary.TotalPoints += rec.Value
	}
	return summary, nil
}

// History returns a page of the user's ledger entries, newest first.
func (s *LeaderboardService) History(ctx context.Context, userID string, page, pageSize int) ([]models.LedgerEntry, *models.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	entries, total, err := s.history.ListByUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to read point history")
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	return entries, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Leaderboard ranks users by total points. Time-bounded queries always use the ledger,
// since aggregates carry no time dimension. The boolean reports a cache hit.
func (s *LeaderboardService) Leaderboard(ctx context.Context, filter models.LeaderboardFilter) ([]models.LeaderboardEntry, bool, error) {
	filter = s.normalise(filter)
	if filter.Source == models.LeaderboardSourceLedger {
		totals, err := s.reporter.RecomputeTotals(ctx, models.LedgerFilter{
			UserIDs:  filter.UserIDs,
			PointKey: filter.PointKey,
			Since:    filter.Since,
			Until:    filter.Until,
		})
		if err != nil {
			return nil, false, err
		}
		entries, err := s.decorate(ctx, totals, filter.Limit)
		return entries, false, err
	}

	cacheKey := leaderboardCacheKey(filter)
	var cached []models.LeaderboardEntry
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return cached, true, nil
	}

	start := time.Now()
	records, err := s.aggregates.List(ctx, filter.UserIDs, filter.PointKey)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to read aggregates")
	}
	s.metrics.ObserveDBQuery("aggregate_leaderboard", time.Since(start))

	entries, err := s.decorate(ctx, totalsFromAggregates(records), filter.Limit)
	if err != nil {
		return nil, false, err
	}
	_ = s.cache.Set(ctx, cacheKey, entries, s.cfg.CacheTTL)
	return entries, false, nil
}

// Export renders the leaderboard in the requested format and returns the document,
// its content type and a file name.
func (s *LeaderboardService) Export(ctx context.Context, filter models.LeaderboardFilter, format string) ([]byte, string, string, error) {
	exporter, ok := s.exporters[strings.ToLower(format)]
	if !ok {
		return nil, "", "", appErrors.Clone(appErrors.ErrUnsupportedFormat, "unsupported export format "+format)
	}
	entries, _, err := s.Leaderboard(ctx, filter)
	if err != nil {
		return nil, "", "", err
	}
	dataset := export.Dataset{
		Title:   "Points Leaderboard",
		Headers: []string{"rank", "user_id", "display_name", "total_points", "breakdown"},
		Rows:    make([]map[string]string, 0, len(entries)),
	}
	for _, e := range entries {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"rank":         strconv.Itoa(e.Rank),
			"user_id":      e.UserID,
			"display_name": e.DisplayName,
			"total_points": strconv.FormatInt(e.TotalPoints, 10),
			"breakdown":    formatBreakdown(e.Breakdown),
		})
	}
	body, err := exporter.Render(dataset)
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render leaderboard")
	}
	filename := fmt.Sprintf("leaderboard-%s.%s", time.Now().UTC().Format("20060102"), exporter.Extension())
	return body, exporter.ContentType(), filename, nil
}

func (s *LeaderboardService) normalise(filter models.LeaderboardFilter) models.LeaderboardFilter {
	if filter.Source == "" {
		filter.Source = models.LeaderboardSourceAggregate
	}
	if filter.Since != nil || filter.Until != nil {
		filter.Source = models.LeaderboardSourceLedger
	}
	if filter.Limit <= 0 {
		filter.Limit = s.cfg.DefaultLimit
	}
	if filter.Limit > maxLeaderboardLimit {
		filter.Limit = maxLeaderboardLimit
	}
	return filter
}

func (s *LeaderboardService) decorate(ctx context.Context, totals []models.UserTotal, limit int) ([]models.LeaderboardEntry, error) {
	if limit > 0 && len(totals) > limit {
		totals = totals[:limit]
	}
	profiles := map[string]models.MemberProfile{}
	if s.members != nil && len(totals) > 0 {
		ids := make([]string, len(totals))
		for i, t := range totals {
			ids[i] = t.UserID
		}
		found, err := s.members.FindProfiles(ctx, ids)
		if err != nil {
			s.logger.Warn("member directory lookup failed; leaderboard served without profiles", zap.Error(err))
		}
		for _, p := range found {
			profiles[p.ID] = p
		}
	}

	entries := make([]models.LeaderboardEntry, 0, len(totals))
	rank := 0
	var previous int64
	for i, t := range totals {
		if i == 0 || t.TotalPoints != previous {
			rank = i + 1
			previous = t.TotalPoints
		}
		entry := models.LeaderboardEntry{Rank: rank, UserID: t.UserID, TotalPoints: t.TotalPoints, Breakdown: t.Breakdown}
		if p, ok := profiles[t.UserID]; ok {
			entry.DisplayName = p.FullName
			if p.PhotoURL != nil {
				entry.PhotoURL = *p.PhotoURL
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func totalsFromAggregates(records []models.AggregateRecord) []models.UserTotal {
	subtotals := make([]models.LedgerSubtotal, len(records))
	for i, rec := range records {
		subtotals[i] = models.LedgerSubtotal{UserID: rec.UserID, PointKey: rec.PointKey, Total: rec.Value}
	}
	return groupByUser(subtotals)
}

func leaderboardCacheKey(filter models.LeaderboardFilter) string {
	ids := append([]string(nil), filter.UserIDs...)
	sort.Strings(ids)
	var b strings.Builder
	b.WriteString(leaderboardCachePrefix)
	b.WriteString(":k=")
	b.WriteString(filter.PointKey)
	b.WriteString(":n=")
	b.WriteString(strconv.Itoa(filter.Limit))
	b.WriteString(":u=")
	b.WriteString(strings.Join(ids, ","))
	return b.String()
}

func formatBreakdown(breakdown map[string]int64) string {
	keys := make([]string, 0, len(breakdown))
	for k := range breakdown {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.FormatInt(breakdown[k], 10)
	}
	return strings.Join(parts, " ")
}
