package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/chapter-points-api/internal/models"
	appErrors "github.com/noah-isme/chapter-points-api/pkg/errors"
	"github.com/noah-isme/chapter-points-api/pkg/export"
)

type memberDirectoryStub struct {
	profiles map[string]models.MemberProfile
	err      error
	asked    [][]string
}

func (s *memberDirectoryStub) FindProfiles(ctx context.Context, ids []string) ([]models.MemberProfile, error) {
	s.asked = append(s.asked, ids)
	if s.err != nil {
		return nil, s.err
	}
	var out []models.MemberProfile
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func newTestLeaderboard(t *testing.T, store *memoryStore, cache *CacheService, members MemberDirectory) *LeaderboardService {
	t.Helper()
	reporter := NewReconciliationService(store, store, nil, nil, zap.NewNop())
	return NewLeaderboardService(store, store, reporter, members, cache, nil, zap.NewNop(),
		LeaderboardConfig{DefaultLimit: 10, CacheTTL: time.Minute}, export.NewCSVExporter(), export.NewPDFExporter())
}

func TestLeaderboardGetTotalTreatsMissingAsZero(t *testing.T) {
	store := newMemoryStore()
	seedAwards(t, store, oneToOne("U1", "M1"))
	svc := newTestLeaderboard(t, store, nil, nil)

	total, err := svc.GetTotal(context.Background(), "U1", models.PointKeyOneToOne)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)

	total, err = svc.GetTotal(context.Background(), "U9", models.PointKeyOneToOne)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestLeaderboardUserSummaryAndHistory(t *testing.T) {
	store := newMemoryStore()
	seedAwards(t, store,
		oneToOne("U1", "M1"),
		models.AwardRequest{UserID: "U1", PointKey: models.PointKeyReferrals, SourceType: models.SourceReferral, SourceID: "R1"},
	)
	svc := newTestLeaderboard(t, store, nil, nil)

	summary, err := svc.UserSummary(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, int64(8), summary.TotalPoints)
	assert.Equal(t, int64(3), summary.Breakdown[models.PointKeyReferrals])

	entries, page, err := svc.History(context.Background(), "U1", 1, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.PointKeyReferrals, entries[0].PointKey)
	assert.Equal(t, 2, page.TotalCount)

	entries, _, err = svc.History(context.Background(), "U2", 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestLeaderboardRanksAndDecorates(t *testing.T) {
	store := newMemoryStore()
	seedAwards(t, store,
		oneToOne("U1", "M1"),
		oneToOne("U2", "M2"),
		models.AwardRequest{UserID: "U3", PointKey: models.PointKeyReferrals, SourceType: models.SourceReferral, SourceID: "R1"},
	)
	photo := "https://cdn.example.com/u2.png"
	members := &memberDirectoryStub{profiles: map[string]models.MemberProfile{
		"U2": {ID: "U2", FullName: "Dana Reyes", PhotoURL: &photo},
	}}
	svc := newTestLeaderboard(t, store, nil, members)

	entries, cached, err := svc.Leaderboard(context.Background(), models.LeaderboardFilter{})
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, entries, 3)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "U1", entries[0].UserID)
	assert.Equal(t, 1, entries[1].Rank)
	assert.Equal(t, "Dana Reyes", entries[1].DisplayName)
	assert.Equal(t, photo, entries[1].PhotoURL)
	assert.Equal(t, 3, entries[2].Rank)
	assert.Empty(t, entries[2].DisplayName)

	limited, _, err := svc.Leaderboard(context.Background(), models.LeaderboardFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestLeaderboardSourcesAgree(t *testing.T) {
	store := newMemoryStore()
	seedAwards(t, store, oneToOne("U1", "M1"), oneToOne("U1", "M2"), oneToOne("U2", "M3"))
	svc := newTestLeaderboard(t, store, nil, nil)

	fromAggregates, _, err := svc.Leaderboard(context.Background(), models.LeaderboardFilter{Source: models.LeaderboardSourceAggregate})
	require.NoError(t, err)
	fromLedger, _, err := svc.Leaderboard(context.Background(), models.LeaderboardFilter{Source: models.LeaderboardSourceLedger})
	require.NoError(t, err)
	assert.Equal(t, fromAggregates, fromLedger)
}

func TestLeaderboardTimeWindowUsesLedger(t *testing.T) {
	store := newMemoryStore()
	seedAwards(t, store, oneToOne("U1", "M1"))
	svc := newTestLeaderboard(t, store, nil, nil)

	future := time.Now().Add(time.Hour)
	entries, _, err := svc.Leaderboard(context.Background(), models.LeaderboardFilter{Since: &future})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLeaderboardAggregateSourceIsCached(t *testing.T) {
	store := newMemoryStore()
	seedAwards(t, store, oneToOne("U1", "M1"))
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, zap.NewNop(), true)
	members := &memberDirectoryStub{}
	svc := newTestLeaderboard(t, store, cache, members)

	_, cached, err := svc.Leaderboard(context.Background(), models.LeaderboardFilter{})
	require.NoError(t, err)
	assert.False(t, cached)

	entries, cached, err := svc.Leaderboard(context.Background(), models.LeaderboardFilter{})
	require.NoError(t, err)
	assert.True(t, cached)
	require.Len(t, entries, 1)
	assert.Len(t, members.asked, 1)

	_, cached, err = svc.Leaderboard(context.Background(), models.LeaderboardFilter{Source: models.LeaderboardSourceLedger})
	require.NoError(t, err)
	assert.False(t, cached)
}

func TestLeaderboardToleratesDirectoryFailure(t *testing.T) {
	store := newMemoryStore()
	seedAwards(t, store, oneToOne("U1", "M1"))
	svc := newTestLeaderboard(t, store, nil, &memberDirectoryStub{err: errors.New("directory down")})

	entries, _, err := svc.Leaderboard(context.Background(), models.LeaderboardFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].DisplayName)
}

func TestLeaderboardExport(t *testing.T) {
	store := newMemoryStore()
	seedAwards(t, store, oneToOne("U1", "M1"))
	svc := newTestLeaderboard(t, store, nil, nil)

	body, contentType, filename, err := svc.Export(context.Background(), models.LeaderboardFilter{}, "CSV")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, filename, ".csv")
	assert.Contains(t, string(body), "one_to_one=5")

	body, contentType, _, err = svc.Export(context.Background(), models.LeaderboardFilter{}, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, len(body) > 4 && string(body[:4]) == "%PDF")

	_, _, _, err = svc.Export(context.Background(), models.LeaderboardFilter{}, "xlsx")
	assert.True(t, errors.Is(err, appErrors.ErrUnsupportedFormat))
}
