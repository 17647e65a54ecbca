package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/chapter-points-api/internal/models"
	appErrors "github.com/noah-isme/chapter-points-api/pkg/errors"
)

func newTestAwardService(store *memoryStore, catalog PointCatalog) (*AwardService, *invalidationRecorder) {
	recorder := &invalidationRecorder{}
	return NewAwardService(catalog, store, store, recorder, NewMetricsService(), zap.NewNop()), recorder
}

func oneToOne(userID, meetingID string) models.AwardRequest {
	return models.AwardRequest{UserID: userID, PointKey: models.PointKeyOneToOne, SourceType: models.SourceOneToOne, SourceID: meetingID}
}

func TestAwardServiceAwardsOnceAndIsIdempotent(t *testing.T) {
	store := newMemoryStore()
	svc, recorder := newTestAwardService(store, standardCatalog())

	outcome, err := svc.Award(context.Background(), oneToOne("U1", "M1"))
	require.NoError(t, err)
	assert.Equal(t, models.AwardOutcomeAwarded, outcome)

	outcome, err = svc.Award(context.Background(), oneToOne("U1", "M1"))
	require.NoError(t, err)
	assert.Equal(t, models.AwardOutcomeAlreadyAwarded, outcome)

	require.Len(t, store.entries, 1)
	assert.Equal(t, int64(5), store.entries[0].ChangeAmount)
	value, ok := store.aggregate("U1", models.PointKeyOneToOne)
	require.True(t, ok)
	assert.Equal(t, int64(5), value)
	assert.Equal(t, []string{leaderboardCachePattern}, recorder.patterns)
}

func TestAwardServiceNoAwardWithoutActiveDefinition(t *testing.T) {
	store := newMemoryStore()
	svc, recorder := newTestAwardService(store, standardCatalog())

	outcome, err := svc.Award(context.Background(), models.AwardRequest{UserID: "U1", PointKey: "custom_key", SourceType: "X", SourceID: "S1"})
	require.NoError(t, err)
	assert.Equal(t, models.AwardOutcomeNoAward, outcome)

	outcome, err = svc.Award(context.Background(), models.AwardRequest{UserID: "U1", PointKey: models.PointKeyThankYouNotes, SourceType: models.SourceThankYouNote, SourceID: "T1"})
	require.NoError(t, err)
	assert.Equal(t, models.AwardOutcomeNoAward, outcome)

	assert.Empty(t, store.entries)
	assert.Empty(t, store.aggregates)
	assert.Zero(t, store.appendCalls)
	assert.Empty(t, recorder.patterns)
}

func TestAwardServiceTotalsMatchLedger(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestAwardService(store, standardCatalog())
	ctx := context.Background()

	_, err := svc.Award(ctx, oneToOne("U1", "M1"))
	require.NoError(t, err)
	_, err = svc.Award(ctx, models.AwardRequest{UserID: "U1", PointKey: models.PointKeyReferrals, SourceType: models.SourceReferral, SourceID: "R1"})
	require.NoError(t, err)

	reporter := NewReconciliationService(store, store, nil, nil, zap.NewNop())
	totals, err := reporter.RecomputeTotals(ctx, models.LedgerFilter{UserIDs: []string{"U1"}})
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, int64(8), totals[0].TotalPoints)
	assert.Equal(t, map[string]int64{models.PointKeyOneToOne: 5, models.PointKeyReferrals: 3}, totals[0].Breakdown)

	for key, total := range totals[0].Breakdown {
		value, ok := store.aggregate("U1", key)
		require.True(t, ok)
		assert.Equal(t, total, value)
	}
}

func TestAwardServiceConcurrentDistinctSources(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestAwardService(store, standardCatalog())

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := svc.Award(context.Background(), oneToOne("U1", fmt.Sprintf("M%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	value, _ := store.aggregate("U1", models.PointKeyOneToOne)
	assert.Equal(t, int64(n*5), value)
	assert.Equal(t, value, store.ledgerSum("U1", models.PointKeyOneToOne))
}

func TestAwardServiceConcurrentDuplicatesAwardOnce(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestAwardService(store, standardCatalog())

	const n = 20
	outcomes := make(chan models.AwardOutcome, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			outcome, err := svc.Award(context.Background(), oneToOne("U1", "M1"))
			assert.NoError(t, err)
			outcomes <- outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	awarded := 0
	for o := range outcomes {
		if o == models.AwardOutcomeAwarded {
			awarded++
		}
	}
	assert.Equal(t, 1, awarded)
	value, _ := store.aggregate("U1", models.PointKeyOneToOne)
	assert.Equal(t, int64(5), value)
}

func TestAwardServiceStorageFailures(t *testing.T) {
	boom := errors.New("connection reset")

	t.Run("catalog", func(t *testing.T) {
		store := newMemoryStore()
		catalog := standardCatalog()
		catalog.err = boom
		svc, _ := newTestAwardService(store, catalog)

		_, err := svc.Award(context.Background(), oneToOne("U1", "M1"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, appErrors.ErrStorageFailure))
		assert.Empty(t, store.entries)
	})

	t.Run("ledger", func(t *testing.T) {
		store := newMemoryStore()
		store.appendErr = boom
		svc, _ := newTestAwardService(store, standardCatalog())

		_, err := svc.Award(context.Background(), oneToOne("U1", "M1"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, appErrors.ErrStorageFailure))
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, store.aggregates)
	})

	t.Run("aggregate leaves ledger entry for reconciliation", func(t *testing.T) {
		store := newMemoryStore()
		store.incrementErr = boom
		svc, recorder := newTestAwardService(store, standardCatalog())

		_, err := svc.Award(context.Background(), oneToOne("U1", "M1"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, appErrors.ErrStorageFailure))
		assert.Len(t, store.entries, 1)
		assert.Empty(t, recorder.patterns)

		store.incrementErr = nil
		outcome, err := svc.Award(context.Background(), oneToOne("U1", "M1"))
		require.NoError(t, err)
		assert.Equal(t, models.AwardOutcomeAlreadyAwarded, outcome)

		reporter := NewReconciliationService(store, store, nil, nil, zap.NewNop())
		report, err := reporter.DetectDrift(context.Background(), nil)
		require.NoError(t, err)
		require.Len(t, report.Drift, 1)
		assert.False(t, report.Drift[0].AggregateFound)
		assert.Equal(t, int64(5), report.Drift[0].Delta)
	})
}

func TestAwardServiceRejectsIncompleteRequests(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestAwardService(store, standardCatalog())

	_, err := svc.Award(context.Background(), models.AwardRequest{UserID: "U1", PointKey: models.PointKeyOneToOne})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Contains(t, err.Error(), "source_type")
	assert.Zero(t, store.appendCalls)
}

func TestAwardServiceMetricLabelsStayWithinCatalog(t *testing.T) {
	store := newMemoryStore()
	metrics := NewMetricsService()
	svc := NewAwardService(standardCatalog(), store, store, nil, metrics, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		outcome, err := svc.Award(ctx, models.AwardRequest{UserID: "U1", PointKey: fmt.Sprintf("made_up_%d", i), SourceType: models.SourceCommunity, SourceID: "C1"})
		require.NoError(t, err)
		assert.Equal(t, models.AwardOutcomeNoAward, outcome)
	}
	_, err := svc.Award(ctx, oneToOne("U1", "M1"))
	require.NoError(t, err)

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	labels := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "points_awards_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			var key, outcome string
			for _, pair := range metric.GetLabel() {
				switch pair.GetName() {
				case "point_key":
					key = pair.GetValue()
				case "outcome":
					outcome = pair.GetValue()
				}
			}
			labels[key+"/"+outcome] = metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, map[string]float64{
		"unknown/NO_AWARD":                        3,
		models.PointKeyOneToOne + "/" + "AWARDED": 1,
	}, labels)
}
