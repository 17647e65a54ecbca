package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/chapter-points-api/internal/models"
	appErrors "github.com/noah-isme/chapter-points-api/pkg/errors"
)

type catalogStub struct {
	defs map[string]*models.PointDefinition
	err  error
}

func newCatalogStub(defs ...models.PointDefinition) *catalogStub {
	stub := &catalogStub{defs: map[string]*models.PointDefinition{}}
	for i := range defs {
		d := defs[i]
		stub.defs[d.Key] = &d
	}
	return stub
}

func (s *catalogStub) LookupActive(ctx context.Context, key string) (*models.PointDefinition, error) {
	if s.err != nil {
		return nil, s.err
	}
	def, ok := s.defs[key]
	if !ok || !def.Awardable() {
		return nil, appErrors.Clone(appErrors.ErrConfigNotFound, "no active definition for "+key)
	}
	return def, nil
}

// memoryStore is an in-memory ledger and aggregate store honouring the natural key
// and the atomic add-or-create contract.
type memoryStore struct {
	mu         sync.Mutex
	entries    []models.LedgerEntry
	keys       map[models.NaturalKey]struct{}
	aggregates map[pairKey]int64

	appendErr    error
	incrementErr error
	setErr       error
	appendCalls  int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: map[models.NaturalKey]struct{}{}, aggregates: map[pairKey]int64{}}
}

func (m *memoryStore) Append(ctx context.Context, entry *models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendCalls++
	if m.appendErr != nil {
		return m.appendErr
	}
	if _, exists := m.keys[entry.Key()]; exists {
		return appErrors.Clone(appErrors.ErrDuplicateEvent, "duplicate")
	}
	m.keys[entry.Key()] = struct{}{}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryStore) Increment(ctx context.Context, userID, pointKey string, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incrementErr != nil {
		return 0, m.incrementErr
	}
	k := pairKey{userID, pointKey}
	m.aggregates[k] += amount
	return m.aggregates[k], nil
}

func (m *memoryStore) Set(ctx context.Context, userID, pointKey string, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.aggregates[pairKey{userID, pointKey}] = value
	return nil
}

func (m *memoryStore) Get(ctx context.Context, userID, pointKey string) (*models.AggregateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.aggregates[pairKey{userID, pointKey}]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.AggregateRecord{UserID: userID, PointKey: pointKey, Value: v}, nil
}

func (m *memoryStore) List(ctx context.Context, userIDs []string, pointKey string) ([]models.AggregateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	allowed := toSet(userIDs)
	var out []models.AggregateRecord
	for k, v := range m.aggregates {
		if len(allowed) > 0 {
			if _, ok := allowed[k.userID]; !ok {
				continue
			}
		}
		if pointKey != "" && k.pointKey != pointKey {
			continue
		}
		out = append(out, models.AggregateRecord{UserID: k.userID, PointKey: k.pointKey, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].PointKey < out[j].PointKey
	})
	return out, nil
}

func (m *memoryStore) Subtotals(ctx context.Context, filter models.LedgerFilter) ([]models.LedgerSubtotal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	allowed := toSet(filter.UserIDs)
	sums := map[pairKey]int64{}
	latest := map[pairKey]time.Time{}
	for _, e := range m.entries {
		if len(allowed) > 0 {
			if _, ok := allowed[e.UserID]; !ok {
				continue
			}
		}
		if filter.PointKey != "" && e.PointKey != filter.PointKey {
			continue
		}
		if filter.Since != nil && e.CreatedAt.Before(*filter.Since) {
			continue
		}
		if filter.Until != nil && !e.CreatedAt.Before(*filter.Until) {
			continue
		}
		k := pairKey{e.UserID, e.PointKey}
		sums[k] += e.ChangeAmount
		if e.CreatedAt.After(latest[k]) {
			latest[k] = e.CreatedAt
		}
	}
	out := make([]models.LedgerSubtotal, 0, len(sums))
	for k, v := range sums {
		out = append(out, models.LedgerSubtotal{UserID: k.userID, PointKey: k.pointKey, Total: v, LastEntryAt: latest[k]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].PointKey < out[j].PointKey
	})
	return out, nil
}

func (m *memoryStore) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]models.LedgerEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var mine []models.LedgerEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].UserID == userID {
			mine = append(mine, m.entries[i])
		}
	}
	start := (page - 1) * pageSize
	if start >= len(mine) {
		return nil, len(mine), nil
	}
	end := start + pageSize
	if end > len(mine) {
		end = len(mine)
	}
	return mine[start:end], len(mine), nil
}

func (m *memoryStore) ledgerSum(userID, pointKey string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, e := range m.entries {
		if e.UserID == userID && e.PointKey == pointKey {
			total += e.ChangeAmount
		}
	}
	return total
}

func (m *memoryStore) aggregate(userID, pointKey string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.aggregates[pairKey{userID, pointKey}]
	return v, ok
}

type invalidationRecorder struct {
	mu       sync.Mutex
	patterns []string
}

func (r *invalidationRecorder) Invalidate(ctx context.Context, pattern string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, pattern)
	return nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func standardCatalog() *catalogStub {
	return newCatalogStub(
		models.PointDefinition{Key: models.PointKeyOneToOne, DisplayName: "One to One", Value: 5, Active: true},
		models.PointDefinition{Key: models.PointKeyReferrals, DisplayName: "Referrals", Value: 3, Active: true},
		models.PointDefinition{Key: models.PointKeyThankYouNotes, DisplayName: "Thank You Notes", Value: 3, Active: false},
	)
}
