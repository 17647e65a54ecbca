package models

import "time"

// LeaderboardSource selects the backing store for a leaderboard.
type LeaderboardSource string

const (
	LeaderboardSourceAggregate LeaderboardSource = "aggregate"
	LeaderboardSourceLedger    LeaderboardSource = "ledger"
)

// LeaderboardFilter scopes leaderboard and reconciliation queries.
type LeaderboardFilter struct {
	Source   LeaderboardSource
	PointKey string
	UserIDs  []string
	Since    *time.Time
	Until    *time.Time
	Limit    int
}

// UserTotal is one user's total across point keys with the per-key breakdown.
type UserTotal struct {
	UserID      string           `json:"user_id"`
	TotalPoints int64            `json:"total_points"`
	Breakdown   map[string]int64 `json:"breakdown"`
}

// LeaderboardEntry decorates a ranked total with member display data.
type LeaderboardEntry struct {
	Rank        int              `json:"rank"`
	UserID      string           `json:"user_id"`
	DisplayName string           `json:"display_name,omitempty"`
	PhotoURL    string           `json:"photo_url,omitempty"`
	TotalPoints int64            `json:"total_points"`
	Breakdown   map[string]int64 `json:"breakdown"`
}

// DriftRecord describes a pair whose aggregate disagrees with the ledger.
type DriftRecord struct {
	UserID         string `json:"user_id"`
	PointKey       string `json:"point_key"`
	LedgerTotal    int64  `json:"ledger_total"`
	AggregateValue int64  `json:"aggregate_value"`
	AggregateFound bool   `json:"aggregate_found"`
	Delta          int64  `json:"delta"`
}

// DriftReport summarises one reconciliation audit. Deferred lists drifted pairs a
// repair left untouched because their ledger was still receiving entries.
type DriftReport struct {
	CheckedPairs int           `json:"checked_pairs"`
	Drift        []DriftRecord `json:"drift"`
	Deferred     []DriftRecord `json:"deferred,omitempty"`
	Repaired     bool          `json:"repaired"`
	GeneratedAt  time.Time     `json:"generated_at"`
}

// Unresolved reports whether drift remains after the audit or repair.
func (r *DriftReport) Unresolved() bool {
	if r.Repaired {
		return len(r.Deferred) > 0
	}
	return len(r.Drift) > 0
}
