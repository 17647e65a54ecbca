package models

import "time"

// SourceType tags the category of event that produced a ledger entry.
type SourceType string

const (
	SourceOneToOne     SourceType = "ONE_TO_ONE"
	SourceReferral     SourceType = "REFERRAL"
	SourceThankYouNote SourceType = "THANK_YOU_NOTE"
	SourceChiefGuest   SourceType = "CHIEF_GUEST"
	SourcePowerDate    SourceType = "POWER_DATE"
	SourceCommunity    SourceType = "COMMUNITY"
)

// LedgerEntry is an immutable record of one point-earning event. The tuple
// (UserID, PointKey, SourceType, SourceID) is unique.
type LedgerEntry struct {
	ID           string     `db:"id" json:"id"`
	UserID       string     `db:"user_id" json:"user_id"`
	PointKey     string     `db:"point_key" json:"point_key"`
	ChangeAmount int64      `db:"change_amount" json:"change_amount"`
	SourceType   SourceType `db:"source_type" json:"source_type"`
	SourceID     string     `db:"source_id" json:"source_id"`
	Remarks      *string    `db:"remarks" json:"remarks,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// NaturalKey identifies the originating event of a ledger entry.
type NaturalKey struct {
	UserID     string
	PointKey   string
	SourceType SourceType
	SourceID   string
}

// Key returns the natural key of the entry.
func (e LedgerEntry) Key() NaturalKey {
	return NaturalKey{UserID: e.UserID, PointKey: e.PointKey, SourceType: e.SourceType, SourceID: e.SourceID}
}

func (k NaturalKey) String() string {
	return k.UserID + "/" + k.PointKey + "/" + string(k.SourceType) + "/" + k.SourceID
}

// LedgerFilter narrows ledger reads.
type LedgerFilter struct {
	UserIDs  []string
	PointKey string
	Since    *time.Time
	Until    *time.Time
}

// LedgerSubtotal is the ledger sum for one (user, point key) pair. LastEntryAt is
// the creation time of the pair's newest entry.
type LedgerSubtotal struct {
	UserID      string    `db:"user_id" json:"user_id"`
	PointKey    string    `db:"point_key" json:"point_key"`
	Total       int64     `db:"total" json:"total"`
	LastEntryAt time.Time `db:"last_entry_at" json:"last_entry_at"`
}
