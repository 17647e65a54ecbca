package models

import "time"

// AggregateRecord is the materialised running total for one (user, point key) pair.
type AggregateRecord struct {
	UserID    string    `db:"user_id" json:"user_id"`
	PointKey  string    `db:"point_key" json:"point_key"`
	Value     int64     `db:"value" json:"value"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AwardOutcome is the result of an award attempt.
type AwardOutcome string

const (
	AwardOutcomeAwarded        AwardOutcome = "AWARDED"
	AwardOutcomeAlreadyAwarded AwardOutcome = "ALREADY_AWARDED"
	AwardOutcomeNoAward        AwardOutcome = "NO_AWARD"
)

// AwardRequest describes one qualifying domain event.
type AwardRequest struct {
	UserID     string
	PointKey   string
	SourceType SourceType
	SourceID   string
	Remarks    string
}
