package models

import "time"

// PointDefinition is an admin-managed scoring rule.
type PointDefinition struct {
	Key         string    `db:"key" json:"key"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Value       int64     `db:"value" json:"value"`
	Order       int       `db:"sort_order" json:"order"`
	Active      bool      `db:"active" json:"active"`
	Deleted     bool      `db:"deleted" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Awardable reports whether the definition may back new awards.
func (d *PointDefinition) Awardable() bool {
	return d != nil && d.Active && !d.Deleted
}

// Well-known point keys configured by the platform.
const (
	PointKeyOneToOne      = "one_to_one"
	PointKeyReferrals     = "referrals"
	PointKeyThankYouNotes = "thank_you_notes"
	PointKeyChiefGuests   = "chief_guests"
	PointKeyPowerDates    = "power_dates"
)
