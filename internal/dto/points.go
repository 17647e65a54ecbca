package dto

import "time"

// PointDefinitionItem is a catalog entry as exposed by the admin API.
type PointDefinitionItem struct {
	Key         string    `json:"key"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description,omitempty"`
	Value       int64     `json:"value"`
	Order       int       `json:"order"`
	Active      bool      `json:"active"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreatePointDefinitionRequest registers a scoring category.
type CreatePointDefinitionRequest struct {
	Key         string `json:"key" validate:"required,max=64,pointkey"`
	DisplayName string `json:"display_name" validate:"required,max=128"`
	Description string `json:"description" validate:"max=1024"`
	Value       int64  `json:"value" validate:"gte=0"`
	Order       int    `json:"order" validate:"gte=0"`
	Active      *bool  `json:"active"`
}

// UpdatePointDefinitionRequest edits a scoring category. Nil fields are left unchanged.
type UpdatePointDefinitionRequest struct {
	DisplayName *string `json:"display_name" validate:"omitempty,max=128"`
	Description *string `json:"description" validate:"omitempty,max=1024"`
	Value       *int64  `json:"value" validate:"omitempty,gte=0"`
	Order       *int    `json:"order" validate:"omitempty,gte=0"`
	Active      *bool   `json:"active"`
}

// AwardEventRequest reports one qualifying domain event.
type AwardEventRequest struct {
	UserID     string `json:"user_id" validate:"required,max=64"`
	PointKey   string `json:"point_key" validate:"required,max=64"`
	SourceType string `json:"source_type" validate:"required,max=32"`
	SourceID   string `json:"source_id" validate:"required,max=64"`
	Remarks    string `json:"remarks" validate:"max=1024"`
}

// AwardEventResponse returns the award outcome.
type AwardEventResponse struct {
	Outcome  string `json:"outcome"`
	UserID   string `json:"user_id"`
	PointKey string `json:"point_key"`
	SourceID string `json:"source_id"`
}

// PointTotalResponse is one pair's running total.
type PointTotalResponse struct {
	UserID   string `json:"user_id"`
	PointKey string `json:"point_key"`
	Value    int64  `json:"value"`
}

// LeaderboardQuery is the leaderboard query string.
type LeaderboardQuery struct {
	Source   string     `form:"source" validate:"omitempty,oneof=aggregate ledger"`
	PointKey string     `form:"pointKey" validate:"omitempty,max=64"`
	UserIDs  string     `form:"userIds"`
	Since    *time.Time `form:"since" time_format:"2006-01-02T15:04:05Z07:00"`
	Until    *time.Time `form:"until" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit    int        `form:"limit" validate:"omitempty,gte=1,lte=500"`
	Format   string     `form:"format" validate:"omitempty,oneof=csv pdf"`
}

// RepairRequest scopes a reconciliation repair.
type RepairRequest struct {
	UserIDs []string `json:"user_ids" validate:"omitempty,dive,required"`
}

// EventNotification reports a domain event for asynchronous awarding. PostType is
// required for community posts and names the point key.
type EventNotification struct {
	UserID   string `json:"user_id" validate:"required,max=64"`
	SourceID string `json:"source_id" validate:"required,max=64"`
	PostType string `json:"post_type" validate:"omitempty,max=64"`
	Remarks  string `json:"remarks" validate:"max=1024"`
}
