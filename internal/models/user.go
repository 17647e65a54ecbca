package models

// MemberProfile is the display data the member directory exposes for a user.
type MemberProfile struct {
	ID       string  `db:"id" json:"id"`
	FullName string  `db:"full_name" json:"full_name"`
	PhotoURL *string `db:"photo_url" json:"photo_url,omitempty"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
