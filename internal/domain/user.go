package domain

import "time"

// UserProfile is stored at users/{uid}/profile
type UserProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// CompanyMember lists a user under companies/{c}/members/{uid}
type CompanyMember struct {
	UserID       string    `json:"user_id"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email,omitempty"`
	SiteID       string    `json:"site_id,omitempty"`
	DepartmentID string    `json:"department_id,omitempty"`
	RoleID       string    `json:"role_id,omitempty"`
	JoinedAt     time.Time `json:"joined_at"`
}

// WorkContact is a company member surfaced as a contact
type WorkContact struct {
	UserID       string      `json:"user_id"`
	DisplayName  string      `json:"display_name"`
	Email        string      `json:"email,omitempty"`
	DepartmentID string      `json:"department_id,omitempty"`
	RoleID       string      `json:"role_id,omitempty"`
	Status       *UserStatus `json:"status,omitempty"`
}
