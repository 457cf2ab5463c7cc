package models

import "time"

// UserAccount is a staff directory entry. Accounts are provisioned as a
// side effect of invitation approval with a temporary secret, pre-verified
// and enabled, and may later be assigned a teaching subject.
type UserAccount struct {
	BaseModel

	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	// Subject is the matière assigned to the teacher, empty when unassigned.
	Subject string `gorm:"size:100" json:"subject,omitempty"`

	EmailVerified bool `gorm:"default:false" json:"email_verified"`
	IsActive      bool `gorm:"default:true" json:"is_active"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}
