package models

import "time"

// Invitation statuses. Once an invitation leaves StatusPending it is
// terminal; no transition moves it back or between terminal states.
const (
	InvitationStatusPending  = "pending"
	InvitationStatusApproved = "approved"
	InvitationStatusRejected = "rejected"
)

// Invitation tracks one email's request for a staff account through its
// lifecycle: request, approval or rejection, and the manual notification
// that follows approval.
type Invitation struct {
	BaseModel

	Email  string `gorm:"not null;index" json:"email"`
	Status string `gorm:"not null;default:pending;index" json:"status"`

	RequestedAt     time.Time  `gorm:"index" json:"requested_at"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `gorm:"size:200" json:"rejection_reason,omitempty"`

	// NotifiedAt is only ever set on approved invitations, exactly once.
	NotifiedAt *time.Time `json:"notified_at,omitempty"`
}

// IsTerminal reports whether the invitation reached a terminal status.
func (i *Invitation) IsTerminal() bool {
	return i.Status == InvitationStatusApproved || i.Status == InvitationStatusRejected
}
