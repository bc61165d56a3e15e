package domain

import "time"

// ApprovalStatus tracks the latest role request of a user.
type ApprovalStatus string

const (
	ApprovalNone     ApprovalStatus = "none"
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// User is a marketplace account. Roles holds every granted role;
// RoleRequest is set only while a request is pending.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Roles        RoleSet
	RoleStatus   ApprovalStatus
	RoleRequest  *Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPendingRequest reports whether an admin decision is outstanding.
func (u *User) HasPendingRequest() bool {
	return u.RoleStatus == ApprovalPending && u.RoleRequest != nil
}
