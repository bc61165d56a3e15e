package domain

import "time"

// NotificationType tags a user notification.
type NotificationType string

const (
	NotificationRoleApproved NotificationType = "role_approved"
	NotificationRoleRejected NotificationType = "role_rejected"
)

// Notification is a message addressed to a single user.
type Notification struct {
	ID        string
	UserID    string
	Message   string
	Type      NotificationType
	IsRead    bool
	CreatedAt time.Time
}

// AdminActionRoleDecision is the audit action recorded for role decisions.
const AdminActionRoleDecision = "role_action"

// AdminLog is an immutable record of an administrative action.
type AdminLog struct {
	ID           string
	AdminID      string
	Action       string
	TargetUserID string
	Details      string
	CreatedAt    time.Time
}
