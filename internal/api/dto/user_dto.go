package dto

import (
	"time"

	"github.com/spec-kit/parts-support/internal/domain"
)

// UserRegisterRequest payload for new users.
type UserRegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UserLoginRequest payload for login.
type UserLoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RoleRequestRequest asks for an additional role.
type RoleRequestRequest struct {
	Role domain.Role `json:"role" validate:"required,oneof=seller support admin"`
}

// RoleDecisionRequest carries an admin verdict.
type RoleDecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Email       string                `json:"email"`
	Roles       []domain.Role         `json:"roles"`
	RoleStatus  domain.ApprovalStatus `json:"role_status"`
	RoleRequest *domain.Role          `json:"role_request"`
	CreatedAt   time.Time             `json:"created_at"`
}

// NotificationResponse is one user notification.
type NotificationResponse struct {
	ID        string                  `json:"id"`
	Type      domain.NotificationType `json:"type"`
	Message   string                  `json:"message"`
	IsRead    bool                    `json:"is_read"`
	CreatedAt time.Time               `json:"created_at"`
}

// RoleDecisionResponse summarizes a committed decision.
type RoleDecisionResponse struct {
	Decision     string               `json:"decision"`
	Role         domain.Role          `json:"role"`
	User         UserResponse         `json:"user"`
	Notification NotificationResponse `json:"notification"`
}

// NewUserResponse maps a user.
func NewUserResponse(user *domain.User) UserResponse {
	roles := make([]domain.Role, 0, len(user.Roles))
	roles = append(roles, user.Roles...)
	return UserResponse{
		ID:          user.ID,
		Name:        user.Name,
		Email:       user.Email,
		Roles:       roles,
		RoleStatus:  user.RoleStatus,
		RoleRequest: user.RoleRequest,
		CreatedAt:   user.CreatedAt,
	}
}

// NewNotificationResponse maps a notification.
func NewNotificationResponse(n *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

// AdminLogResponse is one audit entry for a user.
type AdminLogResponse struct {
	ID        string    `json:"id"`
	AdminID   string    `json:"admin_id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAdminLogResponse maps an audit entry.
func NewAdminLogResponse(entry *domain.AdminLog) AdminLogResponse {
	return AdminLogResponse{
		ID:        entry.ID,
		AdminID:   entry.AdminID,
		Action:    entry.Action,
		Details:   entry.Details,
		CreatedAt: entry.CreatedAt,
	}
}
