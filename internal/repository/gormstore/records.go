package gormstore

import (
	"fmt"
	"time"

	"github.com/spec-kit/parts-support/internal/domain"
)

// Timestamps are written by the services, so gorm's auto-time hooks stay off.

type ticketRecord struct {
	ID            string    `gorm:"primaryKey;size:36"`
	RequesterID   string    `gorm:"size:36;not null;index"`
	RequesterRole string    `gorm:"size:16;not null"`
	Subject       string    `gorm:"not null"`
	Body          string    `gorm:"type:text;not null"`
	Category      string    `gorm:"size:16;not null;default:other"`
	Priority      string    `gorm:"size:16;not null;default:medium"`
	Status        string    `gorm:"size:16;not null;default:open;index"`
	CreatedAt     time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime:false;index"`
	ResolvedAt    *time.Time
	ResolvedBy    *string `gorm:"size:36"`
	ClosedAt      *time.Time
}

func (ticketRecord) TableName() string { return "tickets" }

type replyRecord struct {
	ID         string    `gorm:"primaryKey;size:36"`
	TicketID   string    `gorm:"size:36;not null;index:idx_reply_ticket_created"`
	SenderID   string    `gorm:"size:36;not null"`
	SenderRole string    `gorm:"size:16;not null"`
	Message    string    `gorm:"type:text;not null"`
	IsSystem   bool      `gorm:"not null;default:false"`
	IsRead     bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"autoCreateTime:false;index:idx_reply_ticket_created"`
}

func (replyRecord) TableName() string { return "ticket_replies" }

type userRecord struct {
	ID           string    `gorm:"primaryKey;size:36"`
	Name         string    `gorm:"not null"`
	Email        string    `gorm:"not null;uniqueIndex"`
	PasswordHash string    `gorm:"not null"`
	Roles        string    `gorm:"size:64;not null;default:buyer"`
	RoleStatus   string    `gorm:"size:16;not null;default:none;index"`
	RoleRequest  *string   `gorm:"size:16"`
	CreatedAt    time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false"`
}

func (userRecord) TableName() string { return "users" }

type notificationRecord struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"size:36;not null;index"`
	Message   string    `gorm:"type:text;not null"`
	Type      string    `gorm:"size:32;not null"`
	IsRead    bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
}

func (notificationRecord) TableName() string { return "notifications" }

type adminLogRecord struct {
	ID           string    `gorm:"primaryKey;size:36"`
	AdminID      string    `gorm:"size:36;not null"`
	Action       string    `gorm:"size:32;not null"`
	TargetUserID string    `gorm:"size:36;not null;index"`
	Details      string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"autoCreateTime:false"`
}

func (adminLogRecord) TableName() string { return "admin_logs" }

// allModels lists every table managed by AutoMigrate.
func allModels() []any {
	return []any{
		&userRecord{},
		&ticketRecord{},
		&replyRecord{},
		&notificationRecord{},
		&adminLogRecord{},
	}
}

func toTicketRecord(t *domain.Ticket) ticketRecord {
	return ticketRecord{
		ID:            t.ID,
		RequesterID:   t.RequesterID,
		RequesterRole: string(t.RequesterRole),
		Subject:       t.Subject,
		Body:          t.Body,
		Category:      string(t.Category),
		Priority:      string(t.Priority),
		Status:        string(t.Status),
		CreatedAt:     t.CreatedAt.UTC(),
		UpdatedAt:     t.UpdatedAt.UTC(),
		ResolvedAt:    utcPtr(t.ResolvedAt),
		ResolvedBy:    t.ResolvedBy,
		ClosedAt:      utcPtr(t.ClosedAt),
	}
}

func (r ticketRecord) toDomain() domain.Ticket {
	return domain.Ticket{
		ID:            r.ID,
		RequesterID:   r.RequesterID,
		RequesterRole: domain.Role(r.RequesterRole),
		Subject:       r.Subject,
		Body:          r.Body,
		Category:      domain.TicketCategory(r.Category),
		Priority:      domain.TicketPriority(r.Priority),
		Status:        domain.TicketStatus(r.Status),
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
		ResolvedAt:    utcPtr(r.ResolvedAt),
		ResolvedBy:    r.ResolvedBy,
		ClosedAt:      utcPtr(r.ClosedAt),
	}
}

func toReplyRecord(r *domain.Reply) replyRecord {
	return replyRecord{
		ID:         r.ID,
		TicketID:   r.TicketID,
		SenderID:   r.SenderID,
		SenderRole: string(r.SenderRole),
		Message:    r.Message,
		IsSystem:   r.IsSystem,
		IsRead:     r.IsRead,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

func (r replyRecord) toDomain() domain.Reply {
	return domain.Reply{
		ID:         r.ID,
		TicketID:   r.TicketID,
		SenderID:   r.SenderID,
		SenderRole: domain.Role(r.SenderRole),
		Message:    r.Message,
		IsSystem:   r.IsSystem,
		IsRead:     r.IsRead,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

func toUserRecord(u *domain.User) userRecord {
	var request *string
	if u.RoleRequest != nil {
		value := string(*u.RoleRequest)
		request = &value
	}
	return userRecord{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Roles:        u.Roles.String(),
		RoleStatus:   string(u.RoleStatus),
		RoleRequest:  request,
		CreatedAt:    u.CreatedAt.UTC(),
		UpdatedAt:    u.UpdatedAt.UTC(),
	}
}

func (r userRecord) toDomain() (domain.User, error) {
	roles, err := domain.ParseRoleSet(r.Roles)
	if err != nil {
		return domain.User{}, fmt.Errorf("user %s: %w", r.ID, err)
	}
	user := domain.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Roles:        roles,
		RoleStatus:   domain.ApprovalStatus(r.RoleStatus),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.RoleRequest != nil {
		role := domain.Role(*r.RoleRequest)
		user.RoleRequest = &role
	}
	return user, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
