package repository

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/parts-support/internal/domain"
)

// ErrNotFound is returned by every store implementation when a row is missing.
var ErrNotFound = errors.New("repository: record not found")

// TicketFilter captures listing parameters.
type TicketFilter struct {
	RequesterID   *string
	RequesterRole *domain.Role
	Statuses      []domain.TicketStatus
	Priorities    []domain.TicketPriority
	Category      *domain.TicketCategory
	SearchTerm    *string
	Limit         int
	Offset        int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetForUpdate loads the ticket and locks its row until the enclosing transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

// ReplyRepository manages ticket thread replies.
type ReplyRepository interface {
	Create(ctx context.Context, reply *domain.Reply) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Reply, error)
	// LastCreatedAt returns the newest reply timestamp, or nil for an empty thread.
	LastCreatedAt(ctx context.Context, ticketID string) (*time.Time, error)
	// MarkRead flags unread replies from the given sender roles as read.
	MarkRead(ctx context.Context, ticketID string, senderRoles []domain.Role) (int64, error)
}

// UserRepository defines persistence access for accounts and role requests.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetForUpdate(ctx context.Context, id string) (*domain.User, error)
	ListPendingRequests(ctx context.Context, limit, offset int) ([]domain.User, error)
}

// NotificationRepository stores user notifications.
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
}

// AdminLogRepository stores admin audit entries.
type AdminLogRepository interface {
	Create(ctx context.Context, entry *domain.AdminLog) error
	ListByTarget(ctx context.Context, userID string) ([]domain.AdminLog, error)
}

// Repositories groups repositories bound to one connection or transaction.
type Repositories struct {
	Tickets       TicketRepository
	Replies       ReplyRepository
	Users         UserRepository
	Notifications NotificationRepository
	AdminLogs     AdminLogRepository
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repositories() Repositories
	// WithinTx runs fn in one transaction. A non-nil error from fn rolls
	// everything back; otherwise the transaction commits.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	Ping(ctx context.Context) error
}

// NormalizeLimit applies the shared paging defaults.
func NormalizeLimit(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
