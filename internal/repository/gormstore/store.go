// Package gormstore implements repository.Store on gorm, used with the
// embedded sqlite driver for local runs and tests.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/spec-kit/parts-support/internal/domain"
	"github.com/spec-kit/parts-support/internal/repository"
)

// Store is the gorm-backed repository.Store. SQLite has no row locks, so
// GetForUpdate relies on the single-writer connection for serialisation.
type Store struct {
	db *gorm.DB
}

// New wraps an open gorm handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("gormstore: auto-migrate: %w", err)
	}
	return nil
}

func newRepositories(db *gorm.DB) repository.Repositories {
	return repository.Repositories{
		Tickets:       &ticketRepository{db: db},
		Replies:       &replyRepository{db: db},
		Users:         &userRepository{db: db},
		Notifications: &notificationRepository{db: db},
		AdminLogs:     &adminLogRepository{db: db},
	}
}

func (s *Store) Repositories() repository.Repositories {
	return newRepositories(s.db)
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, newRepositories(tx))
	})
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repository.ErrNotFound
	}
	return err
}

type ticketRepository struct {
	db *gorm.DB
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	rec := toTicketRecord(ticket)
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	result := r.db.WithContext(ctx).Model(&ticketRecord{}).Where("id = ?", ticket.ID).Updates(map[string]any{
		"status":      string(ticket.Status),
		"priority":    string(ticket.Priority),
		"category":    string(ticket.Category),
		"resolved_at": utcPtr(ticket.ResolvedAt),
		"resolved_by": ticket.ResolvedBy,
		"closed_at":   utcPtr(ticket.ClosedAt),
		"updated_at":  ticket.UpdatedAt.UTC(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	var rec ticketRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error; err != nil {
		return nil, notFound(err)
	}
	ticket := rec.toDomain()
	return &ticket, nil
}

func (r *ticketRepository) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r *ticketRepository) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	q := r.db.WithContext(ctx).Model(&ticketRecord{})
	if filter.RequesterID != nil {
		q = q.Where("requester_id = ?", *filter.RequesterID)
	}
	if filter.RequesterRole != nil {
		q = q.Where("requester_role = ?", string(*filter.RequesterRole))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}
	if len(filter.Priorities) > 0 {
		priorities := make([]string, len(filter.Priorities))
		for i, p := range filter.Priorities {
			priorities[i] = string(p)
		}
		q = q.Where("priority IN ?", priorities)
	}
	if filter.Category != nil {
		q = q.Where("category = ?", string(*filter.Category))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		q = q.Where("(LOWER(subject) LIKE ? OR LOWER(body) LIKE ?)", search, search)
	}

	limit, offset := repository.NormalizeLimit(filter.Limit, filter.Offset)
	var recs []ticketRecord
	if err := q.Order("updated_at DESC").Order("id").Limit(limit).Offset(offset).Find(&recs).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Ticket, 0, len(recs))
	for _, rec := range recs {
		result = append(result, rec.toDomain())
	}
	return result, nil
}

type replyRepository struct {
	db *gorm.DB
}

func (r *replyRepository) Create(ctx context.Context, reply *domain.Reply) error {
	rec := toReplyRecord(reply)
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *replyRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Reply, error) {
	var recs []replyRecord
	if err := r.db.WithContext(ctx).Where("ticket_id = ?", ticketID).Order("created_at ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Reply, 0, len(recs))
	for _, rec := range recs {
		result = append(result, rec.toDomain())
	}
	return result, nil
}

// LastCreatedAt loads the newest row instead of MAX(created_at) because
// sqlite returns aggregates over time columns as text.
func (r *replyRepository) LastCreatedAt(ctx context.Context, ticketID string) (*time.Time, error) {
	var rec replyRecord
	err := r.db.WithContext(ctx).Where("ticket_id = ?", ticketID).Order("created_at DESC").Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	last := rec.CreatedAt.UTC()
	return &last, nil
}

func (r *replyRepository) MarkRead(ctx context.Context, ticketID string, senderRoles []domain.Role) (int64, error) {
	if len(senderRoles) == 0 {
		return 0, nil
	}
	roles := make([]string, len(senderRoles))
	for i, role := range senderRoles {
		roles[i] = string(role)
	}
	result := r.db.WithContext(ctx).Model(&replyRecord{}).
		Where("ticket_id = ? AND sender_role IN ? AND is_read = ?", ticketID, roles, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	rec := toUserRecord(user)
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	rec := toUserRecord(user)
	result := r.db.WithContext(ctx).Model(&userRecord{}).Where("id = ?", user.ID).Updates(map[string]any{
		"name":          rec.Name,
		"email":         rec.Email,
		"password_hash": rec.PasswordHash,
		"roles":         rec.Roles,
		"role_status":   rec.RoleStatus,
		"role_request":  rec.RoleRequest,
		"updated_at":    rec.UpdatedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.fetch(ctx, "id = ?", id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.fetch(ctx, "LOWER(email) = LOWER(?)", email)
}

func (r *userRepository) GetForUpdate(ctx context.Context, id string) (*domain.User, error) {
	return r.fetch(ctx, "id = ?", id)
}

func (r *userRepository) fetch(ctx context.Context, cond string, arg any) (*domain.User, error) {
	var rec userRecord
	if err := r.db.WithContext(ctx).Where(cond, arg).Take(&rec).Error; err != nil {
		return nil, notFound(err)
	}
	user, err := rec.toDomain()
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ListPendingRequests(ctx context.Context, limit, offset int) ([]domain.User, error) {
	limit, offset = repository.NormalizeLimit(limit, offset)
	var recs []userRecord
	err := r.db.WithContext(ctx).
		Where("role_status = ? AND role_request IS NOT NULL", string(domain.ApprovalPending)).
		Order("updated_at ASC").Order("id").
		Limit(limit).Offset(offset).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.User, 0, len(recs))
	for _, rec := range recs {
		user, err := rec.toDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, nil
}

type notificationRepository struct {
	db *gorm.DB
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	rec := notificationRecord{
		ID:        n.ID,
		UserID:    n.UserID,
		Message:   n.Message,
		Type:      string(n.Type),
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt.UTC(),
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	limit, _ = repository.NormalizeLimit(limit, 0)
	var recs []notificationRecord
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&recs).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.Notification, 0, len(recs))
	for _, rec := range recs {
		result = append(result, domain.Notification{
			ID:        rec.ID,
			UserID:    rec.UserID,
			Message:   rec.Message,
			Type:      domain.NotificationType(rec.Type),
			IsRead:    rec.IsRead,
			CreatedAt: rec.CreatedAt.UTC(),
		})
	}
	return result, nil
}

type adminLogRepository struct {
	db *gorm.DB
}

func (r *adminLogRepository) Create(ctx context.Context, entry *domain.AdminLog) error {
	rec := adminLogRecord{
		ID:           entry.ID,
		AdminID:      entry.AdminID,
		Action:       entry.Action,
		TargetUserID: entry.TargetUserID,
		Details:      entry.Details,
		CreatedAt:    entry.CreatedAt.UTC(),
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *adminLogRepository) ListByTarget(ctx context.Context, userID string) ([]domain.AdminLog, error) {
	var recs []adminLogRecord
	if err := r.db.WithContext(ctx).Where("target_user_id = ?", userID).Order("created_at ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	result := make([]domain.AdminLog, 0, len(recs))
	for _, rec := range recs {
		result = append(result, domain.AdminLog{
			ID:           rec.ID,
			AdminID:      rec.AdminID,
			Action:       rec.Action,
			TargetUserID: rec.TargetUserID,
			Details:      rec.Details,
			CreatedAt:    rec.CreatedAt.UTC(),
		})
	}
	return result, nil
}
