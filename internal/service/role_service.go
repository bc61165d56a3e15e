package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/parts-support/internal/domain"
	"github.com/spec-kit/parts-support/internal/events"
	"github.com/spec-kit/parts-support/internal/repository"
	apperrors "github.com/spec-kit/parts-support/pkg/util"
)

// RoleDecision is an admin verdict on a pending role request.
type RoleDecision string

const (
	DecisionApprove RoleDecision = "approve"
	DecisionReject  RoleDecision = "reject"
)

// ParseRoleDecision validates raw.
func ParseRoleDecision(raw string) (RoleDecision, error) {
	switch RoleDecision(raw) {
	case DecisionApprove, DecisionReject:
		return RoleDecision(raw), nil
	}
	return "", apperrors.NewValidationError("decision must be approve or reject", map[string]any{"decision": raw})
}

// RoleService runs the role-request approval workflow.
type RoleService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// RoleDependencies bundles collaborators for the role service.
type RoleDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// RoleDecisionResult is the committed outcome of a decision.
type RoleDecisionResult struct {
	Decision     RoleDecision
	Role         domain.Role
	User         domain.User
	Notification domain.Notification
	AdminLog     domain.AdminLog
}

// NewRoleService constructs the service.
func NewRoleService(deps RoleDependencies) *RoleService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleService{store: deps.Store, dispatcher: deps.Dispatcher, logger: logger, now: clock}
}

// RequestRole records a pending request for role.
func (s *RoleService) RequestRole(ctx context.Context, userID string, role domain.Role) (*domain.User, error) {
	if !role.IsGrantable() {
		return nil, apperrors.NewValidationError("role cannot be requested", map[string]any{"role": string(role)})
	}

	var updated domain.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		user, err := repos.Users.GetForUpdate(ctx, userID)
		if err != nil {
			return userLookupError(err, userID)
		}
		if user.Roles.Has(role) {
			return apperrors.NewConflict("role already granted", map[string]any{"role": string(role)})
		}
		if user.HasPendingRequest() {
			return apperrors.NewConflict("a role request is already pending", map[string]any{"role": string(*user.RoleRequest)})
		}
		requested := role
		user.RoleRequest = &requested
		user.RoleStatus = domain.ApprovalPending
		user.UpdatedAt = s.timestamp()
		if err := repos.Users.Update(ctx, user); err != nil {
			return err
		}
		updated = *user
		return nil
	})
	if err != nil {
		return nil, operationError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventRoleRequested,
		Actor:   events.Actor{UserID: userID},
		Payload: events.RoleRequestedPayload{Role: role},
	})
	return &updated, nil
}

// DecideRoleRequest approves or rejects a pending request. The role merge,
// status change, notification row and audit row commit together.
func (s *RoleService) DecideRoleRequest(ctx context.Context, admin domain.Actor, userID string, decision RoleDecision) (*RoleDecisionResult, error) {
	if admin.Acting != domain.RoleAdmin || !admin.HoldsActingRole() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	if _, err := ParseRoleDecision(string(decision)); err != nil {
		return nil, err
	}

	var result RoleDecisionResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		user, err := repos.Users.GetForUpdate(ctx, userID)
		if err != nil {
			return userLookupError(err, userID)
		}
		if !user.HasPendingRequest() {
			return apperrors.NewConflict("no pending role request", map[string]any{"status": string(user.RoleStatus)})
		}
		role := *user.RoleRequest
		now := s.timestamp()

		notification := domain.Notification{
			ID:        uuid.NewString(),
			UserID:    user.ID,
			CreatedAt: now,
		}
		switch decision {
		case DecisionApprove:
			if !role.IsGrantable() {
				return apperrors.NewValidationError("requested role cannot be granted", map[string]any{"role": string(role)})
			}
			user.Roles = user.Roles.With(role)
			user.RoleStatus = domain.ApprovalApproved
			notification.Type = domain.NotificationRoleApproved
			notification.Message = fmt.Sprintf("Your request to become a %s has been approved!", role.Label())
		case DecisionReject:
			user.RoleStatus = domain.ApprovalRejected
			notification.Type = domain.NotificationRoleRejected
			notification.Message = "Your role request has been rejected."
		}
		user.RoleRequest = nil
		user.UpdatedAt = now

		if err := repos.Users.Update(ctx, user); err != nil {
			return err
		}
		if err := repos.Notifications.Create(ctx, &notification); err != nil {
			return err
		}
		entry := domain.AdminLog{
			ID:           uuid.NewString(),
			AdminID:      admin.ID,
			Action:       domain.AdminActionRoleDecision,
			TargetUserID: user.ID,
			Details:      fmt.Sprintf("%s: %s", decision, role),
			CreatedAt:    now,
		}
		if err := repos.AdminLogs.Create(ctx, &entry); err != nil {
			return err
		}
		result = RoleDecisionResult{
			Decision:     decision,
			Role:         role,
			User:         *user,
			Notification: notification,
			AdminLog:     entry,
		}
		return nil
	})
	if err != nil {
		return nil, operationError(err)
	}

	s.logger.Info("role request decided",
		zap.String("admin_id", admin.ID),
		zap.String("user_id", userID),
		zap.String("decision", string(decision)))
	s.publishEvent(ctx, events.Event{
		Type:  events.EventRoleRequestDecided,
		Actor: events.Actor{UserID: admin.ID, Role: domain.RoleAdmin},
		Payload: events.RoleRequestDecidedPayload{
			Decision:     string(decision),
			Role:         result.Role,
			Notification: result.Notification,
		},
	})
	return &result, nil
}

// ListPendingRoleRequests lists users awaiting a decision.
func (s *RoleService) ListPendingRoleRequests(ctx context.Context, admin domain.Actor, limit, offset int) ([]domain.User, error) {
	if admin.Acting != domain.RoleAdmin || !admin.HoldsActingRole() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	users, err := s.store.Repositories().Users.ListPendingRequests(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return users, nil
}

// ListRoleDecisions returns the admin audit entries recorded against a user, oldest first.
func (s *RoleService) ListRoleDecisions(ctx context.Context, admin domain.Actor, userID string) ([]domain.AdminLog, error) {
	if admin.Acting != domain.RoleAdmin || !admin.HoldsActingRole() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	repos := s.store.Repositories()
	if _, err := repos.Users.GetByID(ctx, userID); err != nil {
		return nil, operationError(userLookupError(err, userID))
	}
	logs, err := repos.AdminLogs.ListByTarget(ctx, userID)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	if logs == nil {
		logs = []domain.AdminLog{}
	}
	return logs, nil
}

// ListNotifications returns the user's notifications, newest first.
func (s *RoleService) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	list, err := s.store.Repositories().Notifications.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	if list == nil {
		list = []domain.Notification{}
	}
	return list, nil
}

func (s *RoleService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *RoleService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = s.timestamp()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func userLookupError(err error, userID string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("user", map[string]any{"user_id": userID})
	}
	return err
}
