package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/parts-support/internal/domain"
	"github.com/spec-kit/parts-support/internal/events"
)

// NotificationSink delivers a persisted notification outside the database.
type NotificationSink interface {
	Name() string
	Deliver(ctx context.Context, n domain.Notification) error
}

// Announcer posts staff-facing ticket activity.
type Announcer interface {
	Announce(ctx context.Context, text string) error
}

// Executor runs delivery work. A nil executor runs it inline.
type Executor interface {
	Submit(job func(ctx context.Context)) bool
}

// NotificationService fans committed events out to external sinks.
// Delivery is best effort: failures are logged, never returned.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	sinks      []NotificationSink
	announcer  Announcer
	executor   Executor
}

// NotificationDependencies bundles collaborators for the service.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Sinks      []NotificationSink
	Announcer  Announcer
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		logger:     logger,
		sinks:      deps.Sinks,
		announcer:  deps.Announcer,
	}
}

// UseExecutor moves delivery off the request path.
func (n *NotificationService) UseExecutor(executor Executor) {
	n.executor = executor
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketReopened, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketReplied, n.handleTicketReplied)
	n.dispatcher.Subscribe(events.EventRoleRequested, n.handleRoleRequested)
	n.dispatcher.Subscribe(events.EventRoleRequestDecided, n.handleRoleRequestDecided)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return nil
	}
	n.announce(ctx, fmt.Sprintf("New %s ticket %s from %s (%s priority): %s",
		payload.Category, event.TicketID, event.Actor.Role, payload.Priority, payload.Subject))
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok || event.Type != events.EventTicketReopened {
		return nil
	}
	n.announce(ctx, fmt.Sprintf("Ticket %s reopened by %s (was %s)", event.TicketID, event.Actor.Role, payload.OldStatus))
	return nil
}

func (n *NotificationService) handleTicketReplied(ctx context.Context, event events.Event) error {
	n.logger.Debug("TicketReplied", zap.String("ticket_id", event.TicketID), zap.String("role", string(event.Actor.Role)))
	return nil
}

func (n *NotificationService) handleRoleRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RoleRequestedPayload)
	if !ok {
		return nil
	}
	n.logger.Info("RoleRequested", zap.String("user_id", event.Actor.UserID), zap.String("role", string(payload.Role)))
	n.announce(ctx, fmt.Sprintf("User %s requested the %s role", event.Actor.UserID, payload.Role))
	return nil
}

func (n *NotificationService) handleRoleRequestDecided(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RoleRequestDecidedPayload)
	if !ok {
		return nil
	}
	n.logger.Info("RoleRequestDecided",
		zap.String("user_id", payload.Notification.UserID),
		zap.String("decision", payload.Decision),
		zap.String("role", string(payload.Role)))
	notification := payload.Notification
	for _, sink := range n.sinks {
		sink := sink
		n.run(ctx, func(ctx context.Context) {
			if err := sink.Deliver(ctx, notification); err != nil {
				n.logger.Warn("notification delivery failed",
					zap.String("sink", sink.Name()),
					zap.String("notification_id", notification.ID),
					zap.Error(err))
			}
		})
	}
	return nil
}

func (n *NotificationService) announce(ctx context.Context, text string) {
	if n.announcer == nil {
		return
	}
	n.run(ctx, func(ctx context.Context) {
		if err := n.announcer.Announce(ctx, text); err != nil {
			n.logger.Warn("announcement failed", zap.Error(err))
		}
	})
}

func (n *NotificationService) run(ctx context.Context, job func(ctx context.Context)) {
	if n.executor == nil {
		job(ctx)
		return
	}
	if !n.executor.Submit(job) {
		n.logger.Warn("notification queue full; dropping delivery")
	}
}
