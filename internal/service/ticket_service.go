package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/parts-support/internal/domain"
	"github.com/spec-kit/parts-support/internal/events"
	"github.com/spec-kit/parts-support/internal/repository"
	apperrors "github.com/spec-kit/parts-support/pkg/util"
)

const (
	minSubjectLength = 3
	minBodyLength    = 10
)

// TicketService runs the ticket lifecycle: submission, threading, read
// tracking and status transitions.
type TicketService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// TicketSubmitInput describes a new ticket.
type TicketSubmitInput struct {
	Subject  string
	Body     string
	Category domain.TicketCategory
	Priority domain.TicketPriority
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Category   *domain.TicketCategory
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketView is a ticket with its thread, as loaded before read-marking.
type TicketView struct {
	Ticket  domain.Ticket
	Replies []domain.Reply
	// MarkedRead counts replies flagged read by this view.
	MarkedRead int64
}

// ReplyResult is the outcome of a reply submission.
type ReplyResult struct {
	Ticket domain.Ticket
	Reply  domain.Reply
}

// TransitionResult is the outcome of an explicit status change or reopen.
type TransitionResult struct {
	Ticket      domain.Ticket
	SystemReply domain.Reply
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        clock,
	}
}

// SubmitTicket opens a ticket for a buyer or seller.
func (s *TicketService) SubmitTicket(ctx context.Context, actor domain.Actor, input TicketSubmitInput) (*domain.Ticket, error) {
	if _, err := scopeFor(actor, actionSubmit); err != nil {
		return nil, err
	}

	subject := strings.TrimSpace(input.Subject)
	body := strings.TrimSpace(input.Body)
	details := map[string]any{}
	if utf8.RuneCountInString(subject) < minSubjectLength {
		details["subject"] = "must be at least 3 characters"
	}
	if utf8.RuneCountInString(body) < minBodyLength {
		details["body"] = "must be at least 10 characters"
	}
	category := input.Category
	if category == "" {
		category = domain.TicketCategoryOther
	}
	if !category.Valid() {
		details["category"] = "unknown category"
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		details["priority"] = "unknown priority"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", details)
	}

	now := s.timestamp()
	ticket := &domain.Ticket{
		ID:            uuid.NewString(),
		RequesterID:   actor.ID,
		RequesterRole: actor.Acting,
		Subject:       subject,
		Body:          body,
		Category:      category,
		Priority:      priority,
		Status:        domain.TicketStatusOpen,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Repositories().Tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.NewStorageError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    eventActor(actor),
		Payload: events.TicketCreatedPayload{
			Subject:  ticket.Subject,
			Category: ticket.Category,
			Priority: ticket.Priority,
		},
	})
	return ticket, nil
}

// ListTickets lists the requester's own tickets, or every ticket for staff.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	reach, err := scopeFor(actor, actionView)
	if err != nil {
		return nil, err
	}
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, apperrors.NewValidationError("invalid status filter", map[string]any{"status": string(status)})
		}
	}
	for _, priority := range filter.Priorities {
		if !priority.Valid() {
			return nil, apperrors.NewValidationError("invalid priority filter", map[string]any{"priority": string(priority)})
		}
	}
	if filter.Category != nil && !filter.Category.Valid() {
		return nil, apperrors.NewValidationError("invalid category filter", map[string]any{"category": string(*filter.Category)})
	}

	repoFilter := repository.TicketFilter{
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		Category:   filter.Category,
		SearchTerm: filter.SearchTerm,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	if reach == scopeOwn {
		requesterID := actor.ID
		requesterRole := actor.Acting
		repoFilter.RequesterID = &requesterID
		repoFilter.RequesterRole = &requesterRole
	}

	tickets, err := s.store.Repositories().Tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return tickets, nil
}

// ViewTicket returns the ticket with its thread and then marks the
// counterpart's replies read for the viewer.
func (s *TicketService) ViewTicket(ctx context.Context, actor domain.Actor, ticketID string) (*TicketView, error) {
	reach, err := scopeFor(actor, actionView)
	if err != nil {
		return nil, err
	}

	var view TicketView
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		ticket, err := repos.Tickets.GetByID(ctx, ticketID)
		if err != nil {
			return ticketLookupError(err, ticketID)
		}
		if err := checkTicketAccess(actor, reach, ticket); err != nil {
			return err
		}
		replies, err := repos.Replies.ListByTicket(ctx, ticket.ID)
		if err != nil {
			return err
		}
		marked, err := s.markRead(ctx, repos, actor, ticket.ID)
		if err != nil {
			return err
		}
		view = TicketView{Ticket: *ticket, Replies: replies, MarkedRead: marked}
		return nil
	})
	if err != nil {
		return nil, operationError(err)
	}
	if view.Replies == nil {
		view.Replies = []domain.Reply{}
	}
	return &view, nil
}

// markRead flags the counterpart's unread replies as read in one batch.
func (s *TicketService) markRead(ctx context.Context, repos repository.Repositories, actor domain.Actor, ticketID string) (int64, error) {
	roles := readerRoles(actor.Acting)
	if len(roles) == 0 {
		return 0, nil
	}
	return repos.Replies.MarkRead(ctx, ticketID, roles)
}

// ReplyToTicket appends a reply. A staff-side reply to an open ticket
// also moves it to in_progress in the same transaction.
func (s *TicketService) ReplyToTicket(ctx context.Context, actor domain.Actor, ticketID, message string) (*ReplyResult, error) {
	reach, err := scopeFor(actor, actionReply)
	if err != nil {
		return nil, err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.NewValidationError("message is required", map[string]any{"message": "must not be empty"})
	}

	var (
		result      ReplyResult
		autoStarted bool
		oldStatus   domain.TicketStatus
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		ticket, err := repos.Tickets.GetForUpdate(ctx, ticketID)
		if err != nil {
			return ticketLookupError(err, ticketID)
		}
		if err := checkTicketAccess(actor, reach, ticket); err != nil {
			return err
		}
		oldStatus = ticket.Status

		now := s.timestamp()
		reply, err := s.appendReply(ctx, repos, ticket.ID, actor, message, false, now)
		if err != nil {
			return err
		}

		ticket.UpdatedAt = now
		if actor.Acting.IsStaff() {
			if t, ok := lookupTransition(ticket.Status, eventStaffReply, domain.TicketStatusInProgress); ok {
				t.apply(ticket, actor.ID, now)
				autoStarted = true
			}
		}
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		result = ReplyResult{Ticket: *ticket, Reply: *reply}
		return nil
	})
	if err != nil {
		return nil, operationError(err)
	}

	event := events.Event{
		Type:     events.EventTicketReplied,
		TicketID: result.Ticket.ID,
		Actor:    eventActor(actor),
		Payload: events.TicketRepliedPayload{
			ReplyID:     result.Reply.ID,
			BodyPreview: stringPreview(result.Reply.Message, 120),
			AutoStarted: autoStarted,
		},
	}
	s.publishEvent(ctx, event)
	if autoStarted {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: result.Ticket.ID,
			Actor:    eventActor(actor),
			Payload: events.TicketStatusChangedPayload{
				OldStatus: oldStatus,
				NewStatus: result.Ticket.Status,
			},
		})
	}
	return &result, nil
}

// UpdateStatus applies an explicit staff transition and records it as a
// system reply.
func (s *TicketService) UpdateStatus(ctx context.Context, actor domain.Actor, ticketID string, status domain.TicketStatus) (*TransitionResult, error) {
	reach, err := scopeFor(actor, actionChangeStatus)
	if err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": string(status)})
	}
	return s.transition(ctx, actor, reach, ticketID, eventSetStatus, status, events.EventTicketStatusChanged)
}

// ReopenTicket moves the requester's resolved ticket back to open.
func (s *TicketService) ReopenTicket(ctx context.Context, actor domain.Actor, ticketID string) (*TransitionResult, error) {
	reach, err := scopeFor(actor, actionReopen)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, reach, ticketID, eventReopen, domain.TicketStatusOpen, events.EventTicketReopened)
}

func (s *TicketService) transition(ctx context.Context, actor domain.Actor, reach scope, ticketID string, ev ticketEvent, target domain.TicketStatus, eventType events.EventType) (*TransitionResult, error) {
	var (
		result    TransitionResult
		oldStatus domain.TicketStatus
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		ticket, err := repos.Tickets.GetForUpdate(ctx, ticketID)
		if err != nil {
			return ticketLookupError(err, ticketID)
		}
		if err := checkTicketAccess(actor, reach, ticket); err != nil {
			return err
		}
		t, ok := lookupTransition(ticket.Status, ev, target)
		if !ok {
			return apperrors.NewConflict("ticket cannot be "+transitionVerb(ev)+" from its current status", map[string]any{
				"status": string(ticket.Status),
			})
		}
		oldStatus = ticket.Status

		now := s.timestamp()
		t.apply(ticket, actor.ID, now)
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		if t.effects.has(effectSystemReply) {
			reply, err := s.appendReply(ctx, repos, ticket.ID, actor, t.systemMessage(actor.Acting), true, now)
			if err != nil {
				return err
			}
			result.SystemReply = *reply
		}
		result.Ticket = *ticket
		return nil
	})
	if err != nil {
		return nil, operationError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     eventType,
		TicketID: result.Ticket.ID,
		Actor:    eventActor(actor),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: result.Ticket.Status,
		},
	})
	return &result, nil
}

// appendReply writes a reply whose created_at is strictly after every
// earlier reply on the ticket.
func (s *TicketService) appendReply(ctx context.Context, repos repository.Repositories, ticketID string, actor domain.Actor, message string, system bool, now time.Time) (*domain.Reply, error) {
	createdAt := now
	last, err := repos.Replies.LastCreatedAt(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if last != nil && !createdAt.After(*last) {
		createdAt = last.Add(time.Microsecond)
	}

	reply := &domain.Reply{
		ID:         uuid.NewString(),
		TicketID:   ticketID,
		SenderID:   actor.ID,
		SenderRole: senderRole(actor.Acting),
		Message:    message,
		IsSystem:   system,
		IsRead:     false,
		CreatedAt:  createdAt,
	}
	if err := repos.Replies.Create(ctx, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (s *TicketService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.timestamp()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func transitionVerb(ev ticketEvent) string {
	if ev == eventReopen {
		return "reopened"
	}
	return "changed"
}

func ticketLookupError(err error, ticketID string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return err
}

// operationError passes domain errors through and hides everything else
// behind a storage error.
func operationError(err error) error {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("resource", nil)
	}
	return apperrors.NewStorageError(err)
}

func eventActor(actor domain.Actor) events.Actor {
	return events.Actor{UserID: actor.ID, Role: actor.Acting}
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= max {
		return body
	}
	runes := []rune(body)
	return string(runes[:max-3]) + "..."
}
