package events

import (
	"time"

	"github.com/spec-kit/parts-support/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketReplied       EventType = "ticket_replied"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketReopened      EventType = "ticket_reopened"
	EventRoleRequested       EventType = "role_requested"
	EventRoleRequestDecided  EventType = "role_request_decided"
)

// Actor identifies who caused the event and in which role.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Subject  string                `json:"subject"`
	Category domain.TicketCategory `json:"category"`
	Priority domain.TicketPriority `json:"priority"`
}

// TicketRepliedPayload payload.
type TicketRepliedPayload struct {
	ReplyID     string `json:"reply_id"`
	BodyPreview string `json:"body_preview"`
	// AutoStarted is set when the reply moved the ticket from open to in_progress.
	AutoStarted bool `json:"auto_started"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// RoleRequestedPayload payload.
type RoleRequestedPayload struct {
	Role domain.Role `json:"role"`
}

// RoleRequestDecidedPayload carries the notification persisted with the decision.
type RoleRequestDecidedPayload struct {
	Decision     string              `json:"decision"`
	Role         domain.Role         `json:"role"`
	Notification domain.Notification `json:"notification"`
}
