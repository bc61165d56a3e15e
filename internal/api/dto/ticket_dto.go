package dto

import (
	"time"

	"github.com/spec-kit/parts-support/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject  string                `json:"subject" validate:"required"`
	Body     string                `json:"body" validate:"required"`
	Category domain.TicketCategory `json:"category" validate:"omitempty,oneof=order payment account technical other"`
	Priority domain.TicketPriority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
}

// CreateReplyRequest payload.
type CreateReplyRequest struct {
	Message string `json:"message" validate:"required"`
}

// UpdateStatusRequest payload for staff transitions.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status" validate:"required"`
}

// TicketSummary response.
type TicketSummary struct {
	ID            string                `json:"id"`
	RequesterID   string                `json:"requester_id"`
	RequesterRole domain.Role           `json:"requester_role"`
	Subject       string                `json:"subject"`
	Category      domain.TicketCategory `json:"category"`
	Priority      domain.TicketPriority `json:"priority"`
	Status        domain.TicketStatus   `json:"status"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	ResolvedAt    *time.Time            `json:"resolved_at"`
	ResolvedBy    *string               `json:"resolved_by"`
	ClosedAt      *time.Time            `json:"closed_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Body    string          `json:"body"`
	Replies []ReplyResponse `json:"replies"`
	// MarkedRead is how many replies this view flagged as read.
	MarkedRead int64 `json:"marked_read"`
}

// ReplyResponse represents one thread entry.
type ReplyResponse struct {
	ID         string      `json:"id"`
	SenderID   string      `json:"sender_id"`
	SenderRole domain.Role `json:"sender_role"`
	Message    string      `json:"message"`
	IsSystem   bool        `json:"is_system"`
	IsRead     bool        `json:"is_read"`
	CreatedAt  time.Time   `json:"created_at"`
}

// ReplyCreatedResponse is returned after posting a reply.
type ReplyCreatedResponse struct {
	Ticket TicketSummary `json:"ticket"`
	Reply  ReplyResponse `json:"reply"`
}

// TransitionResponse is returned after a status change or reopen.
type TransitionResponse struct {
	Ticket      TicketSummary `json:"ticket"`
	SystemReply ReplyResponse `json:"system_reply"`
}

// NewTicketSummary maps a ticket.
func NewTicketSummary(ticket *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:            ticket.ID,
		RequesterID:   ticket.RequesterID,
		RequesterRole: ticket.RequesterRole,
		Subject:       ticket.Subject,
		Category:      ticket.Category,
		Priority:      ticket.Priority,
		Status:        ticket.Status,
		CreatedAt:     ticket.CreatedAt,
		UpdatedAt:     ticket.UpdatedAt,
		ResolvedAt:    ticket.ResolvedAt,
		ResolvedBy:    ticket.ResolvedBy,
		ClosedAt:      ticket.ClosedAt,
	}
}

// NewReplyResponse maps a reply.
func NewReplyResponse(reply *domain.Reply) ReplyResponse {
	return ReplyResponse{
		ID:         reply.ID,
		SenderID:   reply.SenderID,
		SenderRole: reply.SenderRole,
		Message:    reply.Message,
		IsSystem:   reply.IsSystem,
		IsRead:     reply.IsRead,
		CreatedAt:  reply.CreatedAt,
	}
}

// NewTicketDetail maps a ticket with its thread.
func NewTicketDetail(ticket *domain.Ticket, replies []domain.Reply, markedRead int64) TicketDetailResponse {
	items := make([]ReplyResponse, 0, len(replies))
	for i := range replies {
		items = append(items, NewReplyResponse(&replies[i]))
	}
	return TicketDetailResponse{
		TicketSummary: NewTicketSummary(ticket),
		Body:          ticket.Body,
		Replies:       items,
		MarkedRead:    markedRead,
	}
}
