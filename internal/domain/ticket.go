package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

var ticketStatusLabels = map[TicketStatus]string{
	TicketStatusOpen:       "Open",
	TicketStatusInProgress: "In Progress",
	TicketStatusResolved:   "Resolved",
	TicketStatusClosed:     "Closed",
}

// Valid reports whether the status is part of the enum.
func (s TicketStatus) Valid() bool {
	_, ok := ticketStatusLabels[s]
	return ok
}

// Label returns the human-readable status name.
func (s TicketStatus) Label() string {
	if label, ok := ticketStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// TicketStatuses lists every status.
func TicketStatuses() []TicketStatus {
	return []TicketStatus{TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed}
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Valid reports whether the priority is part of the enum.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// TicketCategory groups tickets by topic.
type TicketCategory string

const (
	TicketCategoryOrder     TicketCategory = "order"
	TicketCategoryPayment   TicketCategory = "payment"
	TicketCategoryAccount   TicketCategory = "account"
	TicketCategoryTechnical TicketCategory = "technical"
	TicketCategoryOther     TicketCategory = "other"
)

// Valid reports whether the category is part of the enum.
func (c TicketCategory) Valid() bool {
	switch c {
	case TicketCategoryOrder, TicketCategoryPayment, TicketCategoryAccount, TicketCategoryTechnical, TicketCategoryOther:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
// ResolvedAt/ResolvedBy are set only while resolved, ClosedAt only while closed.
type Ticket struct {
	ID            string
	RequesterID   string
	RequesterRole Role
	Subject       string
	Body          string
	Category      TicketCategory
	Priority      TicketPriority
	Status        TicketStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ResolvedAt    *time.Time
	ResolvedBy    *string
	ClosedAt      *time.Time
}
