package domain

import "time"

// Reply is one entry of a ticket thread. Replies are append-only and
// ordered by CreatedAt. System replies record lifecycle changes and are
// attributed to the agent that caused them.
type Reply struct {
	ID         string
	TicketID   string
	SenderID   string
	SenderRole Role
	Message    string
	IsSystem   bool
	IsRead     bool
	CreatedAt  time.Time
}
