package service

import (
	"fmt"
	"time"

	"github.com/spec-kit/parts-support/internal/domain"
)

// ticketEvent is an input to the ticket state machine.
type ticketEvent string

const (
	eventStaffReply ticketEvent = "staff_reply"
	eventSetStatus  ticketEvent = "set_status"
	eventReopen     ticketEvent = "reopen"
)

type effect uint8

const (
	effectMarkResolved effect = 1 << iota
	effectMarkClosed
	effectClearResolved
	effectClearClosed
	effectSystemReply
)

func (e effect) has(flag effect) bool { return e&flag != 0 }

type transitionKey struct {
	from  domain.TicketStatus
	event ticketEvent
	to    domain.TicketStatus
}

type transition struct {
	from    domain.TicketStatus
	to      domain.TicketStatus
	event   ticketEvent
	effects effect
}

// enterEffects keeps the terminal markers consistent with the entered state.
var enterEffects = map[domain.TicketStatus]effect{
	domain.TicketStatusOpen:       effectClearResolved | effectClearClosed,
	domain.TicketStatusInProgress: effectClearResolved | effectClearClosed,
	domain.TicketStatusResolved:   effectMarkResolved | effectClearClosed,
	domain.TicketStatusClosed:     effectMarkClosed | effectClearResolved,
}

var transitions = buildTransitions()

func buildTransitions() map[transitionKey]effect {
	table := map[transitionKey]effect{}
	add := func(from, to domain.TicketStatus, ev ticketEvent, extra effect) {
		table[transitionKey{from: from, event: ev, to: to}] = enterEffects[to] | extra
	}

	add(domain.TicketStatusOpen, domain.TicketStatusInProgress, eventStaffReply, 0)
	add(domain.TicketStatusResolved, domain.TicketStatusOpen, eventReopen, effectSystemReply)
	for _, from := range domain.TicketStatuses() {
		for _, to := range domain.TicketStatuses() {
			add(from, to, eventSetStatus, effectSystemReply)
		}
	}
	return table
}

// lookupTransition resolves (current, event, target) against the table.
func lookupTransition(from domain.TicketStatus, ev ticketEvent, to domain.TicketStatus) (transition, bool) {
	effects, ok := transitions[transitionKey{from: from, event: ev, to: to}]
	if !ok {
		return transition{}, false
	}
	return transition{from: from, to: to, event: ev, effects: effects}, true
}

// apply mutates ticket for t. It never touches storage.
func (t transition) apply(ticket *domain.Ticket, actorID string, now time.Time) {
	ticket.Status = t.to
	if t.effects.has(effectClearResolved) {
		ticket.ResolvedAt = nil
		ticket.ResolvedBy = nil
	}
	if t.effects.has(effectClearClosed) {
		ticket.ClosedAt = nil
	}
	if t.effects.has(effectMarkResolved) {
		resolvedAt := now
		resolvedBy := actorID
		ticket.ResolvedAt = &resolvedAt
		ticket.ResolvedBy = &resolvedBy
	}
	if t.effects.has(effectMarkClosed) {
		closedAt := now
		ticket.ClosedAt = &closedAt
	}
	ticket.UpdatedAt = now
}

// systemMessage renders the audit text for transitions that record one.
func (t transition) systemMessage(acting domain.Role) string {
	switch t.event {
	case eventReopen:
		return fmt.Sprintf("Ticket reopened by %s.", acting)
	default:
		return fmt.Sprintf("Ticket status changed to '%s' by %s.", t.to.Label(), staffLabel(acting))
	}
}

func staffLabel(role domain.Role) string {
	if role == domain.RoleAdmin {
		return "admin"
	}
	return "support agent"
}
