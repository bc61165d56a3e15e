package service

import (
	"github.com/spec-kit/parts-support/internal/domain"
	apperrors "github.com/spec-kit/parts-support/pkg/util"
)

type ticketAction string

const (
	actionSubmit       ticketAction = "submit"
	actionView         ticketAction = "view"
	actionReply        ticketAction = "reply"
	actionChangeStatus ticketAction = "change_status"
	actionReopen       ticketAction = "reopen"
)

type scope int

const (
	scopeNone scope = iota
	scopeOwn
	scopeAny
)

// permissions maps action -> acting role -> reach. Missing entries deny.
var permissions = map[ticketAction]map[domain.Role]scope{
	actionSubmit: {
		domain.RoleBuyer:  scopeOwn,
		domain.RoleSeller: scopeOwn,
	},
	actionView: {
		domain.RoleBuyer:   scopeOwn,
		domain.RoleSeller:  scopeOwn,
		domain.RoleSupport: scopeAny,
		domain.RoleAdmin:   scopeAny,
	},
	actionReply: {
		domain.RoleBuyer:   scopeOwn,
		domain.RoleSeller:  scopeOwn,
		domain.RoleSupport: scopeAny,
		domain.RoleAdmin:   scopeAny,
	},
	actionChangeStatus: {
		domain.RoleSupport: scopeAny,
		domain.RoleAdmin:   scopeAny,
	},
	actionReopen: {
		domain.RoleBuyer:  scopeOwn,
		domain.RoleSeller: scopeOwn,
	},
}

// scopeFor returns the reach of actor for action, failing when the actor
// does not hold its acting role or the table grants nothing.
func scopeFor(actor domain.Actor, action ticketAction) (scope, error) {
	if !actor.HoldsActingRole() {
		return scopeNone, apperrors.NewForbidden("acting role not granted")
	}
	s := permissions[action][actor.Acting]
	if s == scopeNone {
		return scopeNone, apperrors.NewForbidden("action not permitted for role " + string(actor.Acting))
	}
	return s, nil
}

// checkTicketAccess applies the reach to a loaded ticket.
func checkTicketAccess(actor domain.Actor, s scope, ticket *domain.Ticket) error {
	if s == scopeAny {
		return nil
	}
	if ticket.RequesterID == actor.ID && ticket.RequesterRole == actor.Acting {
		return nil
	}
	return apperrors.NewForbidden("ticket belongs to another requester")
}

// senderRole maps the acting role onto the reply sender enum. Admins act
// on the staff side.
func senderRole(acting domain.Role) domain.Role {
	if acting.IsStaff() {
		return domain.RoleSupport
	}
	return acting
}

// readerRoles lists whose replies become read when acting views a ticket.
func readerRoles(acting domain.Role) []domain.Role {
	switch acting {
	case domain.RoleSupport:
		return []domain.Role{domain.RoleBuyer, domain.RoleSeller}
	case domain.RoleBuyer, domain.RoleSeller:
		return []domain.Role{domain.RoleSupport}
	default:
		return nil
	}
}
