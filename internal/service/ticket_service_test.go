package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spec-kit/parts-support/internal/domain"
	"github.com/spec-kit/parts-support/internal/events"
	"github.com/spec-kit/parts-support/internal/repository"
	apperrors "github.com/spec-kit/parts-support/pkg/util"
)

type ticketFixture struct {
	store      repository.Store
	svc        *TicketService
	dispatcher *recordingDispatcher
	buyer      *domain.User
	seller     *domain.User
	support    *domain.User
	admin      *domain.User
}

func newTicketFixture(t *testing.T) *ticketFixture {
	t.Helper()
	store := testStore(t)
	dispatcher := newRecordingDispatcher()
	return &ticketFixture{
		store:      store,
		dispatcher: dispatcher,
		svc: NewTicketService(TicketDependencies{
			Store:      store,
			Dispatcher: dispatcher,
			Clock:      frozenClock,
		}),
		buyer:   seedUser(t, store, "buyer-1", domain.RoleBuyer),
		seller:  seedUser(t, store, "seller-1", domain.RoleBuyer, domain.RoleSeller),
		support: seedUser(t, store, "support-1", domain.RoleSupport),
		admin:   seedUser(t, store, "admin-1", domain.RoleAdmin),
	}
}

func (f *ticketFixture) submit(t *testing.T, user *domain.User, role domain.Role) *domain.Ticket {
	t.Helper()
	ticket, err := f.svc.SubmitTicket(context.Background(), actorFor(user, role), TicketSubmitInput{
		Subject: "Wrong brake pads",
		Body:    "The pads delivered do not fit my 2015 hatchback.",
	})
	if err != nil {
		t.Fatalf("SubmitTicket: %v", err)
	}
	return ticket
}

func (f *ticketFixture) thread(t *testing.T, ticketID string) []domain.Reply {
	t.Helper()
	replies, err := f.store.Repositories().Replies.ListByTicket(context.Background(), ticketID)
	if err != nil {
		t.Fatalf("ListByTicket: %v", err)
	}
	return replies
}

func TestSubmitTicketDefaultsAndValidation(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()

	ticket := f.submit(t, f.buyer, domain.RoleBuyer)
	if ticket.Status != domain.TicketStatusOpen || ticket.Category != domain.TicketCategoryOther || ticket.Priority != domain.TicketPriorityMedium {
		t.Fatalf("unexpected defaults: %+v", ticket)
	}
	if ticket.RequesterRole != domain.RoleBuyer {
		t.Fatalf("requester role = %s", ticket.RequesterRole)
	}

	_, err := f.svc.SubmitTicket(ctx, actorFor(f.buyer, domain.RoleBuyer), TicketSubmitInput{Subject: " a ", Body: "short"})
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	details := apperrors.ToDomainError(err).Details
	if _, ok := details["subject"]; !ok {
		t.Fatalf("missing subject detail: %v", details)
	}
	if _, ok := details["body"]; !ok {
		t.Fatalf("missing body detail: %v", details)
	}

	_, err = f.svc.SubmitTicket(ctx, actorFor(f.buyer, domain.RoleBuyer), TicketSubmitInput{
		Subject: "Refund", Body: "Please refund my order.", Priority: "critical",
	})
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("err = %v, want validation for bad priority", err)
	}

	_, err = f.svc.SubmitTicket(ctx, actorFor(f.support, domain.RoleSupport), TicketSubmitInput{
		Subject: "Staff ticket", Body: "Support cannot open tickets.",
	})
	if !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
}

func TestEndToEndBuyerScenario(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket := f.submit(t, f.buyer, domain.RoleBuyer)

	// support answers: ticket starts without an audit line
	res, err := f.svc.ReplyToTicket(ctx, actorFor(f.support, domain.RoleSupport), ticket.ID, "  We are checking with the seller.  ")
	if err != nil {
		t.Fatalf("ReplyToTicket: %v", err)
	}
	if res.Ticket.Status != domain.TicketStatusInProgress {
		t.Fatalf("status = %s, want in_progress", res.Ticket.Status)
	}
	if res.Reply.Message != "We are checking with the seller." || res.Reply.SenderRole != domain.RoleSupport {
		t.Fatalf("reply = %+v", res.Reply)
	}
	thread := f.thread(t, ticket.ID)
	if len(thread) != 1 || countSystem(thread) != 0 {
		t.Fatalf("thread after reply = %+v", thread)
	}

	resolved, err := f.svc.UpdateStatus(ctx, actorFor(f.support, domain.RoleSupport), ticket.ID, domain.TicketStatusResolved)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if resolved.Ticket.ResolvedAt == nil || resolved.Ticket.ResolvedBy == nil || *resolved.Ticket.ResolvedBy != f.support.ID {
		t.Fatalf("resolved markers = %+v", resolved.Ticket)
	}
	thread = f.thread(t, ticket.ID)
	if countSystem(thread) != 1 || !strings.Contains(thread[len(thread)-1].Message, "Resolved") {
		t.Fatalf("thread after resolve = %+v", thread)
	}

	reopened, err := f.svc.ReopenTicket(ctx, actorFor(f.buyer, domain.RoleBuyer), ticket.ID)
	if err != nil {
		t.Fatalf("ReopenTicket: %v", err)
	}
	if reopened.Ticket.Status != domain.TicketStatusOpen || reopened.Ticket.ResolvedAt != nil || reopened.Ticket.ResolvedBy != nil || reopened.Ticket.ClosedAt != nil {
		t.Fatalf("reopened ticket = %+v", reopened.Ticket)
	}
	thread = f.thread(t, ticket.ID)
	last := thread[len(thread)-1]
	if !last.IsSystem || !strings.Contains(last.Message, "reopened") || last.SenderRole != domain.RoleBuyer {
		t.Fatalf("last reply = %+v", last)
	}

	// replies stay strictly ordered even with a frozen clock
	for i := 1; i < len(thread); i++ {
		if !thread[i].CreatedAt.After(thread[i-1].CreatedAt) {
			t.Fatalf("reply %d not after reply %d", i, i-1)
		}
	}

	want := []events.EventType{
		events.EventTicketCreated,
		events.EventTicketReplied,
		events.EventTicketStatusChanged,
		events.EventTicketStatusChanged,
		events.EventTicketReopened,
	}
	got := f.dispatcher.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestReopenRequiresResolved(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket := f.submit(t, f.buyer, domain.RoleBuyer)

	_, err := f.svc.ReopenTicket(ctx, actorFor(f.buyer, domain.RoleBuyer), ticket.ID)
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("reopen open ticket err = %v, want conflict", err)
	}

	if _, err := f.svc.UpdateStatus(ctx, actorFor(f.support, domain.RoleSupport), ticket.ID, domain.TicketStatusClosed); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err = f.svc.ReopenTicket(ctx, actorFor(f.buyer, domain.RoleBuyer), ticket.ID)
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("reopen closed ticket err = %v, want conflict", err)
	}

	stored, _ := f.store.Repositories().Tickets.GetByID(ctx, ticket.ID)
	if stored.Status != domain.TicketStatusClosed || stored.ClosedAt == nil {
		t.Fatalf("rejected reopen changed ticket: %+v", stored)
	}
	if n := countSystem(f.thread(t, ticket.ID)); n != 1 {
		t.Fatalf("system replies = %d, want 1", n)
	}
}

func TestStaffReplyLeavesNonOpenStatus(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket := f.submit(t, f.buyer, domain.RoleBuyer)
	if _, err := f.svc.UpdateStatus(ctx, actorFor(f.admin, domain.RoleAdmin), ticket.ID, domain.TicketStatusResolved); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	res, err := f.svc.ReplyToTicket(ctx, actorFor(f.support, domain.RoleSupport), ticket.ID, "Following up")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if res.Ticket.Status != domain.TicketStatusResolved || res.Ticket.ResolvedAt == nil {
		t.Fatalf("reply changed resolved ticket: %+v", res.Ticket)
	}
	thread := f.thread(t, ticket.ID)
	if !strings.HasSuffix(thread[0].Message, "by admin.") || thread[0].SenderRole != domain.RoleSupport {
		t.Fatalf("admin system reply = %+v", thread[0])
	}
}

func TestRequesterReplyDoesNotStartTicket(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.submit(t, f.seller, domain.RoleSeller)
	res, err := f.svc.ReplyToTicket(context.Background(), actorFor(f.seller, domain.RoleSeller), ticket.ID, "Any news?")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if res.Ticket.Status != domain.TicketStatusOpen {
		t.Fatalf("status = %s, want open", res.Ticket.Status)
	}
	if res.Reply.SenderRole != domain.RoleSeller || res.Reply.IsRead || res.Reply.IsSystem {
		t.Fatalf("reply = %+v", res.Reply)
	}
}

func TestReplyValidationAndAccess(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket := f.submit(t, f.buyer, domain.RoleBuyer)

	cases := []struct {
		name   string
		actor  domain.Actor
		ticket string
		msg    string
		code   string
	}{
		{"blank message", actorFor(f.buyer, domain.RoleBuyer), ticket.ID, "   ", apperrors.CodeValidation},
		{"missing ticket", actorFor(f.support, domain.RoleSupport), "nope", "hello", apperrors.CodeNotFound},
		{"other requester", actorFor(f.seller, domain.RoleBuyer), ticket.ID, "hello", apperrors.CodeForbidden},
		{"same user other role", actorFor(f.seller, domain.RoleSeller), ticket.ID, "hello", apperrors.CodeForbidden},
		{"ungranted role", actorFor(f.buyer, domain.RoleSupport), ticket.ID, "hello", apperrors.CodeForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.ReplyToTicket(ctx, tc.actor, tc.ticket, tc.msg)
			if !apperrors.HasCode(err, tc.code) {
				t.Fatalf("err = %v, want %s", err, tc.code)
			}
		})
	}
	if n := len(f.thread(t, ticket.ID)); n != 0 {
		t.Fatalf("failed replies left %d rows", n)
	}
}

func TestUpdateStatusRejectsInvalidAndUnauthorized(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket := f.submit(t, f.buyer, domain.RoleBuyer)

	_, err := f.svc.UpdateStatus(ctx, actorFor(f.support, domain.RoleSupport), ticket.ID, "archived")
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	_, err = f.svc.UpdateStatus(ctx, actorFor(f.buyer, domain.RoleBuyer), ticket.ID, domain.TicketStatusClosed)
	if !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
	stored, _ := f.store.Repositories().Tickets.GetByID(ctx, ticket.ID)
	if stored.Status != domain.TicketStatusOpen {
		t.Fatalf("status changed to %s", stored.Status)
	}
}

func TestClosingClearsResolvedMarkers(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket := f.submit(t, f.buyer, domain.RoleBuyer)
	support := actorFor(f.support, domain.RoleSupport)

	if _, err := f.svc.UpdateStatus(ctx, support, ticket.ID, domain.TicketStatusResolved); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	closed, err := f.svc.UpdateStatus(ctx, support, ticket.ID, domain.TicketStatusClosed)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Ticket.ClosedAt == nil || closed.Ticket.ResolvedAt != nil || closed.Ticket.ResolvedBy != nil {
		t.Fatalf("closed markers = %+v", closed.Ticket)
	}
	if closed.SystemReply.Message != "Ticket status changed to 'Closed' by support agent." {
		t.Fatalf("system reply = %q", closed.SystemReply.Message)
	}

	reopened, err := f.svc.UpdateStatus(ctx, support, ticket.ID, domain.TicketStatusOpen)
	if err != nil {
		t.Fatalf("staff reopen: %v", err)
	}
	if reopened.Ticket.ClosedAt != nil || reopened.Ticket.ResolvedAt != nil {
		t.Fatalf("markers after staff reopen = %+v", reopened.Ticket)
	}
}

func TestViewMarksCounterpartRepliesRead(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket := f.submit(t, f.buyer, domain.RoleBuyer)
	buyer := actorFor(f.buyer, domain.RoleBuyer)
	support := actorFor(f.support, domain.RoleSupport)

	mustReply := func(actor domain.Actor, msg string) {
		if _, err := f.svc.ReplyToTicket(ctx, actor, ticket.ID, msg); err != nil {
			t.Fatalf("reply: %v", err)
		}
	}
	mustReply(buyer, "Hello?")
	mustReply(support, "Hi, looking into it")
	mustReply(buyer, "Thanks")

	// admin audits without touching read flags
	adminView, err := f.svc.ViewTicket(ctx, actorFor(f.admin, domain.RoleAdmin), ticket.ID)
	if err != nil {
		t.Fatalf("admin view: %v", err)
	}
	if adminView.MarkedRead != 0 {
		t.Fatalf("admin marked %d", adminView.MarkedRead)
	}

	supportView, err := f.svc.ViewTicket(ctx, support, ticket.ID)
	if err != nil {
		t.Fatalf("support view: %v", err)
	}
	if supportView.MarkedRead != 2 {
		t.Fatalf("support marked %d, want 2", supportView.MarkedRead)
	}
	for _, r := range supportView.Replies {
		if r.IsRead {
			t.Fatalf("view should return replies as loaded before marking: %+v", r)
		}
	}

	buyerView, err := f.svc.ViewTicket(ctx, buyer, ticket.ID)
	if err != nil {
		t.Fatalf("buyer view: %v", err)
	}
	if buyerView.MarkedRead != 1 {
		t.Fatalf("buyer marked %d, want 1", buyerView.MarkedRead)
	}

	for _, r := range f.thread(t, ticket.ID) {
		if !r.IsRead {
			t.Fatalf("reply still unread: %+v", r)
		}
	}

	_, err = f.svc.ViewTicket(ctx, actorFor(f.seller, domain.RoleSeller), ticket.ID)
	if !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("stranger view err = %v", err)
	}
}

func TestListTicketsScopesRequesters(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	f.submit(t, f.buyer, domain.RoleBuyer)
	f.submit(t, f.seller, domain.RoleSeller)
	f.submit(t, f.seller, domain.RoleBuyer)

	own, err := f.svc.ListTickets(ctx, actorFor(f.seller, domain.RoleSeller), TicketListFilter{})
	if err != nil {
		t.Fatalf("list own: %v", err)
	}
	if len(own) != 1 || own[0].RequesterRole != domain.RoleSeller {
		t.Fatalf("seller tickets = %+v", own)
	}

	all, err := f.svc.ListTickets(ctx, actorFor(f.support, domain.RoleSupport), TicketListFilter{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("support sees %d tickets, want 3", len(all))
	}

	_, err = f.svc.ListTickets(ctx, actorFor(f.support, domain.RoleSupport), TicketListFilter{Statuses: []domain.TicketStatus{"pending"}})
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestStorageFailureIsReportedGenerically(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.submit(t, f.buyer, domain.RoleBuyer)
	cause := errors.New("connection reset")
	svc := NewTicketService(TicketDependencies{Store: brokenStore{Store: f.store, err: cause}, Clock: frozenClock})

	_, err := svc.ReplyToTicket(context.Background(), actorFor(f.support, domain.RoleSupport), ticket.ID, "hello")
	if !apperrors.HasCode(err, apperrors.CodeStorage) {
		t.Fatalf("err = %v, want storage error", err)
	}
	if apperrors.ToDomainError(err).Message != "action failed" {
		t.Fatalf("message = %q", apperrors.ToDomainError(err).Message)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause not wrapped")
	}
}

func TestStatusChangeRollsBackWithoutAuditReply(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket := f.submit(t, f.buyer, domain.RoleBuyer)

	cause := errors.New("disk full")
	faulty := faultyTxStore{Store: f.store, wrap: func(repos repository.Repositories) repository.Repositories {
		repos.Replies = failingReplies{ReplyRepository: repos.Replies, err: cause}
		return repos
	}}
	svc := NewTicketService(TicketDependencies{Store: faulty, Clock: frozenClock})

	_, err := svc.UpdateStatus(ctx, actorFor(f.support, domain.RoleSupport), ticket.ID, domain.TicketStatusResolved)
	if !apperrors.HasCode(err, apperrors.CodeStorage) || !errors.Is(err, cause) {
		t.Fatalf("err = %v, want wrapped storage error", err)
	}

	stored, err := f.store.Repositories().Tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("reload ticket: %v", err)
	}
	if stored.Status != domain.TicketStatusOpen || stored.ResolvedAt != nil || stored.ResolvedBy != nil {
		t.Fatalf("ticket changed despite failure: %+v", stored)
	}
	if n := countSystem(f.thread(t, ticket.ID)); n != 0 {
		t.Fatalf("system replies = %d, want 0", n)
	}
}
