package service

import (
	"context"
	"errors"
	"testing"

	"github.com/spec-kit/parts-support/internal/domain"
	"github.com/spec-kit/parts-support/internal/events"
	"github.com/spec-kit/parts-support/internal/repository"
	apperrors "github.com/spec-kit/parts-support/pkg/util"
)

func newRoleFixture(t *testing.T) (*RoleService, repository.Store, *recordingDispatcher, domain.Actor) {
	t.Helper()
	store := testStore(t)
	dispatcher := newRecordingDispatcher()
	svc := NewRoleService(RoleDependencies{Store: store, Dispatcher: dispatcher, Clock: frozenClock})
	admin := seedUser(t, store, "admin-1", domain.RoleAdmin)
	return svc, store, dispatcher, actorFor(admin, domain.RoleAdmin)
}

func TestApproveRoleRequest(t *testing.T) {
	svc, store, dispatcher, admin := newRoleFixture(t)
	ctx := context.Background()
	seedUser(t, store, "buyer-1", domain.RoleBuyer)

	pending, err := svc.RequestRole(ctx, "buyer-1", domain.RoleSeller)
	if err != nil {
		t.Fatalf("RequestRole: %v", err)
	}
	if pending.RoleStatus != domain.ApprovalPending || pending.RoleRequest == nil || *pending.RoleRequest != domain.RoleSeller {
		t.Fatalf("pending user = %+v", pending)
	}

	queue, err := svc.ListPendingRoleRequests(ctx, admin, 0, 0)
	if err != nil || len(queue) != 1 {
		t.Fatalf("pending queue = %v, %v", queue, err)
	}

	res, err := svc.DecideRoleRequest(ctx, admin, "buyer-1", DecisionApprove)
	if err != nil {
		t.Fatalf("DecideRoleRequest: %v", err)
	}
	if res.User.Roles.String() != "buyer,seller" || res.User.RoleStatus != domain.ApprovalApproved || res.User.RoleRequest != nil {
		t.Fatalf("decided user = %+v", res.User)
	}
	if res.Notification.Type != domain.NotificationRoleApproved || res.Notification.Message != "Your request to become a Seller has been approved!" {
		t.Fatalf("notification = %+v", res.Notification)
	}

	stored, err := store.Repositories().Users.GetByID(ctx, "buyer-1")
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if !stored.Roles.Has(domain.RoleSeller) || stored.HasPendingRequest() {
		t.Fatalf("stored user = %+v", stored)
	}

	notes, err := svc.ListNotifications(ctx, "buyer-1", 10)
	if err != nil || len(notes) != 1 {
		t.Fatalf("notifications = %v, %v", notes, err)
	}
	logs, err := svc.ListRoleDecisions(ctx, admin, "buyer-1")
	if err != nil || len(logs) != 1 {
		t.Fatalf("admin logs = %v, %v", logs, err)
	}
	if logs[0].Details != "approve: seller" || logs[0].Action != domain.AdminActionRoleDecision || logs[0].AdminID != admin.ID {
		t.Fatalf("admin log = %+v", logs[0])
	}

	got := dispatcher.types()
	if len(got) != 2 || got[0] != events.EventRoleRequested || got[1] != events.EventRoleRequestDecided {
		t.Fatalf("events = %v", got)
	}

	queue, _ = svc.ListPendingRoleRequests(ctx, admin, 0, 0)
	if len(queue) != 0 {
		t.Fatalf("queue not drained: %v", queue)
	}
}

func TestRejectRoleRequest(t *testing.T) {
	svc, store, _, admin := newRoleFixture(t)
	ctx := context.Background()
	seedUser(t, store, "buyer-1", domain.RoleBuyer)
	if _, err := svc.RequestRole(ctx, "buyer-1", domain.RoleSupport); err != nil {
		t.Fatalf("RequestRole: %v", err)
	}

	res, err := svc.DecideRoleRequest(ctx, admin, "buyer-1", DecisionReject)
	if err != nil {
		t.Fatalf("DecideRoleRequest: %v", err)
	}
	if res.User.Roles.String() != "buyer" || res.User.RoleStatus != domain.ApprovalRejected || res.User.RoleRequest != nil {
		t.Fatalf("rejected user = %+v", res.User)
	}
	if res.Notification.Type != domain.NotificationRoleRejected || res.Notification.Message != "Your role request has been rejected." {
		t.Fatalf("notification = %+v", res.Notification)
	}
	if res.AdminLog.Details != "reject: support" {
		t.Fatalf("admin log details = %q", res.AdminLog.Details)
	}

	// a rejected user may ask again
	if _, err := svc.RequestRole(ctx, "buyer-1", domain.RoleSeller); err != nil {
		t.Fatalf("request after rejection: %v", err)
	}
}

func TestApproveHeldRoleKeepsSetUnique(t *testing.T) {
	svc, store, _, admin := newRoleFixture(t)
	ctx := context.Background()
	user := seedUser(t, store, "seller-1", domain.RoleBuyer, domain.RoleSeller)
	role := domain.RoleSeller
	user.RoleRequest = &role
	user.RoleStatus = domain.ApprovalPending
	if err := store.Repositories().Users.Update(ctx, user); err != nil {
		t.Fatalf("seed pending: %v", err)
	}

	res, err := svc.DecideRoleRequest(ctx, admin, "seller-1", DecisionApprove)
	if err != nil {
		t.Fatalf("DecideRoleRequest: %v", err)
	}
	if len(res.User.Roles) != 2 || res.User.Roles.String() != "buyer,seller" {
		t.Fatalf("roles = %v", res.User.Roles)
	}
}

func TestDecideRoleRequestErrors(t *testing.T) {
	svc, store, _, admin := newRoleFixture(t)
	ctx := context.Background()
	support := seedUser(t, store, "support-1", domain.RoleSupport)
	seedUser(t, store, "buyer-1", domain.RoleBuyer)

	_, err := svc.DecideRoleRequest(ctx, admin, "buyer-1", DecisionApprove)
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("no pending request err = %v", err)
	}
	_, err = svc.DecideRoleRequest(ctx, admin, "ghost", DecisionApprove)
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("missing user err = %v", err)
	}
	_, err = svc.DecideRoleRequest(ctx, admin, "buyer-1", RoleDecision("maybe"))
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("bad decision err = %v", err)
	}
	_, err = svc.DecideRoleRequest(ctx, actorFor(support, domain.RoleSupport), "buyer-1", DecisionApprove)
	if !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("support decision err = %v", err)
	}
	_, err = svc.DecideRoleRequest(ctx, actorFor(support, domain.RoleAdmin), "buyer-1", DecisionApprove)
	if !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("ungranted admin err = %v", err)
	}
	_, err = svc.ListPendingRoleRequests(ctx, actorFor(support, domain.RoleSupport), 0, 0)
	if !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("support queue err = %v", err)
	}

	logs, _ := store.Repositories().AdminLogs.ListByTarget(ctx, "buyer-1")
	if len(logs) != 0 {
		t.Fatalf("failed decisions wrote %d audit rows", len(logs))
	}
}

func TestRequestRoleConflicts(t *testing.T) {
	svc, store, _, _ := newRoleFixture(t)
	ctx := context.Background()
	seedUser(t, store, "seller-1", domain.RoleBuyer, domain.RoleSeller)

	_, err := svc.RequestRole(ctx, "seller-1", domain.RoleSeller)
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("held role err = %v", err)
	}
	if _, err := svc.RequestRole(ctx, "seller-1", domain.RoleSupport); err != nil {
		t.Fatalf("RequestRole: %v", err)
	}
	_, err = svc.RequestRole(ctx, "seller-1", domain.RoleAdmin)
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("second pending err = %v", err)
	}
	_, err = svc.RequestRole(ctx, "seller-1", domain.RoleBuyer)
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("buyer request err = %v", err)
	}
	_, err = svc.RequestRole(ctx, "ghost", domain.RoleSeller)
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("missing user err = %v", err)
	}
}

func TestParseRoleDecision(t *testing.T) {
	if d, err := ParseRoleDecision("approve"); err != nil || d != DecisionApprove {
		t.Fatalf("approve = %v, %v", d, err)
	}
	if _, err := ParseRoleDecision("Approve"); err == nil {
		t.Fatalf("decisions are case sensitive")
	}
}

func TestDecideRoleRequestRollsBackOnAuditFailure(t *testing.T) {
	_, store, _, admin := newRoleFixture(t)
	ctx := context.Background()
	seedUser(t, store, "buyer-1", domain.RoleBuyer)
	plain := NewRoleService(RoleDependencies{Store: store, Clock: frozenClock})
	if _, err := plain.RequestRole(ctx, "buyer-1", domain.RoleSeller); err != nil {
		t.Fatalf("RequestRole: %v", err)
	}

	cause := errors.New("disk full")
	faulty := faultyTxStore{Store: store, wrap: func(repos repository.Repositories) repository.Repositories {
		repos.AdminLogs = failingAdminLogs{AdminLogRepository: repos.AdminLogs, err: cause}
		return repos
	}}
	svc := NewRoleService(RoleDependencies{Store: faulty, Clock: frozenClock})

	_, err := svc.DecideRoleRequest(ctx, admin, "buyer-1", DecisionApprove)
	if !apperrors.HasCode(err, apperrors.CodeStorage) || !errors.Is(err, cause) {
		t.Fatalf("err = %v, want wrapped storage error", err)
	}

	user, err := store.Repositories().Users.GetByID(ctx, "buyer-1")
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if user.Roles.String() != "buyer" || user.RoleStatus != domain.ApprovalPending || !user.HasPendingRequest() {
		t.Fatalf("user changed despite failure: %+v", user)
	}
	notes, _ := store.Repositories().Notifications.ListByUser(ctx, "buyer-1", 10)
	if len(notes) != 0 {
		t.Fatalf("notifications = %v, want none", notes)
	}
}

func TestListRoleDecisionsGuards(t *testing.T) {
	svc, store, _, admin := newRoleFixture(t)
	ctx := context.Background()
	support := seedUser(t, store, "support-1", domain.RoleSupport)
	seedUser(t, store, "buyer-1", domain.RoleBuyer)

	logs, err := svc.ListRoleDecisions(ctx, admin, "buyer-1")
	if err != nil || len(logs) != 0 {
		t.Fatalf("fresh history = %v, %v", logs, err)
	}
	if _, err := svc.ListRoleDecisions(ctx, actorFor(support, domain.RoleSupport), "buyer-1"); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("support err = %v, want forbidden", err)
	}
	if _, err := svc.ListRoleDecisions(ctx, admin, "ghost"); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("unknown user err = %v, want not found", err)
	}
}
