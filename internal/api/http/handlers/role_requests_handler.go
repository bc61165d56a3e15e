package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/parts-support/internal/api/dto"
	"github.com/spec-kit/parts-support/internal/auth"
	"github.com/spec-kit/parts-support/internal/service"
)

// RoleRequestsHandler serves the admin role-request queue.
type RoleRequestsHandler struct {
	roles *service.RoleService
}

// NewRoleRequestsHandler constructs handler.
func NewRoleRequestsHandler(roleService *service.RoleService) *RoleRequestsHandler {
	return &RoleRequestsHandler{roles: roleService}
}

// ListPending GET /admin/role-requests.
func (h *RoleRequestsHandler) ListPending(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	limit, offset := pageParams(c)
	users, err := h.roles.ListPendingRoleRequests(c.UserContext(), actor, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.NewUserResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Decide POST /admin/role-requests/:userID/decision.
func (h *RoleRequestsHandler) Decide(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.RoleDecisionRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	decision, err := service.ParseRoleDecision(req.Decision)
	if err != nil {
		return err
	}

	res, err := h.roles.DecideRoleRequest(c.UserContext(), actor, c.Params("userID"), decision)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.RoleDecisionResponse{
		Decision:     string(res.Decision),
		Role:         res.Role,
		User:         dto.NewUserResponse(&res.User),
		Notification: dto.NewNotificationResponse(&res.Notification),
	}})
}

// History GET /admin/role-requests/:userID/history.
func (h *RoleRequestsHandler) History(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	logs, err := h.roles.ListRoleDecisions(c.UserContext(), actor, c.Params("userID"))
	if err != nil {
		return err
	}
	items := make([]dto.AdminLogResponse, 0, len(logs))
	for i := range logs {
		items = append(items, dto.NewAdminLogResponse(&logs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
