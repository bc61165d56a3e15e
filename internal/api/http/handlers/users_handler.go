package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/parts-support/internal/api/dto"
	"github.com/spec-kit/parts-support/internal/auth"
	"github.com/spec-kit/parts-support/internal/service"
	apperrors "github.com/spec-kit/parts-support/pkg/util"
)

// UsersHandler exposes account endpoints.
type UsersHandler struct {
	auth  *service.AuthService
	roles *service.RoleService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, roleService *service.RoleService) *UsersHandler {
	return &UsersHandler{auth: authService, roles: roleService}
}

// Register handles POST /auth/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	session, err := h.auth.RegisterUser(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": sessionResponse(session)})
}

// Login handles POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.UserLoginRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	session, err := h.auth.LoginUser(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": sessionResponse(session)})
}

// Me handles GET /me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(principal.User)})
}

// RequestRole handles POST /me/role-request.
func (h *UsersHandler) RequestRole(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.RoleRequestRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	user, err := h.roles.RequestRole(c.UserContext(), principal.User.ID, req.Role)
	if err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// Notifications handles GET /me/notifications.
func (h *UsersHandler) Notifications(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	limit, _ := pageParams(c)

	list, err := h.roles.ListNotifications(c.UserContext(), principal.User.ID, limit)
	if err != nil {
		return err
	}
	items := make([]dto.NotificationResponse, 0, len(list))
	for i := range list {
		items = append(items, dto.NewNotificationResponse(&list[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func sessionResponse(session *service.AuthSession) fiber.Map {
	return fiber.Map{
		"user": dto.NewUserResponse(&session.User),
		"auth": dto.AuthResponse{Token: session.Token, ExpiresAt: session.ExpiresAt},
	}
}
