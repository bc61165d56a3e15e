package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/parts-support/internal/api/http/handlers"
	"github.com/spec-kit/parts-support/internal/auth"
	"github.com/spec-kit/parts-support/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	RoleRequests   *handlers.RoleRequestsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Each portal group fixes the acting
// role for the requests it serves.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	me := app.Group("/me", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	me.Get("", cfg.Users.Me)
	me.Post("/role-request", cfg.Users.RequestRole)
	me.Get("/notifications", cfg.Users.Notifications)

	for _, role := range []domain.Role{domain.RoleBuyer, domain.RoleSeller} {
		portal := app.Group("/"+string(role), cfg.AuthMiddleware.Handle, auth.RequireRole(role))
		portal.Post("/tickets", cfg.Tickets.CreateTicket)
		portal.Get("/tickets", cfg.Tickets.ListTickets)
		portal.Get("/tickets/:id", cfg.Tickets.GetTicket)
		portal.Post("/tickets/:id/replies", cfg.Tickets.AddReply)
		portal.Post("/tickets/:id/reopen", cfg.Tickets.ReopenTicket)
	}

	staffPortal := func(role domain.Role) fiber.Router {
		portal := app.Group("/"+string(role), cfg.AuthMiddleware.Handle, auth.RequireRole(role))
		portal.Get("/tickets", cfg.Tickets.ListTickets)
		portal.Get("/tickets/:id", cfg.Tickets.GetTicket)
		portal.Post("/tickets/:id/replies", cfg.Tickets.AddReply)
		portal.Patch("/tickets/:id/status", cfg.StaffTickets.UpdateStatus)
		return portal
	}
	staffPortal(domain.RoleSupport)
	admin := staffPortal(domain.RoleAdmin)
	admin.Get("/role-requests", cfg.RoleRequests.ListPending)
	admin.Post("/role-requests/:userID/decision", cfg.RoleRequests.Decide)
	admin.Get("/role-requests/:userID/history", cfg.RoleRequests.History)
}
