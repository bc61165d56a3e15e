package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/parts-support/internal/api/dto"
	"github.com/spec-kit/parts-support/internal/auth"
	"github.com/spec-kit/parts-support/internal/service"
)

// StaffTicketsHandler handles staff-only ticket endpoints.
type StaffTicketsHandler struct {
	tickets *service.TicketService
}

// NewStaffTicketsHandler constructs handler.
func NewStaffTicketsHandler(ticketService *service.TicketService) *StaffTicketsHandler {
	return &StaffTicketsHandler{tickets: ticketService}
}

// UpdateStatus PATCH /{support,admin}/tickets/:id/status.
func (h *StaffTicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	res, err := h.tickets.UpdateStatus(c.UserContext(), actor, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transitionResponse(res)})
}
