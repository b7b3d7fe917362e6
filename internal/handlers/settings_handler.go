package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/services/settings"
)

type SettingsHandler struct {
	Settings *settings.SettingsService
}

func NewSettingsHandler(svc *settings.SettingsService) *SettingsHandler {
	return &SettingsHandler{Settings: svc}
}

type PreviewRequest struct {
	Amount   decimal.Decimal       `json:"amount"`
	Settings *settings.UpdateInput `json:"settings"`
}

// Get returns the active snapshot, or every version with ?history=true.
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	if c.QueryBool("history") {
		rows, err := h.Settings.History(c.UserContext())
		if err != nil {
			return err
		}
		return ok(c, fiber.StatusOK, rows)
	}
	active, err := h.Settings.Active(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, active)
}

func (h *SettingsHandler) Update(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var in settings.UpdateInput
	if err := bind(c, &in); err != nil {
		return err
	}
	next, err := h.Settings.Update(c.UserContext(), p, in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, next)
}

func (h *SettingsHandler) Preview(c *fiber.Ctx) error {
	var req PreviewRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	preview, err := h.Settings.Preview(c.UserContext(), req.Amount, req.Settings)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, preview)
}
