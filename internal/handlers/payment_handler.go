package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/services/payment"
)

type PaymentHandler struct {
	Payments *payment.PaymentService
}

func NewPaymentHandler(svc *payment.PaymentService) *PaymentHandler {
	return &PaymentHandler{Payments: svc}
}

type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
}

func (h *PaymentHandler) CreateIntent(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	jobID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	res, err := h.Payments.CreateIntent(c.UserContext(), p, jobID)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, res)
}

func (h *PaymentHandler) Confirm(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	jobID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req ConfirmPaymentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	pay, err := h.Payments.Confirm(c.UserContext(), p, jobID, req.PaymentIntentID)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, pay)
}

func (h *PaymentHandler) List(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	jobID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	list, err := h.Payments.ListPayments(c.UserContext(), p, jobID)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, list)
}

// Webhook is public; the gateway signature is the only authentication.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	signature := c.Get("Stripe-Signature")
	if signature == "" {
		signature = c.Get("X-Callback-Signature")
	}
	if err := h.Payments.HandleWebhook(c.UserContext(), c.Body(), signature); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "received": true})
}
