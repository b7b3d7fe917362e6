package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/models"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/services/wallet"
)

type WalletHandler struct {
	Wallet *wallet.WalletService
}

func NewWalletHandler(svc *wallet.WalletService) *WalletHandler {
	return &WalletHandler{Wallet: svc}
}

func (h *WalletHandler) Balance(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	bal, err := h.Wallet.GetBalance(c.UserContext(), p, p.ID)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, bal)
}

// AdminBalance lets an admin inspect any owner's balance.
func (h *WalletHandler) AdminBalance(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	owner, err := paramUUID(c, "ownerId")
	if err != nil {
		return err
	}
	bal, err := h.Wallet.GetBalance(c.UserContext(), p, owner)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, bal)
}

func (h *WalletHandler) Ledger(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	page, limit := pageParams(c)
	entries, total, err := h.Wallet.ListLedger(c.UserContext(), p, p.ID, wallet.LedgerFilter{Page: page, Limit: limit})
	if err != nil {
		return err
	}
	return paged(c, entries, total, page, limit)
}

func (h *WalletHandler) RequestWithdrawal(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var in wallet.WithdrawalInput
	if err := bind(c, &in); err != nil {
		return err
	}
	w, err := h.Wallet.RequestWithdrawal(c.UserContext(), p, in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, w)
}

func (h *WalletHandler) ListWithdrawals(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	page, limit := pageParams(c)
	f := wallet.WithdrawalFilter{
		Status: models.WithdrawalStatus(c.Query("status")),
		Page:   page,
		Limit:  limit,
	}
	if raw := c.Query("owner_id"); raw != "" {
		owner, err := uuid.Parse(raw)
		if err != nil {
			return apperr.Validation("INVALID_ID", "owner_id must be a valid id")
		}
		f.OwnerID = &owner
	}
	list, total, err := h.Wallet.ListWithdrawals(c.UserContext(), p, f)
	if err != nil {
		return err
	}
	return paged(c, list, total, page, limit)
}

func (h *WalletHandler) GetWithdrawal(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	w, err := h.Wallet.GetWithdrawal(c.UserContext(), p, id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, w)
}

func (h *WalletHandler) UpdateWithdrawalStatus(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var in wallet.WithdrawalStatusInput
	if err := bind(c, &in); err != nil {
		return err
	}
	w, err := h.Wallet.UpdateWithdrawalStatus(c.UserContext(), p, id, in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, w)
}
