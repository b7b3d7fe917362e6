package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/models"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/realtime"
)

type WithdrawalInput struct {
	Amount  decimal.Decimal         `json:"amount"`
	Method  models.WithdrawalMethod `json:"withdrawal_method"`
	Details map[string]string       `json:"details"`
}

type WithdrawalStatusInput struct {
	Status models.WithdrawalStatus `json:"status"`
	Note   string                  `json:"admin_notes"`
}

type WithdrawalFilter struct {
	Status  models.WithdrawalStatus
	OwnerID *uuid.UUID
	Page    int
	Limit   int
}

var requiredDetails = map[models.WithdrawalMethod][]string{
	models.MethodBankTransfer: {"account_number", "routing_number", "bank_name", "account_holder_name"},
	models.MethodPaypal:       {"email"},
	models.MethodStripe:       {"account_id"},
	models.MethodCrypto:       {"wallet_address", "currency"},
}

func validateDetails(method models.WithdrawalMethod, details map[string]string) error {
	var missing []string
	for _, key := range requiredDetails[method] {
		if strings.TrimSpace(details[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return apperr.Validation("INCOMPLETE_DETAILS",
			fmt.Sprintf("%s details missing: %s", method, strings.Join(missing, ", ")))
	}
	if method == models.MethodPaypal && !strings.Contains(details["email"], "@") {
		return apperr.Validation("INVALID_EMAIL", "paypal email is not valid")
	}
	return nil
}

// RequestWithdrawal moves amount from available to pending for the caller.
func (s *WalletService) RequestWithdrawal(ctx context.Context, p models.Principal, in WithdrawalInput) (*models.Withdrawal, error) {
	if !p.Role.IsServiceActor() {
		return nil, apperr.Forbidden("PROVIDERS_ONLY", "only providers and inspectors can withdraw")
	}
	if !in.Amount.IsPositive() {
		return nil, apperr.Validation("INVALID_AMOUNT", "amount must be positive")
	}
	if !in.Method.Valid() {
		return nil, apperr.Validation("INVALID_METHOD", "unknown withdrawal method")
	}
	if err := validateDetails(in.Method, in.Details); err != nil {
		return nil, err
	}

	calc, err := s.Fees.Calculator(ctx)
	if err != nil {
		return nil, err
	}
	if minimum := calc.Settings().MinimumWithdrawalAmount; in.Amount.LessThan(minimum) {
		return nil, apperr.Validation("BELOW_MINIMUM", fmt.Sprintf("minimum withdrawal amount is %s", minimum.StringFixed(2)))
	}
	details, err := json.Marshal(in.Details)
	if err != nil {
		return nil, err
	}

	var w *models.Withdrawal
	err = s.withOwner(ctx, p.ID, func(tx *gorm.DB) error {
		var open int64
		if err := tx.Model(&models.Withdrawal{}).
			Where("owner_id = ? AND status IN ?", p.ID,
				[]models.WithdrawalStatus{models.WithdrawalPending, models.WithdrawalProcessing}).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return apperr.Conflict("WITHDRAWAL_IN_PROGRESS", "you already have a withdrawal in progress")
		}

		if err := s.reconcileJobs(tx, p.ID, calc); err != nil {
			return err
		}
		bal, err := s.persistSnapshot(tx, p.ID)
		if err != nil {
			return err
		}
		if bal.AvailableBalance.LessThan(in.Amount) {
			return apperr.Validation("INSUFFICIENT_BALANCE",
				fmt.Sprintf("available balance is %s", bal.AvailableBalance.StringFixed(2)))
		}

		quote := calc.Withdrawal(in.Amount, in.Method)
		now := s.Now()
		w = &models.Withdrawal{
			OwnerID:       p.ID,
			OwnerRole:     p.Role,
			Amount:        in.Amount,
			Method:        in.Method,
			Details:       details,
			Status:        models.WithdrawalPending,
			ProcessingFee: quote.ProcessingFee,
			NetAmount:     quote.NetAmount,
			RequestedAt:   now,
			UpdatedAt:     now,
		}
		if err := tx.Create(w).Error; err != nil {
			return apperr.Conflict("WITHDRAWAL_IN_PROGRESS", "you already have a withdrawal in progress")
		}
		if err := appendEntry(tx, p.ID, models.LedgerWithdrawalRequested, in.Amount, w.ID,
			fmt.Sprintf("withdrawal via %s", in.Method), now); err != nil {
			return err
		}
		_, err = s.persistSnapshot(tx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"owner": p.ID, "withdrawal": w.ID, "amount": w.Amount, "method": w.Method}).Info("withdrawal requested")
	s.Notifier.Notify(ctx, realtime.EventWithdrawalCreated, w, p.ID)
	return w, nil
}

// UpdateWithdrawalStatus is the admin side of the workflow. Open withdrawals
// can be processed, completed, rejected or cancelled; finished ones are frozen.
func (s *WalletService) UpdateWithdrawalStatus(ctx context.Context, p models.Principal, id uuid.UUID, in WithdrawalStatusInput) (*models.Withdrawal, error) {
	if !p.IsAdmin() {
		return nil, apperr.Forbidden("ADMIN_ONLY", "only admins can update withdrawals")
	}
	if !in.Status.Valid() || in.Status == models.WithdrawalPending {
		return nil, apperr.Validation("INVALID_STATUS", fmt.Sprintf("invalid withdrawal status %q", in.Status))
	}

	var head models.Withdrawal
	if err := s.DB.WithContext(ctx).Select("id", "owner_id").First(&head, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("WITHDRAWAL_NOT_FOUND", "withdrawal not found")
		}
		return nil, err
	}

	var w models.Withdrawal
	err := s.withOwner(ctx, head.OwnerID, func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&w, "id = ?", id).Error; err != nil {
			return err
		}
		if !w.Status.Open() {
			return apperr.Conflict("WITHDRAWAL_FINALISED", fmt.Sprintf("withdrawal is already %s", w.Status))
		}
		if in.Status == models.WithdrawalProcessing && w.Status != models.WithdrawalPending {
			return apperr.Conflict("ALREADY_PROCESSING", "withdrawal is already processing")
		}

		now := s.Now()
		switch in.Status {
		case models.WithdrawalProcessing:
			w.ProcessedAt = &now
		case models.WithdrawalCompleted:
			if w.ProcessedAt == nil {
				w.ProcessedAt = &now
			}
			w.CompletedAt = &now
			if err := appendEntry(tx, w.OwnerID, models.LedgerWithdrawalCompleted, w.Amount, w.ID,
				"withdrawal paid out", now); err != nil {
				return err
			}
		case models.WithdrawalRejected, models.WithdrawalCancelled:
			if in.Status == models.WithdrawalRejected {
				w.RejectedAt = &now
			} else {
				w.CancelledAt = &now
			}
			if err := appendEntry(tx, w.OwnerID, models.LedgerWithdrawalReversed, w.Amount, w.ID,
				fmt.Sprintf("withdrawal %s", in.Status), now); err != nil {
				return err
			}
		}
		w.Status = in.Status
		w.UpdatedAt = now
		if err := tx.Save(&w).Error; err != nil {
			return err
		}

		if note := strings.TrimSpace(in.Note); note != "" {
			if err := tx.Create(&models.WithdrawalNote{
				WithdrawalID: w.ID,
				AdminID:      p.ID,
				Note:         note,
				CreatedAt:    now,
			}).Error; err != nil {
				return err
			}
		}
		if _, err := s.persistSnapshot(tx, w.OwnerID); err != nil {
			return err
		}
		return tx.Preload("AdminNotes", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).First(&w, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"withdrawal": w.ID, "owner": w.OwnerID, "status": w.Status, "admin": p.ID}).Info("withdrawal status updated")
	s.Notifier.Notify(ctx, realtime.EventWithdrawalStatus, &w, w.OwnerID)
	return &w, nil
}

// ListWithdrawals returns the caller's withdrawals, or everyone's for admins.
func (s *WalletService) ListWithdrawals(ctx context.Context, p models.Principal, f WithdrawalFilter) ([]models.Withdrawal, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}

	q := s.DB.WithContext(ctx).Model(&models.Withdrawal{})
	switch {
	case p.IsAdmin():
		if f.OwnerID != nil {
			q = q.Where("owner_id = ?", *f.OwnerID)
		}
	case p.Role.IsServiceActor():
		q = q.Where("owner_id = ?", p.ID)
	default:
		return nil, 0, apperr.Forbidden("PROVIDERS_ONLY", "only providers and inspectors have withdrawals")
	}
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, 0, apperr.Validation("INVALID_STATUS", fmt.Sprintf("invalid withdrawal status %q", f.Status))
		}
		q = q.Where("status = ?", f.Status)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Withdrawal
	err := q.Order("requested_at DESC").Offset((f.Page - 1) * f.Limit).Limit(f.Limit).Find(&list).Error
	return list, total, err
}

func (s *WalletService) GetWithdrawal(ctx context.Context, p models.Principal, id uuid.UUID) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := s.DB.WithContext(ctx).
		Preload("AdminNotes", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&w, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("WITHDRAWAL_NOT_FOUND", "withdrawal not found")
	}
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && w.OwnerID != p.ID {
		return nil, apperr.NotFound("WITHDRAWAL_NOT_FOUND", "withdrawal not found")
	}
	return &w, nil
}
