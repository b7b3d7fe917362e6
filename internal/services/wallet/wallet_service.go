package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/lock"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/models"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/realtime"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/services/fees"
)

type CalculatorSource interface {
	Calculator(ctx context.Context) (fees.Calculator, error)
}

// WalletService owns provider balances. Every balance change is a LedgerEntry
// written under the owner's lock; the ProviderBalance row is the fold of them.
type WalletService struct {
	DB       *gorm.DB
	Fees     CalculatorSource
	Locker   lock.Locker
	Notifier realtime.Notifier
	Now      func() time.Time
}

func NewWalletService(db *gorm.DB, fees CalculatorSource, locker lock.Locker, notifier realtime.Notifier) *WalletService {
	if notifier == nil {
		notifier = realtime.NopNotifier{}
	}
	return &WalletService{DB: db, Fees: fees, Locker: locker, Notifier: notifier, Now: time.Now}
}

// withOwner runs fn in a transaction while holding the owner's lock.
func (s *WalletService) withOwner(ctx context.Context, ownerID uuid.UUID, fn func(tx *gorm.DB) error) error {
	unlock, err := s.Locker.Lock(ctx, lock.OwnerKey(ownerID.String()))
	if err != nil {
		return fmt.Errorf("lock owner %s: %w", ownerID, err)
	}
	defer unlock()
	return s.DB.WithContext(ctx).Transaction(fn)
}

func canSeeBalance(p models.Principal, ownerID uuid.UUID) error {
	if p.IsAdmin() || (p.Role.IsServiceActor() && p.ID == ownerID) {
		return nil
	}
	return apperr.Forbidden("BALANCE_FORBIDDEN", "you can only view your own balance")
}

// GetBalance settles any newly eligible jobs and returns the fresh snapshot.
func (s *WalletService) GetBalance(ctx context.Context, p models.Principal, ownerID uuid.UUID) (*models.ProviderBalance, error) {
	if err := canSeeBalance(p, ownerID); err != nil {
		return nil, err
	}
	calc, err := s.Fees.Calculator(ctx)
	if err != nil {
		return nil, err
	}

	var bal *models.ProviderBalance
	err = s.withOwner(ctx, ownerID, func(tx *gorm.DB) error {
		if err := s.reconcileJobs(tx, ownerID, calc); err != nil {
			return err
		}
		bal, err = s.persistSnapshot(tx, ownerID)
		return err
	})
	return bal, err
}

// reconcileJobs credits earnings for every closed, paid job assigned to owner
// that has no net credit yet, and reverses credits for jobs that left that state.
func (s *WalletService) reconcileJobs(tx *gorm.DB, ownerID uuid.UUID, calc fees.Calculator) error {
	var eligible []models.JobRequest
	if err := tx.Where("assignee_id = ? AND status = ? AND payment_status = ?",
		ownerID, models.JobStatusClosed, models.JobPaid).
		Find(&eligible).Error; err != nil {
		return err
	}

	var entries []models.LedgerEntry
	if err := tx.Where("owner_id = ? AND kind IN ?", ownerID,
		[]models.LedgerKind{models.LedgerJobSettled, models.LedgerJobReversed}).
		Find(&entries).Error; err != nil {
		return err
	}
	credited := map[uuid.UUID]decimal.Decimal{}
	for _, e := range entries {
		credited[e.ReferenceID] = credited[e.ReferenceID].Add(e.Amount)
	}

	now := s.Now()
	eligibleIDs := map[uuid.UUID]bool{}
	for _, job := range eligible {
		eligibleIDs[job.ID] = true
		if credited[job.ID].IsPositive() {
			continue
		}

		base, err := settledBase(tx, &job)
		if err != nil {
			return err
		}
		earned := calc.Earnings(base, job.AssigneeRole)
		if !earned.Earnings.IsPositive() {
			continue
		}
		if err := appendEntry(tx, ownerID, models.LedgerJobSettled, earned.Earnings, job.ID,
			fmt.Sprintf("earnings for job %q (%s%% of %s)", job.Title, earned.Commission, base), now); err != nil {
			return err
		}
		log.WithFields(log.Fields{"owner": ownerID, "job": job.ID, "earnings": earned.Earnings}).Info("job settled to balance")
	}

	for jobID, net := range credited {
		if eligibleIDs[jobID] || !net.IsPositive() {
			continue
		}
		if err := appendEntry(tx, ownerID, models.LedgerJobReversed, net.Neg(), jobID,
			"job no longer closed and paid", now); err != nil {
			return err
		}
		log.WithFields(log.Fields{"owner": ownerID, "job": jobID, "amount": net}).Warn("job settlement reversed")
	}
	return nil
}

// settledBase is the base amount of the job's succeeded payment.
func settledBase(tx *gorm.DB, job *models.JobRequest) (decimal.Decimal, error) {
	var pay models.Payment
	err := tx.Where("job_id = ? AND status = ?", job.ID, models.PaymentSucceeded).First(&pay).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return job.EstimatedTotal, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return pay.BaseAmount, nil
}

func appendEntry(tx *gorm.DB, ownerID uuid.UUID, kind models.LedgerKind, amount decimal.Decimal, ref uuid.UUID, desc string, at time.Time) error {
	return tx.Create(&models.LedgerEntry{
		OwnerID:     ownerID,
		Kind:        kind,
		Amount:      amount,
		ReferenceID: ref,
		Description: desc,
		CreatedAt:   at,
	}).Error
}

// Fold derives the balance figures from ledger entries alone.
func Fold(ownerID uuid.UUID, entries []models.LedgerEntry) models.ProviderBalance {
	var earnings, requested, completed, reversed decimal.Decimal
	for _, e := range entries {
		switch e.Kind {
		case models.LedgerJobSettled, models.LedgerJobReversed:
			earnings = earnings.Add(e.Amount)
		case models.LedgerWithdrawalRequested:
			requested = requested.Add(e.Amount)
		case models.LedgerWithdrawalCompleted:
			completed = completed.Add(e.Amount)
		case models.LedgerWithdrawalReversed:
			reversed = reversed.Add(e.Amount)
		}
	}

	pending := requested.Sub(completed).Sub(reversed)
	available := earnings.Sub(completed).Sub(pending)
	if available.IsNegative() {
		available = decimal.Zero
	}
	return models.ProviderBalance{
		OwnerID:          ownerID,
		TotalEarnings:    earnings,
		AvailableBalance: available,
		PendingBalance:   pending,
		TotalWithdrawn:   completed,
	}
}

func (s *WalletService) persistSnapshot(tx *gorm.DB, ownerID uuid.UUID) (*models.ProviderBalance, error) {
	var entries []models.LedgerEntry
	if err := tx.Where("owner_id = ?", ownerID).Find(&entries).Error; err != nil {
		return nil, err
	}
	bal := Fold(ownerID, entries)
	bal.LastUpdated = s.Now()

	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}},
		UpdateAll: true,
	}).Create(&bal).Error
	return &bal, err
}

type LedgerFilter struct {
	Page  int
	Limit int
}

// ListLedger is the owner's audit trail, newest first.
func (s *WalletService) ListLedger(ctx context.Context, p models.Principal, ownerID uuid.UUID, f LedgerFilter) ([]models.LedgerEntry, int64, error) {
	if err := canSeeBalance(p, ownerID); err != nil {
		return nil, 0, err
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 50
	}

	q := s.DB.WithContext(ctx).Model(&models.LedgerEntry{}).Where("owner_id = ?", ownerID).Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var entries []models.LedgerEntry
	err := q.Order("created_at DESC").Offset((f.Page - 1) * f.Limit).Limit(f.Limit).Find(&entries).Error
	return entries, total, err
}
