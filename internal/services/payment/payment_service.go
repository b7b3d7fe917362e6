package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
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

type PaymentService struct {
	DB       *gorm.DB
	Gateway  Gateway
	Fees     CalculatorSource
	Locker   lock.Locker
	Notifier realtime.Notifier
	Currency string
	Now      func() time.Time
}

func NewPaymentService(db *gorm.DB, gw Gateway, fees CalculatorSource, locker lock.Locker, notifier realtime.Notifier, currency string) *PaymentService {
	if notifier == nil {
		notifier = realtime.NopNotifier{}
	}
	if currency == "" {
		currency = "usd"
	}
	return &PaymentService{
		DB:       db,
		Gateway:  gw,
		Fees:     fees,
		Locker:   locker,
		Notifier: notifier,
		Currency: strings.ToLower(currency),
		Now:      time.Now,
	}
}

type IntentResult struct {
	PaymentID    uuid.UUID      `json:"payment_id"`
	IntentID     string         `json:"payment_intent_id"`
	ClientSecret string         `json:"client_secret"`
	Gateway      string         `json:"gateway"`
	Currency     string         `json:"currency"`
	AmountMinor  int64          `json:"amount"`
	Breakdown    fees.Breakdown `json:"breakdown"`
}

const (
	metaJobID         = "job_id"
	metaClientID      = "client_id"
	metaBaseAmount    = "base_amount"
	metaPlatformFee   = "platform_fee"
	metaProcessingFee = "processing_fee"
	metaTotalAmount   = "total_amount"
)

func (s *PaymentService) loadJob(ctx context.Context, jobID uuid.UUID) (*models.JobRequest, error) {
	var job models.JobRequest
	err := s.DB.WithContext(ctx).First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("JOB_NOT_FOUND", "job request not found")
	}
	return &job, err
}

func ownerOnly(p models.Principal, job *models.JobRequest) error {
	if p.Role != models.RoleClient || !job.IsOwner(p.ID) {
		return apperr.Forbidden("OWNER_ONLY", "only the job owner can pay for it")
	}
	return nil
}

// CreateIntent opens a checkout for a closed, unpaid job.
func (s *PaymentService) CreateIntent(ctx context.Context, p models.Principal, jobID uuid.UUID) (*IntentResult, error) {
	unlock, err := s.Locker.Lock(ctx, lock.PaymentKey(jobID.String()))
	if err != nil {
		return nil, fmt.Errorf("lock payment %s: %w", jobID, err)
	}
	defer unlock()

	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := ownerOnly(p, job); err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusClosed {
		return nil, apperr.Conflict("JOB_NOT_CLOSED", "only closed jobs can be paid")
	}
	if job.PaymentStatus == models.JobPaid {
		return nil, apperr.Conflict("ALREADY_PAID", "job has already been paid")
	}

	var active int64
	if err := s.DB.WithContext(ctx).Model(&models.Payment{}).
		Where("job_id = ? AND status IN ?", jobID, []models.PaymentStatus{models.PaymentPending, models.PaymentSucceeded}).
		Count(&active).Error; err != nil {
		return nil, err
	}
	if active > 0 {
		return nil, apperr.Conflict("PAYMENT_IN_PROGRESS", "a payment for this job is already in progress")
	}
	if err := s.closeFailedIntents(ctx, jobID); err != nil {
		return nil, err
	}

	calc, err := s.Fees.Calculator(ctx)
	if err != nil {
		return nil, err
	}
	if !job.EstimatedTotal.IsPositive() {
		return nil, apperr.Validation("INVALID_AMOUNT", "job has no amount to charge")
	}
	bd := calc.Total(job.EstimatedTotal)
	minor := bd.MinorUnits()

	intent, err := s.Gateway.CreateIntent(ctx, minor, s.Currency, map[string]string{
		metaJobID:         jobID.String(),
		metaClientID:      job.ClientID.String(),
		metaBaseAmount:    bd.BaseAmount.String(),
		metaPlatformFee:   bd.PlatformFee.String(),
		metaProcessingFee: bd.ProcessingFee.String(),
		metaTotalAmount:   bd.TotalAmount.String(),
	})
	if err != nil {
		return nil, err
	}

	pay := &models.Payment{
		JobID:         jobID,
		ClientID:      job.ClientID,
		IntentID:      intent.ID,
		Gateway:       s.Gateway.Name(),
		Currency:      s.Currency,
		AmountMinor:   minor,
		BaseAmount:    bd.BaseAmount,
		PlatformFee:   bd.PlatformFee,
		ProcessingFee: bd.ProcessingFee,
		TotalAmount:   bd.TotalAmount,
		Status:        models.PaymentPending,
	}
	if err := s.DB.WithContext(ctx).Create(pay).Error; err != nil {
		log.WithError(err).WithFields(log.Fields{"job": jobID, "intent": intent.ID}).Error("failed to persist payment")
		return nil, apperr.Conflict("PAYMENT_IN_PROGRESS", "a payment for this job is already in progress")
	}

	log.WithFields(log.Fields{"job": jobID, "payment": pay.ID, "intent": intent.ID, "amount": minor}).Info("payment intent created")
	return &IntentResult{
		PaymentID:    pay.ID,
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Gateway:      pay.Gateway,
		Currency:     pay.Currency,
		AmountMinor:  minor,
		Breakdown:    bd,
	}, nil
}

// closeFailedIntents cancels the gateway intents of earlier failed attempts so
// a late capture cannot land next to a new checkout.
func (s *PaymentService) closeFailedIntents(ctx context.Context, jobID uuid.UUID) error {
	var failed []models.Payment
	if err := s.DB.WithContext(ctx).
		Where("job_id = ? AND status = ? AND intent_closed_at IS NULL", jobID, models.PaymentFailed).
		Find(&failed).Error; err != nil {
		return err
	}
	for _, pay := range failed {
		err := s.Gateway.CancelIntent(ctx, pay.IntentID)
		if hasCode(err, codeIntentSucceeded) {
			if _, serr := s.settle(ctx, &Intent{ID: pay.IntentID, Status: IntentSucceeded}); serr != nil && !hasCode(serr, codePaymentClosed) {
				return serr
			}
			return apperr.Conflict("PAYMENT_UNDER_REVIEW", "an earlier payment attempt was captured and is under review")
		}
		if err != nil {
			return err
		}
		if err := s.DB.WithContext(ctx).Model(&models.Payment{}).
			Where("id = ?", pay.ID).Update("intent_closed_at", s.Now()).Error; err != nil {
			return err
		}
	}
	return nil
}

// Confirm asks the gateway for the intent's state and applies it.
func (s *PaymentService) Confirm(ctx context.Context, p models.Principal, jobID uuid.UUID, intentID string) (*models.Payment, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, apperr.Validation("INTENT_REQUIRED", "payment_intent_id is required")
	}
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := ownerOnly(p, job); err != nil {
		return nil, err
	}

	intent, err := s.Gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if id := intent.Metadata[metaJobID]; id != "" && id != jobID.String() {
		return nil, apperr.Validation("INTENT_MISMATCH", "payment intent belongs to another job")
	}

	switch intent.Status {
	case IntentSucceeded:
		return s.settle(ctx, intent)
	case IntentCanceled:
		return s.markCancelled(ctx, intent)
	default:
		return nil, apperr.Validation("PAYMENT_NOT_COMPLETED", fmt.Sprintf("payment status is %s", intent.Status))
	}
}

// findOrRebuild loads the Payment for intent, recreating it from the intent
// metadata when the row was never written.
func (s *PaymentService) findOrRebuild(tx *gorm.DB, intent *Intent) (*models.Payment, error) {
	var pay models.Payment
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&pay, "intent_id = ?", intent.ID).Error
	if err == nil {
		return &pay, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	md := intent.Metadata
	jobID, err := uuid.Parse(md[metaJobID])
	if err != nil {
		return nil, apperr.Validation("UNKNOWN_INTENT", "payment intent is not linked to a job")
	}
	clientID, _ := uuid.Parse(md[metaClientID])
	amount := func(key string) decimal.Decimal {
		d, err := decimal.NewFromString(md[key])
		if err != nil {
			return decimal.Zero
		}
		return d
	}

	// another checkout already owns the job; keep the row only as a record
	status := models.PaymentPending
	var active int64
	if err := tx.Model(&models.Payment{}).
		Where("job_id = ? AND status IN ?", jobID, []models.PaymentStatus{models.PaymentPending, models.PaymentSucceeded}).
		Count(&active).Error; err != nil {
		return nil, err
	}
	if active > 0 {
		status = models.PaymentCancelled
	}

	pay = models.Payment{
		JobID:         jobID,
		ClientID:      clientID,
		IntentID:      intent.ID,
		Gateway:       s.Gateway.Name(),
		Currency:      intent.Currency,
		AmountMinor:   intent.AmountMinor,
		BaseAmount:    amount(metaBaseAmount),
		PlatformFee:   amount(metaPlatformFee),
		ProcessingFee: amount(metaProcessingFee),
		TotalAmount:   amount(metaTotalAmount),
		Status:        status,
	}
	if err := tx.Create(&pay).Error; err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"job": jobID, "intent": intent.ID}).Warn("payment row rebuilt from intent metadata")
	return &pay, nil
}

const codePaymentClosed = "PAYMENT_CLOSED"

// settle marks the payment succeeded and the job paid in one transaction.
// A success reported for a failed or cancelled payment leaves it closed and
// flags it for review instead.
func (s *PaymentService) settle(ctx context.Context, intent *Intent) (*models.Payment, error) {
	var pay *models.Payment
	var job models.JobRequest
	changed, flagged := false, false

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if pay, err = s.findOrRebuild(tx, intent); err != nil {
			return err
		}
		if pay.Status == models.PaymentSucceeded {
			return nil
		}
		if pay.Status.Closed() {
			if pay.ReviewReason != "" {
				return nil
			}
			pay.ReviewReason = fmt.Sprintf("gateway captured intent after payment was %s", pay.Status)
			flagged = true
			return tx.Model(pay).Update("review_reason", pay.ReviewReason).Error
		}

		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&job, "id = ?", pay.JobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("JOB_NOT_FOUND", "job request not found")
			}
			return err
		}

		now := s.Now()
		pay.Status = models.PaymentSucceeded
		pay.PaidAt = &now
		pay.FailureReason = ""
		if err := tx.Save(pay).Error; err != nil {
			return err
		}
		changed = true
		return tx.Model(&job).Updates(map[string]interface{}{
			"payment_status": models.JobPaid,
			"paid_at":        now,
			"payment_amount": pay.TotalAmount,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	if pay.Status.Closed() {
		if flagged {
			log.WithFields(log.Fields{"job": pay.JobID, "payment": pay.ID, "intent": intent.ID, "status": pay.Status}).
				Error("payment captured after it was closed, refund required")
			s.Notifier.Notify(ctx, realtime.EventPaymentReview, pay, pay.ClientID)
		}
		return pay, apperr.Conflict(codePaymentClosed, "payment is already "+string(pay.Status)+"; the capture was flagged for review")
	}

	if changed {
		log.WithFields(log.Fields{"job": pay.JobID, "payment": pay.ID, "intent": intent.ID}).Info("payment succeeded")
		recipients := []uuid.UUID{job.ClientID}
		if job.AssigneeID != nil {
			recipients = append(recipients, *job.AssigneeID)
		}
		s.Notifier.Notify(ctx, realtime.EventPaymentSucceeded, pay, recipients...)
	}
	return pay, nil
}

func (s *PaymentService) markFailed(ctx context.Context, intent *Intent) (*models.Payment, error) {
	var pay models.Payment
	moved := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&pay, "intent_id = ?", intent.ID).Error; err != nil {
			return err
		}
		if pay.Status != models.PaymentPending {
			return nil
		}
		pay.Status = models.PaymentFailed
		pay.FailureReason = intent.LastError
		moved = true
		return tx.Save(&pay).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.WithField("intent", intent.ID).Warn("failure reported for unknown payment intent")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if moved {
		log.WithFields(log.Fields{"job": pay.JobID, "payment": pay.ID, "reason": pay.FailureReason}).Warn("payment failed")
		s.Notifier.Notify(ctx, realtime.EventPaymentFailed, &pay, pay.ClientID)
	}
	return &pay, nil
}

func (s *PaymentService) markCancelled(ctx context.Context, intent *Intent) (*models.Payment, error) {
	var pay models.Payment
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&pay, "intent_id = ?", intent.ID).Error; err != nil {
			return err
		}
		switch pay.Status {
		case models.PaymentCancelled:
			return nil
		case models.PaymentSucceeded:
			log.WithField("payment", pay.ID).Warn("ignoring cancellation of a succeeded payment")
			return nil
		}
		pay.Status = models.PaymentCancelled
		return tx.Save(&pay).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.WithField("intent", intent.ID).Warn("cancellation reported for unknown payment intent")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pay, nil
}

// HandleWebhook verifies and applies a gateway delivery. Redeliveries of an
// event that was already processed are acknowledged without side effects.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.Gateway.ParseWebhook(payload, signature)
	if err != nil {
		log.WithError(err).Warn("webhook rejected")
		return err
	}

	record := models.WebhookEvent{
		Gateway:   s.Gateway.Name(),
		EventID:   ev.ID,
		EventType: ev.Type,
		Payload:   datatypes.JSON(payload),
		CreatedAt: s.Now(),
	}
	if ev.Intent != nil {
		record.IntentID = ev.Intent.ID
	}
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var existing models.WebhookEvent
		if err := s.DB.WithContext(ctx).
			First(&existing, "gateway = ? AND event_id = ?", s.Gateway.Name(), ev.ID).Error; err != nil {
			return err
		}
		record = existing
		if record.ProcessedAt != nil {
			log.WithFields(log.Fields{"event": ev.ID, "type": ev.Type}).Info("duplicate webhook ignored")
			return nil
		}
	}

	procErr := s.apply(ctx, ev)
	updates := map[string]interface{}{"processing_error": ""}
	if procErr != nil {
		updates["processing_error"] = procErr.Error()
	} else {
		updates["processed_at"] = s.Now()
	}
	if err := s.DB.WithContext(ctx).Model(&record).Updates(updates).Error; err != nil {
		log.WithError(err).WithField("event", ev.ID).Error("failed to record webhook outcome")
	}
	if procErr != nil {
		log.WithError(procErr).WithFields(log.Fields{"event": ev.ID, "type": ev.Type}).Error("webhook processing failed")
	}
	return procErr
}

func (s *PaymentService) apply(ctx context.Context, ev *Event) error {
	if ev.Intent == nil {
		return nil
	}
	var err error
	switch ev.Type {
	case EventIntentSucceeded:
		_, err = s.settle(ctx, ev.Intent)
		if hasCode(err, codePaymentClosed) {
			// recorded on the payment; redelivering will not change it
			err = nil
		}
	case EventIntentFailed:
		_, err = s.markFailed(ctx, ev.Intent)
	case EventIntentCanceled:
		_, err = s.markCancelled(ctx, ev.Intent)
	default:
		log.WithField("type", ev.Type).Debug("unhandled webhook event")
	}
	return err
}

// ListPayments returns every attempt for a job, newest first.
func (s *PaymentService) ListPayments(ctx context.Context, p models.Principal, jobID uuid.UUID) ([]models.Payment, error) {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.CanView(p) {
		return nil, apperr.Forbidden("NOT_A_PARTICIPANT", "you are not a participant of this job")
	}
	var list []models.Payment
	err = s.DB.WithContext(ctx).Where("job_id = ?", jobID).Order("created_at DESC").Find(&list).Error
	return list, err
}
