package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/models"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/realtime"
)

type QuotationInput struct {
	QuotedAmount *decimal.Decimal `json:"quoted_amount"`
	Details      string           `json:"quotation_details"`
	ValidUntil   *time.Time       `json:"valid_until"`
}

type QuotationStatusInput struct {
	Status         models.QuotationStatus `json:"status"`
	ClientResponse string                 `json:"client_response"`
}

type NegotiationInput struct {
	Message        string           `json:"message"`
	ProposedAmount *decimal.Decimal `json:"proposed_amount"`
	CounterOffer   string           `json:"counter_offer"`
}

func quotationNotFound() error {
	return apperr.NotFound("QUOTATION_NOT_FOUND", "quotation not found on this job")
}

func findQuotation(tx *gorm.DB, jobID, qid uuid.UUID) (*models.Quotation, error) {
	var q models.Quotation
	err := tx.First(&q, "id = ? AND job_id = ?", qid, jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, quotationNotFound()
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func nextSequence(tx *gorm.DB, model interface{}, column string, parent uuid.UUID) (int, error) {
	var last int
	err := tx.Model(model).
		Where(column+" = ?", parent).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&last).Error
	return last + 1, err
}

// AddQuotation appends a pending quotation from the assigned provider.
func (s *JobService) AddQuotation(ctx context.Context, p models.Principal, jobID uuid.UUID, in QuotationInput) (*models.Quotation, error) {
	if in.QuotedAmount == nil {
		return nil, apperr.Validation("QUOTED_AMOUNT_REQUIRED", "quoted_amount is required")
	}
	if !in.QuotedAmount.IsPositive() {
		return nil, apperr.Validation("INVALID_AMOUNT", "quoted_amount must be greater than zero")
	}

	var job *models.JobRequest
	var quote *models.Quotation
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if job, err = lockJob(tx, jobID); err != nil {
			return err
		}
		if !p.Role.IsServiceActor() || !job.IsAssignee(p.ID) {
			return apperr.Forbidden("ASSIGNEE_ONLY", "only the assigned provider can quote this job")
		}
		if job.Status != models.JobStatusOpen && job.Status != models.JobStatusNegotiating {
			return apperr.Conflict("JOB_NOT_QUOTABLE", "quotations are only accepted while the job is open or negotiating")
		}

		seq, err := nextSequence(tx, &models.Quotation{}, "job_id", jobID)
		if err != nil {
			return err
		}
		quote = &models.Quotation{
			JobID:        jobID,
			Sequence:     seq,
			ProviderID:   p.ID,
			QuotedAmount: *in.QuotedAmount,
			Details:      in.Details,
			ValidUntil:   in.ValidUntil,
			Status:       models.QuotationPending,
		}
		return tx.Create(quote).Error
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"job": jobID, "quotation": quote.ID, "amount": quote.QuotedAmount}).Info("quotation added")
	s.Notifier.Notify(ctx, realtime.EventQuotationAdded, quote, job.ClientID)
	return quote, nil
}

func (s *JobService) ListQuotations(ctx context.Context, p models.Principal, jobID uuid.UUID) ([]models.Quotation, error) {
	var job models.JobRequest
	err := s.DB.WithContext(ctx).First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, jobNotFound()
	}
	if err != nil {
		return nil, err
	}
	if !job.CanView(p) {
		return nil, apperr.Forbidden("NOT_A_PARTICIPANT", "you are not a participant of this job")
	}

	var quotes []models.Quotation
	err = s.DB.WithContext(ctx).
		Preload("Negotiations", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC") }).
		Where("job_id = ?", jobID).
		Order("sequence ASC").
		Find(&quotes).Error
	return quotes, err
}

// UpdateQuotationStatus is the owning client's answer to a quotation.
func (s *JobService) UpdateQuotationStatus(ctx context.Context, p models.Principal, jobID, qid uuid.UUID, in QuotationStatusInput) (*models.Quotation, error) {
	switch in.Status {
	case models.QuotationAccepted, models.QuotationRejected, models.QuotationNegotiating:
	default:
		return nil, apperr.Validation("INVALID_STATUS", fmt.Sprintf("quotation status must be accepted, rejected or negotiating, got %q", in.Status))
	}

	var job *models.JobRequest
	var quote *models.Quotation
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if job, err = lockJob(tx, jobID); err != nil {
			return err
		}
		if p.Role != models.RoleClient || !job.IsOwner(p.ID) {
			return apperr.Forbidden("OWNER_ONLY", "only the job owner can respond to quotations")
		}
		if quote, err = findQuotation(tx, jobID, qid); err != nil {
			return err
		}
		if job.Status.EditLocked() {
			return apperr.Conflict("JOB_NOT_EDITABLE", "job can no longer change quotations in status "+string(job.Status))
		}
		if quote.Status == models.QuotationAccepted && in.Status != models.QuotationAccepted {
			return apperr.Conflict("QUOTATION_ALREADY_ACCEPTED", "an accepted quotation cannot be reopened")
		}

		if resp := strings.TrimSpace(in.ClientResponse); resp != "" {
			quote.ClientResponse = resp
		}

		switch in.Status {
		case models.QuotationAccepted:
			if err := tx.Save(quote).Error; err != nil {
				return err
			}
			if err := acceptQuotation(tx, job, quote.ID); err != nil {
				return err
			}
			quote.Status = models.QuotationAccepted
			job.Status = models.JobStatusAccepted
		case models.QuotationNegotiating:
			quote.Status = models.QuotationNegotiating
			job.Status = models.JobStatusNegotiating
			if err := tx.Save(quote).Error; err != nil {
				return err
			}
		case models.QuotationRejected:
			quote.Status = models.QuotationRejected
			if err := tx.Save(quote).Error; err != nil {
				return err
			}
		}
		return tx.Save(job).Error
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"job": jobID, "quotation": qid, "status": in.Status}).Info("quotation status changed")
	s.Notifier.Notify(ctx, realtime.EventQuotationStatus, quote, quote.ProviderID, job.ClientID)
	return quote, nil
}

// AddNegotiationMessage appends to the quotation thread and moves both the
// quotation and the job to negotiating.
func (s *JobService) AddNegotiationMessage(ctx context.Context, p models.Principal, jobID, qid uuid.UUID, in NegotiationInput) (*models.NegotiationMessage, error) {
	in.Message = strings.TrimSpace(in.Message)
	in.CounterOffer = strings.TrimSpace(in.CounterOffer)
	if in.Message == "" && in.ProposedAmount == nil && in.CounterOffer == "" {
		return nil, apperr.Validation("EMPTY_MESSAGE", "message, proposed_amount or counter_offer is required")
	}
	if in.ProposedAmount != nil && !in.ProposedAmount.IsPositive() {
		return nil, apperr.Validation("INVALID_AMOUNT", "proposed_amount must be greater than zero")
	}

	var job *models.JobRequest
	var quote *models.Quotation
	var msg *models.NegotiationMessage
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if job, err = lockJob(tx, jobID); err != nil {
			return err
		}
		if quote, err = findQuotation(tx, jobID, qid); err != nil {
			return err
		}
		isOwner := p.Role == models.RoleClient && job.IsOwner(p.ID)
		isQuoter := p.Role.IsServiceActor() && quote.ProviderID == p.ID
		if !isOwner && !isQuoter {
			return apperr.Forbidden("NOT_A_NEGOTIATOR", "only the job owner or the quoting provider can negotiate")
		}
		if quote.Status == models.QuotationAccepted {
			return apperr.Conflict("QUOTATION_ALREADY_ACCEPTED", "an accepted quotation cannot be renegotiated")
		}
		if job.Status.EditLocked() {
			return apperr.Conflict("JOB_NOT_EDITABLE", "job can no longer be negotiated in status "+string(job.Status))
		}

		seq, err := nextSequence(tx, &models.NegotiationMessage{}, "quotation_id", qid)
		if err != nil {
			return err
		}
		msg = &models.NegotiationMessage{
			QuotationID:  qid,
			Sequence:     seq,
			AuthorID:     p.ID,
			AuthorRole:   p.Role,
			Message:      in.Message,
			CounterOffer: in.CounterOffer,
			CreatedAt:    s.Now(),
		}
		if in.ProposedAmount != nil {
			msg.ProposedAmount = decimal.NewNullDecimal(*in.ProposedAmount)
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}

		quote.Status = models.QuotationNegotiating
		if err := tx.Save(quote).Error; err != nil {
			return err
		}
		job.Status = models.JobStatusNegotiating
		return tx.Save(job).Error
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"job": jobID, "quotation": qid, "seq": msg.Sequence}).Info("negotiation message added")
	s.Notifier.Notify(ctx, realtime.EventNegotiation, msg, job.ClientID, quote.ProviderID)
	return msg, nil
}
