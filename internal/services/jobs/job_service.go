package jobs

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/models"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/realtime"
)

type JobService struct {
	DB       *gorm.DB
	Policy   Policy
	Notifier realtime.Notifier
	Now      func() time.Time
}

func NewJobService(db *gorm.DB, notifier realtime.Notifier) *JobService {
	if notifier == nil {
		notifier = realtime.NopNotifier{}
	}
	return &JobService{DB: db, Policy: DefaultPolicy(), Notifier: notifier, Now: time.Now}
}

type CreateInput struct {
	// Admin only: create on behalf of a client.
	ClientID *uuid.UUID `json:"client_id"`

	AssigneeID             *uuid.UUID      `json:"assignee_id"`
	AssigneeRole           models.Role     `json:"assignee_role"`
	Title                  string          `json:"title"`
	Description            string          `json:"description"`
	Location               string          `json:"location"`
	RequiredServices       []string        `json:"required_services"`
	EstimatedTotal         decimal.Decimal `json:"estimated_total"`
	PreferredStartDate     *time.Time      `json:"preferred_start_date"`
	ExpectedCompletionDate *time.Time      `json:"expected_completion_date"`
}

type UpdateInput struct {
	Title                  *string          `json:"title"`
	Description            *string          `json:"description"`
	Location               *string          `json:"location"`
	RequiredServices       *[]string        `json:"required_services"`
	EstimatedTotal         *decimal.Decimal `json:"estimated_total"`
	PreferredStartDate     *time.Time       `json:"preferred_start_date"`
	ExpectedCompletionDate *time.Time       `json:"expected_completion_date"`
	AssigneeID             *uuid.UUID       `json:"assignee_id"`
	AssigneeRole           *models.Role     `json:"assignee_role"`
}

type ListFilter struct {
	Status models.JobStatus
	Page   int
	Limit  int
}

type StatusInput struct {
	Status           models.JobStatus `json:"status"`
	FinalQuotationID *uuid.UUID       `json:"final_quotation_id"`
	Reason           string           `json:"reason"`
}

func jobNotFound() error { return apperr.NotFound("JOB_NOT_FOUND", "job request not found") }

// lockJob loads the job row FOR UPDATE inside tx.
func lockJob(tx *gorm.DB, id uuid.UUID) (*models.JobRequest, error) {
	var job models.JobRequest
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, jobNotFound()
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func validateAssignee(id *uuid.UUID, role models.Role) error {
	if id == nil {
		return nil
	}
	if !role.IsServiceActor() {
		return apperr.Validation("INVALID_ASSIGNEE", "assignee_role must be provider or inspector")
	}
	return nil
}

func (s *JobService) Create(ctx context.Context, p models.Principal, in CreateInput) (*models.JobRequest, error) {
	clientID := p.ID
	switch {
	case p.IsAdmin():
		if in.ClientID == nil {
			return nil, apperr.Validation("CLIENT_REQUIRED", "client_id is required when an admin creates a job")
		}
		clientID = *in.ClientID
	case p.Role != models.RoleClient:
		return nil, apperr.Forbidden("CLIENT_ONLY", "only clients can post job requests")
	}

	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, apperr.Validation("TITLE_REQUIRED", "title is required")
	}
	if in.EstimatedTotal.IsNegative() {
		return nil, apperr.Validation("INVALID_AMOUNT", "estimated_total must not be negative")
	}
	if err := validateAssignee(in.AssigneeID, in.AssigneeRole); err != nil {
		return nil, err
	}

	job := &models.JobRequest{
		ClientID:               clientID,
		AssigneeID:             in.AssigneeID,
		Title:                  in.Title,
		Description:            in.Description,
		Location:               in.Location,
		RequiredServices:       in.RequiredServices,
		EstimatedTotal:         in.EstimatedTotal,
		PreferredStartDate:     in.PreferredStartDate,
		ExpectedCompletionDate: in.ExpectedCompletionDate,
		Status:                 models.JobStatusOpen,
		PaymentStatus:          models.JobUnpaid,
	}
	if in.AssigneeID != nil {
		job.AssigneeRole = in.AssigneeRole
	}

	if err := s.DB.WithContext(ctx).Create(job).Error; err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"job": job.ID, "client": clientID}).Info("job request created")
	if job.AssigneeID != nil {
		s.Notifier.Notify(ctx, realtime.EventJobUpdated, job, *job.AssigneeID)
	}
	return job, nil
}

func (s *JobService) List(ctx context.Context, p models.Principal, f ListFilter) ([]models.JobRequest, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}

	q := s.DB.WithContext(ctx).Model(&models.JobRequest{})
	switch {
	case p.IsAdmin():
	case p.Role == models.RoleClient:
		q = q.Where("client_id = ?", p.ID)
	case p.Role.IsServiceActor():
		q = q.Where("assignee_id = ?", p.ID)
	default:
		return nil, 0, apperr.Forbidden("ROLE_NOT_ALLOWED", "role cannot list job requests")
	}
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, 0, apperr.Validation("INVALID_STATUS", "unknown status filter")
		}
		q = q.Where("status = ?", f.Status)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var jobs []models.JobRequest
	err := q.Order("created_at DESC").
		Offset((f.Page - 1) * f.Limit).
		Limit(f.Limit).
		Find(&jobs).Error
	return jobs, total, err
}

func (s *JobService) Get(ctx context.Context, p models.Principal, id uuid.UUID) (*models.JobRequest, error) {
	bySeq := func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC") }

	var job models.JobRequest
	err := s.DB.WithContext(ctx).
		Preload("Quotations", bySeq).
		Preload("Quotations.Negotiations", bySeq).
		Preload("Notes", bySeq).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Rating").
		First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, jobNotFound()
	}
	if err != nil {
		return nil, err
	}
	if !job.CanView(p) {
		return nil, apperr.Forbidden("NOT_A_PARTICIPANT", "you are not a participant of this job")
	}
	return &job, nil
}

func (s *JobService) Update(ctx context.Context, p models.Principal, id uuid.UUID, in UpdateInput) (*models.JobRequest, error) {
	var job *models.JobRequest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if job, err = lockJob(tx, id); err != nil {
			return err
		}
		if !p.IsAdmin() && !(p.Role == models.RoleClient && job.IsOwner(p.ID)) {
			return apperr.Forbidden("OWNER_ONLY", "only the job owner can edit it")
		}
		if job.Status.EditLocked() {
			return apperr.Conflict("JOB_NOT_EDITABLE", "job can no longer be edited in status "+string(job.Status))
		}

		if in.Title != nil {
			title := strings.TrimSpace(*in.Title)
			if title == "" {
				return apperr.Validation("TITLE_REQUIRED", "title is required")
			}
			job.Title = title
		}
		if in.Description != nil {
			job.Description = *in.Description
		}
		if in.Location != nil {
			job.Location = *in.Location
		}
		if in.RequiredServices != nil {
			job.RequiredServices = *in.RequiredServices
		}
		if in.EstimatedTotal != nil {
			if in.EstimatedTotal.IsNegative() {
				return apperr.Validation("INVALID_AMOUNT", "estimated_total must not be negative")
			}
			job.EstimatedTotal = *in.EstimatedTotal
		}
		if in.PreferredStartDate != nil {
			job.PreferredStartDate = in.PreferredStartDate
		}
		if in.ExpectedCompletionDate != nil {
			job.ExpectedCompletionDate = in.ExpectedCompletionDate
		}
		if in.AssigneeID != nil {
			role := job.AssigneeRole
			if in.AssigneeRole != nil {
				role = *in.AssigneeRole
			}
			if err := validateAssignee(in.AssigneeID, role); err != nil {
				return err
			}
			job.AssigneeID = in.AssigneeID
			job.AssigneeRole = role
		}

		return tx.Save(job).Error
	})
	if err != nil {
		return nil, err
	}

	s.notifyParticipants(ctx, realtime.EventJobUpdated, job)
	return job, nil
}

func (s *JobService) Delete(ctx context.Context, p models.Principal, id uuid.UUID) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, err := lockJob(tx, id)
		if err != nil {
			return err
		}
		if !p.IsAdmin() && !(p.Role == models.RoleClient && job.IsOwner(p.ID)) {
			return apperr.Forbidden("OWNER_ONLY", "only the job owner can delete it")
		}
		if job.Status.DeleteLocked() {
			return apperr.Conflict("JOB_NOT_DELETABLE", "job cannot be deleted in status "+string(job.Status))
		}

		quotes := tx.Model(&models.Quotation{}).Select("id").Where("job_id = ?", id)
		if err := tx.Where("quotation_id IN (?)", quotes).Delete(&models.NegotiationMessage{}).Error; err != nil {
			return err
		}
		for _, child := range []interface{}{&models.Quotation{}, &models.InternalNote{}, &models.Attachment{}, &models.Review{}} {
			if err := tx.Where("job_id = ?", id).Delete(child).Error; err != nil {
				return err
			}
		}
		if err := tx.Delete(job).Error; err != nil {
			return err
		}
		log.WithFields(log.Fields{"job": id, "by": p.ID}).Info("job request deleted")
		return nil
	})
}

// UpdateStatus applies a transition and its side effects in one transaction.
func (s *JobService) UpdateStatus(ctx context.Context, p models.Principal, id uuid.UUID, in StatusInput) (*models.JobRequest, error) {
	var job *models.JobRequest
	var from models.JobStatus
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if job, err = lockJob(tx, id); err != nil {
			return err
		}
		if err := s.Policy.CheckTransition(p, job, in.Status); err != nil {
			return err
		}
		from = job.Status
		now := s.Now()

		switch in.Status {
		case models.JobStatusInProgress:
			if job.ActualStartDate == nil {
				job.ActualStartDate = &now
			}
		case models.JobStatusCompleted:
			if job.ActualCompletionDate == nil {
				job.ActualCompletionDate = &now
			}
		case models.JobStatusAccepted:
			qid := in.FinalQuotationID
			if qid == nil {
				qid = job.FinalQuotationID
			}
			if qid != nil {
				if err := acceptQuotation(tx, job, *qid); err != nil {
					return err
				}
			}
		}

		job.Status = in.Status
		if err := tx.Save(job).Error; err != nil {
			return err
		}

		if reason := strings.TrimSpace(in.Reason); reason != "" {
			if _, err := appendNote(tx, job.ID, p.ID, reason, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"job": id, "from": from, "to": in.Status, "by": p.ID}).Info("job status changed")
	s.notifyParticipants(ctx, realtime.EventJobStatus, job)
	return job, nil
}

// acceptQuotation marks qid accepted on job. Caller holds the job row lock.
func acceptQuotation(tx *gorm.DB, job *models.JobRequest, qid uuid.UUID) error {
	var q models.Quotation
	err := tx.First(&q, "id = ? AND job_id = ?", qid, job.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("QUOTATION_NOT_FOUND", "quotation not found on this job")
	}
	if err != nil {
		return err
	}

	var others int64
	if err := tx.Model(&models.Quotation{}).
		Where("job_id = ? AND status = ? AND id <> ?", job.ID, models.QuotationAccepted, qid).
		Count(&others).Error; err != nil {
		return err
	}
	if others > 0 {
		return apperr.Conflict("QUOTATION_ALREADY_ACCEPTED", "another quotation is already accepted for this job")
	}

	if q.Status != models.QuotationAccepted {
		q.Status = models.QuotationAccepted
		if err := tx.Save(&q).Error; err != nil {
			return err
		}
	}
	job.FinalQuotationID = &q.ID
	job.EstimatedTotal = q.QuotedAmount
	return nil
}

func appendNote(tx *gorm.DB, jobID, authorID uuid.UUID, text string, at time.Time) (*models.InternalNote, error) {
	seq, err := nextSequence(tx, &models.InternalNote{}, "job_id", jobID)
	if err != nil {
		return nil, err
	}
	note := &models.InternalNote{JobID: jobID, Sequence: seq, AuthorID: authorID, Text: text, CreatedAt: at}
	return note, tx.Create(note).Error
}

func (s *JobService) notifyParticipants(ctx context.Context, event string, job *models.JobRequest) {
	ids := []uuid.UUID{job.ClientID}
	if job.AssigneeID != nil {
		ids = append(ids, *job.AssigneeID)
	}
	s.Notifier.Notify(ctx, event, job, ids...)
}
