package jobs

import (
	"context"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/models"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/realtime"
)

type NoteInput struct {
	Text string `json:"text"`
}

type AttachmentInput struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Category string `json:"category"`
}

type RatingInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (s *JobService) AddNote(ctx context.Context, p models.Principal, jobID uuid.UUID, in NoteInput) (*models.InternalNote, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, apperr.Validation("TEXT_REQUIRED", "text is required")
	}

	var note *models.InternalNote
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, err := lockJob(tx, jobID)
		if err != nil {
			return err
		}
		if !job.CanView(p) {
			return apperr.Forbidden("NOT_A_PARTICIPANT", "you are not a participant of this job")
		}
		note, err = appendNote(tx, jobID, p.ID, text, s.Now())
		return err
	})
	return note, err
}

// AddAttachment stores a reference to a file already uploaded elsewhere.
func (s *JobService) AddAttachment(ctx context.Context, p models.Principal, jobID uuid.UUID, in AttachmentInput) (*models.Attachment, error) {
	in.URL = strings.TrimSpace(in.URL)
	if in.URL == "" {
		return nil, apperr.Validation("URL_REQUIRED", "url is required")
	}
	if in.Size < 0 {
		return nil, apperr.Validation("INVALID_SIZE", "size must not be negative")
	}

	var job *models.JobRequest
	var att *models.Attachment
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if job, err = lockJob(tx, jobID); err != nil {
			return err
		}
		if !job.CanView(p) {
			return apperr.Forbidden("NOT_A_PARTICIPANT", "you are not a participant of this job")
		}
		att = &models.Attachment{
			JobID:      jobID,
			URL:        in.URL,
			Filename:   in.Filename,
			Size:       in.Size,
			UploadedBy: p.ID,
			Category:   in.Category,
			CreatedAt:  s.Now(),
		}
		return tx.Create(att).Error
	})
	if err != nil {
		return nil, err
	}

	s.notifyParticipants(ctx, realtime.EventJobUpdated, job)
	return att, nil
}

// Rate records the owner's one-time rating of a finished job.
func (s *JobService) Rate(ctx context.Context, p models.Principal, jobID uuid.UUID, in RatingInput) (*models.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperr.Validation("INVALID_RATING", "rating must be between 1 and 5")
	}

	var review *models.Review
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, err := lockJob(tx, jobID)
		if err != nil {
			return err
		}
		if p.Role != models.RoleClient || !job.IsOwner(p.ID) {
			return apperr.Forbidden("OWNER_ONLY", "only the job owner can rate it")
		}
		switch job.Status {
		case models.JobStatusCompleted, models.JobStatusDelivered, models.JobStatusClosed:
		default:
			return apperr.Conflict("JOB_NOT_FINISHED", "only finished jobs can be rated")
		}

		var existing int64
		if err := tx.Model(&models.Review{}).Where("job_id = ?", jobID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return apperr.Conflict("ALREADY_RATED", "job has already been rated")
		}

		review = &models.Review{
			JobID:    jobID,
			ClientID: p.ID,
			Rating:   in.Rating,
			Comment:  strings.TrimSpace(in.Comment),
		}
		if job.AssigneeID != nil {
			review.AssigneeID = *job.AssigneeID
		}
		return tx.Create(review).Error
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"job": jobID, "rating": in.Rating}).Info("job rated")
	return review, nil
}
