// internal/models/job_request.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type JobStatus string

const (
	JobStatusOpen        JobStatus = "open"
	JobStatusQuoted      JobStatus = "quoted"
	JobStatusNegotiating JobStatus = "negotiating"
	JobStatusAccepted    JobStatus = "accepted"
	JobStatusInProgress  JobStatus = "in_progress"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusDelivered   JobStatus = "delivered"
	JobStatusClosed      JobStatus = "closed"
	JobStatusCancelled   JobStatus = "cancelled"
	JobStatusRejected    JobStatus = "rejected"
	JobStatusDisputed    JobStatus = "disputed"
	JobStatusOnHold      JobStatus = "on_hold"
)

var AllJobStatuses = []JobStatus{
	JobStatusOpen, JobStatusQuoted, JobStatusNegotiating, JobStatusAccepted,
	JobStatusInProgress, JobStatusCompleted, JobStatusDelivered, JobStatusClosed,
	JobStatusCancelled, JobStatusRejected, JobStatusDisputed, JobStatusOnHold,
}

func (s JobStatus) Valid() bool {
	for _, v := range AllJobStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Locked for field edits.
func (s JobStatus) EditLocked() bool {
	switch s {
	case JobStatusCompleted, JobStatusDelivered, JobStatusClosed, JobStatusCancelled:
		return true
	}
	return false
}

func (s JobStatus) DeleteLocked() bool {
	return s.EditLocked() || s == JobStatusInProgress
}

type JobPaymentStatus string

const (
	JobUnpaid JobPaymentStatus = "unpaid"
	JobPaid   JobPaymentStatus = "paid"
)

type JobRequest struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID     uuid.UUID  `gorm:"type:uuid;index;not null" json:"client_id"`
	AssigneeID   *uuid.UUID `gorm:"type:uuid;index" json:"assignee_id,omitempty"`
	AssigneeRole Role       `gorm:"type:varchar(20)" json:"assignee_role,omitempty"`

	Title            string                      `gorm:"type:varchar(200);not null" json:"title"`
	Description      string                      `gorm:"type:text" json:"description"`
	Location         string                      `gorm:"type:text" json:"location"`
	RequiredServices datatypes.JSONSlice[string] `json:"required_services"`
	EstimatedTotal   decimal.Decimal             `gorm:"type:numeric(18,4);not null" json:"estimated_total"`

	Status           JobStatus        `gorm:"type:varchar(20);index;not null" json:"status"`
	PaymentStatus    JobPaymentStatus `gorm:"type:varchar(20);not null" json:"payment_status"`
	FinalQuotationID *uuid.UUID       `gorm:"type:uuid" json:"final_quotation_id,omitempty"`

	PreferredStartDate     *time.Time `json:"preferred_start_date,omitempty"`
	ActualStartDate        *time.Time `json:"actual_start_date,omitempty"`
	ExpectedCompletionDate *time.Time `json:"expected_completion_date,omitempty"`
	ActualCompletionDate   *time.Time `json:"actual_completion_date,omitempty"`

	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	PaymentAmount decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"payment_amount"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Owned child records
	Quotations  []Quotation    `gorm:"foreignKey:JobID" json:"quotations,omitempty"`
	Notes       []InternalNote `gorm:"foreignKey:JobID" json:"internal_notes,omitempty"`
	Attachments []Attachment   `gorm:"foreignKey:JobID" json:"attachments,omitempty"`
	Rating      *Review        `gorm:"foreignKey:JobID" json:"client_rating,omitempty"`
}

func (j *JobRequest) BeforeCreate(tx *gorm.DB) (err error) {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = JobStatusOpen
	}
	if j.PaymentStatus == "" {
		j.PaymentStatus = JobUnpaid
	}
	return
}

func (j *JobRequest) IsOwner(userID uuid.UUID) bool { return j.ClientID == userID }

func (j *JobRequest) IsAssignee(userID uuid.UUID) bool {
	return j.AssigneeID != nil && *j.AssigneeID == userID
}

// CanView reports whether p participates in the job.
func (j *JobRequest) CanView(p Principal) bool {
	return p.IsAdmin() || j.IsOwner(p.ID) || j.IsAssignee(p.ID)
}

// InternalNote is an append-only remark on a job, ordered by Sequence.
type InternalNote struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	JobID     uuid.UUID `gorm:"type:uuid;not null;index:idx_note_job_seq,unique,priority:1" json:"job_id"`
	Sequence  int       `gorm:"not null;index:idx_note_job_seq,unique,priority:2" json:"sequence"`
	AuthorID  uuid.UUID `gorm:"type:uuid;not null" json:"author_id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func (n *InternalNote) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return
}

// Attachment references a file held by the storage service.
type Attachment struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	JobID      uuid.UUID `gorm:"type:uuid;index;not null" json:"job_id"`
	URL        string    `gorm:"type:text;not null" json:"url"`
	Filename   string    `gorm:"type:varchar(255)" json:"filename"`
	Size       int64     `json:"size"`
	UploadedBy uuid.UUID `gorm:"type:uuid;not null" json:"uploaded_by"`
	Category   string    `gorm:"type:varchar(50)" json:"category"`
	CreatedAt  time.Time `json:"created_at"`
}

func (a *Attachment) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}
