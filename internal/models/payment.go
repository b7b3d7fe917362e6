package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Active payments block a new checkout for the same job.
func (s PaymentStatus) Active() bool {
	return s == PaymentPending || s == PaymentSucceeded
}

// Closed payments never change status again.
func (s PaymentStatus) Closed() bool {
	return s == PaymentFailed || s == PaymentCancelled
}

type Payment struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	JobID uuid.UUID `gorm:"type:uuid;not null;index;index:idx_payments_active_job,unique,where:status <> 'failed' AND status <> 'cancelled'" json:"job_id"`

	ClientID      uuid.UUID `gorm:"type:uuid;index;not null" json:"client_id"`
	IntentID      string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"intent_id"`
	Gateway       string    `gorm:"type:varchar(20);not null" json:"gateway"`
	Currency      string    `gorm:"type:varchar(10);not null" json:"currency"`
	AmountMinor   int64     `gorm:"not null" json:"amount_minor"`
	FailureReason string    `gorm:"type:text" json:"failure_reason,omitempty"`

	BaseAmount    decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"base_amount"`
	PlatformFee   decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"platform_fee"`
	ProcessingFee decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"processing_fee"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"total_amount"`

	Status PaymentStatus `gorm:"type:varchar(20);index;not null" json:"status"`
	PaidAt *time.Time    `json:"paid_at,omitempty"`

	// IntentClosedAt is set once the gateway intent of a failed payment was
	// cancelled, so it can no longer capture.
	IntentClosedAt *time.Time `json:"intent_closed_at,omitempty"`
	// ReviewReason marks money the gateway captured after the payment was
	// already closed. Such rows need a manual refund.
	ReviewReason string `gorm:"type:text" json:"review_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = PaymentPending
	}
	return
}
