package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalCompleted  WithdrawalStatus = "completed"
	WithdrawalRejected   WithdrawalStatus = "rejected"
	WithdrawalCancelled  WithdrawalStatus = "cancelled"
)

func (s WithdrawalStatus) Open() bool {
	return s == WithdrawalPending || s == WithdrawalProcessing
}

func (s WithdrawalStatus) Valid() bool {
	switch s {
	case WithdrawalPending, WithdrawalProcessing, WithdrawalCompleted, WithdrawalRejected, WithdrawalCancelled:
		return true
	}
	return false
}

type Withdrawal struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID   uuid.UUID        `gorm:"type:uuid;not null;index;index:idx_withdrawals_open_owner,unique,where:status = 'pending' OR status = 'processing'" json:"owner_id"`
	OwnerRole Role             `gorm:"type:varchar(20);not null" json:"owner_role"`
	Amount    decimal.Decimal  `gorm:"type:numeric(18,4);not null" json:"amount"`
	Method    WithdrawalMethod `gorm:"type:varchar(20);not null" json:"withdrawal_method"`
	Details   datatypes.JSON   `json:"details"`
	Status    WithdrawalStatus `gorm:"type:varchar(20);index;not null" json:"status"`

	ProcessingFee decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"processing_fee"`
	NetAmount     decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"net_amount"`

	RequestedAt time.Time  `json:"requested_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`

	AdminNotes []WithdrawalNote `gorm:"foreignKey:WithdrawalID" json:"admin_notes,omitempty"`
}

func (w *Withdrawal) BeforeCreate(tx *gorm.DB) (err error) {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.RequestedAt.IsZero() {
		w.RequestedAt = time.Now()
	}
	return
}

type WithdrawalNote struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	WithdrawalID uuid.UUID `gorm:"type:uuid;index;not null" json:"withdrawal_id"`
	AdminID      uuid.UUID `gorm:"type:uuid;not null" json:"admin_id"`
	Note         string    `gorm:"type:text;not null" json:"note"`
	CreatedAt    time.Time `json:"created_at"`
}

func (n *WithdrawalNote) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return
}
