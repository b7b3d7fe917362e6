package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type LedgerKind string

const (
	LedgerJobSettled          LedgerKind = "job_settled"          // earnings credited for a closed, paid job
	LedgerJobReversed         LedgerKind = "job_reversed"         // earnings taken back, job no longer eligible
	LedgerWithdrawalRequested LedgerKind = "withdrawal_requested" // available -> pending
	LedgerWithdrawalCompleted LedgerKind = "withdrawal_completed" // pending -> withdrawn
	LedgerWithdrawalReversed  LedgerKind = "withdrawal_reversed"  // pending -> available
)

// LedgerEntry is one balance-affecting event. Rows are only ever inserted;
// the ProviderBalance snapshot is the fold of an owner's entries.
type LedgerEntry struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID     uuid.UUID       `gorm:"type:uuid;index;not null" json:"owner_id"`
	Kind        LedgerKind      `gorm:"type:varchar(30);not null" json:"kind"`
	Amount      decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"amount"`
	ReferenceID uuid.UUID       `gorm:"type:uuid;index;not null" json:"reference_id"` // job or withdrawal id
	Description string          `gorm:"type:text" json:"description"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
}

func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return
}

type ProviderBalance struct {
	OwnerID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"owner_id"`
	TotalEarnings    decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"total_earnings"`
	AvailableBalance decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"available_balance"`
	PendingBalance   decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"pending_balance"`
	TotalWithdrawn   decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"total_withdrawn"`
	LastUpdated      time.Time       `json:"last_updated"`
}
