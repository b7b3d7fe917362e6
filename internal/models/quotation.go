package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type QuotationStatus string

const (
	QuotationPending     QuotationStatus = "pending"
	QuotationAccepted    QuotationStatus = "accepted"
	QuotationRejected    QuotationStatus = "rejected"
	QuotationNegotiating QuotationStatus = "negotiating"
)

type Quotation struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	JobID          uuid.UUID       `gorm:"type:uuid;not null;index:idx_quotation_job_seq,unique,priority:1" json:"job_id"`
	Sequence       int             `gorm:"not null;index:idx_quotation_job_seq,unique,priority:2" json:"sequence"`
	ProviderID     uuid.UUID       `gorm:"type:uuid;index;not null" json:"provider_id"`
	QuotedAmount   decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"quoted_amount"`
	Details        string          `gorm:"type:text" json:"quotation_details"`
	ValidUntil     *time.Time      `json:"valid_until,omitempty"`
	Status         QuotationStatus `gorm:"type:varchar(20);not null" json:"status"`
	ClientResponse string          `gorm:"type:text" json:"client_response,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	Negotiations []NegotiationMessage `gorm:"foreignKey:QuotationID" json:"negotiations,omitempty"`
}

func (q *Quotation) BeforeCreate(tx *gorm.DB) (err error) {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.Status == "" {
		q.Status = QuotationPending
	}
	return
}

// NegotiationMessage is one entry of a quotation's thread. Never updated.
type NegotiationMessage struct {
	ID             uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	QuotationID    uuid.UUID           `gorm:"type:uuid;not null;index:idx_negotiation_quote_seq,unique,priority:1" json:"quotation_id"`
	Sequence       int                 `gorm:"not null;index:idx_negotiation_quote_seq,unique,priority:2" json:"sequence"`
	AuthorID       uuid.UUID           `gorm:"type:uuid;not null" json:"author_id"`
	AuthorRole     Role                `gorm:"type:varchar(20);not null" json:"author_role"`
	Message        string              `gorm:"type:text" json:"message"`
	ProposedAmount decimal.NullDecimal `gorm:"type:numeric(18,4)" json:"proposed_amount"`
	CounterOffer   string              `gorm:"type:text" json:"counter_offer,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

func (m *NegotiationMessage) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return
}
