package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type WithdrawalMethod string

const (
	MethodBankTransfer WithdrawalMethod = "bank_transfer"
	MethodPaypal       WithdrawalMethod = "paypal"
	MethodStripe       WithdrawalMethod = "stripe"
	MethodCrypto       WithdrawalMethod = "crypto"
)

func (m WithdrawalMethod) Valid() bool {
	switch m {
	case MethodBankTransfer, MethodPaypal, MethodStripe, MethodCrypto:
		return true
	}
	return false
}

type MethodFee struct {
	Percentage decimal.Decimal `json:"percentage"`
	Fixed      decimal.Decimal `json:"fixed"`
}

type MethodFeeTable map[WithdrawalMethod]MethodFee

// AdminSettings rows are immutable snapshots. An update inserts Version+1
// and deactivates the previous row in the same transaction.
type AdminSettings struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Version  int       `gorm:"not null;uniqueIndex" json:"version"`
	IsActive bool      `gorm:"not null;index" json:"is_active"`

	PlatformFeePercentage         decimal.Decimal `gorm:"type:numeric(9,4);not null" json:"platform_fee_percentage"`
	ProcessingFeePercentage       decimal.Decimal `gorm:"type:numeric(9,4);not null" json:"processing_fee_percentage"`
	FixedProcessingFee            decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"fixed_processing_fee"`
	ProviderCommissionPercentage  decimal.Decimal `gorm:"type:numeric(9,4);not null" json:"provider_commission_percentage"`
	InspectorCommissionPercentage decimal.Decimal `gorm:"type:numeric(9,4);not null" json:"inspector_commission_percentage"`
	MinimumWithdrawalAmount       decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"minimum_withdrawal_amount"`

	WithdrawalFees datatypes.JSONType[MethodFeeTable] `json:"withdrawal_fees"`

	UpdatedBy *uuid.UUID `gorm:"type:uuid" json:"updated_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (s *AdminSettings) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return
}

func (s *AdminSettings) MethodFees() MethodFeeTable {
	return s.WithdrawalFees.Data()
}

func DefaultAdminSettings() AdminSettings {
	d := decimal.RequireFromString
	return AdminSettings{
		PlatformFeePercentage:         d("5"),
		ProcessingFeePercentage:       d("2.9"),
		FixedProcessingFee:            d("0.30"),
		ProviderCommissionPercentage:  d("85"),
		InspectorCommissionPercentage: d("85"),
		MinimumWithdrawalAmount:       d("50"),
		WithdrawalFees: datatypes.NewJSONType(MethodFeeTable{
			MethodBankTransfer: {Percentage: d("0"), Fixed: d("0")},
			MethodPaypal:       {Percentage: d("2.9"), Fixed: d("0.30")},
			MethodStripe:       {Percentage: d("0.25"), Fixed: d("0.25")},
			MethodCrypto:       {Percentage: d("1"), Fixed: d("0")},
		}),
	}
}
