package fees

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/models"
)

type bound struct {
	field    string
	value    decimal.Decimal
	min, max int64
}

// Validate checks every percentage and fixed amount against its allowed range.
// It runs when settings are written, never when fees are calculated.
func Validate(s models.AdminSettings) error {
	bounds := []bound{
		{"platform_fee_percentage", s.PlatformFeePercentage, 0, 50},
		{"processing_fee_percentage", s.ProcessingFeePercentage, 0, 10},
		{"fixed_processing_fee", s.FixedProcessingFee, 0, 10},
		{"provider_commission_percentage", s.ProviderCommissionPercentage, 50, 100},
		{"inspector_commission_percentage", s.InspectorCommissionPercentage, 50, 100},
		{"minimum_withdrawal_amount", s.MinimumWithdrawalAmount, 0, 100000},
	}
	for method, fee := range s.MethodFees() {
		if !method.Valid() {
			return apperr.Validation("INVALID_SETTINGS", fmt.Sprintf("unknown withdrawal method %q", method))
		}
		bounds = append(bounds,
			bound{fmt.Sprintf("withdrawal_fees.%s.percentage", method), fee.Percentage, 0, 10},
			bound{fmt.Sprintf("withdrawal_fees.%s.fixed", method), fee.Fixed, 0, 100},
		)
	}

	for _, b := range bounds {
		if b.value.LessThan(decimal.NewFromInt(b.min)) || b.value.GreaterThan(decimal.NewFromInt(b.max)) {
			return apperr.Validation("INVALID_SETTINGS",
				fmt.Sprintf("%s must be between %d and %d", b.field, b.min, b.max))
		}
	}
	return nil
}
