package fees

import (
	"github.com/shopspring/decimal"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Calculator computes fees against one settings snapshot.
type Calculator struct {
	settings models.AdminSettings
}

func New(settings models.AdminSettings) Calculator {
	return Calculator{settings: settings}
}

func (c Calculator) Settings() models.AdminSettings { return c.settings }

// Breakdown is what a client pays for a job of BaseAmount.
type Breakdown struct {
	BaseAmount    decimal.Decimal `json:"base_amount"`
	PlatformFee   decimal.Decimal `json:"platform_fee"`
	ProcessingFee decimal.Decimal `json:"processing_fee"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// MinorUnits is the gateway charge, rounded half away from zero.
func (b Breakdown) MinorUnits() int64 {
	return b.TotalAmount.Mul(hundred).Round(0).IntPart()
}

type Earnings struct {
	PaymentAmount decimal.Decimal `json:"payment_amount"`
	UserType      models.Role     `json:"user_type"`
	Commission    decimal.Decimal `json:"commission_percentage"`
	Earnings      decimal.Decimal `json:"earnings"`
	PlatformShare decimal.Decimal `json:"platform_share"`
}

type WithdrawalQuote struct {
	Amount        decimal.Decimal         `json:"amount"`
	Method        models.WithdrawalMethod `json:"method"`
	ProcessingFee decimal.Decimal         `json:"processing_fee"`
	NetAmount     decimal.Decimal         `json:"net_amount"`
}

func percentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred)
}

func (c Calculator) PlatformFee(amount decimal.Decimal) decimal.Decimal {
	return percentOf(amount, c.settings.PlatformFeePercentage)
}

// ProcessingFee is charged on the amount plus its platform fee.
func (c Calculator) ProcessingFee(amount decimal.Decimal) decimal.Decimal {
	gross := amount.Add(c.PlatformFee(amount))
	return percentOf(gross, c.settings.ProcessingFeePercentage).Add(c.settings.FixedProcessingFee)
}

func (c Calculator) Total(amount decimal.Decimal) Breakdown {
	platform := c.PlatformFee(amount)
	processing := c.ProcessingFee(amount)
	return Breakdown{
		BaseAmount:    amount,
		PlatformFee:   platform,
		ProcessingFee: processing,
		TotalAmount:   amount.Add(platform).Add(processing),
	}
}

// Commission returns the earnings percentage for the assignee role.
// Anything that is not an inspector is paid as a provider.
func (c Calculator) Commission(userType models.Role) decimal.Decimal {
	if userType == models.RoleInspector {
		return c.settings.InspectorCommissionPercentage
	}
	return c.settings.ProviderCommissionPercentage
}

func (c Calculator) Earnings(paymentAmount decimal.Decimal, userType models.Role) Earnings {
	pct := c.Commission(userType)
	earned := percentOf(paymentAmount, pct)
	return Earnings{
		PaymentAmount: paymentAmount,
		UserType:      userType,
		Commission:    pct,
		Earnings:      earned,
		PlatformShare: paymentAmount.Sub(earned),
	}
}

// WithdrawalFee is zero for a method missing from the fee table.
func (c Calculator) WithdrawalFee(amount decimal.Decimal, method models.WithdrawalMethod) decimal.Decimal {
	fee, ok := c.settings.MethodFees()[method]
	if !ok {
		return decimal.Zero
	}
	return percentOf(amount, fee.Percentage).Add(fee.Fixed)
}

func (c Calculator) Withdrawal(amount decimal.Decimal, method models.WithdrawalMethod) WithdrawalQuote {
	fee := c.WithdrawalFee(amount, method)
	return WithdrawalQuote{
		Amount:        amount,
		Method:        method,
		ProcessingFee: fee,
		NetAmount:     amount.Sub(fee),
	}
}

// Preview bundles every figure an admin sees for a sample amount.
type Preview struct {
	Payment     Breakdown                                   `json:"payment"`
	Provider    Earnings                                    `json:"provider"`
	Inspector   Earnings                                    `json:"inspector"`
	Withdrawals map[models.WithdrawalMethod]WithdrawalQuote `json:"withdrawals"`
}

func (c Calculator) Preview(amount decimal.Decimal) Preview {
	p := Preview{
		Payment:     c.Total(amount),
		Provider:    c.Earnings(amount, models.RoleProvider),
		Inspector:   c.Earnings(amount, models.RoleInspector),
		Withdrawals: map[models.WithdrawalMethod]WithdrawalQuote{},
	}
	for method := range c.settings.MethodFees() {
		p.Withdrawals[method] = c.Withdrawal(amount, method)
	}
	return p
}
