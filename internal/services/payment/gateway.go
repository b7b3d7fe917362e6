package payment

import (
	"context"
	"errors"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/apperr"
)

// Intent statuses as reported by the gateway.
const (
	IntentSucceeded     = "succeeded"
	IntentCanceled      = "canceled"
	IntentProcessing    = "processing"
	IntentRequiresInput = "requires_payment_method"
)

// Webhook event types handled by the orchestrator.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
	EventIntentCanceled  = "payment_intent.canceled"
)

type Intent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret,omitempty"`
	Status       string            `json:"status"`
	AmountMinor  int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastError    string            `json:"last_error,omitempty"`
}

type Event struct {
	ID     string
	Type   string
	Intent *Intent
}

// Gateway is the card processor behind the orchestrator.
type Gateway interface {
	Name() string
	CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
	// CancelIntent stops an intent from capturing. Cancelling an already
	// cancelled intent succeeds; a succeeded one yields codeIntentSucceeded.
	CancelIntent(ctx context.Context, id string) error
	// ParseWebhook verifies the signature and decodes the event.
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

const codeIntentSucceeded = "INTENT_SUCCEEDED"

func errIntentSucceeded() error {
	return apperr.Conflict(codeIntentSucceeded, "payment intent has already succeeded")
}

func hasCode(err error, code string) bool {
	var e *apperr.Error
	return errors.As(err, &e) && e.Code == code
}
