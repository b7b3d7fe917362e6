package payment

import (
	"context"
	"encoding/json"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/apperr"
)

type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	log.Info("stripe payment gateway initialized")
	return &StripeGateway{api: client.New(secretKey, nil), webhookSecret: webhookSecret}
}

func (g *StripeGateway) Name() string { return "stripe" }

func (g *StripeGateway) CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		log.WithError(err).WithField("amount", amountMinor).Error("stripe create intent failed")
		return nil, apperr.Gateway("could not create payment intent", err)
	}
	return fromStripe(pi), nil
}

func (g *StripeGateway) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		log.WithError(err).WithField("intent", id).Error("stripe retrieve intent failed")
		return nil, apperr.Gateway("could not retrieve payment intent", err)
	}
	return fromStripe(pi), nil
}

func (g *StripeGateway) CancelIntent(ctx context.Context, id string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx

	if _, err := g.api.PaymentIntents.Cancel(id, params); err != nil {
		// stripe refuses to cancel intents in a final state; look at which one
		current, rerr := g.RetrieveIntent(ctx, id)
		if rerr != nil {
			return rerr
		}
		switch current.Status {
		case IntentCanceled:
			return nil
		case IntentSucceeded:
			return errIntentSucceeded()
		}
		log.WithError(err).WithField("intent", id).Error("stripe cancel intent failed")
		return apperr.Gateway("could not cancel payment intent", err)
	}
	return nil
}

func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, apperr.InvalidSignature(err)
	}

	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if strings.HasPrefix(out.Type, "payment_intent.") && ev.Data != nil {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return nil, apperr.Validation("INVALID_EVENT", "payment intent payload could not be decoded")
		}
		out.Intent = fromStripe(&pi)
	}
	return out, nil
}

func fromStripe(pi *stripe.PaymentIntent) *Intent {
	in := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
	if pi.LastPaymentError != nil {
		in.LastError = pi.LastPaymentError.Msg
	}
	return in
}
