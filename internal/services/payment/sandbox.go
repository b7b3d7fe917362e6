package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/apperr"
)

// SandboxGateway keeps intents in memory and signs webhook bodies with
// HMAC-SHA256(body, secret), hex encoded. With AutoApprove every intent
// reports succeeded once created, like a card that always clears.
type SandboxGateway struct {
	Secret      string
	AutoApprove bool

	mu      sync.Mutex
	intents map[string]*Intent
}

func NewSandboxGateway(secret string, autoApprove bool) *SandboxGateway {
	log.WithField("auto_approve", autoApprove).Warn("payment gateway running in sandbox mode")
	return &SandboxGateway{Secret: secret, AutoApprove: autoApprove, intents: map[string]*Intent{}}
}

func (g *SandboxGateway) Name() string { return "sandbox" }

func (g *SandboxGateway) CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*Intent, error) {
	if amountMinor <= 0 {
		return nil, apperr.Gateway("amount must be positive", errors.New("sandbox: non-positive amount"))
	}
	id := "pi_sandbox_" + uuid.NewString()
	in := &Intent{
		ID:           id,
		ClientSecret: id + "_secret_" + uuid.NewString()[:8],
		Status:       IntentRequiresInput,
		AmountMinor:  amountMinor,
		Currency:     currency,
		Metadata:     metadata,
	}
	if g.AutoApprove {
		in.Status = IntentSucceeded
	}

	g.mu.Lock()
	g.intents[id] = in
	g.mu.Unlock()

	cp := *in
	return &cp, nil
}

func (g *SandboxGateway) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[id]
	if !ok {
		return nil, apperr.Gateway("no such payment intent", errors.New("sandbox: unknown intent "+id))
	}
	cp := *in
	return &cp, nil
}

func (g *SandboxGateway) CancelIntent(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[id]
	if !ok {
		return apperr.Gateway("no such payment intent", errors.New("sandbox: unknown intent "+id))
	}
	switch in.Status {
	case IntentCanceled:
		return nil
	case IntentSucceeded:
		return errIntentSucceeded()
	}
	in.Status = IntentCanceled
	return nil
}

// SetStatus moves an intent as the payer's bank would.
func (g *SandboxGateway) SetStatus(id, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if in, ok := g.intents[id]; ok {
		in.Status = status
	}
}

type sandboxEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object *Intent `json:"object"`
	} `json:"data"`
}

func (g *SandboxGateway) Sign(body []byte) string {
	h := hmac.New(sha256.New, []byte(g.Secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Event builds a signed webhook delivery for intent.
func (g *SandboxGateway) Event(eventID, eventType string, intent *Intent) (body []byte, signature string, err error) {
	env := sandboxEnvelope{ID: eventID, Type: eventType}
	env.Data.Object = intent
	body, err = json.Marshal(env)
	if err != nil {
		return nil, "", err
	}
	return body, g.Sign(body), nil
}

func (g *SandboxGateway) ParseWebhook(payload []byte, signature string) (*Event, error) {
	expected := g.Sign(payload)
	if signature == "" || !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, apperr.InvalidSignature(errors.New("sandbox: signature mismatch"))
	}

	var env sandboxEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, apperr.Validation("INVALID_EVENT", "webhook payload could not be decoded")
	}
	if env.ID == "" || env.Type == "" {
		return nil, apperr.Validation("INVALID_EVENT", "webhook event id and type are required")
	}
	return &Event{ID: env.ID, Type: env.Type, Intent: env.Data.Object}, nil
}
