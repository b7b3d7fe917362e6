package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/db/dbtest"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/lock"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/models"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/realtime"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/services/jobs"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/services/payment"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/services/settings"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/services/wallet"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/utils"
)

const jwtSecret = "handler-secret"

type env struct {
	app     *fiber.App
	sandbox *payment.SandboxGateway

	client, provider, admin string // tokens
	clientID, providerID    uuid.UUID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gdb := dbtest.Open(t)
	locker := lock.NewLocalLocker()
	notifier := realtime.NopNotifier{}
	settingsSvc := settings.NewSettingsService(gdb)
	sandbox := payment.NewSandboxGateway("sandbox-secret", false)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	r := &Router{
		JWTSecret: jwtSecret,
		Jobs:      NewJobHandler(jobs.NewJobService(gdb, notifier)),
		Payments:  NewPaymentHandler(payment.NewPaymentService(gdb, sandbox, settingsSvc, locker, notifier, "usd")),
		Wallet:    NewWalletHandler(wallet.NewWalletService(gdb, settingsSvc, locker, notifier)),
		Settings:  NewSettingsHandler(settingsSvc),
		Health:    &HealthHandler{DB: gdb},
	}
	r.Register(app)

	e := &env{app: app, sandbox: sandbox, clientID: uuid.New(), providerID: uuid.New()}
	e.client = sign(t, e.clientID, models.RoleClient)
	e.provider = sign(t, e.providerID, models.RoleProvider)
	e.admin = sign(t, uuid.New(), models.RoleAdmin)
	return e
}

func sign(t *testing.T, id uuid.UUID, role models.Role) string {
	t.Helper()
	tok, err := utils.SignJWT(jwtSecret, id.String(), string(role), 30)
	require.NoError(t, err)
	return tok
}

type envelope struct {
	Success bool            `json:"success"`
	Kind    string          `json:"kind"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *env) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

type idOnly struct {
	ID string `json:"id"`
}

func TestJobToWithdrawalFlow(t *testing.T) {
	e := newEnv(t)

	code, res := e.do(t, "POST", "/api/jobs", e.client, fiber.Map{
		"title":           "Commercial roof survey",
		"location":        "Dock 4",
		"estimated_total": 400,
		"assignee_id":     e.providerID,
		"assignee_role":   "provider",
	})
	require.Equal(t, fiber.StatusCreated, code, res.Message)
	jobID := decode[idOnly](t, res.Data).ID
	base := "/api/jobs/" + jobID

	code, res = e.do(t, "POST", base+"/quotations", e.provider, fiber.Map{"quoted_amount": 300, "quotation_details": "incl. drone"})
	require.Equal(t, fiber.StatusCreated, code, res.Message)
	qid := decode[idOnly](t, res.Data).ID

	code, res = e.do(t, "PATCH", base+"/quotations/"+qid+"/status", e.client, fiber.Map{"status": "accepted"})
	require.Equal(t, fiber.StatusOK, code, res.Message)

	for _, st := range []string{"in_progress", "completed", "delivered"} {
		code, res = e.do(t, "PATCH", base+"/status", e.provider, fiber.Map{"status": st})
		require.Equal(t, fiber.StatusOK, code, "%s: %s", st, res.Message)
	}

	code, res = e.do(t, "POST", base+"/payments/intent", e.client, nil)
	assert.Equal(t, fiber.StatusConflict, code, "job must be closed before paying")
	assert.Equal(t, "conflict", res.Kind)

	code, res = e.do(t, "PATCH", base+"/status", e.client, fiber.Map{"status": "closed"})
	require.Equal(t, fiber.StatusOK, code, res.Message)

	code, res = e.do(t, "POST", base+"/payments/intent", e.client, nil)
	require.Equal(t, fiber.StatusCreated, code, res.Message)
	intent := decode[payment.IntentResult](t, res.Data)
	assert.EqualValues(t, 32444, intent.AmountMinor)

	e.sandbox.SetStatus(intent.IntentID, payment.IntentSucceeded)
	code, res = e.do(t, "POST", base+"/payments/confirm", e.client, fiber.Map{"payment_intent_id": intent.IntentID})
	require.Equal(t, fiber.StatusOK, code, res.Message)

	code, res = e.do(t, "GET", "/api/balance", e.provider, nil)
	require.Equal(t, fiber.StatusOK, code, res.Message)
	bal := decode[models.ProviderBalance](t, res.Data)
	assert.Equal(t, "255", bal.AvailableBalance.String())

	code, res = e.do(t, "POST", "/api/withdrawals", e.provider, fiber.Map{
		"amount":            "100",
		"withdrawal_method": "bank_transfer",
		"details": fiber.Map{
			"account_number": "1", "routing_number": "2", "bank_name": "B", "account_holder_name": "P",
		},
	})
	require.Equal(t, fiber.StatusCreated, code, res.Message)
	wid := decode[idOnly](t, res.Data).ID

	code, _ = e.do(t, "PATCH", "/api/admin/withdrawals/"+wid+"/status", e.provider, fiber.Map{"status": "completed"})
	assert.Equal(t, fiber.StatusForbidden, code)

	code, res = e.do(t, "PATCH", "/api/admin/withdrawals/"+wid+"/status", e.admin, fiber.Map{"status": "completed", "admin_notes": "paid"})
	require.Equal(t, fiber.StatusOK, code, res.Message)

	code, res = e.do(t, "GET", "/api/admin/balances/"+e.providerID.String(), e.admin, nil)
	require.Equal(t, fiber.StatusOK, code, res.Message)
	bal = decode[models.ProviderBalance](t, res.Data)
	assert.Equal(t, "155", bal.AvailableBalance.String())
	assert.Equal(t, "100", bal.TotalWithdrawn.String())
}

func TestErrorEnvelope(t *testing.T) {
	e := newEnv(t)

	code, res := e.do(t, "GET", "/api/jobs", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, code)
	assert.False(t, res.Success)

	code, res = e.do(t, "GET", "/api/jobs/not-a-uuid", e.client, nil)
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, "validation", res.Kind)
	assert.Equal(t, "INVALID_ID", res.Code)

	code, res = e.do(t, "GET", "/api/jobs/"+uuid.NewString(), e.client, nil)
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.Equal(t, "not_found", res.Kind)

	code, _ = e.do(t, "POST", "/api/jobs", e.provider, fiber.Map{"title": "x"})
	assert.Equal(t, fiber.StatusForbidden, code)

	code, _ = e.do(t, "GET", "/api/admin/settings", e.client, nil)
	assert.Equal(t, fiber.StatusForbidden, code)
}

func TestWebhookEndpoint(t *testing.T) {
	e := newEnv(t)

	body, sig, err := e.sandbox.Event("evt_h1", payment.EventIntentCanceled, &payment.Intent{ID: "pi_unknown", Status: payment.IntentCanceled})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/payments/webhook", bytes.NewReader(body))
	req.Header.Set("X-Callback-Signature", "bad")
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	req = httptest.NewRequest("POST", "/api/payments/webhook", bytes.NewReader(body))
	req.Header.Set("X-Callback-Signature", sig)
	resp, err = e.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAdminSettingsEndpoints(t *testing.T) {
	e := newEnv(t)

	code, res := e.do(t, "GET", "/api/admin/settings", e.admin, nil)
	require.Equal(t, fiber.StatusOK, code, res.Message)
	active := decode[models.AdminSettings](t, res.Data)
	assert.Equal(t, 1, active.Version)

	code, res = e.do(t, "PUT", "/api/admin/settings", e.admin, fiber.Map{"platform_fee_percentage": "60"})
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, "validation", res.Kind)

	code, res = e.do(t, "PUT", "/api/admin/settings", e.admin, fiber.Map{"platform_fee_percentage": "10"})
	require.Equal(t, fiber.StatusOK, code, res.Message)
	assert.Equal(t, 2, decode[models.AdminSettings](t, res.Data).Version)

	code, res = e.do(t, "POST", "/api/admin/settings/preview", e.admin, fiber.Map{"amount": "100"})
	require.Equal(t, fiber.StatusOK, code, res.Message)
	var preview struct {
		Payment struct {
			PlatformFee string `json:"platform_fee"`
		} `json:"payment"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &preview))
	assert.Equal(t, "10", preview.Payment.PlatformFee)

	code, res = e.do(t, "GET", "/api/admin/settings?history=true", e.admin, nil)
	require.Equal(t, fiber.StatusOK, code, res.Message)
	assert.Len(t, decode[[]models.AdminSettings](t, res.Data), 2)
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	code, res := e.do(t, "GET", "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, code)
	assert.True(t, res.Success)
}

func TestNotesAreSequencedAndScoped(t *testing.T) {
	e := newEnv(t)

	code, res := e.do(t, "POST", "/api/jobs", e.client, fiber.Map{
		"title": "Boiler check", "assignee_id": e.providerID, "assignee_role": "provider",
	})
	require.Equal(t, fiber.StatusCreated, code, res.Message)
	base := "/api/jobs/" + decode[idOnly](t, res.Data).ID

	code, res = e.do(t, "POST", base+"/notes", e.client, fiber.Map{"text": "  "})
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, "TEXT_REQUIRED", res.Code)

	for i, tok := range []string{e.client, e.provider} {
		code, res = e.do(t, "POST", base+"/notes", tok, fiber.Map{"text": "site access via gate B"})
		require.Equal(t, fiber.StatusCreated, code, res.Message)
		assert.Equal(t, i+1, decode[models.InternalNote](t, res.Data).Sequence)
	}

	stranger := sign(t, uuid.New(), models.RoleProvider)
	code, _ = e.do(t, "POST", base+"/notes", stranger, fiber.Map{"text": "hello"})
	assert.Equal(t, fiber.StatusForbidden, code)
}
