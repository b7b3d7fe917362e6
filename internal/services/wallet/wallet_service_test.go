package wallet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/db/dbtest"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/lock"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/models"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/realtime"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/services/settings"
)

var bankDetails = map[string]string{
	"account_number":      "00123456",
	"routing_number":      "110000000",
	"bank_name":           "First Bank",
	"account_holder_name": "Sam Doe",
}

type fixture struct {
	db       *gorm.DB
	svc      *WalletService
	provider models.Principal
	admin    models.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := dbtest.Open(t)
	svc := NewWalletService(gdb, settings.NewSettingsService(gdb), lock.NewLocalLocker(), realtime.NopNotifier{})
	return &fixture{
		db:       gdb,
		svc:      svc,
		provider: models.Principal{ID: uuid.New(), Role: models.RoleProvider},
		admin:    models.Principal{ID: uuid.New(), Role: models.RoleAdmin},
	}
}

// seedPaidJob creates a closed job assigned to the provider with a succeeded payment of base.
func (f *fixture) seedPaidJob(t *testing.T, base int64, role models.Role) *models.JobRequest {
	t.Helper()
	assignee := f.provider.ID
	now := time.Now()
	job := &models.JobRequest{
		ClientID:       uuid.New(),
		AssigneeID:     &assignee,
		AssigneeRole:   role,
		Title:          "Boiler check",
		Location:       "4 Mill Lane",
		EstimatedTotal: decimal.NewFromInt(base),
		Status:         models.JobStatusClosed,
		PaymentStatus:  models.JobPaid,
		PaidAt:         &now,
	}
	require.NoError(t, f.db.Create(job).Error)
	require.NoError(t, f.db.Create(&models.Payment{
		JobID:       job.ID,
		ClientID:    job.ClientID,
		IntentID:    "pi_" + job.ID.String(),
		Gateway:     "sandbox",
		Currency:    "usd",
		AmountMinor: base * 100,
		BaseAmount:  decimal.NewFromInt(base),
		TotalAmount: decimal.NewFromInt(base),
		Status:      models.PaymentSucceeded,
		PaidAt:      &now,
	}).Error)
	return job
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertMoney(t *testing.T, want string, got decimal.Decimal, msg string) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "%s: want %s, got %s", msg, want, got)
}

func TestBalanceSettlesClosedPaidJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPaidJob(t, 1000, models.RoleProvider)
	f.seedPaidJob(t, 200, models.RoleInspector)

	open := f.seedPaidJob(t, 999, models.RoleProvider)
	require.NoError(t, f.db.Model(open).Update("status", models.JobStatusInProgress).Error)

	bal, err := f.svc.GetBalance(ctx, f.provider, f.provider.ID)
	require.NoError(t, err)
	assertMoney(t, "1020", bal.TotalEarnings, "earnings")
	assertMoney(t, "1020", bal.AvailableBalance, "available")
	assert.True(t, bal.PendingBalance.IsZero())

	again, err := f.svc.GetBalance(ctx, f.provider, f.provider.ID)
	require.NoError(t, err)
	assertMoney(t, "1020", again.TotalEarnings, "no double credit")

	var settled int64
	require.NoError(t, f.db.Model(&models.LedgerEntry{}).Where("kind = ?", models.LedgerJobSettled).Count(&settled).Error)
	assert.EqualValues(t, 2, settled)
}

func TestEarningsFixedAtSettlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPaidJob(t, 1000, models.RoleProvider)

	_, err := f.svc.GetBalance(ctx, f.provider, f.provider.ID)
	require.NoError(t, err)

	rate := decimal.NewFromInt(60)
	_, err = settings.NewSettingsService(f.db).Update(ctx, f.admin, settings.UpdateInput{ProviderCommissionPercentage: &rate})
	require.NoError(t, err)

	bal, err := f.svc.GetBalance(ctx, f.provider, f.provider.ID)
	require.NoError(t, err)
	assertMoney(t, "850", bal.TotalEarnings, "earlier settlement kept")
}

func TestBalanceReversal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.seedPaidJob(t, 1000, models.RoleProvider)

	_, err := f.svc.GetBalance(ctx, f.provider, f.provider.ID)
	require.NoError(t, err)

	require.NoError(t, f.db.Model(job).Update("status", models.JobStatusDisputed).Error)
	bal, err := f.svc.GetBalance(ctx, f.provider, f.provider.ID)
	require.NoError(t, err)
	assert.True(t, bal.TotalEarnings.IsZero())
	assert.True(t, bal.AvailableBalance.IsZero())

	require.NoError(t, f.db.Model(job).Update("status", models.JobStatusClosed).Error)
	bal, err = f.svc.GetBalance(ctx, f.provider, f.provider.ID)
	require.NoError(t, err)
	assertMoney(t, "850", bal.TotalEarnings, "re-settled")

	entries, total, err := f.svc.ListLedger(ctx, f.provider, f.provider.ID, LedgerFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, entries, 3)
}

func TestBalanceVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetBalance(ctx, models.Principal{ID: uuid.New(), Role: models.RoleProvider}, f.provider.ID)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	_, err = f.svc.GetBalance(ctx, models.Principal{ID: f.provider.ID, Role: models.RoleClient}, f.provider.ID)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	bal, err := f.svc.GetBalance(ctx, f.admin, f.provider.ID)
	require.NoError(t, err)
	assert.True(t, bal.TotalEarnings.IsZero())
}

func TestRequestWithdrawalValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPaidJob(t, 1000, models.RoleProvider)

	cases := []struct {
		name string
		p    models.Principal
		in   WithdrawalInput
		kind apperr.Kind
	}{
		{"client", models.Principal{ID: uuid.New(), Role: models.RoleClient},
			WithdrawalInput{Amount: dec("100"), Method: models.MethodBankTransfer, Details: bankDetails}, apperr.KindAuthorization},
		{"below minimum", f.provider,
			WithdrawalInput{Amount: dec("49.99"), Method: models.MethodBankTransfer, Details: bankDetails}, apperr.KindValidation},
		{"unknown method", f.provider,
			WithdrawalInput{Amount: dec("100"), Method: "cheque", Details: bankDetails}, apperr.KindValidation},
		{"incomplete bank", f.provider,
			WithdrawalInput{Amount: dec("100"), Method: models.MethodBankTransfer, Details: map[string]string{"bank_name": "First Bank"}}, apperr.KindValidation},
		{"paypal email", f.provider,
			WithdrawalInput{Amount: dec("100"), Method: models.MethodPaypal, Details: map[string]string{"email": "nope"}}, apperr.KindValidation},
		{"crypto currency", f.provider,
			WithdrawalInput{Amount: dec("100"), Method: models.MethodCrypto, Details: map[string]string{"wallet_address": "0xabc"}}, apperr.KindValidation},
		{"insufficient", f.provider,
			WithdrawalInput{Amount: dec("850.01"), Method: models.MethodBankTransfer, Details: bankDetails}, apperr.KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.RequestWithdrawal(ctx, tc.p, tc.in)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err))
		})
	}

	var n int64
	require.NoError(t, f.db.Model(&models.Withdrawal{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestWithdrawalLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPaidJob(t, 1000, models.RoleProvider)

	w, err := f.svc.RequestWithdrawal(ctx, f.provider, WithdrawalInput{
		Amount: dec("100"), Method: models.MethodPaypal, Details: map[string]string{"email": "sam@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalPending, w.Status)
	assertMoney(t, "3.20", w.ProcessingFee, "paypal fee")
	assertMoney(t, "96.80", w.NetAmount, "net")

	bal, err := f.svc.GetBalance(ctx, f.provider, f.provider.ID)
	require.NoError(t, err)
	assertMoney(t, "750", bal.AvailableBalance, "available after request")
	assertMoney(t, "100", bal.PendingBalance, "pending after request")

	_, err = f.svc.RequestWithdrawal(ctx, f.provider, WithdrawalInput{Amount: dec("50"), Method: models.MethodBankTransfer, Details: bankDetails})
	assert.True(t, apperr.Is(err, apperr.KindConflict), "one open withdrawal per owner")

	_, err = f.svc.UpdateWithdrawalStatus(ctx, f.provider, w.ID, WithdrawalStatusInput{Status: models.WithdrawalCompleted})
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	got, err := f.svc.UpdateWithdrawalStatus(ctx, f.admin, w.ID, WithdrawalStatusInput{Status: models.WithdrawalProcessing, Note: "sent to paypal"})
	require.NoError(t, err)
	assert.NotNil(t, got.ProcessedAt)
	require.Len(t, got.AdminNotes, 1)

	got, err = f.svc.UpdateWithdrawalStatus(ctx, f.admin, w.ID, WithdrawalStatusInput{Status: models.WithdrawalCompleted})
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)

	bal, err = f.svc.GetBalance(ctx, f.provider, f.provider.ID)
	require.NoError(t, err)
	assertMoney(t, "750", bal.AvailableBalance, "available after completion")
	assert.True(t, bal.PendingBalance.IsZero())
	assertMoney(t, "100", bal.TotalWithdrawn, "withdrawn")

	_, err = f.svc.UpdateWithdrawalStatus(ctx, f.admin, w.ID, WithdrawalStatusInput{Status: models.WithdrawalCancelled})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = f.svc.UpdateWithdrawalStatus(ctx, f.admin, uuid.New(), WithdrawalStatusInput{Status: models.WithdrawalCompleted})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestRejectedWithdrawalRestoresBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPaidJob(t, 1000, models.RoleProvider)

	w, err := f.svc.RequestWithdrawal(ctx, f.provider, WithdrawalInput{Amount: dec("850"), Method: models.MethodBankTransfer, Details: bankDetails})
	require.NoError(t, err)

	bal, err := f.svc.GetBalance(ctx, f.provider, f.provider.ID)
	require.NoError(t, err)
	assert.True(t, bal.AvailableBalance.IsZero())

	got, err := f.svc.UpdateWithdrawalStatus(ctx, f.admin, w.ID, WithdrawalStatusInput{Status: models.WithdrawalRejected, Note: "account closed"})
	require.NoError(t, err)
	assert.NotNil(t, got.RejectedAt)

	bal, err = f.svc.GetBalance(ctx, f.provider, f.provider.ID)
	require.NoError(t, err)
	assertMoney(t, "850", bal.AvailableBalance, "restored")
	assert.True(t, bal.PendingBalance.IsZero())
	assert.True(t, bal.TotalWithdrawn.IsZero())

	_, err = f.svc.RequestWithdrawal(ctx, f.provider, WithdrawalInput{Amount: dec("850"), Method: models.MethodBankTransfer, Details: bankDetails})
	assert.NoError(t, err, "a rejected withdrawal no longer blocks new ones")
}

func TestConcurrentWithdrawalsAdmitOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPaidJob(t, 1000, models.RoleProvider)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.RequestWithdrawal(ctx, f.provider, WithdrawalInput{Amount: dec("500"), Method: models.MethodBankTransfer, Details: bankDetails})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case apperr.Is(err, apperr.KindConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)

	bal, err := f.svc.GetBalance(ctx, f.provider, f.provider.ID)
	require.NoError(t, err)
	assertMoney(t, "350", bal.AvailableBalance, "available")
	assertMoney(t, "500", bal.PendingBalance, "pending")
}

func TestFoldMatchesWithdrawalRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPaidJob(t, 1000, models.RoleProvider)
	f.seedPaidJob(t, 500, models.RoleProvider)

	steps := []struct {
		amount string
		final  models.WithdrawalStatus
	}{
		{"100", models.WithdrawalCompleted},
		{"200", models.WithdrawalRejected},
		{"300", models.WithdrawalCompleted},
		{"150", models.WithdrawalCancelled},
		{"250", ""},
	}
	for _, st := range steps {
		w, err := f.svc.RequestWithdrawal(ctx, f.provider, WithdrawalInput{Amount: dec(st.amount), Method: models.MethodBankTransfer, Details: bankDetails})
		require.NoError(t, err)
		if st.final != "" {
			_, err = f.svc.UpdateWithdrawalStatus(ctx, f.admin, w.ID, WithdrawalStatusInput{Status: st.final})
			require.NoError(t, err)
		}
	}

	var withdrawals []models.Withdrawal
	require.NoError(t, f.db.Where("owner_id = ?", f.provider.ID).Find(&withdrawals).Error)
	var withdrawn, pending decimal.Decimal
	for _, w := range withdrawals {
		switch {
		case w.Status == models.WithdrawalCompleted:
			withdrawn = withdrawn.Add(w.Amount)
		case w.Status.Open():
			pending = pending.Add(w.Amount)
		}
	}

	bal, err := f.svc.GetBalance(ctx, f.provider, f.provider.ID)
	require.NoError(t, err)
	assert.True(t, withdrawn.Equal(bal.TotalWithdrawn))
	assert.True(t, pending.Equal(bal.PendingBalance))
	assertMoney(t, "1275", bal.TotalEarnings, "earnings")
	assertMoney(t, "625", bal.AvailableBalance, "available")

	list, total, err := f.svc.ListWithdrawals(ctx, f.provider, WithdrawalFilter{Status: models.WithdrawalCompleted})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, list, 2)

	_, total, err = f.svc.ListWithdrawals(ctx, models.Principal{ID: uuid.New(), Role: models.RoleInspector}, WithdrawalFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = f.svc.GetWithdrawal(ctx, models.Principal{ID: uuid.New(), Role: models.RoleProvider}, withdrawals[0].ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestFold(t *testing.T) {
	owner := uuid.New()
	ref := uuid.New()
	bal := Fold(owner, []models.LedgerEntry{
		{Kind: models.LedgerJobSettled, Amount: dec("500"), ReferenceID: ref},
		{Kind: models.LedgerWithdrawalRequested, Amount: dec("200")},
		{Kind: models.LedgerWithdrawalCompleted, Amount: dec("200")},
		{Kind: models.LedgerWithdrawalRequested, Amount: dec("100")},
		{Kind: models.LedgerJobReversed, Amount: dec("-500"), ReferenceID: ref},
	})
	assert.True(t, bal.TotalEarnings.IsZero())
	assertMoney(t, "200", bal.TotalWithdrawn, "withdrawn")
	assertMoney(t, "100", bal.PendingBalance, "pending")
	assert.True(t, bal.AvailableBalance.IsZero(), "never negative")
}
