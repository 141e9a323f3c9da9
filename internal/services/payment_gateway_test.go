package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invest-service/internal/models"
)

type fakeGateway struct {
	mu        sync.Mutex
	status    string
	createErr error
	statusErr error
	created   []CreatePaymentRequest
}

func (g *fakeGateway) CreatePayment(_ context.Context, req CreatePaymentRequest) (*GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created = append(g.created, req)
	return &GatewayPayment{
		PaymentId:     "5077125051",
		PaymentStatus: "waiting",
		PayAddress:    "TXkq9pZ8cDeposit",
		PayAmount:     req.PriceAmount,
		PayCurrency:   req.PayCurrency,
		OrderId:       req.OrderId,
	}, nil
}

func (g *fakeGateway) GetEstimate(_ context.Context, amount decimal.Decimal, payCurrency string) (*GatewayEstimate, error) {
	return &GatewayEstimate{CurrencyFrom: "usd", AmountFrom: amount, CurrencyTo: payCurrency, EstimatedAmount: amount}, nil
}

func (g *fakeGateway) GetPaymentStatus(_ context.Context, paymentId string) (*GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	return &GatewayPayment{PaymentId: GatewayID(paymentId), PaymentStatus: g.status}, nil
}

func cryptoDeposit(t *testing.T, env *testEnv, gateway *fakeGateway, user *models.User, amount string) *models.Transaction {
	t.Helper()
	env.deposits.Gateway = gateway
	env.deposits.PayCurrency = "usdttrc20"
	account, err := env.accounts.Create(context.Background(), CreatePaymentAccountDTO{
		UserId: user.ID, Type: models.PaymentAccountCrypto, Provider: "USDT", AccountIdentifier: "TXkq9pZ8cWallet",
	})
	require.NoError(t, err)
	trx, err := env.deposits.RequestDeposit(context.Background(), RequestDepositDTO{
		UserId: user.ID, Amount: dec(amount), PaymentAccountId: account.ID,
	})
	require.NoError(t, err)
	return trx
}

func TestClassifyPaymentStatus(t *testing.T) {
	assert.Equal(t, GatewayPaid, ClassifyPaymentStatus("finished"))
	assert.Equal(t, GatewayPaid, ClassifyPaymentStatus("Confirmed"))
	assert.Equal(t, GatewayFailed, ClassifyPaymentStatus("expired"))
	assert.Equal(t, GatewayFailed, ClassifyPaymentStatus("refunded"))
	assert.Equal(t, GatewayWaiting, ClassifyPaymentStatus("waiting"))
	assert.Equal(t, GatewayWaiting, ClassifyPaymentStatus("partially_paid"))
}

func TestHTTPPaymentGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/payment":
			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "usd", req["price_currency"])
			assert.Equal(t, "DEP-1", req["order_id"])
			_, _ = w.Write([]byte(`{"payment_id":5077125051,"payment_status":"waiting","pay_address":"addr","pay_amount":"25.5","pay_currency":"usdttrc20"}`))
		case r.URL.Path == "/estimate":
			assert.Equal(t, "25", r.URL.Query().Get("amount"))
			assert.Equal(t, "btc", r.URL.Query().Get("currency_to"))
			_, _ = w.Write([]byte(`{"currency_from":"usd","amount_from":"25","currency_to":"btc","estimated_amount":"0.0004"}`))
		case r.URL.Path == "/payment/5077125051":
			_, _ = w.Write([]byte(`{"payment_id":"5077125051","payment_status":"finished"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	gateway := NewHTTPPaymentGateway(srv.URL+"/", "secret")
	ctx := context.Background()

	payment, err := gateway.CreatePayment(ctx, CreatePaymentRequest{PriceAmount: dec("25"), PayCurrency: "usdttrc20", OrderId: "DEP-1"})
	require.NoError(t, err)
	assert.Equal(t, GatewayID("5077125051"), payment.PaymentId)
	assert.Equal(t, "addr", payment.PayAddress)
	assertAmount(t, "25.5", payment.PayAmount)

	estimate, err := gateway.GetEstimate(ctx, dec("25"), "btc")
	require.NoError(t, err)
	assertAmount(t, "0.0004", estimate.EstimatedAmount)

	status, err := gateway.GetPaymentStatus(ctx, "5077125051")
	require.NoError(t, err)
	assert.Equal(t, "finished", status.PaymentStatus)

	_, err = gateway.GetPaymentStatus(ctx, "missing")
	assert.Error(t, err)
}

func TestRequestCryptoDepositOpensGatewayPayment(t *testing.T) {
	env := newTestEnv(t)
	gateway := &fakeGateway{}
	user := env.createUser(t, "crypto@example.com", nil, false)

	trx := cryptoDeposit(t, env, gateway, user, "25")
	assert.Equal(t, models.StatusPending, trx.Status)
	assert.Equal(t, "5077125051", trx.Metadata[models.MetaGatewayPaymentId])
	assert.Equal(t, "TXkq9pZ8cDeposit", trx.Metadata[models.MetaGatewayPayAddress])

	require.Len(t, gateway.created, 1)
	assert.Equal(t, trx.Reference, gateway.created[0].OrderId)
	assert.Equal(t, "usdttrc20", gateway.created[0].PayCurrency)

	stored := env.reload(t, trx.ID)
	assert.Equal(t, "5077125051", stored.Metadata[models.MetaGatewayPaymentId])
}

func TestRequestDepositKeepsRowWhenGatewayFails(t *testing.T) {
	env := newTestEnv(t)
	gateway := &fakeGateway{createErr: errors.New("gateway down")}
	user := env.createUser(t, "crypto-down@example.com", nil, false)

	trx := cryptoDeposit(t, env, gateway, user, "25")
	assert.Equal(t, models.StatusPending, env.reload(t, trx.ID).Status)
	assert.NotContains(t, trx.Metadata, models.MetaGatewayPaymentId)
}

func TestRequestDepositValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "min@example.com", nil, false)
	other := env.createUser(t, "other@example.com", nil, false)
	account, err := env.accounts.Create(ctx, CreatePaymentAccountDTO{
		UserId: other.ID, Type: models.PaymentAccountMobile, Provider: "MTN", AccountIdentifier: "1",
	})
	require.NoError(t, err)

	require.NoError(t, env.settings.Update(ctx, map[string]decimal.Decimal{models.SettingMinimumDeposit: dec("10")}))

	_, err = env.deposits.RequestDeposit(ctx, RequestDepositDTO{UserId: user.ID, Amount: dec("5"), PaymentAccountId: account.ID})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.deposits.RequestDeposit(ctx, RequestDepositDTO{UserId: user.ID, Amount: dec("50"), PaymentAccountId: account.ID})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSyncGatewayStatusSettlesDeposit(t *testing.T) {
	env := newTestEnv(t)
	env.setRates(t, "0", "0", "10")
	gateway := &fakeGateway{status: "waiting"}
	user := env.createUser(t, "poll@example.com", nil, true)
	trx := cryptoDeposit(t, env, gateway, user, "40")
	ctx := context.Background()

	outcome, err := env.deposits.SyncGatewayStatus(ctx, trx.ID)
	require.NoError(t, err)
	assert.Equal(t, GatewayWaiting, outcome)
	assert.Equal(t, models.StatusPending, env.reload(t, trx.ID).Status)

	gateway.status = "finished"
	outcome, err = env.deposits.SyncGatewayStatus(ctx, trx.ID)
	require.NoError(t, err)
	assert.Equal(t, GatewayPaid, outcome)
	assert.Equal(t, models.StatusCompleted, env.reload(t, trx.ID).Status)
	assertAmount(t, "40", env.balance(t, user.ID, models.WalletDeposit))
	assertAmount(t, "4", env.balance(t, user.ID, models.WalletBonus))

	// System decisions are not written to the admin audit log.
	var audits int64
	require.NoError(t, env.db.Model(&models.AdminActivity{}).Count(&audits).Error)
	assert.Zero(t, audits)

	_, err = env.deposits.SyncGatewayStatus(ctx, trx.ID)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestSyncGatewayStatusRejectsExpiredPayment(t *testing.T) {
	env := newTestEnv(t)
	gateway := &fakeGateway{status: "expired"}
	user := env.createUser(t, "expired@example.com", nil, false)
	trx := cryptoDeposit(t, env, gateway, user, "40")

	outcome, err := env.deposits.SyncGatewayStatus(context.Background(), trx.ID)
	require.NoError(t, err)
	assert.Equal(t, GatewayFailed, outcome)
	stored := env.reload(t, trx.ID)
	assert.Equal(t, models.StatusFailed, stored.Status)
	assert.Equal(t, "gateway status expired", stored.Metadata[models.MetaRejectionReason])
}

func TestSyncGatewayStatusCountsLookupFailures(t *testing.T) {
	env := newTestEnv(t)
	gateway := &fakeGateway{statusErr: errors.New("timeout")}
	user := env.createUser(t, "flaky@example.com", nil, false)
	trx := cryptoDeposit(t, env, gateway, user, "40")

	_, err := env.deposits.SyncGatewayStatus(context.Background(), trx.ID)
	require.Error(t, err)
	assert.Equal(t, 1.0, counterValue(t, env.metrics, "gateway_poll_failures_total"))
	assert.Equal(t, models.StatusPending, env.reload(t, trx.ID).Status)
}

func TestEnqueueGatewayPollsOnlyGatewayDeposits(t *testing.T) {
	env := newTestEnv(t)
	gateway := &fakeGateway{status: "waiting"}
	user := env.createUser(t, "enqueue@example.com", nil, false)

	cryptoDeposit(t, env, gateway, user, "10")
	cryptoDeposit(t, env, gateway, user, "20")
	env.pendingDeposit(t, user, "30")

	pending, err := env.deposits.PendingGatewayDeposits(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	n, err := env.deposits.EnqueueGatewayPolls(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, env.queue.count(TypeGatewayPoll))
}
