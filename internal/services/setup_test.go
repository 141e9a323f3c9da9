package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"invest-service/internal/metrics"
	"invest-service/internal/models"
	"invest-service/internal/testutil"
	"invest-service/pkg/common"
)

type testEnv struct {
	db            *gorm.DB
	metrics       *metrics.Collector
	queue         *fakeQueue
	wallets       *WalletService
	ledger        *LedgerService
	settings      *SettingsService
	bonus         *BonusService
	notifications *NotificationService
	audit         *AuditService
	deposits      *DepositService
	withdrawals   *WithdrawalService
	investments   *InvestmentService
	accounts      *PaymentAccountService
	users         *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	m := metrics.NewCollector()
	queue := &fakeQueue{}

	wallets := NewWalletService(db)
	ledger := NewLedgerService(db)
	settings := NewSettingsService(db)
	bonus := NewBonusService(db, wallets, ledger, m)
	notifications := NewNotificationService(db, queue, LogMailer{})
	audit := NewAuditService(db)
	effects := NewEffectRunner(m)

	return &testEnv{
		db:            db,
		metrics:       m,
		queue:         queue,
		wallets:       wallets,
		ledger:        ledger,
		settings:      settings,
		bonus:         bonus,
		notifications: notifications,
		audit:         audit,
		deposits: &DepositService{
			DB: db, Wallets: wallets, Ledger: ledger, Bonus: bonus, Settings: settings,
			Notifications: notifications, Audit: audit, Effects: effects, Metrics: m, Queue: queue,
		},
		withdrawals: &WithdrawalService{
			DB: db, Wallets: wallets, Ledger: ledger, Settings: settings,
			Notifications: notifications, Audit: audit, Effects: effects, Metrics: m,
		},
		investments: NewInvestmentService(db, wallets, ledger, m),
		accounts:    NewPaymentAccountService(db),
		users:       NewUserService(db),
	}
}

func (e *testEnv) createUser(t *testing.T, email string, referrer *models.User, isNew bool) *models.User {
	t.Helper()
	user := models.User{
		Email:        email,
		FullName:     email,
		CountryCode:  "CM",
		Role:         models.RoleUser,
		ReferralCode: common.GenerateCode(referralCodeLength),
		IsNewUser:    isNew,
	}
	if referrer != nil {
		user.ReferredBy = &referrer.ID
	}
	require.NoError(t, e.db.Create(&user).Error)
	return &user
}

func (e *testEnv) pendingDeposit(t *testing.T, user *models.User, amount string) *models.Transaction {
	t.Helper()
	trx, err := e.ledger.Create(nil, CreateTransactionDTO{
		UserId: user.ID,
		Type:   models.TransactionDeposit,
		Amount: dec(amount),
	})
	require.NoError(t, err)
	return trx
}

func (e *testEnv) setRates(t *testing.T, registration, referral, firstDeposit string) {
	t.Helper()
	require.NoError(t, e.settings.Update(context.Background(), map[string]decimal.Decimal{
		models.SettingRegistrationBonusPercentage: dec(registration),
		models.SettingReferralBonusPercentage:     dec(referral),
		models.SettingFirstDepositBonusPercentage: dec(firstDeposit),
	}))
}

// fund credits a wallet directly, bypassing the workflows.
func (e *testEnv) fund(t *testing.T, user *models.User, walletType models.WalletType, amount string) *models.Wallet {
	t.Helper()
	wallet, err := e.wallets.GetOrCreateWallet(nil, user.ID, walletType)
	require.NoError(t, err)
	require.NoError(t, e.wallets.Credit(nil, wallet.ID, dec(amount)))
	return wallet
}

func (e *testEnv) balance(t *testing.T, userId int64, walletType models.WalletType) decimal.Decimal {
	t.Helper()
	var wallet models.Wallet
	err := e.db.Where("user_id = ? AND type = ?", userId, walletType).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero
	}
	require.NoError(t, err)
	return wallet.Balance
}

func (e *testEnv) reload(t *testing.T, id int64) models.Transaction {
	t.Helper()
	var trx models.Transaction
	require.NoError(t, e.db.First(&trx, id).Error)
	return trx
}

func (e *testEnv) approveDeposit(id int64) (*DecisionResult, error) {
	return e.deposits.Decide(context.Background(), DecisionDTO{TransactionId: id, Action: ActionApprove, ActorId: 1})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

// counterValue sums every series of a counter family in the collector's registry.
func counterValue(t *testing.T, m *metrics.Collector, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	total := 0.0
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	err   error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func (q *fakeQueue) count(taskType string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, task := range q.tasks {
		if task.Type() == taskType {
			n++
		}
	}
	return n
}
