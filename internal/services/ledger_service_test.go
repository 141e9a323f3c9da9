package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invest-service/internal/models"
)

func TestCreateAssignsPrefixedReference(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "ledger@example.com", nil, false)

	trx, err := env.ledger.Create(nil, CreateTransactionDTO{
		UserId: user.ID,
		Type:   models.TransactionWithdrawal,
		Amount: dec("10"),
	})
	require.NoError(t, err)
	assert.Regexp(t, `^WDR-[0-9]{10}[A-Z]$`, trx.Reference)
	assert.Equal(t, models.StatusPending, trx.Status)
	assert.Nil(t, trx.ProcessedAt)
}

func TestCreateValidates(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ledger.Create(nil, CreateTransactionDTO{UserId: 1, Type: models.TransactionDeposit, Amount: dec("0")})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.ledger.Create(nil, CreateTransactionDTO{UserId: 1, Type: "TIP", Amount: dec("1")})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.ledger.Create(nil, CreateTransactionDTO{UserId: 1, Type: models.TransactionFee, Amount: dec("1"), Fee: dec("-1")})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateRetriesReferenceCollision(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "collide@example.com", nil, false)

	candidates := []string{"DEP-0000000001A", "DEP-0000000001A", "DEP-0000000002B"}
	calls := 0
	env.ledger.NewReference = func(string) string {
		ref := candidates[calls]
		calls++
		return ref
	}

	first := env.pendingDeposit(t, user, "5")
	second := env.pendingDeposit(t, user, "6")

	assert.Equal(t, "DEP-0000000001A", first.Reference)
	assert.Equal(t, "DEP-0000000002B", second.Reference)
	assert.Equal(t, 3, calls)
}

func TestCreateGivesUpAfterBoundedAttempts(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "stuck@example.com", nil, false)
	env.ledger.NewReference = func(string) string { return "DEP-0000000009Z" }

	env.pendingDeposit(t, user, "5")
	_, err := env.ledger.Create(nil, CreateTransactionDTO{UserId: user.ID, Type: models.TransactionDeposit, Amount: dec("5")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "5 attempts")
}

func TestTransitionOnlyLeavesPendingOnce(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "transition@example.com", nil, false)
	trx := env.pendingDeposit(t, user, "25")

	require.NoError(t, env.ledger.Transition(nil, trx.ID, models.StatusCancelled, TransitionOptions{
		Metadata: map[string]any{"note": "first"},
	}))
	err := env.ledger.Transition(nil, trx.ID, models.StatusCompleted, TransitionOptions{})
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	stored := env.reload(t, trx.ID)
	assert.Equal(t, models.StatusCancelled, stored.Status)
	assert.NotNil(t, stored.ProcessedAt)
	assert.Equal(t, "first", stored.Metadata["note"])

	assert.ErrorIs(t, env.ledger.Transition(nil, 424242, models.StatusFailed, TransitionOptions{}), ErrNotFound)
	assert.ErrorIs(t, env.ledger.Transition(nil, trx.ID, models.StatusPending, TransitionOptions{}), ErrValidation)
}

func TestAttachConversionAfterTerminalStatus(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "fx@example.com", nil, false)
	trx := env.pendingDeposit(t, user, "10")
	require.NoError(t, env.ledger.Transition(nil, trx.ID, models.StatusCompleted, TransitionOptions{
		Metadata: map[string]any{"processed_by": "7"},
	}))

	require.NoError(t, env.ledger.AttachConversion(nil, trx.ID, Conversion{
		Currency: "XAF", OriginalAmount: dec("6000"), Rate: dec("600"),
	}))

	stored := env.reload(t, trx.ID)
	assert.Equal(t, "XAF", stored.Metadata[models.MetaOriginalCurrency])
	assert.Equal(t, "6000", stored.Metadata[models.MetaOriginalAmount])
	assert.Equal(t, "7", stored.Metadata["processed_by"])
}

func TestListPaginatesAndFilters(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "list@example.com", nil, false)
	other := env.createUser(t, "other@example.com", nil, false)

	for i := 0; i < 5; i++ {
		env.pendingDeposit(t, user, "1")
	}
	_, err := env.ledger.Create(nil, CreateTransactionDTO{UserId: user.ID, Type: models.TransactionFee, Amount: dec("1")})
	require.NoError(t, err)
	env.pendingDeposit(t, other, "1")

	items, page, err := env.ledger.List(context.Background(), ListTransactionsDTO{
		UserId: user.ID, Type: models.TransactionDeposit, Page: 2, Limit: 2,
	})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.Page)

	all, page, err := env.ledger.List(context.Background(), ListTransactionsDTO{UserId: user.ID})
	require.NoError(t, err)
	assert.Len(t, all, 6)
	assert.Equal(t, 1, page.TotalPages)
	assert.True(t, all[0].ID > all[len(all)-1].ID)

	_, _, err = env.ledger.List(context.Background(), ListTransactionsDTO{Type: "BOGUS"})
	assert.ErrorIs(t, err, ErrValidation)
}
