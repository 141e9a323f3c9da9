package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invest-service/internal/models"
)

func TestPaymentAccountDefaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "accounts@example.com", nil, false)

	first, err := env.accounts.Create(ctx, CreatePaymentAccountDTO{UserId: user.ID, Type: models.PaymentAccountMobile, Provider: "MTN", AccountIdentifier: "1"})
	require.NoError(t, err)
	assert.True(t, first.IsDefault)

	second, err := env.accounts.Create(ctx, CreatePaymentAccountDTO{UserId: user.ID, Type: models.PaymentAccountCrypto, Provider: "USDT", AccountIdentifier: "T1"})
	require.NoError(t, err)
	assert.False(t, second.IsDefault)

	third, err := env.accounts.Create(ctx, CreatePaymentAccountDTO{UserId: user.ID, Type: models.PaymentAccountCrypto, Provider: "BTC", AccountIdentifier: "bc1", IsDefault: true})
	require.NoError(t, err)
	assert.True(t, third.IsDefault)

	accounts, err := env.accounts.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	assert.Equal(t, third.ID, accounts[0].ID)
	defaults := 0
	for _, a := range accounts {
		if a.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)

	_, err = env.accounts.SetDefault(ctx, user.ID, first.ID)
	require.NoError(t, err)
	accounts, err = env.accounts.List(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, accounts[0].ID)
	assert.True(t, accounts[0].IsDefault)
	assert.False(t, accounts[1].IsDefault)
}

func TestDeletingDefaultAccountPromotesNewest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "accounts-delete@example.com", nil, false)

	first, err := env.accounts.Create(ctx, CreatePaymentAccountDTO{UserId: user.ID, Type: models.PaymentAccountMobile, Provider: "MTN", AccountIdentifier: "1"})
	require.NoError(t, err)
	_, err = env.accounts.Create(ctx, CreatePaymentAccountDTO{UserId: user.ID, Type: models.PaymentAccountMobile, Provider: "Orange", AccountIdentifier: "2"})
	require.NoError(t, err)
	newest, err := env.accounts.Create(ctx, CreatePaymentAccountDTO{UserId: user.ID, Type: models.PaymentAccountMobile, Provider: "Moov", AccountIdentifier: "3"})
	require.NoError(t, err)

	require.NoError(t, env.accounts.Delete(ctx, user.ID, first.ID))

	accounts, err := env.accounts.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, newest.ID, accounts[0].ID)
	assert.True(t, accounts[0].IsDefault)

	assert.ErrorIs(t, env.accounts.Delete(ctx, user.ID, first.ID), ErrNotFound)
}

func TestPaymentAccountValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "accounts-invalid@example.com", nil, false)
	other := env.createUser(t, "accounts-other@example.com", nil, false)

	_, err := env.accounts.Create(ctx, CreatePaymentAccountDTO{UserId: user.ID, Type: "BANK", Provider: "X", AccountIdentifier: "1"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.accounts.Create(ctx, CreatePaymentAccountDTO{UserId: user.ID, Type: models.PaymentAccountMobile, Provider: " "})
	assert.ErrorIs(t, err, ErrValidation)

	account, err := env.accounts.Create(ctx, CreatePaymentAccountDTO{UserId: other.ID, Type: models.PaymentAccountMobile, Provider: "MTN", AccountIdentifier: "1"})
	require.NoError(t, err)
	_, err = env.accounts.SetDefault(ctx, user.ID, account.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
