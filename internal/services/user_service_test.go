package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invest-service/internal/models"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	referrer, err := env.users.Register(ctx, RegisterUserDTO{Email: "Referrer@Example.com", FullName: "Ref", CountryCode: "cm"})
	require.NoError(t, err)
	assert.Equal(t, "referrer@example.com", referrer.Email)
	assert.Equal(t, "CM", referrer.CountryCode)
	assert.True(t, referrer.IsNewUser)
	assert.Len(t, referrer.ReferralCode, referralCodeLength)
	assert.Nil(t, referrer.ReferredBy)

	user, err := env.users.Register(ctx, RegisterUserDTO{Email: "user@example.com", ReferralCode: referrer.ReferralCode})
	require.NoError(t, err)
	require.NotNil(t, user.ReferredBy)
	assert.Equal(t, referrer.ID, *user.ReferredBy)

	var referral models.Referral
	require.NoError(t, env.db.Where("user_id = ?", user.ID).First(&referral).Error)
	assert.Equal(t, referrer.ID, referral.ReferredBy)
	assert.Equal(t, models.ReferralPending, referral.Status)

	summary, err := env.bonus.ListReferrals(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Len(t, summary.Referrals, 1)
	assertAmount(t, "0", summary.TotalEarnings)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.users.Register(ctx, RegisterUserDTO{Email: "not-an-email"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.users.Register(ctx, RegisterUserDTO{Email: "x@example.com", ReferralCode: "NOPE1234"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.users.Register(ctx, RegisterUserDTO{Email: "dup@example.com"})
	require.NoError(t, err)
	_, err = env.users.Register(ctx, RegisterUserDTO{Email: "DUP@example.com"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRegisteredReferralEarnsOnFirstDeposit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setRates(t, "5", "10", "0")

	referrer, err := env.users.Register(ctx, RegisterUserDTO{Email: "chain-r@example.com"})
	require.NoError(t, err)
	user, err := env.users.Register(ctx, RegisterUserDTO{Email: "chain-u@example.com", ReferralCode: referrer.ReferralCode})
	require.NoError(t, err)

	deposit := env.pendingDeposit(t, user, "100")
	_, err = env.approveDeposit(deposit.ID)
	require.NoError(t, err)

	summary, err := env.bonus.ListReferrals(ctx, referrer.ID)
	require.NoError(t, err)
	require.Len(t, summary.Referrals, 1)
	assert.Equal(t, models.ReferralActive, summary.Referrals[0].Status)
	assertAmount(t, "10", summary.TotalEarnings)
	assertAmount(t, "15", env.balance(t, referrer.ID, models.WalletBonus))

	got, err := env.users.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, got.IsNewUser)

	_, err = env.users.Get(ctx, 4040)
	assert.ErrorIs(t, err, ErrNotFound)
}
