package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invest-service/internal/config"
	"invest-service/internal/testutil"
)

func TestWire(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.AppConfig{
		RedisAddr:       mr.Addr(),
		ApprovalTimeout: 5 * time.Second,
		ApprovalLockTTL: time.Minute,
		RatesCacheTTL:   time.Hour,
	}

	a := Wire(cfg, testutil.NewDB(t))
	t.Cleanup(func() {
		_ = a.Queue.Close()
		_ = a.Redis.Close()
	})

	require.NoError(t, a.Redis.Ping(context.Background()).Err())
	assert.Nil(t, a.Deposits.Gateway)
	assert.NotNil(t, a.Deposits.Guard)
	assert.Same(t, a.Deposits.Guard, a.Withdrawals.Guard)
	assert.Equal(t, 5*time.Second, a.Withdrawals.Timeout)

	h := a.Handler()
	assert.Same(t, a.Deposits, h.Deposits)
	w := a.Worker()
	assert.Same(t, a.Investments, w.Investments)
	assert.Equal(t, mr.Addr(), a.RedisOpt().Addr)
}

func TestWireWithGateway(t *testing.T) {
	mr := miniredis.RunT(t)
	a := Wire(config.AppConfig{
		RedisAddr:     mr.Addr(),
		GatewayAPIURL: "http://gateway.invalid",
		GatewayAPIKey: "key",
		PlunkAPIKey:   "plunk",
	}, testutil.NewDB(t))
	defer a.Close()

	assert.NotNil(t, a.Deposits.Gateway)
}
