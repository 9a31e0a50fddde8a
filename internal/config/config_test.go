package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GATEWAY_MODE", "fake")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, DefaultGatewayTimeout, cfg.GatewayTimeout)
	assert.Equal(t, DefaultMarkSoldTries, cfg.MarkSoldAttempts)
}

func TestLoad_StripeRequiresKey(t *testing.T) {
	t.Setenv("GATEWAY_MODE", "stripe")
	t.Setenv("STRIPE_SECRET_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRIPE_SECRET_KEY")
}

func TestLoad_FakeGatewayForbiddenInProduction(t *testing.T) {
	t.Setenv("GATEWAY_MODE", "fake")
	t.Setenv("ENV", "production")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_UnknownGatewayMode(t *testing.T) {
	t.Setenv("GATEWAY_MODE", "paypal")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_GatewayTimeoutOverride(t *testing.T) {
	t.Setenv("GATEWAY_MODE", "fake")
	t.Setenv("GATEWAY_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.GatewayTimeout)
}
