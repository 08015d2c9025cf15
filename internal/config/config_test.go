package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvVars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		envVars  map[string]string
		expected string
	}{
		{
			name:  "expand single env var",
			input: "coin: ${TEST_COIN}",
			envVars: map[string]string{
				"TEST_COIN": "PURR",
			},
			expected: "coin: PURR",
		},
		{
			name:     "missing env var returns empty string",
			input:    "coin: ${MISSING_VAR}",
			envVars:  map[string]string{},
			expected: "coin: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				os.Setenv(k, v)
				defer os.Unsetenv(k)
			}
			result := expandEnvVars(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestLoadConfigWithEnvVars(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "config-test-*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	configContent := `market:
  coin: "${TEST_COIN}"
  asset_index: 10000
  testnet: true

strategy:
  start_px: "1.000"
  n_orders: 5
  tick: "0.003"
  order_sz: "10"

allocation:
  allocated_token: "100"
  allocated_usdc: "100"

tuning:
  interval_s: 3.0
  dead_zone_bps: 5.0
  price_tolerance_bps: 1.0
  size_tolerance_pct: 1.0
  reconcile_every: 20

system:
  log_level: "INFO"
  cancel_on_exit: true
`

	_, err = tmpFile.Write([]byte(configContent))
	require.NoError(t, err)
	tmpFile.Close()

	os.Setenv("TEST_COIN", "PURR")
	defer os.Unsetenv("TEST_COIN")

	cfg, err := LoadConfig(tmpFile.Name())
	require.NoError(t, err, "LoadConfig() error")

	assert.Equal(t, "PURR", cfg.Market.Coin)
	assert.Equal(t, 5, cfg.Strategy.NOrders)
}

func TestConfig_Validate_MissingRequired(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "market.coin")
}

func TestConfig_Validate_OK(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Market.Coin = "PURR"
	cfg.Market.AssetIndex = 10000
	cfg.Strategy.StartPx = "1.000"
	cfg.Strategy.NOrders = 5
	cfg.Strategy.OrderSz = "10"
	cfg.Allocation.AllocatedToken = "100"
	cfg.Allocation.AllocatedUSDC = "100"

	assert.NoError(t, cfg.Validate())
}

func TestLoadSecrets(t *testing.T) {
	os.Setenv("HL_PRIVATE_KEY", "0xabc")
	os.Setenv("HL_WALLET_ADDRESS", "0xdef")
	defer os.Unsetenv("HL_PRIVATE_KEY")
	defer os.Unsetenv("HL_WALLET_ADDRESS")

	secrets, err := LoadSecrets()
	require.NoError(t, err)
	assert.Equal(t, Secret("0xabc"), secrets.PrivateKey)
	assert.Equal(t, "0xdef", secrets.WalletAddress)
	assert.Equal(t, "[REDACTED]", secrets.PrivateKey.String())
}

func TestLoadSecrets_Missing(t *testing.T) {
	os.Unsetenv("HL_PRIVATE_KEY")
	os.Unsetenv("HL_WALLET_ADDRESS")

	_, err := LoadSecrets()
	assert.Error(t, err)
}
