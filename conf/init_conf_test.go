package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYaml(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeYaml(t, `
chain:
  rpc_url: http://127.0.0.1:8545
  contract_address: "0x6B4485B0Aec3BBe9E8eA335F049df5DE41668C5D"
  private_key: abc
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "7391", cfg.Port)
	assert.Equal(t, "mysql", cfg.Database.Type)
	assert.Equal(t, uint64(300000), cfg.Chain.GasLimit)
	assert.Equal(t, "markup", cfg.Chain.GasPolicy)
	assert.Equal(t, int64(10), cfg.Chain.GasMarkupPercent)
	assert.Equal(t, 120*time.Second, cfg.Chain.ReceiptTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.Chain.RetryBackoff())
	assert.Equal(t, 300, cfg.Redis.LeaseTTL)
	assert.Equal(t, 5, cfg.Dispatch.MaxReverts)
	assert.Equal(t, "localhost:7391", cfg.SwaggerBaseUrl)

	require.Len(t, cfg.Schedulers, 2)
	assert.Equal(t, "due_date", cfg.Schedulers[0].Name)
	assert.Equal(t, 60, cfg.Schedulers[0].Interval)
	assert.Equal(t, []string{"inactivity"}, cfg.Schedulers[1].TriggerTypes)
	assert.Equal(t, 3600, cfg.Schedulers[1].Interval)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigSchedulerProfiles(t *testing.T) {
	path := writeYaml(t, `
schedulers:
  - name: all
    interval: 15
    trigger_types: [due_date, inactivity]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Schedulers, 1)
	assert.Equal(t, 15, cfg.Schedulers[0].Interval)
	assert.Equal(t, 100, cfg.Schedulers[0].BatchSize)
	assert.ElementsMatch(t, []string{"due_date", "inactivity"}, cfg.Schedulers[0].TriggerTypes)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeYaml(t, `
chain:
  rpc_url: http://from-file
`)
	t.Setenv("CHAIN_RPC_URL", "http://from-env")
	t.Setenv("CHAIN_PRIVATE_KEY", "deadbeef")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env", cfg.Chain.RpcUrl)
	assert.Equal(t, "deadbeef", cfg.Chain.PrivateKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"missing rpc", Config{}, ErrMissingRpcUrl},
		{"missing contract", Config{Chain: ChainConfig{RpcUrl: "x"}}, ErrMissingContract},
		{"missing key", Config{Chain: ChainConfig{RpcUrl: "x", ContractAddress: "y"}}, ErrMissingPrivateKey},
		{"ok", Config{Chain: ChainConfig{RpcUrl: "x", ContractAddress: "y", PrivateKey: "z"}}, nil},
		{"lease shorter than two receipt waits", Config{
			Chain: ChainConfig{RpcUrl: "x", ContractAddress: "y", PrivateKey: "z", ReceiptTimeoutSeconds: 120},
			Redis: RedisConfig{Enabled: true, LeaseTTL: 120},
		}, ErrLeaseTooShort},
		{"lease ignored without redis", Config{
			Chain: ChainConfig{RpcUrl: "x", ContractAddress: "y", PrivateKey: "z", ReceiptTimeoutSeconds: 120},
			Redis: RedisConfig{LeaseTTL: 10},
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cfg.Validate(), tt.want)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigLeaseFollowsReceiptTimeout(t *testing.T) {
	path := writeYaml(t, `
redis:
  enabled: true
chain:
  rpc_url: http://127.0.0.1:8545
  contract_address: "0x6B4485B0Aec3BBe9E8eA335F049df5DE41668C5D"
  private_key: abc
  receipt_timeout_seconds: 30
dispatch:
  max_reverts: -1
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Redis.LeaseTTL)
	assert.Equal(t, -1, cfg.Dispatch.MaxReverts, "negative survives defaults")
	assert.NoError(t, cfg.Validate())
}
