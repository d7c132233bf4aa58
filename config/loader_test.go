package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barkprotocol/blinks/types"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "barkd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDecodeDefaults(t *testing.T) {
	cfg, err := Decode(New())
	require.NoError(t, err)

	assert.Equal(t, types.ClusterDevnet, cfg.Chain.Cluster)
	assert.Equal(t, types.ClusterDevnet.DefaultRPCURL(), cfg.Chain.RPCURL)
	assert.Equal(t, 15*time.Second, cfg.Chain.Timeout)
	assert.Equal(t, types.DefaultMerchantRecipient, cfg.Merchant.Recipient)
	assert.Equal(t, []string{"1", "5", "10"}, cfg.Merchant.Presets)
	require.Len(t, cfg.Actions, 3)
	assert.Equal(t, "donate-sol", cfg.Actions[0].Name)
	require.Len(t, cfg.Tokens, 1)
	assert.Equal(t, uint8(6), cfg.Tokens[0].Decimals)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
server:
  addr: ":9090"
  baseURL: https://pay.barkprotocol.net
  trustedProxies: ["10.0.0.0/8", "127.0.0.1"]
chain:
  cluster: mainnet-beta
  timeout: 5s
  computeUnitPrice: 1000
merchant:
  recipient: B1vK78xBEA9txpfToQoY5XZQmZULZvDRvVxoNnPA27LV
  defaultAmount: "0.5"
  presets: ["0.5", "1"]
actions:
  - name: tip
    title: Tip the team
    icon: https://barkprotocol.net/tip.png
    asset: SOL
rules:
  - pathPattern: /tip
    apiPath: /actions/tip
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "https://pay.barkprotocol.net", cfg.Server.BaseURL)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.Server.TrustedProxies)
	assert.Equal(t, types.ClusterMainnet, cfg.Chain.Cluster)
	assert.Equal(t, types.ClusterMainnet.DefaultRPCURL(), cfg.Chain.RPCURL)
	assert.Equal(t, 5*time.Second, cfg.Chain.Timeout)
	assert.Equal(t, uint64(1000), cfg.Chain.ComputeUnitPrice)
	assert.Equal(t, []string{"0.5", "1"}, cfg.Merchant.Presets)

	// a list in the file replaces the default list
	require.Len(t, cfg.Actions, 1)
	assert.Equal(t, "tip", cfg.Actions[0].Name)
	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, "/actions/tip", cfg.Rules[0].APIPath)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "chain:\n  rpcURL: https://file.example\n")
	t.Setenv("BARK_CHAIN_RPCURL", "https://env.example")
	t.Setenv("BARK_MERCHANT_DEFAULTAMOUNT", "2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example", cfg.Chain.RPCURL)
	assert.Equal(t, "2", cfg.Merchant.DefaultAmount)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, types.ErrConfigError, types.ErrorCode(err))
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad recipient", "merchant:\n  recipient: not-a-key\n"},
		{"bad cluster", "chain:\n  cluster: moon\n"},
		{"zero amount", "merchant:\n  defaultAmount: \"0\"\n"},
		{"too many presets", "merchant:\n  presets: [\"1\", \"2\", \"3\", \"4\", \"5\"]\n"},
		{"unknown asset", "actions:\n  - name: x\n    title: X\n    icon: https://x.example/i.png\n    asset: DOGE\n"},
		{"bad proxy", "server:\n  trustedProxies: [\"proxy.internal\"]\n"},
		{"duplicate rule id", "rules:\n  - id: home\n    pathPattern: /a\n    apiPath: /actions/a\n  - id: home\n    pathPattern: /b\n    apiPath: /actions/b\n"},
		{"huge amount", "merchant:\n  defaultAmount: \"1e2000000\"\n"},
		{"duplicate action", "actions:\n  - name: x\n    title: X\n    icon: https://x.example/i.png\n    asset: SOL\n  - name: x\n    title: Y\n    icon: https://x.example/i.png\n    asset: SOL\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.content))
			require.Error(t, err)
			assert.Equal(t, types.ErrConfigError, types.ErrorCode(err))
		})
	}
}
