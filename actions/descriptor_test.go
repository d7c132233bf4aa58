package actions

import (
	"crypto/tls"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barkprotocol/blinks/types"
)

var (
	recipient = solana.MustPublicKeyFromBase58("8AuVcQCqR3ipiAiv1X4Nuaqb4X6V9Bi1sCCk9V5LzeYP")
	sol       = types.AssetKind{Type: types.AssetNative, Symbol: types.NativeSymbol}
	donate    = types.ActionConfig{
		Name:        "donate-sol",
		Title:       "Donate SOL to BARK",
		Icon:        "https://barkprotocol.net/icon.png",
		Description: "Support the BARK community",
		Label:       "Donate",
		Asset:       types.NativeSymbol,
	}
)

func amounts(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}

func TestDescribePresetsAndCustomLink(t *testing.T) {
	d := Describe("https://blinks.example", donate, sol, recipient, amounts("1", "5", "10"), nil)

	assert.Equal(t, "action", d.Type)
	assert.Equal(t, "Donate SOL to BARK", d.Title)
	require.Len(t, d.Links.Actions, 4)

	base := "https://blinks.example/actions/donate-sol?to=" + recipient.String()
	assert.Equal(t, "Send 1 SOL", d.Links.Actions[0].Label)
	assert.Equal(t, base+"&amount=1", d.Links.Actions[0].Href)
	assert.Equal(t, base+"&amount=10", d.Links.Actions[2].Href)

	custom := d.Links.Actions[3]
	assert.Equal(t, base+"&amount={amount}", custom.Href)
	require.Len(t, custom.Parameters, 1)
	assert.Equal(t, "amount", custom.Parameters[0].Name)
	assert.True(t, custom.Parameters[0].Required)

	for _, link := range d.Links.Actions {
		assert.Equal(t, "transaction", link.Type)
		assert.True(t, strings.HasPrefix(link.Href, "https://"), "href must be absolute: %s", link.Href)
	}
}

func TestDescribeRequestedAmountAlreadyPreset(t *testing.T) {
	requested := decimal.RequireFromString("5")
	d := Describe("https://blinks.example", donate, sol, recipient, amounts("1", "5", "10"), &requested)

	require.Len(t, d.Links.Actions, 4)
	var found bool
	for _, link := range d.Links.Actions {
		if strings.Contains(link.Label, "5 SOL") {
			found = true
			assert.True(t, strings.HasSuffix(link.Href, "&amount=5"))
		}
	}
	assert.True(t, found)
}

func TestDescribeRequestedAmountPrepended(t *testing.T) {
	requested := decimal.RequireFromString("2.5")
	d := Describe("https://blinks.example/", donate, sol, recipient, amounts("1", "5", "10"), &requested)

	require.Len(t, d.Links.Actions, 5)
	assert.Equal(t, "Send 2.5 SOL", d.Links.Actions[0].Label)
	assert.True(t, strings.HasSuffix(d.Links.Actions[0].Href, "&amount=2.5"))
	assert.NotContains(t, d.Links.Actions[0].Href, "//actions")
}

func TestDescribeCapsPresets(t *testing.T) {
	requested := decimal.RequireFromString("7")
	d := Describe("https://blinks.example", donate, sol, recipient, amounts("1", "2", "3", "4"), &requested)

	// four presets plus the parametrized link
	require.Len(t, d.Links.Actions, MaxPresets+1)
	assert.Equal(t, "Send 7 SOL", d.Links.Actions[0].Label)
}

func TestDescribeTokenLabels(t *testing.T) {
	usdc := types.AssetKind{Type: types.AssetToken, Symbol: "USDC", Decimals: 6}
	d := Describe("https://blinks.example", donate, usdc, recipient, amounts("1"), nil)

	require.Len(t, d.Links.Actions, 2)
	assert.Equal(t, "Send 1 USDC", d.Links.Actions[0].Label)
	assert.Equal(t, "Enter the amount of USDC to send", d.Links.Actions[1].Parameters[0].Label)
}

func TestDescribeMemoAction(t *testing.T) {
	memo := types.AssetKind{Type: types.AssetMemo, Symbol: types.MemoSymbol}
	d := Describe("https://blinks.example", types.ActionConfig{Name: "memo", Title: "Memo"}, memo, recipient, amounts("1"), nil)

	require.Len(t, d.Links.Actions, 1)
	assert.True(t, strings.HasSuffix(d.Links.Actions[0].Href, "&memo={memo}"))
	assert.Equal(t, "memo", d.Links.Actions[0].Parameters[0].Name)
	assert.Equal(t, "Send memo", d.Links.Actions[0].Label)
}

func TestOrigin(t *testing.T) {
	r := httptest.NewRequest("GET", "/actions/donate-sol", nil)
	r.Host = "blinks.local:8080"
	assert.Equal(t, "http://blinks.local:8080", Origin(r, "", false))

	r.TLS = &tls.ConnectionState{}
	assert.Equal(t, "https://blinks.local:8080", Origin(r, "", false))

	r.TLS = nil
	r.Header.Set("X-Forwarded-Proto", "https, http")
	r.Header.Set("X-Forwarded-Host", "pay.barkprotocol.net")
	assert.Equal(t, "http://blinks.local:8080", Origin(r, "", false), "untrusted peers cannot pick the origin")
	assert.Equal(t, "https://pay.barkprotocol.net", Origin(r, "", true))

	assert.Equal(t, "https://override.example", Origin(r, "https://override.example/", true))
}

func TestHeaders(t *testing.T) {
	h := Headers(types.ClusterDevnet)
	assert.Equal(t, "*", h["Access-Control-Allow-Origin"])
	assert.Equal(t, types.ActionVersion, h["X-Action-Version"])
	assert.Equal(t, types.ClusterDevnet.BlockchainID(), h["X-Blockchain-Ids"])
	assert.Contains(t, h["Access-Control-Allow-Methods"], "OPTIONS")
}
