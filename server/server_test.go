package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barkprotocol/blinks"
	"github.com/barkprotocol/blinks/clients"
	"github.com/barkprotocol/blinks/clients/chaintest"
	"github.com/barkprotocol/blinks/transaction"
	"github.com/barkprotocol/blinks/transfer"
	"github.com/barkprotocol/blinks/types"
)

const (
	payerKey     = "21YGJGuGHExCFcKHsV2vhe2yciUbUkM7s19NhP3Y5NGr"
	referenceKey = "4Ugp2B23U1ZVsXmnTTZFBUkwfLshaE7F2jCHNrPn1ija"
	donorKey     = "B1vK78xBEA9txpfToQoY5XZQmZULZvDRvVxoNnPA27LV"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*Server, *chaintest.Chain) {
	t.Helper()
	chain := chaintest.New()
	b, err := blinks.New(types.DefaultConfig(), blinks.WithChainClient(chain))
	require.NoError(t, err)
	return New(b, nil, nil, nil), chain
}

func do(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Host = "blinks.test"

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestDescribeActionWithRequestedAmount(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(s, http.MethodGet, "/actions/donate-sol?to="+donorKey+"&amount=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.ActionVersion, w.Header().Get("X-Action-Version"))
	assert.Equal(t, types.ClusterDevnet.BlockchainID(), w.Header().Get("X-Blockchain-Ids"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	var d types.ActionDescriptor
	decode(t, w, &d)

	var found bool
	for _, link := range d.Links.Actions {
		if strings.Contains(link.Label, "5 SOL") && strings.HasSuffix(link.Href, "&amount=5") {
			found = true
			assert.True(t, strings.HasPrefix(link.Href, "http://blinks.test/actions/donate-sol?to="+donorKey))
		}
	}
	assert.True(t, found, "expected a 5 SOL link in %+v", d.Links.Actions)
}

func TestDescribeActionIgnoresForwardedHeadersFromUntrustedPeers(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/actions/donate-sol", nil)
	req.Host = "blinks.test"
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("X-Forwarded-Host", "attacker.example")

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var d types.ActionDescriptor
	decode(t, w, &d)
	require.NotEmpty(t, d.Links.Actions)
	for _, link := range d.Links.Actions {
		assert.True(t, strings.HasPrefix(link.Href, "http://blinks.test/"), link.Href)
	}
}

func TestDescribeActionHonoursTrustedProxy(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.Server.TrustedProxies = []string{"192.0.2.0/24"}
	b, err := blinks.New(cfg, blinks.WithChainClient(chaintest.New()))
	require.NoError(t, err)
	s := New(b, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/actions/donate-sol", nil)
	req.RemoteAddr = "192.0.2.10:4321"
	req.Host = "10.0.0.5:8080"
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("X-Forwarded-Host", "pay.barkprotocol.net")

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var d types.ActionDescriptor
	decode(t, w, &d)
	require.NotEmpty(t, d.Links.Actions)
	assert.True(t, strings.HasPrefix(d.Links.Actions[0].Href, "https://pay.barkprotocol.net/actions/donate-sol"))

	// same headers from outside the proxy range
	req.RemoteAddr = "198.51.100.7:4321"
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	decode(t, w, &d)
	assert.True(t, strings.HasPrefix(d.Links.Actions[0].Href, "http://10.0.0.5:8080/"))
}

func TestDescribeActionErrors(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(s, http.MethodGet, "/actions/donate-sol?to=garbage", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `invalid "to"`)

	w = do(s, http.MethodGet, "/actions/donate-sol?amount=-3", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `invalid "amount"`)

	w = do(s, http.MethodGet, "/actions/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHugeAmountsRejectedEverywhere(t *testing.T) {
	s, _ := newTestServer(t)

	for _, amount := range []string{"1e2000000", "1e-2000000"} {
		t.Run(amount, func(t *testing.T) {
			w := do(s, http.MethodGet, "/actions/donate-sol?amount="+amount, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Less(t, w.Body.Len(), 1024)

			w = do(s, http.MethodPost, "/actions/donate-sol?amount="+amount, `{"account":"`+payerKey+`"}`)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `invalid "amount"`)

			w = do(s, http.MethodGet, "/solana-pay/checkout?amount="+amount, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)

			body := `{"reference":"` + referenceKey + `","signature":"` + chaintest.Signature(1).String() + `","amount":"` + amount + `"}`
			w = do(s, http.MethodPost, "/solana-pay/webhook", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestOptionsPreflight(t *testing.T) {
	s, _ := newTestServer(t)

	for _, target := range []string{"/actions/donate-sol", "/actions.json"} {
		w := do(s, http.MethodOptions, target, "")
		assert.Equal(t, http.StatusNoContent, w.Code, target)
		assert.Empty(t, w.Body.String())
		assert.Equal(t, types.ActionVersion, w.Header().Get("X-Action-Version"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
	}
}

func TestBuildTransaction(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(s, http.MethodPost, "/actions/donate-sol?amount=1.0005", `{"account":"`+payerKey+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp types.ActionPostResponse
	decode(t, w, &resp)
	assert.Contains(t, resp.Message, "1.0005 SOL")

	tx, err := transaction.Decode(resp.Transaction)
	require.NoError(t, err)
	assert.Equal(t, payerKey, tx.Message.AccountKeys[0].String())
}

func TestBuildTransactionBelowRentExemption(t *testing.T) {
	s, chain := newTestServer(t)
	chain.RentExemptLamports = 200_000_000

	w := do(s, http.MethodPost, "/actions/donate-sol?amount=0.1", `{"account":"`+payerKey+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "rent exempt")
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

func TestBuildTransactionRejectsBadInput(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name   string
		target string
		body   string
		want   string
	}{
		{"missing account", "/actions/donate-sol?amount=1", `{}`, "invalid account"},
		{"bad account", "/actions/donate-sol?amount=1", `{"account":"nope"}`, "invalid account"},
		{"bad amount", "/actions/donate-sol?amount=abc", `{"account":"` + payerKey + `"}`, `invalid "amount"`},
		{"memo required", "/actions/memo", `{"account":"` + payerKey + `"}`, `invalid "memo"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(s, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestBuildTransactionChainUnavailable(t *testing.T) {
	s, chain := newTestServer(t)
	chain.Fail(clients.CallGetLatestBlockhash, assert.AnError)

	w := do(s, http.MethodPost, "/actions/donate-sol?amount=1", `{"account":"`+payerKey+`"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}

func TestRulesLifecycle(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(s, http.MethodPost, "/actions.json", `{"pathPattern":"/donate","apiPath":"/actions/donate-sol"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var rule types.Rule
	decode(t, w, &rule)
	require.NotEmpty(t, rule.ID)

	w = do(s, http.MethodPut, "/actions.json", `{"id":"`+rule.ID+`","pathPattern":"/donate/**","apiPath":"/actions/donate-sol"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(s, http.MethodGet, "/actions.json", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list types.RulesResponse
	decode(t, w, &list)
	require.Len(t, list.Rules, 1)
	assert.Equal(t, "/donate/**", list.Rules[0].PathPattern)

	w = do(s, http.MethodDelete, "/actions.json?id="+rule.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(s, http.MethodDelete, "/actions.json?id="+rule.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(s, http.MethodDelete, "/actions.json", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateUnknownRule(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(s, http.MethodPut, "/actions.json", `{"id":"missing","pathPattern":"/x","apiPath":"/actions/x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Rule not found"}`, w.Body.String())
}

func TestCheckout(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(s, http.MethodGet, "/solana-pay/checkout?amount=3&label=BARK%20Store&message=Thanks", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.CheckoutResponse
	decode(t, w, &resp)
	assert.True(t, strings.HasPrefix(resp.URL, "solana:"+types.DefaultMerchantRecipient+"?"))
	assert.Equal(t, "3", resp.Amount)
	assert.Equal(t, "BARK Store", resp.Label)
	_, err := solana.PublicKeyFromBase58(resp.Reference)
	assert.NoError(t, err)

	w = do(s, http.MethodGet, "/solana-pay/checkout?amount=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func paidTransaction(t *testing.T, chain *chaintest.Chain, sig solana.Signature, withReference bool) {
	t.Helper()
	payer := solana.MustPublicKeyFromBase58(payerKey)
	instructions := []solana.Instruction{
		transfer.NativeTransfer(500_000_000, payer, solana.MustPublicKeyFromBase58(types.DefaultMerchantRecipient)),
	}
	if withReference {
		instructions = append(instructions, transaction.ReferenceMarker(payer, solana.MustPublicKeyFromBase58(referenceKey)))
	}
	tx, err := solana.NewTransaction(instructions, chain.Blockhash, solana.TransactionPayer(payer))
	require.NoError(t, err)
	chain.AddTransaction(sig, 99, tx, nil)
}

func TestWebhookConfirmed(t *testing.T) {
	s, chain := newTestServer(t)
	sig := chaintest.Signature(1)
	paidTransaction(t, chain, sig, true)

	w := do(s, http.MethodPost, "/solana-pay/webhook", `{"reference":"`+referenceKey+`","signature":"`+sig.String()+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Status string                   `json:"status"`
		Result types.VerificationResult `json:"result"`
	}
	decode(t, w, &body)
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, types.StatusConfirmed, body.Result.Status)
}

func TestWebhookReferenceMismatch(t *testing.T) {
	s, chain := newTestServer(t)
	sig := chaintest.Signature(2)
	paidTransaction(t, chain, sig, false)

	w := do(s, http.MethodPost, "/solana-pay/webhook", `{"reference":"`+referenceKey+`","signature":"`+sig.String()+`"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]string
	decode(t, w, &body)
	assert.Equal(t, string(types.StatusReferenceMismatch), body["status"])
	assert.NotEmpty(t, body["error"])
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(s, http.MethodPost, "/solana-pay/webhook", `{"reference":"`+referenceKey+`","signature":"short"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, http.MethodPost, "/solana-pay/webhook", `{"reference":"`+referenceKey+`"`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookChainUnavailable(t *testing.T) {
	s, chain := newTestServer(t)
	chain.Fail(clients.CallGetSignatureStatuses, assert.AnError)

	w := do(s, http.MethodPost, "/solana-pay/webhook", `{"reference":"`+referenceKey+`","signature":"`+chaintest.Signature(3).String()+`"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatusByReference(t *testing.T) {
	s, chain := newTestServer(t)

	w := do(s, http.MethodGet, "/solana-pay/status?reference="+referenceKey, "")
	require.Equal(t, http.StatusOK, w.Code)
	var result types.VerificationResult
	decode(t, w, &result)
	assert.Equal(t, types.StatusNotFound, result.Status)

	paidTransaction(t, chain, chaintest.Signature(4), true)

	w = do(s, http.MethodGet, "/solana-pay/status?reference="+referenceKey+"&amount=0.5", "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &result)
	assert.Equal(t, types.StatusConfirmed, result.Status)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cluster":"devnet"`)
	assert.Contains(t, w.Body.String(), `"protocolVersion":"`+types.ActionVersion+`"`)
}
