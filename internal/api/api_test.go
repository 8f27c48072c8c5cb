package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"WalletGuard/internal/guard"
	"WalletGuard/internal/ledger"
	"WalletGuard/internal/metrics"
	"WalletGuard/internal/payment"
	"WalletGuard/internal/store"
)

type testServer struct {
	*httptest.Server
	guard  *guard.Guard
	ledger *ledger.MockLedger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	g := guard.New(store.NewMemoryStore(), zap.NewNop())
	l := &ledger.MockLedger{
		Hash:     "tx-hash",
		Balances: map[string][]ledger.Balance{"GOWNER": {{AssetType: "native", Amount: decimal.NewFromInt(500)}}},
	}
	s := NewServer(g, payment.NewSender(g, l, zap.NewNop()), metrics.New(zap.NewNop()), zap.NewNop())
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, guard: g, ledger: l}
}

func (ts *testServer) do(t *testing.T, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func (ts *testServer) legacy(t *testing.T, body string) (int, map[string]interface{}) {
	return ts.do(t, http.MethodPost, "/api/v1/smart-limit", body)
}

func data(t *testing.T, out map[string]interface{}) map[string]interface{} {
	t.Helper()
	d, ok := out["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %v", out)
	return d
}

func TestLegacy_ValidateAndSpendingInfo(t *testing.T) {
	ts := newTestServer(t)

	status, out := ts.legacy(t, `{"action":"validate_transaction","publicKey":"GOWNER","amount":500,"contactAddress":"GDEST"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, true, out["isValid"])
	assert.Equal(t, []interface{}{}, out["errors"])
	assert.Equal(t, "Transaction validation passed", out["message"])

	status, out = ts.legacy(t, `{"action":"get_spending_info","publicKey":"GOWNER"}`)
	assert.Equal(t, http.StatusOK, status)
	info := out["spendingInfo"].(map[string]interface{})
	assert.Equal(t, "500", info["dailySpent"])
	assert.Equal(t, "500", info["monthlySpent"])
	assert.Equal(t, "1000", info["dailyLimit"])

	status, out = ts.legacy(t, `{"action":"validate_transaction","publicKey":"GOWNER","amount":"600","contactAddress":"GDEST"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, out["isValid"])
	assert.Equal(t, []interface{}{"Amount 600 XLM exceeds daily spending limit. Daily spent: 500/1000 XLM"}, out["errors"])
}

func TestLegacy_Errors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
		msg    string
	}{
		{"missing key", `{"action":"get_spending_info"}`, http.StatusBadRequest, "Public key is required"},
		{"unknown action", `{"action":"explode","publicKey":"GOWNER"}`, http.StatusBadRequest, "Invalid action: explode"},
		{"bad body", `{"action":`, http.StatusBadRequest, "Invalid request body"},
		{"missing limit", `{"action":"set_daily_limit","publicKey":"GOWNER"}`, http.StatusBadRequest, "Daily limit is required"},
		{"negative limit", `{"action":"set_monthly_limit","publicKey":"GOWNER","monthlyLimit":-5}`, http.StatusBadRequest, "Amount must be greater than zero"},
		{"unknown contact", `{"action":"set_contact_trusted","publicKey":"GOWNER","contactName":"Alice"}`, http.StatusNotFound, `Contact "Alice" not found`},
		{"intruder", `{"action":"emergency_freeze","publicKey":"GOWNER","emergencyContact":"GEVIL"}`, http.StatusForbidden, "Unauthorized emergency contact"},
		{"no settings", `{"action":"set_wallet_settings","publicKey":"GOWNER"}`, http.StatusBadRequest, "Settings are required"},
		{"no recipient", `{"action":"validate_transaction","publicKey":"GOWNER","amount":5}`, http.StatusBadRequest, "Recipient and amount are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := ts.legacy(t, tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, false, out["success"])
			assert.Equal(t, tt.msg, out["error"])
		})
	}
}

func TestLegacy_ContactsSettingsAndHistory(t *testing.T) {
	ts := newTestServer(t)

	_, out := ts.legacy(t, `{"action":"add_contact","publicKey":"GOWNER","contactName":"Alice","contactAddress":"GALICE"}`)
	assert.Equal(t, `Contact "Alice" added successfully`, out["message"])

	_, out = ts.legacy(t, `{"action":"set_contact_trusted","publicKey":"GOWNER","contactName":"alice"}`)
	assert.Equal(t, true, out["isTrusted"])

	_, out = ts.legacy(t, `{"action":"get_contact","publicKey":"GOWNER","contactName":"Alice"}`)
	contact := out["contact"].(map[string]interface{})
	assert.Equal(t, "GALICE", contact["address"])
	assert.Equal(t, true, contact["isTrusted"])

	_, out = ts.legacy(t, `{"action":"set_wallet_settings","publicKey":"GOWNER","settings":{"requireMemo":true}}`)
	assert.Equal(t, "Wallet settings updated", out["message"])
	_, out = ts.legacy(t, `{"action":"get_wallet_settings","publicKey":"GOWNER"}`)
	settings := out["settings"].(map[string]interface{})
	assert.Equal(t, true, settings["requireMemo"])
	assert.Equal(t, "1000", settings["maxTxAmount"])
	assert.Equal(t, "GOWNER", settings["emergencyContact"])

	_, out = ts.legacy(t, `{"action":"log_transaction","publicKey":"GOWNER","contactAddress":"GALICE","amount":12,"memo":"rent"}`)
	assert.Equal(t, "Transaction logged to smart contract", out["message"])
	_, out = ts.legacy(t, `{"action":"get_transaction_history","publicKey":"GOWNER"}`)
	txs := out["transactions"].([]interface{})
	require.Len(t, txs, 1)
	assert.Equal(t, "send", txs[0].(map[string]interface{})["type"])

	_, out = ts.legacy(t, `{"action":"get_spending_analytics","publicKey":"GOWNER"}`)
	analytics := out["analytics"].(map[string]interface{})
	assert.Equal(t, float64(1), analytics["totalTransactions"])

	_, out = ts.legacy(t, `{"action":"remove_contact","publicKey":"GOWNER","contactName":"Alice"}`)
	assert.Equal(t, `Contact "Alice" removed`, out["message"])
}

func TestLegacy_FreezeCanSpendReset(t *testing.T) {
	ts := newTestServer(t)

	_, out := ts.legacy(t, `{"action":"can_spend","publicKey":"GOWNER","amount":400}`)
	assert.Equal(t, true, out["canSpend"])

	_, out = ts.legacy(t, `{"action":"emergency_freeze","publicKey":"GOWNER","emergencyContact":"GOWNER"}`)
	assert.Equal(t, true, out["isFrozen"])

	_, out = ts.legacy(t, `{"action":"can_spend","publicKey":"GOWNER","amount":1}`)
	assert.Equal(t, false, out["canSpend"])
	assert.Equal(t, "Transaction exceeds limits or wallet is frozen", out["message"])

	_, out = ts.legacy(t, `{"action":"unfreeze_wallet","publicKey":"GOWNER"}`)
	assert.Equal(t, false, out["isFrozen"])
	_, out = ts.legacy(t, `{"action":"reset_spending_limits","publicKey":"GOWNER"}`)
	assert.Equal(t, "Spending limits reset successfully", out["message"])

	info, err := ts.guard.SpendingInfo(context.Background(), "GOWNER")
	require.NoError(t, err)
	assert.True(t, info.DailySpent.IsZero())
	assert.False(t, info.IsFrozen)
}

func TestTypedRoutes_LimitsAndValidation(t *testing.T) {
	ts := newTestServer(t)
	base := "/api/v1/wallets/GOWNER"

	status, out := ts.do(t, http.MethodPut, base+"/limits/daily", `{"limit":"300"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "Daily spending limit set to 300 XLM", out["message"])
	assert.Equal(t, "300", data(t, out)["dailyLimit"])

	status, out = ts.do(t, http.MethodPost, base+"/validate", `{"amount":250,"recipient":"GDEST"}`)
	assert.Equal(t, http.StatusOK, status)
	d := data(t, out)
	assert.Equal(t, true, d["isValid"])
	reservation := d["reservation"].(map[string]interface{})
	assert.Equal(t, "250", reservation["amount"])

	status, out = ts.do(t, http.MethodPost, base+"/validate", `{"amount":100,"recipient":"GDEST"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Transaction validation failed", out["message"])
	assert.Equal(t, false, data(t, out)["isValid"])
	assert.NotContains(t, data(t, out), "reservation")

	status, out = ts.do(t, http.MethodPost, base+"/validate", `{"amount":50,"recipient":"GDEST"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, data(t, out)["isValid"])

	relBody, err := json.Marshal(map[string]interface{}{"id": reservation["id"]})
	require.NoError(t, err)
	status, out = ts.do(t, http.MethodPost, base+"/release", string(relBody))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Allowance released", out["message"])
	assert.Equal(t, "50", data(t, out)["dailySpent"])

	// A retried release must not hand back the other approval's allowance.
	status, out = ts.do(t, http.MethodPost, base+"/release", string(relBody))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Reservation already released or settled", out["message"])
	assert.Equal(t, "50", data(t, out)["dailySpent"])

	status, out = ts.do(t, http.MethodPost, base+"/release", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Reservation ID is required", out["message"])

	status, out = ts.do(t, http.MethodPost, base+"/validate", `{"amount":0,"recipient":"GDEST"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "error", out["status"])
	assert.Equal(t, "Amount must be greater than zero", out["message"])

	status, out = ts.do(t, http.MethodPost, base+"/freeze", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, data(t, out)["isFrozen"])

	status, out = ts.do(t, http.MethodGet, base+"/spending", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, data(t, out)["isFrozen"])
}

func TestTypedRoutes_Contacts(t *testing.T) {
	ts := newTestServer(t)
	base := "/api/v1/wallets/GOWNER/contacts"

	status, _ := ts.do(t, http.MethodPost, base, `{"name":"Bob","address":"GBOB"}`)
	assert.Equal(t, http.StatusCreated, status)

	status, out := ts.do(t, http.MethodPut, base+"/bob/trusted", `{}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, data(t, out)["isTrusted"])

	status, out = ts.do(t, http.MethodGet, base, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, out["data"], 1)

	status, _ = ts.do(t, http.MethodDelete, base+"/Bob", "")
	assert.Equal(t, http.StatusOK, status)

	status, out = ts.do(t, http.MethodGet, base+"/Bob", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, `Contact "Bob" not found`, out["message"])
}

func TestTypedRoutes_SendAndAccount(t *testing.T) {
	ts := newTestServer(t)
	base := "/api/v1/wallets/GOWNER"

	status, out := ts.do(t, http.MethodPost, base+"/send", `{"to":"GDEST","amount":"100","signedTx":"AAAA"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "tx-hash", data(t, out)["hash"])

	status, out = ts.do(t, http.MethodGet, base+"/transactions", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, out["data"], 1)

	ts.ledger.SubmitErr = &ledger.SubmitError{Status: 400, Title: "Transaction Failed", ResultCode: "tx_insufficient_balance"}
	status, out = ts.do(t, http.MethodPost, base+"/send", `{"to":"GDEST","amount":"100","signedTx":"BBBB"}`)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "submit transaction: Transaction Failed (tx_insufficient_balance)", out["message"])

	info, err := ts.guard.SpendingInfo(context.Background(), "GOWNER")
	require.NoError(t, err)
	assert.Equal(t, "100", info.DailySpent.String())

	status, out = ts.do(t, http.MethodPost, base+"/send", `{"to":"GDEST","amount":"100"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Signed transaction is required", out["message"])

	status, out = ts.do(t, http.MethodGet, base+"/account", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, out["data"], 1)

	status, _ = ts.do(t, http.MethodGet, "/api/v1/wallets/GNOBODY/account", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ts.do(t, http.MethodGet, "/api/v1/wallets/GOWNER/spending", "")
	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `route="/api/v1/wallets/{walletKey}/spending"`))
}
