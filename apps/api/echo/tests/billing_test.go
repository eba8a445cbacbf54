package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	echoapi "github.com/gavasques/aluno-adm-portal-crm-sub009/apps/api/echo"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/billing"
)

const webhookPath = "/v1/billing/stripe/webhook"

func checkoutEvent(t *testing.T, eventID, userID string, credits int) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":   eventID,
		"type": billing.EventCheckoutCompleted,
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":             "cs_123",
				"payment_intent": "pi_123",
				"metadata": map[string]string{
					"user_id":    userID,
					"credits":    fmt.Sprintf("%d", credits),
					"package_id": "pkg_starter",
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("marshalling payload: %v", err)
	}
	return payload
}

func deliver(app *echoapi.Server, payload []byte, sig string) *httptest.ResponseRecorder {
	req, rec := newRequest(http.MethodPost, webhookPath, payload)
	if sig != "" {
		req.Header.Set("Stripe-Signature", sig)
	}
	app.ServeHTTP(rec, req)
	return rec
}

func signPayload(payload []byte) string {
	return billing.SignatureHeader(time.Now(), payload, webhookSecret)
}

func Test_billingApi_stripeWebhook(t *testing.T) {
	received := marchallObj(t, map[string]bool{"received": true})

	t.Run("checkout applies credits", func(t *testing.T) {
		app := setup(t)
		usr := createUser(t, "User", "awe", "awe@test.test", "", nil, true)

		payload := checkoutEvent(t, "evt_1", usr.ID, 100)
		rec := deliver(app, payload, signPayload(payload))
		tt := httpTest{wantCode: http.StatusOK, wantData: received}
		checkCodeAndData(t, tt, rec)

		balance, err := billingRepo.GetBalance(testCtx(), usr.ID)
		if err != nil {
			t.Fatalf("GetBalance(): %v", err)
		}
		if balance.Credits != 100 {
			t.Errorf("balance = %d, want 100", balance.Credits)
		}
	})

	t.Run("replay is acknowledged without double credit", func(t *testing.T) {
		app := setup(t)
		usr := createUser(t, "User", "awe", "awe@test.test", "", nil, true)

		payload := checkoutEvent(t, "evt_1", usr.ID, 100)
		for i := 0; i < 2; i++ {
			rec := deliver(app, payload, signPayload(payload))
			checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: received}, rec)
		}

		balance, _ := billingRepo.GetBalance(testCtx(), usr.ID)
		if balance.Credits != 100 {
			t.Errorf("balance = %d, want 100 after replay", balance.Credits)
		}
		txs, _ := billingRepo.QueryTransactions(testCtx(), usr.ID)
		if len(txs) != 1 {
			t.Errorf("transactions = %d, want 1", len(txs))
		}
	})

	t.Run("bad signature", func(t *testing.T) {
		app := setup(t)
		payload := checkoutEvent(t, "evt_1", "user1", 100)

		tests := []struct {
			name string
			sig  string
		}{
			{name: "missing header"},
			{name: "tampered", sig: signPayload([]byte("other"))},
			{name: "stale", sig: billing.SignatureHeader(time.Now().Add(-time.Hour), payload, webhookSecret)},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := deliver(app, payload, tt.sig)
				checkCodeAndData(t, httpTest{
					wantCode: http.StatusBadRequest,
					wantData: marchallObj(t, httpErr{Error: "invalid signature"}),
				}, rec)
			})
		}
	})

	t.Run("malformed payload", func(t *testing.T) {
		app := setup(t)
		payload := []byte(`{"type":"checkout.session.completed"}`) // no id
		rec := deliver(app, payload, signPayload(payload))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "malformed payload"}),
		}, rec)
	})
}

func Test_billingApi_credits(t *testing.T) {
	app := setup(t)
	usr := createUser(t, "User", "awe", "awe@test.test", "", nil, true)
	other := createUser(t, "Other", "other", "other@test.test", "", nil, true)
	token := getToken(t, usr)

	payload := checkoutEvent(t, "evt_1", usr.ID, 100)
	rec := deliver(app, payload, signPayload(payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook code = %v; body %v", rec.Code, rec.Body.String())
	}

	t.Run("balance auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/billing/credits/balance")
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})

	t.Run("balance", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/billing/credits/balance", token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %v", rec.Code, rec.Body.String())
		}
		var balance billing.CreditBalance
		if err := json.Unmarshal(rec.Body.Bytes(), &balance); err != nil {
			t.Fatalf("decoding CreditBalance: %v", err)
		}
		if balance.UserID != usr.ID || balance.Credits != 100 {
			t.Errorf("balance = %+v, want 100 credits for %v", balance, usr.ID)
		}
	})

	t.Run("balance is per user", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/billing/credits/balance", getToken(t, other))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %v", rec.Code, rec.Body.String())
		}
		var balance billing.CreditBalance
		if err := json.Unmarshal(rec.Body.Bytes(), &balance); err != nil {
			t.Fatalf("decoding CreditBalance: %v", err)
		}
		if balance.Credits != 0 {
			t.Errorf("balance = %+v, want 0 credits", balance)
		}
	})

	t.Run("transactions", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/billing/credits/transactions", token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %v", rec.Code, rec.Body.String())
		}
		var txs []billing.CreditTransaction
		if err := json.Unmarshal(rec.Body.Bytes(), &txs); err != nil {
			t.Fatalf("decoding transactions: %v", err)
		}
		if len(txs) != 1 || txs[0].Credits != 100 || txs[0].PackageID != "pkg_starter" {
			t.Errorf("transactions = %+v", txs)
		}
	})

	t.Run("transactions empty for other user", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/billing/credits/transactions", getToken(t, other))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, []interface{}{}...)}, rec)
	})
}
