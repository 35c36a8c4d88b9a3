package ledger

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shipcycle/internal/models"

	"github.com/shopspring/decimal"
)

func TestSignIsDeterministicAndOrderIndependent(t *testing.T) {
	a := Sign(map[string]interface{}{"b": "2", "a": "1", "c": 3}, "tok")
	b := Sign(map[string]interface{}{"c": 3, "a": "1", "b": "2"}, "tok")
	if a != b {
		t.Fatalf("sign should not depend on map order: %s != %s", a, b)
	}
	if a == Sign(map[string]interface{}{"a": "1", "b": "2", "c": 3}, "other") {
		t.Fatalf("sign must depend on token")
	}
}

func TestSignSkipsEmptyAndSignatureFields(t *testing.T) {
	base := Sign(map[string]interface{}{"a": "1"}, "tok")
	with := Sign(map[string]interface{}{"a": "1", "empty": "  ", "signature": "x"}, "tok")
	if base != with {
		t.Fatalf("empty and signature fields must not affect sign")
	}
}

func TestNewProviderValidatesConfig(t *testing.T) {
	if _, err := NewProvider(Config{Endpoint: "https://ledger.example.com"}); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("missing token: want ErrConfigInvalid got %v", err)
	}
	if _, err := NewProvider(Config{Token: "tok"}); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("missing endpoint: want ErrConfigInvalid got %v", err)
	}
}

func newTestRefund() *models.RefundRecord {
	return &models.RefundRecord{
		RefundNo:       "SCF20260830120000123456",
		ReturnID:       11,
		OrderID:        21,
		Currency:       "CNY",
		Amount:         models.NewMoneyFromDecimal(decimal.NewFromInt(319)),
		IdempotencyKey: "7b1f7d8e-1111-2222-3333-444455556666",
	}
}

func TestExecuteSubmitsSignedPayout(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/payout/create" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request failed: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status_code": 200,
			"data":        map[string]interface{}{"payout_id": "po_123", "status": "accepted"},
		})
	}))
	defer server.Close()

	provider, err := NewProvider(Config{Endpoint: server.URL, Token: "tok"})
	if err != nil {
		t.Fatalf("new provider failed: %v", err)
	}

	ref, err := provider.Execute(newTestRefund())
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if ref != "po_123" {
		t.Fatalf("provider ref want po_123 got %s", ref)
	}

	if received["idempotency_key"] != "7b1f7d8e-1111-2222-3333-444455556666" {
		t.Fatalf("idempotency_key missing from payload: %v", received)
	}
	sig, _ := received["signature"].(string)
	if sig == "" {
		t.Fatalf("payload should be signed")
	}
	delete(received, "signature")
	if Sign(received, "tok") != sig {
		t.Fatalf("signature mismatch")
	}
}

func TestExecuteRejectedPayout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status_code": 400,
			"message":     "insufficient balance",
		})
	}))
	defer server.Close()

	provider, err := NewProvider(Config{Endpoint: server.URL, Token: "tok"})
	if err != nil {
		t.Fatalf("new provider failed: %v", err)
	}
	if _, err := provider.Execute(newTestRefund()); !errors.Is(err, ErrPayoutRejected) {
		t.Fatalf("want ErrPayoutRejected got %v", err)
	}
}

func TestExecuteGatewayDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	provider, err := NewProvider(Config{Endpoint: server.URL, Token: "tok"})
	if err != nil {
		t.Fatalf("new provider failed: %v", err)
	}
	if _, err := provider.Execute(newTestRefund()); !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("want ErrRequestFailed got %v", err)
	}
}
