package facilitator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cedrospay/x402-gateway/internal/config"
)

func TestRemoteCodeNut_Verify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req codeNutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.PaymentRequirements.PayTo != "wallet1" {
			t.Errorf("payTo = %s, want wallet1", req.PaymentRequirements.PayTo)
		}
		json.NewEncoder(w).Encode(codeNutVerifyResponse{IsValid: true, Payer: "payer1"})
	}))
	defer srv.Close()

	c := NewRemoteCodeNut(config.RemoteFacilitatorConfig{BaseURL: srv.URL})
	result, err := c.Verify(context.Background(), Payload{Transaction: "tx"}, Requirements{PayTo: "wallet1"})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !result.Valid || result.Payer != "payer1" {
		t.Errorf("result = %+v, want valid with payer1", result)
	}
}

func TestRemoteCodeNut_Settle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(codeNutSettleResponse{Success: true, Transaction: "sig123"})
	}))
	defer srv.Close()

	c := NewRemoteCodeNut(config.RemoteFacilitatorConfig{BaseURL: srv.URL})
	result, err := c.Settle(context.Background(), Payload{Transaction: "tx"}, Requirements{})
	if err != nil {
		t.Fatalf("Settle() error = %v", err)
	}
	if !result.Settled || result.TxHash != "sig123" {
		t.Errorf("result = %+v, want settled with sig123", result)
	}
}

func TestRemoteCodeNut_SettleErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	c := NewRemoteCodeNut(config.RemoteFacilitatorConfig{BaseURL: srv.URL})
	_, err := c.Settle(context.Background(), Payload{Transaction: "tx"}, Requirements{})
	if err == nil {
		t.Error("Settle() error = nil, want error for 500 status")
	}
}

func TestRemoteCodeNut_Supported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/supported" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(codeNutSupportedResponse{
			Kinds: []codeNutSupportedKind{{Network: "solana", Scheme: "exact", Extra: map[string]any{"feePayer": "fp1"}}},
		})
	}))
	defer srv.Close()

	c := NewRemoteCodeNut(config.RemoteFacilitatorConfig{BaseURL: srv.URL})
	supported, err := c.Supported(context.Background())
	if err != nil {
		t.Fatalf("Supported() error = %v", err)
	}
	if supported["solana-exact"]["feePayer"] != "fp1" {
		t.Errorf("supported = %+v, want feePayer fp1 under solana-exact", supported)
	}
}

func TestRemoteCodeNut_Available(t *testing.T) {
	c := NewRemoteCodeNut(config.RemoteFacilitatorConfig{})
	if c.Available() {
		t.Error("Available() = true for empty base url, want false")
	}
	c2 := NewRemoteCodeNut(config.RemoteFacilitatorConfig{BaseURL: "https://x"})
	if !c2.Available() {
		t.Error("Available() = false for configured base url, want true")
	}
}
