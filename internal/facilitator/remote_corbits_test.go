package facilitator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/cedrospay/x402-gateway/internal/config"
)

func validSolanaTxBase64(t *testing.T) string {
	t.Helper()
	payer := solanago.NewWallet()
	tx, err := solanago.NewTransaction(
		[]solanago.Instruction{},
		solanago.Hash{},
		solanago.TransactionPayer(payer.PublicKey()),
	)
	if err != nil {
		t.Fatalf("build transaction: %v", err)
	}
	b, err := tx.ToBase64()
	if err != nil {
		t.Fatalf("encode transaction: %v", err)
	}
	return b
}

func TestRemoteCorbits_VerifyOptimistic(t *testing.T) {
	c := NewRemoteCorbits(config.RemoteFacilitatorConfig{BaseURL: "https://corbits.example"})
	result, err := c.Verify(context.Background(), Payload{Transaction: validSolanaTxBase64(t)}, Requirements{})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !result.Valid || result.Payer == "" {
		t.Errorf("result = %+v, want structurally valid with a payer", result)
	}
}

func TestRemoteCorbits_VerifyRejectsMalformedTransaction(t *testing.T) {
	c := NewRemoteCorbits(config.RemoteFacilitatorConfig{BaseURL: "https://corbits.example"})
	result, err := c.Verify(context.Background(), Payload{Transaction: "not-base64!!"}, Requirements{})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if result.Valid {
		t.Error("Verify() valid = true for malformed transaction, want false")
	}
}

func TestRemoteCorbits_Settle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/settle" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req corbitsSettleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		decoded, err := decodePaymentHeader(req.PaymentHeader)
		if err != nil {
			t.Fatalf("decode payment header: %v", err)
		}
		if decoded.Payload.Transaction != "tx-data" {
			t.Errorf("decoded transaction = %s, want tx-data", decoded.Payload.Transaction)
		}
		json.NewEncoder(w).Encode(corbitsSettleResponse{Success: true, Transaction: "sig456"})
	}))
	defer srv.Close()

	c := NewRemoteCorbits(config.RemoteFacilitatorConfig{BaseURL: srv.URL})
	result, err := c.Settle(context.Background(), Payload{Transaction: "tx-data"}, Requirements{})
	if err != nil {
		t.Fatalf("Settle() error = %v", err)
	}
	if !result.Settled || result.TxHash != "sig456" {
		t.Errorf("result = %+v, want settled with sig456", result)
	}
}

func TestRemoteCorbits_SettleUnavailable(t *testing.T) {
	c := NewRemoteCorbits(config.RemoteFacilitatorConfig{})
	_, err := c.Settle(context.Background(), Payload{Transaction: "tx"}, Requirements{})
	if err == nil {
		t.Error("Settle() error = nil for unconfigured base url, want error")
	}
}
