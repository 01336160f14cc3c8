package facilitator

import (
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

func buildTransferCheckedTx(t *testing.T, dest, mint solanago.PublicKey, owner solanago.PublicKey, amount uint64, decimals uint8) *solanago.Transaction {
	t.Helper()
	instr := token.NewTransferCheckedInstruction(amount, decimals, owner, mint, dest, owner, nil).Build()
	feePayer := solanago.NewWallet().PublicKey()
	tx, err := solanago.NewTransaction([]solanago.Instruction{instr}, solanago.Hash{}, solanago.TransactionPayer(feePayer))
	if err != nil {
		t.Fatalf("build transaction: %v", err)
	}
	return tx
}

func TestValidateTransfer_MatchesDestination(t *testing.T) {
	dest := solanago.NewWallet().PublicKey()
	mint := solanago.NewWallet().PublicKey()
	owner := solanago.NewWallet().PublicKey()
	tx := buildTransferCheckedTx(t, dest, mint, owner, 150_000, 6)

	req := Requirements{PayTo: dest.String(), Extra: map[string]any{"tokenDecimals": float64(6)}}
	amount, authority, err := validateTransfer(tx, req)
	if err != nil {
		t.Fatalf("validateTransfer() error = %v", err)
	}
	if amount != 0.15 {
		t.Errorf("amount = %v, want 0.15", amount)
	}
	if !authority.Equals(owner) {
		t.Errorf("authority = %s, want %s", authority, owner)
	}
}

func TestValidateTransfer_NoMatchingDestination(t *testing.T) {
	dest := solanago.NewWallet().PublicKey()
	mint := solanago.NewWallet().PublicKey()
	owner := solanago.NewWallet().PublicKey()
	tx := buildTransferCheckedTx(t, dest, mint, owner, 150_000, 6)

	other := solanago.NewWallet().PublicKey()
	req := Requirements{PayTo: other.String()}
	_, _, err := validateTransfer(tx, req)
	if err == nil {
		t.Error("validateTransfer() error = nil, want error for mismatched destination")
	}
}

func TestRequiredAmount(t *testing.T) {
	req := Requirements{MaxAmountRequired: "150000", Extra: map[string]any{"tokenDecimals": float64(6)}}
	amount, err := requiredAmount(req)
	if err != nil {
		t.Fatalf("requiredAmount() error = %v", err)
	}
	if amount != 0.15 {
		t.Errorf("amount = %v, want 0.15", amount)
	}
}

func TestRequiredAmount_InvalidString(t *testing.T) {
	req := Requirements{MaxAmountRequired: "not-a-number"}
	if _, err := requiredAmount(req); err == nil {
		t.Error("requiredAmount() error = nil, want error for non-numeric string")
	}
}

func TestSelfHosted_VerifyRejectsMalformedTransaction(t *testing.T) {
	s := &SelfHosted{}
	result, err := s.Verify(nil, Payload{Transaction: "not-base64!!"}, Requirements{})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if result.Valid {
		t.Error("Verify() valid = true for malformed transaction, want false")
	}
}

func TestSelfHosted_VerifyRejectsMissingTransaction(t *testing.T) {
	s := &SelfHosted{}
	result, err := s.Verify(nil, Payload{}, Requirements{})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if result.Valid {
		t.Error("Verify() valid = true for missing transaction, want false")
	}
}

func TestSelfHosted_NameTypeAvailable(t *testing.T) {
	s := &SelfHosted{}
	if s.Name() != "self-hosted" {
		t.Errorf("Name() = %s, want self-hosted", s.Name())
	}
	if s.Type() != TypeSelfHosted {
		t.Errorf("Type() = %s, want %s", s.Type(), TypeSelfHosted)
	}
	if s.Available() {
		t.Error("Available() = true for zero-value client, want false")
	}
}
