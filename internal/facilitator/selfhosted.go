package facilitator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"

	"github.com/cedrospay/x402-gateway/internal/config"
	"github.com/cedrospay/x402-gateway/internal/logger"
	"github.com/cedrospay/x402-gateway/internal/metrics"
	solanahelpers "github.com/cedrospay/x402-gateway/internal/solana"
)

// SelfHosted verifies and settles Solana SPL transfers locally: it holds its
// own signer and RPC/WebSocket clients instead of delegating to a remote
// facilitator service.
type SelfHosted struct {
	signer        solanago.PrivateKey
	rpcClient     *rpc.Client
	wsClient      *ws.Client
	tokenMint     string
	commitment    rpc.CommitmentType
	skipPreflight bool
	metrics       *metrics.Metrics
}

// NewSelfHosted constructs a self-hosted facilitator from config. wsClient may
// be nil; confirmation then falls back to RPC polling exclusively.
func NewSelfHosted(cfg config.SelfHostedConfig, wsClient *ws.Client, m *metrics.Metrics) (*SelfHosted, error) {
	if cfg.PrivateKey == "" {
		return nil, errors.New("facilitator: self-hosted signer key not configured")
	}
	if cfg.RPCURL == "" {
		return nil, errors.New("facilitator: self-hosted rpc url not configured")
	}

	key, err := solanahelpers.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("facilitator: parse signer key: %w", err)
	}

	return &SelfHosted{
		signer:        key,
		rpcClient:     rpc.New(cfg.RPCURL),
		wsClient:      wsClient,
		tokenMint:     cfg.TokenMint,
		commitment:    commitmentFromString(cfg.Commitment),
		skipPreflight: cfg.SkipPreflight,
		metrics:       m,
	}, nil
}

func (s *SelfHosted) Name() string    { return "self-hosted" }
func (s *SelfHosted) Type() Type      { return TypeSelfHosted }
func (s *SelfHosted) Available() bool { return s.rpcClient != nil }

// Verify is local-only: it parses the submitted transaction, confirms a
// matching SPL transfer instruction exists, and checks the amount meets the
// requirement. It never broadcasts or touches chain state.
func (s *SelfHosted) Verify(ctx context.Context, payload Payload, req Requirements) (VerifyResult, error) {
	if payload.Transaction == "" {
		return VerifyResult{Valid: false, InvalidReason: "missing transaction"}, nil
	}

	tx, err := solanago.TransactionFromBase64(payload.Transaction)
	if err != nil {
		return VerifyResult{Valid: false, InvalidReason: "malformed transaction: " + err.Error()}, nil
	}
	if len(tx.Message.AccountKeys) == 0 {
		return VerifyResult{Valid: false, InvalidReason: "transaction missing account keys"}, nil
	}

	amount, authority, err := validateTransfer(tx, req)
	if err != nil {
		return VerifyResult{Valid: false, InvalidReason: err.Error()}, nil
	}

	required, err := requiredAmount(req)
	if err != nil {
		return VerifyResult{Valid: false, InvalidReason: err.Error()}, nil
	}
	if amount < required {
		return VerifyResult{Valid: false, InvalidReason: fmt.Sprintf("amount %.8f below required %.8f", amount, required)}, nil
	}

	return VerifyResult{Valid: true, Payer: authority.String()}, nil
}

// Settle broadcasts the transaction and awaits confirmation, co-signing as
// fee payer first when the transaction names this signer as fee payer.
func (s *SelfHosted) Settle(ctx context.Context, payload Payload, req Requirements) (SettleResult, error) {
	tx, err := solanago.TransactionFromBase64(payload.Transaction)
	if err != nil {
		return SettleResult{Settled: false, ErrorReason: "malformed transaction"}, nil
	}

	feePayer := tx.Message.AccountKeys[0]
	if feePayer.Equals(s.signer.PublicKey()) {
		if _, err := tx.PartialSign(func(key solanago.PublicKey) *solanago.PrivateKey {
			if key.Equals(s.signer.PublicKey()) {
				return &s.signer
			}
			return nil
		}); err != nil {
			return SettleResult{Settled: false, ErrorReason: "co-sign failed: " + err.Error()}, nil
		}
	}

	sendOpts := rpc.TransactionOpts{
		SkipPreflight:       s.skipPreflight,
		PreflightCommitment: s.commitment,
	}

	start := time.Now()
	sig, err := s.rpcClient.SendTransactionWithOpts(ctx, tx, sendOpts)
	if s.metrics != nil {
		s.metrics.ObserveRPCCall("SendTransaction", "solana", time.Since(start), err)
	}
	if err != nil {
		return SettleResult{Settled: false, ErrorReason: "broadcast failed: " + err.Error()}, nil
	}

	log := logger.FromContext(ctx)
	log.Debug().Str("signature", logger.TruncateAddress(sig.String())).Msg("facilitator.self_hosted.awaiting_confirmation")

	confirmCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	if err := s.awaitConfirmation(confirmCtx, sig); err != nil {
		return SettleResult{Settled: false, ErrorReason: "confirmation failed: " + err.Error()}, nil
	}

	return SettleResult{Settled: true, TxHash: sig.String()}, nil
}

func requiredAmount(req Requirements) (float64, error) {
	decimals := 6
	if v, ok := req.Extra["tokenDecimals"]; ok {
		if d, ok := v.(float64); ok {
			decimals = int(d)
		}
	}
	units, err := strconv.ParseInt(req.MaxAmountRequired, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid maxAmountRequired: %w", err)
	}
	return float64(units) / math.Pow10(decimals), nil
}

// validateTransfer scans tx for an SPL transfer matching req's payTo/asset
// and returns the transferred amount and the transfer's signing authority.
func validateTransfer(tx *solanago.Transaction, req Requirements) (float64, solanago.PublicKey, error) {
	expectedAccount, err := solanago.PublicKeyFromBase58(req.PayTo)
	if err != nil {
		return 0, solanago.PublicKey{}, fmt.Errorf("invalid payTo: %w", err)
	}

	decimals := uint8(6)
	if v, ok := req.Extra["tokenDecimals"]; ok {
		if d, ok := v.(float64); ok {
			decimals = uint8(d)
		}
	}

	for _, inst := range tx.Message.Instructions {
		if int(inst.ProgramIDIndex) >= len(tx.Message.AccountKeys) {
			continue
		}
		programID := tx.Message.AccountKeys[inst.ProgramIDIndex]
		if !programID.Equals(solanago.TokenProgramID) {
			continue
		}
		accounts, err := inst.ResolveInstructionAccounts(&tx.Message)
		if err != nil {
			continue
		}
		decoded, err := token.DecodeInstruction(accounts, []byte(inst.Data))
		if err != nil {
			continue
		}
		switch ins := decoded.Impl.(type) {
		case *token.Transfer:
			dest := ins.GetDestinationAccount().PublicKey
			if !dest.Equals(expectedAccount) || ins.Amount == nil {
				continue
			}
			amount := float64(*ins.Amount) / math.Pow10(int(decimals))
			return amount, ins.GetOwnerAccount().PublicKey, nil
		case *token.TransferChecked:
			dest := ins.GetDestinationAccount().PublicKey
			if !dest.Equals(expectedAccount) || ins.Amount == nil {
				continue
			}
			amount := float64(*ins.Amount) / math.Pow10(int(decimals))
			return amount, ins.GetOwnerAccount().PublicKey, nil
		}
	}

	return 0, solanago.PublicKey{}, errors.New("no matching SPL transfer to payTo found")
}

func commitmentFromString(s string) rpc.CommitmentType {
	switch s {
	case "processed":
		return rpc.CommitmentProcessed
	case "finalized":
		return rpc.CommitmentFinalized
	default:
		return rpc.CommitmentConfirmed
	}
}
