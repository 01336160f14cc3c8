package facilitator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	solanago "github.com/gagliardetto/solana-go"
)

// blockhashValidityWindow bounds how long RPC polling keeps retrying before
// concluding a transaction was dropped: Solana blockhashes are valid for
// roughly 150 slots (~60s on mainnet).
const (
	blockhashValidityWindow = 60 * time.Second
	rpcPollInterval         = 1 * time.Second
)

// awaitConfirmation waits via WebSocket subscription first (fast path), and
// falls back to RPC polling if the subscription errors or the client has no
// WebSocket connection configured.
func (s *SelfHosted) awaitConfirmation(ctx context.Context, sig solanago.Signature) error {
	if s.wsClient != nil {
		if err := s.awaitConfirmationViaWebSocket(ctx, sig); err == nil {
			return nil
		}
	}
	return s.awaitConfirmationViaRPC(ctx, sig)
}

func (s *SelfHosted) awaitConfirmationViaWebSocket(ctx context.Context, sig solanago.Signature) error {
	sub, err := s.wsClient.SignatureSubscribe(sig, s.commitment)
	if err != nil {
		return fmt.Errorf("subscribe signature: %w", err)
	}
	defer sub.Unsubscribe()

	res, err := sub.Recv(ctx)
	if err != nil {
		return fmt.Errorf("wait confirmation: %w", err)
	}
	if res == nil {
		return errors.New("empty confirmation result")
	}
	if res.Value.Err != nil {
		return fmt.Errorf("transaction error: %v", res.Value.Err)
	}
	return nil
}

func (s *SelfHosted) awaitConfirmationViaRPC(ctx context.Context, sig solanago.Signature) error {
	ticker := time.NewTicker(rpcPollInterval)
	defer ticker.Stop()

	maxValidTime := time.Now().Add(blockhashValidityWindow)

	for {
		select {
		case <-ctx.Done():
			return s.checkTransactionStatus(ctx, sig)
		case <-ticker.C:
			err := s.checkTransactionStatus(ctx, sig)
			if err == nil {
				return nil
			}
			if isTransactionNotFoundError(err) {
				if time.Now().After(maxValidTime) {
					return errors.New("transaction not found within blockhash validity period")
				}
				continue
			}
			return err
		}
	}
}

func (s *SelfHosted) checkTransactionStatus(ctx context.Context, sig solanago.Signature) error {
	start := time.Now()
	result, err := s.rpcClient.GetSignatureStatuses(ctx, true, sig)
	if s.metrics != nil {
		s.metrics.ObserveRPCCall("GetSignatureStatuses", "solana", time.Since(start), err)
	}
	if err != nil {
		return fmt.Errorf("get signature status: %w", err)
	}
	if result == nil || result.Value == nil || len(result.Value) == 0 || result.Value[0] == nil {
		return errors.New("transaction not found")
	}

	status := result.Value[0]
	if status.ConfirmationStatus == "" {
		return errors.New("transaction not confirmed yet")
	}
	if status.Err != nil {
		return fmt.Errorf("transaction error: %v", status.Err)
	}
	return nil
}

func isTransactionNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "not found") || strings.Contains(msg, "not confirmed yet")
}
