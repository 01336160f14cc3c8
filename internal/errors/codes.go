package errors

// ErrorCode represents a machine-readable error identifier for client error handling.
type ErrorCode string

// Payment Verification Errors (x402 spec + Solana-specific)
const (
	// Invalid payment proof format or structure
	ErrCodeInvalidPaymentProof ErrorCode = "invalid_payment_proof"
	ErrCodeInvalidSignature    ErrorCode = "invalid_signature"
	ErrCodeInvalidTransaction  ErrorCode = "invalid_transaction"

	// Solana transaction verification failures
	ErrCodeTransactionNotFound     ErrorCode = "transaction_not_found"
	ErrCodeTransactionNotConfirmed ErrorCode = "transaction_not_confirmed"
	ErrCodeTransactionFailed       ErrorCode = "transaction_failed"

	// Recipient/sender validation failures
	ErrCodeInvalidRecipient ErrorCode = "invalid_recipient"
	ErrCodeInvalidSender    ErrorCode = "invalid_sender"

	// Amount/token validation failures
	ErrCodeAmountBelowMinimum     ErrorCode = "amount_below_minimum"
	ErrCodeAmountMismatch         ErrorCode = "amount_mismatch"
	ErrCodeInsufficientFunds      ErrorCode = "insufficient_funds_sol"
	ErrCodeInsufficientFundsToken ErrorCode = "insufficient_funds_token"
	ErrCodeInvalidTokenMint       ErrorCode = "invalid_token_mint"

	// SPL transfer validation failures
	ErrCodeNotSPLTransfer      ErrorCode = "not_spl_transfer"
	ErrCodeMissingTokenAccount ErrorCode = "missing_token_account"
	ErrCodeInvalidTokenProgram ErrorCode = "invalid_token_program"

	// Memo/metadata validation failures
	ErrCodeMissingMemo ErrorCode = "missing_memo"
	ErrCodeInvalidMemo ErrorCode = "invalid_memo"

	// Replay protection
	ErrCodePaymentAlreadyUsed ErrorCode = "payment_already_used"
	ErrCodeSignatureReused    ErrorCode = "signature_reused"

	// Timeout/expiration errors
	ErrCodeQuoteExpired       ErrorCode = "quote_expired"
	ErrCodeTransactionExpired ErrorCode = "transaction_expired"
)

// Validation Errors (Request input validation)
const (
	ErrCodeMissingField    ErrorCode = "missing_field"
	ErrCodeInvalidField    ErrorCode = "invalid_field"
	ErrCodeInvalidAmount   ErrorCode = "invalid_amount"
	ErrCodeInvalidWallet   ErrorCode = "invalid_wallet"
	ErrCodeInvalidResource ErrorCode = "invalid_resource"
)

// Resource/State Errors (Resource not found or in wrong state)
const (
	ErrCodeResourceNotFound ErrorCode = "resource_not_found"
	ErrCodeProviderNotFound ErrorCode = "provider_not_found"
	ErrCodeMethodNotFound   ErrorCode = "method_not_found"
	ErrCodeBatchNotFound    ErrorCode = "batch_not_found"
)

// Gateway routing and provisioning errors
const (
	// ErrCodeNoProviderAvailable is returned when the router has no healthy
	// candidate left after exhausting the fallback order for a chain/method.
	ErrCodeNoProviderAvailable ErrorCode = "no_provider_available"

	// ErrCodeFacilitatorUnavailable is returned when neither the primary nor
	// any fallback facilitator can verify or settle a payment.
	ErrCodeFacilitatorUnavailable ErrorCode = "facilitator_unavailable"

	// ErrCodeFacilitatorForceTypeUnknown is returned when a client requests a
	// forced facilitator type that was never configured for this gateway.
	ErrCodeFacilitatorForceTypeUnknown ErrorCode = "facilitator_force_type_unknown"

	// ErrCodeBatchDepleted is returned when a batch has zero calls remaining
	// or has passed its TTL.
	ErrCodeBatchDepleted ErrorCode = "batch_depleted"

	// ErrCodeUpstreamFailure is returned when a selected provider's RPC
	// endpoint errors or times out after a payment has already been
	// verified/settled or debited from a batch.
	ErrCodeUpstreamFailure ErrorCode = "upstream_failure"

	// ErrCodeOracleUnavailable is returned only when every price source,
	// including the cached-stale and static-constant fallback, fails.
	ErrCodeOracleUnavailable ErrorCode = "oracle_unavailable"
)

// External Service Errors (RPC, facilitators, upstream providers)
const (
	ErrCodeRPCError     ErrorCode = "rpc_error"
	ErrCodeNetworkError ErrorCode = "network_error"
)

// Internal/System Errors
const (
	ErrCodeInternalError ErrorCode = "internal_error"
	ErrCodeConfigError   ErrorCode = "config_error"
)

// IsRetryable returns whether an error code represents a retryable error.
// Retryable errors are typically transient network/service issues, not validation failures.
func (e ErrorCode) IsRetryable() bool {
	switch e {
	// Network and service errors are retryable
	case ErrCodeRPCError,
		ErrCodeNetworkError,
		ErrCodeTransactionNotConfirmed,
		ErrCodeNoProviderAvailable,
		ErrCodeFacilitatorUnavailable,
		ErrCodeUpstreamFailure,
		ErrCodeOracleUnavailable:
		return true

	// Validation, authorization, and permanent failures are NOT retryable
	default:
		return false
	}
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e ErrorCode) HTTPStatus() int {
	switch e {
	// 400 Bad Request - Client validation errors
	case ErrCodeInvalidPaymentProof,
		ErrCodeInvalidSignature,
		ErrCodeInvalidTransaction,
		ErrCodeMissingField,
		ErrCodeInvalidField,
		ErrCodeInvalidAmount,
		ErrCodeInvalidWallet,
		ErrCodeInvalidResource,
		ErrCodeInvalidRecipient,
		ErrCodeInvalidSender,
		ErrCodeInvalidTokenMint,
		ErrCodeNotSPLTransfer,
		ErrCodeInvalidTokenProgram,
		ErrCodeMissingMemo,
		ErrCodeInvalidMemo,
		ErrCodeFacilitatorForceTypeUnknown:
		return 400

	// 402 Payment Required - Payment verification failures
	case ErrCodeTransactionNotFound,
		ErrCodeTransactionNotConfirmed,
		ErrCodeTransactionFailed,
		ErrCodeAmountBelowMinimum,
		ErrCodeAmountMismatch,
		ErrCodeInsufficientFunds,
		ErrCodeInsufficientFundsToken,
		ErrCodeMissingTokenAccount,
		ErrCodePaymentAlreadyUsed,
		ErrCodeSignatureReused,
		ErrCodeQuoteExpired,
		ErrCodeTransactionExpired,
		ErrCodeBatchDepleted:
		return 402

	// 404 Not Found - Resource not found
	case ErrCodeResourceNotFound,
		ErrCodeProviderNotFound,
		ErrCodeMethodNotFound,
		ErrCodeBatchNotFound:
		return 404

	// 409 Conflict - no eligible candidate left after the fallback chain
	case ErrCodeNoProviderAvailable,
		ErrCodeFacilitatorUnavailable:
		return 409

	// 502 Bad Gateway - External service errors
	case ErrCodeRPCError,
		ErrCodeNetworkError,
		ErrCodeUpstreamFailure,
		ErrCodeOracleUnavailable:
		return 502

	// 500 Internal Server Error - System/internal errors
	default:
		return 500
	}
}
