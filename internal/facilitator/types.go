// Package facilitator provides a uniform verify/settle contract over the
// gateway's payment backends: one in-process self-hosted signer and several
// remote HTTP facilitators, each with its own wire protocol.
package facilitator

import (
	"context"
	"time"
)

// Type names a configured facilitator backend.
type Type string

const (
	TypeSelfHosted Type = "self-hosted"
	TypeRemoteA    Type = "remoteA" // CodeNut-style
	TypeRemoteB    Type = "remoteB" // Corbits-style
	TypeRemoteC    Type = "remoteC" // PayAI-style
	TypeAuto       Type = "auto"
)

// Requirements carries the shared x402 payment requirement fields every
// adapter needs, plus the adapter-specific extras passed through verbatim.
type Requirements struct {
	Scheme            string
	Network           string
	PayTo             string
	MaxAmountRequired string // decimal string, base units of Asset
	Asset             string
	Resource          string
	Description       string
	MimeType          string
	MaxTimeoutSeconds int
	Extra             map[string]any
}

// Payload is the raw payment payload parsed from the X-PAYMENT header: the
// x402 envelope plus the scheme-specific (currently Solana SPL transfer)
// payload fields every adapter needs a view of.
type Payload struct {
	X402Version int
	Scheme      string
	Network     string
	Signature   string
	Transaction string
	FeePayer    string
	Memo        string
	Metadata    map[string]string
}

// VerifyResult reports whether a payment payload satisfies requirements.
type VerifyResult struct {
	Valid         bool
	Payer         string
	InvalidReason string
}

// SettleResult reports the outcome of broadcasting/confirming a payment.
type SettleResult struct {
	Settled     bool
	TxHash      string
	ErrorReason string
}

// Facilitator is the uniform contract every adapter satisfies. Verify must
// never mutate chain state; Settle is the authoritative, possibly
// chain-mutating step.
type Facilitator interface {
	Name() string
	Type() Type
	Available() bool
	Verify(ctx context.Context, payload Payload, req Requirements) (VerifyResult, error)
	Settle(ctx context.Context, payload Payload, req Requirements) (SettleResult, error)
}

// defaultVerifyTimeout and defaultSettleTimeout bound adapter calls when a
// config entry does not override them.
const (
	defaultVerifyTimeout = 10 * time.Second
	defaultSettleTimeout = 30 * time.Second
)
