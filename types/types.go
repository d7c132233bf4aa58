package types

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// ActionVersion is the Solana Actions protocol version advertised in response headers.
const ActionVersion = "2.1.3"

// AssetType represents what a payment request moves on chain
type AssetType string

const (
	AssetNative AssetType = "native"
	AssetToken  AssetType = "token"
	AssetMemo   AssetType = "memo"
)

// NativeSymbol is the symbol used for native SOL in configuration and labels
const NativeSymbol = "SOL"

// MemoSymbol selects the memo-only payload for an action
const MemoSymbol = "MEMO"

// AssetKind describes the asset a PaymentRequest transfers.
// Mint and Decimals are only meaningful for AssetToken.
type AssetKind struct {
	Type     AssetType        `json:"type"`
	Symbol   string           `json:"symbol"`
	Mint     solana.PublicKey `json:"mint,omitempty"`
	Decimals uint8            `json:"decimals,omitempty"`
}

func (a AssetKind) IsNative() bool { return a.Type == AssetNative }
func (a AssetKind) IsToken() bool  { return a.Type == AssetToken }
func (a AssetKind) IsMemo() bool   { return a.Type == AssetMemo }

// PaymentRequest is the validated form of the caller-supplied query parameters.
type PaymentRequest struct {
	Recipient solana.PublicKey `json:"recipient"`
	Amount    decimal.Decimal  `json:"amount"`
	Asset     AssetKind        `json:"asset"`
	Memo      string           `json:"memo,omitempty"`
}

// ActionDescriptor is the discovery payload returned by GET /actions/{action}.
type ActionDescriptor struct {
	Type        string      `json:"type"`
	Title       string      `json:"title"`
	Icon        string      `json:"icon"`
	Description string      `json:"description"`
	Label       string      `json:"label"`
	Disabled    bool        `json:"disabled,omitempty"`
	Links       ActionLinks `json:"links"`
}

type ActionLinks struct {
	Actions []ActionLink `json:"actions"`
}

// ActionLink is one selectable preset or parametrized form.
type ActionLink struct {
	Type       string            `json:"type"`
	Label      string            `json:"label"`
	Href       string            `json:"href"`
	Parameters []ActionParameter `json:"parameters,omitempty"`
}

type ActionParameter struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// ActionPostRequest is the body of POST /actions/{action}
type ActionPostRequest struct {
	Account string `json:"account" validate:"required,solana_pubkey"`
}

// ActionPostResponse carries the unsigned transaction back to the wallet
type ActionPostResponse struct {
	Transaction string `json:"transaction"`
	Message     string `json:"message,omitempty"`
}

// BlockReference is a recent blockhash together with the height after which it expires.
type BlockReference struct {
	Blockhash            solana.Hash `json:"blockhash"`
	LastValidBlockHeight uint64      `json:"lastValidBlockHeight"`
}

// UnsignedTransaction is built fresh per request and never persisted.
type UnsignedTransaction struct {
	FeePayer             solana.PublicKey     `json:"feePayer"`
	RecentBlockhash      solana.Hash          `json:"recentBlockhash"`
	LastValidBlockHeight uint64               `json:"lastValidBlockHeight"`
	Instructions         []solana.Instruction `json:"-"`
	Message              string               `json:"message"`

	// Base64 wire encoding with empty signature slots
	Transaction string `json:"transaction"`
}

// VerificationStatus is the terminal state of one webhook verification
type VerificationStatus string

const (
	StatusConfirmed         VerificationStatus = "confirmed"
	StatusRecipientMismatch VerificationStatus = "recipient_mismatch"
	StatusReferenceMismatch VerificationStatus = "reference_mismatch"
	StatusAmountMismatch    VerificationStatus = "amount_mismatch"
	StatusNotFound          VerificationStatus = "not_found"
	StatusFailed            VerificationStatus = "failed"
)

func (s VerificationStatus) IsConfirmed() bool { return s == StatusConfirmed }

// VerifyRequest is the typed input of the payment verifier.
type VerifyRequest struct {
	Signature solana.Signature
	Reference solana.PublicKey
	Recipient solana.PublicKey

	// Restricts token matching to one mint; nil accepts native or any configured token
	Mint *solana.PublicKey

	// When set, a matched transfer smaller than this fails with StatusAmountMismatch
	ExpectedAmount *decimal.Decimal
}

// VerificationResult contains the result of payment verification
type VerificationResult struct {
	Status            VerificationStatus `json:"status"`
	Signature         string             `json:"signature"`
	Reference         string             `json:"reference,omitempty"`
	VerifiedRecipient string             `json:"verifiedRecipient,omitempty"`
	VerifiedAmount    *decimal.Decimal   `json:"verifiedAmount,omitempty"`
	Token             string             `json:"token,omitempty"`
	Sender            string             `json:"sender,omitempty"`
	Slot              uint64             `json:"slot,omitempty"`
	Reason            string             `json:"reason,omitempty"`
	Timestamp         *time.Time         `json:"timestamp,omitempty"`
}

// WebhookRequest is the body of POST /solana-pay/webhook
type WebhookRequest struct {
	Reference string `json:"reference" validate:"required,solana_pubkey"`
	Signature string `json:"signature" validate:"required,solana_signature"`
	Amount    string `json:"amount,omitempty" validate:"omitempty,positive_decimal"`
	SPLToken  string `json:"splToken,omitempty" validate:"omitempty,solana_pubkey"`
}

// CheckoutResponse describes a Solana Pay transfer request
type CheckoutResponse struct {
	URL         string `json:"url"`
	Reference   string `json:"reference"`
	Recipient   string `json:"recipient"`
	Amount      string `json:"amount"`
	SPLToken    string `json:"splToken,omitempty"`
	Label       string `json:"label,omitempty"`
	Message     string `json:"message,omitempty"`
	Memo        string `json:"memo,omitempty"`
	Transaction string `json:"transaction,omitempty"`
}

// Rule maps a website path to an action API path in actions.json
type Rule struct {
	ID          string `json:"id" mapstructure:"id"`
	PathPattern string `json:"pathPattern" mapstructure:"pathPattern" validate:"required"`
	APIPath     string `json:"apiPath" mapstructure:"apiPath" validate:"required"`
}

type RulesResponse struct {
	Rules []Rule `json:"rules"`
}
