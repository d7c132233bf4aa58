package utils

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/barkprotocol/blinks/types"
)

// MaxMemoLength is the largest memo the Memo program accepts in a single
// legacy transaction alongside a transfer.
const MaxMemoLength = 566

// MaxAmountDecimals is the finest precision accepted for any amount. It
// matches the largest mint decimals a token config may declare.
const MaxAmountDecimals = 18

const maxIntegerDigits = 20

// maxAmount is the largest whole-unit amount, math.MaxUint64
var maxAmount = decimal.RequireFromString("18446744073709551615")

// ParamDefaults holds the configured fallbacks for absent query parameters
type ParamDefaults struct {
	Recipient solana.PublicKey
	Amount    decimal.Decimal
}

// ValidateParams turns the raw query of an action request into a PaymentRequest.
// It performs no I/O.
func ValidateParams(query url.Values, asset types.AssetKind, defaults ParamDefaults) (*types.PaymentRequest, error) {
	req := &types.PaymentRequest{
		Recipient: defaults.Recipient,
		Amount:    defaults.Amount,
		Asset:     asset,
	}

	if query.Has("to") {
		recipient, err := ParseAddress(query.Get("to"))
		if err != nil {
			return nil, types.WrapError(types.ErrInvalidRecipient, "invalid \"to\" recipient address", err)
		}
		req.Recipient = recipient
	}
	if req.Recipient.IsZero() {
		return nil, types.NewError(types.ErrInvalidRecipient, "invalid \"to\" recipient address")
	}

	memo, err := ValidateMemo(query.Get("memo"))
	if err != nil {
		return nil, err
	}
	req.Memo = memo

	if asset.IsMemo() {
		if req.Memo == "" {
			return nil, types.NewError(types.ErrInvalidMemo, "invalid \"memo\": a memo is required")
		}
		req.Amount = decimal.Zero
		return req, nil
	}

	if query.Has("amount") {
		amount, err := ValidateAmount(query.Get("amount"))
		if err != nil {
			return nil, types.WrapError(types.ErrInvalidAmount, "invalid \"amount\" input", err)
		}
		req.Amount = *amount
	}
	if !req.Amount.IsPositive() {
		return nil, types.NewError(types.ErrInvalidAmount, "amount is too small")
	}

	return req, nil
}

// ValidateAmount checks that amount is a positive decimal. NaN, infinities,
// empty strings and non-positive values are all rejected the same way.
func ValidateAmount(amount string) (*decimal.Decimal, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if !dec.IsPositive() {
		return nil, fmt.Errorf("amount is too small")
	}

	// bounds are checked on the coefficient and exponent; Cmp, String and
	// Shift would expand a huge exponent in full
	if dec.Exponent() < -MaxAmountDecimals {
		return nil, fmt.Errorf("amount has more than %d decimal places", MaxAmountDecimals)
	}
	if integerDigits(dec) > maxIntegerDigits || dec.GreaterThan(maxAmount) {
		return nil, fmt.Errorf("amount is too large")
	}

	return &dec, nil
}

func integerDigits(d decimal.Decimal) int64 {
	return int64(len(d.Coefficient().String())) + int64(d.Exponent())
}

// ParseAddress parses a base58 Solana public key
func ParseAddress(address string) (solana.PublicKey, error) {
	if address == "" {
		return solana.PublicKey{}, fmt.Errorf("address cannot be empty")
	}

	pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(address))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid base58 public key: %w", err)
	}

	return pk, nil
}

// ValidateMemo trims memo and enforces the length limit
func ValidateMemo(memo string) (string, error) {
	memo = strings.TrimSpace(memo)
	if len(memo) > MaxMemoLength {
		return "", types.NewError(types.ErrInvalidMemo,
			fmt.Sprintf("invalid \"memo\": longer than %d bytes", MaxMemoLength))
	}
	return memo, nil
}

// ResolveAsset maps an asset name from configuration ("SOL", "MEMO" or a
// token symbol/mint) onto an AssetKind.
func ResolveAsset(cfg *types.Config, asset string) (types.AssetKind, error) {
	switch strings.ToUpper(asset) {
	case types.NativeSymbol:
		return types.AssetKind{Type: types.AssetNative, Symbol: types.NativeSymbol}, nil
	case types.MemoSymbol:
		return types.AssetKind{Type: types.AssetMemo, Symbol: types.MemoSymbol}, nil
	}

	token, ok := cfg.Token(asset)
	if !ok {
		return types.AssetKind{}, types.NewError(types.ErrInvalidMint, fmt.Sprintf("unknown token %q", asset))
	}

	mint, err := ParseAddress(token.Mint)
	if err != nil {
		return types.AssetKind{}, types.WrapError(types.ErrInvalidMint, fmt.Sprintf("invalid mint for token %q", token.Symbol), err)
	}

	return types.AssetKind{
		Type:     types.AssetToken,
		Symbol:   token.Symbol,
		Mint:     mint,
		Decimals: token.Decimals,
	}, nil
}
