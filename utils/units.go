package utils

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// LamportsDecimals is the exponent between SOL and lamports
const LamportsDecimals = 9

// ToLamports converts SOL to lamports, rounding down so a transfer never
// exceeds the authorized amount.
func ToLamports(amount decimal.Decimal) (uint64, error) {
	lamports := amount.Shift(LamportsDecimals).Floor()
	return toUint64(lamports)
}

// ToBaseUnits converts a token amount to base units, rounding half away from
// zero at the mint's decimal boundary.
func ToBaseUnits(amount decimal.Decimal, decimals uint8) (uint64, error) {
	units := amount.Shift(int32(decimals)).Round(0)
	return toUint64(units)
}

// FromLamports converts lamports back to SOL
func FromLamports(lamports uint64) decimal.Decimal {
	return FromBaseUnits(lamports, LamportsDecimals)
}

// FromBaseUnits formats base units with the given number of decimals
func FromBaseUnits(units uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(units), -int32(decimals))
}

func toUint64(d decimal.Decimal) (uint64, error) {
	if d.IsNegative() {
		return 0, fmt.Errorf("amount cannot be negative")
	}
	bi := d.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("amount %s overflows uint64", d.String())
	}
	return bi.Uint64(), nil
}
