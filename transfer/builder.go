// Package transfer builds the payload instructions of a payment: a native SOL
// transfer, an SPL TransferChecked between associated token accounts, or a
// memo-only instruction.
package transfer

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/barkprotocol/blinks/clients"
	"github.com/barkprotocol/blinks/logger"
	"github.com/barkprotocol/blinks/types"
	"github.com/barkprotocol/blinks/utils"
)

// RentExemptDataSize is the account size used for the rent-exemption check.
// It is 0 for every asset kind, the size of a plain system account.
const RentExemptDataSize = 0

// Builder turns a validated PaymentRequest into instructions
type Builder struct {
	chain  clients.ChainClient
	logger logger.Logger
}

func NewBuilder(chain clients.ChainClient, log logger.Logger) *Builder {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Builder{
		chain:  chain,
		logger: log.With(map[string]any{"component": "transfer-builder"}),
	}
}

// Build returns the payload instructions for req paid by payer. The transfer
// comes first, followed by the memo when one was requested.
func (b *Builder) Build(ctx context.Context, req *types.PaymentRequest, payer solana.PublicKey) ([]solana.Instruction, error) {
	if payer.IsZero() {
		return nil, types.NewError(types.ErrInvalidAccount, "invalid account")
	}

	var instructions []solana.Instruction

	switch req.Asset.Type {
	case types.AssetNative:
		inst, err := b.nativeTransfer(ctx, req, payer)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, inst)

	case types.AssetToken:
		inst, err := TokenTransfer(req, payer)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, inst)

	case types.AssetMemo:
		if req.Memo == "" {
			return nil, types.NewError(types.ErrInvalidMemo, "invalid \"memo\": a memo is required")
		}
		return []solana.Instruction{Memo(req.Memo, payer)}, nil

	default:
		return nil, types.NewError(types.ErrInvalidMint, fmt.Sprintf("unsupported asset type %q", req.Asset.Type))
	}

	if req.Memo != "" {
		instructions = append(instructions, Memo(req.Memo, payer))
	}

	return instructions, nil
}

// nativeTransfer checks the amount against the rent-exempt minimum, which is
// the only chain read made while building.
func (b *Builder) nativeTransfer(ctx context.Context, req *types.PaymentRequest, payer solana.PublicKey) (solana.Instruction, error) {
	lamports, err := utils.ToLamports(req.Amount)
	if err != nil {
		return nil, types.WrapError(types.ErrInvalidAmount, "invalid \"amount\" input", err)
	}
	if lamports == 0 {
		return nil, types.NewError(types.ErrInvalidAmount, "amount is too small")
	}

	minBalance, err := b.chain.MinimumBalanceForRentExemption(ctx, RentExemptDataSize)
	if err != nil {
		b.logger.Error("rent exemption lookup failed", map[string]any{
			"recipient": req.Recipient.String(),
			"error":     err,
		})
		return nil, err
	}

	if lamports < minBalance {
		return nil, types.NewError(types.ErrInsufficientForRentExemption, fmt.Sprintf(
			"insufficient SOL sent to the recipient, it must be at least %s SOL to be rent exempt",
			utils.FromLamports(minBalance).String(),
		))
	}

	return NativeTransfer(lamports, payer, req.Recipient), nil
}

// NativeTransfer moves lamports from payer to recipient through the System program
func NativeTransfer(lamports uint64, payer, recipient solana.PublicKey) solana.Instruction {
	return system.NewTransferInstruction(lamports, payer, recipient).Build()
}

// TokenTransfer builds a TransferChecked between the payer's and the
// recipient's associated token accounts for req.Asset.Mint.
func TokenTransfer(req *types.PaymentRequest, payer solana.PublicKey) (solana.Instruction, error) {
	if req.Asset.Mint.IsZero() {
		return nil, types.NewError(types.ErrInvalidMint, "invalid token mint")
	}

	units, err := utils.ToBaseUnits(req.Amount, req.Asset.Decimals)
	if err != nil {
		return nil, types.WrapError(types.ErrInvalidAmount, "invalid \"amount\" input", err)
	}
	if units == 0 {
		return nil, types.NewError(types.ErrInvalidAmount, "amount is too small")
	}

	source, _, err := solana.FindAssociatedTokenAddress(payer, req.Asset.Mint)
	if err != nil {
		return nil, types.WrapError(types.ErrInvalidAccount, "invalid account", err)
	}
	destination, _, err := solana.FindAssociatedTokenAddress(req.Recipient, req.Asset.Mint)
	if err != nil {
		return nil, types.WrapError(types.ErrInvalidRecipient, "invalid \"to\" recipient address", err)
	}

	return token.NewTransferCheckedInstruction(
		units,
		req.Asset.Decimals,
		source,
		req.Asset.Mint,
		destination,
		payer,
		[]solana.PublicKey{},
	).Build(), nil
}

// Memo writes text through the Memo program, signed by signer
func Memo(text string, signer solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		solana.MemoProgramID,
		solana.AccountMetaSlice{solana.NewAccountMeta(signer, false, true)},
		[]byte(text),
	)
}
