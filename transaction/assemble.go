// Package transaction assembles payload instructions into an unsigned,
// base64-encoded transaction that a wallet can sign out of band.
package transaction

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/barkprotocol/blinks/clients"
	"github.com/barkprotocol/blinks/logger"
	"github.com/barkprotocol/blinks/types"
)

// ComputeBudgetProgramID is the native Compute Budget program
var ComputeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

// setComputeUnitPrice is the Compute Budget instruction discriminator
const setComputeUnitPrice uint8 = 3

// Options are the per-request parts of an assembled transaction
type Options struct {
	// Reference is attached through a zero-lamport marker placed last
	Reference *solana.PublicKey

	// Message is returned to the wallet alongside the transaction
	Message string
}

type Assembler struct {
	chain            clients.ChainClient
	computeUnitPrice uint64
	logger           logger.Logger
}

// NewAssembler creates an Assembler. A non-zero computeUnitPrice prepends a
// priority fee hint in micro-lamports per compute unit.
func NewAssembler(chain clients.ChainClient, computeUnitPrice uint64, log logger.Logger) *Assembler {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Assembler{
		chain:            chain,
		computeUnitPrice: computeUnitPrice,
		logger:           log.With(map[string]any{"component": "assembler"}),
	}
}

// Assemble fetches a recent blockhash and serializes the ordered instructions
// with feePayer as the fee payer. Signatures are left empty.
//
// Order: payload, compute-budget hint, reference marker. The transfer always
// sits at index 0.
func (a *Assembler) Assemble(
	ctx context.Context,
	payload []solana.Instruction,
	feePayer solana.PublicKey,
	opts Options,
) (*types.UnsignedTransaction, error) {
	if feePayer.IsZero() {
		return nil, types.NewError(types.ErrInvalidFeePayer, "invalid account")
	}
	if len(payload) == 0 {
		return nil, types.NewError(types.ErrInternal, "no instructions to assemble")
	}

	instructions := make([]solana.Instruction, 0, len(payload)+2)
	instructions = append(instructions, payload...)
	if a.computeUnitPrice > 0 {
		instructions = append(instructions, ComputeUnitPrice(a.computeUnitPrice))
	}
	if opts.Reference != nil {
		instructions = append(instructions, ReferenceMarker(feePayer, *opts.Reference))
	}

	ref, err := a.chain.LatestBlockhash(ctx)
	if err != nil {
		a.logger.Error("blockhash lookup failed", map[string]any{
			"feePayer": feePayer.String(),
			"error":    err,
		})
		return nil, err
	}

	tx, err := solana.NewTransaction(instructions, ref.Blockhash, solana.TransactionPayer(feePayer))
	if err != nil {
		return nil, types.WrapError(types.ErrInternal, "failed to build transaction", err)
	}

	encoded, err := Encode(tx)
	if err != nil {
		return nil, types.WrapError(types.ErrInternal, "failed to serialize transaction", err)
	}

	return &types.UnsignedTransaction{
		FeePayer:             feePayer,
		RecentBlockhash:      ref.Blockhash,
		LastValidBlockHeight: ref.LastValidBlockHeight,
		Instructions:         instructions,
		Message:              opts.Message,
		Transaction:          encoded,
	}, nil
}

// Encode serializes tx without requiring signatures: every required signer
// gets an all-zero slot that the wallet overwrites.
func Encode(tx *solana.Transaction) (string, error) {
	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) != required {
		tx.Signatures = make([]solana.Signature, required)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode parses a base64 transaction produced by Encode or signed by a wallet
func Decode(encoded string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid tx base64: %w", err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return tx, nil
}

// ReferenceMarker is a zero-lamport self transfer carrying reference as a
// read-only, non-signer account so the payment can be located later.
func ReferenceMarker(payer, reference solana.PublicKey) solana.Instruction {
	transfer := system.NewTransferInstruction(0, payer, payer).Build()
	data, _ := transfer.Data()

	accounts := append(solana.AccountMetaSlice{}, transfer.Accounts()...)
	accounts = append(accounts, solana.NewAccountMeta(reference, false, false))

	return solana.NewInstruction(solana.SystemProgramID, accounts, data)
}

// ComputeUnitPrice sets the priority fee in micro-lamports per compute unit
func ComputeUnitPrice(microLamports uint64) solana.Instruction {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	_ = enc.WriteUint8(setComputeUnitPrice)
	_ = enc.WriteUint64(microLamports, bin.LE)

	return solana.NewInstruction(ComputeBudgetProgramID, solana.AccountMetaSlice{}, buf.Bytes())
}
