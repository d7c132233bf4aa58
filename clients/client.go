package clients

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/barkprotocol/blinks/types"
)

// ChainClient is the subset of the Solana JSON-RPC API the service reads.
// Every method is a single network round trip; implementations bound it with
// their own timeout and report failures as TRANSIENT_CHAIN_ERROR.
type ChainClient interface {
	LatestBlockhash(ctx context.Context) (*types.BlockReference, error)
	MinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error)

	// SignatureStatus returns nil, nil when the cluster does not know sig
	SignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error)

	// Transaction returns nil, nil when the transaction cannot be fetched
	Transaction(ctx context.Context, sig solana.Signature) (*ConfirmedTransaction, error)

	// LatestSignature returns the newest signature that references address, or nil
	LatestSignature(ctx context.Context, address solana.PublicKey) (*solana.Signature, error)

	Cluster() types.Cluster
	Close()
}

type SignatureStatus struct {
	Slot               uint64
	ConfirmationStatus string
	Err                any
}

// IsConfirmed is true once the cluster reports at least confirmed commitment
func (s *SignatureStatus) IsConfirmed() bool {
	return s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized"
}

// ConfirmedTransaction is a fetched transaction with its account keys fully
// resolved: static keys followed by writable and read-only loaded addresses.
type ConfirmedTransaction struct {
	Slot        uint64
	BlockTime   *time.Time
	Transaction *solana.Transaction
	AccountKeys solana.PublicKeySlice
	Err         any
}
