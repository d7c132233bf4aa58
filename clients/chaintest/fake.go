// Package chaintest provides an in-memory ChainClient for tests.
package chaintest

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/barkprotocol/blinks/clients"
	"github.com/barkprotocol/blinks/types"
)

// DefaultRentExemptLamports is the mainnet minimum balance of a 0-byte account
const DefaultRentExemptLamports = 890880

// Chain is a fake cluster. The zero value is not usable; call New.
type Chain struct {
	mu sync.Mutex

	Blockhash            solana.Hash
	LastValidBlockHeight uint64
	RentExemptLamports   uint64

	statuses     map[solana.Signature]*clients.SignatureStatus
	transactions map[solana.Signature]*clients.ConfirmedTransaction
	byAddress    map[solana.PublicKey]solana.Signature

	// Errs injects a failure per RPC method name (clients.Call*)
	Errs  map[string]error
	Calls map[string]int
}

var _ clients.ChainClient = (*Chain)(nil)

func New() *Chain {
	return &Chain{
		Blockhash:            solana.HashFromBytes([]byte("blinks-test-blockhash-0000000000")),
		LastValidBlockHeight: 150,
		RentExemptLamports:   DefaultRentExemptLamports,
		statuses:             make(map[solana.Signature]*clients.SignatureStatus),
		transactions:         make(map[solana.Signature]*clients.ConfirmedTransaction),
		byAddress:            make(map[solana.PublicKey]solana.Signature),
		Errs:                 make(map[string]error),
		Calls:                make(map[string]int),
	}
}

func (c *Chain) enter(call string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls[call]++
	return c.Errs[call]
}

// CallCount returns how often call was made
func (c *Chain) CallCount(call string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Calls[call]
}

// Fail makes every following call to method return err
func (c *Chain) Fail(call string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Errs[call] = err
}

// SetStatus records a signature status without a fetchable transaction
func (c *Chain) SetStatus(sig solana.Signature, status *clients.SignatureStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[sig] = status
}

// AddTransaction stores tx as confirmed under sig and indexes it by every
// account key so LatestSignature can find it.
func (c *Chain) AddTransaction(sig solana.Signature, slot uint64, tx *solana.Transaction, txErr any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.statuses[sig] = &clients.SignatureStatus{
		Slot:               slot,
		ConfirmationStatus: "confirmed",
		Err:                txErr,
	}
	c.transactions[sig] = &clients.ConfirmedTransaction{
		Slot:        slot,
		Transaction: tx,
		AccountKeys: append(solana.PublicKeySlice{}, tx.Message.AccountKeys...),
		Err:         txErr,
	}
	for _, key := range tx.Message.AccountKeys {
		c.byAddress[key] = sig
	}
}

// DropTransaction keeps the status but makes getTransaction return nothing
func (c *Chain) DropTransaction(sig solana.Signature) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.transactions, sig)
}

func (c *Chain) LatestBlockhash(ctx context.Context) (*types.BlockReference, error) {
	if err := c.enter(clients.CallGetLatestBlockhash); err != nil {
		return nil, types.NewTransientChainError(clients.CallGetLatestBlockhash, err)
	}
	return &types.BlockReference{
		Blockhash:            c.Blockhash,
		LastValidBlockHeight: c.LastValidBlockHeight,
	}, nil
}

func (c *Chain) MinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error) {
	if err := c.enter(clients.CallGetMinimumBalance); err != nil {
		return 0, types.NewTransientChainError(clients.CallGetMinimumBalance, err)
	}
	return c.RentExemptLamports, nil
}

func (c *Chain) SignatureStatus(ctx context.Context, sig solana.Signature) (*clients.SignatureStatus, error) {
	if err := c.enter(clients.CallGetSignatureStatuses); err != nil {
		return nil, types.NewTransientChainError(clients.CallGetSignatureStatuses, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statuses[sig], nil
}

func (c *Chain) Transaction(ctx context.Context, sig solana.Signature) (*clients.ConfirmedTransaction, error) {
	if err := c.enter(clients.CallGetTransaction); err != nil {
		return nil, types.NewTransientChainError(clients.CallGetTransaction, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transactions[sig], nil
}

func (c *Chain) LatestSignature(ctx context.Context, address solana.PublicKey) (*solana.Signature, error) {
	if err := c.enter(clients.CallGetSignaturesForAddress); err != nil {
		return nil, types.NewTransientChainError(clients.CallGetSignaturesForAddress, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	sig, ok := c.byAddress[address]
	if !ok {
		return nil, nil
	}
	return &sig, nil
}

func (c *Chain) Cluster() types.Cluster { return types.ClusterDevnet }

func (c *Chain) Close() {}

// Signature returns a deterministic fake signature derived from seed
func Signature(seed byte) solana.Signature {
	var sig solana.Signature
	for i := range sig {
		sig[i] = seed + byte(i)
	}
	return sig
}
