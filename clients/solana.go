package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/barkprotocol/blinks/logger"
	"github.com/barkprotocol/blinks/metrics"
	"github.com/barkprotocol/blinks/types"
)

// DefaultTimeout bounds a single RPC call when none is configured
const DefaultTimeout = 15 * time.Second

// SolanaClient talks to a Solana JSON-RPC endpoint
type SolanaClient struct {
	cluster types.Cluster
	rpcURL  string
	client  *rpc.Client
	timeout time.Duration
	logger  logger.Logger
	metrics metrics.Recorder
}

var _ ChainClient = (*SolanaClient)(nil)

// NewSolanaClient creates a Solana client for cluster. An empty rpcURL uses
// the cluster's public endpoint.
func NewSolanaClient(cluster types.Cluster, rpcURL string, timeout time.Duration, log logger.Logger, rec metrics.Recorder) *SolanaClient {
	if rpcURL == "" {
		rpcURL = cluster.DefaultRPCURL()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	return &SolanaClient{
		cluster: cluster,
		rpcURL:  rpcURL,
		client:  rpc.New(rpcURL),
		timeout: timeout,
		logger:  log.With(map[string]any{"component": "solana-rpc", "cluster": cluster.String()}),
		metrics: rec,
	}
}

// call runs fn under the client timeout and records its latency and outcome
func (c *SolanaClient) call(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := fn(callCtx)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		// transports do not always wrap the context error
		err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	c.metrics.ObserveLatency(metrics.EventChainCall, time.Since(start), map[string]string{"action": name})

	status := "ok"
	if err != nil {
		status = "error"
		c.logger.Warn("rpc call failed", map[string]any{
			"call":  name,
			"error": err,
		})
	}
	c.metrics.IncCounter(metrics.EventChainCall, map[string]string{"action": name, "status": status})

	if err != nil {
		return chainError(name, err)
	}
	return nil
}

func (c *SolanaClient) LatestBlockhash(ctx context.Context) (*types.BlockReference, error) {
	var ref *types.BlockReference
	err := c.call(ctx, CallGetLatestBlockhash, func(ctx context.Context) error {
		out, err := c.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
		if err != nil {
			return err
		}
		if out == nil || out.Value == nil {
			return errors.New("empty blockhash response")
		}
		ref = &types.BlockReference{
			Blockhash:            out.Value.Blockhash,
			LastValidBlockHeight: out.Value.LastValidBlockHeight,
		}
		return nil
	})
	return ref, err
}

func (c *SolanaClient) MinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error) {
	var lamports uint64
	err := c.call(ctx, CallGetMinimumBalance, func(ctx context.Context) error {
		var err error
		lamports, err = c.client.GetMinimumBalanceForRentExemption(ctx, dataSize, rpc.CommitmentConfirmed)
		return err
	})
	return lamports, err
}

func (c *SolanaClient) SignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error) {
	var status *SignatureStatus
	err := c.call(ctx, CallGetSignatureStatuses, func(ctx context.Context) error {
		out, err := c.client.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			return err
		}
		if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
			return nil
		}
		status = &SignatureStatus{
			Slot:               out.Value[0].Slot,
			ConfirmationStatus: string(out.Value[0].ConfirmationStatus),
			Err:                out.Value[0].Err,
		}
		return nil
	})
	return status, err
}

func (c *SolanaClient) Transaction(ctx context.Context, sig solana.Signature) (*ConfirmedTransaction, error) {
	var confirmed *ConfirmedTransaction
	err := c.call(ctx, CallGetTransaction, func(ctx context.Context) error {
		maxVersion := uint64(0)
		out, err := c.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
			Encoding:                       solana.EncodingBase64,
			Commitment:                     rpc.CommitmentConfirmed,
			MaxSupportedTransactionVersion: &maxVersion,
		})
		if errors.Is(err, rpc.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if out == nil || out.Transaction == nil {
			return nil
		}

		tx, err := out.Transaction.GetTransaction()
		if err != nil {
			return err
		}

		keys := append(solana.PublicKeySlice{}, tx.Message.AccountKeys...)
		confirmed = &ConfirmedTransaction{
			Slot:        out.Slot,
			Transaction: tx,
		}
		if out.Meta != nil {
			keys = append(keys, out.Meta.LoadedAddresses.Writable...)
			keys = append(keys, out.Meta.LoadedAddresses.ReadOnly...)
			confirmed.Err = out.Meta.Err
		}
		confirmed.AccountKeys = keys
		if out.BlockTime != nil {
			t := out.BlockTime.Time()
			confirmed.BlockTime = &t
		}
		return nil
	})
	return confirmed, err
}

func (c *SolanaClient) LatestSignature(ctx context.Context, address solana.PublicKey) (*solana.Signature, error) {
	var sig *solana.Signature
	err := c.call(ctx, CallGetSignaturesForAddress, func(ctx context.Context) error {
		limit := 1
		out, err := c.client.GetSignaturesForAddressWithOpts(ctx, address, &rpc.GetSignaturesForAddressOpts{
			Limit:      &limit,
			Commitment: rpc.CommitmentConfirmed,
		})
		if err != nil {
			return err
		}
		if len(out) == 0 || out[0] == nil {
			return nil
		}
		s := out[0].Signature
		sig = &s
		return nil
	})
	return sig, err
}

func (c *SolanaClient) Cluster() types.Cluster { return c.cluster }

func (c *SolanaClient) Close() {
	if err := c.client.Close(); err != nil {
		c.logger.Debug("rpc client close", map[string]any{"error": err})
	}
}
