// Package blinks serves Solana Actions ("blinks") for a merchant: it describes
// payable actions, builds unsigned transfer transactions for wallets to sign,
// creates Solana Pay checkouts and verifies submitted payments on chain.
package blinks

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/barkprotocol/blinks/actions"
	"github.com/barkprotocol/blinks/checkout"
	"github.com/barkprotocol/blinks/clients"
	"github.com/barkprotocol/blinks/logger"
	"github.com/barkprotocol/blinks/metrics"
	"github.com/barkprotocol/blinks/registry"
	"github.com/barkprotocol/blinks/transaction"
	"github.com/barkprotocol/blinks/transfer"
	"github.com/barkprotocol/blinks/types"
	"github.com/barkprotocol/blinks/utils"
	"github.com/barkprotocol/blinks/verification"
)

// Version information
const (
	Version         = "1.0.0"
	ProtocolVersion = types.ActionVersion
)

// Blinks is the main struct that wires every component together
type Blinks struct {
	cfg           *types.Config
	recipient     solana.PublicKey
	defaultAmount decimal.Decimal
	presets       []decimal.Decimal
	tokens        []types.AssetKind

	chain     clients.ChainClient
	builder   *transfer.Builder
	assembler *transaction.Assembler
	verifier  *verification.VerificationService
	checkout  *checkout.Service
	rules     *registry.Registry

	logger  logger.Logger
	metrics metrics.Recorder
	timeout time.Duration
	hook    verification.PaymentHook
}

// New validates cfg and creates a Blinks instance. Without WithChainClient a
// Solana RPC client for cfg.Chain is created.
func New(cfg *types.Config, opts ...Option) (*Blinks, error) {
	if cfg == nil {
		cfg = types.DefaultConfig()
	}
	if err := utils.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	b := &Blinks{
		cfg:     cfg,
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		timeout: cfg.Chain.Timeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.timeout <= 0 {
		b.timeout = clients.DefaultTimeout
	}

	var err error
	if b.recipient, err = utils.ParseAddress(cfg.Merchant.Recipient); err != nil {
		return nil, types.WrapError(types.ErrConfigError, "invalid merchant recipient", err)
	}
	defaultAmount, err := utils.ValidateAmount(cfg.Merchant.DefaultAmount)
	if err != nil {
		return nil, types.WrapError(types.ErrConfigError, "invalid merchant default amount", err)
	}
	b.defaultAmount = *defaultAmount

	for _, p := range cfg.Merchant.Presets {
		amount, err := utils.ValidateAmount(p)
		if err != nil {
			return nil, types.WrapError(types.ErrConfigError, fmt.Sprintf("invalid preset %q", p), err)
		}
		b.presets = append(b.presets, *amount)
	}

	for _, t := range cfg.Tokens {
		asset, err := utils.ResolveAsset(cfg, t.Symbol)
		if err != nil {
			return nil, types.WrapError(types.ErrConfigError, fmt.Sprintf("token %q", t.Symbol), err)
		}
		b.tokens = append(b.tokens, asset)
	}

	if b.chain == nil {
		b.chain = clients.NewSolanaClient(cfg.Chain.Cluster, cfg.Chain.RPCURL, b.timeout, b.logger, b.metrics)
	}

	b.builder = transfer.NewBuilder(b.chain, b.logger)
	b.assembler = transaction.NewAssembler(b.chain, cfg.Chain.ComputeUnitPrice, b.logger)
	b.verifier = verification.NewVerificationService(b.chain, b.tokens, b.timeout, b.logger, b.metrics)
	if b.hook != nil {
		b.verifier.SetHook(b.hook)
	}
	b.checkout, err = checkout.NewService(cfg, b.builder, b.assembler, b.logger, b.metrics)
	if err != nil {
		return nil, err
	}
	b.rules = registry.New(cfg.Rules)

	b.logger.Info("blinks initialised", map[string]any{
		"cluster":   b.chain.Cluster().String(),
		"recipient": b.recipient.String(),
		"actions":   len(cfg.Actions),
	})
	return b, nil
}

// Config returns the configuration the instance was created with
func (b *Blinks) Config() *types.Config { return b.cfg }

func (b *Blinks) Cluster() types.Cluster { return b.chain.Cluster() }

// Rules returns the actions.json rule registry
func (b *Blinks) Rules() *registry.Registry { return b.rules }

// Checkouts exposes the checkout service, e.g. to pin references in tests
func (b *Blinks) Checkouts() *checkout.Service { return b.checkout }

// Describe returns the descriptor of the named action. "to" and "amount"
// in query override the configured recipient and add a preset.
func (b *Blinks) Describe(baseURL, name string, query url.Values) (*types.ActionDescriptor, error) {
	action, asset, err := b.action(name)
	if err != nil {
		return nil, err
	}

	recipient := b.recipient
	if query.Has("to") {
		if recipient, err = utils.ParseAddress(query.Get("to")); err != nil {
			return nil, types.WrapError(types.ErrInvalidRecipient, "invalid \"to\" recipient address", err)
		}
	}

	var requested *decimal.Decimal
	if query.Has("amount") && !asset.IsMemo() {
		if requested, err = utils.ValidateAmount(query.Get("amount")); err != nil {
			return nil, types.WrapError(types.ErrInvalidAmount, "invalid \"amount\" input", err)
		}
	}

	descriptor := actions.Describe(baseURL, action, asset, recipient, b.presets, requested)
	b.metrics.IncCounter(metrics.EventDescribe, map[string]string{"action": name, "status": "success"})
	return &descriptor, nil
}

// BuildTransaction validates the query of a POST to the named action and
// returns the unsigned transaction for account to sign.
func (b *Blinks) BuildTransaction(ctx context.Context, name string, query url.Values, account string) (*types.ActionPostResponse, error) {
	start := time.Now()
	resp, err := b.buildTransaction(ctx, name, query, account)
	b.metrics.ObserveLatency(metrics.EventTransaction, time.Since(start), map[string]string{"action": name})

	status := "success"
	if err != nil {
		status = types.ErrorCode(err)
		b.logger.Warn("transaction rejected", map[string]any{
			"action":  name,
			"account": account,
			"code":    status,
			"error":   err,
		})
	}
	b.metrics.IncCounter(metrics.EventTransaction, map[string]string{"action": name, "status": status})
	return resp, err
}

func (b *Blinks) buildTransaction(ctx context.Context, name string, query url.Values, account string) (*types.ActionPostResponse, error) {
	_, asset, err := b.action(name)
	if err != nil {
		return nil, err
	}

	req, err := utils.ValidateParams(query, asset, utils.ParamDefaults{
		Recipient: b.recipient,
		Amount:    b.defaultAmount,
	})
	if err != nil {
		return nil, err
	}

	payer, err := utils.ParseAddress(account)
	if err != nil {
		return nil, types.WrapError(types.ErrInvalidAccount, "invalid account", err)
	}

	payload, err := b.builder.Build(ctx, req, payer)
	if err != nil {
		return nil, err
	}

	unsigned, err := b.assembler.Assemble(ctx, payload, payer, transaction.Options{
		Message: postMessage(req),
	})
	if err != nil {
		return nil, err
	}

	return &types.ActionPostResponse{
		Transaction: unsigned.Transaction,
		Message:     unsigned.Message,
	}, nil
}

func postMessage(req *types.PaymentRequest) string {
	if req.Asset.IsMemo() {
		return "Memo recorded on chain"
	}
	return fmt.Sprintf("Sending %s %s to %s", req.Amount.String(), req.Asset.Symbol, req.Recipient.String())
}

// Checkout creates a Solana Pay transfer request
func (b *Blinks) Checkout(ctx context.Context, req checkout.Request) (*types.CheckoutResponse, error) {
	return b.checkout.Create(ctx, req)
}

// Verify checks a webhook delivery against the merchant recipient
func (b *Blinks) Verify(ctx context.Context, req *types.WebhookRequest) (*types.VerificationResult, error) {
	verifyReq, err := b.verifyRequest(req)
	if err != nil {
		return nil, err
	}
	return b.verifier.Verify(ctx, verifyReq)
}

// BatchVerify verifies several webhook deliveries concurrently
func (b *Blinks) BatchVerify(ctx context.Context, reqs []*types.WebhookRequest) ([]*types.VerificationResult, error) {
	verifyReqs := make([]*types.VerifyRequest, 0, len(reqs))
	for _, req := range reqs {
		verifyReq, err := b.verifyRequest(req)
		if err != nil {
			return nil, err
		}
		verifyReqs = append(verifyReqs, verifyReq)
	}
	return b.verifier.BatchVerify(ctx, verifyReqs)
}

// VerifyReference looks up the newest transaction that mentions reference
// and verifies it. Without one the result is not_found.
func (b *Blinks) VerifyReference(ctx context.Context, reference, amount, splToken string) (*types.VerificationResult, error) {
	ref, err := utils.ParseAddress(reference)
	if err != nil {
		return nil, types.WrapError(types.ErrInvalidPayload, "invalid \"reference\"", err)
	}

	sig, err := b.chain.LatestSignature(ctx, ref)
	if err != nil {
		return nil, err
	}
	if sig == nil {
		return &types.VerificationResult{
			Status:    types.StatusNotFound,
			Reference: ref.String(),
			Reason:    "no transaction references this key yet",
		}, nil
	}

	return b.Verify(ctx, &types.WebhookRequest{
		Reference: reference,
		Signature: sig.String(),
		Amount:    amount,
		SPLToken:  splToken,
	})
}

func (b *Blinks) verifyRequest(req *types.WebhookRequest) (*types.VerifyRequest, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, types.WrapError(types.ErrInvalidPayload, "invalid webhook payload", err)
	}

	// both parse after validation
	reference, _ := utils.ParseAddress(req.Reference)
	signature := solana.MustSignatureFromBase58(req.Signature)

	verifyReq := &types.VerifyRequest{
		Signature: signature,
		Reference: reference,
		Recipient: b.recipient,
	}

	if req.Amount != "" {
		amount, err := utils.ValidateAmount(req.Amount)
		if err != nil {
			return nil, types.WrapError(types.ErrInvalidAmount, "invalid \"amount\" input", err)
		}
		verifyReq.ExpectedAmount = amount
	}

	if req.SPLToken != "" {
		asset, err := utils.ResolveAsset(b.cfg, req.SPLToken)
		if err != nil || !asset.IsToken() {
			return nil, types.NewError(types.ErrInvalidMint, "invalid \"splToken\"")
		}
		verifyReq.Mint = &asset.Mint
	}

	return verifyReq, nil
}

func (b *Blinks) action(name string) (types.ActionConfig, types.AssetKind, error) {
	action, ok := b.cfg.Action(name)
	if !ok {
		return types.ActionConfig{}, types.AssetKind{}, types.NewError(types.ErrUnknownAction, fmt.Sprintf("unknown action %q", name))
	}
	asset, err := utils.ResolveAsset(b.cfg, action.Asset)
	if err != nil {
		return types.ActionConfig{}, types.AssetKind{}, err
	}
	return action, asset, nil
}

// Close releases the chain client
func (b *Blinks) Close() {
	b.chain.Close()
}
