// Package checkout creates Solana Pay transfer requests, each tagged with a
// freshly generated reference key.
package checkout

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/barkprotocol/blinks/logger"
	"github.com/barkprotocol/blinks/metrics"
	"github.com/barkprotocol/blinks/transaction"
	"github.com/barkprotocol/blinks/transfer"
	"github.com/barkprotocol/blinks/types"
	"github.com/barkprotocol/blinks/utils"
)

// Scheme is the URL scheme of a Solana Pay request
const Scheme = "solana"

// Request is the caller input of a checkout. Empty fields fall back to the
// merchant configuration.
type Request struct {
	Amount   string
	SPLToken string
	Label    string
	Message  string
	Memo     string

	// Account, when set, is used as fee payer to embed a ready-to-sign
	// transaction in the response.
	Account string
}

// ReferenceGenerator returns a new throwaway reference key
type ReferenceGenerator func() solana.PublicKey

// NewReference generates a random keypair and keeps only its public half
func NewReference() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

type Service struct {
	cfg       *types.Config
	recipient solana.PublicKey
	builder   *transfer.Builder
	assembler *transaction.Assembler
	reference ReferenceGenerator
	logger    logger.Logger
	metrics   metrics.Recorder
}

func NewService(
	cfg *types.Config,
	builder *transfer.Builder,
	assembler *transaction.Assembler,
	log logger.Logger,
	rec metrics.Recorder,
) (*Service, error) {
	recipient, err := utils.ParseAddress(cfg.Merchant.Recipient)
	if err != nil {
		return nil, types.WrapError(types.ErrConfigError, "invalid merchant recipient", err)
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Service{
		cfg:       cfg,
		recipient: recipient,
		builder:   builder,
		assembler: assembler,
		reference: NewReference,
		logger:    log.With(map[string]any{"component": "checkout"}),
		metrics:   rec,
	}, nil
}

// SetReferenceGenerator replaces the reference source, for deterministic tests
func (s *Service) SetReferenceGenerator(gen ReferenceGenerator) {
	s.reference = gen
}

// Create validates req and returns a transfer request descriptor
func (s *Service) Create(ctx context.Context, req Request) (*types.CheckoutResponse, error) {
	start := time.Now()
	resp, err := s.create(ctx, req)

	status := "success"
	if err != nil {
		status = types.ErrorCode(err)
	}
	s.metrics.IncCounter(metrics.EventCheckout, map[string]string{"status": status})
	s.metrics.ObserveLatency(metrics.EventCheckout, time.Since(start), nil)

	if err != nil {
		s.logger.Warn("checkout rejected", map[string]any{
			"amount":   req.Amount,
			"splToken": req.SPLToken,
			"error":    err,
		})
		return nil, err
	}
	return resp, nil
}

func (s *Service) create(ctx context.Context, req Request) (*types.CheckoutResponse, error) {
	asset := types.AssetKind{Type: types.AssetNative, Symbol: types.NativeSymbol}
	if req.SPLToken != "" {
		var err error
		asset, err = utils.ResolveAsset(s.cfg, req.SPLToken)
		if err != nil {
			return nil, err
		}
		if !asset.IsToken() {
			return nil, types.NewError(types.ErrInvalidMint, "invalid \"splToken\"")
		}
	}

	rawAmount := req.Amount
	if rawAmount == "" {
		rawAmount = s.cfg.Merchant.DefaultAmount
	}
	amount, err := utils.ValidateAmount(rawAmount)
	if err != nil {
		return nil, types.WrapError(types.ErrInvalidAmount, "invalid \"amount\" input", err)
	}

	memo, err := utils.ValidateMemo(req.Memo)
	if err != nil {
		return nil, err
	}

	label := req.Label
	if label == "" {
		label = s.cfg.Merchant.Label
	}

	reference := s.reference()
	resp := &types.CheckoutResponse{
		Reference: reference.String(),
		Recipient: s.recipient.String(),
		Amount:    amount.String(),
		Label:     label,
		Message:   req.Message,
		Memo:      memo,
	}
	if asset.IsToken() {
		resp.SPLToken = asset.Mint.String()
	}

	if req.Account != "" {
		encoded, err := s.transaction(ctx, req.Account, *amount, asset, memo, reference, req.Message)
		if err != nil {
			return nil, err
		}
		resp.Transaction = encoded
	}

	resp.URL = TransferURL(resp)
	return resp, nil
}

func (s *Service) transaction(
	ctx context.Context,
	account string,
	amount decimal.Decimal,
	asset types.AssetKind,
	memo string,
	reference solana.PublicKey,
	message string,
) (string, error) {
	payer, err := utils.ParseAddress(account)
	if err != nil {
		return "", types.WrapError(types.ErrInvalidAccount, "invalid account", err)
	}

	payload, err := s.builder.Build(ctx, &types.PaymentRequest{
		Recipient: s.recipient,
		Amount:    amount,
		Asset:     asset,
		Memo:      memo,
	}, payer)
	if err != nil {
		return "", err
	}

	unsigned, err := s.assembler.Assemble(ctx, payload, payer, transaction.Options{
		Reference: &reference,
		Message:   message,
	})
	if err != nil {
		return "", err
	}
	return unsigned.Transaction, nil
}

// TransferURL encodes resp as a solana: transfer request URL
func TransferURL(resp *types.CheckoutResponse) string {
	params := url.Values{}
	params.Set("amount", resp.Amount)
	if resp.SPLToken != "" {
		params.Set("spl-token", resp.SPLToken)
	}
	params.Set("reference", resp.Reference)
	if resp.Label != "" {
		params.Set("label", resp.Label)
	}
	if resp.Message != "" {
		params.Set("message", resp.Message)
	}
	if resp.Memo != "" {
		params.Set("memo", resp.Memo)
	}
	if resp.Transaction != "" {
		params.Set("transaction", resp.Transaction)
	}

	// url.Values encodes spaces as '+'; Solana Pay wallets expect %20
	return Scheme + ":" + resp.Recipient + "?" + strings.ReplaceAll(params.Encode(), "+", "%20")
}
