package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/shopspring/decimal"

	"github.com/barkprotocol/blinks/clients"
	"github.com/barkprotocol/blinks/logger"
	"github.com/barkprotocol/blinks/metrics"
	"github.com/barkprotocol/blinks/types"
	"github.com/barkprotocol/blinks/utils"
)

// Verifier interface defines the contract for payment verification
type Verifier interface {
	Verify(ctx context.Context, req *types.VerifyRequest) (*types.VerificationResult, error)
}

// PaymentHook is invoked once a payment is confirmed. Fulfilment lives
// behind it; a hook error is logged and does not change the result.
type PaymentHook interface {
	PaymentConfirmed(ctx context.Context, result *types.VerificationResult) error
}

// VerificationService checks a submitted signature against the expected
// reference and recipient. It holds no per-payment state, so verifying the
// same signature twice against an unchanged chain gives the same result.
type VerificationService struct {
	chain   clients.ChainClient
	tokens  []types.AssetKind
	timeout time.Duration
	hook    PaymentHook
	logger  logger.Logger
	metrics metrics.Recorder
}

var _ Verifier = (*VerificationService)(nil)

// NewVerificationService creates a new verification service. tokens lists
// the mints whose transfers count towards a payment.
func NewVerificationService(
	chain clients.ChainClient,
	tokens []types.AssetKind,
	timeout time.Duration,
	log logger.Logger,
	rec metrics.Recorder,
) *VerificationService {
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &VerificationService{
		chain:   chain,
		tokens:  tokens,
		timeout: timeout,
		logger:  log.With(map[string]any{"component": "verifier"}),
		metrics: rec,
	}
}

// SetHook registers the collaborator notified on confirmed payments
func (s *VerificationService) SetHook(hook PaymentHook) {
	s.hook = hook
}

// Verify runs the verification state machine for one signature. Mismatches
// are reported through the result status; the error is only set for chain
// failures the caller may retry.
func (s *VerificationService) Verify(ctx context.Context, req *types.VerifyRequest) (*types.VerificationResult, error) {
	// Create timeout context
	verifyCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		verifyCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.verify(verifyCtx, req)
	s.metrics.ObserveLatency(metrics.EventVerification, time.Since(start), nil)

	status := types.ErrorCode(err)
	if err == nil {
		status = string(result.Status)
	}
	s.metrics.IncCounter(metrics.EventVerification, map[string]string{"status": status})

	if err != nil {
		s.logger.Error("payment verification failed", map[string]any{
			"signature": req.Signature.String(),
			"reference": req.Reference.String(),
			"error":     err,
		})
		return nil, err
	}

	s.logger.Info("payment verified", map[string]any{
		"signature": result.Signature,
		"reference": result.Reference,
		"status":    string(result.Status),
	})

	if result.Status.IsConfirmed() && s.hook != nil {
		if err := s.hook.PaymentConfirmed(ctx, result); err != nil {
			s.logger.Error("payment hook failed", map[string]any{
				"signature": result.Signature,
				"error":     err,
			})
		}
	}

	return result, nil
}

func (s *VerificationService) verify(ctx context.Context, req *types.VerifyRequest) (*types.VerificationResult, error) {
	result := &types.VerificationResult{
		Signature: req.Signature.String(),
		Reference: req.Reference.String(),
	}

	status, err := s.chain.SignatureStatus(ctx, req.Signature)
	if err != nil {
		if clients.IsDeadline(err) {
			return notFound(result, "signature not found before timeout"), nil
		}
		return nil, err
	}
	if status == nil {
		return notFound(result, "signature not found"), nil
	}
	result.Slot = status.Slot
	if status.Err != nil {
		result.Status = types.StatusFailed
		result.Reason = fmt.Sprintf("transaction failed: %v", status.Err)
		return result, nil
	}
	if !status.IsConfirmed() {
		return notFound(result, fmt.Sprintf("signature is only %s", status.ConfirmationStatus)), nil
	}

	// The status and the transaction are separate reads; do not assume the
	// second sees what the first did.
	confirmed, err := s.chain.Transaction(ctx, req.Signature)
	if err != nil {
		if clients.IsDeadline(err) {
			return notFound(result, "transaction not fetched before timeout"), nil
		}
		return nil, err
	}
	if confirmed == nil || confirmed.Transaction == nil {
		return notFound(result, "confirmed transaction could not be fetched"), nil
	}
	if confirmed.Err != nil {
		result.Status = types.StatusFailed
		result.Reason = fmt.Sprintf("transaction failed: %v", confirmed.Err)
		return result, nil
	}
	result.Timestamp = confirmed.BlockTime

	if !containsKey(confirmed.AccountKeys, req.Reference) {
		result.Status = types.StatusReferenceMismatch
		result.Reason = "reference not found in transaction account keys"
		return result, nil
	}

	match, err := s.findTransfer(confirmed, req)
	if err != nil {
		result.Status = types.StatusRecipientMismatch
		result.Reason = err.Error()
		return result, nil
	}
	if match == nil {
		result.Status = types.StatusRecipientMismatch
		result.Reason = "no transfer to the recipient found"
		return result, nil
	}

	result.VerifiedRecipient = req.Recipient.String()
	result.VerifiedAmount = &match.amount
	result.Token = match.token
	result.Sender = match.sender.String()

	if req.ExpectedAmount != nil && match.amount.LessThan(*req.ExpectedAmount) {
		result.Status = types.StatusAmountMismatch
		result.Reason = fmt.Sprintf("transferred %s %s, expected %s", match.amount.String(), match.token, req.ExpectedAmount.String())
		return result, nil
	}

	result.Status = types.StatusConfirmed
	return result, nil
}

func containsKey(keys solana.PublicKeySlice, key solana.PublicKey) bool {
	for _, k := range keys {
		if k.Equals(key) {
			return true
		}
	}
	return false
}

func notFound(result *types.VerificationResult, reason string) *types.VerificationResult {
	result.Status = types.StatusNotFound
	result.Reason = reason
	return result
}

type transferMatch struct {
	amount decimal.Decimal
	token  string
	sender solana.PublicKey
}

// findTransfer returns the first System transfer or SPL transfer whose
// destination is the recipient (or the recipient's associated token account).
// Multiple partial transfers are not summed.
func (s *VerificationService) findTransfer(confirmed *clients.ConfirmedTransaction, req *types.VerifyRequest) (*transferMatch, error) {
	destinations, err := s.tokenDestinations(req)
	if err != nil {
		return nil, err
	}

	keys := confirmed.AccountKeys
	for _, inst := range confirmed.Transaction.Message.Instructions {
		if int(inst.ProgramIDIndex) >= len(keys) {
			continue
		}
		program := keys[inst.ProgramIDIndex]

		// Build account metas from the instruction
		accountMetas := make([]*solana.AccountMeta, len(inst.Accounts))
		valid := true
		for i, accIdx := range inst.Accounts {
			if int(accIdx) >= len(keys) {
				valid = false
				break
			}
			accountMetas[i] = &solana.AccountMeta{
				PublicKey: keys[accIdx],
			}
		}
		if !valid {
			continue
		}

		switch {
		case program.Equals(solana.SystemProgramID) && req.Mint == nil:
			sysInst, err := system.DecodeInstruction(accountMetas, inst.Data)
			if err != nil {
				continue
			}
			transfer, ok := sysInst.Impl.(*system.Transfer)
			if !ok || transfer.Lamports == nil || len(accountMetas) < 2 {
				continue
			}
			if accountMetas[1].PublicKey.Equals(req.Recipient) {
				return &transferMatch{
					amount: utils.FromLamports(*transfer.Lamports),
					token:  types.NativeSymbol,
					sender: accountMetas[0].PublicKey,
				}, nil
			}

		case program.Equals(solana.TokenProgramID):
			tokInst, err := token.DecodeInstruction(accountMetas, inst.Data)
			if err != nil {
				continue
			}
			if m := matchTokenTransfer(tokInst, accountMetas, destinations); m != nil {
				return m, nil
			}
		}
	}

	return nil, nil
}

func matchTokenTransfer(inst *token.Instruction, accounts []*solana.AccountMeta, destinations map[solana.PublicKey]types.AssetKind) *transferMatch {
	switch t := inst.Impl.(type) {
	case *token.TransferChecked:
		// source, mint, destination, owner
		if t.Amount == nil || len(accounts) < 4 {
			return nil
		}
		asset, ok := destinations[accounts[2].PublicKey]
		if !ok || !accounts[1].PublicKey.Equals(asset.Mint) {
			return nil
		}
		return &transferMatch{
			amount: utils.FromBaseUnits(*t.Amount, asset.Decimals),
			token:  asset.Symbol,
			sender: accounts[3].PublicKey,
		}

	case *token.Transfer:
		// source, destination, owner
		if t.Amount == nil || len(accounts) < 3 {
			return nil
		}
		asset, ok := destinations[accounts[1].PublicKey]
		if !ok {
			return nil
		}
		return &transferMatch{
			amount: utils.FromBaseUnits(*t.Amount, asset.Decimals),
			token:  asset.Symbol,
			sender: accounts[2].PublicKey,
		}
	}
	return nil
}

// tokenDestinations maps the recipient's associated token account of every
// accepted mint to its asset.
func (s *VerificationService) tokenDestinations(req *types.VerifyRequest) (map[solana.PublicKey]types.AssetKind, error) {
	destinations := make(map[solana.PublicKey]types.AssetKind, len(s.tokens))
	for _, asset := range s.tokens {
		if req.Mint != nil && !asset.Mint.Equals(*req.Mint) {
			continue
		}
		ata, _, err := solana.FindAssociatedTokenAddress(req.Recipient, asset.Mint)
		if err != nil {
			return nil, fmt.Errorf("derive token account for %s: %w", asset.Symbol, err)
		}
		destinations[ata] = asset
	}
	if req.Mint != nil && len(destinations) == 0 {
		return nil, fmt.Errorf("token %s is not accepted", req.Mint.String())
	}
	return destinations, nil
}

// BatchVerify verifies several deliveries concurrently. Results keep the
// order of reqs; the first chain error is returned alongside them.
func (s *VerificationService) BatchVerify(ctx context.Context, reqs []*types.VerifyRequest) ([]*types.VerificationResult, error) {
	if len(reqs) == 0 {
		return nil, types.NewError(types.ErrInvalidPayload, "no signatures to verify")
	}

	type verificationResult struct {
		index  int
		result *types.VerificationResult
		err    error
	}

	resultChan := make(chan verificationResult, len(reqs))
	for i, req := range reqs {
		go func(index int, r *types.VerifyRequest) {
			result, err := s.Verify(ctx, r)
			resultChan <- verificationResult{index: index, result: result, err: err}
		}(i, req)
	}

	results := make([]*types.VerificationResult, len(reqs))
	errs := make([]error, len(reqs))
	for i := 0; i < len(reqs); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-resultChan:
			results[res.index] = res.result
			errs[res.index] = res.err
		}
	}

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
