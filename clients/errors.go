package clients

import (
	"context"
	"errors"

	"github.com/barkprotocol/blinks/types"
)

// RPC method names, used in errors, logs and metrics
const (
	CallGetLatestBlockhash      = "getLatestBlockhash"
	CallGetMinimumBalance       = "getMinimumBalanceForRentExemption"
	CallGetSignatureStatuses    = "getSignatureStatuses"
	CallGetTransaction          = "getTransaction"
	CallGetSignaturesForAddress = "getSignaturesForAddress"
)

// chainError converts an RPC failure into the service error taxonomy. The
// original error stays wrapped so callers can still detect deadlines.
func chainError(call string, err error) error {
	return types.NewTransientChainError(call, err)
}

// IsDeadline reports whether err was caused by a timed out chain call
func IsDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
