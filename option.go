package blinks

import (
	"time"

	"github.com/barkprotocol/blinks/clients"
	"github.com/barkprotocol/blinks/logger"
	"github.com/barkprotocol/blinks/metrics"
	"github.com/barkprotocol/blinks/verification"
)

type Option func(*Blinks)

func WithLogger(l logger.Logger) Option {
	return func(b *Blinks) {
		if l != nil {
			b.logger = l
		}
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(b *Blinks) {
		if r != nil {
			b.metrics = r
		}
	}
}

// WithTimeout bounds every chain call and each verification
func WithTimeout(t time.Duration) Option {
	return func(b *Blinks) {
		b.timeout = t
	}
}

// WithChainClient replaces the Solana RPC client, e.g. with chaintest.Chain
func WithChainClient(c clients.ChainClient) Option {
	return func(b *Blinks) {
		b.chain = c
	}
}

// WithPaymentHook registers fulfilment to run after a confirmed payment
func WithPaymentHook(h verification.PaymentHook) Option {
	return func(b *Blinks) {
		b.hook = h
	}
}
