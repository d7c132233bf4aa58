package metrics

import "time"

// Recorder receives counters and latencies. Labels not known to an
// implementation are dropped.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// Event names
const (
	EventDescribe     = "describe"
	EventTransaction  = "transaction"
	EventCheckout     = "checkout"
	EventVerification = "verification"
	EventChainCall    = "chain_call"
	EventHTTPRequest  = "http_request"
)

// NoopRecorder discards everything; it is the default when metrics are disabled
type NoopRecorder struct{}

var (
	_ Recorder = NoopRecorder{}
	_ Recorder = (*PrometheusRecorder)(nil)
)

func (NoopRecorder) IncCounter(string, map[string]string)                    {}
func (NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}
