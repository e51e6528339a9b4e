package authflow

import "time"

// Option configures the flow
type Option func(*Flow)

// WithAttemptTTL sets how long an issued authorization URL stays redeemable
func WithAttemptTTL(d time.Duration) Option {
	return func(f *Flow) {
		f.attemptTTL = d
	}
}

// WithClock overrides the flow's time source for tests
func WithClock(now func() time.Time) Option {
	return func(f *Flow) {
		f.now = now
	}
}

// WithEventSink sets the sink receiving state machine transitions
func WithEventSink(sink Sink) Option {
	return func(f *Flow) {
		f.sink = sink
	}
}

// WithDefaultReturnTo sets where completed flows land when the attempt
// carried no usable return target
func WithDefaultReturnTo(target string) Option {
	return func(f *Flow) {
		f.defaultReturnTo = target
	}
}
