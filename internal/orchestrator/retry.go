package orchestrator

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/EchoingVesper/vespera-atelier-sub002/internal/state"
)

const (
	// defaultCallTimeout bounds a single repository call.
	defaultCallTimeout = 5 * time.Second
	// defaultOpTimeout bounds a whole coordinator operation.
	defaultOpTimeout = 15 * time.Second
	// synthesisTimeout bounds SynthesizeResults, which reads whole
	// subtrees and deserves more headroom.
	synthesisTimeout = 30 * time.Second

	retryAttempts  = 3
	retryBaseDelay = 250 * time.Millisecond
)

// Timeouts carries the deadlines the coordinator runs under. Zero fields
// take the defaults above.
type Timeouts struct {
	// PerCall bounds a single repository call.
	PerCall time.Duration
	// PerOp bounds most coordinator operations.
	PerOp time.Duration
	// Synthesis bounds SynthesizeResults.
	Synthesis time.Duration
}

func (t Timeouts) perCall() time.Duration {
	if t.PerCall > 0 {
		return t.PerCall
	}
	return defaultCallTimeout
}

func (t Timeouts) perOp() time.Duration {
	if t.PerOp > 0 {
		return t.PerOp
	}
	return defaultOpTimeout
}

func (t Timeouts) synthesis() time.Duration {
	if t.Synthesis > 0 {
		return t.Synthesis
	}
	return synthesisTimeout
}

// retryable reports whether an error is worth another attempt. Only
// recoverable infrastructure errors qualify; validation, state, and
// not-found errors surface immediately.
func retryable(err error) bool {
	var infra *state.InfraError
	if errors.As(err, &infra) {
		return infra.Recoverable
	}
	return false
}

// withRetry runs fn under a per-call timeout with bounded retries and
// exponential backoff. fn is retried only on recoverable infrastructure
// errors. The operation name appears in logs and timeout errors.
//
// fn runs on its own goroutine so the deadline holds even when fn does
// not watch its context. A call that outlives the deadline is abandoned,
// not killed: it may still finish against the store, which is why the
// resulting TimeoutError reports the outcome as unknown.
func (c *Coordinator) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := retryBaseDelay

	for attempt := 1; attempt <= retryAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.timeouts.perCall())
		start := time.Now()

		done := make(chan error, 1)
		go func() { done <- fn(callCtx) }()

		var err error
		select {
		case err = <-done:
		case <-callCtx.Done():
			cancel()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &TimeoutError{Op: op, Elapsed: time.Since(start), OutcomeUnknown: true}
		}
		deadlined := callCtx.Err() == context.DeadlineExceeded
		cancel()

		if err == nil {
			debugLog("%s succeeded on attempt %d (%s)", op, attempt, time.Since(start))
			return nil
		}
		if deadlined && ctx.Err() == nil {
			err = &TimeoutError{Op: op, Elapsed: time.Since(start), OutcomeUnknown: true}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err

		if !retryable(err) || attempt == retryAttempts {
			return lastErr
		}

		log.Printf("[coordinator] %s attempt %d failed, retrying in %s: %v", op, attempt, delay, err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return lastErr
}

// opDeadline returns a context bounded by the per-operation timeout, with
// elapsed tracking for the timeout error.
func (c *Coordinator) opDeadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
