package gate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/TheBearodactyl/apiodactyl-v2/pkg/config"
	"github.com/TheBearodactyl/apiodactyl-v2/pkg/logging"
	"github.com/TheBearodactyl/apiodactyl-v2/pkg/probe"
)

// State is the readiness state of the gate. Ready and Exhausted are
// terminal; nothing transitions out of them.
type State int

const (
	StateWaiting State = iota
	StateReady
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateReady:
		return "ready"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Observer is notified after every probe attempt. attempt is 1-based,
// elapsed is the attempt's duration, err is nil on success.
type Observer func(attempt int, elapsed time.Duration, err error)

// Options configures the retry policy
type Options struct {
	Interval       time.Duration // fixed delay between attempts
	MaxAttempts    int           // 0 means retry forever
	AttemptTimeout time.Duration // per-attempt context deadline
	Smoke          bool          // run the write+delete smoke test after ping
}

// Gate drives a prober on a fixed interval until the datastore is ready
// or the attempt ceiling is reached. Attempts are strictly sequential;
// there is no backoff, so the total wait is bounded by
// Interval * MaxAttempts when a ceiling is configured.
type Gate struct {
	prober   probe.Prober
	logger   *logging.Logger
	opts     Options
	observer Observer

	mu       sync.RWMutex
	attempts int
	state    State
}

// New creates a gate around a prober
func New(p probe.Prober, logger *logging.Logger, opts Options) *Gate {
	if opts.Interval <= 0 {
		opts.Interval = config.DefaultInterval
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = config.DefaultAttemptTimeout
	}
	return &Gate{
		prober: p,
		logger: logger,
		opts:   opts,
		state:  StateWaiting,
	}
}

// SetObserver registers a per-attempt callback. Must be called before Wait.
func (g *Gate) SetObserver(obs Observer) {
	g.observer = obs
}

// Attempts returns the number of probe attempts made so far. Safe to call
// from another goroutine while Wait runs.
func (g *Gate) Attempts() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.attempts
}

// State returns the current readiness state. Safe to call from another
// goroutine while Wait runs.
func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Wait blocks until the prober reports ready, the attempt ceiling is
// reached, or ctx is cancelled. On success the gate is Ready and the
// return is nil. On exhaustion the gate is Exhausted and the returned
// error identifies the ceiling; the caller treats it as a fatal startup
// abort. Cancellation surfaces as ctx.Err() with the gate left Waiting.
func (g *Gate) Wait(ctx context.Context) error {
	target := g.prober.Target()
	if g.opts.MaxAttempts > 0 {
		g.logger.Info(fmt.Sprintf("Waiting for %s (up to %d attempts, %s apart)",
			target, g.opts.MaxAttempts, g.opts.Interval))
	} else {
		g.logger.Info(fmt.Sprintf("Waiting for %s (unbounded, %s apart)", target, g.opts.Interval))
	}

	for {
		n := g.beginAttempt()

		start := time.Now()
		err := g.probeOnce(ctx)
		elapsed := time.Since(start)

		if g.observer != nil {
			g.observer(n, elapsed, err)
		}

		if err == nil {
			g.setState(StateReady)
			g.logger.Info(fmt.Sprintf("Datastore ready after %d attempt(s)", n))
			return nil
		}

		// A cancelled context also fails the probe; report the
		// cancellation rather than counting it as exhaustion.
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if g.opts.MaxAttempts > 0 {
			g.logger.Info(fmt.Sprintf("Datastore not ready (attempt %d/%d): %v",
				n, g.opts.MaxAttempts, err))
			if n >= g.opts.MaxAttempts {
				g.setState(StateExhausted)
				return fmt.Errorf("datastore %s unavailable after %d attempts: %w",
					target, n, err)
			}
		} else {
			g.logger.Info(fmt.Sprintf("Datastore not ready (attempt %d): %v", n, err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.opts.Interval):
		}
	}
}

// probeOnce performs one bounded attempt: a ping, then the smoke test
// when enabled. The smoke test never runs unless the ping succeeded.
func (g *Gate) probeOnce(ctx context.Context) error {
	actx, cancel := context.WithTimeout(ctx, g.opts.AttemptTimeout)
	defer cancel()

	if err := g.prober.Ping(actx); err != nil {
		return err
	}
	if g.opts.Smoke {
		return g.prober.Smoke(actx)
	}
	return nil
}

func (g *Gate) beginAttempt() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attempts++
	return g.attempts
}

func (g *Gate) setState(s State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = s
}
