package gate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/TheBearodactyl/apiodactyl-v2/pkg/logging"
)

// fakeProber scripts probe outcomes per attempt
type fakeProber struct {
	mu     sync.Mutex
	pings  int
	smokes int

	pingErr  func(attempt int) error
	smokeErr func(attempt int) error
}

func (f *fakeProber) Ping(ctx context.Context) error {
	f.mu.Lock()
	f.pings++
	n := f.pings
	f.mu.Unlock()
	if f.pingErr != nil {
		return f.pingErr(n)
	}
	return nil
}

func (f *fakeProber) Smoke(ctx context.Context) error {
	f.mu.Lock()
	f.smokes++
	n := f.smokes
	f.mu.Unlock()
	if f.smokeErr != nil {
		return f.smokeErr(n)
	}
	return nil
}

func (f *fakeProber) Target() string                  { return "fake://datastore" }
func (f *fakeProber) Close(ctx context.Context) error { return nil }

func (f *fakeProber) pingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

func quietLogger() *logging.Logger {
	l := logging.NewLogger(logging.ERROR, false)
	l.SetOutput(io.Discard)
	return l
}

func failUntil(k int) func(int) error {
	return func(attempt int) error {
		if attempt < k {
			return errors.New("connection refused")
		}
		return nil
	}
}

func alwaysFail(attempt int) error {
	return errors.New("connection refused")
}

func TestWaitReadyOnAttemptK(t *testing.T) {
	p := &fakeProber{pingErr: failUntil(3)}
	g := New(p, quietLogger(), Options{Interval: time.Millisecond, MaxAttempts: 3})

	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("Wait should succeed on attempt 3, got %v", err)
	}
	if got := p.pingCount(); got != 3 {
		t.Errorf("Expected exactly 3 probe attempts, got %d", got)
	}
	if g.State() != StateReady {
		t.Errorf("Expected state ready, got %s", g.State())
	}
	if g.Attempts() != 3 {
		t.Errorf("Expected attempt counter 3, got %d", g.Attempts())
	}
}

func TestWaitExhaustsAfterExactlyN(t *testing.T) {
	p := &fakeProber{pingErr: alwaysFail}
	g := New(p, quietLogger(), Options{Interval: time.Millisecond, MaxAttempts: 30})

	err := g.Wait(context.Background())
	if err == nil {
		t.Fatal("Wait should fail when the prober never succeeds")
	}
	if got := p.pingCount(); got != 30 {
		t.Errorf("Expected exactly 30 probe attempts, got %d", got)
	}
	if g.State() != StateExhausted {
		t.Errorf("Expected state exhausted, got %s", g.State())
	}
	if !strings.Contains(err.Error(), "after 30 attempts") {
		t.Errorf("Exhaustion error should identify the ceiling, got %q", err)
	}
}

func TestWaitCeilingOfOne(t *testing.T) {
	p := &fakeProber{pingErr: alwaysFail}
	g := New(p, quietLogger(), Options{Interval: time.Millisecond, MaxAttempts: 1})

	if err := g.Wait(context.Background()); err == nil {
		t.Fatal("Wait should fail with ceiling 1")
	}
	if got := p.pingCount(); got != 1 {
		t.Errorf("Expected exactly 1 probe attempt, got %d", got)
	}
}

func TestUnboundedRunsUntilCancelled(t *testing.T) {
	p := &fakeProber{pingErr: alwaysFail}
	g := New(p, quietLogger(), Options{Interval: time.Millisecond, MaxAttempts: 0})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Wait(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after cancellation")
	}

	if got := p.pingCount(); got < 5 {
		t.Errorf("Unbounded gate should keep probing, only saw %d attempts", got)
	}
	if g.State() != StateWaiting {
		t.Errorf("Cancellation should leave the gate waiting, got %s", g.State())
	}
}

func TestSmokeRunsOnlyAfterPingSuccess(t *testing.T) {
	p := &fakeProber{pingErr: failUntil(2)}
	g := New(p, quietLogger(), Options{Interval: time.Millisecond, MaxAttempts: 3, Smoke: true})

	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("Wait should succeed, got %v", err)
	}
	if p.smokes != 1 {
		t.Errorf("Smoke should run exactly once, after the first ping success, got %d", p.smokes)
	}
}

func TestSmokeFailureCountsAsFailedAttempt(t *testing.T) {
	p := &fakeProber{
		smokeErr: func(attempt int) error {
			if attempt < 3 {
				return errors.New("smoke cleanup: delete failed")
			}
			return nil
		},
	}
	g := New(p, quietLogger(), Options{Interval: time.Millisecond, MaxAttempts: 5, Smoke: true})

	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("Wait should eventually succeed, got %v", err)
	}
	if p.pingCount() != 3 {
		t.Errorf("Expected 3 attempts (2 smoke failures + 1 success), got %d pings", p.pingCount())
	}
	if g.Attempts() != 3 {
		t.Errorf("Smoke failures must count as full failed attempts, counter is %d", g.Attempts())
	}
}

func TestObserverSeesEveryAttempt(t *testing.T) {
	p := &fakeProber{pingErr: failUntil(3)}
	g := New(p, quietLogger(), Options{Interval: time.Millisecond, MaxAttempts: 3})

	var mu sync.Mutex
	var seen []int
	var lastErr error
	g.SetObserver(func(attempt int, elapsed time.Duration, err error) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, attempt)
		lastErr = err
	})

	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("Wait should succeed, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 || seen[0] != 1 || seen[1] != 2 || seen[2] != 3 {
		t.Errorf("Observer should see attempts 1,2,3, got %v", seen)
	}
	if lastErr != nil {
		t.Errorf("Final observation should carry a nil error, got %v", lastErr)
	}
}

// Authentication failures and connectivity failures must be
// indistinguishable at the gate's decision point: same attempt counting,
// same log shape modulo the message text.
func TestAuthFailureLooksLikeConnectivityFailure(t *testing.T) {
	run := func(msg string) (int, State, string) {
		p := &fakeProber{pingErr: func(int) error { return errors.New(msg) }}
		var buf bytes.Buffer
		logger := logging.NewLogger(logging.INFO, false)
		logger.SetOutput(&buf)
		g := New(p, logger, Options{Interval: time.Millisecond, MaxAttempts: 2})
		_ = g.Wait(context.Background())
		return p.pingCount(), g.State(), buf.String()
	}

	authAttempts, authState, authLog := run("authentication failed")
	connAttempts, connState, connLog := run("connection refused")

	if authAttempts != connAttempts {
		t.Errorf("Attempt counts differ: auth=%d conn=%d", authAttempts, connAttempts)
	}
	if authState != connState {
		t.Errorf("Terminal states differ: auth=%s conn=%s", authState, connState)
	}

	shape := func(s, msg string) string {
		return strings.ReplaceAll(s, msg, "ERR")
	}
	authLines := strings.Count(shape(authLog, "authentication failed"), "\n")
	connLines := strings.Count(shape(connLog, "connection refused"), "\n")
	if authLines != connLines {
		t.Errorf("Log shapes differ: auth=%d lines, conn=%d lines", authLines, connLines)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateWaiting:   "waiting",
		StateReady:     "ready",
		StateExhausted: "exhausted",
		State(42):      "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestProgressLogIncludesCeiling(t *testing.T) {
	p := &fakeProber{pingErr: alwaysFail}
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.INFO, false)
	logger.SetOutput(&buf)

	g := New(p, logger, Options{Interval: time.Millisecond, MaxAttempts: 3})
	_ = g.Wait(context.Background())

	for i := 1; i <= 3; i++ {
		want := fmt.Sprintf("attempt %d/3", i)
		if !strings.Contains(buf.String(), want) {
			t.Errorf("Progress log missing %q:\n%s", want, buf.String())
		}
	}
}
