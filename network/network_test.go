package network

import (
	"context"
	"errors"
	"testing"
)

// flaky times out a fixed number of attempts before connecting.
type flaky struct {
	timeouts int
	attempts int
	Loopback
}

func (f *flaky) Connect(ctx context.Context) error {
	f.attempts++
	if f.attempts <= f.timeouts {
		return ErrTimeout
	}
	return f.Loopback.Connect(ctx)
}

func TestConnectWithRetry(t *testing.T) {
	c := &flaky{timeouts: 2}
	if err := ConnectWithRetry(context.Background(), c, ConnectAttempts); err != nil {
		t.Fatal(err)
	}
	if c.attempts != 3 {
		t.Errorf("connected after %d attempts, want 3", c.attempts)
	}
	if !c.CurrentIP().IsValid() {
		t.Error("connected client reports no address")
	}
}

func TestConnectWithRetryBounded(t *testing.T) {
	c := &flaky{timeouts: 100}
	err := ConnectWithRetry(context.Background(), c, ConnectAttempts)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("got %v, want %v", err, ErrTimeout)
	}
	if c.attempts != ConnectAttempts {
		t.Errorf("made %d attempts, want %d", c.attempts, ConnectAttempts)
	}
}

// Only timeouts are worth retrying: other failures are final.
func TestConnectWithRetryFatalError(t *testing.T) {
	fatal := errors.New("no such network")
	c := &failing{err: fatal}
	err := ConnectWithRetry(context.Background(), c, ConnectAttempts)
	if !errors.Is(err, fatal) {
		t.Fatalf("got %v, want %v", err, fatal)
	}
	if c.attempts != 1 {
		t.Errorf("made %d attempts on a fatal error, want 1", c.attempts)
	}
}

type failing struct {
	err      error
	attempts int
	Unreachable
}

func (f *failing) Connect(ctx context.Context) error {
	f.attempts++
	return f.err
}

func TestUnreachable(t *testing.T) {
	err := ConnectWithRetry(context.Background(), Unreachable{}, 2)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("got %v, want %v", err, ErrTimeout)
	}
}
