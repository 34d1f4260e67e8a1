// Package network abstracts the WiFi link. Connectivity is optional: the
// device degrades to offline operation when the link cannot be established,
// it never blocks the configuration menu on it.
package network

import (
	"context"
	"errors"
	"net/netip"

	"romcart/emu/log"
)

// ErrTimeout reports that a single connection attempt timed out. It is the
// only error worth retrying.
var ErrTimeout = errors.New("network: connect timeout")

// WiFi operating modes, as persisted in settings.
const (
	ModeStation = 0
	ModeAP      = 1
)

// ConnectAttempts bounds the station connection retries at boot.
const ConnectAttempts = 3

type Client interface {
	// Connect performs a single, internally bounded connection attempt.
	Connect(ctx context.Context) error

	// CurrentIP returns the link address, or the zero Addr when offline.
	CurrentIP() netip.Addr
}

// ConnectWithRetry drives Connect up to attempts times, retrying only on
// timeout. Any other failure is final: the caller proceeds offline.
func ConnectWithRetry(ctx context.Context, c Client, attempts int) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = c.Connect(ctx); err == nil {
			return nil
		}
		if !errors.Is(err, ErrTimeout) {
			log.ModNet.ErrorZ("connection failed").Error("err", err).End()
			return err
		}
		log.ModNet.WarnZ("connection attempt timed out").
			Int("attempt", i+1).
			Int("max", attempts).
			End()
	}
	return err
}

// Loopback is the simulated link used by the harness: it connects
// immediately and reports the loopback address.
type Loopback struct {
	connected bool
}

func (l *Loopback) Connect(ctx context.Context) error {
	l.connected = true
	return nil
}

func (l *Loopback) CurrentIP() netip.Addr {
	if !l.connected {
		return netip.Addr{}
	}
	return netip.AddrFrom4([4]byte{127, 0, 0, 1})
}

// Unreachable is a link that always times out, standing in for a device out
// of WiFi range.
type Unreachable struct{}

func (Unreachable) Connect(ctx context.Context) error { return ErrTimeout }
func (Unreachable) CurrentIP() netip.Addr             { return netip.Addr{} }
