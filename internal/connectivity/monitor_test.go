package connectivity

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"
)

// fakeConn satisfies net.Conn for the probe dialer; only Close is used.
type fakeConn struct {
	net.Conn
}

func (fakeConn) Close() error { return nil }

func TestIsConnectedAnyProbeSucceeds(t *testing.T) {
	m := NewProbeMonitor([]string{"down:443", "up:443"},
		WithDialFunc(func(ctx context.Context, network, addr string) (net.Conn, error) {
			if addr == "up:443" {
				return fakeConn{}, nil
			}
			return nil, errors.New("unreachable")
		}))

	if !m.IsConnected(context.Background()) {
		t.Error("IsConnected() = false with one reachable probe, want true")
	}
}

func TestIsConnectedAllProbesFail(t *testing.T) {
	m := NewProbeMonitor([]string{"a:443", "b:443"},
		WithDialFunc(func(ctx context.Context, network, addr string) (net.Conn, error) {
			return nil, errors.New("unreachable")
		}))

	if m.IsConnected(context.Background()) {
		t.Error("IsConnected() = true with no reachable probe, want false")
	}
}

func TestObserveEmitsTransitionsOnly(t *testing.T) {
	var online atomic.Bool
	m := NewProbeMonitor([]string{"probe:443"},
		WithPollInterval(5*time.Millisecond),
		WithDialFunc(func(ctx context.Context, network, addr string) (net.Conn, error) {
			if online.Load() {
				return fakeConn{}, nil
			}
			return nil, errors.New("unreachable")
		}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := m.Observe(ctx)

	if got := <-ch; got {
		t.Fatal("initial emission = true, want false")
	}

	online.Store(true)
	select {
	case got := <-ch:
		if !got {
			t.Fatal("emission after going online = false, want true")
		}
	case <-time.After(time.Second):
		t.Fatal("no emission after going online")
	}

	online.Store(false)
	select {
	case got := <-ch:
		if got {
			t.Fatal("emission after going offline = true, want false")
		}
	case <-time.After(time.Second):
		t.Fatal("no emission after going offline")
	}
}

func TestObserveClosesOnCancel(t *testing.T) {
	m := NewProbeMonitor(nil, WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	ch := m.Observe(ctx)
	<-ch

	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("Observe channel delivered after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("Observe channel not closed after cancel")
	}
}

func TestManualTransitions(t *testing.T) {
	m := NewManual(false)

	if m.IsConnected(context.Background()) {
		t.Fatal("IsConnected() = true for a monitor created offline")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := m.Observe(ctx)
	if got := <-ch; got {
		t.Fatal("initial emission = true, want false")
	}

	m.Set(true)
	select {
	case got := <-ch:
		if !got {
			t.Fatal("emission after Set(true) = false")
		}
	case <-time.After(time.Second):
		t.Fatal("no emission after Set(true)")
	}

	// Setting the same state again must not emit.
	m.Set(true)
	select {
	case got := <-ch:
		t.Fatalf("unexpected emission %v for a non-transition", got)
	case <-time.After(50 * time.Millisecond):
	}
}
