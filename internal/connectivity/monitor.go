// Package connectivity answers "is the network usable right now" and
// reports deduplicated connectivity transitions.
package connectivity

import (
	"context"
	"net"
	"time"

	"github.com/bookyo/client/internal/logging"
)

// Monitor exposes a point-in-time connectivity check and a continuous
// observation stream. Both are needed: the retry worker wants a definitive
// answer at dispatch time, while the daemon reacts to transition edges.
type Monitor interface {
	// IsConnected reports whether the network is usable right now.
	IsConnected(ctx context.Context) bool

	// Observe emits the current state immediately, then emits again only
	// when the state changes. The channel is closed and all underlying
	// resources released when ctx is cancelled.
	Observe(ctx context.Context) <-chan bool
}

// DialFunc dials a probe endpoint. Injectable for tests.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// ProbeMonitor determines reachability by dialing well-known TCP endpoints.
// Any one successful dial counts as connected.
type ProbeMonitor struct {
	addrs        []string
	dialTimeout  time.Duration
	pollInterval time.Duration
	dial         DialFunc
}

// Option configures a ProbeMonitor.
type Option func(*ProbeMonitor)

// WithDialFunc overrides the dialer used for probes.
func WithDialFunc(dial DialFunc) Option {
	return func(m *ProbeMonitor) { m.dial = dial }
}

// WithPollInterval overrides how often Observe re-probes.
func WithPollInterval(d time.Duration) Option {
	return func(m *ProbeMonitor) { m.pollInterval = d }
}

// WithDialTimeout overrides the per-probe dial timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(m *ProbeMonitor) { m.dialTimeout = d }
}

// NewProbeMonitor creates a monitor probing the given host:port addresses.
func NewProbeMonitor(addrs []string, opts ...Option) *ProbeMonitor {
	m := &ProbeMonitor{
		addrs:        addrs,
		dialTimeout:  3 * time.Second,
		pollInterval: 5 * time.Second,
	}
	m.dial = (&net.Dialer{}).DialContext
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsConnected dials each probe address until one succeeds.
func (m *ProbeMonitor) IsConnected(ctx context.Context) bool {
	for _, addr := range m.addrs {
		dialCtx, cancel := context.WithTimeout(ctx, m.dialTimeout)
		conn, err := m.dial(dialCtx, "tcp", addr)
		cancel()
		if err == nil {
			conn.Close()
			return true
		}
	}
	return false
}

// Observe polls IsConnected and forwards deduplicated transitions.
func (m *ProbeMonitor) Observe(ctx context.Context) <-chan bool {
	ch := make(chan bool, 1)

	go func() {
		defer close(ch)

		ticker := time.NewTicker(m.pollInterval)
		defer ticker.Stop()

		last := m.IsConnected(ctx)
		select {
		case ch <- last:
		case <-ctx.Done():
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cur := m.IsConnected(ctx)
				if cur == last {
					continue
				}
				last = cur
				logging.Debug("Connectivity transition",
					map[string]interface{}{"connected": cur})
				select {
				case ch <- cur:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch
}
