package connectivity

import (
	"context"
	"sync"
)

// Manual is a Monitor whose state is set programmatically. Tests flip it to
// simulate going offline and reconnecting.
type Manual struct {
	mu        sync.Mutex
	connected bool
	nextID    int
	observers map[int]chan bool
}

// NewManual creates a Manual monitor with the given initial state.
func NewManual(connected bool) *Manual {
	return &Manual{
		connected: connected,
		observers: make(map[int]chan bool),
	}
}

// IsConnected reports the current state.
func (m *Manual) IsConnected(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Set changes the state, notifying observers only on an actual transition.
func (m *Manual) Set(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected == connected {
		return
	}
	m.connected = connected

	for _, ch := range m.observers {
		select {
		case ch <- connected:
		default:
		}
	}
}

// Observe emits the current state, then each transition.
func (m *Manual) Observe(ctx context.Context) <-chan bool {
	out := make(chan bool, 1)
	updates := make(chan bool, 4)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.observers[id] = updates
	initial := m.connected
	m.mu.Unlock()

	out <- initial

	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.observers, id)
			m.mu.Unlock()
			close(out)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case v := <-updates:
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
