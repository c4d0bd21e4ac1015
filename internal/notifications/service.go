// Package notifications keeps a live, locally-observable view of the
// user's notifications: a realtime subscription when available, polling
// as the fallback, and read-state writes back to the API.
package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/bookyo/client/internal/connectivity"
	"github.com/bookyo/client/internal/logging"
	"github.com/bookyo/client/internal/models"
	"github.com/bookyo/client/internal/remote"
)

// DefaultPollInterval is how often the list is refreshed when the
// realtime subscription is unavailable.
const DefaultPollInterval = 60 * time.Second

// API is the slice of the data API the service needs.
type API interface {
	ListNotifications(ctx context.Context, recipient string, page remote.Page) ([]models.Notification, string, error)
	MarkNotificationRead(ctx context.Context, id string) error
	SubscribeNotifications(ctx context.Context) (<-chan models.Notification, error)
}

// Identity resolves the signed-in user's email.
type Identity interface {
	CurrentUserEmail(ctx context.Context) (string, error)
}

// Service maintains the notification list for the signed-in user.
type Service struct {
	api      API
	identity Identity
	monitor  connectivity.Monitor
	interval time.Duration

	mu      sync.RWMutex
	items   []models.Notification
	updates chan struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

func NewService(api API, identity Identity, monitor connectivity.Monitor) *Service {
	return &Service{
		api:      api,
		identity: identity,
		monitor:  monitor,
		interval: DefaultPollInterval,
		updates:  make(chan struct{}, 1),
	}
}

// Start launches the refresh loop and, when possible, the realtime
// subscription. It is a no-op when already running.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(runCtx)
	logging.Info("Notification service started", nil)
}

// Stop ends the refresh loop and subscription.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	logging.Info("Notification service stopped", nil)
}

// Notifications returns the current list, newest first.
func (s *Service) Notifications() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Notification, len(s.items))
	copy(out, s.items)
	return out
}

// UnreadCount returns how many notifications are unread.
func (s *Service) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, item := range s.items {
		if !item.Read {
			n++
		}
	}
	return n
}

// Updates signals after each change to the notification list. Signals
// coalesce; consumers re-read the list on each one.
func (s *Service) Updates() <-chan struct{} {
	return s.updates
}

// CheckNow refreshes the list immediately.
func (s *Service) CheckNow(ctx context.Context) error {
	return s.refresh(ctx)
}

// MarkRead marks one notification read remotely and locally.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	if err := s.api.MarkNotificationRead(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	for i := range s.items {
		if string(s.items[i].ID) == id {
			s.items[i].Read = true
			break
		}
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	go s.subscribeLoop(ctx)

	if err := s.refresh(ctx); err != nil {
		logging.Debug("Initial notification refresh failed",
			map[string]interface{}{"error": err.Error()})
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.monitor.IsConnected(ctx) {
				continue
			}
			if err := s.refresh(ctx); err != nil {
				logging.Debug("Notification refresh failed",
					map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

// subscribeLoop keeps the realtime subscription alive, re-dialing with a
// flat delay after drops. Items not addressed to the user are dropped.
func (s *Service) subscribeLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		email, err := s.identity.CurrentUserEmail(ctx)
		if err != nil {
			if !sleep(ctx, 30*time.Second) {
				return
			}
			continue
		}

		ch, err := s.api.SubscribeNotifications(ctx)
		if err != nil {
			logging.Debug("Notification subscription unavailable, polling only",
				map[string]interface{}{"error": err.Error()})
			if !sleep(ctx, 30*time.Second) {
				return
			}
			continue
		}

		for n := range ch {
			if !n.For(email) {
				continue
			}
			s.prepend(n)
		}
		// Channel closed: connection dropped, re-dial.
	}
}

func (s *Service) refresh(ctx context.Context) error {
	email, err := s.identity.CurrentUserEmail(ctx)
	if err != nil {
		return err
	}

	items, _, err := s.api.ListNotifications(ctx, email, remote.Page{Limit: 50})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Service) prepend(n models.Notification) {
	s.mu.Lock()
	for i := range s.items {
		if s.items[i].ID == n.ID {
			s.mu.Unlock()
			return
		}
	}
	s.items = append([]models.Notification{n}, s.items...)
	s.mu.Unlock()

	s.notify()
}

func (s *Service) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
