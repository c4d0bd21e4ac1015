// Package auth manages the signed-in session: sign-in/sign-up flows,
// session persistence across restarts, and the identity used to attribute
// remote writes.
package auth

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/bookyo/client/internal/errors"
	"github.com/bookyo/client/internal/kvstore"
	"github.com/bookyo/client/internal/logging"
	"github.com/bookyo/client/internal/remote"
)

// SessionKey is the preference key the serialized session lives under.
const SessionKey = "auth_session"

// State is the coarse authentication state.
type State int

const (
	StateUnknown State = iota
	StateSignedIn
	StateSignedOut
)

func (s State) String() string {
	switch s {
	case StateSignedIn:
		return "signed_in"
	case StateSignedOut:
		return "signed_out"
	default:
		return "unknown"
	}
}

// Manager wraps the auth client with local session persistence and state
// observation.
type Manager struct {
	client *remote.AuthClient
	kv     *kvstore.Store

	mu        sync.RWMutex
	state     State
	email     string
	observers []chan State
}

func NewManager(client *remote.AuthClient, kv *kvstore.Store) *Manager {
	return &Manager{client: client, kv: kv, state: StateUnknown}
}

// Restore loads a persisted session, if any, and settles the state. An
// expired or missing session resolves to signed-out rather than an error.
func (m *Manager) Restore(ctx context.Context) error {
	raw, ok, err := m.kv.Get(ctx, SessionKey)
	if err != nil {
		return err
	}
	if !ok {
		m.setState(StateSignedOut, "")
		return nil
	}

	var session remote.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		logging.Warn("Discarding unreadable persisted session", nil)
		_ = m.kv.Delete(ctx, SessionKey)
		m.setState(StateSignedOut, "")
		return nil
	}

	if !session.ExpiresAt.IsZero() && time.Now().After(session.ExpiresAt) {
		logging.Info("Persisted session expired",
			map[string]interface{}{"email": maskEmail(session.User.Username)})
		_ = m.kv.Delete(ctx, SessionKey)
		m.setState(StateSignedOut, "")
		return nil
	}

	m.client.RestoreSession(&session)
	m.setState(StateSignedIn, session.User.Username)
	logging.Info("Session restored",
		map[string]interface{}{"email": maskEmail(session.User.Username)})
	return nil
}

// SignUp registers a new account. The account stays unconfirmed until
// ConfirmSignUp succeeds.
func (m *Manager) SignUp(ctx context.Context, email, password string, attributes map[string]string) error {
	return m.client.SignUp(ctx, email, password, attributes)
}

// ConfirmSignUp confirms a registration with the emailed code.
func (m *Manager) ConfirmSignUp(ctx context.Context, email, code string) error {
	return m.client.ConfirmSignUp(ctx, email, code)
}

// SignIn authenticates and persists the resulting session.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	session, err := m.client.SignIn(ctx, email, password)
	if err != nil {
		logging.ErrorWithCode("Sign-in failed", string(errors.Code(err)), err,
			map[string]interface{}{"email": maskEmail(email)})
		return err
	}

	if raw, err := json.Marshal(session); err == nil {
		if err := m.kv.Set(ctx, SessionKey, string(raw)); err != nil {
			logging.Error("Failed to persist session", err, nil)
		}
	}

	m.setState(StateSignedIn, session.User.Username)
	logging.Info("Signed in",
		map[string]interface{}{"email": maskEmail(session.User.Username)})
	return nil
}

// SignOut ends the session locally and remotely. Local state is cleared
// even when the remote call fails.
func (m *Manager) SignOut(ctx context.Context) error {
	err := m.client.SignOut(ctx)
	if derr := m.kv.Delete(ctx, SessionKey); derr != nil && err == nil {
		err = derr
	}
	m.setState(StateSignedOut, "")
	logging.Info("Signed out", nil)
	return err
}

// CurrentUserEmail returns the signed-in user's email, or an auth error
// when nobody is signed in.
func (m *Manager) CurrentUserEmail(ctx context.Context) (string, error) {
	m.mu.RLock()
	state, email := m.state, m.email
	m.mu.RUnlock()

	if state == StateSignedIn && email != "" {
		return email, nil
	}

	user, err := m.client.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	return user.Username, nil
}

// State returns the current authentication state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Observe delivers state transitions until ctx is done. The current state
// is delivered first.
func (m *Manager) Observe(ctx context.Context) <-chan State {
	ch := make(chan State, 2)

	m.mu.Lock()
	ch <- m.state
	m.observers = append(m.observers, ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		// Removal under the lock precedes the close, so setState can
		// never send on a closed channel.
		m.mu.Lock()
		for i, o := range m.observers {
			if o == ch {
				m.observers = append(m.observers[:i], m.observers[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
		close(ch)
	}()

	return ch
}

func (m *Manager) setState(state State, email string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := m.state != state
	m.state = state
	m.email = email
	if !changed {
		return
	}
	// Sends stay under the lock: a channel still in the list cannot have
	// been closed yet.
	for _, o := range m.observers {
		select {
		case o <- state:
		default:
		}
	}
}

// maskEmail hides most of the local part for logs.
func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 1 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
