package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bookyo/client/internal/errors"
)

// AuthUser is the signed-in identity: id plus username (the email).
type AuthUser struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Session is the signed-in state held by the auth client.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      AuthUser  `json:"user"`
}

// AuthClient talks to the managed auth service: sign-up, confirm, sign-in,
// sign-out and session fetch. It holds the current session and exposes the
// token for the data API client.
type AuthClient struct {
	endpoint   string
	clientID   string
	httpClient *http.Client

	mu      sync.RWMutex
	session *Session
}

// NewAuthClient creates an auth service client.
func NewAuthClient(endpoint, clientID string) *AuthClient {
	return &AuthClient{
		endpoint: endpoint,
		clientID: clientID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SignUp registers a new account; confirmation completes it.
func (a *AuthClient) SignUp(ctx context.Context, email, password string, attributes map[string]string) error {
	body := map[string]interface{}{
		"clientId": a.clientID,
		"username": email,
		"password": password,
	}
	if len(attributes) > 0 {
		body["attributes"] = attributes
	}
	return a.post(ctx, "/signup", body, nil)
}

// ConfirmSignUp confirms a registration with the emailed code.
func (a *AuthClient) ConfirmSignUp(ctx context.Context, email, code string) error {
	body := map[string]interface{}{
		"clientId":         a.clientID,
		"username":         email,
		"confirmationCode": code,
	}
	return a.post(ctx, "/confirm", body, nil)
}

// SignIn authenticates and stores the resulting session.
func (a *AuthClient) SignIn(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]interface{}{
		"clientId": a.clientID,
		"username": email,
		"password": password,
	}

	var session Session
	if err := a.post(ctx, "/signin", body, &session); err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.session = &session
	a.mu.Unlock()

	return &session, nil
}

// SignOut invalidates the session remotely and locally. The local session
// is dropped even when the remote call fails.
func (a *AuthClient) SignOut(ctx context.Context) error {
	a.mu.Lock()
	session := a.session
	a.session = nil
	a.mu.Unlock()

	if session == nil {
		return nil
	}
	return a.post(ctx, "/signout", map[string]interface{}{"token": session.Token}, nil)
}

// CurrentUser returns the signed-in identity.
func (a *AuthClient) CurrentUser(ctx context.Context) (*AuthUser, error) {
	a.mu.RLock()
	session := a.session
	a.mu.RUnlock()

	if session == nil {
		return nil, errors.New(errors.ErrAuthSignedOut, "no signed-in user")
	}
	if !session.ExpiresAt.IsZero() && time.Now().After(session.ExpiresAt) {
		return nil, errors.New(errors.ErrAuthSignedOut, "session expired")
	}
	user := session.User
	return &user, nil
}

// Token returns the current session token, empty when signed out.
// Satisfies TokenSource for the data API client.
func (a *AuthClient) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return ""
	}
	return a.session.Token
}

// RestoreSession installs a previously persisted session.
func (a *AuthClient) RestoreSession(session *Session) {
	a.mu.Lock()
	a.session = session
	a.mu.Unlock()
}

type authErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *AuthClient) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(errors.ErrInternal, "failed to encode auth request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(errors.ErrInternal, "failed to build auth request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return classifyTransport("auth request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransport("failed to read auth response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return authError(resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return errors.Wrap(errors.ErrRemote, "failed to decode auth response", err)
		}
	}

	return nil
}

// authError maps the service's error codes onto the local taxonomy so that
// callers branch on codes, not message text.
func authError(status int, body []byte) *errors.AppError {
	var resp authErrorResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Code != "" {
		switch resp.Code {
		case "CodeMismatchException", "ExpiredCodeException":
			return errors.New(errors.ErrAuthCodeMismatch, resp.Message)
		case "UserNotConfirmedException":
			return errors.New(errors.ErrAuthNotConfirmed, resp.Message)
		case "UserNotFoundException":
			return errors.New(errors.ErrAuthUserNotFound, resp.Message)
		case "LimitExceededException", "TooManyRequestsException":
			return errors.New(errors.ErrAuthLimitExceeded, resp.Message)
		default:
			return errors.New(errors.ErrAuthFailed, resp.Message)
		}
	}
	return errors.New(errors.ErrAuthFailed,
		fmt.Sprintf("auth service responded with status %d: %s", status, truncate(body, 256)))
}
