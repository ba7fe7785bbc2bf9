// Package session holds the authenticated user and token for the process.
//
// The Store is the only writer of the persisted session. States move
// anonymous → authenticating → authenticated on login, back to anonymous on
// failure or logout, and through refreshing when a persisted session is
// restored at start-up.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/aiodash/aiodash/internal/logging"
	"github.com/aiodash/aiodash/internal/metrics"
	"github.com/aiodash/aiodash/pkg/client"
	"github.com/aiodash/aiodash/pkg/protocol"
)

var (
	// ErrNotAuthenticated is returned by operations that need a signed-in user.
	ErrNotAuthenticated = errors.New("session: not authenticated")
	// ErrSessionExpired is returned by RefreshUser when the stored token has
	// passed its expiry.
	ErrSessionExpired = errors.New("session: stored token expired")
	// ErrMissingToken is returned when a login response carries no token.
	ErrMissingToken = errors.New("session: response did not include an access token")
)

// State is the session lifecycle state.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticating
	StateAuthenticated
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Session is a snapshot of the store.
type Session struct {
	User            *protocol.User
	Token           string
	IsAuthenticated bool
	IsLoading       bool
	State           State
}

// IsAdmin reports whether the session belongs to an authenticated admin.
func (s Session) IsAdmin() bool {
	return s.IsAuthenticated && s.User.IsAdmin()
}

// API is the subset of the HTTP client the store calls.
type API interface {
	Post(ctx context.Context, path string, query url.Values, body, out any, opts ...client.Option) error
}

// Registered is the outcome of a successful registration.
type Registered struct {
	User *protocol.User
	// VerificationPending is set when the backend issued no token and the
	// account must be verified by email before signing in.
	VerificationPending bool
	Message             string
}

// UserPatch is a partial update applied to the cached user.
type UserPatch struct {
	Email            *string
	FullName         *string
	Company          *string
	SubscriptionPlan *string
	IsVerified       *bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store owns the session.
type Store struct {
	storage Storage
	api     API
	now     func() time.Time
	log     *zap.Logger

	mu        sync.RWMutex
	state     State
	user      *protocol.User
	token     string
	listeners map[int]func(Session)
	nextID    int
}

// NewStore creates an anonymous store. Call RefreshUser to restore a
// persisted session.
func NewStore(storage Storage, api API, opts ...Option) *Store {
	s := &Store{
		storage:   storage,
		api:       api,
		now:       time.Now,
		log:       logging.Named("session"),
		listeners: make(map[int]func(Session)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current session.
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Session {
	return Session{
		User:            cloneUser(s.user),
		Token:           s.token,
		IsAuthenticated: s.state == StateAuthenticated && s.user != nil && s.token != "",
		IsLoading:       s.state == StateAuthenticating || s.state == StateRefreshing,
		State:           s.state,
	}
}

// OnChange registers fn to receive every session change and returns a
// function that removes it.
func (s *Store) OnChange(fn func(Session)) (remove func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// TokenSource reads the persisted token for the HTTP client.
func (s *Store) TokenSource() client.TokenSource {
	return client.TokenSourceFunc(s.storage.LoadToken)
}

// Login authenticates and persists the token and user before returning.
// On failure nothing is persisted and the store is anonymous.
func (s *Store) Login(ctx context.Context, req protocol.LoginRequest) (*protocol.User, error) {
	s.setState(StateAuthenticating)

	var resp protocol.AuthResponse
	err := s.api.Post(ctx, protocol.PathLogin, nil, req, &resp, client.WithoutAuth(), client.WithRoute("login"))
	if err == nil && (resp.AccessToken == "" || resp.User == nil) {
		err = ErrMissingToken
	}
	if err != nil {
		s.reset()
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if err := s.persist(resp.AccessToken, resp.User); err != nil {
		s.reset()
		return nil, err
	}
	s.log.Info("signed in", logging.UserID(resp.User.ID), zap.String("role", resp.User.Role))
	return cloneUser(resp.User), nil
}

// Register creates an account. When the backend issues a token the store
// signs in; otherwise the account awaits email verification and the store
// stays anonymous.
func (s *Store) Register(ctx context.Context, req protocol.RegisterRequest) (Registered, error) {
	s.setState(StateAuthenticating)

	var resp protocol.AuthResponse
	err := s.api.Post(ctx, protocol.PathRegister, nil, req, &resp, client.WithoutAuth(), client.WithRoute("register"))
	if err != nil {
		s.reset()
		return Registered{}, fmt.Errorf("registration failed: %w", err)
	}

	if resp.AccessToken == "" || resp.User == nil {
		s.reset()
		return Registered{
			User:                cloneUser(resp.User),
			VerificationPending: true,
			Message:             resp.Message,
		}, nil
	}
	if err := s.persist(resp.AccessToken, resp.User); err != nil {
		s.reset()
		return Registered{}, err
	}
	return Registered{User: cloneUser(resp.User), Message: resp.Message}, nil
}

func (s *Store) persist(token string, user *protocol.User) error {
	if err := s.storage.SaveToken(token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	if err := s.storage.SaveUser(user); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	s.set(StateAuthenticated, cloneUser(user), token)
	return nil
}

// Logout clears the persisted session, then the in-memory one. The store is
// anonymous afterwards even if clearing storage fails.
func (s *Store) Logout() error {
	err := s.storage.Clear()
	s.set(StateAnonymous, nil, "")
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// HandleUnauthorized signs out after the backend rejects token. A rejection
// of a token the store no longer holds, such as one sent before a fresh
// login, is ignored.
func (s *Store) HandleUnauthorized(token string) {
	s.mu.RLock()
	snap := s.snapshotLocked()
	s.mu.RUnlock()
	if !snap.IsAuthenticated {
		return
	}
	if token != snap.Token {
		s.log.Debug("ignoring 401 for a replaced token")
		return
	}
	s.log.Warn("token rejected by backend, signing out")
	if err := s.Logout(); err != nil {
		s.log.Error("sign out failed", zap.Error(err))
	}
}

// RefreshUser restores the persisted session without a network call. A
// stored JWT whose exp claim has passed is discarded with ErrSessionExpired;
// opaque tokens are trusted as-is.
func (s *Store) RefreshUser(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return s.Snapshot(), err
	}
	s.setState(StateRefreshing)

	token, err := s.storage.LoadToken()
	if err != nil {
		s.set(StateAnonymous, nil, "")
		return s.Snapshot(), fmt.Errorf("load token: %w", err)
	}
	user, err := s.storage.LoadUser()
	if err != nil {
		s.set(StateAnonymous, nil, "")
		return s.Snapshot(), fmt.Errorf("load user: %w", err)
	}

	if token == "" || user == nil {
		if token != "" || user != nil {
			if err := s.storage.Clear(); err != nil {
				s.log.Warn("clear incomplete session", zap.Error(err))
			}
		}
		s.set(StateAnonymous, nil, "")
		return s.Snapshot(), nil
	}
	if tokenExpired(token, s.now()) {
		s.log.Info("stored session expired")
		if err := s.storage.Clear(); err != nil {
			s.log.Warn("clear expired session", zap.Error(err))
		}
		s.set(StateAnonymous, nil, "")
		return s.Snapshot(), ErrSessionExpired
	}

	s.set(StateAuthenticated, user, token)
	return s.Snapshot(), nil
}

// UpdateUser merges patch into the cached user and persists it. No request
// is sent to the backend. If the session is signed out or replaced while the
// profile is being written, the merge is dropped and ErrNotAuthenticated is
// returned.
func (s *Store) UpdateUser(patch UserPatch) (*protocol.User, error) {
	s.mu.RLock()
	current := cloneUser(s.user)
	state, token := s.state, s.token
	s.mu.RUnlock()
	if current == nil || token == "" {
		return nil, ErrNotAuthenticated
	}

	if patch.Email != nil {
		current.Email = *patch.Email
	}
	if patch.FullName != nil {
		current.FullName = *patch.FullName
	}
	if patch.Company != nil {
		current.Company = *patch.Company
	}
	if patch.SubscriptionPlan != nil {
		current.SubscriptionPlan = *patch.SubscriptionPlan
	}
	if patch.IsVerified != nil {
		current.IsVerified = *patch.IsVerified
	}

	if err := s.storage.SaveUser(current); err != nil {
		return nil, fmt.Errorf("persist user: %w", err)
	}
	if !s.swapUser(state, token, current) {
		s.log.Debug("session changed during profile update", logging.UserID(current.ID))
		return nil, ErrNotAuthenticated
	}
	return current, nil
}

// RequestPasswordReset asks the backend to email a reset link.
func (s *Store) RequestPasswordReset(ctx context.Context, email string) error {
	req := protocol.PasswordResetRequest{Email: email}
	if err := s.api.Post(ctx, protocol.PathPasswordReset, nil, req, nil, client.WithoutAuth()); err != nil {
		return fmt.Errorf("password reset request failed: %w", err)
	}
	return nil
}

// ConfirmPasswordReset sets a new password using an emailed reset token.
func (s *Store) ConfirmPasswordReset(ctx context.Context, req protocol.PasswordResetConfirmRequest) error {
	if err := s.api.Post(ctx, protocol.PathPasswordResetConfirm, nil, req, nil, client.WithoutAuth()); err != nil {
		return fmt.Errorf("password reset failed: %w", err)
	}
	return nil
}

// reset drops any partial session after a failed sign-in.
func (s *Store) reset() {
	if err := s.storage.Clear(); err != nil {
		s.log.Warn("clear session after failed sign-in", zap.Error(err))
	}
	s.set(StateAnonymous, nil, "")
}

func (s *Store) setState(next State) {
	s.mu.Lock()
	user, token := s.user, s.token
	s.mu.Unlock()
	s.set(next, user, token)
}

// swapUser replaces the cached user only while the session is still in state
// with token.
func (s *Store) swapUser(state State, token string, user *protocol.User) bool {
	s.mu.Lock()
	if s.state != state || s.token != token || s.user == nil {
		s.mu.Unlock()
		return false
	}
	s.user = cloneUser(user)
	snap := s.snapshotLocked()
	listeners := make([]func(Session), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
	return true
}

func (s *Store) set(next State, user *protocol.User, token string) {
	s.mu.Lock()
	prev := s.state
	s.state, s.user, s.token = next, user, token
	snap := s.snapshotLocked()
	listeners := make([]func(Session), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	if prev != next {
		metrics.RecordSessionTransition(prev.String(), next.String())
		s.log.Debug("session state changed", zap.Stringer("from", prev), zap.Stringer("to", next))
	}
	for _, fn := range listeners {
		fn(snap)
	}
}

func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
