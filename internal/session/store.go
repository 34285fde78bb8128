// Package session owns the client's authentication context. The store
// is the only writer of the persisted token; every other store reads it
// through the gateway's TokenSource.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/gateway"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/models"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/util"

	"go.uber.org/zap"
)

// ErrInvalidCredentials is returned for any login rejection so callers
// cannot tell which of email or password was wrong.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Store is the session state container. It is either Anonymous (no
// token) or Authenticated (token plus verified identity).
type Store struct {
	gw      *gateway.Client
	storage Storage
	logger  *zap.Logger

	mu      sync.RWMutex
	current Snapshot
	lastErr error
}

// New creates a session store backed by the given storage. A previously
// persisted session is picked up immediately; its validity is only
// established by the next CheckSession.
func New(gw *gateway.Client, storage Storage) *Store {
	s := &Store{
		gw:      gw,
		storage: storage,
		logger:  util.GetLogger(),
	}

	snap, err := storage.Load()
	if err != nil {
		s.logger.Warn("Failed to load persisted session, starting anonymous", zap.Error(err))
		return s
	}
	s.current = snap
	return s
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Register creates an account and immediately logs in with the same
// credentials; registration alone does not establish a session. Server
// rejections (duplicate email, weak password) surface verbatim.
func (s *Store) Register(ctx context.Context, email, password, fullName string) (*models.Identity, error) {
	ctx, span := util.StartSpan(ctx, "SessionStore.Register")
	defer span.End()

	var identity models.Identity
	req := registerRequest{Email: email, Password: password, FullName: fullName}
	if err := s.gw.Post(ctx, "/auth/register", req, &identity); err != nil {
		s.setErr(err)
		return nil, err
	}

	s.logger.Info("Account registered", zap.String("email", email))
	return s.Login(ctx, email, password)
}

// Login exchanges credentials for a token, persists it, then fetches
// and stores the identity. Any rejection leaves the store Anonymous and
// reads as ErrInvalidCredentials.
func (s *Store) Login(ctx context.Context, email, password string) (*models.Identity, error) {
	ctx, span := util.StartSpan(ctx, "SessionStore.Login")
	defer span.End()

	var token tokenResponse
	if err := s.gw.Post(ctx, "/auth/login", loginRequest{Email: email, Password: password}, &token); err != nil {
		util.SessionLoginFailuresTotal.Inc()
		if gateway.IsValidation(err) || gateway.IsUnauthenticated(err) {
			s.logger.Info("Login rejected", zap.String("email", email), zap.Error(err))
			s.setErr(ErrInvalidCredentials)
			return nil, ErrInvalidCredentials
		}
		s.setErr(err)
		return nil, err
	}

	// Persist the token first so the identity fetch carries it.
	if err := s.replace(Snapshot{Token: token.AccessToken}); err != nil {
		s.setErr(err)
		return nil, err
	}

	var identity models.Identity
	if err := s.gw.Get(ctx, "/auth/me", nil, &identity); err != nil {
		util.SessionLoginFailuresTotal.Inc()
		s.clear()
		s.setErr(err)
		return nil, err
	}

	if err := s.replace(Snapshot{Token: token.AccessToken, Identity: &identity}); err != nil {
		s.setErr(err)
		return nil, err
	}

	util.SessionLoginsTotal.Inc()
	s.logger.Info("Logged in",
		zap.String("email", identity.Email),
		zap.String("role", string(identity.Role)))
	return &identity, nil
}

// Logout clears the token and identity, both in memory and in storage.
// It needs no network call and always succeeds, even offline; a storage
// failure is logged but does not keep the session alive.
func (s *Store) Logout() {
	s.clear()
	s.logger.Info("Logged out")
}

// CheckSession verifies a persisted token against the backend. With no
// token it stays Anonymous. A token the server rejects is discarded
// here and nowhere else; transient network or server failures keep the
// token so a flaky connection does not log the user out.
func (s *Store) CheckSession(ctx context.Context) (*models.Identity, error) {
	ctx, span := util.StartSpan(ctx, "SessionStore.CheckSession")
	defer span.End()

	if s.Token() == "" {
		util.SessionChecksTotal.WithLabelValues("anonymous").Inc()
		return nil, nil
	}

	var identity models.Identity
	if err := s.gw.Get(ctx, "/auth/me", nil, &identity); err != nil {
		if gateway.IsNetwork(err) || gateway.IsServer(err) {
			util.SessionChecksTotal.WithLabelValues("unreachable").Inc()
			s.setErr(err)
			return nil, err
		}
		util.SessionChecksTotal.WithLabelValues("rejected").Inc()
		s.logger.Info("Persisted token rejected, clearing session", zap.Error(err))
		s.clear()
		return nil, nil
	}

	token := s.Token()
	if err := s.replace(Snapshot{Token: token, Identity: &identity}); err != nil {
		s.setErr(err)
		return nil, err
	}

	util.SessionChecksTotal.WithLabelValues("ok").Inc()
	return &identity, nil
}

// Current returns the verified identity, or nil when Anonymous.
func (s *Store) Current() *models.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current.Identity == nil {
		return nil
	}
	identity := *s.current.Identity
	return &identity
}

// Token returns the bearer token, or "" when Anonymous. It satisfies
// gateway.TokenSource for callers that wire the store directly.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token
}

// IsAuthenticated reports whether a verified identity is held.
func (s *Store) IsAuthenticated() bool {
	return s.Current() != nil
}

// IsPrivileged reports whether the current identity is an admin. It is
// a pure read and never triggers a network call.
func (s *Store) IsPrivileged() bool {
	return s.Current().IsAdmin()
}

// LastError returns the most recent operation failure.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Store) replace(snap Snapshot) error {
	if err := s.storage.Save(snap); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = snap
	s.lastErr = nil
	s.mu.Unlock()
	return nil
}

func (s *Store) clear() {
	if err := s.storage.Clear(); err != nil {
		s.logger.Warn("Failed to clear persisted session", zap.Error(err))
	}
	s.mu.Lock()
	s.current = Snapshot{}
	s.mu.Unlock()
}

func (s *Store) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}
