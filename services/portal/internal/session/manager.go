package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"customsportal/services/portal/internal/clients"
	"customsportal/services/portal/internal/models"
)

// CookieName is the portal session cookie.
const CookieName = "portal_session"

// ErrNoUser is returned when the backend accepted a login but /api/me did not
// identify the operator.
var ErrNoUser = errors.New("session: backend user unavailable")

// AuthBackend is the subset of the backend auth API the manager needs.
type AuthBackend interface {
	Login(ctx context.Context, creds clients.Credentials, in models.Credentials) error
	Logout(ctx context.Context, creds clients.Credentials) error
	Me(ctx context.Context, creds clients.Credentials) (*models.User, error)
	CSRFToken(ctx context.Context, creds clients.Credentials) (string, error)
}

// Options configures the session cookie.
type Options struct {
	TTL    time.Duration
	Secure bool
}

// Manager loads and saves sessions and keeps the backend identity current.
type Manager struct {
	store  Store
	codec  *CookieCodec
	auth   AuthBackend
	opts   Options
	logger *zap.Logger
}

// NewManager returns manager.
func NewManager(store Store, codec *CookieCodec, auth AuthBackend, opts Options, logger *zap.Logger) *Manager {
	return &Manager{store: store, codec: codec, auth: auth, opts: opts, logger: logger}
}

// Load returns the session referenced by the request cookie, or a new one.
// fresh reports that the caller must issue the cookie.
func (m *Manager) Load(r *http.Request) (s *Session, fresh bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return New(), true
	}
	id, err := m.codec.Decode(cookie.Value)
	if err != nil {
		return New(), true
	}
	s, err = m.store.Get(r.Context(), id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.Warn("session load failed", zap.Error(err))
		}
		return New(), true
	}
	return s, false
}

// Save persists the session. Sessions ended by Logout are skipped.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	if s.ID == "" {
		return nil
	}
	s.UpdatedAt = time.Now().UTC()
	return m.store.Save(ctx, s)
}

// WriteCookie issues the signed session cookie.
func (m *Manager) WriteCookie(w http.ResponseWriter, s *Session) error {
	value, err := m.codec.Encode(s.ID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(m.opts.TTL.Seconds()),
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// FetchUserIfNeeded makes sure s carries the backend user. Unless force is
// set, a session that already knows its user is trusted without a call.
func (m *Manager) FetchUserIfNeeded(ctx context.Context, s *Session, force bool) bool {
	if !force && s.User != nil && s.User.Username != "" {
		return true
	}
	user, err := m.auth.Me(ctx, s)
	if err != nil {
		if !errors.Is(err, clients.ErrUnauthorized) {
			m.logger.Warn("fetch user failed", zap.Error(err))
		}
		s.User = nil
		return false
	}
	if !user.Valid() {
		s.User = nil
		return false
	}
	s.User = user
	return true
}

// FetchCSRFToken refreshes the backend CSRF token. A 401 also forgets the user.
func (m *Manager) FetchCSRFToken(ctx context.Context, s *Session) {
	token, err := m.auth.CSRFToken(ctx, s)
	switch {
	case errors.Is(err, clients.ErrUnauthorized):
		s.CSRF = ""
		s.User = nil
	case err != nil:
		m.logger.Warn("fetch csrf token failed", zap.Error(err))
		s.CSRF = ""
	default:
		s.CSRF = token
	}
}

// Login authenticates against the backend and loads the user and CSRF token.
// On success the session moves to a new id and the cookie is reissued, so an
// id handed out before login never carries the operator's identity.
func (m *Manager) Login(ctx context.Context, w http.ResponseWriter, s *Session, in models.Credentials) error {
	s.ClearAuth()
	if err := m.auth.Login(ctx, s, in); err != nil {
		return err
	}
	if !m.FetchUserIfNeeded(ctx, s, true) {
		return ErrNoUser
	}
	m.FetchCSRFToken(ctx, s)

	if err := m.store.Delete(ctx, s.ID); err != nil {
		m.logger.Warn("session delete failed", zap.Error(err))
	}
	s.ID = uuid.NewString()
	s.FormToken = uuid.NewString()
	return m.WriteCookie(w, s)
}

// Logout ends the backend session and drops the portal session.
func (m *Manager) Logout(ctx context.Context, w http.ResponseWriter, s *Session) {
	if len(s.Cookies()) > 0 {
		if err := m.auth.Logout(ctx, s); err != nil {
			m.logger.Warn("backend logout failed", zap.Error(err))
		}
	}
	s.ClearAuth()
	if err := m.store.Delete(ctx, s.ID); err != nil {
		m.logger.Warn("session delete failed", zap.Error(err))
	}
	s.ID = ""
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
