package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"customsportal/services/portal/internal/models"
)

// Flash kinds rendered by the notification banner.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// Flash is a one-shot notification shown on the next rendered page.
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// StoredCookie is a backend cookie held on behalf of the operator.
type StoredCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Session is the per-operator state kept between portal requests: the
// backend identity, its cookies and CSRF token, and pending notifications.
//
// Cookies and SetCookies are safe for concurrent use; the remaining
// fields belong to the request goroutine.
type Session struct {
	ID             string         `json:"id"`
	User           *models.User   `json:"user,omitempty"`
	CSRF           string         `json:"csrf_token,omitempty"`
	BackendCookies []StoredCookie `json:"backend_cookies,omitempty"`
	Flashes        []Flash        `json:"flashes,omitempty"`
	FormToken      string         `json:"form_token"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`

	mu sync.Mutex
}

// New returns an anonymous session with fresh identifiers.
func New() *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		FormToken: uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Cookies implements clients.Credentials.
func (s *Session) Cookies() []*http.Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*http.Cookie, 0, len(s.BackendCookies))
	for _, c := range s.BackendCookies {
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

// SetCookies implements clients.Credentials. Expired or empty cookies are dropped.
func (s *Session) SetCookies(cookies []*http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cookies {
		idx := -1
		for i, existing := range s.BackendCookies {
			if existing.Name == c.Name {
				idx = i
				break
			}
		}
		expired := c.MaxAge < 0 || c.Value == "" ||
			(!c.Expires.IsZero() && c.Expires.Before(time.Now()))
		switch {
		case expired && idx >= 0:
			s.BackendCookies = append(s.BackendCookies[:idx], s.BackendCookies[idx+1:]...)
		case expired:
		case idx >= 0:
			s.BackendCookies[idx].Value = c.Value
		default:
			s.BackendCookies = append(s.BackendCookies, StoredCookie{Name: c.Name, Value: c.Value})
		}
	}
}

// CSRFToken implements clients.Credentials.
func (s *Session) CSRFToken() string {
	return s.CSRF
}

// Authenticated reports whether a backend user is attached.
func (s *Session) Authenticated() bool {
	return s.User.Valid()
}

// ClearAuth forgets the backend identity, token and cookies.
func (s *Session) ClearAuth() {
	s.User = nil
	s.CSRF = ""
	s.mu.Lock()
	s.BackendCookies = nil
	s.mu.Unlock()
}

// AddFlash queues a notification.
func (s *Session) AddFlash(kind, message string) {
	s.Flashes = append(s.Flashes, Flash{Kind: kind, Message: message})
}

// PopFlashes returns and clears queued notifications.
func (s *Session) PopFlashes() []Flash {
	out := s.Flashes
	s.Flashes = nil
	return out
}
