package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"customsportal/services/portal/internal/clients"
	"customsportal/services/portal/internal/models"
)

type fakeAuth struct {
	user     *models.User
	meErr    error
	token    string
	tokenErr error
	loginErr error
	meCalls  int
	logouts  int
}

func (f *fakeAuth) Login(_ context.Context, creds clients.Credentials, _ models.Credentials) error {
	if f.loginErr != nil {
		return f.loginErr
	}
	creds.SetCookies([]*http.Cookie{{Name: "access_token_cookie", Value: "abc"}})
	return nil
}

func (f *fakeAuth) Logout(context.Context, clients.Credentials) error {
	f.logouts++
	return nil
}

func (f *fakeAuth) Me(context.Context, clients.Credentials) (*models.User, error) {
	f.meCalls++
	return f.user, f.meErr
}

func (f *fakeAuth) CSRFToken(context.Context, clients.Credentials) (string, error) {
	return f.token, f.tokenErr
}

func newTestManager(t *testing.T, auth AuthBackend) (*Manager, *MemoryStore) {
	t.Helper()
	codec, err := NewCookieCodec("test-secret", time.Hour)
	require.NoError(t, err)
	store := NewMemoryStore(time.Hour)
	return NewManager(store, codec, auth, Options{TTL: time.Hour}, zap.NewNop()), store
}

var unauthorized = &clients.APIError{Status: http.StatusUnauthorized, Message: "expired"}

func TestFetchUserIfNeeded(t *testing.T) {
	ctx := context.Background()

	t.Run("cached user skips backend", func(t *testing.T) {
		auth := &fakeAuth{}
		m, _ := newTestManager(t, auth)
		s := New()
		s.User = &models.User{Username: "amy"}
		assert.True(t, m.FetchUserIfNeeded(ctx, s, false))
		assert.Equal(t, 0, auth.meCalls)
	})

	t.Run("force refetches", func(t *testing.T) {
		auth := &fakeAuth{user: &models.User{Username: "bob", Role: models.RoleAdmin}}
		m, _ := newTestManager(t, auth)
		s := New()
		s.User = &models.User{Username: "amy"}
		assert.True(t, m.FetchUserIfNeeded(ctx, s, true))
		assert.Equal(t, "bob", s.User.Username)
	})

	t.Run("401 clears user", func(t *testing.T) {
		m, _ := newTestManager(t, &fakeAuth{meErr: unauthorized})
		s := New()
		s.User = &models.User{Username: "amy"}
		assert.False(t, m.FetchUserIfNeeded(ctx, s, true))
		assert.Nil(t, s.User)
	})

	t.Run("error payload clears user", func(t *testing.T) {
		m, _ := newTestManager(t, &fakeAuth{user: &models.User{Error: "User not found"}})
		s := New()
		assert.False(t, m.FetchUserIfNeeded(ctx, s, false))
		assert.Nil(t, s.User)
	})

	t.Run("network error clears user", func(t *testing.T) {
		m, _ := newTestManager(t, &fakeAuth{meErr: errors.New("dial tcp: refused")})
		s := New()
		assert.False(t, m.FetchUserIfNeeded(ctx, s, false))
	})
}

func TestFetchCSRFToken(t *testing.T) {
	ctx := context.Background()

	m, _ := newTestManager(t, &fakeAuth{token: "tok"})
	s := New()
	m.FetchCSRFToken(ctx, s)
	assert.Equal(t, "tok", s.CSRF)

	m, _ = newTestManager(t, &fakeAuth{tokenErr: unauthorized})
	s.User = &models.User{Username: "amy"}
	m.FetchCSRFToken(ctx, s)
	assert.Empty(t, s.CSRF)
	assert.Nil(t, s.User)

	m, _ = newTestManager(t, &fakeAuth{tokenErr: errors.New("timeout")})
	s.CSRF = "old"
	s.User = &models.User{Username: "amy"}
	m.FetchCSRFToken(ctx, s)
	assert.Empty(t, s.CSRF)
	assert.NotNil(t, s.User)
}

func TestLoginLoadsUserAndToken(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{user: &models.User{Username: "amy", Role: models.RoleStaff}, token: "tok"}
	m, store := newTestManager(t, auth)

	s, fresh := m.Load(httptest.NewRequest(http.MethodGet, "/login", nil))
	require.True(t, fresh)
	require.NoError(t, m.Save(ctx, s))
	oldID, formToken := s.ID, s.FormToken

	rec := httptest.NewRecorder()
	require.NoError(t, m.Login(ctx, rec, s, models.Credentials{Username: "amy", Password: "pw"}))
	assert.Equal(t, "amy", s.User.Username)
	assert.Equal(t, "tok", s.CSRF)
	assert.Len(t, s.Cookies(), 1)
	assert.NotEqual(t, formToken, s.FormToken)

	// The pre-login id is gone and the new cookie points at the new id.
	assert.NotEqual(t, oldID, s.ID)
	_, err := store.Get(ctx, oldID)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, m.Save(ctx, s))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(cookies[0])
	loaded, fresh := m.Load(req)
	require.False(t, fresh)
	assert.Equal(t, s.ID, loaded.ID)
	assert.Equal(t, "amy", loaded.User.Username)

	failedID := s.ID
	auth.user = &models.User{Error: "missing"}
	assert.ErrorIs(t, m.Login(ctx, httptest.NewRecorder(), s, models.Credentials{}), ErrNoUser)
	assert.Equal(t, failedID, s.ID)
}

func TestLoadSaveAndLogout(t *testing.T) {
	auth := &fakeAuth{}
	m, store := newTestManager(t, auth)
	ctx := context.Background()

	s, fresh := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, fresh)
	s.User = &models.User{Username: "amy"}
	s.SetCookies([]*http.Cookie{{Name: "access_token_cookie", Value: "abc"}})
	require.NoError(t, m.Save(ctx, s))

	rec := httptest.NewRecorder()
	require.NoError(t, m.WriteCookie(rec, s))
	cookie := rec.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	loaded, fresh := m.Load(req)
	assert.False(t, fresh)
	assert.Equal(t, s.ID, loaded.ID)
	assert.Equal(t, "amy", loaded.User.Username)

	m.Logout(ctx, httptest.NewRecorder(), loaded)
	assert.Equal(t, 1, auth.logouts)
	_, err := store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	tampered := httptest.NewRequest(http.MethodGet, "/", nil)
	tampered.AddCookie(&http.Cookie{Name: CookieName, Value: cookie.Value + "x"})
	_, fresh = m.Load(tampered)
	assert.True(t, fresh)
}

func TestCookieCodecExpiry(t *testing.T) {
	codec, err := NewCookieCodec("secret", time.Minute)
	require.NoError(t, err)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	codec.now = func() time.Time { return base }

	value, err := codec.Encode("sid-1")
	require.NoError(t, err)
	id, err := codec.Decode(value)
	require.NoError(t, err)
	assert.Equal(t, "sid-1", id)

	codec.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = codec.Decode(value)
	assert.ErrorIs(t, err, ErrInvalidCookie)

	other, err := NewCookieCodec("another", time.Minute)
	require.NoError(t, err)
	other.now = func() time.Time { return base }
	_, err = other.Decode(value)
	assert.ErrorIs(t, err, ErrInvalidCookie)

	_, err = NewCookieCodec("", time.Minute)
	assert.Error(t, err)
}

func TestMemoryStoreExpires(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Now()
	store.now = func() time.Time { return now }
	s := New()
	s.AddFlash(FlashSuccess, "saved")
	require.NoError(t, store.Save(context.Background(), s))

	got, err := store.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, []Flash{{Kind: FlashSuccess, Message: "saved"}}, got.PopFlashes())
	assert.Empty(t, got.Flashes)

	store.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = store.Get(context.Background(), s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreSweepsExpiredEntriesOnSave(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)
	now := time.Now()
	store.now = func() time.Time { return now }

	for i := 0; i < 10000; i++ {
		require.NoError(t, store.Save(ctx, New()))
	}
	assert.Len(t, store.entries, 10000)

	store.now = func() time.Time { return now.Add(time.Hour) }
	last := New()
	require.NoError(t, store.Save(ctx, last))
	assert.Len(t, store.entries, 1)

	_, err := store.Get(ctx, last.ID)
	assert.NoError(t, err)
}

func TestSetCookiesReplacesAndExpires(t *testing.T) {
	s := New()
	s.SetCookies([]*http.Cookie{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}})
	s.SetCookies([]*http.Cookie{{Name: "a", Value: "3"}, {Name: "b", MaxAge: -1}})

	cookies := s.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "a", cookies[0].Name)
	assert.Equal(t, "3", cookies[0].Value)

	s.CSRF = "t"
	s.User = &models.User{Username: "amy"}
	s.ClearAuth()
	assert.False(t, s.Authenticated())
	assert.Empty(t, s.Cookies())
	assert.Empty(t, s.CSRFToken())
}
