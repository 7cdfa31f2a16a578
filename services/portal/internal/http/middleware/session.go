package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"customsportal/services/portal/internal/access"
	"customsportal/services/portal/internal/session"
)

// FormTokenField carries the per-session anti-forgery token in portal forms.
const FormTokenField = "_form_token"

// multipartMemory is the in-memory share of a parsed upload; the rest spills to disk.
const multipartMemory = 32 << 20

// SessionMiddleware loads the operator session before the handler and
// saves it afterwards.
func SessionMiddleware(manager *session.Manager, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, fresh := manager.Load(r)
			if fresh {
				if err := manager.WriteCookie(w, s); err != nil {
					logger.Error("session cookie failed", zap.Error(err))
					http.Error(w, "internal server error", http.StatusInternalServerError)
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), s)))

			if err := manager.Save(context.WithoutCancel(r.Context()), s); err != nil {
				logger.Error("session save failed", zap.Error(err))
			}
		})
	}
}

// RequireUser redirects to /login unless the session knows its backend user.
func RequireUser(manager *session.Manager) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := session.FromContext(r.Context())
			if !ok || !manager.FetchUserIfNeeded(r.Context(), s, false) {
				if ok {
					s.AddFlash(session.FlashInfo, "Please log in to continue.")
				}
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireFeature sends operators without access back to the dashboard.
func RequireFeature(f access.Feature) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := session.FromContext(r.Context())
			if !ok || !access.Allowed(s.User, f) {
				if ok {
					s.AddFlash(session.FlashError, "You do not have access to that page.")
				}
				http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// FormGuard rejects state-changing requests without the session form token.
func FormGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		s, ok := session.FromContext(r.Context())
		if !ok || s.FormToken == "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		token := r.Header.Get("X-Form-Token")
		if token == "" {
			if err := parseForm(r); err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					http.Error(w, "File too large.", http.StatusRequestEntityTooLarge)
					return
				}
				http.Error(w, "malformed form", http.StatusBadRequest)
				return
			}
			token = r.PostFormValue(FormTokenField)
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.FormToken)) != 1 {
			http.Error(w, "invalid form token", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(multipartMemory)
	}
	return r.ParseForm()
}
