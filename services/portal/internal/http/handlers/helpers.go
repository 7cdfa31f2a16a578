package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"customsportal/services/portal/internal/access"
	"customsportal/services/portal/internal/audit"
	"customsportal/services/portal/internal/clients"
	"customsportal/services/portal/internal/http/middleware"
	"customsportal/services/portal/internal/models"
	"customsportal/services/portal/internal/session"
	"customsportal/services/portal/internal/views"
)

const sessionExpired = "Session expired. Please log in again."

// Deps are shared by every portal handler group.
type Deps struct {
	Sessions *session.Manager
	Views    *views.Renderer
	Audit    *audit.Recorder
	Logger   *zap.Logger
}

type base struct {
	Deps
}

func (b base) current(r *http.Request) *session.Session {
	s, ok := session.FromContext(r.Context())
	if !ok {
		return session.New()
	}
	return s
}

// render wraps data in the layout page for the current operator.
func (b base) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data interface{}) {
	s := b.current(r)
	b.Views.Render(w, status, name, views.Page{
		Title:     title,
		User:      s.User,
		Menu:      access.Menu(s.User),
		Flashes:   s.PopFlashes(),
		FormToken: s.FormToken,
		Data:      data,
	})
}

func (b base) redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}

func (b base) flash(r *http.Request, kind, message string) {
	b.current(r).AddFlash(kind, message)
}

// backendError flashes err for the operator. When the backend rejected the
// session it also sends the browser to /login and returns true.
func (b base) backendError(w http.ResponseWriter, r *http.Request, err error, fallback string) bool {
	s := b.current(r)
	if errors.Is(err, clients.ErrUnauthorized) {
		s.ClearAuth()
		s.AddFlash(session.FlashError, sessionExpired)
		b.redirect(w, r, "/login")
		return true
	}
	var apiErr *clients.APIError
	if !errors.As(err, &apiErr) {
		b.Logger.Error("backend call failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
			zap.Error(err))
	}
	s.AddFlash(session.FlashError, clients.Message(err, fallback))
	return false
}

// fail reports err and redirects to path.
func (b base) fail(w http.ResponseWriter, r *http.Request, err error, fallback, path string) {
	if b.backendError(w, r, err, fallback) {
		return
	}
	b.redirect(w, r, path)
}

func (b base) record(r *http.Request, action string, billID int64, detail string, err error) {
	s := b.current(r)
	e := audit.Event{Action: action, BillID: billID, Detail: detail, Outcome: audit.OutcomeOK}
	if s.User != nil {
		e.Actor = s.User.Username
		e.Role = s.User.Role
	}
	if err != nil {
		e.Outcome = audit.OutcomeFailed
		e.Detail = strings.TrimSpace(detail + " " + err.Error())
	}
	b.Audit.Record(r.Context(), e)
}

func (b base) user(r *http.Request) *models.User {
	return b.current(r).User
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.FormValue(key))
}

// readFile loads one multipart file field; ok is false when the field is empty.
func readFile(r *http.Request, field string) (models.File, bool, error) {
	_, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return models.File{}, false, nil
	}
	if err != nil {
		return models.File{}, false, err
	}
	f, err := readHeader(header)
	if err != nil {
		return models.File{}, false, err
	}
	f.Field = field
	return f, true, nil
}

func readHeader(header *multipart.FileHeader) (models.File, error) {
	file, err := header.Open()
	if err != nil {
		return models.File{}, err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return models.File{}, err
	}
	return models.File{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
