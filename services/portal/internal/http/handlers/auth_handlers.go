package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"customsportal/services/portal/internal/clients"
	"customsportal/services/portal/internal/models"
	"customsportal/services/portal/internal/session"
)

type loginData struct {
	Username string
}

type registerData struct {
	Form  models.Registration
	Roles []string
}

// AuthHandlers serve login, logout and operator registration.
type AuthHandlers struct {
	base
	client *clients.AuthClient
}

// NewAuthHandlers returns handler struct.
func NewAuthHandlers(client *clients.AuthClient, deps Deps) *AuthHandlers {
	return &AuthHandlers{base: base{deps}, client: client}
}

// Root handles GET /.
func (h *AuthHandlers) Root(w http.ResponseWriter, r *http.Request) {
	if h.current(r).Authenticated() {
		h.redirect(w, r, "/dashboard")
		return
	}
	h.redirect(w, r, "/login")
}

// LoginPage handles GET /login.
func (h *AuthHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	if h.current(r).Authenticated() {
		h.redirect(w, r, "/dashboard")
		return
	}
	h.render(w, r, http.StatusOK, "login", "Login", loginData{})
}

// Login handles POST /login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	s := h.current(r)
	in := models.Credentials{
		Username:      formValue(r, "username"),
		Password:      r.FormValue("password"),
		LotNumber:     formValue(r, "lot_number"),
		CaptchaOutput: formValue(r, "captcha_output"),
		PassToken:     formValue(r, "pass_token"),
	}
	if in.Username == "" || in.Password == "" {
		s.AddFlash(session.FlashError, "Please enter your username and password.")
		h.render(w, r, http.StatusOK, "login", "Login", loginData{Username: in.Username})
		return
	}

	if err := h.Sessions.Login(r.Context(), w, s, in); err != nil {
		message := "Login failed"
		if !errors.Is(err, session.ErrNoUser) {
			message = clients.Message(err, message)
		}
		h.Logger.Info("login rejected", zap.String("username", in.Username), zap.Error(err))
		s.AddFlash(session.FlashError, message)
		h.render(w, r, http.StatusOK, "login", "Login", loginData{Username: in.Username})
		return
	}
	h.record(r, "login", 0, "", nil)
	h.redirect(w, r, "/dashboard")
}

// Logout handles POST /logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	s := h.current(r)
	h.record(r, "logout", 0, "", nil)
	h.Sessions.Logout(r.Context(), w, s)
	h.redirect(w, r, "/login")
}

// RegisterPage handles GET /register.
func (h *AuthHandlers) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register", "Register User", registerData{
		Form:  models.Registration{Role: models.RoleCustomer},
		Roles: h.roles(r),
	})
}

// Register handles POST /register.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	s := h.current(r)
	in := models.Registration{
		Username:      formValue(r, "username"),
		Password:      r.FormValue("password"),
		Role:          formValue(r, "role"),
		CustomerName:  formValue(r, "customer_name"),
		CustomerEmail: formValue(r, "customer_email"),
		CustomerPhone: formValue(r, "customer_phone"),
	}
	data := registerData{Form: in, Roles: h.roles(r)}
	data.Form.Password = ""

	if in.Username == "" || in.Password == "" || in.Role == "" ||
		in.CustomerName == "" || in.CustomerEmail == "" || in.CustomerPhone == "" {
		s.AddFlash(session.FlashError, "Missing fields")
		h.render(w, r, http.StatusOK, "register", "Register User", data)
		return
	}
	if !contains(data.Roles, in.Role) {
		s.AddFlash(session.FlashError, "Invalid role")
		h.render(w, r, http.StatusOK, "register", "Register User", data)
		return
	}

	message, err := h.client.Register(r.Context(), s, in)
	h.record(r, "register_user", 0, in.Username+" as "+in.Role, err)
	if err != nil {
		if h.backendError(w, r, err, "Registration failed") {
			return
		}
		h.render(w, r, http.StatusOK, "register", "Register User", data)
		return
	}
	if message == "" {
		message = "User registered successfully"
	}
	s.AddFlash(session.FlashSuccess, message)
	h.redirect(w, r, "/register")
}

// roles offers staff-created accounts; only admins can create admins.
func (h *AuthHandlers) roles(r *http.Request) []string {
	roles := []string{models.RoleCustomer, models.RoleStaff}
	if h.user(r).HasRole(models.RoleAdmin) {
		roles = append(roles, models.RoleAdmin)
	}
	return roles
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
