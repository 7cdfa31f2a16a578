package clients

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"customsportal/services/portal/internal/models"
)

// LoginTimeout bounds the backend login call.
const LoginTimeout = 15 * time.Second

// AuthClient covers authentication and user administration endpoints.
type AuthClient struct {
	base *BaseClient
}

// NewAuthClient returns client.
func NewAuthClient(base *BaseClient) *AuthClient {
	return &AuthClient{base: base}
}

// Login posts credentials; the backend answers with session cookies.
func (c *AuthClient) Login(ctx context.Context, creds Credentials, in models.Credentials) error {
	ctx, cancel := context.WithTimeout(ctx, LoginTimeout)
	defer cancel()
	return c.base.sendJSON(ctx, creds, http.MethodPost, loginPath, in, nil)
}

// Logout ends the backend session.
func (c *AuthClient) Logout(ctx context.Context, creds Credentials) error {
	return c.base.sendJSON(ctx, creds, http.MethodPost, "/api/logout", nil, nil)
}

// Refresh rotates the backend access token.
func (c *AuthClient) Refresh(ctx context.Context, creds Credentials) error {
	return c.base.sendJSON(ctx, creds, http.MethodPost, refreshPath, nil, nil)
}

// Me returns the authenticated user.
func (c *AuthClient) Me(ctx context.Context, creds Credentials) (*models.User, error) {
	var user models.User
	if err := c.base.getJSON(ctx, creds, "/api/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CSRFToken fetches the anti-forgery token; the backend may return null.
func (c *AuthClient) CSRFToken(ctx context.Context, creds Credentials) (string, error) {
	var payload struct {
		Token *string `json:"csrf_token"`
	}
	if err := c.base.getJSON(ctx, creds, "/api/csrf-token", &payload); err != nil {
		return "", err
	}
	if payload.Token == nil {
		return "", nil
	}
	return *payload.Token, nil
}

// Register creates an account pending approval.
func (c *AuthClient) Register(ctx context.Context, creds Credentials, in models.Registration) (string, error) {
	var msg models.Message
	if err := c.base.sendJSON(ctx, creds, http.MethodPost, "/api/register", in, &msg); err != nil {
		return "", err
	}
	return msg.Message, nil
}

// UnapprovedUsers lists accounts waiting for approval.
func (c *AuthClient) UnapprovedUsers(ctx context.Context, creds Credentials) ([]models.User, error) {
	var users []models.User
	if err := c.base.getJSON(ctx, creds, "/api/unapproved_users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ApproveUser approves a pending account.
func (c *AuthClient) ApproveUser(ctx context.Context, creds Credentials, id int64) error {
	return c.base.sendJSON(ctx, creds, http.MethodPost, "/api/approve_user/"+strconv.FormatInt(id, 10), nil, nil)
}
