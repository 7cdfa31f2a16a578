package handlers

import (
	"net/http"

	"customsportal/services/portal/internal/clients"
	"customsportal/services/portal/internal/models"
	"customsportal/services/portal/internal/session"
)

const userApprovalPath = "/user-approval"

type userApprovalData struct {
	Users []models.User
}

// UserHandlers serve the user approval queue.
type UserHandlers struct {
	base
	client *clients.AuthClient
}

// NewUserHandlers returns handler struct.
func NewUserHandlers(client *clients.AuthClient, deps Deps) *UserHandlers {
	return &UserHandlers{base: base{deps}, client: client}
}

// Approval handles GET /user-approval.
func (h *UserHandlers) Approval(w http.ResponseWriter, r *http.Request) {
	users, err := h.client.UnapprovedUsers(r.Context(), h.current(r))
	if err != nil && h.backendError(w, r, err, "Failed to fetch users") {
		return
	}
	h.render(w, r, http.StatusOK, "user_approval", "User Approval", userApprovalData{Users: users})
}

// Approve handles POST /user-approval/{id}/approve.
func (h *UserHandlers) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.redirect(w, r, userApprovalPath)
		return
	}
	err := h.client.ApproveUser(r.Context(), h.current(r), id)
	h.record(r, "approve_user", 0, "user "+r.FormValue("username"), err)
	if err != nil {
		h.fail(w, r, err, "Failed to approve user", userApprovalPath)
		return
	}
	h.flash(r, session.FlashSuccess, "User approved successfully")
	h.redirect(w, r, userApprovalPath)
}
