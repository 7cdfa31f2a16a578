package handlers

import (
	"net/http"
)

// DashboardHandlers serve the landing page and static screens.
type DashboardHandlers struct {
	base
}

// NewDashboardHandlers returns handler struct.
func NewDashboardHandlers(deps Deps) *DashboardHandlers {
	return &DashboardHandlers{base: base{deps}}
}

// Dashboard handles GET /dashboard.
func (h *DashboardHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "dashboard", "Dashboard", nil)
}

// FAQ handles GET /faq.
func (h *DashboardHandlers) FAQ(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "faq", "FAQ", nil)
}

// NotFound renders the 404 page for unknown paths.
func (h *DashboardHandlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, "not_found", "Not Found", nil)
}

// NewHealthHandler reports liveness.
func NewHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
