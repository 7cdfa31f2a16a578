package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"customsportal/services/portal/internal/billing"
	"customsportal/services/portal/internal/models"
	"customsportal/services/portal/internal/session"
	"customsportal/services/portal/internal/views"
)

const (
	editDeletePath     = "/edit-delete-bills"
	editDeletePageSize = 10
)

type searchData struct {
	Criteria models.BillSearch
	Bills    []models.Bill
	Searched bool
	Customer bool
}

type editDeleteData struct {
	Criteria models.BillSearch
	Bills    []models.Bill
	Pager    views.Pager
	Searched bool
	Return   string
}

type editBillData struct {
	Bill models.Bill
	Form billing.EditForm
}

func searchFromQuery(q url.Values) models.BillSearch {
	return models.BillSearch{
		UniqueNumber: strings.TrimSpace(q.Get("unique_number")),
		BLNumber:     strings.TrimSpace(q.Get("bl_number")),
		CustomerName: strings.TrimSpace(q.Get("customer_name")),
	}
}

// Search handles GET /search. Customers only ever see their own bills and
// get them without submitting the form.
func (h *BillHandlers) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user := h.user(r)
	data := searchData{
		Criteria: searchFromQuery(q),
		Customer: user.HasRole(models.RoleCustomer),
	}
	if data.Customer {
		data.Criteria = models.BillSearch{Username: user.Username}
	}
	data.Searched = data.Customer || len(q) > 0
	if !data.Searched {
		h.render(w, r, http.StatusOK, "search", "Search Bills", data)
		return
	}

	bills, err := h.client.Search(r.Context(), h.current(r), data.Criteria)
	if err != nil {
		if h.backendError(w, r, err, "Failed to fetch bills") {
			return
		}
	}
	data.Bills = bills
	h.render(w, r, http.StatusOK, "search", "Search Bills", data)
}

// EditDelete handles GET /edit-delete-bills.
func (h *BillHandlers) EditDelete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, pageSize := views.ParsePage(q, editDeletePageSize)
	data := editDeleteData{
		Criteria: searchFromQuery(q),
		Searched: true,
		Return:   r.URL.RequestURI(),
	}

	bills, err := h.client.Search(r.Context(), h.current(r), data.Criteria)
	if err != nil {
		if h.backendError(w, r, err, "Failed to fetch bills") {
			return
		}
	}
	data.Bills, data.Pager = views.Paginate(bills, page, pageSize, views.Filters(q))
	h.render(w, r, http.StatusOK, "edit_delete", "Edit / Delete Bills", data)
}

// DeleteBill handles POST /edit-delete-bills/{id}/delete.
func (h *BillHandlers) DeleteBill(w http.ResponseWriter, r *http.Request) {
	back := safeReturn(r.FormValue("return"), editDeletePath)
	id, ok := pathID(r)
	if !ok {
		h.NotFound(w, r)
		return
	}
	err := h.client.Delete(r.Context(), h.current(r), id)
	h.record(r, "delete_bill", id, "", err)
	if err != nil {
		h.fail(w, r, err, "Delete failed", back)
		return
	}
	h.flash(r, session.FlashSuccess, "Bill deleted.")
	h.redirect(w, r, back)
}

// EditBillPage handles GET /edit-bill/{id}.
func (h *BillHandlers) EditBillPage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.NotFound(w, r)
		return
	}
	bill, err := h.client.Get(r.Context(), h.current(r), id)
	if err != nil {
		h.fail(w, r, err, "Bill not found", editDeletePath)
		return
	}
	h.renderEdit(w, r, *bill, billing.FormFromBill(*bill))
}

func (h *BillHandlers) renderEdit(w http.ResponseWriter, r *http.Request, bill models.Bill, form billing.EditForm) {
	h.render(w, r, http.StatusOK, "edit_bill", "Edit Bill", editBillData{Bill: bill, Form: form})
}

// SaveEditBill handles POST /edit-bill/{id}. Blank fees are cleared.
func (h *BillHandlers) SaveEditBill(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.NotFound(w, r)
		return
	}
	form := editFormFromRequest(r)
	update, err := form.Update(false)
	if err != nil {
		h.invalidForm(w, r, id, form, err, h.renderEdit)
		return
	}
	err = h.client.Update(r.Context(), h.current(r), id, update)
	h.record(r, "update_bill", id, "edit", err)
	if err != nil {
		h.fail(w, r, err, "Update failed", "/edit-bill/"+strconv.FormatInt(id, 10))
		return
	}
	h.flash(r, session.FlashSuccess, "Bill updated successfully!")
	h.redirect(w, r, editDeletePath)
}

// safeReturn keeps redirects on the given local page.
func safeReturn(raw, prefix string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" || !strings.HasPrefix(u.Path, prefix) {
		return prefix
	}
	return u.RequestURI()
}
