package handlers

import (
	"context"
	"net/http"

	"customsportal/services/portal/internal/access"
	"customsportal/services/portal/internal/billing"
	"customsportal/services/portal/internal/clients"
	"customsportal/services/portal/internal/models"
	"customsportal/services/portal/internal/session"
	"customsportal/services/portal/internal/views"
)

const accountingPath = "/accounting-review"

type accountingData struct {
	Bills            []models.Bill
	Pager            views.Pager
	BLNumber         string
	Return           string
	CanEmailCTN      bool
	CanComplete      bool
	CanSettle        bool
	CanCheckPayments bool
}

// AccountingHandlers serve the account settlement screen.
type AccountingHandlers struct {
	base
	bills *clients.BillsClient
	admin *clients.AdminClient
}

// NewAccountingHandlers returns handler struct.
func NewAccountingHandlers(bills *clients.BillsClient, admin *clients.AdminClient, deps Deps) *AccountingHandlers {
	return &AccountingHandlers{base: base{deps}, bills: bills, admin: admin}
}

// Review handles GET /accounting-review. Bills are filtered and paginated
// locally after one fetch.
func (h *AccountingHandlers) Review(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, pageSize := views.ParsePage(q, views.DefaultPageSize)
	user := h.user(r)
	data := accountingData{
		BLNumber:         q.Get("bl_number"),
		Return:           r.URL.RequestURI(),
		CanEmailCTN:      access.Allowed(user, access.StaffEmailCTN),
		CanComplete:      access.Allowed(user, access.CompleteBill),
		CanSettle:        access.Allowed(user, access.SettleReserves),
		CanCheckPayments: access.Allowed(user, access.CheckPayments),
	}

	bills, err := h.bills.AwaitingBankIn(r.Context(), h.current(r))
	if err != nil && h.backendError(w, r, err, "Failed to fetch bills") {
		return
	}
	filtered := billing.FilterAwaiting(bills, data.BLNumber)
	data.Bills, data.Pager = views.Paginate(filtered, page, pageSize, views.Filters(q))
	h.render(w, r, http.StatusOK, "accounting", "Account Settlement", data)
}

// Complete handles POST /accounting-review/{id}/complete.
func (h *AccountingHandlers) Complete(w http.ResponseWriter, r *http.Request) {
	h.billAction(w, r, access.CompleteBill, "complete_bill", h.bills.Complete, "Bill marked as completed.")
}

// SettleReserve handles POST /accounting-review/{id}/settle-reserve.
func (h *AccountingHandlers) SettleReserve(w http.ResponseWriter, r *http.Request) {
	h.billAction(w, r, access.SettleReserves, "settle_reserve", h.bills.SettleReserve, "Reserve marked as settled")
}

// SendUniqueEmail handles POST /accounting-review/{id}/unique-email with the
// default CTN number message.
func (h *AccountingHandlers) SendUniqueEmail(w http.ResponseWriter, r *http.Request) {
	h.billAction(w, r, access.StaffEmailCTN, "send_unique_number_email", func(ctx context.Context, creds clients.Credentials, id int64) error {
		bill, err := h.bills.Get(ctx, creds, id)
		if err != nil {
			return err
		}
		return h.bills.SendUniqueNumberEmail(ctx, creds, billing.UniqueNumberEmail(*bill))
	}, "CTN number email sent.")
}

type billOp func(ctx context.Context, creds clients.Credentials, id int64) error

func (h *AccountingHandlers) billAction(w http.ResponseWriter, r *http.Request, f access.Feature, action string, do billOp, ok string) {
	back := safeReturn(r.FormValue("return"), accountingPath)
	if !access.Allowed(h.user(r), f) {
		h.flash(r, session.FlashError, "You do not have access to that action.")
		h.redirect(w, r, back)
		return
	}
	id, valid := pathID(r)
	if !valid {
		h.redirect(w, r, back)
		return
	}
	err := do(r.Context(), h.current(r), id)
	h.record(r, action, id, "", err)
	if err != nil {
		h.fail(w, r, err, "Action failed", back)
		return
	}
	h.flash(r, session.FlashSuccess, ok)
	h.redirect(w, r, back)
}

// CheckPayments handles POST /accounting-review/check-payments and
// /management/check-payments: a manual run of the payment email ingest.
func (h *AccountingHandlers) CheckPayments(w http.ResponseWriter, r *http.Request) {
	back := accountingPath
	if r.URL.Path == managementPath+"/check-payments" {
		back = managementPath
	}
	_, err := h.admin.IngestEmails(r.Context(), h.current(r))
	h.record(r, "check_payments", 0, "", err)
	if err != nil {
		h.fail(w, r, err, "Manual check failed.", back)
		return
	}
	h.flash(r, session.FlashSuccess, "Manual payment check complete.")
	h.redirect(w, r, back)
}
