package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"customsportal/services/portal/internal/billing"
	"customsportal/services/portal/internal/clients"
	"customsportal/services/portal/internal/models"
	"customsportal/services/portal/internal/session"
	"customsportal/services/portal/internal/views"
)

var reviewStatuses = []string{
	models.StatusPending,
	models.StatusInvoiceSent,
	models.StatusAwaitingBankIn,
	models.StatusCompleted,
}

type reviewData struct {
	Bills    []models.Bill
	Pager    views.Pager
	BLNumber string
	Status   string
	Statuses []string
}

type reviewDetailData struct {
	Bill    models.Bill
	Form    billing.EditForm
	Invoice models.Email
	Unique  models.Email
}

// PaymentURLs are the return pages handed to the payment provider.
type PaymentURLs struct {
	Success string
	Cancel  string
}

// BillHandlers serve review, search, edit and upload screens.
type BillHandlers struct {
	base
	client  *clients.BillsClient
	payment PaymentURLs
}

// NewBillHandlers returns handler struct.
func NewBillHandlers(client *clients.BillsClient, payment PaymentURLs, deps Deps) *BillHandlers {
	return &BillHandlers{base: base{deps}, client: client, payment: payment}
}

func reviewPath(id int64) string {
	return "/review/" + strconv.FormatInt(id, 10)
}

// Review handles GET /review.
func (h *BillHandlers) Review(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, pageSize := views.ParsePage(q, views.DefaultPageSize)
	data := reviewData{
		BLNumber: q.Get("bl_number"),
		Status:   q.Get("status"),
		Statuses: reviewStatuses,
	}

	result, err := h.client.List(r.Context(), h.current(r), models.BillQuery{
		Page:     page,
		PageSize: pageSize,
		BLNumber: data.BLNumber,
		Status:   data.Status,
	})
	if err != nil {
		if h.backendError(w, r, err, "Failed to fetch bills") {
			return
		}
		data.Pager = views.NewPager(page, pageSize, 0, views.Filters(q))
		h.render(w, r, http.StatusOK, "review", "Review Bills", data)
		return
	}
	data.Bills = result.Bills
	data.Pager = views.NewPager(page, pageSize, result.Total, views.Filters(q))
	h.render(w, r, http.StatusOK, "review", "Review Bills", data)
}

// ReviewDetail handles GET /review/{id}.
func (h *BillHandlers) ReviewDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.NotFound(w, r)
		return
	}
	bill, err := h.client.Get(r.Context(), h.current(r), id)
	if err != nil {
		h.fail(w, r, err, "Bill not found", "/review")
		return
	}
	h.renderDetail(w, r, *bill, billing.FormFromBill(*bill))
}

func (h *BillHandlers) renderDetail(w http.ResponseWriter, r *http.Request, bill models.Bill, form billing.EditForm) {
	h.render(w, r, http.StatusOK, "review_detail", "Bill "+bill.BLNumber, reviewDetailData{
		Bill:    bill,
		Form:    form,
		Invoice: billing.InvoiceEmail(bill),
		Unique:  billing.UniqueNumberEmail(bill),
	})
}

// SaveReview handles POST /review/{id}.
func (h *BillHandlers) SaveReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.NotFound(w, r)
		return
	}
	form := editFormFromRequest(r)
	update, err := form.Update(true)
	if err != nil {
		h.invalidForm(w, r, id, form, err, h.renderDetail)
		return
	}
	err = h.client.Update(r.Context(), h.current(r), id, update)
	h.record(r, "update_bill", id, "review", err)
	if err != nil {
		h.fail(w, r, err, "Update failed", reviewPath(id))
		return
	}
	h.flash(r, session.FlashSuccess, "Bill updated successfully!")
	h.redirect(w, r, reviewPath(id))
}

// invalidForm re-renders the edit form with the operator's input and the
// validation message.
func (h *BillHandlers) invalidForm(w http.ResponseWriter, r *http.Request, id int64, form billing.EditForm, err error,
	show func(http.ResponseWriter, *http.Request, models.Bill, billing.EditForm)) {
	var invalid billing.ValidationError
	if !errors.As(err, &invalid) {
		h.fail(w, r, err, "Update failed", reviewPath(id))
		return
	}
	bill, getErr := h.client.Get(r.Context(), h.current(r), id)
	if getErr != nil {
		h.fail(w, r, getErr, "Bill not found", "/review")
		return
	}
	h.flash(r, session.FlashError, invalid.Error())
	show(w, r, *bill, form)
}

// GeneratePaymentLink handles POST /review/{id}/payment-link. The new link is
// stored on the bill together with the CTN number and fees it was issued for.
func (h *BillHandlers) GeneratePaymentLink(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.NotFound(w, r)
		return
	}
	s := h.current(r)
	bill, err := h.client.Get(r.Context(), s, id)
	if err != nil {
		h.fail(w, r, err, "Bill not found", "/review")
		return
	}

	form := billing.FormFromBill(*bill)
	form.UniqueNumber = formValue(r, "unique_number")
	form.CTNFee = formValue(r, "ctn_fee")
	form.ServiceFee = formValue(r, "service_fee")
	if err := form.ValidateForPaymentLink(); err != nil {
		h.flash(r, session.FlashError, err.Error())
		h.renderDetail(w, r, *bill, form)
		return
	}

	req := billing.PaymentLinkRequest(*bill, form.UniqueNumber, form.CTNFee, form.ServiceFee, h.payment.Success, h.payment.Cancel)
	link, err := h.client.GeneratePaymentLink(r.Context(), s, id, req)
	if err == nil && link == "" {
		err = errors.New("backend returned no payment link")
	}
	h.record(r, "generate_payment_link", id, form.UniqueNumber, err)
	if err != nil {
		if h.backendError(w, r, err, "Failed to generate payment link") {
			return
		}
		h.redirect(w, r, reviewPath(id))
		return
	}

	form.PaymentLink = link
	update, err := form.Update(true)
	if err != nil {
		// The link is kept in the form so the next save stores it.
		bill.PaymentLink = link
		h.flash(r, session.FlashInfo, "Payment link generated. "+err.Error()+" Save the bill to keep the link.")
		h.renderDetail(w, r, *bill, form)
		return
	}
	if err := h.client.Update(r.Context(), s, id, update); err != nil {
		h.fail(w, r, err, "Payment link generated but the bill could not be updated", reviewPath(id))
		return
	}
	h.flash(r, session.FlashSuccess, "Payment link generated successfully.")
	h.redirect(w, r, reviewPath(id))
}

// SendInvoiceEmail handles POST /review/{id}/invoice-email.
func (h *BillHandlers) SendInvoiceEmail(w http.ResponseWriter, r *http.Request) {
	h.sendEmail(w, r, "send_invoice_email", h.client.SendInvoiceEmail, "Invoice email sent.")
}

// SendUniqueEmail handles POST /review/{id}/unique-email.
func (h *BillHandlers) SendUniqueEmail(w http.ResponseWriter, r *http.Request) {
	h.sendEmail(w, r, "send_unique_number_email", h.client.SendUniqueNumberEmail, "CTN number email sent.")
}

type emailSender func(ctx context.Context, creds clients.Credentials, in models.Email) error

func (h *BillHandlers) sendEmail(w http.ResponseWriter, r *http.Request, action string, send emailSender, ok string) {
	id, valid := pathID(r)
	if !valid {
		h.NotFound(w, r)
		return
	}
	email := models.Email{
		ToEmail: formValue(r, "to_email"),
		Subject: formValue(r, "subject"),
		Body:    r.FormValue("body"),
		PDFURL:  formValue(r, "pdf_url"),
		BillID:  id,
	}
	if email.ToEmail == "" {
		h.flash(r, session.FlashError, "Recipient email is required.")
		h.redirect(w, r, reviewPath(id))
		return
	}
	err := send(r.Context(), h.current(r), email)
	h.record(r, action, id, email.ToEmail, err)
	if err != nil {
		h.fail(w, r, err, "Failed to send email", reviewPath(id))
		return
	}
	h.flash(r, session.FlashSuccess, ok)
	h.redirect(w, r, reviewPath(id))
}

// UploadReceipt handles POST /review/{id}/receipt.
func (h *BillHandlers) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.NotFound(w, r)
		return
	}
	receipt, found, err := readFile(r, "receipt")
	if err != nil || !found {
		h.flash(r, session.FlashError, "Please choose a receipt file.")
		h.redirect(w, r, reviewPath(id))
		return
	}
	err = h.client.UploadReceipt(r.Context(), h.current(r), id, receipt)
	h.record(r, "upload_receipt", id, receipt.Filename, err)
	if err != nil {
		h.fail(w, r, err, "Receipt upload failed", reviewPath(id))
		return
	}
	h.flash(r, session.FlashSuccess, "Receipt uploaded successfully.")
	h.redirect(w, r, reviewPath(id))
}

// NotFound renders the 404 page.
func (h *BillHandlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, "not_found", "Not Found", nil)
}

func editFormFromRequest(r *http.Request) billing.EditForm {
	return billing.EditForm{
		CustomerName:       formValue(r, "customer_name"),
		CustomerEmail:      formValue(r, "customer_email"),
		CustomerPhone:      formValue(r, "customer_phone"),
		BLNumber:           formValue(r, "bl_number"),
		Shipper:            formValue(r, "shipper"),
		Consignee:          formValue(r, "consignee"),
		PortOfLoading:      formValue(r, "port_of_loading"),
		PortOfDischarge:    formValue(r, "port_of_discharge"),
		ContainerNumbers:   formValue(r, "container_numbers"),
		FlightOrVessel:     formValue(r, "flight_or_vessel"),
		ProductDescription: r.FormValue("product_description"),
		CTNFee:             formValue(r, "ctn_fee"),
		ServiceFee:         formValue(r, "service_fee"),
		PaymentLink:        formValue(r, "payment_link"),
		UniqueNumber:       formValue(r, "unique_number"),
		PaymentMethod:      formValue(r, "payment_method"),
		PaymentStatus:      formValue(r, "payment_status"),
		ReserveStatus:      formValue(r, "reserve_status"),
	}
}
