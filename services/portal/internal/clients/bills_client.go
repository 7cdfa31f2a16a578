package clients

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"customsportal/services/portal/internal/models"
)

// BillsClient covers bill-of-lading records, payment links and emails.
type BillsClient struct {
	base *BaseClient
}

// NewBillsClient returns client instance.
func NewBillsClient(base *BaseClient) *BillsClient {
	return &BillsClient{base: base}
}

func billPath(id int64, suffix string) string {
	return "/api/bill/" + strconv.FormatInt(id, 10) + suffix
}

// List fetches one server-side page of bills.
func (c *BillsClient) List(ctx context.Context, creds Credentials, q models.BillQuery) (*models.BillPage, error) {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		params.Set("page_size", strconv.Itoa(q.PageSize))
	}
	if q.BLNumber != "" {
		params.Set("bl_number", q.BLNumber)
	}
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	path := "/api/bills"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var page models.BillPage
	if err := c.base.getJSON(ctx, creds, path, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// AwaitingBankIn returns bills awaiting settlement.
func (c *BillsClient) AwaitingBankIn(ctx context.Context, creds Credentials) ([]models.Bill, error) {
	var payload struct {
		Bills []models.Bill `json:"bills"`
		Total int           `json:"total"`
	}
	if err := c.base.getJSON(ctx, creds, "/api/bills/awaiting_bank_in", &payload); err != nil {
		return nil, err
	}
	return payload.Bills, nil
}

// Get fetches a single bill.
func (c *BillsClient) Get(ctx context.Context, creds Credentials, id int64) (*models.Bill, error) {
	var bill models.Bill
	if err := c.base.getJSON(ctx, creds, billPath(id, ""), &bill); err != nil {
		return nil, err
	}
	return &bill, nil
}

// Update replaces the editable fields of a bill.
func (c *BillsClient) Update(ctx context.Context, creds Credentials, id int64, in models.BillUpdate) error {
	return c.base.sendJSON(ctx, creds, http.MethodPut, billPath(id, ""), in, nil)
}

// Delete removes a bill.
func (c *BillsClient) Delete(ctx context.Context, creds Credentials, id int64) error {
	return c.base.sendJSON(ctx, creds, http.MethodDelete, billPath(id, ""), nil, nil)
}

// Search runs POST /api/search_bills.
func (c *BillsClient) Search(ctx context.Context, creds Credentials, in models.BillSearch) ([]models.Bill, error) {
	var bills []models.Bill
	if err := c.base.sendJSON(ctx, creds, http.MethodPost, "/api/search_bills", in, &bills); err != nil {
		return nil, err
	}
	return bills, nil
}

// Complete marks a bill paid with a valid CTN number.
func (c *BillsClient) Complete(ctx context.Context, creds Credentials, id int64) error {
	return c.base.sendJSON(ctx, creds, http.MethodPost, billPath(id, "/complete"), nil, nil)
}

// SettleReserve settles the Allinpay reserve of a bill.
func (c *BillsClient) SettleReserve(ctx context.Context, creds Credentials, id int64) error {
	return c.base.sendJSON(ctx, creds, http.MethodPost, billPath(id, "/settle_reserve"), nil, nil)
}

// GeneratePaymentLink asks the backend for a hosted payment link.
func (c *BillsClient) GeneratePaymentLink(ctx context.Context, creds Credentials, id int64, in models.PaymentLinkRequest) (string, error) {
	var payload struct {
		PaymentLink string `json:"payment_link"`
	}
	path := "/api/generate_payment_link/" + strconv.FormatInt(id, 10)
	if err := c.base.sendJSON(ctx, creds, http.MethodPost, path, in, &payload); err != nil {
		return "", err
	}
	return payload.PaymentLink, nil
}

// Upload submits a new bill with its documents.
func (c *BillsClient) Upload(ctx context.Context, creds Credentials, in models.Upload) (string, error) {
	fields := []formField{
		{name: "name", value: in.Name},
		{name: "email", value: in.Email},
		{name: "phone", value: in.Phone},
	}
	files := make([]models.File, 0, len(in.Bills)+2)
	for _, f := range in.Bills {
		f.Field = "bill_pdf"
		files = append(files, f)
	}
	if in.Invoice != nil {
		f := *in.Invoice
		f.Field = "invoice_pdf"
		files = append(files, f)
	}
	if in.Packing != nil {
		f := *in.Packing
		f.Field = "packing_pdf"
		files = append(files, f)
	}
	var msg models.Message
	if err := c.base.postMultipart(ctx, creds, "/api/upload", fields, files, &msg); err != nil {
		return "", err
	}
	return msg.Message, nil
}

// UploadReceipt attaches a payment receipt to a bill.
func (c *BillsClient) UploadReceipt(ctx context.Context, creds Credentials, id int64, receipt models.File) error {
	receipt.Field = "receipt"
	return c.base.postMultipart(ctx, creds, billPath(id, "/upload_receipt"), nil, []models.File{receipt}, nil)
}

// SendInvoiceEmail emails the invoice and payment link to the customer.
func (c *BillsClient) SendInvoiceEmail(ctx context.Context, creds Credentials, in models.Email) error {
	return c.base.sendJSON(ctx, creds, http.MethodPost, "/api/send_invoice_email", in, nil)
}

// SendUniqueNumberEmail emails the CTN number to the customer.
func (c *BillsClient) SendUniqueNumberEmail(ctx context.Context, creds Credentials, in models.Email) error {
	return c.base.sendJSON(ctx, creds, http.MethodPost, "/api/send_unique_number_email", in, nil)
}
