package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Bill statuses as stored by the billing backend.
const (
	StatusPending         = "Pending"
	StatusInvoiceSent     = "Invoice Sent"
	StatusAwaitingBankIn  = "Awaiting Bank In"
	StatusPaidAndCTNValid = "Paid and CTN Valid"
	StatusCompleted       = "Completed"

	ReserveUnsettled = "Unsettled"
	ReserveSettled   = "Reserve Settled"

	PaymentMethodAllinpay = "Allinpay"
	PaymentStatusPaid85   = "Paid 85%"
)

// Bill mirrors a bill_of_lading record returned by the backend.
type Bill struct {
	ID                 int64               `json:"id"`
	Username           string              `json:"username,omitempty"`
	CustomerName       string              `json:"customer_name"`
	CustomerEmail      string              `json:"customer_email"`
	CustomerPhone      string              `json:"customer_phone"`
	BLNumber           string              `json:"bl_number"`
	Shipper            string              `json:"shipper"`
	Consignee          string              `json:"consignee"`
	PortOfLoading      string              `json:"port_of_loading"`
	PortOfDischarge    string              `json:"port_of_discharge"`
	ContainerNumbers   string              `json:"container_numbers"`
	FlightOrVessel     string              `json:"flight_or_vessel"`
	ProductDescription string              `json:"product_description"`
	ServiceFee         decimal.NullDecimal `json:"service_fee"`
	CTNFee             decimal.NullDecimal `json:"ctn_fee"`
	PaymentLink        string              `json:"payment_link"`
	UniqueNumber       string              `json:"unique_number"`
	Status             string              `json:"status"`
	PaymentMethod      string              `json:"payment_method"`
	PaymentStatus      string              `json:"payment_status"`
	ReserveStatus      string              `json:"reserve_status"`
	ReserveAmount      decimal.NullDecimal `json:"reserve_amount"`
	PDFFilename        string              `json:"pdf_filename"`
	InvoiceFilename    string              `json:"invoice_filename"`
	PackingFilename    string              `json:"packing_filename"`
	ReceiptFilename    string              `json:"receipt_filename"`
	CreatedAt          *Timestamp          `json:"created_at,omitempty"`
	CompletedAt        *Timestamp          `json:"completed_at,omitempty"`
	ReceiptUploadedAt  *Timestamp          `json:"receipt_uploaded_at,omitempty"`
}

// Total returns ctn_fee + service_fee treating missing fees as zero.
func (b Bill) Total() decimal.Decimal {
	return feeOrZero(b.CTNFee).Add(feeOrZero(b.ServiceFee))
}

// IsAllinpay reports whether the bill was paid through Allinpay.
func (b Bill) IsAllinpay() bool {
	return strings.EqualFold(strings.TrimSpace(b.PaymentMethod), PaymentMethodAllinpay)
}

// HasUnsettledReserve reports whether an Allinpay reserve is still open.
func (b Bill) HasUnsettledReserve() bool {
	return b.IsAllinpay() && strings.EqualFold(strings.TrimSpace(b.ReserveStatus), ReserveUnsettled)
}

// BillUpdate is the PUT /api/bill/{id} payload. Nil fees are sent as null.
type BillUpdate struct {
	CustomerName       string           `json:"customer_name,omitempty"`
	CustomerEmail      string           `json:"customer_email,omitempty"`
	CustomerPhone      string           `json:"customer_phone,omitempty"`
	BLNumber           string           `json:"bl_number"`
	Shipper            string           `json:"shipper"`
	Consignee          string           `json:"consignee"`
	PortOfLoading      string           `json:"port_of_loading"`
	PortOfDischarge    string           `json:"port_of_discharge"`
	ContainerNumbers   string           `json:"container_numbers"`
	FlightOrVessel     string           `json:"flight_or_vessel"`
	ProductDescription string           `json:"product_description"`
	ServiceFee         *decimal.Decimal `json:"service_fee"`
	CTNFee             *decimal.Decimal `json:"ctn_fee"`
	PaymentLink        string           `json:"payment_link"`
	UniqueNumber       string           `json:"unique_number"`
	PaymentMethod      string           `json:"payment_method,omitempty"`
	PaymentStatus      string           `json:"payment_status,omitempty"`
	ReserveStatus      string           `json:"reserve_status,omitempty"`
}

// BillPage is the GET /api/bills response.
type BillPage struct {
	Bills    []Bill `json:"bills"`
	Total    int    `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// BillQuery filters GET /api/bills.
type BillQuery struct {
	Page     int
	PageSize int
	BLNumber string
	Status   string
}

// BillSearch is the POST /api/search_bills payload.
type BillSearch struct {
	UniqueNumber string `json:"unique_number"`
	BLNumber     string `json:"bl_number"`
	CustomerName string `json:"customer_name"`
	Username     string `json:"username,omitempty"`
}

// Empty reports whether no criteria are set.
func (s BillSearch) Empty() bool {
	return strings.TrimSpace(s.UniqueNumber) == "" &&
		strings.TrimSpace(s.BLNumber) == "" &&
		strings.TrimSpace(s.CustomerName) == "" &&
		strings.TrimSpace(s.Username) == ""
}

// PaymentLinkRequest is the POST /api/generate_payment_link/{id} payload.
type PaymentLinkRequest struct {
	Amount        int    `json:"amount"`
	Currency      string `json:"currency"`
	CustomerEmail string `json:"customer_email"`
	Description   string `json:"description"`
	SuccessURL    string `json:"success_url"`
	CancelURL     string `json:"cancel_url"`
	CTNFee        string `json:"ctn_fee"`
	ServiceFee    string `json:"service_fee"`
}

// Email is the payload of the invoice and CTN number email endpoints.
type Email struct {
	ToEmail string `json:"to_email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	PDFURL  string `json:"pdf_url,omitempty"`
	BillID  int64  `json:"bill_id"`
}

// Upload is a multipart bill upload from the upload form.
type Upload struct {
	Name    string
	Email   string
	Phone   string
	Bills   []File
	Invoice *File
	Packing *File
}

// File is an in-memory uploaded document.
type File struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// Message is the generic {"message": "..."} backend acknowledgement.
type Message struct {
	Message string `json:"message"`
}

func feeOrZero(v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}

// Timestamp accepts the RFC 3339, RFC 1123 and naive ISO layouts the backend emits.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		t.Time = time.Time{}
		return nil
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			t.Time = parsed
			return nil
		}
		lastErr = err
	}
	return lastErr
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.UTC().Format(time.RFC3339) + `"`), nil
}

// Display formats the timestamp for tables; zero renders as "-".
func (t *Timestamp) Display() string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}
