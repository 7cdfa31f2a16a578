package models

import "github.com/shopspring/decimal"

// StatsSummary is the /api/stats/summary response.
type StatsSummary struct {
	TotalBills              int             `json:"total_bills"`
	CompletedBills          int             `json:"completed_bills"`
	PendingBills            int             `json:"pending_bills"`
	TotalInvoiceAmount      decimal.Decimal `json:"total_invoice_amount"`
	TotalPaymentReceived    decimal.Decimal `json:"total_payment_received"`
	TotalPaymentOutstanding decimal.Decimal `json:"total_payment_outstanding"`
}

// OutstandingBill is one row of /api/stats/outstanding_bills.
type OutstandingBill struct {
	ID                int64               `json:"id"`
	CustomerName      string              `json:"customer_name"`
	BLNumber          string              `json:"bl_number"`
	CTNFee            decimal.NullDecimal `json:"ctn_fee"`
	ServiceFee        decimal.NullDecimal `json:"service_fee"`
	ReserveAmount     decimal.NullDecimal `json:"reserve_amount"`
	PaymentMethod     string              `json:"payment_method"`
	ReserveStatus     string              `json:"reserve_status"`
	InvoiceFilename   string              `json:"invoice_filename"`
	OutstandingAmount decimal.Decimal     `json:"outstanding_amount"`
}

// OverviewBill is a bill row enriched by the management overview.
type OverviewBill struct {
	Bill
	IsNew              bool            `json:"is_new"`
	IsOverdue          bool            `json:"is_overdue"`
	TotalInvoiceAmount decimal.Decimal `json:"total_invoice_amount"`
}

// OCRFlag lists the required fields OCR left empty on a bill.
type OCRFlag struct {
	ID       int64    `json:"id"`
	BLNumber string   `json:"bl_number"`
	Missing  []string `json:"missing"`
}

// UnmatchedReceipt is a payment receipt the backend could not attach to a bill.
type UnmatchedReceipt struct {
	ID        int64  `json:"id"`
	Filename  string `json:"filename"`
	BLNumber  string `json:"bl_number"`
	Reason    string `json:"reason"`
	CreatedAt Scalar `json:"created_at"`
}

// OverviewMetrics aggregates bill counts and amounts.
type OverviewMetrics struct {
	TotalBills           int             `json:"total_bills"`
	PendingBills         int             `json:"pending_bills"`
	AwaitingBankIn       int             `json:"awaiting_bank_in"`
	CompletedBills       int             `json:"completed_bills"`
	PaidBills            int             `json:"paid_bills"`
	SumInvoiceAmount     decimal.Decimal `json:"sum_invoice_amount"`
	SumPaidAmount        decimal.Decimal `json:"sum_paid_amount"`
	SumOutstandingAmount decimal.Decimal `json:"sum_outstanding_amount"`
}

// ManagementOverview is the /api/management/overview response.
type ManagementOverview struct {
	Bills []OverviewBill `json:"bills"`
	Flags struct {
		OCRMissing        []OCRFlag          `json:"ocr_missing"`
		UnmatchedReceipts []UnmatchedReceipt `json:"unmatched_receipts"`
	} `json:"flags"`
	Metrics OverviewMetrics `json:"metrics"`
}
