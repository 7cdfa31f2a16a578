// Package billing holds the bill rules the portal applies before talking to
// the backend: settlement filters, fee validation and email templates.
package billing

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"customsportal/services/portal/internal/models"
)

// Default email subjects.
const (
	InvoiceSubject      = "Your Invoice"
	UniqueNumberSubject = "Your Unique Number for Customs Declaration"
)

var feePattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// ValidFee reports whether s is a non-negative amount with at most two decimals.
func ValidFee(s string) bool {
	return feePattern.MatchString(s)
}

// AwaitingSettlement reports whether a bill belongs in accounting review:
// waiting for the bank transfer, or Allinpay bills paid 85% with the reserve held back.
func AwaitingSettlement(b models.Bill) bool {
	if b.Status == models.StatusAwaitingBankIn {
		return true
	}
	return b.IsAllinpay() && b.PaymentStatus == models.PaymentStatusPaid85
}

// FilterAwaiting keeps bills awaiting settlement whose B/L number contains
// blQuery, case-insensitively. An empty query matches all.
func FilterAwaiting(bills []models.Bill, blQuery string) []models.Bill {
	q := strings.ToLower(strings.TrimSpace(blQuery))
	out := make([]models.Bill, 0, len(bills))
	for _, b := range bills {
		if !AwaitingSettlement(b) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(b.BLNumber), q) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// DisplayStatus maps backend statuses to the labels shown to operators.
func DisplayStatus(status string) string {
	switch strings.TrimSpace(status) {
	case "":
		return models.StatusPending
	case models.StatusCompleted:
		return models.StatusPaidAndCTNValid
	default:
		return status
	}
}

// InvoiceEmailBody is the default body of the invoice email.
func InvoiceEmailBody(b models.Bill) string {
	ctn := feeText(b.CTNFee)
	svc := feeText(b.ServiceFee)
	return fmt.Sprintf(
		"Dear %s,\n\nPlease find your invoice attached.\nCTN Fee: $%s\nService Fee: $%s\nTotal Amount: $%s\n\nPlease follow the below link to make the payment:\n%s\n\nThank you!",
		b.CustomerName, ctn, svc, b.Total().StringFixed(2), b.PaymentLink,
	)
}

// UniqueNumberEmailBody is the default body of the CTN number email.
func UniqueNumberEmailBody(b models.Bill) string {
	return fmt.Sprintf(
		"Dear %s,\n\nYour unique number for customs declaration is: %s\n\nThank you.",
		b.CustomerName, b.UniqueNumber,
	)
}

func feeText(v decimal.NullDecimal) string {
	if !v.Valid {
		return "0"
	}
	return v.Decimal.String()
}

// InvoiceEmail builds the default invoice email for b.
func InvoiceEmail(b models.Bill) models.Email {
	return models.Email{
		ToEmail: b.CustomerEmail,
		Subject: InvoiceSubject,
		Body:    InvoiceEmailBody(b),
		PDFURL:  b.InvoiceFilename,
		BillID:  b.ID,
	}
}

// UniqueNumberEmail builds the default CTN number email for b.
func UniqueNumberEmail(b models.Bill) models.Email {
	return models.Email{
		ToEmail: b.CustomerEmail,
		Subject: UniqueNumberSubject,
		Body:    UniqueNumberEmailBody(b),
		BillID:  b.ID,
	}
}

// PaymentLinkRequest builds the payload for a reserve payment link.
func PaymentLinkRequest(b models.Bill, uniqueNumber, ctnFee, serviceFee, successURL, cancelURL string) models.PaymentLinkRequest {
	return models.PaymentLinkRequest{
		Amount:        0,
		Currency:      "USD",
		CustomerEmail: b.CustomerEmail,
		Description:   "Reserve payment for CTN " + uniqueNumber,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
		CTNFee:        ctnFee,
		ServiceFee:    serviceFee,
	}
}

// IsPDF accepts files declared as PDF or named *.pdf.
func IsPDF(filename, contentType string) bool {
	if strings.EqualFold(strings.TrimSpace(contentType), "application/pdf") {
		return true
	}
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

// SplitImportResults separates matched statement lines from the rest.
func SplitImportResults(results []models.BankImportResult) (matched, unmatched []models.BankImportResult) {
	for _, r := range results {
		if r.Matched() {
			matched = append(matched, r)
		} else {
			unmatched = append(unmatched, r)
		}
	}
	return matched, unmatched
}
