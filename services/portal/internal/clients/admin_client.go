package clients

import (
	"context"
	"net/http"

	"customsportal/services/portal/internal/models"
)

// AdminClient covers email ingestion and bank reconciliation.
type AdminClient struct {
	base *BaseClient
}

// NewAdminClient returns client.
func NewAdminClient(base *BaseClient) *AdminClient {
	return &AdminClient{base: base}
}

// IngestEmails triggers a mailbox scan for payment receipts.
func (c *AdminClient) IngestEmails(ctx context.Context, creds Credentials) (string, error) {
	var msg models.Message
	if err := c.base.sendJSON(ctx, creds, http.MethodPost, "/admin/ingest-emails", nil, &msg); err != nil {
		return "", err
	}
	return msg.Message, nil
}

// IngestErrors lists emails the ingester could not process.
func (c *AdminClient) IngestErrors(ctx context.Context, creds Credentials) ([]models.IngestError, error) {
	var rows []models.IngestError
	if err := c.base.getJSON(ctx, creds, "/admin/email-ingest-errors", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ImportBankStatement uploads a CSV statement for matching.
func (c *AdminClient) ImportBankStatement(ctx context.Context, creds Credentials, statement models.File) (*models.BankImportReport, error) {
	statement.Field = "file"
	var report models.BankImportReport
	if err := c.base.postMultipart(ctx, creds, "/admin/import-bank-statement", nil, []models.File{statement}, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// BankUnmatched lists statement lines that matched no bill.
func (c *AdminClient) BankUnmatched(ctx context.Context, creds Credentials) ([]models.BankRecord, error) {
	var rows []models.BankRecord
	if err := c.base.getJSON(ctx, creds, "/admin/bank-unmatched", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
