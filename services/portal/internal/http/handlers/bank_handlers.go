package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"customsportal/services/portal/internal/billing"
	"customsportal/services/portal/internal/clients"
	"customsportal/services/portal/internal/models"
	"customsportal/services/portal/internal/session"
	"customsportal/services/portal/internal/views"
)

type bankImportData struct {
	Report    *models.BankImportReport
	Matched   []models.BankImportResult
	Unmatched []models.BankImportResult
	Entries   int
	Filename  string
}

type bankUnmatchedData struct {
	Records []models.BankRecord
	Pager   views.Pager
}

// BankHandlers serve bank statement import and the unmatched records list.
type BankHandlers struct {
	base
	client *clients.AdminClient
}

// NewBankHandlers returns handler struct.
func NewBankHandlers(client *clients.AdminClient, deps Deps) *BankHandlers {
	return &BankHandlers{base: base{deps}, client: client}
}

// ImportPage handles GET /bank-import.
func (h *BankHandlers) ImportPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "bank_import", "Bank Statement Import", bankImportData{})
}

// Import handles POST /bank-import. The report is rendered straight away
// since the backend keeps no copy of it.
func (h *BankHandlers) Import(w http.ResponseWriter, r *http.Request) {
	file, ok, err := readFile(r, "file")
	if err != nil {
		h.Logger.Warn("statement read failed", zap.Error(err))
	}
	if err != nil || !ok {
		h.flash(r, session.FlashError, "Please select a CSV file.")
		h.render(w, r, http.StatusOK, "bank_import", "Bank Statement Import", bankImportData{})
		return
	}

	data := bankImportData{
		Filename: file.Filename,
		Entries:  billing.CountStatementBytes(file.Data),
	}
	report, err := h.client.ImportBankStatement(r.Context(), h.current(r), file)
	h.record(r, "import_bank_statement", 0, file.Filename, err)
	if err != nil {
		if h.backendError(w, r, err, "Import failed.") {
			return
		}
		h.render(w, r, http.StatusOK, "bank_import", "Bank Statement Import", bankImportData{})
		return
	}

	data.Report = report
	data.Matched, data.Unmatched = billing.SplitImportResults(report.Results)
	message := report.Message
	if message == "" {
		message = "Import complete."
	}
	h.flash(r, session.FlashSuccess, message)
	h.render(w, r, http.StatusOK, "bank_import", "Bank Statement Import", data)
}

// Unmatched handles GET /bank-unmatched.
func (h *BankHandlers) Unmatched(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, pageSize := views.ParsePage(q, views.DefaultPageSize)
	records, err := h.client.BankUnmatched(r.Context(), h.current(r))
	if err != nil && h.backendError(w, r, err, "Failed to fetch unmatched records") {
		return
	}
	var data bankUnmatchedData
	data.Records, data.Pager = views.Paginate(records, page, pageSize, views.Filters(q))
	h.render(w, r, http.StatusOK, "bank_unmatched", "Unmatched Bank Records", data)
}
