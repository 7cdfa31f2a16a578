package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// MatchedStatus marks a bank statement line that settled a bill.
const MatchedStatus = "Matched and marked Paid"

// BankRecord is an unmatched bank statement line kept by the backend.
type BankRecord struct {
	ID          int64  `json:"id"`
	Date        Scalar `json:"date"`
	Description string `json:"description"`
	Amount      Scalar `json:"amount"`
	Reason      string `json:"reason"`
	CreatedAt   Scalar `json:"created_at"`
}

// BankImportResult is one line of the bank statement import report.
type BankImportResult struct {
	BLNumber    string `json:"bl_number"`
	Status      string `json:"status"`
	Description string `json:"description"`
	Amount      Scalar `json:"amount"`
	Reason      string `json:"reason"`
}

// Matched reports whether the line settled a bill.
func (r BankImportResult) Matched() bool {
	return r.Status == MatchedStatus
}

// BankImportReport is the POST /admin/import-bank-statement response.
type BankImportReport struct {
	Message string             `json:"message"`
	Results []BankImportResult `json:"results"`
}

// IngestError is one row of /admin/email-ingest-errors.
type IngestError struct {
	ID        int64  `json:"id"`
	Filename  string `json:"filename"`
	Reason    string `json:"reason"`
	RawText   string `json:"raw_text"`
	CreatedAt Scalar `json:"created_at"`
}

// Scalar keeps any JSON scalar (string, number, bool, null) as display text.
// The backend is not consistent about quoting amounts and dates.
type Scalar string

// UnmarshalJSON implements json.Unmarshaler.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*s = ""
	case data[0] == '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar(str)
	default:
		*s = Scalar(data)
	}
	return nil
}

// String returns the text or "N/A" when empty.
func (s Scalar) String() string {
	if strings.TrimSpace(string(s)) == "" {
		return "N/A"
	}
	return string(s)
}

// Float parses the value as a number, reporting whether it succeeded.
func (s Scalar) Float() (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
	return f, err == nil
}
