package billing

import (
	"strings"

	"github.com/shopspring/decimal"

	"customsportal/services/portal/internal/models"
)

// ValidationError is a form error shown to the operator verbatim.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// Validation errors for the bill edit form.
const (
	ErrShipperRequired   ValidationError = "Shipper is required."
	ErrConsigneeRequired ValidationError = "Consignee is required."
	ErrInvalidFees       ValidationError = "Fees must be valid numbers."
	ErrInvalidCTNFee     ValidationError = "CTN Fee must be a valid number."
	ErrInvalidService    ValidationError = "Service Fee must be a valid number."
	ErrCTNRequired       ValidationError = "Please enter a CTN number."
)

// EditForm is the raw text of the bill edit form.
type EditForm struct {
	CustomerName       string
	CustomerEmail      string
	CustomerPhone      string
	BLNumber           string
	Shipper            string
	Consignee          string
	PortOfLoading      string
	PortOfDischarge    string
	ContainerNumbers   string
	FlightOrVessel     string
	ProductDescription string
	CTNFee             string
	ServiceFee         string
	PaymentLink        string
	UniqueNumber       string
	PaymentMethod      string
	PaymentStatus      string
	ReserveStatus      string
}

// FormFromBill pre-fills the edit form.
func FormFromBill(b models.Bill) EditForm {
	f := EditForm{
		CustomerName:       b.CustomerName,
		CustomerEmail:      b.CustomerEmail,
		CustomerPhone:      b.CustomerPhone,
		BLNumber:           b.BLNumber,
		Shipper:            b.Shipper,
		Consignee:          b.Consignee,
		PortOfLoading:      b.PortOfLoading,
		PortOfDischarge:    b.PortOfDischarge,
		ContainerNumbers:   b.ContainerNumbers,
		FlightOrVessel:     b.FlightOrVessel,
		ProductDescription: b.ProductDescription,
		PaymentLink:        b.PaymentLink,
		UniqueNumber:       b.UniqueNumber,
		PaymentMethod:      b.PaymentMethod,
		PaymentStatus:      b.PaymentStatus,
		ReserveStatus:      b.ReserveStatus,
	}
	if b.CTNFee.Valid {
		f.CTNFee = b.CTNFee.Decimal.String()
	}
	if b.ServiceFee.Valid {
		f.ServiceFee = b.ServiceFee.Decimal.String()
	}
	return f
}

// ValidateFees checks both fees; blank fees are rejected.
func (f EditForm) ValidateFees() error {
	if !ValidFee(strings.TrimSpace(f.CTNFee)) || !ValidFee(strings.TrimSpace(f.ServiceFee)) {
		return ErrInvalidFees
	}
	return nil
}

// Update validates the form and returns the PUT payload. With requireFees
// both fees must be present; otherwise blank fees are sent as null.
func (f EditForm) Update(requireFees bool) (models.BillUpdate, error) {
	if strings.TrimSpace(f.Shipper) == "" {
		return models.BillUpdate{}, ErrShipperRequired
	}
	if strings.TrimSpace(f.Consignee) == "" {
		return models.BillUpdate{}, ErrConsigneeRequired
	}
	ctn, err := parseFee(f.CTNFee, requireFees, ErrInvalidCTNFee)
	if err != nil {
		return models.BillUpdate{}, err
	}
	svc, err := parseFee(f.ServiceFee, requireFees, ErrInvalidService)
	if err != nil {
		return models.BillUpdate{}, err
	}
	return models.BillUpdate{
		CustomerName:       strings.TrimSpace(f.CustomerName),
		CustomerEmail:      strings.TrimSpace(f.CustomerEmail),
		CustomerPhone:      strings.TrimSpace(f.CustomerPhone),
		BLNumber:           strings.TrimSpace(f.BLNumber),
		Shipper:            strings.TrimSpace(f.Shipper),
		Consignee:          strings.TrimSpace(f.Consignee),
		PortOfLoading:      strings.TrimSpace(f.PortOfLoading),
		PortOfDischarge:    strings.TrimSpace(f.PortOfDischarge),
		ContainerNumbers:   strings.TrimSpace(f.ContainerNumbers),
		FlightOrVessel:     strings.TrimSpace(f.FlightOrVessel),
		ProductDescription: strings.TrimSpace(f.ProductDescription),
		CTNFee:             ctn,
		ServiceFee:         svc,
		PaymentLink:        strings.TrimSpace(f.PaymentLink),
		UniqueNumber:       strings.TrimSpace(f.UniqueNumber),
		PaymentMethod:      strings.TrimSpace(f.PaymentMethod),
		PaymentStatus:      strings.TrimSpace(f.PaymentStatus),
		ReserveStatus:      strings.TrimSpace(f.ReserveStatus),
	}, nil
}

// ValidateForPaymentLink requires a CTN number and valid fees.
func (f EditForm) ValidateForPaymentLink() error {
	if strings.TrimSpace(f.UniqueNumber) == "" {
		return ErrCTNRequired
	}
	return f.ValidateFees()
}

func parseFee(raw string, required bool, invalid ValidationError) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" && !required {
		return nil, nil
	}
	if !ValidFee(raw) {
		return nil, invalid
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, invalid
	}
	return &d, nil
}
