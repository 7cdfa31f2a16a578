package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"customsportal/services/portal/internal/billing"
	"customsportal/services/portal/internal/models"
	"customsportal/services/portal/internal/session"
)

const (
	uploadMemory  = 32 << 20
	onlyPDF       = "Only PDF files are allowed."
	pleaseUpload  = "Please upload at least one document."
	uploadFailed  = "Upload failed."
	uploadSuccess = "Documents uploaded successfully."
)

type uploadData struct {
	Name    string
	Email   string
	Phone   string
	Missing []string
}

// UploadPage handles GET /upload, pre-filled from the operator's profile.
func (h *BillHandlers) UploadPage(w http.ResponseWriter, r *http.Request) {
	s := h.current(r)
	var data uploadData
	if h.Sessions.FetchUserIfNeeded(r.Context(), s, true) {
		data = uploadData{
			Name:  s.User.CustomerName,
			Email: s.User.CustomerEmail,
			Phone: s.User.CustomerPhone,
		}
	}
	h.render(w, r, http.StatusOK, "upload", "Upload Documents", data)
}

// Upload handles POST /upload. Missing invoice or packing list documents
// must be confirmed before the upload goes through.
func (h *BillHandlers) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		h.Logger.Warn("upload form rejected", zap.Error(err))
		h.flash(r, session.FlashError, uploadFailed)
		h.render(w, r, http.StatusOK, "upload", "Upload Documents", uploadData{})
		return
	}
	data := uploadData{
		Name:  formValue(r, "name"),
		Email: formValue(r, "email"),
		Phone: formValue(r, "phone"),
	}

	in, err := uploadFromRequest(r, data)
	if err != nil {
		var invalid billing.ValidationError
		if errors.As(err, &invalid) {
			h.flash(r, session.FlashError, invalid.Error())
		} else {
			h.Logger.Warn("upload read failed", zap.Error(err))
			h.flash(r, session.FlashError, uploadFailed)
		}
		h.render(w, r, http.StatusOK, "upload", "Upload Documents", data)
		return
	}
	if len(in.Bills) == 0 && in.Invoice == nil && in.Packing == nil {
		h.flash(r, session.FlashError, pleaseUpload)
		h.render(w, r, http.StatusOK, "upload", "Upload Documents", data)
		return
	}
	if in.Invoice == nil {
		data.Missing = append(data.Missing, "Invoice")
	}
	if in.Packing == nil {
		data.Missing = append(data.Missing, "Packing List")
	}
	if len(data.Missing) > 0 && r.FormValue("confirm_missing") == "" {
		h.flash(r, session.FlashInfo, "Invoice and/or Packing List not uploaded. Do you want to continue?")
		h.render(w, r, http.StatusOK, "upload", "Upload Documents", data)
		return
	}

	message, err := h.client.Upload(r.Context(), h.current(r), in)
	h.record(r, "upload_bill", 0, in.Email, err)
	if err != nil {
		if h.backendError(w, r, err, uploadFailed) {
			return
		}
		h.render(w, r, http.StatusOK, "upload", "Upload Documents", uploadData{Name: data.Name, Email: data.Email, Phone: data.Phone})
		return
	}
	if message == "" {
		message = uploadSuccess
	}
	h.flash(r, session.FlashSuccess, message)
	h.redirect(w, r, "/upload")
}

func uploadFromRequest(r *http.Request, data uploadData) (models.Upload, error) {
	in := models.Upload{Name: data.Name, Email: data.Email, Phone: data.Phone}
	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["bill_pdf"] {
			if header.Filename == "" {
				continue
			}
			if !billing.IsPDF(header.Filename, header.Header.Get("Content-Type")) {
				return in, billing.ValidationError(onlyPDF)
			}
			f, err := readHeader(header)
			if err != nil {
				return in, err
			}
			f.Field = "bill_pdf"
			in.Bills = append(in.Bills, f)
		}
	}
	for _, field := range []string{"invoice_pdf", "packing_pdf"} {
		f, ok, err := readFile(r, field)
		if err != nil {
			return in, err
		}
		if !ok || f.Filename == "" {
			continue
		}
		if !billing.IsPDF(f.Filename, f.ContentType) {
			return in, billing.ValidationError(onlyPDF)
		}
		file := f
		if field == "invoice_pdf" {
			in.Invoice = &file
		} else {
			in.Packing = &file
		}
	}
	return in, nil
}
