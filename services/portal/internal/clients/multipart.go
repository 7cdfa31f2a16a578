package clients

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"customsportal/services/portal/internal/models"
)

type formField struct {
	name  string
	value string
}

// encodeMultipart buffers the form so the request can be replayed after a refresh.
func encodeMultipart(fields []formField, files []models.File) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}
	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Filename))
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func (c *BaseClient) postMultipart(ctx context.Context, creds Credentials, path string, fields []formField, files []models.File, out interface{}) error {
	body, contentType, err := encodeMultipart(fields, files)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	resp, err := c.Call(ctx, creds, http.MethodPost, path, body, contentType)
	if err != nil {
		return err
	}
	return decode(path, resp, out)
}
