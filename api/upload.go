package api

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"time"

	"github.com/merbs-org/clientauth/sanitize"
)

// Upload is a file sent by [Client.UploadFile].
type Upload struct {
	// FieldName defaults to "file".
	FieldName string
	FileName  string
	Content   io.Reader
}

// UploadFile POSTs a multipart form containing file and the extra string
// fields. The call gets the client timeout times the upload multiplier.
func (c *Client) UploadFile(ctx context.Context, path string, file Upload, fields map[string]string) (*Envelope, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	field := file.FieldName
	if field == "" {
		field = "file"
	}

	if err := writeMultipart(w, field, file, fields); err != nil {
		return nil, &Error{
			Kind:    KindNetwork,
			Message: sanitize.ErrorMessage(err),
			Detail:  err.Error(),
			Err:     err,
		}
	}

	return c.execute(ctx, call{
		method:         http.MethodPost,
		path:           path,
		body:           buf.Bytes(),
		contentType:    w.FormDataContentType(),
		timeout:        c.timeout * time.Duration(c.uploadMultiplier),
		timeoutMessage: UploadTimeoutMessage,
		statusDetail: func(_ int, text string) string {
			return "Upload failed: " + text
		},
	})
}

func writeMultipart(w *multipart.Writer, field string, file Upload, fields map[string]string) error {
	part, err := w.CreateFormFile(field, file.FileName)
	if err != nil {
		return err
	}
	if file.Content != nil {
		if _, err := io.Copy(part, file.Content); err != nil {
			return err
		}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, fields[k]); err != nil {
			return err
		}
	}

	return w.Close()
}
