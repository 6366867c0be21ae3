// internal/dispatch/sender.go

// Package dispatch performs the one outbound multipart POST that delivers a
// finished report to its destination.
package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"tech-service-report-api-server/internal/models"
)

// ErrInvalidDestination means the destination is not an absolute http or
// https URL. No request is attempted when this is returned.
var ErrInvalidDestination = errors.New("destination must be an absolute http(s) URL")

// StatusError reports a destination response outside the 2xx range.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("destination returned status %d", e.StatusCode)
}

// ValidateDestination checks the hard precondition for submission: the
// destination must parse as an absolute URL with scheme http or https.
func ValidateDestination(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrInvalidDestination
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidDestination
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidDestination
	}
	return nil
}

// DefaultTimeout bounds the whole submit round trip.
const DefaultTimeout = 60 * time.Second

// Sender posts completed reports. One Send call is exactly one HTTP request;
// there are no retries and no partial uploads.
type Sender struct {
	client *http.Client
}

func NewSender(timeout time.Duration) *Sender {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Sender{client: &http.Client{Timeout: timeout}}
}

// Send delivers the payload document plus every evidence image as a single
// multipart/form-data POST. It returns the upstream status code on any
// response; a non-2xx response is reported as *StatusError, a transport
// failure as a wrapped error with status 0.
func (s *Sender) Send(ctx context.Context, destination string, payload models.ReportPayload, antes, durante, despues []models.EvidenceImage) (int, error) {
	if err := ValidateDestination(destination); err != nil {
		return 0, err
	}

	body, contentType, err := encodeBody(payload, antes, durante, despues)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSpace(destination), body)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send report: %w", err)
	}
	defer resp.Body.Close()
	// The response body is not interpreted.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &StatusError{StatusCode: resp.StatusCode}
	}
	return resp.StatusCode, nil
}

// encodeBody writes the payload part followed by the three image
// collections, each image as one part named after its collection.
func encodeBody(payload models.ReportPayload, antes, durante, despues []models.EvidenceImage) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	doc, err := models.EncodePayload(payload)
	if err != nil {
		return nil, "", fmt.Errorf("encode payload: %w", err)
	}
	part, err := w.CreatePart(partHeader("payload", "payload.json", "application/json"))
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(doc); err != nil {
		return nil, "", err
	}

	collections := []struct {
		name   string
		images []models.EvidenceImage
	}{
		{models.CollectionAntes, antes},
		{models.CollectionDurante, durante},
		{models.CollectionDespues, despues},
	}
	for _, col := range collections {
		for _, img := range col.images {
			contentType := img.ContentType
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			part, err := w.CreatePart(partHeader(col.name, img.Filename, contentType))
			if err != nil {
				return nil, "", err
			}
			if _, err := part.Write(img.Data); err != nil {
				return nil, "", err
			}
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func partHeader(name, filename, contentType string) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(name), quoteEscaper.Replace(filename)))
	h.Set("Content-Type", contentType)
	return h
}
