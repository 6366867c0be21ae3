package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tech-service-report-api-server/internal/models"
)

func TestValidateDestination(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "https", input: "https://example.com/hook"},
		{name: "http", input: "http://example.com"},
		{name: "surrounding spaces", input: "  https://example.com/hook  "},
		{name: "ftp", input: "ftp://x", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "no scheme", input: "example.com/hook", wantErr: true},
		{name: "scheme only", input: "https://", wantErr: true},
		{name: "garbage", input: "::not a url::", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDestination(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDestination)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func testPayload() models.ReportPayload {
	draft := models.ReportDraft{
		Metadata:            models.Metadata{ID: "OS-1", Ciudad: "Bogota"},
		DescripcionServicio: "Cambio de router",
		Equipos:             []models.EquipmentItem{{Nombre: "Router", Cantidad: 1}},
	}
	return draft.BuildPayload(time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC))
}

func TestSendBuildsOneMultipartRequest(t *testing.T) {
	type received struct {
		contentType string
		form        map[string][]struct {
			filename, contentType string
			body                  []byte
		}
	}
	var calls []received

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(32<<20))
		rec := received{contentType: r.Header.Get("Content-Type"), form: map[string][]struct {
			filename, contentType string
			body                  []byte
		}{}}
		for name, headers := range r.MultipartForm.File {
			for _, fh := range headers {
				f, err := fh.Open()
				require.NoError(t, err)
				body, err := io.ReadAll(f)
				require.NoError(t, err)
				f.Close()
				rec.form[name] = append(rec.form[name], struct {
					filename, contentType string
					body                  []byte
				}{fh.Filename, fh.Header.Get("Content-Type"), body})
			}
		}
		calls = append(calls, rec)
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	antes := []models.EvidenceImage{
		{Filename: "antes-1.png", ContentType: "image/png", Data: []byte("png-1")},
		{Filename: "antes-2.jpg", ContentType: "image/jpeg", Data: []byte("jpg-2")},
	}

	sender := NewSender(5 * time.Second)
	status, err := sender.Send(context.Background(), backend.URL, testPayload(), antes, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	require.Len(t, calls, 1)
	call := calls[0]
	assert.Contains(t, call.contentType, "multipart/form-data")

	payloadParts := call.form["payload"]
	require.Len(t, payloadParts, 1)
	assert.Equal(t, "payload.json", payloadParts[0].filename)
	assert.Equal(t, "application/json", payloadParts[0].contentType)

	var doc models.ReportPayload
	require.NoError(t, json.Unmarshal(payloadParts[0].body, &doc))
	assert.Equal(t, "OS-1", doc.Metadata.ID)
	assert.Equal(t, "2024-05-06T07:08:09Z", doc.Metadata.SubmittedAt)
	require.Len(t, doc.EquiposMaterialesInstalados, 1)

	antesParts := call.form[models.CollectionAntes]
	require.Len(t, antesParts, 2)
	assert.Equal(t, "antes-1.png", antesParts[0].filename)
	assert.Equal(t, "image/png", antesParts[0].contentType)
	assert.Equal(t, []byte("png-1"), antesParts[0].body)
	assert.Equal(t, "antes-2.jpg", antesParts[1].filename)

	assert.Empty(t, call.form[models.CollectionDurante])
	assert.Empty(t, call.form[models.CollectionDespues])
}

func TestSendContentTypeFallback(t *testing.T) {
	var got string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(32<<20))
		files := r.MultipartForm.File[models.CollectionDurante]
		if len(files) == 1 {
			got = files[0].Header.Get("Content-Type")
		}
	}))
	defer backend.Close()

	durante := []models.EvidenceImage{{Filename: "x", Data: []byte{1, 2, 3}}}
	sender := NewSender(5 * time.Second)
	_, err := sender.Send(context.Background(), backend.URL, testPayload(), nil, durante, nil)
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", got)
}

func TestSendNonSuccessStatus(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer backend.Close()

	sender := NewSender(5 * time.Second)
	status, err := sender.Send(context.Background(), backend.URL, testPayload(), nil, nil, nil)

	assert.Equal(t, http.StatusInternalServerError, status)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestSendNetworkFailure(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead := backend.URL
	backend.Close()

	sender := NewSender(2 * time.Second)
	status, err := sender.Send(context.Background(), dead, testPayload(), nil, nil, nil)

	assert.Zero(t, status)
	require.Error(t, err)
	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr))
}

func TestSendInvalidDestinationMakesNoRequest(t *testing.T) {
	sender := NewSender(time.Second)
	for _, destination := range []string{"", "ftp://x", "not-a-url"} {
		status, err := sender.Send(context.Background(), destination, testPayload(), nil, nil, nil)
		assert.Zero(t, status, destination)
		assert.ErrorIs(t, err, ErrInvalidDestination, destination)
	}
}
