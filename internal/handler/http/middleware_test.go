package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireContentType(t *testing.T) {
	tests := []struct {
		name        string
		mediaType   string
		method      string
		contentType string
		wantStatus  int
	}{
		{name: "json", mediaType: mediaTypeJSON, method: http.MethodPost, contentType: "application/json", wantStatus: http.StatusOK},
		{name: "json with charset", mediaType: mediaTypeJSON, method: http.MethodPut, contentType: "application/json; charset=utf-8", wantStatus: http.StatusOK},
		{name: "form", mediaType: mediaTypeForm, method: http.MethodPost, contentType: "application/x-www-form-urlencoded", wantStatus: http.StatusOK},
		{name: "form sent as json", mediaType: mediaTypeForm, method: http.MethodPost, contentType: "application/json", wantStatus: http.StatusUnsupportedMediaType},
		{name: "json sent as text", mediaType: mediaTypeJSON, method: http.MethodPost, contentType: "text/plain", wantStatus: http.StatusUnsupportedMediaType},
		{name: "missing header", mediaType: mediaTypeJSON, method: http.MethodPost, contentType: "", wantStatus: http.StatusUnsupportedMediaType},
		{name: "get without body", mediaType: mediaTypeJSON, method: http.MethodGet, contentType: "", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := RequireContentType(tt.mediaType)(okHandler(&called))

			var req *http.Request
			if tt.method == http.MethodGet {
				req = httptest.NewRequest(tt.method, "/api/test", nil)
			} else {
				req = httptest.NewRequest(tt.method, "/api/test", strings.NewReader("x=1"))
			}
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, called)
			if tt.wantStatus == http.StatusUnsupportedMediaType {
				assert.Contains(t, rr.Body.String(), "unsupported_media_type")
			}
		})
	}
}
