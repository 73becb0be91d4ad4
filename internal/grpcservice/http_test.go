package grpcservice

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.klb.dev/clipstash/internal/message"
)

func TestHTTPHandler(t *testing.T) {
	h := newHarness(t, "tok")
	srv := httptest.NewServer(h.svc.HTTPHandler())
	defer srv.Close()

	post := func(t *testing.T, body, token string) (*http.Response, message.Response) {
		t.Helper()
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/messages", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer res.Body.Close()
		var out message.Response
		if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		return res, out
	}

	tests := []struct {
		name     string
		body     string
		token    string
		wantCode int
		check    func(t *testing.T, r message.Response)
	}{
		{
			name:     "missing token",
			body:     `{"action":"getClipboardItems"}`,
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "malformed body",
			body:     `{"action":`,
			token:    "tok",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown action",
			body:     `{"action":"explode"}`,
			token:    "tok",
			wantCode: http.StatusBadRequest,
			check: func(t *testing.T, r message.Response) {
				if !strings.Contains(r.Error, "explode") {
					t.Errorf("error = %q, want it to name the action", r.Error)
				}
			},
		},
		{
			name:     "add",
			body:     `{"action":"addClipboardItem","item":{"type":"text","content":"via http","timestamp":7}}`,
			token:    "tok",
			wantCode: http.StatusOK,
			check: func(t *testing.T, r message.Response) {
				if !r.Success {
					t.Error("success = false")
				}
			},
		},
		{
			name:     "list",
			body:     `{"action":"getClipboardItems"}`,
			token:    "tok",
			wantCode: http.StatusOK,
			check: func(t *testing.T, r message.Response) {
				if len(r.ClipboardItems) != 1 || r.ClipboardItems[0].Content != "via http" {
					t.Errorf("items = %+v", r.ClipboardItems)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, out := post(t, tt.body, tt.token)
			if res.StatusCode != tt.wantCode {
				t.Fatalf("status = %d, want %d (%+v)", res.StatusCode, tt.wantCode, out)
			}
			if tt.check != nil {
				tt.check(t, out)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, "tok")
	srv := httptest.NewServer(h.svc.HTTPHandler())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNoContent {
		t.Errorf("healthz = %d, want 204", res.StatusCode)
	}
}
