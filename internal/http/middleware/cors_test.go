package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		allowed     []string
		origin      string
		method      string
		preflight   bool
		wantOrigin  string
		wantStatus  int
		wantForward bool
	}{
		{"listed origin", []string{"https://clinic.example/"}, "https://clinic.example", http.MethodPost, false, "https://clinic.example", http.StatusOK, true},
		{"unlisted origin", []string{"https://clinic.example"}, "https://evil.example", http.MethodPost, false, "", http.StatusOK, true},
		{"wildcard", []string{"*"}, "https://any.example", http.MethodGet, false, "https://any.example", http.StatusOK, true},
		{"preflight", []string{"https://clinic.example"}, "https://clinic.example", http.MethodOptions, true, "https://clinic.example", http.StatusNoContent, false},
		{"no origin", []string{"*"}, "", http.MethodGet, false, "", http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			req := httptest.NewRequest(tt.method, "/v1/messages", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()

			CORS(tt.allowed)(okHandler(&called)).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Fatalf("expected allow origin %q, got %q", tt.wantOrigin, got)
			}
			if called != tt.wantForward {
				t.Fatalf("expected forward=%v, got %v", tt.wantForward, called)
			}
		})
	}
}
