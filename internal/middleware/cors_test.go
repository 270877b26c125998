package middleware

import (
	"net/http"
	"testing"
)

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		req        request
		wantStatus int
		wantOrigin string
	}{
		{
			name:       "allowed origin",
			allowed:    []string{"http://localhost:3000", "https://rooms.example.com"},
			req:        request{header: map[string]string{"Origin": "https://rooms.example.com"}},
			wantStatus: http.StatusOK,
			wantOrigin: "https://rooms.example.com",
		},
		{
			name:       "other origin",
			allowed:    []string{"http://localhost:3000"},
			req:        request{header: map[string]string{"Origin": "http://evil.example"}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "wildcard echoes origin",
			allowed:    []string{"*"},
			req:        request{header: map[string]string{"Origin": "https://anywhere.example"}},
			wantStatus: http.StatusOK,
			wantOrigin: "https://anywhere.example",
		},
		{
			name:       "no origin header",
			allowed:    []string{"*"},
			req:        request{},
			wantStatus: http.StatusOK,
		},
		{
			name:       "preflight",
			allowed:    []string{"http://localhost:3000"},
			req:        request{method: http.MethodOptions, header: map[string]string{"Origin": "http://localhost:3000"}},
			wantStatus: http.StatusNoContent,
			wantOrigin: "http://localhost:3000",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(newRouter(CORS(tt.allowed)), tt.req)
			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if tt.wantOrigin != "" {
				if got := w.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
					t.Errorf("Allow-Methods = %q", got)
				}
			}
		})
	}
}
