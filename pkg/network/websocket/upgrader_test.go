package websocket

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed string
		origin  string
		want    bool
	}{
		{name: "wildcard", allowed: "*", origin: "https://evil.example.com", want: true},
		{name: "exact", allowed: "https://app.example.com", origin: "https://app.example.com", want: true},
		{name: "mismatch", allowed: "https://app.example.com", origin: "https://evil.example.com", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := NewUpgrader(tt.allowed)
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			r.Header.Set("Origin", tt.origin)
			if got := u.CheckOrigin(r); got != tt.want {
				t.Errorf("CheckOrigin() = %v, want %v", got, tt.want)
			}
		})
	}
}
