package server

import (
	"net/http/httptest"
	"testing"

	"github.com/Tyrowin/pokerroom/internal/logging"
)

func TestOriginPolicy(t *testing.T) {
	policy := newOriginPolicy([]string{"http://localhost:8080", " HTTPS://Poker.Example ", "not a url", ""}, logging.Discard())

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{name: "exact match", origin: "http://localhost:8080", want: true},
		{name: "case insensitive", origin: "https://poker.example", want: true},
		{name: "path ignored", origin: "https://poker.example/host/abc", want: true},
		{name: "different port", origin: "http://localhost:9090", want: false},
		{name: "different scheme", origin: "https://localhost:8080", want: false},
		{name: "missing origin", origin: "", want: false},
		{name: "garbage origin", origin: "::::", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := policy.checkOrigin(req); got != tt.want {
				t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestOriginPolicyWildcard(t *testing.T) {
	policy := newOriginPolicy([]string{"*"}, logging.Discard())

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	if !policy.allows(req) {
		t.Error("wildcard should allow any well-formed origin")
	}

	req.Header.Del("Origin")
	if policy.allows(req) {
		t.Error("wildcard must still require an Origin header")
	}
}
