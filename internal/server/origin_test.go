package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func requestWithOrigin(origin string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/ws", http.NoBody)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestOriginPolicy(t *testing.T) {
	policy := NewOriginPolicy([]string{" HTTP://LocalHost:3000 ", "https://chat.example.com", "not-a-url", ""})

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{name: "configured origin", origin: "http://localhost:3000", want: true},
		{name: "case insensitive", origin: "https://CHAT.example.com", want: true},
		{name: "path ignored", origin: "https://chat.example.com/app", want: true},
		{name: "other port", origin: "http://localhost:3001", want: false},
		{name: "other scheme", origin: "https://localhost:3000", want: false},
		{name: "missing origin", origin: "", want: false},
		{name: "malformed origin", origin: "::", want: false},
		{name: "invalid config entry", origin: "not-a-url", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Allowed(requestWithOrigin(tt.origin)))
			assert.Equal(t, tt.want, policy.CheckOrigin(requestWithOrigin(tt.origin)))
		})
	}
}

func TestOriginPolicyWildcard(t *testing.T) {
	policy := NewOriginPolicy([]string{"*"})

	assert.True(t, policy.Allowed(requestWithOrigin("http://anything.example")))
	assert.False(t, policy.Allowed(requestWithOrigin("")), "a missing origin is refused even with *")
}

func TestOriginPolicyEmpty(t *testing.T) {
	policy := NewOriginPolicy(nil)

	assert.False(t, policy.Allowed(requestWithOrigin("http://localhost:3000")))
}
