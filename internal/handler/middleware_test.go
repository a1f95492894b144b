package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple path", "/api/workers", "/api/workers"},
		{"with uuid", "/api/tenants/acme/recommendations/3f2b9c1e-8d4a-4b6e-9f10-2a7c5e8d1b44", "/api/tenants/acme/recommendations/{id}"},
		{"with hex id", "/api/tenants/a1b2c3d4/analysis", "/api/tenants/{id}/analysis"},
		{"with account number", "/api/tenants/123456789012", "/api/tenants/{id}"},
		{"root path", "/", "/"},
		{"health", "/health", "/health"},
		{"metrics", "/metrics", "/metrics"},
		{"trailing slash", "/api/workers/", "/api/workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := normalizePath(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestIsID(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"a1b2c3d4", true},
		{"12345678", true},
		{"abcd-f01", true},   // contains dash
		{"ABCDEF01", false},  // uppercase not matched
		{"abc", false},       // too short
		{"deadbeef", false},  // no digits, reads like a word
		{"zzzzzzzz", false},  // non-hex chars
		{"recommendations", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := isID(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}
