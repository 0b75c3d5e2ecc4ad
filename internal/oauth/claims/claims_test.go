package claims

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcess(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		userinfo   map[string]any
		expected   []string
		wantClaims []string
		wantErrors map[string]int
	}{
		{
			name:       "flag strings",
			userinfo:   map[string]any{"fire": "1", "email_verified": "true"},
			expected:   []string{"fire", "email_verified"},
			wantClaims: []string{"fire", "email_verified"},
			wantErrors: map[string]int{},
		},
		{
			name:       "numeric and bool flags",
			userinfo:   map[string]any{"fire": float64(1), "email_verified": true},
			expected:   []string{"fire", "email_verified"},
			wantClaims: []string{"fire", "email_verified"},
			wantErrors: map[string]int{},
		},
		{
			name:       "false and zero are dropped",
			userinfo:   map[string]any{"fire": "0", "email_verified": "False"},
			expected:   []string{"fire", "email_verified"},
			wantClaims: nil,
			wantErrors: map[string]int{},
		},
		{
			name:       "error codes",
			userinfo:   map[string]any{"fire": "10", "email_verified": float64(12)},
			expected:   []string{"fire", "email_verified"},
			wantClaims: nil,
			wantErrors: map[string]int{"fire": 10, "email_verified": 12},
		},
		{
			name:       "value claims",
			userinfo:   map[string]any{"email": "ada@example.com"},
			expected:   []string{"email"},
			wantClaims: []string{"email:ada@example.com"},
			wantErrors: map[string]int{},
		},
		{
			name:       "missing claims",
			userinfo:   map[string]any{},
			expected:   []string{"fire", ""},
			wantClaims: nil,
			wantErrors: map[string]int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotClaims, gotErrors := Process(context.Background(), logger, tt.userinfo, tt.expected)
			assert.Equal(t, tt.wantClaims, gotClaims)
			assert.Equal(t, tt.wantErrors, gotErrors)
		})
	}
}

func TestParse(t *testing.T) {
	r := Parse("fire email_verified email:ada@example.com")
	assert.True(t, r.Has("fire"))
	assert.True(t, r.Has("email"))
	assert.False(t, r.Has("ssn"))
	assert.Equal(t, "ada@example.com", r.Get("email"))
	assert.Equal(t, "", r.Get("fire"))
	assert.False(t, r.Empty())
	assert.True(t, Parse("  ").Empty())
}
