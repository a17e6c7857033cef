package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrincipalIsAdmin(t *testing.T) {
	tests := []struct {
		name      string
		principal *Principal
		want      bool
	}{
		{"nil principal", nil, false},
		{"no metadata", &Principal{Subject: "u1"}, false},
		{"user metadata admin", &Principal{UserMetadata: map[string]any{"role": "admin"}}, true},
		{"app metadata admin", &Principal{AppMetadata: map[string]any{"role": "admin"}}, true},
		{"sites disagree", &Principal{
			UserMetadata: map[string]any{"role": "user"},
			AppMetadata:  map[string]any{"role": "admin"},
		}, true},
		{"other role", &Principal{AppMetadata: map[string]any{"role": "moderator"}}, false},
		{"non string role", &Principal{AppMetadata: map[string]any{"role": true}}, false},
		{"case sensitive", &Principal{AppMetadata: map[string]any{"role": "Admin"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.principal.IsAdmin())
		})
	}
}
