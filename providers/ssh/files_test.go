package ssh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoteRel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		base    string
		path    string
		wantRel string
		wantOK  bool
	}{
		{"nested file", "/opt/langfuse", "/opt/langfuse/caddy/Caddyfile", "caddy/Caddyfile", true},
		{"trailing slash on base", "/opt/langfuse/", "/opt/langfuse/.env", ".env", true},
		{"partial component match", "/opt/langfuse", "/opt/langfuse-old/.env", "", false},
		{"root as base", "/", "/etc/passwd", "etc/passwd", true},
		{"walk root itself", "/opt/langfuse/", "/opt/langfuse", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rel, ok := remoteRel(tt.base, tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantRel, rel)
		})
	}
}
