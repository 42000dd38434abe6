package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/arbiter/internal/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		wantErr bool
	}{
		{"json info", config.LoggingConfig{Level: "info", Format: "json"}, false},
		{"console debug", config.LoggingConfig{Level: "debug", Format: "console"}, false},
		{"warn json", config.LoggingConfig{Level: "warn", Format: "json"}, false},
		{"bad level", config.LoggingConfig{Level: "chatty", Format: "json"}, true},
		{"bad format", config.LoggingConfig{Level: "info", Format: "xml"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
			logger.Info("logger constructed")
			_ = logger.Sync()
		})
	}
}
