package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid json", Config{Level: "debug", Format: "json"}, false},
		{"valid console", Config{Level: "warn", Format: "console"}, false},
		{"bad format", Config{Level: "info", Format: "text"}, true},
		{"bad level", Config{Level: "loud", Format: "json"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew(t *testing.T) {
	logger, err := New(&Config{Level: "debug", Format: "console", Fields: map[string]string{"service": "finrag"}})
	require.NoError(t, err)
	require.NotNil(t, logger)
	logger.Debug("test entry")
	assert.NoError(t, Sync(logger))
}

func TestNewNilUsesDefaults(t *testing.T) {
	logger, err := New(nil)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
