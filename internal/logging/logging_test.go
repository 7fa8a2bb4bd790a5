package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		debug   bool
		format  string
		level   zapcore.Level
		wantErr bool
	}{
		{name: "default json", format: "", level: zapcore.InfoLevel},
		{name: "console debug", debug: true, format: "console", level: zapcore.DebugLevel},
		{name: "case insensitive", format: "JSON", level: zapcore.InfoLevel},
		{name: "unknown format", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.debug, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.level))
			assert.False(t, logger.Core().Enabled(tt.level-1))
		})
	}
}
