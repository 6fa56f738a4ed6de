package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewSugaredLogger(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		debug   bool
	}{
		{name: "verbose", verbose: true, debug: true},
		{name: "production", verbose: false, debug: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewSugaredLogger(tt.verbose)
			require.NoError(t, err)
			core := l.Desugar().Core()
			require.Equal(t, tt.debug, core.Enabled(zapcore.DebugLevel))
			require.True(t, core.Enabled(zapcore.InfoLevel))
		})
	}
}
