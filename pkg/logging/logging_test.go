package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	quiet := New(false)
	assert.False(t, quiet.Core().Enabled(zap.InfoLevel))
	assert.True(t, quiet.Core().Enabled(zap.WarnLevel))

	verbose := New(true)
	assert.True(t, verbose.Core().Enabled(zap.DebugLevel))
}

func TestNop(t *testing.T) {
	assert.False(t, Nop().Core().Enabled(zap.ErrorLevel))
}
