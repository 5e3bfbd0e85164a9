package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFacadeLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := sugar
	sugar = zap.New(core).Sugar()
	t.Cleanup(func() { sugar = prev })

	Debug("d")
	Debugf("d%d", 1)
	Info("i")
	Infof("i%d", 2)
	Warning("w")
	Warningf("w%d", 3)
	Error("e")
	Errorf("e%d", 4)

	entries := logs.AllUntimed()
	require.Len(t, entries, 8)

	expected := []struct {
		level   zapcore.Level
		message string
	}{
		{zapcore.DebugLevel, "d"},
		{zapcore.DebugLevel, "d1"},
		{zapcore.InfoLevel, "i"},
		{zapcore.InfoLevel, "i2"},
		{zapcore.WarnLevel, "w"},
		{zapcore.WarnLevel, "w3"},
		{zapcore.ErrorLevel, "e"},
		{zapcore.ErrorLevel, "e4"},
	}
	for i, e := range expected {
		assert.Equal(t, e.level, entries[i].Level)
		assert.Equal(t, e.message, entries[i].Message)
	}
}

func TestParseLevel(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(zapcore.WarnLevel, parseLevel("WARNING"))
	assert.Equal(zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(zapcore.ErrorLevel, parseLevel("ERROR"))
	assert.Equal(zapcore.InfoLevel, parseLevel("verbose"))
}
