package logger_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"filerelay/internal/logger"
)

func TestParseLevelNames(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for in, want := range cases {
		got, err := logger.ParseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
}

func TestParseLevelNumeric(t *testing.T) {
	cases := map[string]zapcore.Level{
		"10": zapcore.DebugLevel,
		"20": zapcore.InfoLevel,
		"30": zapcore.WarnLevel,
		"40": zapcore.ErrorLevel,
		"50": zapcore.DPanicLevel,
	}
	for in, want := range cases {
		got, err := logger.ParseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
}

func TestParseLevelRejectsGarbage(t *testing.T) {
	_, err := logger.ParseLevel("loud")
	require.Error(t, err)
}

func TestNewBuildsLogger(t *testing.T) {
	log, err := logger.New("debug")
	require.NoError(t, err)
	require.True(t, log.Core().Enabled(zapcore.DebugLevel))
}
