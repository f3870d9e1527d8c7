package logger

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a console logger writing to stdout at the given level.
func New(level string) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")

	cfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(lvl),
		Development:       false,
		DisableStacktrace: true,
		Encoding:          "console",
		EncoderConfig:     encoderCfg,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}

	return cfg.Build()
}

// ParseLevel accepts zap level names as well as the numeric levels
// (10 debug, 20 info, 30 warning, 40 error, 50 critical) used by older
// deployments of the relay.
func ParseLevel(level string) (zapcore.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		return zapcore.InfoLevel, nil
	}

	if n, err := strconv.Atoi(level); err == nil {
		switch {
		case n <= 10:
			return zapcore.DebugLevel, nil
		case n <= 20:
			return zapcore.InfoLevel, nil
		case n <= 30:
			return zapcore.WarnLevel, nil
		case n <= 40:
			return zapcore.ErrorLevel, nil
		default:
			return zapcore.DPanicLevel, nil
		}
	}

	switch level {
	case "warning":
		return zapcore.WarnLevel, nil
	case "critical":
		return zapcore.DPanicLevel, nil
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
	return lvl, nil
}
