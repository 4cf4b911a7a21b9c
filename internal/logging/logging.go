// Package logging builds the zap logger used by the probe CLI and example
// hosts. Library packages only accept a *zap.Logger; they never build one.
package logging

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects level, encoding and output.
type Config struct {
	Level  string
	Format string
	// Output is "stdout", "stderr" or empty for stderr.
	Output string
}

// New builds a logger from cfg.
func New(cfg Config) (*zap.Logger, error) {
	var w io.Writer = os.Stderr
	if strings.EqualFold(cfg.Output, "stdout") {
		w = os.Stdout
	}
	return NewWithWriter(cfg, w)
}

// NewWithWriter builds a logger that writes to w.
func NewWithWriter(cfg Config, w io.Writer) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if strings.EqualFold(cfg.Format, "console") {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), level)
	return zap.New(core, zap.AddCaller()), nil
}

// Fields converts alternating key/value pairs into zap fields. A trailing key
// without a value is logged under "extra".
func Fields(kv ...any) []zap.Field {
	fields := make([]zap.Field, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok || i+1 >= len(kv) {
			fields = append(fields, zap.Any("extra", kv[i]))
			continue
		}
		if err, isErr := kv[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, kv[i+1]))
	}
	return fields
}

// WarnFunc adapts logger to the func(msg, kv...) shape used by flow deps.
func WarnFunc(logger *zap.Logger) func(string, ...any) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(msg string, kv ...any) {
		logger.Warn(msg, Fields(kv...)...)
	}
}

func parseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	err := l.UnmarshalText([]byte(strings.ToLower(level)))
	return l, err
}
