// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package observability provides logging and pipeline counters.
package observability

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger interface.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
	Sync() error
}

// Field represents a log field.
type Field = zap.Field

type logger struct {
	z *zap.Logger
}

// NewLogger creates a logger writing to stderr.
// level is one of debug, info, warn, error; format is console or json.
func NewLogger(level, format string) (Logger, error) {
	return NewLoggerTo(os.Stderr, level, format)
}

// NewLoggerTo creates a logger writing to w.
func NewLoggerTo(w io.Writer, level, format string) (Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(format) {
	case "", "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(w), lvl)
	return &logger{z: zap.New(core)}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return &logger{z: zap.NewNop()}
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

func (l *logger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *logger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *logger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *logger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }

func (l *logger) With(fields ...Field) Logger {
	return &logger{z: l.z.With(fields...)}
}

func (l *logger) Sync() error {
	return l.z.Sync()
}

// String creates a string field.
func String(key, value string) Field {
	return zap.String(key, value)
}

// Int creates an int field.
func Int(key string, value int) Field {
	return zap.Int(key, value)
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return zap.Duration(key, value)
}

// Err creates an error field.
func Err(err error) Field {
	return zap.Error(err)
}
