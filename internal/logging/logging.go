// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"io"
	stdslog "log/slog"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/nscache"
	nslogrus "github.com/unkn0wn-root/nscache/log/logrus"
	nsslog "github.com/unkn0wn-root/nscache/log/slog"
	nszap "github.com/unkn0wn-root/nscache/log/zap"
)

const (
	BackendZap    = "zap"
	BackendLogrus = "logrus"
	BackendSlog   = "slog"
)

// Options selects the backend and its level. Out defaults to stdout.
type Options struct {
	Backend     string
	Level       string
	Development bool
	Out         io.Writer
}

// New returns the adapted logger and a flush func to defer.
func New(opts Options) (nscache.Logger, func(), error) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	level := strings.ToLower(strings.TrimSpace(opts.Level))
	if level == "" {
		level = "info"
	}

	switch strings.ToLower(opts.Backend) {
	case "", BackendZap:
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: %w", err)
		}
		encCfg := zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		}
		core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(out), lvl)
		zl := zap.New(core)
		if opts.Development {
			zl = zap.New(core, zap.AddCaller(), zap.Development())
		}
		return nszap.New(zl), func() { _ = zl.Sync() }, nil

	case BackendLogrus:
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: %w", err)
		}
		l := logrus.New()
		l.SetOutput(out)
		l.SetLevel(lvl)
		l.SetFormatter(&logrus.JSONFormatter{})
		return nslogrus.New(l), func() {}, nil

	case BackendSlog:
		var lvl stdslog.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, nil, fmt.Errorf("logging: %w", err)
		}
		h := stdslog.NewJSONHandler(out, &stdslog.HandlerOptions{Level: lvl})
		return nsslog.Logger{L: stdslog.New(h)}, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("logging: unknown backend %q", opts.Backend)
	}
}
