package zap

import (
	"errors"
	"testing"

	"github.com/unkn0wn-root/nscache"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFieldsAndLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core))

	l.Debug("d", nil)
	l.Warn("cache store unreachable", nscache.Fields{"prefix": "app_", "err": errors.New("refused")})

	if logs.Len() != 2 {
		t.Fatalf("got %d entries, want 2", logs.Len())
	}
	e := logs.All()[1]
	if e.Level != zapcore.WarnLevel {
		t.Fatalf("level=%v", e.Level)
	}
	ctx := e.ContextMap()
	if ctx["prefix"] != "app_" || ctx["err"] != "refused" {
		t.Fatalf("fields=%v", ctx)
	}
}

func TestNilLogger(t *testing.T) {
	New(nil).Info("ignored", nscache.Fields{"k": 1})
}
