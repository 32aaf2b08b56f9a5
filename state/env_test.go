package state

import (
	"context"
	"log"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEnvFromContext(t *testing.T) {
	t.Run("valid context", func(t *testing.T) {
		env := EnvFromContext(ContextWithEnv(context.Background()))
		if env == nil {
			t.Fatal("Expected non-nil environment")
		}
		if env.start.IsZero() {
			t.Error("Environment start time not set")
		}
		if env.Encoding != nil || env.Bundle != "" || env.Strict {
			t.Error("Fresh environment should not force encoding, bundle or strict mode")
		}
	})

	t.Run("panic on missing env", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic when env not in context")
			}
		}()
		EnvFromContext(context.Background())
	})
}

func TestLocalEnv_Uptime(t *testing.T) {
	env := &LocalEnv{start: time.Now().Add(-time.Second)}

	if uptime := env.Uptime(); uptime < time.Second {
		t.Errorf("Uptime() = %v, expected at least 1s", uptime)
	}
}

func TestLocalEnv_NextDump(t *testing.T) {
	env := EnvFromContext(ContextWithEnv(context.Background()))

	for want := 1; want <= 3; want++ {
		if got := env.NextDump(); got != want {
			t.Errorf("NextDump() = %d, want %d", got, want)
		}
	}

	// every run has its own sequence
	other := EnvFromContext(ContextWithEnv(context.Background()))
	if got := other.NextDump(); got != 1 {
		t.Errorf("NextDump() in new environment = %d, want 1", got)
	}
}

func TestLocalEnv_RedirectStdLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	env := &LocalEnv{Log: zap.New(core)}

	env.RedirectStdLog()
	if env.restoreStdLog == nil {
		t.Fatal("Expected restoreStdLog to be set")
	}
	log.Print("from standard logger")
	env.RestoreStdLog()
	log.Print("after restore")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 redirected entry, got %d", len(entries))
	}
	if entries[0].Message != "from standard logger" {
		t.Errorf("Redirected message = %q", entries[0].Message)
	}
}

func TestLocalEnv_NoLogger(t *testing.T) {
	env := &LocalEnv{}

	// neither should panic
	env.RedirectStdLog()
	if env.restoreStdLog != nil {
		t.Error("Expected restoreStdLog to remain nil")
	}
	env.RestoreStdLog()
}
