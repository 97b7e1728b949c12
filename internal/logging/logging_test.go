// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package logging

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"
)

func TestErrKeyConstant(t *testing.T) {
	if ErrKey != "error" {
		t.Errorf("expected ErrKey to be 'error', got %q", ErrKey)
	}
}

func TestAppendCtx(t *testing.T) {
	attr := slog.String("key1", "value1")
	ctx := AppendCtx(context.TODO(), attr)

	if ctx == nil {
		t.Fatal("expected non-nil context")
	}

	// Check that the attribute was added
	if attrs, ok := ctx.Value(slogFields).([]slog.Attr); ok {
		if len(attrs) != 1 {
			t.Errorf("expected 1 attribute, got %d", len(attrs))
		}
		if attrs[0].Key != "key1" {
			t.Errorf("expected key 'key1', got %q", attrs[0].Key)
		}
		if attrs[0].Value.String() != "value1" {
			t.Errorf("expected value 'value1', got %q", attrs[0].Value.String())
		}
	} else {
		t.Error("expected slog attributes in context")
	}
}

func TestAppendCtx_WithParent(t *testing.T) {
	// Create parent context with existing attribute
	parentCtx := context.Background()
	attr1 := slog.String("parent_key", "parent_value")
	parentCtx = AppendCtx(parentCtx, attr1)

	// Add another attribute
	attr2 := slog.String("child_key", "child_value")
	childCtx := AppendCtx(parentCtx, attr2)

	// Check that both attributes are present
	if attrs, ok := childCtx.Value(slogFields).([]slog.Attr); ok {
		if len(attrs) != 2 {
			t.Errorf("expected 2 attributes, got %d", len(attrs))
		}

		// Check first attribute
		if attrs[0].Key != "parent_key" {
			t.Errorf("expected first key 'parent_key', got %q", attrs[0].Key)
		}
		if attrs[0].Value.String() != "parent_value" {
			t.Errorf("expected first value 'parent_value', got %q", attrs[0].Value.String())
		}

		// Check second attribute
		if attrs[1].Key != "child_key" {
			t.Errorf("expected second key 'child_key', got %q", attrs[1].Key)
		}
		if attrs[1].Value.String() != "child_value" {
			t.Errorf("expected second value 'child_value', got %q", attrs[1].Value.String())
		}
	} else {
		t.Error("expected slog attributes in context")
	}
}

func TestAppendCtx_MultipleAttributes(t *testing.T) {
	ctx := context.Background()

	// Add multiple attributes
	attr1 := slog.String("key1", "value1")
	attr2 := slog.Int("key2", 42)
	attr3 := slog.Bool("key3", true)

	ctx = AppendCtx(ctx, attr1)
	ctx = AppendCtx(ctx, attr2)
	ctx = AppendCtx(ctx, attr3)

	// Check all attributes are present
	if attrs, ok := ctx.Value(slogFields).([]slog.Attr); ok {
		if len(attrs) != 3 {
			t.Errorf("expected 3 attributes, got %d", len(attrs))
		}

		// Check each attribute
		expectedKeys := []string{"key1", "key2", "key3"}
		for i, expectedKey := range expectedKeys {
			if attrs[i].Key != expectedKey {
				t.Errorf("expected key[%d] %q, got %q", i, expectedKey, attrs[i].Key)
			}
		}
	} else {
		t.Error("expected slog attributes in context")
	}
}

func TestContextHandler_Handle(t *testing.T) {
	var captured []slog.Attr
	testHandler := &testSlogHandler{
		handleFunc: func(ctx context.Context, r slog.Record) error {
			r.Attrs(func(a slog.Attr) bool {
				captured = append(captured, a)
				return true
			})
			return nil
		},
	}

	handler := contextHandler{Handler: testHandler}

	ctx := AppendCtx(context.Background(), slog.String("call_id", "c42"))

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "test message", 0)
	record.AddAttrs(slog.String("record_key", "record_value"))

	if err := handler.Handle(ctx, record); err != nil {
		t.Errorf("expected no error, got: %v", err)
	}

	if len(captured) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(captured))
	}
	if captured[1].Key != "call_id" || captured[1].Value.String() != "c42" {
		t.Errorf("expected context attribute call_id=c42, got %s=%s", captured[1].Key, captured[1].Value.String())
	}
}

func TestContextHandler_WithAttrsKeepsContext(t *testing.T) {
	handler := contextHandler{Handler: &testSlogHandler{}}

	if _, ok := handler.WithAttrs([]slog.Attr{slog.String("k", "v")}).(contextHandler); !ok {
		t.Error("expected WithAttrs to return a contextHandler")
	}
	if _, ok := handler.WithGroup("group").(contextHandler); !ok {
		t.Error("expected WithGroup to return a contextHandler")
	}
}

func TestAppendCtx_SiblingsDoNotShareAttributes(t *testing.T) {
	parent := AppendCtx(context.Background(), slog.String("user_id", "u1"))

	first := AppendCtx(parent, slog.String("call_id", "a"))
	second := AppendCtx(parent, slog.String("call_id", "b"))

	firstAttrs := first.Value(slogFields).([]slog.Attr)
	secondAttrs := second.Value(slogFields).([]slog.Attr)

	if firstAttrs[1].Value.String() != "a" {
		t.Errorf("expected first sibling call_id 'a', got %q", firstAttrs[1].Value.String())
	}
	if secondAttrs[1].Value.String() != "b" {
		t.Errorf("expected second sibling call_id 'b', got %q", secondAttrs[1].Value.String())
	}
}

func TestInitStructureLogConfig_DefaultLevel(t *testing.T) {
	// Clear LOG_LEVEL environment variable
	originalLogLevel := os.Getenv("LOG_LEVEL")
	os.Unsetenv("LOG_LEVEL")
	defer func() {
		if originalLogLevel != "" {
			os.Setenv("LOG_LEVEL", originalLogLevel)
		}
	}()

	handler := InitStructureLogConfig()
	if handler == nil {
		t.Error("expected non-nil handler")
	}
}

func TestInitStructureLogConfig_WithLogLevel(t *testing.T) {
	testCases := []struct {
		name     string
		logLevel string
	}{
		{"debug level", "debug"},
		{"warn level", "warn"},
		{"error level", "error"},
		{"info level", "info"},
		{"unknown level", "unknown"},
	}

	originalLogLevel := os.Getenv("LOG_LEVEL")
	defer func() {
		if originalLogLevel != "" {
			os.Setenv("LOG_LEVEL", originalLogLevel)
		} else {
			os.Unsetenv("LOG_LEVEL")
		}
	}()

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Setenv("LOG_LEVEL", tc.logLevel)
			handler := InitStructureLogConfig()
			if handler == nil {
				t.Error("expected non-nil handler")
			}
		})
	}
}

func TestInitStructureLogConfig_WithAddSource(t *testing.T) {
	testCases := []struct {
		name      string
		addSource string
	}{
		{"true", "true"},
		{"t", "t"},
		{"1", "1"},
		{"false", "false"},
		{"empty", ""},
	}

	originalAddSource := os.Getenv("LOG_ADD_SOURCE")
	defer func() {
		if originalAddSource != "" {
			os.Setenv("LOG_ADD_SOURCE", originalAddSource)
		} else {
			os.Unsetenv("LOG_ADD_SOURCE")
		}
	}()

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Setenv("LOG_ADD_SOURCE", tc.addSource)
			handler := InitStructureLogConfig()
			if handler == nil {
				t.Error("expected non-nil handler")
			}
		})
	}
}

// testSlogHandler is a helper for testing
type testSlogHandler struct {
	handleFunc func(context.Context, slog.Record) error
}

func (h *testSlogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

func (h *testSlogHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.handleFunc != nil {
		return h.handleFunc(ctx, r)
	}
	return nil
}

func (h *testSlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *testSlogHandler) WithGroup(name string) slog.Handler {
	return h
}
