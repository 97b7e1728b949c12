// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPtr(t *testing.T) {
	s := "hello"
	p := Ptr(s)
	assert.Equal(t, s, *p)

	// The pointer addresses a copy.
	*p = "changed"
	assert.Equal(t, "hello", s)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, now.Equal(*Ptr(now)))
}

func TestValue(t *testing.T) {
	tests := []struct {
		name     string
		run      func() any
		expected any
	}{
		{"nil string", func() any { return Value[string](nil) }, ""},
		{"string", func() any { return Value(Ptr("call")) }, "call"},
		{"nil int", func() any { return Value[int](nil) }, 0},
		{"int", func() any { return Value(Ptr(42)) }, 42},
		{"nil bool", func() any { return Value[bool](nil) }, false},
		{"nil time", func() any { return Value[time.Time](nil) }, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.run())
		})
	}
}
