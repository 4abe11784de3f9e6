package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeNilConfig(t *testing.T) {
	sanitized, dropped := Sanitize(nil)
	assert.Nil(t, sanitized)
	assert.False(t, dropped)
}

func TestSanitizeUntouchedKeys(t *testing.T) {
	cfg := RunConfig{"recursion_limit": 50, "tags": []string{"a"}}

	sanitized, dropped := Sanitize(cfg)

	assert.False(t, dropped)
	assert.Equal(t, 50, sanitized["recursion_limit"])
	assert.Equal(t, []string{"a"}, sanitized["tags"])
}

func TestSanitizeOverwrite(t *testing.T) {
	tests := []struct {
		name        string
		value       any
		wantDropped bool
	}{
		{name: "slice preserved", value: []any{"patch-a", "patch-b"}, wantDropped: false},
		{name: "typed slice preserved", value: []string{"patch-a"}, wantDropped: false},
		{name: "string dropped", value: "patch-a", wantDropped: true},
		{name: "map dropped", value: map[string]any{"k": "v"}, wantDropped: true},
		{name: "int dropped", value: 42, wantDropped: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := RunConfig{KeyOverwrite: tt.value}

			sanitized, dropped := Sanitize(cfg)

			assert.Equal(t, tt.wantDropped, dropped)
			if tt.wantDropped {
				assert.Nil(t, sanitized[KeyOverwrite])
			} else {
				assert.Equal(t, tt.value, sanitized[KeyOverwrite])
			}
		})
	}
}

func TestSanitizeConfigurable(t *testing.T) {
	t.Run("mapping preserved", func(t *testing.T) {
		cfg := RunConfig{KeyConfigurable: map[string]any{"thread_id": "t-1"}}

		sanitized, dropped := Sanitize(cfg)

		assert.False(t, dropped)
		assert.Equal(t, map[string]any{"thread_id": "t-1"}, sanitized[KeyConfigurable])
	})

	t.Run("non mapping replaced with empty", func(t *testing.T) {
		for _, bad := range []any{"nope", 7, []any{"x"}} {
			cfg := RunConfig{KeyConfigurable: bad}

			sanitized, _ := Sanitize(cfg)

			assert.Equal(t, map[string]any{}, sanitized[KeyConfigurable])
		}
	})
}

func TestSanitizeDoesNotMutateInput(t *testing.T) {
	cfg := RunConfig{
		KeyOverwrite:    "bad-shape",
		KeyConfigurable: "also-bad",
	}

	sanitized, dropped := Sanitize(cfg)

	assert.True(t, dropped)
	assert.Nil(t, sanitized[KeyOverwrite])
	assert.Equal(t, "bad-shape", cfg[KeyOverwrite])
	assert.Equal(t, "also-bad", cfg[KeyConfigurable])
}

func TestSanitizeBothKeysTogether(t *testing.T) {
	cfg := RunConfig{
		KeyOverwrite:    map[string]any{"oops": true},
		KeyConfigurable: 13,
		"other":         "kept",
	}

	sanitized, dropped := Sanitize(cfg)

	assert.True(t, dropped)
	assert.Nil(t, sanitized[KeyOverwrite])
	assert.Equal(t, map[string]any{}, sanitized[KeyConfigurable])
	assert.Equal(t, "kept", sanitized["other"])
}

func TestNewRunConfigShapes(t *testing.T) {
	cfg := NewRunConfig(
		WithOverwrite("patch-a", "patch-b"),
		WithConfigurable(map[string]any{"thread_id": "t-1"}),
	)

	sanitized, dropped := Sanitize(cfg)

	assert.False(t, dropped)
	assert.Equal(t, cfg, sanitized)
	assert.Equal(t, map[string]any{"thread_id": "t-1"}, cfg.Configurable())
}

func TestRunConfigCloneNil(t *testing.T) {
	var cfg RunConfig
	assert.Nil(t, cfg.Clone())
}
