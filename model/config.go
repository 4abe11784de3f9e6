package model

import (
	"maps"
	"reflect"
)

// Well-known RunConfig keys. Middleware-style consumers iterate over the
// overwrite entry and index into the configurable entry without checking
// types first, so both must always hold a safe shape when present.
const (
	// KeyOverwrite carries an ordered sequence of patches applied to
	// runtime-owned agent state.
	KeyOverwrite = "overwrite"
	// KeyConfigurable carries run-scoped key/value overrides such as
	// thread or session identifiers.
	KeyConfigurable = "configurable"
)

// RunConfig is the per-invocation configuration mapping forwarded alongside
// every model call. A nil RunConfig means "no configuration".
type RunConfig map[string]any

// NewRunConfig builds a RunConfig that is safe by construction: the
// overwrite entry is an ordered sequence and the configurable entry a proper
// mapping. Prefer this over assembling the map by hand.
func NewRunConfig(optFns ...func(c RunConfig)) RunConfig {
	cfg := RunConfig{}
	for _, fn := range optFns {
		fn(cfg)
	}
	return cfg
}

// WithOverwrite sets the overwrite entry to an ordered patch sequence.
func WithOverwrite(patches ...any) func(c RunConfig) {
	return func(c RunConfig) { c[KeyOverwrite] = patches }
}

// WithConfigurable sets the configurable entry to run-scoped overrides.
func WithConfigurable(values map[string]any) func(c RunConfig) {
	return func(c RunConfig) {
		if values == nil {
			values = map[string]any{}
		}
		c[KeyConfigurable] = values
	}
}

// Clone returns a shallow copy of the configuration. Nil stays nil.
func (c RunConfig) Clone() RunConfig {
	if c == nil {
		return nil
	}
	out := make(RunConfig, len(c))
	maps.Copy(out, c)
	return out
}

// Configurable returns the configurable entry as a mapping, or nil when it
// is absent or holds another type.
func (c RunConfig) Configurable() map[string]any {
	if c == nil {
		return nil
	}
	m, _ := c[KeyConfigurable].(map[string]any)
	return m
}

// Sanitize returns a copy of cfg where the two semantically significant
// entries are guaranteed safe for consumers that iterate without type
// checks:
//
//   - overwrite: absent, nil or an ordered sequence. Any other shape is
//     dropped (set to nil) rather than coerced; the consumer's semantics
//     for a one-item patch list are unspecified, and guessing would risk
//     silently changing behavior.
//   - configurable: absent or a string-keyed mapping. Any other shape is
//     replaced with an empty mapping.
//
// Sanitize is a pure function: the input is never mutated, an absent (nil)
// configuration passes through as nil, and sanitization itself cannot fail.
// overwriteDropped reports whether a non-sequence overwrite value was
// discarded so callers can log the likely upstream defect.
func Sanitize(cfg RunConfig) (sanitized RunConfig, overwriteDropped bool) {
	if cfg == nil {
		return nil, false
	}

	sanitized = cfg.Clone()

	if raw, ok := sanitized[KeyOverwrite]; ok && raw != nil {
		if !isSequence(raw) {
			sanitized[KeyOverwrite] = nil
			overwriteDropped = true
		}
	}

	if raw, ok := sanitized[KeyConfigurable]; ok && raw != nil {
		if _, isMap := raw.(map[string]any); !isMap {
			sanitized[KeyConfigurable] = map[string]any{}
		}
	}

	return sanitized, overwriteDropped
}

// isSequence reports whether v is an ordered sequence (slice or array of any
// element type).
func isSequence(v any) bool {
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return true
	default:
		return false
	}
}
