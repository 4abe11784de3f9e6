package model

import (
	"context"

	"github.com/hupe1980/deepresearch/logging"
)

// AdapterOptions configure an Adapter instance.
type AdapterOptions struct {
	// Logger receives call-shape diagnostics. Logging is advisory only and
	// never alters control flow.
	Logger logging.Logger
}

// Adapter wraps a ChatModel and intercepts every invocation entry point to
// sanitize the RunConfig before delegation. Middleware frameworks driving
// the tool-call loop iterate over the overwrite entry and index into the
// configurable entry without type checks; some clients supply those fields
// in shapes that break that assumption. The adapter neutralizes the unsafe
// shapes and otherwise forwards request, configuration and result verbatim.
//
// The adapter adds no retry or timeout logic; all errors from the wrapped
// client propagate unchanged.
type Adapter struct {
	wrapped ChatModel
	logger  logging.Logger
}

// NewAdapter wraps a model-serving client.
func NewAdapter(wrapped ChatModel, optFns ...func(o *AdapterOptions)) *Adapter {
	opts := AdapterOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Adapter{wrapped: wrapped, logger: opts.Logger}
}

// sanitize runs config sanitization and emits the diagnostic logs. The Warn
// on a dropped overwrite is deliberately distinguishable from the Debug
// call-shape lines: a non-sequence overwrite almost certainly indicates a
// defect in the upstream caller.
func (a *Adapter) sanitize(entry string, cfg RunConfig) RunConfig {
	sanitized, dropped := Sanitize(cfg)
	if dropped {
		a.logger.Warn("adapter.config.overwrite_dropped", "entry", entry, "model", a.wrapped.Info().Name)
	}
	return sanitized
}

// Invoke sanitizes the configuration then delegates the synchronous call.
func (a *Adapter) Invoke(ctx context.Context, req Request, cfg RunConfig) (*Response, error) {
	a.logger.Debug("adapter.invoke", "messages", len(req.Contents), "tools", len(req.Tools))
	return a.wrapped.Invoke(ctx, req, a.sanitize("invoke", cfg))
}

// Generate sanitizes the configuration then delegates the streaming /
// asynchronous call. The returned channels are the wrapped client's own; the
// adapter adds no additional suspension points or ordering guarantees.
func (a *Adapter) Generate(ctx context.Context, req Request, cfg RunConfig) (<-chan Response, <-chan error) {
	a.logger.Debug("adapter.generate", "messages", len(req.Contents), "tools", len(req.Tools), "stream", req.Stream)
	return a.wrapped.Generate(ctx, req, a.sanitize("generate", cfg))
}

// BindTools returns the bound runnable obtained directly from the wrapped
// client. The bound object's own call contract already satisfies consumers,
// so it is not re-wrapped in a second adapter layer.
func (a *Adapter) BindTools(tools []ToolDefinition) Runnable {
	a.logger.Debug("adapter.bind_tools", "tools", len(tools))
	return a.wrapped.BindTools(tools)
}

// Bind returns the wrapped client's runnable with generic options attached.
func (a *Adapter) Bind(opts map[string]any) Runnable {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	a.logger.Debug("adapter.bind", "options", keys)
	return a.wrapped.Bind(opts)
}

// WithConfig returns a new Adapter holding a freshly re-configured client
// instance. The configuration is sanitized before it becomes the client's
// default.
func (a *Adapter) WithConfig(cfg RunConfig) ChatModel {
	return &Adapter{
		wrapped: a.wrapped.WithConfig(a.sanitize("with_config", cfg)),
		logger:  a.logger,
	}
}

// Info returns the wrapped client's metadata unchanged.
func (a *Adapter) Info() Info { return a.wrapped.Info() }
