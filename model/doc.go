// Package model defines the provider-agnostic invocation contract for
// language models inside deepresearch.
//
// Core pieces:
//   - ChatModel / Runnable: unified sync (Invoke) and streaming/async
//     (Generate) generation plus tool- and option-binding entry points
//   - RunConfig + Sanitize: per-invocation configuration with the two
//     middleware-sensitive entries (overwrite, configurable) normalized to
//     shapes strict consumers can iterate over safely
//   - Adapter: a pass-through wrapper applying Sanitize at every entry point
//   - MockChatModel: lightweight scripting for tests
//
// Providers (model/ollama, model/anthropic) implement ChatModel so higher
// layers remain decoupled from vendor SDKs.
package model
