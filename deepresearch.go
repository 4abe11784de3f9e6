// Package deepresearch assembles a deep-research agent: a config-sanitizing
// model layer over a local Ollama (or hosted Anthropic) backend, a Tavily web
// search tool, a reflection tool, and a two-subagent delegation setup
// (researcher and critic). Most applications interact with this package by:
//  1. Creating an Agent via New() from a config.Config
//  2. Running research asynchronously (Run) or synchronously (RunSync)
//
// The conversation loop itself is pluggable behind runtime.Runtime; the
// default is the sequential runtime.Loop, adequate for local runs.
package deepresearch

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/deepresearch/config"
	"github.com/hupe1980/deepresearch/core"
	"github.com/hupe1980/deepresearch/logging"
	"github.com/hupe1980/deepresearch/model"
	"github.com/hupe1980/deepresearch/model/anthropic"
	"github.com/hupe1980/deepresearch/model/ollama"
	"github.com/hupe1980/deepresearch/runtime"
	"github.com/hupe1980/deepresearch/search"
	"github.com/hupe1980/deepresearch/tool"
)

// Options configures the Agent instance.
type Options struct {
	// Config supplies model, search and limit settings. Defaults to
	// config.FromEnv() if nil.
	Config *config.Config

	// Runtime drives the conversation loop. Defaults to runtime.NewLoop.
	Runtime runtime.Runtime

	// Model overrides the provider selected by Config when non-nil.
	Model model.ChatModel

	// SearchClient overrides the Tavily client built from Config when
	// non-nil; useful for tests.
	SearchClient *search.Client

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Agent is the high-level façade aggregating model, tools and runtime.
type Agent struct {
	cfg     *config.Config
	model   model.ChatModel
	runtime runtime.Runtime
	rtCfg   runtime.Config
}

// New creates a research agent with optional overrides. Defaults target a
// local Ollama server and require TAVILY_API_KEY for live search.
func New(optFns ...func(o *Options)) (*Agent, error) {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.FromEnv()
	}

	chatModel := opts.Model
	if chatModel == nil {
		base, err := newBaseModel(cfg)
		if err != nil {
			return nil, err
		}
		chatModel = base
	}

	// All model access goes through the sanitizing adapter so malformed run
	// configs never reach the provider.
	chatModel = model.NewAdapter(chatModel, func(o *model.AdapterOptions) {
		o.Logger = opts.Logger
	})

	searchClient := opts.SearchClient
	if searchClient == nil {
		searchClient = search.NewClient(cfg.TavilyAPIKey)
	}

	searchTool := tool.NewInternetSearchTool(searchClient)
	thinkTool := tool.NewThinkTool()
	researchTools := []tool.Tool{searchTool, thinkTool}

	rtCfg := runtime.Config{
		Model:         chatModel,
		Tools:         researchTools,
		SystemPrompt:  MainPrompt(cfg.MaxConcurrentResearchUnits, cfg.MaxResearcherIterations),
		Summarization: runtime.DefaultSummarizationPolicy(),
		Delegation: runtime.DelegationPolicy{
			DefaultModel: chatModel,
			// Specs without an explicit tool subset inherit these; the
			// critique agent opts out with an empty slice.
			DefaultTools:  researchTools,
			MaxConcurrent: cfg.MaxConcurrentResearchUnits,
			MaxIterations: cfg.MaxResearcherIterations,
			SubAgents: []runtime.SubAgentSpec{
				{
					Name:         ResearchAgentName,
					Description:  "Conducts focused web research on one self-contained task and returns a cited summary.",
					SystemPrompt: ResearchPrompt(cfg.MaxResearcherIterations),
					Tools:        researchTools,
				},
				{
					Name:         CritiqueAgentName,
					Description:  "Reviews a draft research report and returns concrete edits.",
					SystemPrompt: CritiquePrompt(),
					Tools:        []tool.Tool{},
				},
			},
		},
		RecursionLimit: cfg.RecursionLimit,
	}

	rt := opts.Runtime
	if rt == nil {
		rt = runtime.NewLoop(func(o *runtime.LoopOptions) {
			o.Logger = opts.Logger
		})
	}

	return &Agent{
		cfg:     cfg,
		model:   chatModel,
		runtime: rt,
		rtCfg:   rtCfg,
	}, nil
}

// newBaseModel selects the provider from config.
func newBaseModel(cfg *config.Config) (model.ChatModel, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "ollama":
		return ollama.NewModel(func(o *ollama.Options) {
			o.Model = cfg.Model
			o.BaseURL = cfg.BaseURL
		}), nil
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("provider anthropic requires %s", config.EnvAnthropicAPIKey)
		}
		optFns := []func(o *anthropic.Options){
			func(o *anthropic.Options) { o.APIKey = cfg.AnthropicAPIKey },
		}
		if cfg.AnthropicModel != "" {
			optFns = append(optFns, anthropic.WithModel(cfg.AnthropicModel))
		}
		return anthropic.NewModel(optFns...), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

// Config returns the effective configuration.
func (a *Agent) Config() *config.Config { return a.cfg }

// Model returns the sanitizing model the agent invokes.
func (a *Agent) Model() model.ChatModel { return a.model }

// RuntimeConfig returns the assembled runtime configuration, mainly for
// inspection and tests.
func (a *Agent) RuntimeConfig() runtime.Config { return a.rtCfg }

// Run starts a research run asynchronously and returns the event stream.
func (a *Agent) Run(ctx context.Context, question string) (<-chan core.Event, <-chan error) {
	return a.runtime.Run(ctx, a.rtCfg, question)
}

// RunSync runs research to completion and returns the final report text.
func (a *Agent) RunSync(ctx context.Context, question string) (string, error) {
	events, errs := a.Run(ctx, question)

	var final string
	for ev := range events {
		if ev.IsFinalResponse() && ev.Content != nil && ev.Author == "agent" {
			final = ev.Content.Text()
		}
	}
	if err := <-errs; err != nil {
		return "", err
	}
	if final == "" {
		return "", fmt.Errorf("run finished without a final response")
	}
	return final, nil
}
