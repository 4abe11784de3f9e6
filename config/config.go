// Package config provides environment-backed runtime configuration with
// defaults suitable for a local Ollama setup.
package config

import (
	"os"
	"strconv"
)

// Environment variable names.
const (
	EnvModel                  = "OLLAMA_MODEL"
	EnvBaseURL                = "OLLAMA_BASE_URL"
	EnvProvider               = "MODEL_PROVIDER"
	EnvAnthropicModel         = "ANTHROPIC_MODEL"
	EnvAnthropicAPIKey        = "ANTHROPIC_API_KEY"
	EnvMaxConcurrentUnits     = "MAX_CONCURRENT_RESEARCH_UNITS"
	EnvMaxResearcherIteration = "MAX_RESEARCHER_ITERATIONS"
	EnvRecursionLimit         = "RECURSION_LIMIT"
	EnvTavilyAPIKey           = "TAVILY_API_KEY"
)

// Config holds all runtime configuration for a research run.
type Config struct {
	// Model is the local model identifier served by Ollama.
	Model string
	// BaseURL is the Ollama server endpoint.
	BaseURL string
	// Provider selects the model backend ("ollama" or "anthropic").
	Provider string
	// AnthropicModel is used when Provider is "anthropic".
	AnthropicModel string
	// AnthropicAPIKey authenticates the hosted provider.
	AnthropicAPIKey string
	// MaxConcurrentResearchUnits bounds parallel delegation in full runtimes.
	MaxConcurrentResearchUnits int
	// MaxResearcherIterations bounds research rounds before concluding.
	MaxResearcherIterations int
	// RecursionLimit bounds agent loop turns.
	RecursionLimit int
	// TavilyAPIKey authenticates the search provider; required for search.
	TavilyAPIKey string
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Model:                      "qwen3:14b",
		BaseURL:                    "http://localhost:11434",
		Provider:                   "ollama",
		AnthropicModel:             "",
		MaxConcurrentResearchUnits: 3,
		MaxResearcherIterations:    3,
		RecursionLimit:             1000,
	}
}

// FromEnv builds a Config from environment variables, falling back to
// defaults for unset or malformed values.
func FromEnv() *Config {
	cfg := Default()

	if v := os.Getenv(EnvModel); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv(EnvProvider); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv(EnvAnthropicModel); v != "" {
		cfg.AnthropicModel = v
	}
	cfg.AnthropicAPIKey = os.Getenv(EnvAnthropicAPIKey)
	cfg.TavilyAPIKey = os.Getenv(EnvTavilyAPIKey)

	cfg.MaxConcurrentResearchUnits = intFromEnv(EnvMaxConcurrentUnits, cfg.MaxConcurrentResearchUnits)
	cfg.MaxResearcherIterations = intFromEnv(EnvMaxResearcherIteration, cfg.MaxResearcherIterations)
	cfg.RecursionLimit = intFromEnv(EnvRecursionLimit, cfg.RecursionLimit)

	return cfg
}

func intFromEnv(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
