// Package main is the entry point for the deepresearch CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/hupe1980/deepresearch"
	"github.com/hupe1980/deepresearch/config"
	"github.com/hupe1980/deepresearch/logging"
	"github.com/hupe1980/deepresearch/memutil"
)

var version = "dev"

// CLI defines the command-line interface.
type CLI struct {
	Run    RunCmd    `cmd:"" help:"Run deep research on a question"`
	Config ConfigCmd `cmd:"" help:"Print the effective configuration"`
	Stats  StatsCmd  `cmd:"" help:"Print accelerator memory statistics"`

	Verbose bool             `short:"v" help:"Enable debug logging"`
	Version kong.VersionFlag `help:"Show version information"`
}

// RunCmd runs a research question to completion and prints the report.
type RunCmd struct {
	Question string `arg:"" help:"Research question"`
	Events   bool   `help:"Stream intermediate events to stderr"`
}

func (c *RunCmd) Run(cli *CLI) error {
	logger := newLogger(cli.Verbose)

	agent, err := deepresearch.New(func(o *deepresearch.Options) {
		o.Logger = logger
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Free what we can between runs; local models are memory hungry.
	defer memutil.Reclaim(logger)

	if !c.Events {
		report, err := agent.RunSync(ctx, c.Question)
		if err != nil {
			return err
		}
		fmt.Println(report)
		return nil
	}

	events, errs := agent.Run(ctx, c.Question)
	var final string
	for ev := range events {
		if ev.Content != nil {
			fmt.Fprintf(os.Stderr, "[%s] %s\n", ev.Author, ev.Content.Text())
		}
		if ev.IsFinalResponse() && ev.Content != nil && ev.Author == "agent" {
			final = ev.Content.Text()
		}
	}
	if err := <-errs; err != nil {
		return err
	}
	fmt.Println(final)
	return nil
}

// ConfigCmd prints the resolved configuration as JSON, with secrets redacted.
type ConfigCmd struct{}

func (c *ConfigCmd) Run(cli *CLI) error {
	cfg := config.FromEnv()
	if cfg.TavilyAPIKey != "" {
		cfg.TavilyAPIKey = "***"
	}
	if cfg.AnthropicAPIKey != "" {
		cfg.AnthropicAPIKey = "***"
	}
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// StatsCmd prints accelerator memory statistics, if a backend is registered.
type StatsCmd struct{}

func (c *StatsCmd) Run(cli *CLI) error {
	stats := memutil.MemoryStats()
	if stats == nil {
		fmt.Println("no accelerator backend available")
		return nil
	}
	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func newLogger(verbose bool) logging.Logger {
	level := logging.LogLevelInfo
	if verbose {
		level = logging.LogLevelDebug
	}
	return logging.NewSlogLogger(level, "text", os.Stderr)
}

func main() {
	// Load .env for local development; real deployments set the environment.
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("deepresearch"),
		kong.Description("Deep research agent backed by a local Ollama model and Tavily search."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
