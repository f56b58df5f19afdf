// Package workflows defines the graphs served by the MCP server.
package workflows

import (
	"time"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/command"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/config"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/graph"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/log"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/orchestrator"
)

// Options carries the settings workflows read at build time.
type Options struct {
	ReviewThreshold    float64
	IterationWarnAfter int
	ProjectRoot        string
	CommandTimeout     time.Duration
	Runner             command.Runner
	Logger             log.Logger
}

// OptionsFromConfig derives Options from the server configuration.
func OptionsFromConfig(cfg *config.Config, logger log.Logger) Options {
	return Options{
		ReviewThreshold:    cfg.ReviewThreshold,
		IterationWarnAfter: cfg.IterationWarnAfter,
		ProjectRoot:        cfg.ProjectRoot,
		CommandTimeout:     cfg.CommandTimeout,
		Runner: command.NewExecRunner(
			command.WithTimeout(cfg.CommandTimeout),
			command.WithLogger(logger),
		),
		Logger: logger,
	}
}

func (o Options) withDefaults() Options {
	if o.ReviewThreshold == 0 {
		o.ReviewThreshold = config.DefaultReviewThreshold
	}
	if o.ProjectRoot == "" {
		o.ProjectRoot = "."
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = config.DefaultCommandTimeout
	}
	if o.Logger == nil {
		o.Logger = log.Default
	}
	if o.Runner == nil {
		o.Runner = command.NewExecRunner(command.WithTimeout(o.CommandTimeout), command.WithLogger(o.Logger))
	}
	return o
}

// Catalog returns every workflow the server exposes.
func Catalog(opts Options) []orchestrator.Workflow {
	opts = opts.withDefaults()
	return []orchestrator.Workflow{
		{
			Name:        GreetingName,
			Title:       "Greeting",
			Description: "Asks for the user's name and greets them.",
			Build:       func() (*graph.Graph, error) { return Greeting() },
		},
		{
			Name:        PRDName,
			Title:       "PRD Generation",
			Description: "Drafts, reviews and saves a Product Requirements Document for a mobile feature.",
			Build:       func() (*graph.Graph, error) { return PRD(opts) },
		},
		{
			Name:        MobileAppName,
			Title:       "Mobile App Build and Deploy",
			Description: "Builds a mobile project and deploys it to a simulator or emulator.",
			Build:       func() (*graph.Graph, error) { return MobileApp(opts) },
		},
	}
}
