package graph

import (
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/log"
)

// compileConfig holds the runtime settings of a compiled graph.
type compileConfig struct {
	maxSteps int
	logger   log.Logger
}

func newCompileConfig(opts ...CompileOption) compileConfig {
	cfg := compileConfig{
		logger: log.Default,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

type CompileOption func(*compileConfig)

// WithMaxSteps limits the number of nodes a single Invoke may execute. Zero,
// the default, means no limit; cyclic graphs are not bounded implicitly.
func WithMaxSteps(steps int) CompileOption {
	return func(c *compileConfig) {
		c.maxSteps = steps
	}
}

// WithLogger sets the logger for engine and node diagnostics
func WithLogger(l log.Logger) CompileOption {
	return func(c *compileConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
