// Package command runs the shell commands used by build and deploy steps.
package command

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/log"
)

// DefaultTimeout bounds a command when the runner has no timeout set.
const DefaultTimeout = 5 * time.Minute

// ErrTimeout is reported in Result.Err when a command exceeds its deadline.
var ErrTimeout = errors.New("command timed out")

// Spec describes one command invocation.
type Spec struct {
	Name string
	Args []string
	Dir  string
	Env  []string
	// Timeout overrides the runner's timeout when positive.
	Timeout time.Duration
}

func (s Spec) String() string {
	return strings.TrimSpace(s.Name + " " + strings.Join(s.Args, " "))
}

// Result is the outcome of a command. A failed or timed out command is a
// Result with Err set, never a Go error from Run.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	Err      error
}

func (r Result) Failed() bool {
	return r.Err != nil || r.ExitCode != 0
}

// Summary returns a one-line description of a failure.
func (r Result) Summary() string {
	if !r.Failed() {
		return ""
	}
	msg := strings.TrimSpace(r.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(r.Stdout)
	}
	if r.Err != nil {
		if msg == "" {
			return r.Err.Error()
		}
		return r.Err.Error() + ": " + msg
	}
	return fmt.Sprintf("exit code %d: %s", r.ExitCode, msg)
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, spec Spec) Result
}

// ExecRunner runs commands as local processes.
type ExecRunner struct {
	Timeout time.Duration
	Logger  log.Logger
}

// RunnerOption configures an ExecRunner
type RunnerOption func(*ExecRunner)

// WithTimeout sets the default timeout for every command
func WithTimeout(timeout time.Duration) RunnerOption {
	return func(r *ExecRunner) {
		r.Timeout = timeout
	}
}

// WithLogger sets the logger
func WithLogger(l log.Logger) RunnerOption {
	return func(r *ExecRunner) {
		r.Logger = l
	}
}

func NewExecRunner(opts ...RunnerOption) *ExecRunner {
	r := &ExecRunner{
		Timeout: DefaultTimeout,
		Logger:  log.Default,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes spec with a deadline of spec.Timeout, or the runner's
// timeout when unset.
func (r *ExecRunner) Run(ctx context.Context, spec Spec) Result {
	timeout := r.Timeout
	if spec.Timeout > 0 {
		timeout = spec.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(timeoutCtx, spec.Name, spec.Args...) //nolint:gosec
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(cmd.Environ(), spec.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger().Debugf("running %s (timeout %s)", spec, timeout)
	start := time.Now()
	err := cmd.Run()

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case err == nil:
	case errors.Is(timeoutCtx.Err(), context.DeadlineExceeded):
		res.Err = errors.Wrapf(ErrTimeout, "%s after %s", spec, timeout)
	default:
		res.Err = errors.Wrapf(err, "run %s", spec)
	}
	if res.Err != nil && res.ExitCode == 0 {
		res.ExitCode = -1
	}

	if res.Failed() {
		r.logger().Warnf("command %s failed: %s", spec, res.Summary())
	}
	return res
}

func (r *ExecRunner) logger() log.Logger {
	if r.Logger == nil {
		return log.Default
	}
	return r.Logger
}

var _ Runner = (*ExecRunner)(nil)
