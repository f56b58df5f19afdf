// Package commandtest provides a scripted command.Runner for tests.
package commandtest

import (
	"context"
	"sync"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/command"
)

// Runner replays queued results and records every spec it was asked to run.
// When the queue is empty it returns a successful Result.
type Runner struct {
	mu      sync.Mutex
	results []command.Result
	calls   []command.Spec
}

func New(results ...command.Result) *Runner {
	return &Runner{results: results}
}

// Push queues more results.
func (r *Runner) Push(results ...command.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, results...)
}

func (r *Runner) Run(_ context.Context, spec command.Spec) command.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, spec)
	if len(r.results) == 0 {
		return command.Result{}
	}
	res := r.results[0]
	r.results = r.results[1:]
	return res
}

// Calls returns the specs run so far.
func (r *Runner) Calls() []command.Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]command.Spec(nil), r.calls...)
}

var _ command.Runner = (*Runner)(nil)
