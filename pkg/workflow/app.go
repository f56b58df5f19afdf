package workflow

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/graph"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/types"
)

// Callback is invoked after each Invoke of an App.
type Callback interface {
	OnSuspend(ctx context.Context, threadID string, res *graph.Result) error
	OnComplete(ctx context.Context, threadID string, res *graph.Result) error
	OnError(ctx context.Context, threadID string, err error) error
}

// App represents a compiled workflow plus its checkpointer and callback.
type App struct {
	workflow *Builder
	compiled *graph.CompiledGraph
	callback Callback

	store       types.Checkpointer
	compileOpts []graph.CompileOption
}

// AppOption is a functional option that configures the App before finalizing.
type AppOption func(*App)

func WithCallback(cb Callback) AppOption {
	return func(a *App) {
		a.callback = cb
	}
}

func WithCheckpointer(store types.Checkpointer) AppOption {
	return func(a *App) {
		a.store = store
	}
}

// WithCompileOptions passes options through to graph compilation.
func WithCompileOptions(opts ...graph.CompileOption) AppOption {
	return func(a *App) {
		a.compileOpts = append(a.compileOpts, opts...)
	}
}

// NewApp compiles the Builder against the configured checkpointer.
func NewApp(wf *Builder, opts ...AppOption) (*App, error) {
	app := &App{workflow: wf}
	for _, opt := range opts {
		opt(app)
	}

	cg, err := wf.Compile(app.store, app.compileOpts...)
	if err != nil {
		return nil, fmt.Errorf("NewApp: failed to compile workflow: %w", err)
	}
	app.compiled = cg
	return app, nil
}

// Compiled returns the compiled graph.
func (app *App) Compiled() *graph.CompiledGraph {
	return app.compiled
}

// Invoke runs one step of the thread lifecycle and reports the outcome to
// the callback. A callback error is returned when the run itself succeeded.
func (app *App) Invoke(ctx context.Context, threadID string, cmd graph.Command) (*graph.Result, error) {
	res, err := app.compiled.Invoke(ctx, threadID, cmd)
	if err != nil {
		if app.callback != nil {
			_ = app.callback.OnError(ctx, threadID, err)
		}
		return nil, errors.Wrap(err, "invoke: workflow failed")
	}
	if app.callback == nil {
		return res, nil
	}

	if res.Suspended() {
		if cbErr := app.callback.OnSuspend(ctx, threadID, res); cbErr != nil {
			return res, fmt.Errorf("invoke: callback OnSuspend failed: %w", cbErr)
		}
		return res, nil
	}
	if cbErr := app.callback.OnComplete(ctx, threadID, res); cbErr != nil {
		return res, fmt.Errorf("invoke: callback OnComplete failed: %w", cbErr)
	}
	return res, nil
}

// GetState returns the latest snapshot of threadID.
func (app *App) GetState(ctx context.Context, threadID string) (*types.Snapshot, error) {
	return app.compiled.GetState(ctx, threadID)
}
