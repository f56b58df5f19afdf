package workflows

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/checkpoints"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/config"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/graph"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/log"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/state"
)

// driver runs one thread of a compiled workflow.
type driver struct {
	t      *testing.T
	g      *graph.CompiledGraph
	thread string
}

func newDriver(t *testing.T, build func() (*graph.Graph, error), opts ...graph.CompileOption) *driver {
	t.Helper()
	g, err := build()
	require.NoError(t, err)
	opts = append([]graph.CompileOption{graph.WithLogger(log.Nop())}, opts...)
	cg, err := g.Compile(checkpoints.NewMemoryStore(), opts...)
	require.NoError(t, err)
	return &driver{t: t, g: cg, thread: "thread-1"}
}

func (d *driver) start(input state.State) *graph.Result {
	d.t.Helper()
	res, err := d.g.Invoke(context.Background(), d.thread, graph.Start{Input: input})
	require.NoError(d.t, err)
	return res
}

func (d *driver) resume(v any) *graph.Result {
	d.t.Helper()
	res, err := d.g.Invoke(context.Background(), d.thread, graph.ResumeWith(v))
	require.NoError(d.t, err)
	return res
}

func (d *driver) resumeErr(v any) error {
	d.t.Helper()
	_, err := d.g.Invoke(context.Background(), d.thread, graph.ResumeWith(v))
	return err
}

func requireAction(t *testing.T, res *graph.Result, name string) {
	t.Helper()
	require.True(t, res.Suspended(), "expected a suspension at %s", name)
	require.Equal(t, name, res.Interrupt.Request.Name)
}

func TestGreeting(t *testing.T) {
	d := newDriver(t, Greeting)

	res := d.start(nil)
	requireAction(t, res, "sfmobile-greeting-name")
	assert.Equal(t, "Ask", res.Interrupt.Node)
	assert.Equal(t, true, res.State()[KeyStarted])

	res = d.resume(map[string]any{"name": "Ava"})
	require.True(t, res.Completed())
	assert.Equal(t, "Hello, Ava", res.State()[KeyGreeting])
}

func TestGreetingRejectsInvalidInput(t *testing.T) {
	d := newDriver(t, Greeting)
	d.start(nil)

	for name, input := range map[string]any{
		"not an object": "Ava",
		"missing name":  map[string]any{},
		"empty name":    map[string]any{"name": ""},
		"wrong type":    map[string]any{"name": 7},
	} {
		t.Run(name, func(t *testing.T) {
			err := d.resumeErr(input)
			var nerr *graph.NodeExecutionError
			require.ErrorAs(t, err, &nerr)
			assert.Equal(t, "Ask", nerr.Node)
			var invalid *InvalidInputError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, "sfmobile-greeting-name", invalid.Request)
		})
	}

	snap, err := d.g.GetState(context.Background(), d.thread)
	require.NoError(t, err)
	assert.True(t, snap.Suspended(), "thread stays suspended")
}

func TestCatalogCompiles(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.ProjectRoot = root

	catalog := Catalog(OptionsFromConfig(cfg, log.Nop()))
	require.Len(t, catalog, 3)

	names := make([]string, 0, len(catalog))
	for _, wf := range catalog {
		names = append(names, wf.Name)
		assert.NotEmpty(t, wf.Title)
		assert.NotEmpty(t, wf.Description)

		g, err := wf.Build()
		require.NoError(t, err)
		_, err = g.Compile(checkpoints.NewMemoryStore())
		require.NoError(t, err, wf.Name)
	}
	assert.Equal(t, []string{GreetingName, PRDName, MobileAppName}, names)
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	assert.Equal(t, float64(config.DefaultReviewThreshold), opts.ReviewThreshold)
	assert.Equal(t, ".", opts.ProjectRoot)
	assert.Equal(t, config.DefaultCommandTimeout, opts.CommandTimeout)
	assert.NotNil(t, opts.Runner)
	assert.NotNil(t, opts.Logger)
}

func observedLogger() (log.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.WarnLevel)
	return zap.New(core).Sugar(), logs
}
