package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/log"
)

func newRunner(opts ...RunnerOption) *ExecRunner {
	return NewExecRunner(append([]RunnerOption{WithLogger(log.Nop())}, opts...)...)
}

func TestExecRunnerSuccess(t *testing.T) {
	t.Parallel()

	res := newRunner().Run(context.Background(), Spec{Name: "sh", Args: []string{"-c", "echo hello; echo oops >&2"}})
	require.NoError(t, res.Err)
	assert.False(t, res.Failed())
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, "oops\n", res.Stderr)
	assert.Empty(t, res.Summary())
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	t.Parallel()

	res := newRunner().Run(context.Background(), Spec{Name: "sh", Args: []string{"-c", "echo broken >&2; exit 3"}})
	assert.True(t, res.Failed())
	assert.Equal(t, 3, res.ExitCode)
	require.Error(t, res.Err)
	assert.Contains(t, res.Summary(), "broken")
}

func TestExecRunnerTimeout(t *testing.T) {
	t.Parallel()

	start := time.Now()
	res := newRunner(WithTimeout(50*time.Millisecond)).Run(context.Background(), Spec{Name: "sleep", Args: []string{"5"}})
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.True(t, res.Failed())
	assert.ErrorIs(t, res.Err, ErrTimeout)
	assert.NotEqual(t, 0, res.ExitCode)
}

func TestExecRunnerSpecTimeoutOverrides(t *testing.T) {
	t.Parallel()

	res := newRunner(WithTimeout(time.Minute)).Run(context.Background(), Spec{
		Name:    "sleep",
		Args:    []string{"5"},
		Timeout: 50 * time.Millisecond,
	})
	assert.ErrorIs(t, res.Err, ErrTimeout)
}

func TestExecRunnerMissingBinary(t *testing.T) {
	t.Parallel()

	res := newRunner().Run(context.Background(), Spec{Name: "definitely-not-a-real-binary-xyz"})
	assert.True(t, res.Failed())
	assert.Error(t, res.Err)
	assert.Equal(t, -1, res.ExitCode)
}

func TestExecRunnerDirAndEnv(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	res := newRunner().Run(context.Background(), Spec{
		Name: "sh",
		Args: []string{"-c", "pwd; echo $GREETING"},
		Dir:  dir,
		Env:  []string{"GREETING=hi"},
	})
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stdout, "hi")
}

func TestSpecString(t *testing.T) {
	assert.Equal(t, "xcodebuild -scheme App", Spec{Name: "xcodebuild", Args: []string{"-scheme", "App"}}.String())
	assert.Equal(t, "ls", Spec{Name: "ls"}.String())
}
