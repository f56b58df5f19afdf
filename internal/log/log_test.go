package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRespectsLevel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)

	l.Infof("hidden %d", 1)
	l.Warnf("shown %d", 2)
	_ = l.Sync()

	out := buf.String()
	assert.NotContains(t, out, "hidden 1")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "WARN")
}

func TestNamed(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := Named(New(&buf, LevelDebug), "engine")
	l.Debugf("step")

	assert.Contains(t, buf.String(), "engine")
}

func TestValidLevel(t *testing.T) {
	t.Parallel()
	for _, lvl := range []string{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		assert.True(t, ValidLevel(lvl), lvl)
	}
	assert.False(t, ValidLevel("verbose"))
}

func TestNopDiscards(t *testing.T) {
	t.Parallel()
	assert.NotPanics(t, func() { Nop().Errorf("nothing %s", "here") })
}
