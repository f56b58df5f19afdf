package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuidanceRendersEveryPrompt(t *testing.T) {
	values := map[string]any{
		"request":      "a request",
		"featureBrief": "a brief",
		"iteration":    1,
		"requirements": []string{"R1", "R2"},
		"threshold":    80.0,
		"feedback":     "more",
		"defaultPath":  "/tmp/PRD.md",
		"title":        "Doc",
		"score":        90.0,
		"iterations":   1,
		"projectRoot":  "/src",
		"platform":     "ios",
		"errors":       []string{"boom"},
	}

	names := PromptNames()
	require.NotEmpty(t, names)
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			out, err := Guidance(name, values)
			require.NoError(t, err)
			assert.NotEmpty(t, out)
			assert.NotContains(t, out, "<no value>")
		})
	}
}

func TestGuidanceNumbersRequirements(t *testing.T) {
	out, err := Guidance("prd-review", map[string]any{
		"iteration":    2,
		"requirements": []string{"First", "Second"},
		"threshold":    75.0,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Review round 2.")
	assert.Contains(t, out, "1. First")
	assert.Contains(t, out, "2. Second")
	assert.Contains(t, out, "below 75")
}

func TestGuidanceErrors(t *testing.T) {
	_, err := Guidance("nope", nil)
	assert.ErrorIs(t, err, ErrUnknownPrompt)

	_, err = Guidance("prd-requirements", nil)
	assert.Error(t, err, "missing variables fail to render")
}
