package workflows

import (
	"embed"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/prompts"
	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.yaml
var promptFS embed.FS

const guidanceFile = "prompts/guidance.yaml"

type promptEntry struct {
	Variables []string `yaml:"variables"`
	Template  string   `yaml:"template"`
}

var (
	loadOnce  sync.Once
	templates map[string]prompts.PromptTemplate
	loadErr   error
)

// ErrUnknownPrompt is returned for a guidance name with no template.
var ErrUnknownPrompt = errors.New("unknown prompt")

func loadTemplates() (map[string]prompts.PromptTemplate, error) {
	loadOnce.Do(func() {
		raw, err := promptFS.ReadFile(guidanceFile)
		if err != nil {
			loadErr = errors.Wrap(err, "read guidance")
			return
		}
		var entries map[string]promptEntry
		if err := yaml.Unmarshal(raw, &entries); err != nil {
			loadErr = errors.Wrap(err, "parse guidance")
			return
		}
		templates = make(map[string]prompts.PromptTemplate, len(entries))
		for name, e := range entries {
			templates[name] = prompts.NewPromptTemplate(e.Template, e.Variables)
		}
	})
	return templates, loadErr
}

// Guidance renders the named guidance template with values.
func Guidance(name string, values map[string]any) (string, error) {
	all, err := loadTemplates()
	if err != nil {
		return "", err
	}
	tmpl, ok := all[name]
	if !ok {
		return "", errors.Wrap(ErrUnknownPrompt, name)
	}
	if values == nil {
		values = map[string]any{}
	}
	out, err := tmpl.Format(values)
	if err != nil {
		return "", errors.Wrapf(err, "render %s", name)
	}
	return out, nil
}

// PromptNames lists the available guidance templates.
func PromptNames() []string {
	all, err := loadTemplates()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
