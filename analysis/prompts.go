package analysis

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var embeddedPrompts []byte

// Prompts is the prompt set sent with every analysis.
type Prompts struct {
	System string `yaml:"system"`

	// UserTemplate holds {metadata} and {description} placeholders.
	UserTemplate string `yaml:"user_template"`

	// EmptyDescription replaces a missing detail page text.
	EmptyDescription string `yaml:"empty_description"`
}

// DefaultPrompts returns the embedded prompt set.
func DefaultPrompts() *Prompts {
	p, err := parsePrompts(embeddedPrompts)
	if err != nil {
		panic(fmt.Sprintf("embedded prompts.yaml: %v", err))
	}
	return p
}

// LoadPrompts reads a prompt set from path. Keys missing from the file
// keep their embedded values.
func LoadPrompts(path string) (*Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	p, err := parsePrompts(data)
	if err != nil {
		return nil, fmt.Errorf("parse prompts %s: %w", path, err)
	}

	def := DefaultPrompts()
	if p.System == "" {
		p.System = def.System
	}
	if p.UserTemplate == "" {
		p.UserTemplate = def.UserTemplate
	}
	if p.EmptyDescription == "" {
		p.EmptyDescription = def.EmptyDescription
	}
	return p, nil
}

func parsePrompts(data []byte) (*Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	p.System = strings.TrimSpace(p.System)
	return &p, nil
}

// UserText fills the user template.
func (p *Prompts) UserText(metadata, description string) string {
	if strings.TrimSpace(description) == "" {
		description = p.EmptyDescription
	}
	r := strings.NewReplacer("{metadata}", metadata, "{description}", description)
	return strings.TrimSpace(r.Replace(p.UserTemplate))
}
