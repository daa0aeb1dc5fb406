package review

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy drives what the reviewer looks for and how strict the verdict is.
// Policies are YAML files so teams can keep them in the repo under review.
type Policy struct {
	// Focus areas steer the model's attention (e.g. "error handling").
	Focus []string `yaml:"focus,omitempty"`
	// SeverityOverrides remaps the severity of whole categories,
	// e.g. style: info.
	SeverityOverrides map[string]string `yaml:"severityOverrides,omitempty"`
	// Required checks are verified on every file regardless of focus.
	Required []string `yaml:"required,omitempty"`
	// Instructions is free-form text appended to the prompt.
	Instructions string `yaml:"instructions,omitempty"`
	// WarnBudget overrides the configured warning budget when set.
	WarnBudget *int `yaml:"warnBudget,omitempty"`
}

// DefaultPolicy is the built-in policy used when no policy file is given.
func DefaultPolicy() Policy {
	return Policy{
		Focus: []string{
			"correctness and edge cases",
			"security issues in changed code",
			"error handling",
		},
	}
}

// LoadPolicy reads and validates a YAML policy file.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("reading policy file: %w", err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parsing policy file %s: %w", path, err)
	}

	for cat, sev := range p.SeverityOverrides {
		if _, err := ParseCategory(cat); err != nil {
			return Policy{}, fmt.Errorf("policy severityOverrides: %w", err)
		}
		if _, err := ParseSeverity(sev); err != nil {
			return Policy{}, fmt.Errorf("policy severityOverrides[%s]: %w", cat, err)
		}
	}
	return p, nil
}

// EffectiveSeverity applies any category-level override to a severity.
func (p Policy) EffectiveSeverity(cat Category, sev Severity) Severity {
	if o, ok := p.SeverityOverrides[string(cat)]; ok {
		if s, err := ParseSeverity(o); err == nil {
			return s
		}
	}
	return sev
}

// PromptSection renders the policy as prompt text. Empty policies render
// nothing.
func (p Policy) PromptSection() string {
	var b strings.Builder
	if len(p.Focus) > 0 {
		b.WriteString("Focus areas:\n")
		for _, f := range p.Focus {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	if len(p.Required) > 0 {
		b.WriteString("Required checks (verify on every file):\n")
		for _, r := range p.Required {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	if p.Instructions != "" {
		b.WriteString("Additional instructions:\n")
		b.WriteString(strings.TrimSpace(p.Instructions))
		b.WriteString("\n")
	}
	return b.String()
}
