// Package mode holds editing modes and a registry that compiles their rules
// into constraints once and reuses them per request.
package mode

import (
	"editguard/internal/config"
	"editguard/internal/constraint"
	"editguard/internal/rules"
)

// Rules are the natural-language rules of a mode, grouped by category.
type Rules struct {
	Allowed    []string `json:"allowed,omitempty"`
	Forbidden  []string `json:"forbidden,omitempty"`
	Focus      []string `json:"focus,omitempty"`
	Boundaries []string `json:"boundaries,omitempty"`
}

// Mode is a named editing behavior. When Constraints is set it is used
// verbatim and Rules are informational.
type Mode struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	Description   string                  `json:"description,omitempty"`
	Version       string                  `json:"version,omitempty"`
	Author        string                  `json:"author,omitempty"`
	Category      string                  `json:"category,omitempty"`
	Compatibility []string                `json:"compatibility,omitempty"`
	Rules         Rules                   `json:"rules"`
	Constraints   []constraint.Constraint `json:"constraints,omitempty"`
}

// RuleTexts flattens the rules in category order.
func (m Mode) RuleTexts() []rules.RuleText {
	var out []rules.RuleText
	add := func(cat rules.Category, texts []string) {
		for _, t := range texts {
			out = append(out, rules.RuleText{Text: t, Category: cat})
		}
	}
	add(rules.CategoryAllowed, m.Rules.Allowed)
	add(rules.CategoryForbidden, m.Rules.Forbidden)
	add(rules.CategoryFocus, m.Rules.Focus)
	add(rules.CategoryBoundary, m.Rules.Boundaries)
	return out
}

// Digest is the canonical hash of the mode definition.
func (m Mode) Digest() (string, error) {
	return constraint.DigestJSON(m)
}

// FromConfig converts an inline mode declaration.
func FromConfig(c config.ModeConfig) Mode {
	return Mode{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Version:     c.Version,
		Author:      c.Author,
		Category:    c.Category,
		Rules: Rules{
			Allowed:    c.Allowed,
			Forbidden:  c.Forbidden,
			Focus:      c.Focus,
			Boundaries: c.Boundaries,
		},
	}
}
