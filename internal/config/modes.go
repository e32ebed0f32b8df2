package config

// ModeConfig declares a mode inline. Rules are natural-language sentences
// compiled on first use.
type ModeConfig struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Version     string   `yaml:"version,omitempty"`
	Author      string   `yaml:"author,omitempty"`
	Category    string   `yaml:"category,omitempty"`
	Allowed     []string `yaml:"allowed,omitempty"`
	Forbidden   []string `yaml:"forbidden,omitempty"`
	Focus       []string `yaml:"focus,omitempty"`
	Boundaries  []string `yaml:"boundaries,omitempty"`
}

// FindMode returns the inline mode with the given id.
func (c *Config) FindMode(id string) (ModeConfig, bool) {
	for _, m := range c.Modes {
		if m.ID == id {
			return m, true
		}
	}
	return ModeConfig{}, false
}

func defaultModes() []ModeConfig {
	return []ModeConfig{
		{
			ID:          "grammar",
			Name:        "Grammar Fix",
			Description: "Correct grammar, spelling and punctuation without touching voice or content.",
			Version:     "1.0.0",
			Category:    "correction",
			Allowed:     []string{"Fix grammar, spelling and punctuation errors"},
			Forbidden:   []string{"Never change the author's voice or tone", "Do not change the meaning of the content"},
			Boundaries:  []string{"Change no more than 10% of the text"},
		},
		{
			ID:          "polish",
			Name:        "Light Polish",
			Description: "Improve clarity and consistency while keeping the structure.",
			Version:     "1.0.0",
			Category:    "style",
			Allowed:     []string{"Fix spelling and punctuation"},
			Focus:       []string{"Focus on clarity and a consistent style"},
			Boundaries:  []string{"Change at most 25% of the document"},
		},
	}
}
