package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quietroomlabs/haven/pkg/therapy"
)

// KeywordTable holds the fixed keyword lists driving crisis detection,
// keyword-triggered redirection, and tag extraction. It is loaded once at
// startup and treated as immutable afterwards.
type KeywordTable struct {
	Crisis      []string            `yaml:"crisis"`
	Redirection map[string][]string `yaml:"redirection"`
	Tags        map[string][]string `yaml:"tags"`
}

// DefaultKeywordTable returns the built-in lists. The phrase sets are the
// tuned originals; changing them changes routing behavior, so overrides go
// through a keywords file rather than code edits.
func DefaultKeywordTable() *KeywordTable {
	return &KeywordTable{
		Crisis: []string{
			"kill myself", "suicide", "want to die", "end my life",
			"self-harm", "hopeless", "can't go on", "no reason to live",
			"better off dead", "hurt myself", "end it all",
		},
		Redirection: map[string][]string{
			string(therapy.ModeCBT): {
				"thoughts", "thinking", "behavior", "coping", "anxiety", "depression",
				"stress", "patterns", "change", "techniques", "manage", "control",
				"strategies", "tools", "skills", "practice", "exercise", "homework",
				"routine", "habit",
			},
			string(therapy.ModeHumanistic): {
				"feelings", "emotions", "self", "identity", "growth", "meaning",
				"purpose", "relationships", "acceptance", "authenticity", "values",
				"beliefs", "spirituality", "connection", "belonging", "potential",
				"freedom", "choice",
			},
			string(therapy.ModePsychoanalytic): {
				"childhood", "past", "patterns", "relationships", "unconscious",
				"defense", "transference", "early", "family", "recurring", "dreams",
				"memories", "trauma", "attachment", "dynamics", "conflict",
				"repression", "projection",
			},
		},
		Tags: map[string][]string{
			"anxiety":       {"anxious", "anxiety", "worried", "stress"},
			"depression":    {"sad", "depressed", "hopeless"},
			"anger":         {"angry", "frustrated", "mad"},
			"relationships": {"partner", "family", "friend"},
			"work":          {"work", "job", "career"},
		},
	}
}

// LoadKeywordTable returns the defaults, overlaid with the YAML file at
// path when one is configured. The result is validated before use.
func LoadKeywordTable(path string) (*KeywordTable, error) {
	table := DefaultKeywordTable()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read keywords file: %w", err)
		}
		if err := yaml.Unmarshal(data, table); err != nil {
			return nil, fmt.Errorf("parse keywords file %s: %w", path, err)
		}
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// Validate checks the closed mode set: every redirection key must be a
// valid mode, every mode must have a non-empty keyword list, and the
// crisis list must not be empty.
func (t *KeywordTable) Validate() error {
	if len(t.Crisis) == 0 {
		return fmt.Errorf("keyword table: crisis list is empty")
	}
	for name := range t.Redirection {
		if _, err := therapy.ParseMode(name); err != nil {
			return fmt.Errorf("keyword table: redirection key: %w", err)
		}
	}
	for _, mode := range therapy.Modes() {
		if len(t.Redirection[string(mode)]) == 0 {
			return fmt.Errorf("keyword table: no redirection keywords for mode %q", mode)
		}
	}
	if len(t.Tags) == 0 {
		return fmt.Errorf("keyword table: tag groups are empty")
	}
	return nil
}

// ModeKeywords returns the redirection keyword set for a mode.
func (t *KeywordTable) ModeKeywords(mode therapy.Mode) []string {
	return t.Redirection[string(mode)]
}
