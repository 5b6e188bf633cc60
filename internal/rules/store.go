package rules

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/ozbooks/agent-smith/internal/model"
)

// RuleFile is the on-disk YAML shape for the declarative rule set. Rule
// order in the file is evaluation order.
type RuleFile struct {
	CategoryRules []model.CategoryRule `yaml:"category_rules"`
	LabelRules    []model.LabelRule    `yaml:"label_rules"`
}

// Store reads and validates the declarative rule file. Backups and broader
// schema ownership stay with the external rule tooling; the store covers
// the read and propose surface the core needs.
type Store struct {
	path string
}

// NewStore creates a store for the given rule file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads and validates the rule file. A missing file yields empty rule
// lists, not an error: a fresh setup simply has no rules yet.
func (s *Store) Load() (*RuleFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &RuleFile{}, nil
		}
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}

	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rule file %s: %w", s.path, err)
	}

	if err := Validate(&file); err != nil {
		return nil, fmt.Errorf("invalid rule file %s: %w", s.path, err)
	}

	return &file, nil
}

// Validate checks every rule for the invariants the engine relies on:
// confidence in range, at least one pattern or predicate, compilable
// regexes, and coherent amount bounds.
func Validate(file *RuleFile) error {
	for i, rule := range file.CategoryRules {
		if rule.Name == "" {
			return fmt.Errorf("category rule %d: name is required", i)
		}
		if rule.Category == "" {
			return fmt.Errorf("category rule %q: category is required", rule.Name)
		}
		if len(rule.Patterns) == 0 {
			return fmt.Errorf("category rule %q: at least one pattern is required", rule.Name)
		}
		if rule.Confidence < 0 || rule.Confidence > 100 {
			return fmt.Errorf("category rule %q: confidence must be between 0 and 100", rule.Name)
		}
		if rule.AmountMin != nil && rule.AmountMax != nil && *rule.AmountMin > *rule.AmountMax {
			return fmt.Errorf("category rule %q: amount_min must not exceed amount_max", rule.Name)
		}
		if rule.Regex {
			for _, p := range append(append([]string{}, rule.Patterns...), rule.Exclude...) {
				if _, err := regexp.Compile("(?i)" + p); err != nil {
					return fmt.Errorf("category rule %q: invalid regex %q: %w", rule.Name, p, err)
				}
			}
		}
	}

	for i, rule := range file.LabelRules {
		if rule.Name == "" {
			return fmt.Errorf("label rule %d: name is required", i)
		}
		if len(rule.Labels) == 0 {
			return fmt.Errorf("label rule %q: at least one label is required", rule.Name)
		}
		if rule.Confidence < 0 || rule.Confidence > 100 {
			return fmt.Errorf("label rule %q: confidence must be between 0 and 100", rule.Name)
		}
		if rule.AmountMin != nil && rule.AmountMax != nil && *rule.AmountMin > *rule.AmountMax {
			return fmt.Errorf("label rule %q: amount_min must not exceed amount_max", rule.Name)
		}
		if rule.Regex {
			for _, p := range rule.Patterns {
				if _, err := regexp.Compile("(?i)" + p); err != nil {
					return fmt.Errorf("label rule %q: invalid regex %q: %w", rule.Name, p, err)
				}
			}
		}
	}

	return nil
}

// Append adds an approved rule to the file and writes it back. This is the
// approve-and-save path for rule candidates; it is only reached after
// explicit human confirmation.
func (s *Store) Append(rule model.CategoryRule) error {
	file, err := s.Load()
	if err != nil {
		return err
	}

	file.CategoryRules = append(file.CategoryRules, rule)
	if err := Validate(file); err != nil {
		return fmt.Errorf("appending rule %q would invalidate rule file: %w", rule.Name, err)
	}

	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to marshal rule file: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write rule file: %w", err)
	}

	return nil
}
