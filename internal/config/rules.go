// Package config provides configuration management for the device monitor.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"device-monitor/internal/model"
)

// ruleFile is the on-disk shape of a YAML rule pack.
type ruleFile struct {
	Rules []*ruleEntry `yaml:"rules"`
}

// ruleEntry is one rule definition in a rule pack.
type ruleEntry struct {
	Name       string  `yaml:"name"`
	Condition  string  `yaml:"condition"`
	Comparison string  `yaml:"comparison"`
	Threshold  float64 `yaml:"threshold"`
	Severity   string  `yaml:"severity"`
	Enabled    *bool   `yaml:"enabled"`
}

// LoadRules reads rule definitions from the specified YAML file. Loaded
// rules are seeded into the store at startup alongside the built-in
// defaults. Rules default to enabled unless the file says otherwise.
func LoadRules(rulesPath string) ([]*model.Rule, error) {
	if rulesPath == "" {
		return nil, fmt.Errorf("rules file path is required")
	}

	if _, err := os.Stat(rulesPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("rules file not found: %s", rulesPath)
	}

	data, err := os.ReadFile(rulesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("no rules defined in file: %s", rulesPath)
	}

	rules := make([]*model.Rule, 0, len(file.Rules))
	for i, entry := range file.Rules {
		if entry.Name == "" {
			return nil, fmt.Errorf("rule at index %d has no name", i)
		}
		if entry.Condition == "" {
			return nil, fmt.Errorf("rule %q has no condition", entry.Name)
		}
		severity := model.Severity(entry.Severity)
		if !severity.Valid() {
			return nil, fmt.Errorf("rule %q has invalid severity %q", entry.Name, entry.Severity)
		}

		enabled := true
		if entry.Enabled != nil {
			enabled = *entry.Enabled
		}

		rules = append(rules, &model.Rule{
			Name:       entry.Name,
			Condition:  entry.Condition,
			Comparison: model.Comparison(entry.Comparison),
			Threshold:  entry.Threshold,
			Severity:   severity,
			Enabled:    enabled,
		})
	}

	return rules, nil
}
