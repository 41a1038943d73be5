package days

import (
	_ "embed"
	"errors"
	"os"

	"gopkg.in/yaml.v3"

	appLog "daycal/internal/log"
	"daycal/internal/model"
)

//go:embed days.json
var defaultRules []byte

// Default returns the built-in commemorative day list.
func Default() []model.Rule {
	rules, err := Parse(defaultRules)
	if err != nil {
		// The embedded list is part of the build; a parse failure is a bug.
		panic(err)
	}
	return rules
}

// Parse decodes a rule list. Both YAML and JSON documents are accepted.
func Parse(data []byte) ([]model.Rule, error) {
	var rules []model.Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// Load reads a rule list from path. An empty path selects the built-in list.
func Load(path string) ([]model.Rule, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("rule list is empty: " + path)
	}

	rules, err := Parse(data)
	if err != nil {
		return nil, err
	}
	appLog.Info("rules loaded", "path", path, "count", len(rules))
	return rules, nil
}
