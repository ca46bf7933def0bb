package normalize

import (
	"fmt"
	"os"

	"github.com/JakeFAU/subsidy-portal/internal/ruleset"
	"gopkg.in/yaml.v3"
)

// SourceFile is the YAML layout for extra rule sets:
//
//	sources:
//	  kstartup:
//	    description: K-Startup 공고
//	    rules:
//	      - field: title
//	        type: text
//	        required: true
type SourceFile struct {
	Sources map[string]struct {
		Description string `yaml:"description"`
		Rules       []Rule `yaml:"rules"`
	} `yaml:"sources"`
}

// LoadFile reads extra rule sets from path, checks them with n and installs
// them into reg. Existing sources with the same name are replaced.
func LoadFile(path string, n *Normalizer, reg *ruleset.Registry[Rule]) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read normalize rules: %w", err)
	}
	var file SourceFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse normalize rules %s: %w", path, err)
	}
	loaded := make([]string, 0, len(file.Sources))
	for source, set := range file.Sources {
		if err := n.CheckRules(set.Rules); err != nil {
			return nil, fmt.Errorf("source %s: %w", source, err)
		}
		reg.Replace(source, set.Rules)
		if set.Description != "" {
			reg.Describe(source, set.Description)
		}
		loaded = append(loaded, source)
	}
	return loaded, nil
}
