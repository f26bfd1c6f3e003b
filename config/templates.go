package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed notification_templates.yaml
var defaultTemplates []byte

// NotificationTemplate is the subject and bodies for one notification kind.
type NotificationTemplate struct {
	Subject string `yaml:"subject"`
	HTML    string `yaml:"html"`
	Text    string `yaml:"text"`
}

// ParseTemplates decodes a template set keyed by notification kind.
func ParseTemplates(data []byte) (map[string]NotificationTemplate, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("templates: payload is empty")
	}
	var set map[string]NotificationTemplate
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("templates: decode: %w", err)
	}
	return set, nil
}

// LoadTemplates reads the template file at path, or the built-in set when
// path is empty. Kinds missing from the file keep their built-in template.
func LoadTemplates(path string) (map[string]NotificationTemplate, error) {
	set, err := ParseTemplates(defaultTemplates)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return set, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("templates: read %s: %w", path, err)
	}
	overrides, err := ParseTemplates(content)
	if err != nil {
		return nil, fmt.Errorf("templates: %s: %w", path, err)
	}
	for kind, tmpl := range overrides {
		set[kind] = tmpl
	}
	return set, nil
}
