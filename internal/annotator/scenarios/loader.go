// Package scenarios ships canned annotator scripts for demos and tests.
package scenarios

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed *.yaml
var scenarioFS embed.FS

// Scenario is an ordered list of scripted annotator responses.
type Scenario struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Responses   []Response `yaml:"responses"`
}

// Response is one scripted reply. Task is matched against the incoming call;
// Artifact, when set, must match the artifact name too. Fail simulates an
// annotation-call failure with the given message.
type Response struct {
	Artifact string           `yaml:"artifact,omitempty"`
	Task     string           `yaml:"task"`
	Purpose  string           `yaml:"purpose,omitempty"`
	Fields   map[string]Field `yaml:"fields,omitempty"`
	Fail     string           `yaml:"fail,omitempty"`
}

type Field struct {
	Type string `yaml:"type"`
	Role string `yaml:"role"`
}

// Load reads a scenario by name from the embedded YAML files.
func Load(name string) (*Scenario, error) {
	data, err := scenarioFS.ReadFile(name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("scenario %q not found (available: %s): %w",
			name, strings.Join(List(), ", "), err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %q: %w", name, err)
	}
	return &s, nil
}

// List returns the names of all embedded scenarios, sorted.
func List() []string {
	entries, _ := scenarioFS.ReadDir(".")
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".yaml") {
			names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
		}
	}
	sort.Strings(names)
	return names
}
