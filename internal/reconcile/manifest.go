// Package reconcile applies a desired-state manifest of log groups and
// streams through the lifecycle manager.
package reconcile

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// State is the desired existence of a group or stream.
type State string

const (
	StatePresent State = "present"
	StateAbsent  State = "absent"
)

// Manifest lists the groups and streams that should or should not exist.
type Manifest struct {
	Groups []GroupSpec `yaml:"groups"`
}

// GroupSpec describes one log group.
type GroupSpec struct {
	Name    string       `yaml:"name"`
	State   State        `yaml:"state,omitempty"`
	Streams []StreamSpec `yaml:"streams,omitempty"`
}

// StreamSpec describes one log stream inside its group.
type StreamSpec struct {
	Name  string `yaml:"name"`
	State State  `yaml:"state,omitempty"`
}

// LoadManifest reads a YAML manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates a YAML manifest. Missing states
// default to present.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	for i := range m.Groups {
		g := &m.Groups[i]
		if g.State == "" {
			g.State = StatePresent
		}
		for j := range g.Streams {
			if g.Streams[j].State == "" {
				g.Streams[j].State = StatePresent
			}
		}
	}
}

// Validate checks names, states and duplicates.
func (m *Manifest) Validate() error {
	var errs []error
	seen := make(map[string]bool)

	for i, g := range m.Groups {
		if g.Name == "" {
			errs = append(errs, fmt.Errorf("groups[%d]: name is required", i))
			continue
		}
		if seen[g.Name] {
			errs = append(errs, fmt.Errorf("group %q: listed more than once", g.Name))
		}
		seen[g.Name] = true

		if !validState(g.State) {
			errs = append(errs, fmt.Errorf("group %q: unknown state %q", g.Name, g.State))
		}

		streams := make(map[string]bool)
		for j, s := range g.Streams {
			if s.Name == "" {
				errs = append(errs, fmt.Errorf("group %q: streams[%d]: name is required", g.Name, j))
				continue
			}
			if streams[s.Name] {
				errs = append(errs, fmt.Errorf("stream %s/%s: listed more than once", g.Name, s.Name))
			}
			streams[s.Name] = true

			if !validState(s.State) {
				errs = append(errs, fmt.Errorf("stream %s/%s: unknown state %q", g.Name, s.Name, s.State))
			}
			if g.State == StateAbsent && s.State == StatePresent {
				errs = append(errs, fmt.Errorf("stream %s/%s: present in an absent group", g.Name, s.Name))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid manifest: %w", errors.Join(errs...))
	}
	return nil
}

// GroupNames returns the names of every group in the manifest.
func (m *Manifest) GroupNames() []string {
	names := make([]string, 0, len(m.Groups))
	for _, g := range m.Groups {
		names = append(names, g.Name)
	}
	return names
}

func validState(s State) bool {
	return s == StatePresent || s == StateAbsent
}
