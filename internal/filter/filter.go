// Package filter selects log groups and streams by name pattern.
package filter

import (
	"fmt"

	"github.com/gobwas/glob"

	"github.com/yairfalse/logkeep/pkg/logresource"
)

// Filter controls which names are included. Patterns use '/' as the
// separator: '*' stays within one path segment, '**' crosses segments.
type Filter struct {
	include []glob.Glob
	exclude []glob.Glob
}

// New compiles include and exclude patterns.
func New(include, exclude []string) (*Filter, error) {
	inc, err := compile(include)
	if err != nil {
		return nil, err
	}
	exc, err := compile(exclude)
	if err != nil {
		return nil, err
	}
	return &Filter{include: inc, exclude: exc}, nil
}

func compile(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// Match returns true if name passes the filter.
func (f *Filter) Match(name string) bool {
	// Include patterns (whitelist) - ANY must match
	if len(f.include) > 0 {
		matched := false
		for _, g := range f.include {
			if g.Match(name) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	// Exclude patterns (blacklist) - ANY match excludes
	for _, g := range f.exclude {
		if g.Match(name) {
			return false
		}
	}

	return true
}

// Groups returns only groups whose names pass the filter.
func (f *Filter) Groups(groups []logresource.Group) []logresource.Group {
	if f.IsEmpty() {
		return groups
	}

	filtered := make([]logresource.Group, 0, len(groups))
	for _, g := range groups {
		if f.Match(g.Name) {
			filtered = append(filtered, g)
		}
	}
	return filtered
}

// Streams returns only streams whose names pass the filter.
func (f *Filter) Streams(streams []logresource.Stream) []logresource.Stream {
	if f.IsEmpty() {
		return streams
	}

	filtered := make([]logresource.Stream, 0, len(streams))
	for _, s := range streams {
		if f.Match(s.Name) {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// IsEmpty returns true if no patterns are configured.
func (f *Filter) IsEmpty() bool {
	return len(f.include) == 0 && len(f.exclude) == 0
}
