// Package plugin holds the registry of control-plane backends.
package plugin

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yairfalse/logkeep/internal/config"
	"github.com/yairfalse/logkeep/internal/lifecycle"
)

// Backend is a control plane the lifecycle manager can drive.
type Backend interface {
	lifecycle.Client

	// Name returns the backend identifier (e.g., "aws", "memory")
	Name() string
}

// AccountResolver is implemented by backends that can report the account
// they operate in. Lookups are best-effort and return "unknown" on failure.
type AccountResolver interface {
	AccountID(ctx context.Context) string
}

// Role is an execution identity that may be granted access to log groups.
type Role struct {
	Name      string    `json:"name"`
	ARN       string    `json:"arn"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// RoleLister is implemented by backends that can enumerate roles.
type RoleLister interface {
	ListRoles(ctx context.Context, pathPrefix string) ([]Role, error)
}

// Factory builds a backend from configuration.
type Factory func(ctx context.Context, cfg *config.Config) (Backend, error)

// Registry holds registered backend factories.
var (
	registry = make(map[string]Factory)
	mu       sync.RWMutex
)

// Register adds a backend factory to the registry.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = f
}

// Open builds the backend registered under name.
func Open(ctx context.Context, name string, cfg *config.Config) (Backend, error) {
	mu.RLock()
	f, ok := registry[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("backend %q not registered (have %v)", name, Names())
	}

	b, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open backend %s: %w", name, err)
	}
	return b, nil
}

// Names returns all registered backend names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear removes all backends from the registry. Used for testing.
func Clear() {
	mu.Lock()
	defer mu.Unlock()
	registry = make(map[string]Factory)
}
