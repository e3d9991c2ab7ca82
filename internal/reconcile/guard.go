package reconcile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
)

// GuardQuery is the Rego rule a deletion policy defines. It is a set of
// deny messages; an empty or undefined set allows the delete.
const GuardQuery = "data.logkeep.deny"

// GuardInput is the document a policy sees as input.
type GuardInput struct {
	Op     string `json:"op"`
	Group  string `json:"group"`
	Stream string `json:"stream,omitempty"`
}

// Guard decides whether a delete may proceed. It returns the reasons a
// delete is refused; none means allowed.
type Guard interface {
	Check(ctx context.Context, input GuardInput) ([]string, error)
}

// PolicyGuard evaluates a compiled Rego deletion policy.
type PolicyGuard struct {
	query rego.PreparedEvalQuery
}

// NewPolicyGuard compiles module under name.
func NewPolicyGuard(ctx context.Context, name, module string) (*PolicyGuard, error) {
	query := rego.New(
		rego.Query(GuardQuery),
		rego.Module(name, module),
		rego.SetRegoVersion(ast.RegoV1),
	)

	prepared, err := query.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile policy %s: %w", name, err)
	}
	return &PolicyGuard{query: prepared}, nil
}

// LoadPolicyGuard compiles the .rego file at path.
func LoadPolicyGuard(ctx context.Context, path string) (*PolicyGuard, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read policy file %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), ".rego")
	return NewPolicyGuard(ctx, name, string(content))
}

// Check evaluates the policy against input.
func (g *PolicyGuard) Check(ctx context.Context, input GuardInput) ([]string, error) {
	rs, err := g.query.Eval(ctx, rego.EvalInput(map[string]any{
		"op":     input.Op,
		"group":  input.Group,
		"stream": input.Stream,
	}))
	if err != nil {
		return nil, fmt.Errorf("evaluate policy: %w", err)
	}

	var reasons []string
	for _, result := range rs {
		for _, expr := range result.Expressions {
			values, ok := expr.Value.([]any)
			if !ok {
				return nil, fmt.Errorf("policy %s must be a set of strings, got %T", GuardQuery, expr.Value)
			}
			for _, v := range values {
				reasons = append(reasons, fmt.Sprint(v))
			}
		}
	}

	sort.Strings(reasons)
	return reasons, nil
}
