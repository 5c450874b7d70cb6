package rbac

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
)

// CELRule is a delegate rule backed by a compiled CEL expression. The
// expression sees three variables: user (map), role (string), and request
// (map with "params" and "data" entries). It must evaluate to a boolean;
// anything else, including an evaluation error, counts as not allowed.
type CELRule struct {
	expr    string
	program cel.Program
}

// newCELEnvironment creates the CEL environment shared by all rules.
func newCELEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("user", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("role", cel.StringType),
		cel.Variable("request", cel.MapType(cel.StringType, cel.DynType)),
	)
}

// NewCELRule compiles the expression once at rule-load time.
func NewCELRule(expr string) (*CELRule, error) {
	env, err := newCELEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", issues.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}

	return &CELRule{expr: expr, program: program}, nil
}

// Expression returns the source expression.
func (r *CELRule) Expression() string {
	return r.expr
}

// Allowed implements DelegateRule.
func (r *CELRule) Allowed(ctx context.Context, user map[string]any, role string, req *Request) bool {
	if user == nil {
		user = map[string]any{}
	}

	result, _, err := r.program.Eval(map[string]any{
		"user":    user,
		"role":    role,
		"request": requestAttrs(req),
	})
	if err != nil {
		return false
	}

	allowed, ok := result.Value().(bool)
	return ok && allowed
}

// requestAttrs renders the request for the CEL activation.
func requestAttrs(req *Request) map[string]any {
	params := map[string]any{}
	data := map[string]any{}
	if req != nil {
		for k, v := range req.Params {
			params[k] = v
		}
		for k, v := range req.Data {
			data[k] = v
		}
	}
	return map[string]any{
		"params": params,
		"data":   data,
	}
}

// Ensure CELRule implements DelegateRule.
var _ DelegateRule = (*CELRule)(nil)
