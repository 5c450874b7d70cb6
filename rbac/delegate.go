package rbac

import "context"

// DelegateRule is an externally supplied decision capability. The matcher
// invokes it with the user record, the effective role, and the request
// under evaluation, and coerces the result into the field's truth value.
type DelegateRule interface {
	Allowed(ctx context.Context, user map[string]any, role string, req *Request) bool
}

// DelegateFunc adapts a plain function to the DelegateRule interface so
// callable and object delegates evaluate uniformly.
type DelegateFunc func(ctx context.Context, user map[string]any, role string, req *Request) bool

// Allowed implements DelegateRule.
func (f DelegateFunc) Allowed(ctx context.Context, user map[string]any, role string, req *Request) bool {
	return f(ctx, user, role, req)
}

// Ensure DelegateFunc implements DelegateRule.
var _ DelegateRule = (DelegateFunc)(nil)
