package rbac

import "context"

// Provider produces the ordered rule list the matcher holds. The list is
// constructed once at matcher construction and read, never mutated,
// during evaluation.
type Provider interface {
	GetPermissions(ctx context.Context) ([]Rule, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context) ([]Rule, error)

// GetPermissions implements Provider.
func (f ProviderFunc) GetPermissions(ctx context.Context) ([]Rule, error) {
	return f(ctx)
}

// Ensure ProviderFunc implements Provider.
var _ Provider = (ProviderFunc)(nil)
