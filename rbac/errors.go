package rbac

import (
	"errors"
	"fmt"
)

// Common matcher errors.
var (
	// ErrNoPermissionSource indicates that neither an explicit permission
	// list nor a provider was configured.
	ErrNoPermissionSource = errors.New("no permission source configured")

	// ErrMissingRouteKeys indicates a rule without a controller or action
	// key in plain or negated form.
	ErrMissingRouteKeys = errors.New("rule is missing a controller or action key")

	// ErrUserKeyForbidden indicates a rule matching on the reserved user key.
	ErrUserKeyForbidden = errors.New("rule must not match on the user key")

	// ErrNoUser indicates that no user record was found in the context.
	ErrNoUser = errors.New("no user in context")
)

// RuleError wraps a rule-shape error with the rule's position in the list.
type RuleError struct {
	// Index is the rule's position in the ordered list.
	Index int

	// Rule is the rule's compact key signature.
	Rule string

	// Err is the underlying shape error.
	Err error
}

// Error returns the error message.
func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %d (%s): %v", e.Index, e.Rule, e.Err)
}

// Unwrap returns the underlying error.
func (e *RuleError) Unwrap() error {
	return e.Err
}

// IsRuleShapeError checks if an error is a recoverable rule-shape error.
func IsRuleShapeError(err error) bool {
	return errors.Is(err, ErrMissingRouteKeys) || errors.Is(err, ErrUserKeyForbidden)
}
