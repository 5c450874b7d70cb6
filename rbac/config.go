package rbac

import "errors"

// Config represents matcher configuration.
type Config struct {
	// RoleField is the dotted path into the user record yielding the role.
	RoleField string `yaml:"roleField,omitempty"`

	// DefaultRole is used when the role field is absent or empty.
	DefaultRole string `yaml:"defaultRole,omitempty"`

	// ControllerKey names the route parameter the controller is read from.
	ControllerKey string `yaml:"controllerKey,omitempty"`

	// ActionKey names the route parameter the action is read from.
	ActionKey string `yaml:"actionKey,omitempty"`

	// Permissions is the explicit ordered rule list. When supplied, any
	// configured provider is ignored.
	Permissions []Rule `yaml:"permissions,omitempty"`
}

// DefaultConfig returns a default matcher configuration.
func DefaultConfig() *Config {
	return &Config{
		RoleField:     "role",
		DefaultRole:   "user",
		ControllerKey: "controller",
		ActionKey:     "action",
	}
}

// withDefaults fills unset fields from DefaultConfig.
func (c *Config) withDefaults() *Config {
	out := *c
	defaults := DefaultConfig()

	if out.RoleField == "" {
		out.RoleField = defaults.RoleField
	}
	if out.DefaultRole == "" {
		out.DefaultRole = defaults.DefaultRole
	}
	if out.ControllerKey == "" {
		out.ControllerKey = defaults.ControllerKey
	}
	if out.ActionKey == "" {
		out.ActionKey = defaults.ActionKey
	}

	return &out
}

// Validate reports structural problems in the configured rules. Invalid
// rules are skipped at evaluation time either way; validating up front
// surfaces them at construction instead of in request-time logs.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}

	var errs []error
	for i, rule := range c.Permissions {
		if err := rule.Validate(); err != nil {
			errs = append(errs, &RuleError{Index: i, Rule: rule.String(), Err: err})
		}
	}
	return errors.Join(errs...)
}
