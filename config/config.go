package config

import (
	"errors"

	"github.com/rolegate/rolegate/rbac"
)

// Settings carries the matcher settings of a permission file.
type Settings struct {
	// RoleField is the dotted path into the user record yielding the role.
	RoleField string `yaml:"roleField,omitempty"`

	// DefaultRole is used when the role field is absent or empty.
	DefaultRole string `yaml:"defaultRole,omitempty"`

	// ControllerKey names the route parameter the controller is read from.
	ControllerKey string `yaml:"controllerKey,omitempty"`

	// ActionKey names the route parameter the action is read from.
	ActionKey string `yaml:"actionKey,omitempty"`
}

// Config is the parsed form of a permission file.
type Config struct {
	// RBAC holds the matcher settings.
	RBAC Settings `yaml:"rbac"`

	// Permissions is the ordered rule list.
	Permissions []rbac.Rule `yaml:"permissions"`
}

// DefaultConfig returns a configuration with matcher defaults and no rules.
func DefaultConfig() *Config {
	defaults := rbac.DefaultConfig()
	return &Config{
		RBAC: Settings{
			RoleField:     defaults.RoleField,
			DefaultRole:   defaults.DefaultRole,
			ControllerKey: defaults.ControllerKey,
			ActionKey:     defaults.ActionKey,
		},
	}
}

// MatcherConfig converts the file form into the matcher's configuration.
func (c *Config) MatcherConfig() *rbac.Config {
	return &rbac.Config{
		RoleField:     c.RBAC.RoleField,
		DefaultRole:   c.RBAC.DefaultRole,
		ControllerKey: c.RBAC.ControllerKey,
		ActionKey:     c.RBAC.ActionKey,
		Permissions:   c.Permissions,
	}
}

// ValidateConfig validates a loaded configuration.
func ValidateConfig(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	return nil
}

// RuleWarnings reports structurally invalid rules. They are skipped at
// evaluation time either way; callers surface these at load time instead
// of leaving them to request-time debug logs.
func (c *Config) RuleWarnings() []error {
	var warnings []error
	for i, rule := range c.Permissions {
		if err := rule.Validate(); err != nil {
			warnings = append(warnings, &rbac.RuleError{Index: i, Rule: rule.String(), Err: err})
		}
	}
	return warnings
}
