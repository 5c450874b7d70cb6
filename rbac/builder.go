package rbac

// RuleBuilder helps build ordered rule definitions in code.
type RuleBuilder struct {
	rule Rule
}

// NewRuleBuilder creates a new rule builder.
func NewRuleBuilder() *RuleBuilder {
	return &RuleBuilder{}
}

// Match adds a field matching the key against the given values. A single
// "*" value is the wildcard.
func (b *RuleBuilder) Match(key string, values ...string) *RuleBuilder {
	return b.add(key, false, listOrWildcard(values))
}

// NotMatch adds a negated field: it passes when the key does not match.
func (b *RuleBuilder) NotMatch(key string, values ...string) *RuleBuilder {
	return b.add(key, true, listOrWildcard(values))
}

// Delegate adds a delegate-valued field.
func (b *RuleBuilder) Delegate(key string, delegate DelegateRule) *RuleBuilder {
	return b.add(key, false, DelegateValue(delegate))
}

// DelegateFunc adds a callable-valued field.
func (b *RuleBuilder) DelegateFunc(key string, fn DelegateFunc) *RuleBuilder {
	return b.add(key, false, DelegateValue(fn))
}

// Allow sets the terminal allowed field.
func (b *RuleBuilder) Allow(allowed bool) *RuleBuilder {
	return b.add(KeyAllowed, false, BoolValue(allowed))
}

// BypassAuth adds the bypassAuth hard-allow field.
func (b *RuleBuilder) BypassAuth() *RuleBuilder {
	return b.add(KeyBypassAuth, false, BoolValue(true))
}

// Field appends a fully specified field.
func (b *RuleBuilder) Field(field Field) *RuleBuilder {
	b.rule.Fields = append(b.rule.Fields, field)
	return b
}

// Build returns the rule.
func (b *RuleBuilder) Build() Rule {
	return b.rule
}

func (b *RuleBuilder) add(key string, negated bool, value FieldValue) *RuleBuilder {
	b.rule.Fields = append(b.rule.Fields, Field{Key: key, Negated: negated, Value: value})
	return b
}

func listOrWildcard(values []string) FieldValue {
	if len(values) == 1 && values[0] == Wildcard {
		return WildcardValue()
	}
	return ListValue(values...)
}
