package rbac

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Reserved request attributes matchable by fixed key names.
const (
	KeyPrefix     = "prefix"
	KeyPlugin     = "plugin"
	KeyExtension  = "extension"
	KeyController = "controller"
	KeyAction     = "action"
	KeyRole       = "role"
)

const (
	// KeyAllowed is the terminal key: its truth value, inverted if
	// negated, is the rule's definitive result.
	KeyAllowed = "allowed"

	// KeyBypassAuth hard-allows the rule when its value is literally true.
	KeyBypassAuth = "bypassAuth"

	// KeyUser is the reserved conceptual subject; rules must not carry it
	// as a matchable field.
	KeyUser = "user"
)

// Wildcard is the match-anything token.
const Wildcard = "*"

// negationMarker prefixes a key to invert that field's match result.
const negationMarker = "*"

// userPathPrefix marks keys that resolve inside the user record.
const userPathPrefix = "user."

var reservedKeys = map[string]bool{
	KeyPrefix:     true,
	KeyPlugin:     true,
	KeyExtension:  true,
	KeyController: true,
	KeyAction:     true,
	KeyRole:       true,
}

// IsReservedKey reports whether key names a reserved request attribute.
func IsReservedKey(key string) bool {
	return reservedKeys[key]
}

// ValueKind discriminates the field-value variants.
type ValueKind int

// Field-value variants, resolved once at rule-load time.
const (
	KindList ValueKind = iota
	KindWildcard
	KindBool
	KindDelegate
)

// FieldValue is the tagged variant a rule field matches with.
type FieldValue struct {
	Kind     ValueKind
	List     []string
	Bool     bool
	Delegate DelegateRule
}

// WildcardValue returns the match-anything value.
func WildcardValue() FieldValue {
	return FieldValue{Kind: KindWildcard}
}

// ListValue returns a list value; a bare scalar is a one-element list.
func ListValue(values ...string) FieldValue {
	return FieldValue{Kind: KindList, List: values}
}

// BoolValue returns a boolean value, meaningful for the allowed and
// bypassAuth keys.
func BoolValue(v bool) FieldValue {
	return FieldValue{Kind: KindBool, Bool: v}
}

// DelegateValue returns a delegate-backed value.
func DelegateValue(d DelegateRule) FieldValue {
	return FieldValue{Kind: KindDelegate, Delegate: d}
}

// stringList returns the scalar forms this value can match against.
func (v FieldValue) stringList() []string {
	switch v.Kind {
	case KindBool:
		return []string{strconv.FormatBool(v.Bool)}
	case KindList:
		return v.List
	default:
		return nil
	}
}

// Field is one keyed condition inside a rule. Key is stored with the
// negation marker already stripped.
type Field struct {
	Key     string
	Negated bool
	Value   FieldValue
}

// Rule is one ordered conjunction of field conditions. Field order is
// semantically significant: evaluation walks fields in definition order
// and stops at the first failure or at the terminal allowed key.
type Rule struct {
	Fields []Field
}

// HasKey reports whether the rule carries the key in plain or negated form.
func (r Rule) HasKey(key string) bool {
	for _, f := range r.Fields {
		if f.Key == key {
			return true
		}
	}
	return false
}

// Validate checks the rule's structure. Invalid rules are skipped (never
// fatal) during evaluation; validating up front surfaces them earlier.
func (r Rule) Validate() error {
	if r.HasKey(KeyUser) {
		return ErrUserKeyForbidden
	}
	if !r.HasKey(KeyController) || !r.HasKey(KeyAction) {
		return ErrMissingRouteKeys
	}
	return nil
}

// Normalize returns a copy of the rule with the default allowed: true
// terminal appended when absent.
func (r Rule) Normalize() Rule {
	fields := make([]Field, len(r.Fields), len(r.Fields)+1)
	copy(fields, r.Fields)
	if !r.HasKey(KeyAllowed) {
		fields = append(fields, Field{Key: KeyAllowed, Value: BoolValue(true)})
	}
	return Rule{Fields: fields}
}

// String returns a compact key signature for log lines.
func (r Rule) String() string {
	keys := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		key := f.Key
		if f.Negated {
			key = negationMarker + key
		}
		keys = append(keys, key)
	}
	return strings.Join(keys, ",")
}

// parseKey strips a leading negation marker from a raw key name.
func parseKey(raw string) (key string, negated bool) {
	if strings.HasPrefix(raw, negationMarker) && len(raw) > len(negationMarker) {
		return raw[len(negationMarker):], true
	}
	return raw, false
}

// UnmarshalYAML decodes a rule from a YAML mapping, preserving the
// definition's own field order. Scalars become one-element lists, "*"
// the wildcard, booleans stay boolean, and a {cel: "<expr>"} mapping
// compiles to a delegate rule.
func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("rule must be a mapping (line %d)", node.Line)
	}

	fields := make([]Field, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]

		key, negated := parseKey(keyNode.Value)
		value, err := parseFieldValue(valueNode)
		if err != nil {
			return fmt.Errorf("field %q (line %d): %w", keyNode.Value, valueNode.Line, err)
		}

		fields = append(fields, Field{Key: key, Negated: negated, Value: value})
	}

	r.Fields = fields
	return nil
}

// parseFieldValue resolves a YAML node to the tagged variant.
func parseFieldValue(node *yaml.Node) (FieldValue, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!bool" {
			b, err := strconv.ParseBool(node.Value)
			if err != nil {
				return FieldValue{}, err
			}
			return BoolValue(b), nil
		}
		if node.Value == Wildcard {
			return WildcardValue(), nil
		}
		return ListValue(node.Value), nil

	case yaml.SequenceNode:
		values := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return FieldValue{}, fmt.Errorf("list values must be scalars (line %d)", item.Line)
			}
			values = append(values, item.Value)
		}
		return ListValue(values...), nil

	case yaml.MappingNode:
		if len(node.Content) == 2 && node.Content[0].Value == "cel" {
			delegate, err := NewCELRule(node.Content[1].Value)
			if err != nil {
				return FieldValue{}, err
			}
			return DelegateValue(delegate), nil
		}
		return FieldValue{}, fmt.Errorf("unsupported mapping value (line %d)", node.Line)

	default:
		return FieldValue{}, fmt.Errorf("unsupported value kind (line %d)", node.Line)
	}
}
