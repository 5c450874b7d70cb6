package rbac

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rolegate/rolegate/observability"
)

// matcherTracer is the OTEL tracer used for permission checks.
var matcherTracer = otel.Tracer("rolegate/rbac")

// extParam is the route parameter the extension attribute is read from.
const extParam = "_ext"

// Request is the matcher's view of an incoming request.
type Request struct {
	// Params holds the route parameters the reserved attributes are
	// resolved from (prefix, plugin, _ext, controller, action).
	Params map[string]string

	// Data holds additional request attributes handed through to
	// delegate rules.
	Data map[string]any
}

// Param returns the named route parameter, or "" when absent.
func (r *Request) Param(name string) string {
	if r == nil || r.Params == nil {
		return ""
	}
	return r.Params[name]
}

// Matcher evaluates an ordered permission list against a user and request.
type Matcher interface {
	// CheckPermissions returns true when a rule definitively allows the
	// request. Exhausting the list without a definitive result denies.
	CheckPermissions(ctx context.Context, user map[string]any, req *Request) bool

	// GetPermissions returns the held rule list.
	GetPermissions() []Rule

	// SetPermissions replaces the held rule list.
	SetPermissions(rules []Rule)
}

// matcher implements the Matcher interface.
type matcher struct {
	config   *Config
	logger   observability.Logger
	metrics  *Metrics
	provider Provider

	mu    sync.RWMutex
	rules []Rule
}

// MatcherOption is a functional option for the matcher.
type MatcherOption func(*matcher)

// WithMatcherLogger sets the logger.
func WithMatcherLogger(logger observability.Logger) MatcherOption {
	return func(m *matcher) {
		m.logger = logger
	}
}

// WithMatcherMetrics sets the metrics.
func WithMatcherMetrics(metrics *Metrics) MatcherOption {
	return func(m *matcher) {
		m.metrics = metrics
	}
}

// WithProvider sets the rule provider consulted when the configuration
// carries no explicit permission list.
func WithProvider(provider Provider) MatcherOption {
	return func(m *matcher) {
		m.provider = provider
	}
}

// NewMatcher creates a new matcher. The rule list comes from
// cfg.Permissions when supplied, otherwise from the provider; having
// neither is a configuration error.
func NewMatcher(cfg *Config, opts ...MatcherOption) (Matcher, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg = cfg.withDefaults()

	m := &matcher{
		config: cfg,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.metrics == nil {
		m.metrics = NewMetrics("rolegate")
	}

	switch {
	case cfg.Permissions != nil:
		// An explicit empty list is a valid source: every check falls
		// through to the default deny.
		m.rules = normalizeRules(cfg.Permissions)
	case m.provider != nil:
		rules, err := m.provider.GetPermissions(context.Background())
		if err != nil {
			return nil, fmt.Errorf("rule provider: %w", err)
		}
		m.rules = normalizeRules(rules)
	default:
		return nil, ErrNoPermissionSource
	}

	m.metrics.SetRuleCount(len(m.rules))

	return m, nil
}

// ruleResult is the outcome of evaluating one rule.
type ruleResult int

const (
	// resultIndeterminate means the rule made no decision: it was invalid,
	// or its conjunction failed before reaching the terminal key.
	resultIndeterminate ruleResult = iota
	resultAllow
	resultDeny
)

// CheckPermissions evaluates the rule list in order and returns the first
// definitive decision, or false when no rule is definitive.
func (m *matcher) CheckPermissions(ctx context.Context, user map[string]any, req *Request) bool {
	start := time.Now()

	m.mu.RLock()
	rules := m.rules
	m.mu.RUnlock()

	role := m.resolveRole(user)
	snapshot := m.buildSnapshot(req, role)

	ctx, span := matcherTracer.Start(ctx, "rbac.check_permissions",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("rbac.controller", snapshot[KeyController]),
			attribute.String("rbac.action", snapshot[KeyAction]),
			attribute.String("rbac.role", role),
		),
	)
	defer span.End()

	for i, rule := range rules {
		result := m.evaluateRule(ctx, i, rule, user, role, req, snapshot)
		if result == resultIndeterminate {
			continue
		}

		allowed := result == resultAllow
		decision := "denied"
		if allowed {
			decision = "allowed"
		}

		span.SetAttributes(
			attribute.Bool("rbac.allowed", allowed),
			attribute.Int("rbac.rule_index", i),
		)
		m.metrics.RecordEvaluation(decision, time.Since(start))
		m.logger.WithContext(ctx).Debug("permission decision",
			observability.Int("rule", i),
			observability.Bool("allowed", allowed),
			observability.String("controller", snapshot[KeyController]),
			observability.String("action", snapshot[KeyAction]),
			observability.String("role", role),
		)

		return allowed
	}

	// No rule was definitive.
	span.SetAttributes(attribute.Bool("rbac.allowed", false))
	m.metrics.RecordEvaluation("default_denied", time.Since(start))
	m.logger.WithContext(ctx).Debug("permission decision (default deny)",
		observability.String("controller", snapshot[KeyController]),
		observability.String("action", snapshot[KeyAction]),
		observability.String("role", role),
	)

	return false
}

// resolveRole looks up the configured role field in the user record,
// falling back to the default role.
func (m *matcher) resolveRole(user map[string]any) string {
	if value, ok := lookupPath(user, m.config.RoleField); ok {
		if role := coerceString(value); role != "" {
			return role
		}
	}
	return m.config.DefaultRole
}

// buildSnapshot resolves the reserved request attributes once per call.
func (m *matcher) buildSnapshot(req *Request, role string) map[string]string {
	return map[string]string{
		KeyPrefix:     req.Param(KeyPrefix),
		KeyPlugin:     req.Param(KeyPlugin),
		KeyExtension:  req.Param(extParam),
		KeyController: req.Param(m.config.ControllerKey),
		KeyAction:     req.Param(m.config.ActionKey),
		KeyRole:       role,
	}
}

// evaluateRule walks one rule's fields in definition order.
func (m *matcher) evaluateRule(
	ctx context.Context,
	index int,
	rule Rule,
	user map[string]any,
	role string,
	req *Request,
	snapshot map[string]string,
) ruleResult {
	if err := rule.Validate(); err != nil {
		m.metrics.RecordSkippedRule(skipReason(err))
		m.logger.Debug("skipping invalid rule",
			observability.Int("rule", index),
			observability.String("fields", rule.String()),
			observability.Error(err),
		)
		return resultIndeterminate
	}

	for _, field := range rule.Fields {
		negated := field.Negated
		var truth bool

		switch {
		case field.Value.Kind == KindDelegate:
			truth = field.Value.Delegate.Allowed(ctx, user, role, req)

		case field.Key == KeyBypassAuth:
			if field.Value.Kind == KindBool && field.Value.Bool {
				// Hard override: the negation marker is not meaningful here.
				return resultAllow
			}
			truth = false
			negated = false

		case field.Key == KeyAllowed:
			truth = len(user) > 0 && field.Value.Kind == KindBool && field.Value.Bool

		case IsReservedKey(field.Key):
			truth = matchOrWildcard(field.Value, snapshot[field.Key], true)

		default:
			path := field.Key
			if !strings.HasPrefix(path, userPathPrefix) {
				path = userPathPrefix + path
			}
			actual := ""
			if value, ok := lookupPath(user, strings.TrimPrefix(path, userPathPrefix)); ok {
				actual = coerceString(value)
			}
			truth = matchOrWildcard(field.Value, actual, false)
		}

		if negated {
			truth = !truth
		}

		if field.Key == KeyAllowed {
			if truth {
				return resultAllow
			}
			return resultDeny
		}

		if !truth {
			return resultIndeterminate
		}
	}

	// Normalization guarantees a terminal allowed field; stay
	// indeterminate if the walk somehow finishes without one.
	return resultIndeterminate
}

// matchOrWildcard matches the expected value against the actual one. When
// allowEmptyAsMatch is set, an empty expected list combined with an absent
// actual value counts as a match; that relaxation applies only to
// reserved-attribute comparisons, never to user-field comparisons.
func matchOrWildcard(expected FieldValue, actual string, allowEmptyAsMatch bool) bool {
	if expected.Kind == KindWildcard {
		return true
	}

	list := expected.stringList()
	if allowEmptyAsMatch && len(list) == 0 && actual == "" {
		return true
	}

	canonical := Camelize(actual)
	for _, want := range list {
		if want == Wildcard || want == actual || want == canonical {
			return true
		}
	}
	return false
}

// skipReason maps a rule-shape error to a metrics label.
func skipReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingRouteKeys):
		return "missing_route_keys"
	case errors.Is(err, ErrUserKeyForbidden):
		return "user_key"
	default:
		return "invalid"
	}
}

// normalizeRules copies the rules, appending the default allowed: true
// terminal to any rule that lacks one.
func normalizeRules(rules []Rule) []Rule {
	normalized := make([]Rule, len(rules))
	for i, rule := range rules {
		normalized[i] = rule.Normalize()
	}
	return normalized
}

// lookupPath resolves a dotted path in a nested user record.
func lookupPath(record map[string]any, path string) (any, bool) {
	if record == nil || path == "" {
		return nil, false
	}

	var current any = record
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[part]
			if !ok {
				return nil, false
			}
			current = value
		case map[string]string:
			value, ok := node[part]
			if !ok {
				return nil, false
			}
			current = value
		default:
			return nil, false
		}
	}
	return current, true
}

// coerceString renders a user-record leaf for string matching.
func coerceString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// GetPermissions returns a copy of the held rule list.
func (m *matcher) GetPermissions() []Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rules := make([]Rule, len(m.rules))
	copy(rules, m.rules)
	return rules
}

// SetPermissions replaces the held rule list. The list is normalized and
// swapped atomically; in-flight evaluations keep reading their snapshot.
func (m *matcher) SetPermissions(rules []Rule) {
	normalized := normalizeRules(rules)

	m.mu.Lock()
	m.rules = normalized
	m.mu.Unlock()

	m.metrics.SetRuleCount(len(normalized))
}

// Ensure matcher implements Matcher.
var _ Matcher = (*matcher)(nil)
