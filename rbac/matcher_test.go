package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolegate/rolegate/observability"
)

func newTestMatcher(t *testing.T, rules []Rule, opts ...MatcherOption) Matcher {
	t.Helper()

	opts = append([]MatcherOption{WithMatcherLogger(observability.NopLogger())}, opts...)
	m, err := NewMatcher(&Config{Permissions: rules}, opts...)
	require.NoError(t, err)
	return m
}

func routeRequest(controller, action string) *Request {
	return &Request{
		Params: map[string]string{
			"controller": controller,
			"action":     action,
		},
	}
}

func regularUser() map[string]any {
	return map[string]any{"role": "user"}
}

func TestNewMatcher(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  *Config
		opts    []MatcherOption
		wantErr error
	}{
		{
			name:    "nil config without source",
			config:  nil,
			wantErr: ErrNoPermissionSource,
		},
		{
			name:   "explicit empty list is a valid source",
			config: &Config{Permissions: []Rule{}},
		},
		{
			name: "explicit rules",
			config: &Config{
				Permissions: []Rule{
					NewRuleBuilder().Match("controller", "Posts").Match("action", "index").Build(),
				},
			},
		},
		{
			name:   "provider source",
			config: &Config{},
			opts: []MatcherOption{
				WithProvider(ProviderFunc(func(ctx context.Context) ([]Rule, error) {
					return []Rule{
						NewRuleBuilder().Match("controller", "Posts").Match("action", "index").Build(),
					}, nil
				})),
			},
		},
		{
			name:   "provider failure is fatal",
			config: &Config{},
			opts: []MatcherOption{
				WithProvider(ProviderFunc(func(ctx context.Context) ([]Rule, error) {
					return nil, errors.New("backend unavailable")
				})),
			},
			wantErr: errors.New("backend unavailable"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			matcher, err := NewMatcher(tt.config, tt.opts...)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Nil(t, matcher)
				if errors.Is(tt.wantErr, ErrNoPermissionSource) {
					assert.ErrorIs(t, err, ErrNoPermissionSource)
				}
			} else {
				require.NoError(t, err)
				assert.NotNil(t, matcher)
			}
		})
	}
}

func TestMatcher_EmptyListDefaultDeny(t *testing.T) {
	t.Parallel()

	matcher := newTestMatcher(t, []Rule{})

	assert.False(t, matcher.CheckPermissions(context.Background(), regularUser(), routeRequest("Posts", "index")))
}

func TestMatcher_Scenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		rules    []Rule
		user     map[string]any
		request  *Request
		expected bool
	}{
		{
			name: "plain controller and action match allows",
			rules: []Rule{
				NewRuleBuilder().
					Match("controller", "Posts").
					Match("action", "index").
					Allow(true).
					Build(),
			},
			user:     regularUser(),
			request:  routeRequest("Posts", "index"),
			expected: true,
		},
		{
			name: "role mismatch falls through to default deny",
			rules: []Rule{
				NewRuleBuilder().
					Match("controller", "Posts").
					Match("action", "delete").
					Match("role", "admin").
					Build(),
			},
			user:     regularUser(),
			request:  routeRequest("Posts", "delete"),
			expected: false,
		},
		{
			name: "bypassAuth allows any request",
			rules: []Rule{
				NewRuleBuilder().
					Match("controller", "*").
					Match("action", "*").
					BypassAuth().
					Build(),
			},
			user:     map[string]any{},
			request:  routeRequest("Anything", "whatever"),
			expected: true,
		},
		{
			name: "rule missing action key is ignored",
			rules: []Rule{
				NewRuleBuilder().
					Match("controller", "Posts").
					Allow(true).
					Build(),
			},
			user:     regularUser(),
			request:  routeRequest("Posts", "index"),
			expected: false,
		},
		{
			name: "negated controller match fails on the excluded value",
			rules: []Rule{
				NewRuleBuilder().
					NotMatch("controller", "Admin").
					Match("action", "*").
					Allow(true).
					Build(),
			},
			user:     regularUser(),
			request:  routeRequest("Admin", "index"),
			expected: false,
		},
		{
			name: "negated controller match passes on other values",
			rules: []Rule{
				NewRuleBuilder().
					NotMatch("controller", "Admin").
					Match("action", "*").
					Allow(true).
					Build(),
			},
			user:     regularUser(),
			request:  routeRequest("Posts", "index"),
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			matcher := newTestMatcher(t, tt.rules)
			assert.Equal(t, tt.expected, matcher.CheckPermissions(context.Background(), tt.user, tt.request))
		})
	}
}

func TestMatcher_FirstMatchWins(t *testing.T) {
	t.Parallel()

	deny := NewRuleBuilder().
		Match("controller", "Posts").
		Match("action", "index").
		Allow(false).
		Build()
	allow := NewRuleBuilder().
		Match("controller", "Posts").
		Match("action", "index").
		Allow(true).
		Build()

	denyFirst := newTestMatcher(t, []Rule{deny, allow})
	allowFirst := newTestMatcher(t, []Rule{allow, deny})

	assert.False(t, denyFirst.CheckPermissions(context.Background(), regularUser(), routeRequest("Posts", "index")))
	assert.True(t, allowFirst.CheckPermissions(context.Background(), regularUser(), routeRequest("Posts", "index")))
}

func TestMatcher_NegatedAction(t *testing.T) {
	t.Parallel()

	rules := []Rule{
		NewRuleBuilder().
			Match("controller", "Posts").
			NotMatch("action", "index").
			Allow(true).
			Build(),
	}
	matcher := newTestMatcher(t, rules)

	assert.True(t, matcher.CheckPermissions(context.Background(), regularUser(), routeRequest("Posts", "view")))
	assert.False(t, matcher.CheckPermissions(context.Background(), regularUser(), routeRequest("Posts", "index")))
}

func TestMatcher_WildcardPassesEveryField(t *testing.T) {
	t.Parallel()

	rules := []Rule{
		NewRuleBuilder().
			Match("prefix", "*").
			Match("plugin", "*").
			Match("extension", "*").
			Match("controller", "*").
			Match("action", "*").
			Match("role", "*").
			Allow(true).
			Build(),
	}
	matcher := newTestMatcher(t, rules)

	assert.True(t, matcher.CheckPermissions(context.Background(), regularUser(), routeRequest("Whatever", "anything")))
	assert.True(t, matcher.CheckPermissions(context.Background(), regularUser(), &Request{}))
}

func TestMatcher_BypassAuthPosition(t *testing.T) {
	t.Parallel()

	// bypassAuth placed before the role field short-circuits it.
	bypassBeforeRole := NewRuleBuilder().
		Match("controller", "*").
		Match("action", "*").
		BypassAuth().
		Match("role", "admin").
		Build()

	// Placed after a failing field it is never reached.
	bypassAfterRole := NewRuleBuilder().
		Match("controller", "*").
		Match("action", "*").
		Match("role", "admin").
		BypassAuth().
		Build()

	before := newTestMatcher(t, []Rule{bypassBeforeRole})
	after := newTestMatcher(t, []Rule{bypassAfterRole})

	assert.True(t, before.CheckPermissions(context.Background(), regularUser(), routeRequest("Posts", "index")))
	assert.False(t, after.CheckPermissions(context.Background(), regularUser(), routeRequest("Posts", "index")))
}

func TestMatcher_SkipInvariants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rule Rule
	}{
		{
			name: "missing controller key",
			rule: NewRuleBuilder().Match("action", "*").BypassAuth().Build(),
		},
		{
			name: "missing action key",
			rule: NewRuleBuilder().Match("controller", "*").BypassAuth().Build(),
		},
		{
			name: "user key present",
			rule: NewRuleBuilder().
				Match("controller", "*").
				Match("action", "*").
				Match("user", "anything").
				BypassAuth().
				Build(),
		},
		{
			name: "negated user key present",
			rule: NewRuleBuilder().
				Match("controller", "*").
				Match("action", "*").
				NotMatch("user", "anything").
				BypassAuth().
				Build(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// The invalid rule would allow everything if it were
			// evaluated; the decision must stay at default deny.
			matcher := newTestMatcher(t, []Rule{tt.rule})
			assert.False(t, matcher.CheckPermissions(context.Background(), regularUser(), routeRequest("Posts", "index")))
		})
	}
}

func TestMatcher_AllowedRequiresNonEmptyUser(t *testing.T) {
	t.Parallel()

	rules := []Rule{
		NewRuleBuilder().
			Match("controller", "Posts").
			Match("action", "index").
			Allow(true).
			Build(),
	}
	matcher := newTestMatcher(t, rules)

	assert.True(t, matcher.CheckPermissions(context.Background(), regularUser(), routeRequest("Posts", "index")))
	assert.False(t, matcher.CheckPermissions(context.Background(), map[string]any{}, routeRequest("Posts", "index")))
	assert.False(t, matcher.CheckPermissions(context.Background(), nil, routeRequest("Posts", "index")))
}

func TestMatcher_UserFieldPaths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		key      string
		values   []string
		user     map[string]any
		expected bool
	}{
		{
			name:     "top-level field",
			key:      "active",
			values:   []string{"true"},
			user:     map[string]any{"role": "user", "active": true},
			expected: true,
		},
		{
			name:     "explicit user prefix",
			key:      "user.active",
			values:   []string{"true"},
			user:     map[string]any{"role": "user", "active": true},
			expected: true,
		},
		{
			name:   "nested dotted path",
			key:    "profile.plan",
			values: []string{"pro"},
			user: map[string]any{
				"role":    "user",
				"profile": map[string]any{"plan": "pro"},
			},
			expected: true,
		},
		{
			name:     "numeric leaf is coerced",
			key:      "tenant",
			values:   []string{"42"},
			user:     map[string]any{"role": "user", "tenant": 42},
			expected: true,
		},
		{
			name:     "absent field does not match",
			key:      "active",
			values:   []string{"true"},
			user:     map[string]any{"role": "user"},
			expected: false,
		},
		{
			name:     "empty expected list gets no relaxation on user fields",
			key:      "active",
			values:   nil,
			user:     map[string]any{"role": "user"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rules := []Rule{
				NewRuleBuilder().
					Match("controller", "*").
					Match("action", "*").
					Match(tt.key, tt.values...).
					Allow(true).
					Build(),
			}
			matcher := newTestMatcher(t, rules)
			assert.Equal(t, tt.expected, matcher.CheckPermissions(context.Background(), tt.user, routeRequest("Posts", "index")))
		})
	}
}

func TestMatcher_AllowEmptyRelaxationOnReservedAttributes(t *testing.T) {
	t.Parallel()

	// An empty expected list for a reserved attribute matches an absent
	// route value.
	rules := []Rule{
		NewRuleBuilder().
			Match("prefix").
			Match("controller", "Posts").
			Match("action", "index").
			Allow(true).
			Build(),
	}
	matcher := newTestMatcher(t, rules)

	assert.True(t, matcher.CheckPermissions(context.Background(), regularUser(), routeRequest("Posts", "index")))

	withPrefix := &Request{Params: map[string]string{
		"prefix":     "admin",
		"controller": "Posts",
		"action":     "index",
	}}
	assert.False(t, matcher.CheckPermissions(context.Background(), regularUser(), withPrefix))
}

func TestMatcher_RoleResolution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		config   *Config
		user     map[string]any
		expected bool
	}{
		{
			name: "default role applies when the role field is absent",
			config: &Config{
				Permissions: []Rule{
					NewRuleBuilder().
						Match("controller", "*").
						Match("action", "*").
						Match("role", "user").
						Allow(true).
						Build(),
				},
			},
			user:     map[string]any{"name": "anonymous-ish"},
			expected: true,
		},
		{
			name: "custom default role",
			config: &Config{
				DefaultRole: "guest",
				Permissions: []Rule{
					NewRuleBuilder().
						Match("controller", "*").
						Match("action", "*").
						Match("role", "guest").
						Allow(true).
						Build(),
				},
			},
			user:     map[string]any{"name": "anonymous-ish"},
			expected: true,
		},
		{
			name: "dotted role field",
			config: &Config{
				RoleField: "meta.role",
				Permissions: []Rule{
					NewRuleBuilder().
						Match("controller", "*").
						Match("action", "*").
						Match("role", "admin").
						Allow(true).
						Build(),
				},
			},
			user: map[string]any{
				"meta": map[string]any{"role": "admin"},
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			matcher, err := NewMatcher(tt.config, WithMatcherLogger(observability.NopLogger()))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, matcher.CheckPermissions(context.Background(), tt.user, routeRequest("Posts", "index")))
		})
	}
}

func TestMatcher_DelegateFields(t *testing.T) {
	t.Parallel()

	adminOnly := DelegateFunc(func(ctx context.Context, user map[string]any, role string, req *Request) bool {
		return role == "admin"
	})

	rules := []Rule{
		NewRuleBuilder().
			Match("controller", "Posts").
			Match("action", "delete").
			DelegateFunc("owner", adminOnly).
			Allow(true).
			Build(),
	}
	matcher := newTestMatcher(t, rules)

	assert.True(t, matcher.CheckPermissions(context.Background(), map[string]any{"role": "admin"}, routeRequest("Posts", "delete")))
	assert.False(t, matcher.CheckPermissions(context.Background(), regularUser(), routeRequest("Posts", "delete")))
}

func TestMatcher_DelegateReceivesRequest(t *testing.T) {
	t.Parallel()

	var gotRole string
	var gotParam string

	rules := []Rule{
		NewRuleBuilder().
			Match("controller", "*").
			Match("action", "*").
			DelegateFunc("check", func(ctx context.Context, user map[string]any, role string, req *Request) bool {
				gotRole = role
				gotParam = req.Param("controller")
				return true
			}).
			Allow(true).
			Build(),
	}
	matcher := newTestMatcher(t, rules)

	assert.True(t, matcher.CheckPermissions(context.Background(), regularUser(), routeRequest("Posts", "index")))
	assert.Equal(t, "user", gotRole)
	assert.Equal(t, "Posts", gotParam)
}

func TestMatcher_CanonicalizationDirection(t *testing.T) {
	t.Parallel()

	// The studly expected value matches the dash-cased actual action.
	studlyExpected := newTestMatcher(t, []Rule{
		NewRuleBuilder().
			Match("controller", "Users").
			Match("action", "UserAdd").
			Allow(true).
			Build(),
	})
	assert.True(t, studlyExpected.CheckPermissions(context.Background(), regularUser(), routeRequest("Users", "user-add")))

	// The reverse direction is deliberately not symmetric: a dash-cased
	// expected value does not match a studly actual action.
	dashedExpected := newTestMatcher(t, []Rule{
		NewRuleBuilder().
			Match("controller", "Users").
			Match("action", "user-add").
			Allow(true).
			Build(),
	})
	assert.False(t, dashedExpected.CheckPermissions(context.Background(), regularUser(), routeRequest("Users", "UserAdd")))
}

func TestMatcher_ExtensionFromRouteParam(t *testing.T) {
	t.Parallel()

	rules := []Rule{
		NewRuleBuilder().
			Match("controller", "Feeds").
			Match("action", "index").
			Match("extension", "rss").
			Allow(true).
			Build(),
	}
	matcher := newTestMatcher(t, rules)

	withExt := &Request{Params: map[string]string{
		"controller": "Feeds",
		"action":     "index",
		"_ext":       "rss",
	}}
	assert.True(t, matcher.CheckPermissions(context.Background(), regularUser(), withExt))
	assert.False(t, matcher.CheckPermissions(context.Background(), regularUser(), routeRequest("Feeds", "index")))
}

func TestMatcher_CustomRouteKeys(t *testing.T) {
	t.Parallel()

	config := &Config{
		ControllerKey: "resource",
		ActionKey:     "operation",
		Permissions: []Rule{
			NewRuleBuilder().
				Match("controller", "Posts").
				Match("action", "index").
				Allow(true).
				Build(),
		},
	}
	matcher, err := NewMatcher(config, WithMatcherLogger(observability.NopLogger()))
	require.NoError(t, err)

	req := &Request{Params: map[string]string{
		"resource":  "Posts",
		"operation": "index",
	}}
	assert.True(t, matcher.CheckPermissions(context.Background(), regularUser(), req))
	assert.False(t, matcher.CheckPermissions(context.Background(), regularUser(), routeRequest("Posts", "index")))
}

func TestMatcher_GetSetPermissions(t *testing.T) {
	t.Parallel()

	initial := NewRuleBuilder().
		Match("controller", "Posts").
		Match("action", "index").
		Build()
	matcher := newTestMatcher(t, []Rule{initial})

	held := matcher.GetPermissions()
	require.Len(t, held, 1)
	// Normalization appended the default terminal.
	assert.True(t, held[0].HasKey(KeyAllowed))

	matcher.SetPermissions([]Rule{
		NewRuleBuilder().
			Match("controller", "Pages").
			Match("action", "view").
			Build(),
	})

	assert.False(t, matcher.CheckPermissions(context.Background(), regularUser(), routeRequest("Posts", "index")))
	assert.True(t, matcher.CheckPermissions(context.Background(), regularUser(), routeRequest("Pages", "view")))

	// The returned slice is a copy; mutating it must not affect the matcher.
	rules := matcher.GetPermissions()
	rules[0] = Rule{}
	assert.True(t, matcher.CheckPermissions(context.Background(), regularUser(), routeRequest("Pages", "view")))
}

func TestMatchOrWildcard(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		expected   FieldValue
		actual     string
		allowEmpty bool
		want       bool
	}{
		{name: "wildcard value", expected: WildcardValue(), actual: "anything", want: true},
		{name: "wildcard value with absent actual", expected: WildcardValue(), actual: "", want: true},
		{name: "member match", expected: ListValue("index", "view"), actual: "view", want: true},
		{name: "non-member", expected: ListValue("index"), actual: "delete", want: false},
		{name: "wildcard member inside list", expected: ListValue("index", "*"), actual: "delete", want: true},
		{name: "canonicalized membership", expected: ListValue("UserAdd"), actual: "user-add", want: true},
		{name: "empty list with relaxation", expected: ListValue(), actual: "", allowEmpty: true, want: true},
		{name: "empty list without relaxation", expected: ListValue(), actual: "", want: false},
		{name: "empty list with relaxation but present actual", expected: ListValue(), actual: "admin", allowEmpty: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, matchOrWildcard(tt.expected, tt.actual, tt.allowEmpty))
		})
	}
}

func TestLookupPath(t *testing.T) {
	t.Parallel()

	record := map[string]any{
		"role": "admin",
		"meta": map[string]any{
			"tags": map[string]string{"team": "core"},
		},
	}

	value, ok := lookupPath(record, "role")
	require.True(t, ok)
	assert.Equal(t, "admin", value)

	value, ok = lookupPath(record, "meta.tags.team")
	require.True(t, ok)
	assert.Equal(t, "core", value)

	_, ok = lookupPath(record, "meta.missing")
	assert.False(t, ok)

	_, ok = lookupPath(record, "role.nested")
	assert.False(t, ok)

	_, ok = lookupPath(nil, "role")
	assert.False(t, ok)
}
