// Package rbac implements role-based permission matching over an ordered
// rule list.
//
// A rule is an ordered conjunction of field conditions. Fields match the
// reserved request attributes (prefix, plugin, extension, controller,
// action, role), dotted paths into the user record, or delegate to an
// externally supplied decision (a DelegateRule, a plain func, or a CEL
// expression). The first rule that reaches a definitive allow or deny
// wins; exhausting the list denies.
//
// # Usage
//
// Build rules in code or load them from YAML, then construct a matcher:
//
//	rules := []rbac.Rule{
//	    rbac.NewRuleBuilder().
//	        Match("controller", "Posts").
//	        Match("action", "index", "view").
//	        Match("role", "*").
//	        Build(),
//	}
//
//	matcher, err := rbac.NewMatcher(&rbac.Config{Permissions: rules})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	allowed := matcher.CheckPermissions(ctx, user, &rbac.Request{
//	    Params: map[string]string{"controller": "Posts", "action": "index"},
//	})
//
// The HTTP and gin middlewares in this package gate handlers with the
// same decision.
package rbac
