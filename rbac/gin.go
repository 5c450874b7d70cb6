package rbac

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rolegate/rolegate/observability"
)

// GinUserKey is the gin context key the user record is read from.
const GinUserKey = "rolegate.user"

// GinMiddleware adapts the matcher to a gin handler chain. Route
// parameters declared on the route (controller, action, prefix, plugin,
// _ext) take precedence over the path-derived defaults.
func GinMiddleware(matcher Matcher, opts ...HTTPGateOption) gin.HandlerFunc {
	g := &httpGate{
		matcher: matcher,
		params:  PathParams,
		logger:  observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return func(c *gin.Context) {
		decisionID := uuid.NewString()

		value, exists := c.Get(GinUserKey)
		user, ok := value.(map[string]any)
		if !exists || !ok {
			g.logger.Warn("authorization error",
				observability.String("decision_id", decisionID),
				observability.String("path", c.Request.URL.Path),
				observability.String("method", c.Request.Method),
				observability.Error(ErrNoUser),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			return
		}

		params := g.params(c.Request)
		for _, p := range c.Params {
			params[p.Key] = p.Value
		}

		req := &Request{
			Params: params,
			Data:   requestData(c.Request),
		}

		ctx := observability.ContextWithDecisionID(c.Request.Context(), decisionID)
		if !matcher.CheckPermissions(ctx, user, req) {
			g.logger.Warn("access denied",
				observability.String("decision_id", decisionID),
				observability.String("path", c.Request.URL.Path),
				observability.String("method", c.Request.Method),
			)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "access denied",
			})
			return
		}

		c.Next()
	}
}
