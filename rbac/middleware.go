package rbac

import (
	"context"
	"encoding/json"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/rolegate/rolegate/observability"
)

// userKeyType keys the user record in a request context.
type userKeyType struct{}

var userContextKey userKeyType

// ContextWithUser stores the user record in the context.
func ContextWithUser(ctx context.Context, user map[string]any) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext extracts the user record from the context.
func UserFromContext(ctx context.Context) (map[string]any, bool) {
	user, ok := ctx.Value(userContextKey).(map[string]any)
	return user, ok
}

// ParamsFunc derives route parameters from an HTTP request.
type ParamsFunc func(r *http.Request) map[string]string

// HTTPGate guards HTTP handlers with the permission matcher.
type HTTPGate interface {
	// Check decides the request; it returns ErrNoUser when no user record
	// is present in the request context.
	Check(r *http.Request) (bool, error)

	// Middleware returns an HTTP middleware enforcing the decision.
	Middleware() func(http.Handler) http.Handler
}

// httpGate implements the HTTPGate interface.
type httpGate struct {
	matcher Matcher
	params  ParamsFunc
	logger  observability.Logger
}

// HTTPGateOption is a functional option for the HTTP gate.
type HTTPGateOption func(*httpGate)

// WithGateLogger sets the logger.
func WithGateLogger(logger observability.Logger) HTTPGateOption {
	return func(g *httpGate) {
		g.logger = logger
	}
}

// WithParamsFunc overrides how route parameters are derived.
func WithParamsFunc(fn ParamsFunc) HTTPGateOption {
	return func(g *httpGate) {
		g.params = fn
	}
}

// NewHTTPGate creates a new HTTP gate around the matcher.
func NewHTTPGate(matcher Matcher, opts ...HTTPGateOption) HTTPGate {
	g := &httpGate{
		matcher: matcher,
		params:  PathParams,
		logger:  observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Check decides the request.
func (g *httpGate) Check(r *http.Request) (bool, error) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		return false, ErrNoUser
	}

	req := &Request{
		Params: g.params(r),
		Data:   requestData(r),
	}

	return g.matcher.CheckPermissions(r.Context(), user, req), nil
}

// Middleware returns an HTTP middleware enforcing the decision.
func (g *httpGate) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decisionID := uuid.NewString()
			r = r.WithContext(observability.ContextWithDecisionID(r.Context(), decisionID))

			allowed, err := g.Check(r)
			if err != nil {
				g.logger.Warn("authorization error",
					observability.String("decision_id", decisionID),
					observability.String("path", r.URL.Path),
					observability.String("method", r.Method),
					observability.Error(err),
				)
				writeJSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if !allowed {
				g.logger.Warn("access denied",
					observability.String("decision_id", decisionID),
					observability.String("path", r.URL.Path),
					observability.String("method", r.Method),
				)
				writeJSONError(w, http.StatusForbidden, "access denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requestData builds the attributes handed through to delegate rules.
func requestData(r *http.Request) map[string]any {
	return map[string]any{
		"method": r.Method,
		"path":   r.URL.Path,
		"query":  r.URL.RawQuery,
		"host":   r.Host,
	}
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// PathParams derives route parameters from the URL path: one segment is
// the controller, two are controller/action, three or more put a routing
// prefix first. A file extension on the last segment becomes _ext.
func PathParams(r *http.Request) map[string]string {
	params := map[string]string{
		KeyPrefix:     "",
		KeyPlugin:     "",
		extParam:      "",
		KeyController: "",
		KeyAction:     "index",
	}

	trimmed := strings.Trim(r.URL.Path, "/")
	if trimmed == "" {
		return params
	}

	if ext := path.Ext(trimmed); ext != "" {
		params[extParam] = strings.TrimPrefix(ext, ".")
		trimmed = strings.TrimSuffix(trimmed, ext)
	}

	segments := strings.Split(trimmed, "/")
	switch len(segments) {
	case 1:
		params[KeyController] = segments[0]
	case 2:
		params[KeyController] = segments[0]
		params[KeyAction] = segments[1]
	default:
		params[KeyPrefix] = segments[0]
		params[KeyController] = segments[1]
		params[KeyAction] = segments[2]
	}

	return params
}

// Ensure httpGate implements HTTPGate.
var _ HTTPGate = (*httpGate)(nil)
