// Package observability provides the structured logging capability that
// the rolegate packages receive by injection.
//
// The Logger interface wraps go.uber.org/zap behind field constructors so
// consumers never depend on a process-wide logger singleton. NopLogger is
// the default everywhere a logger is optional.
package observability
