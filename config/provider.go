package config

import (
	"context"
	"fmt"

	"github.com/rolegate/rolegate/observability"
	"github.com/rolegate/rolegate/rbac"
)

// FileProvider produces the ordered rule list from a YAML permission
// file. The file path is the provider's configuration identifier.
type FileProvider struct {
	path   string
	logger observability.Logger
}

// FileProviderOption is a functional option for the file provider.
type FileProviderOption func(*FileProvider)

// WithProviderLogger sets the logger.
func WithProviderLogger(logger observability.Logger) FileProviderOption {
	return func(p *FileProvider) {
		p.logger = logger
	}
}

// NewFileProvider creates a provider reading the given permission file.
func NewFileProvider(path string, opts ...FileProviderOption) *FileProvider {
	p := &FileProvider{
		path:   path,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// GetPermissions implements rbac.Provider.
func (p *FileProvider) GetPermissions(ctx context.Context) ([]rbac.Rule, error) {
	config, err := LoadConfig(p.path)
	if err != nil {
		return nil, fmt.Errorf("permission file %s: %w", p.path, err)
	}

	for _, warning := range config.RuleWarnings() {
		p.logger.Warn("invalid permission rule",
			observability.Error(warning),
		)
	}

	p.logger.Debug("loaded permission file",
		observability.String("path", p.path),
		observability.Int("rules", len(config.Permissions)),
	)

	return config.Permissions, nil
}

// Ensure FileProvider implements rbac.Provider.
var _ rbac.Provider = (*FileProvider)(nil)
