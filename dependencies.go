package transport

import (
	"context"
	"io/fs"
	"os"
)

// HealthChecker reports the health of the service behind the transport. The returned
// value is serialized to JSON and handed to MCP clients as tool output.
type HealthChecker interface {
	CheckHealth(ctx context.Context) (any, error)
}

// HealthCheckerFunc adapts an ordinary function to the HealthChecker interface.
type HealthCheckerFunc func(ctx context.Context) (any, error)

// CheckHealth calls f(ctx).
func (f HealthCheckerFunc) CheckHealth(ctx context.Context) (any, error) {
	return f(ctx)
}

// Services lists the collaborators handed to NewDependencies. Health is required;
// the rest are optional.
type Services struct {
	// Health backs the get_api_health tool.
	Health HealthChecker

	// Documents is where the specification document is read from. It defaults to the
	// process's working directory.
	Documents fs.FS

	// SpecDocumentPath overrides the well-known locations of the specification
	// document inside Documents.
	SpecDocumentPath string
}

// Dependencies is the validated, read-only container of services some transports need.
// A nil *Dependencies is a valid empty container.
type Dependencies struct {
	health    HealthChecker
	documents fs.FS
	specPath  string
}

// NewDependencies validates services and returns the container. It fails with a
// *ConfigError when a service required by any transport that might use it is missing.
func NewDependencies(services Services) (*Dependencies, error) {
	if services.Health == nil {
		return nil, &ConfigError{Field: "dependencies.health", Reason: "health-status provider is required"}
	}
	return &Dependencies{
		health:    services.Health,
		documents: services.Documents,
		specPath:  services.SpecDocumentPath,
	}, nil
}

// ValidateFor applies the per-kind dependency policy. The HTTP channel requires the
// health-status provider. The SSE and stdio channels require nothing. Unknown kinds
// pass unchanged.
func (d *Dependencies) ValidateFor(kind Kind) error {
	switch kind {
	case KindRequestResponse:
		if d.Health() == nil {
			return &ConfigError{
				Field:  "dependencies.health",
				Reason: "health-status provider is required by the http transport",
			}
		}
	case KindStream, KindPipe:
	}
	return nil
}

// Health returns the health-status provider, or nil.
func (d *Dependencies) Health() HealthChecker {
	if d == nil {
		return nil
	}
	return d.health
}

// Documents returns the file system the specification document is read from.
func (d *Dependencies) Documents() fs.FS {
	if d == nil || d.documents == nil {
		return os.DirFS(".")
	}
	return d.documents
}

func (d *Dependencies) specDocumentPaths() []string {
	if d != nil && d.specPath != "" {
		return []string{d.specPath}
	}
	return defaultSpecDocumentPaths
}
