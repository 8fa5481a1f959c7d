package transport

import (
	"fmt"
	"strings"
)

const maxPort = 65535

// Validate checks the configuration in the order NewTransport relies on: the channel
// kind, then the address of socket-based kinds, then the server identity.
func (c Config) Validate() error {
	if !c.Kind.Known() {
		return &ConfigError{
			Field:  "kind",
			Reason: fmt.Sprintf("unknown transport %q, want one of %s, %s, %s", c.Kind, KindPipe, KindRequestResponse, KindStream),
		}
	}
	if c.Kind != KindPipe {
		if strings.TrimSpace(c.Host) == "" {
			return &ConfigError{Field: "host", Reason: fmt.Sprintf("required by the %s transport", c.Kind)}
		}
		if c.Port < 1 || c.Port > maxPort {
			return &ConfigError{Field: "port", Reason: fmt.Sprintf("%d is outside [1, %d]", c.Port, maxPort)}
		}
	}
	if strings.TrimSpace(c.ServerName) == "" {
		return &ConfigError{Field: "serverName", Reason: "must not be empty"}
	}
	if strings.TrimSpace(c.ServerVersion) == "" {
		return &ConfigError{Field: "serverVersion", Reason: "must not be empty"}
	}
	return nil
}

// NewTransport validates cfg and deps and builds the selected channel. All checks run
// before anything is instantiated and no I/O is performed; every failure is a
// *ConfigError.
func NewTransport(cfg Config, deps *Dependencies, opts ...Option) (Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := deps.ValidateFor(cfg.Kind); err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case KindPipe:
		return NewPipeTransport(cfg, opts...), nil
	case KindRequestResponse:
		return NewHTTPTransport(cfg, deps, opts...), nil
	case KindStream:
		return NewSSETransport(cfg, deps, opts...), nil
	default:
		return nil, &ConfigError{Field: "kind", Reason: fmt.Sprintf("unknown transport %q", cfg.Kind)}
	}
}
