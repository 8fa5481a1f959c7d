// Package config loads the transport configuration of a process from an optional TOML
// file and the environment. Environment variables take precedence over the file, and the
// file over the built-in defaults. Values are not validated here; transport.NewTransport
// does that before anything is opened.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	transport "github.com/TangGee/go-mcp-transport"
)

// Default values applied before the file and the environment.
const (
	DefaultKind          = transport.KindPipe
	DefaultHost          = "localhost"
	DefaultPort          = 3000
	DefaultServerName    = "mcp-server"
	DefaultServerVersion = "0.1.0"
)

// Config is the process configuration.
type Config struct {
	Transport TransportSection `toml:"transport"`
	Server    ServerSection    `toml:"server"`
	Spec      SpecSection      `toml:"spec"`
}

// TransportSection selects and addresses the channel.
type TransportSection struct {
	Kind string `toml:"kind" env:"MCP_TRANSPORT"`
	Host string `toml:"host" env:"MCP_HOST"`
	Port int    `toml:"port" env:"MCP_PORT"`
}

// ServerSection carries the identity announced by initialize.
type ServerSection struct {
	Name    string `toml:"name"    env:"MCP_SERVER_NAME"`
	Version string `toml:"version" env:"MCP_SERVER_VERSION"`
}

// SpecSection locates the generated specification document.
type SpecSection struct {
	Path string `toml:"path" env:"MCP_SPEC_PATH"`
}

// Defaults returns the configuration used when neither a file nor the environment says
// otherwise.
func Defaults() Config {
	return Config{
		Transport: TransportSection{
			Kind: string(DefaultKind),
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Server: ServerSection{
			Name:    DefaultServerName,
			Version: DefaultServerVersion,
		},
	}
}

// Load builds the configuration from the defaults, the TOML file at path when path is
// not empty, and then the environment.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("config file %s does not exist", path)
			}
			return Config{}, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// TransportConfig converts the loaded configuration into a transport.Config.
func (c Config) TransportConfig() transport.Config {
	return transport.Config{
		Kind:          transport.Kind(c.Transport.Kind),
		Host:          c.Transport.Host,
		Port:          c.Transport.Port,
		ServerName:    c.Server.Name,
		ServerVersion: c.Server.Version,
	}
}
