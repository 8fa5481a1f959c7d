package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	specResourceName = "API Specification"
	specMimeType     = "application/json"
)

// defaultSpecDocumentPaths are tried in order when no explicit path is configured.
var defaultSpecDocumentPaths = []string{
	"generated/openapi.json",
	"generated/openapi.yaml",
}

// specResourceURI returns the URI under which the specification document is listed.
// The server name becomes the URI host, lowercased with anything outside [a-z0-9.-]
// replaced by a dash.
func specResourceURI(serverName string) string {
	host := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, serverName)
	return "spec://" + host + "/specs"
}

// loadSpecDocument reads the generated specification document from fsys. YAML documents
// are converted to JSON. When none of the paths exist, a minimal placeholder document is
// synthesized instead.
func loadSpecDocument(fsys fs.FS, paths []string, cfg Config) ([]byte, error) {
	for _, p := range paths {
		bs, err := fs.ReadFile(fsys, p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read spec document %s: %w", p, err)
		}
		switch strings.ToLower(path.Ext(p)) {
		case ".yaml", ".yml":
			return yamlToJSON(bs)
		default:
			if !json.Valid(bs) {
				return nil, fmt.Errorf("spec document %s is not valid JSON", p)
			}
			return bs, nil
		}
	}
	return placeholderSpecDocument(cfg)
}

func placeholderSpecDocument(cfg Config) ([]byte, error) {
	doc := map[string]any{
		"openapi": "3.0.0",
		"info": map[string]any{
			"title":       cfg.ServerName,
			"version":     cfg.ServerVersion,
			"description": "Specification document has not been generated yet",
		},
		"paths": map[string]any{},
	}
	return json.Marshal(doc)
}

func yamlToJSON(bs []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(bs, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode YAML spec document: %w", err)
	}
	out, err := json.Marshal(stringKeys(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to encode spec document as JSON: %w", err)
	}
	return out, nil
}

// stringKeys rewrites every map[any]any in v as map[string]any. yaml.v3 produces
// those for mappings with non-string keys, such as unquoted response codes, and
// encoding/json cannot encode them.
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = stringKeys(val)
		}
		return m
	case map[string]any:
		for k, val := range t {
			t[k] = stringKeys(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = stringKeys(val)
		}
		return t
	default:
		return v
	}
}
