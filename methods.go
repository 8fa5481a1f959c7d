package transport

import "github.com/google/jsonschema-go/jsonschema"

// httpMethod is the closed set of methods the HTTP channel answers.
type httpMethod int

const (
	httpMethodUnknown httpMethod = iota
	httpMethodInitialize
	httpMethodToolsList
	httpMethodToolsCall
	httpMethodResourcesList
	httpMethodResourcesRead
)

func parseHTTPMethod(name string) httpMethod {
	switch name {
	case MethodInitialize:
		return httpMethodInitialize
	case MethodToolsList:
		return httpMethodToolsList
	case MethodToolsCall:
		return httpMethodToolsCall
	case MethodResourcesList:
		return httpMethodResourcesList
	case MethodResourcesRead:
		return httpMethodResourcesRead
	default:
		return httpMethodUnknown
	}
}

// sseMethod is the closed set of methods the SSE channel answers on its POST route.
type sseMethod int

const (
	sseMethodUnsupported sseMethod = iota
	sseMethodInitialize
)

func parseSSEMethod(name string) sseMethod {
	if name == MethodInitialize {
		return sseMethodInitialize
	}
	return sseMethodUnsupported
}

const (
	toolGetAPIHealth = "get_api_health"
)

// httpCapabilities is advertised by the HTTP channel, which serves tools and resources.
func httpCapabilities() ServerCapabilities {
	return ServerCapabilities{
		Tools:     &ToolsCapability{},
		Resources: &ResourcesCapability{},
	}
}

// sseCapabilities is advertised by the SSE channel. It serves neither tools nor
// resources, so it declares none.
func sseCapabilities() ServerCapabilities {
	return ServerCapabilities{}
}

func initializeResult(cfg Config, caps ServerCapabilities) InitializeResult {
	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    caps,
		ServerInfo: ServerInfo{
			Name:    cfg.ServerName,
			Version: cfg.ServerVersion,
		},
	}
}

func toolList() []Tool {
	return []Tool{
		{
			Name:        toolGetAPIHealth,
			Description: "Reports the current health status of the API",
			InputSchema: emptyObjectSchema(),
		},
	}
}

func resourceList(cfg Config) []Resource {
	return []Resource{
		{
			URI:         specResourceURI(cfg.ServerName),
			Name:        specResourceName,
			Description: "Generated specification document of the API",
			MimeType:    specMimeType,
		},
	}
}

func toolNames() []string {
	tools := toolList()
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	return names
}

func resourceURIs(cfg Config) []string {
	resources := resourceList(cfg)
	uris := make([]string, 0, len(resources))
	for _, r := range resources {
		uris = append(uris, r.URI)
	}
	return uris
}

func emptyObjectSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: map[string]*jsonschema.Schema{},
	}
}
