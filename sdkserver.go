package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewSDKServer returns an MCP Go SDK server offering the same surface as the HTTP
// channel: the get_api_health tool, when deps carries a health-status provider, and the
// specification document resource. It is the server handle the stdio channel binds to.
func NewSDKServer(cfg Config, deps *Dependencies) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}, nil)

	if health := deps.Health(); health != nil {
		tool := toolList()[0]
		mcp.AddTool(srv, &mcp.Tool{
			Name:        tool.Name,
			Description: tool.Description,
		}, func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
			status, err := health.CheckHealth(ctx)
			if err != nil {
				return nil, nil, fmt.Errorf("health check failed: %w", err)
			}
			text, err := json.MarshalIndent(status, "", "  ")
			if err != nil {
				return nil, nil, fmt.Errorf("failed to encode health status: %w", err)
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: string(text)}},
			}, nil, nil
		})
	}

	res := resourceList(cfg)[0]
	srv.AddResource(&mcp.Resource{
		URI:         res.URI,
		Name:        res.Name,
		Description: res.Description,
		MIMEType:    res.MimeType,
	}, func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		doc, err := loadSpecDocument(deps.Documents(), deps.specDocumentPaths(), cfg)
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{URI: res.URI, MIMEType: res.MimeType, Text: string(doc)}},
		}, nil
	})

	return srv
}
