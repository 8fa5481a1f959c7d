package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const httpEndpointPath = "/mcp"

// HTTPTransport serves MCP as one JSON-RPC exchange per HTTP POST. It answers the full
// method table itself: initialize, tools/list, tools/call, resources/list and
// resources/read.
//
// Instances should be created using NewHTTPTransport or NewTransport.
type HTTPTransport struct {
	cfg      Config
	deps     *Dependencies
	logger   *slog.Logger
	maxBody  int64
	listener *listener
}

// NewHTTPTransport creates the request/response channel. It does not validate its
// arguments; use NewTransport for that.
func NewHTTPTransport(cfg Config, deps *Dependencies, opts ...Option) *HTTPTransport {
	o := newOptions(KindRequestResponse, opts)
	return &HTTPTransport{
		cfg:      cfg,
		deps:     deps,
		logger:   o.logger,
		maxBody:  o.maxBodyBytes,
		listener: newListener(cfg, o),
	}
}

// Connect binds the listener and starts serving exchanges. The server handle is not
// used, this channel dispatches requests itself.
func (t *HTTPTransport) Connect(ctx context.Context, _ *mcp.Server) error {
	return t.listener.start(ctx, t.Handler())
}

// Disconnect stops accepting exchanges and closes the listener.
func (t *HTTPTransport) Disconnect(ctx context.Context) {
	t.listener.stop(ctx)
}

// TransportInfo implements Transport.
func (t *HTTPTransport) TransportInfo() Info {
	addr, connected := t.listener.address()
	return Info{
		Kind: KindRequestResponse,
		Details: map[string]any{
			"address":   addr,
			"endpoint":  "http://" + addr + httpEndpointPath,
			"connected": connected,
		},
	}
}

// Handler returns the http.Handler serving every exchange of this channel. Connect
// serves it on the configured address; it can also be mounted on any other server.
func (t *HTTPTransport) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			writePreflight(w)
			return
		}
		w.Header().Set(headerAllowOrigin, corsAllowOrigin)

		if r.URL.Path != httpEndpointPath {
			writeJSON(w, t.logger, http.StatusNotFound, plainError{Error: "Not found"})
			return
		}
		if r.Method != http.MethodPost {
			writeJSON(w, t.logger, http.StatusMethodNotAllowed, plainError{Error: "Method not allowed"})
			return
		}

		body, err := readBody(w, r, t.maxBody)
		if err != nil {
			t.logger.Warn("failed to read request body", slog.String("err", err.Error()))
			status := http.StatusBadRequest
			if errors.Is(err, errBodyTooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			writeJSON(w, t.logger, status, plainError{Error: err.Error()})
			return
		}

		req, invalid, err := parseEnvelope(body)
		if err != nil {
			t.logger.Warn("failed to parse JSON-RPC envelope", slog.String("err", err.Error()))
			writeJSON(w, t.logger, http.StatusBadRequest,
				newError(RequestID{}, CodeParseError, errMsgParseError, err.Error()))
			return
		}
		if invalid != nil {
			writeJSON(w, t.logger, http.StatusOK, invalid)
			return
		}

		resp := t.dispatch(r.Context(), req)
		t.logger.Debug("handled request",
			slog.String("method", req.Method),
			slog.String("id", req.ID.String()),
			slog.Bool("error", resp.Error != nil),
		)
		writeJSON(w, t.logger, http.StatusOK, resp)
	})
}

func (t *HTTPTransport) dispatch(ctx context.Context, req Request) (resp Response) {
	defer recoverDispatch(t.logger, req, &resp)

	switch parseHTTPMethod(req.Method) {
	case httpMethodInitialize:
		return newResult(req.ID, initializeResult(t.cfg, httpCapabilities()))
	case httpMethodToolsList:
		return newResult(req.ID, ListToolsResult{Tools: toolList()})
	case httpMethodToolsCall:
		return t.callTool(ctx, req)
	case httpMethodResourcesList:
		return newResult(req.ID, ListResourcesResult{Resources: resourceList(t.cfg)})
	case httpMethodResourcesRead:
		return t.readResource(req)
	case httpMethodUnknown:
	}
	return newError(req.ID, CodeMethodNotFound,
		fmt.Sprintf("Method not implemented in HTTP transport: %s", req.Method), nil)
}

func (t *HTTPTransport) callTool(ctx context.Context, req Request) Response {
	var params CallToolParams
	if err := unmarshalParams(req.Params, &params); err != nil {
		return newError(req.ID, CodeInvalidParams, "Invalid params", err.Error())
	}
	if params.Name != toolGetAPIHealth {
		return newError(req.ID, CodeMethodNotFound, fmt.Sprintf("Unknown tool: %s", params.Name), nil)
	}

	health := t.deps.Health()
	if health == nil {
		return newError(req.ID, CodeInternalError, errMsgInternalError, "health-status provider is not configured")
	}
	status, err := health.CheckHealth(ctx)
	if err != nil {
		return newError(req.ID, CodeInternalError, errMsgInternalError, err.Error())
	}
	text, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return newError(req.ID, CodeInternalError, errMsgInternalError, err.Error())
	}
	return newResult(req.ID, CallToolResult{
		Content: []Content{{Type: ContentTypeText, Text: string(text)}},
	})
}

func (t *HTTPTransport) readResource(req Request) Response {
	var params ReadResourceParams
	if err := unmarshalParams(req.Params, &params); err != nil {
		return newError(req.ID, CodeInvalidParams, "Invalid params", err.Error())
	}
	uri := specResourceURI(t.cfg.ServerName)
	if params.URI != uri {
		return newError(req.ID, CodeInvalidParams, fmt.Sprintf("Unknown resource: %s", params.URI), nil)
	}

	doc, err := loadSpecDocument(t.deps.Documents(), t.deps.specDocumentPaths(), t.cfg)
	if err != nil {
		return newError(req.ID, CodeInternalError, errMsgInternalError, err.Error())
	}
	return newResult(req.ID, ReadResourceResult{
		Contents: []ResourceContents{{URI: uri, MimeType: specMimeType, Text: string(doc)}},
	})
}

func unmarshalParams(params json.RawMessage, v any) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("failed to decode params: %w", err)
	}
	return nil
}
