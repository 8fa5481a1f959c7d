// Package transport exposes one Model Context Protocol (MCP) server over three delivery
// channels: the process's standard input/output, a stateless HTTP request/response
// exchange, and a persistent Server-Sent Events (SSE) stream.
//
// Callers build a Transport with NewTransport, which validates the Config and the
// Dependencies before any socket is opened, then drive it through the channel-agnostic
// Transport contract:
//
//	deps, err := transport.NewDependencies(transport.Services{Health: checker})
//	if err != nil {
//		return err
//	}
//	t, err := transport.NewTransport(cfg, deps)
//	if err != nil {
//		return err
//	}
//	if err := t.Connect(ctx, transport.NewSDKServer(cfg, deps)); err != nil {
//		return err
//	}
//	defer t.Disconnect(context.Background())
//
// The stdio channel delegates all protocol handling to the MCP Go SDK. The HTTP channel
// answers the full method table itself. The SSE channel answers only initialize on its
// POST route and fans every exchange out to the connected event-stream subscribers.
package transport
