// Package mcpgateway discovers and proxies remote tools exposed by the tool
// gateway over MCP streamable HTTP.
package mcpgateway

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	clientName    = "wayfinder"
	clientVersion = "1.0.0"

	// sessionSetupTimeout bounds Start plus Initialize; slow gateways fail
	// fast instead of eating the whole call budget.
	sessionSetupTimeout = 10 * time.Second
)

// gatewaySession is the slice of the MCP client surface this adapter uses.
// Sessions are short-lived: one is opened per discovery or tool call and
// closed when the operation finishes.
type gatewaySession interface {
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// dialFunc opens an initialized gateway session authenticated with token.
type dialFunc func(ctx context.Context, token string) (gatewaySession, error)

// newStreamableDialer returns the production dialer for the given endpoint.
func newStreamableDialer(gatewayURL string, timeout time.Duration) dialFunc {
	return func(ctx context.Context, token string) (gatewaySession, error) {
		opts := []transport.StreamableHTTPCOption{
			transport.WithHTTPTimeout(timeout),
		}
		if token != "" {
			opts = append(opts, transport.WithHTTPHeaders(map[string]string{
				"Authorization": "Bearer " + token,
			}))
		}

		c, err := client.NewStreamableHttpClient(gatewayURL, opts...)
		if err != nil {
			return nil, fmt.Errorf("new gateway client: %w", err)
		}

		setupCtx, cancel := context.WithTimeout(ctx, sessionSetupTimeout)
		defer cancel()

		if err := c.Start(setupCtx); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("start gateway session: %w", err)
		}

		initReq := mcp.InitializeRequest{}
		initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
		initReq.Params.ClientInfo = mcp.Implementation{
			Name:    clientName,
			Version: clientVersion,
		}

		if _, err := c.Initialize(setupCtx, initReq); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("initialize gateway session: %w", err)
		}

		return c, nil
	}
}

// textContent flattens an MCP tool result to its text blocks, joined by
// newlines. Non-text content is ignored.
func textContent(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	var out string
	for _, block := range result.Content {
		tc, ok := block.(mcp.TextContent)
		if !ok {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += tc.Text
	}
	return out
}
