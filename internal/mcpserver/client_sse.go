package mcpserver

import (
	"context"
	"fmt"

	"mcpaggregator/pkg/logging"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// SSEClient implements MCPClient over Server-Sent Events.
type SSEClient struct {
	baseMCPClient
	url     string
	headers map[string]string
}

// NewSSEClientWithHeaders creates an SSE client carrying the given static headers.
func NewSSEClientWithHeaders(url string, headers map[string]string) *SSEClient {
	if headers == nil {
		headers = make(map[string]string)
	}
	return &SSEClient{url: url, headers: headers}
}

// Initialize opens the SSE stream and performs the MCP handshake.
func (c *SSEClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	var opts []transport.ClientOption
	if len(c.headers) > 0 {
		opts = append(opts, transport.WithHeaders(c.headers))
	}

	mcpClient, err := client.NewSSEMCPClient(c.url, opts...)
	if err != nil {
		return fmt.Errorf("failed to create SSE client: %w", err)
	}

	if err := mcpClient.Start(ctx); err != nil {
		if authErr := CheckForAuthRequiredError(err, c.url); authErr != nil {
			return authErr
		}
		return fmt.Errorf("failed to start SSE transport: %w", err)
	}

	initResult, err := mcpClient.Initialize(ctx, mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: "2024-11-05",
			ClientInfo:      mcp.Implementation{Name: "mcpaggregator", Version: "1.0.0"},
			Capabilities:    mcp.ClientCapabilities{},
		},
	})
	if err != nil {
		mcpClient.Close()
		if authErr := CheckForAuthRequiredError(err, c.url); authErr != nil {
			return authErr
		}
		return fmt.Errorf("failed to initialize MCP protocol: %w", err)
	}

	c.client = mcpClient
	c.connected = true
	c.setServerInfo(initResult.ServerInfo)
	c.setCapabilities(initResult.Capabilities, initResult.Instructions)
	logging.Debug("sseclient", "initialized SSE client for %s", c.url)
	return nil
}

func (c *SSEClient) Close() error { return c.closeClient() }

// ServerInfo returns the name and version the upstream reported.
func (c *SSEClient) ServerInfo() (string, string) { return c.serverInfo() }

func (c *SSEClient) Capabilities() (map[string]map[string]interface{}, interface{}, string) {
	return c.capabilities()
}

func (c *SSEClient) ListTools(ctx context.Context) ([]mcp.Tool, error) { return c.listTools(ctx) }

func (c *SSEClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return c.callTool(ctx, name, args)
}

func (c *SSEClient) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	return c.listResources(ctx)
}

func (c *SSEClient) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	return c.readResource(ctx, uri)
}

func (c *SSEClient) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	return c.listPrompts(ctx)
}

func (c *SSEClient) GetPrompt(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error) {
	return c.getPrompt(ctx, name, args)
}

func (c *SSEClient) Ping(ctx context.Context) error { return c.ping(ctx) }
