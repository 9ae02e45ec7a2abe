package mcpserver

import (
	"context"
	"fmt"

	"mcpaggregator/pkg/logging"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// DynamicAuthClient is a streamable-HTTP client whose Authorization header
// is recomputed from a TokenProvider on every request, rather than fixed at
// construction time. This lets a session survive an upstream's access-token
// refresh without tearing down and recreating the client.
type DynamicAuthClient struct {
	baseMCPClient
	url           string
	tokenProvider TokenProvider
}

// NewDynamicAuthClient creates a streamable-HTTP client that injects a
// fresh bearer token from tokenProvider on each request.
func NewDynamicAuthClient(url string, tokenProvider TokenProvider) *DynamicAuthClient {
	if tokenProvider == nil {
		tokenProvider = TokenProviderFunc(func(_ context.Context) string { return "" })
	}
	return &DynamicAuthClient{url: url, tokenProvider: tokenProvider}
}

// Initialize performs the MCP handshake, installing the dynamic header func.
func (c *DynamicAuthClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	opts := []transport.StreamableHTTPCOption{
		transport.WithHTTPHeaderFunc(tokenProviderToHeaderFunc(c.tokenProvider)),
	}

	mcpClient, err := client.NewStreamableHttpClient(c.url, opts...)
	if err != nil {
		return fmt.Errorf("failed to create streamable-HTTP client: %w", err)
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
	logging.Debug("dynamicauthclient", "initialized dynamic-auth client for %s", c.url)
	return nil
}

func (c *DynamicAuthClient) Close() error { return c.closeClient() }

// ServerInfo returns the name and version the upstream reported.
func (c *DynamicAuthClient) ServerInfo() (string, string) { return c.serverInfo() }

func (c *DynamicAuthClient) Capabilities() (map[string]map[string]interface{}, interface{}, string) {
	return c.capabilities()
}

func (c *DynamicAuthClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	return c.listTools(ctx)
}

func (c *DynamicAuthClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return c.callTool(ctx, name, args)
}

func (c *DynamicAuthClient) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	return c.listResources(ctx)
}

func (c *DynamicAuthClient) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	return c.readResource(ctx, uri)
}

func (c *DynamicAuthClient) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	return c.listPrompts(ctx)
}

func (c *DynamicAuthClient) GetPrompt(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error) {
	return c.getPrompt(ctx, name, args)
}

func (c *DynamicAuthClient) Ping(ctx context.Context) error { return c.ping(ctx) }
