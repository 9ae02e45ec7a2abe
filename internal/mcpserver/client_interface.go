package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPClient defines the interface for MCP client implementations.
// All transport types (stdio, SSE, streamable-http) implement this interface,
// enabling polymorphic usage and easier testing with mocks.
type MCPClient interface {
	Initialize(ctx context.Context) error
	Close() error
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
	ListResources(ctx context.Context) ([]mcp.Resource, error)
	ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error)
	ListPrompts(ctx context.Context) ([]mcp.Prompt, error)
	GetPrompt(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error)
	Ping(ctx context.Context) error
	// ServerInfo returns the name and version the upstream reported during
	// the initialize handshake. Empty before Initialize succeeds.
	ServerInfo() (name string, version string)
	// Capabilities returns the upstream's initialize-time capability
	// categories, its scalar logging capability, and its free-text
	// instructions, for C4's aggregation pass. Empty before Initialize
	// succeeds.
	Capabilities() (categories map[string]map[string]interface{}, logging interface{}, instructions string)
}

var (
	_ MCPClient = (*StdioClient)(nil)
	_ MCPClient = (*SSEClient)(nil)
	_ MCPClient = (*StreamableHTTPClient)(nil)
	_ MCPClient = (*DynamicAuthClient)(nil)
)

// baseMCPClient provides common functionality for all MCP client implementations.
type baseMCPClient struct {
	client        client.MCPClient
	mu            sync.RWMutex
	connected     bool
	serverName    string
	serverVersion string

	capCategories  map[string]map[string]interface{}
	capLogging     interface{}
	capInstructions string
}

func (b *baseMCPClient) serverInfo() (string, string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.serverName, b.serverVersion
}

func (b *baseMCPClient) setServerInfo(info mcp.Implementation) {
	b.serverName = info.Name
	b.serverVersion = info.Version
}

// capabilities exposes the categories parsed by setCapabilities.
func (b *baseMCPClient) capabilities() (map[string]map[string]interface{}, interface{}, string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.capCategories, b.capLogging, b.capInstructions
}

// setCapabilities converts the handshake's ServerCapabilities into the
// generic category-map shape capabilities.Aggregate expects. It round-trips
// through JSON rather than reflecting on mcp.ServerCapabilities's fields
// directly, so it stays correct across library versions that add or
// rename capability fields.
func (b *baseMCPClient) setCapabilities(caps mcp.ServerCapabilities, instructions string) {
	b.capInstructions = instructions

	raw, err := json.Marshal(caps)
	if err != nil {
		return
	}
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(raw, &flat); err != nil {
		return
	}

	categories := make(map[string]map[string]interface{}, len(flat))
	for key, msg := range flat {
		if key == "logging" {
			var v interface{}
			if err := json.Unmarshal(msg, &v); err == nil {
				b.capLogging = v
			}
			continue
		}
		var v map[string]interface{}
		if err := json.Unmarshal(msg, &v); err == nil {
			categories[key] = v
		}
	}
	b.capCategories = categories
}

func (b *baseMCPClient) checkConnected() error {
	if !b.connected || b.client == nil {
		return fmt.Errorf("client not connected")
	}
	return nil
}

func (b *baseMCPClient) closeClient() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client == nil {
		return nil
	}

	// A transport may be set before the handshake completes (stdio's
	// subprocess survives a failed Initialize for reuse on retry), so this
	// closes on b.client alone rather than also requiring b.connected.
	err := b.client.Close()
	b.connected = false
	b.client = nil
	return err
}

func (b *baseMCPClient) listTools(ctx context.Context) ([]mcp.Tool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkConnected(); err != nil {
		return nil, err
	}

	result, err := b.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	return result.Tools, nil
}

func (b *baseMCPClient) callTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkConnected(); err != nil {
		return nil, err
	}

	result, err := b.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call tool: %w", err)
	}
	return result, nil
}

func (b *baseMCPClient) listResources(ctx context.Context) ([]mcp.Resource, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkConnected(); err != nil {
		return nil, err
	}

	result, err := b.client.ListResources(ctx, mcp.ListResourcesRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	return result.Resources, nil
}

func (b *baseMCPClient) readResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkConnected(); err != nil {
		return nil, err
	}

	result, err := b.client.ReadResource(ctx, mcp.ReadResourceRequest{
		Params: struct {
			URI       string         `json:"uri"`
			Arguments map[string]any `json:"arguments,omitempty"`
		}{URI: uri},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read resource: %w", err)
	}
	return result, nil
}

func (b *baseMCPClient) listPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkConnected(); err != nil {
		return nil, err
	}

	result, err := b.client.ListPrompts(ctx, mcp.ListPromptsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	return result.Prompts, nil
}

func (b *baseMCPClient) getPrompt(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkConnected(); err != nil {
		return nil, err
	}

	stringArgs := make(map[string]string, len(args))
	for k, v := range args {
		if str, ok := v.(string); ok {
			stringArgs[k] = str
		} else {
			stringArgs[k] = fmt.Sprintf("%v", v)
		}
	}

	result, err := b.client.GetPrompt(ctx, mcp.GetPromptRequest{
		Params: struct {
			Name      string            `json:"name"`
			Arguments map[string]string `json:"arguments,omitempty"`
		}{Name: name, Arguments: stringArgs},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}
	return result, nil
}

func (b *baseMCPClient) ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkConnected(); err != nil {
		return err
	}
	return b.client.Ping(ctx)
}
