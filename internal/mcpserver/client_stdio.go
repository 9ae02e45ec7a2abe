package mcpserver

import (
	"context"
	"fmt"
	"io"
	"time"

	"mcpaggregator/pkg/logging"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// DefaultStdioInitTimeout bounds how long a child process has to start and
// complete the MCP handshake before Initialize gives up.
const DefaultStdioInitTimeout = 10 * time.Second

// StdioClient implements MCPClient over a local subprocess's stdin/stdout.
type StdioClient struct {
	baseMCPClient
	command string
	args    []string
	env     map[string]string
}

// NewStdioClientWithEnv creates a stdio client that will start command with
// args and env when Initialize is called.
func NewStdioClientWithEnv(command string, args []string, env map[string]string) *StdioClient {
	return &StdioClient{command: command, args: args, env: env}
}

// Initialize starts the subprocess and performs the MCP handshake. A
// subprocess's stdio pipes are single-shot: if a prior call on this same
// instance already spawned one, a retried Initialize reuses it rather than
// spawning a second process. The caller is responsible for Close-ing the
// client (and so the process) once it gives up retrying.
func (c *StdioClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	mcpClient := c.client
	if mcpClient == nil {
		logging.Debug("stdioclient", "starting %s %v", c.command, c.args)

		var envStrings []string
		for k, v := range c.env {
			envStrings = append(envStrings, fmt.Sprintf("%s=%s", k, v))
		}

		spawned, err := client.NewStdioMCPClient(c.command, envStrings, c.args...)
		if err != nil {
			return fmt.Errorf("failed to create stdio client: %w", err)
		}
		mcpClient = spawned
		c.client = mcpClient
	}

	initCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, DefaultStdioInitTimeout)
		defer cancel()
	}

	initResult, err := mcpClient.Initialize(initCtx, mcp.InitializeRequest{
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
		logging.Error("stdioclient", err, "failed to initialize MCP protocol for %s", c.command)
		return fmt.Errorf("failed to initialize MCP protocol: %w", err)
	}

	c.connected = true
	c.setServerInfo(initResult.ServerInfo)
	c.setCapabilities(initResult.Capabilities, initResult.Instructions)
	return nil
}

func (c *StdioClient) Close() error { return c.closeClient() }

// ServerInfo returns the name and version the child process reported.
func (c *StdioClient) ServerInfo() (string, string) { return c.serverInfo() }

func (c *StdioClient) Capabilities() (map[string]map[string]interface{}, interface{}, string) {
	return c.capabilities()
}

func (c *StdioClient) ListTools(ctx context.Context) ([]mcp.Tool, error) { return c.listTools(ctx) }

func (c *StdioClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return c.callTool(ctx, name, args)
}

func (c *StdioClient) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	return c.listResources(ctx)
}

func (c *StdioClient) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	return c.readResource(ctx, uri)
}

func (c *StdioClient) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	return c.listPrompts(ctx)
}

func (c *StdioClient) GetPrompt(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error) {
	return c.getPrompt(ctx, name, args)
}

func (c *StdioClient) Ping(ctx context.Context) error { return c.ping(ctx) }

// GetStderr exposes the subprocess's stderr stream, for diagnostics when a
// child exits unexpectedly.
func (c *StdioClient) GetStderr() (io.Reader, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected || c.client == nil {
		return nil, false
	}
	if concreteClient, ok := c.client.(*client.Client); ok {
		return client.GetStderr(concreteClient)
	}
	return nil, false
}
