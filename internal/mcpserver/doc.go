// Package mcpserver implements the upstream-facing MCP client transports:
// stdio (child process), SSE, and streamable HTTP, including a variant of
// the streamable-HTTP client that injects a dynamically-refreshed bearer
// token per request. All three satisfy the same MCPClient interface so the
// connection manager can treat every upstream uniformly regardless of
// transport.
package mcpserver
