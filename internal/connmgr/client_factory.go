package connmgr

import (
	"mcpaggregator/internal/config"
	"mcpaggregator/internal/mcpserver"
)

// clientFactory builds an MCPClient for an upstream: once per createOne call
// for a stdio upstream (reused across its retries), and on every connect
// attempt for HTTP-based upstreams. It is a field on Manager (rather than a
// package function) so tests can substitute a fake that never touches the
// network.
type clientFactory func(cfg config.UpstreamConfig, tokenProvider mcpserver.TokenProvider) (mcpserver.MCPClient, error)

func defaultClientFactory(cfg config.UpstreamConfig, tokenProvider mcpserver.TokenProvider) (mcpserver.MCPClient, error) {
	clientCfg, err := mcpserver.ClientConfigFromUpstream(cfg, tokenProvider)
	if err != nil {
		return nil, err
	}
	return mcpserver.NewMCPClientFromConfig(cfg.Type, clientCfg)
}
