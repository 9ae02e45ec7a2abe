package config

import "testing"

func TestValidateExclusiveTransport(t *testing.T) {
	cfg := Config{Upstreams: map[string]UpstreamConfig{
		"bad": {
			Type:           TransportStdio,
			Local:          &LocalTransportConfig{Command: []string{"echo"}},
			StreamableHTTP: &HTTPTransportConfig{URL: "http://x"},
		},
	}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for two transport blocks set")
	}
}

func TestValidateRequiresMatchingBlock(t *testing.T) {
	cfg := Config{Upstreams: map[string]UpstreamConfig{
		"http-no-block": {Type: TransportStreamableHTTP},
	}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for missing streamableHttp block")
	}
}

func TestValidateOK(t *testing.T) {
	cfg := Config{Upstreams: map[string]UpstreamConfig{
		"fs": {
			Type:  TransportStdio,
			Local: &LocalTransportConfig{Command: []string{"mcp-server-fs"}},
		},
		"remote": {
			Type:           TransportStreamableHTTP,
			StreamableHTTP: &HTTPTransportConfig{URL: "https://example.com/mcp"},
		},
	}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsWhitespaceName(t *testing.T) {
	cfg := Config{Upstreams: map[string]UpstreamConfig{
		"bad name": {
			Type:  TransportStdio,
			Local: &LocalTransportConfig{Command: []string{"x"}},
		},
	}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for whitespace in name")
	}
}
