package oauthclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"mcpaggregator/pkg/logging"
)

// DefaultMetadataCacheTTL bounds how long a discovered issuer's endpoints
// are trusted before a fresh fetch is attempted.
const DefaultMetadataCacheTTL = 30 * time.Minute

// Metadata is the subset of RFC 8414 authorization server metadata (or its
// OpenID Connect discovery-document equivalent) this client needs.
type Metadata struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
}

type metadataCacheEntry struct {
	metadata  Metadata
	fetchedAt time.Time
}

// Discoverer fetches and caches an issuer's OAuth endpoints, trying RFC 8414
// first and falling back to OpenID Connect discovery, then to the
// conventional /authorize and /token paths if both fail.
type Discoverer struct {
	httpClient *http.Client
	ttl        time.Duration

	mu    sync.RWMutex
	cache map[string]metadataCacheEntry

	group singleflight.Group
}

// NewDiscoverer creates a Discoverer with the default metadata cache TTL.
func NewDiscoverer() *Discoverer {
	return &Discoverer{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		ttl:        DefaultMetadataCacheTTL,
		cache:      make(map[string]metadataCacheEntry),
	}
}

// Discover resolves issuer's authorization and token endpoints.
func (d *Discoverer) Discover(ctx context.Context, issuer string) Metadata {
	issuer = strings.TrimSuffix(issuer, "/")

	if m, ok := d.cached(issuer); ok {
		return m
	}

	result, _, _ := d.group.Do(issuer, func() (interface{}, error) {
		if m, ok := d.cached(issuer); ok {
			return m, nil
		}
		m := d.fetch(ctx, issuer)
		d.mu.Lock()
		d.cache[issuer] = metadataCacheEntry{metadata: m, fetchedAt: time.Now()}
		d.mu.Unlock()
		return m, nil
	})

	return result.(Metadata)
}

func (d *Discoverer) cached(issuer string) (Metadata, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entry, ok := d.cache[issuer]
	if !ok || time.Since(entry.fetchedAt) >= d.ttl {
		return Metadata{}, false
	}
	return entry.metadata, true
}

func (d *Discoverer) fetch(ctx context.Context, issuer string) Metadata {
	if m, err := d.fetchWellKnown(ctx, issuer+"/.well-known/oauth-authorization-server"); err == nil {
		return m
	}
	if m, err := d.fetchWellKnown(ctx, issuer+"/.well-known/openid-configuration"); err == nil {
		return m
	}
	logging.Debug("oauthclient", "metadata discovery failed for %s, falling back to conventional endpoints", issuer)
	return Metadata{
		AuthorizationEndpoint: issuer + "/authorize",
		TokenEndpoint:         issuer + "/token",
	}
}

func (d *Discoverer) fetchWellKnown(ctx context.Context, url string) (Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Metadata{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return Metadata{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Metadata{}, fmt.Errorf("metadata request to %s failed with status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Metadata{}, err
	}

	var m Metadata
	if err := json.Unmarshal(body, &m); err != nil {
		return Metadata{}, fmt.Errorf("parsing metadata from %s: %w", url, err)
	}
	if m.AuthorizationEndpoint == "" || m.TokenEndpoint == "" {
		return Metadata{}, fmt.Errorf("metadata from %s missing required endpoints", url)
	}
	return m, nil
}
