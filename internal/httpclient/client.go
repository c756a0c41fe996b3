// Package httpclient builds the HTTP clients backupctl uses to reach the backup server.
package httpclient

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/MacJediWizard/backupctl/internal/config"
)

// DefaultTimeout applies when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

const dialTimeout = 30 * time.Second

// Options configures the HTTP client.
type Options struct {
	Timeout time.Duration
	// Proxy may be nil for direct connections.
	Proxy *config.ProxyConfig
	// UserAgent is sent on every request that does not set its own.
	UserAgent string
}

// New creates an HTTP client for the backup server, routed through the
// configured proxy if any.
func New(opts Options) (*http.Client, error) {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	transport, err := newTransport(opts.Proxy)
	if err != nil {
		return nil, err
	}

	var rt http.RoundTripper = transport
	if opts.UserAgent != "" {
		rt = &userAgentTransport{next: transport, userAgent: opts.UserAgent}
	}

	return &http.Client{Timeout: opts.Timeout, Transport: rt}, nil
}

// NewWithConfig creates an HTTP client from the CLI configuration.
func NewWithConfig(cfg *config.AgentConfig, userAgent string) (*http.Client, error) {
	opts := Options{UserAgent: userAgent}
	if cfg != nil {
		opts.Timeout = cfg.Timeout
		opts.Proxy = cfg.GetProxyConfig()
	}
	return New(opts)
}

func newTransport(cfg *config.ProxyConfig) (*http.Transport, error) {
	direct := &net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		DialContext:           direct.DialContext,
		MaxIdleConns:          4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if !cfg.HasProxy() {
		return transport, nil
	}

	bypass := parseBypass(cfg.NoProxy)
	if cfg.SOCKS5Proxy != "" {
		dial, err := socksDialer(cfg.SOCKS5Proxy, direct, bypass)
		if err != nil {
			return nil, fmt.Errorf("configure proxy: %w", err)
		}
		transport.DialContext = dial
		return transport, nil
	}

	route, err := newProxyRoute(cfg, bypass)
	if err != nil {
		return nil, fmt.Errorf("configure proxy: %w", err)
	}
	transport.Proxy = route.proxy
	return transport, nil
}

type userAgentTransport struct {
	next      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.next.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.next.RoundTrip(clone)
}
