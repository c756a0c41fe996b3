package httpclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/MacJediWizard/backupctl/internal/config"
	"golang.org/x/net/proxy"
)

// bypassList is a parsed no_proxy value. Entries match the host itself and
// any of its subdomains; "*" matches everything.
type bypassList struct {
	all     bool
	domains []string
}

func parseBypass(noProxy string) bypassList {
	var b bypassList
	for _, entry := range strings.Split(noProxy, ",") {
		entry = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(entry)), ".")
		switch entry {
		case "":
		case "*":
			b.all = true
		default:
			b.domains = append(b.domains, entry)
		}
	}
	return b
}

func (b bypassList) match(hostport string) bool {
	if b.all {
		return true
	}
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		host = hostport
	}
	host = strings.ToLower(host)
	for _, d := range b.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// proxyRoute picks the HTTP(S) proxy for a request.
type proxyRoute struct {
	http   *url.URL
	https  *url.URL
	bypass bypassList
}

func newProxyRoute(cfg *config.ProxyConfig, bypass bypassList) (*proxyRoute, error) {
	r := &proxyRoute{bypass: bypass}
	var err error
	if cfg.HTTPProxy != "" {
		if r.http, err = url.Parse(cfg.HTTPProxy); err != nil {
			return nil, fmt.Errorf("parse HTTP proxy URL: %w", err)
		}
	}
	if cfg.HTTPSProxy != "" {
		if r.https, err = url.Parse(cfg.HTTPSProxy); err != nil {
			return nil, fmt.Errorf("parse HTTPS proxy URL: %w", err)
		}
	}
	return r, nil
}

// proxy has the signature of http.Transport.Proxy. A nil URL means direct.
func (r *proxyRoute) proxy(req *http.Request) (*url.URL, error) {
	if r.bypass.match(req.URL.Host) {
		return nil, nil
	}
	if req.URL.Scheme == "https" && r.https != nil {
		return r.https, nil
	}
	return r.http, nil
}

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// socksDialer tunnels connections through a SOCKS5 proxy, dialing bypassed
// hosts directly.
func socksDialer(rawURL string, direct *net.Dialer, bypass bypassList) (dialFunc, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse SOCKS5 proxy URL: %w", err)
	}

	var auth *proxy.Auth
	if u.User != nil {
		password, _ := u.User.Password()
		auth = &proxy.Auth{User: u.User.Username(), Password: password}
	}

	socks, err := proxy.SOCKS5("tcp", u.Host, auth, direct)
	if err != nil {
		return nil, fmt.Errorf("create SOCKS5 dialer: %w", err)
	}

	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if bypass.match(addr) {
			return direct.DialContext(ctx, network, addr)
		}
		if cd, ok := socks.(proxy.ContextDialer); ok {
			return cd.DialContext(ctx, network, addr)
		}
		return socks.Dial(network, addr)
	}, nil
}

// ProxyInfo describes the configured proxy with credentials masked.
func ProxyInfo(cfg *config.ProxyConfig) string {
	if !cfg.HasProxy() {
		return "No proxy configured"
	}

	var parts []string
	add := func(label, value string, mask bool) {
		if value == "" {
			return
		}
		if mask {
			value = maskProxyURL(value)
		}
		parts = append(parts, label+": "+value)
	}
	add("SOCKS5", cfg.SOCKS5Proxy, true)
	add("HTTP", cfg.HTTPProxy, true)
	add("HTTPS", cfg.HTTPSProxy, true)
	add("NoProxy", cfg.NoProxy, false)
	return strings.Join(parts, ", ")
}

// invalidProxyURL stands in for a proxy URL that does not parse, since its
// credentials cannot be located to mask them.
const invalidProxyURL = "<invalid URL>"

func maskProxyURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return invalidProxyURL
	}
	if _, hasPass := u.User.Password(); hasPass {
		u.User = url.UserPassword(u.User.Username(), "****")
	}
	return u.String()
}
