package httpclient

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// Supported proxy schemes, validated during URL parsing.
var supportedProxySchemes = map[string]bool{
	"http":    true,
	"https":   true,
	"socks4":  true,
	"socks5":  true,
	"socks5h": true, // SOCKS5 with remote DNS resolution
}

// ProxyConfig holds parsed proxy configuration.
type ProxyConfig struct {
	URL         *url.URL
	Scheme      string
	Host        string
	Port        string
	Username    string
	Password    string
	IsSOCKS     bool
	IsDNSRemote bool // socks5h resolves DNS on the proxy side
}

// ParseProxyURL validates and parses a proxy URL string. A URL without a
// scheme defaults to http://. Unsupported schemes and missing hosts are
// errors.
func ParseProxyURL(proxyURL string) (*ProxyConfig, error) {
	if proxyURL == "" {
		return nil, nil
	}

	if !strings.Contains(proxyURL, "://") {
		proxyURL = "http://" + proxyURL
	}

	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !supportedProxySchemes[scheme] {
		return nil, fmt.Errorf("unsupported proxy scheme %q, supported: http, https, socks4, socks5, socks5h", scheme)
	}

	host := parsed.Hostname()
	port := parsed.Port()
	if host == "" {
		return nil, fmt.Errorf("proxy URL missing host")
	}
	if port == "" {
		switch scheme {
		case "http":
			port = "8080"
		case "https":
			port = "8443"
		case "socks4", "socks5", "socks5h":
			port = "1080"
		}
	}

	config := &ProxyConfig{
		URL:         parsed,
		Scheme:      scheme,
		Host:        host,
		Port:        port,
		IsSOCKS:     scheme == "socks4" || scheme == "socks5" || scheme == "socks5h",
		IsDNSRemote: scheme == "socks5h",
	}

	if parsed.User != nil {
		config.Username = parsed.User.Username()
		config.Password, _ = parsed.User.Password()
	}

	return config, nil
}

// Address returns the proxy address in host:port format.
func (p *ProxyConfig) Address() string {
	if p == nil {
		return ""
	}
	return net.JoinHostPort(p.Host, p.Port)
}

// ContextDialer is an interface for dialers that support context.
type ContextDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// timeoutDialer wraps a proxy.Dialer with timeout support, since SOCKS
// dialers don't natively support timeouts.
type timeoutDialer struct {
	dialer  proxy.Dialer
	timeout time.Duration
}

// DialContext implements ContextDialer with timeout support.
func (t *timeoutDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	connCh := make(chan net.Conn, 1)
	errCh := make(chan error, 1)

	go func() {
		var conn net.Conn
		var err error

		if ctxDialer, ok := t.dialer.(proxy.ContextDialer); ok {
			conn, err = ctxDialer.DialContext(ctx, network, address)
		} else {
			conn, err = t.dialer.Dial(network, address)
		}

		if err != nil {
			errCh <- err
			return
		}

		// If the context already expired, close the conn to prevent a leak.
		select {
		case connCh <- conn:
		case <-ctx.Done():
			conn.Close()
		}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("proxy dial timeout: %w", ctx.Err())
	case conn := <-connCh:
		return conn, nil
	case err := <-errCh:
		return nil, err
	}
}

// CreateSOCKSDialer creates a SOCKS dialer from ProxyConfig. The returned
// dialer can be used as a transport's DialContext.
func CreateSOCKSDialer(config *ProxyConfig, timeout time.Duration) (ContextDialer, error) {
	if config == nil {
		return nil, fmt.Errorf("proxy config is nil")
	}

	// socks5h uses the socks5 wire protocol; passing hostnames through
	// makes the proxy do the resolution.
	dialerScheme := config.Scheme
	if dialerScheme == "socks5h" {
		dialerScheme = "socks5"
	}

	proxyURL := &url.URL{
		Scheme: dialerScheme,
		Host:   config.Address(),
	}
	if config.Username != "" {
		proxyURL.User = url.UserPassword(config.Username, config.Password)
	}

	dialer, err := proxy.FromURL(proxyURL, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS dialer: %w", err)
	}

	return &timeoutDialer{dialer: dialer, timeout: timeout}, nil
}
