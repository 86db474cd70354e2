// Package proxy implements a demonstration MITM proxy that consults a
// profile.Registry to decide whether to let an intercepted request
// through. It never rewrites response bodies, injects a content script,
// or applies CSP; the engine's job here ends at "blocked or not".
package proxy

import (
	"fmt"
	"time"

	"github.com/AdguardTeam/golibs/log"
	"github.com/AdguardTeam/gomitmproxy"
	"github.com/adguard-community/cfblock/profile"
)

const sessionPropKey = "session"
const requestBlockedKey = "blocked"

// Config contains the MITM proxy configuration.
type Config struct {
	// ProxyConfig is the underlying gomitmproxy configuration.
	ProxyConfig gomitmproxy.Config

	// Registry supplies the filter lists consulted for every request.
	Registry *profile.Registry
}

// String renders a short human-readable description of the configuration
// for startup logging.
func (c *Config) String() string {
	str := fmt.Sprintf("Listen addr: %s\n", c.ProxyConfig.ListenAddr.String())
	str += fmt.Sprintf("MITM status: %v\n", c.ProxyConfig.MITMConfig != nil)
	str += fmt.Sprintf("Run as HTTPS proxy: %v\n", c.ProxyConfig.TLSConfig != nil)

	if c.ProxyConfig.Username != "" {
		str += fmt.Sprintf("Proxy auth: %s/%s\n", c.ProxyConfig.Username, c.ProxyConfig.Password)
	}

	profiles := c.Registry.List()
	str += fmt.Sprintf("Filter lists: %d\n", len(profiles))
	for _, p := range profiles {
		str += fmt.Sprintf("  %s: %s\n", p.Name, p.Path)
	}

	return str
}

// Server contains the current server state.
type Server struct {
	proxyServer *gomitmproxy.Proxy
	createdAt   time.Time

	Config
}

// NewServer creates a new instance of the MITM server.
func NewServer(config Config) (*Server, error) {
	log.Info("Initializing the proxy server:\n%s", config.String())

	s := &Server{
		createdAt: time.Now(),
		Config:    config,
	}

	s.ProxyConfig.OnRequest = s.onRequest
	s.ProxyConfig.OnResponse = s.onResponse
	s.proxyServer = gomitmproxy.NewProxy(s.ProxyConfig)

	return s, nil
}

// Start starts the proxy server.
func (s *Server) Start() error {
	return s.proxyServer.Start()
}

// Close stops the proxy server.
func (s *Server) Close() {
	s.proxyServer.Close()
}
