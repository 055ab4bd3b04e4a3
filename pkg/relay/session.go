package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Defaults for session configuration.
const (
	// DefaultAPIVersion is the upstream realtime protocol version.
	DefaultAPIVersion = "2024-10-01-preview"

	// DefaultIdleTimeout closes the client connection after this much time
	// without traffic.
	DefaultIdleTimeout = 5 * time.Minute

	// DefaultPingInterval is the client-side keepalive ping period.
	DefaultPingInterval = 30 * time.Second

	// DefaultMaxToolOutput caps the serialized tool output injected
	// upstream; longer outputs are truncated.
	DefaultMaxToolOutput = 64 << 10
)

// TokenProvider returns a fresh bearer token for the upstream connection.
// Token refresh happens out-of-band; the provider is called once per dial.
type TokenProvider func(ctx context.Context) (string, error)

// SessionConfig configures a Session. Exactly one of APIKey or
// TokenProvider must be set.
type SessionConfig struct {
	// Endpoint is the upstream service base URL (http or https scheme).
	Endpoint string

	// Deployment identifies the model deployment at the endpoint.
	Deployment string

	// APIVersion selects the upstream protocol version.
	// Defaults to DefaultAPIVersion.
	APIVersion string

	// APIKey authenticates via a static key header.
	APIKey string

	// TokenProvider authenticates via a bearer token.
	TokenProvider TokenProvider

	// Instructions, when non-empty, replaces the instructions of every
	// session-configuration event the client sends. Empty leaves the
	// client's value untouched.
	Instructions string

	// Voice, when non-empty, replaces the voice of every
	// session-configuration event the client sends.
	Voice string

	// Tools is the registry advertised to the upstream model. Nil means an
	// empty registry.
	Tools *Registry

	// Logger receives session logs. Nil means slog.Default().
	Logger *slog.Logger

	// IdleTimeout, PingInterval and MaxToolOutput override the defaults
	// above when positive.
	IdleTimeout   time.Duration
	PingInterval  time.Duration
	MaxToolOutput int
}

// Session is the per-client-connection state: upstream identity,
// configuration overrides, the tool registry, and the most recent
// user-supplied text. It is owned by the Relay for that connection and
// destroyed when either socket closes.
type Session struct {
	endpoint      string
	deployment    string
	apiVersion    string
	apiKey        string
	tokenProvider TokenProvider
	instructions  string
	voice         string
	tools         *Registry
	logger        *slog.Logger
	idleTimeout   time.Duration
	pingInterval  time.Duration
	maxToolOutput int

	// lastUserUtterance is written by the client-to-upstream loop and read
	// by the upstream-to-client loop, which run in parallel.
	mu                sync.Mutex
	lastUserUtterance string
}

// NewSession validates the configuration and creates a Session.
func NewSession(cfg *SessionConfig) (*Session, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("relay: SessionConfig.Endpoint is required")
	}
	if cfg.Deployment == "" {
		return nil, errors.New("relay: SessionConfig.Deployment is required")
	}
	if (cfg.APIKey == "") == (cfg.TokenProvider == nil) {
		return nil, errors.New("relay: exactly one of APIKey or TokenProvider must be set")
	}

	s := &Session{
		endpoint:      cfg.Endpoint,
		deployment:    cfg.Deployment,
		apiVersion:    cfg.APIVersion,
		apiKey:        cfg.APIKey,
		tokenProvider: cfg.TokenProvider,
		instructions:  cfg.Instructions,
		voice:         cfg.Voice,
		tools:         cfg.Tools,
		logger:        cfg.Logger,
		idleTimeout:   cfg.IdleTimeout,
		pingInterval:  cfg.PingInterval,
		maxToolOutput: cfg.MaxToolOutput,
	}
	if s.apiVersion == "" {
		s.apiVersion = DefaultAPIVersion
	}
	if s.tools == nil {
		s.tools = NewRegistry()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.idleTimeout <= 0 {
		s.idleTimeout = DefaultIdleTimeout
	}
	if s.pingInterval <= 0 {
		s.pingInterval = DefaultPingInterval
	}
	if s.maxToolOutput <= 0 {
		s.maxToolOutput = DefaultMaxToolOutput
	}
	return s, nil
}

// Tools returns the session's tool registry.
func (s *Session) Tools() *Registry {
	return s.tools
}

// LastUserUtterance returns the most recent user-supplied text, or "".
func (s *Session) LastUserUtterance() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUserUtterance
}

func (s *Session) setLastUserUtterance(text string) {
	s.mu.Lock()
	s.lastUserUtterance = text
	s.mu.Unlock()
}
