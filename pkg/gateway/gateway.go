// Package gateway is the HTTP shell around the realtime relay: the
// WebSocket endpoint clients connect to, a one-shot query endpoint, health
// reporting, and static frontend serving.
package gateway

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/voicebridge/voicerag/pkg/rag"
	"github.com/voicebridge/voicerag/pkg/relay"
)

// Options configures New.
type Options struct {
	// Relay is the per-connection session template. Its Tools field is
	// overwritten with the shared registry.
	Relay relay.SessionConfig

	// Tools is the registry shared read-only by all relay sessions.
	Tools *relay.Registry

	// Index backs the /query endpoint. Nil disables it.
	Index *rag.Index

	// Answerer composes grounded answers for /query. Nil degrades /query to
	// returning the top snippet verbatim.
	Answerer Answerer

	// StaticDir serves the frontend bundle. Empty disables static serving.
	StaticDir string

	// Logger receives gateway logs. Nil means slog.Default().
	Logger *slog.Logger
}

// Gateway hosts the relay over HTTP. All state is explicit fields; two
// gateways in one process never share anything.
type Gateway struct {
	relayCfg  relay.SessionConfig
	tools     *relay.Registry
	index     *rag.Index
	answerer  Answerer
	staticDir string
	logger    *slog.Logger
	upgrader  websocket.Upgrader
}

// New builds a gateway.
func New(opts Options) *Gateway {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tools := opts.Tools
	if tools == nil {
		tools = relay.NewRegistry()
	}
	return &Gateway{
		relayCfg:  opts.Relay,
		tools:     tools,
		index:     opts.Index,
		answerer:  opts.Answerer,
		staticDir: opts.StaticDir,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8 << 10,
			WriteBufferSize: 8 << 10,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// HandleRealtime upgrades the request and runs a relay session on it. Each
// connection gets its own session; the tool registry is shared read-only. A
// failed session is logged, never fatal to the process.
func (g *Gateway) HandleRealtime(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	cfg := g.relayCfg
	cfg.Tools = g.tools
	cfg.Logger = g.logger.With("remote", r.RemoteAddr)
	session, err := relay.NewSession(&cfg)
	if err != nil {
		g.logger.Error("session setup failed", "err", err)
		conn.Close()
		return
	}

	if err := relay.New(session, conn).Run(r.Context()); err != nil {
		g.logger.Warn("relay session failed", "remote", r.RemoteAddr, "err", err)
	}
}
