package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// State is the relay lifecycle state.
type State int32

const (
	StateConnecting State = iota
	StateRelaying
	StateClosing
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateRelaying:
		return "relaying"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is the subset of *websocket.Conn the relay needs from either socket.
// Tests substitute an in-process pipe.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

var _ Conn = (*websocket.Conn)(nil)

// socket serializes writes to a connection. The upstream socket is written
// by both forwarding loops (forwarded traffic and injected tool outputs),
// and gorilla connections allow only one concurrent writer.
type socket struct {
	mu   sync.Mutex
	conn Conn
}

func (s *socket) write(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}

func (s *socket) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.write(websocket.TextMessage, data)
}

func (s *socket) close() error {
	return s.conn.Close()
}

// Relay is the duplex forwarding engine connecting one client session to
// one upstream session.
type Relay struct {
	session  *Session
	logger   *slog.Logger
	client   *socket
	upstream *socket

	// dial establishes the upstream connection; replaced in tests.
	dial func(ctx context.Context) (Conn, error)

	state atomic.Int32
	done  chan struct{}
}

// New creates a relay for an already-established client connection. The
// upstream connection is dialed when Run starts.
func New(session *Session, clientConn Conn) *Relay {
	r := &Relay{
		session: session,
		logger:  session.logger,
		client:  &socket{conn: clientConn},
		done:    make(chan struct{}),
	}
	r.dial = func(ctx context.Context) (Conn, error) {
		return dialUpstream(ctx, session)
	}
	return r
}

// State returns the current lifecycle state.
func (r *Relay) State() State {
	return State(r.state.Load())
}

func (r *Relay) setState(s State) {
	r.state.Store(int32(s))
}

// Run connects upstream and drives both forwarding loops until either side
// closes. It always closes both connections before returning. Errors are
// fatal to this session only; callers hosting multiple sessions log them
// and move on.
func (r *Relay) Run(ctx context.Context) error {
	r.setState(StateConnecting)

	up, err := r.dial(ctx)
	if err != nil {
		r.setState(StateClosed)
		r.client.close()
		return err
	}
	r.upstream = &socket{conn: up}
	r.setState(StateRelaying)
	r.logger.Info("relay session started")

	go r.pingClient()

	errc := make(chan error, 2)
	go func() { errc <- r.guard("client_to_upstream", r.clientToUpstream) }()
	go func() { errc <- r.guard("upstream_to_client", func() error { return r.upstreamToClient(ctx) }) }()

	// First loop exit triggers teardown of both sides; the peer loop then
	// unblocks with a close error we discard.
	err = <-errc
	r.setState(StateClosing)
	close(r.done)
	r.client.close()
	r.upstream.close()
	<-errc
	r.setState(StateClosed)

	if err != nil {
		r.logger.Warn("relay session ended", "err", err)
	} else {
		r.logger.Info("relay session ended")
	}
	return err
}

// guard contains a forwarding loop failure to this session: a panic in a
// tool handler or codec must never crash a process hosting other sessions.
func (r *Relay) guard(name string, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("forwarding loop panic", "loop", name, "panic", p)
			err = fmt.Errorf("relay: %s: panic: %v", name, p)
		}
	}()
	return fn()
}

// clientToUpstream reads client events, applies the outbound rewrite, and
// forwards the result upstream. The client side enforces the idle timeout;
// pongs from the keepalive pings extend it.
func (r *Relay) clientToUpstream() error {
	conn := r.client.conn
	idle := r.session.idleTimeout
	conn.SetReadDeadline(time.Now().Add(idle))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(idle))
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return normalizeCloseError(err)
		}
		conn.SetReadDeadline(time.Now().Add(idle))

		if messageType != websocket.TextMessage {
			// Opaque binary payload, forwarded verbatim.
			if err := r.upstream.write(messageType, data); err != nil {
				return err
			}
			continue
		}
		if out := r.rewriteOutbound(data); out != nil {
			if err := r.upstream.write(websocket.TextMessage, out); err != nil {
				return err
			}
		}
	}
}

// upstreamToClient reads upstream events, applies the inbound intercept
// (which may itself write tool outputs upstream), and forwards the result
// to the client. Tool calls run inline on this loop, so at most one is in
// flight per session and call N's output is injected before any event of
// call N+1 is processed.
func (r *Relay) upstreamToClient(ctx context.Context) error {
	for {
		messageType, data, err := r.upstream.conn.ReadMessage()
		if err != nil {
			return normalizeCloseError(err)
		}

		if messageType != websocket.TextMessage {
			r.safeSend(messageType, data)
			continue
		}
		forward, err := r.interceptInbound(ctx, data)
		if err != nil {
			return err
		}
		if forward != nil {
			r.safeSendText(forward)
		}
	}
}

// pingClient sends periodic keepalive pings on the client socket until the
// relay shuts down.
func (r *Relay) pingClient() {
	ticker := time.NewTicker(r.session.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(10 * time.Second)
			if err := r.client.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// safeSend delivers to the client best-effort. A closed client or failed
// send is not an error: the relay keeps servicing the upstream side.
func (r *Relay) safeSend(messageType int, data []byte) {
	if err := r.client.write(messageType, data); err != nil {
		r.logger.Debug("client send skipped", "err", err)
	}
}

func (r *Relay) safeSendText(data []byte) {
	r.safeSend(websocket.TextMessage, data)
}

// normalizeCloseError maps orderly socket shutdown to nil so that a normal
// disconnect does not surface as a session failure.
func normalizeCloseError(err error) error {
	if err == nil {
		return nil
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) {
		return nil
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// generateEventID returns a unique ID for synthetic injected events.
func generateEventID() string {
	return "evt_" + uuid.New().String()[:12]
}

// truncateForLog caps a string destined for a log record.
func truncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
