package relay

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// pipeMsg is one frame in flight on a test pipe.
type pipeMsg struct {
	messageType int
	data        []byte
}

// pipeConn is an in-process Conn for tests, connecting two endpoints with
// buffered channels the way chat hardware tests pipe their ports.
type pipeConn struct {
	recv      chan pipeMsg
	peer      *pipeConn
	closed    chan struct{}
	closeOnce sync.Once
	pings     atomic.Int32
}

// newConnPair returns two connected pipe endpoints. A message written on
// one endpoint is read from the other.
func newConnPair() (*pipeConn, *pipeConn) {
	a := &pipeConn{recv: make(chan pipeMsg, 64), closed: make(chan struct{})}
	b := &pipeConn{recv: make(chan pipeMsg, 64), closed: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

func (c *pipeConn) ReadMessage() (int, []byte, error) {
	// Drain buffered frames before reporting closure so that messages sent
	// just before a close are still observed.
	select {
	case m := <-c.recv:
		return m.messageType, m.data, nil
	default:
	}
	select {
	case m := <-c.recv:
		return m.messageType, m.data, nil
	case <-c.closed:
		return 0, nil, net.ErrClosed
	case <-c.peer.closed:
		return 0, nil, io.EOF
	}
}

func (c *pipeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	case <-c.peer.closed:
		return net.ErrClosed
	default:
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	select {
	case c.peer.recv <- pipeMsg{messageType: messageType, data: cp}:
		return nil
	case <-c.closed:
		return net.ErrClosed
	case <-c.peer.closed:
		return net.ErrClosed
	}
}

func (c *pipeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	case <-c.peer.closed:
		return net.ErrClosed
	default:
		c.pings.Add(1)
		return nil
	}
}

func (c *pipeConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *pipeConn) SetPongHandler(func(string) error)  {}

func (c *pipeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// tryRead returns the next frame or ok=false if none arrives in time.
func (c *pipeConn) tryRead(timeout time.Duration) (pipeMsg, bool) {
	select {
	case m := <-c.recv:
		return m, true
	case <-time.After(timeout):
		return pipeMsg{}, false
	}
}

var _ Conn = (*pipeConn)(nil)
