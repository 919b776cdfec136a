// Package transport adapts a connected byte socket to the pull-style
// surface the stream reader consumes: non-blocking reads plus an
// availability query.
package transport

import (
	"bufio"
	"io"
	"net"
	"time"
)

const defaultProbeTimeout = 5 * time.Millisecond

// Transport is the socket surface consumed by the stream reader. Reads
// never block beyond a short availability probe; Available reports how
// many bytes a Read would return right now.
type Transport interface {
	Available() int
	Read(p []byte) (int, error)
	Connected() bool
	BufferSize() int
	Close() error
}

// Conn wraps an established net.Conn. The bufio.Reader passed to NewConn
// may already hold body bytes read past the response headers; they are
// drained before the socket is touched again.
//
// Conn is not safe for concurrent use.
type Conn struct {
	nc        net.Conn
	br        *bufio.Reader
	connected bool
	closed    bool
	probe     time.Duration
}

// NewConn returns a Conn over an established connection. br may be nil,
// in which case a fresh buffered reader is used.
func NewConn(nc net.Conn, br *bufio.Reader) *Conn {
	if br == nil {
		br = bufio.NewReader(nc)
	}

	return &Conn{nc: nc, br: br, connected: true, probe: defaultProbeTimeout}
}

// Available reports how many bytes can be read without blocking. When
// the buffer is empty a deadline-bounded probe read harvests bytes the
// kernel may already hold.
func (c *Conn) Available() int {
	if !c.connected {
		return 0
	}

	if c.br.Buffered() == 0 {
		c.fill()
	}

	return c.br.Buffered()
}

// Read drains buffered bytes, probing the connection first when the
// buffer is empty. A (0, nil) return means no bytes were available; EOF
// is only returned once the connection is gone.
func (c *Conn) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if !c.connected {
		return 0, io.EOF
	}

	if c.br.Buffered() == 0 {
		c.fill()
		if c.br.Buffered() == 0 {
			if !c.connected {
				return 0, io.EOF
			}
			return 0, nil
		}
	}

	if n := c.br.Buffered(); n < len(p) {
		p = p[:n]
	}

	return c.br.Read(p)
}

// Connected reports whether the connection is still believed usable. It
// latches false once a probe sees EOF or any non-timeout error, and on
// Close.
func (c *Conn) Connected() bool { return c.connected }

// BufferSize returns the size of the read buffer. Waiting for more than
// this many bytes to accumulate can never succeed.
func (c *Conn) BufferSize() int { return c.br.Size() }

// Close tears the connection down. Safe to call more than once.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.connected = false

	return c.nc.Close()
}

// fill runs a single read bounded by the probe timeout so data sitting
// in the kernel buffer becomes visible to Buffered().
func (c *Conn) fill() {
	if err := c.nc.SetReadDeadline(time.Now().Add(c.probe)); err != nil {
		c.connected = false
		return
	}

	_, err := c.br.Peek(1)

	// Clear the deadline so it cannot leak into later calls.
	_ = c.nc.SetReadDeadline(time.Time{})

	if err == nil {
		return
	}
	if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
		return
	}

	c.connected = false
}
