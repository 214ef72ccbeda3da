package aurora

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"
)

var (
	ErrNotConnected = errors.New("aurora: not connected")
	ErrShortRead    = errors.New("aurora: short read")
	ErrTimeout      = errors.New("aurora: timeout")
)

// ConnectError is returned when the TCP connection cannot be established.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("aurora: connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// IoError is returned when a request/response exchange fails mid-flight.
// The connection is closed before an IoError is returned.
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("aurora: %s: %v", e.Op, e.Err)
}

func (e *IoError) Unwrap() error {
	return e.Err
}

// Conn is a single half-duplex TCP connection to an inverter. Exchanges are
// serialized: the protocol has no request ids, so only one may be in flight.
type Conn struct {
	addr    string
	timeout time.Duration

	mu   sync.Mutex
	conn net.Conn
}

// Dial connects to host:port. timeout bounds the dial and every later exchange.
func Dial(ctx context.Context, host string, port uint, timeout time.Duration) (*Conn, error) {
	addr := net.JoinHostPort(host, strconv.FormatUint(uint64(port), 10))
	if timeout <= 0 {
		return nil, &ConnectError{Addr: addr, Err: errors.New("timeout must be > 0")}
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: err}
	}

	return &Conn{
		addr:    addr,
		timeout: timeout,
		conn:    conn,
	}, nil
}

func (c *Conn) Addr() string {
	if c == nil {
		return ""
	}
	return c.addr
}

func (c *Conn) Connected() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Exchange writes one request frame and blocks for one full response frame.
// Any failure closes the connection.
func (c *Conn) Exchange(ctx context.Context, req []byte) ([]byte, error) {
	if c == nil {
		return nil, ErrNotConnected
	}
	if len(req) != FrameSize {
		return nil, fmt.Errorf("%w: request of %d bytes", ErrInvalidLength, len(req))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetDeadline(deadline)

	// unblock a pending read/write as soon as ctx is cancelled
	conn := c.conn
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.Write(req); err != nil {
		return nil, c.fail(ctx, "write", err)
	}

	resp := make([]byte, FrameSize)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return nil, c.fail(ctx, "read", err)
	}

	return resp, nil
}

// Close is idempotent and safe on a nil or never-connected Conn.
func (c *Conn) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Conn) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Conn) fail(ctx context.Context, op string, err error) error {
	_ = c.closeLocked()

	switch {
	case ctx.Err() != nil:
		return &IoError{Op: op, Err: ctx.Err()}
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return &IoError{Op: op, Err: fmt.Errorf("%w: %v", ErrShortRead, err)}
	case errors.Is(err, os.ErrDeadlineExceeded):
		return &IoError{Op: op, Err: fmt.Errorf("%w: %v", ErrTimeout, err)}
	default:
		return &IoError{Op: op, Err: err}
	}
}
