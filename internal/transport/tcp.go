// Package transport implements the LSV2 byte stream over TCP.
package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// headerSize is the length prefix plus the four byte telegram code.
const headerSize = 8

var (
	// ErrNotConnected is returned when no connection is open.
	ErrNotConnected = errors.New("not connected")

	// ErrHostResolution is returned when the host name cannot be resolved.
	ErrHostResolution = errors.New("host resolution failed")

	// ErrTelegramTooLarge is returned when an encoded telegram does not fit
	// the current buffer size.
	ErrTelegramTooLarge = errors.New("telegram exceeds buffer size")

	// ErrInvalidFrame is returned when a received header declares an
	// impossible payload length.
	ErrInvalidFrame = errors.New("invalid frame")
)

// TCPTransport implements a TCP transport for LSV2.
type TCPTransport struct {
	addr    string
	timeout time.Duration

	mu         sync.Mutex
	conn       net.Conn
	bufferSize int
	resolver   *net.Resolver
}

// NewTCPTransport creates a new TCP transport.
func NewTCPTransport(addr string, timeout time.Duration, bufferSize int) *TCPTransport {
	return &TCPTransport{
		addr:       addr,
		timeout:    timeout,
		bufferSize: bufferSize,
		resolver:   net.DefaultResolver,
	}
}

// Connect resolves the host and establishes a TCP connection.
func (t *TCPTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}

	host, port, err := net.SplitHostPort(t.addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHostResolution, err)
	}

	// Resolve before dialing so a bad name fails without touching a socket.
	addrs, err := t.resolver.LookupHost(ctx, host)
	if err != nil || len(addrs) == 0 {
		return fmt.Errorf("%w: %s: %v", ErrHostResolution, host, err)
	}

	dialer := &net.Dialer{
		Timeout:   t.timeout,
		KeepAlive: 30 * time.Second,
	}

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(addrs[0], port))
	if err != nil {
		return fmt.Errorf("tcp connect: %w", err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetKeepAlive(true)
		tcpConn.SetKeepAlivePeriod(30 * time.Second)
		tcpConn.SetNoDelay(true)
	}

	t.conn = conn
	return nil
}

// Close closes the TCP connection.
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}

	err := t.conn.Close()
	t.conn = nil
	return err
}

// IsConnected returns true if the transport is connected.
func (t *TCPTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// BufferSize returns the current buffer size.
func (t *TCPTransport) BufferSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bufferSize
}

// SetBufferSize changes the buffer size used to bound telegrams.
func (t *TCPTransport) SetBufferSize(n int) {
	t.mu.Lock()
	t.bufferSize = n
	t.mu.Unlock()
}

// Write sends one encoded telegram.
func (t *TCPTransport) Write(ctx context.Context, frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return ErrNotConnected
	}
	if len(frame) >= t.bufferSize {
		return fmt.Errorf("%w: %d >= %d", ErrTelegramTooLarge, len(frame), t.bufferSize)
	}

	if err := t.setDeadlineLocked(ctx); err != nil {
		return err
	}

	written := 0
	for written < len(frame) {
		n, err := t.conn.Write(frame[written:])
		if err != nil {
			t.closeConnLocked()
			return fmt.Errorf("write: %w", err)
		}
		written += n
	}
	return nil
}

// Read receives one telegram and returns header and payload as one slice.
func (t *TCPTransport) Read(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil, ErrNotConnected
	}

	if err := t.setDeadlineLocked(ctx); err != nil {
		return nil, err
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(t.conn, header); err != nil {
		t.closeConnLocked()
		return nil, fmt.Errorf("read header: %w", err)
	}

	length := binary.BigEndian.Uint32(header[0:4])
	if int64(length) > int64(t.bufferSize) {
		t.closeConnLocked()
		return nil, fmt.Errorf("%w: declared length %d exceeds buffer size %d",
			ErrInvalidFrame, length, t.bufferSize)
	}

	frame := make([]byte, headerSize+int(length))
	copy(frame, header)
	if length > 0 {
		// A single read may return less than the declared body.
		if _, err := io.ReadFull(t.conn, frame[headerSize:]); err != nil {
			t.closeConnLocked()
			return nil, fmt.Errorf("read payload: %w", err)
		}
	}

	return frame, nil
}

// setDeadlineLocked applies the context deadline or the default timeout.
// Must be called with mu held.
func (t *TCPTransport) setDeadlineLocked(ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(t.timeout)
	}
	if err := t.conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}
	return nil
}

// closeConnLocked closes the connection without acquiring the lock.
// Must be called with mu held.
func (t *TCPTransport) closeConnLocked() {
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
}
