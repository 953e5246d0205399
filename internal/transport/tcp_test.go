package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func listen(t *testing.T, serve func(net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}()
	return ln.Addr().String()
}

func frame(code string, payload []byte) []byte {
	buf := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(payload)))
	copy(buf[4:8], code)
	copy(buf[8:], payload)
	return buf
}

func TestTCPTransport_ReadSplitBody(t *testing.T) {
	body := []byte("0123456789abcdef")
	addr := listen(t, func(conn net.Conn) {
		out := frame("S_VR", body)
		// deliver in three pieces to force multiple reads
		conn.Write(out[:5])
		time.Sleep(10 * time.Millisecond)
		conn.Write(out[5:12])
		time.Sleep(10 * time.Millisecond)
		conn.Write(out[12:])
		io.Copy(io.Discard, conn)
	})

	tr := NewTCPTransport(addr, time.Second, 256)
	require.NoError(t, tr.Connect(context.Background()))
	defer tr.Close()

	got, err := tr.Read(context.Background())
	require.NoError(t, err)
	require.Equal(t, "S_VR", string(got[4:8]))
	require.Equal(t, body, got[8:])
}

func TestTCPTransport_WriteTooLarge(t *testing.T) {
	addr := listen(t, func(conn net.Conn) { io.Copy(io.Discard, conn) })

	tr := NewTCPTransport(addr, time.Second, 256)
	require.NoError(t, tr.Connect(context.Background()))
	defer tr.Close()

	err := tr.Write(context.Background(), make([]byte, 256))
	require.True(t, errors.Is(err, ErrTelegramTooLarge))

	require.NoError(t, tr.Write(context.Background(), make([]byte, 255)))
}

func TestTCPTransport_InvalidLength(t *testing.T) {
	addr := listen(t, func(conn net.Conn) {
		hdr := make([]byte, headerSize)
		binary.BigEndian.PutUint32(hdr, 1000)
		copy(hdr[4:], "S_FL")
		conn.Write(hdr)
		io.Copy(io.Discard, conn)
	})

	tr := NewTCPTransport(addr, time.Second, 256)
	require.NoError(t, tr.Connect(context.Background()))

	_, err := tr.Read(context.Background())
	require.True(t, errors.Is(err, ErrInvalidFrame))
	require.False(t, tr.IsConnected(), "malformed frame must drop the connection")
}

func TestTCPTransport_NotConnected(t *testing.T) {
	tr := NewTCPTransport("127.0.0.1:1", time.Second, 256)

	require.ErrorIs(t, tr.Write(context.Background(), []byte{1}), ErrNotConnected)
	_, err := tr.Read(context.Background())
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestTCPTransport_HostResolution(t *testing.T) {
	tr := NewTCPTransport("no-such-host.invalid:19000", time.Second, 256)
	err := tr.Connect(context.Background())
	require.ErrorIs(t, err, ErrHostResolution)
	require.False(t, tr.IsConnected())
}

func TestTCPTransport_ReadTimeoutCloses(t *testing.T) {
	addr := listen(t, func(conn net.Conn) { io.Copy(io.Discard, conn) })

	tr := NewTCPTransport(addr, 50*time.Millisecond, 256)
	require.NoError(t, tr.Connect(context.Background()))

	_, err := tr.Read(context.Background())
	require.Error(t, err)
	require.False(t, tr.IsConnected())
}
