// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lsv2

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/edgeo-scada/lsv2/internal/transport"
)

// Client is an LSV2 client bound to one controller.
//
// A Client runs one request at a time. Callers sharing a Client between
// goroutines must serialize the calls themselves.
type Client struct {
	addr string
	opts *clientOptions

	transport *transport.TCPTransport

	mu             sync.Mutex
	state          ConnectionState
	closed         bool
	safeMode       bool
	logins         map[Login]struct{}
	secureFileSend bool
	versions       *VersionInfo
	params         *SystemParameters
	lastErr        *ApplicationError

	metrics *Metrics
	logger  *slog.Logger
}

// NewClient creates a new LSV2 client. The address is host[:port]; the port
// defaults to 19000.
func NewClient(addr string, opts ...Option) (*Client, error) {
	if addr == "" {
		return nil, errors.New("lsv2: address cannot be empty")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, strconv.Itoa(DefaultPort))
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	c := &Client{
		addr:      addr,
		opts:      options,
		transport: transport.NewTCPTransport(addr, options.timeout, DefaultBufferSize),
		state:     StateDisconnected,
		safeMode:  options.safeMode,
		logins:    make(map[Login]struct{}),
		metrics:   NewMetrics(),
		logger:    options.logger,
	}

	return c, nil
}

// Connect opens the socket and negotiates the session: baseline login,
// controller identification, buffer size, secure file send and the file
// transfer login. Any failure closes the connection again.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return &Error{Kind: KindTransport, Op: "connect", Err: ErrConnectionClosed}
	}
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	c.logger.Debug("connecting", slog.String("addr", c.addr))

	if err := c.transport.Connect(ctx); err != nil {
		c.setState(StateDisconnected)
		return newError(KindTransport, "connect", wrapTransportError(err))
	}

	c.mu.Lock()
	c.logins = make(map[Login]struct{})
	c.metrics.ActiveConns.Add(1)
	c.mu.Unlock()

	if err := c.negotiate(ctx); err != nil {
		c.logger.Error("connection setup failed",
			slog.String("addr", c.addr),
			slog.String("error", err.Error()))
		c.dropConnection()
		kind := kindOf(err)
		if kind == 0 {
			kind = KindProtocol
		}
		return &Error{Kind: kind, Op: "connect", Err: fmt.Errorf("%w: %w", ErrConfiguration, err)}
	}

	c.setState(StateConnected)
	c.logger.Info("connected",
		slog.String("addr", c.addr),
		slog.Int("buffer_size", c.transport.BufferSize()),
		slog.Bool("secure_file_send", c.SecureFileSend()),
		slog.String("control", c.ControlType().String()))

	if c.opts.onConnect != nil {
		c.opts.onConnect()
	}
	return nil
}

// negotiate runs the fixed connection setup sequence.
func (c *Client) negotiate(ctx context.Context) error {
	if err := c.Login(ctx, LoginInspect, ""); err != nil {
		return err
	}
	if _, err := c.Versions(ctx, true); err != nil {
		return err
	}
	params, err := c.SystemParameters(ctx, true)
	if err != nil {
		return err
	}

	if c.opts.compatibility {
		c.logger.Debug("compatibility mode, keeping default buffer size")
	} else if err := c.negotiateBufferSize(ctx, uint32(params.MaxBlockLength)); err != nil {
		return err
	}

	if err := c.SystemCommand(ctx, SysSecureFileSend, []byte{0x00, 0x01}); err != nil {
		if IsTransportError(err) {
			return err
		}
		c.logger.Warn("secure file send not supported",
			slog.String("error", err.Error()))
		c.mu.Lock()
		c.secureFileSend = false
		c.mu.Unlock()
	} else {
		c.mu.Lock()
		c.secureFileSend = true
		c.mu.Unlock()
	}

	return c.Login(ctx, LoginFileTransfer, "")
}

// selectBufferSize picks the largest ladder size not above maxBlock.
func selectBufferSize(maxBlock uint32) (int, SystemCommand, error) {
	for _, step := range bufferLadder {
		if uint32(step.size) <= maxBlock {
			return step.size, step.command, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: controller block length %d below %d",
		ErrConfiguration, maxBlock, DefaultBufferSize)
}

func (c *Client) negotiateBufferSize(ctx context.Context, maxBlock uint32) error {
	size, cmd, err := selectBufferSize(maxBlock)
	if err != nil {
		return &Error{Kind: KindProtocol, Op: "negotiate", Err: err}
	}
	if size == DefaultBufferSize {
		c.transport.SetBufferSize(size)
		return nil
	}
	if err := c.SystemCommand(ctx, cmd, nil); err != nil {
		return err
	}
	c.transport.SetBufferSize(size)
	c.logger.Debug("buffer size negotiated", slog.Int("buffer_size", size))
	return nil
}

// SystemCommand sends a C_CC telegram with the given selector and optional
// parameter bytes. In safe mode only the allow listed selectors pass.
func (c *Client) SystemCommand(ctx context.Context, cmd SystemCommand, params []byte) error {
	if c.SafeMode() && !systemCommandAllowed(cmd) {
		return &Error{Kind: KindInput, Op: "system command",
			Err: fmt.Errorf("%w: %s in safe mode", ErrCommandNotAllowed, cmd)}
	}
	payload := make([]byte, 2, 2+len(params))
	binary.BigEndian.PutUint16(payload, uint16(cmd))
	payload = append(payload, params...)

	if _, err := c.exchange(ctx, CmdSystemCommand, payload, RspOK); err != nil {
		return newError(KindProtocol, "system command "+cmd.String(), err)
	}
	return nil
}

func systemCommandAllowed(cmd SystemCommand) bool {
	for _, allowed := range SafeSystemCommands {
		if cmd == allowed {
			return true
		}
	}
	return false
}

// Close logs out every active login and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	connected := c.state == StateConnected
	c.mu.Unlock()

	if connected {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.timeout)
		if err := c.Logout(ctx, ""); err != nil {
			c.logger.Debug("logout on close failed", slog.String("error", err.Error()))
		}
		cancel()
	}

	c.logger.Debug("closing connection", slog.String("addr", c.addr))
	return c.dropConnection()
}

// dropConnection closes the socket and resets the session state.
func (c *Client) dropConnection() error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.metrics.ActiveConns.Add(-1)
	}
	c.state = StateDisconnected
	c.logins = make(map[Login]struct{})
	c.mu.Unlock()

	c.transport.SetBufferSize(DefaultBufferSize)
	return c.transport.Close()
}

func (c *Client) handleDisconnect(err error) {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected
	c.logins = make(map[Login]struct{})
	c.metrics.ActiveConns.Add(-1)
	c.mu.Unlock()

	c.transport.SetBufferSize(DefaultBufferSize)
	c.logger.Warn("connection lost",
		slog.String("addr", c.addr),
		slog.String("error", err.Error()))

	if c.opts.onDisconnect != nil {
		c.opts.onDisconnect(err)
	}
}

func (c *Client) setState(s ConnectionState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected returns true once the session is negotiated.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Metrics returns the client metrics.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// Address returns the controller address.
func (c *Client) Address() string {
	return c.addr
}

// BufferSize returns the negotiated telegram buffer size.
func (c *Client) BufferSize() int {
	return c.transport.BufferSize()
}

// SecureFileSend reports whether uploads end with an acknowledged T_FD.
func (c *Client) SecureFileSend() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.secureFileSend
}

// ControlType returns the controller family derived from the cached
// version information.
func (c *Client) ControlType() ControlType {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions == nil {
		return ControlUnknown
	}
	return c.versions.Type
}

// LastError returns the class and code of the last error telegram. Both are
// zero if none was received.
func (c *Client) LastError() (class, code uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastErr == nil {
		return 0, 0
	}
	return c.lastErr.Class, c.lastErr.Code
}

func (c *Client) setLastError(e *ApplicationError) {
	c.mu.Lock()
	c.lastErr = e
	c.mu.Unlock()
}

// Versions returns the controller version strings. The result is cached
// until force is set.
func (c *Client) Versions(ctx context.Context, force bool) (*VersionInfo, error) {
	c.mu.Lock()
	cached := c.versions
	c.mu.Unlock()
	if cached != nil && !force {
		return cached, nil
	}

	control, err := c.exchange(ctx, CmdVersion, nil, RspVersion)
	if err != nil {
		return nil, newError(KindProtocol, "read versions", err)
	}
	info := &VersionInfo{Control: decodeString(control)}

	fields := []struct {
		sel      versionSelector
		dst      *string
		optional bool
	}{
		{versionNC, &info.NC, false},
		{versionPLC, &info.PLC, false},
		{versionOptions, &info.Options, false},
		{versionID, &info.ID, false},
		{versionRelease, &info.Release, false},
		{versionSafetyPL, &info.SafetyPLC, true},
	}
	for _, f := range fields {
		data, err := c.exchange(ctx, CmdVersion, []byte{byte(f.sel)}, RspVersion)
		if err != nil {
			if f.optional && kindOf(err) == KindApplication {
				continue
			}
			return nil, newError(KindProtocol, "read versions", err)
		}
		*f.dst = decodeString(data)
	}
	info.Type = ParseControlType(info.Control)

	c.mu.Lock()
	c.versions = info
	c.mu.Unlock()
	return info, nil
}

// SystemParameters returns the controller capability record. The result is
// cached until force is set.
func (c *Client) SystemParameters(ctx context.Context, force bool) (*SystemParameters, error) {
	c.mu.Lock()
	cached := c.params
	c.mu.Unlock()
	if cached != nil && !force {
		return cached, nil
	}

	data, err := c.exchange(ctx, CmdParameters, nil, RspParameters)
	if err != nil {
		return nil, newError(KindProtocol, "read system parameters", err)
	}
	params, err := DecodeSystemParameters(data)
	if err != nil {
		return nil, newError(KindDecode, "read system parameters", err)
	}

	c.mu.Lock()
	c.params = params
	c.mu.Unlock()
	return params, nil
}
