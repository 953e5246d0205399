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

package lsv2_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeo-scada/lsv2"
	"github.com/edgeo-scada/lsv2/lsv2test"
)

func startServer(t *testing.T, ctrl *lsv2test.Controller) string {
	t.Helper()
	srv := lsv2test.NewServer(ctrl)
	addr, err := srv.Start()
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return addr
}

func newClient(t *testing.T, addr string, opts ...lsv2.Option) *lsv2.Client {
	t.Helper()
	opts = append([]lsv2.Option{lsv2.WithTimeout(2 * time.Second)}, opts...)
	client, err := lsv2.NewClient(addr, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

// connect starts a server for ctrl and returns a negotiated client.
func connect(t *testing.T, ctrl *lsv2test.Controller, opts ...lsv2.Option) *lsv2.Client {
	t.Helper()
	client := newClient(t, startServer(t, ctrl), opts...)
	require.NoError(t, client.Connect(context.Background()))
	return client
}

func TestNewClient(t *testing.T) {
	client, err := lsv2.NewClient("192.168.1.20")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer client.Close()

	if client.Address() != "192.168.1.20:19000" {
		t.Errorf("Address: expected default port, got %s", client.Address())
	}
	if client.State() != lsv2.StateDisconnected {
		t.Errorf("Initial state should be Disconnected, got %v", client.State())
	}
	if client.BufferSize() != lsv2.DefaultBufferSize {
		t.Errorf("BufferSize: expected %d, got %d", lsv2.DefaultBufferSize, client.BufferSize())
	}
	if !client.SafeMode() {
		t.Error("SafeMode: expected on by default")
	}

	if _, err := lsv2.NewClient(""); err == nil {
		t.Error("Expected error for empty address")
	}
}

func TestClientConnectNotRunning(t *testing.T) {
	client := newClient(t, "127.0.0.1:1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := client.Connect(ctx)
	require.Error(t, err)
	assert.True(t, lsv2.IsTransportError(err))
	assert.Equal(t, lsv2.StateDisconnected, client.State())
	assert.Equal(t, int64(0), client.Metrics().ActiveConns.Value())
}

func TestConnect_Negotiation(t *testing.T) {
	ctrl := lsv2test.NewController()
	connected := make(chan struct{}, 1)
	client := connect(t, ctrl, lsv2.WithOnConnect(func() { connected <- struct{}{} }))

	assert.True(t, client.IsConnected())
	assert.Equal(t, 4096, client.BufferSize())
	assert.True(t, client.SecureFileSend())
	assert.Equal(t, lsv2.ControlMillNew, client.ControlType())
	assert.Equal(t, []lsv2.Login{lsv2.LoginFileTransfer, lsv2.LoginInspect}, client.ActiveLogins())
	assert.Equal(t, int64(1), client.Metrics().ActiveConns.Value())

	select {
	case <-connected:
	default:
		t.Error("OnConnect was not called")
	}

	codes := ctrl.Received()
	require.NotEmpty(t, codes)
	assert.Equal(t, lsv2.CmdLogin, codes[0])
	assert.Equal(t, lsv2.CmdLogin, codes[len(codes)-1])

	logins := ctrl.Requests(lsv2.CmdLogin)
	require.Len(t, logins, 2)
	assert.Equal(t, []byte("INSPECT\x00"), logins[0].Payload)
	assert.Equal(t, []byte("FILE\x00"), logins[1].Payload)

	commands := ctrl.Requests(lsv2.CmdSystemCommand)
	require.Len(t, commands, 2)
	assert.Equal(t, []byte{0x00, 0x05}, commands[0].Payload)
	assert.Equal(t, []byte{0x00, 0x07, 0x00, 0x01}, commands[1].Payload)

	versions, err := client.Versions(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "TNC640", versions.Control)
	assert.Equal(t, "340590 10 SP2", versions.NC)
	assert.Equal(t, "SPLC 1.0", versions.SafetyPLC)
}

func TestConnect_BufferLadder(t *testing.T) {
	tests := []struct {
		name     string
		maxBlock uint16
		size     int
		command  []byte
	}{
		{"2048", 2500, 2048, []byte{0x00, 0x03}},
		{"1024", 1500, 1024, []byte{0x00, 0x01}},
		{"default", 300, 256, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := lsv2test.NewController()
			ctrl.Parameters.MaxBlockLength = tt.maxBlock
			client := connect(t, ctrl)

			assert.Equal(t, tt.size, client.BufferSize())

			commands := ctrl.Requests(lsv2.CmdSystemCommand)
			if tt.command == nil {
				// Only the secure file send check.
				require.Len(t, commands, 1)
				assert.Equal(t, []byte{0x00, 0x07, 0x00, 0x01}, commands[0].Payload)
				return
			}
			require.Len(t, commands, 2)
			assert.Equal(t, tt.command, commands[0].Payload)
		})
	}
}

func TestConnect_BlockLengthTooSmall(t *testing.T) {
	ctrl := lsv2test.NewController()
	ctrl.Parameters.MaxBlockLength = 200
	client := newClient(t, startServer(t, ctrl))

	err := client.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, lsv2.ErrConfiguration)
	assert.Equal(t, lsv2.StateDisconnected, client.State())
	assert.Equal(t, int64(0), client.Metrics().ActiveConns.Value())
	assert.NotContains(t, ctrl.Received(), lsv2.CmdSystemCommand)
}

func TestConnect_ExtendedParameters(t *testing.T) {
	ctrl := lsv2test.NewController()
	ctrl.Extended = true
	ctrl.Parameters.PasswordKey = 0xCAFE
	client := connect(t, ctrl)

	params, err := client.SystemParameters(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xCAFE), params.PasswordKey)
	assert.Equal(t, uint16(4096), params.MaxBlockLength)
}

func TestConnect_CompatibilityMode(t *testing.T) {
	ctrl := lsv2test.NewController()
	client := connect(t, ctrl, lsv2.WithCompatibilityMode(true))

	assert.Equal(t, lsv2.DefaultBufferSize, client.BufferSize())
	commands := ctrl.Requests(lsv2.CmdSystemCommand)
	require.Len(t, commands, 1)
	assert.Equal(t, []byte{0x00, 0x07, 0x00, 0x01}, commands[0].Payload)
}

func TestConnect_SecureFileSendRejected(t *testing.T) {
	ctrl := lsv2test.NewController()
	ctrl.SecureFileSend = false
	client := connect(t, ctrl)

	assert.True(t, client.IsConnected())
	assert.False(t, client.SecureFileSend())
	assert.Contains(t, client.ActiveLogins(), lsv2.LoginFileTransfer)
}

func TestConnect_SafetyPLCOptional(t *testing.T) {
	ctrl := lsv2test.NewController()
	delete(ctrl.Versions, 7)
	client := connect(t, ctrl)

	versions, err := client.Versions(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, versions.SafetyPLC)
	assert.Equal(t, "Release 1", versions.Release)
}

func TestConnect_LoginRejected(t *testing.T) {
	ctrl := lsv2test.NewController()
	ctrl.RejectLogins[lsv2.LoginInspect] = true
	var disconnects int
	client := newClient(t, startServer(t, ctrl), lsv2.WithOnDisconnect(func(error) { disconnects++ }))

	err := client.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, lsv2.ErrConfiguration)
	assert.True(t, lsv2.IsApplicationError(err, lsv2.ErrorClassTelegram, lsv2.CodeNoLogin))
	assert.Equal(t, lsv2.StateDisconnected, client.State())
	assert.Equal(t, []lsv2.Code{lsv2.CmdLogin}, ctrl.Received())
	assert.Zero(t, disconnects)
}

func TestConnect_Twice(t *testing.T) {
	ctrl := lsv2test.NewController()
	client := connect(t, ctrl)
	ctrl.ResetReceived()

	require.NoError(t, client.Connect(context.Background()))
	assert.Empty(t, ctrl.Received())
}

func TestVersions_Cached(t *testing.T) {
	ctrl := lsv2test.NewController()
	client := connect(t, ctrl)
	ctrl.ResetReceived()

	_, err := client.Versions(context.Background(), false)
	require.NoError(t, err)
	_, err = client.SystemParameters(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, ctrl.Received())

	ctrl.Versions[0] = "iTNC530 HSCI"
	versions, err := client.Versions(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, lsv2.ControlMillOld, versions.Type)
	assert.Equal(t, lsv2.ControlMillOld, client.ControlType())
	assert.Len(t, ctrl.Requests(lsv2.CmdVersion), 7)
}

func TestClose_LogsOut(t *testing.T) {
	ctrl := lsv2test.NewController()
	client := newClient(t, startServer(t, ctrl))
	require.NoError(t, client.Connect(context.Background()))

	require.NoError(t, client.Close())

	logouts := ctrl.Requests(lsv2.CmdLogout)
	require.Len(t, logouts, 1)
	assert.Empty(t, logouts[0].Payload)
	assert.Empty(t, ctrl.Logins())
	assert.Equal(t, lsv2.StateDisconnected, client.State())
	assert.Equal(t, int64(0), client.Metrics().ActiveConns.Value())

	// Closing twice is harmless, reconnecting is not possible.
	assert.NoError(t, client.Close())
	err := client.Connect(context.Background())
	assert.ErrorIs(t, err, lsv2.ErrConnectionClosed)
}

func TestClientMetrics(t *testing.T) {
	ctrl := lsv2test.NewController()
	client := connect(t, ctrl)

	collected := client.Metrics().Collect()
	assert.Greater(t, collected["requests_total"], int64(0))
	assert.Equal(t, collected["requests_total"], collected["requests_success"])
	assert.Greater(t, collected["bytes_sent"], int64(0))
	assert.Greater(t, collected["bytes_received"], int64(0))

	cm := client.Metrics().ForCommand(lsv2.CmdVersion)
	assert.Equal(t, int64(7), cm.Requests.Value())
}

func TestSystemCommand(t *testing.T) {
	ctrl := lsv2test.NewController()
	client := connect(t, ctrl, lsv2.WithSafeMode(false))
	ctrl.ResetReceived()

	require.NoError(t, client.SystemCommand(context.Background(), lsv2.SysResetTNC, nil))
	commands := ctrl.Requests(lsv2.CmdSystemCommand)
	require.Len(t, commands, 1)
	assert.Equal(t, []byte{0x00, 0x06}, commands[0].Payload)
}

func TestApplicationError_SessionUsable(t *testing.T) {
	ctrl := lsv2test.NewController()
	ctrl.MachineParams["CfgDisplayLanguage.ncLanguage"] = "ENGLISH"
	client := connect(t, ctrl)

	class, code := client.LastError()
	assert.Zero(t, class)
	assert.Zero(t, code)

	_, err := client.MachineParameter(context.Background(), "missing")
	require.Error(t, err)
	assert.False(t, lsv2.IsTransportError(err))
	assert.True(t, lsv2.IsApplicationError(err, lsv2.ErrorClassTelegram, lsv2.CodeNoMachineParam))

	class, code = client.LastError()
	assert.Equal(t, lsv2.ErrorClassTelegram, class)
	assert.Equal(t, lsv2.CodeNoMachineParam, code)
	assert.Equal(t, int64(1), client.Metrics().ErrorTelegrams.Value())

	value, err := client.MachineParameter(context.Background(), "CfgDisplayLanguage.ncLanguage")
	require.NoError(t, err)
	assert.Equal(t, "ENGLISH", value)
	assert.True(t, client.IsConnected())
}

func TestUnexpectedResponses(t *testing.T) {
	tests := []struct {
		name  string
		reply *lsv2.Telegram
		want  error
	}{
		{"unknown code", lsv2test.T("X_YZ", nil), lsv2.ErrUnknownTelegram},
		{"wrong response", lsv2test.T(lsv2.RspVersion, []byte("x\x00")), lsv2.ErrUnexpectedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := lsv2test.NewController()
			client := connect(t, ctrl)
			ctrl.Override(lsv2.CmdRuntimeInfo, func(*lsv2.Telegram) []*lsv2.Telegram {
				return []*lsv2.Telegram{tt.reply}
			})

			_, err := client.ExecutionState(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, lsv2.IsProtocolError(err))
		})
	}
}

func TestBlockExchange_FinishedWithData(t *testing.T) {
	ctrl := lsv2test.NewController()
	client := connect(t, ctrl)
	ctrl.Override(lsv2.CmdDirRead, func(*lsv2.Telegram) []*lsv2.Telegram {
		return []*lsv2.Telegram{lsv2test.T(lsv2.RspFinished, []byte{0x01})}
	})

	_, err := client.DirectoryContent(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, lsv2.ErrUnexpectedData)
}

func TestBlockExchange_ErrorMidTransfer(t *testing.T) {
	ctrl := lsv2test.NewController()
	client := connect(t, ctrl)
	ctrl.Override(lsv2.RspOK, func(*lsv2.Telegram) []*lsv2.Telegram {
		return []*lsv2.Telegram{lsv2test.Error(lsv2.ErrorClassTransfer, lsv2.CodeTransferAborted)}
	})
	ctrl.PutFile("TNC:/a.h", []byte("x"))
	ctrl.PutFile("TNC:/b.h", []byte("y"))

	_, err := client.DirectoryContent(context.Background(), "")
	require.Error(t, err)
	assert.True(t, lsv2.IsApplicationError(err, lsv2.ErrorClassTransfer, lsv2.CodeTransferAborted))
}

func TestConnectionLost(t *testing.T) {
	ctrl := lsv2test.NewController()
	srv := lsv2test.NewServer(ctrl)
	addr, err := srv.Start()
	require.NoError(t, err)

	lost := make(chan error, 1)
	client := newClient(t, addr, lsv2.WithOnDisconnect(func(err error) { lost <- err }))
	require.NoError(t, client.Connect(context.Background()))

	require.NoError(t, srv.Close())

	_, err = client.ExecutionState(context.Background())
	require.Error(t, err)
	assert.True(t, lsv2.IsTransportError(err))
	assert.Equal(t, lsv2.StateDisconnected, client.State())

	select {
	case <-lost:
	case <-time.After(time.Second):
		t.Error("OnDisconnect was not called")
	}

	_, err = client.ExecutionState(context.Background())
	assert.True(t, errors.Is(err, lsv2.ErrNotConnected))
}
