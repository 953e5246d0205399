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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeo-scada/lsv2"
	"github.com/edgeo-scada/lsv2/lsv2test"
)

func TestLogin_Idempotent(t *testing.T) {
	ctrl := lsv2test.NewController()
	client := connect(t, ctrl)
	ctx := context.Background()
	ctrl.ResetReceived()

	require.NoError(t, client.Login(ctx, lsv2.LoginInspect, ""))
	require.NoError(t, client.Login(ctx, lsv2.LoginFileTransfer, ""))
	assert.Empty(t, ctrl.Received())

	require.NoError(t, client.Login(ctx, lsv2.LoginDNC, ""))
	require.NoError(t, client.Login(ctx, lsv2.LoginDNC, ""))
	assert.Len(t, ctrl.Requests(lsv2.CmdLogin), 1)
	assert.Contains(t, client.ActiveLogins(), lsv2.LoginDNC)
}

func TestLogin_Password(t *testing.T) {
	ctrl := lsv2test.NewController()
	client := connect(t, ctrl, lsv2.WithSafeMode(false))
	ctrl.ResetReceived()

	require.NoError(t, client.Login(context.Background(), lsv2.LoginPLCDebug, "807667"))
	logins := ctrl.Requests(lsv2.CmdLogin)
	require.Len(t, logins, 1)
	assert.Equal(t, []byte("PLCDEBUG\x00807667\x00"), logins[0].Payload)
}

func TestLogin_Rejected(t *testing.T) {
	ctrl := lsv2test.NewController()
	ctrl.RejectLogins[lsv2.LoginDSP] = true
	client := connect(t, ctrl, lsv2.WithSafeMode(false))

	err := client.Login(context.Background(), lsv2.LoginDSP, "")
	require.Error(t, err)
	assert.True(t, lsv2.IsApplicationError(err, lsv2.ErrorClassTelegram, lsv2.CodeNoLogin))
	assert.NotContains(t, client.ActiveLogins(), lsv2.LoginDSP)
	assert.True(t, client.IsConnected())
}

func TestLogout(t *testing.T) {
	ctrl := lsv2test.NewController()
	client := connect(t, ctrl)
	ctx := context.Background()
	ctrl.ResetReceived()

	// Inactive login: nothing to drop.
	require.NoError(t, client.Logout(ctx, lsv2.LoginDNC))
	assert.Empty(t, ctrl.Received())

	require.NoError(t, client.Logout(ctx, lsv2.LoginFileTransfer))
	logouts := ctrl.Requests(lsv2.CmdLogout)
	require.Len(t, logouts, 1)
	assert.Equal(t, []byte("FILE\x00"), logouts[0].Payload)
	assert.Equal(t, []lsv2.Login{lsv2.LoginInspect}, client.ActiveLogins())

	require.NoError(t, client.Logout(ctx, ""))
	assert.Empty(t, client.ActiveLogins())
	assert.Empty(t, ctrl.Logins())

	// No active logins left.
	ctrl.ResetReceived()
	require.NoError(t, client.Logout(ctx, ""))
	assert.Empty(t, ctrl.Received())

	// File operations log in again on demand.
	_, _, err := client.FileInfo(ctx, "TNC:/a.h")
	require.NoError(t, err)
	assert.Contains(t, client.ActiveLogins(), lsv2.LoginFileTransfer)
}

func TestSafeMode(t *testing.T) {
	ctrl := lsv2test.NewController()
	client := connect(t, ctrl)
	ctx := context.Background()

	require.True(t, client.SafeMode())
	// Negotiation only uses allow listed logins and commands.
	assert.Equal(t, 4096, client.BufferSize())
	assert.True(t, client.SecureFileSend())
	ctrl.ResetReceived()

	err := client.Login(ctx, lsv2.LoginPLCDebug, "")
	assert.ErrorIs(t, err, lsv2.ErrLoginNotAllowed)
	assert.True(t, lsv2.IsInputError(err))

	_, err = client.ReadData(ctx, "M0")
	assert.ErrorIs(t, err, lsv2.ErrLoginNotAllowed)

	err = client.SetMachineParameter(ctx, "CfgA.b", "1", false)
	assert.ErrorIs(t, err, lsv2.ErrLoginNotAllowed)

	err = client.SystemCommand(ctx, lsv2.SysResetTNC, nil)
	assert.ErrorIs(t, err, lsv2.ErrCommandNotAllowed)
	assert.True(t, lsv2.IsInputError(err))

	assert.Empty(t, ctrl.Received())

	// Allowed operations still work.
	_, err = client.ExecutionState(ctx)
	assert.Error(t, err) // no runtime data configured
	assert.True(t, lsv2.IsApplicationError(err, lsv2.ErrorClassTelegram, lsv2.CodeWrongParameter))
	assert.Contains(t, client.ActiveLogins(), lsv2.LoginDNC)

	client.SetSafeMode(false)
	require.NoError(t, client.Login(ctx, lsv2.LoginPLCDebug, ""))
	require.NoError(t, client.SystemCommand(ctx, lsv2.SysResetTNC, nil))

	// Re-enabling keeps the login already granted.
	client.SetSafeMode(true)
	assert.Contains(t, client.ActiveLogins(), lsv2.LoginPLCDebug)
}
