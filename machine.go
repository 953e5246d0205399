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
)

// Write modes of C_MC.
const (
	machineParamPersistent uint32 = 0
	machineParamTemporary  uint32 = 1
)

// MachineParameter reads one machine parameter by name.
func (c *Client) MachineParameter(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", inputError("machine parameter name is empty")
	}
	if err := c.Login(ctx, LoginInspect, ""); err != nil {
		return "", newError(KindProtocol, "read machine parameter", err)
	}

	payload := make([]byte, 4, 4+len(name)+1)
	payload = append(payload, encodeString(name)...)
	data, err := c.exchange(ctx, CmdReadMachineParam, payload, RspMachineParam)
	if err != nil {
		return "", newError(KindProtocol, "read machine parameter "+name, err)
	}
	return decodeString(data), nil
}

// SetMachineParameter writes one machine parameter. With persist unset the
// value is lost on the next controller restart. Requires the PLCDEBUG
// login, which safe mode does not allow.
func (c *Client) SetMachineParameter(ctx context.Context, name, value string, persist bool) error {
	if name == "" {
		return inputError("machine parameter name is empty")
	}
	if err := c.Login(ctx, LoginPLCDebug, ""); err != nil {
		return newError(KindProtocol, "write machine parameter", err)
	}

	mode := machineParamTemporary
	if persist {
		mode = machineParamPersistent
	}
	payload := make([]byte, 4, 4+len(name)+len(value)+2)
	binary.BigEndian.PutUint32(payload, mode)
	payload = append(payload, encodeString(name)...)
	payload = append(payload, encodeString(value)...)

	if _, err := c.exchange(ctx, CmdSetMachineParam, payload, RspOK); err != nil {
		return newError(KindProtocol, "write machine parameter "+name, err)
	}
	return nil
}
