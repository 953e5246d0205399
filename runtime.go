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
	"fmt"
)

// readRuntimeInfo issues R_RI for one selector under the DNC login.
func (c *Client) readRuntimeInfo(ctx context.Context, sel RuntimeSelector) ([]byte, error) {
	op := fmt.Sprintf("runtime info %d", sel)
	if err := c.Login(ctx, LoginDNC, ""); err != nil {
		return nil, newError(KindProtocol, op, err)
	}
	payload := make([]byte, 2)
	binary.BigEndian.PutUint16(payload, uint16(sel))
	data, err := c.exchange(ctx, CmdRuntimeInfo, payload, RspRuntimeInfo)
	if err != nil {
		return nil, newError(KindProtocol, op, err)
	}
	return data, nil
}

// ExecutionState returns the current operating mode.
func (c *Client) ExecutionState(ctx context.Context) (ExecutionState, error) {
	data, err := c.readRuntimeInfo(ctx, RunExecutionState)
	if err != nil {
		return ExecUndefined, err
	}
	return DecodeExecutionState(data)
}

// ProgramState returns the state of the selected program.
func (c *Client) ProgramState(ctx context.Context) (ProgramState, error) {
	data, err := c.readRuntimeInfo(ctx, RunProgramState)
	if err != nil {
		return ProgramUndefined, err
	}
	return DecodeProgramState(data)
}

// SelectedProgram returns the path of the program selected for execution.
func (c *Client) SelectedProgram(ctx context.Context) (string, error) {
	data, err := c.readRuntimeInfo(ctx, RunSelectedProgram)
	if err != nil {
		return "", err
	}
	return localPath(decodeString(data)), nil
}

// ProgramStack returns the current line and the main and current program.
func (c *Client) ProgramStack(ctx context.Context) (*StackState, error) {
	data, err := c.readRuntimeInfo(ctx, RunProgramStack)
	if err != nil {
		return nil, err
	}
	return DecodeStack(data)
}

// Overrides returns the feed, spindle and rapid override in percent.
func (c *Client) Overrides(ctx context.Context) (*OverrideState, error) {
	data, err := c.readRuntimeInfo(ctx, RunOverride)
	if err != nil {
		return nil, err
	}
	return DecodeOverride(data)
}

// CurrentTool returns the active tool.
func (c *Client) CurrentTool(ctx context.Context) (*ToolInfo, error) {
	data, err := c.readRuntimeInfo(ctx, RunCurrentTool)
	if err != nil {
		return nil, err
	}
	return DecodeTool(data)
}

// AxisLocation returns the current axis positions.
func (c *Client) AxisLocation(ctx context.Context) ([]AxisPosition, error) {
	data, err := c.readRuntimeInfo(ctx, RunAxisLocation)
	if err != nil {
		return nil, err
	}
	return DecodeAxisLocation(data)
}

// FirstError returns the first entry of the NC error list, or nil if the
// list is empty.
func (c *Client) FirstError(ctx context.Context) (*NCError, error) {
	return c.ncError(ctx, RunFirstError)
}

// NextError returns the following entry of the NC error list, or nil once
// the list is exhausted.
func (c *Client) NextError(ctx context.Context) (*NCError, error) {
	return c.ncError(ctx, RunNextError)
}

func (c *Client) ncError(ctx context.Context, sel RuntimeSelector) (*NCError, error) {
	data, err := c.readRuntimeInfo(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return DecodeNCError(data)
}
