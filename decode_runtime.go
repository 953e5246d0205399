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
	"encoding/binary"
	"math"
	"strconv"
	"strings"
)

// ExecutionState is the operating mode of the NC.
type ExecutionState uint16

const (
	ExecManual ExecutionState = iota
	ExecMDI
	ExecPassReferences
	ExecSingleStep
	ExecAutomatic
	ExecUndefined
)

// String returns the string representation of the execution state.
func (s ExecutionState) String() string {
	switch s {
	case ExecManual:
		return "manual"
	case ExecMDI:
		return "mdi"
	case ExecPassReferences:
		return "pass references"
	case ExecSingleStep:
		return "single step"
	case ExecAutomatic:
		return "automatic"
	case ExecUndefined:
		return "undefined"
	default:
		return "unknown"
	}
}

// ProgramState is the state of the selected NC program.
type ProgramState uint16

const (
	ProgramStarted ProgramState = iota
	ProgramStopped
	ProgramFinished
	ProgramCancelled
	ProgramInterrupted
	ProgramError
	ProgramErrorCleared
	ProgramIdle
	ProgramUndefined
)

// String returns the string representation of the program state.
func (s ProgramState) String() string {
	switch s {
	case ProgramStarted:
		return "started"
	case ProgramStopped:
		return "stopped"
	case ProgramFinished:
		return "finished"
	case ProgramCancelled:
		return "cancelled"
	case ProgramInterrupted:
		return "interrupted"
	case ProgramError:
		return "error"
	case ProgramErrorCleared:
		return "error cleared"
	case ProgramIdle:
		return "idle"
	case ProgramUndefined:
		return "undefined"
	default:
		return "unknown"
	}
}

// DecodeExecutionState decodes the payload of runtime selector 26.
func DecodeExecutionState(data []byte) (ExecutionState, error) {
	if len(data) != 2 {
		return 0, decodeError("execution state: %d bytes, want 2", len(data))
	}
	s := ExecutionState(binary.BigEndian.Uint16(data))
	if s > ExecUndefined {
		return 0, decodeError("execution state: value %d out of range", s)
	}
	return s, nil
}

// DecodeProgramState decodes the payload of runtime selector 28.
func DecodeProgramState(data []byte) (ProgramState, error) {
	if len(data) != 2 {
		return 0, decodeError("program state: %d bytes, want 2", len(data))
	}
	s := ProgramState(binary.BigEndian.Uint16(data))
	if s > ProgramUndefined {
		return 0, decodeError("program state: value %d out of range", s)
	}
	return s, nil
}

// ToolInfo is the active tool.
type ToolInfo struct {
	Number uint32 `json:"number" yaml:"number"`
	Index  uint16 `json:"index" yaml:"index"`
	Axis   string `json:"axis" yaml:"axis"`
	// Length and Radius are only reported by newer controllers.
	Length *float64 `json:"length,omitempty" yaml:"length,omitempty"`
	Radius *float64 `json:"radius,omitempty" yaml:"radius,omitempty"`
}

var toolAxes = []string{"X", "Y", "Z"}

// DecodeTool decodes the payload of runtime selector 51.
func DecodeTool(data []byte) (*ToolInfo, error) {
	if len(data) != 8 && len(data) != 24 {
		return nil, decodeError("tool: %d bytes, want 8 or 24", len(data))
	}
	axis := binary.BigEndian.Uint16(data[6:8])
	if int(axis) >= len(toolAxes) {
		return nil, decodeError("tool: axis %d out of range", axis)
	}

	t := &ToolInfo{
		Number: binary.BigEndian.Uint32(data[0:4]),
		Index:  binary.BigEndian.Uint16(data[4:6]),
		Axis:   toolAxes[axis],
	}
	if len(data) == 24 {
		length := math.Float64frombits(binary.LittleEndian.Uint64(data[8:16]))
		radius := math.Float64frombits(binary.LittleEndian.Uint64(data[16:24]))
		t.Length = &length
		t.Radius = &radius
	}
	return t, nil
}

// OverrideState holds the override potentiometers in percent.
type OverrideState struct {
	Feed    float64 `json:"feed" yaml:"feed"`
	Spindle float64 `json:"spindle" yaml:"spindle"`
	Rapid   float64 `json:"rapid" yaml:"rapid"`
}

// DecodeOverride decodes the payload of runtime selector 52.
func DecodeOverride(data []byte) (*OverrideState, error) {
	if len(data) != 12 {
		return nil, decodeError("override: %d bytes, want 12", len(data))
	}
	return &OverrideState{
		Feed:    float64(binary.BigEndian.Uint32(data[0:4])) / 100,
		Spindle: float64(binary.BigEndian.Uint32(data[4:8])) / 100,
		Rapid:   float64(binary.BigEndian.Uint32(data[8:12])) / 100,
	}, nil
}

// NCError is one entry of the NC error list.
type NCError struct {
	Class  int16  `json:"class" yaml:"class"`
	Group  int16  `json:"group" yaml:"group"`
	Number int32  `json:"number" yaml:"number"`
	Text   string `json:"text" yaml:"text"`
}

// DecodeNCError decodes the payload of runtime selectors 1 and 2.
func DecodeNCError(data []byte) (*NCError, error) {
	if len(data) < 8 {
		return nil, decodeError("nc error: %d bytes, want at least 8", len(data))
	}
	return &NCError{
		Class:  int16(binary.BigEndian.Uint16(data[0:2])),
		Group:  int16(binary.BigEndian.Uint16(data[2:4])),
		Number: int32(binary.BigEndian.Uint32(data[4:8])),
		Text:   decodeString(data[8:]),
	}, nil
}

// StackState is the program call stack.
type StackState struct {
	Line    uint32 `json:"line" yaml:"line"`
	Main    string `json:"main" yaml:"main"`
	Current string `json:"current" yaml:"current"`
}

// DecodeStack decodes the payload of runtime selector 53.
func DecodeStack(data []byte) (*StackState, error) {
	if len(data) < 4 {
		return nil, decodeError("stack: %d bytes, want at least 4", len(data))
	}
	s := &StackState{Line: binary.BigEndian.Uint32(data[0:4])}
	names := splitStrings(data[4:])
	if len(names) > 0 {
		s.Main = localPath(names[0])
	}
	if len(names) > 1 {
		s.Current = localPath(names[1])
	}
	return s, nil
}

// AxisPosition is one axis of an axis location report.
type AxisPosition struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
}

// DecodeAxisLocation decodes the payload of runtime selector 21. The string
// list carries all values first and all axis names second.
func DecodeAxisLocation(data []byte) ([]AxisPosition, error) {
	if len(data) < 2 {
		return nil, decodeError("axis location: %d bytes", len(data))
	}
	count := int(data[0])
	fields := splitStrings(data[2:])
	if len(fields) != 2*count {
		return nil, decodeError("axis location: %d strings for %d axes", len(fields), count)
	}

	axes := make([]AxisPosition, count)
	for i := 0; i < count; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
		if err != nil {
			return nil, decodeError("axis location: value %q: %v", fields[i], err)
		}
		axes[i] = AxisPosition{Name: strings.TrimSpace(fields[count+i]), Value: v}
	}
	return axes, nil
}
