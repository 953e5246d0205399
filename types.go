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

// Package lsv2 provides a client for the LSV2 protocol spoken by
// HEIDENHAIN-style CNC controllers over TCP.
package lsv2

import "time"

// Code is a four character telegram tag.
type Code string

// Commands sent by the client.
const (
	CmdLogin            Code = "A_LG"
	CmdLogout           Code = "A_LO"
	CmdSystemCommand    Code = "C_CC"
	CmdChangeDir        Code = "C_DC"
	CmdDeleteDir        Code = "C_DD"
	CmdMakeDir          Code = "C_DM"
	CmdCopyFile         Code = "C_FC"
	CmdDeleteFile       Code = "C_FD"
	CmdSendFile         Code = "C_FL"
	CmdMoveFile         Code = "C_FR"
	CmdSetMachineParam  Code = "C_MC"
	CmdSelectScope      Code = "C_OC"
	CmdDirInfo          Code = "R_DI"
	CmdDirRead          Code = "R_DR"
	CmdFileInfo         Code = "R_FI"
	CmdReceiveFile      Code = "R_FL"
	CmdReadMemory       Code = "R_MB"
	CmdReadMachineParam Code = "R_MC"
	CmdScopeChannels    Code = "R_OC"
	CmdScopeData        Code = "R_OD"
	CmdScopeDetails     Code = "R_OP"
	CmdParameters       Code = "R_PR"
	CmdRuntimeInfo      Code = "R_RI"
	CmdVersion          Code = "R_VR"
)

// Responses sent by the controller.
const (
	RspDirInfo       Code = "S_DI"
	RspDirRead       Code = "S_DR"
	RspFileInfo      Code = "S_FI"
	RspFileData      Code = "S_FL"
	RspMemory        Code = "S_MB"
	RspMachineParam  Code = "S_MC"
	RspScopeChannels Code = "S_OC"
	RspScopeData     Code = "S_OD"
	RspScopeDetails  Code = "S_OP"
	RspParameters    Code = "S_PR"
	RspRuntimeInfo   Code = "S_RI"
	RspVersion       Code = "S_VR"
	RspOK            Code = "T_OK"
	RspError         Code = "T_ER"
	RspFinished      Code = "T_FD"
	RspBreak         Code = "T_BD"
)

// RspNone marks an exchange that does not wait for a reply.
const RspNone Code = ""

var knownCommands = map[Code]struct{}{
	CmdLogin: {}, CmdLogout: {}, CmdSystemCommand: {}, CmdChangeDir: {},
	CmdDeleteDir: {}, CmdMakeDir: {}, CmdCopyFile: {}, CmdDeleteFile: {},
	CmdSendFile: {}, CmdMoveFile: {}, CmdSetMachineParam: {}, CmdSelectScope: {},
	CmdDirInfo: {}, CmdDirRead: {}, CmdFileInfo: {}, CmdReceiveFile: {},
	CmdReadMemory: {}, CmdReadMachineParam: {}, CmdScopeChannels: {},
	CmdScopeData: {}, CmdScopeDetails: {}, CmdParameters: {},
	CmdRuntimeInfo: {}, CmdVersion: {},
}

var knownResponses = map[Code]struct{}{
	RspDirInfo: {}, RspDirRead: {}, RspFileInfo: {}, RspFileData: {},
	RspMemory: {}, RspMachineParam: {}, RspScopeChannels: {}, RspScopeData: {},
	RspScopeDetails: {}, RspParameters: {}, RspRuntimeInfo: {}, RspVersion: {},
	RspOK: {}, RspError: {}, RspFinished: {}, RspBreak: {},
}

// IsCommand reports whether c belongs to the command vocabulary.
func (c Code) IsCommand() bool {
	_, ok := knownCommands[c]
	return ok
}

// IsResponse reports whether c belongs to the response vocabulary.
func (c Code) IsResponse() bool {
	_, ok := knownResponses[c]
	return ok
}

// String returns the tag itself.
func (c Code) String() string {
	return string(c)
}

// Login is a named privilege level granted by the controller.
type Login string

// Known logins.
const (
	LoginInspect      Login = "INSPECT"
	LoginDiagnostics  Login = "DIAGNOSTICS"
	LoginPLCDebug     Login = "PLCDEBUG"
	LoginFileTransfer Login = "FILE"
	LoginMonitor      Login = "MONITOR"
	LoginDSP          Login = "DSP"
	LoginDNC          Login = "DNC"
	LoginScope        Login = "OSZI"
	LoginFilePLC      Login = "FILEPLC"
	LoginFileSys      Login = "FILESYS"
	LoginData         Login = "DATA"
)

// AllLogins lists every login the client knows about.
var AllLogins = []Login{
	LoginInspect, LoginDiagnostics, LoginPLCDebug, LoginFileTransfer,
	LoginMonitor, LoginDSP, LoginDNC, LoginScope, LoginFilePLC,
	LoginFileSys, LoginData,
}

// SafeLogins is the allow list used while safe mode is active.
var SafeLogins = []Login{
	LoginInspect, LoginFileTransfer, LoginMonitor, LoginDNC, LoginScope,
}

// SystemCommand is the selector carried in the first two bytes of C_CC.
type SystemCommand uint16

// System command selectors.
const (
	SysSetBuffer1024  SystemCommand = 1
	SysSetBuffer512   SystemCommand = 2
	SysSetBuffer2048  SystemCommand = 3
	SysSetBuffer3072  SystemCommand = 4
	SysSetBuffer4096  SystemCommand = 5
	SysResetTNC       SystemCommand = 6
	SysSecureFileSend SystemCommand = 7
	SysScreenDump     SystemCommand = 8
)

// SafeSystemCommands is the allow list used while safe mode is active.
var SafeSystemCommands = []SystemCommand{
	SysSetBuffer1024, SysSetBuffer512, SysSetBuffer2048,
	SysSetBuffer3072, SysSetBuffer4096, SysSecureFileSend,
}

// String returns a readable name for the selector.
func (s SystemCommand) String() string {
	switch s {
	case SysSetBuffer1024:
		return "SetBuffer1024"
	case SysSetBuffer512:
		return "SetBuffer512"
	case SysSetBuffer2048:
		return "SetBuffer2048"
	case SysSetBuffer3072:
		return "SetBuffer3072"
	case SysSetBuffer4096:
		return "SetBuffer4096"
	case SysResetTNC:
		return "ResetTNC"
	case SysSecureFileSend:
		return "SecureFileSend"
	case SysScreenDump:
		return "ScreenDump"
	default:
		return "Unknown"
	}
}

// versionSelector is the one byte parameter of R_VR.
type versionSelector uint8

const (
	versionNC       versionSelector = 2
	versionPLC      versionSelector = 3
	versionOptions  versionSelector = 4
	versionID       versionSelector = 5
	versionRelease  versionSelector = 6
	versionSafetyPL versionSelector = 7
)

// RuntimeSelector is the 16-bit parameter of R_RI.
type RuntimeSelector uint16

// Runtime information selectors.
const (
	RunFirstError      RuntimeSelector = 1
	RunNextError       RuntimeSelector = 2
	RunAxisLocation    RuntimeSelector = 21
	RunExecutionState  RuntimeSelector = 26
	RunSelectedProgram RuntimeSelector = 27
	RunProgramState    RuntimeSelector = 28
	RunCurrentTool     RuntimeSelector = 51
	RunOverride        RuntimeSelector = 52
	RunProgramStack    RuntimeSelector = 53
)

// dirReadMode is the one byte parameter of R_DR.
type dirReadMode uint8

const (
	dirReadSingle dirReadMode = 1
	dirReadDrives dirReadMode = 3
)

// Protocol constants.
const (
	// HeaderSize is the telegram header size: u32 length plus four byte code.
	HeaderSize = 8

	// DefaultBufferSize is the buffer size in effect before negotiation.
	DefaultBufferSize = 256

	// MaxBufferSize is the largest buffer size the client negotiates.
	MaxBufferSize = 4096

	// chunkReserve is the room kept free in every upload chunk.
	chunkReserve = 10

	// DefaultTimeout is the default socket timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultPort is the LSV2 TCP port.
	DefaultPort = 19000
)

// bufferLadder lists the negotiable buffer sizes, largest first, with the
// system command selecting each of them.
var bufferLadder = []struct {
	size    int
	command SystemCommand
}{
	{4096, SysSetBuffer4096},
	{3072, SysSetBuffer3072},
	{2048, SysSetBuffer2048},
	{1024, SysSetBuffer1024},
	{512, SysSetBuffer512},
	{256, 0},
}

// ControlType identifies the controller family.
type ControlType int

// Controller families.
const (
	ControlUnknown ControlType = iota
	ControlMillOld
	ControlMillNew
	ControlLatheNew
)

// String returns the string representation of the control type.
func (c ControlType) String() string {
	switch c {
	case ControlMillOld:
		return "mill (old interface)"
	case ControlMillNew:
		return "mill (new interface)"
	case ControlLatheNew:
		return "lathe (new interface)"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c ControlType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Generation returns the file interface generation of the control type.
func (c ControlType) Generation() Generation {
	switch c {
	case ControlMillNew, ControlLatheNew:
		return GenerationNew
	default:
		return GenerationOld
	}
}

// Generation selects between the two incompatible file attribute layouts.
type Generation int

const (
	GenerationOld Generation = iota
	GenerationNew
)

// TransferMode selects how file content is encoded on the wire.
type TransferMode uint8

const (
	ModeText   TransferMode = 0x00
	ModeBinary TransferMode = 0x01
)

// String returns the string representation of the transfer mode.
func (m TransferMode) String() string {
	if m == ModeBinary {
		return "binary"
	}
	return "text"
}

// ConnectionState represents the state of a client connection.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

// String returns the string representation of the connection state.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}
