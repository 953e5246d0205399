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

package lsv2test

import (
	"bytes"
	"encoding/binary"
	"sort"
	"strings"
	"sync"

	"github.com/edgeo-scada/lsv2"
)

// Attribute bits the controller reports for directories, per generation.
const (
	dirBitOld uint32 = 0x10
	dirBitNew uint32 = 1 << 28
)

// Controller is a stateful fake LSV2 controller. It keeps files,
// directories and PLC memory in memory and serves one client at a time.
//
// Fields may be set before the client connects. Override replaces the
// reply for a single command code.
type Controller struct {
	mu sync.Mutex

	Versions       map[byte]string
	Parameters     lsv2.SystemParameters
	Extended       bool
	SecureFileSend bool
	RejectLogins   map[lsv2.Login]bool
	Memory         map[uint32]byte
	Runtime        map[lsv2.RuntimeSelector][]byte
	MachineParams  map[string]string
	Drives         [][]byte
	ScopeChannels  [][]byte
	ScopeDetails   []byte
	ScopeBlocks    [][]byte
	DownloadChunk  int

	files     map[string][]byte
	dirs      map[string]bool
	cwd       string
	logins    map[lsv2.Login]bool
	overrides map[lsv2.Code]HandlerFunc
	received  []*lsv2.Telegram
	queue     []*lsv2.Telegram
	upload    *pendingUpload
	streaming bool
}

type pendingUpload struct {
	path string
	data bytes.Buffer
}

// NewController returns a new-interface milling controller with 4096 byte
// telegrams and secure file send enabled.
func NewController() *Controller {
	c := &Controller{
		Versions: map[byte]string{
			0: "TNC640",
			2: "340590 10 SP2",
			3: "PLC 1.2",
			4: "0000000000",
			5: "123456789",
			6: "Release 1",
			7: "SPLC 1.0",
		},
		Parameters: lsv2.SystemParameters{
			MarkersStart:     0x1000,
			MarkersCount:     64,
			InputsStart:      0x1100,
			InputsCount:      32,
			OutputsStart:     0x1200,
			OutputsCount:     32,
			WordsStart:       0x2000,
			WordsCount:       32,
			StringsStart:     0x3000,
			StringsCount:     4,
			MaxStringLength:  16,
			InputWordsStart:  0x4000,
			InputWordsCount:  8,
			OutputWordsStart: 0x4100,
			OutputWordsCount: 8,
			LSV2Version:      2,
			MaxBlockLength:   4096,
			ScopeChannels:    2,
		},
		SecureFileSend: true,
		RejectLogins:   make(map[lsv2.Login]bool),
		Memory:         make(map[uint32]byte),
		Runtime:        make(map[lsv2.RuntimeSelector][]byte),
		MachineParams:  make(map[string]string),
		DownloadChunk:  200,
		files:          make(map[string][]byte),
		dirs:           map[string]bool{"TNC:": true},
		cwd:            "TNC:",
		logins:         make(map[lsv2.Login]bool),
		overrides:      make(map[lsv2.Code]HandlerFunc),
	}
	return c
}

// Override replaces the handling of one command code.
func (c *Controller) Override(code lsv2.Code, fn HandlerFunc) {
	c.mu.Lock()
	c.overrides[code] = fn
	c.mu.Unlock()
}

// PutFile stores a file as if it had been uploaded. Paths use "/".
func (c *Controller) PutFile(path string, data []byte) {
	c.mu.Lock()
	c.files[key(path)] = append([]byte(nil), data...)
	c.mu.Unlock()
}

// File returns the stored content of a file.
func (c *Controller) File(path string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.files[key(path)]
	return data, ok
}

// MakeDir creates a directory.
func (c *Controller) MakeDir(path string) {
	c.mu.Lock()
	c.dirs[key(path)] = true
	c.mu.Unlock()
}

// HasDir reports whether a directory exists.
func (c *Controller) HasDir(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirs[key(path)]
}

// Received returns the codes of every telegram received so far.
func (c *Controller) Received() []lsv2.Code {
	c.mu.Lock()
	defer c.mu.Unlock()
	codes := make([]lsv2.Code, len(c.received))
	for i, t := range c.received {
		codes[i] = t.Code
	}
	return codes
}

// Requests returns every received telegram with the given code.
func (c *Controller) Requests(code lsv2.Code) []*lsv2.Telegram {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*lsv2.Telegram
	for _, t := range c.received {
		if t.Code == code {
			out = append(out, t)
		}
	}
	return out
}

// Logins returns the logins currently granted.
func (c *Controller) Logins() []lsv2.Login {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []lsv2.Login
	for l := range c.logins {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ResetReceived clears the request log.
func (c *Controller) ResetReceived() {
	c.mu.Lock()
	c.received = nil
	c.mu.Unlock()
}

// Handle implements Handler.
func (c *Controller) Handle(req *lsv2.Telegram) []*lsv2.Telegram {
	c.mu.Lock()
	c.received = append(c.received, req)
	override := c.overrides[req.Code]
	c.mu.Unlock()

	if override != nil {
		return override(req)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handleLocked(req)
}

func (c *Controller) handleLocked(req *lsv2.Telegram) []*lsv2.Telegram {
	p := req.Payload
	switch req.Code {
	case lsv2.CmdLogin:
		name := lsv2.Login(cstring(p))
		if c.RejectLogins[name] {
			return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeNoLogin))
		}
		c.logins[name] = true
		return reply(OK())

	case lsv2.CmdLogout:
		if len(p) == 0 {
			c.logins = make(map[lsv2.Login]bool)
		} else {
			delete(c.logins, lsv2.Login(cstring(p)))
		}
		return reply(OK())

	case lsv2.CmdVersion:
		sel := byte(0)
		if len(p) > 0 {
			sel = p[0]
		}
		v, ok := c.Versions[sel]
		if !ok {
			return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeWrongParameter))
		}
		return reply(T(lsv2.RspVersion, cbytes(v)))

	case lsv2.CmdParameters:
		return reply(T(lsv2.RspParameters, ParametersPayload(c.Parameters, c.Extended)))

	case lsv2.CmdSystemCommand:
		return c.systemCommand(p)

	case lsv2.CmdFileInfo:
		return c.fileInfo(cstring(p))

	case lsv2.CmdDirInfo:
		return reply(T(lsv2.RspDirInfo, DirectoryPayload(1<<20, c.cwd)))

	case lsv2.CmdChangeDir:
		dir := key(cstring(p))
		if !c.dirs[dir] {
			return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeNoDirectory))
		}
		c.cwd = dir
		return reply(OK())

	case lsv2.CmdMakeDir:
		dir := key(cstring(p))
		if c.dirs[dir] {
			return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeDirExists))
		}
		c.dirs[dir] = true
		return reply(OK())

	case lsv2.CmdDeleteDir:
		dir := key(cstring(p))
		if !c.dirs[dir] {
			return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeNoDirectory))
		}
		delete(c.dirs, dir)
		return reply(OK())

	case lsv2.CmdDeleteFile:
		name := key(cstring(p))
		if _, ok := c.files[name]; !ok {
			return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeNoFile))
		}
		delete(c.files, name)
		return reply(OK())

	case lsv2.CmdCopyFile, lsv2.CmdMoveFile:
		parts := strings.SplitN(string(p), "\x00", 3)
		if len(parts) < 2 {
			return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeBadFormat))
		}
		src, dst := key(parts[0]), key(parts[1])
		data, ok := c.files[src]
		if !ok {
			return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeNoFile))
		}
		c.files[dst] = append([]byte(nil), data...)
		if req.Code == lsv2.CmdMoveFile {
			delete(c.files, src)
		}
		return reply(OK())

	case lsv2.CmdDirRead:
		return c.dirRead(p)

	case lsv2.CmdSendFile:
		if len(p) < 2 {
			return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeBadFormat))
		}
		c.upload = &pendingUpload{path: key(cstring(p))}
		return reply(OK())

	case lsv2.RspFileData:
		if c.upload == nil {
			return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeUnexpectedTele))
		}
		c.upload.data.Write(p)
		return reply(OK())

	case lsv2.RspFinished:
		if c.upload == nil {
			return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeUnexpectedTele))
		}
		c.files[c.upload.path] = c.upload.data.Bytes()
		c.upload = nil
		if !c.SecureFileSend {
			return nil
		}
		return reply(OK())

	case lsv2.CmdReceiveFile:
		return c.receiveFile(cstring(p))

	case lsv2.RspOK:
		if c.streaming && len(c.queue) == 0 && len(c.ScopeBlocks) > 0 {
			c.queue = scopeQueue(c.ScopeBlocks)
		}
		if len(c.queue) == 0 {
			return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeUnexpectedTele))
		}
		next := c.queue[0]
		c.queue = c.queue[1:]
		return reply(next)

	case lsv2.RspBreak:
		c.queue = nil
		c.streaming = false
		return reply(T(lsv2.RspFinished, nil))

	case lsv2.CmdReadMemory:
		if len(p) != 5 {
			return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeBadFormat))
		}
		addr := binary.BigEndian.Uint32(p[0:4])
		out := make([]byte, int(p[4]))
		for i := range out {
			out[i] = c.Memory[addr+uint32(i)]
		}
		return reply(T(lsv2.RspMemory, out))

	case lsv2.CmdRuntimeInfo:
		if len(p) != 2 {
			return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeBadFormat))
		}
		data, ok := c.Runtime[lsv2.RuntimeSelector(binary.BigEndian.Uint16(p))]
		if !ok {
			return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeWrongParameter))
		}
		return reply(T(lsv2.RspRuntimeInfo, data))

	case lsv2.CmdReadMachineParam:
		if len(p) < 5 {
			return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeBadFormat))
		}
		v, ok := c.MachineParams[cstring(p[4:])]
		if !ok {
			return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeNoMachineParam))
		}
		return reply(T(lsv2.RspMachineParam, cbytes(v)))

	case lsv2.CmdSetMachineParam:
		if len(p) < 5 {
			return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeBadFormat))
		}
		parts := strings.SplitN(string(p[4:]), "\x00", 3)
		if len(parts) < 2 {
			return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeBadFormat))
		}
		c.MachineParams[parts[0]] = parts[1]
		return reply(OK())

	case lsv2.CmdScopeChannels:
		if len(c.ScopeChannels) == 0 {
			return reply(T(lsv2.RspFinished, nil))
		}
		c.queue = nil
		for _, ch := range c.ScopeChannels[1:] {
			c.queue = append(c.queue, T(lsv2.RspScopeChannels, ch))
		}
		c.queue = append(c.queue, T(lsv2.RspFinished, nil))
		return reply(T(lsv2.RspScopeChannels, c.ScopeChannels[0]))

	case lsv2.CmdSelectScope:
		return reply(OK())

	case lsv2.CmdScopeDetails:
		return reply(T(lsv2.RspScopeDetails, c.ScopeDetails))

	case lsv2.CmdScopeData:
		if len(c.ScopeBlocks) == 0 {
			return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeWrongParameter))
		}
		c.streaming = true
		c.queue = scopeQueue(c.ScopeBlocks[1:])
		return reply(T(lsv2.RspScopeData, c.ScopeBlocks[0]))
	}

	return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeUnknownTele))
}

func scopeQueue(blocks [][]byte) []*lsv2.Telegram {
	q := make([]*lsv2.Telegram, 0, len(blocks))
	for _, b := range blocks {
		q = append(q, T(lsv2.RspScopeData, b))
	}
	return q
}

func (c *Controller) systemCommand(p []byte) []*lsv2.Telegram {
	if len(p) < 2 {
		return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeBadFormat))
	}
	switch lsv2.SystemCommand(binary.BigEndian.Uint16(p)) {
	case lsv2.SysSecureFileSend:
		if !c.SecureFileSend {
			return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeWrongParameter))
		}
	case lsv2.SysSetBuffer512, lsv2.SysSetBuffer1024, lsv2.SysSetBuffer2048,
		lsv2.SysSetBuffer3072, lsv2.SysSetBuffer4096,
		lsv2.SysResetTNC, lsv2.SysScreenDump:
	default:
		return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeWrongParameter))
	}
	return reply(OK())
}

func (c *Controller) dirBit() uint32 {
	if lsv2.ParseControlType(c.Versions[0]).Generation() == lsv2.GenerationNew {
		return dirBitNew
	}
	return dirBitOld
}

func (c *Controller) fileInfo(path string) []*lsv2.Telegram {
	k := key(path)
	if data, ok := c.files[k]; ok {
		return reply(T(lsv2.RspFileInfo, FileEntryPayload(uint32(len(data)), 0, k)))
	}
	if c.dirs[k] {
		return reply(T(lsv2.RspFileInfo, FileEntryPayload(0, c.dirBit(), k)))
	}
	return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeNoFile))
}

func (c *Controller) dirRead(p []byte) []*lsv2.Telegram {
	if len(p) != 1 {
		return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeBadFormat))
	}

	var blocks []*lsv2.Telegram
	if p[0] == 3 {
		for _, d := range c.Drives {
			blocks = append(blocks, T(lsv2.RspDirRead, d))
		}
	} else {
		prefix := c.cwd + "/"
		var names []string
		for name := range c.files {
			if strings.HasPrefix(name, prefix) && !strings.Contains(name[len(prefix):], "/") {
				names = append(names, name)
			}
		}
		for name := range c.dirs {
			if strings.HasPrefix(name, prefix) && !strings.Contains(name[len(prefix):], "/") {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			size, attrs := uint32(len(c.files[name])), uint32(0)
			if c.dirs[name] {
				attrs = c.dirBit()
			}
			blocks = append(blocks, T(lsv2.RspDirRead, FileEntryPayload(size, attrs, name[len(prefix):])))
		}
	}

	if len(blocks) == 0 {
		return reply(T(lsv2.RspFinished, nil))
	}
	c.queue = append(blocks[1:], T(lsv2.RspFinished, nil))
	return reply(blocks[0])
}

func (c *Controller) receiveFile(path string) []*lsv2.Telegram {
	data, ok := c.files[key(path)]
	if !ok {
		return reply(Error(lsv2.ErrorClassTelegram, lsv2.CodeNoFile))
	}

	var chunks []*lsv2.Telegram
	for off := 0; off < len(data); off += c.DownloadChunk {
		end := off + c.DownloadChunk
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, T(lsv2.RspFileData, data[off:end]))
	}
	if len(chunks) == 0 {
		return reply(T(lsv2.RspFinished, nil))
	}
	c.queue = append(chunks[1:], T(lsv2.RspFinished, nil))
	return reply(chunks[0])
}

// T builds a telegram.
func T(code lsv2.Code, payload []byte) *lsv2.Telegram {
	return &lsv2.Telegram{Code: code, Payload: payload}
}

// OK builds a T_OK telegram.
func OK() *lsv2.Telegram {
	return T(lsv2.RspOK, nil)
}

// Error builds a T_ER telegram.
func Error(class, code uint8) *lsv2.Telegram {
	return T(lsv2.RspError, []byte{class, code})
}

func reply(t ...*lsv2.Telegram) []*lsv2.Telegram {
	return t
}

// ParametersPayload encodes p in the 120 byte layout, or the 124 byte
// layout with extended set.
func ParametersPayload(p lsv2.SystemParameters, extended bool) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, &p)
	if extended {
		return buf.Bytes()
	}
	return buf.Bytes()[:120]
}

// FileEntryPayload encodes an S_FI or S_DR entry.
func FileEntryPayload(size, attrs uint32, name string) []byte {
	out := make([]byte, 12, 12+len(name)+1)
	binary.BigEndian.PutUint32(out[0:4], size)
	binary.BigEndian.PutUint32(out[4:8], 1700000000)
	binary.BigEndian.PutUint32(out[8:12], attrs)
	return append(out, cbytes(strings.ReplaceAll(name, "/", `\`))...)
}

// DirectoryPayload encodes an S_DI record.
func DirectoryPayload(free uint32, path string) []byte {
	out := make([]byte, 164, 164+len(path)+1)
	binary.BigEndian.PutUint32(out[0:4], free)
	copy(out[4:8], "NAME")
	return append(out, cbytes(strings.ReplaceAll(path, "/", `\`))...)
}

// key normalizes a wire or local path for map lookups.
func key(p string) string {
	return strings.TrimSuffix(strings.ReplaceAll(p, `\`, "/"), "/")
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func cbytes(s string) []byte {
	return append([]byte(s), 0)
}

// DriveRecord encodes one S_DR drive record.
func DriveRecord(unit uint32, name string) []byte {
	width := 7
	if len(name) >= 4 && name[3] == ':' {
		width = 5
	}
	out := make([]byte, 15+width)
	binary.BigEndian.PutUint32(out[0:4], unit)
	copy(out[12:15], "DRV")
	copy(out[15:], name)
	return out
}
