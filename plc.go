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
	"regexp"
	"strconv"
)

// MemoryKind is a logical PLC address space.
type MemoryKind int

// Address spaces. MemoryNone is returned for addresses that do not parse.
const (
	MemoryNone MemoryKind = iota
	MemoryMarker
	MemoryInput
	MemoryOutput
	MemoryCounter
	MemoryTimer
	MemoryByte
	MemoryWord
	MemoryDWord
	MemoryString
	MemoryInputWord
	MemoryOutputWord
	MemoryInputDWord
	MemoryOutputDWord
)

// String returns the string representation of the memory kind.
func (k MemoryKind) String() string {
	switch k {
	case MemoryMarker:
		return "marker"
	case MemoryInput:
		return "input"
	case MemoryOutput:
		return "output"
	case MemoryCounter:
		return "counter"
	case MemoryTimer:
		return "timer"
	case MemoryByte:
		return "byte"
	case MemoryWord:
		return "word"
	case MemoryDWord:
		return "dword"
	case MemoryString:
		return "string"
	case MemoryInputWord:
		return "input word"
	case MemoryOutputWord:
		return "output word"
	case MemoryInputDWord:
		return "input dword"
	case MemoryOutputDWord:
		return "output dword"
	default:
		return "none"
	}
}

var plcAddressPattern = regexp.MustCompile(`^([MBWDIOS])([WD])?(\d+)$`)

// ResolveAddress parses an address such as "M100", "W20" or "IW8" into its
// address space and element index. Word addresses are divided by 2 and
// dword addresses by 4. Addresses that do not parse yield MemoryNone.
func ResolveAddress(address string) (MemoryKind, int) {
	m := plcAddressPattern.FindStringSubmatch(address)
	if m == nil {
		return MemoryNone, 0
	}
	n, err := strconv.Atoi(m[3])
	if err != nil {
		return MemoryNone, 0
	}

	kind, sub := m[1], m[2]
	if sub != "" && kind != "I" && kind != "O" {
		return MemoryNone, 0
	}

	switch kind + sub {
	case "M":
		return MemoryMarker, n
	case "B":
		return MemoryByte, n
	case "W":
		return MemoryWord, n / 2
	case "D":
		return MemoryDWord, n / 4
	case "S":
		return MemoryString, n
	case "I":
		return MemoryInput, n
	case "O":
		return MemoryOutput, n
	case "IW":
		return MemoryInputWord, n / 2
	case "OW":
		return MemoryOutputWord, n / 2
	case "ID":
		return MemoryInputDWord, n / 4
	case "OD":
		return MemoryOutputDWord, n / 4
	}
	return MemoryNone, 0
}

// maxMemoryRead is the largest byte count one R_MB may request.
const maxMemoryRead = 255

type memoryArea struct {
	start    uint32
	count    uint32
	elemSize int
}

// memoryAreaFor returns the base address, element bound and element size of
// kind from the system parameters.
func memoryAreaFor(kind MemoryKind, p *SystemParameters) (memoryArea, bool) {
	switch kind {
	case MemoryMarker:
		return memoryArea{p.MarkersStart, p.MarkersCount, 1}, true
	case MemoryInput:
		return memoryArea{p.InputsStart, p.InputsCount, 1}, true
	case MemoryOutput:
		return memoryArea{p.OutputsStart, p.OutputsCount, 1}, true
	case MemoryCounter:
		return memoryArea{p.CountersStart, p.CountersCount, 1}, true
	case MemoryTimer:
		return memoryArea{p.TimersStart, p.TimersCount, 1}, true
	case MemoryByte:
		return memoryArea{p.WordsStart, p.WordsCount * 2, 1}, true
	case MemoryWord:
		return memoryArea{p.WordsStart, p.WordsCount, 2}, true
	case MemoryDWord:
		return memoryArea{p.WordsStart, p.WordsCount / 2, 4}, true
	case MemoryString:
		return memoryArea{p.StringsStart, p.StringsCount, int(p.MaxStringLength)}, true
	case MemoryInputWord:
		return memoryArea{p.InputWordsStart, p.InputWordsCount, 2}, true
	case MemoryOutputWord:
		return memoryArea{p.OutputWordsStart, p.OutputWordsCount, 2}, true
	case MemoryInputDWord:
		return memoryArea{p.InputWordsStart, p.InputWordsCount / 2, 4}, true
	case MemoryOutputDWord:
		return memoryArea{p.OutputWordsStart, p.OutputWordsCount / 2, 4}, true
	}
	return memoryArea{}, false
}

// ReadPLCMemory reads count elements of kind starting at element start.
// Values are bool for markers, inputs, outputs, counters and timers, uint8
// for bytes, uint16 for words, uint32 for dwords and string for strings.
func (c *Client) ReadPLCMemory(ctx context.Context, kind MemoryKind, start, count int) ([]any, error) {
	const op = "read plc memory"
	if start < 0 || count <= 0 {
		return nil, inputError("start %d, count %d", start, count)
	}

	params, err := c.SystemParameters(ctx, false)
	if err != nil {
		return nil, newError(KindProtocol, op, err)
	}
	area, ok := memoryAreaFor(kind, params)
	if !ok {
		return nil, inputError("unknown memory kind %s", kind)
	}
	if uint64(start)+uint64(count) > uint64(area.count) {
		return nil, inputError("%s %d..%d exceeds %d elements", kind, start, start+count-1, area.count)
	}
	if area.elemSize == 0 || area.elemSize > maxMemoryRead {
		return nil, inputError("%s element size %d", kind, area.elemSize)
	}

	if err := c.Login(ctx, LoginPLCDebug, ""); err != nil {
		return nil, newError(KindProtocol, op, err)
	}

	if kind == MemoryString {
		values := make([]any, 0, count)
		for i := 0; i < count; i++ {
			addr := area.start + uint32((start+i)*area.elemSize)
			data, err := c.readMemory(ctx, addr, area.elemSize)
			if err != nil {
				return nil, newError(KindProtocol, op, err)
			}
			values = append(values, decodeString(data))
		}
		return values, nil
	}

	length := count * area.elemSize
	if length > maxMemoryRead {
		return nil, inputError("%d bytes exceed the %d byte read limit", length, maxMemoryRead)
	}
	data, err := c.readMemory(ctx, area.start+uint32(start*area.elemSize), length)
	if err != nil {
		return nil, newError(KindProtocol, op, err)
	}
	if len(data) != length {
		return nil, decodeError("plc memory: %d bytes, want %d", len(data), length)
	}
	return unpackMemory(kind, data, area.elemSize), nil
}

func (c *Client) readMemory(ctx context.Context, addr uint32, length int) ([]byte, error) {
	payload := make([]byte, 5)
	binary.BigEndian.PutUint32(payload[0:4], addr)
	payload[4] = byte(length)
	return c.exchange(ctx, CmdReadMemory, payload, RspMemory)
}

func unpackMemory(kind MemoryKind, data []byte, size int) []any {
	values := make([]any, 0, len(data)/size)
	for off := 0; off+size <= len(data); off += size {
		elem := data[off : off+size]
		switch kind {
		case MemoryMarker, MemoryInput, MemoryOutput, MemoryCounter, MemoryTimer:
			values = append(values, elem[0] != 0)
		case MemoryByte:
			values = append(values, elem[0])
		case MemoryWord, MemoryInputWord, MemoryOutputWord:
			values = append(values, binary.LittleEndian.Uint16(elem))
		case MemoryDWord, MemoryInputDWord, MemoryOutputDWord:
			values = append(values, binary.LittleEndian.Uint32(elem))
		}
	}
	return values
}

// ReadData reads the single element named by a PLC address such as "W20".
func (c *Client) ReadData(ctx context.Context, address string) (any, error) {
	kind, index := ResolveAddress(address)
	if kind == MemoryNone {
		return nil, inputError("invalid plc address %q", address)
	}
	values, err := c.ReadPLCMemory(ctx, kind, index, 1)
	if err != nil {
		return nil, err
	}
	return values[0], nil
}
