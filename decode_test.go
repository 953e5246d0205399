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
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func be32(v uint32) []byte { return binary.BigEndian.AppendUint32(nil, v) }
func be16(v uint16) []byte { return binary.BigEndian.AppendUint16(nil, v) }
func le64f(v float64) []byte {
	return binary.LittleEndian.AppendUint64(nil, math.Float64bits(v))
}

func join(parts ...[]byte) []byte { return bytes.Join(parts, nil) }

func TestParseControlType(t *testing.T) {
	tests := map[string]ControlType{
		"iTNC530":          ControlMillOld,
		"iTNC 530 HSCI":    ControlMillOld,
		"TNC640":           ControlMillNew,
		"TNC7":             ControlMillNew,
		"CNCPILOT640":      ControlLatheNew,
		"MANUALplus620":    ControlLatheNew,
		"SOMETHING ELSE 1": ControlUnknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseControlType(in), in)
	}
	assert.Equal(t, GenerationOld, ControlUnknown.Generation())
	assert.Equal(t, GenerationNew, ControlLatheNew.Generation())
}

func systemParametersFixture(maxBlock uint16, extended bool) []byte {
	p := SystemParameters{
		MarkersStart: 0x1000, MarkersCount: 100,
		WordsStart: 0x2000, WordsCount: 50,
		StringsStart: 0x3000, StringsCount: 4,
		MaxStringLength:  16,
		InputWordsStart:  0x4000,
		InputWordsCount:  8,
		LSV2Version:      2,
		MaxBlockLength:   maxBlock,
		PasswordKey:      0xCAFE,
		ScopeChannels:    12,
		HardwareVersion:  7,
		OutputWordsCount: 6,
	}
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, &p)
	if !extended {
		return buf.Bytes()[:systemParametersLen]
	}
	return buf.Bytes()
}

func TestDecodeSystemParameters(t *testing.T) {
	p, err := DecodeSystemParameters(systemParametersFixture(2048, false))
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1000), p.MarkersStart)
	assert.Equal(t, uint32(100), p.MarkersCount)
	assert.Equal(t, uint8(16), p.MaxStringLength)
	assert.Equal(t, uint32(0x4000), p.InputWordsStart)
	assert.Equal(t, uint16(2048), p.MaxBlockLength)
	assert.Equal(t, uint32(12), p.ScopeChannels)
	assert.Zero(t, p.PasswordKey, "120 byte layout has no key")

	p, err = DecodeSystemParameters(systemParametersFixture(4096, true))
	require.NoError(t, err)
	assert.Equal(t, uint32(0xCAFE), p.PasswordKey)
	assert.Equal(t, uint16(4096), p.MaxBlockLength)

	_, err = DecodeSystemParameters(make([]byte, 122))
	assert.True(t, IsDecodeError(err))

	for _, off := range []int{60, 85} {
		data := systemParametersFixture(2048, false)
		data[off] = 0x01
		_, err = DecodeSystemParameters(data)
		assert.True(t, IsDecodeError(err), "reserved byte %d", off)
	}
}

func TestDecodeFileEntry_Generations(t *testing.T) {
	name := []byte("TNC:\\nc_prog\\x.h\x00")

	old := join(be32(1234), be32(1700000000), be32(0x10|0x02), name)
	e, err := DecodeFileEntry(old, GenerationOld)
	require.NoError(t, err)
	assert.Equal(t, "TNC:/nc_prog/x.h", e.Name)
	assert.Equal(t, uint32(1234), e.Size)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), e.Modified)
	assert.True(t, e.IsDirectory)
	assert.True(t, e.Hidden)
	assert.False(t, e.Protected)

	// The same bits mean nothing on a new interface controller.
	e, err = DecodeFileEntry(old, GenerationNew)
	require.NoError(t, err)
	assert.False(t, e.IsDirectory)
	assert.False(t, e.Hidden)

	newer := join(be32(0), be32(0), be32(1<<28|1<<29), name)
	e, err = DecodeFileEntry(newer, GenerationNew)
	require.NoError(t, err)
	assert.True(t, e.IsDirectory)
	assert.True(t, e.Protected)
	assert.False(t, e.Selected)

	_, err = DecodeFileEntry(make([]byte, 12), GenerationOld)
	assert.True(t, IsDecodeError(err))
}

func TestDecodeDirectoryEntry(t *testing.T) {
	tags := make([]byte, 128)
	copy(tags, "NAMESIZE")
	attrs := make([]byte, 32)
	attrs[0] = 1
	data := join(be32(4096), tags, attrs, []byte("TNC:\\nc_prog\x00"))

	d, err := DecodeDirectoryEntry(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(4096), d.FreeSize)
	assert.Equal(t, "TNC:/nc_prog", d.Path)
	assert.Equal(t, "NAME", d.AttributeTypes[0])
	assert.Equal(t, "SIZE", d.AttributeTypes[1])
	assert.Len(t, d.AttributeTypes, 32)
	assert.Equal(t, byte(1), d.Attributes[0])

	_, err = DecodeDirectoryEntry(data[:163])
	assert.True(t, IsDecodeError(err))
}

func driveRecord(unit uint32, name string, width int) []byte {
	field := make([]byte, width)
	copy(field, name)
	return join(be32(unit), make([]byte, 4), be32(0), []byte("DRV"), field)
}

func TestDecodeDrives(t *testing.T) {
	data := join(
		driveRecord(1, "TNC:", 5),
		driveRecord(2, "RS232:", 7),
		driveRecord(3, "PLC:", 5),
		[]byte{0x00, 0x00}, // trailing bytes shorter than a record
	)

	drives, err := DecodeDrives(data)
	require.NoError(t, err)
	require.Len(t, drives, 3)
	assert.Equal(t, "TNC:", drives[0].Name)
	assert.Equal(t, "RS232:", drives[1].Name)
	assert.Equal(t, uint32(2), drives[1].Unit)
	assert.Equal(t, "PLC:", drives[2].Name)
	assert.Equal(t, "DRV", drives[2].Type)

	truncated := driveRecord(1, "RS232:", 7)[:18]
	_, err = DecodeDrives(truncated)
	assert.True(t, IsDecodeError(err))

	dirty := driveRecord(1, "TNC:", 5)
	dirty[5] = 0xFF
	_, err = DecodeDrives(dirty)
	assert.True(t, IsDecodeError(err))
}

func TestDecodeTool(t *testing.T) {
	short := join(be32(5), be16(1), be16(2))
	tool, err := DecodeTool(short)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), tool.Number)
	assert.Equal(t, uint16(1), tool.Index)
	assert.Equal(t, "Z", tool.Axis)
	assert.Nil(t, tool.Length)

	long := join(short, le64f(42.5), le64f(3))
	tool, err = DecodeTool(long)
	require.NoError(t, err)
	require.NotNil(t, tool.Length)
	assert.InDelta(t, 42.5, *tool.Length, 1e-9)
	assert.InDelta(t, 3.0, *tool.Radius, 1e-9)

	_, err = DecodeTool(join(be32(5), be16(1), be16(3)))
	assert.True(t, IsDecodeError(err), "axis 3 is out of range")
	_, err = DecodeTool(make([]byte, 10))
	assert.True(t, IsDecodeError(err))
}

func TestDecodeOverride(t *testing.T) {
	o, err := DecodeOverride(join(be32(10000), be32(5050), be32(2500)))
	require.NoError(t, err)
	assert.InDelta(t, 100.0, o.Feed, 1e-9)
	assert.InDelta(t, 50.5, o.Spindle, 1e-9)
	assert.InDelta(t, 25.0, o.Rapid, 1e-9)

	_, err = DecodeOverride(make([]byte, 13))
	assert.True(t, IsDecodeError(err))
}

func TestDecodeNCError(t *testing.T) {
	data := join(be16(0xFFFF), be16(3), be32(1001), []byte("Emergency stop\x00"))
	e, err := DecodeNCError(data)
	require.NoError(t, err)
	assert.Equal(t, int16(-1), e.Class)
	assert.Equal(t, int16(3), e.Group)
	assert.Equal(t, int32(1001), e.Number)
	assert.Equal(t, "Emergency stop", e.Text)

	_, err = DecodeNCError(make([]byte, 7))
	assert.True(t, IsDecodeError(err))
}

func TestDecodeStack(t *testing.T) {
	s, err := DecodeStack(join(be32(17), []byte("TNC:\\main.h\x00TNC:\\sub.h\x00")))
	require.NoError(t, err)
	assert.Equal(t, uint32(17), s.Line)
	assert.Equal(t, "TNC:/main.h", s.Main)
	assert.Equal(t, "TNC:/sub.h", s.Current)
}

func TestDecodeStates(t *testing.T) {
	es, err := DecodeExecutionState(be16(4))
	require.NoError(t, err)
	assert.Equal(t, ExecAutomatic, es)
	_, err = DecodeExecutionState(be16(6))
	assert.True(t, IsDecodeError(err))

	ps, err := DecodeProgramState(be16(7))
	require.NoError(t, err)
	assert.Equal(t, ProgramIdle, ps)
	_, err = DecodeProgramState(be16(9))
	assert.True(t, IsDecodeError(err))
	_, err = DecodeProgramState([]byte{0x01})
	assert.True(t, IsDecodeError(err))
}

func TestDecodeAxisLocation(t *testing.T) {
	data := join([]byte{2, 0}, []byte("1.500\x00-20.25\x00X\x00Y\x00"))
	axes, err := DecodeAxisLocation(data)
	require.NoError(t, err)
	require.Len(t, axes, 2)
	assert.Equal(t, AxisPosition{Name: "X", Value: 1.5}, axes[0])
	assert.Equal(t, AxisPosition{Name: "Y", Value: -20.25}, axes[1])

	_, err = DecodeAxisLocation(join([]byte{3, 0}, []byte("1\x002\x00X\x00Y\x00")))
	assert.True(t, IsDecodeError(err), "count mismatch")

	_, err = DecodeAxisLocation(join([]byte{1, 0}, []byte("abc\x00X\x00")))
	assert.True(t, IsDecodeError(err), "non numeric value")
}

func scopeChannelFixture(channel uint16, typ ScopeChannelType, interval uint32, name string, names ...string) []byte {
	nameField := make([]byte, 16)
	copy(nameField, name)
	rec := join(be16(channel), be16(uint16(typ)), make([]byte, 4),
		be32(interval), be32(interval), make([]byte, 6), nameField)

	layout := scopeLayouts[typ]
	if layout.names == 0 {
		return append(rec, make([]byte, layout.length-len(rec))...)
	}
	for i := 0; i < layout.names; i++ {
		f := make([]byte, layout.nameSize)
		if i < len(names) {
			copy(f, names[i])
		}
		rec = append(rec, f...)
	}
	return rec
}

func TestDecodeScopeChannels(t *testing.T) {
	single := scopeChannelFixture(0, ScopeChannelSingle, 600, "Spindle", "S actual")
	axes := scopeChannelFixture(1, ScopeChannelAxes, 3000, "Position", "X", "Y", "Z")
	plc := scopeChannelFixture(5, ScopeChannelPLC, 21000, "PLC")
	require.Len(t, single, 59)
	require.Len(t, axes, 94)
	require.Len(t, plc, 106)

	signals, err := DecodeScopeChannels(join(single, axes, plc))
	require.NoError(t, err)
	require.Len(t, signals, 1+7+1)

	assert.Equal(t, "S actual", signals[0].SignalName)
	assert.Equal(t, uint32(600), signals[0].MinInterval)
	assert.Equal(t, "Position", signals[1].ChannelName)
	assert.Equal(t, "Y", signals[2].SignalName)
	assert.Equal(t, uint16(1), signals[2].Signal)
	assert.Equal(t, ScopeChannelPLC, signals[8].ChannelType)
	assert.Equal(t, "PLC", signals[8].SignalName)
}

func TestDecodeScopeChannels_Invalid(t *testing.T) {
	good := scopeChannelFixture(0, ScopeChannelSingle, 600, "Spindle", "S")

	tests := map[string][]byte{
		"reserved not zero": func() []byte { b := bytes.Clone(good); b[5] = 1; return b }(),
		"interval mismatch": func() []byte { b := bytes.Clone(good); b[15] = 0xFF; return b }(),
		"unknown type":      func() []byte { b := bytes.Clone(good); b[3] = 9; return b }(),
		"short record":      good[:58],
	}
	for name, data := range tests {
		_, err := DecodeScopeChannels(data)
		assert.True(t, IsDecodeError(err), name)
	}
}

func TestSignalDetailsAndApply(t *testing.T) {
	signals := []*ScopeSignal{{Channel: 1, Signal: 0}, {Channel: 1, Signal: 2}}
	unit := make([]byte, 10)
	copy(unit, "mm")
	data := join(
		be16(1), be16(0), unit, le64f(0.001), le64f(0),
		be16(1), be16(2), unit, le64f(0.5), le64f(10),
	)

	require.NoError(t, applySignalDetails(data, signals))
	assert.Equal(t, "mm", signals[0].Unit)
	assert.InDelta(t, 1.0, signals[0].Apply(1000), 1e-9)
	assert.InDelta(t, 15.0, signals[1].Apply(10), 1e-9)

	err := applySignalDetails(data[:30], signals)
	assert.True(t, IsDecodeError(err))

	swapped := []*ScopeSignal{{Channel: 1, Signal: 2}, {Channel: 1, Signal: 0}}
	assert.True(t, IsDecodeError(applySignalDetails(data, swapped)))
}

func TestDecodeScopeReading(t *testing.T) {
	data := be32(99)
	for sig := 0; sig < 2; sig++ {
		for i := 0; i < 32; i++ {
			data = append(data, be32(uint32(int32(sig*100-i)))...)
		}
	}

	r, err := DecodeScopeReading(data, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(99), r.Timestamp)
	require.Len(t, r.Samples, 2)
	assert.Equal(t, int32(-31), r.Samples[0][31])
	assert.Equal(t, int32(100), r.Samples[1][0])

	_, err = DecodeScopeReading(data, 3)
	assert.True(t, IsDecodeError(err))
	_, err = DecodeScopeReading(data[:len(data)-4], 2)
	assert.True(t, IsDecodeError(err))
}
