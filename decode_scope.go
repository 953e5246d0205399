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
)

// ScopeChannelType selects the layout of a channel description.
type ScopeChannelType uint16

const (
	ScopeChannelSingle       ScopeChannelType = 0
	ScopeChannelAxes         ScopeChannelType = 1
	ScopeChannelDriveCurrent ScopeChannelType = 2
	ScopeChannelPLC          ScopeChannelType = 3
)

// String returns the string representation of the channel type.
func (t ScopeChannelType) String() string {
	switch t {
	case ScopeChannelSingle:
		return "single"
	case ScopeChannelAxes:
		return "axes"
	case ScopeChannelDriveCurrent:
		return "drive current"
	case ScopeChannelPLC:
		return "plc"
	default:
		return "unknown"
	}
}

type scopeLayout struct {
	length   int
	names    int
	nameSize int
}

// Channel description layouts: total record length and the signal name
// table following the common header.
var scopeLayouts = map[ScopeChannelType]scopeLayout{
	ScopeChannelSingle:       {length: 59, names: 1, nameSize: 21},
	ScopeChannelAxes:         {length: 94, names: 7, nameSize: 8},
	ScopeChannelDriveCurrent: {length: 98, names: 5, nameSize: 12},
	ScopeChannelPLC:          {length: 106},
}

const (
	scopeHeaderLen     = 38
	scopeSamplesPerSig = 32
	scopeSignalLen     = scopeSamplesPerSig * 4
	scopeDetailLen     = 30
)

// ScopeSignal is one recordable signal of a scope channel. Unit, Factor and
// Offset are filled in by ScopeSignalDetails.
type ScopeSignal struct {
	Channel     uint16           `json:"channel" yaml:"channel"`
	ChannelName string           `json:"channel_name" yaml:"channel_name"`
	ChannelType ScopeChannelType `json:"channel_type" yaml:"channel_type"`
	Signal      uint16           `json:"signal" yaml:"signal"`
	SignalName  string           `json:"signal_name" yaml:"signal_name"`
	MinInterval uint32           `json:"min_interval" yaml:"min_interval"`
	Unit        string           `json:"unit,omitempty" yaml:"unit,omitempty"`
	Factor      float64          `json:"factor" yaml:"factor"`
	Offset      float64          `json:"offset" yaml:"offset"`
}

// Apply converts a raw sample to physical units.
func (s *ScopeSignal) Apply(raw int32) float64 {
	return float64(raw)*s.Factor + s.Offset
}

// DecodeScopeChannels decodes the channel descriptions packed in one S_OC
// payload.
func DecodeScopeChannels(data []byte) ([]*ScopeSignal, error) {
	var signals []*ScopeSignal
	for off := 0; off < len(data); {
		rec := data[off:]
		if len(rec) < scopeHeaderLen {
			return nil, decodeError("scope channel at %d: %d bytes", off, len(rec))
		}
		typ := ScopeChannelType(binary.BigEndian.Uint16(rec[2:4]))
		layout, ok := scopeLayouts[typ]
		if !ok {
			return nil, decodeError("scope channel at %d: type %d out of range", off, typ)
		}
		if len(rec) < layout.length {
			return nil, decodeError("scope channel at %d: %d bytes for type %s, want %d",
				off, len(rec), typ, layout.length)
		}
		s, err := decodeScopeChannel(rec[:layout.length], typ, layout)
		if err != nil {
			return nil, err
		}
		signals = append(signals, s...)
		off += layout.length
	}
	return signals, nil
}

func decodeScopeChannel(rec []byte, typ ScopeChannelType, layout scopeLayout) ([]*ScopeSignal, error) {
	if !allZero(rec[4:8]) || !allZero(rec[16:22]) {
		return nil, decodeError("scope channel: reserved bytes not zero")
	}
	interval := binary.BigEndian.Uint32(rec[8:12])
	if dup := binary.BigEndian.Uint32(rec[12:16]); dup != interval {
		return nil, decodeError("scope channel: interval %d does not match copy %d", interval, dup)
	}

	channel := binary.BigEndian.Uint16(rec[0:2])
	name := decodeString(rec[22:scopeHeaderLen])

	newSignal := func(idx uint16, signalName string) *ScopeSignal {
		return &ScopeSignal{
			Channel:     channel,
			ChannelName: name,
			ChannelType: typ,
			Signal:      idx,
			SignalName:  signalName,
			MinInterval: interval,
			Factor:      1,
		}
	}

	if layout.names == 0 {
		return []*ScopeSignal{newSignal(0, name)}, nil
	}
	signals := make([]*ScopeSignal, 0, layout.names)
	for i := 0; i < layout.names; i++ {
		off := scopeHeaderLen + i*layout.nameSize
		signals = append(signals, newSignal(uint16(i), decodeString(rec[off:off+layout.nameSize])))
	}
	return signals, nil
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// applySignalDetails fills unit, factor and offset from an S_OP payload.
// Records must come in the order the signals were selected.
func applySignalDetails(data []byte, signals []*ScopeSignal) error {
	if len(data) != len(signals)*scopeDetailLen {
		return decodeError("signal details: %d bytes for %d signals", len(data), len(signals))
	}
	for i, s := range signals {
		rec := data[i*scopeDetailLen : (i+1)*scopeDetailLen]
		channel := binary.BigEndian.Uint16(rec[0:2])
		signal := binary.BigEndian.Uint16(rec[2:4])
		if channel != s.Channel || signal != s.Signal {
			return decodeError("signal details: record %d is %d/%d, want %d/%d",
				i, channel, signal, s.Channel, s.Signal)
		}
		s.Unit = decodeString(rec[4:14])
		s.Factor = math.Float64frombits(binary.LittleEndian.Uint64(rec[14:22]))
		s.Offset = math.Float64frombits(binary.LittleEndian.Uint64(rec[22:30]))
	}
	return nil
}

// ScopeReading is one S_OD block: 32 raw samples per selected signal.
type ScopeReading struct {
	Timestamp uint32    `json:"timestamp" yaml:"timestamp"`
	Samples   [][]int32 `json:"samples" yaml:"samples"`
}

// DecodeScopeReading decodes an S_OD payload for signalCount signals.
func DecodeScopeReading(data []byte, signalCount int) (*ScopeReading, error) {
	if signalCount <= 0 {
		return nil, decodeError("scope reading: no signals selected")
	}
	if len(data) < 4 {
		return nil, decodeError("scope reading: %d bytes", len(data))
	}
	body := len(data) - 4
	if body%signalCount != 0 || body/signalCount != scopeSignalLen {
		return nil, decodeError("scope reading: %d bytes for %d signals, want %d per signal",
			body, signalCount, scopeSignalLen)
	}

	r := &ScopeReading{
		Timestamp: binary.BigEndian.Uint32(data[0:4]),
		Samples:   make([][]int32, signalCount),
	}
	for i := range r.Samples {
		base := 4 + i*scopeSignalLen
		values := make([]int32, scopeSamplesPerSig)
		for j := range values {
			off := base + j*4
			values[j] = int32(binary.BigEndian.Uint32(data[off : off+4]))
		}
		r.Samples[i] = values
	}
	return r, nil
}
