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
	"strings"
)

// VersionInfo holds the version strings reported by R_VR.
type VersionInfo struct {
	Control   string      `json:"control" yaml:"control"`
	NC        string      `json:"nc" yaml:"nc"`
	PLC       string      `json:"plc" yaml:"plc"`
	Options   string      `json:"options" yaml:"options"`
	ID        string      `json:"id" yaml:"id"`
	Release   string      `json:"release" yaml:"release"`
	SafetyPLC string      `json:"safety_plc,omitempty" yaml:"safety_plc,omitempty"`
	Type      ControlType `json:"type" yaml:"type"`
}

var controlFamilies = []struct {
	prefix string
	typ    ControlType
}{
	{"ITNC530", ControlMillOld},
	{"ITNC 530", ControlMillOld},
	{"TNC 426", ControlMillOld},
	{"TNC 430", ControlMillOld},
	{"TNC640", ControlMillNew},
	{"TNC620", ControlMillNew},
	{"TNC320", ControlMillNew},
	{"TNC128", ControlMillNew},
	{"TNC7", ControlMillNew},
	{"CNCPILOT640", ControlLatheNew},
	{"MANUALPLUS620", ControlLatheNew},
}

// ParseControlType derives the controller family from the control version
// string.
func ParseControlType(control string) ControlType {
	s := strings.ToUpper(strings.TrimSpace(control))
	for _, f := range controlFamilies {
		if strings.HasPrefix(s, f.prefix) {
			return f.typ
		}
	}
	return ControlUnknown
}

// Lengths of the two S_PR layouts.
const (
	systemParametersLen         = 120
	systemParametersExtendedLen = 124
)

// SystemParameters is the capability record returned by R_PR.
type SystemParameters struct {
	MarkersStart  uint32 `json:"markers_start" yaml:"markers_start"`
	MarkersCount  uint32 `json:"markers_count" yaml:"markers_count"`
	InputsStart   uint32 `json:"inputs_start" yaml:"inputs_start"`
	InputsCount   uint32 `json:"inputs_count" yaml:"inputs_count"`
	OutputsStart  uint32 `json:"outputs_start" yaml:"outputs_start"`
	OutputsCount  uint32 `json:"outputs_count" yaml:"outputs_count"`
	CountersStart uint32 `json:"counters_start" yaml:"counters_start"`
	CountersCount uint32 `json:"counters_count" yaml:"counters_count"`
	TimersStart   uint32 `json:"timers_start" yaml:"timers_start"`
	TimersCount   uint32 `json:"timers_count" yaml:"timers_count"`
	WordsStart    uint32 `json:"words_start" yaml:"words_start"`
	WordsCount    uint32 `json:"words_count" yaml:"words_count"`
	StringsStart  uint32 `json:"strings_start" yaml:"strings_start"`
	StringsCount  uint32 `json:"strings_count" yaml:"strings_count"`

	MaxStringLength uint8 `json:"max_string_length" yaml:"max_string_length"`
	_               [7]byte

	InputWordsStart  uint32 `json:"input_words_start" yaml:"input_words_start"`
	InputWordsCount  uint32 `json:"input_words_count" yaml:"input_words_count"`
	OutputWordsStart uint32 `json:"output_words_start" yaml:"output_words_start"`
	OutputWordsCount uint32 `json:"output_words_count" yaml:"output_words_count"`
	_                [4]uint32

	LSV2Version      uint8  `json:"lsv2_version" yaml:"lsv2_version"`
	LSV2VersionFlags uint8  `json:"lsv2_version_flags" yaml:"lsv2_version_flags"`
	MaxBlockLength   uint16 `json:"max_block_length" yaml:"max_block_length"`
	BinaryVersion    uint8  `json:"binary_version" yaml:"binary_version"`
	BinaryRevision   uint8  `json:"binary_revision" yaml:"binary_revision"`
	ISOVersion       uint8  `json:"iso_version" yaml:"iso_version"`
	ISORevision      uint8  `json:"iso_revision" yaml:"iso_revision"`

	HardwareVersion    uint32 `json:"hardware_version" yaml:"hardware_version"`
	LSV2VersionFlagsEx uint32 `json:"lsv2_version_flags_ex" yaml:"lsv2_version_flags_ex"`
	MaxTraceLines      uint32 `json:"max_trace_lines" yaml:"max_trace_lines"`
	ScopeChannels      uint32 `json:"scope_channels" yaml:"scope_channels"`

	// PasswordKey is zero for controllers sending the 120 byte layout.
	PasswordKey uint32 `json:"password_key" yaml:"password_key"`
}

// DecodeSystemParameters decodes an S_PR payload. The payload length
// selects the layout.
func DecodeSystemParameters(data []byte) (*SystemParameters, error) {
	switch len(data) {
	case systemParametersLen:
		data = append(append([]byte(nil), data...), 0, 0, 0, 0)
	case systemParametersExtendedLen:
	default:
		return nil, decodeError("system parameters: %d bytes, want %d or %d",
			len(data), systemParametersLen, systemParametersExtendedLen)
	}

	// Reserved regions after MaxStringLength and OutputWordsCount.
	if !allZero(data[57:64]) || !allZero(data[80:96]) {
		return nil, decodeError("system parameters: reserved bytes not zero")
	}

	var p SystemParameters
	if err := binary.Read(bytes.NewReader(data), binary.BigEndian, &p); err != nil {
		return nil, decodeError("system parameters: %v", err)
	}
	return &p, nil
}
