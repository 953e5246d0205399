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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveAddress(t *testing.T) {
	tests := []struct {
		addr  string
		kind  MemoryKind
		index int
	}{
		{"M100", MemoryMarker, 100},
		{"B7", MemoryByte, 7},
		{"W20", MemoryWord, 10},
		{"W21", MemoryWord, 10},
		{"D8", MemoryDWord, 2},
		{"D11", MemoryDWord, 2},
		{"S3", MemoryString, 3},
		{"I5", MemoryInput, 5},
		{"O12", MemoryOutput, 12},
		{"IW8", MemoryInputWord, 4},
		{"OW6", MemoryOutputWord, 3},
		{"ID16", MemoryInputDWord, 4},
		{"OD4", MemoryOutputDWord, 1},
		{"MW10", MemoryNone, 0},
		{"X1", MemoryNone, 0},
		{"M", MemoryNone, 0},
		{"m100", MemoryNone, 0},
		{"", MemoryNone, 0},
	}

	for _, tt := range tests {
		kind, index := ResolveAddress(tt.addr)
		assert.Equal(t, tt.kind, kind, tt.addr)
		assert.Equal(t, tt.index, index, tt.addr)
	}
}

func TestUnpackMemory(t *testing.T) {
	words := unpackMemory(MemoryWord, []byte{0x34, 0x12, 0xFF, 0x00}, 2)
	assert.Equal(t, []any{uint16(0x1234), uint16(0x00FF)}, words)

	dwords := unpackMemory(MemoryDWord, []byte{0x78, 0x56, 0x34, 0x12}, 4)
	assert.Equal(t, []any{uint32(0x12345678)}, dwords)

	markers := unpackMemory(MemoryMarker, []byte{0x00, 0x01, 0x02}, 1)
	assert.Equal(t, []any{false, true, true}, markers)
}

func TestMemoryAreaFor(t *testing.T) {
	p := &SystemParameters{WordsStart: 0x100, WordsCount: 10, InputWordsCount: 6, MaxStringLength: 32}

	area, ok := memoryAreaFor(MemoryByte, p)
	assert.True(t, ok)
	assert.Equal(t, uint32(20), area.count)

	area, _ = memoryAreaFor(MemoryDWord, p)
	assert.Equal(t, uint32(5), area.count)
	assert.Equal(t, 4, area.elemSize)

	area, _ = memoryAreaFor(MemoryInputDWord, p)
	assert.Equal(t, uint32(3), area.count)

	area, _ = memoryAreaFor(MemoryString, p)
	assert.Equal(t, 32, area.elemSize)

	_, ok = memoryAreaFor(MemoryNone, p)
	assert.False(t, ok)
}
