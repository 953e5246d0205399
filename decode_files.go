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
	"time"
)

// FileEntry describes one file or directory on the controller.
type FileEntry struct {
	Name       string    `json:"name" yaml:"name"`
	Size       uint32    `json:"size" yaml:"size"`
	Modified   time.Time `json:"modified" yaml:"modified"`
	Attributes uint32    `json:"attributes" yaml:"attributes"`

	Changeable  bool `json:"changeable" yaml:"changeable"`
	Hidden      bool `json:"hidden" yaml:"hidden"`
	Protected   bool `json:"protected" yaml:"protected"`
	Selected    bool `json:"selected" yaml:"selected"`
	IsDirectory bool `json:"is_directory" yaml:"is_directory"`
	IsDrive     bool `json:"is_drive" yaml:"is_drive"`
}

type attributeBits struct {
	changeable, hidden, protected, selected, directory, drive uint32
}

// Attribute masks per file interface generation.
var attributeLayouts = map[Generation]attributeBits{
	GenerationOld: {
		changeable: 0x01,
		hidden:     0x02,
		protected:  0x04,
		selected:   0x08,
		directory:  0x10,
		drive:      0x20,
	},
	GenerationNew: {
		changeable: 1 << 23,
		hidden:     1 << 24,
		drive:      1 << 27,
		directory:  1 << 28,
		protected:  1 << 29,
		selected:   1 << 30,
	},
}

const fileEntryHeaderLen = 12

// DecodeFileEntry decodes an S_FI or S_DR entry. The attribute bits are
// interpreted according to gen.
func DecodeFileEntry(data []byte, gen Generation) (*FileEntry, error) {
	if len(data) <= fileEntryHeaderLen {
		return nil, decodeError("file entry: %d bytes", len(data))
	}
	bits, ok := attributeLayouts[gen]
	if !ok {
		return nil, decodeError("file entry: unknown generation %d", gen)
	}

	attrs := binary.BigEndian.Uint32(data[8:12])
	return &FileEntry{
		Name:        localPath(decodeString(data[fileEntryHeaderLen:])),
		Size:        binary.BigEndian.Uint32(data[0:4]),
		Modified:    time.Unix(int64(binary.BigEndian.Uint32(data[4:8])), 0).UTC(),
		Attributes:  attrs,
		Changeable:  attrs&bits.changeable != 0,
		Hidden:      attrs&bits.hidden != 0,
		Protected:   attrs&bits.protected != 0,
		Selected:    attrs&bits.selected != 0,
		IsDirectory: attrs&bits.directory != 0,
		IsDrive:     attrs&bits.drive != 0,
	}, nil
}

// DirectoryEntry is the S_DI record for the current directory.
type DirectoryEntry struct {
	Path           string   `json:"path" yaml:"path"`
	FreeSize       uint32   `json:"free_size" yaml:"free_size"`
	AttributeTypes []string `json:"attribute_types" yaml:"attribute_types"`
	Attributes     []byte   `json:"attributes" yaml:"attributes"`
}

const (
	dirAttributeSlots = 32
	dirEntryMinLen    = 4 + dirAttributeSlots*4 + dirAttributeSlots
)

// DecodeDirectoryEntry decodes an S_DI payload.
func DecodeDirectoryEntry(data []byte) (*DirectoryEntry, error) {
	if len(data) < dirEntryMinLen {
		return nil, decodeError("directory entry: %d bytes, want at least %d", len(data), dirEntryMinLen)
	}

	d := &DirectoryEntry{
		FreeSize:   binary.BigEndian.Uint32(data[0:4]),
		Attributes: append([]byte(nil), data[4+dirAttributeSlots*4:dirEntryMinLen]...),
		Path:       localPath(decodeString(data[dirEntryMinLen:])),
	}
	for i := 0; i < dirAttributeSlots; i++ {
		off := 4 + i*4
		tag := string(bytes.TrimRight(data[off:off+4], "\x00 "))
		d.AttributeTypes = append(d.AttributeTypes, tag)
	}
	return d, nil
}

// DriveEntry describes one drive returned by a drive listing.
type DriveEntry struct {
	Name  string `json:"name" yaml:"name"`
	Unit  uint32 `json:"unit" yaml:"unit"`
	Flags uint32 `json:"flags" yaml:"flags"`
	Type  string `json:"type" yaml:"type"`
}

const (
	drivePrefixLen    = 15
	driveNameShortLen = 5
	driveNameLongLen  = 7
)

// DecodeDrives decodes a packed drive listing. Records carry no count; the
// name field is 5 bytes wide when its fourth byte is ':' and 7 bytes
// otherwise.
func DecodeDrives(data []byte) ([]DriveEntry, error) {
	var drives []DriveEntry
	off := 0
	for len(data)-off >= drivePrefixLen+1 {
		rec := data[off:]
		nameLen := driveNameLongLen
		if len(rec) > drivePrefixLen+3 && rec[drivePrefixLen+3] == ':' {
			nameLen = driveNameShortLen
		}
		if len(rec) < drivePrefixLen+nameLen {
			return nil, decodeError("drive entry at %d: %d bytes left, want %d",
				off, len(rec), drivePrefixLen+nameLen)
		}

		if !allZero(rec[4:8]) {
			return nil, decodeError("drive entry at %d: reserved bytes not zero", off)
		}

		drives = append(drives, DriveEntry{
			Unit:  binary.BigEndian.Uint32(rec[0:4]),
			Flags: binary.BigEndian.Uint32(rec[8:12]),
			Type:  string(bytes.TrimRight(rec[12:15], "\x00")),
			Name:  decodeString(rec[drivePrefixLen : drivePrefixLen+nameLen]),
		})
		off += drivePrefixLen + nameLen
	}
	return drives, nil
}
