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
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Telegram is one framed LSV2 message.
type Telegram struct {
	Code    Code
	Payload []byte
}

// Encode encodes the telegram to bytes.
func (t *Telegram) Encode() []byte {
	buf := make([]byte, HeaderSize+len(t.Payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(t.Payload)))
	copy(buf[4:8], t.Code)
	copy(buf[HeaderSize:], t.Payload)
	return buf
}

// Decode decodes a telegram from bytes.
func (t *Telegram) Decode(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("%w: telegram too short", ErrInvalidFrame)
	}
	length := binary.BigEndian.Uint32(data[0:4])
	if int64(len(data)-HeaderSize) != int64(length) {
		return fmt.Errorf("%w: length field %d, payload %d bytes",
			ErrInvalidFrame, length, len(data)-HeaderSize)
	}
	t.Code = Code(data[4:8])
	t.Payload = nil
	if length > 0 {
		t.Payload = make([]byte, length)
		copy(t.Payload, data[HeaderSize:])
	}
	return nil
}

// ReadTelegram reads a complete telegram from a reader. Payloads longer than
// maxLen are rejected.
func ReadTelegram(r io.Reader, maxLen int) (*Telegram, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[0:4])
	if int64(length) > int64(maxLen) {
		return nil, fmt.Errorf("%w: invalid payload length %d", ErrInvalidFrame, length)
	}

	t := &Telegram{Code: Code(header[4:8])}
	if length > 0 {
		t.Payload = make([]byte, length)
		if _, err := io.ReadFull(r, t.Payload); err != nil {
			return nil, err
		}
	}
	return t, nil
}

var (
	latin1Encoder = encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder())
	latin1Decoder = charmap.ISO8859_1.NewDecoder()
)

// encodeString returns s as Latin-1 followed by a NUL terminator.
func encodeString(s string) []byte {
	b, err := latin1Encoder.Bytes([]byte(s))
	if err != nil {
		b = []byte(s)
	}
	return append(b, 0x00)
}

// decodeString decodes a Latin-1 string that ends at the first NUL.
func decodeString(b []byte) string {
	if i := bytes.IndexByte(b, 0x00); i >= 0 {
		b = b[:i]
	}
	s, err := latin1Decoder.Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// splitStrings splits a NUL separated list. Trailing empty elements are
// dropped.
func splitStrings(b []byte) []string {
	parts := bytes.Split(b, []byte{0x00})
	for len(parts) > 0 && len(parts[len(parts)-1]) == 0 {
		parts = parts[:len(parts)-1]
	}
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = decodeString(p)
	}
	return out
}

// wirePath converts a caller path to the controller's separator.
func wirePath(p string) string {
	return strings.ReplaceAll(p, "/", `\`)
}

// localPath converts a controller path to forward slashes.
func localPath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
