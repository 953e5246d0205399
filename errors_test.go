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
	"errors"
	"fmt"
	"testing"
)

func TestApplicationError_Is(t *testing.T) {
	err := &Error{Kind: KindApplication, Op: "file info", Err: NewApplicationError(ErrorClassTelegram, CodeNoFile)}

	if !errors.Is(err, ErrFileNotFound) {
		t.Error("Expected error to match ErrFileNotFound")
	}
	if errors.Is(err, ErrFileExists) {
		t.Error("Expected error not to match ErrFileExists")
	}
	if !errors.Is(err, NewApplicationError(ErrorClassTelegram, CodeNoFile)) {
		t.Error("Expected error to match an equal ApplicationError")
	}
	if !IsApplicationError(err, ErrorClassTelegram, CodeNoFile) {
		t.Error("IsApplicationError: expected true")
	}
	if IsApplicationError(err, ErrorClassTransfer, CodeNoFile) {
		t.Error("IsApplicationError: expected false for other class")
	}
}

func TestLookupError(t *testing.T) {
	tests := []struct {
		class uint8
		code  uint8
		key   string
	}{
		{ErrorClassTelegram, CodeNoFile, "LSV2_ERROR_T_ER_NO_FILE"},
		{ErrorClassTelegram, CodeNoLogin, "LSV2_ERROR_T_ER_NO_LOGIN"},
		{ErrorClassTransfer, CodeTransferAborted, "LSV2_ERROR_T_BD_ABORTED"},
		{9, 9, UnknownErrorKey},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			key, msg := LookupError(tt.class, tt.code)
			if key != tt.key {
				t.Errorf("LookupError(%d, %d): expected %s, got %s", tt.class, tt.code, tt.key, key)
			}
			if msg == "" {
				t.Errorf("LookupError(%d, %d): expected a message", tt.class, tt.code)
			}
		})
	}
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		kind ErrorKind
	}{
		{&Error{Kind: KindTransport, Err: ErrNotConnected}, KindTransport},
		{&Error{Kind: KindProtocol, Err: ErrUnknownTelegram}, KindProtocol},
		{decodeError("tool: %d bytes", 3), KindDecode},
		{inputError("bad"), KindInput},
		{fmt.Errorf("wrapped: %w", inputError("bad")), KindInput},
		{errors.New("plain"), 0},
	}

	for _, tt := range tests {
		if got := kindOf(tt.err); got != tt.kind {
			t.Errorf("kindOf(%v): expected %s, got %s", tt.err, tt.kind, got)
		}
	}

	if !errors.Is(decodeError("x"), ErrDecode) {
		t.Error("Expected decode error to match ErrDecode")
	}
	if !errors.Is(inputError("x"), ErrInvalidInput) {
		t.Error("Expected input error to match ErrInvalidInput")
	}
}

func TestNewErrorKeepsKind(t *testing.T) {
	inner := &Error{Kind: KindApplication, Err: NewApplicationError(1, CodeNoPrivilege)}
	got := newError(KindProtocol, "login", inner)

	if got.Kind != KindApplication {
		t.Errorf("Kind: expected application, got %s", got.Kind)
	}
	if got.Op != "login" {
		t.Errorf("Op: expected login, got %q", got.Op)
	}
}
