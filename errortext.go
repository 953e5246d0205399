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

import "fmt"

// Error classes carried in the first byte of an error telegram.
const (
	ErrorClassTelegram uint8 = 1
	ErrorClassTransfer uint8 = 2
)

// Telegram error codes (class 1).
const (
	CodeBadFormat      uint8 = 20
	CodeUnexpectedTele uint8 = 21
	CodeUnknownTele    uint8 = 22
	CodeNoPrivilege    uint8 = 23
	CodeWrongParameter uint8 = 24
	CodeBreak          uint8 = 25
	CodeBadKey         uint8 = 30
	CodeBadFileName    uint8 = 31
	CodeNoFile         uint8 = 32
	CodeOpenFile       uint8 = 33
	CodeFileExists     uint8 = 34
	CodeBadFile        uint8 = 35
	CodeNoDelete       uint8 = 36
	CodeNoNewFile      uint8 = 37
	CodeNoChangeAttr   uint8 = 38
	CodeBadEmulateKey  uint8 = 39
	CodeNoMachineParam uint8 = 40
	CodeNoWindow       uint8 = 41
	CodeWindowInactive uint8 = 42
	CodeBadCount       uint8 = 43
	CodeNoDirectory    uint8 = 47
	CodeDirExists      uint8 = 48
	CodeDirNotEmpty    uint8 = 49
	CodeNoLogin        uint8 = 50
	CodeMemoryFull     uint8 = 51
)

// Transfer error codes (class 2).
const (
	CodeTransferTimeout  uint8 = 1
	CodeTransferOverflow uint8 = 2
	CodeTransferChecksum uint8 = 3
	CodeTransferAborted  uint8 = 4
)

// UnknownErrorKey is returned for (class, code) pairs without an entry.
const UnknownErrorKey = "LSV2_ERROR_UNKNOWN"

type errorText struct {
	key     string
	message string
}

type errorID struct {
	class uint8
	code  uint8
}

// errorTable maps (class, code) to the message key used by translation
// catalogues and a default English text.
var errorTable = map[errorID]errorText{
	{ErrorClassTelegram, CodeBadFormat}:      {"LSV2_ERROR_T_ER_BAD_FORMAT", "bad telegram format"},
	{ErrorClassTelegram, CodeUnexpectedTele}: {"LSV2_ERROR_T_ER_UNEXPECTED_TELE", "unexpected telegram"},
	{ErrorClassTelegram, CodeUnknownTele}:    {"LSV2_ERROR_T_ER_UNKNOWN_TELE", "unknown telegram"},
	{ErrorClassTelegram, CodeNoPrivilege}:    {"LSV2_ERROR_T_ER_NO_PRIV", "missing privilege for this operation"},
	{ErrorClassTelegram, CodeWrongParameter}: {"LSV2_ERROR_T_ER_WRONG_PARA", "wrong parameter"},
	{ErrorClassTelegram, CodeBreak}:          {"LSV2_ERROR_T_ER_BREAK", "operation aborted"},
	{ErrorClassTelegram, CodeBadKey}:         {"LSV2_ERROR_T_ER_BAD_KEY", "invalid key code"},
	{ErrorClassTelegram, CodeBadFileName}:    {"LSV2_ERROR_T_ER_BAD_FNAME", "invalid file name"},
	{ErrorClassTelegram, CodeNoFile}:         {"LSV2_ERROR_T_ER_NO_FILE", "file does not exist"},
	{ErrorClassTelegram, CodeOpenFile}:       {"LSV2_ERROR_T_ER_OPEN_FILE", "file is open"},
	{ErrorClassTelegram, CodeFileExists}:     {"LSV2_ERROR_T_ER_FILE_EXISTS", "file already exists"},
	{ErrorClassTelegram, CodeBadFile}:        {"LSV2_ERROR_T_ER_BAD_FILE", "file is corrupt"},
	{ErrorClassTelegram, CodeNoDelete}:       {"LSV2_ERROR_T_ER_NO_DELETE", "file cannot be deleted"},
	{ErrorClassTelegram, CodeNoNewFile}:      {"LSV2_ERROR_T_ER_NO_NEW_FILE", "file cannot be created"},
	{ErrorClassTelegram, CodeNoChangeAttr}:   {"LSV2_ERROR_T_ER_NO_CHANGE_ATT", "attributes cannot be changed"},
	{ErrorClassTelegram, CodeBadEmulateKey}:  {"LSV2_ERROR_T_ER_BAD_EMULATEKEY", "invalid emulated key"},
	{ErrorClassTelegram, CodeNoMachineParam}: {"LSV2_ERROR_T_ER_NO_MP", "machine parameter does not exist"},
	{ErrorClassTelegram, CodeNoWindow}:       {"LSV2_ERROR_T_ER_NO_WIN", "window not available"},
	{ErrorClassTelegram, CodeWindowInactive}: {"LSV2_ERROR_T_ER_WIN_NOT_AKTIV", "window not active"},
	{ErrorClassTelegram, CodeBadCount}:       {"LSV2_ERROR_T_ER_ANZ", "invalid element count"},
	{ErrorClassTelegram, CodeNoDirectory}:    {"LSV2_ERROR_T_ER_NO_DIR", "directory does not exist"},
	{ErrorClassTelegram, CodeDirExists}:      {"LSV2_ERROR_T_ER_DIR_EXISTS", "directory already exists"},
	{ErrorClassTelegram, CodeDirNotEmpty}:    {"LSV2_ERROR_T_ER_DIR_NOT_EMPTY", "directory is not empty"},
	{ErrorClassTelegram, CodeNoLogin}:        {"LSV2_ERROR_T_ER_NO_LOGIN", "login rejected"},
	{ErrorClassTelegram, CodeMemoryFull}:     {"LSV2_ERROR_T_ER_MEM_FULL", "controller memory full"},

	{ErrorClassTransfer, CodeTransferTimeout}:  {"LSV2_ERROR_T_BD_TIMEOUT", "transfer timed out"},
	{ErrorClassTransfer, CodeTransferOverflow}: {"LSV2_ERROR_T_BD_OVERFLOW", "receive buffer overflow"},
	{ErrorClassTransfer, CodeTransferChecksum}: {"LSV2_ERROR_T_BD_CHECKSUM", "transfer checksum error"},
	{ErrorClassTransfer, CodeTransferAborted}:  {"LSV2_ERROR_T_BD_ABORTED", "transfer aborted by controller"},
}

// LookupError returns the message key and default text for an error
// telegram. Unknown pairs resolve to UnknownErrorKey.
func LookupError(class, code uint8) (key, message string) {
	if t, ok := errorTable[errorID{class, code}]; ok {
		return t.key, t.message
	}
	return UnknownErrorKey, fmt.Sprintf("unknown error (class %d, code %d)", class, code)
}
