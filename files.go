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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// TransferOptions controls a file upload or download.
type TransferOptions struct {
	Mode     TransferMode
	Override bool
}

// textLineBreak replaces NUL bytes of text mode downloads.
var textLineBreak = []byte("\r\n")

func (c *Client) fileLogin(ctx context.Context, op string) error {
	if err := c.Login(ctx, LoginFileTransfer, ""); err != nil {
		return newError(KindProtocol, op, err)
	}
	return nil
}

// FileInfo returns the metadata of a remote file. A missing file is
// reported as (nil, false, nil).
func (c *Client) FileInfo(ctx context.Context, remote string) (*FileEntry, bool, error) {
	if err := c.fileLogin(ctx, "file info"); err != nil {
		return nil, false, err
	}
	data, err := c.exchange(ctx, CmdFileInfo, encodeString(wirePath(remote)), RspFileInfo)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return nil, false, nil
		}
		return nil, false, newError(KindProtocol, "file info", err)
	}
	entry, err := DecodeFileEntry(data, c.ControlType().Generation())
	if err != nil {
		return nil, false, newError(KindDecode, "file info", err)
	}
	return entry, true, nil
}

// DirectoryInfo returns the record of the current remote directory.
func (c *Client) DirectoryInfo(ctx context.Context) (*DirectoryEntry, error) {
	if err := c.fileLogin(ctx, "directory info"); err != nil {
		return nil, err
	}
	data, err := c.exchange(ctx, CmdDirInfo, nil, RspDirInfo)
	if err != nil {
		return nil, newError(KindProtocol, "directory info", err)
	}
	d, err := DecodeDirectoryEntry(data)
	if err != nil {
		return nil, newError(KindDecode, "directory info", err)
	}
	return d, nil
}

// ChangeDirectory changes the current remote directory.
func (c *Client) ChangeDirectory(ctx context.Context, dir string) error {
	return c.pathCommand(ctx, "change directory", CmdChangeDir, dir)
}

// DeleteDirectory removes an empty remote directory.
func (c *Client) DeleteDirectory(ctx context.Context, dir string) error {
	return c.pathCommand(ctx, "delete directory", CmdDeleteDir, dir)
}

// DeleteFile removes a remote file.
func (c *Client) DeleteFile(ctx context.Context, remote string) error {
	return c.pathCommand(ctx, "delete file", CmdDeleteFile, remote)
}

// CopyFile copies a remote file on the controller.
func (c *Client) CopyFile(ctx context.Context, src, dst string) error {
	return c.pathCommand(ctx, "copy file", CmdCopyFile, src, dst)
}

// MoveFile renames or moves a remote file on the controller.
func (c *Client) MoveFile(ctx context.Context, src, dst string) error {
	return c.pathCommand(ctx, "move file", CmdMoveFile, src, dst)
}

func (c *Client) pathCommand(ctx context.Context, op string, code Code, paths ...string) error {
	for _, p := range paths {
		if p == "" {
			return newError(KindInput, op, inputError("empty path"))
		}
	}
	if err := c.fileLogin(ctx, op); err != nil {
		return err
	}
	var payload []byte
	for _, p := range paths {
		payload = append(payload, encodeString(wirePath(p))...)
	}
	if _, err := c.exchange(ctx, code, payload, RspOK); err != nil {
		return newError(KindProtocol, op+" "+paths[0], err)
	}
	return nil
}

// MakeDirectory creates a remote directory including missing parents.
// Segments that already exist are skipped.
func (c *Client) MakeDirectory(ctx context.Context, dir string) error {
	dir = strings.TrimSuffix(localPath(dir), "/")
	if dir == "" {
		return newError(KindInput, "make directory", inputError("empty path"))
	}

	segments := strings.Split(dir, "/")
	current := ""
	for i, seg := range segments {
		if i == 0 {
			current = seg
		} else {
			current += "/" + seg
		}
		// A drive such as "TNC:" always exists.
		if seg == "" || strings.HasSuffix(seg, ":") {
			continue
		}

		entry, ok, err := c.FileInfo(ctx, current)
		if err != nil {
			return newError(KindProtocol, "make directory", err)
		}
		if ok {
			if !entry.IsDirectory {
				return newError(KindInput, "make directory",
					inputError("%s exists and is not a directory", current))
			}
			continue
		}
		if err := c.pathCommand(ctx, "make directory", CmdMakeDir, current); err != nil {
			return err
		}
		c.logger.Debug("directory created", slog.String("path", current))
	}
	return nil
}

// DirectoryContent lists the entries of a remote directory. An empty dir
// lists the current directory.
func (c *Client) DirectoryContent(ctx context.Context, dir string) ([]*FileEntry, error) {
	if dir != "" {
		if err := c.ChangeDirectory(ctx, dir); err != nil {
			return nil, err
		}
	} else if err := c.fileLogin(ctx, "directory content"); err != nil {
		return nil, err
	}

	blocks, err := c.exchangeBlock(ctx, CmdDirRead, []byte{byte(dirReadSingle)}, RspDirRead)
	if err != nil {
		return nil, newError(KindProtocol, "directory content", err)
	}

	gen := c.ControlType().Generation()
	entries := make([]*FileEntry, 0, len(blocks))
	for _, b := range blocks {
		e, err := DecodeFileEntry(b, gen)
		if err != nil {
			return nil, newError(KindDecode, "directory content", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Drives lists the drives of the controller.
func (c *Client) Drives(ctx context.Context) ([]DriveEntry, error) {
	if err := c.fileLogin(ctx, "drives"); err != nil {
		return nil, err
	}
	blocks, err := c.exchangeBlock(ctx, CmdDirRead, []byte{byte(dirReadDrives)}, RspDirRead)
	if err != nil {
		return nil, newError(KindProtocol, "drives", err)
	}

	var drives []DriveEntry
	for _, b := range blocks {
		d, err := DecodeDrives(b)
		if err != nil {
			return nil, newError(KindDecode, "drives", err)
		}
		drives = append(drives, d...)
	}
	return drives, nil
}

// Upload writes the content of r to the remote path. Missing parent
// directories are created. An existing target is replaced only with
// opts.Override set.
func (c *Client) Upload(ctx context.Context, r io.Reader, remote string, opts TransferOptions) error {
	const op = "upload"
	remote = localPath(remote)
	if remote == "" || strings.HasSuffix(remote, "/") {
		return newError(KindInput, op, inputError("invalid remote path %q", remote))
	}

	if dir := path.Dir(remote); dir != "." && dir != "/" {
		if err := c.MakeDirectory(ctx, dir); err != nil {
			return newError(KindProtocol, op, err)
		}
	}

	_, exists, err := c.FileInfo(ctx, remote)
	if err != nil {
		return newError(KindProtocol, op, err)
	}
	if exists {
		if !opts.Override {
			return &Error{Kind: KindInput, Op: op, Err: fmt.Errorf("%w: %s", ErrFileExists, remote)}
		}
		if err := c.DeleteFile(ctx, remote); err != nil {
			return newError(KindProtocol, op, err)
		}
	}

	if opts.Mode == ModeText {
		content, err := io.ReadAll(r)
		if err != nil {
			return newError(KindInput, op, fmt.Errorf("read source: %w", err))
		}
		r = bytes.NewReader(toControllerText(content))
	}

	total, err := c.sendFile(ctx, remote, r, opts.Mode)
	if err != nil {
		c.metrics.Uploads.Errors.Add(1)
		return err
	}
	c.metrics.Uploads.Files.Add(1)
	c.metrics.Uploads.Bytes.Add(int64(total))
	return nil
}

func (c *Client) sendFile(ctx context.Context, remote string, r io.Reader, mode TransferMode) (int, error) {
	const op = "upload"
	start := time.Now()
	header := append(encodeString(wirePath(remote)), byte(mode))
	if _, err := c.exchange(ctx, CmdSendFile, header, RspOK); err != nil {
		return 0, newError(KindProtocol, op+" "+remote, err)
	}

	chunk := make([]byte, c.BufferSize()-chunkReserve)
	total := 0
	for {
		n, readErr := io.ReadFull(r, chunk)
		if n > 0 {
			if _, err := c.exchange(ctx, RspFileData, chunk[:n], RspOK); err != nil {
				return total, newError(KindProtocol, op+" "+remote, err)
			}
			total += n
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return total, newError(KindInput, op, fmt.Errorf("read source: %w", readErr))
		}
	}

	// Without secure file send the controller does not acknowledge the end
	// of the transfer.
	expected := RspNone
	if c.SecureFileSend() {
		expected = RspOK
	}
	if _, err := c.exchange(ctx, RspFinished, nil, expected); err != nil {
		return total, newError(KindProtocol, op+" "+remote, err)
	}

	c.logger.Debug("upload finished",
		slog.String("path", remote),
		slog.Int("bytes", total),
		slog.Duration("duration", time.Since(start)))
	return total, nil
}

// Download writes the content of a remote file to w. In text mode NUL
// bytes are written as CR LF.
func (c *Client) Download(ctx context.Context, remote string, w io.Writer, mode TransferMode) error {
	remote = localPath(remote)
	if err := c.requireFile(ctx, remote); err != nil {
		return err
	}
	return c.download(ctx, remote, w, mode)
}

// requireFile fails with ErrFileNotFound unless remote exists.
func (c *Client) requireFile(ctx context.Context, remote string) error {
	const op = "download"
	_, exists, err := c.FileInfo(ctx, remote)
	if err != nil {
		return newError(KindProtocol, op, err)
	}
	if !exists {
		return &Error{Kind: KindApplication, Op: op, Err: fmt.Errorf("%w: %s", ErrFileNotFound, remote)}
	}
	return nil
}

func (c *Client) download(ctx context.Context, remote string, w io.Writer, mode TransferMode) error {
	const op = "download"
	start := time.Now()
	cm := c.metrics.ForCommand(CmdReceiveFile)
	cm.Requests.Add(1)
	c.metrics.RequestsTotal.Add(1)

	total, err := c.receiveFile(ctx, remote, w, mode)
	if err != nil {
		cm.Errors.Add(1)
		c.metrics.RequestsErrors.Add(1)
		c.metrics.Downloads.Errors.Add(1)
		return newError(KindProtocol, op+" "+remote, err)
	}

	duration := time.Since(start)
	cm.Latency.Observe(duration)
	c.metrics.Latency.Observe(duration)
	c.metrics.RequestsSuccess.Add(1)
	c.metrics.Downloads.Files.Add(1)
	c.metrics.Downloads.Bytes.Add(int64(total))
	c.logger.Debug("download finished",
		slog.String("path", remote),
		slog.Int("bytes", total),
		slog.Duration("duration", duration))
	return nil
}

func (c *Client) receiveFile(ctx context.Context, remote string, w io.Writer, mode TransferMode) (int, error) {
	header := append(encodeString(wirePath(remote)), byte(mode))
	reply, err := c.roundTrip(ctx, CmdReceiveFile, header)
	if err != nil {
		return 0, err
	}

	total := 0
	for {
		switch reply.Code {
		case RspFileData:
			data := reply.Payload
			if mode == ModeText {
				data = bytes.ReplaceAll(data, []byte{0x00}, textLineBreak)
			}
			if _, err := w.Write(data); err != nil {
				return total, &Error{Kind: KindInput, Err: fmt.Errorf("write destination: %w", err)}
			}
			total += len(reply.Payload)
		case RspFinished:
			if len(reply.Payload) > 0 {
				return total, &Error{Kind: KindProtocol, Err: fmt.Errorf("%w: %s carries %d bytes",
					ErrUnexpectedData, reply.Code, len(reply.Payload))}
			}
			return total, nil
		default:
			_, err := c.classify(reply, RspFileData)
			return total, err
		}

		reply, err = c.roundTrip(ctx, RspOK, nil)
		if err != nil {
			return total, err
		}
	}
}

// toControllerText converts local line breaks to the NUL separators used
// by text mode transfers.
func toControllerText(b []byte) []byte {
	b = bytes.ReplaceAll(b, textLineBreak, []byte{0x00})
	return bytes.ReplaceAll(b, []byte("\n"), []byte{0x00})
}

// UploadFile uploads a local file. A remote path ending in "/" receives the
// local file name.
func (c *Client) UploadFile(ctx context.Context, local, remote string, opts TransferOptions) error {
	f, err := os.Open(local)
	if err != nil {
		return newError(KindInput, "upload", err)
	}
	defer f.Close()

	if strings.HasSuffix(localPath(remote), "/") {
		remote = localPath(remote) + filepath.Base(local)
	}
	return c.Upload(ctx, f, remote, opts)
}

// DownloadFile downloads a remote file. A local directory receives the
// remote file name. An existing local file is replaced only with
// opts.Override set; a failed download removes the partial file.
func (c *Client) DownloadFile(ctx context.Context, remote, local string, opts TransferOptions) error {
	const op = "download"
	remote = localPath(remote)
	if fi, err := os.Stat(local); err == nil && fi.IsDir() {
		local = filepath.Join(local, path.Base(remote))
	}
	if err := c.requireFile(ctx, remote); err != nil {
		return err
	}

	if _, err := os.Stat(local); err == nil {
		if !opts.Override {
			return &Error{Kind: KindInput, Op: op, Err: fmt.Errorf("%w: %s", ErrFileExists, local)}
		}
		if err := os.Remove(local); err != nil {
			return newError(KindInput, op, err)
		}
	}

	f, err := os.Create(local)
	if err != nil {
		return newError(KindInput, op, err)
	}

	if err := c.download(ctx, remote, f, opts.Mode); err != nil {
		f.Close()
		os.Remove(local)
		return err
	}
	if err := f.Close(); err != nil {
		return newError(KindInput, op, err)
	}
	return nil
}
