// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package binaryfile

import (
	"io"
	"os"

	"github.com/spectrum-node/spectrumd/fault"
)

// Handle - an open file and its logical end of file
type Handle struct {
	path   string
	file   *os.File
	cursor int64
}

// Open - open an existing file, optionally creating an empty one
func Open(path string, create bool) (*Handle, error) {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}

	file, err := os.OpenFile(path, flags, 0600)
	if nil != err {
		return nil, err
	}

	info, err := file.Stat()
	if nil != err {
		file.Close()
		return nil, err
	}

	return &Handle{
		path:   path,
		file:   file,
		cursor: info.Size(),
	}, nil
}

// Path - the file name the handle was opened with
func (h *Handle) Path() string {
	return h.path
}

// Size - current logical end of file
func (h *Handle) Size() int64 {
	return h.cursor
}

// Append - write at the end of file and return the position written to
func (h *Handle) Append(data []byte) (int64, error) {
	position := h.cursor
	n, err := h.file.WriteAt(data, position)
	h.cursor += int64(n)
	if nil != err {
		return position, err
	}
	return position, nil
}

// WriteAt - overwrite bytes at an explicit position
//
// the end of file only moves if the write extends past it
func (h *Handle) WriteAt(data []byte, position int64) error {
	if position < 0 {
		return fault.ErrInvalidCount
	}
	n, err := h.file.WriteAt(data, position)
	if end := position + int64(n); end > h.cursor {
		h.cursor = end
	}
	return err
}

// Read - return a fresh buffer holding length bytes from position
func (h *Handle) Read(position int64, length int) ([]byte, error) {
	if position < 0 || length < 0 {
		return nil, fault.ErrInvalidCount
	}
	if position+int64(length) > h.cursor {
		return nil, fault.ErrReadBeyondEndOfFile
	}
	buffer := make([]byte, length)
	if 0 == length {
		return buffer, nil
	}
	n, err := h.file.ReadAt(buffer, position)
	if io.EOF == err && n == length {
		err = nil
	}
	if nil != err {
		return nil, err
	}
	return buffer, nil
}

// ReadAll - the whole file contents
func (h *Handle) ReadAll() ([]byte, error) {
	return h.Read(0, int(h.cursor))
}

// Truncate - cut the file to newSize bytes
func (h *Handle) Truncate(newSize int64) error {
	if newSize < 0 || newSize > h.cursor {
		return fault.ErrInvalidCount
	}
	if err := h.file.Truncate(newSize); nil != err {
		return err
	}
	h.cursor = newSize
	return nil
}

// Shrink - remove count bytes from the end of the file
func (h *Handle) Shrink(count int64) error {
	return h.Truncate(h.cursor - count)
}

// Sync - flush to stable storage
func (h *Handle) Sync() error {
	return h.file.Sync()
}

// Close - release the file, the handle must not be used afterwards
func (h *Handle) Close() error {
	if nil == h.file {
		return nil
	}
	err := h.file.Close()
	h.file = nil
	return err
}
