// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package binaryfile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spectrum-node/spectrumd/binaryfile"
	"github.com/spectrum-node/spectrumd/fault"
)

func TestOpenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.bin")

	_, err := binaryfile.Open(path, false)
	assert.True(t, os.IsNotExist(err), "expected not exist, got: %v", err)

	h, err := binaryfile.Open(path, true)
	require.Nil(t, err, "create")
	defer h.Close()

	assert.Equal(t, int64(0), h.Size(), "new file size")
	assert.Equal(t, path, h.Path(), "path")
}

func TestAppendReadWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")

	h, err := binaryfile.Open(path, true)
	require.Nil(t, err, "create")

	p, err := h.Append([]byte("hello"))
	require.Nil(t, err, "append")
	assert.Equal(t, int64(0), p, "first position")

	p, err = h.Append([]byte(" world"))
	require.Nil(t, err, "append")
	assert.Equal(t, int64(5), p, "second position")
	assert.Equal(t, int64(11), h.Size(), "size after append")

	// overwrite inside the file does not move the end
	err = h.WriteAt([]byte("W"), 6)
	require.Nil(t, err, "write at")
	assert.Equal(t, int64(11), h.Size(), "size after overwrite")

	b, err := h.Read(0, 11)
	require.Nil(t, err, "read")
	assert.Equal(t, []byte("hello World"), b, "contents")

	// each read is a fresh buffer
	b[0] = 'X'
	c, err := h.Read(0, 5)
	require.Nil(t, err, "read")
	assert.Equal(t, []byte("hello"), c, "unchanged contents")

	_, err = h.Read(8, 4)
	assert.Equal(t, fault.ErrReadBeyondEndOfFile, err, "read past end")

	require.Nil(t, h.Close(), "close")

	// reopen keeps the end of file
	h, err = binaryfile.Open(path, false)
	require.Nil(t, err, "reopen")
	defer h.Close()

	assert.Equal(t, int64(11), h.Size(), "size after reopen")
	all, err := h.ReadAll()
	require.Nil(t, err, "read all")
	assert.Equal(t, []byte("hello World"), all, "contents after reopen")
}

func TestTruncateShrink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cut.bin")

	h, err := binaryfile.Open(path, true)
	require.Nil(t, err, "create")
	defer h.Close()

	_, err = h.Append([]byte("0123456789"))
	require.Nil(t, err, "append")

	require.Nil(t, h.Shrink(3), "shrink")
	assert.Equal(t, int64(7), h.Size(), "size after shrink")

	require.Nil(t, h.Truncate(4), "truncate")
	assert.Equal(t, int64(4), h.Size(), "size after truncate")

	assert.Equal(t, fault.ErrInvalidCount, h.Truncate(5), "truncate beyond end")
	assert.Equal(t, fault.ErrInvalidCount, h.Shrink(5), "shrink below zero")

	// appending continues from the new end
	p, err := h.Append([]byte("ab"))
	require.Nil(t, err, "append")
	assert.Equal(t, int64(4), p, "position after truncate")

	info, err := os.Stat(path)
	require.Nil(t, err, "stat")
	assert.Equal(t, int64(6), info.Size(), "file size on disk")

	all, err := h.ReadAll()
	require.Nil(t, err, "read all")
	assert.Equal(t, []byte("0123ab"), all, "contents")
}
