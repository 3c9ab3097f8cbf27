// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockinfo_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bitmark-inc/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spectrum-node/spectrumd/blockinfo"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "blockinfo-test")
	if nil != err {
		panic(err)
	}

	logging := logger.Configuration{
		Directory: dir,
		File:      "testing.log",
		Size:      1048576,
		Count:     10,
		Console:   false,
		Levels: map[string]string{
			logger.DefaultTag: "critical",
		},
	}
	_ = logger.Initialise(logging)

	rc := m.Run()

	logger.Finalise()
	_ = os.RemoveAll(dir)
	os.Exit(rc)
}

func TestPutGet(t *testing.T) {
	c, err := blockinfo.Open(filepath.Join(t.TempDir(), "blocks-info"))
	require.Nil(t, err, "open")

	data, err := c.Get(3)
	assert.Nil(t, err, "missing is not an error")
	assert.Nil(t, data, "missing")

	require.Nil(t, c.Put(3, []byte("three")), "put")
	require.Nil(t, c.Put(3, []byte("THREE")), "replace")

	data, err = c.Get(3)
	require.Nil(t, err, "get")
	assert.Equal(t, []byte("THREE"), data, "value")

	// a fresh cache reads from disk
	other, err := blockinfo.Open(c.Directory())
	require.Nil(t, err, "open")
	data, err = other.Get(3)
	require.Nil(t, err, "get")
	assert.Equal(t, []byte("THREE"), data, "value from file")

	require.Nil(t, c.Delete(3), "delete")
	require.Nil(t, c.Delete(3), "delete twice")
	data, err = c.Get(3)
	assert.Nil(t, err, "get")
	assert.Nil(t, data, "deleted")
}

func TestHeightsAndPrune(t *testing.T) {
	c, err := blockinfo.Open(filepath.Join(t.TempDir(), "blocks-info"))
	require.Nil(t, err, "open")

	for _, h := range []uint64{12, 3, 7, 10} {
		require.Nil(t, c.Put(h, []byte{byte(h)}), "put")
	}
	require.Nil(t, os.WriteFile(filepath.Join(c.Directory(), "11.bin.tmp"), []byte{1}, 0600), "partial")
	require.Nil(t, os.WriteFile(filepath.Join(c.Directory(), "notes.txt"), []byte{1}, 0600), "stray")

	heights, err := c.Heights()
	require.Nil(t, err, "heights")
	assert.Equal(t, []uint64{3, 7, 10, 12}, heights, "sorted")
	_, err = os.Stat(filepath.Join(c.Directory(), "11.bin.tmp"))
	assert.True(t, os.IsNotExist(err), "partial file removed")

	n, err := c.PruneBelow(10)
	require.Nil(t, err, "prune")
	assert.Equal(t, 2, n, "pruned")

	heights, err = c.Heights()
	require.Nil(t, err, "heights")
	assert.Equal(t, []uint64{10, 12}, heights, "after prune")
}

func TestMoveTo(t *testing.T) {
	dir := t.TempDir()
	live, err := blockinfo.Open(filepath.Join(dir, "live"))
	require.Nil(t, err, "open")
	staging, err := blockinfo.Open(filepath.Join(dir, "staging"))
	require.Nil(t, err, "open")

	for h := uint64(0); h < 6; h += 1 {
		require.Nil(t, live.Put(h, []byte{byte(h)}), "put")
	}

	n, err := live.MoveTo(staging, 4)
	require.Nil(t, err, "move")
	assert.Equal(t, 2, n, "moved")

	heights, err := staging.Heights()
	require.Nil(t, err, "heights")
	assert.Equal(t, []uint64{4, 5}, heights, "staging")

	data, err := live.Get(5)
	require.Nil(t, err, "get")
	assert.Nil(t, data, "gone from live")

	data, err = staging.Get(5)
	require.Nil(t, err, "get")
	assert.Equal(t, []byte{5}, data, "in staging")

	require.Nil(t, live.Reset(), "reset")
	heights, err = live.Heights()
	require.Nil(t, err, "heights")
	assert.Equal(t, 0, len(heights), "empty")
}
