// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bitmark-inc/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spectrum-node/spectrumd/storage"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "storage-test")
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

func TestOpenNew(t *testing.T) {
	name := filepath.Join(t.TempDir(), "test.leveldb")

	db, mustReindex, err := storage.Open(name, storage.ReadWrite)
	require.Nil(t, err, "open")
	assert.True(t, mustReindex, "new database must be indexed")
	require.Nil(t, db.Close(), "close")

	db, mustReindex, err = storage.Open(name, storage.ReadWrite)
	require.Nil(t, err, "reopen")
	assert.False(t, mustReindex, "existing database")
	require.Nil(t, db.Close(), "close")

	db, mustReindex, err = storage.Open(name, storage.ReadOnly)
	require.Nil(t, err, "read only")
	assert.False(t, mustReindex, "read only database")
	require.Nil(t, db.Close(), "close")
}

func TestPools(t *testing.T) {
	name := filepath.Join(t.TempDir(), "test.leveldb")

	db, _, err := storage.Open(name, storage.ReadWrite)
	require.Nil(t, err, "open")
	defer db.Close()

	hashes := db.Pools.BlockHashes
	heights := db.Pools.BlockHeights

	trx := db.Begin()
	trx.PutN(hashes, []byte("hash-one"), 1)
	trx.PutN(hashes, []byte("hash-two"), 2)
	trx.Put(heights, storage.HeightKey(1), []byte("hash-one"))
	trx.Put(heights, storage.HeightKey(2), []byte("hash-two"))
	require.Nil(t, trx.Commit(), "commit")

	n, found := hashes.GetN([]byte("hash-two"))
	assert.True(t, found, "found")
	assert.Equal(t, uint64(2), n, "height")

	_, found = hashes.GetN([]byte("hash-three"))
	assert.False(t, found, "missing key")

	// prefixes separate the pools
	assert.Nil(t, heights.Get([]byte("hash-one")), "key in other pool")
	assert.NotNil(t, hashes.Get([]byte("hash-one")), "key in pool")

	last, found := heights.LastElement()
	assert.True(t, found, "last")
	assert.Equal(t, storage.HeightKey(2), last.Key, "last key")
	assert.Equal(t, []byte("hash-two"), last.Value, "last value")

	trx = db.Begin()
	trx.Delete(hashes, []byte("hash-one"))
	require.Nil(t, trx.Commit(), "delete")
	assert.Nil(t, hashes.Get([]byte("hash-one")), "deleted")

	count := 0
	err = heights.NewCursor().Seek(storage.HeightKey(2)).Map(func(key []byte, value []byte) error {
		count += 1
		return nil
	})
	assert.Nil(t, err, "map")
	assert.Equal(t, 1, count, "elements from seek")
}

func TestTransactionAndClear(t *testing.T) {
	name := filepath.Join(t.TempDir(), "test.leveldb")

	db, _, err := storage.Open(name, storage.ReadWrite)
	require.Nil(t, err, "open")
	defer db.Close()

	trx := db.Begin()
	trx.PutN(db.Pools.BlockHashes, []byte("a"), 5)
	trx.Put(db.Pools.BlockHeights, storage.HeightKey(5), []byte("a"))
	trx.PutN(db.Pools.Meta, storage.MetaIndexedHeight, 5)

	assert.Nil(t, db.Pools.BlockHashes.Get([]byte("a")), "not yet committed")
	require.Nil(t, trx.Commit(), "commit")
	assert.NotNil(t, db.Pools.BlockHashes.Get([]byte("a")), "committed")

	trx = db.Begin()
	trx.Delete(db.Pools.BlockHashes, []byte("a"))
	require.Nil(t, trx.Commit(), "commit")
	assert.Nil(t, db.Pools.BlockHashes.Get([]byte("a")), "deleted")

	require.Nil(t, db.Clear(), "clear")
	_, found := db.Pools.Meta.GetN(storage.MetaIndexedHeight)
	assert.False(t, found, "meta cleared")
	_, found = db.Pools.BlockHeights.LastElement()
	assert.False(t, found, "heights cleared")
}
