// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/spectrum-node/spectrumd/fault"
)

// Transaction - a group of writes applied together
type Transaction struct {
	database *Database
	batch    *leveldb.Batch
}

// Begin - start collecting writes
func (d *Database) Begin() *Transaction {
	return &Transaction{
		database: d,
		batch:    new(leveldb.Batch),
	}
}

// Put - queue a key/value write
func (t *Transaction) Put(p *PoolHandle, key []byte, value []byte) {
	t.batch.Put(p.prefixKey(key), value)
}

// PutN - queue a big endian uint64 write
func (t *Transaction) PutN(p *PoolHandle, key []byte, n uint64) {
	t.batch.Put(p.prefixKey(key), encodeN(n))
}

// Delete - queue a key removal
func (t *Transaction) Delete(p *PoolHandle, key []byte) {
	t.batch.Delete(p.prefixKey(key))
}

// Commit - write all queued operations atomically
func (t *Transaction) Commit() error {
	if nil == t.database.db {
		return fault.ErrNotInitialised
	}
	err := t.database.db.Write(t.batch, nil)
	t.batch.Reset()
	return err
}
