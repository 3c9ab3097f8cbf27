// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"encoding/binary"
	"fmt"
	"reflect"

	"github.com/bitmark-inc/logger"
	"github.com/syndtr/goleveldb/leveldb"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/spectrum-node/spectrumd/fault"
)

// Pools - the tables of one database
//
// note all must be exported (i.e. initial capital) or initialisation will fail
type Pools struct {
	BlockHashes  *PoolHandle `prefix:"H"`
	BlockHeights *PoolHandle `prefix:"N"`
	Meta         *PoolHandle `prefix:"M"`
}

// keys in the Meta pool
var (
	MetaIndexedHeight = []byte("indexed-height")
	MetaPrunedTip     = []byte("pruned-tip")
)

// for database version
var versionKey = []byte{0x00, 'V', 'E', 'R', 'S', 'I', 'O', 'N'}

const currentVersion = 0x100

// pool access modes
const (
	ReadOnly  = true
	ReadWrite = false
)

// Database - one open LevelDB and its pools
type Database struct {
	log   *logger.L
	db    *leveldb.DB
	Pools Pools
}

// Open - open or create the database
//
// returns true in the second value if the contents must be rebuilt
// because the database is new or came from an older version
func Open(name string, readOnly bool) (*Database, bool, error) {
	log := logger.New("storage")

	opt := &ldb_opt.Options{
		ErrorIfExist:   false,
		ErrorIfMissing: readOnly,
		ReadOnly:       readOnly,
	}

	db, err := leveldb.OpenFile(name, opt)
	if nil != err {
		return nil, false, err
	}

	version, err := getVersion(db)
	if nil != err {
		db.Close()
		return nil, false, err
	}

	// ensure no database downgrade
	if version > currentVersion {
		log.Criticalf("database version: %d > current version: %d", version, currentVersion)
		db.Close()
		return nil, false, fmt.Errorf("database version: %d > current version: %d", version, currentVersion)
	}

	d := &Database{
		log: log,
		db:  db,
	}
	if err := d.setupPools(); nil != err {
		db.Close()
		return nil, false, err
	}

	mustReindex := false
	if version < currentVersion {
		if readOnly {
			db.Close()
			return nil, false, fmt.Errorf("database version: %d  current version: %d  cannot upgrade read only", version, currentVersion)
		}
		log.Warnf("database version: %d < current version: %d, rebuild required", version, currentVersion)
		if err := d.Clear(); nil != err {
			db.Close()
			return nil, false, err
		}
		if err := putVersion(db, currentVersion); nil != err {
			db.Close()
			return nil, false, err
		}
		mustReindex = true
	}

	return d, mustReindex, nil
}

// fill in the pool handles from the struct tags
func (d *Database) setupPools() error {

	// this will be a struct type
	poolType := reflect.TypeOf(d.Pools)

	// get write access by using pointer + Elem()
	poolValue := reflect.ValueOf(&d.Pools).Elem()

	for i := 0; i < poolType.NumField(); i += 1 {

		fieldInfo := poolType.Field(i)

		prefixTag := fieldInfo.Tag.Get("prefix")
		if 1 != len(prefixTag) {
			return fmt.Errorf("pool: %v has invalid prefix: %q", fieldInfo, prefixTag)
		}

		prefix := prefixTag[0]
		limit := []byte(nil)
		if prefix < 255 {
			limit = []byte{prefix + 1}
		}

		p := &PoolHandle{
			prefix:   prefix,
			limit:    limit,
			database: d.db,
		}
		poolValue.Field(i).Set(reflect.ValueOf(p))
	}
	return nil
}

// Clear - remove every element of every pool
func (d *Database) Clear() error {
	if nil == d.db {
		return fault.ErrNotInitialised
	}
	batch := new(leveldb.Batch)
	err := d.Pools.BlockHashes.clearInto(batch)
	if nil == err {
		err = d.Pools.BlockHeights.clearInto(batch)
	}
	if nil == err {
		err = d.Pools.Meta.clearInto(batch)
	}
	if nil != err {
		return err
	}
	return d.db.Write(batch, nil)
}

// Close - close the database, pools must not be used afterwards
func (d *Database) Close() error {
	if nil == d.db {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

func getVersion(db *leveldb.DB) (int, error) {
	versionValue, err := db.Get(versionKey, nil)
	if leveldb.ErrNotFound == err {
		return 0, nil
	} else if nil != err {
		return 0, err
	}

	if 4 != len(versionValue) {
		return 0, fmt.Errorf("incompatible database version length: expected: %d  actual: %d", 4, len(versionValue))
	}

	return int(binary.BigEndian.Uint32(versionValue)), nil
}

func putVersion(db *leveldb.DB, version int) error {
	v := make([]byte, 4)
	binary.BigEndian.PutUint32(v, uint32(version))
	return db.Put(versionKey, v, nil)
}
