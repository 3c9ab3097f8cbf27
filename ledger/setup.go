// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/patrickmn/go-cache"

	"github.com/spectrum-node/spectrumd/binaryfile"
	"github.com/spectrum-node/spectrumd/blockdigest"
	"github.com/spectrum-node/spectrumd/blockrecord"
	"github.com/spectrum-node/spectrumd/fault"
	"github.com/spectrum-node/spectrumd/storage"
)

// file names inside the ledger directory
const (
	indexFileName  = "blockchain.idx"
	hashesDatabase = "hashes.leveldb"
)

// defaults for Options
const (
	DefaultBatchSize         = 1000
	DefaultOpenBatchFiles    = 8
	DefaultOffsetCacheExpiry = 10 * time.Minute
)

// heights between scheduler yields in long scans
const yieldInterval = 256

// Options - tuning of a Store
type Options struct {
	BatchSize         int64         // heights per batch file
	OpenBatchFiles    int           // bound on open batch file handles
	OffsetCacheExpiry time.Duration // lifetime of a per height utxo offset map
}

// Store - one block ledger
type Store struct {
	log        *logger.L
	directory  string
	options    Options
	index      *binaryfile.Handle
	batches    *batchFiles
	offsets    *cache.Cache
	db         *storage.Database
	lastHeight int64
	damaged    bool // set until TruncateToConsistentHeight has run
}

// Open - open or create the ledger in directory
//
// the hash index is rebuilt when it does not match the ledger height;
// an inconsistent ledger opens read only, the rebuild and any change
// wait for TruncateToConsistentHeight
func Open(directory string, options Options) (*Store, error) {
	if options.BatchSize <= 0 {
		options.BatchSize = DefaultBatchSize
	}
	if options.OpenBatchFiles <= 0 {
		options.OpenBatchFiles = DefaultOpenBatchFiles
	}
	if options.OffsetCacheExpiry <= 0 {
		options.OffsetCacheExpiry = DefaultOffsetCacheExpiry
	}

	s := &Store{
		log:       logger.New("ledger"),
		directory: directory,
		options:   options,
		offsets:   cache.New(options.OffsetCacheExpiry, 2*options.OffsetCacheExpiry),
	}

	s.log.Infof("open: %s", directory)

	if err := s.open(); nil != err {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) open() error {
	s.damaged = false

	err := os.MkdirAll(s.directory, 0700)
	if nil != err {
		return err
	}

	s.index, err = binaryfile.Open(filepath.Join(s.directory, indexFileName), true)
	if nil != err {
		return err
	}
	s.lastHeight = s.index.Size()/IndexEntrySize - 1

	s.batches, err = newBatchFiles(s.directory, s.options.OpenBatchFiles, s.log)
	if nil != err {
		return err
	}

	db, mustReindex, err := storage.Open(filepath.Join(s.directory, hashesDatabase), storage.ReadWrite)
	if nil != err {
		return err
	}
	s.db = db

	ok, err := s.CheckBlockchainBytesLengthConsistency()
	if nil != err {
		return err
	}
	if !ok {
		s.log.Warn("ledger inconsistent: hash index rebuild postponed")
		return nil
	}

	indexed, found := s.db.Pools.Meta.GetN(storage.MetaIndexedHeight)
	if mustReindex || !found || int64(indexed)-1 != s.lastHeight {
		return s.reindex()
	}

	s.log.Infof("last height: %d", s.lastHeight)
	return nil
}

// Close - release all files
func (s *Store) Close() {
	if nil != s.batches {
		s.batches.closeAll()
		s.batches = nil
	}
	if nil != s.index {
		s.index.Close()
		s.index = nil
	}
	if nil != s.db {
		s.db.Close()
		s.db = nil
	}
	s.offsets.Flush()
}

// Reset - delete the ledger contents and start again from empty
func (s *Store) Reset() error {
	s.log.Warnf("reset: %s", s.directory)
	s.Close()
	if err := os.RemoveAll(s.directory); nil != err {
		return err
	}
	return s.open()
}

// Directory - where the ledger lives
func (s *Store) Directory() string {
	return s.directory
}

// BatchSize - heights per batch file
func (s *Store) BatchSize() int64 {
	return s.options.BatchSize
}

// LastHeight - height of the newest block, -1 for an empty ledger
func (s *Store) LastHeight() int64 {
	return s.lastHeight
}

func (s *Store) batchOf(height int64) int64 {
	return height / s.options.BatchSize
}

// rebuild the hash index by reading every stored header
func (s *Store) reindex() error {
	s.log.Warnf("rebuilding hash index to height: %d", s.lastHeight)

	prunedHeight, prunedTip, hasPruned := s.prunedTip()

	if err := s.db.Clear(); nil != err {
		return err
	}

	trx := s.db.Begin()
	if hasPruned && prunedHeight <= s.lastHeight {
		putPrunedTip(trx, s.db, prunedHeight, prunedTip)
	}

	for height := int64(0); height <= s.lastHeight; height += 1 {
		e, _, err := s.Entry(height)
		if nil != err {
			return err
		}
		if e.Pruned() {
			continue
		}
		h, err := s.batches.get(s.batchOf(height), false)
		if nil != err {
			return err
		}
		buffer, err := h.Read(int64(e.StartOffset), blockrecord.TotalHeaderSize)
		if nil != err {
			return err
		}
		header, _, err := blockrecord.ExtractHeader(buffer)
		if nil != err {
			return err
		}
		if int64(header.Index) != height {
			s.log.Criticalf("height: %d  stored block index: %d", height, header.Index)
			return fault.ErrBlockIndexMismatch
		}
		putHash(trx, s.db, height, header.Hash)

		if 0 == height%yieldInterval {
			if err := trx.Commit(); nil != err {
				return err
			}
			runtime.Gosched()
		}
	}
	trx.PutN(s.db.Pools.Meta, storage.MetaIndexedHeight, uint64(s.lastHeight+1))
	return trx.Commit()
}

// drop hash index entries above the ledger height
func (s *Store) trimHashes() error {
	trx := s.db.Begin()

	last, found := s.db.Pools.BlockHeights.LastElement()
	if found && int64(binary.BigEndian.Uint64(last.Key)) > s.lastHeight {
		cursor := s.db.Pools.BlockHeights.NewCursor().Seek(storage.HeightKey(uint64(s.lastHeight + 1)))
		err := cursor.Map(func(key []byte, value []byte) error {
			trx.Delete(s.db.Pools.BlockHeights, key)
			trx.Delete(s.db.Pools.BlockHashes, value)
			return nil
		})
		if nil != err {
			return err
		}
	}
	if prunedHeight, _, ok := s.prunedTip(); ok && prunedHeight > s.lastHeight {
		trx.Delete(s.db.Pools.Meta, storage.MetaPrunedTip)
	}

	trx.PutN(s.db.Pools.Meta, storage.MetaIndexedHeight, uint64(s.lastHeight+1))
	return trx.Commit()
}

func putHash(trx *storage.Transaction, db *storage.Database, height int64, hash blockdigest.Digest) {
	trx.PutN(db.Pools.BlockHashes, hash[:], uint64(height))
	trx.Put(db.Pools.BlockHeights, storage.HeightKey(uint64(height)), hash[:])
}

func putPrunedTip(trx *storage.Transaction, db *storage.Database, height int64, hash blockdigest.Digest) {
	value := make([]byte, 8+blockdigest.Length)
	binary.BigEndian.PutUint64(value, uint64(height))
	copy(value[8:], hash[:])
	trx.Put(db.Pools.Meta, storage.MetaPrunedTip, value)
	putHash(trx, db, height, hash)
}

// prunedTip - height and hash of the last pruned entry
func (s *Store) prunedTip() (int64, blockdigest.Digest, bool) {
	value := s.db.Pools.Meta.Get(storage.MetaPrunedTip)
	if len(value) != 8+blockdigest.Length {
		return 0, blockdigest.Digest{}, false
	}
	var hash blockdigest.Digest
	copy(hash[:], value[8:])
	return int64(binary.BigEndian.Uint64(value)), hash, true
}
