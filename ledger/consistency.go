// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"runtime"

	"github.com/spectrum-node/spectrumd/blockrecord"
	"github.com/spectrum-node/spectrumd/storage"
)

// CheckBlockchainBytesLengthConsistency - compare the size of the
// newest batch file with the size implied by the newest index entry
//
// false means a torn write from an earlier crash; the store then
// refuses changes until TruncateToConsistentHeight has run
func (s *Store) CheckBlockchainBytesLengthConsistency() (bool, error) {
	ok, err := s.checkConsistency()
	if nil == err && !ok {
		s.damaged = true
	}
	return ok, err
}

func (s *Store) checkConsistency() (bool, error) {
	if 0 != s.index.Size()%IndexEntrySize {
		s.log.Warnf("index size: %d  is not a multiple of: %d", s.index.Size(), IndexEntrySize)
		return false, nil
	}

	if s.lastHeight < 0 {
		size, err := s.batches.size(0)
		return 0 == size, err
	}

	e, _, err := s.Entry(s.lastHeight)
	if nil != err {
		return false, err
	}

	batch := s.batchOf(s.lastHeight)
	size, err := s.batches.size(batch)
	if nil != err {
		return false, err
	}
	if uint64(size) != e.End() {
		s.log.Warnf("height: %d  batch: %d  size: %d  expected: %d", s.lastHeight, batch, size, e.End())
		return false, nil
	}

	// nothing may follow in a later batch
	next, err := s.batches.size(batch + 1)
	if nil != err {
		return false, err
	}
	if 0 != next {
		s.log.Warnf("batch: %d  unexpected size: %d", batch+1, next)
		return false, nil
	}
	return true, nil
}

// TruncateToConsistentHeight - repair a torn ledger
//
// the index is cut to whole entries, entries whose bytes are missing are
// dropped and trailing bytes after the last entry are removed; outputs
// spent by a dropped block become unspent again; returns the resulting
// last height
func (s *Store) TruncateToConsistentHeight() (int64, error) {
	s.log.Warnf("repair from height: %d", s.lastHeight)

	if extra := s.index.Size() % IndexEntrySize; 0 != extra {
		if err := s.index.Shrink(extra); nil != err {
			return s.lastHeight, err
		}
	}
	s.lastHeight = s.index.Size()/IndexEntrySize - 1

	for s.lastHeight >= 0 {
		e, _, err := s.Entry(s.lastHeight)
		if nil != err {
			return s.lastHeight, err
		}
		batch := s.batchOf(s.lastHeight)
		size, err := s.batches.size(batch)
		if nil != err {
			return s.lastHeight, err
		}
		if uint64(size) >= e.End() {
			if uint64(size) > e.End() {
				h, err := s.batches.get(batch, false)
				if nil != err {
					return s.lastHeight, err
				}
				if err := h.Truncate(int64(e.End())); nil != err {
					return s.lastHeight, err
				}
			}
			break
		}
		s.log.Warnf("drop height: %d  batch size: %d  expected: %d", s.lastHeight, size, e.End())
		if err := s.restoreDropped(s.lastHeight, e, size); nil != err {
			return s.lastHeight, err
		}
		if err := s.index.Shrink(IndexEntrySize); nil != err {
			return s.lastHeight, err
		}
		s.forgetOffsets(s.lastHeight)
		s.lastHeight -= 1
		runtime.Gosched()
	}

	// remove batch files beyond the last height
	first := int64(0)
	if s.lastHeight >= 0 {
		first = s.batchOf(s.lastHeight) + 1
		e, _, err := s.Entry(s.lastHeight)
		if nil != err {
			return s.lastHeight, err
		}
		if 0 == e.End() {
			first -= 1
		}
	}
	for batch := first; ; batch += 1 {
		size, err := s.batches.size(batch)
		if nil != err {
			return s.lastHeight, err
		}
		if 0 == size && batch > first {
			break
		}
		if err := s.batches.remove(batch); nil != err {
			return s.lastHeight, err
		}
	}

	indexed, found := s.db.Pools.Meta.GetN(storage.MetaIndexedHeight)
	if found && int64(indexed)-1 > s.lastHeight {
		if err := s.trimHashes(); nil != err {
			return s.lastHeight, err
		}
	} else if !found || int64(indexed)-1 != s.lastHeight {
		if err := s.reindex(); nil != err {
			return s.lastHeight, err
		}
	}

	s.damaged = false
	s.log.Warnf("repaired to height: %d", s.lastHeight)
	return s.lastHeight, nil
}

// clear the spent flags of a torn block if its block bytes survived
func (s *Store) restoreDropped(height int64, e IndexEntry, batchSize int64) error {
	if e.Pruned() || uint64(batchSize) < e.StartOffset+uint64(e.BlockLength) {
		return nil
	}
	b, err := s.read(height, int64(e.StartOffset), int(e.BlockLength))
	if nil != err {
		return err
	}
	inputs, err := blockrecord.PackedBlock(b).InputAnchors()
	if nil != err {
		s.log.Warnf("drop height: %d  unreadable block: %s", height, err)
		return nil
	}
	return s.restoreUtxos(inputs, height)
}
