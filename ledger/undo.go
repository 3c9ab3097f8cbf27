// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"github.com/spectrum-node/spectrumd/anchor"
	"github.com/spectrum-node/spectrumd/binaryfile"
	"github.com/spectrum-node/spectrumd/blockrecord"
	"github.com/spectrum-node/spectrumd/fault"
	"github.com/spectrum-node/spectrumd/storage"
)

// UndoBlock - remove the newest block
//
// the outputs the block spent become unspent again, then the batch
// file is cut back to the start of the block, which also discards its
// utxo states, and the index loses one entry
func (s *Store) UndoBlock() error {
	if s.damaged {
		return fault.ErrInconsistentBlockchainBytes
	}

	height := s.lastHeight
	if height < 0 {
		return fault.ErrNoBlocksToUndo
	}

	e, _, err := s.Entry(height)
	if nil != err {
		return err
	}
	hash, hasHash := s.HashOfHeight(height)

	if !e.Pruned() {
		b, err := s.read(height, int64(e.StartOffset), int(e.BlockLength))
		if nil != err {
			return err
		}
		inputs, err := blockrecord.PackedBlock(b).InputAnchors()
		if nil != err {
			return err
		}
		if err := s.restoreUtxos(inputs, height); nil != err {
			return err
		}

		batch := s.batchOf(height)
		if 0 == e.StartOffset {
			err = s.batches.remove(batch)
		} else {
			var h *binaryfile.Handle
			h, err = s.batches.get(batch, false)
			if nil == err {
				err = h.Truncate(int64(e.StartOffset))
			}
		}
		if nil != err {
			return err
		}
	}

	if err := s.index.Shrink(IndexEntrySize); nil != err {
		return err
	}
	s.lastHeight = height - 1
	s.forgetOffsets(height)

	trx := s.db.Begin()
	if hasHash {
		trx.Delete(s.db.Pools.BlockHashes, hash[:])
		trx.Delete(s.db.Pools.BlockHeights, storage.HeightKey(uint64(height)))
	}
	if prunedHeight, _, ok := s.prunedTip(); ok && prunedHeight == height {
		trx.Delete(s.db.Pools.Meta, storage.MetaPrunedTip)
	}
	trx.PutN(s.db.Pools.Meta, storage.MetaIndexedHeight, uint64(height))
	if err := trx.Commit(); nil != err {
		return err
	}

	s.log.Debugf("undo height: %d  hash: %v", height, hash)
	return nil
}

// clear the spent flag of outputs consumed by the block at height
//
// anchors into the block itself or into pruned heights are skipped
func (s *Store) restoreUtxos(anchors []anchor.Anchor, height int64) error {
	for _, a := range anchors {
		h := int64(a.Height)
		if h >= height {
			continue
		}
		e, found, err := s.Entry(h)
		if nil != err {
			return err
		}
		if !found {
			return fault.ErrUtxoNotFound
		}
		if e.Pruned() {
			continue
		}
		states, err := s.readStates(h, e)
		if nil != err {
			return err
		}
		offset, ok := s.offsetsOf(h, states)[stateKey(a.TxIndex, a.VoutIndex)]
		if !ok {
			s.log.Criticalf("undo height: %d  anchor: %s  no state record", height, a)
			return fault.ErrUtxoNotFound
		}
		file, err := s.batches.get(s.batchOf(h), false)
		if nil != err {
			return err
		}
		position := int64(e.StartOffset) + int64(e.BlockLength) + int64(offset) + stateSpentOffset
		if err := file.WriteAt([]byte{unspent}, position); nil != err {
			return err
		}
	}
	return nil
}
