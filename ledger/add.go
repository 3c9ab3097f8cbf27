// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"github.com/spectrum-node/spectrumd/anchor"
	"github.com/spectrum-node/spectrumd/blockdigest"
	"github.com/spectrum-node/spectrumd/blockrecord"
	"github.com/spectrum-node/spectrumd/fault"
	"github.com/spectrum-node/spectrumd/storage"
)

// AddBlock - append the next block
//
// every anchor in spentAnchors is validated before anything is written,
// failing with not found or already spent; anchors may also refer to
// outputs of the block being added
//
// write order: index entry, block bytes, spent flags in earlier blocks,
// then the state bytes; until the state bytes are complete the entry
// is torn and TruncateToConsistentHeight clears the flags again
func (s *Store) AddBlock(packed blockrecord.PackedBlock, spentAnchors []anchor.Anchor) error {
	if s.damaged {
		return fault.ErrInconsistentBlockchainBytes
	}

	header, err := packed.Header()
	if nil != err {
		return err
	}

	height := s.lastHeight + 1
	if int64(header.Index) != height {
		s.log.Errorf("block index: %d  expected: %d", header.Index, height)
		return fault.ErrBlockOutOfSequence
	}

	previous := s.LastHash()
	if previous != header.PreviousHash {
		s.log.Errorf("height: %d  previous hash: %v  expected: %v", height, header.PreviousHash, previous)
		return fault.ErrPreviousBlockDigestDoesNotMatch
	}

	outputs, err := packed.Outputs()
	if nil != err {
		return err
	}
	states := packStates(outputs)

	start, err := s.nextStartOffset(height)
	if nil != err {
		return err
	}

	batchNumber := s.batchOf(height)
	batch, err := s.batches.get(batchNumber, true)
	if nil != err {
		return err
	}
	if batch.Size() != int64(start) {
		s.log.Criticalf("height: %d  batch size: %d  start offset: %d", height, batch.Size(), start)
		s.damaged = true
		return fault.ErrInconsistentBlockchainBytes
	}

	writes, err := s.planSpends(spentAnchors, height, states)
	if nil != err {
		return err
	}

	entry := IndexEntry{
		StartOffset: start,
		BlockLength: uint32(len(packed)),
		StateLength: uint32(len(states)),
	}

	if err := s.appendBlock(batchNumber, entry, packed, states, writes); nil != err {
		s.log.Criticalf("height: %d  append error: %s", height, err)
		s.damaged = true
		return err
	}
	s.lastHeight = height

	trx := s.db.Begin()
	putHash(trx, s.db, height, header.Hash)
	trx.PutN(s.db.Pools.Meta, storage.MetaIndexedHeight, uint64(height+1))
	if err := trx.Commit(); nil != err {
		return err
	}

	s.log.Debugf("added height: %d  hash: %v  spent: %d", height, header.Hash, len(spentAnchors))
	return nil
}

func (s *Store) appendBlock(batchNumber int64, entry IndexEntry, packed []byte, states []byte, writes []pendingSpend) error {
	if _, err := s.index.Append(entry.pack()); nil != err {
		return err
	}
	batch, err := s.batches.get(batchNumber, false)
	if nil != err {
		return err
	}
	if _, err := batch.Append(packed); nil != err {
		return err
	}
	if err := s.writeSpends(writes); nil != err {
		return err
	}

	// writing flags may have evicted the handle
	batch, err = s.batches.get(batchNumber, false)
	if nil != err {
		return err
	}
	_, err = batch.Append(states)
	return err
}

// AddPrunedBlocks - fill heights up to and including upToHeight with
// entries that carry no data
//
// a ledger seeded from a checkpoint starts this way so that heights and
// batch numbering stay the same as in a full ledger; tipHash is the
// hash of the block at upToHeight
func (s *Store) AddPrunedBlocks(upToHeight int64, tipHash blockdigest.Digest) error {
	if s.damaged {
		return fault.ErrInconsistentBlockchainBytes
	}
	if upToHeight <= s.lastHeight {
		return fault.ErrBlockOutOfSequence
	}

	entry := IndexEntry{}
	buffer := make([]byte, 0, (upToHeight-s.lastHeight)*IndexEntrySize)
	for height := s.lastHeight + 1; height <= upToHeight; height += 1 {
		buffer = append(buffer, entry.pack()...)
	}
	if _, err := s.index.Append(buffer); nil != err {
		return err
	}
	s.lastHeight = upToHeight

	trx := s.db.Begin()
	putPrunedTip(trx, s.db, upToHeight, tipHash)
	trx.PutN(s.db.Pools.Meta, storage.MetaIndexedHeight, uint64(upToHeight+1))
	if err := trx.Commit(); nil != err {
		return err
	}

	s.log.Infof("pruned to height: %d  tip: %v", upToHeight, tipHash)
	return nil
}
