// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"github.com/spectrum-node/spectrumd/anchor"
	"github.com/spectrum-node/spectrumd/blockdigest"
	"github.com/spectrum-node/spectrumd/blockrecord"
	"github.com/spectrum-node/spectrumd/storage"
)

// GetBlockBytes - the stored block, followed by its utxo states if
// requested; nil for heights out of range or pruned
func (s *Store) GetBlockBytes(height int64, includeUtxoStates bool) ([]byte, error) {
	e, found, err := s.Entry(height)
	if nil != err || !found || e.Pruned() {
		return nil, err
	}

	length := int(e.BlockLength)
	if includeUtxoStates {
		length += int(e.StateLength)
	}
	return s.read(height, int64(e.StartOffset), length)
}

// GetBlockAndStates - block bytes and utxo state bytes read together
func (s *Store) GetBlockAndStates(height int64) (blockrecord.PackedBlock, []byte, error) {
	e, found, err := s.Entry(height)
	if nil != err || !found || e.Pruned() {
		return nil, nil, err
	}
	buffer, err := s.read(height, int64(e.StartOffset), int(e.BlockLength)+int(e.StateLength))
	if nil != err {
		return nil, nil, err
	}
	return buffer[:e.BlockLength], buffer[e.BlockLength:], nil
}

// GetTransactions - packed bytes of some transactions of one block
//
// the block is read once and only the requested transactions are
// sliced out; nil for a missing block and nil elements for indexes
// that are not in the block
func (s *Store) GetTransactions(height int64, txIndexes []int) ([][]byte, error) {
	b, err := s.GetBlockBytes(height, false)
	if nil != err || nil == b {
		return nil, err
	}
	packed := blockrecord.PackedBlock(b)
	count, err := packed.TransactionCount()
	if nil != err {
		return nil, err
	}

	result := make([][]byte, len(txIndexes))
	for i, n := range txIndexes {
		if n < 0 || n >= count {
			continue
		}
		tx, err := packed.TransactionBytes(n)
		if nil != err {
			return nil, err
		}
		result[i] = tx
	}
	return result, nil
}

// GetTransaction - packed bytes of one transaction, nil if absent
func (s *Store) GetTransaction(ref anchor.TxRef) ([]byte, error) {
	txs, err := s.GetTransactions(int64(ref.Height), []int{int(ref.TxIndex)})
	if nil != err || nil == txs {
		return nil, err
	}
	return txs[0], nil
}

// HeightOfHash - height of the block with hash, false if unknown
func (s *Store) HeightOfHash(hash blockdigest.Digest) (int64, bool) {
	n, found := s.db.Pools.BlockHashes.GetN(hash[:])
	if !found || int64(n) > s.lastHeight {
		return 0, false
	}
	return int64(n), true
}

// HashOfHeight - hash of the block at height, false if unknown
func (s *Store) HashOfHeight(height int64) (blockdigest.Digest, bool) {
	if height < 0 || height > s.lastHeight {
		return blockdigest.Digest{}, false
	}
	value := s.db.Pools.BlockHeights.Get(storage.HeightKey(uint64(height)))
	var hash blockdigest.Digest
	if nil != blockdigest.DigestFromBytes(&hash, value) {
		return blockdigest.Digest{}, false
	}
	return hash, true
}

// LastHash - hash of the newest block, the zero digest for an empty ledger
func (s *Store) LastHash() blockdigest.Digest {
	hash, _ := s.HashOfHeight(s.lastHeight)
	return hash
}

func (s *Store) read(height int64, position int64, length int) ([]byte, error) {
	h, err := s.batches.get(s.batchOf(height), false)
	if nil != err {
		return nil, err
	}
	return h.Read(position, length)
}
