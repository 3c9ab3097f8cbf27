// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package block

import (
	"github.com/spectrum-node/spectrumd/blockrecord"
	"github.com/spectrum-node/spectrumd/checkpoint"
	"github.com/spectrum-node/spectrumd/fault"
)

// StoreIncoming - digest the next block
//
// info is optional opaque data kept in the block info cache
func (s *Store) StoreIncoming(packed blockrecord.PackedBlock, info []byte) error {
	s.Lock()
	defer s.Unlock()

	if nil == s.ledger {
		return fault.ErrNotInitialised
	}

	header, err := packed.Header()
	if nil != err {
		return err
	}

	height := s.ledger.LastHeight() + 1
	if int64(header.Index) != height {
		return fault.ErrBlockOutOfSequence
	}
	if s.ledger.LastHash() != header.PreviousHash {
		return fault.ErrPreviousBlockDigestDoesNotMatch
	}

	block, err := packed.Unpack()
	if nil != err {
		return err
	}

	resolved, err := s.state.Resolve(block)
	if nil != err {
		s.log.Warnf("block: %d  rejected: %s", height, err)
		return err
	}

	if err := s.ledger.AddBlock(packed, block.InputAnchors()); nil != err {
		return err
	}
	s.state.Commit(block, resolved)

	if err := s.stakes.AddStakes(stakeAnchors(block)); nil != err {
		return err
	}
	if _, err := s.identities.DigestBlock(block, resolved); nil != err {
		return err
	}
	if nil != info {
		if err := s.info.Put(uint64(height), info); nil != err {
			return err
		}
	}
	if err := s.ring.Put(uint64(height), header.Hash, packed); nil != err {
		return err
	}

	s.log.Infof("stored block: %d  hash: %v  transactions: %d", height, header.Hash, header.TransactionCount)

	if err := s.periodic(uint64(height), header); nil != err {
		return err
	}

	s.feedStaging(packed, info)
	return nil
}

// snapshot and checkpoint creation after a block is stored
func (s *Store) periodic(height uint64, header *blockrecord.Header) error {
	interval := s.conf.SnapshotInterval
	if 0 == interval || 0 == height || 0 != height%interval {
		return nil
	}

	if err := s.snapshots.NewSnapshot(height, s.state); nil != err {
		return err
	}

	// the new snapshot is usable so anything trashed earlier can go
	if err := s.snapshots.EmptyTrash(); nil != err {
		return err
	}

	retain := uint64(s.conf.SnapshotRetain)
	if height >= retain*interval {
		oldest := height - (retain-1)*interval
		if _, err := s.snapshots.MoveSnapshotsLowerThanHeightToTrash(oldest); nil != err {
			return err
		}
		// block info below the retained window is no longer needed
		if _, err := s.info.PruneBelow(oldest); nil != err {
			return err
		}
	}

	if 0 != s.conf.CheckpointInterval && 0 == height%s.conf.CheckpointInterval {
		if _, err := s.checkpoints.NewCheckpoint(height, interval, header.Hash); nil != err {
			return err
		}
		if _, err := s.checkpoints.Prune(s.conf.CheckpointRetain); nil != err {
			return err
		}
	}
	return nil
}

// offer a stored block to a staging checkpoint
//
// staging problems never fail the live chain
func (s *Store) feedStaging(packed blockrecord.PackedBlock, info []byte) {
	if checkpoint.Staging != s.checkpoints.State() {
		return
	}

	result, err := s.checkpoints.FillActiveCheckpointWithBlock(packed, info)
	if nil != err {
		s.log.Errorf("staging checkpoint: %s", err)
		return
	}
	if checkpoint.Restart == result {
		n, err := s.checkpoints.MigrateBlocksToActiveCheckpoint(s.ledger, nil)
		if nil != err {
			s.log.Errorf("staging checkpoint migration: %s", err)
			return
		}
		s.log.Debugf("staging checkpoint caught up by: %d blocks", n)
	}
}
