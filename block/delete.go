// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package block

import (
	"github.com/spectrum-node/spectrumd/anchor"
	"github.com/spectrum-node/spectrumd/blockrecord"
	"github.com/spectrum-node/spectrumd/fault"
	"github.com/spectrum-node/spectrumd/state"
)

// DeleteDownToBlock - delete from the current highest block down to
// and including the specified block
//
// blocks are undone one at a time from the tip; when an undone block
// spent outputs the ledger no longer holds the state is rebuilt from
// the newest snapshot instead
func (s *Store) DeleteDownToBlock(height uint64) error {
	s.Lock()
	defer s.Unlock()

	if nil == s.ledger {
		return fault.ErrNotInitialised
	}

	s.log.Infof("delete down to block: %d", height)

	rebuild := false
	for s.ledger.LastHeight() >= int64(height) {
		tip := s.ledger.LastHeight()

		packed, err := s.ledger.GetBlockBytes(tip, false)
		if nil != err {
			return err
		}
		if nil == packed {
			s.log.Errorf("cannot delete pruned block: %d", tip)
			return fault.ErrBlockNotFound
		}
		block, err := blockrecord.PackedBlock(packed).Unpack()
		if nil != err {
			return err
		}

		if !rebuild {
			resolved, ok, err := s.spentOutputs(block)
			if nil != err {
				return err
			}
			if ok {
				s.state.Revert(block, resolved)
			} else {
				rebuild = true
			}
		}

		if err := s.ledger.UndoBlock(); nil != err {
			return err
		}
		s.log.Infof("deleted block: %d  transactions: %d", tip, len(block.Transactions))
	}

	if err := s.truncateDerived(s.ledger.LastHeight()); nil != err {
		return err
	}
	if rebuild {
		return s.restoreState(false)
	}
	return s.fillRing()
}

// outputs spent by a block, read back from the ledger before the block
// is undone; false if any of them is pruned
func (s *Store) spentOutputs(block *blockrecord.Block) (map[anchor.Anchor]blockrecord.Output, bool, error) {
	anchors := block.InputAnchors()
	resolved := make(map[anchor.Anchor]blockrecord.Output, len(anchors))
	if 0 == len(anchors) {
		return resolved, true, nil
	}

	utxos, err := s.ledger.GetUtxos(anchors, false)
	if nil != err {
		return nil, false, err
	}
	if nil == utxos {
		return nil, false, nil
	}
	for _, u := range utxos {
		resolved[u.Anchor] = u.Output
	}
	return resolved, true, nil
}

// RollBackToSnapshot - undo the ledger to a snapshot height and load
// the state saved there
//
// the snapshot is loaded before anything is changed; snapshots above
// the height go to the trash and are brought back if the ledger cannot
// be undone
func (s *Store) RollBackToSnapshot(height uint64) error {
	s.Lock()
	defer s.Unlock()

	if nil == s.ledger {
		return fault.ErrNotInitialised
	}
	if int64(height) > s.ledger.LastHeight() {
		return fault.ErrInvalidHeight
	}

	loaded := state.NewSet()
	if err := s.snapshots.RollBackTo(height, loaded); nil != err {
		return err
	}

	moved, err := s.snapshots.MoveSnapshotsHigherThanHeightToTrash(height)
	if nil != err {
		return err
	}

	for s.ledger.LastHeight() > int64(height) {
		if err := s.ledger.UndoBlock(); nil != err {
			if _, restoreErr := s.snapshots.RestoreLoadedSnapshot(); nil != restoreErr {
				s.log.Errorf("restore trashed snapshots: %s", restoreErr)
			}
			return err
		}
	}

	if err := s.truncateDerived(int64(height)); nil != err {
		return err
	}

	s.state = loaded
	s.log.Infof("rolled back to snapshot: %d  trashed: %v", height, moved)
	return s.fillRing()
}
