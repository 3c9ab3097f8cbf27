// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package block

import (
	"context"

	"github.com/spectrum-node/spectrumd/checkpoint"
	"github.com/spectrum-node/spectrumd/fault"
	"github.com/spectrum-node/spectrumd/merkle"
)

// ActivateCheckpoint - start staging from an archive and copy the live
// blocks above it
func (s *Store) ActivateCheckpoint(path string) error {
	s.Lock()
	defer s.Unlock()

	if err := s.checkpoints.Activate(path); nil != err {
		return err
	}
	n, err := s.checkpoints.MigrateBlocksToActiveCheckpoint(s.ledger, nil)
	if nil != err {
		return err
	}
	s.log.Infof("staging checkpoint started with: %d live blocks", n)
	return nil
}

// FillCheckpoint - offer a block fetched for the staging checkpoint
func (s *Store) FillCheckpoint(packed []byte, info []byte) (checkpoint.FillResult, error) {
	s.Lock()
	defer s.Unlock()
	return s.checkpoints.FillActiveCheckpointWithBlock(packed, info)
}

// DeployCheckpoint - replace the live chain by the staged one
//
// the live block info of the snapshot window moves to staging first,
// then every live store is reopened on the deployed folders
func (s *Store) DeployCheckpoint(ctx context.Context) error {
	s.Lock()
	defer s.Unlock()

	if _, err := s.checkpoints.MigrateBlocksToActiveCheckpoint(s.ledger, s.info); nil != err {
		return err
	}

	s.close()
	if err := s.checkpoints.DeployActiveCheckpoint(s.LivePaths()); nil != err {
		return err
	}

	// trashed snapshots belong to the replaced history
	if err := s.snapshots.EmptyTrash(); nil != err {
		return err
	}
	return s.open(ctx, true)
}

// CheckpointState - progress of the staging area
func (s *Store) CheckpointState() checkpoint.State {
	s.RLock()
	defer s.RUnlock()
	return s.checkpoints.State()
}

// VerifyCheckpoint - check an archive against its manifest and name
func (s *Store) VerifyCheckpoint(path string) (*checkpoint.Manifest, error) {
	s.RLock()
	defer s.RUnlock()
	return s.checkpoints.Verify(path)
}

// NewCheckpoint - archive the snapshots ending at a snapshot height
func (s *Store) NewCheckpoint(height uint64) (merkle.Digest, error) {
	s.Lock()
	defer s.Unlock()

	hash, ok := s.ledger.HashOfHeight(int64(height))
	if !ok {
		return merkle.Digest{}, fault.ErrBlockNotFound
	}
	return s.checkpoints.NewCheckpoint(height, s.conf.SnapshotInterval, hash)
}
