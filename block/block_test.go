// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package block_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spectrum-node/spectrumd/anchor"
	"github.com/spectrum-node/spectrumd/block"
	"github.com/spectrum-node/spectrumd/blockdigest"
	"github.com/spectrum-node/spectrumd/checkpoint"
	"github.com/spectrum-node/spectrumd/fault"
	"github.com/spectrum-node/spectrumd/testing/blockmaker"
)

func TestStoreIncomingRejects(t *testing.T) {
	s := open(t, t.TempDir())
	defer s.Close()

	assert.Equal(t, int64(-1), s.Height(), "empty")

	m := blockmaker.New()
	b0 := m.Next()
	require.Nil(t, s.StoreIncoming(b0, nil), "genesis")
	h0, err := b0.Header()
	require.Nil(t, err, "header")

	missing := m.Next(blockmaker.Spend(
		[]anchor.Anchor{blockmaker.Coinbase(7)},
		blockmaker.Pay(m.Address(1), 50),
	))
	assert.Equal(t, fault.ErrMissingInputs, s.StoreIncoming(missing, nil), "missing input")

	m.Rewind(1, h0.Hash)
	twice := m.Next(
		blockmaker.Spend([]anchor.Anchor{blockmaker.Coinbase(0)}, blockmaker.Pay(m.Address(1), 50)),
		blockmaker.Spend([]anchor.Anchor{blockmaker.Coinbase(0)}, blockmaker.Pay(m.Address(2), 50)),
	)
	assert.Equal(t, fault.ErrUtxoAlreadySpent, s.StoreIncoming(twice, nil), "double spend")
	assert.Equal(t, int64(0), s.Height(), "rejected blocks are not stored")

	m.Rewind(1, h0.Hash)
	b1 := m.Next()
	b2 := m.Next()
	assert.Equal(t, fault.ErrBlockOutOfSequence, s.StoreIncoming(b2, nil), "gap")
	require.Nil(t, s.StoreIncoming(b1, nil), "block 1")
	assert.Equal(t, fault.ErrBlockOutOfSequence, s.StoreIncoming(b1, nil), "repeat")

	m.Rewind(2, blockdigest.Digest{})
	assert.Equal(t, fault.ErrPreviousBlockDigestDoesNotMatch, s.StoreIncoming(m.Next(), nil), "wrong previous")

	h1, err := b1.Header()
	require.Nil(t, err, "header")
	d, err := s.DigestForBlock(1)
	require.Nil(t, err, "digest")
	assert.Equal(t, h1.Hash, d, "digest of block 1")

	_, err = s.DigestForBlock(5)
	assert.Equal(t, fault.ErrBlockNotFound, err, "beyond tip")

	_, ok := s.LatestCRC()
	assert.True(t, ok, "crc")
}

func TestPeriodicSnapshotsAndCheckpoints(t *testing.T) {
	s := open(t, t.TempDir())
	defer s.Close()

	c := newChain()
	c.grow(t, s, 30)

	summary, err := s.State()
	require.Nil(t, err, "state")
	assert.Equal(t, int64(30), summary.Height, "height")
	assert.Equal(t, []uint64{20, 25, 30}, summary.Snapshots, "retained snapshots")
	assert.Equal(t, 30, summary.Stakes, "stakes")
	assert.Equal(t, uint64(30*blockmaker.CoinbaseAmount), summary.StakedAmount, "staked")
	assert.Equal(t, "none", summary.Checkpoint, "checkpoint state")

	stakes, err := s.Stakes()
	require.Nil(t, err, "stakes")
	assert.Equal(t, 30, len(stakes), "stake store")

	info, err := s.GetBlockInfo(19)
	require.Nil(t, err, "info 19")
	assert.Nil(t, info, "pruned below the snapshot window")
	info, err = s.GetBlockInfo(20)
	require.Nil(t, err, "info 20")
	assert.Equal(t, []byte{20}, info, "kept")

	list, err := s.Checkpoints()
	require.Nil(t, err, "checkpoints")
	require.Equal(t, 1, len(list), "retained checkpoints")
	assert.Equal(t, uint64(30), list[0].Height, "newest checkpoint")

	r, err := s.Identity(c.maker.Address(3))
	require.Nil(t, err, "identity")
	require.NotNil(t, r, "registered")
	assert.Equal(t, uint32(4), r.BlockIndex, "first spend")
	assert.Equal(t, uint16(1), r.TxIndex, "transaction")

	r, err = s.Identity(c.maker.Address(30))
	require.Nil(t, err, "identity")
	assert.Nil(t, r, "unspent coinbase")
}

func TestDeleteDownToBlock(t *testing.T) {
	s := open(t, t.TempDir())
	defer s.Close()

	c := newChain()
	c.grow(t, s, 12)

	require.Nil(t, s.DeleteDownToBlock(9), "delete")
	assert.Equal(t, int64(8), s.Height(), "height")

	serialised, err := s.Serialised()
	require.Nil(t, err, "serialised")
	assert.Equal(t, c.states[8][0], serialised[0], "spectrum")
	assert.Equal(t, c.states[8][2], serialised[2], "unspent")

	stakes, err := s.Stakes()
	require.Nil(t, err, "stakes")
	assert.Equal(t, 8, len(stakes), "stakes above the tip removed")

	packed, err := s.GetBlock(9)
	require.Nil(t, err, "get")
	assert.Nil(t, packed, "deleted")

	summary, err := s.State()
	require.Nil(t, err, "state")
	assert.Equal(t, []uint64{5}, summary.Snapshots, "snapshot above the tip trashed")

	// the chain continues from the new tip
	h8, err := c.blocks[8].Header()
	require.Nil(t, err, "header")
	c.maker.Rewind(9, h8.Hash)
	c.blocks = c.blocks[:9]
	c.states = c.states[:9]
	c.grow(t, s, 11)
	assert.Equal(t, int64(11), s.Height(), "regrown")
}

func TestRollBackToSnapshot(t *testing.T) {
	s := open(t, t.TempDir())
	defer s.Close()

	c := newChain()
	c.grow(t, s, 13)

	assert.Equal(t, fault.ErrInvalidHeight, s.RollBackToSnapshot(14), "above tip")
	assert.Equal(t, fault.ErrSnapshotNotFound, s.RollBackToSnapshot(7), "no snapshot")
	assert.Equal(t, int64(13), s.Height(), "unchanged")

	require.Nil(t, s.RollBackToSnapshot(10), "roll back")
	assert.Equal(t, int64(10), s.Height(), "height")

	serialised, err := s.Serialised()
	require.Nil(t, err, "serialised")
	assert.Equal(t, c.states[10], serialised, "state of block 10")

	h10, err := c.blocks[10].Header()
	require.Nil(t, err, "header")
	d, err := s.DigestForBlock(10)
	require.Nil(t, err, "digest")
	assert.Equal(t, h10.Hash, d, "tip")
}

func TestReopenRestoresState(t *testing.T) {
	dir := t.TempDir()
	s := open(t, dir)

	c := newChain()
	c.grow(t, s, 13)
	s.Close()

	s = open(t, dir)
	defer s.Close()

	assert.Equal(t, int64(13), s.Height(), "height")
	serialised, err := s.Serialised()
	require.Nil(t, err, "serialised")
	assert.Equal(t, c.states[13], serialised, "replayed from snapshot 10")

	c.grow(t, s, 15)
	assert.Equal(t, int64(15), s.Height(), "continues")
}

func TestInvalidConfiguration(t *testing.T) {
	conf := configuration(t.TempDir())
	conf.CheckpointInterval = 7
	_, err := block.Open(context.Background(), conf)
	assert.Equal(t, fault.ErrInvalidCount, err, "checkpoint interval not a multiple")
}

func TestCheckpointDeployment(t *testing.T) {
	source := open(t, t.TempDir())
	defer source.Close()

	c := newChain()
	c.grow(t, source, 33)

	list, err := source.Checkpoints()
	require.Nil(t, err, "checkpoints")
	require.Equal(t, 1, len(list), "archive")

	freshDir := t.TempDir()
	fresh := open(t, freshDir)
	defer fresh.Close()

	// local history with a trashed snapshot that the checkpoint replaces
	newChain().grow(t, fresh, 6)
	require.Nil(t, fresh.DeleteDownToBlock(4), "delete down")
	trashed, err := os.ReadDir(filepath.Join(freshDir, "trash"))
	require.Nil(t, err, "trash")
	require.Equal(t, 1, len(trashed), "snapshot 5 trashed")

	require.Nil(t, fresh.ActivateCheckpoint(list[0].Path), "activate")
	assert.Equal(t, checkpoint.Staging, fresh.CheckpointState(), "staging")

	for h := 31; h <= 33; h += 1 {
		result, err := fresh.FillCheckpoint(c.blocks[h], nil)
		require.Nil(t, err, "fill: %d", h)
		assert.Equal(t, checkpoint.Accepted, result, "accepted: %d", h)
	}

	require.Nil(t, fresh.DeployCheckpoint(context.Background()), "deploy")
	assert.Equal(t, checkpoint.NoActiveCheckpoint, fresh.CheckpointState(), "deployed")
	assert.Equal(t, int64(33), fresh.Height(), "height")

	serialised, err := fresh.Serialised()
	require.Nil(t, err, "serialised")
	assert.Equal(t, c.states[33], serialised, "state")

	stakes, err := fresh.Stakes()
	require.Nil(t, err, "stakes")
	assert.Equal(t, 33, len(stakes), "stakes rebuilt")

	packed, err := fresh.GetBlock(20)
	require.Nil(t, err, "pruned")
	assert.Nil(t, packed, "no data below the checkpoint")

	trashed, err = os.ReadDir(filepath.Join(freshDir, "trash"))
	require.Nil(t, err, "trash")
	assert.Equal(t, 0, len(trashed), "replaced history not kept in trash")
	summary, err := fresh.State()
	require.Nil(t, err, "state")
	assert.Equal(t, []uint64{20, 25, 30}, summary.Snapshots, "deployed snapshots")

	// the deployed chain accepts the next block
	c.grow(t, fresh, 34)
	assert.Equal(t, int64(34), fresh.Height(), "continues")
}
