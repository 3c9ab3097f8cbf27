// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package checkpoint_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bitmark-inc/logger"
	"github.com/stretchr/testify/require"

	"github.com/spectrum-node/spectrumd/anchor"
	"github.com/spectrum-node/spectrumd/blockinfo"
	"github.com/spectrum-node/spectrumd/blockrecord"
	"github.com/spectrum-node/spectrumd/checkpoint"
	"github.com/spectrum-node/spectrumd/ledger"
	"github.com/spectrum-node/spectrumd/snapshot"
	"github.com/spectrum-node/spectrumd/state"
	"github.com/spectrum-node/spectrumd/testing/blockmaker"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "checkpoint-test")
	if nil != err {
		panic(err)
	}

	logging := logger.Configuration{
		Directory: dir,
		File:      "testing.log",
		Size:      1048576,
		Count:     10,
		Console:   false,
		Levels: map[string]string{
			logger.DefaultTag: "critical",
		},
	}
	_ = logger.Initialise(logging)

	rc := m.Run()

	logger.Finalise()
	_ = os.RemoveAll(dir)
	os.Exit(rc)
}

var ledgerOptions = ledger.Options{BatchSize: 4, OpenBatchFiles: 2}

// a live node: ledger, block info, snapshots and the state
type node struct {
	root      string
	paths     checkpoint.LivePaths
	ledger    *ledger.Store
	info      *blockinfo.Cache
	snapshots *snapshot.System
	state     *state.Set
	maker     *blockmaker.Maker
	blocks    []blockrecord.PackedBlock
}

func newNode(t *testing.T) *node {
	root := t.TempDir()
	n := &node{
		root: root,
		paths: checkpoint.LivePaths{
			Blockchain: filepath.Join(root, "blockchain"),
			BlocksInfo: filepath.Join(root, "blocks-info"),
			Snapshots:  filepath.Join(root, "snapshots"),
		},
		state: state.NewSet(),
		maker: blockmaker.New(),
	}

	var err error
	n.ledger, err = ledger.Open(n.paths.Blockchain, ledgerOptions)
	require.Nil(t, err, "ledger")
	n.info, err = blockinfo.Open(n.paths.BlocksInfo)
	require.Nil(t, err, "block info")
	n.snapshots, err = snapshot.Open(n.paths.Snapshots, filepath.Join(root, "trash"))
	require.Nil(t, err, "snapshots")
	return n
}

// grow the chain to height, snapshotting every interval blocks
//
// each block after the first spends the coinbase of the block before it
// into a stake
func (n *node) grow(t *testing.T, height uint32, interval uint32) {
	for h := n.maker.Height(); h <= height; h += 1 {
		var txs []*blockrecord.Transaction
		if h > 0 {
			txs = append(txs, blockmaker.Spend(
				[]anchor.Anchor{blockmaker.Coinbase(h - 1)},
				blockmaker.Stake(n.maker.Address(1000+h), 50),
			))
		}
		packed := n.maker.Next(txs...)
		block, err := packed.Unpack()
		require.Nil(t, err, "unpack")
		_, err = n.state.Apply(block)
		require.Nil(t, err, "apply: %d", h)
		require.Nil(t, n.ledger.AddBlock(packed, block.InputAnchors()), "add: %d", h)
		require.Nil(t, n.info.Put(uint64(h), []byte{byte(h)}), "info: %d", h)
		n.blocks = append(n.blocks, packed)

		if 0 != h && 0 == h%interval {
			require.Nil(t, n.snapshots.NewSnapshot(uint64(h), n.state), "snapshot: %d", h)
		}
	}
}

func (n *node) open(t *testing.T, hasher checkpoint.ProofHasher, rate float64) *checkpoint.System {
	s, err := checkpoint.Open(checkpoint.Options{
		Directory:       filepath.Join(n.root, "checkpoints"),
		Active:          filepath.Join(n.root, "ACTIVE_CHECKPOINT"),
		Snapshots:       n.snapshots,
		Ledger:          ledgerOptions,
		Hasher:          hasher,
		ProofSampleRate: rate,
	})
	require.Nil(t, err, "open checkpoints")
	return s
}
