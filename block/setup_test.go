// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package block_test

import (
	"context"
	"os"
	"testing"

	"github.com/bitmark-inc/logger"
	"github.com/stretchr/testify/require"

	"github.com/spectrum-node/spectrumd/anchor"
	"github.com/spectrum-node/spectrumd/block"
	"github.com/spectrum-node/spectrumd/blockrecord"
	"github.com/spectrum-node/spectrumd/identity"
	"github.com/spectrum-node/spectrumd/ledger"
	"github.com/spectrum-node/spectrumd/testing/blockmaker"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "block-test")
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

func configuration(dir string) block.Configuration {
	return block.Configuration{
		Directory: dir,
		Ledger:    ledger.Options{BatchSize: 4, OpenBatchFiles: 2},
		Identity: identity.Options{
			Prefixes:    "S",
			AddressBits: 12,
			ChunkSize:   4096,
		},
		SnapshotInterval:   5,
		SnapshotRetain:     3,
		CheckpointInterval: 10,
		CheckpointRetain:   1,
		Hasher:             blockmaker.Hasher,
	}
}

func open(t *testing.T, dir string) *block.Store {
	s, err := block.Open(context.Background(), configuration(dir))
	require.Nil(t, err, "open")
	return s
}

// a chain fed to a store, remembering the state after every block
type chain struct {
	maker  *blockmaker.Maker
	blocks []blockrecord.PackedBlock
	states [][][]byte
}

func newChain() *chain {
	return &chain{maker: blockmaker.New()}
}

// store blocks up to and including height
//
// each block after the first spends the coinbase of the block before it
// into a stake
func (c *chain) grow(t *testing.T, s *block.Store, height uint32) {
	for h := c.maker.Height(); h <= height; h += 1 {
		var txs []*blockrecord.Transaction
		if h > 0 {
			txs = append(txs, blockmaker.Spend(
				[]anchor.Anchor{blockmaker.Coinbase(h - 1)},
				blockmaker.Stake(c.maker.Address(100+h), blockmaker.CoinbaseAmount),
			))
		}
		packed := c.maker.Next(txs...)
		require.Nil(t, s.StoreIncoming(packed, []byte{byte(h)}), "store: %d", h)
		c.blocks = append(c.blocks, packed)

		serialised, err := s.Serialised()
		require.Nil(t, err, "serialised: %d", h)
		c.states = append(c.states, serialised)
	}
}
