// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package state_test

import (
	"os"
	"testing"

	"github.com/bitmark-inc/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spectrum-node/spectrumd/anchor"
	"github.com/spectrum-node/spectrumd/blockrecord"
	"github.com/spectrum-node/spectrumd/fault"
	"github.com/spectrum-node/spectrumd/state"
	"github.com/spectrum-node/spectrumd/testing/blockmaker"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "state-test")
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

func unpack(t *testing.T, packed blockrecord.PackedBlock) *blockrecord.Block {
	block, err := packed.Unpack()
	require.Nil(t, err, "unpack")
	return block
}

func TestUnspentSerialiseIsOrdered(t *testing.T) {
	maker := blockmaker.New()

	one := state.NewUnspentCache()
	two := state.NewUnspentCache()

	anchors := []anchor.Anchor{
		anchor.New(7, 1, 0),
		anchor.New(1, 0, 0),
		anchor.New(7, 0, 3),
	}
	for i, a := range anchors {
		one.Add(a, blockmaker.Pay(maker.Address(uint32(i)), uint64(i+1)))
	}
	for i := len(anchors) - 1; i >= 0; i -= 1 {
		two.Add(anchors[i], blockmaker.Pay(maker.Address(uint32(i)), uint64(i+1)))
	}

	b1, err := one.Serialise()
	require.Nil(t, err, "serialise")
	b2, err := two.Serialise()
	require.Nil(t, err, "serialise")
	assert.Equal(t, b1, b2, "insertion order must not matter")
	assert.Equal(t, 4+3*(anchor.Length+blockrecord.OutputSize), len(b1), "blob size")

	restored := state.NewUnspentCache()
	restored.Add(anchor.New(99, 0, 0), blockmaker.Pay(maker.Address(0), 1))
	require.Nil(t, restored.Deserialise(b1), "deserialise")
	assert.Equal(t, 3, restored.Len(), "count")
	assert.Equal(t, []anchor.Anchor{anchors[1], anchors[2], anchors[0]}, restored.Anchors(), "anchors")

	o, ok := restored.Get(anchors[2])
	assert.True(t, ok, "found")
	assert.Equal(t, uint64(3), o.Amount, "amount")
}

func TestDeserialiseTruncated(t *testing.T) {
	c := state.NewUnspentCache()
	c.Add(anchor.New(1, 0, 0), blockmaker.Pay(blockmaker.New().Address(1), 1))
	blob, err := c.Serialise()
	require.Nil(t, err, "serialise")

	assert.Equal(t, fault.ErrTruncatedRecord, c.Deserialise(blob[:len(blob)-1]), "short")
	assert.Equal(t, fault.ErrTruncatedRecord, c.Deserialise(nil), "empty")
	assert.Equal(t, 1, c.Len(), "unchanged after failure")

	s := state.NewStakeSpectrum()
	assert.Equal(t, fault.ErrTruncatedRecord, s.Deserialise([]byte{1, 0, 0, 0}), "missing record")

	k := state.NewKnownIdentities()
	assert.Equal(t, fault.ErrTruncatedRecord, k.Deserialise([]byte{0, 0}), "missing count")
}

func TestStakeSpectrum(t *testing.T) {
	maker := blockmaker.New()
	s := state.NewStakeSpectrum()

	s.Add(anchor.New(2, 1, 0), state.Stake{Amount: 10, Address: maker.Address(5)})
	s.Add(anchor.New(3, 1, 0), state.Stake{Amount: 15, Address: maker.Address(5)})
	s.Add(anchor.New(3, 2, 0), state.Stake{Amount: 7, Address: maker.Address(6)})

	assert.Equal(t, uint64(32), s.Total(), "total")
	assert.Equal(t, uint64(25), s.ByAddress()[maker.Address(5)], "by address")

	blob, err := s.Serialise()
	require.Nil(t, err, "serialise")

	restored := state.NewStakeSpectrum()
	require.Nil(t, restored.Deserialise(blob), "deserialise")
	assert.Equal(t, 3, restored.Len(), "count")
	assert.Equal(t, s.Total(), restored.Total(), "total")

	stake, ok := restored.Get(anchor.New(3, 2, 0))
	assert.True(t, ok, "found")
	assert.Equal(t, maker.Address(6), stake.Address, "owner")

	restored.Remove(anchor.New(3, 2, 0))
	assert.Equal(t, uint64(25), restored.Total(), "after remove")
}

func TestKnownIdentities(t *testing.T) {
	maker := blockmaker.New()
	k := state.NewKnownIdentities()

	key1 := state.PublicKey(blockmaker.PublicKeyFor(anchor.New(1, 0, 0)))
	key2 := state.PublicKey(blockmaker.PublicKeyFor(anchor.New(2, 0, 0)))

	assert.True(t, k.Add(maker.Address(1), key1), "first key")
	assert.False(t, k.Add(maker.Address(1), key2), "second key ignored")
	assert.True(t, k.Add(maker.Address(0), key2), "other address")

	blob, err := k.Serialise()
	require.Nil(t, err, "serialise")

	restored := state.NewKnownIdentities()
	require.Nil(t, restored.Deserialise(blob), "deserialise")
	assert.Equal(t, 2, restored.Len(), "count")

	key, ok := restored.Get(maker.Address(1))
	assert.True(t, ok, "found")
	assert.Equal(t, key1, key, "key kept")
}

func TestApplyAndRevert(t *testing.T) {
	maker := blockmaker.New()
	s := state.NewSet()

	b0 := unpack(t, maker.Next())
	_, err := s.Apply(b0)
	require.Nil(t, err, "genesis")
	b1 := unpack(t, maker.Next())
	_, err = s.Apply(b1)
	require.Nil(t, err, "block 1")

	before, err := s.Unspent.Serialise()
	require.Nil(t, err, "serialise")

	// spend both coinbases into a stake and a payment
	spend := blockmaker.Spend(
		[]anchor.Anchor{blockmaker.Coinbase(0), blockmaker.Coinbase(1)},
		blockmaker.Stake(maker.Address(9), 60),
		blockmaker.Pay(maker.Address(8), 40),
	)
	b2 := unpack(t, maker.Next(spend))
	resolved, err := s.Apply(b2)
	require.Nil(t, err, "block 2")
	assert.Equal(t, 2, len(resolved), "resolved inputs")

	_, ok := s.Unspent.Get(blockmaker.Coinbase(0))
	assert.False(t, ok, "spent")
	assert.Equal(t, uint64(60), s.Spectrum.Total(), "staked")
	_, ok = s.Identities.Get(maker.Address(0))
	assert.True(t, ok, "identity learned from witness")

	s.Revert(b2, resolved)
	after, err := s.Unspent.Serialise()
	require.Nil(t, err, "serialise")
	assert.Equal(t, before, after, "unspent restored")
	assert.Equal(t, 0, s.Spectrum.Len(), "stake removed")
}

func TestApplyMissingInput(t *testing.T) {
	maker := blockmaker.New()
	s := state.NewSet()

	_, err := s.Apply(unpack(t, maker.Next()))
	require.Nil(t, err, "genesis")

	bad := unpack(t, maker.Next(blockmaker.Spend(
		[]anchor.Anchor{anchor.New(0, 5, 0)},
		blockmaker.Pay(maker.Address(1), 1),
	)))
	_, err = s.Apply(bad)
	assert.Equal(t, fault.ErrMissingInputs, err, "missing")
	assert.Equal(t, 1, s.Unspent.Len(), "unchanged")

	double := unpack(t, maker.Next(
		blockmaker.Spend([]anchor.Anchor{blockmaker.Coinbase(0)}, blockmaker.Pay(maker.Address(1), 1)),
		blockmaker.Spend([]anchor.Anchor{blockmaker.Coinbase(0)}, blockmaker.Pay(maker.Address(2), 1)),
	))
	_, err = s.Apply(double)
	assert.Equal(t, fault.ErrUtxoAlreadySpent, err, "double spend")
}

func TestApplySpendInSameBlock(t *testing.T) {
	maker := blockmaker.New()
	s := state.NewSet()

	_, err := s.Apply(unpack(t, maker.Next()))
	require.Nil(t, err, "genesis")

	first := blockmaker.Spend([]anchor.Anchor{blockmaker.Coinbase(0)}, blockmaker.Pay(maker.Address(3), 50))
	second := blockmaker.Spend([]anchor.Anchor{anchor.New(1, 1, 0)}, blockmaker.Pay(maker.Address(4), 50))
	block := unpack(t, maker.Next(first, second))

	resolved, err := s.Apply(block)
	require.Nil(t, err, "apply")
	_, ok := s.Unspent.Get(anchor.New(1, 1, 0))
	assert.False(t, ok, "intermediate output spent")
	_, ok = s.Unspent.Get(anchor.New(1, 2, 0))
	assert.True(t, ok, "final output")

	s.Revert(block, resolved)
	assert.Equal(t, 1, s.Unspent.Len(), "only genesis coinbase")
}
