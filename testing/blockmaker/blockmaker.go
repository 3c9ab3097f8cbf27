// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockmaker - build chains of sealed blocks for tests
package blockmaker

import (
	"github.com/spectrum-node/spectrumd/address"
	"github.com/spectrum-node/spectrumd/anchor"
	"github.com/spectrum-node/spectrumd/blockdigest"
	"github.com/spectrum-node/spectrumd/blockrecord"
	"github.com/spectrum-node/spectrumd/merkle"
)

// CoinbaseAmount - value of the coinbase output of every block
const CoinbaseAmount = 50

// Hasher - cheap proof hash parameters
var Hasher = blockdigest.Hasher{Memory: 64, Iterations: 1, Parallelism: 1}

// Maker - produces the next block of a chain
type Maker struct {
	Prefix   byte
	height   uint32
	previous blockdigest.Digest
	supply   uint64
}

// New - a maker for a chain starting at height 0
func New() *Maker {
	return &Maker{Prefix: 'S'}
}

// Height - the height of the next block
func (m *Maker) Height() uint32 {
	return m.height
}

// Previous - hash of the last block made
func (m *Maker) Previous() blockdigest.Digest {
	return m.previous
}

// Rewind - continue a chain from a known tip, used to build forks
func (m *Maker) Rewind(height uint32, previous blockdigest.Digest) {
	m.height = height
	m.previous = previous
}

// Address - an address in the maker namespace
func (m *Maker) Address(value uint32) address.Address {
	a, err := address.New(m.Prefix, value)
	if nil != err {
		panic(err)
	}
	return a
}

// Next - seal the next block with a coinbase paying the address whose
// value is the block height, followed by txs
func (m *Maker) Next(txs ...*blockrecord.Transaction) blockrecord.PackedBlock {
	m.supply += CoinbaseAmount

	coinbase := &blockrecord.Transaction{
		Outputs: []blockrecord.Output{
			{
				Amount:  CoinbaseAmount,
				Rule:    blockrecord.RuleSignature,
				Address: m.Address(m.height),
			},
		},
	}

	block := &blockrecord.Block{
		Header: blockrecord.Header{
			Index:        m.height,
			Supply:       m.supply,
			Coinbase:     CoinbaseAmount,
			Difficulty:   1,
			Legitimacy:   1,
			PreviousHash: m.previous,
			PosTimestamp: 1600000000 + uint64(m.height),
			Timestamp:    1600000000 + uint64(m.height),
			Nonce:        m.height,
		},
		Transactions: append([]*blockrecord.Transaction{coinbase}, txs...),
	}

	packed, err := block.Seal(Hasher)
	if nil != err {
		panic(err)
	}

	m.previous = block.Header.Hash
	m.height += 1
	return packed
}

// Spend - a transaction spending inputs with one witness per input
func Spend(inputs []anchor.Anchor, outputs ...blockrecord.Output) *blockrecord.Transaction {
	tx := &blockrecord.Transaction{
		Inputs:    inputs,
		Outputs:   outputs,
		Witnesses: make([]blockrecord.Witness, len(inputs)),
	}
	for i, a := range inputs {
		tx.Witnesses[i].PublicKey = PublicKeyFor(a)
	}
	return tx
}

// PublicKeyFor - the witness key used for an input
func PublicKeyFor(a anchor.Anchor) [blockrecord.PublicKeySize]byte {
	p := a.Pack()
	return merkle.NewDigest(p[:])
}

// Pay - a signature output
func Pay(to address.Address, amount uint64) blockrecord.Output {
	return blockrecord.Output{Amount: amount, Rule: blockrecord.RuleSignature, Address: to}
}

// Stake - a stake output
func Stake(to address.Address, amount uint64) blockrecord.Output {
	return blockrecord.Output{Amount: amount, Rule: blockrecord.RuleStake, Address: to}
}

// Coinbase - anchor of the coinbase output of a height
func Coinbase(height uint32) anchor.Anchor {
	return anchor.New(height, 0, 0)
}
