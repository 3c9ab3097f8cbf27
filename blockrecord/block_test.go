// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockrecord_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spectrum-node/spectrumd/address"
	"github.com/spectrum-node/spectrumd/anchor"
	"github.com/spectrum-node/spectrumd/blockdigest"
	"github.com/spectrum-node/spectrumd/blockrecord"
	"github.com/spectrum-node/spectrumd/fault"
)

var testHasher = blockdigest.Hasher{Memory: 64, Iterations: 1, Parallelism: 1}

func makeBlock(t *testing.T) *blockrecord.Block {
	a1, err := address.New('S', 1)
	require.Nil(t, err, "address")
	a2, err := address.New('S', 2)
	require.Nil(t, err, "address")

	witness := blockrecord.Witness{}
	witness.PublicKey[0] = 0xaa
	witness.Signature[63] = 0xbb

	return &blockrecord.Block{
		Header: blockrecord.Header{
			Index:        3,
			Supply:       1000,
			Coinbase:     50,
			Difficulty:   7,
			Legitimacy:   9,
			PosTimestamp: 12345,
			Timestamp:    12346,
			Nonce:        42,
		},
		Transactions: []*blockrecord.Transaction{
			{
				Outputs: []blockrecord.Output{
					{Amount: 50, Rule: blockrecord.RuleSignature, Address: a1},
				},
			},
			{
				Inputs: []anchor.Anchor{anchor.New(1, 0, 0), anchor.New(2, 1, 1)},
				Outputs: []blockrecord.Output{
					{Amount: 20, Rule: blockrecord.RuleSignature, Address: a2},
					{Amount: 30, Rule: blockrecord.RuleStake, Address: a1},
				},
				Witnesses: []blockrecord.Witness{witness, witness},
			},
		},
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	b := makeBlock(t)
	b.Header.PreviousHash[0] = 0x11
	b.Header.Hash[31] = 0x22
	b.Header.TransactionCount = 2

	packed := b.Header.Pack()
	assert.Equal(t, 114, len(packed), "header size")
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(packed[0:]), "index at offset 0")

	h := packed.Unpack()
	assert.Equal(t, b.Header, *h, "header round trip")

	_, _, err := blockrecord.ExtractHeader(packed[:100])
	assert.Equal(t, fault.ErrInvalidBlockHeaderSize, err, "short header")
}

func TestBlockPack(t *testing.T) {
	b := makeBlock(t)

	packed, err := b.Pack()
	require.Nil(t, err, "pack")

	n, err := packed.TransactionCount()
	require.Nil(t, err, "count")
	assert.Equal(t, 2, n, "transaction count")

	u, err := packed.Unpack()
	require.Nil(t, err, "unpack")
	assert.Equal(t, b.Header, u.Header, "header")
	assert.Equal(t, b.Transactions[1].Inputs, u.Transactions[1].Inputs, "inputs")
	assert.Equal(t, b.Transactions[1].Outputs, u.Transactions[1].Outputs, "outputs")
	assert.Equal(t, b.Transactions[1].Witnesses, u.Transactions[1].Witnesses, "witnesses")

	// offset table slices single transactions
	tx0, err := packed.TransactionBytes(0)
	require.Nil(t, err, "tx 0")
	p0, err := b.Transactions[0].Pack()
	require.Nil(t, err, "pack tx 0")
	assert.Equal(t, p0, tx0, "tx 0 bytes")

	tx1, err := packed.TransactionBytes(1)
	require.Nil(t, err, "tx 1")
	p1, err := b.Transactions[1].Pack()
	require.Nil(t, err, "pack tx 1")
	assert.Equal(t, p1, tx1, "tx 1 bytes")

	_, err = packed.TransactionBytes(2)
	assert.Equal(t, fault.ErrWrongTransactionIndex, err, "tx 2")

	outputs, err := packed.Outputs()
	require.Nil(t, err, "outputs")
	require.Equal(t, 3, len(outputs), "output count")
	assert.Equal(t, uint16(1), outputs[2].TxIndex, "tx of last output")
	assert.Equal(t, uint16(1), outputs[2].VoutIndex, "vout of last output")
	assert.True(t, outputs[2].Output.IsStake(), "stake output")

	inputs, err := packed.InputAnchors()
	require.Nil(t, err, "inputs")
	assert.Equal(t, []anchor.Anchor{anchor.New(1, 0, 0), anchor.New(2, 1, 1)}, inputs, "inputs")
}

func TestBlockPackErrors(t *testing.T) {
	b := makeBlock(t)
	b.Transactions[0].Inputs = []anchor.Anchor{anchor.New(0, 0, 0)}
	_, err := b.Pack()
	assert.Equal(t, fault.ErrInvalidCount, err, "coinbase with inputs")

	b = makeBlock(t)
	b.Transactions[1].Outputs[0].Rule = 9
	_, err = b.Pack()
	assert.Equal(t, fault.ErrInvalidOutputRule, err, "bad rule")

	b = &blockrecord.Block{}
	_, err = b.Pack()
	assert.Equal(t, fault.ErrTransactionCountOutOfRange, err, "no transactions")

	_, err = blockrecord.UnpackTransaction([]byte{1})
	assert.Equal(t, fault.ErrTruncatedRecord, err, "truncated transaction")

	_, err = blockrecord.UnpackTransaction([]byte{0, 0, 0, 0, 0, 0, 9})
	assert.Equal(t, fault.ErrInvalidCount, err, "trailing bytes")
}

func TestSealAndProof(t *testing.T) {
	b := makeBlock(t)

	packed, err := b.Seal(testHasher)
	require.Nil(t, err, "seal")
	assert.False(t, b.Header.Hash.IsZero(), "hash set")

	h, err := packed.Header()
	require.Nil(t, err, "header")
	assert.Equal(t, b.Header.Hash, h.Hash, "packed hash")

	proof, err := packed.ProofRecord()
	require.Nil(t, err, "proof")
	assert.Equal(t, blockrecord.TotalHeaderSize+32, len(proof), "proof length")
	assert.Equal(t, h.Hash, testHasher.Digest(proof), "re-derived hash")

	// the proof covers the body
	tampered := append(blockrecord.PackedBlock{}, packed...)
	tampered[len(tampered)-1] ^= 0xff
	proof2, err := tampered.ProofRecord()
	require.Nil(t, err, "proof")
	assert.NotEqual(t, proof, proof2, "tampered proof")
}
