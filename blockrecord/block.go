// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockrecord

import (
	"encoding/binary"

	"github.com/spectrum-node/spectrumd/anchor"
	"github.com/spectrum-node/spectrumd/blockdigest"
	"github.com/spectrum-node/spectrumd/fault"
	"github.com/spectrum-node/spectrumd/merkle"
)

// PackedBlock - packed records are just a byte slice
//
// layout: header, one u32 offset per transaction measured from the
// start of the block, then the packed transactions
type PackedBlock []byte

// Block - an unpacked block
type Block struct {
	Header       Header
	Transactions []*Transaction
}

// OutputRef - an output together with its position in the block
type OutputRef struct {
	TxIndex   uint16
	VoutIndex uint16
	Output    Output
}

// Pack - build the packed form of a block
//
// the transaction count of the header is set from the transactions
func (block *Block) Pack() (PackedBlock, error) {
	count := len(block.Transactions)
	if 0 == count || count > MaximumTransactions {
		return nil, fault.ErrTransactionCountOutOfRange
	}
	if 0 != len(block.Transactions[0].Inputs) {
		return nil, fault.ErrInvalidCount
	}

	packedTxs := make([][]byte, count)
	size := TotalHeaderSize + count*TransactionIndexSize
	for i, tx := range block.Transactions {
		p, err := tx.Pack()
		if nil != err {
			return nil, err
		}
		packedTxs[i] = p
		size += len(p)
	}

	block.Header.TransactionCount = uint16(count)
	header := block.Header.Pack()

	buffer := make([]byte, size)
	copy(buffer, header[:])

	offset := TotalHeaderSize + count*TransactionIndexSize
	for i, p := range packedTxs {
		binary.LittleEndian.PutUint32(buffer[TotalHeaderSize+i*TransactionIndexSize:], uint32(offset))
		copy(buffer[offset:], p)
		offset += len(p)
	}

	return buffer, nil
}

// Seal - set the block hash to the proof hash and pack the block
func (block *Block) Seal(hasher blockdigest.Hasher) (PackedBlock, error) {
	block.Header.Hash = blockdigest.Digest{}
	packed, err := block.Pack()
	if nil != err {
		return nil, err
	}
	proof, err := packed.ProofRecord()
	if nil != err {
		return nil, err
	}
	block.Header.Hash = hasher.Digest(proof)
	copy(packed[hashOffset:nonceOffset], block.Header.Hash[:])
	return packed, nil
}

// Header - unpack the header of a packed block
func (record PackedBlock) Header() (*Header, error) {
	header, _, err := ExtractHeader(record)
	if nil != err {
		return nil, err
	}
	if len(record) < TotalHeaderSize+int(header.TransactionCount)*TransactionIndexSize {
		return nil, fault.ErrTransactionCountOutOfRange
	}
	return header, nil
}

// TransactionCount - number of transactions in the block
func (record PackedBlock) TransactionCount() (int, error) {
	header, err := record.Header()
	if nil != err {
		return 0, err
	}
	return int(header.TransactionCount), nil
}

// byte range of one transaction using the offset table
func (record PackedBlock) transactionRange(count int, i int) (int, int, error) {
	if i < 0 || i >= count {
		return 0, 0, fault.ErrWrongTransactionIndex
	}
	table := record[TotalHeaderSize:]
	start := int(binary.LittleEndian.Uint32(table[i*TransactionIndexSize:]))
	end := len(record)
	if i+1 < count {
		end = int(binary.LittleEndian.Uint32(table[(i+1)*TransactionIndexSize:]))
	}
	if start < TotalHeaderSize+count*TransactionIndexSize || end < start || end > len(record) {
		return 0, 0, fault.ErrInvalidIndexEntry
	}
	return start, end, nil
}

// TransactionBytes - slice out one packed transaction without
// decoding the others
func (record PackedBlock) TransactionBytes(i int) ([]byte, error) {
	count, err := record.TransactionCount()
	if nil != err {
		return nil, err
	}
	start, end, err := record.transactionRange(count, i)
	if nil != err {
		return nil, err
	}
	return record[start:end], nil
}

// Transaction - decode one transaction
func (record PackedBlock) Transaction(i int) (*Transaction, error) {
	b, err := record.TransactionBytes(i)
	if nil != err {
		return nil, err
	}
	return UnpackTransaction(b)
}

// Unpack - decode the whole block
func (record PackedBlock) Unpack() (*Block, error) {
	header, err := record.Header()
	if nil != err {
		return nil, err
	}
	block := &Block{
		Header:       *header,
		Transactions: make([]*Transaction, header.TransactionCount),
	}
	for i := range block.Transactions {
		tx, err := record.Transaction(i)
		if nil != err {
			return nil, err
		}
		block.Transactions[i] = tx
	}
	return block, nil
}

// Outputs - every output of the block in transaction then output order
func (record PackedBlock) Outputs() ([]OutputRef, error) {
	block, err := record.Unpack()
	if nil != err {
		return nil, err
	}
	return block.Outputs(), nil
}

// InputAnchors - every input of the block, coinbase excluded
func (record PackedBlock) InputAnchors() ([]anchor.Anchor, error) {
	block, err := record.Unpack()
	if nil != err {
		return nil, err
	}
	return block.InputAnchors(), nil
}

// Outputs - every output of the block in transaction then output order
func (block *Block) Outputs() []OutputRef {
	outputs := make([]OutputRef, 0, len(block.Transactions))
	for i, tx := range block.Transactions {
		for j, o := range tx.Outputs {
			outputs = append(outputs, OutputRef{
				TxIndex:   uint16(i),
				VoutIndex: uint16(j),
				Output:    o,
			})
		}
	}
	return outputs
}

// InputAnchors - every input of the block, coinbase excluded
func (block *Block) InputAnchors() []anchor.Anchor {
	inputs := make([]anchor.Anchor, 0, len(block.Transactions))
	for i, tx := range block.Transactions {
		if 0 == i {
			continue
		}
		inputs = append(inputs, tx.Inputs...)
	}
	return inputs
}

// ProofRecord - the bytes covered by the proof hash
//
// the header with its hash field zeroed followed by the SHA3 digest of
// everything after the header
func (record PackedBlock) ProofRecord() ([]byte, error) {
	if len(record) < TotalHeaderSize {
		return nil, fault.ErrInvalidBlockHeaderSize
	}
	proof := make([]byte, TotalHeaderSize, TotalHeaderSize+merkle.DigestLength)
	copy(proof, record[:TotalHeaderSize])
	for i := hashOffset; i < nonceOffset; i += 1 {
		proof[i] = 0
	}
	body := merkle.NewDigest(record[TotalHeaderSize:])
	return append(proof, body[:]...), nil
}
