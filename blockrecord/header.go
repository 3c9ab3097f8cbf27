// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockrecord

import (
	"encoding/binary"

	"github.com/spectrum-node/spectrumd/blockdigest"
	"github.com/spectrum-node/spectrumd/fault"
)

// PackedHeader - use fix size array to simplify validation
type PackedHeader [TotalHeaderSize]byte

// byte sizes for various fields
const (
	IndexSize            = 4
	SupplySize           = 8
	CoinbaseSize         = 8
	DifficultySize       = 4
	LegitimacySize       = 4
	PreviousHashSize     = blockdigest.Length
	PosTimestampSize     = 8
	TimestampSize        = 8
	HashSize             = blockdigest.Length
	NonceSize            = 4
	TransactionCountSize = 2
	TransactionIndexSize = 4 // one offset per transaction
)

// offsets of the fields
const (
	indexOffset            = 0
	supplyOffset           = indexOffset + IndexSize
	coinbaseOffset         = supplyOffset + SupplySize
	difficultyOffset       = coinbaseOffset + CoinbaseSize
	legitimacyOffset       = difficultyOffset + DifficultySize
	previousHashOffset     = legitimacyOffset + LegitimacySize
	posTimestampOffset     = previousHashOffset + PreviousHashSize
	timestampOffset        = posTimestampOffset + PosTimestampSize
	hashOffset             = timestampOffset + TimestampSize
	nonceOffset            = hashOffset + HashSize
	transactionCountOffset = nonceOffset + NonceSize

	// to set size of header array
	TotalHeaderSize = transactionCountOffset + TransactionCountSize
)

// maximum transactions in a block, limited by uint16 field
const MaximumTransactions = 0xffff

// Header - the unpacked header structure
type Header struct {
	Index            uint32             `json:"index"`
	Supply           uint64             `json:"supply,string"`
	Coinbase         uint64             `json:"coinbase,string"`
	Difficulty       uint32             `json:"difficulty"`
	Legitimacy       uint32             `json:"legitimacy"`
	PreviousHash     blockdigest.Digest `json:"previousHash"`
	PosTimestamp     uint64             `json:"posTimestamp,string"`
	Timestamp        uint64             `json:"timestamp,string"`
	Hash             blockdigest.Digest `json:"hash"`
	Nonce            uint32             `json:"nonce"`
	TransactionCount uint16             `json:"transactionCount"`
}

// ExtractHeader - extract a header from the front of a []byte
func ExtractHeader(block []byte) (*Header, []byte, error) {
	if len(block) < TotalHeaderSize {
		return nil, nil, fault.ErrInvalidBlockHeaderSize
	}
	packedHeader := PackedHeader{}
	copy(packedHeader[:], block[:TotalHeaderSize])

	return packedHeader.Unpack(), block[TotalHeaderSize:], nil
}

// Unpack - turn a byte slice into a record
func (record PackedHeader) Unpack() *Header {
	header := &Header{
		Index:            binary.LittleEndian.Uint32(record[indexOffset:]),
		Supply:           binary.LittleEndian.Uint64(record[supplyOffset:]),
		Coinbase:         binary.LittleEndian.Uint64(record[coinbaseOffset:]),
		Difficulty:       binary.LittleEndian.Uint32(record[difficultyOffset:]),
		Legitimacy:       binary.LittleEndian.Uint32(record[legitimacyOffset:]),
		PosTimestamp:     binary.LittleEndian.Uint64(record[posTimestampOffset:]),
		Timestamp:        binary.LittleEndian.Uint64(record[timestampOffset:]),
		Nonce:            binary.LittleEndian.Uint32(record[nonceOffset:]),
		TransactionCount: binary.LittleEndian.Uint16(record[transactionCountOffset:]),
	}
	copy(header.PreviousHash[:], record[previousHashOffset:posTimestampOffset])
	copy(header.Hash[:], record[hashOffset:nonceOffset])
	return header
}

// Pack - turn a header into its fixed size byte form
func (header *Header) Pack() PackedHeader {
	record := PackedHeader{}

	binary.LittleEndian.PutUint32(record[indexOffset:], header.Index)
	binary.LittleEndian.PutUint64(record[supplyOffset:], header.Supply)
	binary.LittleEndian.PutUint64(record[coinbaseOffset:], header.Coinbase)
	binary.LittleEndian.PutUint32(record[difficultyOffset:], header.Difficulty)
	binary.LittleEndian.PutUint32(record[legitimacyOffset:], header.Legitimacy)
	copy(record[previousHashOffset:], header.PreviousHash[:])
	binary.LittleEndian.PutUint64(record[posTimestampOffset:], header.PosTimestamp)
	binary.LittleEndian.PutUint64(record[timestampOffset:], header.Timestamp)
	copy(record[hashOffset:], header.Hash[:])
	binary.LittleEndian.PutUint32(record[nonceOffset:], header.Nonce)
	binary.LittleEndian.PutUint16(record[transactionCountOffset:], header.TransactionCount)

	return record
}
