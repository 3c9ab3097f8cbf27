// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"encoding/binary"

	"github.com/spectrum-node/spectrumd/fault"
)

// IndexEntrySize - bytes in one index entry
const IndexEntrySize = 16

// index entry layout
const (
	startOffsetOffset = 0
	blockLengthOffset = 8
	stateLengthOffset = 12
)

// IndexEntry - where the bytes of one height live in its batch file
type IndexEntry struct {
	StartOffset uint64 `json:"startOffset"`
	BlockLength uint32 `json:"blockLength"`
	StateLength uint32 `json:"stateLength"`
}

// Pruned - entries of heights before a checkpoint carry no data
func (e IndexEntry) Pruned() bool {
	return 0 == e.BlockLength
}

// End - offset just past the state bytes
func (e IndexEntry) End() uint64 {
	return e.StartOffset + uint64(e.BlockLength) + uint64(e.StateLength)
}

func (e IndexEntry) pack() []byte {
	buffer := make([]byte, IndexEntrySize)
	binary.LittleEndian.PutUint64(buffer[startOffsetOffset:], e.StartOffset)
	binary.LittleEndian.PutUint32(buffer[blockLengthOffset:], e.BlockLength)
	binary.LittleEndian.PutUint32(buffer[stateLengthOffset:], e.StateLength)
	return buffer
}

func unpackIndexEntry(buffer []byte) (IndexEntry, error) {
	if IndexEntrySize != len(buffer) {
		return IndexEntry{}, fault.ErrInvalidIndexEntry
	}
	return IndexEntry{
		StartOffset: binary.LittleEndian.Uint64(buffer[startOffsetOffset:]),
		BlockLength: binary.LittleEndian.Uint32(buffer[blockLengthOffset:]),
		StateLength: binary.LittleEndian.Uint32(buffer[stateLengthOffset:]),
	}, nil
}

// Entry - index entry of a height, false if out of range
func (s *Store) Entry(height int64) (IndexEntry, bool, error) {
	if height < 0 || height > s.lastHeight {
		return IndexEntry{}, false, nil
	}
	buffer, err := s.index.Read(height*IndexEntrySize, IndexEntrySize)
	if nil != err {
		return IndexEntry{}, false, err
	}
	e, err := unpackIndexEntry(buffer)
	if nil != err {
		return IndexEntry{}, false, err
	}
	return e, true, nil
}

// start offset of a new height: the end of the previous height or 0
// at a batch boundary
func (s *Store) nextStartOffset(height int64) (uint64, error) {
	if 0 == height%s.options.BatchSize || 0 == height {
		return 0, nil
	}
	previous, found, err := s.Entry(height - 1)
	if nil != err {
		return 0, err
	}
	if !found {
		return 0, fault.ErrInvalidHeight
	}
	return previous.End(), nil
}
